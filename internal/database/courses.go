package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"labsched/internal/models"
)

const courseColumns = `id, code, name, description, credits, is_active, created_at`

func scanCourse(row rowScanner) (*models.Course, error) {
	var c models.Course
	var createdStr string
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Description, &c.Credits, &c.IsActive, &createdStr)
	if err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseStoredTime(createdStr); err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) CreateCourse(ctx context.Context, course *models.Course) error {
	if course.Credits == 0 {
		course.Credits = 3
	}
	now := time.Now().UTC()
	query := `INSERT INTO courses (code, name, description, credits, is_active, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		course.Code, course.Name, course.Description, course.Credits, course.IsActive, formatTime(now),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create course: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	course.ID = id
	course.CreatedAt = now
	return nil
}

// UpsertCourse inserts or refreshes a course keyed by code. Used by the seed
// tool.
func (db *DB) UpsertCourse(ctx context.Context, course *models.Course) error {
	if course.Credits == 0 {
		course.Credits = 3
	}
	query := `INSERT INTO courses (code, name, description, credits, is_active, created_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT(code) DO UPDATE SET
                name = excluded.name,
                description = excluded.description,
                credits = excluded.credits,
                is_active = excluded.is_active`
	_, err := db.ExecContext(ctx, query,
		course.Code, course.Name, course.Description, course.Credits, course.IsActive,
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert course: %w", err)
	}
	return nil
}

func (db *DB) GetCourseByID(ctx context.Context, id int64) (*models.Course, error) {
	course, err := scanCourse(db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return course, nil
}

func (db *DB) GetActiveCourses(ctx context.Context) ([]*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE is_active = 1 ORDER BY code`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get courses: %w", err)
	}
	defer rows.Close()

	var courses []*models.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (db *DB) DeactivateCourse(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `UPDATE courses SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate course: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

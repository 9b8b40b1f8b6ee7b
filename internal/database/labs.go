package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"labsched/internal/models"
)

const labColumns = `id, name, description, capacity, equipment, is_active, created_at, updated_at`

func scanLab(row rowScanner) (*models.Lab, error) {
	var l models.Lab
	var createdStr, updatedStr string
	err := row.Scan(&l.ID, &l.Name, &l.Description, &l.Capacity, &l.Equipment, &l.IsActive, &createdStr, &updatedStr)
	if err != nil {
		return nil, err
	}
	if l.CreatedAt, err = parseStoredTime(createdStr); err != nil {
		return nil, err
	}
	if l.UpdatedAt, err = parseStoredTime(updatedStr); err != nil {
		return nil, err
	}
	return &l, nil
}

func (db *DB) CreateLab(ctx context.Context, lab *models.Lab) error {
	now := time.Now().UTC()
	query := `INSERT INTO labs (name, description, capacity, equipment, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		lab.Name, lab.Description, lab.Capacity, lab.Equipment, lab.IsActive,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create lab: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	lab.ID = id
	lab.CreatedAt = now
	lab.UpdatedAt = now
	return nil
}

// UpsertLab inserts or refreshes a lab keyed by name. Used by the seed tool.
func (db *DB) UpsertLab(ctx context.Context, lab *models.Lab) error {
	query := `INSERT INTO labs (name, description, capacity, equipment, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(name) DO UPDATE SET
                description = excluded.description,
                capacity = excluded.capacity,
                equipment = excluded.equipment,
                is_active = excluded.is_active,
                updated_at = excluded.updated_at`
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, query,
		lab.Name, lab.Description, lab.Capacity, lab.Equipment, lab.IsActive,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert lab: %w", err)
	}
	return nil
}

func (db *DB) GetLabByID(ctx context.Context, id int64) (*models.Lab, error) {
	lab, err := scanLab(db.QueryRowContext(ctx, `SELECT `+labColumns+` FROM labs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lab: %w", err)
	}
	return lab, nil
}

func (db *DB) GetActiveLabs(ctx context.Context) ([]*models.Lab, error) {
	query := `SELECT ` + labColumns + ` FROM labs WHERE is_active = 1 ORDER BY name`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get labs: %w", err)
	}
	defer rows.Close()

	var labs []*models.Lab
	for rows.Next() {
		l, err := scanLab(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lab: %w", err)
		}
		labs = append(labs, l)
	}
	return labs, rows.Err()
}

func (db *DB) DeactivateLab(ctx context.Context, id int64) error {
	query := `UPDATE labs SET is_active = 0, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate lab: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) CountActiveLabs(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM labs WHERE is_active = 1`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count labs: %w", err)
	}
	return count, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"labsched/internal/models"
)

const userColumns = `id, username, email, hashed_password, full_name, role, is_active, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var createdStr, updatedStr string
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.HashedPassword,
		&u.FullName, &u.Role, &u.IsActive, &createdStr, &updatedStr,
	)
	if err != nil {
		return nil, err
	}
	if u.CreatedAt, err = parseStoredTime(createdStr); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseStoredTime(updatedStr); err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	query := `INSERT INTO users (username, email, hashed_password, full_name, role, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		user.Username, user.Email, user.HashedPassword,
		user.FullName, user.Role, user.IsActive, formatTime(now), formatTime(now),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// UpsertUser inserts or refreshes a user keyed by username. Used by the seed
// tool; role and password of an existing account are left untouched.
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (username, email, hashed_password, full_name, role, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(username) DO UPDATE SET
                email = excluded.email,
                full_name = excluded.full_name,
                is_active = excluded.is_active,
                updated_at = excluded.updated_at`
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, query,
		user.Username, user.Email, user.HashedPassword,
		user.FullName, user.Role, user.IsActive, formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (db *DB) queryUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	user, err := scanUser(db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (db *DB) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) SetUserActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, active, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) CountActiveUsers(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_active = 1`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

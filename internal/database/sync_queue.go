package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"labsched/internal/models"
)

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	query := `INSERT INTO sync_queue (task_type, reservation_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	var nextRetry any
	if task.NextRetryAt != nil {
		nextRetry = formatTime(*task.NextRetryAt)
	}
	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.ReservationID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		formatTime(now),
		nextRetry,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

// GetPendingSyncTasks returns tasks ready to run: pending, or retrying with an
// elapsed next_retry_at.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	query := `SELECT id, task_type, reservation_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM sync_queue
              WHERE status = 'pending' OR (status = 'retrying' AND next_retry_at <= ?)
              ORDER BY created_at
              LIMIT ?`
	rows, err := db.QueryContext(ctx, query, formatTime(time.Now().UTC()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		task, err := scanSyncTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanSyncTask(rows *sql.Rows) (models.SyncTask, error) {
	var task models.SyncTask
	var payload, lastError sql.NullString
	var createdStr string
	var processedStr, nextRetryStr sql.NullString
	err := rows.Scan(
		&task.ID, &task.TaskType, &task.ReservationID, &payload,
		&task.Status, &task.RetryCount, &lastError,
		&createdStr, &processedStr, &nextRetryStr,
	)
	if err != nil {
		return task, fmt.Errorf("failed to scan sync task: %w", err)
	}
	task.Payload = payload.String
	if lastError.Valid {
		task.LastError = &lastError.String
	}
	if task.CreatedAt, err = parseStoredTime(createdStr); err != nil {
		return task, err
	}
	if processedStr.Valid {
		t, err := parseStoredTime(processedStr.String)
		if err != nil {
			return task, err
		}
		task.ProcessedAt = &t
	}
	if nextRetryStr.Valid {
		t, err := parseStoredTime(nextRetryStr.String)
		if err != nil {
			return task, err
		}
		task.NextRetryAt = &t
	}
	return task, nil
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []any
	switch {
	case status == "completed":
		query = `UPDATE sync_queue SET status = ?, processed_at = ?, last_error = NULL, next_retry_at = NULL WHERE id = ?`
		args = []any{status, formatTime(time.Now().UTC()), id}
	case nextRetryAt != nil:
		query = `UPDATE sync_queue SET status = ?, retry_count = retry_count + 1, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, errMsg, formatTime(*nextRetryAt), id}
	default:
		query = `UPDATE sync_queue SET status = ?, retry_count = retry_count + 1, last_error = ?, next_retry_at = NULL WHERE id = ?`
		args = []any{status, errMsg, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	query := `SELECT id, task_type, reservation_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM sync_queue WHERE status = 'failed' ORDER BY created_at`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		task, err := scanSyncTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

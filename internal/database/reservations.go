package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"labsched/internal/models"
)

const reservationColumns = `id, instructor_id, lab_id, course_id, section,
                 start_time, end_time, status, notes, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	var startStr, endStr, createdStr, updatedStr string
	err := row.Scan(
		&r.ID, &r.InstructorID, &r.LabID, &r.CourseID, &r.Section,
		&startStr, &endStr, &r.Status, &r.Notes, &createdStr, &updatedStr, &r.Version,
	)
	if err != nil {
		return nil, err
	}

	if r.StartTime, err = parseStoredTime(startStr); err != nil {
		return nil, err
	}
	if r.EndTime, err = parseStoredTime(endStr); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseStoredTime(createdStr); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseStoredTime(updatedStr); err != nil {
		return nil, err
	}
	return &r, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conflictingIDs returns ids of pending/approved reservations on the lab whose
// half-open [start, end) window overlaps the given one. Back-to-back windows
// sharing a boundary instant do not collide.
func conflictingIDs(ctx context.Context, q querier, labID int64, start, end time.Time, excludeID int64) ([]int64, error) {
	query := `SELECT id FROM reservations
              WHERE lab_id = ?
                AND status IN (?, ?)
                AND id != ?
                AND start_time < ?
                AND end_time > ?
              ORDER BY start_time`
	rows, err := q.QueryContext(ctx, query, labID,
		models.StatusPending, models.StatusApproved,
		excludeID, formatTime(end), formatTime(start))
	if err != nil {
		return nil, fmt.Errorf("failed to scan for conflicts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan conflict id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func labIsActive(ctx context.Context, q querier, labID int64) (bool, error) {
	var active bool
	err := q.QueryRowContext(ctx, `SELECT is_active FROM labs WHERE id = ?`, labID).Scan(&active)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up lab %d: %w", labID, err)
	}
	return active, nil
}

// CheckConflict scans the lab's pending and approved reservations for overlap
// with [start, end). An inactive or unknown lab yields an unavailable result,
// not an error. Pass excludeID = 0 to consider every reservation.
func (db *DB) CheckConflict(ctx context.Context, labID int64, start, end time.Time, excludeID int64) (*models.ConflictResult, error) {
	active, err := labIsActive(ctx, db, labID)
	if err != nil {
		return nil, err
	}
	if !active {
		return &models.ConflictResult{LabID: labID, LabAvailable: false}, nil
	}

	ids, err := conflictingIDs(ctx, db, labID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	return &models.ConflictResult{LabID: labID, LabAvailable: true, ConflictingIDs: ids}, nil
}

// CreateReservation inserts without any conflict check. Used by seeds and
// tests; service code goes through CreateReservationWithLock.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	if r.Status == "" {
		r.Status = models.StatusPending
	}
	now := time.Now().UTC()
	query := `INSERT INTO reservations (
                instructor_id, lab_id, course_id, section, start_time, end_time,
                status, notes, created_at, updated_at, version
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		r.InstructorID, r.LabID, r.CourseID, r.Section,
		formatTime(r.StartTime), formatTime(r.EndTime),
		r.Status, r.Notes, formatTime(now), formatTime(now), 1,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	return nil
}

// CreateReservationWithLock runs the conflict check and the insert in one
// transaction. A writer losing the race observes ErrConflict and persists
// nothing.
func (db *DB) CreateReservationWithLock(ctx context.Context, r *models.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	active, err := labIsActive(ctx, tx, r.LabID)
	if err != nil {
		return err
	}
	if !active {
		return ErrLabUnavailable
	}

	ids, err := conflictingIDs(ctx, tx, r.LabID, r.StartTime, r.EndTime, 0)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return ErrConflict
	}

	if r.Status == "" {
		r.Status = models.StatusPending
	}
	now := time.Now().UTC()
	query := `INSERT INTO reservations (
                instructor_id, lab_id, course_id, section, start_time, end_time,
                status, notes, created_at, updated_at, version
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, query,
		r.InstructorID, r.LabID, r.CourseID, r.Section,
		formatTime(r.StartTime), formatTime(r.EndTime),
		r.Status, r.Notes, formatTime(now), formatTime(now), 1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1

	return tx.Commit()
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	r, err := scanReservation(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// TransitionReservationWithRecheck updates status under optimistic locking.
// When recheck is set (the approve path) the lab's conflict scan runs again
// inside the same transaction, excluding the reservation itself, so approval
// cannot land on a window another writer occupied since creation.
func (db *DB) TransitionReservationWithRecheck(ctx context.Context, id, version int64, status string, recheck bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if recheck {
		query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
		r, err := scanReservation(tx.QueryRowContext(ctx, query, id))
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get reservation in tx: %w", err)
		}

		ids, err := conflictingIDs(ctx, tx, r.LabID, r.StartTime, r.EndTime, r.ID)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			return ErrConflict
		}
	}

	query := `UPDATE reservations SET status = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, query, status, formatTime(time.Now().UTC()), id, version)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Either the row is gone or the version is stale.
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE id = ?`, id).Scan(&exists); err == nil && exists == 0 {
			return ErrNotFound
		}
		return ErrConcurrentModification
	}

	return tx.Commit()
}

// GetReservationsByLab returns the lab's reservations whose window intersects
// [from, to), newest first.
func (db *DB) GetReservationsByLab(ctx context.Context, labID int64, from, to time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE lab_id = ? AND start_time < ? AND end_time > ?
              ORDER BY start_time DESC`
	return db.queryReservations(ctx, query, labID, formatTime(to), formatTime(from))
}

func (db *DB) GetReservationsByInstructor(ctx context.Context, instructorID int64) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE instructor_id = ?
              ORDER BY start_time DESC`
	return db.queryReservations(ctx, query, instructorID)
}

func (db *DB) GetReservationsByDateRange(ctx context.Context, from, to time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE start_time < ? AND end_time > ?
              ORDER BY start_time`
	return db.queryReservations(ctx, query, formatTime(to), formatTime(from))
}

func (db *DB) queryReservations(ctx context.Context, query string, args ...any) ([]*models.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

func (db *DB) CountReservations(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

func (db *DB) CountReservationsByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations by status: %w", err)
	}
	return count, nil
}

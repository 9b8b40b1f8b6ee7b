package database

import "errors"

var (
	// ErrNotFound signals a missing entity.
	ErrNotFound = errors.New("record not found")

	// ErrConflict signals an overlapping pending or approved reservation on
	// the same lab.
	ErrConflict = errors.New("time window conflicts with an existing reservation")

	// ErrLabUnavailable signals an inactive or unknown lab; distinct from a
	// scheduling conflict.
	ErrLabUnavailable = errors.New("lab is not available for reservations")

	// ErrConcurrentModification signals a stale version on an optimistic
	// update.
	ErrConcurrentModification = errors.New("record was modified concurrently")

	// ErrInvalidWindow signals end <= start.
	ErrInvalidWindow = errors.New("end time must be after start time")

	// ErrPastStart signals a window starting in the past.
	ErrPastStart = errors.New("start time is in the past")

	// ErrWindowTooFar signals a window beyond the booking horizon.
	ErrWindowTooFar = errors.New("start time is too far in the future")

	// ErrDuplicate signals a unique constraint violation on create.
	ErrDuplicate = errors.New("record already exists")
)

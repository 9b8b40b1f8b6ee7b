package models

import "time"

type Reservation struct {
	ID           int64     `json:"id"`
	InstructorID int64     `json:"instructor_id"`
	LabID        int64     `json:"lab_id"`
	CourseID     int64     `json:"course_id"`
	Section      string    `json:"section"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Status       string    `json:"status"` // pending, approved, declined, cancelled
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int64     `json:"version"`
}

// Overlaps reports half-open interval overlap: [start, end) windows that only
// share a boundary instant do not collide.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return start.Before(r.EndTime) && r.StartTime.Before(end)
}

// ConflictResult is the outcome of a conflict scan for one lab and window.
type ConflictResult struct {
	LabID          int64   `json:"lab_id"`
	LabAvailable   bool    `json:"lab_available"`
	ConflictingIDs []int64 `json:"conflicting_ids,omitempty"`
}

func (c *ConflictResult) HasConflict() bool {
	return len(c.ConflictingIDs) > 0
}

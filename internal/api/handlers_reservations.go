package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"labsched/internal/models"
)

// parseWindow reads from/to query parameters. Values may be RFC3339
// timestamps or bare dates; a missing bound defaults relative to now.
func parseWindow(r *http.Request, defaultSpan time.Duration) (time.Time, time.Time, error) {
	now := time.Now().UTC().Truncate(time.Minute)

	from := now
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %s", raw)
		}
		from = parsed
	}

	to := from.Add(defaultSpan)
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %s", raw)
		}
		to = parsed
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	labID, err := strconv.ParseInt(r.URL.Query().Get("lab_id"), 10, 64)
	if err != nil || labID <= 0 {
		writeError(w, http.StatusBadRequest, "lab_id is required")
		return
	}

	from, to, err := parseWindow(r, 2*time.Hour)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.reservations.CheckAvailability(r.Context(), labID, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lab_id":          result.LabID,
		"available":       result.LabAvailable && !result.HasConflict(),
		"conflicting_ids": result.ConflictingIDs,
	})
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	instructorID := claims.UserID
	if raw := r.URL.Query().Get("instructor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid instructor_id")
			return
		}
		if id != claims.UserID && claims.Role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, "cannot list other instructors' reservations")
			return
		}
		instructorID = id
	}

	reservations, err := s.reservations.GetInstructorReservations(r.Context(), instructorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}

type createReservationRequest struct {
	LabID        int64     `json:"lab_id"`
	CourseID     int64     `json:"course_id"`
	InstructorID int64     `json:"instructor_id"`
	Section      string    `json:"section"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Notes        string    `json:"notes"`
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req createReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reservation := &models.Reservation{
		LabID:        req.LabID,
		CourseID:     req.CourseID,
		InstructorID: req.InstructorID,
		Section:      req.Section,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Notes:        req.Notes,
	}
	if err := s.reservations.CreateReservation(r.Context(), claims.UserID, reservation); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"reservation": reservation})
}

func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	reservation, err := s.reservations.GetReservation(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservation": reservation})
}

// handleTransition builds the approve, decline and cancel handlers. The
// request may carry the version seen by the client for optimistic locking;
// without one the current version is used.
func (s *HTTPServer) handleTransition(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		id, err := pathID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid reservation id")
			return
		}

		var req struct {
			Version int64 `json:"version"`
		}
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		version := req.Version
		if version == 0 {
			current, err := s.reservations.GetReservation(r.Context(), id)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			version = current.Version
		}

		switch target {
		case models.StatusApproved:
			err = s.reservations.ApproveReservation(r.Context(), id, version, claims.UserID)
		case models.StatusDeclined:
			err = s.reservations.DeclineReservation(r.Context(), id, version, claims.UserID)
		case models.StatusCancelled:
			err = s.reservations.CancelReservation(r.Context(), id, version, claims.UserID)
		default:
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		reservation, err := s.reservations.GetReservation(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reservation": reservation})
	}
}

func (s *HTTPServer) handleLabSchedule(w http.ResponseWriter, r *http.Request) {
	labID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lab id")
		return
	}

	from, to, err := parseWindow(r, 7*24*time.Hour)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedule, err := s.reservations.GetLabSchedule(r.Context(), labID, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lab_id": labID, "reservations": schedule})
}

func (s *HTTPServer) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	query := r.URL.Query()

	unreadOnly := query.Get("unread_only") == "true"
	skip, limit := 0, 0
	var err error
	if raw := query.Get("skip"); raw != "" {
		if skip, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid skip")
			return
		}
	}
	if raw := query.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	notifications, err := s.notifications.List(r.Context(), claims.UserID, unreadOnly, skip, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (s *HTTPServer) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := s.notifications.MarkRead(r.Context(), id, claims.UserID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_read": true})
}

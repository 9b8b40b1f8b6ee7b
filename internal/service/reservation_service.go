package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"labsched/internal/database"
	"labsched/internal/domain"
	"labsched/internal/events"
	"labsched/internal/metrics"
	"labsched/internal/models"

	"github.com/rs/zerolog"
)

// allowedTransitions is the reservation state machine. Terminal statuses
// have no outgoing edges.
var allowedTransitions = map[string][]string{
	models.StatusPending:  {models.StatusApproved, models.StatusDeclined, models.StatusCancelled},
	models.StatusApproved: {models.StatusCancelled},
}

func transitionAllowed(from, to string) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type ReservationService struct {
	repo               domain.Repository
	cache              domain.ScheduleCache
	eventBus           domain.EventPublisher
	notifications      domain.NotificationService
	sheetsWorker       domain.SyncWorker
	maxReservationDays int
	scheduleTTL        time.Duration
	logger             *zerolog.Logger
}

func NewReservationService(
	repo domain.Repository,
	cache domain.ScheduleCache,
	eventBus domain.EventPublisher,
	notifications domain.NotificationService,
	sheetsWorker domain.SyncWorker,
	maxReservationDays int,
	scheduleTTLSec int,
	logger *zerolog.Logger,
) *ReservationService {
	if maxReservationDays <= 0 {
		maxReservationDays = models.DefaultMaxReservationDays
	}
	if scheduleTTLSec <= 0 {
		scheduleTTLSec = models.ScheduleCacheTTL
	}
	return &ReservationService{
		repo:               repo,
		cache:              cache,
		eventBus:           eventBus,
		notifications:      notifications,
		sheetsWorker:       sheetsWorker,
		maxReservationDays: maxReservationDays,
		scheduleTTL:        time.Duration(scheduleTTLSec) * time.Second,
		logger:             logger,
	}
}

// ValidateWindow checks the requested time window before any storage work.
func (s *ReservationService) ValidateWindow(start, end time.Time) error {
	if !start.Before(end) {
		return database.ErrInvalidWindow
	}
	if start.Before(time.Now().UTC()) {
		return database.ErrPastStart
	}
	if start.After(time.Now().UTC().AddDate(0, 0, s.maxReservationDays)) {
		return database.ErrWindowTooFar
	}
	return nil
}

func (s *ReservationService) CreateReservation(ctx context.Context, actorID int64, reservation *models.Reservation) error {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.CanReserve() {
		return ErrForbidden
	}
	// Instructors reserve for themselves; admins may reserve on behalf of anyone
	if !actor.IsAdmin() {
		reservation.InstructorID = actorID
	}
	if reservation.InstructorID == 0 {
		reservation.InstructorID = actorID
	}
	if reservation.InstructorID != actorID {
		owner, err := s.repo.GetUserByID(ctx, reservation.InstructorID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return &ValidationError{Field: "instructor_id", Reason: "unknown user"}
			}
			return err
		}
		if !owner.CanReserve() {
			return &ValidationError{Field: "instructor_id", Reason: "user cannot hold reservations"}
		}
	}

	if reservation.LabID == 0 {
		return &ValidationError{Field: "lab_id", Reason: "is required"}
	}
	if err := s.ValidateWindow(reservation.StartTime, reservation.EndTime); err != nil {
		return err
	}
	if reservation.CourseID != 0 {
		course, err := s.repo.GetCourseByID(ctx, reservation.CourseID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return &ValidationError{Field: "course_id", Reason: "unknown course"}
			}
			return err
		}
		if !course.IsActive {
			return &ValidationError{Field: "course_id", Reason: "course is inactive"}
		}
	}

	reservation.Status = models.StatusPending

	if err := s.repo.CreateReservationWithLock(ctx, reservation); err != nil {
		if errors.Is(err, database.ErrConflict) {
			metrics.IncConflict()
		}
		return err
	}

	metrics.IncTransition(models.StatusPending)
	s.afterMutation(ctx, reservation, events.EventReservationCreated, actorID,
		"Reservation submitted",
		fmt.Sprintf("Your reservation for lab %d on %s is pending approval.",
			reservation.LabID, reservation.StartTime.Format("2006-01-02 15:04")),
		models.NotificationReservationCreated)

	return nil
}

func (s *ReservationService) ApproveReservation(ctx context.Context, reservationID, version, actorID int64) error {
	return s.transition(ctx, reservationID, version, actorID, models.StatusApproved)
}

func (s *ReservationService) DeclineReservation(ctx context.Context, reservationID, version, actorID int64) error {
	return s.transition(ctx, reservationID, version, actorID, models.StatusDeclined)
}

func (s *ReservationService) CancelReservation(ctx context.Context, reservationID, version, actorID int64) error {
	return s.transition(ctx, reservationID, version, actorID, models.StatusCancelled)
}

func (s *ReservationService) transition(ctx context.Context, reservationID, version, actorID int64, target string) error {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsActive {
		return ErrForbidden
	}

	reservation, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	switch target {
	case models.StatusApproved, models.StatusDeclined:
		if !actor.IsAdmin() {
			return ErrForbidden
		}
	case models.StatusCancelled:
		if !actor.IsAdmin() && reservation.InstructorID != actorID {
			return ErrForbidden
		}
	default:
		return &InvalidTransitionError{From: reservation.Status, To: target}
	}

	if !transitionAllowed(reservation.Status, target) {
		return &InvalidTransitionError{From: reservation.Status, To: target}
	}

	// Approval re-validates the slot: another reservation may have been
	// approved since this one was submitted.
	recheck := target == models.StatusApproved
	if err := s.repo.TransitionReservationWithRecheck(ctx, reservationID, version, target, recheck); err != nil {
		if errors.Is(err, database.ErrConflict) {
			metrics.IncConflict()
		}
		return err
	}

	metrics.IncTransition(target)

	updated, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		s.logger.Error().Err(err).Int64("reservation_id", reservationID).Msg("Failed to reload reservation after transition")
		return nil
	}

	eventType, title, message, notificationType := transitionMessage(updated)
	s.afterMutation(ctx, updated, eventType, actorID, title, message, notificationType)

	return nil
}

func transitionMessage(r *models.Reservation) (eventType, title, message, notificationType string) {
	when := r.StartTime.Format("2006-01-02 15:04")
	switch r.Status {
	case models.StatusApproved:
		return events.EventReservationApproved,
			"Reservation approved",
			fmt.Sprintf("Your reservation for lab %d on %s was approved.", r.LabID, when),
			models.NotificationReservationApproved
	case models.StatusDeclined:
		return events.EventReservationDeclined,
			"Reservation declined",
			fmt.Sprintf("Your reservation for lab %d on %s was declined.", r.LabID, when),
			models.NotificationReservationDeclined
	default:
		return events.EventReservationCancelled,
			"Reservation cancelled",
			fmt.Sprintf("Your reservation for lab %d on %s was cancelled.", r.LabID, when),
			models.NotificationReservationCancelled
	}
}

// afterMutation performs the bookkeeping every successful mutation shares:
// one notification to the affected instructor, one event on the bus, cache
// invalidation for the lab and a sheets sync task.
func (s *ReservationService) afterMutation(ctx context.Context, r *models.Reservation, eventType string, actorID int64, title, message, notificationType string) {
	if err := s.notifications.Notify(ctx, r.InstructorID, title, message, notificationType); err != nil {
		s.logger.Error().Err(err).Int64("reservation_id", r.ID).Msg("Failed to create notification")
	}

	payload := events.ReservationEventPayload{
		ReservationID: r.ID,
		InstructorID:  r.InstructorID,
		LabID:         r.LabID,
		CourseID:      r.CourseID,
		Section:       r.Section,
		Status:        r.Status,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		ChangedByID:   actorID,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}

	if s.cache != nil {
		if err := s.cache.InvalidateSchedule(ctx, r.LabID); err != nil {
			s.logger.Warn().Err(err).Int64("lab_id", r.LabID).Msg("Failed to invalidate schedule cache")
		}
	}

	if s.sheetsWorker != nil {
		if err := s.sheetsWorker.EnqueueTask(ctx, "sheets_sync", r, r.Status); err != nil {
			s.logger.Error().Err(err).Int64("reservation_id", r.ID).Msg("Failed to enqueue sheets sync")
		}
	}
}

func (s *ReservationService) CheckAvailability(ctx context.Context, labID int64, start, end time.Time) (*models.ConflictResult, error) {
	if !start.Before(end) {
		return nil, database.ErrInvalidWindow
	}
	return s.repo.CheckConflict(ctx, labID, start, end, 0)
}

func (s *ReservationService) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

func (s *ReservationService) GetInstructorReservations(ctx context.Context, instructorID int64) ([]*models.Reservation, error) {
	return s.repo.GetReservationsByInstructor(ctx, instructorID)
}

// GetLabSchedule returns reservations for a lab in a window, served from the
// schedule cache when possible.
func (s *ReservationService) GetLabSchedule(ctx context.Context, labID int64, start, end time.Time) ([]*models.Reservation, error) {
	if !start.Before(end) {
		return nil, database.ErrInvalidWindow
	}

	day := fmt.Sprintf("%s_%s", start.UTC().Format("20060102T1504"), end.UTC().Format("20060102T1504"))
	if s.cache != nil {
		if raw, ok, err := s.cache.GetSchedule(ctx, labID, day); err == nil && ok {
			var cached []*models.Reservation
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			s.logger.Warn().Int64("lab_id", labID).Msg("Discarding malformed schedule cache entry")
		}
	}

	reservations, err := s.repo.GetReservationsByLab(ctx, labID, start, end)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(reservations); err == nil {
			if err := s.cache.SetSchedule(ctx, labID, day, raw, s.scheduleTTL); err != nil {
				s.logger.Warn().Err(err).Int64("lab_id", labID).Msg("Failed to cache schedule")
			}
		}
	}

	return reservations, nil
}

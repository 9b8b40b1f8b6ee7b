package service

import (
	"context"

	"labsched/internal/domain"
	"labsched/internal/models"

	"github.com/rs/zerolog"
)

// CatalogService manages labs and courses. Reads are open to any
// authenticated user; mutations are admin only.
type CatalogService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewCatalogService(repo domain.Repository, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{repo: repo, logger: logger}
}

func (s *CatalogService) GetActiveLabs(ctx context.Context) ([]*models.Lab, error) {
	return s.repo.GetActiveLabs(ctx)
}

func (s *CatalogService) GetLabByID(ctx context.Context, id int64) (*models.Lab, error) {
	return s.repo.GetLabByID(ctx, id)
}

func (s *CatalogService) GetActiveCourses(ctx context.Context) ([]*models.Course, error) {
	return s.repo.GetActiveCourses(ctx)
}

func (s *CatalogService) CreateLab(ctx context.Context, actorID int64, lab *models.Lab) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if lab.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if lab.Capacity < 0 {
		return &ValidationError{Field: "capacity", Reason: "must not be negative"}
	}
	lab.IsActive = true
	return s.repo.CreateLab(ctx, lab)
}

func (s *CatalogService) DeactivateLab(ctx context.Context, actorID, labID int64) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	// Existing reservations stay in place; only new ones are blocked
	return s.repo.DeactivateLab(ctx, labID)
}

func (s *CatalogService) CreateCourse(ctx context.Context, actorID int64, course *models.Course) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if course.Code == "" {
		return &ValidationError{Field: "code", Reason: "is required"}
	}
	if course.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	course.IsActive = true
	return s.repo.CreateCourse(ctx, course)
}

func (s *CatalogService) DeactivateCourse(ctx context.Context, actorID, courseID int64) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	return s.repo.DeactivateCourse(ctx, courseID)
}

func (s *CatalogService) requireAdmin(ctx context.Context, actorID int64) error {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	TotalLabs       int `json:"total_labs"`
	TotalCourses    int `json:"total_courses"`
	TotalUsers      int `json:"total_users"`
	TotalSessions   int `json:"total_sessions"`
	PendingRequests int `json:"pending_requests"`
}

func (s *CatalogService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	labs, err := s.repo.CountActiveLabs(ctx)
	if err != nil {
		return nil, err
	}
	courses, err := s.repo.GetActiveCourses(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.CountActiveUsers(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := s.repo.CountReservations(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.CountReservationsByStatus(ctx, models.StatusPending)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		TotalLabs:       labs,
		TotalCourses:    len(courses),
		TotalUsers:      users,
		TotalSessions:   sessions,
		PendingRequests: pending,
	}, nil
}

package service

import (
	"context"

	"labsched/internal/domain"
	"labsched/internal/metrics"
	"labsched/internal/models"

	"github.com/rs/zerolog"
)

type NotificationService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewNotificationService(repo domain.Repository, logger *zerolog.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger}
}

func (s *NotificationService) Notify(ctx context.Context, userID int64, title, message, notificationType string) error {
	notification := &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    notificationType,
	}
	if err := s.repo.CreateNotification(ctx, notification); err != nil {
		return err
	}
	metrics.IncNotification(notificationType)
	return nil
}

func (s *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool, skip, limit int) ([]*models.Notification, error) {
	if skip < 0 {
		return nil, &ValidationError{Field: "skip", Reason: "must not be negative"}
	}
	if limit < 0 {
		return nil, &ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	if limit == 0 {
		limit = models.DefaultPageLimit
	}
	if limit > models.MaxPageLimit {
		limit = models.MaxPageLimit
	}
	return s.repo.GetNotifications(ctx, userID, unreadOnly, skip, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID int64) error {
	return s.repo.MarkNotificationRead(ctx, id, userID)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID int64) (int, error) {
	return s.repo.CountUnreadNotifications(ctx, userID)
}

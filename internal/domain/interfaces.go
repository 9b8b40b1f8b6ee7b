package domain

import (
	"context"
	"time"

	"labsched/internal/models"
)

type Repository interface {
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	CreateReservation(ctx context.Context, reservation *models.Reservation) error
	CreateReservationWithLock(ctx context.Context, reservation *models.Reservation) error
	TransitionReservationWithRecheck(ctx context.Context, id, version int64, status string, recheck bool) error
	CheckConflict(ctx context.Context, labID int64, start, end time.Time, excludeID int64) (*models.ConflictResult, error)
	GetReservationsByLab(ctx context.Context, labID int64, start, end time.Time) ([]*models.Reservation, error)
	GetReservationsByInstructor(ctx context.Context, instructorID int64) ([]*models.Reservation, error)
	GetReservationsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Reservation, error)
	CountReservations(ctx context.Context) (int, error)
	CountReservationsByStatus(ctx context.Context, status string) (int, error)

	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpsertUser(ctx context.Context, user *models.User) error
	SetUserActive(ctx context.Context, id int64, active bool) error
	CountActiveUsers(ctx context.Context) (int, error)

	GetLabByID(ctx context.Context, id int64) (*models.Lab, error)
	GetActiveLabs(ctx context.Context) ([]*models.Lab, error)
	CreateLab(ctx context.Context, lab *models.Lab) error
	UpsertLab(ctx context.Context, lab *models.Lab) error
	DeactivateLab(ctx context.Context, id int64) error
	CountActiveLabs(ctx context.Context) (int, error)

	GetCourseByID(ctx context.Context, id int64) (*models.Course, error)
	GetActiveCourses(ctx context.Context) ([]*models.Course, error)
	CreateCourse(ctx context.Context, course *models.Course) error
	UpsertCourse(ctx context.Context, course *models.Course) error
	DeactivateCourse(ctx context.Context, id int64) error

	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetNotifications(ctx context.Context, userID int64, unreadOnly bool, skip, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID int64) error
	CountUnreadNotifications(ctx context.Context, userID int64) (int, error)

	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// ScheduleCache caches lab schedules and tracks request rates. Implementations
// may degrade to an in-memory store when the backing service is down.
type ScheduleCache interface {
	GetSchedule(ctx context.Context, labID int64, day string) ([]byte, bool, error)
	SetSchedule(ctx context.Context, labID int64, day string, payload []byte, ttl time.Duration) error
	InvalidateSchedule(ctx context.Context, labID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SheetsWriter mirrors the reservation schedule into a spreadsheet.
type SheetsWriter interface {
	ReplaceScheduleSheet(ctx context.Context, reservations []*models.Reservation, labs []*models.Lab) error
	AppendReservation(ctx context.Context, reservation *models.Reservation) error
	UpdateReservationStatus(ctx context.Context, reservationID int64, status string) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, reservation *models.Reservation, status string) error
}

type ReservationService interface {
	CreateReservation(ctx context.Context, actorID int64, reservation *models.Reservation) error
	ApproveReservation(ctx context.Context, reservationID, version, actorID int64) error
	DeclineReservation(ctx context.Context, reservationID, version, actorID int64) error
	CancelReservation(ctx context.Context, reservationID, version, actorID int64) error
	CheckAvailability(ctx context.Context, labID int64, start, end time.Time) (*models.ConflictResult, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	GetLabSchedule(ctx context.Context, labID int64, start, end time.Time) ([]*models.Reservation, error)
	GetInstructorReservations(ctx context.Context, instructorID int64) ([]*models.Reservation, error)
}

type NotificationService interface {
	Notify(ctx context.Context, userID int64, title, message, notificationType string) error
	List(ctx context.Context, userID int64, unreadOnly bool, skip, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, userID int64) error
	CountUnread(ctx context.Context, userID int64) (int, error)
}

package service

import (
	"context"
	"os"
	"testing"
	"time"

	"labsched/internal/database"
	"labsched/internal/events"
	"labsched/internal/models"
	"labsched/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db       *database.DB
	bus      *events.EventBus
	notifier *NotificationService
	svc      *ReservationService

	admin      *models.User
	instructor *models.User
	student    *models.User
	lab        *models.Lab
	course     *models.Course
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	f := &fixture{db: db, bus: events.NewEventBus()}

	f.notifier = NewNotificationService(db, &logger)
	f.svc = NewReservationService(db, repository.NewMemoryScheduleCache(), f.bus, f.notifier, nil, 0, 0, &logger)

	mkUser := func(username, role string) *models.User {
		u := &models.User{
			Username:       username,
			Email:          username + "@example.edu",
			HashedPassword: "x",
			Role:           role,
			IsActive:       true,
		}
		require.NoError(t, db.CreateUser(ctx, u))
		return u
	}
	f.admin = mkUser("admin", models.RoleAdmin)
	f.instructor = mkUser("instructor1", models.RoleInstructor)
	f.student = mkUser("student1", models.RoleStudent)

	f.lab = &models.Lab{Name: "Lab A", Capacity: 30, IsActive: true}
	require.NoError(t, db.CreateLab(ctx, f.lab))

	f.course = &models.Course{Code: "CS101", Name: "Intro", IsActive: true}
	require.NoError(t, db.CreateCourse(ctx, f.course))

	return f
}

func (f *fixture) window(offset time.Duration) (time.Time, time.Time) {
	start := time.Now().UTC().Add(24*time.Hour + offset).Truncate(time.Second)
	return start, start.Add(2 * time.Hour)
}

func (f *fixture) newReservation(offset time.Duration) *models.Reservation {
	start, end := f.window(offset)
	return &models.Reservation{
		LabID:     f.lab.ID,
		CourseID:  f.course.ID,
		Section:   "A",
		StartTime: start,
		EndTime:   end,
	}
}

func TestCreateReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var published []*events.Event
	f.bus.Subscribe(events.EventReservationCreated, func(e *events.Event) error {
		published = append(published, e)
		return nil
	})

	res := f.newReservation(0)
	require.NoError(t, f.svc.CreateReservation(ctx, f.instructor.ID, res))

	assert.Equal(t, models.StatusPending, res.Status)
	assert.Equal(t, f.instructor.ID, res.InstructorID)
	assert.NotZero(t, res.ID)
	assert.Len(t, published, 1)

	// Exactly one notification for the instructor
	notifications, err := f.notifier.List(ctx, f.instructor.ID, true, 0, 0)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationReservationCreated, notifications[0].Type)
}

func TestCreateReservation_StudentForbidden(t *testing.T) {
	f := newFixture(t)

	err := f.svc.CreateReservation(context.Background(), f.student.ID, f.newReservation(0))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateReservation_OnBehalf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.newReservation(0)
	res.InstructorID = f.instructor.ID
	require.NoError(t, f.svc.CreateReservation(ctx, f.admin.ID, res))
	assert.Equal(t, f.instructor.ID, res.InstructorID)
}

func TestCreateReservation_OnBehalfInvalidOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		ownerID int64
	}{
		{"student owner", f.student.ID},
		{"unknown owner", 9999},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := f.newReservation(0)
			res.InstructorID = c.ownerID
			err := f.svc.CreateReservation(ctx, f.admin.ID, res)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "instructor_id", vErr.Field)
		})
	}

	// A deactivated instructor cannot hold new reservations either
	require.NoError(t, f.db.SetUserActive(ctx, f.instructor.ID, false))
	res := f.newReservation(0)
	res.InstructorID = f.instructor.ID
	err := f.svc.CreateReservation(ctx, f.admin.ID, res)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "instructor_id", vErr.Field)
}

func TestTransition_InactiveActorForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.newReservation(0)
	require.NoError(t, f.svc.CreateReservation(ctx, f.instructor.ID, res))

	require.NoError(t, f.db.SetUserActive(ctx, f.admin.ID, false))
	err := f.svc.ApproveReservation(ctx, res.ID, res.Version, f.admin.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.db.SetUserActive(ctx, f.instructor.ID, false))
	err = f.svc.CancelReservation(ctx, res.ID, res.Version, f.instructor.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// The reservation is untouched
	stored, err := f.db.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestCreateReservation_Conflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.CreateReservation(ctx, f.instructor.ID, f.newReservation(0)))

	// Same lab, overlapping half of the window
	err := f.svc.CreateReservation(ctx, f.instructor.ID, f.newReservation(time.Hour))
	assert.ErrorIs(t, err, database.ErrConflict)
}

func TestCreateReservation_WindowValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.newReservation(0)
	res.EndTime = res.StartTime
	assert.ErrorIs(t, f.svc.CreateReservation(ctx, f.instructor.ID, res), database.ErrInvalidWindow)

	res = f.newReservation(0)
	res.StartTime = time.Now().UTC().Add(-time.Hour)
	assert.ErrorIs(t, f.svc.CreateReservation(ctx, f.instructor.ID, res), database.ErrPastStart)

	res = f.newReservation(0)
	res.StartTime = time.Now().UTC().AddDate(1, 0, 0)
	res.EndTime = res.StartTime.Add(time.Hour)
	assert.ErrorIs(t, f.svc.CreateReservation(ctx, f.instructor.ID, res), database.ErrWindowTooFar)
}

func TestCreateReservation_UnknownCourse(t *testing.T) {
	f := newFixture(t)

	res := f.newReservation(0)
	res.CourseID = 9999
	err := f.svc.CreateReservation(context.Background(), f.instructor.ID, res)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "course_id", verr.Field)
}

func TestApproveReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.newReservation(0)
	require.NoError(t, f.svc.CreateReservation(ctx, f.instructor.ID, res))

	var published []*events.Event
	f.bus.Subscribe(events.EventReservationApproved, func(e *events.Event) error {
		published = append(published, e)
		return nil
	})

	require.NoError(t, f.svc.ApproveReservation(ctx, res.ID, res.Version, f.admin.ID))

	updated, err := f.svc.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)
	assert.Equal(t, res.Version+1, updated.Version)
	assert.Len(t, published, 1)
}

func TestApproveReservation_NonAdminForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.newReservation(0)
	require.NoError(t, f.svc.CreateReservation(ctx, f.instructor.ID, res))

	err := f.svc.ApproveReservation(ctx, res.ID, res.Version, f.instructor.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeclineReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.newReservation(0)
	require.NoError(t, f.svc.CreateReservation(ctx, f.instructor.ID, res))

	require.NoError(t, f.svc.DeclineReservation(ctx, res.ID, res.Version, f.admin.ID))

	updated, err := f.svc.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeclined, updated.Status)

	// A declined reservation frees the slot
	assert.NoError(t, f.svc.CreateReservation(ctx, f.instructor.ID, f.newReservation(0)))
}

func TestCancelReservation_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.newReservation(0)
	require.NoError(t, f.svc.CreateReservation(ctx, f.instructor.ID, res))

	// A different non-admin user cannot cancel someone else's reservation
	err := f.svc.CancelReservation(ctx, res.ID, res.Version, f.student.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// The owner can
	require.NoError(t, f.svc.CancelReservation(ctx, res.ID, res.Version, f.instructor.ID))

	updated, err := f.svc.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, updated.Status)
}

func TestCancelApprovedReservation_AdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.newReservation(0)
	require.NoError(t, f.svc.CreateReservation(ctx, f.instructor.ID, res))
	require.NoError(t, f.svc.ApproveReservation(ctx, res.ID, res.Version, f.admin.ID))

	updated, err := f.svc.GetReservation(ctx, res.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelReservation(ctx, updated.ID, updated.Version, f.admin.ID))

	final, err := f.svc.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, final.Status)
}

func TestInvalidTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.newReservation(0)
	require.NoError(t, f.svc.CreateReservation(ctx, f.instructor.ID, res))
	require.NoError(t, f.svc.CancelReservation(ctx, res.ID, res.Version, f.instructor.ID))

	cancelled, err := f.svc.GetReservation(ctx, res.ID)
	require.NoError(t, err)

	// Terminal states reject every further transition
	var terr *InvalidTransitionError
	err = f.svc.ApproveReservation(ctx, cancelled.ID, cancelled.Version, f.admin.ID)
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, models.StatusCancelled, terr.From)
	assert.Equal(t, models.StatusApproved, terr.To)

	err = f.svc.CancelReservation(ctx, cancelled.ID, cancelled.Version, f.admin.ID)
	assert.ErrorAs(t, err, &terr)
}

func TestApproveReservation_RecheckConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Two pending reservations for the same slot cannot both exist through
	// the service, so insert the rival directly.
	res := f.newReservation(0)
	require.NoError(t, f.svc.CreateReservation(ctx, f.instructor.ID, res))

	start, end := f.window(time.Hour)
	rival := &models.Reservation{
		InstructorID: f.instructor.ID,
		LabID:        f.lab.ID,
		StartTime:    start,
		EndTime:      end,
		Status:       models.StatusApproved,
	}
	require.NoError(t, f.db.CreateReservation(ctx, rival))

	err := f.svc.ApproveReservation(ctx, res.ID, res.Version, f.admin.ID)
	assert.ErrorIs(t, err, database.ErrConflict)
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.newReservation(0)
	require.NoError(t, f.svc.CreateReservation(ctx, f.instructor.ID, res))

	result, err := f.svc.CheckAvailability(ctx, f.lab.ID, res.StartTime, res.EndTime)
	require.NoError(t, err)
	assert.True(t, result.LabAvailable)
	assert.True(t, result.HasConflict())
	assert.Contains(t, result.ConflictingIDs, res.ID)

	// Back-to-back window is free
	result, err = f.svc.CheckAvailability(ctx, f.lab.ID, res.EndTime, res.EndTime.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, result.HasConflict())
}

func TestGetLabSchedule_Caching(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.newReservation(0)
	require.NoError(t, f.svc.CreateReservation(ctx, f.instructor.ID, res))

	from := res.StartTime.Add(-time.Hour)
	to := res.EndTime.Add(time.Hour)

	first, err := f.svc.GetLabSchedule(ctx, f.lab.ID, from, to)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Served from cache: bypassing the service must not change the result
	rival := f.newReservation(30 * time.Minute)
	rival.InstructorID = f.instructor.ID
	rival.Status = models.StatusPending
	require.NoError(t, f.db.CreateReservation(ctx, rival))

	cached, err := f.svc.GetLabSchedule(ctx, f.lab.ID, from, to)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	// A mutation through the service invalidates the cache
	require.NoError(t, f.svc.CancelReservation(ctx, res.ID, res.Version, f.instructor.ID))

	fresh, err := f.svc.GetLabSchedule(ctx, f.lab.ID, from, to)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

package reports

import (
	"context"
	"os"
	"testing"
	"time"

	"labsched/internal/database"
	"labsched/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupReportDB(t *testing.T) (*database.DB, *Service) {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, NewService(db, &logger)
}

func TestBuildUsageReport(t *testing.T) {
	db, svc := setupReportDB(t)
	ctx := context.Background()

	instructor := &models.User{
		Username: "instructor1", Email: "i1@example.edu", HashedPassword: "x",
		FullName: "Ada Lovelace", Role: models.RoleInstructor, IsActive: true,
	}
	require.NoError(t, db.CreateUser(ctx, instructor))

	labA := &models.Lab{Name: "Lab A", Capacity: 30, IsActive: true}
	require.NoError(t, db.CreateLab(ctx, labA))
	labB := &models.Lab{Name: "Lab B", Capacity: 20, IsActive: true}
	require.NoError(t, db.CreateLab(ctx, labB))

	base := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	seed := func(labID int64, offset time.Duration, hours int, status string) {
		r := &models.Reservation{
			InstructorID: instructor.ID,
			LabID:        labID,
			StartTime:    base.Add(offset),
			EndTime:      base.Add(offset + time.Duration(hours)*time.Hour),
			Status:       status,
		}
		require.NoError(t, db.CreateReservation(ctx, r))
	}

	seed(labA.ID, 0, 2, models.StatusApproved)
	seed(labA.ID, 3*time.Hour, 1, models.StatusPending)
	seed(labA.ID, 5*time.Hour, 4, models.StatusCancelled)
	seed(labB.ID, 0, 3, models.StatusApproved)

	report, err := svc.BuildUsageReport(ctx, base.Add(-time.Hour), base.Add(24*time.Hour))
	require.NoError(t, err)

	require.Len(t, report.Labs, 2)
	assert.Equal(t, "Lab A", report.Labs[0].LabName)
	assert.Equal(t, 3, report.Labs[0].Reservations)
	assert.InDelta(t, 2.0, report.Labs[0].ApprovedHours, 0.001)
	assert.Equal(t, 1, report.Labs[0].PendingCount)
	assert.InDelta(t, 3.0, report.Labs[1].ApprovedHours, 0.001)

	openHours := 8.0 * 25.0 / 24.0 // 25h window
	assert.InDelta(t, 2.0/openHours, report.Labs[0].Utilization, 0.001)
	assert.Equal(t, "2026-09-07", report.Labs[0].BusiestDay)

	// Cancelled reservations do not count towards instructor hours
	require.Len(t, report.Instructors, 1)
	assert.Equal(t, "Ada Lovelace", report.Instructors[0].FullName)
	assert.Equal(t, 3, report.Instructors[0].Reservations)
	assert.InDelta(t, 6.0, report.Instructors[0].BookedHours, 0.001)
}

func TestBuildUsageReport_EmptyWindow(t *testing.T) {
	_, svc := setupReportDB(t)

	report, err := svc.BuildUsageReport(context.Background(),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, report.Labs)
	assert.Empty(t, report.Instructors)
}

func TestExportUsageReport(t *testing.T) {
	db, svc := setupReportDB(t)
	ctx := context.Background()

	instructor := &models.User{
		Username: "instructor1", Email: "i1@example.edu", HashedPassword: "x",
		Role: models.RoleInstructor, IsActive: true,
	}
	require.NoError(t, db.CreateUser(ctx, instructor))

	lab := &models.Lab{Name: "Lab A", Capacity: 30, IsActive: true}
	require.NoError(t, db.CreateLab(ctx, lab))

	base := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	r := &models.Reservation{
		InstructorID: instructor.ID,
		LabID:        lab.ID,
		StartTime:    base,
		EndTime:      base.Add(2 * time.Hour),
		Status:       models.StatusApproved,
	}
	require.NoError(t, db.CreateReservation(ctx, r))

	exportDir := t.TempDir()
	path, err := svc.ExportUsageReport(ctx, exportDir, base.Add(-time.Hour), base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.FileExists(t, path)
}

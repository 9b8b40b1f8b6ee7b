package database

import (
	"context"
	"testing"

	"labsched/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabsCRUD(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	lab := &models.Lab{
		Name:        "Lab B",
		Description: "Networking lab",
		Capacity:    24,
		Equipment:   "routers, switches",
		IsActive:    true,
	}
	require.NoError(t, db.CreateLab(ctx, lab))
	assert.NotZero(t, lab.ID)

	dup := &models.Lab{Name: "Lab B", Capacity: 10, IsActive: true}
	assert.ErrorIs(t, db.CreateLab(ctx, dup), ErrDuplicate)

	stored, err := db.GetLabByID(ctx, lab.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lab B", stored.Name)
	assert.Equal(t, 24, stored.Capacity)

	_, err = db.GetLabByID(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.DeactivateLab(ctx, lab.ID))
	active, err := db.GetActiveLabs(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	count, err := db.CountActiveLabs(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpsertLab(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	lab := &models.Lab{Name: "Lab A", Capacity: 30, IsActive: true}
	require.NoError(t, db.UpsertLab(ctx, lab))

	updated := &models.Lab{Name: "Lab A", Capacity: 40, Equipment: "workstations", IsActive: true}
	require.NoError(t, db.UpsertLab(ctx, updated))

	labs, err := db.GetActiveLabs(ctx)
	require.NoError(t, err)
	require.Len(t, labs, 1)
	assert.Equal(t, 40, labs[0].Capacity)
}

func TestCoursesCRUD(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	course := &models.Course{
		Code:        "CS101",
		Name:        "Introduction to Programming",
		Description: "Fundamentals",
		Credits:     4,
		IsActive:    true,
	}
	require.NoError(t, db.CreateCourse(ctx, course))
	assert.NotZero(t, course.ID)

	dup := &models.Course{Code: "CS101", Name: "Other", IsActive: true}
	assert.ErrorIs(t, db.CreateCourse(ctx, dup), ErrDuplicate)

	stored, err := db.GetCourseByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Credits)

	// Credits default to 3 when unset
	other := &models.Course{Code: "IT202", Name: "Web Development", IsActive: true}
	require.NoError(t, db.CreateCourse(ctx, other))
	stored, err = db.GetCourseByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Credits)

	require.NoError(t, db.DeactivateCourse(ctx, course.ID))
	active, err := db.GetActiveCourses(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "IT202", active[0].Code)
}

func TestUpsertCourse(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	course := &models.Course{Code: "CS305", Name: "Databases", Credits: 3, IsActive: true}
	require.NoError(t, db.UpsertCourse(ctx, course))

	renamed := &models.Course{Code: "CS305", Name: "Database Systems", Credits: 4, IsActive: true}
	require.NoError(t, db.UpsertCourse(ctx, renamed))

	courses, err := db.GetActiveCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Database Systems", courses[0].Name)
}

package database

import (
	"context"
	"fmt"
	"testing"

	"labsched/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationsPagination(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	user := seedInstructor(t, db, "instructor1")

	for i := 0; i < 5; i++ {
		n := &models.Notification{
			UserID:  user.ID,
			Title:   fmt.Sprintf("Notice %d", i),
			Message: "message",
			Type:    models.NotificationReservationCreated,
		}
		require.NoError(t, db.CreateNotification(ctx, n))
		assert.NotZero(t, n.ID)
		assert.False(t, n.IsRead)
	}

	// Newest first
	page, err := db.GetNotifications(ctx, user.ID, false, 0, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "Notice 4", page[0].Title)

	rest, err := db.GetNotifications(ctx, user.ID, false, 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestMarkNotificationRead(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	owner := seedInstructor(t, db, "owner")
	stranger := seedInstructor(t, db, "stranger")

	n := &models.Notification{
		UserID:  owner.ID,
		Title:   "Approved",
		Message: "your reservation was approved",
		Type:    models.NotificationReservationApproved,
	}
	require.NoError(t, db.CreateNotification(ctx, n))

	// Another user cannot touch it, and must not learn it exists
	err := db.MarkNotificationRead(ctx, n.ID, stranger.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.MarkNotificationRead(ctx, n.ID, owner.ID))

	unread, err := db.GetNotifications(ctx, owner.ID, true, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, unread)

	count, err := db.CountUnreadNotifications(ctx, owner.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

package database

import (
	"context"
	"testing"
	"time"

	"labsched/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueueLifecycle(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	task := &models.SyncTask{
		TaskType:      "sheets_sync",
		ReservationID: 1,
		Payload:       `{"status":"approved"}`,
		Status:        "pending",
	}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.NotZero(t, task.ID)

	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "sheets_sync", pending[0].TaskType)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, "completed", "", nil))

	pending, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSyncQueueRetryScheduling(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	task := &models.SyncTask{
		TaskType:      "sheets_sync",
		ReservationID: 2,
		Status:        "pending",
	}
	require.NoError(t, db.CreateSyncTask(ctx, task))

	// Push the retry into the future: the task must not be picked up
	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, "retrying", "rpc timeout", &future))

	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, "retrying", "rpc timeout", &past))

	pending, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].RetryCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "rpc timeout", *pending[0].LastError)
}

func TestGetFailedSyncTasks(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	task := &models.SyncTask{TaskType: "sheets_sync", ReservationID: 3, Status: "pending"}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, "failed", "gave up", nil))

	failed, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "failed", failed[0].Status)
}

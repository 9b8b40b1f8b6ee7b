package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "db_test_dir")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	err := db.PingContext(context.Background())
	assert.NoError(t, err)
}

func TestTimeRoundTrip(t *testing.T) {
	in := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
	out, err := parseStoredTime(formatTime(in))
	require.NoError(t, err)
	assert.True(t, in.Equal(out))

	// Non-UTC input is normalized to UTC on write
	local := in.In(time.FixedZone("UTC+3", 3*3600))
	out, err = parseStoredTime(formatTime(local))
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetSchedule(ctx context.Context, labID int64, day string) ([]byte, bool, error) {
	args := m.Called(ctx, labID, day)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *mockCache) SetSchedule(ctx context.Context, labID int64, day string, payload []byte, ttl time.Duration) error {
	args := m.Called(ctx, labID, day, payload, ttl)
	return args.Error(0)
}

func (m *mockCache) InvalidateSchedule(ctx context.Context, labID int64) error {
	args := m.Called(ctx, labID)
	return args.Error(0)
}

func (m *mockCache) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, userID, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverScheduleCache_PrimaryHealthy(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.Nop()

	cache := NewFailoverScheduleCache(primary, fallback, &logger)
	ctx := context.Background()

	primary.On("GetSchedule", ctx, int64(1), "2026-09-01").Return([]byte("data"), true, nil)

	got, ok, err := cache.GetSchedule(ctx, 1, "2026-09-01")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("data"), got)

	primary.AssertExpectations(t)
	fallback.AssertNotCalled(t, "GetSchedule", mock.Anything, mock.Anything, mock.Anything)
}

func TestFailoverScheduleCache_FallsBack(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.Nop()

	cache := NewFailoverScheduleCache(primary, fallback, &logger)
	ctx := context.Background()

	boom := errors.New("connection refused")
	primary.On("GetSchedule", ctx, int64(1), "2026-09-01").Return(nil, false, boom).Once()
	fallback.On("GetSchedule", ctx, int64(1), "2026-09-01").Return(nil, false, nil)

	_, ok, err := cache.GetSchedule(ctx, 1, "2026-09-01")
	require.NoError(t, err)
	assert.False(t, ok)

	// Primary is marked down: the next call goes straight to the fallback
	_, _, err = cache.GetSchedule(ctx, 1, "2026-09-01")
	require.NoError(t, err)

	primary.AssertNumberOfCalls(t, "GetSchedule", 1)
	fallback.AssertNumberOfCalls(t, "GetSchedule", 2)
}

func TestFailoverScheduleCache_SetFailsOver(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.Nop()

	cache := NewFailoverScheduleCache(primary, fallback, &logger)
	ctx := context.Background()

	boom := errors.New("connection refused")
	primary.On("SetSchedule", ctx, int64(1), "2026-09-01", []byte("x"), time.Hour).Return(boom).Once()
	fallback.On("SetSchedule", ctx, int64(1), "2026-09-01", []byte("x"), time.Hour).Return(nil)

	err := cache.SetSchedule(ctx, 1, "2026-09-01", []byte("x"), time.Hour)
	require.NoError(t, err)

	fallback.AssertExpectations(t)
}

func TestFailoverScheduleCache_RateLimitFailsOver(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.Nop()

	cache := NewFailoverScheduleCache(primary, fallback, &logger)
	ctx := context.Background()

	boom := errors.New("connection refused")
	primary.On("CheckRateLimit", ctx, int64(7), 10, time.Minute).Return(false, boom).Once()
	fallback.On("CheckRateLimit", ctx, int64(7), 10, time.Minute).Return(true, nil)

	allowed, err := cache.CheckRateLimit(ctx, 7, 10, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestFailoverScheduleCache_InvalidateFailsOver(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.Nop()

	cache := NewFailoverScheduleCache(primary, fallback, &logger)
	ctx := context.Background()

	boom := errors.New("connection refused")
	primary.On("InvalidateSchedule", ctx, int64(1)).Return(boom).Once()
	fallback.On("InvalidateSchedule", ctx, int64(1)).Return(nil)

	require.NoError(t, cache.InvalidateSchedule(ctx, 1))
	fallback.AssertExpectations(t)
}

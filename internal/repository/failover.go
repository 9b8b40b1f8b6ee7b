package repository

import (
	"context"
	"sync/atomic"
	"time"

	"labsched/internal/domain"
	"labsched/internal/metrics"

	"github.com/rs/zerolog"
)

type FailoverScheduleCache struct {
	primary   domain.ScheduleCache
	fallback  domain.ScheduleCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverScheduleCache(primary, fallback domain.ScheduleCache, logger *zerolog.Logger) *FailoverScheduleCache {
	return &FailoverScheduleCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverScheduleCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary schedule cache failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverScheduleCache) GetSchedule(ctx context.Context, labID int64, day string) ([]byte, bool, error) {
	if !r.isDown.Load() {
		payload, ok, err := r.primary.GetSchedule(ctx, labID, day)
		if err == nil {
			return payload, ok, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		payload, ok, err := r.primary.GetSchedule(ctx, labID, day)
		if err == nil {
			r.isDown.Store(false)
			return payload, ok, nil
		}
		r.lastCheck = time.Now()
	}

	metrics.IncCacheFallback()
	return r.fallback.GetSchedule(ctx, labID, day)
}

func (r *FailoverScheduleCache) SetSchedule(ctx context.Context, labID int64, day string, payload []byte, ttl time.Duration) error {
	if !r.isDown.Load() {
		err := r.primary.SetSchedule(ctx, labID, day, payload, ttl)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	metrics.IncCacheFallback()
	return r.fallback.SetSchedule(ctx, labID, day, payload, ttl)
}

func (r *FailoverScheduleCache) InvalidateSchedule(ctx context.Context, labID int64) error {
	if !r.isDown.Load() {
		err := r.primary.InvalidateSchedule(ctx, labID)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	metrics.IncCacheFallback()
	return r.fallback.InvalidateSchedule(ctx, labID)
}

func (r *FailoverScheduleCache) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}

	metrics.IncCacheFallback()
	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}

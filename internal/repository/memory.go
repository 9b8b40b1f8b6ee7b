package repository

import (
	"context"
	"strings"
	"sync"
	"time"
)

type MemoryScheduleCache struct {
	schedules  sync.Map
	rateLimits sync.Map
}

type scheduleEntry struct {
	payload   []byte
	expiresAt time.Time
}

func NewMemoryScheduleCache() *MemoryScheduleCache {
	return &MemoryScheduleCache{}
}

func (r *MemoryScheduleCache) GetSchedule(ctx context.Context, labID int64, day string) ([]byte, bool, error) {
	val, ok := r.schedules.Load(scheduleKey(labID, day))
	if !ok {
		return nil, false, nil
	}
	entry := val.(*scheduleEntry)
	if time.Now().After(entry.expiresAt) {
		r.schedules.Delete(scheduleKey(labID, day))
		return nil, false, nil
	}
	return entry.payload, true, nil
}

func (r *MemoryScheduleCache) SetSchedule(ctx context.Context, labID int64, day string, payload []byte, ttl time.Duration) error {
	r.schedules.Store(scheduleKey(labID, day), &scheduleEntry{
		payload:   payload,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

func (r *MemoryScheduleCache) InvalidateSchedule(ctx context.Context, labID int64) error {
	prefix := scheduleKey(labID, "")
	r.schedules.Range(func(key, _ any) bool {
		if strings.HasPrefix(key.(string), prefix) {
			r.schedules.Delete(key)
		}
		return true
	})
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryScheduleCache) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(userID)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(userID, entry)
	return entry.count <= limit, nil
}

package repository

import (
	"context"
	"sync"
	"time"

	"todone/internal/models"
)

type MemoryPresenceRepository struct {
	presences  sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

func NewMemoryPresenceRepository(ttl time.Duration) *MemoryPresenceRepository {
	if ttl <= 0 {
		ttl = models.DefaultRedisTTL
	}
	return &MemoryPresenceRepository{
		ttl: ttl,
	}
}

func presenceKey(projectID, userID string) string {
	return projectID + "/" + userID
}

func (r *MemoryPresenceRepository) SetPresence(ctx context.Context, presence *models.Presence) error {
	r.presences.Store(presenceKey(presence.ProjectID, presence.UserID), presence)
	return nil
}

func (r *MemoryPresenceRepository) GetPresence(ctx context.Context, projectID string) ([]models.Presence, error) {
	cutoff := time.Now().Add(-r.ttl)
	var out []models.Presence
	r.presences.Range(func(key, val any) bool {
		p := val.(*models.Presence)
		if p.ProjectID != projectID {
			return true
		}
		if p.SeenAt.Before(cutoff) {
			r.presences.Delete(key)
			return true
		}
		out = append(out, *p)
		return true
	})
	return out, nil
}

func (r *MemoryPresenceRepository) ClearPresence(ctx context.Context, projectID, userID string) error {
	r.presences.Delete(presenceKey(projectID, userID))
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryPresenceRepository) CheckRateLimit(ctx context.Context, userID string, limit int, window time.Duration) (bool, error) {
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

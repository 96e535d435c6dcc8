package repository

import (
	"context"
	"sync/atomic"
	"time"

	"todone/internal/domain"
	"todone/internal/models"

	"github.com/rs/zerolog"
)

type FailoverPresenceRepository struct {
	primary   domain.PresenceRepository
	fallback  domain.PresenceRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverPresenceRepository(primary, fallback domain.PresenceRepository, logger *zerolog.Logger) *FailoverPresenceRepository {
	return &FailoverPresenceRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverPresenceRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary presence repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverPresenceRepository) SetPresence(ctx context.Context, presence *models.Presence) error {
	if !r.isDown.Load() {
		err := r.primary.SetPresence(ctx, presence)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetPresence(ctx, presence)
}

func (r *FailoverPresenceRepository) GetPresence(ctx context.Context, projectID string) ([]models.Presence, error) {
	if !r.isDown.Load() {
		presences, err := r.primary.GetPresence(ctx, projectID)
		if err == nil {
			return presences, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		presences, err := r.primary.GetPresence(ctx, projectID)
		if err == nil {
			r.isDown.Store(false)
			return presences, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetPresence(ctx, projectID)
}

func (r *FailoverPresenceRepository) ClearPresence(ctx context.Context, projectID, userID string) error {
	if !r.isDown.Load() {
		err := r.primary.ClearPresence(ctx, projectID, userID)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.ClearPresence(ctx, projectID, userID)
}

func (r *FailoverPresenceRepository) CheckRateLimit(ctx context.Context, userID string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}

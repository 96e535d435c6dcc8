package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"todone/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenRepo fails every call, standing in for an unreachable redis.
type brokenRepo struct{}

func (brokenRepo) SetPresence(ctx context.Context, presence *models.Presence) error {
	return errors.New("connection refused")
}

func (brokenRepo) GetPresence(ctx context.Context, projectID string) ([]models.Presence, error) {
	return nil, errors.New("connection refused")
}

func (brokenRepo) ClearPresence(ctx context.Context, projectID, userID string) error {
	return errors.New("connection refused")
}

func (brokenRepo) CheckRateLimit(ctx context.Context, userID string, limit int, window time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestFailoverPresenceRepository_FallsBack(t *testing.T) {
	fallback := NewMemoryPresenceRepository(time.Hour)
	logger := zerolog.Nop()
	repo := NewFailoverPresenceRepository(brokenRepo{}, fallback, &logger)
	ctx := context.Background()

	presence := &models.Presence{UserID: "u1", ProjectID: "p1", SeenAt: time.Now()}
	require.NoError(t, repo.SetPresence(ctx, presence))

	// The write landed in the fallback despite the broken primary.
	got, err := repo.GetPresence(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].UserID)

	assert.True(t, repo.isDown.Load())
}

func TestFailoverPresenceRepository_HealthyPrimary(t *testing.T) {
	primary := NewMemoryPresenceRepository(time.Hour)
	fallback := NewMemoryPresenceRepository(time.Hour)
	logger := zerolog.Nop()
	repo := NewFailoverPresenceRepository(primary, fallback, &logger)
	ctx := context.Background()

	presence := &models.Presence{UserID: "u1", ProjectID: "p1", SeenAt: time.Now()}
	require.NoError(t, repo.SetPresence(ctx, presence))

	got, err := primary.GetPresence(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	fromFallback, err := fallback.GetPresence(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, fromFallback)

	assert.False(t, repo.isDown.Load())
}

func TestFailoverPresenceRepository_RateLimitFallsBack(t *testing.T) {
	fallback := NewMemoryPresenceRepository(time.Hour)
	logger := zerolog.Nop()
	repo := NewFailoverPresenceRepository(brokenRepo{}, fallback, &logger)
	ctx := context.Background()

	allowed, err := repo.CheckRateLimit(ctx, "u1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, "u1", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

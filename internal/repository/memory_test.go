package repository

import (
	"context"
	"testing"
	"time"

	"todone/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPresenceRepository(t *testing.T) {
	repo := NewMemoryPresenceRepository(time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.SetPresence(ctx, &models.Presence{UserID: "u1", ProjectID: "p1", SeenAt: time.Now()}))
	require.NoError(t, repo.SetPresence(ctx, &models.Presence{UserID: "u2", ProjectID: "p1", SeenAt: time.Now()}))
	require.NoError(t, repo.SetPresence(ctx, &models.Presence{UserID: "u3", ProjectID: "p2", SeenAt: time.Now()}))

	got, err := repo.GetPresence(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, repo.ClearPresence(ctx, "p1", "u1"))
	got, err = repo.GetPresence(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "u2", got[0].UserID)
}

func TestMemoryPresenceRepository_StaleEviction(t *testing.T) {
	repo := NewMemoryPresenceRepository(time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.SetPresence(ctx, &models.Presence{
		UserID: "u1", ProjectID: "p1", SeenAt: time.Now().Add(-time.Hour),
	}))

	got, err := repo.GetPresence(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryPresenceRepository_RateLimit(t *testing.T) {
	repo := NewMemoryPresenceRepository(time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := repo.CheckRateLimit(ctx, "u1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := repo.CheckRateLimit(ctx, "u1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Other users have their own window.
	allowed, err = repo.CheckRateLimit(ctx, "u2", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

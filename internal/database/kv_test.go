package database

import (
	"context"
	"testing"
	"time"

	"todone/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKV_Roundtrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.SetKV(ctx, "theme", "dark"))
	require.NoError(t, db.SetKV(ctx, "theme", "light"))

	val, err := db.GetKV(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, "light", val)

	missing, err := db.GetKV(ctx, "absent")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestOfflineSnapshot_Roundtrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	synced := time.Now().Truncate(time.Second)
	snapshot := &models.OfflineSnapshot{
		Settings:   map[string]string{"view": "board"},
		LastSynced: &synced,
	}
	require.NoError(t, db.SaveOfflineSnapshot(ctx, snapshot))

	got, err := db.LoadOfflineSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "board", got.Settings["view"])
	require.NotNil(t, got.LastSynced)
	assert.WithinDuration(t, synced, *got.LastSynced, time.Second)
}

func TestLoadOfflineSnapshot_Empty(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	got, err := db.LoadOfflineSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.LastSynced)
}

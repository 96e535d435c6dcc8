package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"todone/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(os.Stdout)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	return db
}

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

func TestClearOfflineData(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.UpsertTask(ctx, &models.Task{ID: "t1", Title: "Buy milk"}))
	require.NoError(t, db.UpsertProject(ctx, &models.Project{ID: "p1", Name: "Inbox"}))
	require.NoError(t, db.EnqueueQueueItem(ctx, &models.QueueItem{
		Op: models.OpCreate, Collection: models.CollectionTasks, EntityID: "t1",
	}))
	require.NoError(t, db.SetKV(ctx, models.OfflineSnapshotKey, `{"settings":{}}`))

	require.NoError(t, db.ClearOfflineData(ctx))

	tasks, err := db.GetTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	projects, err := db.GetProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)

	count, err := db.CountPendingQueueItems(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	raw, err := db.GetKV(ctx, models.OfflineSnapshotKey)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

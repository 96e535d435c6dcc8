package database

import (
	"context"
	"testing"
	"time"

	"todone/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertTask_Roundtrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	due := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	task := &models.Task{
		ID:          "t1",
		ProjectID:   "p1",
		Title:       "Buy milk",
		Description: "2%",
		Priority:    models.PriorityHigh,
		Labels:      []string{"errand", "home"},
		Due:         &due,
	}
	require.NoError(t, db.UpsertTask(ctx, task))

	got, err := db.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Buy milk", got.Title)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, []string{"errand", "home"}, got.Labels)
	require.NotNil(t, got.Due)
	assert.WithinDuration(t, due, *got.Due, time.Second)

	// Upsert with the same id replaces fields.
	task.Title = "Buy oat milk"
	require.NoError(t, db.UpsertTask(ctx, task))

	got, err = db.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Buy oat milk", got.Title)

	tasks, err := db.GetTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestGetTask_Absent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	got, err := db.GetTask(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertTasks_Bulk(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	tasks := []models.Task{
		{ID: "t1", ProjectID: "p1", Title: "one"},
		{ID: "t2", ProjectID: "p1", Title: "two"},
		{ID: "t3", ProjectID: "p2", Title: "three"},
	}
	require.NoError(t, db.UpsertTasks(ctx, tasks))

	byProject, err := db.GetTasksByProject(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, byProject, 2)

	all, err := db.GetTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetTasks_EmptyStore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	tasks, err := db.GetTasks(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestGetDueTasks(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	yesterday := time.Now().Add(-24 * time.Hour)
	nextWeek := time.Now().Add(7 * 24 * time.Hour)
	doneAt := time.Now()

	require.NoError(t, db.UpsertTask(ctx, &models.Task{ID: "overdue", Title: "overdue", Due: &yesterday}))
	require.NoError(t, db.UpsertTask(ctx, &models.Task{ID: "later", Title: "later", Due: &nextWeek}))
	require.NoError(t, db.UpsertTask(ctx, &models.Task{ID: "done", Title: "done", Due: &yesterday, Completed: true, CompletedAt: &doneAt}))
	require.NoError(t, db.UpsertTask(ctx, &models.Task{ID: "nodue", Title: "no due"}))

	due, err := db.GetDueTasks(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "overdue", due[0].ID)
}

func TestDeleteTask(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.UpsertTask(ctx, &models.Task{ID: "t1", Title: "x"}))
	require.NoError(t, db.DeleteTask(ctx, "t1"))

	got, err := db.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent id is not an error.
	assert.NoError(t, db.DeleteTask(ctx, "t1"))
}

func TestReplaceTaskID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.UpsertTask(ctx, &models.Task{ID: "local-1", Title: "Buy milk"}))
	require.NoError(t, db.ReplaceTaskID(ctx, "local-1", "srv-42"))

	old, err := db.GetTask(ctx, "local-1")
	require.NoError(t, err)
	assert.Nil(t, old)

	got, err := db.GetTask(ctx, "srv-42")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Buy milk", got.Title)
}

func TestReplaceEntityID_Dispatch(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.UpsertLabel(ctx, &models.Label{ID: "local-l", Name: "errand"}))
	require.NoError(t, db.ReplaceEntityID(ctx, models.CollectionLabels, "local-l", "srv-l"))

	labels, err := db.GetLabels(ctx)
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, "srv-l", labels[0].ID)

	err = db.ReplaceEntityID(ctx, "bogus", "a", "b")
	assert.Error(t, err)
}

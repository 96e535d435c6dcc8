package export

import (
	"context"
	"os"
	"testing"
	"time"

	"todone/internal/database"
	"todone/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportTasks(t *testing.T) {
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.UpsertProject(ctx, &models.Project{ID: "p1", Name: "Groceries"}))
	require.NoError(t, db.UpsertTask(ctx, &models.Task{ID: "t1", ProjectID: "p1", Title: "Buy milk", Priority: models.PriorityUrgent}))
	require.NoError(t, db.UpsertTask(ctx, &models.Task{ID: "t2", ProjectID: "p1", Title: "Buy bread"}))

	dir := t.TempDir()
	exporter := NewExcelExporter(db, dir, &logger)

	filePath, err := exporter.ExportTasks(ctx)
	require.NoError(t, err)
	assert.FileExists(t, filePath)

	f, err := excelize.OpenFile(filePath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Groceries")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 tasks
	assert.Equal(t, "Buy milk", rows[1][0])
}

func TestFilterByExportRange(t *testing.T) {
	now := time.Now()
	upcoming := now.AddDate(0, 0, 7)
	stale := now.AddDate(0, -models.DefaultExportRangeMonthsBefore, -7)
	distant := now.AddDate(0, models.DefaultExportRangeMonthsAfter, 7)

	tasks := []models.Task{
		{ID: "t1", Title: "undated"},
		{ID: "t2", Title: "upcoming", Due: &upcoming},
		{ID: "t3", Title: "stale", Due: &stale},
		{ID: "t4", Title: "distant", Due: &distant},
	}

	got := filterByExportRange(tasks, now)
	require.Len(t, got, 2)
	assert.Equal(t, "undated", got[0].Title)
	assert.Equal(t, "upcoming", got[1].Title)
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "Work-Home", sanitizeSheetName("Work/Home"))
	assert.Equal(t, "Проект", sanitizeSheetName(""))

	long := sanitizeSheetName("a very long project name that exceeds the excel limit")
	assert.LessOrEqual(t, len([]rune(long)), 31)
}

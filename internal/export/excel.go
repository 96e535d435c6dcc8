// Package export writes local data snapshots to Excel workbooks. Everything
// is read from the local store, so exports work offline too.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"todone/internal/database"
	"todone/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

type ExcelExporter struct {
	db     *database.DB
	path   string
	logger *zerolog.Logger
}

func NewExcelExporter(db *database.DB, path string, logger *zerolog.Logger) *ExcelExporter {
	return &ExcelExporter{
		db:     db,
		path:   path,
		logger: logger,
	}
}

// ExportTasks создает Excel файл со всеми задачами, по листу на проект
func (e *ExcelExporter) ExportTasks(ctx context.Context) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	projects, err := e.db.GetProjects(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting projects: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for _, project := range projects {
		tasks, err := e.db.GetTasksByProject(ctx, project.ID)
		if err != nil {
			return "", fmt.Errorf("error getting tasks: %v", err)
		}

		sheetName := sanitizeSheetName(project.Name)
		index, err := f.NewSheet(sheetName)
		if err != nil {
			return "", fmt.Errorf("error creating sheet: %v", err)
		}
		f.SetActiveSheet(index)

		e.writeTaskHeaders(f, sheetName, headerStyle)
		e.writeTaskRows(f, sheetName, filterByExportRange(tasks, time.Now()))

		_ = f.SetColWidth(sheetName, "A", "A", 40)
		_ = f.SetColWidth(sheetName, "B", "E", 16)
	}

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("tasks_%s.xlsx", time.Now().Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	if e.logger != nil {
		e.logger.Info().Str("file_path", filePath).Msg("Excel file created")
	}
	return filePath, nil
}

func (e *ExcelExporter) writeTaskHeaders(f *excelize.File, sheetName string, style int) {
	headers := []string{"Задача", "Приоритет", "Срок", "Статус", "Метки"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, style)
	}
}

func (e *ExcelExporter) writeTaskRows(f *excelize.File, sheetName string, tasks []models.Task) {
	row := 2
	for _, task := range tasks {
		due := ""
		if task.Due != nil {
			due = task.Due.Format("02.01.2006")
		}
		status := "открыта"
		if task.Completed {
			status = "выполнена"
		}

		values := []any{task.Title, priorityLabel(task.Priority), due, status, strings.Join(task.Labels, ", ")}
		for i, val := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheetName, cell, val)
		}
		row++
	}
}

// filterByExportRange drops dated tasks outside the export window. Tasks
// without a due date are always included.
func filterByExportRange(tasks []models.Task, now time.Time) []models.Task {
	from := now.AddDate(0, -models.DefaultExportRangeMonthsBefore, 0)
	to := now.AddDate(0, models.DefaultExportRangeMonthsAfter, 0)

	filtered := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Due != nil && (task.Due.Before(from) || task.Due.After(to)) {
			continue
		}
		filtered = append(filtered, task)
	}
	return filtered
}

func priorityLabel(p int) string {
	switch p {
	case models.PriorityUrgent:
		return "срочно"
	case models.PriorityHigh:
		return "высокий"
	case models.PriorityMedium:
		return "средний"
	case models.PriorityLow:
		return "низкий"
	}
	return ""
}

// sanitizeSheetName keeps Excel's 31-char limit and strips invalid chars.
func sanitizeSheetName(name string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", "?", "", "*", "", "[", "(", "]", ")", ":", "-")
	name = replacer.Replace(name)
	if name == "" {
		name = "Проект"
	}
	runes := []rune(name)
	if len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}

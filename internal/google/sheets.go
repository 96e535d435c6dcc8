package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"todone/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsService publishes a project snapshot to a Google spreadsheet, one
// worksheet for projects and one for their tasks.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
}

func NewSheetsService(credentialsFile, spreadsheetID string) (*SheetsService, error) {
	ctx := context.Background()

	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	// Создаем JWT конфигурацию
	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client := config.Client(ctx)

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
	}, nil
}

// TestConnection проверяет подключение к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, "Projects!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail возвращает email сервисного аккаунта
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}

	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}

	return creds.ClientEmail, nil
}

// UpdateProjectsSheet полностью перезаписывает лист проектов
func (s *SheetsService) UpdateProjectsSheet(ctx context.Context, projects []models.Project) error {
	var values [][]interface{}

	headers := []interface{}{"ID", "Name", "Color", "Favorite", "Shared", "Archived", "Created At"}
	values = append(values, headers)

	for _, project := range projects {
		row := []interface{}{
			project.ID,
			project.Name,
			project.Color,
			project.IsFavorite,
			project.IsShared,
			project.IsArchived,
			project.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		values = append(values, row)
	}

	rangeData := "Projects!A1:G" + fmt.Sprintf("%d", len(values))
	valueRange := &sheets.ValueRange{
		Values: values,
	}

	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()

	return err
}

// UpdateTasksSheet полностью перезаписывает лист задач
func (s *SheetsService) UpdateTasksSheet(ctx context.Context, tasks []models.Task) error {
	var values [][]interface{}

	headers := []interface{}{"ID", "Project", "Title", "Priority", "Labels", "Due", "Completed", "Updated At"}
	values = append(values, headers)

	for _, task := range tasks {
		due := ""
		if task.Due != nil {
			due = task.Due.Format("2006-01-02")
		}
		row := []interface{}{
			task.ID,
			task.ProjectID,
			task.Title,
			task.Priority,
			strings.Join(task.Labels, ", "),
			due,
			task.Completed,
			task.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		values = append(values, row)
	}

	rangeData := "Tasks!A1:H" + fmt.Sprintf("%d", len(values))
	valueRange := &sheets.ValueRange{
		Values: values,
	}

	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()

	return err
}

// PublishSnapshot пишет оба листа за один вызов
func (s *SheetsService) PublishSnapshot(ctx context.Context, projects []models.Project, tasks []models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.UpdateProjectsSheet(ctx, projects); err != nil {
		return fmt.Errorf("update projects sheet: %w", err)
	}
	if err := s.UpdateTasksSheet(ctx, tasks); err != nil {
		return fmt.Errorf("update tasks sheet: %w", err)
	}
	return nil
}

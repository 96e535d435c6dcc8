package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"todone/internal/models"
)

const taskColumns = `id, project_id, section_id, title, description, priority, labels, due, completed, completed_at, sort_order, created_at, updated_at`

// UpsertTask writes a task mirror record, inserting or replacing by id.
func (db *DB) UpsertTask(ctx context.Context, task *models.Task) error {
	labels, err := json.Marshal(task.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}

	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	query := `
        INSERT INTO tasks (` + taskColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            project_id = excluded.project_id,
            section_id = excluded.section_id,
            title = excluded.title,
            description = excluded.description,
            priority = excluded.priority,
            labels = excluded.labels,
            due = excluded.due,
            completed = excluded.completed,
            completed_at = excluded.completed_at,
            sort_order = excluded.sort_order,
            updated_at = excluded.updated_at
    `

	_, err = db.ExecContext(ctx, query,
		task.ID,
		task.ProjectID,
		task.SectionID,
		task.Title,
		task.Description,
		task.Priority,
		string(labels),
		task.Due,
		task.Completed,
		task.CompletedAt,
		task.SortOrder,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}
	return nil
}

// UpsertTasks bulk-writes task mirrors in a single transaction.
func (db *DB) UpsertTasks(ctx context.Context, tasks []models.Task) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        INSERT INTO tasks (` + taskColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            project_id = excluded.project_id,
            section_id = excluded.section_id,
            title = excluded.title,
            description = excluded.description,
            priority = excluded.priority,
            labels = excluded.labels,
            due = excluded.due,
            completed = excluded.completed,
            completed_at = excluded.completed_at,
            sort_order = excluded.sort_order,
            updated_at = excluded.updated_at
    `

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for i := range tasks {
		task := &tasks[i]
		labels, err := json.Marshal(task.Labels)
		if err != nil {
			return fmt.Errorf("failed to encode labels for task %s: %w", task.ID, err)
		}
		if task.CreatedAt.IsZero() {
			task.CreatedAt = now
		}
		task.UpdatedAt = now

		if _, err := stmt.ExecContext(ctx,
			task.ID, task.ProjectID, task.SectionID, task.Title, task.Description,
			task.Priority, string(labels), task.Due, task.Completed, task.CompletedAt,
			task.SortOrder, task.CreatedAt, task.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert task %s: %w", task.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert transaction: %w", err)
	}
	return nil
}

// GetTask returns a task by id, or nil when absent.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	task, err := scanTask(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// GetTasks returns all task mirrors ordered for display. An empty store
// yields an empty slice, not an error.
func (db *DB) GetTasks(ctx context.Context) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY project_id, sort_order, created_at`
	return db.queryTasks(ctx, query)
}

// GetTasksByProject returns tasks for a single project.
func (db *DB) GetTasksByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = ? ORDER BY sort_order, created_at`
	return db.queryTasks(ctx, query, projectID)
}

// GetDueTasks returns incomplete tasks due before the cutoff.
func (db *DB) GetDueTasks(ctx context.Context, cutoff time.Time) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE completed = 0 AND due IS NOT NULL AND due <= ? ORDER BY due`
	return db.queryTasks(ctx, query, cutoff)
}

// DeleteTask removes a task mirror. Deleting an absent id is not an error.
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// ReplaceTaskID rewrites a temporary local id with the server-assigned id.
func (db *DB) ReplaceTaskID(ctx context.Context, oldID, newID string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE tasks SET id = ?, updated_at = ? WHERE id = ?`,
		newID, time.Now(), oldID,
	)
	if err != nil {
		return fmt.Errorf("failed to replace task id: %w", err)
	}
	return nil
}

func (db *DB) queryTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task      models.Task
		rawLabels string
		due       sql.NullTime
		completed sql.NullTime
	)
	err := row.Scan(
		&task.ID,
		&task.ProjectID,
		&task.SectionID,
		&task.Title,
		&task.Description,
		&task.Priority,
		&rawLabels,
		&due,
		&task.Completed,
		&completed,
		&task.SortOrder,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rawLabels != "" {
		if err := json.Unmarshal([]byte(rawLabels), &task.Labels); err != nil {
			return nil, fmt.Errorf("failed to decode labels for task %s: %w", task.ID, err)
		}
	}
	if due.Valid {
		task.Due = &due.Time
	}
	if completed.Valid {
		task.CompletedAt = &completed.Time
	}
	return &task, nil
}

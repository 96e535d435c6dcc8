package database

import (
	"context"
	"fmt"
	"time"

	"todone/internal/models"
)

// UpsertComment writes a comment mirror record.
func (db *DB) UpsertComment(ctx context.Context, comment *models.Comment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	query := `
        INSERT INTO comments (id, task_id, project_id, author_id, content, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            content = excluded.content
    `

	_, err := db.ExecContext(ctx, query,
		comment.ID, comment.TaskID, comment.ProjectID, comment.AuthorID, comment.Content, comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert comment: %w", err)
	}
	return nil
}

// GetCommentsByTask returns comments on a task, oldest first.
func (db *DB) GetCommentsByTask(ctx context.Context, taskID string) ([]models.Comment, error) {
	query := `SELECT id, task_id, project_id, author_id, content, created_at
              FROM comments WHERE task_id = ? ORDER BY created_at`

	rows, err := db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.ProjectID, &c.AuthorID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// DeleteComment removes a comment mirror.
func (db *DB) DeleteComment(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

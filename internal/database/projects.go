package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"todone/internal/models"
)

// UpsertProject writes a project mirror record.
func (db *DB) UpsertProject(ctx context.Context, project *models.Project) error {
	now := time.Now()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now

	query := `
        INSERT INTO projects (id, name, color, is_favorite, is_archived, is_shared, sort_order, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            color = excluded.color,
            is_favorite = excluded.is_favorite,
            is_archived = excluded.is_archived,
            is_shared = excluded.is_shared,
            sort_order = excluded.sort_order,
            updated_at = excluded.updated_at
    `

	_, err := db.ExecContext(ctx, query,
		project.ID,
		project.Name,
		project.Color,
		project.IsFavorite,
		project.IsArchived,
		project.IsShared,
		project.SortOrder,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}
	return nil
}

// GetProject returns a project by id.
func (db *DB) GetProject(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT id, name, color, is_favorite, is_archived, is_shared, sort_order, created_at, updated_at
              FROM projects WHERE id = ?`

	var p models.Project
	err := db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Color, &p.IsFavorite, &p.IsArchived, &p.IsShared, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// GetProjects returns all project mirrors in display order.
func (db *DB) GetProjects(ctx context.Context) ([]models.Project, error) {
	query := `SELECT id, name, color, is_favorite, is_archived, is_shared, sort_order, created_at, updated_at
              FROM projects ORDER BY sort_order, created_at`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		var p models.Project
		err := rows.Scan(&p.ID, &p.Name, &p.Color, &p.IsFavorite, &p.IsArchived, &p.IsShared, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project mirror and its sections.
func (db *DB) DeleteProject(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project sections: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	return tx.Commit()
}

// ReplaceProjectID rewrites a temporary local project id with the
// server-assigned one, including task and section references.
func (db *DB) ReplaceProjectID(ctx context.Context, oldID, newID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin replace transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET id = ?, updated_at = ? WHERE id = ?`, newID, now, oldID); err != nil {
		return fmt.Errorf("failed to replace project id: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET project_id = ?, updated_at = ? WHERE project_id = ?`, newID, now, oldID); err != nil {
		return fmt.Errorf("failed to re-point tasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sections SET project_id = ? WHERE project_id = ?`, newID, oldID); err != nil {
		return fmt.Errorf("failed to re-point sections: %w", err)
	}

	return tx.Commit()
}

// SyncProjects seeds the project list from configuration, upserting each
// entry. Missing projects are created, existing ones updated.
func (db *DB) SyncProjects(ctx context.Context, projects []models.Project) error {
	for i := range projects {
		if err := db.UpsertProject(ctx, &projects[i]); err != nil {
			return err
		}
	}
	return nil
}

// UpsertSection writes a section mirror record.
func (db *DB) UpsertSection(ctx context.Context, section *models.Section) error {
	if section.CreatedAt.IsZero() {
		section.CreatedAt = time.Now()
	}

	query := `
        INSERT INTO sections (id, project_id, name, sort_order, created_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            project_id = excluded.project_id,
            name = excluded.name,
            sort_order = excluded.sort_order
    `

	_, err := db.ExecContext(ctx, query, section.ID, section.ProjectID, section.Name, section.SortOrder, section.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert section: %w", err)
	}
	return nil
}

// GetSectionsByProject returns sections for a project in display order.
func (db *DB) GetSectionsByProject(ctx context.Context, projectID string) ([]models.Section, error) {
	query := `SELECT id, project_id, name, sort_order, created_at FROM sections WHERE project_id = ? ORDER BY sort_order, created_at`

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	sections := []models.Section{}
	for rows.Next() {
		var s models.Section
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Name, &s.SortOrder, &s.CreatedAt); err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// DeleteSection removes a section mirror.
func (db *DB) DeleteSection(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM sections WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete section: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"fmt"

	"todone/internal/models"
)

// UpsertLabel writes a label mirror record.
func (db *DB) UpsertLabel(ctx context.Context, label *models.Label) error {
	query := `
        INSERT INTO labels (id, name, color, sort_order)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            color = excluded.color,
            sort_order = excluded.sort_order
    `

	if _, err := db.ExecContext(ctx, query, label.ID, label.Name, label.Color, label.SortOrder); err != nil {
		return fmt.Errorf("failed to upsert label: %w", err)
	}
	return nil
}

// GetLabels returns all label mirrors in display order.
func (db *DB) GetLabels(ctx context.Context) ([]models.Label, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, color, sort_order FROM labels ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	labels := []models.Label{}
	for rows.Next() {
		var l models.Label
		if err := rows.Scan(&l.ID, &l.Name, &l.Color, &l.SortOrder); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// DeleteLabel removes a label mirror.
func (db *DB) DeleteLabel(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM labels WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete label: %w", err)
	}
	return nil
}

// SyncLabels seeds the label list from configuration.
func (db *DB) SyncLabels(ctx context.Context, labels []models.Label) error {
	for i := range labels {
		if err := db.UpsertLabel(ctx, &labels[i]); err != nil {
			return err
		}
	}
	return nil
}

// UpsertFilter writes a saved-filter mirror record.
func (db *DB) UpsertFilter(ctx context.Context, filter *models.Filter) error {
	query := `
        INSERT INTO filters (id, name, query, color, sort_order)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            query = excluded.query,
            color = excluded.color,
            sort_order = excluded.sort_order
    `

	if _, err := db.ExecContext(ctx, query, filter.ID, filter.Name, filter.Query, filter.Color, filter.SortOrder); err != nil {
		return fmt.Errorf("failed to upsert filter: %w", err)
	}
	return nil
}

// GetFilters returns all saved filters in display order.
func (db *DB) GetFilters(ctx context.Context) ([]models.Filter, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, query, color, sort_order FROM filters ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query filters: %w", err)
	}
	defer rows.Close()

	filters := []models.Filter{}
	for rows.Next() {
		var f models.Filter
		if err := rows.Scan(&f.ID, &f.Name, &f.Query, &f.Color, &f.SortOrder); err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

// DeleteFilter removes a saved filter.
func (db *DB) DeleteFilter(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM filters WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete filter: %w", err)
	}
	return nil
}

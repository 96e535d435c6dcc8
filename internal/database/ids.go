package database

import (
	"context"
	"fmt"

	"todone/internal/models"
)

var collectionTables = map[string]string{
	models.CollectionSections: "sections",
	models.CollectionLabels:   "labels",
	models.CollectionFilters:  "filters",
	models.CollectionComments: "comments",
}

// ReplaceEntityID rewrites a temporary local id with the server-assigned id
// for any mirrored collection. Tasks and projects carry cross-references and
// get dedicated handling.
func (db *DB) ReplaceEntityID(ctx context.Context, collection, oldID, newID string) error {
	switch collection {
	case models.CollectionTasks:
		return db.ReplaceTaskID(ctx, oldID, newID)
	case models.CollectionProjects:
		return db.ReplaceProjectID(ctx, oldID, newID)
	}

	table, ok := collectionTables[collection]
	if !ok {
		return fmt.Errorf("unknown collection: %s", collection)
	}
	if _, err := db.ExecContext(ctx, `UPDATE `+table+` SET id = ? WHERE id = ?`, newID, oldID); err != nil {
		return fmt.Errorf("failed to replace %s id: %w", collection, err)
	}
	return nil
}

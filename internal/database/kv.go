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

// SetKV stores a raw value under a key.
func (db *DB) SetKV(ctx context.Context, key, value string) error {
	query := `
        INSERT INTO kv (key, value, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            value = excluded.value,
            updated_at = excluded.updated_at
    `
	if _, err := db.ExecContext(ctx, query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to set kv %s: %w", key, err)
	}
	return nil
}

// GetKV returns the value for a key, or "" when absent.
func (db *DB) GetKV(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get kv %s: %w", key, err)
	}
	return value, nil
}

// SaveOfflineSnapshot serializes the settings/last-sync snapshot under the
// well-known offline-data key.
func (db *DB) SaveOfflineSnapshot(ctx context.Context, snapshot *models.OfflineSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode offline snapshot: %w", err)
	}
	return db.SetKV(ctx, models.OfflineSnapshotKey, string(data))
}

// LoadOfflineSnapshot reads the snapshot written by SaveOfflineSnapshot.
// An uninitialized store yields an empty snapshot, not an error.
func (db *DB) LoadOfflineSnapshot(ctx context.Context) (*models.OfflineSnapshot, error) {
	raw, err := db.GetKV(ctx, models.OfflineSnapshotKey)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return &models.OfflineSnapshot{}, nil
	}

	var snapshot models.OfflineSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode offline snapshot: %w", err)
	}
	return &snapshot, nil
}

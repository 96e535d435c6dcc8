package database

import (
	"context"
	"fmt"
	"time"

	"todone/internal/models"
)

const queueColumns = `id, op, collection, entity_id, payload, status, attempts, last_error, created_at, processed_at, next_retry_at`

// EnqueueQueueItem appends a pending mutation to the offline queue. The row
// is committed before returning, so a crash immediately after enqueue does
// not lose the item.
func (db *DB) EnqueueQueueItem(ctx context.Context, item *models.QueueItem) error {
	if item.Status == "" {
		item.Status = models.QueueStatusPending
	}
	now := time.Now()

	query := `INSERT INTO sync_queue (op, collection, entity_id, payload, status, attempts, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		item.Op,
		item.Collection,
		item.EntityID,
		item.Payload,
		item.Status,
		item.Attempts,
		item.LastError,
		now,
		item.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue queue item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = id
	item.CreatedAt = now

	return nil
}

// ListPendingQueueItems returns pending and retrying items whose retry time
// has passed, in FIFO insertion order.
func (db *DB) ListPendingQueueItems(ctx context.Context, limit int) ([]models.QueueItem, error) {
	query := `SELECT ` + queueColumns + `
              FROM sync_queue
              WHERE status IN ('pending', 'retrying') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY id ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending queue items: %w", err)
	}
	defer rows.Close()

	var items []models.QueueItem
	for rows.Next() {
		var it models.QueueItem
		err := rows.Scan(
			&it.ID, &it.Op, &it.Collection, &it.EntityID, &it.Payload, &it.Status, &it.Attempts, &it.LastError, &it.CreatedAt, &it.ProcessedAt, &it.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CountPendingQueueItems counts items awaiting replay, including retrying
// ones whose backoff has not yet elapsed.
func (db *DB) CountPendingQueueItems(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE status IN ('pending', 'retrying')`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending queue items: %w", err)
	}
	return count, nil
}

// DequeueQueueItem removes an item after confirmed success. Removing an
// absent id is a no-op.
func (db *DB) DequeueQueueItem(ctx context.Context, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to dequeue queue item: %w", err)
	}
	return nil
}

// UpdateQueueItemStatus transitions an item. "retrying" increments the
// attempt counter; "failed" is terminal and stamps processed_at.
func (db *DB) UpdateQueueItemStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	switch status {
	case models.QueueStatusRetrying:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, attempts = attempts + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	case models.QueueStatusFailed:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, &now, id}
	default:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update queue item status: %w", err)
	}
	return nil
}

// GetFailedQueueItems returns terminally failed items, newest first.
func (db *DB) GetFailedQueueItems(ctx context.Context) ([]models.QueueItem, error) {
	query := `SELECT ` + queueColumns + `
              FROM sync_queue WHERE status = 'failed' ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed queue items: %w", err)
	}
	defer rows.Close()

	var items []models.QueueItem
	for rows.Next() {
		var it models.QueueItem
		err := rows.Scan(
			&it.ID, &it.Op, &it.Collection, &it.EntityID, &it.Payload, &it.Status, &it.Attempts, &it.LastError, &it.CreatedAt, &it.ProcessedAt, &it.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// RewriteQueueEntityID re-points queued items from a temporary local id to
// the server-assigned id, both in entity_id and inside JSON payloads that
// still reference it. Queue ordering is untouched.
func (db *DB) RewriteQueueEntityID(ctx context.Context, collection, oldID, newID string) error {
	query := `UPDATE sync_queue
              SET entity_id = CASE WHEN entity_id = ? THEN ? ELSE entity_id END,
                  payload = REPLACE(payload, ?, ?)
              WHERE collection = ? AND (entity_id = ? OR payload LIKE '%' || ? || '%')`
	_, err := db.ExecContext(ctx, query, oldID, newID, oldID, newID, collection, oldID, oldID)
	if err != nil {
		return fmt.Errorf("failed to rewrite queue entity id: %w", err)
	}
	return nil
}

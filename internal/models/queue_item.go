package models

import "time"

// QueueItem represents a single pending local mutation awaiting remote
// confirmation. The id is assigned at enqueue time and stable until the
// item is removed after a confirmed success.
type QueueItem struct {
	ID          int64      `json:"id"`
	Op          string     `json:"op"`
	Collection  string     `json:"collection"`
	EntityID    string     `json:"entity_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

// SyncStatus is the observable sync state exposed to front ends.
type SyncStatus struct {
	IsOffline         bool       `json:"is_offline"`
	IsSyncing         bool       `json:"is_syncing"`
	PendingOperations int        `json:"pending_operations"`
	LastSynced        *time.Time `json:"last_synced,omitempty"`
}

// OfflineSnapshot is the durable blob stored under OfflineSnapshotKey.
type OfflineSnapshot struct {
	Settings   map[string]string `json:"settings,omitempty"`
	LastSynced *time.Time        `json:"last_synced,omitempty"`
}

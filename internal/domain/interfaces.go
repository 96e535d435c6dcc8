package domain

import (
	"context"
	"time"

	"todone/internal/models"
)

// RemoteAPI is the remote Todone server as seen by the sync engine.
type RemoteAPI interface {
	CreateEntity(ctx context.Context, collection, payload string) (string, error)
	UpdateEntity(ctx context.Context, collection, id, payload string) error
	DeleteEntity(ctx context.Context, collection, id string) error
	Health(ctx context.Context) error
}

// SyncEngine drains the offline queue against the remote API.
type SyncEngine interface {
	ProcessSyncQueue(ctx context.Context) error
	NeedsSync(ctx context.Context) bool
}

// PresenceRepository caches collaborator presence for shared projects and
// enforces per-user rate limits.
type PresenceRepository interface {
	SetPresence(ctx context.Context, presence *models.Presence) error
	GetPresence(ctx context.Context, projectID string) ([]models.Presence, error)
	ClearPresence(ctx context.Context, projectID, userID string) error
	CheckRateLimit(ctx context.Context, userID string, limit int, window time.Duration) (bool, error)
}

// EventPublisher decouples services from the concrete event bus.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier surfaces sync failures and reminders to the user out-of-band.
type Notifier interface {
	NotifySyncFailure(item *models.QueueItem) error
	NotifyDueTasks(tasks []models.Task) error
}

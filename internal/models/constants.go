package models

import "time"

const (
	// Queue operation kinds.
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

const (
	// Queue item statuses. A successful item is removed from the queue
	// rather than marked; "failed" is terminal and excluded from pending.
	QueueStatusPending  = "pending"
	QueueStatusRetrying = "retrying"
	QueueStatusFailed   = "failed"
)

const (
	// Collections mirrored in the local store and addressed by queue items.
	CollectionTasks    = "tasks"
	CollectionProjects = "projects"
	CollectionSections = "sections"
	CollectionLabels   = "labels"
	CollectionFilters  = "filters"
	CollectionComments = "comments"
)

const (
	PriorityNone   = 0
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
	PriorityUrgent = 4
)

const (
	// OfflineSnapshotKey is the kv row holding the serialized settings and
	// last-sync snapshot, read at startup.
	OfflineSnapshotKey = "todone-offline-data"

	// LocalIDPrefix marks entity ids assigned locally before the server has
	// confirmed the create.
	LocalIDPrefix = "local-"

	// DefaultRedisTTL время жизни состояния коллаборации в Redis
	DefaultRedisTTL = 24 * time.Hour

	// ReminderHour час, в который отправляются напоминания о задачах
	ReminderHour = 9

	// DefaultSyncBatchSize number of queue items fetched per drain pass.
	DefaultSyncBatchSize = 50

	// DefaultExportRangeMonths окно экспорта по умолчанию
	DefaultExportRangeMonthsBefore = 1
	DefaultExportRangeMonthsAfter  = 2

	// RateLimitRequests количество запросов в окне
	RateLimitRequests = 20

	// RateLimitWindow окно ограничения частоты запросов
	RateLimitWindow = time.Minute
)

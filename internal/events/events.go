package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventTaskCreated    = "task_created"
	EventTaskUpdated    = "task_updated"
	EventTaskCompleted  = "task_completed"
	EventTaskDeleted    = "task_deleted"
	EventProjectShared  = "project_shared"
	EventCommentAdded   = "comment_added"
	EventSyncStarted    = "sync_started"
	EventSyncCompleted  = "sync_completed"
	EventSyncItemFailed = "sync_item_failed"
)

// TaskEventPayload describes the minimal task snapshot for event consumers.
type TaskEventPayload struct {
	TaskID    string     `json:"task_id"`
	ProjectID string     `json:"project_id,omitempty"`
	Title     string     `json:"title"`
	Priority  int        `json:"priority,omitempty"`
	Due       *time.Time `json:"due,omitempty"`
	Completed bool       `json:"completed,omitempty"`
}

// SyncEventPayload describes a drain pass or a single failed item.
type SyncEventPayload struct {
	QueueItemID int64  `json:"queue_item_id,omitempty"`
	Op          string `json:"op,omitempty"`
	Collection  string `json:"collection,omitempty"`
	EntityID    string `json:"entity_id,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
	Error       string `json:"error,omitempty"`
	Processed   int    `json:"processed,omitempty"`
	Failed      int    `json:"failed,omitempty"`
	Remaining   int    `json:"remaining,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}

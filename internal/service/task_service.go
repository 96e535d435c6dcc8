package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"todone/internal/database"
	"todone/internal/domain"
	"todone/internal/events"
	"todone/internal/models"
	"todone/internal/state"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrEmptyTitle = errors.New("task title is required")

// TaskService applies task mutations to the local store first, then records
// them in the sync queue. The remote server never blocks a local write.
type TaskService struct {
	db       *database.DB
	state    *state.Store
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewTaskService(db *database.DB, stateStore *state.Store, eventBus domain.EventPublisher, logger *zerolog.Logger) *TaskService {
	return &TaskService{
		db:       db,
		state:    stateStore,
		eventBus: eventBus,
		logger:   logger,
	}
}

// CreateTask stores the task locally under a temporary id and queues the
// create for replay. The id is rewritten once the server assigns a real one.
func (s *TaskService) CreateTask(ctx context.Context, task *models.Task) error {
	if task.Title == "" {
		return ErrEmptyTitle
	}
	if task.ID == "" {
		task.ID = models.LocalIDPrefix + uuid.NewString()
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	if err := s.db.UpsertTask(ctx, task); err != nil {
		return err
	}
	if err := s.enqueue(ctx, models.OpCreate, models.CollectionTasks, task.ID, task); err != nil {
		return err
	}

	s.publishTaskEvent(events.EventTaskCreated, task)
	return nil
}

// UpdateTask writes the new version locally and queues the update.
func (s *TaskService) UpdateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		return errors.New("task id is required")
	}
	task.UpdatedAt = time.Now()

	if err := s.db.UpsertTask(ctx, task); err != nil {
		return err
	}
	if err := s.enqueue(ctx, models.OpUpdate, models.CollectionTasks, task.ID, task); err != nil {
		return err
	}

	s.publishTaskEvent(events.EventTaskUpdated, task)
	return nil
}

// CompleteTask marks a task done locally and queues the update.
func (s *TaskService) CompleteTask(ctx context.Context, taskID string) error {
	task, err := s.db.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s not found", taskID)
	}

	now := time.Now()
	task.Completed = true
	task.CompletedAt = &now
	task.UpdatedAt = now

	if err := s.db.UpsertTask(ctx, task); err != nil {
		return err
	}
	if err := s.enqueue(ctx, models.OpUpdate, models.CollectionTasks, task.ID, task); err != nil {
		return err
	}

	s.publishTaskEvent(events.EventTaskCompleted, task)
	return nil
}

// DeleteTask removes the task locally and queues the delete.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) error {
	if err := s.db.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	if err := s.enqueue(ctx, models.OpDelete, models.CollectionTasks, taskID, nil); err != nil {
		return err
	}

	_ = s.eventBus.PublishJSON(events.EventTaskDeleted, events.TaskEventPayload{TaskID: taskID})
	return nil
}

func (s *TaskService) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	return s.db.GetTask(ctx, taskID)
}

func (s *TaskService) GetTasks(ctx context.Context) ([]models.Task, error) {
	return s.db.GetTasks(ctx)
}

func (s *TaskService) GetTasksByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	return s.db.GetTasksByProject(ctx, projectID)
}

// StoreOfflineTasks writes a task list to the local store in one
// transaction and queues each task for replay: a create for tasks still
// carrying a local id, an update otherwise.
func (s *TaskService) StoreOfflineTasks(ctx context.Context, tasks []models.Task) error {
	if err := s.db.UpsertTasks(ctx, tasks); err != nil {
		return err
	}

	for i := range tasks {
		op := models.OpUpdate
		if tasks[i].HasLocalID() {
			op = models.OpCreate
		}
		if err := s.enqueue(ctx, op, models.CollectionTasks, tasks[i].ID, &tasks[i]); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Debug().Int("count", len(tasks)).Msg("offline tasks stored")
	}
	return nil
}

// GetOfflineTasks returns the locally mirrored tasks.
func (s *TaskService) GetOfflineTasks(ctx context.Context) ([]models.Task, error) {
	return s.db.GetTasks(ctx)
}

// ClearOfflineData wipes every local table and resets the observable sync
// state. Queue items are discarded with the rest.
func (s *TaskService) ClearOfflineData(ctx context.Context) error {
	if err := s.db.ClearOfflineData(ctx); err != nil {
		return err
	}
	s.state.Reset()
	if s.logger != nil {
		s.logger.Info().Msg("offline data cleared")
	}
	return nil
}

func (s *TaskService) enqueue(ctx context.Context, op, collection, entityID string, payload any) error {
	var raw string
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		raw = string(data)
	}

	item := models.QueueItem{
		Op:         op,
		Collection: collection,
		EntityID:   entityID,
		Payload:    raw,
	}
	if err := s.db.EnqueueQueueItem(ctx, &item); err != nil {
		return err
	}

	count, err := s.db.CountPendingQueueItems(ctx)
	if err == nil {
		s.state.SetPendingOperations(count)
	}
	return nil
}

func (s *TaskService) publishTaskEvent(eventType string, task *models.Task) {
	_ = s.eventBus.PublishJSON(eventType, events.TaskEventPayload{
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
		Title:     task.Title,
	})
}

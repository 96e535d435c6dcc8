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

var ErrRateLimited = errors.New("rate limit exceeded")

// CollabService handles the collaborative side of shared projects: comments
// and who-is-viewing presence. Presence is ephemeral and lives in the
// presence repository, not the local store.
type CollabService struct {
	db        *database.DB
	state     *state.Store
	presence  domain.PresenceRepository
	eventBus  domain.EventPublisher
	rateLimit int
	rateWin   time.Duration
	logger    *zerolog.Logger
}

func NewCollabService(db *database.DB, stateStore *state.Store, presence domain.PresenceRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *CollabService {
	return &CollabService{
		db:        db,
		state:     stateStore,
		presence:  presence,
		eventBus:  eventBus,
		rateLimit: models.RateLimitRequests,
		rateWin:   models.RateLimitWindow,
		logger:    logger,
	}
}

// AddComment stores the comment locally and queues it for the shared
// project's other members. Comments from one user are rate limited.
func (s *CollabService) AddComment(ctx context.Context, comment *models.Comment) error {
	if comment.TaskID == "" || comment.Content == "" {
		return errors.New("comment task id and content are required")
	}

	allowed, err := s.presence.CheckRateLimit(ctx, comment.AuthorID, s.rateLimit, s.rateWin)
	if err != nil {
		// Rate limiting is advisory; a broken limiter must not block writes.
		s.logger.Warn().Err(err).Msg("rate limit check failed")
	} else if !allowed {
		return ErrRateLimited
	}

	if comment.ID == "" {
		comment.ID = models.LocalIDPrefix + uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	if err := s.db.UpsertComment(ctx, comment); err != nil {
		return err
	}
	if err := s.enqueue(ctx, models.OpCreate, models.CollectionComments, comment.ID, comment); err != nil {
		return err
	}

	_ = s.eventBus.PublishJSON(events.EventCommentAdded, events.TaskEventPayload{TaskID: comment.TaskID})
	return nil
}

func (s *CollabService) GetComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	return s.db.GetCommentsByTask(ctx, taskID)
}

// ShareProject records the member locally and announces the share.
func (s *CollabService) ShareProject(ctx context.Context, projectID, userID string) error {
	project, err := s.db.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return fmt.Errorf("project %s not found", projectID)
	}

	project.IsShared = true
	if err := s.db.UpsertProject(ctx, project); err != nil {
		return err
	}
	if err := s.enqueue(ctx, models.OpUpdate, models.CollectionProjects, project.ID, project); err != nil {
		return err
	}

	_ = s.eventBus.PublishJSON(events.EventProjectShared, map[string]string{
		"project_id": projectID,
		"user_id":    userID,
	})
	return nil
}

// Touch refreshes a collaborator's presence on a project.
func (s *CollabService) Touch(ctx context.Context, projectID, userID string) error {
	return s.presence.SetPresence(ctx, &models.Presence{
		UserID:    userID,
		ProjectID: projectID,
		SeenAt:    time.Now(),
	})
}

// ActiveCollaborators lists who is currently viewing a project.
func (s *CollabService) ActiveCollaborators(ctx context.Context, projectID string) ([]models.Presence, error) {
	return s.presence.GetPresence(ctx, projectID)
}

// Leave clears a collaborator's presence entry.
func (s *CollabService) Leave(ctx context.Context, projectID, userID string) error {
	return s.presence.ClearPresence(ctx, projectID, userID)
}

func (s *CollabService) enqueue(ctx context.Context, op, collection, entityID string, payload any) error {
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

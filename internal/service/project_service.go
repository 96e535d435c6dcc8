package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"todone/internal/database"
	"todone/internal/domain"
	"todone/internal/models"
	"todone/internal/state"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ProjectService manages projects and their sections, local-first like tasks.
type ProjectService struct {
	db       *database.DB
	state    *state.Store
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewProjectService(db *database.DB, stateStore *state.Store, eventBus domain.EventPublisher, logger *zerolog.Logger) *ProjectService {
	return &ProjectService{
		db:       db,
		state:    stateStore,
		eventBus: eventBus,
		logger:   logger,
	}
}

func (s *ProjectService) CreateProject(ctx context.Context, project *models.Project) error {
	if project.Name == "" {
		return errors.New("project name is required")
	}
	if project.ID == "" {
		project.ID = models.LocalIDPrefix + uuid.NewString()
	}

	if err := s.db.UpsertProject(ctx, project); err != nil {
		return err
	}
	return s.enqueue(ctx, models.OpCreate, models.CollectionProjects, project.ID, project)
}

func (s *ProjectService) UpdateProject(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		return errors.New("project id is required")
	}

	if err := s.db.UpsertProject(ctx, project); err != nil {
		return err
	}
	return s.enqueue(ctx, models.OpUpdate, models.CollectionProjects, project.ID, project)
}

// DeleteProject removes the project with its sections locally and queues the
// delete. Remaining tasks keep their project_id; the server decides cascade.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID string) error {
	if err := s.db.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	return s.enqueue(ctx, models.OpDelete, models.CollectionProjects, projectID, nil)
}

func (s *ProjectService) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	return s.db.GetProject(ctx, projectID)
}

func (s *ProjectService) GetProjects(ctx context.Context) ([]models.Project, error) {
	return s.db.GetProjects(ctx)
}

func (s *ProjectService) CreateSection(ctx context.Context, section *models.Section) error {
	if section.ProjectID == "" {
		return errors.New("section project id is required")
	}
	if section.ID == "" {
		section.ID = models.LocalIDPrefix + uuid.NewString()
	}

	if err := s.db.UpsertSection(ctx, section); err != nil {
		return err
	}
	return s.enqueue(ctx, models.OpCreate, models.CollectionSections, section.ID, section)
}

func (s *ProjectService) DeleteSection(ctx context.Context, sectionID string) error {
	if err := s.db.DeleteSection(ctx, sectionID); err != nil {
		return err
	}
	return s.enqueue(ctx, models.OpDelete, models.CollectionSections, sectionID, nil)
}

func (s *ProjectService) GetSectionsByProject(ctx context.Context, projectID string) ([]models.Section, error) {
	return s.db.GetSectionsByProject(ctx, projectID)
}

func (s *ProjectService) enqueue(ctx context.Context, op, collection, entityID string, payload any) error {
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
		CreatedAt:  time.Now(),
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

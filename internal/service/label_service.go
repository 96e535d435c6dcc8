package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"todone/internal/database"
	"todone/internal/models"
	"todone/internal/state"

	"github.com/google/uuid"
)

// LabelService manages labels and saved filters.
type LabelService struct {
	db    *database.DB
	state *state.Store
}

func NewLabelService(db *database.DB, stateStore *state.Store) *LabelService {
	return &LabelService{db: db, state: stateStore}
}

func (s *LabelService) CreateLabel(ctx context.Context, label *models.Label) error {
	if label.Name == "" {
		return errors.New("label name is required")
	}
	if label.ID == "" {
		label.ID = models.LocalIDPrefix + uuid.NewString()
	}

	if err := s.db.UpsertLabel(ctx, label); err != nil {
		return err
	}
	return s.enqueue(ctx, models.OpCreate, models.CollectionLabels, label.ID, label)
}

func (s *LabelService) DeleteLabel(ctx context.Context, labelID string) error {
	if err := s.db.DeleteLabel(ctx, labelID); err != nil {
		return err
	}
	return s.enqueue(ctx, models.OpDelete, models.CollectionLabels, labelID, nil)
}

func (s *LabelService) GetLabels(ctx context.Context) ([]models.Label, error) {
	return s.db.GetLabels(ctx)
}

func (s *LabelService) CreateFilter(ctx context.Context, filter *models.Filter) error {
	if filter.Name == "" || filter.Query == "" {
		return errors.New("filter name and query are required")
	}
	if filter.ID == "" {
		filter.ID = models.LocalIDPrefix + uuid.NewString()
	}

	if err := s.db.UpsertFilter(ctx, filter); err != nil {
		return err
	}
	return s.enqueue(ctx, models.OpCreate, models.CollectionFilters, filter.ID, filter)
}

func (s *LabelService) DeleteFilter(ctx context.Context, filterID string) error {
	if err := s.db.DeleteFilter(ctx, filterID); err != nil {
		return err
	}
	return s.enqueue(ctx, models.OpDelete, models.CollectionFilters, filterID, nil)
}

func (s *LabelService) GetFilters(ctx context.Context) ([]models.Filter, error) {
	return s.db.GetFilters(ctx)
}

func (s *LabelService) enqueue(ctx context.Context, op, collection, entityID string, payload any) error {
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

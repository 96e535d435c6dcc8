package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"todone/internal/database"
	"todone/internal/domain"
	"todone/internal/events"
	"todone/internal/metrics"
	"todone/internal/models"
	"todone/internal/state"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrSyncInProgress is returned when a drain pass is already running.
// Concurrent triggers (manual "sync now" + the background loop) must not
// double-process items.
var ErrSyncInProgress = errors.New("sync already in progress")

// Engine drains the offline queue against the remote API.
type Engine struct {
	db            *database.DB
	remote        domain.RemoteAPI
	state         *state.Store
	events        *events.EventBus
	redis         *redis.Client
	retryPolicy   RetryPolicy
	batchSize     int
	pollInterval  time.Duration
	deadLetterKey string
	logger        zerolog.Logger
	inFlight      atomic.Bool
}

// NewEngine builds a sync engine with sane defaults.
func NewEngine(db *database.DB, remoteAPI domain.RemoteAPI, stateStore *state.Store, bus *events.EventBus, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *Engine {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "sync-engine").Logger()
	}

	return &Engine{
		db:            db,
		remote:        remoteAPI,
		state:         stateStore,
		events:        bus,
		redis:         redisClient,
		retryPolicy:   retry,
		batchSize:     models.DefaultSyncBatchSize,
		pollInterval:  2 * time.Second,
		deadLetterKey: "todone:sync:deadletter",
		logger:        log,
	}
}

// SetBatchSize overrides the per-pass item limit.
func (e *Engine) SetBatchSize(n int) {
	if n > 0 {
		e.batchSize = n
	}
}

// SetPollInterval overrides the background loop interval.
func (e *Engine) SetPollInterval(d time.Duration) {
	if d > 0 {
		e.pollInterval = d
	}
}

// NeedsSync reports whether a drain pass would do work: pending changes
// exist and the device is online. A pure predicate; callers decide when to
// invoke ProcessSyncQueue.
func (e *Engine) NeedsSync(ctx context.Context) bool {
	if e.state.Snapshot().IsOffline {
		return false
	}
	count, err := e.db.CountPendingQueueItems(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("count pending failed")
		return false
	}
	return count > 0
}

// ProcessSyncQueue runs a single drain pass over the current queue
// snapshot in FIFO order. Per-item failures mark the item retrying (or
// failed past the retry cap) and the pass continues; only top-level storage
// I/O errors are returned. Reentrant calls get ErrSyncInProgress.
func (e *Engine) ProcessSyncQueue(ctx context.Context) error {
	if !e.inFlight.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer e.inFlight.Store(false)

	items, err := e.db.ListPendingQueueItems(ctx, e.batchSize)
	if err != nil {
		return fmt.Errorf("list pending queue items: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	e.state.SetSyncing(true)
	defer e.state.SetSyncing(false)
	_ = e.events.PublishJSON(events.EventSyncStarted, events.SyncEventPayload{Remaining: len(items)})

	processed, failed := 0, 0
	for i := range items {
		if err := e.processItem(ctx, &items[i], items[i+1:]); err != nil {
			failed++
			continue
		}
		processed++
	}

	remaining, err := e.db.CountPendingQueueItems(ctx)
	if err != nil {
		return fmt.Errorf("count pending queue items: %w", err)
	}
	e.state.SetPendingOperations(remaining)
	metrics.SetQueuePending(remaining)
	e.state.SetLastSynced(time.Now())

	e.logger.Info().Int("processed", processed).Int("failed", failed).Int("remaining", remaining).Msg("drain pass complete")
	_ = e.events.PublishJSON(events.EventSyncCompleted, events.SyncEventPayload{
		Processed: processed,
		Failed:    failed,
		Remaining: remaining,
	})
	return nil
}

// Start launches the background loop; stops when ctx is done. Each tick
// checks NeedsSync and runs a drain pass.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info().Dur("poll_interval", e.pollInterval).Msg("sync engine started")
	defer e.logger.Info().Msg("sync engine stopped")

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.NeedsSync(ctx) {
				continue
			}
			if err := e.ProcessSyncQueue(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
				e.logger.Error().Err(err).Msg("drain pass failed")
			}
		}
	}
}

func (e *Engine) processItem(ctx context.Context, item *models.QueueItem, rest []models.QueueItem) error {
	var callErr error
	switch item.Op {
	case models.OpCreate:
		var serverID string
		serverID, callErr = e.remote.CreateEntity(ctx, item.Collection, item.Payload)
		if callErr == nil {
			if err := e.reconcileID(ctx, item, serverID, rest); err != nil {
				return err
			}
		}
	case models.OpUpdate:
		callErr = e.remote.UpdateEntity(ctx, item.Collection, item.EntityID, item.Payload)
	case models.OpDelete:
		callErr = e.remote.DeleteEntity(ctx, item.Collection, item.EntityID)
	default:
		callErr = fmt.Errorf("unknown queue op: %s", item.Op)
	}

	if callErr != nil {
		metrics.IncSyncAttempt("failure")
		e.retryOrFail(ctx, item, callErr)
		return callErr
	}

	if err := e.db.DequeueQueueItem(ctx, item.ID); err != nil {
		e.logger.Error().Err(err).Int64("item_id", item.ID).Msg("dequeue after success failed")
		return err
	}
	metrics.IncSyncAttempt("success")
	return nil
}

// reconcileID swaps the temporary local id for the server-assigned one in
// the local store and in any later queue items still referencing it. The
// current pass works off a snapshot, so the not-yet-processed items of the
// same pass get the same rewrite in memory.
func (e *Engine) reconcileID(ctx context.Context, item *models.QueueItem, serverID string, rest []models.QueueItem) error {
	if serverID == "" || serverID == item.EntityID {
		return nil
	}
	if !strings.HasPrefix(item.EntityID, models.LocalIDPrefix) {
		return nil
	}

	if err := e.db.ReplaceEntityID(ctx, item.Collection, item.EntityID, serverID); err != nil {
		return err
	}
	if err := e.db.RewriteQueueEntityID(ctx, item.Collection, item.EntityID, serverID); err != nil {
		return err
	}

	for j := range rest {
		if rest[j].Collection != item.Collection {
			continue
		}
		if rest[j].EntityID == item.EntityID {
			rest[j].EntityID = serverID
		}
		rest[j].Payload = strings.ReplaceAll(rest[j].Payload, item.EntityID, serverID)
	}

	e.logger.Debug().
		Str("collection", item.Collection).
		Str("local_id", item.EntityID).
		Str("server_id", serverID).
		Msg("reconciled local id")
	return nil
}

func (e *Engine) retryOrFail(ctx context.Context, item *models.QueueItem, cause error) {
	attempt := item.Attempts + 1
	if attempt >= e.retryPolicy.MaxRetries {
		if err := e.db.UpdateQueueItemStatus(ctx, item.ID, models.QueueStatusFailed, cause.Error(), nil); err != nil {
			e.logger.Error().Err(err).Int64("item_id", item.ID).Msg("mark failed")
		}
		e.pushDeadLetter(ctx, item, cause)
		_ = e.events.PublishJSON(events.EventSyncItemFailed, events.SyncEventPayload{
			QueueItemID: item.ID,
			Op:          item.Op,
			Collection:  item.Collection,
			EntityID:    item.EntityID,
			Attempts:    attempt,
			Error:       cause.Error(),
		})
		return
	}

	nextDelay := e.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := e.db.UpdateQueueItemStatus(ctx, item.ID, models.QueueStatusRetrying, cause.Error(), &nextTime); err != nil {
		e.logger.Error().Err(err).Int64("item_id", item.ID).Msg("mark retrying")
	}
}

func (e *Engine) pushDeadLetter(ctx context.Context, item *models.QueueItem, cause error) {
	if e.redis == nil {
		return
	}
	item.LastError = strPtr(cause.Error())
	data, err := json.Marshal(item)
	if err != nil {
		e.logger.Error().Err(err).Int64("item_id", item.ID).Msg("encode deadletter")
		return
	}
	if err := e.redis.LPush(ctx, e.deadLetterKey, data).Err(); err != nil {
		e.logger.Error().Err(err).Int64("item_id", item.ID).Msg("deadletter push")
	}
}

func strPtr(s string) *string { return &s }

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"todone/internal/database"
	"todone/internal/events"
	"todone/internal/models"
	"todone/internal/state"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeRemote struct {
	mu          sync.Mutex
	createErr   error
	updateErr   error
	deleteErr   error
	nextID      int
	createCalls    []string
	updateCalls    []string
	updatePayloads []string
	deleteCalls    []string
}

func (f *fakeRemote) CreateEntity(ctx context.Context, collection, payload string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	f.createCalls = append(f.createCalls, payload)
	return fmt.Sprintf("srv-%d", f.nextID), nil
}

func (f *fakeRemote) UpdateEntity(ctx context.Context, collection, id, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updateCalls = append(f.updateCalls, id)
	f.updatePayloads = append(f.updatePayloads, payload)
	return nil
}

func (f *fakeRemote) DeleteEntity(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleteCalls = append(f.deleteCalls, id)
	return nil
}

func (f *fakeRemote) Health(ctx context.Context) error { return nil }

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func newTestEngine(t *testing.T, db *database.DB, remote *fakeRemote, redisClient *redis.Client, retry RetryPolicy) (*Engine, *state.Store) {
	t.Helper()
	stateStore := state.New()
	logger := zerolog.Nop()
	engine := NewEngine(db, remote, stateStore, events.NewEventBus(), redisClient, retry, &logger)
	return engine, stateStore
}

func TestProcessSyncQueue_DrainsInOrder(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	remote := &fakeRemote{}
	engine, stateStore := newTestEngine(t, db, remote, nil, RetryPolicy{})

	for _, id := range []string{"a", "b", "c"} {
		item := &models.QueueItem{Op: models.OpUpdate, Collection: models.CollectionTasks, EntityID: id, Payload: "{}"}
		if err := db.EnqueueQueueItem(ctx, item); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	if err := engine.ProcessSyncQueue(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(remote.updateCalls) != 3 {
		t.Fatalf("expected 3 update calls, got %d", len(remote.updateCalls))
	}
	for i, want := range []string{"a", "b", "c"} {
		if remote.updateCalls[i] != want {
			t.Fatalf("call %d: expected %s, got %s", i, want, remote.updateCalls[i])
		}
	}

	count, err := db.CountPendingQueueItems(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty queue, got %d", count)
	}

	status := stateStore.Snapshot()
	if status.PendingOperations != 0 {
		t.Fatalf("expected 0 pending, got %d", status.PendingOperations)
	}
	if status.LastSynced == nil {
		t.Fatalf("expected last synced to be set")
	}
	if status.IsSyncing {
		t.Fatalf("syncing flag must be cleared after the pass")
	}
}

func TestProcessSyncQueue_CreateReconcilesLocalID(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	// A task created offline, then edited offline before the first sync.
	localID := "local-abc"
	if err := db.UpsertTask(ctx, &models.Task{ID: localID, Title: "Buy milk"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	createItem := &models.QueueItem{Op: models.OpCreate, Collection: models.CollectionTasks, EntityID: localID, Payload: `{"id":"local-abc","title":"Buy milk"}`}
	if err := db.EnqueueQueueItem(ctx, createItem); err != nil {
		t.Fatalf("enqueue create: %v", err)
	}
	updateItem := &models.QueueItem{Op: models.OpUpdate, Collection: models.CollectionTasks, EntityID: localID, Payload: `{"id":"local-abc","title":"Buy oat milk"}`}
	if err := db.EnqueueQueueItem(ctx, updateItem); err != nil {
		t.Fatalf("enqueue update: %v", err)
	}

	remote := &fakeRemote{nextID: 41} // first assigned id will be srv-42
	engine, _ := newTestEngine(t, db, remote, nil, RetryPolicy{})

	if err := engine.ProcessSyncQueue(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}

	// Local mirror now carries the server id.
	task, err := db.GetTask(ctx, "srv-42")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task == nil {
		t.Fatalf("expected task under server id")
	}

	// The later update, queued before the create was confirmed, was replayed
	// in the same pass against the server id, not the local one.
	if len(remote.updateCalls) != 1 || remote.updateCalls[0] != "srv-42" {
		t.Fatalf("expected update against srv-42, got %v", remote.updateCalls)
	}
	if remote.updatePayloads[0] != `{"id":"srv-42","title":"Buy oat milk"}` {
		t.Fatalf("expected rewritten payload, got %s", remote.updatePayloads[0])
	}

	count, _ := db.CountPendingQueueItems(ctx)
	if count != 0 {
		t.Fatalf("expected empty queue, got %d", count)
	}
}

func TestProcessSyncQueue_FailureMarksRetrying(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	item := &models.QueueItem{Op: models.OpUpdate, Collection: models.CollectionTasks, EntityID: "a", Payload: "{}"}
	if err := db.EnqueueQueueItem(ctx, item); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	remote := &fakeRemote{updateErr: errors.New("boom")}
	engine, stateStore := newTestEngine(t, db, remote, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Hour})

	if err := engine.ProcessSyncQueue(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}

	// Backoff keeps the item out of the next snapshot but it is still pending.
	items, err := db.ListPendingQueueItems(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no ready items during backoff, got %d", len(items))
	}
	count, _ := db.CountPendingQueueItems(ctx)
	if count != 1 {
		t.Fatalf("expected 1 pending item, got %d", count)
	}
	if stateStore.Snapshot().PendingOperations != 1 {
		t.Fatalf("state should report the retrying item as pending")
	}
}

func TestProcessSyncQueue_DeadLetterAtRetryCap(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	item := &models.QueueItem{Op: models.OpDelete, Collection: models.CollectionTasks, EntityID: "gone"}
	if err := db.EnqueueQueueItem(ctx, item); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	remote := &fakeRemote{deleteErr: errors.New("server rejected")}
	engine, _ := newTestEngine(t, db, remote, redisClient, RetryPolicy{MaxRetries: 1})

	if err := engine.ProcessSyncQueue(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}

	failed, err := db.GetFailedQueueItems(ctx)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed item, got %d", len(failed))
	}
	if failed[0].LastError == nil || *failed[0].LastError != "server rejected" {
		t.Fatalf("expected last error recorded, got %v", failed[0].LastError)
	}

	raw, err := redisClient.LPop(ctx, engine.deadLetterKey).Result()
	if err != nil {
		t.Fatalf("expected dead letter entry: %v", err)
	}
	var dead models.QueueItem
	if err := json.Unmarshal([]byte(raw), &dead); err != nil {
		t.Fatalf("decode dead letter: %v", err)
	}
	if dead.EntityID != "gone" {
		t.Fatalf("expected dead letter for entity gone, got %s", dead.EntityID)
	}
}

func TestProcessSyncQueue_Reentrancy(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	engine, _ := newTestEngine(t, db, &fakeRemote{}, nil, RetryPolicy{})

	engine.inFlight.Store(true)
	err := engine.ProcessSyncQueue(context.Background())
	if !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	engine.inFlight.Store(false)

	if err := engine.ProcessSyncQueue(context.Background()); err != nil {
		t.Fatalf("expected pass to run after guard release: %v", err)
	}
}

func TestNeedsSync(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	engine, stateStore := newTestEngine(t, db, &fakeRemote{}, nil, RetryPolicy{})

	if engine.NeedsSync(ctx) {
		t.Fatalf("empty queue must not need sync")
	}

	item := &models.QueueItem{Op: models.OpCreate, Collection: models.CollectionTasks, EntityID: "a", Payload: "{}"}
	if err := db.EnqueueQueueItem(ctx, item); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if !engine.NeedsSync(ctx) {
		t.Fatalf("pending item while online must need sync")
	}

	stateStore.SetOffline(true)
	if engine.NeedsSync(ctx) {
		t.Fatalf("offline device must not need sync")
	}
}

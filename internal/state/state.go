// Package state holds the process-wide observable sync status consumed by
// front ends. It is a plain container: persistence of the snapshot is a
// subscriber registered at wiring time, not an inline call in mutators.
package state

import (
	"sync"
	"time"

	"todone/internal/models"
)

// Listener receives a copy of the status after every change.
type Listener func(models.SyncStatus)

// Store is the offline state store. The zero value is not usable; call New.
type Store struct {
	mu        sync.RWMutex
	status    models.SyncStatus
	listeners []Listener
}

// New returns a store initialized to online, idle, no pending changes.
func New() *Store {
	return &Store{}
}

// Snapshot returns a copy of the current status.
func (s *Store) Snapshot() models.SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Subscribe registers a listener invoked after every state change. The
// listener runs synchronously on the mutating goroutine.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// SetOffline flips connectivity. Driven by the connectivity watcher.
func (s *Store) SetOffline(offline bool) {
	s.update(func(st *models.SyncStatus) {
		st.IsOffline = offline
	})
}

// SetSyncing marks the start or end of a drain pass.
func (s *Store) SetSyncing(syncing bool) {
	s.update(func(st *models.SyncStatus) {
		st.IsSyncing = syncing
	})
}

// SetPendingOperations updates the pending-change count.
func (s *Store) SetPendingOperations(n int) {
	s.update(func(st *models.SyncStatus) {
		st.PendingOperations = n
	})
}

// SetLastSynced records a completed drain pass.
func (s *Store) SetLastSynced(t time.Time) {
	s.update(func(st *models.SyncStatus) {
		st.LastSynced = &t
	})
}

// Reset returns the store to its initial defaults. Used on logout/clear.
func (s *Store) Reset() {
	s.update(func(st *models.SyncStatus) {
		*st = models.SyncStatus{}
	})
}

// Restore seeds the status from a persisted snapshot at startup.
func (s *Store) Restore(snapshot *models.OfflineSnapshot, pending int) {
	if snapshot == nil {
		return
	}
	s.update(func(st *models.SyncStatus) {
		st.LastSynced = snapshot.LastSynced
		st.PendingOperations = pending
	})
}

func (s *Store) update(mutate func(*models.SyncStatus)) {
	s.mu.Lock()
	mutate(&s.status)
	status := s.status
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(status)
	}
}

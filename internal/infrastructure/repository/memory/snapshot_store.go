package memory

import (
	"context"
	"sync"

	"github.com/touchline/matchclock/internal/domain/snapshot"
)

// SnapshotStore keeps timer snapshots in process memory. It backs the
// offline-only deployment and every test that does not need postgres.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]snapshot.Snapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]snapshot.Snapshot)}
}

// NewSnapshotStoreSeeded pre-loads records under explicit storage keys.
// The legacy single-global timer record is the one case where the storage
// key and the record's game ID differ.
func NewSnapshotStoreSeeded(seed map[string]snapshot.Snapshot) *SnapshotStore {
	snapshots := make(map[string]snapshot.Snapshot, len(seed))
	for key, snap := range seed {
		snapshots[key] = snap
	}
	return &SnapshotStore{snapshots: snapshots}
}

func (s *SnapshotStore) Save(_ context.Context, snap snapshot.Snapshot) error {
	s.mu.Lock()
	s.snapshots[snap.GameID] = snap
	s.mu.Unlock()
	return nil
}

func (s *SnapshotStore) Get(_ context.Context, gameID string) (snapshot.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[gameID]
	return snap, ok, nil
}

func (s *SnapshotStore) Delete(_ context.Context, gameID string) error {
	s.mu.Lock()
	delete(s.snapshots, gameID)
	s.mu.Unlock()
	return nil
}

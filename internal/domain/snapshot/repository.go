package snapshot

import "context"

// Store is the durable owner of timer snapshots. Implementations must be
// safe to call concurrently for distinct game IDs; no cross-key transaction
// is assumed.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Get(ctx context.Context, gameID string) (Snapshot, bool, error)
	Delete(ctx context.Context, gameID string) error
}

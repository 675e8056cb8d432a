package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/touchline/matchclock/internal/domain/snapshot"
)

type snapshotRow struct {
	GameID         string    `db:"game_id"`
	ElapsedSeconds float64   `db:"elapsed_seconds"`
	SavedAt        time.Time `db:"saved_at"`
}

// SnapshotStore persists timer snapshots in the timer_snapshots table.
type SnapshotStore struct {
	db *sqlx.DB
}

func NewSnapshotStore(db *sqlx.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Save(ctx context.Context, snap snapshot.Snapshot) error {
	const query = `
		INSERT INTO timer_snapshots (game_id, elapsed_seconds, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (game_id)
		DO UPDATE SET elapsed_seconds = EXCLUDED.elapsed_seconds, saved_at = EXCLUDED.saved_at`

	if _, err := s.db.ExecContext(ctx, query, snap.GameID, snap.ElapsedSeconds, snap.Timestamp); err != nil {
		return fmt.Errorf("save timer snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Get(ctx context.Context, gameID string) (snapshot.Snapshot, bool, error) {
	const query = `
		SELECT game_id, elapsed_seconds, saved_at
		FROM timer_snapshots
		WHERE game_id = $1`

	var row snapshotRow
	if err := s.db.GetContext(ctx, &row, query, gameID); err != nil {
		if isNotFound(err) {
			return snapshot.Snapshot{}, false, nil
		}
		return snapshot.Snapshot{}, false, fmt.Errorf("get timer snapshot: %w", err)
	}

	return snapshot.Snapshot{
		GameID:         row.GameID,
		ElapsedSeconds: row.ElapsedSeconds,
		Timestamp:      row.SavedAt,
	}, true, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, gameID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM timer_snapshots WHERE game_id = $1`, gameID); err != nil {
		return fmt.Errorf("delete timer snapshot: %w", err)
	}
	return nil
}

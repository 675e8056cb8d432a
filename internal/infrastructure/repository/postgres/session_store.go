package postgres

import (
	"context"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/touchline/matchclock/internal/domain/session"
)

type gameRecordRow struct {
	GameID    string    `db:"game_id"`
	Payload   []byte    `db:"payload"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SessionStore persists game-session aggregates as JSONB payloads in the
// game_records table.
type SessionStore struct {
	db *sqlx.DB
}

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Save(ctx context.Context, state session.State) error {
	payload, err := sonic.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal game record: %w", err)
	}

	const query = `
		INSERT INTO game_records (game_id, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (game_id)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, state.GameID, payload); err != nil {
		return fmt.Errorf("save game record: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, gameID string) (session.State, bool, error) {
	const query = `SELECT game_id, payload, updated_at FROM game_records WHERE game_id = $1`

	var row gameRecordRow
	if err := s.db.GetContext(ctx, &row, query, gameID); err != nil {
		if isNotFound(err) {
			return session.State{}, false, nil
		}
		return session.State{}, false, fmt.Errorf("get game record: %w", err)
	}

	state, err := decodeGameRecord(row)
	if err != nil {
		return session.State{}, false, err
	}
	return state, true, nil
}

func (s *SessionStore) Delete(ctx context.Context, gameID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM game_records WHERE game_id = $1`, gameID); err != nil {
		return fmt.Errorf("delete game record: %w", err)
	}
	return nil
}

func (s *SessionStore) List(ctx context.Context) ([]session.State, error) {
	const query = `SELECT game_id, payload, updated_at FROM game_records ORDER BY game_id`

	var rows []gameRecordRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list game records: %w", err)
	}

	out := make([]session.State, 0, len(rows))
	for _, row := range rows {
		state, err := decodeGameRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	return out, nil
}

func decodeGameRecord(row gameRecordRow) (session.State, error) {
	var state session.State
	if err := sonic.Unmarshal(row.Payload, &state); err != nil {
		return session.State{}, fmt.Errorf("decode game record %q: %w", row.GameID, err)
	}
	if state.GameID == "" {
		state.GameID = row.GameID
	}
	return state, nil
}

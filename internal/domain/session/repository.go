package session

import "context"

// Store persists whole game-session aggregates keyed by game ID.
type Store interface {
	Save(ctx context.Context, state State) error
	Get(ctx context.Context, gameID string) (State, bool, error)
	Delete(ctx context.Context, gameID string) error
	List(ctx context.Context) ([]State, error)
}

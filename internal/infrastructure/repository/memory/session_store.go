package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/touchline/matchclock/internal/domain/session"
)

// SessionStore keeps whole game-session aggregates in process memory.
type SessionStore struct {
	mu    sync.RWMutex
	games map[string]session.State
}

func NewSessionStore(seed []session.State) *SessionStore {
	games := make(map[string]session.State, len(seed))
	for _, item := range seed {
		games[item.GameID] = item
	}
	return &SessionStore{games: games}
}

func (s *SessionStore) Save(_ context.Context, state session.State) error {
	s.mu.Lock()
	s.games[state.GameID] = state
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Get(_ context.Context, gameID string) (session.State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.games[gameID]
	return state, ok, nil
}

func (s *SessionStore) Delete(_ context.Context, gameID string) error {
	s.mu.Lock()
	delete(s.games, gameID)
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) List(_ context.Context) ([]session.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]session.State, 0, len(s.games))
	for _, state := range s.games {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out, nil
}

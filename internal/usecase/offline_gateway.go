package usecase

import (
	"context"
	"fmt"

	"github.com/touchline/matchclock/internal/domain/session"
)

// OfflineGateway stands in when no sync gate is configured. Uploads fail
// fast and downloads find nothing; the local store is the whole world.
type OfflineGateway struct{}

func (OfflineGateway) PushGame(context.Context, session.State) error {
	return fmt.Errorf("%w: sync gate is not configured", ErrDependencyUnavailable)
}

func (OfflineGateway) PullGame(context.Context, string) (session.State, bool, error) {
	return session.State{}, false, nil
}

func (OfflineGateway) ListGames(context.Context) ([]session.State, error) {
	return nil, nil
}

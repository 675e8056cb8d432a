package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/touchline/matchclock/internal/domain/session"
	"github.com/touchline/matchclock/internal/infrastructure/repository/memory"
	"github.com/touchline/matchclock/internal/platform/id"
	"github.com/touchline/matchclock/internal/platform/logging"
	"github.com/touchline/matchclock/internal/platform/progress"
	"github.com/touchline/matchclock/internal/platform/sequence"
)

type fakeGateway struct {
	mu       sync.Mutex
	pushed   []string
	remote   map[string]session.State
	pushErrs map[string]error
	listErr  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		remote:   make(map[string]session.State),
		pushErrs: make(map[string]error),
	}
}

func (f *fakeGateway) PushGame(_ context.Context, state session.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pushErrs[state.GameID]; err != nil {
		delete(f.pushErrs, state.GameID)
		return err
	}
	f.pushed = append(f.pushed, state.GameID)
	f.remote[state.GameID] = state
	return nil
}

func (f *fakeGateway) PullGame(_ context.Context, gameID string) (session.State, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.remote[gameID]
	return state, ok, nil
}

func (f *fakeGateway) ListGames(_ context.Context) ([]session.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	states := make([]session.State, 0, len(f.remote))
	for _, state := range f.remote {
		states = append(states, state)
	}
	return states, nil
}

func (f *fakeGateway) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushed)
}

func newSyncFixture(seed []session.State) (*SyncService, *memory.SessionStore, *fakeGateway) {
	games := memory.NewSessionStore(seed)
	gateway := newFakeGateway()
	queue := sequence.NewQueue(logging.Default())
	tracker := progress.NewTracker(id.NewPrefixedGenerator("sync"))
	return NewSyncService(games, gateway, queue, tracker, nil), games, gateway
}

func TestUploadGame(t *testing.T) {
	t.Parallel()

	state := session.NewState(session.Settings{GameID: "g1"})
	svc, _, gateway := newSyncFixture([]session.State{state})

	require.NoError(t, svc.UploadGame(context.Background(), "g1"))
	require.Equal(t, 1, gateway.pushCount())

	snap := svc.Status()
	require.Len(t, snap.Operations, 1)
	require.Equal(t, progress.StatusCompleted, snap.Operations[0].Status)
	require.Equal(t, 100, snap.Operations[0].Progress)
	require.False(t, snap.IsActive)
}

func TestUploadGameMissingLocally(t *testing.T) {
	t.Parallel()

	svc, _, _ := newSyncFixture(nil)

	err := svc.UploadGame(context.Background(), "g1")
	require.ErrorIs(t, err, ErrNotFound)

	snap := svc.Status()
	require.Len(t, snap.Operations, 1)
	require.Equal(t, progress.StatusFailed, snap.Operations[0].Status)
	require.NotEmpty(t, snap.Operations[0].Err)
	require.Equal(t, 1, snap.FailedCount)
}

func TestDownloadGame(t *testing.T) {
	t.Parallel()

	svc, games, gateway := newSyncFixture(nil)
	gateway.remote["g1"] = session.NewState(session.Settings{GameID: "g1", Opponent: "Rovers"})

	require.NoError(t, svc.DownloadGame(context.Background(), "g1"))

	stored, ok, err := games.Get(context.Background(), "g1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Rovers", stored.Opponent)
}

func TestDownloadGameAbsentUpstreamIsNotAnError(t *testing.T) {
	t.Parallel()

	svc, games, _ := newSyncFixture(nil)

	require.NoError(t, svc.DownloadGame(context.Background(), "g1"))

	_, ok, err := games.Get(context.Background(), "g1")
	require.NoError(t, err)
	require.False(t, ok)

	snap := svc.Status()
	require.Equal(t, progress.StatusCompleted, snap.Operations[0].Status)
}

func TestSyncAllUploadsEveryStoredGame(t *testing.T) {
	t.Parallel()

	seed := []session.State{
		session.NewState(session.Settings{GameID: "g1"}),
		session.NewState(session.Settings{GameID: "g2"}),
		session.NewState(session.Settings{GameID: "g3"}),
	}
	svc, _, gateway := newSyncFixture(seed)

	require.NoError(t, svc.SyncAll(context.Background()))
	require.Equal(t, 3, gateway.pushCount())

	snap := svc.Status()
	require.Len(t, snap.Operations, 3)
	require.Zero(t, snap.FailedCount)
}

func TestReconcilePullsOnlyUnknownGames(t *testing.T) {
	t.Parallel()

	local := session.NewState(session.Settings{GameID: "g1", Opponent: "Local Copy"})
	svc, games, gateway := newSyncFixture([]session.State{local})
	gateway.remote["g1"] = session.NewState(session.Settings{GameID: "g1", Opponent: "Remote Copy"})
	gateway.remote["g2"] = session.NewState(session.Settings{GameID: "g2"})

	require.NoError(t, svc.Reconcile(context.Background()))

	stored, _, err := games.Get(context.Background(), "g1")
	require.NoError(t, err)
	require.Equal(t, "Local Copy", stored.Opponent)

	_, ok, err := games.Get(context.Background(), "g2")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRetryFailedRerunsAndClears(t *testing.T) {
	t.Parallel()

	state := session.NewState(session.Settings{GameID: "g1"})
	svc, _, gateway := newSyncFixture([]session.State{state})
	gateway.pushErrs["g1"] = errors.New("gateway down")

	require.Error(t, svc.UploadGame(context.Background(), "g1"))

	before := svc.Status()
	require.Equal(t, 1, before.FailedCount)
	require.Len(t, before.Operations, 1)
	failedID := before.Operations[0].ID

	require.NoError(t, svc.RetryFailed(context.Background()))

	snap := svc.Status()
	require.Zero(t, snap.FailedCount)
	require.Equal(t, 1, gateway.pushCount())

	// The retry re-runs the original tracker entry rather than minting a
	// replacement.
	require.Len(t, snap.Operations, 1)
	require.Equal(t, failedID, snap.Operations[0].ID)
	require.Equal(t, progress.StatusCompleted, snap.Operations[0].Status)
}

func TestRetryFailedNoFailures(t *testing.T) {
	t.Parallel()

	svc, _, _ := newSyncFixture(nil)
	require.NoError(t, svc.RetryFailed(context.Background()))
}

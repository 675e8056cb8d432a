package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/touchline/matchclock/internal/domain/session"
	"github.com/touchline/matchclock/internal/platform/logging"
	"github.com/touchline/matchclock/internal/platform/progress"
	"github.com/touchline/matchclock/internal/platform/sequence"
)

const (
	opTypeUpload   = "upload"
	opTypeDownload = "download"

	syncFanOut = 4
)

// RemoteGateway is the upstream sync endpoint for whole game records.
type RemoteGateway interface {
	PushGame(ctx context.Context, state session.State) error
	PullGame(ctx context.Context, gameID string) (session.State, bool, error)
	ListGames(ctx context.Context) ([]session.State, error)
}

// SyncService moves game records between the local store and the remote
// gateway. Individual transfers are serialized through the sequence queue
// so uploads and downloads of the same data never interleave; SyncAll fans
// out across games but each transfer still joins the queue.
type SyncService struct {
	games   session.Store
	gateway RemoteGateway
	queue   *sequence.Queue
	tracker *progress.Tracker
	logger  *logging.Logger
}

func NewSyncService(games session.Store, gateway RemoteGateway, queue *sequence.Queue, tracker *progress.Tracker, logger *logging.Logger) *SyncService {
	if logger == nil {
		logger = logging.Default()
	}
	return &SyncService{
		games:   games,
		gateway: gateway,
		queue:   queue,
		tracker: tracker,
		logger:  logger,
	}
}

// UploadGame pushes one stored game record upstream.
func (s *SyncService) UploadGame(ctx context.Context, gameID string) error {
	if gameID == "" {
		return fmt.Errorf("%w: game id required", ErrInvalidInput)
	}

	opID, err := s.tracker.Add(opTypeUpload, gameID)
	if err != nil {
		return err
	}
	return s.runUpload(ctx, opID, gameID)
}

func (s *SyncService) runUpload(ctx context.Context, opID, gameID string) error {
	_, err := s.queue.Do(ctx, "upload:"+gameID, func(ctx context.Context) (any, error) {
		s.markSyncing(opID)

		state, ok, err := s.games.Get(ctx, gameID)
		if err != nil {
			return nil, fmt.Errorf("read game %s: %w", gameID, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
		}

		s.markProgress(opID, 50)
		if err := s.gateway.PushGame(ctx, state); err != nil {
			return nil, fmt.Errorf("push game %s: %w", gameID, err)
		}
		return nil, nil
	})
	s.finish(opID, err)
	return err
}

// DownloadGame pulls one game record from upstream into the local store.
// A record missing upstream is not an error; the local copy is untouched.
func (s *SyncService) DownloadGame(ctx context.Context, gameID string) error {
	if gameID == "" {
		return fmt.Errorf("%w: game id required", ErrInvalidInput)
	}

	opID, err := s.tracker.Add(opTypeDownload, gameID)
	if err != nil {
		return err
	}
	return s.runDownload(ctx, opID, gameID)
}

func (s *SyncService) runDownload(ctx context.Context, opID, gameID string) error {
	_, err := s.queue.Do(ctx, "download:"+gameID, func(ctx context.Context) (any, error) {
		s.markSyncing(opID)

		state, ok, err := s.gateway.PullGame(ctx, gameID)
		if err != nil {
			return nil, fmt.Errorf("pull game %s: %w", gameID, err)
		}
		if !ok {
			s.logger.InfoContext(ctx, "game absent upstream, skipping download", "game_id", gameID)
			return nil, nil
		}

		s.markProgress(opID, 50)
		if err := s.games.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("store game %s: %w", gameID, err)
		}
		return nil, nil
	})
	s.finish(opID, err)
	return err
}

// SyncAll uploads every locally stored game. Transfers run through a
// bounded worker group; the first error is returned after all finish.
func (s *SyncService) SyncAll(ctx context.Context) error {
	states, err := s.games.List(ctx)
	if err != nil {
		return fmt.Errorf("list games for sync: %w", err)
	}

	grp := pool.New().WithContext(ctx).WithMaxGoroutines(syncFanOut)
	for _, state := range states {
		gameID := state.GameID
		grp.Go(func(ctx context.Context) error {
			return s.UploadGame(ctx, gameID)
		})
	}
	return grp.Wait()
}

// Reconcile pulls the upstream game list and stores any games that do not
// exist locally yet. Locally known games are left alone; the local copy is
// authoritative while a match may be live.
func (s *SyncService) Reconcile(ctx context.Context) error {
	remoteStates, err := s.gateway.ListGames(ctx)
	if err != nil {
		return fmt.Errorf("list upstream games: %w", err)
	}

	grp := pool.New().WithContext(ctx).WithMaxGoroutines(syncFanOut)
	for _, remote := range remoteStates {
		remote := remote
		grp.Go(func(ctx context.Context) error {
			_, exists, err := s.games.Get(ctx, remote.GameID)
			if err != nil {
				return fmt.Errorf("probe game %s: %w", remote.GameID, err)
			}
			if exists {
				return nil
			}
			return s.DownloadGame(ctx, remote.GameID)
		})
	}
	return grp.Wait()
}

// Status reports the aggregated sync view.
func (s *SyncService) Status() progress.Snapshot {
	return s.tracker.Snapshot()
}

// RetryFailed flips failed operations back to pending and re-runs them.
func (s *SyncService) RetryFailed(ctx context.Context) error {
	snap := s.tracker.Snapshot()

	var failed []progress.Operation
	for _, op := range snap.Operations {
		if op.Status == progress.StatusFailed {
			failed = append(failed, op)
		}
	}
	if len(failed) == 0 {
		return nil
	}

	// Failed entries flip back to pending in place, then each one re-runs
	// under its original operation id.
	s.tracker.RetryFailed()

	grp := pool.New().WithContext(ctx).WithMaxGoroutines(syncFanOut)
	for _, op := range failed {
		op := op
		grp.Go(func(ctx context.Context) error {
			switch op.Type {
			case opTypeDownload:
				return s.runDownload(ctx, op.ID, op.Resource)
			default:
				return s.runUpload(ctx, op.ID, op.Resource)
			}
		})
	}
	return grp.Wait()
}

// ClearCompleted drops finished entries from the tracker.
func (s *SyncService) ClearCompleted() {
	s.tracker.ClearCompleted()
}

// Run drives the tracker's periodic sweep until the context ends. A
// non-positive interval falls back to the tracker default.
func (s *SyncService) Run(ctx context.Context, sweepInterval time.Duration) {
	s.tracker.Run(ctx, sweepInterval)
}

func (s *SyncService) markSyncing(opID string) {
	status := progress.StatusSyncing
	s.tracker.Update(opID, progress.Update{Status: &status})
}

func (s *SyncService) markProgress(opID string, pct int) {
	s.tracker.Update(opID, progress.Update{Progress: &pct})
}

func (s *SyncService) finish(opID string, err error) {
	if err != nil {
		status := progress.StatusFailed
		msg := err.Error()
		s.tracker.Update(opID, progress.Update{Status: &status, Err: &msg})
		return
	}
	status := progress.StatusCompleted
	s.tracker.Update(opID, progress.Update{Status: &status})
}

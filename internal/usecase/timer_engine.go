package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/panjf2000/ants/v2"
	"github.com/touchline/matchclock/internal/domain/session"
	"github.com/touchline/matchclock/internal/domain/snapshot"
	"github.com/touchline/matchclock/internal/platform/logging"
)

const (
	tickInterval        = time.Second
	persistTimeout      = 5 * time.Second
	defaultPersistPool  = 4
	wakeLockAcquireWait = 3 * time.Second
)

// TimerEngine owns the game-session aggregate and drives its clock forward
// once per second while the match runs. Ticks are synchronous reducer
// transitions; snapshot persistence is fire-and-forget through a bounded
// worker pool so a slow store never stalls the clock.
type TimerEngine struct {
	mu    sync.Mutex
	state session.State

	snapshots snapshot.Store
	clock     clockwork.Clock
	logger    *logging.Logger
	pool      *ants.Pool
	wakeLock  WakeLock

	tickStop chan struct{}
	ticking  bool
	hidden   bool
	// pausedForHide records that the hide transition stopped a running
	// clock; a show only resumes what the hide itself paused.
	pausedForHide bool
	lockHeld bool
	lockGen  uint64
	closed   bool
}

type EngineOption func(*TimerEngine)

func WithEngineClock(clock clockwork.Clock) EngineOption {
	return func(e *TimerEngine) { e.clock = clock }
}

func WithEngineLogger(logger *logging.Logger) EngineOption {
	return func(e *TimerEngine) { e.logger = logger }
}

func WithWakeLock(lock WakeLock) EngineOption {
	return func(e *TimerEngine) { e.wakeLock = lock }
}

func NewTimerEngine(snapshots snapshot.Store, initial session.State, opts ...EngineOption) (*TimerEngine, error) {
	e := &TimerEngine{
		state:     session.Normalize(initial),
		snapshots: snapshots,
		clock:     clockwork.NewRealClock(),
		logger:    logging.Default(),
		wakeLock:  NoopWakeLock{},
	}
	for _, opt := range opts {
		opt(e)
	}

	pool, err := ants.NewPool(defaultPersistPool, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create persist pool: %w", err)
	}
	e.pool = pool
	return e, nil
}

// MigrateLegacy converts the pre-keyed single-global timer record, if one
// exists, into a snapshot keyed by its game ID and deletes the old record.
// Runs once at startup.
func (e *TimerEngine) MigrateLegacy(ctx context.Context) error {
	legacy, ok, err := e.snapshots.Get(ctx, snapshot.LegacyKey)
	if err != nil {
		return fmt.Errorf("read legacy timer record: %w", err)
	}
	if !ok {
		return nil
	}

	if legacy.GameID != "" && legacy.GameID != snapshot.LegacyKey {
		if err := e.snapshots.Save(ctx, legacy); err != nil {
			return fmt.Errorf("migrate legacy timer record: %w", err)
		}
		e.logger.InfoContext(ctx, "migrated legacy timer record", "game_id", legacy.GameID)
	}

	if err := e.snapshots.Delete(ctx, snapshot.LegacyKey); err != nil {
		return fmt.Errorf("delete legacy timer record: %w", err)
	}
	return nil
}

// Dispatch routes an action through the reducer and reconciles the ticker
// and wake lock with the resulting state. This is the only mutation path.
func (e *TimerEngine) Dispatch(action session.Action) session.State {
	e.mu.Lock()
	e.state = session.Reduce(e.state, action)
	out := e.state
	e.syncRuntimeLocked()
	e.mu.Unlock()
	return out
}

func (e *TimerEngine) State() session.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Load replaces the aggregate with a stored game. The clock never resumes
// running straight off a load.
func (e *TimerEngine) Load(state session.State) session.State {
	e.mu.Lock()
	e.state = session.Normalize(state)
	e.pausedForHide = false
	out := e.state
	e.syncRuntimeLocked()
	e.mu.Unlock()
	return out
}

// Reset abandons the current match and starts a fresh aggregate. The
// snapshot delete is a precondition: its failure propagates instead of
// leaving a stale recovery record behind.
func (e *TimerEngine) Reset(ctx context.Context, settings session.Settings) (session.State, error) {
	e.mu.Lock()
	gameID := e.state.GameID
	e.mu.Unlock()

	if err := e.snapshots.Delete(ctx, gameID); err != nil {
		return session.State{}, fmt.Errorf("delete timer snapshot for reset: %w", err)
	}

	e.mu.Lock()
	e.state = session.NewState(settings)
	e.pausedForHide = false
	out := e.state
	e.syncRuntimeLocked()
	e.mu.Unlock()
	return out, nil
}

// HandleHidden persists a recovery snapshot before the app backgrounds,
// then pauses the wall-clock reference. The save is awaited; its failure is
// logged but never blocks the pause.
func (e *TimerEngine) HandleHidden(ctx context.Context) {
	e.mu.Lock()
	s := e.state
	e.hidden = true
	wasRunning := s.TimerRunning && s.Status == session.StatusInProgress
	e.pausedForHide = wasRunning
	e.mu.Unlock()

	if !wasRunning {
		return
	}

	snap := snapshot.Snapshot{
		GameID:         s.GameID,
		ElapsedSeconds: s.TimeElapsedSeconds,
		Timestamp:      e.clock.Now(),
	}
	if err := e.snapshots.Save(ctx, snap); err != nil {
		e.logger.WarnContext(ctx, "hide-time snapshot save failed", "game_id", s.GameID, "error", err)
	}

	e.Dispatch(session.PauseForHidden{})
}

// HandleVisible restores the clock from the persisted snapshot for the
// current game, if the preceding hide paused a running clock. The restore
// transition itself performs the wall-clock correction.
func (e *TimerEngine) HandleVisible(ctx context.Context) {
	e.mu.Lock()
	s := e.state
	e.hidden = false
	resume := e.pausedForHide
	e.pausedForHide = false
	e.mu.Unlock()

	// A clock the coach paused before hiding stays paused; only the pause
	// applied by the hide transition is undone here.
	if !resume || s.Status != session.StatusInProgress {
		return
	}

	snap, ok, err := e.snapshots.Get(ctx, s.GameID)
	if err != nil {
		e.logger.WarnContext(ctx, "snapshot read failed on show", "game_id", s.GameID, "error", err)
		return
	}
	if !ok || snap.GameID != s.GameID {
		return
	}

	e.Dispatch(session.RestoreTimerState{
		SavedSeconds: snap.ElapsedSeconds,
		SavedAt:      snap.Timestamp,
		Now:          e.clock.Now(),
	})
}

// Close stops the ticker, releases the wake lock, and drains the persist
// pool. The engine must not be used afterwards.
func (e *TimerEngine) Close() {
	e.mu.Lock()
	e.closed = true
	if e.ticking {
		close(e.tickStop)
		e.ticking = false
	}
	e.releaseWakeLockLocked()
	e.mu.Unlock()

	e.pool.Release()
}

func (e *TimerEngine) syncRuntimeLocked() {
	shouldRun := !e.closed && e.state.TimerRunning && e.state.Status == session.StatusInProgress

	if shouldRun && !e.ticking {
		e.tickStop = make(chan struct{})
		e.ticking = true
		go e.runTicker(e.tickStop)
		e.acquireWakeLockLocked()
	}

	if !shouldRun && e.ticking {
		close(e.tickStop)
		e.ticking = false
		e.releaseWakeLockLocked()
	}
}

func (e *TimerEngine) runTicker(stop <-chan struct{}) {
	ticker := e.clock.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			e.tick()
		}
	}
}

func (e *TimerEngine) tick() {
	e.mu.Lock()
	s := e.state
	if !s.TimerRunning || s.Status != session.StatusInProgress {
		e.mu.Unlock()
		return
	}

	next := math.Round(s.TimeElapsedSeconds) + 1
	boundary := s.PeriodEndSeconds(s.CurrentPeriod)

	if next >= boundary {
		endStatus := session.StatusPeriodEnd
		if s.IsFinalPeriod() {
			endStatus = session.StatusGameEnd
		}
		e.mu.Unlock()

		// The snapshot is removed before the transition so a crash between
		// the two cannot resurrect a finished period on the next launch.
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := e.snapshots.Delete(ctx, s.GameID); err != nil {
			e.logger.Warn("snapshot delete at period end failed", "game_id", s.GameID, "error", err)
		}
		cancel()

		e.Dispatch(session.EndPeriodOrGame{Status: endStatus, FinalSeconds: boundary})
		return
	}

	e.state = session.Reduce(e.state, session.SetTimerElapsed{Seconds: next})
	snap := snapshot.Snapshot{
		GameID:         s.GameID,
		ElapsedSeconds: next,
		Timestamp:      e.clock.Now(),
	}
	e.mu.Unlock()

	e.persistAsync(snap)
}

func (e *TimerEngine) persistAsync(snap snapshot.Snapshot) {
	err := e.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := e.snapshots.Save(ctx, snap); err != nil {
			e.logger.Warn("periodic snapshot save failed", "game_id", snap.GameID, "error", err)
		}
	})
	if err != nil {
		// Pool saturated: the store is slower than the clock. Dropping the
		// write keeps in-flight persistence bounded; the next tick retries.
		e.logger.Warn("periodic snapshot save skipped", "game_id", snap.GameID, "error", err)
	}
}

func (e *TimerEngine) acquireWakeLockLocked() {
	if e.lockHeld {
		return
	}
	e.lockGen++
	go e.acquireWakeLock(e.lockGen)
}

func (e *TimerEngine) acquireWakeLock(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), wakeLockAcquireWait)
	defer cancel()

	if err := e.wakeLock.Acquire(ctx); err != nil {
		e.logger.Debug("wake lock unavailable", "error", err)
		return
	}

	e.mu.Lock()
	if !e.ticking || e.lockGen != gen {
		e.mu.Unlock()
		_ = e.wakeLock.Release(context.Background())
		return
	}
	e.lockHeld = true
	e.mu.Unlock()

	go e.watchRevocation(gen)
}

func (e *TimerEngine) watchRevocation(gen uint64) {
	ch := e.wakeLock.Revoked()
	if ch == nil {
		return
	}
	<-ch

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lockGen != gen {
		return
	}
	e.lockHeld = false
	if e.ticking && !e.hidden {
		e.logger.Debug("wake lock revoked, reacquiring")
		e.acquireWakeLockLocked()
	}
}

func (e *TimerEngine) releaseWakeLockLocked() {
	e.lockGen++
	if !e.lockHeld {
		return
	}
	e.lockHeld = false
	go func() {
		_ = e.wakeLock.Release(context.Background())
	}()
}

package usecase

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/touchline/matchclock/internal/domain/session"
	"github.com/touchline/matchclock/internal/platform/debounce"
	"github.com/touchline/matchclock/internal/platform/logging"
)

// SessionService is the coaching-facing surface of the live game session:
// clock toggle, reset, substitution tracking, and visibility transitions.
// Every mutation flows through the engine's reducer and requests a
// debounced save of the whole game record.
type SessionService struct {
	engine   *TimerEngine
	games    session.Store
	saver    *debounce.Saver
	saverCfg debounce.Config
	clock    clockwork.Clock
	logger   *logging.Logger
}

type SessionOption func(*SessionService)

func WithSessionClock(clock clockwork.Clock) SessionOption {
	return func(s *SessionService) { s.clock = clock }
}

func WithSessionLogger(logger *logging.Logger) SessionOption {
	return func(s *SessionService) { s.logger = logger }
}

func WithSaverConfig(cfg debounce.Config) SessionOption {
	return func(s *SessionService) { s.saverCfg = cfg }
}

func NewSessionService(engine *TimerEngine, games session.Store, opts ...SessionOption) *SessionService {
	s := &SessionService{
		engine: engine,
		games:  games,
		clock:  clockwork.NewRealClock(),
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.saver = debounce.NewSaver(s.persistCurrent, s.saverCfg, debounce.WithClock(s.clock))
	return s
}

func (s *SessionService) State() session.State {
	return s.engine.State()
}

// StartPause toggles the clock. What "toggle" means depends on where the
// match is: it starts period one, pauses or resumes mid-period, or starts
// the next period from a break. Once the game has ended it does nothing.
func (s *SessionService) StartPause(ctx context.Context) (session.State, error) {
	current := s.engine.State()
	now := s.clock.Now()

	var action session.Action
	switch current.Status {
	case session.StatusNotStarted:
		action = session.StartPeriod{Period: 1, Now: now}
	case session.StatusInProgress:
		if current.TimerRunning {
			action = session.PauseForHidden{}
		} else {
			action = session.ResumeFromHidden{Now: now}
		}
	case session.StatusPeriodEnd:
		action = session.StartPeriod{Period: current.CurrentPeriod + 1, Now: now}
	case session.StatusGameEnd:
		return current, nil
	default:
		return current, fmt.Errorf("%w: status %q", ErrInvalidTransition, current.Status)
	}

	next := s.engine.Dispatch(action)
	s.saver.Request()
	return next, nil
}

// Reset abandons the running match and reinitializes from the given
// settings. The stale game record and timer snapshot are both removed
// before the new aggregate exists.
func (s *SessionService) Reset(ctx context.Context, settings session.Settings) (session.State, error) {
	s.saver.Cancel()

	current := s.engine.State()
	if current.GameID != "" && current.GameID != settings.GameID {
		if err := s.games.Delete(ctx, current.GameID); err != nil {
			s.logger.WarnContext(ctx, "stale game record delete failed", "game_id", current.GameID, "error", err)
		}
	}

	next, err := s.engine.Reset(ctx, settings)
	if err != nil {
		return session.State{}, err
	}

	s.saver.Request()
	return next, nil
}

// AckSubstitution records that the coach performed the due substitution.
func (s *SessionService) AckSubstitution(ctx context.Context) (session.State, error) {
	current := s.engine.State()
	if current.Status != session.StatusInProgress {
		return current, fmt.Errorf("%w: substitutions only apply to a running match", ErrInvalidTransition)
	}

	next := s.engine.Dispatch(session.ConfirmSubstitution{Now: s.clock.Now()})
	s.saver.Request()
	return next, nil
}

// SetSubInterval changes the substitution cadence mid-match.
func (s *SessionService) SetSubInterval(ctx context.Context, minutes int) (session.State, error) {
	if minutes < 1 {
		return s.engine.State(), fmt.Errorf("%w: sub interval must be at least 1 minute", ErrInvalidInput)
	}

	next := s.engine.Dispatch(session.SetSubInterval{Minutes: minutes})
	s.saver.Request()
	return next, nil
}

// HandleVisibility mirrors the app moving to and from the background.
func (s *SessionService) HandleVisibility(ctx context.Context, visible bool) session.State {
	if visible {
		s.engine.HandleVisible(ctx)
	} else {
		s.engine.HandleHidden(ctx)
		if err := s.saver.Flush(ctx); err != nil {
			s.logger.WarnContext(ctx, "hide-time game save failed", "error", err)
		}
	}
	return s.engine.State()
}

// LoadGame swaps the engine over to a stored game.
func (s *SessionService) LoadGame(ctx context.Context, gameID string) (session.State, error) {
	if err := s.saver.Flush(ctx); err != nil {
		s.logger.WarnContext(ctx, "game save before load failed", "error", err)
	}

	stored, ok, err := s.games.Get(ctx, gameID)
	if err != nil {
		return session.State{}, fmt.Errorf("load game %s: %w", gameID, err)
	}
	if !ok {
		return session.State{}, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}

	return s.engine.Load(stored), nil
}

// SaveNow forces the pending debounced save through immediately.
func (s *SessionService) SaveNow(ctx context.Context) error {
	return s.saver.Flush(ctx)
}

func (s *SessionService) SaveStatus() debounce.Status {
	return s.saver.Status()
}

func (s *SessionService) Close() {
	s.saver.Close()
	s.engine.Close()
}

func (s *SessionService) persistCurrent(ctx context.Context) error {
	state := s.engine.State()
	if state.GameID == "" {
		return nil
	}
	return s.games.Save(ctx, state)
}

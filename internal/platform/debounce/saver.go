package debounce

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/touchline/matchclock/internal/platform/logging"
)

// SaveFunc persists the entity the Saver guards.
type SaveFunc func(ctx context.Context) error

type Config struct {
	// Delay is the quiet period after the last Request before saving.
	Delay time.Duration
	// MaxRetries bounds additional attempts after a failed debounced save.
	MaxRetries int
	// BackoffBase is the first retry delay; it doubles per retry.
	BackoffBase time.Duration
}

func NormalizeConfig(cfg Config) Config {
	if cfg.Delay <= 0 {
		cfg.Delay = 2 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	return cfg
}

// Status mirrors the controller state for UI feedback.
type Status struct {
	IsSaving       bool
	HasPendingSave bool
	RetryCount     int
	LastError      error
}

type flight struct {
	done chan struct{}
	err  error
}

// Saver coalesces bursts of change notifications into one persist call per
// quiet period, with at most one save in flight at a time. A save requested
// while another is in flight is recorded and re-run once afterwards instead
// of starting a concurrent attempt.
type Saver struct {
	mu sync.Mutex

	save   SaveFunc
	cfg    Config
	clock  clockwork.Clock
	logger *logging.Logger

	timer    clockwork.Timer
	timerGen uint64

	saving       bool
	pendingRerun bool
	retryCount   int
	lastErr      error
	inFlight     *flight
	closed       bool
}

type Option func(*Saver)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Saver) { s.clock = clock }
}

func WithLogger(logger *logging.Logger) Option {
	return func(s *Saver) { s.logger = logger }
}

func NewSaver(save SaveFunc, cfg Config, opts ...Option) *Saver {
	s := &Saver{
		save:   save,
		cfg:    NormalizeConfig(cfg),
		clock:  clockwork.NewRealClock(),
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSaveFunc swaps the persist function. The swap applies to the next
// save invocation; an in-flight attempt keeps the function it started with.
func (s *Saver) SetSaveFunc(save SaveFunc) {
	s.mu.Lock()
	s.save = save
	s.mu.Unlock()
}

// Request schedules a save after the quiet period, resetting any pending
// timer from an earlier request.
func (s *Saver) Request() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.stopTimerLocked()
	s.timerGen++
	gen := s.timerGen
	s.timer = s.clock.AfterFunc(s.cfg.Delay, func() {
		s.fire(gen)
	})
}

// Flush cancels any pending debounce timer and saves immediately. If a save
// is already in flight, Flush joins it and returns that attempt's error
// rather than starting a duplicate. Errors propagate to the caller.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.stopTimerLocked()

	if s.closed {
		s.mu.Unlock()
		return nil
	}

	if s.saving {
		fl := s.inFlight
		s.mu.Unlock()
		select {
		case <-fl.done:
			return fl.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	fl := s.beginFlightLocked()
	save := s.save
	s.mu.Unlock()

	// Immediate saves get one attempt; the retry budget belongs to the
	// debounced path where nobody is waiting on the result.
	err := save(ctx)
	s.finishFlight(fl, err)
	return err
}

// Cancel clears the pending debounce timer without saving. In-flight work
// is unaffected.
func (s *Saver) Cancel() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()
}

// Close cancels pending work and rejects future requests.
func (s *Saver) Close() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.closed = true
	s.pendingRerun = false
	s.mu.Unlock()
}

func (s *Saver) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		IsSaving:       s.saving,
		HasPendingSave: s.pendingRerun || s.timer != nil,
		RetryCount:     s.retryCount,
		LastError:      s.lastErr,
	}
}

func (s *Saver) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.timerGen {
		s.mu.Unlock()
		return
	}
	s.timer = nil

	if s.saving {
		s.pendingRerun = true
		s.mu.Unlock()
		return
	}

	fl := s.beginFlightLocked()
	save := s.save
	s.mu.Unlock()

	err := s.runWithRetries(context.Background(), save)
	s.finishFlight(fl, err)
}

func (s *Saver) rerun() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.saving {
		s.pendingRerun = true
		s.mu.Unlock()
		return
	}

	fl := s.beginFlightLocked()
	save := s.save
	s.mu.Unlock()

	err := s.runWithRetries(context.Background(), save)
	s.finishFlight(fl, err)
}

func (s *Saver) beginFlightLocked() *flight {
	s.saving = true
	s.inFlight = &flight{done: make(chan struct{})}
	return s.inFlight
}

func (s *Saver) finishFlight(fl *flight, err error) {
	s.mu.Lock()
	s.saving = false
	s.inFlight = nil
	fl.err = err
	if err == nil {
		s.lastErr = nil
	}
	rerun := s.pendingRerun
	s.pendingRerun = false
	s.mu.Unlock()

	close(fl.done)

	if rerun {
		go s.rerun()
	}
}

// runWithRetries drives the debounced save with exponential backoff. The
// retry counter returns to zero after a success and after giving up, so an
// unrelated later change starts with a fresh budget.
func (s *Saver) runWithRetries(ctx context.Context, save SaveFunc) error {
	for {
		err := save(ctx)
		if err == nil {
			s.mu.Lock()
			s.retryCount = 0
			s.mu.Unlock()
			return nil
		}

		s.mu.Lock()
		s.retryCount++
		attempt := s.retryCount
		s.mu.Unlock()

		if attempt > s.cfg.MaxRetries {
			s.logger.Warn("debounced save gave up",
				"attempts", attempt,
				"error", err,
			)
			s.mu.Lock()
			s.retryCount = 0
			s.lastErr = err
			s.mu.Unlock()
			return err
		}

		backoff := s.cfg.BackoffBase << (attempt - 1)
		s.logger.Debug("debounced save retrying", "attempt", attempt, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(backoff):
		}
	}
}

func (s *Saver) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/touchline/matchclock/internal/domain/session"
	"github.com/touchline/matchclock/internal/infrastructure/repository/memory"
	"github.com/touchline/matchclock/internal/platform/debounce"
)

func newTestService(t *testing.T, settings session.Settings, games session.Store) *SessionService {
	t.Helper()

	engine, err := NewTimerEngine(memory.NewSnapshotStore(), session.NewState(settings))
	if err != nil {
		t.Fatalf("NewTimerEngine: %v", err)
	}

	svc := NewSessionService(engine, games, WithSaverConfig(debounce.Config{
		Delay:       5 * time.Millisecond,
		BackoffBase: time.Millisecond,
	}))
	t.Cleanup(svc.Close)
	return svc
}

func TestStartPauseWalksTheMatch(t *testing.T) {
	t.Parallel()

	games := memory.NewSessionStore(nil)
	svc := newTestService(t, session.Settings{
		GameID:                "g1",
		NumberOfPeriods:       2,
		PeriodDurationMinutes: 10,
	}, games)
	ctx := context.Background()

	got, err := svc.StartPause(ctx)
	if err != nil {
		t.Fatalf("StartPause: %v", err)
	}
	if got.Status != session.StatusInProgress || !got.TimerRunning || got.CurrentPeriod != 1 {
		t.Fatalf("after first toggle: %+v", got)
	}

	got, err = svc.StartPause(ctx)
	if err != nil {
		t.Fatalf("StartPause: %v", err)
	}
	if got.TimerRunning {
		t.Fatal("second toggle should pause")
	}
	if got.Status != session.StatusInProgress {
		t.Fatalf("pause changed status to %q", got.Status)
	}

	got, err = svc.StartPause(ctx)
	if err != nil {
		t.Fatalf("StartPause: %v", err)
	}
	if !got.TimerRunning {
		t.Fatal("third toggle should resume")
	}
}

func TestStartPauseStartsNextPeriodFromBreak(t *testing.T) {
	t.Parallel()

	games := memory.NewSessionStore(nil)
	svc := newTestService(t, session.Settings{
		GameID:                "g1",
		NumberOfPeriods:       2,
		PeriodDurationMinutes: 10,
	}, games)
	ctx := context.Background()

	svc.engine.Dispatch(session.StartPeriod{Period: 1, Now: time.Now()})
	svc.engine.Dispatch(session.EndPeriodOrGame{Status: session.StatusPeriodEnd, FinalSeconds: 600})

	got, err := svc.StartPause(ctx)
	if err != nil {
		t.Fatalf("StartPause: %v", err)
	}
	if got.CurrentPeriod != 2 || got.Status != session.StatusInProgress {
		t.Fatalf("after break toggle: %+v", got)
	}
	if got.TimeElapsedSeconds != 600 {
		t.Fatalf("period 2 started at %v, want 600", got.TimeElapsedSeconds)
	}
}

func TestStartPauseIgnoresFinishedGame(t *testing.T) {
	t.Parallel()

	games := memory.NewSessionStore(nil)
	svc := newTestService(t, session.Settings{GameID: "g1", NumberOfPeriods: 1}, games)
	ctx := context.Background()

	svc.engine.Dispatch(session.StartPeriod{Period: 1, Now: time.Now()})
	svc.engine.Dispatch(session.EndPeriodOrGame{Status: session.StatusGameEnd, FinalSeconds: 600})

	got, err := svc.StartPause(ctx)
	if err != nil {
		t.Fatalf("StartPause: %v", err)
	}
	if got.Status != session.StatusGameEnd {
		t.Fatalf("finished game toggled to %q", got.Status)
	}
}

func TestMutationsDebounceIntoGameStore(t *testing.T) {
	t.Parallel()

	games := memory.NewSessionStore(nil)
	svc := newTestService(t, session.Settings{GameID: "g1"}, games)

	if _, err := svc.StartPause(context.Background()); err != nil {
		t.Fatalf("StartPause: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		stored, ok, _ := games.Get(context.Background(), "g1")
		return ok && stored.Status == session.StatusInProgress
	})
}

func TestAckSubstitutionRequiresRunningMatch(t *testing.T) {
	t.Parallel()

	games := memory.NewSessionStore(nil)
	svc := newTestService(t, session.Settings{GameID: "g1"}, games)

	_, err := svc.AckSubstitution(context.Background())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestAckSubstitutionAdvancesDueTime(t *testing.T) {
	t.Parallel()

	games := memory.NewSessionStore(nil)
	svc := newTestService(t, session.Settings{GameID: "g1", SubIntervalMinutes: 5}, games)
	ctx := context.Background()

	svc.engine.Dispatch(session.StartPeriod{Period: 1, Now: time.Now()})
	svc.engine.Dispatch(session.SetTimerElapsed{Seconds: 310})

	got, err := svc.AckSubstitution(ctx)
	if err != nil {
		t.Fatalf("AckSubstitution: %v", err)
	}
	if got.NextSubDueSeconds != 600 {
		t.Fatalf("next due = %v, want 600", got.NextSubDueSeconds)
	}
	if len(got.CompletedIntervals) != 1 {
		t.Fatalf("intervals = %d, want 1", len(got.CompletedIntervals))
	}
}

func TestSetSubIntervalValidatesInput(t *testing.T) {
	t.Parallel()

	games := memory.NewSessionStore(nil)
	svc := newTestService(t, session.Settings{GameID: "g1"}, games)

	if _, err := svc.SetSubInterval(context.Background(), 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	got, err := svc.SetSubInterval(context.Background(), 3)
	if err != nil {
		t.Fatalf("SetSubInterval: %v", err)
	}
	if got.SubIntervalMinutes != 3 {
		t.Fatalf("interval = %d, want 3", got.SubIntervalMinutes)
	}
}

func TestResetDropsStaleGameRecord(t *testing.T) {
	t.Parallel()

	games := memory.NewSessionStore(nil)
	svc := newTestService(t, session.Settings{GameID: "g1"}, games)
	ctx := context.Background()

	if _, err := svc.StartPause(ctx); err != nil {
		t.Fatalf("StartPause: %v", err)
	}
	if err := svc.SaveNow(ctx); err != nil {
		t.Fatalf("SaveNow: %v", err)
	}

	got, err := svc.Reset(ctx, session.Settings{GameID: "g2", NumberOfPeriods: 1})
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got.GameID != "g2" || got.Status != session.StatusNotStarted {
		t.Fatalf("after reset: %+v", got)
	}
	if _, ok, _ := games.Get(ctx, "g1"); ok {
		t.Fatal("stale game record survived reset")
	}
}

func TestLoadGameNeverResumesRunning(t *testing.T) {
	t.Parallel()

	now := time.Now()
	stored := session.NewState(session.Settings{GameID: "g2"})
	stored = session.Reduce(stored, session.StartPeriod{Period: 1, Now: now})
	stored = session.Reduce(stored, session.SetTimerElapsed{Seconds: 123})

	games := memory.NewSessionStore([]session.State{stored})
	svc := newTestService(t, session.Settings{GameID: "g1"}, games)

	got, err := svc.LoadGame(context.Background(), "g2")
	if err != nil {
		t.Fatalf("LoadGame: %v", err)
	}
	if got.GameID != "g2" {
		t.Fatalf("game id = %q, want g2", got.GameID)
	}
	if got.TimerRunning || got.StartTimestamp != nil {
		t.Fatal("loaded game came back running")
	}
}

func TestLoadGameUnknownID(t *testing.T) {
	t.Parallel()

	games := memory.NewSessionStore(nil)
	svc := newTestService(t, session.Settings{GameID: "g1"}, games)

	if _, err := svc.LoadGame(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestHandleVisibilityHiddenFlushesSave(t *testing.T) {
	t.Parallel()

	games := memory.NewSessionStore(nil)
	svc := newTestService(t, session.Settings{GameID: "g1"}, games)
	ctx := context.Background()

	if _, err := svc.StartPause(ctx); err != nil {
		t.Fatalf("StartPause: %v", err)
	}

	got := svc.HandleVisibility(ctx, false)
	if got.TimerRunning {
		t.Fatal("timer still running while hidden")
	}
	if _, ok, _ := games.Get(ctx, "g1"); !ok {
		t.Fatal("game record not flushed on hide")
	}
}

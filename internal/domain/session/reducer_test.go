package session

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, time.April, 12, 15, 0, 0, 0, time.UTC)

func newRunningState(t *testing.T) State {
	t.Helper()
	s := NewState(Settings{
		GameID:                "game-1",
		TeamName:              "U12 Blue",
		Opponent:              "Rovers",
		NumberOfPeriods:       2,
		PeriodDurationMinutes: 25,
		SubIntervalMinutes:    5,
	})
	s = Reduce(s, StartPeriod{Period: 1, Now: testNow})
	if s.Status != StatusInProgress || !s.TimerRunning {
		t.Fatalf("start period did not run the clock: %+v", s)
	}
	return s
}

func TestReduce_StartPeriodSeedsBoundaries(t *testing.T) {
	t.Parallel()

	s := newRunningState(t)
	if s.TimeElapsedSeconds != 0 {
		t.Fatalf("period 1 elapsed = %v, want 0", s.TimeElapsedSeconds)
	}
	if s.NextSubDueSeconds != 300 {
		t.Fatalf("next due = %v, want 300", s.NextSubDueSeconds)
	}
	if s.StartTimestamp == nil || !s.StartTimestamp.Equal(testNow) {
		t.Fatalf("start timestamp = %v, want %v", s.StartTimestamp, testNow)
	}

	// Second period resumes at the previous period's end boundary.
	s = Reduce(s, EndPeriodOrGame{Status: StatusPeriodEnd, FinalSeconds: s.PeriodEndSeconds(1)})
	s = Reduce(s, StartPeriod{Period: 2, Now: testNow})
	if s.TimeElapsedSeconds != 1500 {
		t.Fatalf("period 2 elapsed = %v, want 1500", s.TimeElapsedSeconds)
	}
	if s.NextSubDueSeconds != 1800 {
		t.Fatalf("period 2 next due = %v, want 1800", s.NextSubDueSeconds)
	}
}

func TestReduce_StartPeriodInvalidFromInProgress(t *testing.T) {
	t.Parallel()

	s := newRunningState(t)
	again := Reduce(s, StartPeriod{Period: 2, Now: testNow})
	if again.CurrentPeriod != 1 {
		t.Fatalf("start period must be rejected while in progress, got period %d", again.CurrentPeriod)
	}
}

func TestReduce_TickAdvancesMonotonically(t *testing.T) {
	t.Parallel()

	s := newRunningState(t)
	for tick := 1; tick <= 120; tick++ {
		s = Reduce(s, SetTimerElapsed{Seconds: float64(tick)})
		if s.TimeElapsedSeconds != float64(tick) {
			t.Fatalf("elapsed after tick %d = %v", tick, s.TimeElapsedSeconds)
		}
	}
}

func TestReduce_AlertLevelInvariant(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		elapsed float64
		want    AlertLevel
	}{
		{"well before due", 100, AlertNone},
		{"sixty below due", 240, AlertNone},
		{"fifty nine below due", 241, AlertWarning},
		{"one below due", 299, AlertWarning},
		{"exactly due", 300, AlertDue},
		{"past due", 400, AlertDue},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newRunningState(t)
			s = Reduce(s, SetTimerElapsed{Seconds: tc.elapsed})
			if s.SubAlertLevel != tc.want {
				t.Fatalf("alert at %v = %s, want %s", tc.elapsed, s.SubAlertLevel, tc.want)
			}
		})
	}
}

func TestReduce_ConfirmSubstitution(t *testing.T) {
	t.Parallel()

	s := newRunningState(t)
	s = Reduce(s, SetTimerElapsed{Seconds: 310})
	if s.SubAlertLevel != AlertDue {
		t.Fatalf("expected due alert before confirmation, got %s", s.SubAlertLevel)
	}

	s = Reduce(s, ConfirmSubstitution{Now: testNow.Add(310 * time.Second)})

	if len(s.CompletedIntervals) != 1 {
		t.Fatalf("interval log length = %d, want 1", len(s.CompletedIntervals))
	}
	entry := s.CompletedIntervals[0]
	if entry.Period != 1 || entry.DurationSeconds != 310 {
		t.Fatalf("unexpected interval entry: %+v", entry)
	}
	if s.NextSubDueSeconds != 600 {
		t.Fatalf("next due = %v, want 600", s.NextSubDueSeconds)
	}
	if s.LastSubConfirmationSeconds != 310 {
		t.Fatalf("last confirmation = %v, want 310", s.LastSubConfirmationSeconds)
	}
	if s.SubAlertLevel != AlertNone {
		t.Fatalf("alert after confirmation = %s, want none", s.SubAlertLevel)
	}
}

func TestReduce_ConfirmSubstitutionPrependsNewest(t *testing.T) {
	t.Parallel()

	s := newRunningState(t)
	s = Reduce(s, SetTimerElapsed{Seconds: 300})
	s = Reduce(s, ConfirmSubstitution{Now: testNow})
	s = Reduce(s, SetTimerElapsed{Seconds: 620})
	s = Reduce(s, ConfirmSubstitution{Now: testNow})

	if len(s.CompletedIntervals) != 2 {
		t.Fatalf("interval log length = %d, want 2", len(s.CompletedIntervals))
	}
	if s.CompletedIntervals[0].DurationSeconds != 320 {
		t.Fatalf("newest entry first: got %+v", s.CompletedIntervals)
	}
}

func TestReduce_SetSubIntervalNeverLeavesDueInPast(t *testing.T) {
	t.Parallel()

	s := newRunningState(t)
	// Old 5-minute cadence: confirmed at 300, clock now at 400, due at 600.
	s = Reduce(s, SetTimerElapsed{Seconds: 300})
	s = Reduce(s, ConfirmSubstitution{Now: testNow})
	s = Reduce(s, SetTimerElapsed{Seconds: 400})

	s = Reduce(s, SetSubInterval{Minutes: 2})

	if s.NextSubDueSeconds != 420 {
		t.Fatalf("next due = %v, want 420", s.NextSubDueSeconds)
	}
	if s.NextSubDueSeconds <= s.TimeElapsedSeconds {
		t.Fatalf("due-time %v must be strictly above elapsed %v", s.NextSubDueSeconds, s.TimeElapsedSeconds)
	}
	if s.SubAlertLevel != AlertWarning {
		t.Fatalf("alert = %s, want warning with due 20s away", s.SubAlertLevel)
	}
}

func TestReduce_SetSubIntervalFreshMatchUsesAbsoluteMultiples(t *testing.T) {
	t.Parallel()

	s := newRunningState(t)
	s = Reduce(s, SetTimerElapsed{Seconds: 400})
	s = Reduce(s, SetSubInterval{Minutes: 2})

	if s.NextSubDueSeconds != 480 {
		t.Fatalf("next due = %v, want 480 (no confirmation anchor yet)", s.NextSubDueSeconds)
	}
}

func TestReduce_EndPeriodClampsAndStops(t *testing.T) {
	t.Parallel()

	s := newRunningState(t)
	s = Reduce(s, SetTimerElapsed{Seconds: 1499})
	s = Reduce(s, EndPeriodOrGame{Status: StatusPeriodEnd, FinalSeconds: 1500})

	if s.Status != StatusPeriodEnd {
		t.Fatalf("status = %s, want period end", s.Status)
	}
	if s.TimeElapsedSeconds != 1500 {
		t.Fatalf("elapsed = %v, want clamped 1500", s.TimeElapsedSeconds)
	}
	if s.TimerRunning || s.StartTimestamp != nil {
		t.Fatal("clock must stop at the period boundary")
	}
}

func TestReduce_RestoreTimerStateCorrectsForSuspension(t *testing.T) {
	t.Parallel()

	s := newRunningState(t)
	s = Reduce(s, SetTimerElapsed{Seconds: 100})
	s = Reduce(s, PauseForHidden{})
	if s.TimerRunning || s.StartTimestamp != nil {
		t.Fatal("pause-for-hidden must stop the wall-clock reference")
	}

	savedAt := testNow.Add(100 * time.Second)
	resumeAt := savedAt.Add(42 * time.Second)
	s = Reduce(s, RestoreTimerState{SavedSeconds: 100, SavedAt: savedAt, Now: resumeAt})

	if s.TimeElapsedSeconds != 142 {
		t.Fatalf("elapsed after restore = %v, want 142", s.TimeElapsedSeconds)
	}
	if !s.TimerRunning || s.StartTimestamp == nil {
		t.Fatal("restore must resume the clock")
	}
}

func TestReduce_RestoreRejectedOutsideInProgress(t *testing.T) {
	t.Parallel()

	s := NewState(Settings{GameID: "game-1", PeriodDurationMinutes: 25, SubIntervalMinutes: 5, NumberOfPeriods: 2})
	restored := Reduce(s, RestoreTimerState{SavedSeconds: 50, SavedAt: testNow, Now: testNow.Add(time.Minute)})
	if restored.TimeElapsedSeconds != 0 || restored.TimerRunning {
		t.Fatalf("restore must be a no-op before the match starts: %+v", restored)
	}
}

func TestNormalize_SeedsEndBoundaryForFinishedGames(t *testing.T) {
	t.Parallel()

	s := NewState(Settings{GameID: "game-1", NumberOfPeriods: 2, PeriodDurationMinutes: 25, SubIntervalMinutes: 5})
	s.Status = StatusPeriodEnd
	s.CurrentPeriod = 1
	s.TimeElapsedSeconds = 0

	s = Normalize(s)
	if s.TimeElapsedSeconds != 1500 {
		t.Fatalf("normalized period-end elapsed = %v, want 1500", s.TimeElapsedSeconds)
	}

	s.Status = StatusGameEnd
	s = Normalize(s)
	if s.TimeElapsedSeconds != 3000 {
		t.Fatalf("normalized game-end elapsed = %v, want 3000", s.TimeElapsedSeconds)
	}
	if s.TimerRunning || s.StartTimestamp != nil {
		t.Fatal("normalized state must never resume running")
	}
}

func TestReduce_PauseAndResumeKeepStatus(t *testing.T) {
	t.Parallel()

	s := newRunningState(t)
	s = Reduce(s, SetTimerElapsed{Seconds: 77})
	s = Reduce(s, PauseForHidden{})
	if s.Status != StatusInProgress {
		t.Fatalf("status after hide = %s, want in progress", s.Status)
	}

	s = Reduce(s, ResumeFromHidden{Now: testNow.Add(time.Minute)})
	if !s.TimerRunning || s.StartTimestamp == nil {
		t.Fatal("resume-from-hidden must restart the clock")
	}
	if s.TimeElapsedSeconds != 77 {
		t.Fatalf("resume must not alter elapsed, got %v", s.TimeElapsedSeconds)
	}
}

package session

import (
	"math"
	"time"
)

// Action is the closed vocabulary of session transitions.
type Action interface {
	isAction()
}

// StartPeriod begins the given period from NOT_STARTED or PERIOD_END.
type StartPeriod struct {
	Period int
	Now    time.Time
}

// SetTimerElapsed is the per-tick transition.
type SetTimerElapsed struct {
	Seconds float64
}

// EndPeriodOrGame stops the clock at the period boundary.
type EndPeriodOrGame struct {
	Status       Status
	FinalSeconds float64
}

// ConfirmSubstitution acknowledges a due substitution and advances the
// schedule by one interval.
type ConfirmSubstitution struct {
	Now time.Time
}

// SetSubInterval changes the substitution cadence mid-match.
type SetSubInterval struct {
	Minutes int
}

// RestoreTimerState resumes from a persisted snapshot, correcting for wall
// time that passed while the process was suspended.
type RestoreTimerState struct {
	SavedSeconds float64
	SavedAt      time.Time
	Now          time.Time
}

// PauseForHidden stops the wall-clock reference without touching period or
// status semantics.
type PauseForHidden struct{}

// ResumeFromHidden restarts the wall-clock reference.
type ResumeFromHidden struct {
	Now time.Time
}

func (StartPeriod) isAction()         {}
func (SetTimerElapsed) isAction()     {}
func (EndPeriodOrGame) isAction()     {}
func (ConfirmSubstitution) isAction() {}
func (SetSubInterval) isAction()      {}
func (RestoreTimerState) isAction()   {}
func (PauseForHidden) isAction()      {}
func (ResumeFromHidden) isAction()    {}

// Reduce is the pure transition function over the aggregate. Unknown or
// invalid transitions return the state unchanged.
func Reduce(s State, action Action) State {
	switch a := action.(type) {
	case StartPeriod:
		return reduceStartPeriod(s, a)
	case SetTimerElapsed:
		s.TimeElapsedSeconds = a.Seconds
		s.SubAlertLevel = alertLevel(s.TimeElapsedSeconds, s.NextSubDueSeconds)
		return s
	case EndPeriodOrGame:
		return reduceEndPeriodOrGame(s, a)
	case ConfirmSubstitution:
		return reduceConfirmSubstitution(s, a)
	case SetSubInterval:
		return reduceSetSubInterval(s, a)
	case RestoreTimerState:
		return reduceRestoreTimerState(s, a)
	case PauseForHidden:
		s.TimerRunning = false
		s.StartTimestamp = nil
		return s
	case ResumeFromHidden:
		if s.Status != StatusInProgress {
			return s
		}
		now := a.Now
		s.TimerRunning = true
		s.StartTimestamp = &now
		return s
	default:
		return s
	}
}

func reduceStartPeriod(s State, a StartPeriod) State {
	if s.Status != StatusNotStarted && s.Status != StatusPeriodEnd {
		return s
	}
	period := a.Period
	if period < 1 || period > s.NumberOfPeriods {
		return s
	}

	// Periods after the first resume the clock at the previous boundary.
	startSeconds := s.PeriodEndSeconds(period - 1)
	now := a.Now

	s.CurrentPeriod = period
	s.Status = StatusInProgress
	s.TimerRunning = true
	s.StartTimestamp = &now
	s.TimeElapsedSeconds = startSeconds
	s.NextSubDueSeconds = startSeconds + float64(s.SubIntervalMinutes*60)
	s.SubAlertLevel = AlertNone
	s.LastSubConfirmationSeconds = startSeconds
	if period == 1 {
		s.CompletedIntervals = nil
	}
	return s
}

func reduceEndPeriodOrGame(s State, a EndPeriodOrGame) State {
	if a.Status != StatusPeriodEnd && a.Status != StatusGameEnd {
		return s
	}
	s.Status = a.Status
	s.TimeElapsedSeconds = a.FinalSeconds
	s.TimerRunning = false
	s.StartTimestamp = nil
	s.SubAlertLevel = alertLevel(s.TimeElapsedSeconds, s.NextSubDueSeconds)
	return s
}

func reduceConfirmSubstitution(s State, a ConfirmSubstitution) State {
	entry := IntervalEntry{
		Period:          s.CurrentPeriod,
		DurationSeconds: s.TimeElapsedSeconds - s.LastSubConfirmationSeconds,
		Timestamp:       a.Now,
	}
	intervals := make([]IntervalEntry, 0, len(s.CompletedIntervals)+1)
	intervals = append(intervals, entry)
	intervals = append(intervals, s.CompletedIntervals...)

	s.CompletedIntervals = intervals
	s.NextSubDueSeconds += float64(s.SubIntervalMinutes * 60)
	s.LastSubConfirmationSeconds = s.TimeElapsedSeconds
	s.SubAlertLevel = alertLevel(s.TimeElapsedSeconds, s.NextSubDueSeconds)
	return s
}

func reduceSetSubInterval(s State, a SetSubInterval) State {
	if a.Minutes < 1 {
		return s
	}

	// The new due-time is the smallest interval multiple, counted from the
	// last confirmed substitution, strictly above the current elapsed time.
	// A stale due-time at or below the clock would make the alert fire
	// instantly and forever.
	intervalSeconds := float64(a.Minutes * 60)
	sinceConfirmation := s.TimeElapsedSeconds - s.LastSubConfirmationSeconds
	if sinceConfirmation < 0 {
		sinceConfirmation = 0
	}
	multiples := math.Floor(sinceConfirmation/intervalSeconds) + 1

	s.SubIntervalMinutes = a.Minutes
	s.NextSubDueSeconds = s.LastSubConfirmationSeconds + multiples*intervalSeconds
	s.SubAlertLevel = alertLevel(s.TimeElapsedSeconds, s.NextSubDueSeconds)
	return s
}

func reduceRestoreTimerState(s State, a RestoreTimerState) State {
	if s.Status != StatusInProgress {
		return s
	}

	suspended := a.Now.Sub(a.SavedAt).Seconds()
	if suspended < 0 {
		suspended = 0
	}
	corrected := math.Round(a.SavedSeconds + suspended)

	now := a.Now
	s.TimeElapsedSeconds = corrected
	s.TimerRunning = true
	s.StartTimestamp = &now
	s.SubAlertLevel = alertLevel(s.TimeElapsedSeconds, s.NextSubDueSeconds)
	return s
}

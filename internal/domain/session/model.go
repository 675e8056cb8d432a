package session

import "time"

type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPeriodEnd  Status = "PERIOD_END"
	StatusGameEnd    Status = "GAME_END"
)

type AlertLevel string

const (
	AlertNone    AlertLevel = "none"
	AlertWarning AlertLevel = "warning"
	AlertDue     AlertLevel = "due"
)

// WarningWindowSeconds is how far below the substitution due-time the alert
// switches from none to warning.
const WarningWindowSeconds = 60

// IntervalEntry logs one confirmed substitution interval, newest first.
type IntervalEntry struct {
	Period          int       `json:"period"`
	DurationSeconds float64   `json:"durationSeconds"`
	Timestamp       time.Time `json:"timestamp"`
}

// Settings is the fixed shape of a match before the clock runs.
type Settings struct {
	GameID                string    `json:"gameId"`
	TeamName              string    `json:"teamName"`
	Opponent              string    `json:"opponent"`
	Location              string    `json:"location"`
	GameDate              time.Time `json:"gameDate"`
	NumberOfPeriods       int       `json:"numberOfPeriods"`
	PeriodDurationMinutes int       `json:"periodDurationMinutes"`
	SubIntervalMinutes    int       `json:"subIntervalMinutes"`
	SelectedPlayerIDs     []string  `json:"selectedPlayerIds"`
}

// State is the authoritative game-session aggregate. It is mutated only
// through Reduce; nothing else writes its fields.
type State struct {
	GameID                string    `json:"gameId"`
	TeamName              string    `json:"teamName"`
	Opponent              string    `json:"opponent"`
	Location              string    `json:"location"`
	GameDate              time.Time `json:"gameDate"`
	HomeScore             int       `json:"homeScore"`
	AwayScore             int       `json:"awayScore"`
	SelectedPlayerIDs     []string  `json:"selectedPlayerIds"`

	Status                Status  `json:"status"`
	CurrentPeriod         int     `json:"currentPeriod"`
	NumberOfPeriods       int     `json:"numberOfPeriods"`
	PeriodDurationMinutes int     `json:"periodDurationMinutes"`
	SubIntervalMinutes    int     `json:"subIntervalMinutes"`

	TimeElapsedSeconds float64    `json:"timeElapsedSeconds"`
	StartTimestamp     *time.Time `json:"startTimestamp,omitempty"`
	TimerRunning       bool       `json:"timerRunning"`

	NextSubDueSeconds          float64         `json:"nextSubDueSeconds"`
	SubAlertLevel              AlertLevel      `json:"subAlertLevel"`
	LastSubConfirmationSeconds float64         `json:"lastSubConfirmationSeconds"`
	CompletedIntervals         []IntervalEntry `json:"completedIntervals"`
}

// NewState builds the initial aggregate for a fresh match.
func NewState(settings Settings) State {
	periods := settings.NumberOfPeriods
	if periods != 1 && periods != 2 {
		periods = 2
	}
	periodDuration := settings.PeriodDurationMinutes
	if periodDuration < 1 {
		periodDuration = 10
	}
	subInterval := settings.SubIntervalMinutes
	if subInterval < 1 {
		subInterval = 5
	}

	return State{
		GameID:                settings.GameID,
		TeamName:              settings.TeamName,
		Opponent:              settings.Opponent,
		Location:              settings.Location,
		GameDate:              settings.GameDate,
		SelectedPlayerIDs:     append([]string(nil), settings.SelectedPlayerIDs...),
		Status:                StatusNotStarted,
		CurrentPeriod:         1,
		NumberOfPeriods:       periods,
		PeriodDurationMinutes: periodDuration,
		SubIntervalMinutes:    subInterval,
		NextSubDueSeconds:     float64(subInterval * 60),
		SubAlertLevel:         AlertNone,
	}
}

// PeriodEndSeconds is the elapsed-time boundary that ends the given period.
func (s State) PeriodEndSeconds(period int) float64 {
	return float64(period * s.PeriodDurationMinutes * 60)
}

// IsFinalPeriod reports whether the current period is the last one.
func (s State) IsFinalPeriod() bool {
	return s.CurrentPeriod >= s.NumberOfPeriods
}

// Normalize repairs an aggregate read back from storage. A saved game whose
// period or match already ended seeds elapsed time at the end boundary, and
// the clock never resumes running on load.
func Normalize(s State) State {
	s.TimerRunning = false
	s.StartTimestamp = nil

	switch s.Status {
	case StatusPeriodEnd:
		s.TimeElapsedSeconds = s.PeriodEndSeconds(s.CurrentPeriod)
	case StatusGameEnd:
		s.TimeElapsedSeconds = s.PeriodEndSeconds(s.NumberOfPeriods)
	}

	s.SubAlertLevel = alertLevel(s.TimeElapsedSeconds, s.NextSubDueSeconds)
	return s
}

func alertLevel(elapsed, due float64) AlertLevel {
	switch {
	case elapsed >= due:
		return AlertDue
	case due-elapsed < WarningWindowSeconds:
		return AlertWarning
	default:
		return AlertNone
	}
}

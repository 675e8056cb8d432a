package snapshot

import "time"

// LegacyKey is the fixed identifier the pre-keyed timer record was stored
// under before snapshots were keyed by game ID. Read once during migration,
// then deleted.
const LegacyKey = "timer_state"

// Snapshot is the persisted timer recovery record for one game.
type Snapshot struct {
	GameID         string    `json:"gameId"`
	ElapsedSeconds float64   `json:"timeElapsedInSeconds"`
	Timestamp      time.Time `json:"timestamp"`
}

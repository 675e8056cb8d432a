package httpapi

import (
	"time"

	"github.com/touchline/matchclock/internal/domain/session"
	"github.com/touchline/matchclock/internal/platform/progress"
)

type gameStateResponse struct {
	session.State
	IsSaving bool `json:"isSaving"`
}

func gameStateDTO(state session.State, saving bool) gameStateResponse {
	return gameStateResponse{State: state, IsSaving: saving}
}

type gameSummaryDTO struct {
	GameID    string    `json:"gameId"`
	TeamName  string    `json:"teamName"`
	Opponent  string    `json:"opponent"`
	GameDate  time.Time `json:"gameDate"`
	Status    string    `json:"status"`
	HomeScore int       `json:"homeScore"`
	AwayScore int       `json:"awayScore"`
}

func gameToSummaryDTO(state session.State) gameSummaryDTO {
	return gameSummaryDTO{
		GameID:    state.GameID,
		TeamName:  state.TeamName,
		Opponent:  state.Opponent,
		GameDate:  state.GameDate,
		Status:    string(state.Status),
		HomeScore: state.HomeScore,
		AwayScore: state.AwayScore,
	}
}

type syncOperationDTO struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Resource  string    `json:"resource"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type syncStatusDTO struct {
	Operations      []syncOperationDTO `json:"operations"`
	IsActive        bool               `json:"isActive"`
	OverallProgress int                `json:"overallProgress"`
	LastSync        *time.Time         `json:"lastSyncTimestamp,omitempty"`
	PendingCount    int                `json:"pendingCount"`
	FailedCount     int                `json:"failedCount"`
}

func syncSnapshotToDTO(snap progress.Snapshot) syncStatusDTO {
	ops := make([]syncOperationDTO, 0, len(snap.Operations))
	for _, op := range snap.Operations {
		ops = append(ops, syncOperationDTO{
			ID:        op.ID,
			Type:      op.Type,
			Resource:  op.Resource,
			Status:    string(op.Status),
			Progress:  op.Progress,
			Error:     op.Err,
			Timestamp: op.Timestamp,
		})
	}

	dto := syncStatusDTO{
		Operations:      ops,
		IsActive:        snap.IsActive,
		OverallProgress: snap.OverallProgress,
		PendingCount:    snap.PendingCount,
		FailedCount:     snap.FailedCount,
	}
	if !snap.LastSync.IsZero() {
		lastSync := snap.LastSync
		dto.LastSync = &lastSync
	}
	return dto
}

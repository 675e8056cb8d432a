package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/touchline/matchclock/internal/domain/session"
	"github.com/touchline/matchclock/internal/platform/logging"
	"github.com/touchline/matchclock/internal/usecase"
)

type Handler struct {
	sessions  *usecase.SessionService
	syncs     *usecase.SyncService
	games     session.Store
	logger    *logging.Logger
	validator *validator.Validate
}

func NewHandler(
	sessions *usecase.SessionService,
	syncs *usecase.SyncService,
	games session.Store,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		sessions:  sessions,
		syncs:     syncs,
		games:     games,
		logger:    logger,
		validator: validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetGame")
	defer span.End()

	gameID := r.PathValue("gameID")

	current := h.sessions.State()
	if current.GameID == gameID {
		writeSuccess(ctx, w, http.StatusOK, gameStateDTO(current, h.sessions.SaveStatus().IsSaving))
		return
	}

	stored, ok, err := h.games.Get(ctx, gameID)
	if err != nil {
		h.logger.WarnContext(ctx, "get game failed", "game_id", gameID, "error", err)
		writeError(ctx, w, err)
		return
	}
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: game %s", usecase.ErrNotFound, gameID))
		return
	}

	writeSuccess(ctx, w, http.StatusOK, gameStateDTO(stored, false))
}

func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListGames")
	defer span.End()

	states, err := h.games.List(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "list games failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]gameSummaryDTO, 0, len(states))
	for _, state := range states {
		items = append(items, gameToSummaryDTO(state))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) LoadGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.LoadGame")
	defer span.End()

	gameID := r.PathValue("gameID")
	state, err := h.sessions.LoadGame(ctx, gameID)
	if err != nil {
		h.logger.WarnContext(ctx, "load game failed", "game_id", gameID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, gameStateDTO(state, false))
}

// ToggleClock starts, pauses, or resumes the match clock depending on
// where the session currently is.
func (h *Handler) ToggleClock(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ToggleClock")
	defer span.End()

	if err := h.requireCurrentGame(r); err != nil {
		writeError(ctx, w, err)
		return
	}

	state, err := h.sessions.StartPause(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "clock toggle failed", "game_id", state.GameID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, gameStateDTO(state, h.sessions.SaveStatus().IsSaving))
}

func (h *Handler) ResetGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ResetGame")
	defer span.End()

	var payload resetGameRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid request body: %v", usecase.ErrInvalidInput, err))
		return
	}

	gameID := r.PathValue("gameID")
	if payload.GameID == "" {
		payload.GameID = gameID
	}
	if payload.GameID != gameID {
		writeError(ctx, w, fmt.Errorf("%w: body gameId %q does not match path", usecase.ErrInvalidInput, payload.GameID))
		return
	}

	if err := h.validateRequest(ctx, payload); err != nil {
		writeError(ctx, w, err)
		return
	}

	settings, err := payload.toSettings()
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	state, err := h.sessions.Reset(ctx, settings)
	if err != nil {
		h.logger.ErrorContext(ctx, "game reset failed", "game_id", settings.GameID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, gameStateDTO(state, false))
}

func (h *Handler) ConfirmSubstitution(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ConfirmSubstitution")
	defer span.End()

	if err := h.requireCurrentGame(r); err != nil {
		writeError(ctx, w, err)
		return
	}

	state, err := h.sessions.AckSubstitution(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "substitution confirm failed", "game_id", state.GameID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, gameStateDTO(state, h.sessions.SaveStatus().IsSaving))
}

func (h *Handler) SetSubInterval(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SetSubInterval")
	defer span.End()

	if err := h.requireCurrentGame(r); err != nil {
		writeError(ctx, w, err)
		return
	}

	var payload subIntervalRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid request body: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, payload); err != nil {
		writeError(ctx, w, err)
		return
	}

	state, err := h.sessions.SetSubInterval(ctx, payload.Minutes)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, gameStateDTO(state, h.sessions.SaveStatus().IsSaving))
}

// SetVisibility mirrors the client app moving between foreground and
// background; hiding persists state, showing restores the clock.
func (h *Handler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SetVisibility")
	defer span.End()

	if err := h.requireCurrentGame(r); err != nil {
		writeError(ctx, w, err)
		return
	}

	var payload visibilityRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid request body: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, payload); err != nil {
		writeError(ctx, w, err)
		return
	}

	state := h.sessions.HandleVisibility(ctx, *payload.Visible)
	writeSuccess(ctx, w, http.StatusOK, gameStateDTO(state, h.sessions.SaveStatus().IsSaving))
}

func (h *Handler) UploadGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UploadGame")
	defer span.End()

	gameID := r.PathValue("gameID")
	if err := h.syncs.UploadGame(ctx, gameID); err != nil {
		h.logger.WarnContext(ctx, "game upload failed", "game_id", gameID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, syncSnapshotToDTO(h.syncs.Status()))
}

func (h *Handler) DownloadGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DownloadGame")
	defer span.End()

	gameID := r.PathValue("gameID")
	if err := h.syncs.DownloadGame(ctx, gameID); err != nil {
		h.logger.WarnContext(ctx, "game download failed", "game_id", gameID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, syncSnapshotToDTO(h.syncs.Status()))
}

func (h *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SyncAll")
	defer span.End()

	if err := h.syncs.SyncAll(ctx); err != nil {
		h.logger.WarnContext(ctx, "sync all failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, syncSnapshotToDTO(h.syncs.Status()))
}

func (h *Handler) ReconcileSync(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ReconcileSync")
	defer span.End()

	if err := h.syncs.Reconcile(ctx); err != nil {
		h.logger.WarnContext(ctx, "sync reconcile failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, syncSnapshotToDTO(h.syncs.Status()))
}

func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SyncStatus")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, syncSnapshotToDTO(h.syncs.Status()))
}

func (h *Handler) RetrySync(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RetrySync")
	defer span.End()

	if err := h.syncs.RetryFailed(ctx); err != nil {
		h.logger.WarnContext(ctx, "sync retry failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, syncSnapshotToDTO(h.syncs.Status()))
}

func (h *Handler) ClearCompletedSync(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ClearCompletedSync")
	defer span.End()

	h.syncs.ClearCompleted()
	writeSuccess(ctx, w, http.StatusOK, syncSnapshotToDTO(h.syncs.Status()))
}

// requireCurrentGame rejects clock mutations addressed at a game other
// than the one loaded in the session.
func (h *Handler) requireCurrentGame(r *http.Request) error {
	gameID := r.PathValue("gameID")
	current := h.sessions.State()
	if current.GameID != gameID {
		return fmt.Errorf("%w: game %s is not the active session", usecase.ErrNotFound, gameID)
	}
	return nil
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

type resetGameRequest struct {
	GameID                string   `json:"gameId" validate:"required,max=64"`
	TeamName              string   `json:"teamName" validate:"max=100"`
	Opponent              string   `json:"opponent" validate:"max=100"`
	Location              string   `json:"location" validate:"max=200"`
	GameDate              string   `json:"gameDate" validate:"omitempty"`
	NumberOfPeriods       int      `json:"numberOfPeriods" validate:"omitempty,oneof=1 2"`
	PeriodDurationMinutes int      `json:"periodDurationMinutes" validate:"omitempty,min=1,max=120"`
	SubIntervalMinutes    int      `json:"subIntervalMinutes" validate:"omitempty,min=1,max=60"`
	SelectedPlayerIDs     []string `json:"selectedPlayerIds" validate:"dive,required"`
}

func (p resetGameRequest) toSettings() (session.Settings, error) {
	settings := session.Settings{
		GameID:                p.GameID,
		TeamName:              p.TeamName,
		Opponent:              p.Opponent,
		Location:              p.Location,
		NumberOfPeriods:       p.NumberOfPeriods,
		PeriodDurationMinutes: p.PeriodDurationMinutes,
		SubIntervalMinutes:    p.SubIntervalMinutes,
		SelectedPlayerIDs:     p.SelectedPlayerIDs,
	}
	if p.GameDate != "" {
		parsed, err := time.Parse(time.RFC3339, p.GameDate)
		if err != nil {
			return session.Settings{}, fmt.Errorf("%w: gameDate must be RFC 3339: %v", usecase.ErrInvalidInput, err)
		}
		settings.GameDate = parsed
	}
	return settings, nil
}

type subIntervalRequest struct {
	Minutes int `json:"minutes" validate:"required,min=1,max=60"`
}

type visibilityRequest struct {
	Visible *bool `json:"visible" validate:"required"`
}

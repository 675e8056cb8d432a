package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, swaggerEnabled bool) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if !swaggerEnabled {
		return
	}

	mux.HandleFunc("GET /openapi.yaml", handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerGameRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/games", handler.ListGames)
	mux.HandleFunc("GET /v1/games/{gameID}", handler.GetGame)
	mux.HandleFunc("POST /v1/games/{gameID}/load", handler.LoadGame)
	mux.HandleFunc("POST /v1/games/{gameID}/clock/toggle", handler.ToggleClock)
	mux.HandleFunc("POST /v1/games/{gameID}/clock/reset", handler.ResetGame)
	mux.HandleFunc("POST /v1/games/{gameID}/substitution", handler.ConfirmSubstitution)
	mux.HandleFunc("PUT /v1/games/{gameID}/sub-interval", handler.SetSubInterval)
	mux.HandleFunc("POST /v1/games/{gameID}/visibility", handler.SetVisibility)
}

func registerSyncRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/sync/status", handler.SyncStatus)
	mux.HandleFunc("POST /v1/sync/all", handler.SyncAll)
	mux.HandleFunc("POST /v1/sync/reconcile", handler.ReconcileSync)
	mux.HandleFunc("POST /v1/sync/retry", handler.RetrySync)
	mux.HandleFunc("DELETE /v1/sync/completed", handler.ClearCompletedSync)
	mux.HandleFunc("POST /v1/sync/games/{gameID}/upload", handler.UploadGame)
	mux.HandleFunc("POST /v1/sync/games/{gameID}/download", handler.DownloadGame)
}

package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/touchline/matchclock/internal/config"
	"github.com/touchline/matchclock/internal/domain/session"
	"github.com/touchline/matchclock/internal/domain/snapshot"
	"github.com/touchline/matchclock/internal/infrastructure/remote"
	"github.com/touchline/matchclock/internal/infrastructure/repository/memory"
	"github.com/touchline/matchclock/internal/infrastructure/repository/postgres"
	"github.com/touchline/matchclock/internal/interfaces/httpapi"
	"github.com/touchline/matchclock/internal/platform/debounce"
	idgen "github.com/touchline/matchclock/internal/platform/id"
	"github.com/touchline/matchclock/internal/platform/logging"
	"github.com/touchline/matchclock/internal/platform/progress"
	"github.com/touchline/matchclock/internal/platform/resilience"
	"github.com/touchline/matchclock/internal/platform/sequence"
	"github.com/touchline/matchclock/internal/usecase"
)

// App wires storage, the timer engine, sync, and the HTTP surface
// together. An empty DB_URL keeps everything in process memory.
type App struct {
	Server   *http.Server
	Engine   *usecase.TimerEngine
	Sessions *usecase.SessionService
	Syncs    *usecase.SyncService

	db            *sqlx.DB
	logger        *logging.Logger
	sweepInterval time.Duration
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var (
		snapshots snapshot.Store
		games     session.Store
		db        *sqlx.DB
	)

	if cfg.DBURL == "" {
		logger.Info("storage mode", "mode", "memory")
		snapshots = memory.NewSnapshotStore()
		games = memory.NewSessionStore(nil)
	} else {
		opened, err := openDB(cfg)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		logger.Info("storage mode", "mode", "postgres", "db", dbNameFromURL(cfg.DBURL))
		db = opened
		snapshots = postgres.NewSnapshotStore(db)
		games = postgres.NewSessionStore(db)
	}

	engine, err := usecase.NewTimerEngine(snapshots, session.NewState(session.Settings{}),
		usecase.WithEngineLogger(logger),
	)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("build timer engine: %w", err)
	}

	sessions := usecase.NewSessionService(engine, games,
		usecase.WithSessionLogger(logger),
		usecase.WithSaverConfig(debounce.Config{
			Delay:       cfg.SaveDebounceDelay,
			MaxRetries:  cfg.SaveMaxRetries,
			BackoffBase: cfg.SaveBackoffBase,
		}),
	)

	var gateway usecase.RemoteGateway = usecase.OfflineGateway{}
	if cfg.SyncGateEnabled {
		gateway = remote.NewClient(remote.ClientConfig{
			BaseURL:    cfg.SyncGateBaseURL,
			Token:      cfg.SyncGateToken,
			Timeout:    cfg.SyncGateTimeout,
			MaxRetries: cfg.SyncGateMaxRetries,
			Logger:     logger,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.SyncGateCircuitEnabled,
				FailureThreshold: cfg.SyncGateCircuitFailureCount,
				OpenTimeout:      cfg.SyncGateCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.SyncGateCircuitHalfOpenMax,
			},
		})
	} else {
		logger.Info("sync gate disabled", "reason", "SYNC_GATE_ENABLED=false")
	}

	tracker := progress.NewTracker(
		idgen.NewPrefixedGenerator("sync"),
		progress.WithCompletedRetention(cfg.SyncCompletedRetention),
	)
	syncs := usecase.NewSyncService(games, gateway, sequence.NewQueue(logger), tracker, logger)

	handler := httpapi.NewHandler(sessions, syncs, games, logger)
	router := httpapi.NewRouter(handler, logger, cfg.SwaggerEnabled, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &App{
		Server:        server,
		Engine:        engine,
		Sessions:      sessions,
		Syncs:         syncs,
		db:            db,
		logger:        logger,
		sweepInterval: cfg.SyncSweepInterval,
	}, nil
}

// Start runs the one-time legacy snapshot migration and launches the
// background sync sweeper. It does not serve HTTP; the caller owns the
// server lifecycle.
func (a *App) Start(ctx context.Context) error {
	if err := a.Engine.MigrateLegacy(ctx); err != nil {
		return fmt.Errorf("legacy snapshot migration: %w", err)
	}
	go a.Syncs.Run(ctx, a.sweepInterval)
	return nil
}

func (a *App) Close() error {
	a.Sessions.Close()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/touchline/matchclock/internal/platform/logging"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	HTTPAddr       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// Empty DBURL selects the in-memory stores; the service then runs
	// fully offline.
	DBURL                   string
	DBDisablePreparedBinary bool

	CORSAllowedOrigins []string
	SwaggerEnabled     bool

	SaveDebounceDelay time.Duration
	SaveMaxRetries    int
	SaveBackoffBase   time.Duration

	SyncGateEnabled             bool
	SyncGateBaseURL             string
	SyncGateToken               string
	SyncGateTimeout             time.Duration
	SyncGateMaxRetries          int
	SyncGateCircuitEnabled      bool
	SyncGateCircuitFailureCount int
	SyncGateCircuitOpenTimeout  time.Duration
	SyncGateCircuitHalfOpenMax  int

	SyncCompletedRetention int
	SyncSweepInterval      time.Duration

	PprofEnabled bool
	PprofAddr    string

	UptraceEnabled     bool
	UptraceDSN         string
	UptraceLogsEnabled bool

	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration

	LogLevel logging.Level
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	swaggerDefault := "true"
	if appEnv == EnvProd {
		swaggerDefault = "false"
	}

	swaggerEnabled, err := strconv.ParseBool(getEnv("SWAGGER_ENABLED", swaggerDefault))
	if err != nil {
		return Config{}, fmt.Errorf("parse SWAGGER_ENABLED: %w", err)
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}

	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceDSN == "" {
		uptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	uptraceLogsEnabled, err := strconv.ParseBool(getEnv("UPTRACE_LOGS_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_LOGS_ENABLED: %w", err)
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return Config{}, fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	saveDebounceDelay, err := time.ParseDuration(getEnv("SAVE_DEBOUNCE_DELAY", "2s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SAVE_DEBOUNCE_DELAY: %w", err)
	}
	if saveDebounceDelay <= 0 {
		return Config{}, fmt.Errorf("SAVE_DEBOUNCE_DELAY must be > 0")
	}
	saveMaxRetries, err := getEnvAsInt("SAVE_MAX_RETRIES", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse SAVE_MAX_RETRIES: %w", err)
	}
	if saveMaxRetries < 0 {
		return Config{}, fmt.Errorf("SAVE_MAX_RETRIES must be >= 0")
	}
	saveBackoffBase, err := time.ParseDuration(getEnv("SAVE_BACKOFF_BASE", "1s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SAVE_BACKOFF_BASE: %w", err)
	}
	if saveBackoffBase <= 0 {
		return Config{}, fmt.Errorf("SAVE_BACKOFF_BASE must be > 0")
	}

	syncGateEnabled, err := strconv.ParseBool(getEnv("SYNC_GATE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_GATE_ENABLED: %w", err)
	}
	syncGateBaseURL := strings.TrimSpace(getEnv("SYNC_GATE_BASE_URL", ""))
	if syncGateEnabled && syncGateBaseURL == "" {
		return Config{}, fmt.Errorf("SYNC_GATE_BASE_URL is required when SYNC_GATE_ENABLED=true")
	}
	syncGateTimeout, err := time.ParseDuration(getEnv("SYNC_GATE_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_GATE_TIMEOUT: %w", err)
	}
	if syncGateTimeout <= 0 {
		return Config{}, fmt.Errorf("SYNC_GATE_TIMEOUT must be > 0")
	}
	syncGateMaxRetries, err := getEnvAsInt("SYNC_GATE_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_GATE_MAX_RETRIES: %w", err)
	}
	if syncGateMaxRetries < 0 {
		return Config{}, fmt.Errorf("SYNC_GATE_MAX_RETRIES must be >= 0")
	}
	syncGateCircuitEnabled, err := strconv.ParseBool(getEnv("SYNC_GATE_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_GATE_CIRCUIT_ENABLED: %w", err)
	}
	syncGateCircuitFailureCount, err := getEnvAsInt("SYNC_GATE_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_GATE_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if syncGateCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("SYNC_GATE_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	syncGateCircuitOpenTimeout, err := time.ParseDuration(getEnv("SYNC_GATE_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_GATE_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if syncGateCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("SYNC_GATE_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	syncGateCircuitHalfOpenMax, err := getEnvAsInt("SYNC_GATE_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_GATE_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if syncGateCircuitHalfOpenMax < 1 {
		return Config{}, fmt.Errorf("SYNC_GATE_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	syncCompletedRetention, err := getEnvAsInt("SYNC_COMPLETED_RETENTION", 50)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_COMPLETED_RETENTION: %w", err)
	}
	if syncCompletedRetention < 1 {
		return Config{}, fmt.Errorf("SYNC_COMPLETED_RETENTION must be >= 1")
	}
	syncSweepInterval, err := time.ParseDuration(getEnv("SYNC_SWEEP_INTERVAL", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_SWEEP_INTERVAL: %w", err)
	}
	if syncSweepInterval <= 0 {
		return Config{}, fmt.Errorf("SYNC_SWEEP_INTERVAL must be > 0")
	}

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}

	dbDisablePreparedBinary, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}

	cfg := Config{
		AppEnv:                      appEnv,
		ServiceName:                 getEnv("APP_SERVICE_NAME", "matchclock-api"),
		ServiceVersion:              getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:                    getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:                 readTimeout,
		WriteTimeout:                writeTimeout,
		DBURL:                       strings.TrimSpace(getEnv("DB_URL", "")),
		DBDisablePreparedBinary:     dbDisablePreparedBinary,
		CORSAllowedOrigins:          splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		SwaggerEnabled:              swaggerEnabled,
		SaveDebounceDelay:           saveDebounceDelay,
		SaveMaxRetries:              saveMaxRetries,
		SaveBackoffBase:             saveBackoffBase,
		SyncGateEnabled:             syncGateEnabled,
		SyncGateBaseURL:             syncGateBaseURL,
		SyncGateToken:               strings.TrimSpace(getEnv("SYNC_GATE_TOKEN", "")),
		SyncGateTimeout:             syncGateTimeout,
		SyncGateMaxRetries:          syncGateMaxRetries,
		SyncGateCircuitEnabled:      syncGateCircuitEnabled,
		SyncGateCircuitFailureCount: syncGateCircuitFailureCount,
		SyncGateCircuitOpenTimeout:  syncGateCircuitOpenTimeout,
		SyncGateCircuitHalfOpenMax:  syncGateCircuitHalfOpenMax,
		SyncCompletedRetention:      syncCompletedRetention,
		SyncSweepInterval:           syncSweepInterval,
		PprofEnabled:                pprofEnabled,
		PprofAddr:                   pprofAddr,
		UptraceEnabled:              uptraceEnabled,
		UptraceDSN:                  uptraceDSN,
		UptraceLogsEnabled:          uptraceLogsEnabled,
		PyroscopeEnabled:            pyroscopeEnabled,
		PyroscopeServerAddress:      pyroscopeServerAddress,
		PyroscopeAuthToken:          strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:      strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword:  strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:         pyroscopeUploadRate,
		LogLevel:                    parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
	}

	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	return cfg, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

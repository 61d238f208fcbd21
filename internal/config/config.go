package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	CORSOrigins             []string
	RateLimitRPM            int
	RateLimitWriteRPM       int
	JWTSecret               string
	WriteRoles              []string

	LogLevel    slog.Level
	LogFormat   string
	OpenAPIPath string

	StorageBackend string
	StateRoot      string
	SQLitePath     string
	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32

	LedgerNamespace     string
	LedgerRetention     time.Duration
	LedgerSweepInterval time.Duration

	PushSSEURL            string
	PushWSURL             string
	PushToken             string
	PushReconnectInterval time.Duration

	RemoteBaseURL string
	RemoteToken   string
	RemoteTimeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 300),
		RateLimitWriteRPM:       getInt("RATE_LIMIT_WRITE_RPM", 60),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET")),
		WriteRoles:              splitCSV(os.Getenv("WRITE_ROLES")),

		LogLevel:    getLevel("LOG_LEVEL", slog.LevelInfo),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "pretty")),
		OpenAPIPath: getEnv("OPENAPI_PATH", "./docs/openapi.yaml"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendFile)),
		StateRoot:      getEnv("STATE_ROOT", "./state"),
		SQLitePath:     getEnv("SQLITE_PATH", "./state/ledger.db"),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:     int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:     int32(getInt("DB_MIN_CONNS", 1)),

		LedgerNamespace:     strings.TrimSpace(os.Getenv("LEDGER_NAMESPACE")),
		LedgerRetention:     getDuration("LEDGER_RETENTION", 0),
		LedgerSweepInterval: getDuration("LEDGER_SWEEP_INTERVAL", time.Hour),

		PushSSEURL:            strings.TrimSpace(os.Getenv("PUSH_SSE_URL")),
		PushWSURL:             strings.TrimSpace(os.Getenv("PUSH_WS_URL")),
		PushToken:             strings.TrimSpace(os.Getenv("PUSH_TOKEN")),
		PushReconnectInterval: getDuration("PUSH_RECONNECT_INTERVAL", 5*time.Second),

		RemoteBaseURL: strings.TrimSpace(os.Getenv("REMOTE_BASE_URL")),
		RemoteToken:   strings.TrimSpace(os.Getenv("REMOTE_TOKEN")),
		RemoteTimeout: getDuration("REMOTE_TIMEOUT", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	switch c.LogFormat {
	case "pretty", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be pretty or json")
	}

	switch c.StorageBackend {
	case BackendFile:
		if strings.TrimSpace(c.StateRoot) == "" {
			return fmt.Errorf("STATE_ROOT cannot be empty")
		}
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH cannot be empty")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MAX_CONNS/DB_MIN_CONNS are inconsistent")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of file, sqlite, postgres, memory")
	}

	if strings.ContainsAny(c.LedgerNamespace, " \t\n") {
		return fmt.Errorf("LEDGER_NAMESPACE cannot contain whitespace")
	}

	if c.LedgerRetention < 0 {
		return fmt.Errorf("LEDGER_RETENTION cannot be negative")
	}

	if c.PushReconnectInterval < 0 {
		return fmt.Errorf("PUSH_RECONNECT_INTERVAL cannot be negative")
	}

	// the remote purge runs inside the request timeout; a longer remote
	// timeout turns a locally completed purge into a 503
	if c.RemoteBaseURL != "" {
		if c.RemoteTimeout <= 0 {
			return fmt.Errorf("REMOTE_TIMEOUT must be positive")
		}
		if c.RemoteTimeout >= c.RequestTimeout {
			return fmt.Errorf("REMOTE_TIMEOUT (%s) must be shorter than REQUEST_TIMEOUT (%s)", c.RemoteTimeout, c.RequestTimeout)
		}
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getLevel(key string, fallback slog.Level) slog.Level {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}

	return level
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}

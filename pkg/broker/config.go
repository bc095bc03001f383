package broker

import (
	"os"
	"strconv"
	"time"
)

// Config controls the broker server's database backend and listener.
type Config struct {
	DatabaseType    string        // sqlite, postgres, or mysql. Default sqlite.
	DatabaseDSN     string        // Connection string. Default broker.db (sqlite file).
	ListenAddr      string        // HTTP listen address. Default :9292.
	ShutdownTimeout time.Duration // Graceful shutdown deadline. Default 30s.
}

// DefaultConfig returns the default broker configuration.
func DefaultConfig() *Config {
	return &Config{
		DatabaseType:    "sqlite",
		DatabaseDSN:     "broker.db",
		ListenAddr:      ":9292",
		ShutdownTimeout: 30 * time.Second,
	}
}

// ConfigFromEnv loads config from environment variables.
// BROKER_DATABASE_TYPE, BROKER_DATABASE_DSN, BROKER_LISTEN_ADDR,
// BROKER_SHUTDOWN_TIMEOUT_SECONDS
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("BROKER_DATABASE_TYPE"); v != "" {
		cfg.DatabaseType = v
	}
	if v := os.Getenv("BROKER_DATABASE_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := os.Getenv("BROKER_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("BROKER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ShutdownTimeout = time.Duration(n) * time.Second
		}
	}

	return cfg
}

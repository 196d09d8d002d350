// Package config provides runtime configuration values for the relay and
// its tooling.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration knobs for the HTTP server and the adapter
// backends. Tunable signal-processing constants live in Tuning.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// CatalogBackend selects "memory" or "mysql".
	CatalogBackend string
	MySQLDSN       string

	// DedupBackend selects "memory" or "redis".
	DedupBackend string
	RedisAddr    string

	Tuning Tuning
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults. The optional
// tuningFile overrides signal-processing constants (see LoadTuning).
func Load(tuningFile string) (Config, error) {
	tuning, err := LoadTuning(tuningFile)
	if err != nil {
		return Config{}, err
	}
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8000"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 10),
		CatalogBackend:  getenv("CATALOG_BACKEND", "memory"),
		MySQLDSN:        getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/smartcart?parseTime=true"),
		DedupBackend:    getenv("DEDUP_BACKEND", "memory"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		Tuning:          tuning,
	}, nil
}

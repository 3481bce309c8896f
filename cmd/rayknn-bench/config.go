package main

import (
	"errors"
	"log/slog"
	"math"
	"strings"
)

// Config validation errors
var (
	ErrInvalidPoints    = errors.New("points must be positive")
	ErrInvalidQueries   = errors.New("queries must not be negative")
	ErrInvalidK         = errors.New("k must not be negative")
	ErrInvalidWorkers   = errors.New("workers must be positive")
	ErrInvalidCells     = errors.New("sdf_cells must be positive")
	ErrInvalidLogFormat = errors.New("log_format must be 'json' or 'text'")
	ErrInvalidLogLevel  = errors.New("log_level must be debug, info, warn, or error")
)

// Config is read from RAYKNN_* environment variables.
type Config struct {
	Points   int     `envconfig:"POINTS" default:"100000"`
	Clusters int     `envconfig:"CLUSTERS" default:"32"`
	Extent   float32 `envconfig:"EXTENT" default:"100"`
	Queries  int     `envconfig:"QUERIES" default:"10000"`
	K        int     `envconfig:"K" default:"8"`
	Radius   float32 `envconfig:"RADIUS" default:"0"` // 0 means unbounded
	Seed     int64   `envconfig:"SEED" default:"42"`

	// RecallSamples queries are checked against exhaustive search.
	RecallSamples int `envconfig:"RECALL_SAMPLES" default:"100"`

	Rays     int `envconfig:"RAYS" default:"100000"`
	SDFCells int `envconfig:"SDF_CELLS" default:"64"`

	Workers     int    `envconfig:"WORKERS" default:"4"`
	MaxMemory   int64  `envconfig:"MAX_MEMORY" default:"0"`
	IOLimit     int64  `envconfig:"IO_LIMIT" default:"0"`
	SnapshotDir string `envconfig:"SNAPSHOT_DIR"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:""`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.Points <= 0 {
		return ErrInvalidPoints
	}
	if cfg.Queries < 0 || cfg.Rays < 0 || cfg.RecallSamples < 0 {
		return ErrInvalidQueries
	}
	if cfg.K < 0 {
		return ErrInvalidK
	}
	if cfg.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if cfg.SDFCells <= 0 {
		return ErrInvalidCells
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return ErrInvalidLogFormat
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// SearchRadius maps the unbounded sentinel 0 to +Inf.
func (c *Config) SearchRadius() float32 {
	if c.Radius <= 0 {
		return float32(math.Inf(1))
	}
	return c.Radius
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, ErrInvalidLogLevel
	}
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/fairagro/arc-middleware/internal/apiclient"
	"github.com/fairagro/arc-middleware/internal/config"
	"github.com/fairagro/arc-middleware/internal/source"
)

const (
	envPrefix = "SQL_TO_ARC"

	defaultMaxStudies          = 5000
	defaultMaxAssays           = 10000
	defaultBuildTimeoutMinutes = 30
	tasksPerBuildSlot          = 4
)

// ErrRDIEmpty is returned when the target RDI identifier is missing.
var ErrRDIEmpty = errors.New("rdi cannot be empty")

// appConfig is the fully resolved configuration of one conversion run.
type appConfig struct {
	LogLevel slog.Level

	RDI    string
	RDIURL string

	MaxConcurrentBuilds int
	MaxConcurrentTasks  int
	MaxStudies          int
	MaxAssays           int
	BuildTimeout        time.Duration

	DB   source.Config
	API  apiclient.Config
	Otel config.OtelConfig

	KafkaBrokers []string
	KafkaTopic   string
}

// loadConfig reads the YAML file and applies env/secret overrides under the
// SQL_TO_ARC prefix.
func loadConfig(path string) (*appConfig, error) {
	w, err := config.Load(path, envPrefix)
	if err != nil {
		return nil, err
	}

	builds := w.IntOr("max_concurrent_arc_builds", defaultBuildSlots())
	if builds < 1 {
		builds = 1
	}

	cfg := &appConfig{
		LogLevel:            config.ParseLogLevel(w.StringOr("log_level", "INFO"), slog.LevelInfo),
		RDI:                 w.StringOr("rdi", ""),
		RDIURL:              w.StringOr("rdi_url", ""),
		MaxConcurrentBuilds: builds,
		MaxConcurrentTasks:  w.IntOr("max_concurrent_tasks", tasksPerBuildSlot*builds),
		MaxStudies:          w.IntOr("max_studies", defaultMaxStudies),
		MaxAssays:           w.IntOr("max_assays", defaultMaxAssays),
		BuildTimeout:        time.Duration(w.IntOr("arc_generation_timeout_minutes", defaultBuildTimeoutMinutes)) * time.Minute,
		DB:                  source.FromWrapper(w),
		API:                 apiclient.FromWrapper(w.Section("api_client")),
		Otel:                config.OtelFromWrapper(w),
		KafkaBrokers:        w.Section("report").StringSlice("kafka_brokers"),
		KafkaTopic:          w.Section("report").StringOr("kafka_topic", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *appConfig) validate() error {
	if c.RDI == "" {
		return ErrRDIEmpty
	}

	if err := c.DB.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api client config: %w", err)
	}

	return nil
}

// defaultBuildSlots leaves one CPU for the IO side of the pipeline.
func defaultBuildSlots() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}

	return 1
}

// Package main provides the SQL-to-ARC conversion pipeline.
//
// The binary streams research datasets from the upstream PostgreSQL views,
// converts each one into an ARC JSON-LD document and uploads the documents
// to the registration API over mutually-authenticated TLS. A JSON-LD run
// report is printed to stdout when the run finishes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/fairagro/arc-middleware/internal/apiclient"
	"github.com/fairagro/arc-middleware/internal/config"
	"github.com/fairagro/arc-middleware/internal/pipeline"
	"github.com/fairagro/arc-middleware/internal/report"
	"github.com/fairagro/arc-middleware/internal/source"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "sqltoarc"

	activityName   = "SQL to ARC Conversion Run"
	instrumentName = "FAIRagro Middleware SQL-to-ARC"
)

func main() {
	configPath := flag.String("config", config.GetEnvStr(envPrefix+"_CONFIG", "config.yaml"), "path to configuration file")
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	os.Exit(run(*configPath))
}

// run returns the process exit code. Per-dataset failures are reported in
// the run report but do not fail the process; configuration and
// infrastructure errors do.
func run(configPath string) int {
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)

		return 1
	}

	// The report goes to stdout, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("Starting SQL-to-ARC conversion",
		slog.String("service", name),
		slog.String("version", version),
		slog.String("config", configPath),
		slog.String("database", cfg.DB.String()),
		slog.Int("max_concurrent_arc_builds", cfg.MaxConcurrentBuilds),
		slog.Int("max_concurrent_tasks", cfg.MaxConcurrentTasks),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := source.NewConnection(cfg.DB)
	if err != nil {
		logger.Error("Failed to connect to database", slog.Any("error", err))

		return 1
	}

	defer func() {
		_ = db.Close()
	}()

	client, err := apiclient.NewClient(cfg.API, logger)
	if err != nil {
		logger.Error("Failed to initialize API client", slog.Any("error", err))

		return 1
	}

	defer client.Close()

	stream := source.NewStream(db, cfg.DB.BatchSize, logger)

	defer func() {
		_ = stream.Close()
	}()

	worker := pipeline.NewPoolWorker(cfg.MaxConcurrentBuilds, nil)
	scheduler := pipeline.NewScheduler(pipeline.SchedulerConfig{
		RDI:                cfg.RDI,
		MaxConcurrentTasks: cfg.MaxConcurrentTasks,
		MaxStudies:         cfg.MaxStudies,
		MaxAssays:          cfg.MaxAssays,
		BuildTimeout:       cfg.BuildTimeout,
	}, worker, client, logger)

	stats, runErr := scheduler.Run(ctx, stream)

	runID := uuid.New().String()

	emitReport(ctx, cfg, logger, stats, runID)

	if runErr != nil {
		logger.Error("Conversion aborted", slog.Any("error", runErr))

		return 1
	}

	if stats.FailedDatasets > 0 {
		logger.Warn("Conversion finished with failures",
			slog.Int("failed", stats.FailedDatasets),
			slog.Int("found", stats.FoundDatasets),
		)
	} else {
		logger.Info("Conversion finished successfully",
			slog.Int("found", stats.FoundDatasets),
		)
	}

	return 0
}

// emitReport prints the run report to stdout and, when configured, publishes
// it to Kafka. Publishing failures are logged but never fail the run.
func emitReport(ctx context.Context, cfg *appConfig, logger *slog.Logger, stats *report.RunStats, runID string) {
	doc, err := stats.ToJSONLD(report.Options{
		ActivityName: activityName,
		Instrument:   instrumentName,
		RDI:          cfg.RDI,
		RDIURL:       cfg.RDIURL,
		RunID:        runID,
	})
	if err != nil {
		logger.Error("Failed to render run report", slog.Any("error", err))

		return
	}

	fmt.Println(string(doc))

	if len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopic == "" {
		return
	}

	emitter := report.NewKafkaEmitter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)

	defer func() {
		_ = emitter.Close()
	}()

	// The run context may already be cancelled; give the publish its own
	// short deadline.
	publishTimeout := config.GetEnvDuration(envPrefix+"_REPORT_PUBLISH_TIMEOUT", 15*time.Second)

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := emitter.Emit(publishCtx, runID, doc); err != nil {
		logger.Warn("Failed to publish run report", slog.Any("error", err))
	}
}

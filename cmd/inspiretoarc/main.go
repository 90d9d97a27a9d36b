// Package main provides the INSPIRE-to-ARC harvesting pipeline.
//
// The binary pages an INSPIRE CSW catalogue, converts each ISO 19139 record
// into an ARC JSON-LD document and uploads the documents in batches to the
// registration API over mutually-authenticated TLS. A JSON-LD run report is
// printed to stdout when the run finishes.
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

	"github.com/fairagro/arc-middleware/internal/apiclient"
	"github.com/fairagro/arc-middleware/internal/config"
	"github.com/fairagro/arc-middleware/internal/harvester"
	"github.com/fairagro/arc-middleware/internal/mapper"
	"github.com/fairagro/arc-middleware/internal/pipeline"
	"github.com/fairagro/arc-middleware/internal/report"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "inspiretoarc"

	activityName   = "INSPIRE to ARC Harvest Run"
	instrumentName = "FAIRagro Middleware INSPIRE-to-ARC"
)

func main() {
	configPath := flag.String("config", config.GetEnvStr(envPrefix+"_CONFIG", ""), "path to configuration file (required)")
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	os.Exit(run(*configPath))
}

// run returns the process exit code. Per-record failures are reported in the
// run report but do not fail the process; configuration and infrastructure
// errors do.
func run(configPath string) int {
	if configPath == "" {
		log.Printf("Missing required --config flag (or %s_CONFIG)", envPrefix)

		return 2
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)

		return 1
	}

	// The report goes to stdout, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("Starting INSPIRE-to-ARC harvest",
		slog.String("service", name),
		slog.String("version", version),
		slog.String("config", configPath),
		slog.String("csw_url", cfg.CSW.URL),
		slog.String("rdi", cfg.RDI),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := apiclient.NewClient(cfg.API, logger)
	if err != nil {
		logger.Error("Failed to initialize API client", slog.Any("error", err))

		return 1
	}

	defer client.Close()

	csw := harvester.NewClient(cfg.CSW, logger)
	if err := csw.Connect(ctx); err != nil {
		logger.Error("Failed to connect to catalogue", slog.Any("error", err))

		return 1
	}

	records, err := csw.Records(ctx, cfg.Query, cfg.MaxRecords)
	if err != nil {
		logger.Error("Failed to start harvest", slog.Any("error", err))

		return 1
	}

	runner := pipeline.NewHarvestRunner(pipeline.HarvestConfig{
		RDI:       cfg.RDI,
		BatchSize: cfg.BatchSize,
	}, mapper.NewInspireMapper(), client, logger)

	stats, runErr := runner.Run(ctx, records)

	runID := uuid.New().String()

	emitReport(ctx, cfg, logger, stats, runID)

	if runErr != nil {
		logger.Error("Harvest aborted", slog.Any("error", runErr))

		return 1
	}

	if stats.FailedDatasets > 0 {
		logger.Warn("Harvest finished with failures",
			slog.Int("failed", stats.FailedDatasets),
			slog.Int("found", stats.FoundDatasets),
		)
	} else {
		logger.Info("Harvest finished successfully",
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

	publishTimeout := config.GetEnvDuration(envPrefix+"_REPORT_PUBLISH_TIMEOUT", 15*time.Second)

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := emitter.Emit(publishCtx, runID, doc); err != nil {
		logger.Warn("Failed to publish run report", slog.Any("error", err))
	}
}

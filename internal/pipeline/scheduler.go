package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fairagro/arc-middleware/internal/apiclient"
	"github.com/fairagro/arc-middleware/internal/report"
	"github.com/fairagro/arc-middleware/internal/source"
)

// DatasetStream is the producer side of the pipeline.
type DatasetStream interface {
	Next(ctx context.Context) (*source.Dataset, error)
}

// Uploader delivers finished documents to the registration API.
type Uploader interface {
	CreateOrUpdateARC(ctx context.Context, rdi string, arcDoc json.RawMessage) (*apiclient.ArcsResponse, error)
}

// SchedulerConfig bounds one conversion run.
type SchedulerConfig struct {
	RDI                string
	MaxConcurrentTasks int
	MaxStudies         int
	MaxAssays          int
	BuildTimeout       time.Duration
}

// Scheduler pulls datasets from the stream and processes each one through
// build and upload, keeping at most MaxConcurrentTasks datasets in flight.
// The ticket channel is the backpressure gate: when all tickets are taken
// the producer stops reading from the database.
type Scheduler struct {
	cfg      SchedulerConfig
	worker   SerializerWorker
	uploader Uploader
	logger   *slog.Logger

	mu    sync.Mutex
	stats report.RunStats
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig, worker SerializerWorker, uploader Uploader, logger *slog.Logger) *Scheduler {
	if cfg.MaxConcurrentTasks < 1 {
		cfg.MaxConcurrentTasks = 1
	}

	return &Scheduler{
		cfg:      cfg,
		worker:   worker,
		uploader: uploader,
		logger:   logger,
	}
}

// Run drains the stream. Per-dataset failures are counted and skipped; only
// stream-level failures abort the run. The returned stats are complete even
// when an error is returned.
func (s *Scheduler) Run(ctx context.Context, stream DatasetStream) (*report.RunStats, error) {
	start := time.Now()
	tickets := make(chan struct{}, s.cfg.MaxConcurrentTasks)

	var wg sync.WaitGroup

	s.logger.Info("Starting streaming processing",
		slog.Int("max_concurrent_tasks", s.cfg.MaxConcurrentTasks),
	)

	var runErr error

	for {
		ds, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, source.ErrDone) {
				break
			}

			runErr = fmt.Errorf("dataset stream failed: %w", err)

			break
		}

		s.mu.Lock()
		s.stats.FoundDatasets++
		s.mu.Unlock()

		select {
		case tickets <- struct{}{}:
		case <-ctx.Done():
			runErr = ctx.Err()
		}

		if runErr != nil {
			s.recordFailure(strconv.FormatInt(ds.Investigation.ID, 10))

			break
		}

		wg.Add(1)

		go func(ds *source.Dataset) {
			defer wg.Done()
			defer func() {
				<-tickets
			}()

			s.processDataset(ctx, ds)
		}(ds)
	}

	wg.Wait()

	s.mu.Lock()
	s.stats.Duration = time.Since(start)
	stats := s.stats
	s.mu.Unlock()

	return &stats, runErr
}

// processDataset runs one dataset through validation, build and upload.
func (s *Scheduler) processDataset(ctx context.Context, ds *source.Dataset) {
	id := strconv.FormatInt(ds.Investigation.ID, 10)
	numStudies := ds.StudyCount()
	numAssays := ds.AssayCount()

	logger := s.logger.With(slog.String("investigation_id", id))

	if s.cfg.MaxStudies > 0 && numStudies > s.cfg.MaxStudies {
		logger.Warn("Skipping dataset: study count exceeds limit",
			slog.Int("studies", numStudies),
			slog.Int("limit", s.cfg.MaxStudies),
		)
		s.recordFailure(id)

		return
	}

	if s.cfg.MaxAssays > 0 && numAssays > s.cfg.MaxAssays {
		logger.Warn("Skipping dataset: assay count exceeds limit",
			slog.Int("assays", numAssays),
			slog.Int("limit", s.cfg.MaxAssays),
		)
		s.recordFailure(id)

		return
	}

	// Totals only count datasets that passed size validation.
	s.mu.Lock()
	s.stats.TotalStudies += numStudies
	s.stats.TotalAssays += numAssays
	s.mu.Unlock()

	logger.Info("Starting ARC build",
		slog.Int("studies", numStudies),
		slog.Int("assays", numAssays),
	)

	buildCtx := ctx

	if s.cfg.BuildTimeout > 0 {
		var cancel context.CancelFunc

		buildCtx, cancel = context.WithTimeout(ctx, s.cfg.BuildTimeout)
		defer cancel()
	}

	doc, err := s.worker.Build(buildCtx, ds)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Error("ARC build timed out", slog.Duration("timeout", s.cfg.BuildTimeout))
		} else {
			logger.Error("ARC build failed", slog.Any("error", err))
		}

		s.recordFailure(id)

		return
	}

	logger.Info("ARC build complete, uploading",
		slog.Float64("payload_mb", float64(len(doc))/(1024*1024)),
	)

	// A cancelled run must not start new uploads.
	if ctx.Err() != nil {
		s.recordFailure(id)

		return
	}

	resp, err := s.uploader.CreateOrUpdateARC(ctx, s.cfg.RDI, doc)
	if err != nil {
		logger.Error("Upload failed", slog.Any("error", err))
		s.recordFailure(id)

		return
	}

	status := "processed"
	if len(resp.Arcs) > 0 && resp.Arcs[0].Status != "" {
		status = resp.Arcs[0].Status
	}

	logger.Info("ARC uploaded",
		slog.String("status", status),
		slog.String("rdi", s.cfg.RDI),
	)
}

func (s *Scheduler) recordFailure(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.RecordFailure(id)
}

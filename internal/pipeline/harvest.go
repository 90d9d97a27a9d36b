package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/fairagro/arc-middleware/internal/apiclient"
	"github.com/fairagro/arc-middleware/internal/harvester"
	"github.com/fairagro/arc-middleware/internal/mapper"
	"github.com/fairagro/arc-middleware/internal/report"
)

// RecordIterator is the producer side of a catalogue harvest.
type RecordIterator interface {
	Next(ctx context.Context) (*harvester.Item, error)
}

// BatchUploader delivers document batches to the registration API.
type BatchUploader interface {
	CreateOrUpdateARCs(ctx context.Context, rdi string, arcDocs []json.RawMessage) (*apiclient.ArcsResponse, error)
}

// HarvestConfig bounds one harvest run.
type HarvestConfig struct {
	RDI       string
	BatchSize int
}

type batchEntry struct {
	id  string
	doc json.RawMessage
}

// HarvestRunner converts harvested records and uploads them in batches.
// Unparseable or unmappable records are counted and skipped; an upload
// failure fails every record of its batch but the harvest continues.
type HarvestRunner struct {
	cfg      HarvestConfig
	mapper   *mapper.InspireMapper
	uploader BatchUploader
	logger   *slog.Logger

	stats report.RunStats
	batch []batchEntry
}

// NewHarvestRunner creates a runner.
func NewHarvestRunner(cfg HarvestConfig, m *mapper.InspireMapper, uploader BatchUploader, logger *slog.Logger) *HarvestRunner {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}

	return &HarvestRunner{
		cfg:      cfg,
		mapper:   m,
		uploader: uploader,
		logger:   logger,
	}
}

// Run drains the iterator. Only transport-level failures abort the harvest;
// the pending batch is still flushed before returning. The returned stats
// are complete even when an error is returned.
func (r *HarvestRunner) Run(ctx context.Context, records RecordIterator) (*report.RunStats, error) {
	start := time.Now()

	var runErr error

	for {
		item, err := records.Next(ctx)
		if err != nil {
			if !errors.Is(err, harvester.ErrDone) {
				runErr = err
			}

			break
		}

		r.stats.FoundDatasets++

		if item.Err != nil {
			r.logger.Error("Skipping unparseable record",
				slog.String("record_id", item.Err.ID),
				slog.Any("error", item.Err.Cause),
			)
			r.stats.RecordFailure(item.Err.ID)

			continue
		}

		r.logger.Info("Processing record", slog.String("record_id", item.Record.Identifier))

		doc, err := r.mapper.MapRecordJSON(item.Record)
		if err != nil {
			r.logger.Error("Failed to map record",
				slog.String("record_id", item.Record.Identifier),
				slog.Any("error", err),
			)
			r.stats.RecordFailure(item.Record.Identifier)

			continue
		}

		r.batch = append(r.batch, batchEntry{id: item.Record.Identifier, doc: doc})

		if len(r.batch) >= r.cfg.BatchSize {
			r.flush(ctx)
		}
	}

	if len(r.batch) > 0 {
		r.logger.Info("Uploading final batch", slog.Int("arcs", len(r.batch)))
		r.flush(ctx)
	}

	r.stats.Duration = time.Since(start)

	if runErr != nil {
		return &r.stats, runErr
	}

	r.logger.Info("Harvest complete",
		slog.Int("found", r.stats.FoundDatasets),
		slog.Int("failed", r.stats.FailedDatasets),
	)

	return &r.stats, nil
}

// flush uploads the pending batch. On failure every record in the batch is
// marked failed; successful uploads count one study and one assay per
// record, matching the shape of mapped catalogue records.
func (r *HarvestRunner) flush(ctx context.Context) {
	if len(r.batch) == 0 {
		return
	}

	docs := make([]json.RawMessage, 0, len(r.batch))
	for _, entry := range r.batch {
		docs = append(docs, entry.doc)
	}

	r.logger.Info("Uploading batch", slog.Int("arcs", len(docs)))

	_, err := r.uploader.CreateOrUpdateARCs(ctx, r.cfg.RDI, docs)
	if err != nil {
		r.logger.Error("Batch upload failed", slog.Int("arcs", len(docs)), slog.Any("error", err))

		for _, entry := range r.batch {
			r.stats.RecordFailure(entry.id)
		}
	} else {
		r.stats.TotalStudies += len(r.batch)
		r.stats.TotalAssays += len(r.batch)
	}

	r.batch = r.batch[:0]
}

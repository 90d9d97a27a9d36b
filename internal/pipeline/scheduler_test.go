package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairagro/arc-middleware/internal/apiclient"
	"github.com/fairagro/arc-middleware/internal/source"
)

func testPipelineLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// sliceStream yields a fixed list of datasets, then finalErr (defaults to
// ErrDone).
type sliceStream struct {
	datasets []*source.Dataset
	finalErr error
	idx      int
}

func (s *sliceStream) Next(_ context.Context) (*source.Dataset, error) {
	if s.idx >= len(s.datasets) {
		if s.finalErr != nil {
			return nil, s.finalErr
		}

		return nil, source.ErrDone
	}

	ds := s.datasets[s.idx]
	s.idx++

	return ds, nil
}

type fakeUploader struct {
	mu       sync.Mutex
	uploaded []string
	failIDs  map[string]bool
}

func (u *fakeUploader) CreateOrUpdateARC(_ context.Context, _ string, doc json.RawMessage) (*apiclient.ArcsResponse, error) {
	var parsed struct {
		ID string `json:"id"`
	}

	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.failIDs[parsed.ID] {
		return nil, &apiclient.HTTPError{StatusCode: 500, Body: "boom"}
	}

	u.uploaded = append(u.uploaded, parsed.ID)

	return &apiclient.ArcsResponse{Arcs: []apiclient.ArcStatus{{ID: parsed.ID, Status: "created"}}}, nil
}

func (u *fakeUploader) ids() []string {
	u.mu.Lock()
	defer u.mu.Unlock()

	out := make([]string, len(u.uploaded))
	copy(out, u.uploaded)

	return out
}

// idBuild renders a dataset as a tiny JSON object carrying its ID as a
// string, matching how the uploader fake reads it back.
func idBuild(ds *source.Dataset) ([]byte, error) {
	return json.Marshal(map[string]any{"id": strconv.FormatInt(ds.Investigation.ID, 10)})
}

func datasetWithCounts(id int64, studies, assaysPerStudy int) *source.Dataset {
	ds := &source.Dataset{
		Investigation: source.Investigation{ID: id},
		AssaysByStudy: map[int64][]source.Assay{},
	}

	for s := 0; s < studies; s++ {
		studyID := id*1000 + int64(s)
		ds.Studies = append(ds.Studies, source.Study{ID: studyID, InvestigationID: id})

		for a := 0; a < assaysPerStudy; a++ {
			ds.AssaysByStudy[studyID] = append(ds.AssaysByStudy[studyID], source.Assay{
				ID:      studyID*100 + int64(a),
				StudyID: studyID,
			})
		}
	}

	return ds
}

func TestSchedulerRun(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	stream := &sliceStream{datasets: []*source.Dataset{
		datasetWithCounts(1, 2, 3),
		datasetWithCounts(2, 1, 1),
		datasetWithCounts(3, 0, 0),
	}}
	uploader := &fakeUploader{}

	scheduler := NewScheduler(
		SchedulerConfig{RDI: "bonares", MaxConcurrentTasks: 2},
		NewInProcessWorker(idBuild),
		uploader,
		testPipelineLogger(),
	)

	stats, err := scheduler.Run(context.Background(), stream)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.FoundDatasets)
	assert.Equal(t, 3, stats.TotalStudies)
	assert.Equal(t, 7, stats.TotalAssays)
	assert.Equal(t, 0, stats.FailedDatasets)
	assert.True(t, stats.Succeeded())
	assert.Positive(t, stats.Duration)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, uploader.ids())
}

func TestSchedulerSizeLimits(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	stream := &sliceStream{datasets: []*source.Dataset{
		datasetWithCounts(1, 2, 1), // at the study limit, passes
		datasetWithCounts(2, 3, 1), // over the study limit
		datasetWithCounts(3, 1, 5), // over the assay limit
	}}
	uploader := &fakeUploader{}

	scheduler := NewScheduler(
		SchedulerConfig{RDI: "bonares", MaxConcurrentTasks: 1, MaxStudies: 2, MaxAssays: 4},
		NewInProcessWorker(idBuild),
		uploader,
		testPipelineLogger(),
	)

	stats, err := scheduler.Run(context.Background(), stream)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.FoundDatasets)
	assert.Equal(t, 2, stats.FailedDatasets)
	assert.ElementsMatch(t, []string{"2", "3"}, stats.FailedIDs)

	// Totals only include the dataset that passed validation.
	assert.Equal(t, 2, stats.TotalStudies)
	assert.Equal(t, 2, stats.TotalAssays)
	assert.Equal(t, []string{"1"}, uploader.ids())
}

func TestSchedulerBuildFailure(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	stream := &sliceStream{datasets: []*source.Dataset{
		datasetWithCounts(1, 1, 1),
		datasetWithCounts(2, 1, 1),
	}}
	uploader := &fakeUploader{}

	worker := NewInProcessWorker(func(ds *source.Dataset) ([]byte, error) {
		if ds.Investigation.ID == 1 {
			return nil, errors.New("cannot serialize")
		}

		return idBuild(ds)
	})

	scheduler := NewScheduler(
		SchedulerConfig{RDI: "bonares", MaxConcurrentTasks: 1},
		worker,
		uploader,
		testPipelineLogger(),
	)

	stats, err := scheduler.Run(context.Background(), stream)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FailedDatasets)
	assert.Equal(t, []string{"1"}, stats.FailedIDs)
	assert.Equal(t, []string{"2"}, uploader.ids())
}

func TestSchedulerUploadFailure(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	stream := &sliceStream{datasets: []*source.Dataset{
		datasetWithCounts(1, 1, 1),
		datasetWithCounts(2, 1, 1),
	}}
	uploader := &fakeUploader{failIDs: map[string]bool{"1": true}}

	scheduler := NewScheduler(
		SchedulerConfig{RDI: "bonares", MaxConcurrentTasks: 1},
		NewInProcessWorker(idBuild),
		uploader,
		testPipelineLogger(),
	)

	stats, err := scheduler.Run(context.Background(), stream)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FailedDatasets)
	assert.Equal(t, []string{"1"}, stats.FailedIDs)
	assert.Equal(t, []string{"2"}, uploader.ids())
}

func TestSchedulerStreamFailureAbortsRun(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	stream := &sliceStream{
		datasets: []*source.Dataset{datasetWithCounts(1, 1, 1)},
		finalErr: errors.New("connection lost"),
	}
	uploader := &fakeUploader{}

	scheduler := NewScheduler(
		SchedulerConfig{RDI: "bonares", MaxConcurrentTasks: 1},
		NewInProcessWorker(idBuild),
		uploader,
		testPipelineLogger(),
	)

	stats, err := scheduler.Run(context.Background(), stream)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset stream failed")

	// The dataset consumed before the failure was still processed.
	assert.Equal(t, 1, stats.FoundDatasets)
	assert.Equal(t, []string{"1"}, uploader.ids())
}

func TestSchedulerCancellationSkipsUpload(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stream := &sliceStream{datasets: []*source.Dataset{datasetWithCounts(1, 1, 1)}}
	uploader := &fakeUploader{}

	// The build succeeds but cancels the run before the upload step.
	worker := NewInProcessWorker(func(ds *source.Dataset) ([]byte, error) {
		cancel()

		return idBuild(ds)
	})

	scheduler := NewScheduler(
		SchedulerConfig{RDI: "bonares", MaxConcurrentTasks: 1},
		worker,
		uploader,
		testPipelineLogger(),
	)

	stats, _ := scheduler.Run(ctx, stream)

	assert.Empty(t, uploader.ids(), "no upload may start after cancellation")
	assert.Equal(t, 1, stats.FailedDatasets)
	assert.Equal(t, []string{"1"}, stats.FailedIDs)
}

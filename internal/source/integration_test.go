package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/fairagro/arc-middleware/internal/config"
)

func TestStreamIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := config.SetupTestDatabase(ctx, t)

	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	db := testDB.Connection

	_, err := db.ExecContext(ctx, `
		INSERT INTO "ARC_Investigation" (id, title, description, submission_time, release_time) VALUES
			(1, 'First investigation', 'About soil', '2023-04-01T00:00:00Z', NULL),
			(2, 'Second investigation', NULL, NULL, NULL),
			(3, 'Third investigation', NULL, NULL, NULL)
	`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO "ARC_Study" (id, investigation_id, title, description, submission_time, release_time) VALUES
			(10, 1, 'Study A', NULL, NULL, NULL),
			(11, 1, 'Study B', NULL, NULL, NULL),
			(20, 2, 'Study C', NULL, NULL, NULL)
	`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO "ARC_Assay" (id, study_id, measurement_type, technology_type) VALUES
			(100, 10, 'soil sampling', 'sensor network'),
			(101, 10, NULL, NULL),
			(102, 20, 'weather observation', NULL)
	`)
	require.NoError(t, err)

	stream := NewStream(db, 2, testLogger())

	t.Cleanup(func() {
		_ = stream.Close()
	})

	var datasets []*Dataset

	for {
		ds, err := stream.Next(ctx)
		if errors.Is(err, ErrDone) {
			break
		}

		require.NoError(t, err)
		datasets = append(datasets, ds)
	}

	require.Len(t, datasets, 3)

	// Ordered by investigation id.
	assert.Equal(t, int64(1), datasets[0].Investigation.ID)
	assert.Equal(t, int64(2), datasets[1].Investigation.ID)
	assert.Equal(t, int64(3), datasets[2].Investigation.ID)

	assert.Equal(t, 2, datasets[0].StudyCount())
	assert.Equal(t, 2, datasets[0].AssayCount())
	require.NotNil(t, datasets[0].Investigation.SubmissionTime)

	assert.Equal(t, 1, datasets[1].StudyCount())
	assert.Equal(t, 1, datasets[1].AssayCount())
	assert.Equal(t, "weather observation", datasets[1].AssaysByStudy[20][0].MeasurementType)

	assert.Equal(t, 0, datasets[2].StudyCount())
	assert.Equal(t, 0, datasets[2].AssayCount())
}

package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// ErrDone signals that the stream is exhausted. Streams are finite and not
// restartable.
var ErrDone = errors.New("record stream exhausted")

const (
	investigationQuery = `SELECT id, title, description, submission_time, release_time ` +
		`FROM "ARC_Investigation" ORDER BY id`
	studyQuery = `SELECT id, investigation_id, title, description, submission_time, release_time ` +
		`FROM "ARC_Study" WHERE investigation_id = ANY($1)`
	assayQuery = `SELECT id, study_id, measurement_type, technology_type ` +
		`FROM "ARC_Assay" WHERE study_id = ANY($1)`
)

// Stream is a pull-based lazy producer of datasets. Investigation rows are
// consumed page-wise from a single result set; studies and assays for each
// page are fetched with one batched query each, avoiding the N+1 problem.
// At most the current page is materialized. Not safe for concurrent use:
// only the pipeline producer touches it.
type Stream struct {
	db        *sql.DB
	batchSize int
	logger    *slog.Logger

	rows    *sql.Rows
	started bool
	page    []*Dataset
	pageIdx int
}

// NewStream creates a stream over the given connection. batchSize is the
// number of investigations fetched and joined per page.
func NewStream(db *sql.DB, batchSize int, logger *slog.Logger) *Stream {
	return &Stream{db: db, batchSize: batchSize, logger: logger}
}

// Next returns the next dataset or ErrDone when the stream is exhausted.
// A failure while fetching child rows fails the entire page: no partial
// page is ever yielded.
func (s *Stream) Next(ctx context.Context) (*Dataset, error) {
	if !s.started {
		rows, err := s.db.QueryContext(ctx, investigationQuery)
		if err != nil {
			return nil, fmt.Errorf("failed to query investigations: %w", err)
		}

		s.rows = rows
		s.started = true
	}

	if s.pageIdx >= len(s.page) {
		if err := s.fetchPage(ctx); err != nil {
			return nil, err
		}

		if len(s.page) == 0 {
			return nil, ErrDone
		}
	}

	ds := s.page[s.pageIdx]
	s.page[s.pageIdx] = nil // release as soon as ownership moves to the caller
	s.pageIdx++

	return ds, nil
}

// Close releases the underlying result set.
func (s *Stream) Close() error {
	if s.rows == nil {
		return nil
	}

	return s.rows.Close()
}

func (s *Stream) fetchPage(ctx context.Context) error {
	s.page = s.page[:0]
	s.pageIdx = 0

	investigations := make([]Investigation, 0, s.batchSize)

	for len(investigations) < s.batchSize && s.rows.Next() {
		var (
			inv               Investigation
			title, desc       sql.NullString
			submitted, public sql.NullTime
		)

		if err := s.rows.Scan(&inv.ID, &title, &desc, &submitted, &public); err != nil {
			return fmt.Errorf("failed to scan investigation row: %w", err)
		}

		inv.Title = title.String
		inv.Description = desc.String
		inv.SubmissionTime = nullTimePtr(submitted)
		inv.ReleaseTime = nullTimePtr(public)

		investigations = append(investigations, inv)
	}

	if err := s.rows.Err(); err != nil {
		return fmt.Errorf("investigation cursor failed: %w", err)
	}

	if len(investigations) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(investigations))
	for i := range investigations {
		ids = append(ids, investigations[i].ID)
	}

	studiesByInv, studyIDs, err := s.fetchStudies(ctx, ids)
	if err != nil {
		return err
	}

	assaysByStudy := make(map[int64][]Assay)

	if len(studyIDs) > 0 {
		assaysByStudy, err = s.fetchAssays(ctx, studyIDs)
		if err != nil {
			return err
		}
	}

	s.logger.Debug("Fetched investigation page",
		slog.Int("investigations", len(investigations)),
		slog.Int("studies", len(studyIDs)),
	)

	for i := range investigations {
		inv := investigations[i]
		studies := studiesByInv[inv.ID]

		// Each dataset only carries the assay buckets of its own studies.
		assays := make(map[int64][]Assay, len(studies))
		for _, study := range studies {
			if bucket, ok := assaysByStudy[study.ID]; ok {
				assays[study.ID] = bucket
			}
		}

		s.page = append(s.page, &Dataset{
			Investigation: inv,
			Studies:       studies,
			AssaysByStudy: assays,
		})
	}

	return nil
}

func (s *Stream) fetchStudies(ctx context.Context, investigationIDs []int64) (map[int64][]Study, []int64, error) {
	rows, err := s.db.QueryContext(ctx, studyQuery, pq.Array(investigationIDs))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query studies for page: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	byInvestigation := make(map[int64][]Study)

	var studyIDs []int64

	for rows.Next() {
		var (
			study             Study
			title, desc       sql.NullString
			submitted, public sql.NullTime
		)

		if err := rows.Scan(&study.ID, &study.InvestigationID, &title, &desc, &submitted, &public); err != nil {
			return nil, nil, fmt.Errorf("failed to scan study row: %w", err)
		}

		study.Title = title.String
		study.Description = desc.String
		study.SubmissionTime = nullTimePtr(submitted)
		study.ReleaseTime = nullTimePtr(public)

		byInvestigation[study.InvestigationID] = append(byInvestigation[study.InvestigationID], study)
		studyIDs = append(studyIDs, study.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("study cursor failed: %w", err)
	}

	return byInvestigation, studyIDs, nil
}

func (s *Stream) fetchAssays(ctx context.Context, studyIDs []int64) (map[int64][]Assay, error) {
	rows, err := s.db.QueryContext(ctx, assayQuery, pq.Array(studyIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query assays for page: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	byStudy := make(map[int64][]Assay)

	for rows.Next() {
		var (
			assay        Assay
			mtype, ttype sql.NullString
		)

		if err := rows.Scan(&assay.ID, &assay.StudyID, &mtype, &ttype); err != nil {
			return nil, fmt.Errorf("failed to scan assay row: %w", err)
		}

		assay.MeasurementType = mtype.String
		assay.TechnologyType = ttype.String

		byStudy[assay.StudyID] = append(byStudy[assay.StudyID], assay)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("assay cursor failed: %w", err)
	}

	return byStudy, nil
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}

	t := v.Time

	return &t
}

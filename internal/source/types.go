// Package source streams research datasets out of the upstream relational
// database. It is the paginated producer side of the conversion pipeline:
// investigations are fetched page-wise, child studies and assays are fetched
// in batched queries per page, and the resulting dataset tuples are handed
// to the scheduler one at a time.
package source

import "time"

// Investigation is one row of the upstream "ARC_Investigation" view.
type Investigation struct {
	ID             int64
	Title          string
	Description    string
	SubmissionTime *time.Time
	ReleaseTime    *time.Time
}

// Study is one row of the upstream "ARC_Study" view.
type Study struct {
	ID              int64
	InvestigationID int64
	Title           string
	Description     string
	SubmissionTime  *time.Time
	ReleaseTime     *time.Time
}

// Assay is one row of the upstream "ARC_Assay" view.
type Assay struct {
	ID              int64
	StudyID         int64
	MeasurementType string
	TechnologyType  string
}

// Dataset is the unit of work yielded by the stream: one investigation with
// its studies and the assays bucketed by study. A dataset is owned by exactly
// one pipeline task at a time.
type Dataset struct {
	Investigation Investigation
	Studies       []Study
	AssaysByStudy map[int64][]Assay
}

// StudyCount returns the number of studies in the dataset.
func (d *Dataset) StudyCount() int {
	return len(d.Studies)
}

// AssayCount returns the total number of assays across all studies.
func (d *Dataset) AssayCount() int {
	total := 0
	for _, study := range d.Studies {
		total += len(d.AssaysByStudy[study.ID])
	}

	return total
}

// Package mapper converts source rows and harvested catalogue records into
// ARC entity trees.
package mapper

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fairagro/arc-middleware/internal/arc"
	"github.com/fairagro/arc-middleware/internal/source"
)

// MapInvestigation converts an investigation row. The numeric row ID becomes
// the ARC identifier; absent timestamps map to empty dates.
func MapInvestigation(row *source.Investigation) (*arc.Investigation, error) {
	inv, err := arc.NewInvestigation(strconv.FormatInt(row.ID, 10))
	if err != nil {
		return nil, fmt.Errorf("investigation %d: %w", row.ID, err)
	}

	inv.Title = row.Title
	inv.Description = row.Description
	inv.SubmissionDate = isoDate(row.SubmissionTime)
	inv.PublicReleaseDate = isoDate(row.ReleaseTime)

	return inv, nil
}

// MapStudy converts a study row.
func MapStudy(row *source.Study) (*arc.Study, error) {
	study, err := arc.NewStudy(strconv.FormatInt(row.ID, 10))
	if err != nil {
		return nil, fmt.Errorf("study %d: %w", row.ID, err)
	}

	study.Title = row.Title
	study.Description = row.Description
	study.SubmissionDate = isoDate(row.SubmissionTime)
	study.PublicReleaseDate = isoDate(row.ReleaseTime)

	return study, nil
}

// MapAssay converts an assay row. The upstream schema only delivers bare
// type names, so the annotations carry no term source or accession yet.
func MapAssay(row *source.Assay) (*arc.Assay, error) {
	assay, err := arc.NewAssay(strconv.FormatInt(row.ID, 10))
	if err != nil {
		return nil, fmt.Errorf("assay %d: %w", row.ID, err)
	}

	if row.MeasurementType != "" {
		assay.MeasurementType = &arc.OntologyAnnotation{Name: row.MeasurementType}
	}

	if row.TechnologyType != "" {
		assay.TechnologyType = &arc.OntologyAnnotation{Name: row.TechnologyType}
	}

	return assay, nil
}

// BuildDataset assembles the full ARC tree for one dataset.
func BuildDataset(ds *source.Dataset) (*arc.ARC, error) {
	inv, err := MapInvestigation(&ds.Investigation)
	if err != nil {
		return nil, err
	}

	for i := range ds.Studies {
		study, err := MapStudy(&ds.Studies[i])
		if err != nil {
			return nil, err
		}

		for _, row := range ds.AssaysByStudy[ds.Studies[i].ID] {
			assay, err := MapAssay(&row)
			if err != nil {
				return nil, err
			}

			if err := study.AddRegisteredAssay(assay); err != nil {
				return nil, err
			}
		}

		if err := inv.AddRegisteredStudy(study); err != nil {
			return nil, err
		}
	}

	return arc.FromInvestigation(inv), nil
}

// BuildDatasetJSON maps a dataset and renders it as RO-Crate JSON-LD.
func BuildDatasetJSON(ds *source.Dataset) ([]byte, error) {
	tree, err := BuildDataset(ds)
	if err != nil {
		return nil, err
	}

	return tree.ToROCrateJSON()
}

func isoDate(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.Format(time.RFC3339)
}

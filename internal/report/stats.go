// Package report collects run statistics and renders the JSON-LD run report.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// RunStats accumulates the outcome of one conversion run. Counters are plain
// fields; the pipeline scheduler serializes access while tasks run.
type RunStats struct {
	FoundDatasets  int
	TotalStudies   int
	TotalAssays    int
	FailedDatasets int
	FailedIDs      []string
	Duration       time.Duration
}

// Merge folds another stats object into this one. Study and assay totals are
// counted centrally by the scheduler and intentionally not merged.
func (s *RunStats) Merge(other *RunStats) {
	s.FoundDatasets += other.FoundDatasets
	s.FailedDatasets += other.FailedDatasets
	s.FailedIDs = append(s.FailedIDs, other.FailedIDs...)
}

// RecordFailure counts one failed dataset.
func (s *RunStats) RecordFailure(id string) {
	s.FailedDatasets++
	s.FailedIDs = append(s.FailedIDs, id)
}

// Succeeded reports whether the run finished without per-record failures.
func (s *RunStats) Succeeded() bool {
	return s.FailedDatasets == 0
}

// Options parametrize the rendered report.
type Options struct {
	ActivityName string
	Instrument   string
	RDI          string
	RDIURL       string
	RunID        string
}

type contextTerm struct {
	ID        string `json:"@id"`
	Type      string `json:"@type,omitempty"`
	Container string `json:"@container,omitempty"`
}

type reportContext struct {
	Schema        string      `json:"schema"`
	Prov          string      `json:"prov"`
	Void          string      `json:"void"`
	XSD           string      `json:"xsd"`
	Duration      contextTerm `json:"duration"`
	FailedIDs     contextTerm `json:"failed_ids"`
	Status        contextTerm `json:"status"`
	FoundDatasets contextTerm `json:"found_datasets"`
	TotalStudies  contextTerm `json:"total_studies"`
	TotalAssays   contextTerm `json:"total_assays"`
}

type reportInstrument struct {
	Type string `json:"@type"`
	Name string `json:"schema:name"`
}

type reportRDI struct {
	ID         string `json:"@id"`
	Type       string `json:"@type"`
	Identifier string `json:"schema:identifier"`
	Name       string `json:"schema:name"`
}

type runReport struct {
	Context         reportContext    `json:"@context"`
	Type            []string         `json:"@type"`
	Name            string           `json:"schema:name"`
	Identifier      string           `json:"schema:identifier,omitempty"`
	Instrument      reportInstrument `json:"schema:instrument"`
	Status          string           `json:"status"`
	Duration        string           `json:"duration"`
	DurationSeconds float64          `json:"duration_seconds"`
	FoundDatasets   int              `json:"found_datasets"`
	TotalStudies    int              `json:"total_studies"`
	TotalAssays     int              `json:"total_assays"`
	FailedDatasets  int              `json:"failed_datasets"`
	FailedIDs       []string         `json:"failed_ids"`
	Used            *reportRDI       `json:"prov:used,omitempty"`
}

// ToJSONLD renders the stats as a schema.org/PROV activity document. The
// duration appears both as an ISO 8601 duration and as a raw float for easy
// parsing; failed identifiers are sorted for stable output.
func (s *RunStats) ToJSONLD(opts Options) ([]byte, error) {
	seconds := s.Duration.Seconds()

	failed := make([]string, len(s.FailedIDs))
	copy(failed, s.FailedIDs)
	sort.Strings(failed)

	status := "schema:CompletedActionStatus"
	if s.FailedDatasets > 0 {
		status = "schema:FailedActionStatus"
	}

	doc := runReport{
		Context: reportContext{
			Schema:        "http://schema.org/",
			Prov:          "http://www.w3.org/ns/prov#",
			Void:          "http://rdfs.org/ns/void#",
			XSD:           "http://www.w3.org/2001/XMLSchema#",
			Duration:      contextTerm{ID: "schema:duration", Type: "schema:Duration"},
			FailedIDs:     contextTerm{ID: "schema:error", Container: "@set"},
			Status:        contextTerm{ID: "schema:actionStatus"},
			FoundDatasets: contextTerm{ID: "void:entities", Type: "xsd:integer"},
			TotalStudies:  contextTerm{ID: "schema:result", Type: "xsd:integer"},
			TotalAssays:   contextTerm{ID: "schema:result", Type: "xsd:integer"},
		},
		Type:       []string{"prov:Activity", "schema:CreateAction"},
		Name:       opts.ActivityName,
		Identifier: opts.RunID,
		Instrument: reportInstrument{
			Type: "schema:SoftwareApplication",
			Name: opts.Instrument,
		},
		Status:          status,
		Duration:        fmt.Sprintf("PT%.2fS", seconds),
		DurationSeconds: math.Round(seconds*100) / 100,
		FoundDatasets:   s.FoundDatasets,
		TotalStudies:    s.TotalStudies,
		TotalAssays:     s.TotalAssays,
		FailedDatasets:  s.FailedDatasets,
		FailedIDs:       failed,
	}

	if opts.RDI != "" && opts.RDIURL != "" {
		doc.Used = &reportRDI{
			ID:         opts.RDIURL,
			Type:       "schema:Organization",
			Identifier: opts.RDI,
			Name:       "Research Data Infrastructure: " + opts.RDI,
		}
	}

	return json.MarshalIndent(doc, "", "  ")
}

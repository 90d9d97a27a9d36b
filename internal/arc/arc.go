// Package arc models the Annotated Research Context entity tree.
//
// An ARC holds one Investigation with registered Studies and Assays plus
// typed collections of Persons, Publications, Comments and protocol Tables.
// The tree serializes to a JSON-LD document following the RO-Crate
// convention (see rocrate.go).
package arc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyIdentifier is returned when an entity is created without an identifier.
	ErrEmptyIdentifier = errors.New("identifier cannot be empty")

	// ErrDuplicateIdentifier is returned when a child with the same identifier
	// is already registered in the parent.
	ErrDuplicateIdentifier = errors.New("identifier already registered")
)

// OntologyAnnotation is a term reference: a human-readable name plus the
// term source (TSR) and term accession (TAN). TSR/TAN may be empty for
// free-text annotations.
type OntologyAnnotation struct {
	Name string
	TSR  string
	TAN  string
}

// Comment is a named key/value annotation. Value-only comments leave Name
// empty.
type Comment struct {
	Name  string
	Value string
}

// NewComment creates a value-only comment.
func NewComment(value string) Comment {
	return Comment{Value: value}
}

// NewNamedComment creates a name/value comment.
func NewNamedComment(name, value string) Comment {
	return Comment{Name: name, Value: value}
}

// Person describes a contact attached to an investigation.
type Person struct {
	LastName    string
	FirstName   string
	MidInitials string
	Email       string
	Phone       string
	Fax         string
	Address     string
	Affiliation string
	Roles       []OntologyAnnotation
	Comments    []Comment
}

// HasRole reports whether the person carries a role annotation with the
// given name.
func (p *Person) HasRole(name string) bool {
	for _, role := range p.Roles {
		if role.Name == name {
			return true
		}
	}

	return false
}

// Publication describes a publication referenced by an investigation.
type Publication struct {
	DOI      string
	PubMedID string
	Authors  string
	Title    string
}

// Assay is the leaf of the hierarchy: one measurement applied with one
// technology. Measurement and technology types stay free-text annotations
// until the upstream schema supplies real ontology terms.
type Assay struct {
	Identifier         string
	MeasurementType    *OntologyAnnotation
	TechnologyType     *OntologyAnnotation
	TechnologyPlatform *OntologyAnnotation
	Comments           []Comment
}

// NewAssay creates an assay with the given identifier.
func NewAssay(identifier string) (*Assay, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, fmt.Errorf("assay: %w", ErrEmptyIdentifier)
	}

	return &Assay{Identifier: identifier}, nil
}

// Study groups assays and protocol tables under an investigation.
type Study struct {
	Identifier        string
	Title             string
	Description       string
	SubmissionDate    string
	PublicReleaseDate string
	Tables            []*Table
	Assays            []*Assay
}

// NewStudy creates a study with the given identifier.
func NewStudy(identifier string) (*Study, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, fmt.Errorf("study: %w", ErrEmptyIdentifier)
	}

	return &Study{Identifier: identifier}, nil
}

// AddRegisteredAssay registers an assay in this study. Every assay belongs
// to exactly one study; identifiers must be unique within the study.
func (s *Study) AddRegisteredAssay(assay *Assay) error {
	for _, existing := range s.Assays {
		if existing.Identifier == assay.Identifier {
			return fmt.Errorf("assay %q in study %q: %w", assay.Identifier, s.Identifier, ErrDuplicateIdentifier)
		}
	}

	s.Assays = append(s.Assays, assay)

	return nil
}

// AddTable appends a protocol table to the study.
func (s *Study) AddTable(table *Table) {
	s.Tables = append(s.Tables, table)
}

// Investigation is the root of the ARC hierarchy.
type Investigation struct {
	Identifier        string
	Title             string
	Description       string
	SubmissionDate    string
	PublicReleaseDate string
	Contacts          []Person
	Publications      []Publication
	Comments          []Comment
	Studies           []*Study
}

// NewInvestigation creates an investigation with the given identifier.
func NewInvestigation(identifier string) (*Investigation, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, fmt.Errorf("investigation: %w", ErrEmptyIdentifier)
	}

	return &Investigation{Identifier: identifier}, nil
}

// AddRegisteredStudy registers a study in this investigation. Identifiers
// must be unique within the investigation.
func (inv *Investigation) AddRegisteredStudy(study *Study) error {
	for _, existing := range inv.Studies {
		if existing.Identifier == study.Identifier {
			return fmt.Errorf("study %q in investigation %q: %w",
				study.Identifier, inv.Identifier, ErrDuplicateIdentifier)
		}
	}

	inv.Studies = append(inv.Studies, study)

	return nil
}

// ARC is the container around one investigation tree.
type ARC struct {
	investigation *Investigation
}

// FromInvestigation wraps an investigation into an ARC container.
func FromInvestigation(inv *Investigation) *ARC {
	return &ARC{investigation: inv}
}

// Investigation returns the wrapped investigation.
func (a *ARC) Investigation() *Investigation {
	return a.investigation
}

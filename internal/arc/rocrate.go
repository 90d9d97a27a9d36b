package arc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RO-Crate profile constants.
const (
	rocrateContext  = "https://w3id.org/ro/crate/1.1/context"
	rocrateProfile  = "https://w3id.org/ro/crate/1.1"
	metadataNodeID  = "ro-crate-metadata.json"
	rootDatasetID   = "./"
	isaInvestigType = "Investigation"
	isaStudyType    = "Study"
	isaAssayType    = "Assay"
)

// Serialization uses plain structs so the rendered document is deterministic:
// identical trees marshal to byte-identical JSON-LD.

type ldRef struct {
	ID string `json:"@id"`
}

type ldTerm struct {
	Type     string `json:"@type"`
	Name     string `json:"name"`
	TermCode string `json:"termCode,omitempty"`
	TermSet  string `json:"inDefinedTermSet,omitempty"`
}

type ldComment struct {
	Type string `json:"@type"`
	Name string `json:"name,omitempty"`
	Text string `json:"text"`
}

type ldPerson struct {
	ID             string      `json:"@id"`
	Type           string      `json:"@type"`
	FamilyName     string      `json:"familyName,omitempty"`
	GivenName      string      `json:"givenName,omitempty"`
	AdditionalName string      `json:"additionalName,omitempty"`
	Email          string      `json:"email,omitempty"`
	Telephone      string      `json:"telephone,omitempty"`
	FaxNumber      string      `json:"faxNumber,omitempty"`
	Address        string      `json:"address,omitempty"`
	Affiliation    string      `json:"affiliation,omitempty"`
	JobTitles      []ldTerm    `json:"jobTitle,omitempty"`
	Comments       []ldComment `json:"comment,omitempty"`
}

type ldPublication struct {
	Type     string `json:"@type"`
	Name     string `json:"name,omitempty"`
	Author   string `json:"author,omitempty"`
	DOI      string `json:"identifier,omitempty"`
	PubMedID string `json:"sameAs,omitempty"`
}

type ldColumn struct {
	Type  string `json:"@type"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type ldTable struct {
	ID       string     `json:"@id"`
	Type     string     `json:"@type"`
	Name     string     `json:"name"`
	Measured []ldColumn `json:"variableMeasured,omitempty"`
}

type ldAssay struct {
	ID                   string      `json:"@id"`
	Type                 []string    `json:"@type"`
	Identifier           string      `json:"identifier"`
	MeasurementMethod    *ldTerm     `json:"measurementMethod,omitempty"`
	MeasurementTechnique *ldTerm     `json:"measurementTechnique,omitempty"`
	Instrument           *ldTerm     `json:"instrument,omitempty"`
	Comments             []ldComment `json:"comment,omitempty"`
}

type ldStudy struct {
	ID                string   `json:"@id"`
	Type              []string `json:"@type"`
	Identifier        string   `json:"identifier"`
	Name              string   `json:"name,omitempty"`
	Description       string   `json:"description,omitempty"`
	SubmissionDate    string   `json:"dateCreated,omitempty"`
	PublicReleaseDate string   `json:"datePublished,omitempty"`
	HasPart           []ldRef  `json:"hasPart,omitempty"`
	About             []ldRef  `json:"about,omitempty"`
}

type ldInvestigation struct {
	ID                string          `json:"@id"`
	Type              []string        `json:"@type"`
	Identifier        string          `json:"identifier"`
	Name              string          `json:"name,omitempty"`
	Description       string          `json:"description,omitempty"`
	SubmissionDate    string          `json:"dateCreated,omitempty"`
	PublicReleaseDate string          `json:"datePublished,omitempty"`
	Creators          []ldRef         `json:"creator,omitempty"`
	Citations         []ldPublication `json:"citation,omitempty"`
	Comments          []ldComment     `json:"comment,omitempty"`
	HasPart           []ldRef         `json:"hasPart,omitempty"`
}

type ldMetadataDescriptor struct {
	ID         string `json:"@id"`
	Type       string `json:"@type"`
	ConformsTo ldRef  `json:"conformsTo"`
	About      ldRef  `json:"about"`
}

type ldDocument struct {
	Context string `json:"@context"`
	Graph   []any  `json:"@graph"`
}

// ToROCrateJSON renders the ARC as an RO-Crate JSON-LD document.
// The output is deterministic for a given tree.
func (a *ARC) ToROCrateJSON() ([]byte, error) {
	inv := a.investigation
	if inv == nil {
		return nil, fmt.Errorf("arc: %w", ErrEmptyIdentifier)
	}

	graph := []any{
		ldMetadataDescriptor{
			ID:         metadataNodeID,
			Type:       "CreativeWork",
			ConformsTo: ldRef{ID: rocrateProfile},
			About:      ldRef{ID: rootDatasetID},
		},
	}

	root := ldInvestigation{
		ID:                rootDatasetID,
		Type:              []string{"Dataset", isaInvestigType},
		Identifier:        inv.Identifier,
		Name:              inv.Title,
		Description:       inv.Description,
		SubmissionDate:    inv.SubmissionDate,
		PublicReleaseDate: inv.PublicReleaseDate,
	}

	persons := make([]ldPerson, 0, len(inv.Contacts))

	for i := range inv.Contacts {
		node := personNode(&inv.Contacts[i], i)
		persons = append(persons, node)
		root.Creators = append(root.Creators, ldRef{ID: node.ID})
	}

	for _, pub := range inv.Publications {
		root.Citations = append(root.Citations, ldPublication{
			Type:     "ScholarlyArticle",
			Name:     pub.Title,
			Author:   pub.Authors,
			DOI:      pub.DOI,
			PubMedID: pub.PubMedID,
		})
	}

	root.Comments = commentNodes(inv.Comments)

	var (
		studyNodes []ldStudy
		assayNodes []ldAssay
		tableNodes []ldTable
	)

	for _, study := range inv.Studies {
		studyID := "#study/" + escapeID(study.Identifier)
		root.HasPart = append(root.HasPart, ldRef{ID: studyID})

		node := ldStudy{
			ID:                studyID,
			Type:              []string{"Dataset", isaStudyType},
			Identifier:        study.Identifier,
			Name:              study.Title,
			Description:       study.Description,
			SubmissionDate:    study.SubmissionDate,
			PublicReleaseDate: study.PublicReleaseDate,
		}

		for _, assay := range study.Assays {
			assayID := fmt.Sprintf("#assay/%s/%s", escapeID(study.Identifier), escapeID(assay.Identifier))
			node.HasPart = append(node.HasPart, ldRef{ID: assayID})
			assayNodes = append(assayNodes, assayNode(assay, assayID))
		}

		for i, table := range study.Tables {
			tableID := fmt.Sprintf("#table/%s/%d", escapeID(study.Identifier), i)
			node.About = append(node.About, ldRef{ID: tableID})
			tableNodes = append(tableNodes, tableNode(table, tableID))
		}

		studyNodes = append(studyNodes, node)
	}

	graph = append(graph, root)

	for _, p := range persons {
		graph = append(graph, p)
	}

	for _, s := range studyNodes {
		graph = append(graph, s)
	}

	for _, n := range assayNodes {
		graph = append(graph, n)
	}

	for _, t := range tableNodes {
		graph = append(graph, t)
	}

	return json.MarshalIndent(ldDocument{Context: rocrateContext, Graph: graph}, "", "  ")
}

// ToROCrateJSONString renders the ARC as an RO-Crate JSON-LD string.
func (a *ARC) ToROCrateJSONString() (string, error) {
	data, err := a.ToROCrateJSON()
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func personNode(p *Person, index int) ldPerson {
	node := ldPerson{
		ID:             fmt.Sprintf("#person/%d", index),
		Type:           "Person",
		FamilyName:     p.LastName,
		GivenName:      p.FirstName,
		AdditionalName: p.MidInitials,
		Email:          p.Email,
		Telephone:      p.Phone,
		FaxNumber:      p.Fax,
		Address:        p.Address,
		Affiliation:    p.Affiliation,
		Comments:       commentNodes(p.Comments),
	}

	for _, role := range p.Roles {
		node.JobTitles = append(node.JobTitles, termNode(role))
	}

	return node
}

func assayNode(a *Assay, id string) ldAssay {
	node := ldAssay{
		ID:         id,
		Type:       []string{"Dataset", isaAssayType},
		Identifier: a.Identifier,
		Comments:   commentNodes(a.Comments),
	}

	if a.MeasurementType != nil {
		t := termNode(*a.MeasurementType)
		node.MeasurementMethod = &t
	}

	if a.TechnologyType != nil {
		t := termNode(*a.TechnologyType)
		node.MeasurementTechnique = &t
	}

	if a.TechnologyPlatform != nil {
		t := termNode(*a.TechnologyPlatform)
		node.Instrument = &t
	}

	return node
}

func tableNode(t *Table, id string) ldTable {
	node := ldTable{
		ID:   id,
		Type: "LabProtocol",
		Name: t.Name,
	}

	for _, col := range t.Columns {
		values := make([]string, 0, len(col.Cells))
		for _, cell := range col.Cells {
			values = append(values, cell.Term.Name)
		}

		node.Measured = append(node.Measured, ldColumn{
			Type:  "PropertyValue",
			Name:  col.Header.Term.Name,
			Value: strings.Join(values, "; "),
		})
	}

	return node
}

func commentNodes(comments []Comment) []ldComment {
	if len(comments) == 0 {
		return nil
	}

	nodes := make([]ldComment, 0, len(comments))
	for _, c := range comments {
		nodes = append(nodes, ldComment{Type: "Comment", Name: c.Name, Text: c.Value})
	}

	return nodes
}

func termNode(term OntologyAnnotation) ldTerm {
	return ldTerm{
		Type:     "DefinedTerm",
		Name:     term.Name,
		TermCode: term.TAN,
		TermSet:  term.TSR,
	}
}

// escapeID makes an identifier safe for use in a fragment @id.
func escapeID(id string) string {
	return strings.NewReplacer(" ", "_", "#", "_", "/", "_").Replace(id)
}

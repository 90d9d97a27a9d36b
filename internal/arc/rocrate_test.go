package arc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestARC(t *testing.T) *ARC {
	t.Helper()

	inv, err := NewInvestigation("inv-7")
	require.NoError(t, err)

	inv.Title = "Soil moisture survey"
	inv.Description = "Long-term monitoring"
	inv.SubmissionDate = "2023-04-01T00:00:00Z"
	inv.Contacts = []Person{
		{LastName: "Meier", FirstName: "Anna", Email: "anna@example.org"},
		{LastName: "Schulz", Roles: []OntologyAnnotation{{Name: "publisher"}}},
	}
	inv.Publications = []Publication{
		{DOI: "10.5447/example", Title: "Survey results", Authors: "Meier, A."},
	}
	inv.Comments = []Comment{NewNamedComment("Metadata Language", "ger")}

	study, err := NewStudy("7_study")
	require.NoError(t, err)

	study.Title = "Soil moisture survey"

	table := NewTable("Data Acquisition")
	table.AddColumn(
		ParameterHeader(OntologyAnnotation{Name: "Spatial Resolution"}),
		[]CompositeCell{TermCell(OntologyAnnotation{Name: "1:50000"})},
	)
	study.AddTable(table)

	assay, err := NewAssay("7_assay")
	require.NoError(t, err)

	assay.MeasurementType = &OntologyAnnotation{
		Name: "Spatial Data Acquisition",
		TSR:  "NCIT",
		TAN:  "http://purl.obolibrary.org/obo/NCIT_C19026",
	}
	require.NoError(t, study.AddRegisteredAssay(assay))
	require.NoError(t, inv.AddRegisteredStudy(study))

	return FromInvestigation(inv)
}

func graphNodeByID(t *testing.T, doc map[string]any, id string) map[string]any {
	t.Helper()

	graph, ok := doc["@graph"].([]any)
	require.True(t, ok, "@graph missing")

	for _, raw := range graph {
		node, ok := raw.(map[string]any)
		require.True(t, ok)

		if node["@id"] == id {
			return node
		}
	}

	t.Fatalf("node %s not found in graph", id)

	return nil
}

func TestToROCrateJSON(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	data, err := buildTestARC(t).ToROCrateJSON()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "https://w3id.org/ro/crate/1.1/context", doc["@context"])

	descriptor := graphNodeByID(t, doc, "ro-crate-metadata.json")
	assert.Equal(t, "CreativeWork", descriptor["@type"])
	assert.Equal(t, map[string]any{"@id": "./"}, descriptor["about"])

	root := graphNodeByID(t, doc, "./")
	assert.Equal(t, []any{"Dataset", "Investigation"}, root["@type"])
	assert.Equal(t, "inv-7", root["identifier"])
	assert.Equal(t, "Soil moisture survey", root["name"])
	assert.Len(t, root["creator"], 2)
	assert.Len(t, root["citation"], 1)
	assert.Equal(t, []any{map[string]any{"@id": "#study/7_study"}}, root["hasPart"])

	person := graphNodeByID(t, doc, "#person/0")
	assert.Equal(t, "Meier", person["familyName"])
	assert.Equal(t, "anna@example.org", person["email"])

	study := graphNodeByID(t, doc, "#study/7_study")
	assert.Equal(t, []any{"Dataset", "Study"}, study["@type"])
	assert.Equal(t, []any{map[string]any{"@id": "#assay/7_study/7_assay"}}, study["hasPart"])
	assert.Equal(t, []any{map[string]any{"@id": "#table/7_study/0"}}, study["about"])

	assayNode := graphNodeByID(t, doc, "#assay/7_study/7_assay")
	assert.Equal(t, []any{"Dataset", "Assay"}, assayNode["@type"])

	method, ok := assayNode["measurementMethod"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Spatial Data Acquisition", method["name"])
	assert.Equal(t, "http://purl.obolibrary.org/obo/NCIT_C19026", method["termCode"])

	tableNode := graphNodeByID(t, doc, "#table/7_study/0")
	assert.Equal(t, "LabProtocol", tableNode["@type"])

	measured, ok := tableNode["variableMeasured"].([]any)
	require.True(t, ok)
	require.Len(t, measured, 1)

	column, ok := measured[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Spatial Resolution", column["name"])
	assert.Equal(t, "1:50000", column["value"])
}

func TestToROCrateJSONDeterministic(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	first, err := buildTestARC(t).ToROCrateJSON()
	require.NoError(t, err)

	second, err := buildTestARC(t).ToROCrateJSON()
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestToROCrateJSONNilInvestigation(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	_, err := FromInvestigation(nil).ToROCrateJSON()
	require.Error(t, err)
}

func TestEscapeID(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	assert.Equal(t, "a_b_c_d", escapeID("a b#c/d"))
	assert.Equal(t, "plain", escapeID("plain"))
}

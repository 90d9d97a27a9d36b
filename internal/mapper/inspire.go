package mapper

import (
	"fmt"
	"strings"

	"github.com/fairagro/arc-middleware/internal/arc"
	"github.com/fairagro/arc-middleware/internal/harvester"
)

// Default ontology terms used when a record offers nothing better. The NCIT
// accession covers data acquisition activities in general.
const (
	ncitAcquisitionTAN = "http://purl.obolibrary.org/obo/NCIT_C19026"
	ncitSource         = "NCIT"

	defaultMeasurementName = "Spatial Data Acquisition"
	technologyTypeName     = "Data Collection"

	defaultStudyDescription = "Imported from INSPIRE metadata"

	// lineageLimit truncates overlong lineage statements in protocol cells.
	lineageLimit = 500

	// otherConstraintsLimit caps how many other-constraint texts end up in
	// the investigation comments.
	otherConstraintsLimit = 3
)

// InspireMapper converts harvested catalogue records into ARC trees. Each
// record becomes one investigation with a single derived study and assay.
type InspireMapper struct{}

// NewInspireMapper creates a mapper.
func NewInspireMapper() *InspireMapper {
	return &InspireMapper{}
}

// MapRecord maps one record to a full ARC.
func (m *InspireMapper) MapRecord(record *harvester.InspireRecord) (*arc.ARC, error) {
	inv, err := m.MapInvestigation(record)
	if err != nil {
		return nil, err
	}

	study, err := m.MapStudy(record)
	if err != nil {
		return nil, err
	}

	assay, err := m.MapAssay(record)
	if err != nil {
		return nil, err
	}

	if err := study.AddRegisteredAssay(assay); err != nil {
		return nil, err
	}

	if err := inv.AddRegisteredStudy(study); err != nil {
		return nil, err
	}

	return arc.FromInvestigation(inv), nil
}

// MapRecordJSON maps a record and renders it as RO-Crate JSON-LD.
func (m *InspireMapper) MapRecordJSON(record *harvester.InspireRecord) ([]byte, error) {
	tree, err := m.MapRecord(record)
	if err != nil {
		return nil, err
	}

	return tree.ToROCrateJSON()
}

// MapInvestigation maps the metadata-level fields of a record.
func (m *InspireMapper) MapInvestigation(record *harvester.InspireRecord) (*arc.Investigation, error) {
	inv, err := arc.NewInvestigation(record.Identifier)
	if err != nil {
		return nil, fmt.Errorf("record %q: %w", record.Identifier, err)
	}

	inv.Title = record.Title
	inv.Description = record.Abstract
	inv.SubmissionDate = record.DateStamp

	m.addContacts(inv, record)
	m.addPublications(inv, record)

	for _, text := range m.investigationComments(record) {
		inv.Comments = append(inv.Comments, arc.NewComment(text))
	}

	return inv, nil
}

// MapPerson converts a contact to a person. Contacts without a name are
// dropped; the caller gets nil.
func (m *InspireMapper) MapPerson(contact *harvester.Contact) *arc.Person {
	if contact.Name == "" {
		return nil
	}

	firstName, lastName := splitName(contact.Name)

	person := &arc.Person{
		LastName:    lastName,
		FirstName:   firstName,
		Email:       contact.Email,
		Affiliation: contact.Organization,
		Address:     formatAddress(contact),
		Phone:       contact.Phone,
		Fax:         contact.Fax,
	}

	if contact.Role != "" {
		person.Roles = append(person.Roles, arc.OntologyAnnotation{Name: contact.Role})
	}

	if contact.Position != "" {
		person.Comments = append(person.Comments, arc.NewComment("Position: "+contact.Position))
	}

	if contact.OnlineResourceURL != "" {
		text := contact.OnlineResourceURL
		if contact.OnlineResourceName != "" {
			text = contact.OnlineResourceName + ": " + contact.OnlineResourceURL
		}

		person.Comments = append(person.Comments, arc.NewComment(text))
	}

	return person
}

func (m *InspireMapper) addContacts(inv *arc.Investigation, record *harvester.InspireRecord) {
	all := make([]harvester.Contact, 0,
		len(record.Contacts)+len(record.Creators)+len(record.Publishers)+len(record.Contributors))
	all = append(all, record.Contacts...)
	all = append(all, record.Creators...)
	all = append(all, record.Publishers...)
	all = append(all, record.Contributors...)

	for i := range all {
		if person := m.MapPerson(&all[i]); person != nil {
			inv.Contacts = append(inv.Contacts, *person)
		}
	}
}

// addPublications derives publications from resource identifiers that look
// like a DOI or ISBN, enriched with the record title and author contacts.
func (m *InspireMapper) addPublications(inv *arc.Investigation, record *harvester.InspireRecord) {
	authors := authorString(inv.Contacts)

	for _, resID := range record.ResourceIdentifiers {
		if resID.Code == "" {
			continue
		}

		isDOI := strings.HasPrefix(resID.Code, "10.") ||
			strings.Contains(strings.ToLower(resID.Code), "doi") ||
			strings.Contains(strings.ToLower(resID.Codespace), "isbn")

		if !isDOI {
			continue
		}

		inv.Publications = append(inv.Publications, arc.Publication{
			Title:   record.Title,
			Authors: authors,
			DOI:     resID.Code,
		})
	}
}

func (m *InspireMapper) investigationComments(record *harvester.InspireRecord) []string {
	var comments []string

	fields := []struct {
		label string
		value string
	}{
		{"Parent Identifier", record.ParentIdentifier},
		{"Hierarchy Level", record.Hierarchy},
		{"Dataset URI", record.DatasetURI},
		{"Language", record.Language},
		{"Character Set", record.Charset},
		{"Edition", record.Edition},
		{"Status", record.Status},
	}

	for _, f := range fields {
		if f.value != "" {
			comments = append(comments, f.label+": "+f.value)
		}
	}

	if record.MetadataStandardName != "" {
		std := record.MetadataStandardName
		if record.MetadataStandardVersion != "" {
			std += " v" + record.MetadataStandardVersion
		}

		comments = append(comments, "Metadata Standard: "+std)
	}

	if len(record.AccessConstraints) > 0 {
		comments = append(comments, "Access Constraints: "+strings.Join(record.AccessConstraints, ", "))
	}

	if len(record.UseConstraints) > 0 {
		comments = append(comments, "Use Constraints: "+strings.Join(record.UseConstraints, ", "))
	}

	if len(record.Classification) > 0 {
		comments = append(comments, "Classification: "+strings.Join(record.Classification, ", "))
	}

	if len(record.OtherConstraints) > 0 {
		other := record.OtherConstraints
		if len(other) > otherConstraintsLimit {
			other = other[:otherConstraintsLimit]
		}

		comments = append(comments, "Other Constraints: "+strings.Join(other, "; "))
	}

	return comments
}

// MapStudy maps the process-oriented fields of a record into a study with
// up to three protocol tables.
func (m *InspireMapper) MapStudy(record *harvester.InspireRecord) (*arc.Study, error) {
	study, err := arc.NewStudy(record.Identifier + "_study")
	if err != nil {
		return nil, fmt.Errorf("record %q: %w", record.Identifier, err)
	}

	study.Title = "Study for: " + record.Title
	study.Description = studyDescription(record)
	study.SubmissionDate = record.DateStamp

	if table := m.spatialSamplingProtocol(record); table != nil {
		study.AddTable(table)
	}

	if table := m.dataAcquisitionProtocol(record); table != nil {
		study.AddTable(table)
	}

	if table := m.dataProcessingProtocol(record); table != nil {
		study.AddTable(table)
	}

	return study, nil
}

func studyDescription(record *harvester.InspireRecord) string {
	var parts []string

	if record.Lineage != "" {
		parts = append(parts, "Lineage: "+record.Lineage)
	}

	if record.Purpose != "" {
		parts = append(parts, "Purpose: "+record.Purpose)
	}

	if record.SupplementalInformation != "" {
		parts = append(parts, "Supplemental: "+record.SupplementalInformation)
	}

	if len(parts) == 0 {
		return defaultStudyDescription
	}

	return strings.Join(parts, " | ")
}

// spatialSamplingProtocol covers the selection of geographic locations.
func (m *InspireMapper) spatialSamplingProtocol(record *harvester.InspireRecord) *arc.Table {
	if record.SpatialExtent == nil &&
		len(record.SpatialResolutionDenominators) == 0 &&
		len(record.SpatialResolutionDistances) == 0 {
		return nil
	}

	table := arc.NewTable("Spatial Sampling")

	if record.SpatialExtent != nil {
		values := make([]string, 0, len(record.SpatialExtent))
		for _, v := range record.SpatialExtent {
			values = append(values, trimFloat(v))
		}

		addProtocolColumn(table, "Bounding Box", "["+strings.Join(values, ", ")+"]")
	}

	if len(record.SpatialResolutionDenominators) > 0 {
		scales := make([]string, 0, len(record.SpatialResolutionDenominators))
		for _, d := range record.SpatialResolutionDenominators {
			scales = append(scales, fmt.Sprintf("1:%d", d))
		}

		addProtocolColumn(table, "Spatial Resolution (Scale)", strings.Join(scales, ", "))
	}

	if len(record.SpatialResolutionDistances) > 0 {
		distances := make([]string, 0, len(record.SpatialResolutionDistances))
		for _, d := range record.SpatialResolutionDistances {
			distances = append(distances, fmt.Sprintf("%s %s", trimFloat(d.Value), d.UOM))
		}

		addProtocolColumn(table, "Spatial Resolution (Distance)", strings.Join(distances, ", "))
	}

	if table.ColumnCount() == 0 {
		return nil
	}

	return table
}

// dataAcquisitionProtocol covers the actual collection or sensing process.
func (m *InspireMapper) dataAcquisitionProtocol(record *harvester.InspireRecord) *arc.Table {
	if record.TemporalExtent == nil && len(record.Dates) == 0 {
		return nil
	}

	table := arc.NewTable("Data Acquisition")

	if record.TemporalExtent != nil {
		start := record.TemporalExtent.Start
		if start == "" {
			start = "unknown"
		}

		end := record.TemporalExtent.End
		if end == "" {
			end = "unknown"
		}

		addProtocolColumn(table, "Temporal Extent", start+" to "+end)
	}

	var creationDates []string

	for _, d := range record.Dates {
		if d.DateType == "creation" {
			creationDates = append(creationDates, d.Date)
		}
	}

	if len(creationDates) > 0 {
		addProtocolColumn(table, "Acquisition Date", strings.Join(creationDates, ", "))
	}

	if table.ColumnCount() == 0 {
		return nil
	}

	return table
}

// dataProcessingProtocol covers the path from raw data to the published
// dataset. It degrades to a single note column when only lineage or dates
// exist without detail.
func (m *InspireMapper) dataProcessingProtocol(record *harvester.InspireRecord) *arc.Table {
	table := arc.NewTable("Data Processing")

	if record.Lineage != "" {
		lineage := record.Lineage
		if runes := []rune(lineage); len(runes) > lineageLimit {
			// Truncate by characters, not bytes, so a multi-byte rune is
			// never split.
			lineage = string(runes[:lineageLimit])
		}

		addProtocolColumn(table, "Processing Description", lineage)
	}

	for _, conf := range record.ConformanceResults {
		degree := "Unknown"

		switch strings.ToLower(conf.Degree) {
		case "true", "pass":
			degree = "PASS"
		case "":
		default:
			degree = "FAIL"
		}

		addProtocolColumn(table, "Conformance", conf.SpecificationTitle+": "+degree)
	}

	for _, format := range record.DistributionFormats {
		text := format.Name
		if format.Version != "" {
			text += " v" + format.Version
		}

		addProtocolColumn(table, "Output Format", text)
	}

	var publicationDates []string

	for _, d := range record.Dates {
		if d.DateType == "publication" || d.DateType == "revision" {
			publicationDates = append(publicationDates, d.Date)
		}
	}

	if len(publicationDates) > 0 {
		addProtocolColumn(table, "Processing Date", strings.Join(publicationDates, ", "))
	}

	if table.ColumnCount() > 0 {
		return table
	}

	if record.Lineage != "" || len(record.Dates) > 0 {
		addProtocolColumn(table, "Note", "Data processing details from INSPIRE metadata")

		return table
	}

	return nil
}

// MapAssay maps the measurement-level fields of a record. The first topic
// category becomes the measurement type; the first coordinate reference
// system code becomes the technology platform.
func (m *InspireMapper) MapAssay(record *harvester.InspireRecord) (*arc.Assay, error) {
	assay, err := arc.NewAssay(record.Identifier + "_assay")
	if err != nil {
		return nil, fmt.Errorf("record %q: %w", record.Identifier, err)
	}

	measurement := arc.OntologyAnnotation{
		Name: defaultMeasurementName,
		TAN:  ncitAcquisitionTAN,
		TSR:  ncitSource,
	}

	if len(record.TopicCategories) > 0 {
		measurement.Name = record.TopicCategories[0]
	}

	assay.MeasurementType = &measurement
	assay.TechnologyType = &arc.OntologyAnnotation{Name: technologyTypeName}

	for _, refSys := range record.ReferenceSystems {
		if refSys.Code != "" {
			assay.TechnologyPlatform = &arc.OntologyAnnotation{Name: refSys.Code}

			break
		}
	}

	for _, url := range record.GraphicOverviews {
		assay.Comments = append(assay.Comments, arc.NewComment("Preview: "+url))
	}

	for _, res := range record.OnlineResources {
		text := res.URL
		if res.Name != "" {
			text = res.Name + ": " + res.URL
		}

		assay.Comments = append(assay.Comments, arc.NewComment(text))
	}

	return assay, nil
}

func splitName(name string) (firstName, lastName string) {
	parts := strings.Split(name, " ")
	lastName = parts[len(parts)-1]

	if len(parts) > 1 {
		firstName = strings.Join(parts[:len(parts)-1], " ")
	}

	return firstName, lastName
}

func formatAddress(contact *harvester.Contact) string {
	var parts []string

	for _, part := range []string{contact.Address, contact.City, contact.Region, contact.Postcode, contact.Country} {
		if part != "" {
			parts = append(parts, part)
		}
	}

	return strings.Join(parts, ", ")
}

// authorString formats author-role contacts as "Last, F." entries joined
// with semicolons.
func authorString(contacts []arc.Person) string {
	var entries []string

	for i := range contacts {
		if !contacts[i].HasRole("author") {
			continue
		}

		initial := ""
		if contacts[i].FirstName != "" {
			initial = string([]rune(contacts[i].FirstName)[0]) + "."
		}

		entries = append(entries, fmt.Sprintf("%s, %s", contacts[i].LastName, initial))
	}

	return strings.Join(entries, "; ")
}

func addProtocolColumn(table *arc.Table, header, value string) {
	table.AddColumn(
		arc.ParameterHeader(arc.OntologyAnnotation{Name: header}),
		[]arc.CompositeCell{arc.TermCell(arc.OntologyAnnotation{Name: value})},
	)
}

func trimFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}

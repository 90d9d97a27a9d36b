// Package harvester pages an OGC Catalogue Service for the Web endpoint and
// parses ISO 19139 metadata into canonical INSPIRE records.
//
// The harvester is the alternate record source of the pipeline: it yields a
// pull-based stream of items where each item is either a parsed record or a
// per-record processing error, so consumers can skip and continue.
package harvester

// Contact carries CI_ResponsibleParty details. Type distinguishes contacts
// attached to the metadata ("metadata") from contacts attached to the
// resource ("resource").
type Contact struct {
	Name            string
	NameURL         string
	Organization    string
	OrganizationURL string
	Email           string
	Role            string
	Type            string

	Position                  string
	Phone                     string
	Fax                       string
	Address                   string
	City                      string
	Region                    string
	Postcode                  string
	Country                   string
	OnlineResourceURL         string
	OnlineResourceProtocol    string
	OnlineResourceName        string
	OnlineResourceDescription string
}

// ResourceIdentifier is a resource identifier such as a DOI or ISBN.
type ResourceIdentifier struct {
	Code      string
	Codespace string
	URL       string
}

// InspireDate is a citation date with its type (creation, publication,
// revision).
type InspireDate struct {
	Date     string
	DateType string
}

// SpatialResolutionDistance is a spatial resolution expressed as a ground
// distance with a unit of measure.
type SpatialResolutionDistance struct {
	Value float64
	UOM   string
}

// DistributionFormat describes a data distribution format.
type DistributionFormat struct {
	Name             string
	Version          string
	Specification    string
	NameURL          string
	VersionURL       string
	SpecificationURL string
}

// OnlineResource is a download link or service endpoint.
type OnlineResource struct {
	URL            string
	Protocol       string
	ProtocolURL    string
	Name           string
	NameURL        string
	Description    string
	DescriptionURL string
	Function       string
}

// ConformanceResult is a data quality conformance statement.
type ConformanceResult struct {
	SpecificationTitle    string
	SpecificationTitleURL string
	SpecificationDate     string
	SpecificationDateType string
	Degree                string
}

// ReferenceSystem identifies a coordinate reference system.
type ReferenceSystem struct {
	Code         string
	CodeURL      string
	Codespace    string
	CodespaceURL string
	Version      string
	VersionURL   string
}

// TemporalExtent is the (start, end) pair of a temporal extent. Either
// bound may be empty.
type TemporalExtent struct {
	Start string
	End   string
}

// InspireRecord is the canonical representation of one INSPIRE metadata
// record. Identifier and Title are always present and non-empty; everything
// else is optional and may be absent.
type InspireRecord struct {
	Identifier      string
	Title           string
	Abstract        string
	DateStamp       string
	Keywords        []string
	TopicCategories []string
	Contacts        []Contact
	Lineage         string
	SpatialExtent   []float64 // [minx, miny, maxx, maxy] or nil
	TemporalExtent  *TemporalExtent
	Constraints     []string

	ParentIdentifier        string
	Language                string
	Charset                 string
	Hierarchy               string
	MetadataStandardName    string
	MetadataStandardVersion string
	DatasetURI              string

	AlternateTitle      string
	ResourceIdentifiers []ResourceIdentifier
	Edition             string
	Purpose             string
	Status              string
	ResourceLanguage    []string
	GraphicOverviews    []string

	Dates []InspireDate

	SpatialResolutionDenominators []int
	SpatialResolutionDistances    []SpatialResolutionDistance

	Creators     []Contact // role=originator
	Publishers   []Contact // role=publisher
	Contributors []Contact // role=author

	AccessConstraints   []string
	UseConstraints      []string
	Classification      []string
	OtherConstraints    []string
	OtherConstraintsURL []string

	DistributionFormats []DistributionFormat
	OnlineResources     []OnlineResource

	ConformanceResults []ConformanceResult
	LineageURL         string

	ReferenceSystems []ReferenceSystem

	SupplementalInformation string
}

// Item is one element of the harvest stream: either a record or the error
// that prevented its parsing. Exactly one of the two fields is set.
type Item struct {
	Record *InspireRecord
	Err    *RecordProcessingError
}

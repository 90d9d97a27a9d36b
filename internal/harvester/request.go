package harvester

import (
	"encoding/xml"
	"fmt"
)

// CSW protocol constants.
const (
	cswNamespace  = "http://www.opengis.net/cat/csw/2.0.2"
	ogcNamespace  = "http://www.opengis.net/ogc"
	gmdNamespace  = "http://www.isotc211.org/2005/gmd"
	cswVersion    = "2.0.2"
	cswService    = "CSW"
	elementSetAll = "full"
	elementSetIDs = "brief"

	resultTypeResults = "results"
	resultTypeHits    = "hits"
)

// Match operators for structured constraints.
const (
	MatchEqualTo = "equal"
	MatchLike    = "like"
)

// Constraint is a single comparison predicate. An empty Operator means
// MatchEqualTo; MatchLike renders an ogc:PropertyIsLike with "%" as the
// wildcard. Multiple constraints on one query are combined with a logical
// AND.
type Constraint struct {
	Property string
	Value    string
	Operator string
}

// Query selects the records a harvest covers. Exactly one mode applies:
// a raw GetRecords constraint document, a list of comparison constraints,
// or neither (an unfiltered harvest of the whole catalogue).
type Query struct {
	RawConstraint string
	Constraints   []Constraint
}

type getRecordsRequest struct {
	XMLName       xml.Name `xml:"csw:GetRecords"`
	XMLNSCsw      string   `xml:"xmlns:csw,attr"`
	XMLNSOgc      string   `xml:"xmlns:ogc,attr"`
	Service       string   `xml:"service,attr"`
	Version       string   `xml:"version,attr"`
	ResultType    string   `xml:"resultType,attr"`
	StartPosition int      `xml:"startPosition,attr"`
	MaxRecords    int      `xml:"maxRecords,attr"`
	OutputSchema  string   `xml:"outputSchema,attr"`
	Query         getRecordsQuery
}

type getRecordsQuery struct {
	XMLName        xml.Name `xml:"csw:Query"`
	TypeNames      string   `xml:"typeNames,attr"`
	ElementSetName string   `xml:"csw:ElementSetName"`
	Constraint     *queryConstraint
}

type queryConstraint struct {
	XMLName xml.Name `xml:"csw:Constraint"`
	Version string   `xml:"version,attr"`
	Filter  ogcFilter
}

type ogcFilter struct {
	XMLName    xml.Name       `xml:"ogc:Filter"`
	And        *ogcAnd        `xml:",omitempty"`
	Predicates []ogcPredicate `xml:",omitempty"`
}

type ogcAnd struct {
	XMLName    xml.Name `xml:"ogc:And"`
	Predicates []ogcPredicate
}

type ogcPredicate struct {
	XMLName      xml.Name
	WildCard     string `xml:"wildCard,attr,omitempty"`
	SingleChar   string `xml:"singleChar,attr,omitempty"`
	EscapeChar   string `xml:"escapeChar,attr,omitempty"`
	PropertyName string `xml:"ogc:PropertyName"`
	Literal      string `xml:"ogc:Literal"`
}

// predicateFor renders one constraint as its OGC comparison element.
func predicateFor(c Constraint) ogcPredicate {
	if c.Operator == MatchLike {
		return ogcPredicate{
			XMLName:      xml.Name{Local: "ogc:PropertyIsLike"},
			WildCard:     "%",
			SingleChar:   "_",
			EscapeChar:   `\`,
			PropertyName: c.Property,
			Literal:      c.Value,
		}
	}

	return ogcPredicate{
		XMLName:      xml.Name{Local: "ogc:PropertyIsEqualTo"},
		PropertyName: c.Property,
		Literal:      c.Value,
	}
}

// rawConstraintEnvelope lets a caller-supplied constraint document pass
// through verbatim inside the generated request.
type rawConstraintEnvelope struct {
	XMLName xml.Name `xml:"csw:Constraint"`
	Version string   `xml:"version,attr"`
	Inner   string   `xml:",innerxml"`
}

// buildGetRecords renders one GetRecords POST body. outputSchema selects the
// record representation (Dublin Core or ISO 19139), start is 1-based.
func buildGetRecords(query Query, outputSchema, elementSet, resultType string, start, maxRecords int) ([]byte, error) {
	if query.RawConstraint != "" {
		return buildRawGetRecords(query.RawConstraint, outputSchema, elementSet, resultType, start, maxRecords)
	}

	req := getRecordsRequest{
		XMLNSCsw:      cswNamespace,
		XMLNSOgc:      ogcNamespace,
		Service:       cswService,
		Version:       cswVersion,
		ResultType:    resultType,
		StartPosition: start,
		MaxRecords:    maxRecords,
		OutputSchema:  outputSchema,
		Query: getRecordsQuery{
			TypeNames:      "csw:Record",
			ElementSetName: elementSet,
		},
	}

	if len(query.Constraints) > 0 {
		predicates := make([]ogcPredicate, 0, len(query.Constraints))
		for _, c := range query.Constraints {
			predicates = append(predicates, predicateFor(c))
		}

		filter := ogcFilter{}
		if len(predicates) == 1 {
			filter.Predicates = predicates
		} else {
			filter.And = &ogcAnd{Predicates: predicates}
		}

		req.Query.Constraint = &queryConstraint{Version: "1.1.0", Filter: filter}
	}

	body, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build GetRecords request: %w", err)
	}

	return append([]byte(xml.Header), body...), nil
}

// buildRawGetRecords embeds a caller-supplied ogc:Filter document unchanged.
func buildRawGetRecords(rawFilter, outputSchema, elementSet, resultType string, start, maxRecords int) ([]byte, error) {
	type rawRequest struct {
		XMLName       xml.Name `xml:"csw:GetRecords"`
		XMLNSCsw      string   `xml:"xmlns:csw,attr"`
		XMLNSOgc      string   `xml:"xmlns:ogc,attr"`
		Service       string   `xml:"service,attr"`
		Version       string   `xml:"version,attr"`
		ResultType    string   `xml:"resultType,attr"`
		StartPosition int      `xml:"startPosition,attr"`
		MaxRecords    int      `xml:"maxRecords,attr"`
		OutputSchema  string   `xml:"outputSchema,attr"`
		Query         struct {
			XMLName        xml.Name `xml:"csw:Query"`
			TypeNames      string   `xml:"typeNames,attr"`
			ElementSetName string   `xml:"csw:ElementSetName"`
			Constraint     rawConstraintEnvelope
		}
	}

	req := rawRequest{
		XMLNSCsw:      cswNamespace,
		XMLNSOgc:      ogcNamespace,
		Service:       cswService,
		Version:       cswVersion,
		ResultType:    resultType,
		StartPosition: start,
		MaxRecords:    maxRecords,
		OutputSchema:  outputSchema,
	}
	req.Query.TypeNames = "csw:Record"
	req.Query.ElementSetName = elementSet
	req.Query.Constraint = rawConstraintEnvelope{Version: "1.1.0", Inner: rawFilter}

	body, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build raw GetRecords request: %w", err)
	}

	return append([]byte(xml.Header), body...), nil
}

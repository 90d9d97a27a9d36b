package harvester

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// The parsing structs below mirror the ISO 19139 element tree. Field tags use
// local names only, so they match regardless of namespace prefix. Free-text
// elements carry either a gco:CharacterString or a gmx:Anchor child; textElem
// accepts both and keeps the anchor URL.

type anchorElem struct {
	Href  string `xml:"href,attr"`
	Value string `xml:",chardata"`
}

type textElem struct {
	CharacterString string     `xml:"CharacterString"`
	Anchor          anchorElem `xml:"Anchor"`
}

// Text returns the element's character data, preferring CharacterString.
func (t textElem) Text() string {
	if s := strings.TrimSpace(t.CharacterString); s != "" {
		return s
	}

	return strings.TrimSpace(t.Anchor.Value)
}

// URL returns the anchor target, if the element used gmx:Anchor.
func (t textElem) URL() string {
	return strings.TrimSpace(t.Anchor.Href)
}

type codeElem struct {
	CodeListValue string `xml:"codeListValue,attr"`
	Value         string `xml:",chardata"`
}

// Code returns the code list value, falling back to the element text.
func (c codeElem) Code() string {
	if c.CodeListValue != "" {
		return c.CodeListValue
	}

	return strings.TrimSpace(c.Value)
}

type dateElem struct {
	Date     string `xml:"Date"`
	DateTime string `xml:"DateTime"`
}

func (d dateElem) Text() string {
	if s := strings.TrimSpace(d.Date); s != "" {
		return s
	}

	return strings.TrimSpace(d.DateTime)
}

type langElem struct {
	CharacterString string   `xml:"CharacterString"`
	LanguageCode    codeElem `xml:"LanguageCode"`
}

func (l langElem) Text() string {
	if s := strings.TrimSpace(l.CharacterString); s != "" {
		return s
	}

	return l.LanguageCode.Code()
}

type responsibleParty struct {
	IndividualName   textElem `xml:"individualName"`
	OrganisationName textElem `xml:"organisationName"`
	PositionName     textElem `xml:"positionName"`
	Voice            textElem `xml:"contactInfo>CI_Contact>phone>CI_Telephone>voice"`
	Facsimile        textElem `xml:"contactInfo>CI_Contact>phone>CI_Telephone>facsimile"`
	DeliveryPoint    textElem `xml:"contactInfo>CI_Contact>address>CI_Address>deliveryPoint"`
	City             textElem `xml:"contactInfo>CI_Contact>address>CI_Address>city"`
	AdminArea        textElem `xml:"contactInfo>CI_Contact>address>CI_Address>administrativeArea"`
	PostalCode       textElem `xml:"contactInfo>CI_Contact>address>CI_Address>postalCode"`
	Country          textElem `xml:"contactInfo>CI_Contact>address>CI_Address>country"`
	Email            textElem `xml:"contactInfo>CI_Contact>address>CI_Address>electronicMailAddress"`
	OnlineURL        string   `xml:"contactInfo>CI_Contact>onlineResource>CI_OnlineResource>linkage>URL"`
	OnlineProtocol   textElem `xml:"contactInfo>CI_Contact>onlineResource>CI_OnlineResource>protocol"`
	OnlineName       textElem `xml:"contactInfo>CI_Contact>onlineResource>CI_OnlineResource>name"`
	OnlineDesc       textElem `xml:"contactInfo>CI_Contact>onlineResource>CI_OnlineResource>description"`
	Role             codeElem `xml:"role>CI_RoleCode"`
}

type ciDate struct {
	Date dateElem `xml:"date"`
	Type codeElem `xml:"dateType>CI_DateTypeCode"`
}

type identifierPair struct {
	Code      textElem `xml:"code"`
	CodeSpace textElem `xml:"codeSpace"`
}

type mdIdentifier struct {
	MD identifierPair `xml:"MD_Identifier"`
	RS identifierPair `xml:"RS_Identifier"`
}

func (i mdIdentifier) pair() identifierPair {
	if i.MD.Code.Text() != "" {
		return i.MD
	}

	return i.RS
}

type legalConstraints struct {
	UseLimitations    []textElem `xml:"useLimitation"`
	AccessConstraints []codeElem `xml:"accessConstraints>MD_RestrictionCode"`
	UseConstraints    []codeElem `xml:"useConstraints>MD_RestrictionCode"`
	OtherConstraints  []textElem `xml:"otherConstraints"`
}

type distanceElem struct {
	UOM   string `xml:"uom,attr"`
	Value string `xml:",chardata"`
}

type keywordGroup struct {
	Keywords []textElem `xml:"keyword"`
}

type exExtent struct {
	BBox *struct {
		West  string `xml:"westBoundLongitude>Decimal"`
		East  string `xml:"eastBoundLongitude>Decimal"`
		South string `xml:"southBoundLatitude>Decimal"`
		North string `xml:"northBoundLatitude>Decimal"`
	} `xml:"geographicElement>EX_GeographicBoundingBox"`
	Temporal *struct {
		Begin string `xml:"extent>TimePeriod>beginPosition"`
		End   string `xml:"extent>TimePeriod>endPosition"`
	} `xml:"temporalElement>EX_TemporalExtent"`
}

type dataIdentification struct {
	Title            textElem           `xml:"citation>CI_Citation>title"`
	AlternateTitle   textElem           `xml:"citation>CI_Citation>alternateTitle"`
	Dates            []ciDate           `xml:"citation>CI_Citation>date>CI_Date"`
	Identifiers      []mdIdentifier     `xml:"citation>CI_Citation>identifier"`
	Edition          textElem           `xml:"citation>CI_Citation>edition"`
	Abstract         textElem           `xml:"abstract"`
	Purpose          textElem           `xml:"purpose"`
	Status           codeElem           `xml:"status>MD_ProgressCode"`
	PointOfContact   []responsibleParty `xml:"pointOfContact>CI_ResponsibleParty"`
	GraphicOverviews []textElem         `xml:"graphicOverview>MD_BrowseGraphic>fileName"`
	KeywordGroups    []keywordGroup     `xml:"descriptiveKeywords>MD_Keywords"`
	LegalConstraints []legalConstraints `xml:"resourceConstraints>MD_LegalConstraints"`
	UseLimitations   []textElem         `xml:"resourceConstraints>MD_Constraints>useLimitation"`
	Classifications  []codeElem         `xml:"resourceConstraints>MD_SecurityConstraints>classification>MD_ClassificationCode"`
	Denominators     []string           `xml:"spatialResolution>MD_Resolution>equivalentScale>MD_RepresentativeFraction>denominator>Integer"`
	Distances        []distanceElem     `xml:"spatialResolution>MD_Resolution>distance>Distance"`
	Languages        []langElem         `xml:"language"`
	TopicCategories  []string           `xml:"topicCategory>MD_TopicCategoryCode"`
	Extents          []exExtent         `xml:"extent>EX_Extent"`
	Supplemental     textElem           `xml:"supplementalInformation"`
}

type mdFormat struct {
	Name          textElem `xml:"name"`
	Version       textElem `xml:"version"`
	Specification textElem `xml:"specification"`
}

type onlineResourceElem struct {
	URL         string   `xml:"linkage>URL"`
	Protocol    textElem `xml:"protocol"`
	Name        textElem `xml:"name"`
	Description textElem `xml:"description"`
	Function    codeElem `xml:"function>CI_OnLineFunctionCode"`
}

type mdDistribution struct {
	Formats []mdFormat           `xml:"distributionFormat>MD_Format"`
	Online  []onlineResourceElem `xml:"transferOptions>MD_DigitalTransferOptions>onLine>CI_OnlineResource"`
}

type conformanceElem struct {
	Title    textElem `xml:"specification>CI_Citation>title"`
	Date     dateElem `xml:"specification>CI_Citation>date>CI_Date>date"`
	DateType codeElem `xml:"specification>CI_Citation>date>CI_Date>dateType>CI_DateTypeCode"`
	Pass     string   `xml:"pass>Boolean"`
}

type dqDataQuality struct {
	Conformance []conformanceElem `xml:"report>DQ_DomainConsistency>result>DQ_ConformanceResult"`
	Lineage     textElem          `xml:"lineage>LI_Lineage>statement"`
}

type rsReferenceSystem struct {
	Code      textElem `xml:"code"`
	CodeSpace textElem `xml:"codeSpace"`
	Version   textElem `xml:"version"`
}

type isoMetadata struct {
	XMLName          xml.Name             `xml:"MD_Metadata"`
	FileIdentifier   textElem             `xml:"fileIdentifier"`
	ParentIdentifier textElem             `xml:"parentIdentifier"`
	Language         langElem             `xml:"language"`
	CharacterSet     codeElem             `xml:"characterSet>MD_CharacterSetCode"`
	HierarchyLevel   codeElem             `xml:"hierarchyLevel>MD_ScopeCode"`
	Contacts         []responsibleParty   `xml:"contact>CI_ResponsibleParty"`
	DateStamp        dateElem             `xml:"dateStamp"`
	StandardName     textElem             `xml:"metadataStandardName"`
	StandardVersion  textElem             `xml:"metadataStandardVersion"`
	DataSetURI       textElem             `xml:"dataSetURI"`
	ReferenceSystems []rsReferenceSystem  `xml:"referenceSystemInfo>MD_ReferenceSystem>referenceSystemIdentifier>RS_Identifier"`
	Identification   []dataIdentification `xml:"identificationInfo>MD_DataIdentification"`
	Distribution     *mdDistribution      `xml:"distributionInfo>MD_Distribution"`
	DataQuality      *dqDataQuality       `xml:"dataQualityInfo>DQ_DataQuality"`
}

// Response envelopes.

type rawMetadataFragment struct {
	Inner []byte `xml:",innerxml"`
}

type isoSearchResponse struct {
	XMLName xml.Name `xml:"GetRecordsResponse"`
	Results struct {
		Matched  int                   `xml:"numberOfRecordsMatched,attr"`
		Returned int                   `xml:"numberOfRecordsReturned,attr"`
		Next     int                   `xml:"nextRecord,attr"`
		Records  []rawMetadataFragment `xml:"MD_Metadata"`
	} `xml:"SearchResults"`
}

type briefSearchResponse struct {
	XMLName xml.Name `xml:"GetRecordsResponse"`
	Results struct {
		Matched  int `xml:"numberOfRecordsMatched,attr"`
		Returned int `xml:"numberOfRecordsReturned,attr"`
		Next     int `xml:"nextRecord,attr"`
		Records  []struct {
			Identifier string `xml:"identifier"`
		} `xml:"BriefRecord"`
	} `xml:"SearchResults"`
}

type exceptionReport struct {
	XMLName    xml.Name `xml:"ExceptionReport"`
	Exceptions []struct {
		Code string `xml:"exceptionCode,attr"`
		Text string `xml:"ExceptionText"`
	} `xml:"Exception"`
}

type capabilitiesResponse struct {
	XMLName xml.Name `xml:"Capabilities"`
	Title   string   `xml:"ServiceIdentification>Title"`
	Version string   `xml:"version,attr"`
}

// detectException reports a service-level OWS exception embedded in a
// response body.
func detectException(body []byte) error {
	if !strings.Contains(string(body), "ExceptionReport") {
		return nil
	}

	var report exceptionReport
	if err := xml.Unmarshal(body, &report); err != nil || len(report.Exceptions) == 0 {
		return nil
	}

	exc := report.Exceptions[0]

	return fmt.Errorf("catalogue returned exception %s: %s", exc.Code, strings.TrimSpace(exc.Text))
}

// isoPage is one parsed page of a GetRecords response. Fragments keeps the
// raw per-record XML so a malformed record fails alone, not the whole page.
type isoPage struct {
	Matched  int
	Returned int
	Next     int
	Records  [][]byte
}

func parseISOPage(body []byte) (*isoPage, error) {
	if err := detectException(body); err != nil {
		return nil, err
	}

	var resp isoSearchResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse GetRecords response: %w", err)
	}

	page := &isoPage{
		Matched:  resp.Results.Matched,
		Returned: resp.Results.Returned,
		Next:     resp.Results.Next,
	}

	for _, frag := range resp.Results.Records {
		wrapped := append([]byte("<MD_Metadata>"), frag.Inner...)
		wrapped = append(wrapped, []byte("</MD_Metadata>")...)
		page.Records = append(page.Records, wrapped)
	}

	return page, nil
}

// briefPage is one parsed page of a Dublin Core brief response, used only to
// obtain stable record identifiers for error attribution.
type briefPage struct {
	Matched int
	Next    int
	IDs     []string
}

func parseBriefPage(body []byte) (*briefPage, error) {
	if err := detectException(body); err != nil {
		return nil, err
	}

	var resp briefSearchResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse brief GetRecords response: %w", err)
	}

	page := &briefPage{Matched: resp.Results.Matched, Next: resp.Results.Next}
	for _, rec := range resp.Results.Records {
		page.IDs = append(page.IDs, strings.TrimSpace(rec.Identifier))
	}

	return page, nil
}

// parseISORecord unmarshals one MD_Metadata fragment and converts it.
func parseISORecord(fragment []byte) (*InspireRecord, error) {
	var meta isoMetadata
	if err := xml.Unmarshal(fragment, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse ISO 19139 record: %w", err)
	}

	return meta.toRecord()
}

// toRecord converts the parsed ISO tree into the canonical record. A record
// without a title or abstract is rejected with a SemanticError; a missing
// file identifier degrades to the placeholder "unknown" so the error stays
// attributable.
func (m *isoMetadata) toRecord() (*InspireRecord, error) {
	identifier := m.FileIdentifier.Text()
	if identifier == "" {
		identifier = placeholderID
	}

	var ident *dataIdentification
	if len(m.Identification) > 0 {
		ident = &m.Identification[0]
	}

	if ident == nil || ident.Title.Text() == "" {
		return nil, &SemanticError{Field: "title", Reason: "record is missing a title in its identification section"}
	}

	if ident.Abstract.Text() == "" {
		return nil, &SemanticError{Field: "abstract", Reason: "record is missing an abstract in its identification section"}
	}

	rec := &InspireRecord{
		Identifier:              identifier,
		Title:                   ident.Title.Text(),
		Abstract:                ident.Abstract.Text(),
		DateStamp:               m.DateStamp.Text(),
		ParentIdentifier:        m.ParentIdentifier.Text(),
		Language:                m.Language.Text(),
		Charset:                 m.CharacterSet.Code(),
		Hierarchy:               m.HierarchyLevel.Code(),
		MetadataStandardName:    m.StandardName.Text(),
		MetadataStandardVersion: m.StandardVersion.Text(),
		DatasetURI:              m.DataSetURI.Text(),
		AlternateTitle:          ident.AlternateTitle.Text(),
		Edition:                 ident.Edition.Text(),
		Purpose:                 ident.Purpose.Text(),
		Status:                  ident.Status.Code(),
		SupplementalInformation: ident.Supplemental.Text(),
	}

	for i := range m.Contacts {
		rec.Contacts = append(rec.Contacts, contactFromParty(&m.Contacts[i], "metadata"))
	}

	for i := range ident.PointOfContact {
		c := contactFromParty(&ident.PointOfContact[i], "resource")
		rec.Contacts = append(rec.Contacts, c)

		switch c.Role {
		case "originator":
			rec.Creators = append(rec.Creators, c)
		case "publisher":
			rec.Publishers = append(rec.Publishers, c)
		case "author":
			rec.Contributors = append(rec.Contributors, c)
		}
	}

	for _, group := range ident.KeywordGroups {
		for _, kw := range group.Keywords {
			if text := kw.Text(); text != "" {
				rec.Keywords = append(rec.Keywords, text)
			}
		}
	}

	for _, tc := range ident.TopicCategories {
		if text := strings.TrimSpace(tc); text != "" {
			rec.TopicCategories = append(rec.TopicCategories, text)
		}
	}

	for _, id := range ident.Identifiers {
		pair := id.pair()
		code := pair.Code.Text()

		if code == "" {
			continue
		}

		ri := ResourceIdentifier{Code: code, Codespace: pair.CodeSpace.Text()}
		if strings.HasPrefix(code, "http") {
			ri.URL = code
		}

		rec.ResourceIdentifiers = append(rec.ResourceIdentifiers, ri)
	}

	for _, d := range ident.Dates {
		if date := d.Date.Text(); date != "" {
			rec.Dates = append(rec.Dates, InspireDate{Date: date, DateType: d.Type.Code()})
		}
	}

	for _, lang := range ident.Languages {
		if text := lang.Text(); text != "" {
			rec.ResourceLanguage = append(rec.ResourceLanguage, text)
		}
	}

	for _, overview := range ident.GraphicOverviews {
		if text := overview.Text(); text != "" {
			rec.GraphicOverviews = append(rec.GraphicOverviews, text)
		}
	}

	for _, denom := range ident.Denominators {
		if n, err := strconv.Atoi(strings.TrimSpace(denom)); err == nil {
			rec.SpatialResolutionDenominators = append(rec.SpatialResolutionDenominators, n)
		}
	}

	for _, dist := range ident.Distances {
		value, err := strconv.ParseFloat(strings.TrimSpace(dist.Value), 64)
		if err != nil {
			continue
		}

		uom := dist.UOM
		if uom == "" {
			uom = "m"
		}

		rec.SpatialResolutionDistances = append(rec.SpatialResolutionDistances, SpatialResolutionDistance{
			Value: value,
			UOM:   uom,
		})
	}

	m.applyConstraints(rec, ident)
	m.applyExtents(rec, ident)
	m.applyDistribution(rec)
	m.applyDataQuality(rec)

	for _, rs := range m.ReferenceSystems {
		if code := rs.Code.Text(); code != "" {
			rec.ReferenceSystems = append(rec.ReferenceSystems, ReferenceSystem{
				Code:         code,
				CodeURL:      rs.Code.URL(),
				Codespace:    rs.CodeSpace.Text(),
				CodespaceURL: rs.CodeSpace.URL(),
				Version:      rs.Version.Text(),
				VersionURL:   rs.Version.URL(),
			})
		}
	}

	return rec, nil
}

func (m *isoMetadata) applyConstraints(rec *InspireRecord, ident *dataIdentification) {
	for _, lim := range ident.UseLimitations {
		if text := lim.Text(); text != "" {
			rec.Constraints = append(rec.Constraints, text)
		}
	}

	for _, lc := range ident.LegalConstraints {
		for _, lim := range lc.UseLimitations {
			if text := lim.Text(); text != "" {
				rec.Constraints = append(rec.Constraints, text)
			}
		}

		for _, ac := range lc.AccessConstraints {
			if code := ac.Code(); code != "" {
				rec.AccessConstraints = append(rec.AccessConstraints, code)
			}
		}

		for _, uc := range lc.UseConstraints {
			if code := uc.Code(); code != "" {
				rec.UseConstraints = append(rec.UseConstraints, code)
			}
		}

		for _, oc := range lc.OtherConstraints {
			if text := oc.Text(); text != "" {
				rec.OtherConstraints = append(rec.OtherConstraints, text)
			}

			if url := oc.URL(); url != "" {
				rec.OtherConstraintsURL = append(rec.OtherConstraintsURL, url)
			}
		}
	}

	for _, cl := range ident.Classifications {
		if code := cl.Code(); code != "" {
			rec.Classification = append(rec.Classification, code)
		}
	}
}

func (m *isoMetadata) applyExtents(rec *InspireRecord, ident *dataIdentification) {
	for _, extent := range ident.Extents {
		if rec.SpatialExtent == nil && extent.BBox != nil {
			west, errW := strconv.ParseFloat(strings.TrimSpace(extent.BBox.West), 64)
			south, errS := strconv.ParseFloat(strings.TrimSpace(extent.BBox.South), 64)
			east, errE := strconv.ParseFloat(strings.TrimSpace(extent.BBox.East), 64)
			north, errN := strconv.ParseFloat(strings.TrimSpace(extent.BBox.North), 64)

			if errW == nil && errS == nil && errE == nil && errN == nil {
				rec.SpatialExtent = []float64{west, south, east, north}
			}
		}

		if rec.TemporalExtent == nil && extent.Temporal != nil {
			start := strings.TrimSpace(extent.Temporal.Begin)
			end := strings.TrimSpace(extent.Temporal.End)

			if start != "" || end != "" {
				rec.TemporalExtent = &TemporalExtent{Start: start, End: end}
			}
		}
	}
}

func (m *isoMetadata) applyDistribution(rec *InspireRecord) {
	if m.Distribution == nil {
		return
	}

	for _, format := range m.Distribution.Formats {
		if format.Name.Text() == "" {
			continue
		}

		rec.DistributionFormats = append(rec.DistributionFormats, DistributionFormat{
			Name:             format.Name.Text(),
			Version:          format.Version.Text(),
			Specification:    format.Specification.Text(),
			NameURL:          format.Name.URL(),
			VersionURL:       format.Version.URL(),
			SpecificationURL: format.Specification.URL(),
		})
	}

	for _, ol := range m.Distribution.Online {
		url := strings.TrimSpace(ol.URL)
		if url == "" {
			continue
		}

		rec.OnlineResources = append(rec.OnlineResources, OnlineResource{
			URL:            url,
			Protocol:       ol.Protocol.Text(),
			ProtocolURL:    ol.Protocol.URL(),
			Name:           ol.Name.Text(),
			NameURL:        ol.Name.URL(),
			Description:    ol.Description.Text(),
			DescriptionURL: ol.Description.URL(),
			Function:       ol.Function.Code(),
		})
	}
}

func (m *isoMetadata) applyDataQuality(rec *InspireRecord) {
	if m.DataQuality == nil {
		return
	}

	rec.Lineage = m.DataQuality.Lineage.Text()
	rec.LineageURL = m.DataQuality.Lineage.URL()

	for _, conf := range m.DataQuality.Conformance {
		title := conf.Title.Text()
		if title == "" {
			continue
		}

		rec.ConformanceResults = append(rec.ConformanceResults, ConformanceResult{
			SpecificationTitle:    title,
			SpecificationTitleURL: conf.Title.URL(),
			SpecificationDate:     conf.Date.Text(),
			SpecificationDateType: conf.DateType.Code(),
			Degree:                strings.TrimSpace(conf.Pass),
		})
	}
}

func contactFromParty(p *responsibleParty, contactType string) Contact {
	return Contact{
		Name:                      p.IndividualName.Text(),
		NameURL:                   p.IndividualName.URL(),
		Organization:              p.OrganisationName.Text(),
		OrganizationURL:           p.OrganisationName.URL(),
		Email:                     p.Email.Text(),
		Role:                      p.Role.Code(),
		Type:                      contactType,
		Position:                  p.PositionName.Text(),
		Phone:                     p.Voice.Text(),
		Fax:                       p.Facsimile.Text(),
		Address:                   p.DeliveryPoint.Text(),
		City:                      p.City.Text(),
		Region:                    p.AdminArea.Text(),
		Postcode:                  p.PostalCode.Text(),
		Country:                   p.Country.Text(),
		OnlineResourceURL:         strings.TrimSpace(p.OnlineURL),
		OnlineResourceProtocol:    p.OnlineProtocol.Text(),
		OnlineResourceName:        p.OnlineName.Text(),
		OnlineResourceDescription: p.OnlineDesc.Text(),
	}
}

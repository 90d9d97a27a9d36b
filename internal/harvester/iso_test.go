package harvester

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const isoFixture = `<gmd:MD_Metadata xmlns:gmd="http://www.isotc211.org/2005/gmd"
    xmlns:gco="http://www.isotc211.org/2005/gco"
    xmlns:gmx="http://www.isotc211.org/2005/gmx"
    xmlns:gml="http://www.opengis.net/gml/3.2"
    xmlns:xlink="http://www.w3.org/1999/xlink">
  <gmd:fileIdentifier><gco:CharacterString>8f3b6a2e-0001</gco:CharacterString></gmd:fileIdentifier>
  <gmd:language>
    <gmd:LanguageCode codeList="http://www.loc.gov/standards/iso639-2/" codeListValue="ger">ger</gmd:LanguageCode>
  </gmd:language>
  <gmd:hierarchyLevel>
    <gmd:MD_ScopeCode codeListValue="dataset">dataset</gmd:MD_ScopeCode>
  </gmd:hierarchyLevel>
  <gmd:contact>
    <gmd:CI_ResponsibleParty>
      <gmd:organisationName><gco:CharacterString>BonaRes Centre</gco:CharacterString></gmd:organisationName>
      <gmd:contactInfo><gmd:CI_Contact><gmd:address><gmd:CI_Address>
        <gmd:electronicMailAddress><gco:CharacterString>metadata@example.org</gco:CharacterString></gmd:electronicMailAddress>
      </gmd:CI_Address></gmd:address></gmd:CI_Contact></gmd:contactInfo>
      <gmd:role><gmd:CI_RoleCode codeListValue="pointOfContact"/></gmd:role>
    </gmd:CI_ResponsibleParty>
  </gmd:contact>
  <gmd:dateStamp><gco:Date>2023-06-15</gco:Date></gmd:dateStamp>
  <gmd:metadataStandardName><gco:CharacterString>ISO19115</gco:CharacterString></gmd:metadataStandardName>
  <gmd:metadataStandardVersion><gco:CharacterString>2003/Cor.1:2006</gco:CharacterString></gmd:metadataStandardVersion>
  <gmd:referenceSystemInfo>
    <gmd:MD_ReferenceSystem><gmd:referenceSystemIdentifier><gmd:RS_Identifier>
      <gmd:code><gmx:Anchor xlink:href="http://www.opengis.net/def/crs/EPSG/0/25832">EPSG:25832</gmx:Anchor></gmd:code>
      <gmd:codeSpace><gco:CharacterString>EPSG</gco:CharacterString></gmd:codeSpace>
    </gmd:RS_Identifier></gmd:referenceSystemIdentifier></gmd:MD_ReferenceSystem>
  </gmd:referenceSystemInfo>
  <gmd:identificationInfo>
    <gmd:MD_DataIdentification>
      <gmd:citation><gmd:CI_Citation>
        <gmd:title><gco:CharacterString>Soil moisture grid Lower Saxony</gco:CharacterString></gmd:title>
        <gmd:date><gmd:CI_Date>
          <gmd:date><gco:Date>2022-01-10</gco:Date></gmd:date>
          <gmd:dateType><gmd:CI_DateTypeCode codeListValue="publication"/></gmd:dateType>
        </gmd:CI_Date></gmd:date>
        <gmd:identifier><gmd:MD_Identifier>
          <gmd:code><gco:CharacterString>10.20387/bonares-example</gco:CharacterString></gmd:code>
          <gmd:codeSpace><gco:CharacterString>doi.org</gco:CharacterString></gmd:codeSpace>
        </gmd:MD_Identifier></gmd:identifier>
      </gmd:CI_Citation></gmd:citation>
      <gmd:abstract><gco:CharacterString>Gridded soil moisture product.</gco:CharacterString></gmd:abstract>
      <gmd:pointOfContact><gmd:CI_ResponsibleParty>
        <gmd:individualName><gco:CharacterString>Anna Meier</gco:CharacterString></gmd:individualName>
        <gmd:organisationName><gco:CharacterString>Soil Institute</gco:CharacterString></gmd:organisationName>
        <gmd:role><gmd:CI_RoleCode codeListValue="originator"/></gmd:role>
      </gmd:CI_ResponsibleParty></gmd:pointOfContact>
      <gmd:pointOfContact><gmd:CI_ResponsibleParty>
        <gmd:organisationName><gco:CharacterString>Open Data Portal</gco:CharacterString></gmd:organisationName>
        <gmd:role><gmd:CI_RoleCode codeListValue="publisher"/></gmd:role>
      </gmd:CI_ResponsibleParty></gmd:pointOfContact>
      <gmd:descriptiveKeywords><gmd:MD_Keywords>
        <gmd:keyword><gco:CharacterString>soil</gco:CharacterString></gmd:keyword>
        <gmd:keyword><gco:CharacterString>moisture</gco:CharacterString></gmd:keyword>
      </gmd:MD_Keywords></gmd:descriptiveKeywords>
      <gmd:resourceConstraints><gmd:MD_LegalConstraints>
        <gmd:accessConstraints><gmd:MD_RestrictionCode codeListValue="otherRestrictions"/></gmd:accessConstraints>
        <gmd:otherConstraints>
          <gmx:Anchor xlink:href="https://creativecommons.org/licenses/by/4.0/">CC BY 4.0</gmx:Anchor>
        </gmd:otherConstraints>
      </gmd:MD_LegalConstraints></gmd:resourceConstraints>
      <gmd:spatialResolution><gmd:MD_Resolution><gmd:equivalentScale>
        <gmd:MD_RepresentativeFraction><gmd:denominator><gco:Integer>50000</gco:Integer></gmd:denominator></gmd:MD_RepresentativeFraction>
      </gmd:equivalentScale></gmd:MD_Resolution></gmd:spatialResolution>
      <gmd:spatialResolution><gmd:MD_Resolution><gmd:distance>
        <gco:Distance uom="m">100</gco:Distance>
      </gmd:distance></gmd:MD_Resolution></gmd:spatialResolution>
      <gmd:language>
        <gmd:LanguageCode codeListValue="ger">ger</gmd:LanguageCode>
      </gmd:language>
      <gmd:topicCategory><gmd:MD_TopicCategoryCode>geoscientificInformation</gmd:MD_TopicCategoryCode></gmd:topicCategory>
      <gmd:extent><gmd:EX_Extent>
        <gmd:geographicElement><gmd:EX_GeographicBoundingBox>
          <gmd:westBoundLongitude><gco:Decimal>6.5</gco:Decimal></gmd:westBoundLongitude>
          <gmd:eastBoundLongitude><gco:Decimal>11.5</gco:Decimal></gmd:eastBoundLongitude>
          <gmd:southBoundLatitude><gco:Decimal>51.3</gco:Decimal></gmd:southBoundLatitude>
          <gmd:northBoundLatitude><gco:Decimal>53.9</gco:Decimal></gmd:northBoundLatitude>
        </gmd:EX_GeographicBoundingBox></gmd:geographicElement>
        <gmd:temporalElement><gmd:EX_TemporalExtent><gmd:extent>
          <gml:TimePeriod><gml:beginPosition>2015-01-01</gml:beginPosition><gml:endPosition>2020-12-31</gml:endPosition></gml:TimePeriod>
        </gmd:extent></gmd:EX_TemporalExtent></gmd:temporalElement>
      </gmd:EX_Extent></gmd:extent>
    </gmd:MD_DataIdentification>
  </gmd:identificationInfo>
  <gmd:distributionInfo><gmd:MD_Distribution>
    <gmd:distributionFormat><gmd:MD_Format>
      <gmd:name><gco:CharacterString>GeoTIFF</gco:CharacterString></gmd:name>
      <gmd:version><gco:CharacterString>1.0</gco:CharacterString></gmd:version>
    </gmd:MD_Format></gmd:distributionFormat>
    <gmd:transferOptions><gmd:MD_DigitalTransferOptions><gmd:onLine>
      <gmd:CI_OnlineResource>
        <gmd:linkage><gmd:URL>https://download.example.org/soil.tif</gmd:URL></gmd:linkage>
        <gmd:protocol><gco:CharacterString>WWW:DOWNLOAD</gco:CharacterString></gmd:protocol>
        <gmd:function><gmd:CI_OnLineFunctionCode codeListValue="download"/></gmd:function>
      </gmd:CI_OnlineResource>
    </gmd:onLine></gmd:MD_DigitalTransferOptions></gmd:transferOptions>
  </gmd:MD_Distribution></gmd:distributionInfo>
  <gmd:dataQualityInfo><gmd:DQ_DataQuality>
    <gmd:report><gmd:DQ_DomainConsistency><gmd:result><gmd:DQ_ConformanceResult>
      <gmd:specification><gmd:CI_Citation>
        <gmd:title><gco:CharacterString>INSPIRE Data Specification</gco:CharacterString></gmd:title>
      </gmd:CI_Citation></gmd:specification>
      <gmd:pass><gco:Boolean>true</gco:Boolean></gmd:pass>
    </gmd:DQ_ConformanceResult></gmd:result></gmd:DQ_DomainConsistency></gmd:report>
    <gmd:lineage><gmd:LI_Lineage>
      <gmd:statement><gco:CharacterString>Derived from in-situ sensor network measurements.</gco:CharacterString></gmd:statement>
    </gmd:LI_Lineage></gmd:lineage>
  </gmd:DQ_DataQuality></gmd:dataQualityInfo>
</gmd:MD_Metadata>`

func TestParseISORecord(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rec, err := parseISORecord([]byte(isoFixture))
	require.NoError(t, err)

	assert.Equal(t, "8f3b6a2e-0001", rec.Identifier)
	assert.Equal(t, "Soil moisture grid Lower Saxony", rec.Title)
	assert.Equal(t, "Gridded soil moisture product.", rec.Abstract)
	assert.Equal(t, "2023-06-15", rec.DateStamp)
	assert.Equal(t, "ger", rec.Language)
	assert.Equal(t, "dataset", rec.Hierarchy)
	assert.Equal(t, "ISO19115", rec.MetadataStandardName)
	assert.Equal(t, "2003/Cor.1:2006", rec.MetadataStandardVersion)

	// Metadata contact plus two resource contacts.
	require.Len(t, rec.Contacts, 3)
	assert.Equal(t, "BonaRes Centre", rec.Contacts[0].Organization)
	assert.Equal(t, "metadata@example.org", rec.Contacts[0].Email)
	assert.Equal(t, "metadata", rec.Contacts[0].Type)

	require.Len(t, rec.Creators, 1)
	assert.Equal(t, "Anna Meier", rec.Creators[0].Name)
	assert.Equal(t, "originator", rec.Creators[0].Role)

	require.Len(t, rec.Publishers, 1)
	assert.Equal(t, "Open Data Portal", rec.Publishers[0].Organization)

	assert.Equal(t, []string{"soil", "moisture"}, rec.Keywords)
	assert.Equal(t, []string{"geoscientificInformation"}, rec.TopicCategories)

	require.Len(t, rec.Dates, 1)
	assert.Equal(t, "2022-01-10", rec.Dates[0].Date)
	assert.Equal(t, "publication", rec.Dates[0].DateType)

	require.Len(t, rec.ResourceIdentifiers, 1)
	assert.Equal(t, "10.20387/bonares-example", rec.ResourceIdentifiers[0].Code)
	assert.Equal(t, "doi.org", rec.ResourceIdentifiers[0].Codespace)

	assert.Equal(t, []string{"otherRestrictions"}, rec.AccessConstraints)
	assert.Equal(t, []string{"CC BY 4.0"}, rec.OtherConstraints)
	assert.Equal(t, []string{"https://creativecommons.org/licenses/by/4.0/"}, rec.OtherConstraintsURL)

	assert.Equal(t, []int{50000}, rec.SpatialResolutionDenominators)
	require.Len(t, rec.SpatialResolutionDistances, 1)
	assert.Equal(t, 100.0, rec.SpatialResolutionDistances[0].Value)
	assert.Equal(t, "m", rec.SpatialResolutionDistances[0].UOM)

	assert.Equal(t, []float64{6.5, 51.3, 11.5, 53.9}, rec.SpatialExtent)
	require.NotNil(t, rec.TemporalExtent)
	assert.Equal(t, "2015-01-01", rec.TemporalExtent.Start)
	assert.Equal(t, "2020-12-31", rec.TemporalExtent.End)

	require.Len(t, rec.DistributionFormats, 1)
	assert.Equal(t, "GeoTIFF", rec.DistributionFormats[0].Name)
	assert.Equal(t, "1.0", rec.DistributionFormats[0].Version)

	require.Len(t, rec.OnlineResources, 1)
	assert.Equal(t, "https://download.example.org/soil.tif", rec.OnlineResources[0].URL)
	assert.Equal(t, "WWW:DOWNLOAD", rec.OnlineResources[0].Protocol)
	assert.Equal(t, "download", rec.OnlineResources[0].Function)

	assert.Equal(t, "Derived from in-situ sensor network measurements.", rec.Lineage)

	require.Len(t, rec.ConformanceResults, 1)
	assert.Equal(t, "INSPIRE Data Specification", rec.ConformanceResults[0].SpecificationTitle)
	assert.Equal(t, "true", rec.ConformanceResults[0].Degree)

	require.Len(t, rec.ReferenceSystems, 1)
	assert.Equal(t, "EPSG:25832", rec.ReferenceSystems[0].Code)
	assert.Equal(t, "http://www.opengis.net/def/crs/EPSG/0/25832", rec.ReferenceSystems[0].CodeURL)
	assert.Equal(t, "EPSG", rec.ReferenceSystems[0].Codespace)
}

func TestParseISORecordMissingTitle(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	fragment := `<MD_Metadata>
		<fileIdentifier><CharacterString>rec-1</CharacterString></fileIdentifier>
		<identificationInfo><MD_DataIdentification>
			<abstract><CharacterString>no title here</CharacterString></abstract>
		</MD_DataIdentification></identificationInfo>
	</MD_Metadata>`

	_, err := parseISORecord([]byte(fragment))

	var semantic *SemanticError

	require.ErrorAs(t, err, &semantic)
	assert.Equal(t, "title", semantic.Field)
}

func TestParseISORecordMissingAbstract(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	fragment := `<MD_Metadata>
		<fileIdentifier><CharacterString>rec-2</CharacterString></fileIdentifier>
		<identificationInfo><MD_DataIdentification>
			<citation><CI_Citation><title><CharacterString>No abstract here</CharacterString></title></CI_Citation></citation>
		</MD_DataIdentification></identificationInfo>
	</MD_Metadata>`

	_, err := parseISORecord([]byte(fragment))

	var semantic *SemanticError

	require.ErrorAs(t, err, &semantic)
	assert.Equal(t, "abstract", semantic.Field)
}

func TestParseISORecordMissingIdentifier(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	fragment := `<MD_Metadata>
		<identificationInfo><MD_DataIdentification>
			<citation><CI_Citation><title><CharacterString>Untitled survey</CharacterString></title></CI_Citation></citation>
			<abstract><CharacterString>A survey without a file identifier.</CharacterString></abstract>
		</MD_DataIdentification></identificationInfo>
	</MD_Metadata>`

	rec, err := parseISORecord([]byte(fragment))
	require.NoError(t, err)
	assert.Equal(t, "unknown", rec.Identifier)
	assert.Equal(t, "Untitled survey", rec.Title)
}

func TestParseISOPage(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	body := `<csw:GetRecordsResponse xmlns:csw="http://www.opengis.net/cat/csw/2.0.2"
		xmlns:gmd="http://www.isotc211.org/2005/gmd" xmlns:gco="http://www.isotc211.org/2005/gco">
		<csw:SearchResults numberOfRecordsMatched="12" numberOfRecordsReturned="2" nextRecord="3">
			<gmd:MD_Metadata><gmd:fileIdentifier><gco:CharacterString>a</gco:CharacterString></gmd:fileIdentifier></gmd:MD_Metadata>
			<gmd:MD_Metadata><gmd:fileIdentifier><gco:CharacterString>b</gco:CharacterString></gmd:fileIdentifier></gmd:MD_Metadata>
		</csw:SearchResults>
	</csw:GetRecordsResponse>`

	page, err := parseISOPage([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, 12, page.Matched)
	assert.Equal(t, 2, page.Returned)
	assert.Equal(t, 3, page.Next)
	require.Len(t, page.Records, 2)
	assert.Contains(t, string(page.Records[0]), "<MD_Metadata>")
}

func TestParseBriefPage(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	body := `<csw:GetRecordsResponse xmlns:csw="http://www.opengis.net/cat/csw/2.0.2"
		xmlns:dc="http://purl.org/dc/elements/1.1/">
		<csw:SearchResults numberOfRecordsMatched="2" numberOfRecordsReturned="2" nextRecord="0">
			<csw:BriefRecord><dc:identifier>rec-a</dc:identifier></csw:BriefRecord>
			<csw:BriefRecord><dc:identifier> rec-b </dc:identifier></csw:BriefRecord>
		</csw:SearchResults>
	</csw:GetRecordsResponse>`

	page, err := parseBriefPage([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, 2, page.Matched)
	assert.Equal(t, 0, page.Next)
	assert.Equal(t, []string{"rec-a", "rec-b"}, page.IDs)
}

func TestDetectException(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	body := `<ows:ExceptionReport xmlns:ows="http://www.opengis.net/ows">
		<ows:Exception exceptionCode="InvalidParameterValue">
			<ows:ExceptionText>unknown queryable</ows:ExceptionText>
		</ows:Exception>
	</ows:ExceptionReport>`

	err := detectException([]byte(body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidParameterValue")
	assert.Contains(t, err.Error(), "unknown queryable")

	assert.NoError(t, detectException([]byte("<Capabilities/>")))
}

func TestRecordProcessingErrorUnwrap(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cause := &SemanticError{Field: "title", Reason: "missing"}
	err := &RecordProcessingError{ID: "rec-1", Cause: cause}

	assert.Contains(t, err.Error(), "rec-1")

	var semantic *SemanticError

	require.True(t, errors.As(err, &semantic))
}

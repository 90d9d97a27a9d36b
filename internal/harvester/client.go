package harvester

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// maxPageSize caps one GetRecords page. Larger pages get split.
	maxPageSize = 10

	// placeholderID attributes errors on records whose identifier could not
	// be extracted.
	placeholderID = "unknown"

	defaultTimeout = 30 * time.Second

	// responseLimit bounds how much of a catalogue response is read.
	responseLimit = 64 << 20
)

// Config holds the catalogue endpoint settings.
type Config struct {
	URL      string
	Timeout  time.Duration
	PageSize int
}

// Client talks to one CSW 2.0.2 endpoint. Connect must run before any
// record operation. Not safe for concurrent use.
type Client struct {
	cfg       Config
	http      *http.Client
	logger    *slog.Logger
	connected bool
	title     string
}

// NewClient creates a catalogue client. The page size is clamped to the
// protocol maximum.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.PageSize <= 0 || cfg.PageSize > maxPageSize {
		cfg.PageSize = maxPageSize
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Connect issues a GetCapabilities request and records the service title.
func (c *Client) Connect(ctx context.Context) error {
	capURL, err := capabilitiesURL(c.cfg.URL)
	if err != nil {
		return &ConnectionError{URL: c.cfg.URL, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, capURL, nil)
	if err != nil {
		return &ConnectionError{URL: c.cfg.URL, Cause: err}
	}

	body, err := c.do(req)
	if err != nil {
		return err
	}

	if err := detectException(body); err != nil {
		return &ConnectionError{URL: c.cfg.URL, Cause: err}
	}

	caps, err := parseCapabilities(body)
	if err != nil {
		return &ConnectionError{URL: c.cfg.URL, Cause: err}
	}

	c.connected = true
	c.title = caps.Title

	c.logger.Info("Connected to catalogue service",
		slog.String("url", c.cfg.URL),
		slog.String("title", caps.Title),
	)

	return nil
}

// ServiceTitle returns the title announced by the catalogue, once connected.
func (c *Client) ServiceTitle() string {
	return c.title
}

// Count returns the number of records matching the query, using a hits
// request that transfers no record payloads.
func (c *Client) Count(ctx context.Context, query Query) (int, error) {
	if !c.connected {
		return 0, ErrNotConnected
	}

	body, err := buildGetRecords(query, cswNamespace, elementSetIDs, resultTypeHits, 1, 1)
	if err != nil {
		return 0, err
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return 0, err
	}

	page, err := parseBriefPage(resp)
	if err != nil {
		return 0, &ConnectionError{URL: c.cfg.URL, Cause: err}
	}

	return page.Matched, nil
}

// Records starts a paged harvest. maxRecords <= 0 harvests everything the
// query matches.
func (c *Client) Records(ctx context.Context, query Query, maxRecords int) (*Iterator, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}

	return &Iterator{
		client:     c,
		query:      query,
		maxRecords: maxRecords,
		start:      1,
	}, nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &ConnectionError{URL: c.cfg.URL, Cause: err}
	}

	req.Header.Set("Content-Type", "application/xml")

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ConnectionError{URL: c.cfg.URL, Cause: err}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseLimit))
	if err != nil {
		return nil, &ConnectionError{URL: c.cfg.URL, Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ConnectionError{
			URL:   c.cfg.URL,
			Cause: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return body, nil
}

// Iterator yields one Item per catalogue record in document order. Records
// that fail to parse become error items; transport failures abort the
// iteration with an error.
type Iterator struct {
	client     *Client
	query      Query
	maxRecords int

	start    int
	yielded  int
	done     bool
	buffered []Item
	bufIdx   int
}

// Next returns the next item or ErrDone when the harvest is finished.
func (it *Iterator) Next(ctx context.Context) (*Item, error) {
	for {
		if it.bufIdx < len(it.buffered) {
			item := it.buffered[it.bufIdx]
			it.bufIdx++
			it.yielded++

			return &item, nil
		}

		if it.done || (it.maxRecords > 0 && it.yielded >= it.maxRecords) {
			return nil, ErrDone
		}

		if err := it.fetchPage(ctx); err != nil {
			return nil, err
		}

		if len(it.buffered) == 0 {
			return nil, ErrDone
		}
	}
}

// fetchPage requests the next page twice: once briefly in Dublin Core to get
// stable identifiers for error attribution, then fully in ISO 19139 for the
// actual payloads. Both requests share start position and page size, so
// entries align by index unless the catalogue misbehaves.
func (it *Iterator) fetchPage(ctx context.Context) error {
	pageSize := it.client.cfg.PageSize
	if it.maxRecords > 0 {
		if remaining := it.maxRecords - it.yielded; remaining < pageSize {
			pageSize = remaining
		}
	}

	it.buffered = it.buffered[:0]
	it.bufIdx = 0

	briefBody, err := buildGetRecords(it.query, cswNamespace, elementSetIDs, resultTypeResults, it.start, pageSize)
	if err != nil {
		return err
	}

	briefResp, err := it.client.post(ctx, briefBody)
	if err != nil {
		return err
	}

	brief, err := parseBriefPage(briefResp)
	if err != nil {
		return &ConnectionError{URL: it.client.cfg.URL, Cause: err}
	}

	isoBody, err := buildGetRecords(it.query, gmdNamespace, elementSetAll, resultTypeResults, it.start, pageSize)
	if err != nil {
		return err
	}

	isoResp, err := it.client.post(ctx, isoBody)
	if err != nil {
		return err
	}

	iso, err := parseISOPage(isoResp)
	if err != nil {
		return &ConnectionError{URL: it.client.cfg.URL, Cause: err}
	}

	if len(iso.Records) != len(brief.IDs) {
		it.client.logger.Warn("Catalogue page misaligned between brief and full responses",
			slog.Int("brief_records", len(brief.IDs)),
			slog.Int("full_records", len(iso.Records)),
			slog.Int("start_position", it.start),
		)
	}

	for i, fragment := range iso.Records {
		it.buffered = append(it.buffered, it.makeItem(i, fragment, brief.IDs))
	}

	it.advance(iso, len(iso.Records))

	return nil
}

func (it *Iterator) makeItem(index int, fragment []byte, briefIDs []string) Item {
	fallbackID := placeholderID
	if index < len(briefIDs) && briefIDs[index] != "" {
		fallbackID = briefIDs[index]
	}

	record, err := parseISORecord(fragment)
	if err != nil {
		return Item{Err: &RecordProcessingError{ID: fallbackID, Cause: err}}
	}

	if record.Identifier == placeholderID && fallbackID != placeholderID {
		record.Identifier = fallbackID
	} else if fallbackID != placeholderID && record.Identifier != fallbackID {
		// The full response carries the authoritative identifier.
		it.client.logger.Warn("Record identifier differs between brief and full responses",
			slog.String("brief_id", fallbackID),
			slog.String("full_id", record.Identifier),
		)
	}

	return Item{Record: record}
}

func (it *Iterator) advance(page *isoPage, returned int) {
	if returned == 0 {
		it.done = true

		return
	}

	it.start += returned

	if page.Next <= 0 || (page.Matched > 0 && it.start > page.Matched) {
		it.done = true
	}
}

func capabilitiesURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid catalogue URL: %w", err)
	}

	q := u.Query()
	q.Set("service", cswService)
	q.Set("version", cswVersion)
	q.Set("request", "GetCapabilities")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func parseCapabilities(body []byte) (*capabilitiesResponse, error) {
	var caps capabilitiesResponse
	if err := xml.Unmarshal(body, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities response: %w", err)
	}

	caps.Title = strings.TrimSpace(caps.Title)

	return &caps, nil
}

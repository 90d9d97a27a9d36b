package apiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	arcsPath = "/v1/arcs"

	// errorBodyLimit bounds how much of an error response ends up in the
	// returned error.
	errorBodyLimit = 512
)

// ClientError reports a client-side setup failure, such as a missing
// certificate file.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string {
	return e.Message
}

// HTTPError reports a non-success status from the registration API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Body)
}

// RequestError reports a transport-level failure.
type RequestError struct {
	Cause error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("Request error: %v", e.Cause)
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// ArcStatus is the per-document outcome inside an upload response.
type ArcStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ArcsResponse is the registration API's answer to an upload.
type ArcsResponse struct {
	ClientID string      `json:"client_id"`
	Message  string      `json:"message"`
	RDI      string      `json:"rdi"`
	Arcs     []ArcStatus `json:"arcs"`
}

type arcsRequest struct {
	RDI  string            `json:"rdi"`
	Arcs []json.RawMessage `json:"arcs"`
}

// Client uploads ARC documents over mutually-authenticated TLS. Safe for
// concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient validates the certificate material and builds the TLS transport.
// All certificate files must exist up front; a missing file is reported with
// a ClientError naming the file kind.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(cfg.ClientCertPath); err != nil {
		return nil, &ClientError{Message: "Client certificate not found: " + cfg.ClientCertPath}
	}

	if _, err := os.Stat(cfg.ClientKeyPath); err != nil {
		return nil, &ClientError{Message: "Client key not found: " + cfg.ClientKeyPath}
	}

	if cfg.CACertPath != "" {
		if _, err := os.Stat(cfg.CACertPath); err != nil {
			return nil, &ClientError{Message: "CA certificate not found: " + cfg.CACertPath}
		}
	}

	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, &ClientError{Message: fmt.Sprintf("failed to load client key pair: %v", err)}
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.CACertPath != "" {
		pem, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, &ClientError{Message: fmt.Sprintf("failed to read CA certificate: %v", err)}
		}

		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}

		if !pool.AppendCertsFromPEM(pem) {
			return nil, &ClientError{Message: "CA certificate contains no valid PEM data: " + cfg.CACertPath}
		}

		tlsCfg.RootCAs = pool
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}

		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
		},
		limiter: limiter,
		logger:  logger,
	}, nil
}

// CreateOrUpdateARC uploads a single ARC document.
func (c *Client) CreateOrUpdateARC(ctx context.Context, rdi string, arcDoc json.RawMessage) (*ArcsResponse, error) {
	return c.CreateOrUpdateARCs(ctx, rdi, []json.RawMessage{arcDoc})
}

// CreateOrUpdateARCs uploads a batch of ARC documents in one request. The
// documents must already be serialized JSON objects; they are embedded into
// the request body unmodified.
func (c *Client) CreateOrUpdateARCs(ctx context.Context, rdi string, arcDocs []json.RawMessage) (*ArcsResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &RequestError{Cause: err}
	}

	body, err := json.Marshal(arcsRequest{RDI: rdi, Arcs: arcDocs})
	if err != nil {
		return nil, &RequestError{Cause: fmt.Errorf("failed to encode request body: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+arcsPath, bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{Cause: err}
	}

	correlationID := uuid.New().String()

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", correlationID)

	c.logger.Debug("Uploading ARC batch",
		slog.String("rdi", rdi),
		slog.Int("arcs", len(arcDocs)),
		slog.String("correlation_id", correlationID),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Cause: err}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Cause: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncateBody(respBody)}
	}

	var parsed ArcsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &RequestError{Cause: fmt.Errorf("failed to decode response: %w", err)}
	}

	return &parsed, nil
}

// Close releases idle transport connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func truncateBody(body []byte) string {
	if len(body) > errorBodyLimit {
		return string(body[:errorBodyLimit])
	}

	return string(body)
}

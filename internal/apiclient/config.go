// Package apiclient implements the mutually-authenticated HTTPS client used
// to deliver ARC documents to the registration API.
package apiclient

import (
	"errors"
	"strings"
	"time"

	"github.com/fairagro/arc-middleware/internal/config"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 10.0
	defaultBurst     = 5
)

var (
	// ErrAPIURLEmpty is returned when the API base URL is missing.
	ErrAPIURLEmpty = errors.New("api_url cannot be empty")

	// ErrClientCertEmpty is returned when the client certificate path is missing.
	ErrClientCertEmpty = errors.New("client_cert_path cannot be empty")

	// ErrClientKeyEmpty is returned when the client key path is missing.
	ErrClientKeyEmpty = errors.New("client_key_path cannot be empty")
)

// Config holds the registration API connection settings. CACertPath is
// optional; when empty the system trust store verifies the server.
type Config struct {
	APIURL         string
	ClientCertPath string
	ClientKeyPath  string
	CACertPath     string
	Timeout        time.Duration

	// RateLimit paces outgoing requests in requests per second. Zero or
	// negative disables pacing.
	RateLimit float64
	Burst     int
}

// FromWrapper extracts the API client settings from a config wrapper.
func FromWrapper(w *config.Wrapper) Config {
	timeout := defaultTimeout
	if secs := w.IntOr("api_timeout_seconds", 0); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	return Config{
		APIURL:         strings.TrimRight(w.StringOr("api_url", ""), "/"),
		ClientCertPath: w.StringOr("client_cert_path", ""),
		ClientKeyPath:  w.StringOr("client_key_path", ""),
		CACertPath:     w.StringOr("ca_cert_path", ""),
		Timeout:        timeout,
		RateLimit:      defaultRateLimit,
		Burst:          defaultBurst,
	}
}

// Validate checks the API client configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return ErrAPIURLEmpty
	}

	if strings.TrimSpace(c.ClientCertPath) == "" {
		return ErrClientCertEmpty
	}

	if strings.TrimSpace(c.ClientKeyPath) == "" {
		return ErrClientKeyEmpty
	}

	return nil
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fairagro/arc-middleware/internal/apiclient"
	"github.com/fairagro/arc-middleware/internal/config"
	"github.com/fairagro/arc-middleware/internal/harvester"
)

const (
	envPrefix = "INSPIRE_TO_ARC"

	defaultRDI               = "inspire-import"
	defaultBatchSize         = 10
	defaultCSWTimeoutSeconds = 30
)

var (
	// ErrCSWURLEmpty is returned when the catalogue endpoint URL is missing.
	ErrCSWURLEmpty = errors.New("csw_url cannot be empty")

	// ErrBadConstraint is returned for a constraint entry without a
	// comparison separator.
	ErrBadConstraint = errors.New("constraint must have the form property=value or property~pattern")
)

// appConfig is the fully resolved configuration of one harvest run.
type appConfig struct {
	LogLevel slog.Level

	RDI    string
	RDIURL string

	CSW        harvester.Config
	Query      harvester.Query
	MaxRecords int
	BatchSize  int

	API  apiclient.Config
	Otel config.OtelConfig

	KafkaBrokers []string
	KafkaTopic   string
}

// loadConfig reads the YAML file and applies env/secret overrides under the
// INSPIRE_TO_ARC prefix.
func loadConfig(path string) (*appConfig, error) {
	w, err := config.Load(path, envPrefix)
	if err != nil {
		return nil, err
	}

	query, err := parseQuery(w)
	if err != nil {
		return nil, err
	}

	cfg := &appConfig{
		LogLevel: config.ParseLogLevel(w.StringOr("log_level", "INFO"), slog.LevelInfo),
		RDI:      w.StringOr("rdi", defaultRDI),
		RDIURL:   w.StringOr("rdi_url", ""),
		CSW: harvester.Config{
			URL:      w.StringOr("csw_url", ""),
			Timeout:  time.Duration(w.IntOr("csw_timeout_seconds", defaultCSWTimeoutSeconds)) * time.Second,
			PageSize: w.IntOr("page_size", 0),
		},
		Query:        query,
		MaxRecords:   w.IntOr("max_records", 0),
		BatchSize:    w.IntOr("batch_size", defaultBatchSize),
		API:          apiclient.FromWrapper(w.Section("api_client")),
		Otel:         config.OtelFromWrapper(w),
		KafkaBrokers: w.Section("report").StringSlice("kafka_brokers"),
		KafkaTopic:   w.Section("report").StringOr("kafka_topic", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseQuery builds the harvest query. A raw constraint document takes
// precedence; otherwise "property=value" entries become equality predicates
// and "property~pattern" entries become Like predicates, combined with AND.
func parseQuery(w *config.Wrapper) (harvester.Query, error) {
	query := harvester.Query{
		RawConstraint: w.StringOr("query", ""),
	}

	if query.RawConstraint != "" {
		return query, nil
	}

	for _, entry := range w.StringSlice("constraints") {
		constraint, err := parseConstraint(entry)
		if err != nil {
			return harvester.Query{}, err
		}

		query.Constraints = append(query.Constraints, constraint)
	}

	return query, nil
}

// parseConstraint splits one constraint entry on its first comparison
// separator, "=" for equality or "~" for a Like match.
func parseConstraint(entry string) (harvester.Constraint, error) {
	separator := strings.IndexAny(entry, "=~")
	if separator < 0 || strings.TrimSpace(entry[:separator]) == "" {
		return harvester.Constraint{}, fmt.Errorf("%w: %q", ErrBadConstraint, entry)
	}

	operator := harvester.MatchEqualTo
	if entry[separator] == '~' {
		operator = harvester.MatchLike
	}

	return harvester.Constraint{
		Property: strings.TrimSpace(entry[:separator]),
		Value:    strings.TrimSpace(entry[separator+1:]),
		Operator: operator,
	}, nil
}

func (c *appConfig) validate() error {
	if strings.TrimSpace(c.CSW.URL) == "" {
		return ErrCSWURLEmpty
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api client config: %w", err)
	}

	return nil
}

package source

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fairagro/arc-middleware/internal/config"
)

const (
	defaultPort            = 5432
	defaultBatchSize       = 100
	defaultMaxOpenConns    = 5
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 30 * time.Minute
)

var (
	// ErrDBNameEmpty is returned when the database name is missing.
	ErrDBNameEmpty = errors.New("database name cannot be empty")

	// ErrDBUserEmpty is returned when the database user is missing.
	ErrDBUserEmpty = errors.New("database user cannot be empty")

	// ErrDBHostEmpty is returned when the database host is missing.
	ErrDBHostEmpty = errors.New("database host cannot be empty")

	// ErrBatchSizeInvalid is returned when the batch size is not positive.
	ErrBatchSizeInvalid = errors.New("db_batch_size must be >= 1")
)

// Config holds the upstream PostgreSQL connection settings. Access is
// strictly read-only; the schema is owned by the RDI.
type Config struct {
	Name      string
	User      string
	password  string
	Host      string
	Port      int
	SSLMode   string
	BatchSize int

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// FromWrapper extracts the database settings from a config wrapper.
// The password typically arrives through the secret overlay
// (PREFIX_DB_PASSWORD or /run/secrets/prefix_db_password).
func FromWrapper(w *config.Wrapper) Config {
	return Config{
		Name:            w.StringOr("db_name", ""),
		User:            w.StringOr("db_user", ""),
		password:        w.StringOr("db_password", ""),
		Host:            w.StringOr("db_host", ""),
		Port:            w.IntOr("db_port", defaultPort),
		SSLMode:         w.StringOr("db_sslmode", "prefer"),
		BatchSize:       w.IntOr("db_batch_size", defaultBatchSize),
		MaxOpenConns:    w.IntOr("db_max_open_conns", defaultMaxOpenConns),
		MaxIdleConns:    w.IntOr("db_max_idle_conns", defaultMaxIdleConns),
		ConnMaxLifetime: defaultConnMaxLifetime,
	}
}

// Validate checks the database configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrDBNameEmpty
	}

	if strings.TrimSpace(c.User) == "" {
		return ErrDBUserEmpty
	}

	if strings.TrimSpace(c.Host) == "" {
		return ErrDBHostEmpty
	}

	if c.BatchSize < 1 {
		return ErrBatchSizeInvalid
	}

	return nil
}

// ConnString assembles a lib/pq keyword/value connection string.
func (c *Config) ConnString() string {
	parts := []string{
		"host=" + quoteConnValue(c.Host),
		fmt.Sprintf("port=%d", c.Port),
		"dbname=" + quoteConnValue(c.Name),
		"user=" + quoteConnValue(c.User),
		"sslmode=" + quoteConnValue(c.SSLMode),
	}

	if c.password != "" {
		parts = append(parts, "password="+quoteConnValue(c.password))
	}

	return strings.Join(parts, " ")
}

// String returns a loggable description with the password masked.
func (c *Config) String() string {
	return fmt.Sprintf("postgres://%s:***@%s:%d/%s?sslmode=%s", c.User, c.Host, c.Port, c.Name, c.SSLMode)
}

// NewConnection opens a pooled read-only connection to the upstream database
// and verifies it with a ping.
func NewConnection(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.String(), err)
	}

	return db, nil
}

// quoteConnValue quotes a lib/pq keyword value when it contains spaces or
// quotes.
func quoteConnValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}

	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)

	return "'" + escaped + "'"
}

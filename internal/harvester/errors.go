package harvester

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when an operation runs before Connect.
	ErrNotConnected = errors.New("catalogue client is not connected")

	// ErrNoRecordsMatched is returned when a hits query matches nothing.
	ErrNoRecordsMatched = errors.New("no records matched the query")

	// ErrDone signals that the record iterator is exhausted.
	ErrDone = errors.New("record iteration finished")
)

// SemanticError marks a record that parsed as XML but violates the metadata
// contract, for example a missing identifier or title.
type SemanticError struct {
	Field  string
	Reason string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("semantic error in field %q: %s", e.Field, e.Reason)
}

// RecordProcessingError attributes a parse or validation failure to a single
// record so the harvest can skip it and continue. ID is "unknown" when the
// failure prevented identifier extraction.
type RecordProcessingError struct {
	ID    string
	Cause error
}

func (e *RecordProcessingError) Error() string {
	return fmt.Sprintf("failed to process record %s: %v", e.ID, e.Cause)
}

func (e *RecordProcessingError) Unwrap() error {
	return e.Cause
}

// ConnectionError wraps transport-level failures against the catalogue
// endpoint. These abort the harvest: they are not attributable to a record.
type ConnectionError struct {
	URL   string
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("catalogue request to %s failed: %v", e.URL, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

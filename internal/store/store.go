package store

// Store defines the interface for fit record persistence operations.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if the record doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRecord atomically saves the record of a fit run.
	// An existing record for the same runID is overwritten.
	SaveRecord(runID string, record *Record) error

	// LoadRecord retrieves the record for the given run.
	// Returns ErrNotFound if no record exists for this runID.
	LoadRecord(runID string) (*Record, error)

	// ListRecords returns metadata for all stored runs.
	// The returned slice may be empty if no runs exist.
	ListRecords() ([]RecordInfo, error)

	// DeleteRecord removes the record and all associated artifacts
	// (record.json, trace.jsonl, plots) for the given run.
	// Returns ErrNotFound if no record exists for this runID.
	DeleteRecord(runID string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run error.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

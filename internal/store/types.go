package store

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/curvefit/internal/fit"
)

// RunConfig records the settings a fit was produced with
type RunConfig struct {
	DataPath string  `json:"dataPath"`
	Global   string  `json:"global"`
	Local    string  `json:"local"`
	Seed     int64   `json:"seed"`
	MaxIter  int     `json:"maxIter"`
	PopSize  int     `json:"popSize"`
	Tol      float64 `json:"tol"`
}

// Record is the persisted outcome of a fit run.
//
// A record stores the per-stage results and the final parameters, not any
// optimizer state. A later refine run restarts the local stages from Best.
type Record struct {
	// RunID is the unique identifier of the run
	RunID string `json:"runId"`

	// Fingerprint identifies the observations the fit was computed on
	Fingerprint string `json:"fingerprint"`

	// Points is the number of observations
	Points int `json:"points"`

	Config RunConfig         `json:"config"`
	Stages []fit.StageResult `json:"stages"`
	Best   fit.Params        `json:"best"`
	L1     float64           `json:"l1"`
	L2     float64           `json:"l2"`

	// Timestamp records when the run finished
	Timestamp time.Time `json:"timestamp"`
}

// RecordInfo contains metadata about a run without the stage details.
type RecordInfo struct {
	RunID     string    `json:"runId"`
	L1        float64   `json:"l1"`
	L2        float64   `json:"l2"`
	Points    int       `json:"points"`
	Global    string    `json:"global"`
	DataPath  string    `json:"dataPath"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecord builds a record from a finished fit
func NewRecord(runID, fingerprint string, result *fit.Result, config RunConfig) *Record {
	return &Record{
		RunID:       runID,
		Fingerprint: fingerprint,
		Points:      result.Points,
		Config:      config,
		Stages:      result.Stages,
		Best:        result.Best,
		L1:          result.L1,
		L2:          result.L2,
		Timestamp:   time.Now(),
	}
}

// ToInfo converts a full Record to RecordInfo (metadata only).
func (r *Record) ToInfo() RecordInfo {
	return RecordInfo{
		RunID:     r.RunID,
		L1:        r.L1,
		L2:        r.L2,
		Points:    r.Points,
		Global:    r.Config.Global,
		DataPath:  r.Config.DataPath,
		Timestamp: r.Timestamp,
	}
}

// Validate checks if the record has valid data.
func (r *Record) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if r.Fingerprint == "" {
		return &ValidationError{Field: "Fingerprint", Reason: "cannot be empty"}
	}
	if r.Points <= 0 {
		return &ValidationError{Field: "Points", Reason: "must be positive"}
	}
	if r.L1 < 0 || math.IsNaN(r.L1) {
		return &ValidationError{Field: "L1", Reason: "cannot be negative"}
	}
	if r.L2 < 0 || math.IsNaN(r.L2) {
		return &ValidationError{Field: "L2", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if len(r.Stages) == 0 {
		return &ValidationError{Field: "Stages", Reason: "cannot be empty"}
	}
	if !fit.DefaultBounds().Contains(r.Best.Vector()) {
		return &ValidationError{Field: "Best", Reason: fmt.Sprintf("outside parameter bounds: %s", r.Best)}
	}
	return nil
}

// ValidationError represents a record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this record was fitted on the given observations.
func (r *Record) IsCompatible(fingerprint string, points int) error {
	if r.Points != points {
		return &CompatibilityError{
			Field:    "Points",
			Expected: fmt.Sprintf("%d", r.Points),
			Actual:   fmt.Sprintf("%d", points),
		}
	}
	if r.Fingerprint != fingerprint {
		return &CompatibilityError{
			Field:    "Fingerprint",
			Expected: r.Fingerprint,
			Actual:   fingerprint,
		}
	}
	return nil
}

// CompatibilityError represents a record compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}

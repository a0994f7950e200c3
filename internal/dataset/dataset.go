// Package dataset loads observed (x, y) points and attaches the synthetic
// time vector the curve model is evaluated on.
package dataset

import (
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/curvefit/internal/fit"
)

// Sampling interval of the observations. Rows are assumed to be ordered and
// uniformly spaced over [TimeStart, TimeEnd]; nothing in the file says so.
const (
	TimeStart = 6.0
	TimeEnd   = 60.0
)

// Dataset holds the observed points and their sample times
type Dataset struct {
	Path string
	T    []float64
	X    []float64
	Y    []float64
}

// ErrMissingColumn is returned when a required column is absent.
// Use errors.Is(err, ErrMissingColumn) to check for this error.
var ErrMissingColumn = &ColumnError{}

// ColumnError represents a missing CSV column
type ColumnError struct {
	Column string
}

func (e *ColumnError) Error() string {
	if e.Column != "" {
		return "missing column: " + e.Column
	}
	return "missing column"
}

func (e *ColumnError) Is(target error) bool {
	_, ok := target.(*ColumnError)
	return ok
}

// ParseError reports a value that could not be parsed as a float
type ParseError struct {
	Row    int // 1-based data row, excluding the header
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d column %s: invalid value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads a CSV file with named x and y columns
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ds.Path = path

	slog.Info("Loaded dataset", "path", path, "points", ds.Len())
	return ds, nil
}

// Read parses CSV data with a header row naming at least the x and y columns.
// Extra columns are ignored.
func Read(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &ColumnError{Column: "x"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	xCol, yCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case "x":
			xCol = i
		case "y":
			yCol = i
		}
	}
	if xCol < 0 {
		return nil, &ColumnError{Column: "x"}
	}
	if yCol < 0 {
		return nil, &ColumnError{Column: "y"}
	}

	ds := &Dataset{}
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", row, err)
		}

		x, err := parseField(record, xCol, row, "x")
		if err != nil {
			return nil, err
		}
		y, err := parseField(record, yCol, row, "y")
		if err != nil {
			return nil, err
		}
		ds.X = append(ds.X, x)
		ds.Y = append(ds.Y, y)
	}

	ds.T = Linspace(TimeStart, TimeEnd, len(ds.X))
	return ds, nil
}

func parseField(record []string, col, row int, name string) (float64, error) {
	if col >= len(record) {
		return 0, &ParseError{Row: row, Column: name, Err: errors.New("field missing")}
	}
	raw := strings.TrimSpace(record[col])
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ParseError{Row: row, Column: name, Value: raw, Err: err}
	}
	return v, nil
}

// Linspace returns n evenly spaced values over [start, end]
func Linspace(start, end float64, n int) []float64 {
	switch {
	case n <= 0:
		return []float64{}
	case n == 1:
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, end)
}

// Len returns the number of observed points
func (d *Dataset) Len() int {
	return len(d.X)
}

// Observations returns the points in the form the fitting pipeline consumes
func (d *Dataset) Observations() *fit.Observations {
	return &fit.Observations{T: d.T, X: d.X, Y: d.Y}
}

// Fingerprint hashes the raw bits of the observed values. Two datasets with
// the same points in the same order share a fingerprint.
func (d *Dataset) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, series := range [][]float64{d.X, d.Y} {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(series)))
		h.Write(buf[:])
		for _, v := range series {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return h.Sum64()
}

// FingerprintHex formats the fingerprint for storage and display
func (d *Dataset) FingerprintHex() string {
	return fmt.Sprintf("%016x", d.Fingerprint())
}

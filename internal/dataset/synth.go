package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"

	"github.com/cwbudde/curvefit/internal/fit"
)

// Synthesize evaluates the model on Linspace(TimeStart, TimeEnd, n). When
// noise > 0, uniform noise in [-noise, noise] from a seeded source is added
// to every coordinate.
func Synthesize(p fit.Params, n int, noise float64, seed int64) *Dataset {
	ts := Linspace(TimeStart, TimeEnd, n)
	xs, ys := fit.Predict(p, ts)

	if noise > 0 {
		rng := rand.New(rand.NewSource(seed))
		for i := range xs {
			xs[i] += noise * (2*rng.Float64() - 1)
			ys[i] += noise * (2*rng.Float64() - 1)
		}
	}

	return &Dataset{T: ts, X: xs, Y: ys}
}

// Write emits the dataset as CSV with an x,y header
func (d *Dataset) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range d.X {
		record := []string{
			strconv.FormatFloat(d.X[i], 'g', -1, 64),
			strconv.FormatFloat(d.Y[i], 'g', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes the dataset to a CSV file
func (d *Dataset) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	if err := d.Write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close dataset file: %w", err)
	}
	d.Path = path
	return nil
}

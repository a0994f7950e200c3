//go:build gnuplot

package report

import (
	"errors"
	"fmt"

	"github.com/Arafatk/glot"
)

// Show opens an interactive gnuplot window. It requires gnuplot on PATH.
func Show(s *Series) (err error) {
	gp, err := glot.NewPlot(2, true, false)
	if err != nil {
		return fmt.Errorf("failed to start gnuplot: %w", err)
	}
	defer func() {
		if cerr := gp.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close gnuplot: %w", cerr))
		}
	}()

	if err := gp.AddPointGroup("observed", "points", [][]float64{s.ObservedX, s.ObservedY}); err != nil {
		return fmt.Errorf("observed points: %w", err)
	}
	if err := gp.AddPointGroup("predicted", "points", [][]float64{s.PredictedX, s.PredictedY}); err != nil {
		return fmt.Errorf("predicted points: %w", err)
	}
	if err := gp.SetTitle("Observed vs Predicted"); err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	if err := gp.SetXLabel("x"); err != nil {
		return fmt.Errorf("set x label: %w", err)
	}
	if err := gp.SetYLabel("y"); err != nil {
		return fmt.Errorf("set y label: %w", err)
	}
	for _, cmd := range []string{"set size ratio -1", "replot"} {
		if err := gp.Cmd(cmd); err != nil {
			return fmt.Errorf("gnuplot %q: %w", cmd, err)
		}
	}

	return nil
}

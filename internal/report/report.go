// Package report renders fit results as text, closed-form expressions and
// scatter plots.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/curvefit/internal/fit"
)

// Write prints the per-stage results, the final parameters and their
// objective values, followed by the expression and LaTeX strings.
func Write(w io.Writer, result *fit.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tMETHOD\tTHETA\tM\tX\tL1\tL2\tELAPSED")
	for _, s := range result.Stages {
		fmt.Fprintf(tw, "%s\t%s\t%.6f\t%.6f\t%.6f\t%.6f\t%.6f\t%s\n",
			s.Name, s.Method,
			s.Params.ThetaDeg, s.Params.M, s.Params.X,
			s.L1, s.L2, s.Elapsed.Round(time.Millisecond),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if result.KeptGlobal {
		fmt.Fprintln(w, "Refinement increased L1; final params are the global search result")
	}
	fmt.Fprintf(w, "Final params: %s\n", result.Best)
	fmt.Fprintf(w, "Final L1: %.6f\n", result.L1)
	fmt.Fprintf(w, "Final L2: %.6f\n", result.L2)
	fmt.Fprintf(w, "L1 total = %.6f, L1 avg per point = %.6f\n", result.L1, result.L1Avg)

	fmt.Fprintf(w, "\nExpression:\n%s\n", Expression(result.Best))
	_, err := fmt.Fprintf(w, "\nLaTeX:\n%s\n", LaTeX(result.Best))
	return err
}

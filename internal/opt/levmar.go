package opt

import (
	"log/slog"
	"math"

	"github.com/maorshutman/lm"
)

// LevMar refines a point with Levenberg–Marquardt on a residual vector.
// The method is unconstrained; the result is clipped into the box.
type LevMar struct {
	residuals  func(dst, x []float64)
	size       int
	iterations int
}

// NewLevMar creates a Levenberg–Marquardt refiner over residuals of the given length
func NewLevMar(residuals func(dst, x []float64), size, iterations int) *LevMar {
	return &LevMar{
		residuals:  residuals,
		size:       size,
		iterations: iterations,
	}
}

// Refine minimizes the residual sum of squares starting from x0 and reports
// the result scored by eval
func (l *LevMar) Refine(eval func([]float64) float64, x0, lower, upper []float64) ([]float64, float64) {
	start := append([]float64(nil), x0...)
	f0 := safeEval(eval, start)

	jac := lm.NumJac{Func: l.residuals}
	problem := lm.LMProblem{
		Dim:        len(start),
		Size:       l.size,
		Func:       l.residuals,
		Jac:        jac.Jac,
		InitParams: append([]float64(nil), start...),
		Tau:        1e-6,
		Eps1:       1e-12,
		Eps2:       1e-12,
	}

	result, err := lm.LM(problem, &lm.Settings{Iterations: l.iterations, ObjectiveTol: 1e-16})
	if err != nil {
		slog.Debug("Levenberg-Marquardt failed", "error", err)
		return start, f0
	}

	x := append([]float64(nil), result.X...)
	for i := range x {
		x[i] = math.Max(lower[i], math.Min(upper[i], x[i]))
	}
	fx := safeEval(eval, x)
	if fx > f0 {
		return start, f0
	}
	return x, fx
}

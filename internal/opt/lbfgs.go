package opt

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// LBFGSConfig holds the settings of the bounded quasi-Newton refiner
type LBFGSConfig struct {
	MaxIterations     int
	Memory            int     // Number of correction pairs kept
	GradientThreshold float64 // Stop when the gradient infinity norm falls below this
	FunctionTol       float64 // Absolute function-change tolerance
}

// DefaultLBFGSConfig returns the settings used for the L2 polish stage
func DefaultLBFGSConfig() LBFGSConfig {
	return LBFGSConfig{
		MaxIterations:     10000,
		Memory:            10,
		GradientThreshold: 1e-10,
		FunctionTol:       1e-15,
	}
}

// LBFGS is a limited-memory BFGS refiner that respects box constraints by
// optimizing in an unbounded space u with x = lo + (hi-lo)*(1+tanh(u))/2.
// Every point it evaluates lies inside the box.
type LBFGS struct {
	config LBFGSConfig
}

// NewLBFGS creates a bounded L-BFGS refiner
func NewLBFGS(config LBFGSConfig) *LBFGS {
	return &LBFGS{config: config}
}

// Refine minimizes eval starting from x0
func (l *LBFGS) Refine(eval func([]float64) float64, x0, lower, upper []float64) ([]float64, float64) {
	dim := len(x0)
	start := append([]float64(nil), x0...)
	for i := range start {
		start[i] = math.Max(lower[i], math.Min(upper[i], start[i]))
	}
	f0 := safeEval(eval, start)

	toBox := func(u []float64) []float64 {
		x := make([]float64, dim)
		for i := range u {
			v := lower[i] + (upper[i]-lower[i])*(1+math.Tanh(u[i]))/2
			x[i] = math.Max(lower[i], math.Min(upper[i], v))
		}
		return x
	}

	u0 := make([]float64, dim)
	for i := range start {
		z := 2*(start[i]-lower[i])/(upper[i]-lower[i]) - 1
		z = math.Max(-1+1e-12, math.Min(1-1e-12, z))
		u0[i] = math.Atanh(z)
	}

	f := func(u []float64) float64 {
		return safeEval(eval, toBox(u))
	}

	problem := optimize.Problem{
		Func: f,
		Grad: func(grad, u []float64) {
			fd.Gradient(grad, f, u, &fd.Settings{Formula: fd.Central})
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   l.config.MaxIterations,
		GradientThreshold: l.config.GradientThreshold,
		Converger: &optimize.FunctionConverge{
			Absolute:   l.config.FunctionTol,
			Iterations: 20,
		},
	}

	result, err := optimize.Minimize(problem, u0, settings, &optimize.LBFGS{Store: l.config.Memory})
	if err != nil {
		slog.Debug("L-BFGS stopped with error", "error", err)
	}
	if result == nil {
		return start, f0
	}

	x := toBox(result.X)
	fx := safeEval(eval, x)
	if fx > f0 {
		return start, f0
	}

	slog.Debug("L-BFGS complete",
		"status", result.Status.String(),
		"major_iterations", result.Stats.MajorIterations,
		"func_evaluations", result.Stats.FuncEvaluations,
		"f", fx,
	)
	return x, fx
}

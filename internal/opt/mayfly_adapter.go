package opt

import (
	"log/slog"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the Mayfly optimization using the external library.
// The library only takes scalar bounds, so the search runs on the unit cube
// and every candidate is mapped into [lower, upper] before evaluation.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	toBox := func(u []float64) []float64 {
		x := make([]float64, dim)
		for i := 0; i < dim; i++ {
			x[i] = lower[i] + clampUnit(u[i])*(upper[i]-lower[i])
		}
		return x
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(u []float64) float64 {
		return safeEval(eval, toBox(u))
	}
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		// Fall back to the box centre if optimization fails
		slog.Warn("Mayfly optimization failed", "error", err)
		center := make([]float64, dim)
		for i := range center {
			center[i] = 0.5
		}
		x := toBox(center)
		return x, eval(x)
	}

	x := toBox(result.GlobalBest.Position)
	return x, safeEval(eval, x)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

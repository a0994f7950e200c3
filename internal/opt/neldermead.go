package opt

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// NelderMeadConfig holds the settings of the simplex refiner
type NelderMeadConfig struct {
	MaxIterations int
	XTol          float64 // Absolute tolerance on the best-point movement
	FTol          float64 // Absolute tolerance on the best-value change
	Window        int     // Iterations over which both tolerances must hold
}

// DefaultNelderMeadConfig returns the settings used for the L1 polish stage
func DefaultNelderMeadConfig() NelderMeadConfig {
	return NelderMeadConfig{
		MaxIterations: 20000,
		XTol:          1e-8,
		FTol:          1e-8,
		Window:        200,
	}
}

// NelderMead is an unconstrained simplex refiner. Bounds are not enforced
// during the search; callers clip the result.
type NelderMead struct {
	config NelderMeadConfig
}

// NewNelderMead creates a Nelder–Mead refiner
func NewNelderMead(config NelderMeadConfig) *NelderMead {
	return &NelderMead{config: config}
}

// Refine minimizes eval starting from x0. lower and upper are ignored.
func (n *NelderMead) Refine(eval func([]float64) float64, x0, lower, upper []float64) ([]float64, float64) {
	start := append([]float64(nil), x0...)
	f0 := safeEval(eval, start)

	vertices := initialSimplex(start)
	values := make([]float64, len(vertices))
	for i, v := range vertices {
		values[i] = safeEval(eval, v)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return safeEval(eval, x)
		},
	}

	settings := &optimize.Settings{
		MajorIterations: n.config.MaxIterations,
		Converger: &simplexConverge{
			XTol:   n.config.XTol,
			FTol:   n.config.FTol,
			Window: n.config.Window,
		},
	}

	method := &optimize.NelderMead{
		InitialVertices: vertices,
		InitialValues:   values,
	}

	result, err := optimize.Minimize(problem, start, settings, method)
	if err != nil {
		slog.Debug("Nelder-Mead stopped with error", "error", err)
	}
	if result == nil || result.F > f0 {
		return start, f0
	}

	slog.Debug("Nelder-Mead complete",
		"status", result.Status.String(),
		"major_iterations", result.Stats.MajorIterations,
		"func_evaluations", result.Stats.FuncEvaluations,
		"f", result.F,
	)
	return append([]float64(nil), result.X...), result.F
}

// initialSimplex perturbs each coordinate by 5%, or by 0.00025 when it is zero
func initialSimplex(x0 []float64) [][]float64 {
	const (
		nonzdelt = 0.05
		zdelt    = 0.00025
	)
	dim := len(x0)
	vertices := make([][]float64, dim+1)
	vertices[0] = append([]float64(nil), x0...)
	for k := 0; k < dim; k++ {
		y := append([]float64(nil), x0...)
		if y[k] != 0 {
			y[k] = (1 + nonzdelt) * y[k]
		} else {
			y[k] = zdelt
		}
		vertices[k+1] = y
	}
	return vertices
}

// simplexConverge stops once the best point has moved less than XTol and its
// value changed less than FTol over the last Window major iterations.
type simplexConverge struct {
	XTol   float64
	FTol   float64
	Window int

	history []optimize.Location
}

func (s *simplexConverge) Init(dim int) {
	s.history = s.history[:0]
}

func (s *simplexConverge) Converged(loc *optimize.Location) optimize.Status {
	s.history = append(s.history, optimize.Location{
		X: append([]float64(nil), loc.X...),
		F: loc.F,
	})
	if len(s.history) <= s.Window {
		return optimize.NotTerminated
	}
	s.history = s.history[len(s.history)-s.Window-1:]

	ref := s.history[0]
	for _, h := range s.history[1:] {
		if math.Abs(h.F-ref.F) > s.FTol {
			return optimize.NotTerminated
		}
		for i := range h.X {
			if math.Abs(h.X[i]-ref.X[i]) > s.XTol {
				return optimize.NotTerminated
			}
		}
	}
	return optimize.FunctionConvergence
}

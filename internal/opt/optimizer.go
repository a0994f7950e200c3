package opt

import "context"

// Optimizer defines a bounded global optimization algorithm
type Optimizer interface {
	// Run executes the optimization
	// eval: objective function to minimize
	// lower, upper: parameter bounds
	// dim: dimensionality of parameter space
	// Returns: best parameters and best cost
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}

// ContextOptimizer is an Optimizer that can be cancelled while it runs.
// On cancellation it returns its best point so far and ctx.Err().
type ContextOptimizer interface {
	Optimizer
	RunContext(ctx context.Context, eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64, error)
}

// Refiner polishes a starting point with a local method.
// Implementations never return a point that scores worse than x0.
type Refiner interface {
	Refine(eval func([]float64) float64, x0, lower, upper []float64) ([]float64, float64)
}

// ProgressFunc receives the best cost after each generation or iteration
type ProgressFunc func(iteration int, best float64)

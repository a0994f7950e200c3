package opt

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines parameters for patience-based early stopping
type ConvergenceConfig struct {
	// Enabled controls whether convergence detection is active
	Enabled bool

	// Patience is the number of generations with no improvement before stopping
	Patience int

	// Threshold is the minimum relative improvement required to count as progress
	// Example: 0.001 = 0.1% improvement required
	// Relative improvement = (oldCost - newCost) / oldCost
	Threshold float64
}

// DefaultConvergenceConfig returns sensible defaults for convergence detection
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  50,
		Threshold: 1e-9,
	}
}

// DisabledConvergenceConfig returns a config with convergence detection disabled
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled: false,
	}
}

// ConvergenceTracker tracks cost history and detects when optimization has stalled
type ConvergenceTracker struct {
	config          ConvergenceConfig
	costHistory     []float64
	bestCost        float64 // Best cost ever seen
	lastSignificant float64 // Last cost that was a significant improvement
	staleCount      int     // Generations without significant improvement
}

// NewConvergenceTracker creates a new convergence tracker with the given config
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		costHistory:     []float64{},
		bestCost:        math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records a new cost value and returns true if convergence is detected
func (c *ConvergenceTracker) Update(cost float64) bool {
	c.costHistory = append(c.costHistory, cost)

	if cost < c.bestCost {
		c.bestCost = cost
	}

	if !c.config.Enabled {
		return false
	}

	if len(c.costHistory) == 1 {
		c.lastSignificant = cost
		return false
	}

	// A zero or infinite reference cost cannot improve relatively.
	relativeImprovement := 0.0
	if c.lastSignificant != 0 && !math.IsInf(c.lastSignificant, 0) {
		relativeImprovement = (c.lastSignificant - cost) / math.Abs(c.lastSignificant)
	} else if math.IsInf(c.lastSignificant, 1) && !math.IsInf(cost, 1) {
		relativeImprovement = math.Inf(1)
	}

	if relativeImprovement >= c.config.Threshold && relativeImprovement > 0 {
		c.lastSignificant = cost
		c.staleCount = 0
		return false
	}

	c.staleCount++
	if c.staleCount >= c.config.Patience {
		slog.Debug("Convergence detected - stopping early",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best_cost", c.bestCost,
		)
		return true
	}

	return false
}

// BestCost returns the best cost seen so far
func (c *ConvergenceTracker) BestCost() float64 {
	return c.bestCost
}

// StaleCount returns the current number of generations without improvement
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}

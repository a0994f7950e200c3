package fit

import (
	"fmt"
	"math"
)

// Observations are the observed points with their (synthetic) sample times.
// T, X and Y must have equal length.
type Observations struct {
	T []float64
	X []float64
	Y []float64
}

// Len returns the number of observed points
func (o *Observations) Len() int {
	return len(o.T)
}

// Validate checks that the three series line up
func (o *Observations) Validate() error {
	if len(o.X) != len(o.T) || len(o.Y) != len(o.T) {
		return fmt.Errorf("observation length mismatch: t=%d x=%d y=%d", len(o.T), len(o.X), len(o.Y))
	}
	if len(o.T) == 0 {
		return fmt.Errorf("no observations")
	}
	return nil
}

// CostFunc scores a flat parameter vector
type CostFunc func(params []float64) float64

// L1 computes the sum of absolute x and y errors over all observations
func L1(p Params, obs *Observations) float64 {
	var sum float64
	for i, t := range obs.T {
		x, y := Model(p, t)
		sum += math.Abs(x-obs.X[i]) + math.Abs(y-obs.Y[i])
	}
	return sum
}

// L2 computes the sum of squared x and y errors over all observations
func L2(p Params, obs *Observations) float64 {
	var sum float64
	for i, t := range obs.T {
		x, y := Model(p, t)
		dx := x - obs.X[i]
		dy := y - obs.Y[i]
		sum += dx*dx + dy*dy
	}
	return sum
}

// Residuals writes the signed errors [dx_0..dx_n-1, dy_0..dy_n-1] into dst,
// which must have length 2*obs.Len().
func Residuals(dst []float64, p Params, obs *Observations) {
	n := obs.Len()
	for i, t := range obs.T {
		x, y := Model(p, t)
		dst[i] = x - obs.X[i]
		dst[n+i] = y - obs.Y[i]
	}
}

// Objective binds observations to the cost functions so optimizers can work
// on plain vectors. It holds no mutable state and is safe for concurrent use.
type Objective struct {
	obs *Observations
}

// NewObjective creates an objective over the given observations
func NewObjective(obs *Observations) *Objective {
	return &Objective{obs: obs}
}

// Observations returns the bound observations
func (o *Objective) Observations() *Observations {
	return o.obs
}

// L1Vec is L1 over a raw vector. Non-finite values score +Inf.
func (o *Objective) L1Vec(v []float64) float64 {
	return finite(L1(ParamsFromVector(v), o.obs))
}

// L2Vec is L2 over a raw vector. Non-finite values score +Inf.
func (o *Objective) L2Vec(v []float64) float64 {
	return finite(L2(ParamsFromVector(v), o.obs))
}

// ResidualVec matches the func(dst, x) shape used by least-squares solvers
func (o *Objective) ResidualVec(dst, v []float64) {
	Residuals(dst, ParamsFromVector(v), o.obs)
}

// Size is the length of the residual vector
func (o *Objective) Size() int {
	return 2 * o.obs.Len()
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.Inf(1)
	}
	return v
}

package fit

import (
	"fmt"
	"math"
)

// Params holds the three free parameters of the curve model
type Params struct {
	ThetaDeg float64 `json:"thetaDeg"` // Rotation angle in degrees
	M        float64 `json:"m"`        // Exponential rate
	X        float64 `json:"x"`        // Horizontal offset
}

// NumParams is the dimensionality of the parameter vector
const NumParams = 3

// Vector encodes the parameters as a flat float64 slice
func (p Params) Vector() []float64 {
	return []float64{p.ThetaDeg, p.M, p.X}
}

// ParamsFromVector decodes a flat parameter vector
func ParamsFromVector(v []float64) Params {
	return Params{
		ThetaDeg: v[0],
		M:        v[1],
		X:        v[2],
	}
}

func (p Params) String() string {
	return fmt.Sprintf("[theta=%.6f M=%.6f X=%.6f]", p.ThetaDeg, p.M, p.X)
}

// Bounds defines valid parameter ranges
type Bounds struct {
	Lower []float64
	Upper []float64
}

const (
	angleEps  = 1e-6
	rateEps   = 1e-8
	offsetEps = 1e-6
)

// DefaultBounds returns the parameter box used for fitting. Each side is inset
// by a small epsilon so no optimizer sits exactly on a boundary.
func DefaultBounds() *Bounds {
	return &Bounds{
		Lower: []float64{0 + angleEps, -0.05 + rateEps, 0 + offsetEps},
		Upper: []float64{50 - angleEps, 0.05 - rateEps, 100 - offsetEps},
	}
}

// Dim returns the number of bounded parameters
func (b *Bounds) Dim() int {
	return len(b.Lower)
}

// Validate checks that the box is well formed
func (b *Bounds) Validate() error {
	if len(b.Lower) != len(b.Upper) {
		return fmt.Errorf("bounds length mismatch: %d lower, %d upper", len(b.Lower), len(b.Upper))
	}
	for i := range b.Lower {
		if !(b.Lower[i] < b.Upper[i]) {
			return fmt.Errorf("invalid bounds for parameter %d: [%g, %g]", i, b.Lower[i], b.Upper[i])
		}
	}
	return nil
}

// ClampVector clamps all parameters in a vector
func (b *Bounds) ClampVector(data []float64) {
	for i := range data {
		data[i] = clamp(data[i], b.Lower[i], b.Upper[i])
	}
}

// Clamped returns a clamped copy of data
func (b *Bounds) Clamped(data []float64) []float64 {
	out := append([]float64(nil), data...)
	b.ClampVector(out)
	return out
}

// Contains reports whether every parameter lies inside the box
func (b *Bounds) Contains(data []float64) bool {
	if len(data) != len(b.Lower) {
		return false
	}
	for i, v := range data {
		if v < b.Lower[i] || v > b.Upper[i] {
			return false
		}
	}
	return true
}

// ClampParams clamps a parameter set to the box
func (b *Bounds) ClampParams(p Params) Params {
	return ParamsFromVector(b.Clamped(p.Vector()))
}

// clamp also maps NaN to the lower bound so a clipped vector is always finite.
func clamp(val, lo, hi float64) float64 {
	if math.IsNaN(val) {
		return lo
	}
	return math.Max(lo, math.Min(hi, val))
}

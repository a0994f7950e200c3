package opt

import (
	"math"
	"testing"
)

// rosenbrock has its minimum 0 at (1, 1)
func rosenbrock(x []float64) float64 {
	a := 1 - x[0]
	b := x[1] - x[0]*x[0]
	return a*a + 100*b*b
}

func TestLBFGSOnRosenbrock(t *testing.T) {
	refiner := NewLBFGS(DefaultLBFGSConfig())

	lower := []float64{-2, -2}
	upper := []float64{2, 2}
	x, f := refiner.Refine(rosenbrock, []float64{-1.2, 1}, lower, upper)

	if f > 1e-8 {
		t.Errorf("Expected cost near 0, got %g at %v", f, x)
	}
	for i, v := range x {
		if math.Abs(v-1) > 1e-3 {
			t.Errorf("Parameter %d = %f, want 1", i, v)
		}
	}
}

func TestLBFGSRespectsBounds(t *testing.T) {
	refiner := NewLBFGS(DefaultLBFGSConfig())

	// Unconstrained minimum (1, -2, 3) is outside this box
	lower := []float64{2, -1, 0}
	upper := []float64{5, 1, 2}

	eval := func(x []float64) float64 {
		for i, v := range x {
			if v < lower[i] || v > upper[i] {
				t.Fatalf("Evaluated point outside box: %v", x)
			}
		}
		return shiftedSphere(x)
	}

	x, f := refiner.Refine(eval, []float64{3, 0, 1}, lower, upper)

	want := []float64{2, -1, 2}
	for i, v := range x {
		if math.Abs(v-want[i]) > 1e-3 {
			t.Errorf("Parameter %d = %f, want %f", i, v, want[i])
		}
	}
	if f > shiftedSphere([]float64{3, 0, 1}) {
		t.Errorf("Refinement made the cost worse: %f", f)
	}
}

func TestLBFGSClipsStartIntoBox(t *testing.T) {
	refiner := NewLBFGS(DefaultLBFGSConfig())

	lower := []float64{-1, -1}
	upper := []float64{1, 1}
	x, _ := refiner.Refine(sphere, []float64{5, -5}, lower, upper)

	for i, v := range x {
		if v < lower[i] || v > upper[i] {
			t.Errorf("Parameter %d = %f outside box", i, v)
		}
	}
}

func TestNelderMeadOnRosenbrock(t *testing.T) {
	refiner := NewNelderMead(DefaultNelderMeadConfig())

	x, f := refiner.Refine(rosenbrock, []float64{-1.2, 1}, nil, nil)

	if f > 1e-6 {
		t.Errorf("Expected cost near 0, got %g at %v", f, x)
	}
}

func TestNelderMeadOnNonSmoothObjective(t *testing.T) {
	refiner := NewNelderMead(DefaultNelderMeadConfig())

	// L1 distance to (1, -2, 3)
	l1 := func(x []float64) float64 {
		return math.Abs(x[0]-1) + math.Abs(x[1]+2) + math.Abs(x[2]-3)
	}

	x, f := refiner.Refine(l1, []float64{1.1, -1.9, 2.8}, nil, nil)

	if f > 1e-3 {
		t.Errorf("Expected cost near 0, got %g at %v", f, x)
	}
}

func TestNelderMeadNeverWorsens(t *testing.T) {
	refiner := NewNelderMead(DefaultNelderMeadConfig())

	start := []float64{1, -2, 3}
	x, f := refiner.Refine(shiftedSphere, start, nil, nil)

	if f != 0 {
		t.Errorf("Starting at the minimum should keep cost 0, got %g at %v", f, x)
	}
}

func TestInitialSimplex(t *testing.T) {
	vertices := initialSimplex([]float64{2, 0})

	if len(vertices) != 3 {
		t.Fatalf("Expected 3 vertices, got %d", len(vertices))
	}
	if vertices[1][0] != 2.1 || vertices[1][1] != 0 {
		t.Errorf("Unexpected vertex 1: %v", vertices[1])
	}
	if vertices[2][0] != 2 || vertices[2][1] != 0.00025 {
		t.Errorf("Unexpected vertex 2: %v", vertices[2])
	}
}

func TestLevMarOnResiduals(t *testing.T) {
	// Fit y = a*exp(b*t) to exact data generated with a=2, b=-0.5
	ts := []float64{0, 0.5, 1, 1.5, 2, 2.5, 3}
	residuals := func(dst, x []float64) {
		for i, tv := range ts {
			dst[i] = x[0]*math.Exp(x[1]*tv) - 2*math.Exp(-0.5*tv)
		}
	}
	sumSq := func(x []float64) float64 {
		r := make([]float64, len(ts))
		residuals(r, x)
		var s float64
		for _, v := range r {
			s += v * v
		}
		return s
	}

	refiner := NewLevMar(residuals, len(ts), 200)
	x, f := refiner.Refine(sumSq, []float64{1, -0.1}, []float64{0, -5}, []float64{10, 5})

	if f > 1e-10 {
		t.Errorf("Expected cost near 0, got %g", f)
	}
	if math.Abs(x[0]-2) > 1e-4 || math.Abs(x[1]+0.5) > 1e-4 {
		t.Errorf("Expected (2, -0.5), got %v", x)
	}
}

package opt

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestDifferentialEvolutionOnSphere(t *testing.T) {
	cfg := DefaultDEConfig()
	de := NewDifferentialEvolution(cfg)

	lower := []float64{-5, -5, -5}
	upper := []float64{5, 5, 5}

	res := de.Minimize(shiftedSphere, lower, upper)

	if res.F > 1e-8 {
		t.Errorf("Expected cost near 0, got %g", res.F)
	}
	want := []float64{1, -2, 3}
	for i, v := range res.X {
		if math.Abs(v-want[i]) > 1e-3 {
			t.Errorf("Parameter %d = %f, want %f", i, v, want[i])
		}
	}
	if res.Generations > cfg.MaxIter {
		t.Errorf("Ran %d generations, cap is %d", res.Generations, cfg.MaxIter)
	}
	if res.Evaluations != cfg.PopSize*3*(res.Generations+1) {
		t.Errorf("Unexpected evaluation count %d for %d generations", res.Evaluations, res.Generations)
	}
}

func TestDifferentialEvolutionStaysInBounds(t *testing.T) {
	cfg := DefaultDEConfig()
	cfg.MaxIter = 200
	de := NewDifferentialEvolution(cfg)

	// Unconstrained minimum (1, -2, 3) lies outside this box
	lower := []float64{2, 0, -1}
	upper := []float64{4, 1, 0}

	seen := 0
	eval := func(x []float64) float64 {
		seen++
		for i, v := range x {
			if v < lower[i] || v > upper[i] {
				t.Fatalf("Evaluated point outside box: %v", x)
			}
		}
		return shiftedSphere(x)
	}

	best, cost := de.Run(eval, lower, upper, 3)

	if seen == 0 {
		t.Fatal("Objective was never evaluated")
	}
	want := []float64{2, 0, 0}
	for i, v := range best {
		if math.Abs(v-want[i]) > 1e-2 {
			t.Errorf("Parameter %d = %f, want boundary value %f", i, v, want[i])
		}
	}
	if cost != shiftedSphere(best) {
		t.Errorf("Reported cost %f does not match objective %f", cost, shiftedSphere(best))
	}
}

func TestDifferentialEvolutionDeterministicAcrossWorkers(t *testing.T) {
	lower := []float64{-5, -5, -5}
	upper := []float64{5, 5, 5}

	cfg := DefaultDEConfig()
	cfg.MaxIter = 60
	cfg.Seed = 9

	serial := NewDifferentialEvolution(cfg).Minimize(shiftedSphere, lower, upper)

	cfg.Workers = 4
	parallel := NewDifferentialEvolution(cfg).Minimize(shiftedSphere, lower, upper)

	if serial.F != parallel.F {
		t.Errorf("Cost differs: serial=%g parallel=%g", serial.F, parallel.F)
	}
	for i := range serial.X {
		if serial.X[i] != parallel.X[i] {
			t.Errorf("Parameter %d differs: serial=%g parallel=%g", i, serial.X[i], parallel.X[i])
		}
	}
}

func TestDifferentialEvolutionSeedChangesTrajectory(t *testing.T) {
	lower := []float64{-5, -5}
	upper := []float64{5, 5}

	cfg := DefaultDEConfig()
	cfg.MaxIter = 3
	a := NewDifferentialEvolution(cfg).Minimize(sphere, lower, upper)
	cfg.Seed = 43
	b := NewDifferentialEvolution(cfg).Minimize(sphere, lower, upper)

	if a.X[0] == b.X[0] && a.X[1] == b.X[1] {
		t.Error("Different seeds produced identical results")
	}
}

func TestDifferentialEvolutionProgress(t *testing.T) {
	cfg := DefaultDEConfig()
	cfg.MaxIter = 20
	cfg.Tol = -1 // never converge on population spread

	var gens []int
	var costs []float64
	cfg.Progress = func(gen int, best float64) {
		gens = append(gens, gen)
		costs = append(costs, best)
	}

	NewDifferentialEvolution(cfg).Minimize(sphere, []float64{-1, -1}, []float64{1, 1})

	if len(gens) != 20 {
		t.Fatalf("Expected 20 progress callbacks, got %d", len(gens))
	}
	for i := 1; i < len(costs); i++ {
		if costs[i] > costs[i-1] {
			t.Errorf("Best cost increased at generation %d: %g -> %g", gens[i], costs[i-1], costs[i])
		}
	}
}

func TestDifferentialEvolutionPatience(t *testing.T) {
	cfg := DefaultDEConfig()
	cfg.Tol = -1
	cfg.Convergence = ConvergenceConfig{Enabled: true, Patience: 5, Threshold: 0.5}

	flat := func(x []float64) float64 { return 1 }
	res := NewDifferentialEvolution(cfg).Minimize(flat, []float64{0, 0}, []float64{1, 1})

	// The first generation sets the reference cost
	if res.Generations != 6 {
		t.Errorf("Expected stop after 5 stale generations, got %d generations", res.Generations)
	}
	if res.Converged {
		t.Error("Patience stop should not be reported as population convergence")
	}
	if !res.Stalled {
		t.Error("Expected patience stop to be reported as stalled")
	}
}

func TestDifferentialEvolutionCancelled(t *testing.T) {
	cfg := DefaultDEConfig()
	cfg.MaxIter = 1000
	cfg.Tol = -1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg.Progress = func(gen int, best float64) {
		if gen == 3 {
			cancel()
		}
	}

	res, err := NewDifferentialEvolution(cfg).MinimizeContext(ctx, sphere, []float64{-1, -1}, []float64{1, 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if res.Generations != 3 {
		t.Errorf("Expected stop after 3 generations, got %d", res.Generations)
	}
	if len(res.X) != 2 || math.IsInf(res.F, 0) {
		t.Errorf("Expected best member so far, got x=%v f=%g", res.X, res.F)
	}
}

func TestDifferentialEvolutionRunContextSatisfiesInterface(t *testing.T) {
	var o Optimizer = NewDifferentialEvolution(DefaultDEConfig())
	if _, ok := o.(ContextOptimizer); !ok {
		t.Fatal("DifferentialEvolution should support cancellation")
	}
}

func TestDifferentialEvolutionHandlesNaN(t *testing.T) {
	cfg := DefaultDEConfig()
	cfg.MaxIter = 100

	// NaN on half the box; minimum at x=0.25
	eval := func(x []float64) float64 {
		if x[0] > 0.5 {
			return math.NaN()
		}
		return (x[0] - 0.25) * (x[0] - 0.25)
	}

	res := NewDifferentialEvolution(cfg).Minimize(eval, []float64{0}, []float64{1})

	if math.IsNaN(res.F) || res.X[0] > 0.5 {
		t.Errorf("Expected finite minimum in valid region, got x=%v f=%g", res.X, res.F)
	}
}

func TestLatinHypercubeStrata(t *testing.T) {
	pop := latinHypercube(rand.New(rand.NewSource(1)), 10, 2)
	for j := 0; j < 2; j++ {
		counts := make([]int, 10)
		for _, m := range pop {
			counts[min(int(m[j]*10+1e-9), 9)]++
		}
		for s, c := range counts {
			if c != 1 {
				t.Errorf("Dimension %d stratum %d has %d samples", j, s, c)
			}
		}
	}
}

func TestPopulationConverged(t *testing.T) {
	tests := []struct {
		name     string
		energies []float64
		tol      float64
		want     bool
	}{
		{"identical", []float64{2, 2, 2}, 1e-6, true},
		{"spread", []float64{1, 2, 3}, 1e-6, false},
		{"wide tolerance", []float64{1, 2, 3}, 1, true},
		{"infinite member", []float64{1, math.Inf(1), 1}, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := populationConverged(tt.energies, tt.tol, 0); got != tt.want {
				t.Errorf("populationConverged(%v) = %v, want %v", tt.energies, got, tt.want)
			}
		})
	}
}

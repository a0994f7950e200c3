package opt

import (
	"context"
	"log/slog"
	"math"
	"math/rand"

	"github.com/alitto/pond/v2"
	"gonum.org/v1/gonum/stat"
)

// DEConfig holds the differential evolution settings
type DEConfig struct {
	MaxIter       int     // Maximum number of generations
	PopSize       int     // Population multiplier: total population = PopSize * dim
	Tol           float64 // Relative convergence tolerance on population energies
	Atol          float64 // Absolute convergence tolerance on population energies
	MutationMin   float64 // Lower end of the dithered mutation constant
	MutationMax   float64 // Upper end of the dithered mutation constant
	Recombination float64 // Crossover probability
	Seed          int64
	Workers       int // Concurrent objective evaluations (<= 1 evaluates inline)

	// Convergence optionally stops after a run of generations without progress
	Convergence ConvergenceConfig

	// Progress is called with the best energy after each generation
	Progress ProgressFunc
}

// DefaultDEConfig returns the settings used for the global search stage
func DefaultDEConfig() DEConfig {
	return DEConfig{
		MaxIter:       400,
		PopSize:       15,
		Tol:           1e-6,
		Atol:          0,
		MutationMin:   0.5,
		MutationMax:   1.0,
		Recombination: 0.7,
		Seed:          42,
		Workers:       1,
		Convergence:   DisabledConvergenceConfig(),
	}
}

// DEResult describes the outcome of a differential evolution run
type DEResult struct {
	X           []float64
	F           float64
	Generations int
	Evaluations int
	Converged   bool
	Stalled     bool // stopped by the patience tracker
}

// DifferentialEvolution implements the best1bin strategy with deferred
// updating: a whole generation of trials is built and evaluated before any
// member of the population is replaced. All random draws happen sequentially
// before evaluation, so results do not depend on the worker count.
type DifferentialEvolution struct {
	config DEConfig
}

// NewDifferentialEvolution creates a differential evolution optimizer
func NewDifferentialEvolution(config DEConfig) *DifferentialEvolution {
	return &DifferentialEvolution{config: config}
}

// Run executes the optimization and satisfies the Optimizer interface
func (de *DifferentialEvolution) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	res := de.Minimize(eval, lower[:dim], upper[:dim])
	return res.X, res.F
}

// RunContext is Run with cancellation between generations
func (de *DifferentialEvolution) RunContext(ctx context.Context, eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64, error) {
	res, err := de.MinimizeContext(ctx, eval, lower[:dim], upper[:dim])
	return res.X, res.F, err
}

// Minimize searches the box [lower, upper] for the minimum of eval
func (de *DifferentialEvolution) Minimize(eval func([]float64) float64, lower, upper []float64) *DEResult {
	res, _ := de.MinimizeContext(context.Background(), eval, lower, upper)
	return res
}

// MinimizeContext is Minimize that checks ctx before every generation. On
// cancellation it returns the best member found so far together with the
// context error.
func (de *DifferentialEvolution) MinimizeContext(ctx context.Context, eval func([]float64) float64, lower, upper []float64) (*DEResult, error) {
	cfg := de.config
	dim := len(lower)
	npop := max(cfg.PopSize*dim, 5)
	rng := rand.New(rand.NewSource(cfg.Seed))

	scale := func(u []float64) []float64 {
		x := make([]float64, dim)
		for j := range u {
			x[j] = lower[j] + u[j]*(upper[j]-lower[j])
		}
		return x
	}

	var pool pond.Pool
	if cfg.Workers > 1 {
		pool = pond.NewPool(cfg.Workers)
		defer pool.StopAndWait()
	}

	evaluations := 0
	evaluate := func(members [][]float64, energies []float64) {
		evaluations += len(members)
		if pool == nil {
			for i, m := range members {
				energies[i] = safeEval(eval, scale(m))
			}
			return
		}
		group := pool.NewGroup()
		for i, m := range members {
			group.Submit(func() {
				energies[i] = safeEval(eval, scale(m))
			})
		}
		group.Wait()
	}

	population := latinHypercube(rng, npop, dim)
	energies := make([]float64, npop)
	evaluate(population, energies)
	promoteLowest(population, energies)

	tracker := NewConvergenceTracker(cfg.Convergence)
	trials := make([][]float64, npop)
	trialEnergies := make([]float64, npop)

	result := &DEResult{}
	var err error
	for gen := 1; gen <= cfg.MaxIter; gen++ {
		if err = ctx.Err(); err != nil {
			slog.Debug("Differential evolution cancelled", "generation", gen, "best", energies[0])
			break
		}

		f := cfg.MutationMin
		if cfg.MutationMax > cfg.MutationMin {
			f = cfg.MutationMin + rng.Float64()*(cfg.MutationMax-cfg.MutationMin)
		}

		for c := 0; c < npop; c++ {
			trials[c] = de.mutate(rng, population, c, f)
		}

		evaluate(trials, trialEnergies)

		for c := 0; c < npop; c++ {
			if trialEnergies[c] < energies[c] {
				population[c] = trials[c]
				energies[c] = trialEnergies[c]
			}
		}
		promoteLowest(population, energies)
		result.Generations = gen

		if cfg.Progress != nil {
			cfg.Progress(gen, energies[0])
		}

		if populationConverged(energies, cfg.Tol, cfg.Atol) {
			result.Converged = true
			break
		}
		if tracker.Update(energies[0]) {
			result.Stalled = true
			slog.Debug("Differential evolution stalled",
				"generation", gen,
				"stale_generations", tracker.StaleCount(),
				"best", tracker.BestCost(),
			)
			break
		}
	}

	result.X = scale(population[0])
	result.F = energies[0]
	result.Evaluations = evaluations

	slog.Debug("Differential evolution complete",
		"generations", result.Generations,
		"evaluations", result.Evaluations,
		"converged", result.Converged,
		"stalled", result.Stalled,
		"best", result.F,
	)
	return result, err
}

// mutate builds the best1bin trial for candidate c in unit-cube coordinates
func (de *DifferentialEvolution) mutate(rng *rand.Rand, population [][]float64, c int, f float64) []float64 {
	dim := len(population[c])
	trial := append([]float64(nil), population[c]...)

	fillPoint := rng.Intn(dim)
	r0, r1 := selectSamples(rng, len(population), c)

	best := population[0]
	for j := 0; j < dim; j++ {
		if j == fillPoint || rng.Float64() < de.config.Recombination {
			trial[j] = best[j] + f*(population[r0][j]-population[r1][j])
		}
	}

	// Out-of-range coordinates are resampled inside the unit cube.
	for j := range trial {
		if trial[j] < 0 || trial[j] > 1 {
			trial[j] = rng.Float64()
		}
	}
	return trial
}

// selectSamples picks two distinct population indices different from c
func selectSamples(rng *rand.Rand, npop, c int) (int, int) {
	r0 := rng.Intn(npop)
	for r0 == c {
		r0 = rng.Intn(npop)
	}
	r1 := rng.Intn(npop)
	for r1 == c || r1 == r0 {
		r1 = rng.Intn(npop)
	}
	return r0, r1
}

// latinHypercube samples npop points so every dimension has exactly one
// sample per stratum of width 1/npop.
func latinHypercube(rng *rand.Rand, npop, dim int) [][]float64 {
	segment := 1.0 / float64(npop)
	population := make([][]float64, npop)
	for i := range population {
		population[i] = make([]float64, dim)
	}
	for j := 0; j < dim; j++ {
		perm := rng.Perm(npop)
		for i := 0; i < npop; i++ {
			population[perm[i]][j] = segment*rng.Float64() + float64(i)*segment
		}
	}
	return population
}

// promoteLowest moves the best member to index 0
func promoteLowest(population [][]float64, energies []float64) {
	best := 0
	for i, e := range energies {
		if e < energies[best] {
			best = i
		}
	}
	population[0], population[best] = population[best], population[0]
	energies[0], energies[best] = energies[best], energies[0]
}

// populationConverged applies std(E) <= atol + tol*|mean(E)|
func populationConverged(energies []float64, tol, atol float64) bool {
	for _, e := range energies {
		if math.IsInf(e, 0) {
			return false
		}
	}
	mean, std := stat.PopMeanStdDev(energies, nil)
	return std <= atol+tol*math.Abs(mean)
}

func safeEval(eval func([]float64) float64, x []float64) float64 {
	v := eval(x)
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

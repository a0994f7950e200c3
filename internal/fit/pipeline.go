package fit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/curvefit/internal/opt"
)

// Stage names, in execution order
const (
	StageGlobal   = "global"
	StageL2Refine = "l2-refine"
	StageL1Refine = "l1-refine"
)

// Global and local method names
const (
	GlobalDE     = "de"
	GlobalMayfly = "mayfly"
	LocalLBFGS   = "lbfgs"
	LocalLM      = "lm"
)

// StageResult holds the output of one pipeline stage
type StageResult struct {
	Name    string        `json:"name"`
	Method  string        `json:"method"`
	Params  Params        `json:"params"`
	L1      float64       `json:"l1"`
	L2      float64       `json:"l2"`
	Elapsed time.Duration `json:"elapsed"`
}

// Result holds the output of a full fit
type Result struct {
	Stages []StageResult `json:"stages"`
	Best   Params        `json:"best"`
	L1     float64       `json:"l1"`
	L2     float64       `json:"l2"`
	L1Avg  float64       `json:"l1Avg"`
	Points int           `json:"points"`

	// KeptGlobal is set when the simplex stage ended with a larger L1 than
	// the global stage and the global answer was kept instead.
	KeptGlobal bool `json:"keptGlobal,omitempty"`
}

// Stage returns the named stage result, if it ran
func (r *Result) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Config selects and tunes the optimizers of each stage
type Config struct {
	Global       string
	Local        string
	DE           opt.DEConfig
	MayflyIters  int
	MayflyPop    int
	LBFGS        opt.LBFGSConfig
	LMIterations int
	NelderMead   opt.NelderMeadConfig
	Bounds       *Bounds

	// OnStage is called after every completed stage
	OnStage func(StageResult)
}

// DefaultConfig returns the pipeline defaults: differential evolution,
// bounded L-BFGS on L2, then Nelder–Mead on L1.
func DefaultConfig() Config {
	return Config{
		Global:       GlobalDE,
		Local:        LocalLBFGS,
		DE:           opt.DefaultDEConfig(),
		MayflyIters:  400,
		MayflyPop:    45,
		LBFGS:        opt.DefaultLBFGSConfig(),
		LMIterations: 1000,
		NelderMead:   opt.DefaultNelderMeadConfig(),
		Bounds:       DefaultBounds(),
	}
}

// Pipeline runs global search, L2 polish and L1 polish in sequence
type Pipeline struct {
	config    Config
	objective *Objective
	bounds    *Bounds
	global    opt.Optimizer
	l2        opt.Refiner
	l1        opt.Refiner
}

// NewPipeline wires the optimizers selected by config to the observations
func NewPipeline(obs *Observations, config Config) (*Pipeline, error) {
	if err := obs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observations: %w", err)
	}

	bounds := config.Bounds
	if bounds == nil {
		bounds = DefaultBounds()
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if bounds.Dim() != NumParams {
		return nil, fmt.Errorf("bounds have %d dimensions, model has %d", bounds.Dim(), NumParams)
	}

	objective := NewObjective(obs)

	p := &Pipeline{
		config:    config,
		objective: objective,
		bounds:    bounds,
	}

	switch config.Global {
	case GlobalDE, "":
		p.global = opt.NewDifferentialEvolution(config.DE)
	case GlobalMayfly:
		p.global = opt.NewMayfly(config.MayflyIters, config.MayflyPop, config.DE.Seed)
	default:
		return nil, fmt.Errorf("unknown global optimizer: %s", config.Global)
	}

	switch config.Local {
	case LocalLBFGS, "":
		p.l2 = opt.NewLBFGS(config.LBFGS)
	case LocalLM:
		p.l2 = opt.NewLevMar(objective.ResidualVec, objective.Size(), config.LMIterations)
	default:
		return nil, fmt.Errorf("unknown local optimizer: %s", config.Local)
	}

	p.l1 = opt.NewNelderMead(config.NelderMead)

	return p, nil
}

// Fit runs all three stages. Each stage starts from the previous stage's output.
func (p *Pipeline) Fit(ctx context.Context) (*Result, error) {
	slog.Info("Starting fit", "points", p.objective.obs.Len(), "global", p.globalName(), "local", p.localName())

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{Points: p.objective.obs.Len()}

	start := time.Now()
	best, err := p.runGlobal(ctx)
	if err != nil {
		return nil, err
	}
	global := p.record(result, StageGlobal, p.globalName(), best, start)

	slog.Info("Global search complete", "params", global.Params.String(), "l1", global.L1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.refine(ctx, result, best); err != nil {
		return nil, err
	}

	// Refinement must not regress the metric the global stage minimized.
	final := result.Stages[len(result.Stages)-1]
	if final.L1 > global.L1 {
		slog.Warn("Refinement increased L1, keeping global result",
			"global_l1", global.L1,
			"refined_l1", final.L1,
		)
		result.KeptGlobal = true
		p.finish(result, global.Params)
	}

	return result, nil
}

// Refine runs only the two local stages from a given starting point, for
// example the best parameters of a stored fit.
func (p *Pipeline) Refine(ctx context.Context, from Params) (*Result, error) {
	slog.Info("Starting refinement", "points", p.objective.obs.Len(), "from", from.String())

	result := &Result{Points: p.objective.obs.Len()}
	if err := p.refine(ctx, result, from.Vector()); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) runGlobal(ctx context.Context) ([]float64, error) {
	if co, ok := p.global.(opt.ContextOptimizer); ok {
		best, _, err := co.RunContext(ctx, p.objective.L1Vec, p.bounds.Lower, p.bounds.Upper, NumParams)
		return best, err
	}
	best, _ := p.global.Run(p.objective.L1Vec, p.bounds.Lower, p.bounds.Upper, NumParams)
	return best, nil
}

func (p *Pipeline) refine(ctx context.Context, result *Result, x0 []float64) error {
	start := time.Now()
	seed := p.bounds.Clamped(x0)
	l2Best, _ := p.l2.Refine(p.objective.L2Vec, seed, p.bounds.Lower, p.bounds.Upper)
	l2Stage := p.record(result, StageL2Refine, p.localName(), l2Best, start)

	slog.Info("L2 refinement complete", "params", l2Stage.Params.String(), "l2", l2Stage.L2)

	if err := ctx.Err(); err != nil {
		return err
	}

	// The simplex search is unconstrained; bounds apply on entry and exit only.
	start = time.Now()
	simplexStart := p.bounds.Clamped(l2Best)
	l1Best, _ := p.l1.Refine(p.objective.L1Vec, simplexStart, p.bounds.Lower, p.bounds.Upper)
	l1Best = p.bounds.Clamped(l1Best)
	l1Stage := p.record(result, StageL1Refine, "nelder-mead", l1Best, start)

	slog.Info("L1 refinement complete", "params", l1Stage.Params.String(), "l1", l1Stage.L1)

	p.finish(result, l1Stage.Params)
	return nil
}

func (p *Pipeline) record(result *Result, name, method string, x []float64, start time.Time) StageResult {
	params := ParamsFromVector(x)
	stage := StageResult{
		Name:    name,
		Method:  method,
		Params:  params,
		L1:      L1(params, p.objective.obs),
		L2:      L2(params, p.objective.obs),
		Elapsed: time.Since(start),
	}
	result.Stages = append(result.Stages, stage)
	if p.config.OnStage != nil {
		p.config.OnStage(stage)
	}
	return stage
}

func (p *Pipeline) finish(result *Result, best Params) {
	result.Best = p.bounds.ClampParams(best)
	result.L1 = L1(result.Best, p.objective.obs)
	result.L2 = L2(result.Best, p.objective.obs)
	result.L1Avg = result.L1 / float64(p.objective.obs.Len())
}

func (p *Pipeline) globalName() string {
	if p.config.Global == "" {
		return GlobalDE
	}
	return p.config.Global
}

func (p *Pipeline) localName() string {
	if p.config.Local == "" {
		return LocalLBFGS
	}
	return p.config.Local
}

// Fit is a convenience wrapper that builds a pipeline and runs all stages
func Fit(ctx context.Context, obs *Observations, config Config) (*Result, error) {
	p, err := NewPipeline(obs, config)
	if err != nil {
		return nil, err
	}
	return p.Fit(ctx)
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cwbudde/curvefit/internal/config"
	"github.com/cwbudde/curvefit/internal/dataset"
	"github.com/cwbudde/curvefit/internal/fit"
	"github.com/cwbudde/curvefit/internal/report"
	"github.com/cwbudde/curvefit/internal/store"
)

var (
	dataPath string
	plotPath string
	showPlot bool
	saveRun  bool
	global   string
	local    string
	seed     int64
	maxIter  int
	popSize  int
	tol      float64
	workers  int
	patience int
)

// outputOptions select what happens with a finished fit besides the report
type outputOptions struct {
	plotPath string
	show     bool
	save     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fit the curve to a dataset",
	Long: `Runs the global search and both refinement stages on the dataset and
prints the per-stage results, the final parameters and the fitted expression.`,
	Args: cobra.NoArgs,
	RunE: runFit,
}

func init() {
	addDataFlags(runCmd.Flags())
	runCmd.Flags().StringVar(&global, "global", "de", "Global optimizer: de, mayfly")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	runCmd.Flags().IntVar(&maxIter, "maxiter", 400, "Max generations of the global search")
	runCmd.Flags().IntVar(&popSize, "popsize", 15, "Population size multiplier")
	runCmd.Flags().Float64Var(&tol, "tol", 1e-6, "Relative convergence tolerance of the global search")
	runCmd.Flags().IntVar(&workers, "workers", 1, "Concurrent objective evaluations")
	runCmd.Flags().IntVar(&patience, "patience", 0, "Stop after N generations without improvement (0 = off)")
	rootCmd.AddCommand(runCmd)
}

// addDataFlags registers the flags shared by run and refine
func addDataFlags(flags *pflag.FlagSet) {
	flags.StringVar(&dataPath, "data", "xy_data.csv", "CSV file with x and y columns")
	flags.StringVar(&local, "local", "lbfgs", "L2 refiner: lbfgs, lm")
	flags.StringVar(&plotPath, "plot", "", "Write observed vs predicted plot (png, svg, pdf)")
	flags.BoolVar(&showPlot, "show", false, "Show the plot in a gnuplot window (needs a build with -tags gnuplot)")
	flags.BoolVar(&saveRun, "save", false, "Store the run under the data directory")
}

// applyFlags overrides settings with the flags given on the command line
func applyFlags(flags *pflag.FlagSet, s *config.Settings) {
	if flags.Changed("data") {
		s.DataPath = dataPath
	}
	if flags.Changed("global") {
		s.Global = global
	}
	if flags.Changed("local") {
		s.Local = local
	}
	if flags.Changed("seed") {
		s.Seed = seed
	}
	if flags.Changed("maxiter") {
		s.MaxIter = maxIter
	}
	if flags.Changed("popsize") {
		s.PopSize = popSize
	}
	if flags.Changed("tol") {
		s.Tol = tol
	}
	if flags.Changed("workers") {
		s.Workers = workers
	}
	if flags.Changed("patience") {
		s.Patience = patience
	}
}

func currentOutputOptions() outputOptions {
	return outputOptions{plotPath: plotPath, show: showPlot, save: saveRun}
}

func runFit(cmd *cobra.Command, args []string) error {
	s := *settings
	applyFlags(cmd.Flags(), &s)
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	_, err := executeFit(cmd.Context(), &s, currentOutputOptions(), cmd.OutOrStdout())
	return err
}

// executeFit loads the dataset, runs the full pipeline, prints the report
// and handles the optional outputs. It returns the stored run ID, if any.
func executeFit(ctx context.Context, s *config.Settings, opts outputOptions, out io.Writer) (string, error) {
	if opts.plotPath != "" && !report.SupportedFormat(opts.plotPath) {
		return "", fmt.Errorf("unsupported plot format: %s", opts.plotPath)
	}

	ds, err := dataset.Load(s.DataPath)
	if err != nil {
		return "", err
	}

	cfg := s.FitConfig()
	sess := newSession(s, opts.save)
	sess.attach(&cfg)

	pipeline, err := fit.NewPipeline(ds.Observations(), cfg)
	if err != nil {
		return "", err
	}

	if err := sess.open(); err != nil {
		return "", err
	}
	defer sess.close()

	start := time.Now()
	result, err := pipeline.Fit(ctx)
	if err != nil {
		sess.discard()
		return "", fmt.Errorf("fit failed: %w", err)
	}
	slog.Info("Fit complete", "elapsed", time.Since(start).Round(time.Millisecond), "l1", result.L1)

	if err := report.Write(out, result); err != nil {
		return "", err
	}

	if err := sess.save(ds, result, s, out); err != nil {
		return "", err
	}
	if err := writePlots(ds, result, opts, sess); err != nil {
		return "", err
	}
	return sess.runID, nil
}

// session wires a fit to the run store: stage and generation costs go to the
// trace, the final record is saved when the fit completes. A zero session
// (saving disabled) does nothing. Nothing is written before open.
type session struct {
	runID   string
	dataDir string
	store   *store.FSStore
	trace   *store.TraceWriter
}

func newSession(s *config.Settings, enabled bool) *session {
	if !enabled {
		return &session{}
	}
	return &session{runID: uuid.New().String(), dataDir: s.DataDir}
}

func (ss *session) enabled() bool {
	return ss.runID != ""
}

// open creates the run directory and its trace file
func (ss *session) open() error {
	if !ss.enabled() {
		return nil
	}

	fsStore, err := store.NewFSStore(ss.dataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}

	trace, err := store.NewTraceWriter(ss.dataDir, ss.runID, false)
	if err != nil {
		return err
	}

	ss.store = fsStore
	ss.trace = trace
	slog.Info("Recording run", "runID", ss.runID, "trace", trace.Path())
	return nil
}

// discard closes the trace and removes the run directory of a failed fit
func (ss *session) discard() {
	if ss.store == nil {
		return
	}
	ss.close()
	ss.trace = nil
	if err := ss.store.DeleteRecord(ss.runID); err != nil {
		slog.Warn("Failed to remove incomplete run", "runID", ss.runID, "error", err)
		return
	}
	slog.Info("Removed incomplete run", "runID", ss.runID)
}

func (ss *session) attach(cfg *fit.Config) {
	if !ss.enabled() {
		return
	}

	cfg.DE.Progress = func(iteration int, best float64) {
		ss.write(store.TraceEntry{Stage: fit.StageGlobal, Iteration: iteration, Cost: best})
	}

	onStage := cfg.OnStage
	cfg.OnStage = func(stage fit.StageResult) {
		cost := stage.L1
		if stage.Name == fit.StageL2Refine {
			cost = stage.L2
		}
		ss.write(store.TraceEntry{Stage: stage.Name, Cost: cost, Params: stage.Params.Vector()})
		if err := ss.trace.Flush(); err != nil {
			slog.Warn("Failed to flush trace", "error", err)
		}
		if onStage != nil {
			onStage(stage)
		}
	}
}

func (ss *session) write(entry store.TraceEntry) {
	entry.Timestamp = time.Now()
	if err := ss.trace.Write(entry); err != nil {
		slog.Warn("Failed to write trace entry", "stage", entry.Stage, "error", err)
	}
}

func (ss *session) save(ds *dataset.Dataset, result *fit.Result, s *config.Settings, out io.Writer) error {
	if !ss.enabled() {
		return nil
	}

	record := store.NewRecord(ss.runID, ds.FingerprintHex(), result, runConfig(s))
	if err := record.Validate(); err != nil {
		return fmt.Errorf("refusing to store run: %w", err)
	}
	if err := ss.store.SaveRecord(ss.runID, record); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nSaved run %s\n", ss.runID)
	return nil
}

func (ss *session) close() {
	if ss.trace == nil {
		return
	}
	if err := ss.trace.Close(); err != nil {
		slog.Warn("Failed to close trace", "error", err)
	}
}

func runConfig(s *config.Settings) store.RunConfig {
	path := s.DataPath
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return store.RunConfig{
		DataPath: path,
		Global:   s.Global,
		Local:    s.Local,
		Seed:     s.Seed,
		MaxIter:  s.MaxIter,
		PopSize:  s.PopSize,
		Tol:      s.Tol,
	}
}

func writePlots(ds *dataset.Dataset, result *fit.Result, opts outputOptions, ss *session) error {
	if opts.plotPath == "" && !opts.show {
		return nil
	}

	series := report.NewSeries(ds.Observations(), result.Best)

	if opts.plotPath != "" {
		if err := report.SavePlot(opts.plotPath, series); err != nil {
			return err
		}
		if ss.enabled() {
			if err := report.SavePlot(filepath.Join(ss.store.RunDir(ss.runID), "plot.png"), series); err != nil {
				slog.Warn("Failed to store plot with run", "runID", ss.runID, "error", err)
			}
		}
	}

	if opts.show {
		if err := report.Show(series); err != nil {
			return err
		}
	}
	return nil
}

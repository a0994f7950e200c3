package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/curvefit/internal/config"
	"github.com/cwbudde/curvefit/internal/fit"
	"github.com/cwbudde/curvefit/internal/store"
)

func testSettings(t *testing.T, dataPath string) *config.Settings {
	t.Helper()
	return &config.Settings{
		DataPath:  dataPath,
		DataDir:   filepath.Join(t.TempDir(), "data"),
		Global:    fit.GlobalDE,
		Local:     fit.LocalLBFGS,
		Seed:      42,
		MaxIter:   400,
		PopSize:   15,
		Tol:       1e-6,
		Workers:   2,
		LogLevel:  "info",
		LogFormat: "json",
	}
}

func writeSynthetic(t *testing.T, name string, p fit.Params) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := synthesize(path, p, 100, 0, 1); err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	return path
}

func TestExecuteFit_SaveAndRefine(t *testing.T) {
	truth := fit.Params{ThetaDeg: 10, M: 0.01, X: 5}
	s := testSettings(t, writeSynthetic(t, "xy.csv", truth))
	plotFile := filepath.Join(t.TempDir(), "fit.png")

	var out bytes.Buffer
	runID, err := executeFit(context.Background(), s, outputOptions{save: true, plotPath: plotFile}, &out)
	if err != nil {
		t.Fatalf("executeFit failed: %v", err)
	}
	if runID == "" {
		t.Fatal("Expected a run ID when saving")
	}

	text := out.String()
	for _, want := range []string{"Final params:", "L1 total = ", "Expression:", "LaTeX:", "Saved run " + runID} {
		if !strings.Contains(text, want) {
			t.Errorf("Report missing %q:\n%s", want, text)
		}
	}

	fsStore, err := store.NewFSStore(s.DataDir)
	if err != nil {
		t.Fatal(err)
	}
	record, err := fsStore.LoadRecord(runID)
	if err != nil {
		t.Fatalf("LoadRecord failed: %v", err)
	}
	if record.L1 > 1e-4 {
		t.Errorf("Stored L1 = %g, want < 1e-4", record.L1)
	}
	if len(record.Stages) != 3 {
		t.Errorf("Stored %d stages, want 3", len(record.Stages))
	}
	if !filepath.IsAbs(record.Config.DataPath) {
		t.Errorf("Stored data path %q is not absolute", record.Config.DataPath)
	}

	reader, err := store.NewTraceReader(s.DataDir, runID)
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	entries, err := reader.ReadAll()
	reader.Close()
	if err != nil {
		t.Fatal(err)
	}
	summary := store.StageSummary(entries)
	if len(summary) != 3 || summary[0].Stage != fit.StageGlobal || summary[2].Stage != fit.StageL1Refine {
		t.Errorf("Unexpected trace stages: %+v", summary)
	}
	if len(entries) <= 3 {
		t.Errorf("Expected per-generation entries, got %d entries", len(entries))
	}

	for _, path := range []string{plotFile, filepath.Join(fsStore.RunDir(runID), "plot.png")} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Plot not written to %s: %v", path, err)
		}
	}

	// Refine from the stored run using the recorded dataset path
	out.Reset()
	refineSettings := *s
	refineSettings.DataPath = "does-not-exist.csv"
	newID, err := executeRefine(context.Background(), &refineSettings, runID, false, outputOptions{}, &out)
	if err != nil {
		t.Fatalf("executeRefine failed: %v", err)
	}
	if newID != "" {
		t.Errorf("Expected no run ID without --save, got %q", newID)
	}
	if !strings.Contains(out.String(), "Stored L1:") {
		t.Errorf("Refine report missing stored L1:\n%s", out.String())
	}
}

func TestExecuteRefine_RejectsOtherDataset(t *testing.T) {
	s := testSettings(t, writeSynthetic(t, "xy.csv", fit.Params{ThetaDeg: 10, M: 0.01, X: 5}))
	s.MaxIter = 50

	var out bytes.Buffer
	runID, err := executeFit(context.Background(), s, outputOptions{save: true}, &out)
	if err != nil {
		t.Fatalf("executeFit failed: %v", err)
	}

	other := *s
	other.DataPath = writeSynthetic(t, "other.csv", fit.Params{ThetaDeg: 20, M: -0.02, X: 40})

	_, err = executeRefine(context.Background(), &other, runID, true, outputOptions{}, &out)
	if err == nil {
		t.Fatal("Expected error for mismatched dataset")
	}
	var cerr *store.CompatibilityError
	if !errors.As(err, &cerr) {
		t.Errorf("Expected CompatibilityError, got %v", err)
	}
}

func TestExecuteRefine_UnknownRun(t *testing.T) {
	s := testSettings(t, "unused.csv")

	var out bytes.Buffer
	_, err := executeRefine(context.Background(), s, "no-such-run", false, outputOptions{}, &out)
	if err == nil || !strings.Contains(err.Error(), "no stored run") {
		t.Errorf("Expected missing run error, got %v", err)
	}
}

func TestExecuteFit_Errors(t *testing.T) {
	var out bytes.Buffer

	s := testSettings(t, filepath.Join(t.TempDir(), "missing.csv"))
	if _, err := executeFit(context.Background(), s, outputOptions{}, &out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}

	s = testSettings(t, writeSynthetic(t, "xy.csv", fit.Params{ThetaDeg: 10, M: 0.01, X: 5}))
	if _, err := executeFit(context.Background(), s, outputOptions{plotPath: "fit.gif"}, &out); err == nil {
		t.Error("Expected error for unsupported plot format")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := executeFit(ctx, s, outputOptions{}, &out); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSynthesize_Validation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	p := fit.Params{ThetaDeg: 10, M: 0.01, X: 5}

	if err := synthesize(path, p, 0, 0, 1); err == nil {
		t.Error("Expected error for zero points")
	}
	if err := synthesize(path, p, 10, -1, 1); err == nil {
		t.Error("Expected error for negative noise")
	}
	if err := synthesize(path, p, 10, 0.1, 1); err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 11 {
		t.Errorf("Expected header plus 10 rows, got %d lines", lines)
	}
}

func TestExecuteFit_FailedRunLeavesNoDirectory(t *testing.T) {
	path := writeSynthetic(t, "xy.csv", fit.Params{ThetaDeg: 10, M: 0.01, X: 5})

	t.Run("cancelled", func(t *testing.T) {
		s := testSettings(t, path)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var out bytes.Buffer
		if _, err := executeFit(ctx, s, outputOptions{save: true}, &out); !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected context.Canceled, got %v", err)
		}

		entries, err := os.ReadDir(filepath.Join(s.DataDir, "runs"))
		if err != nil && !os.IsNotExist(err) {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("Expected no run directories, found %d", len(entries))
		}
	})

	t.Run("pipeline error", func(t *testing.T) {
		s := testSettings(t, path)
		s.Global = "anneal"

		var out bytes.Buffer
		if _, err := executeFit(context.Background(), s, outputOptions{save: true}, &out); err == nil {
			t.Fatal("Expected error for unknown global optimizer")
		}
		if _, err := os.Stat(s.DataDir); !os.IsNotExist(err) {
			t.Errorf("Expected data dir to be untouched, stat err = %v", err)
		}
	})
}

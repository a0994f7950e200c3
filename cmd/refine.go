package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cwbudde/curvefit/internal/config"
	"github.com/cwbudde/curvefit/internal/dataset"
	"github.com/cwbudde/curvefit/internal/fit"
	"github.com/cwbudde/curvefit/internal/report"
	"github.com/cwbudde/curvefit/internal/store"
)

var refineCmd = &cobra.Command{
	Use:   "refine <run-id>",
	Short: "Re-run the refinement stages from a stored fit",
	Long: `Loads a stored run and repeats the L2 and L1 refinement stages from its
best parameters. The dataset must be the one the run was fitted on; it
defaults to the path recorded with the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runRefine,
}

func init() {
	addDataFlags(refineCmd.Flags())
	rootCmd.AddCommand(refineCmd)
}

func runRefine(cmd *cobra.Command, args []string) error {
	s := *settings
	applyFlags(cmd.Flags(), &s)
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	_, err := executeRefine(cmd.Context(), &s, args[0], cmd.Flags().Changed("data"), currentOutputOptions(), cmd.OutOrStdout())
	return err
}

// executeRefine runs stages two and three from the best parameters of a
// stored run. Unless dataOverride is set the recorded dataset path is used.
func executeRefine(ctx context.Context, s *config.Settings, runID string, dataOverride bool, opts outputOptions, out io.Writer) (string, error) {
	fsStore, err := store.NewFSStore(s.DataDir)
	if err != nil {
		return "", fmt.Errorf("failed to create run store: %w", err)
	}

	record, err := fsStore.LoadRecord(runID)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("no stored run %s in %s", runID, s.DataDir)
	} else if err != nil {
		return "", err
	}
	if err := record.Validate(); err != nil {
		return "", fmt.Errorf("stored run %s is invalid: %w", runID, err)
	}

	if !dataOverride {
		s.DataPath = record.Config.DataPath
	}

	ds, err := dataset.Load(s.DataPath)
	if err != nil {
		return "", err
	}
	if err := record.IsCompatible(ds.FingerprintHex(), ds.Len()); err != nil {
		return "", fmt.Errorf("dataset %s does not match run %s: %w", s.DataPath, runID, err)
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

	slog.Info("Refining stored run", "runID", runID, "l1", record.L1)
	result, err := pipeline.Refine(ctx, record.Best)
	if err != nil {
		sess.discard()
		return "", fmt.Errorf("refine failed: %w", err)
	}

	if err := report.Write(out, result); err != nil {
		return "", err
	}
	fmt.Fprintf(out, "Stored L1: %.6f, change: %+.6f\n", record.L1, result.L1-record.L1)

	if err := sess.save(ds, result, s, out); err != nil {
		return "", err
	}
	if err := writePlots(ds, result, opts, sess); err != nil {
		return "", err
	}
	return sess.runID, nil
}

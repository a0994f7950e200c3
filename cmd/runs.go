package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/curvefit/internal/report"
	"github.com/cwbudde/curvefit/internal/store"
)

var (
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored fit runs",
	Long:  `List, inspect and clean the fit runs stored under the data directory.`,
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored runs",
	Long:  `Display all stored runs with run ID, timestamp, optimizer, objective values and size on disk.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRuns(cmd.OutOrStdout(), settings.DataDir)
	},
}

var showRunCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the details of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRun(cmd.OutOrStdout(), settings.DataDir, args[0])
	},
}

var cleanRunsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old runs",
	Long: `Delete stored runs based on a retention policy.
You can keep the N most recent runs or delete runs older than N days.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cleanRuns(cmd.OutOrStdout(), cmd.InOrStdin(), settings.DataDir, keepLast, olderThanDays, forceClean)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(listRunsCmd, showRunCmd, cleanRunsCmd)

	cleanRunsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the N most recent runs (0 = keep all)")
	cleanRunsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanRunsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func listRuns(w io.Writer, dataDir string) error {
	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}

	infos, err := runStore.ListRecords()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tTIMESTAMP\tGLOBAL\tPOINTS\tL1\tL2\tSIZE")
	fmt.Fprintln(tw, "------\t---------\t------\t------\t--\t--\t----")

	for _, info := range infos {
		sizeStr := "unknown"
		if size, err := getDirSize(runStore.RunDir(info.RunID)); err == nil {
			sizeStr = formatBytes(size)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.6f\t%.6f\t%s\n",
			shortID(info.RunID),
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Global,
			info.Points,
			info.L1,
			info.L2,
			sizeStr,
		)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nTotal runs: %d\n", len(infos))
	return nil
}

func showRun(w io.Writer, dataDir, runID string) error {
	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}

	record, err := runStore.LoadRecord(runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run: %s\n", record.RunID)
	fmt.Fprintf(w, "Finished: %s\n", record.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "Dataset: %s (%d points, fingerprint %s)\n", record.Config.DataPath, record.Points, record.Fingerprint)
	fmt.Fprintf(w, "Optimizers: %s + %s, seed %d, maxiter %d, popsize %d, tol %g\n",
		record.Config.Global, record.Config.Local, record.Config.Seed,
		record.Config.MaxIter, record.Config.PopSize, record.Config.Tol)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tMETHOD\tPARAMS\tL1\tL2")
	for _, s := range record.Stages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.6f\t%.6f\n", s.Name, s.Method, s.Params, s.L1, s.L2)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nFinal params: %s\n", record.Best)
	fmt.Fprintf(w, "Final L1: %.6f\n", record.L1)
	fmt.Fprintf(w, "Final L2: %.6f\n", record.L2)
	fmt.Fprintf(w, "\nExpression:\n%s\n", report.Expression(record.Best))

	reader, err := store.NewTraceReader(dataDir, runID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		slog.Warn("Failed to read trace", "runID", runID, "error", err)
		return nil
	}

	generations := 0
	for _, e := range entries {
		if e.Iteration > generations {
			generations = e.Iteration
		}
	}
	fmt.Fprintf(w, "\nTrace: %d entries, %d generations\n", len(entries), generations)
	for _, e := range store.StageSummary(entries) {
		fmt.Fprintf(w, "  %-10s cost %.6f\n", e.Stage, e.Cost)
	}
	return nil
}

func cleanRuns(w io.Writer, in io.Reader, dataDir string, keepLast, olderThanDays int, force bool) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}

	infos, err := runStore.ListRecords()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Fprintln(w, "No runs to clean.")
		return nil
	}

	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays, time.Now())
	if len(toDelete) == 0 {
		fmt.Fprintln(w, "No runs match deletion criteria.")
		return nil
	}

	fmt.Fprintf(w, "Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(w, "  - %s (L1 %.6f, %s)\n",
			shortID(info.RunID),
			info.L1,
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	if !force {
		fmt.Fprint(w, "\nProceed with deletion? [y/N]: ")
		response, _ := bufio.NewReader(in).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	deleted, failed := 0, 0
	for _, info := range toDelete {
		if err := runStore.DeleteRecord(info.RunID); err != nil {
			slog.Error("Failed to delete run", "runID", info.RunID, "error", err)
			failed++
		} else {
			slog.Info("Deleted run", "runID", info.RunID)
			deleted++
		}
	}

	fmt.Fprintf(w, "\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

// selectRunsForDeletion applies the retention policy: runs older than
// olderThanDays, plus everything beyond the keepLast most recent runs.
func selectRunsForDeletion(infos []store.RecordInfo, keepLast, olderThanDays int, now time.Time) []store.RecordInfo {
	var toDelete []store.RecordInfo
	selected := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := append([]store.RecordInfo(nil), infos...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.After(sorted[j].Timestamp)
		})

		for _, info := range sorted[keepLast:] {
			if !selected[info.RunID] {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	return toDelete
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

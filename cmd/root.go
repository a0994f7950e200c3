package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/curvefit/internal/config"
)

var (
	envFile   string
	logLevel  string
	logFormat string
	dataDir   string

	// settings is populated by the root PersistentPreRunE before any
	// subcommand runs
	settings *config.Settings
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "curvefit",
	Short: "Fit a three-parameter parametric curve to observed points",
	Long: `curvefit recovers the rotation angle, exponential rate and horizontal
offset of a parametric curve from observed (x, y) points. A global search on
the L1 objective is followed by an L2 polish and a final L1 simplex polish.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Load(envFile)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("log-level") {
			s.LogLevel = logLevel
		}
		if flags.Changed("log-format") {
			s.LogFormat = logFormat
		}
		if flags.Changed("data-dir") {
			s.DataDir = dataDir
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}

		logger = newLogger(os.Stderr, s.LogLevel, s.LogFormat)
		slog.SetDefault(logger)

		settings = s
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "Optional file of CURVEFIT_* settings")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format (json, text)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Base directory for stored runs")
}

// newLogger builds the process logger. Logs go to w so that stdout carries
// only the report.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

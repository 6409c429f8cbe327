// Package main implements the alexandriad CLI, a thin command surface over
// the memory substrate: ingest events, drive review, run hybrid search,
// and assemble progressive-disclosure packs.
//
// # File Index
//
//   - main.go       - entry point, rootCmd, global flags, logger setup
//   - cmd_ingest.go - ingestCmd: append an event and run extraction/review
//   - cmd_review.go - reviewCmd: list/approve/reject memories pending review
//   - cmd_search.go - searchCmd: hybrid lexical+vector search
//   - cmd_pack.go   - packCmd: assemble and render a progressive-disclosure pack
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/franalgaba/alexandria/internal/config"
	"github.com/franalgaba/alexandria/internal/logging"
	"github.com/franalgaba/alexandria/internal/project"
)

var (
	verbose    bool
	dbPath     string
	configPath string

	logger *zap.Logger
)

// Exit codes (spec §6): 0 success, 1 generic failure, 2 semantic error
// (alexandriaerr.Error), 3 configuration/schema problem.
const (
	exitOK            = 0
	exitFailure       = 1
	exitSemanticError = 2
	exitConfigError   = 3
)

var rootCmd = &cobra.Command{
	Use:   "alexandriad",
	Short: "Alexandria - local-first memory substrate for coding agents",
	Long: `Alexandria stores decisions, conventions, fixes, and constraints your
coding agent has learned about a project, and serves them back through
intent-routed, confidence-tiered, token-budgeted context packs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}
		info, err := project.Resolve(cwd, dbPath)
		if err != nil {
			return fmt.Errorf("failed to resolve project: %w", err)
		}
		dbPath = info.DBPath

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := logging.Initialize(info.ProjectPath, cfg.Logging.DebugMode, cfg.Logging.Categories, cfg.Logging.JSONFormat); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "override the resolved database path (or set ALEXANDRIA_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to an alexandria.yaml config file")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(packCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

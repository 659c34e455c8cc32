package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dweebuild/dweebuild/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// logFileName receives the dashboard's logs so they stay off the screen.
const logFileName = "dweebuild.log"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dweebuild",
	Short: "dweebuild - a small crew of AI agents that builds software",
	Long: `dweebuild drives an ARCHITECT, an ENGINEER and a QA lead against a shared
task queue. The architect scaffolds the mission, engineers implement each
planned task and QA runs the test suite, queueing fixes when it fails.

Use "dweebuild run" for a headless session or "dweebuild dashboard" for the
interactive terminal UI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		if cmd == dashboardCmd {
			if err := os.MkdirAll(config.DirName, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", config.DirName, err)
			}
			path := filepath.Join(config.DirName, logFileName)
			cfg.OutputPaths = []string{path}
			cfg.ErrorOutputPaths = []string{path}
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Project config file (default: .dweebuild/config.json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the layered configuration. An explicit --config file
// replaces the project file; the global file and environment still apply.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.LoadDefault()
	}
	if err := config.LoadEnv(".env"); err != nil {
		return nil, err
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	cfg, err := config.Load(config.FindFile(filepath.Join(homeDir, config.DirName)), configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

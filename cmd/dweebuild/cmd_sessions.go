package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dweebuild/dweebuild/internal/persistence"
)

var (
	exportOutput string
	dbPathFlag   string
)

// =============================================================================
// SESSION MANAGEMENT COMMANDS
// =============================================================================

// sessionsCmd manages stored sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
	Long: `List, export and delete the sessions saved by run and dashboard.

Subcommands:
  list     - List all saved sessions
  export   - Write a session's shared log as Markdown
  delete   - Delete a session`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved sessions",
	RunE:  runSessionsList,
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session's shared log as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsExport,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "Session database (default: storage.database_path from config)")
	sessionsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to this file instead of stdout")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

// openStore opens the session database named by --db or the config.
func openStore(ctx context.Context) (*persistence.SQLiteStore, error) {
	path := dbPathFlag
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		path = cfg.Storage.DatabasePath
	}
	return persistence.NewSQLiteStore(ctx, path)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.ListSessions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No saved sessions found.")
		return nil
	}

	fmt.Fprintln(out, "Saved Sessions")
	fmt.Fprintln(out, strings.Repeat("─", 72))
	for _, s := range sessions {
		state := "stopped"
		if s.Running {
			state = "running"
		}
		fmt.Fprintf(out, "  %s  %-10s %-7s iter=%-4d queue=%-3d log=%-5d %s\n",
			color.CyanString(s.ID), s.Mode, state, s.Iteration, s.QueueLen, s.MemoryLen,
			s.TakenAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(out, strings.Repeat("─", 72))
	fmt.Fprintf(out, "Total: %d sessions\n", len(sessions))
	return nil
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.LoadSnapshot(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOutput, err)
		}
		defer f.Close()
		w = f
	}
	if err := persistence.ExportMarkdown(w, snap.SessionID, snap.Memory); err != nil {
		return fmt.Errorf("failed to export session: %w", err)
	}
	if exportOutput != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", len(snap.Memory), exportOutput)
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteSession(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dweebuild/dweebuild/internal/orchestrator"
	"github.com/dweebuild/dweebuild/internal/tui"
)

var (
	dashMode        string
	dashResume      string
	dashDryRun      bool
	dashMetricsAddr string
)

// dashboardCmd runs a session behind the terminal UI.
var dashboardCmd = &cobra.Command{
	Use:   "dashboard [mission]",
	Short: "Run a session in the interactive dashboard",
	Long: `Open the dashboard and keep ticking until you quit.

Keys: n adds a task, x removes the selected one, J/K reorder, p pauses,
tab cycles panes and q quits. Gated tool calls open an approval prompt.
Logs go to .dweebuild/dweebuild.log.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVar(&dashMode, "mode", "", "Orchestration mode: SINGLE, AUTONOMOUS or SUPERVISED")
	dashboardCmd.Flags().StringVar(&dashResume, "resume", "", "Resume a stored session by ID")
	dashboardCmd.Flags().BoolVar(&dashDryRun, "dry-run", false, "Use scripted providers and skip the real test suite")
	dashboardCmd.Flags().StringVar(&dashMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	approvals := tui.NewApprovals()
	defer approvals.Close()

	a, err := newApp(ctx, cfg, appOptions{
		Mode:          dashMode,
		MaxIterations: -1,
		DryRun:        dashDryRun,
		MetricsAddr:   dashMetricsAddr,
		Resume:        dashResume,
		Approve:       approvals.Decide,
	}, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) > 0 {
		if mission := strings.TrimSpace(args[0]); mission != "" {
			if err := a.submitMission(mission); err != nil {
				return err
			}
		}
	}

	driver, err := orchestrator.NewDriver(a.orc, orchestrator.DriverConfig{
		Schedule:  a.cfg.Orchestrator.TickSchedule,
		KeepAlive: true,
		Logger:    logger,
		OnTick:    func(orchestrator.TickResult) { _ = a.save(ctx) },
	})
	if err != nil {
		return err
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	driverDone := make(chan error, 1)
	a.orc.Start()
	go func() { driverDone <- driver.Run(runCtx) }()

	// Start Bubble Tea program in a goroutine so we can handle shutdown
	p := tea.NewProgram(tui.New(a.orc, a.bus, approvals), tea.WithAltScreen(), tea.WithContext(ctx))
	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	var tuiErr error
	select {
	case tuiErr = <-errChan:
		// Normal TUI exit (user pressed 'q')
	case <-ctx.Done():
		// Restore default signal handling so a second Ctrl+C forces exit
		stop()
		logger.Info("shutdown signal received, cleaning up")

		if err := a.procs.KillAll(); err != nil {
			logger.Warn("failed to kill subprocesses", zap.Error(err))
		}
		p.Quit()

		select {
		case <-errChan:
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timeout exceeded, forcing exit")
		}
	}

	approvals.Close()
	a.orc.Stop()
	cancelRun()
	<-driverDone
	if err := a.save(ctx); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Saved session %s\n", a.orc.SessionID())
	}
	logger.Info("shutdown complete")
	if tuiErr != nil && ctx.Err() == nil {
		return tuiErr
	}
	return nil
}

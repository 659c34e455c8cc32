package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dweebuild/dweebuild/internal/agent"
	"github.com/dweebuild/dweebuild/internal/orchestrator"
)

var (
	runMode          string
	runMaxIterations int
	runResume        string
	runDryRun        bool
	runMetricsAddr   string
	runKeepAlive     bool
	runYes           bool
)

// runCmd drives a session without the dashboard.
var runCmd = &cobra.Command{
	Use:   "run [mission]",
	Short: "Run a session headless",
	Long: `Run agents against the mission until the mode's stop rule fires.

SINGLE stops when the queue drains, AUTONOMOUS after --max-iterations ticks
(or when there is nothing left to do) and SUPERVISED only on Ctrl+C. Gated
tool calls are confirmed on the terminal unless --yes is given.`,
	Example: `  dweebuild run "Build a CLI tool that converts CSV to JSON"
  dweebuild run --mode SINGLE --dry-run "Build a 2D platformer"
  dweebuild run --resume 1f0c...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHeadless,
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "", "Orchestration mode: SINGLE, AUTONOMOUS or SUPERVISED")
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", -1, "Tick limit in AUTONOMOUS mode (0 is unlimited)")
	runCmd.Flags().StringVar(&runResume, "resume", "", "Resume a stored session by ID")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Use scripted providers and skip the real test suite")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	runCmd.Flags().BoolVar(&runKeepAlive, "keep-alive", false, "Keep ticking when the queue is idle or stalled")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Approve every gated tool call")
}

func runHeadless(cmd *cobra.Command, args []string) error {
	mission := ""
	if len(args) > 0 {
		mission = strings.TrimSpace(args[0])
	}
	if mission == "" && runResume == "" {
		return errors.New("a mission or --resume is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	approve := confirmOnTerminal
	if runYes {
		approve = orchestrator.AutoApprove
	}
	a, err := newApp(ctx, cfg, appOptions{
		Mission:       mission,
		Mode:          runMode,
		MaxIterations: runMaxIterations,
		DryRun:        runDryRun,
		MetricsAddr:   runMetricsAddr,
		Resume:        runResume,
		Approve:       approve,
	}, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if mission != "" {
		if err := a.submitMission(mission); err != nil {
			return err
		}
	}
	printStatus(out, "▶", fmt.Sprintf("Session %s (%s)", a.orc.SessionID(), a.orc.Policy().Mode), color.FgCyan)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var idle atomic.Bool

	driver, err := orchestrator.NewDriver(a.orc, orchestrator.DriverConfig{
		Schedule:  a.cfg.Orchestrator.TickSchedule,
		KeepAlive: runKeepAlive,
		Logger:    logger,
		OnTick: func(res orchestrator.TickResult) {
			reportTick(out, res)
			_ = a.save(runCtx)
			if !runKeepAlive && len(res.Assigned) == 0 && !res.Stalled && len(a.orc.Queue()) == 0 {
				idle.Store(true)
				cancel()
			}
		},
	})
	if err != nil {
		return err
	}

	a.orc.Start()
	runErr := driver.Run(runCtx)
	a.orc.Stop()
	saveErr := a.save(ctx)

	switch {
	case runErr == nil, idle.Load() && errors.Is(runErr, context.Canceled):
		printStatus(out, "✓", fmt.Sprintf("Session complete after %d iterations", a.orc.IterationCount()), color.FgGreen)
	case errors.Is(runErr, orchestrator.ErrQueueStalled):
		task, _ := a.orc.StalledTask()
		printStatus(out, "!", fmt.Sprintf("Stopped: no agent accepts %q", task), color.FgYellow)
		return runErr
	case ctx.Err() != nil:
		printStatus(out, "■", "Interrupted", color.FgYellow)
	default:
		return runErr
	}
	if saveErr == nil {
		printStatus(out, "●", fmt.Sprintf("Saved session %s", a.orc.SessionID()), color.FgCyan)
	}
	return nil
}

// reportTick prints one line per finished assignment.
func reportTick(w io.Writer, res orchestrator.TickResult) {
	for _, as := range res.Assigned {
		msg := fmt.Sprintf("[%s] %s (%s)", as.Agent, as.Task, as.Duration.Round(time.Millisecond))
		switch as.Outcome {
		case orchestrator.OutcomeSuccess:
			printStatus(w, "✓", msg, color.FgGreen)
		case orchestrator.OutcomeError:
			printStatus(w, "✗", msg+": "+firstLine(as.Result), color.FgRed)
		default:
			printStatus(w, "⏱", msg+": "+as.Outcome, color.FgYellow)
		}
		for _, f := range as.FollowUps {
			printStatus(w, "  +", f, color.FgBlue)
		}
	}
	if res.Stalled && res.StalledTask != "" {
		printStatus(w, "!", fmt.Sprintf("Queue stalled on %q", res.StalledTask), color.FgYellow)
	}
}

func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	return s
}

// confirmOnTerminal asks the operator to approve a tool call.
func confirmOnTerminal(ctx context.Context, req agent.ApprovalRequest) (bool, error) {
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("%s wants to run %s", req.Agent, req.Tool)).
			Description(fmt.Sprintf("Task: %s\n%s", req.Task, formatArgs(req.Args))).
			Affirmative("Approve").
			Negative("Deny").
			Value(&ok),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	logger.Debug("approval decided", zap.String("agent", req.Agent), zap.String("tool", req.Tool), zap.Bool("approved", ok))
	return ok, nil
}

func formatArgs(args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		v := args[k]
		if len(v) > 200 {
			v = v[:200] + "..."
		}
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	return strings.TrimRight(b.String(), "\n")
}

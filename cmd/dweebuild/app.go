package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dweebuild/dweebuild/internal/advisor"
	"github.com/dweebuild/dweebuild/internal/agent"
	"github.com/dweebuild/dweebuild/internal/backend"
	"github.com/dweebuild/dweebuild/internal/config"
	"github.com/dweebuild/dweebuild/internal/events"
	"github.com/dweebuild/dweebuild/internal/orchestrator"
	"github.com/dweebuild/dweebuild/internal/persistence"
	"github.com/dweebuild/dweebuild/internal/process"
	"github.com/dweebuild/dweebuild/internal/scheduler"
	"github.com/dweebuild/dweebuild/internal/tools"
	"github.com/dweebuild/dweebuild/internal/workspace"
)

const (
	// missionKey is the shared-memory context key agents read the mission from.
	missionKey = "mission"

	dryRunProvider    = "dry-run"
	dryRunTestCommand = "echo dry-run: test suite skipped"

	shutdownTimeout = 10 * time.Second
)

// appOptions are command-line overrides applied on top of the loaded config.
type appOptions struct {
	Mission       string
	Mode          string
	MaxIterations int // negative keeps the configured value
	DryRun        bool
	MetricsAddr   string
	Resume        string            // session ID to restore
	Approve       agent.ApproveFunc // nil runs gated tools without asking
}

// app is one wired session: workspace, store, orchestrator and roster.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	procs   *process.Manager
	bus     *events.Bus
	ws      *workspace.Workspace
	watcher *workspace.Watcher
	store   *persistence.SQLiteStore
	orc     *orchestrator.Orchestrator

	approvals  *orchestrator.ApprovalChannel
	metricsSrv *http.Server
	cancel     context.CancelFunc
}

// newApp wires a session from cfg. The returned app owns background
// goroutines until Close.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions, logger *zap.Logger) (_ *app, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	mode, err := orchestrator.ParseMode(cfg.Orchestrator.Mode)
	if err != nil {
		return nil, err
	}
	bp, err := scheduler.CompileBlueprint(cfg.BlueprintSteps())
	if err != nil {
		return nil, fmt.Errorf("compiling blueprint: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	a := &app{
		cfg:    cfg,
		logger: logger,
		procs:  process.NewManager(),
		bus:    events.NewBus(),
		cancel: cancel,
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.ws, err = workspace.New(workspace.Config{Root: cfg.Workspace.Root, Git: cfg.Workspace.Git})
	if err != nil {
		return nil, err
	}
	if err := a.ws.Init(ctx); err != nil {
		return nil, err
	}

	a.store, err = persistence.NewSQLiteStore(ctx, cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}

	var snap *orchestrator.Snapshot
	if opts.Resume != "" {
		s, err := a.store.LoadSnapshot(ctx, opts.Resume)
		if err != nil {
			return nil, fmt.Errorf("resuming session: %w", err)
		}
		snap = &s
	}

	var metrics *orchestrator.Metrics
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = orchestrator.NewMetrics(reg)
		a.serveMetrics(cfg.Metrics.Addr, reg)
	}

	var committer orchestrator.Committer
	var repo tools.Repo
	if a.ws.GitEnabled() {
		committer = a.ws
		repo = a.ws
	}

	a.orc, err = orchestrator.New(orchestrator.Config{
		Policy:           orchestrator.NewModePolicy(mode, cfg.Orchestrator.MaxIterations, cfg.Orchestrator.ApprovalRequired),
		AgentTimeout:     cfg.AgentTimeout(),
		MaxConcurrent:    cfg.Orchestrator.MaxConcurrentAgents,
		MemoryCapacity:   cfg.Orchestrator.MemoryCapacity,
		RequeueOnTimeout: cfg.Orchestrator.RequeueOnTimeout,
		AutoCommit:       cfg.Orchestrator.AutoCommit,
		Blueprint:        bp,
		Committer:        committer,
		Bus:              a.bus,
		Metrics:          metrics,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	var approve agent.ApproveFunc
	if opts.Approve != nil {
		a.approvals = orchestrator.NewApprovalChannel(2*max(cfg.Orchestrator.MaxConcurrentAgents, 1), opts.Approve)
		a.approvals.Start(ctx)
		approve = a.approvals.Ask
	}

	mission := opts.Mission
	if mission == "" && snap != nil {
		mission = snap.Context[missionKey]
	}
	if err := a.registerAgents(mission, approve, repo); err != nil {
		return nil, err
	}
	if snap != nil {
		if err := a.orc.Restore(*snap); err != nil {
			return nil, fmt.Errorf("resuming session: %w", err)
		}
	}

	if cfg.Workspace.Watch {
		a.watcher, err = workspace.NewWatcher(a.ws, a.orc.Memory(), workspace.WatcherConfig{}, logger)
		if err != nil {
			return nil, err
		}
		if err := a.watcher.Start(ctx); err != nil {
			return nil, err
		}
	}

	logger.Info("session ready",
		zap.String("session", a.orc.SessionID()),
		zap.String("mode", string(mode)),
		zap.String("workspace", a.ws.Root()),
		zap.Strings("roster", cfg.Roster))
	return a, nil
}

// applyOverrides folds command-line options into cfg.
func applyOverrides(cfg *config.Config, opts appOptions) {
	if opts.Mode != "" {
		cfg.Orchestrator.Mode = strings.ToUpper(opts.Mode)
	}
	if opts.MaxIterations >= 0 {
		cfg.Orchestrator.MaxIterations = opts.MaxIterations
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Addr = opts.MetricsAddr
	}
	if opts.DryRun {
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]config.ProviderConfig)
		}
		cfg.Providers[dryRunProvider] = config.ProviderConfig{Type: backend.TypeScripted}
		for name, ac := range cfg.Agents {
			if ac.Strategy != string(agent.StrategyTestGate) {
				ac.Provider = dryRunProvider
				cfg.Agents[name] = ac
			}
		}
		cfg.Workspace.TestCommand = dryRunTestCommand
	}
}

// registerAgents builds the roster. ARCHITECT prompts get the tech stack
// recommendation for mission appended.
func (a *app) registerAgents(mission string, approve agent.ApproveFunc, repo tools.Repo) error {
	root, err := tools.NewRoot(a.ws.Root())
	if err != nil {
		return err
	}
	custom := make([]tools.CustomSpec, len(a.cfg.CustomTools))
	for i, t := range a.cfg.CustomTools {
		custom[i] = tools.CustomSpec{Name: t.Name, Description: t.Description, Command: t.Command}
	}
	toolbelt, err := tools.Standard(root, tools.Options{
		TestCommand: a.cfg.Workspace.TestCommand,
		Procs:       a.procs,
		Repo:        repo,
		Custom:      custom,
	})
	if err != nil {
		return err
	}

	breakers := backend.NewBreakerRegistry(a.logger)
	providers := make(map[string]backend.Provider)
	adv := advisor.New()

	for _, name := range a.cfg.Roster {
		ac := a.cfg.Agents[name]
		capability, _ := scheduler.ParseCapability(ac.Capability)
		strategy := agent.Strategy(ac.Strategy)

		var provider backend.Provider
		var temperature float64
		if strategy != agent.StrategyTestGate {
			provider, err = a.provider(providers, breakers, ac.Provider)
			if err != nil {
				return fmt.Errorf("agent %q: %w", name, err)
			}
			temperature = a.cfg.Providers[ac.Provider].Temperature
		}

		set := toolbelt
		if len(ac.Tools) > 0 {
			set, err = toolbelt.Subset(withoutMissingGit(ac.Tools, repo))
			if err != nil {
				return fmt.Errorf("agent %q: %w", name, err)
			}
		}

		prompt := ac.SystemPrompt
		if capability == scheduler.CapabilityArchitect && mission != "" {
			if prompt == "" {
				prompt = agent.DefaultRolePrompt(capability)
			}
			prompt += "\n" + adv.Recommend(mission)
		}

		ag, err := agent.New(agent.Config{
			Name:         name,
			Capability:   capability,
			Role:         ac.Role,
			SystemPrompt: prompt,
			Provider:     provider,
			Tools:        set,
			Strategy:     strategy,
			MaxAttempts:  ac.MaxAttempts,
			LogSize:      a.cfg.Orchestrator.AgentLogSize,
			Temperature:  temperature,
		}, a.orc.AgentOptions(approve)...)
		if err != nil {
			return err
		}
		if err := a.orc.RegisterAgent(ag); err != nil {
			return err
		}
	}
	return nil
}

// withoutMissingGit drops the git tool from names when the workspace is
// not a repository.
func withoutMissingGit(names []string, repo tools.Repo) []string {
	if repo != nil {
		return names
	}
	return slices.DeleteFunc(slices.Clone(names), func(n string) bool { return n == "git" })
}

// provider returns the shared provider for name, creating it on first use.
// Network providers are wrapped with retries and a circuit breaker.
func (a *app) provider(cache map[string]backend.Provider, breakers *backend.BreakerRegistry, name string) (backend.Provider, error) {
	if p, ok := cache[name]; ok {
		return p, nil
	}
	pc := a.cfg.Providers[name]
	p, err := backend.New(backend.Config{
		Name:      name,
		Type:      pc.Type,
		Model:     pc.Model,
		BaseURL:   pc.BaseURL,
		APIKeyEnv: pc.APIKeyEnv,
		Command:   pc.Command,
		WorkDir:   a.ws.Root(),
		MaxTokens: pc.MaxTokens,
	}, a.procs, a.logger)
	if err != nil {
		return nil, err
	}
	if pc.Type != backend.TypeScripted {
		p = backend.WithResilience(p, breakers, backend.DefaultRetryConfig())
	}
	cache[name] = p
	return p, nil
}

// submitMission records the mission and queues its design task.
func (a *app) submitMission(mission string) error {
	a.orc.Memory().SetContext(missionKey, mission)
	return a.orc.AddTask("Design: "+mission, 0)
}

// save stores the current session snapshot. It runs even after ctx is
// cancelled so the final state of an interrupted session is kept.
func (a *app) save(ctx context.Context) error {
	snap := a.orc.Snapshot(0)
	if err := a.store.SaveSnapshot(context.WithoutCancel(ctx), snap); err != nil {
		a.logger.Warn("failed to save session", zap.String("session", snap.SessionID), zap.Error(err))
		return err
	}
	return nil
}

func (a *app) serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	a.metricsSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info("metrics listening", zap.String("addr", addr))
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// Close stops background work, kills tracked subprocesses and closes the
// store. Safe to call on a partially built app.
func (a *app) Close() {
	a.cancel()
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.approvals != nil {
		a.approvals.Stop()
	}
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = a.metricsSrv.Shutdown(ctx)
		cancel()
	}
	if err := a.procs.KillAll(); err != nil {
		a.logger.Warn("failed to kill subprocesses", zap.Error(err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close store", zap.Error(err))
		}
	}
	a.bus.Close()
}

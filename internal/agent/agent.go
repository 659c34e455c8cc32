// Package agent implements the bounded perceive, reason and act loop an
// agent runs against a single task.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dweebuild/dweebuild/internal/backend"
	"github.com/dweebuild/dweebuild/internal/memory"
	"github.com/dweebuild/dweebuild/internal/scheduler"
	"github.com/dweebuild/dweebuild/internal/tools"
)

// Status is an agent's lifecycle state.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusWorking Status = "WORKING"
	StatusError   Status = "ERROR"
	StatusSuccess Status = "SUCCESS"
)

// MaxAttemptsResult is returned when the loop gives up.
const MaxAttemptsResult = "Max attempts reached without resolution."

const (
	DefaultMaxAttempts = 5
	DefaultLogSize     = 100
	DefaultTemperature = 0.2

	observationPreview = 100
	memoryOutputLimit  = 2000
)

// Strategy selects how an agent works a task.
type Strategy string

const (
	// StrategyReason asks the provider for a decision each round.
	StrategyReason Strategy = "reason"
	// StrategyTestGate runs the run_tests tool once and judges its output
	// without consulting a provider.
	StrategyTestGate Strategy = "test-gate"
)

// ApprovalRequest describes a tool call waiting for an operator decision.
type ApprovalRequest struct {
	Agent string
	Task  string
	Tool  string
	Args  map[string]string
}

// ApproveFunc decides whether a tool call may proceed.
type ApproveFunc func(ctx context.Context, req ApprovalRequest) (bool, error)

// Config describes an agent.
type Config struct {
	Name         string
	Capability   scheduler.Capability
	Role         string
	SystemPrompt string // overrides the built-in role prompt
	Provider     backend.Provider
	Tools        *tools.Registry
	Strategy     Strategy
	MaxAttempts  int
	LogSize      int
	Temperature  float64
}

// LogLine is one entry of an agent's private log.
type LogLine struct {
	Time    time.Time    `json:"time"`
	Level   memory.Level `json:"level"`
	Message string       `json:"message"`
}

func (l LogLine) String() string {
	return fmt.Sprintf("[%s] [%s] %s", l.Time.Format("15:04:05"), l.Level, l.Message)
}

// State is a read-only copy of an agent's observable fields.
type State struct {
	Name        string               `json:"name"`
	Capability  scheduler.Capability `json:"capability"`
	Role        string               `json:"role"`
	Status      Status               `json:"status"`
	Thought     string               `json:"thought"`
	CurrentTask string               `json:"current_task"`
	Log         []LogLine            `json:"log"`
}

// Outcome is the result of one Run.
type Outcome struct {
	Result   string
	Status   Status
	Attempts int
}

// Agent owns a status, a bounded log and a toolset. All methods are safe for
// concurrent use. A loop detached by Abort or Restore may still be running
// when the next Run starts; it keeps going until it notices cancellation but
// its writes are dropped, so only the latest Run changes the agent's state.
type Agent struct {
	name        string
	capability  scheduler.Capability
	role        string
	rolePrompt  string
	provider    backend.Provider
	tools       *tools.Registry
	strategy    Strategy
	maxAttempts int
	temperature float64

	mem           *memory.Memory
	approve       ApproveFunc
	needsApproval func(tool string) bool
	now           func() time.Time

	mu      sync.Mutex
	gen     uint64 // bumped by Run and Abort; stale loops stop writing
	status  Status
	thought string
	task    string
	log     *memory.Ring[LogLine]
}

// Option configures an Agent.
type Option func(*Agent)

// WithMemory mirrors the agent's log into shared memory and exposes the
// memory's context store to prompts.
func WithMemory(m *memory.Memory) Option {
	return func(a *Agent) { a.mem = m }
}

// WithApproval gates tool calls for which needs returns true.
func WithApproval(needs func(tool string) bool, approve ApproveFunc) Option {
	return func(a *Agent) {
		a.needsApproval = needs
		a.approve = approve
	}
}

// New creates an idle agent.
func New(cfg Config, opts ...Option) (*Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if cfg.Capability.Intent() == scheduler.IntentNone {
		return nil, fmt.Errorf("agent %q: unknown capability %q", cfg.Name, cfg.Capability)
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyReason
	}
	if cfg.Strategy == StrategyReason && cfg.Provider == nil {
		return nil, fmt.Errorf("agent %q: a provider is required", cfg.Name)
	}
	if cfg.Strategy == StrategyTestGate {
		if cfg.Tools == nil {
			return nil, fmt.Errorf("agent %q: test-gate strategy needs the run_tests tool", cfg.Name)
		}
		if _, ok := cfg.Tools.Get("run_tests"); !ok {
			return nil, fmt.Errorf("agent %q: test-gate strategy needs the run_tests tool", cfg.Name)
		}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.LogSize <= 0 {
		cfg.LogSize = DefaultLogSize
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultRolePrompt(cfg.Capability)
	}
	if cfg.Tools == nil {
		cfg.Tools = tools.NewRegistry()
	}

	a := &Agent{
		name:        cfg.Name,
		capability:  cfg.Capability,
		role:        cfg.Role,
		rolePrompt:  prompt,
		provider:    cfg.Provider,
		tools:       cfg.Tools,
		strategy:    cfg.Strategy,
		maxAttempts: cfg.MaxAttempts,
		temperature: cfg.Temperature,
		now:         time.Now,
		status:      StatusIdle,
		thought:     "Standby",
		log:         memory.NewRing[LogLine](cfg.LogSize),
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, n := range a.tools.Names() {
		a.log.Push(LogLine{Time: a.now(), Level: memory.LevelInfo, Message: "Equipped tool: " + n})
	}
	return a, nil
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Capability returns the agent capability.
func (a *Agent) Capability() scheduler.Capability { return a.capability }

// MaxAttempts returns the round limit per task.
func (a *Agent) MaxAttempts() int { return a.maxAttempts }

// Status returns the current status.
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// State returns a copy of the agent's observable fields.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{
		Name:        a.name,
		Capability:  a.capability,
		Role:        a.role,
		Status:      a.status,
		Thought:     a.thought,
		CurrentTask: a.task,
		Log:         a.log.Last(0),
	}
}

// Restore loads status, thought, task and log from a snapshot.
func (a *Agent) Restore(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	a.status = s.Status
	if a.status == "" {
		a.status = StatusIdle
	}
	a.thought = s.Thought
	a.task = s.CurrentTask
	a.log.Reset(s.Log)
}

// Rearm returns a finished agent (SUCCESS or ERROR) to IDLE.
func (a *Agent) Rearm() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusSuccess && a.status != StatusError {
		return false
	}
	a.status = StatusIdle
	a.task = ""
	return true
}

// Abort forces the agent into ERROR and detaches any running loop: the loop
// may keep running until it notices cancellation but can no longer change
// the agent's state.
func (a *Agent) Abort(reason string) {
	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.status = StatusError
	a.thought = reason
	a.mu.Unlock()

	a.logf(gen, memory.LevelError, "%s", reason)
}

// Run works task until the provider finishes it or attempts run out.
func (a *Agent) Run(ctx context.Context, task string) Outcome {
	gen := a.begin(task)
	a.logf(gen, memory.LevelInfo, "Starting task: %s", task)

	if a.strategy == StrategyTestGate {
		return a.runTestGate(ctx, gen, task)
	}

	var observations []string
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return a.finish(gen, StatusError, fmt.Sprintf("Cancelled: %v", err), attempt-1)
		}

		d, err := backend.Decide(ctx, a.provider, a.systemPrompt(), userPrompt(task, a.contextMap(), observations), a.temperature)
		if err != nil {
			a.logf(gen, memory.LevelWarn, "Reasoning failed: %v", err)
			observations = append(observations, "reasoning failed, no action taken")
			continue
		}

		thought := d.Thought
		if thought == "" {
			thought = "Thinking..."
		}
		a.setThought(gen, thought)
		a.logf(gen, memory.LevelInfo, "Thought: %s", thought)

		if d.Finished() {
			return a.finish(gen, StatusSuccess, d.FinalResult(), attempt)
		}

		tool, ok := a.tools.Get(d.Tool)
		if !ok {
			a.logf(gen, memory.LevelWarn, "Unknown tool: %s", d.Tool)
			observations = append(observations, fmt.Sprintf("unknown tool %q; choose from the available tools", d.Tool))
			continue
		}

		if allowed, reason := a.checkApproval(ctx, task, d); !allowed {
			a.logf(gen, memory.LevelWarn, "Action %s not approved: %s", d.Tool, reason)
			observations = append(observations, fmt.Sprintf("%s was not approved: %s", d.Tool, reason))
			continue
		}

		a.logf(gen, memory.LevelInfo, "Action: %s %s", d.Tool, formatArgs(d.Args))
		result, err := invoke(ctx, tool, d.Args)
		if err == nil && tools.IsErrorResult(result) {
			err = errors.New(preview(result, memoryOutputLimit))
		}
		if err != nil {
			a.logf(gen, memory.LevelError, "Action failed: %v", err)
			observations = append(observations, fmt.Sprintf("%s failed: %v", d.Tool, err))
			continue
		}

		a.logf(gen, memory.LevelSuccess, "Observation: %s...", preview(result, observationPreview))
		a.remember(gen, memory.LevelDebug, "Tool Output: "+preview(result, memoryOutputLimit))
		observations = append(observations, fmt.Sprintf("%s returned: %s", d.Tool, preview(result, memoryOutputLimit)))
	}

	return a.finish(gen, StatusError, MaxAttemptsResult, a.maxAttempts)
}

// runTestGate runs the test suite once and judges the output.
func (a *Agent) runTestGate(ctx context.Context, gen uint64, task string) Outcome {
	a.setThought(gen, "Running full test suite...")
	tool, _ := a.tools.Get("run_tests")

	output, err := invoke(ctx, tool, map[string]string{})
	if err != nil {
		a.logf(gen, memory.LevelError, "Action failed: %v", err)
		return a.finish(gen, StatusSuccess, fmt.Sprintf("QA FAILURE. Test run error: %v", err), 1)
	}

	lower := strings.ToLower(output)
	if strings.Contains(lower, "failed") || strings.Contains(lower, "error") {
		a.logf(gen, memory.LevelError, "Tests FAILED.")
		a.logf(gen, memory.LevelInfo, "%s", tailRunes(output, 200))
		return a.finish(gen, StatusSuccess, "QA FAILURE. Revert or Fix. Output: "+tailRunes(output, 100), 1)
	}
	a.logf(gen, memory.LevelSuccess, "Tests PASSED.")
	return a.finish(gen, StatusSuccess, "QA SUCCESS. Deployment Approved.", 1)
}

func (a *Agent) begin(task string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	a.status = StatusWorking
	a.task = task
	a.thought = "Thinking..."
	return a.gen
}

func (a *Agent) finish(gen uint64, status Status, result string, attempts int) Outcome {
	level := memory.LevelSuccess
	if status != StatusSuccess {
		level = memory.LevelError
	}

	a.mu.Lock()
	current := gen == a.gen
	if current {
		a.status = status
	}
	a.mu.Unlock()

	if current {
		a.logf(gen, level, "Finished with %s after %d attempt(s): %s", status, attempts, preview(result, observationPreview))
	}
	return Outcome{Result: result, Status: status, Attempts: attempts}
}

func (a *Agent) setThought(gen uint64, t string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen == a.gen {
		a.thought = t
	}
}

// logf appends to the agent log and shared memory unless gen is stale.
func (a *Agent) logf(gen uint64, level memory.Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.log.Push(LogLine{Time: a.now(), Level: level, Message: msg})
	a.mu.Unlock()

	if a.mem != nil {
		a.mem.Append(a.name, level, msg)
	}
}

// remember writes to shared memory only.
func (a *Agent) remember(gen uint64, level memory.Level, msg string) {
	a.mu.Lock()
	stale := gen != a.gen
	a.mu.Unlock()
	if stale || a.mem == nil {
		return
	}
	a.mem.Append(a.name, level, msg)
}

func (a *Agent) contextMap() map[string]string {
	if a.mem == nil {
		return nil
	}
	return a.mem.ContextMap()
}

func (a *Agent) checkApproval(ctx context.Context, task string, d backend.Decision) (bool, string) {
	if a.approve == nil || a.needsApproval == nil || !a.needsApproval(d.Tool) {
		return true, ""
	}
	ok, err := a.approve(ctx, ApprovalRequest{Agent: a.name, Task: task, Tool: d.Tool, Args: d.Args})
	if err != nil {
		return false, err.Error()
	}
	if !ok {
		return false, "denied by operator"
	}
	return true, ""
}

// invoke runs a tool, converting a panic into an error.
func invoke(ctx context.Context, t tools.Tool, args map[string]string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", t.Name(), r)
		}
	}()
	if args == nil {
		args = map[string]string{}
	}
	return t.Execute(ctx, args)
}

func formatArgs(args map[string]string) string {
	if len(args) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, preview(args[k], 60)))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func tailRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

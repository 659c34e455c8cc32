// Package orchestrator owns the task queue, the agent roster and shared
// memory, and drives them one tick at a time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dweebuild/dweebuild/internal/agent"
	"github.com/dweebuild/dweebuild/internal/events"
	"github.com/dweebuild/dweebuild/internal/memory"
	"github.com/dweebuild/dweebuild/internal/scheduler"
)

// Source is the shared-memory source name for orchestrator entries.
const Source = "SYSTEM"

const (
	DefaultAgentTimeout  = 300 * time.Second
	DefaultMaxConcurrent = 3
)

// Outcomes recorded for an assignment.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
)

// ErrUnknownAgent is returned by Restore for agents missing from the roster.
var ErrUnknownAgent = errors.New("snapshot references an unregistered agent")

// Committer records the workspace state after a successful ENGINEER task.
type Committer interface {
	AddAll(ctx context.Context) error
	Commit(ctx context.Context, message string) (string, error)
}

// Config configures an Orchestrator. Zero values take defaults.
type Config struct {
	Policy           ModePolicy
	AgentTimeout     time.Duration
	MaxConcurrent    int
	MemoryCapacity   int
	RequeueOnTimeout bool
	AutoCommit       bool
	Blueprint        *scheduler.Blueprint // nil uses scheduler.DefaultBlueprint
	Committer        Committer
	SessionID        string // empty generates a new one
	Memory           *memory.Memory
	Bus              *events.Bus
	Metrics          *Metrics
	Logger           *zap.Logger
}

// Assignment is one (agent, task) pairing made by a tick and how it ended.
type Assignment struct {
	Agent     string
	Task      string
	Outcome   string
	Result    string
	Attempts  int
	FollowUps []string
	Duration  time.Duration
}

// TickResult reports what a tick did.
type TickResult struct {
	Iteration   int
	Assigned    []Assignment
	Stalled     bool
	StalledTask string
	Skipped     bool // the orchestrator was not running
}

// Orchestrator drives agents against a shared queue. All methods are safe
// for concurrent use; concurrent Ticks never double-assign an agent.
type Orchestrator struct {
	cfg     Config
	logger  *zap.Logger
	queue   *scheduler.Queue
	chain   *scheduler.Chain
	locks   *scheduler.AgentLockManager
	mem     *memory.Memory
	bus     *events.Bus
	metrics *Metrics
	now     func() time.Time

	mu          sync.Mutex
	sessionID   string
	agents      []*agent.Agent
	byName      map[string]*agent.Agent
	running     bool
	iterations  int
	stalledTask string
	inFlight    map[string]string // agent name -> task
}

// New creates a stopped orchestrator with an empty queue and roster.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Policy.Mode == "" {
		cfg.Policy = NewModePolicy(ModeAutonomous, 0, nil)
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = DefaultAgentTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Blueprint == nil {
		bp, err := scheduler.CompileBlueprint(scheduler.DefaultBlueprint())
		if err != nil {
			return nil, fmt.Errorf("compiling default blueprint: %w", err)
		}
		cfg.Blueprint = bp
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mem := cfg.Memory
	if mem == nil {
		mem = memory.New(cfg.MemoryCapacity)
	}

	o := &Orchestrator{
		cfg:       cfg,
		logger:    logger.With(zap.String("session", cfg.SessionID)),
		queue:     scheduler.NewQueue(),
		chain:     scheduler.NewChain(cfg.Blueprint),
		locks:     scheduler.NewAgentLockManager(),
		mem:       mem,
		bus:       cfg.Bus,
		metrics:   cfg.Metrics,
		now:       time.Now,
		sessionID: cfg.SessionID,
		byName:    make(map[string]*agent.Agent),
		inFlight:  make(map[string]string),
	}
	if o.bus != nil {
		mem.SetSink(func(e memory.Entry) {
			o.bus.Publish(events.MemoryEntryEvent{
				Seq:       e.Seq,
				Source:    e.Source,
				Level:     string(e.Level),
				Message:   e.Message,
				Timestamp: e.Timestamp,
			})
		})
	}
	return o, nil
}

// AgentOptions returns the options an agent needs to share this
// orchestrator's memory and, when approve is non-nil, its approval policy.
func (o *Orchestrator) AgentOptions(approve agent.ApproveFunc) []agent.Option {
	opts := []agent.Option{agent.WithMemory(o.mem)}
	if approve != nil {
		opts = append(opts, agent.WithApproval(o.cfg.Policy.RequiresApproval, approve))
	}
	return opts
}

// RegisterAgent adds a to the roster. Registration order is the routing
// tie-break order.
func (o *Orchestrator) RegisterAgent(a *agent.Agent) error {
	o.mu.Lock()
	if _, dup := o.byName[a.Name()]; dup {
		o.mu.Unlock()
		return fmt.Errorf("agent %q already registered", a.Name())
	}
	o.agents = append(o.agents, a)
	o.byName[a.Name()] = a
	o.mu.Unlock()

	o.mem.Append(Source, memory.LevelInfo, fmt.Sprintf("Agent %s registered.", a.Name()))
	o.logger.Debug("agent registered", zap.String("agent", a.Name()), zap.String("capability", string(a.Capability())))
	return nil
}

// AddTask enqueues a task; priority > 0 puts it at the head.
func (o *Orchestrator) AddTask(task string, priority int) error {
	if err := o.queue.Enqueue(task, priority); err != nil {
		return err
	}
	o.mem.Append(Source, memory.LevelInfo, "Task queued: "+task)
	o.bus.Publish(events.TaskQueuedEvent{Task: task, HeadOfLine: priority > 0, Timestamp: o.now()})
	return nil
}

// RemoveTask deletes the queued task at index i.
func (o *Orchestrator) RemoveTask(i int) (string, error) {
	task, err := o.queue.Remove(i)
	if err != nil {
		return "", err
	}
	o.mem.Append(Source, memory.LevelWarn, "Task removed: "+task)
	return task, nil
}

// MoveTask moves the queued task at from to index to.
func (o *Orchestrator) MoveTask(from, to int) error {
	if err := o.queue.Move(from, to); err != nil {
		return err
	}
	o.mem.Append(Source, memory.LevelInfo, fmt.Sprintf("Task moved from position %d to %d.", from, to))
	return nil
}

// Start marks the orchestrator running.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	o.running = true
	mode := o.cfg.Policy.Mode
	o.mu.Unlock()
	o.mem.Append(Source, memory.LevelSuccess, fmt.Sprintf("Orchestrator started in %s mode.", mode))
	o.logger.Info("orchestrator started", zap.String("mode", string(mode)))
}

// Stop marks the orchestrator stopped. Loops already in flight finish.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
	o.mem.Append(Source, memory.LevelWarn, "Orchestrator stopped.")
	o.logger.Info("orchestrator stopped")
}

// IsRunning reports whether Start was called more recently than Stop.
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// ShouldContinue reports whether the driving loop should tick again.
func (o *Orchestrator) ShouldContinue() bool {
	o.mu.Lock()
	running, iterations := o.running, o.iterations
	o.mu.Unlock()
	return o.cfg.Policy.shouldContinue(running, o.queue.Len(), iterations)
}

// IterationCount returns the number of ticks run while running.
func (o *Orchestrator) IterationCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.iterations
}

// SessionID returns the session identifier.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// Policy returns the mode policy.
func (o *Orchestrator) Policy() ModePolicy { return o.cfg.Policy }

// Queue returns the queued tasks in order.
func (o *Orchestrator) Queue() []string { return o.queue.Snapshot() }

// Memory returns the shared memory.
func (o *Orchestrator) Memory() *memory.Memory { return o.mem }

// Agents returns the roster's states in registration order.
func (o *Orchestrator) Agents() []agent.State {
	roster := o.roster()
	out := make([]agent.State, len(roster))
	for i, a := range roster {
		out[i] = a.State()
	}
	return out
}

// InFlight reports how many assignments are still running.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inFlight)
}

// StalledTask returns the head task that no registered agent accepts, if
// the last tick found one.
func (o *Orchestrator) StalledTask() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stalledTask, o.stalledTask != ""
}

func (o *Orchestrator) roster() []*agent.Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*agent.Agent(nil), o.agents...)
}

func capabilities(roster []*agent.Agent) []scheduler.Capability {
	caps := make([]scheduler.Capability, len(roster))
	for i, a := range roster {
		caps[i] = a.Capability()
	}
	return caps
}

// Tick runs one round: finished agents are re-armed, idle agents claim the
// head of the queue in passes until a pass claims nothing, and every claim
// then runs concurrently. Tick returns once every loop has succeeded,
// failed or timed out. Follow-ups queued by this tick's completions are
// picked up by the next tick. A stopped orchestrator skips the tick.
func (o *Orchestrator) Tick(ctx context.Context) TickResult {
	o.mu.Lock()
	if !o.running {
		iter := o.iterations
		o.mu.Unlock()
		return TickResult{Iteration: iter, Skipped: true}
	}
	o.iterations++
	iter := o.iterations
	o.mu.Unlock()

	roster := o.roster()
	o.rearm(roster)

	type claim struct {
		agent *agent.Agent
		task  string
	}
	var claims []claim
	for ctx.Err() == nil {
		n := 0
		for _, a := range roster {
			if task, ok := o.claim(a); ok {
				claims = append(claims, claim{agent: a, task: task})
				n++
			}
		}
		if n == 0 {
			break
		}
	}

	stalledTask, stalled := o.checkStall(roster)

	assigned := make([]Assignment, len(claims))
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.MaxConcurrent)
	for i, c := range claims {
		g.Go(func() error {
			assigned[i] = o.execute(ctx, c.agent, c.task)
			return nil
		})
	}
	_ = g.Wait()

	qlen := o.queue.Len()
	o.metrics.tick(qlen)
	o.bus.Publish(events.TickEvent{Iteration: iter, Assigned: len(assigned), QueueLen: qlen, Stalled: stalled, Timestamp: o.now()})
	o.logger.Debug("tick complete", zap.Int("iteration", iter), zap.Int("assigned", len(assigned)), zap.Int("queue", qlen))

	return TickResult{Iteration: iter, Assigned: assigned, Stalled: stalled, StalledTask: stalledTask}
}

// rearm returns finished agents that are not in flight to IDLE.
func (o *Orchestrator) rearm(roster []*agent.Agent) {
	for _, a := range roster {
		if !o.locks.TryLock(a.Name()) {
			continue
		}
		from := a.Status()
		if a.Rearm() {
			o.publishStatus(a.Name(), from, agent.StatusIdle)
		}
		o.locks.Unlock(a.Name())
	}
}

// claim locks a and takes the head task if a is idle and accepts it. On
// success the lock stays held until the assignment resolves.
func (o *Orchestrator) claim(a *agent.Agent) (string, bool) {
	if !o.locks.TryLock(a.Name()) {
		return "", false
	}
	if a.Status() != agent.StatusIdle {
		o.locks.Unlock(a.Name())
		return "", false
	}
	task, ok := o.queue.TakeReady(a.Capability())
	if !ok {
		o.locks.Unlock(a.Name())
		return "", false
	}
	o.mu.Lock()
	o.inFlight[a.Name()] = task
	o.mu.Unlock()
	return task, true
}

// checkStall records whether the head task has no taker in the roster.
// Entering the stalled state logs once.
func (o *Orchestrator) checkStall(roster []*agent.Agent) (string, bool) {
	head, stalled := scheduler.Stalled(o.queue, capabilities(roster))

	o.mu.Lock()
	prev := o.stalledTask
	if stalled {
		o.stalledTask = head
	} else {
		o.stalledTask = ""
	}
	o.mu.Unlock()

	if stalled && head != prev {
		o.mem.Append(Source, memory.LevelWarn, fmt.Sprintf("Queue STALLED: no agent accepts %q. Remove or reorder it.", head))
		o.bus.Publish(events.QueueStalledEvent{Task: head, Timestamp: o.now()})
		o.metrics.stall()
		o.logger.Warn("queue stalled", zap.String("task", head))
	}
	return head, stalled
}

// execute runs one assignment under the agent timeout. The caller holds the
// agent's lock; execute releases it.
func (o *Orchestrator) execute(ctx context.Context, a *agent.Agent, task string) Assignment {
	name := a.Name()
	capability := string(a.Capability())
	start := o.now()
	defer func() {
		o.mu.Lock()
		delete(o.inFlight, name)
		o.mu.Unlock()
		o.locks.Unlock(name)
	}()

	o.publishStatus(name, agent.StatusIdle, agent.StatusWorking)
	o.bus.Publish(events.TaskStartedEvent{Agent: name, Task: task, Timestamp: start})
	o.logger.Info("task started", zap.String("agent", name), zap.String("task", task))

	tctx, cancel := context.WithTimeout(ctx, o.cfg.AgentTimeout)
	defer cancel()

	// The loop is abandoned on timeout; a buffered channel lets it exit.
	done := make(chan agent.Outcome, 1)
	go func() { done <- a.Run(tctx, task) }()

	out, finished := awaitLoop(tctx, done)
	elapsed := o.now().Sub(start)
	res := Assignment{Agent: name, Task: task, Result: out.Result, Attempts: out.Attempts, Duration: elapsed}

	switch {
	case finished:
		res.Outcome = OutcomeSuccess
		if out.Status != agent.StatusSuccess {
			res.Outcome = OutcomeError
		}
		res.FollowUps = o.complete(ctx, a, task, out, elapsed)

	case ctx.Err() != nil:
		// Shutdown: the task goes back to the head so it is not lost.
		res.Outcome = OutcomeCancelled
		a.Abort(fmt.Sprintf("Agent %s cancelled: %v", name, context.Cause(ctx)))
		o.publishStatus(name, agent.StatusWorking, agent.StatusError)
		if err := o.queue.Enqueue(task, 1); err == nil {
			o.mem.Append(Source, memory.LevelWarn, "Task re-queued after cancellation: "+task)
		}
		o.bus.Publish(events.TaskFailedEvent{Agent: name, Task: task, Result: "cancelled", Duration: elapsed, Timestamp: o.now()})
		o.logger.Warn("task cancelled", zap.String("agent", name), zap.String("task", task))

	default:
		res.Outcome = OutcomeTimeout
		res.Result = fmt.Sprintf("Agent %s timeout after %s", name, o.cfg.AgentTimeout)
		a.Abort(res.Result)
		o.publishStatus(name, agent.StatusWorking, agent.StatusError)
		requeued := false
		if o.cfg.RequeueOnTimeout {
			requeued = o.queue.Enqueue(task, 1) == nil
			if requeued {
				o.mem.Append(Source, memory.LevelWarn, "Task re-queued after timeout: "+task)
			}
		}
		o.metrics.timeout(name)
		o.bus.Publish(events.TaskTimeoutEvent{Agent: name, Task: task, Timeout: o.cfg.AgentTimeout, Requeued: requeued, Timestamp: o.now()})
		o.logger.Warn("task timed out", zap.String("agent", name), zap.String("task", task), zap.Duration("timeout", o.cfg.AgentTimeout))
	}

	o.metrics.task(capability, res.Outcome, elapsed)
	return res
}

// awaitLoop waits for an agent loop or its deadline. An outcome that is
// already waiting when the deadline fires still counts. finished is false
// when the loop was cut short by the deadline or cancellation.
func awaitLoop(tctx context.Context, done <-chan agent.Outcome) (out agent.Outcome, finished bool) {
	select {
	case out = <-done:
		return out, settled(tctx, out)
	case <-tctx.Done():
	}
	select {
	case out = <-done:
		return out, settled(tctx, out)
	default:
		return agent.Outcome{}, false
	}
}

func settled(tctx context.Context, out agent.Outcome) bool {
	return !(out.Status == agent.StatusError && tctx.Err() != nil)
}

// complete publishes the outcome, applies the chain rule and commits.
func (o *Orchestrator) complete(ctx context.Context, a *agent.Agent, task string, out agent.Outcome, elapsed time.Duration) []string {
	name := a.Name()
	o.publishStatus(name, agent.StatusWorking, a.Status())

	if out.Status == agent.StatusSuccess {
		o.bus.Publish(events.TaskCompletedEvent{Agent: name, Task: task, Result: out.Result, Attempts: out.Attempts, Duration: elapsed, Timestamp: o.now()})
		o.logger.Info("task completed", zap.String("agent", name), zap.String("task", task), zap.Int("attempts", out.Attempts))
	} else {
		o.bus.Publish(events.TaskFailedEvent{Agent: name, Task: task, Result: out.Result, Attempts: out.Attempts, Duration: elapsed, Timestamp: o.now()})
		o.logger.Warn("task failed", zap.String("agent", name), zap.String("task", task), zap.String("result", out.Result))
	}

	followUps := o.chain.FollowUps(a.Capability(), task, out.Result)
	queued := make([]string, 0, len(followUps))
	for _, f := range followUps {
		if err := o.queue.Enqueue(f.Task, f.Priority()); err != nil {
			o.logger.Error("dropping follow-up", zap.String("task", f.Task), zap.Error(err))
			continue
		}
		queued = append(queued, f.Task)
		o.mem.Append(Source, memory.LevelInfo, fmt.Sprintf("%s queued follow-up: %s", name, f.Task))
		o.bus.Publish(events.TaskQueuedEvent{Task: f.Task, HeadOfLine: f.HeadOfLine, FollowUp: true, Timestamp: o.now()})
	}
	o.metrics.followUps(string(a.Capability()), len(queued))

	if o.cfg.AutoCommit && o.cfg.Committer != nil && a.Capability() == scheduler.CapabilityEngineer && out.Status == agent.StatusSuccess {
		o.commit(ctx, task)
	}
	return queued
}

func (o *Orchestrator) commit(ctx context.Context, task string) {
	if err := o.cfg.Committer.AddAll(ctx); err != nil {
		o.mem.Append(Source, memory.LevelWarn, fmt.Sprintf("Auto-commit failed: %v", err))
		return
	}
	hash, err := o.cfg.Committer.Commit(ctx, "dweebuild: "+task)
	if err != nil {
		o.mem.Append(Source, memory.LevelWarn, fmt.Sprintf("Auto-commit failed: %v", err))
		return
	}
	if hash == "" {
		o.mem.Append(Source, memory.LevelInfo, "Nothing to commit.")
		return
	}
	o.mem.Append(Source, memory.LevelSuccess, "Committed "+hash)
}

func (o *Orchestrator) publishStatus(name string, from, to agent.Status) {
	if from == to {
		return
	}
	o.bus.Publish(events.AgentStatusEvent{Agent: name, From: string(from), To: string(to), Timestamp: o.now()})
}

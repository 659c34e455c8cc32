package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule ticks every two seconds.
const DefaultSchedule = "@every 2s"

// ErrQueueStalled is returned by Driver.Run when the head task has no taker
// and nothing else can make progress.
var ErrQueueStalled = errors.New("queue stalled: no registered agent accepts the head task")

// DriverConfig configures a Driver.
type DriverConfig struct {
	// Schedule is a cron spec or descriptor such as "@every 2s".
	Schedule string
	// OnTick runs after every tick, on the ticking goroutine.
	OnTick func(TickResult)
	// KeepAlive keeps the driver ticking when the policy says stop or the
	// queue stalls, for front ends that add work while it runs. Run then
	// only returns when ctx is done.
	KeepAlive bool
	Logger    *zap.Logger
}

// Driver ticks an orchestrator on a cron schedule until its mode policy
// says to stop. Ticks never overlap: a tick still running when the next is
// due causes that one to be skipped.
type Driver struct {
	orc      *Orchestrator
	schedule cron.Schedule
	spec     string
	onTick   func(TickResult)
	keep     bool
	logger   *zap.Logger
}

// NewDriver validates the schedule and creates a driver.
func NewDriver(o *Orchestrator, cfg DriverConfig) (*Driver, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	sched, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parsing tick schedule %q: %w", cfg.Schedule, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{orc: o, schedule: sched, spec: cfg.Schedule, onTick: cfg.OnTick, keep: cfg.KeepAlive, logger: logger}, nil
}

// Run ticks once immediately and then on schedule. It returns nil when the
// mode policy stops, ErrQueueStalled when the queue cannot progress, or the
// context's error.
func (d *Driver) Run(ctx context.Context) error {
	if done, err := d.step(ctx); done {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan error, 1)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{d.logger.Sugar()})))
	c.Schedule(d.schedule, cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		if done, err := d.step(ctx); done {
			select {
			case result <- err:
			default:
			}
		}
	}))

	d.logger.Info("driver started", zap.String("schedule", d.spec))
	c.Start()
	defer func() { <-c.Stop().Done() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-result:
		return err
	}
}

// step runs one tick if the policy allows and reports whether to stop.
func (d *Driver) step(ctx context.Context) (bool, error) {
	if !d.orc.ShouldContinue() {
		return !d.keep, nil
	}
	res := d.orc.Tick(ctx)
	if d.onTick != nil {
		d.onTick(res)
	}
	if d.keep {
		return false, nil
	}
	if res.Stalled && len(res.Assigned) == 0 {
		return true, ErrQueueStalled
	}
	if !d.orc.ShouldContinue() {
		return true, nil
	}
	return false, nil
}

// cronLogger routes cron's logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrInvalidInterval = errors.New("interval must be positive")
	ErrDuplicateTask   = errors.New("task already registered")
	ErrUnknownTask     = errors.New("unknown task")
)

type State int

const (
	StateUnstarted State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Config struct {
	PollInterval time.Duration
	StopTimeout  time.Duration
	// Location is the single time zone used for daily fire times and
	// calendar-date comparisons. Defaults to time.Local.
	Location *time.Location
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Scheduler runs registered tasks from one background goroutine, polling
// every PollInterval. Tasks run sequentially in registration order.
type Scheduler struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	tasks  []*task
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(config Config, logger *slog.Logger) *Scheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = 5 * time.Second
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		config: config,
		logger: logger.With("component", "scheduler"),
	}
}

// AddTask registers fn to run when never run before or once interval has
// elapsed since its last run.
func (s *Scheduler) AddTask(fn TaskFunc, interval time.Duration, name string) error {
	if interval <= 0 {
		return fmt.Errorf("task %s: %w", name, ErrInvalidInterval)
	}
	if err := s.add(&task{name: name, fn: fn, interval: interval}); err != nil {
		return err
	}
	s.logger.Info("task added to scheduler", "task", name, "interval", interval)
	return nil
}

// AddDailyTask registers fn to run once per calendar day at or after at
// ("HH:MM", 24-hour).
func (s *Scheduler) AddDailyTask(fn TaskFunc, at string, name string) error {
	tod, err := ParseTimeOfDay(at)
	if err != nil {
		return fmt.Errorf("task %s: %w", name, err)
	}
	if err := s.add(&task{name: name, fn: fn, daily: &tod}); err != nil {
		return err
	}
	s.logger.Info("daily task added to scheduler", "task", name, "at", tod.String())
	return nil
}

func (s *Scheduler) add(t *task) error {
	if t.fn == nil {
		return fmt.Errorf("task %s: nil function", t.name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tasks {
		if existing.name == t.name {
			return fmt.Errorf("%w: %s", ErrDuplicateTask, t.name)
		}
	}
	s.tasks = append(s.tasks, t)
	return nil
}

// Start launches the polling goroutine. It logs a warning and does nothing
// when the scheduler is already running, has no tasks, or still has a loop
// from an earlier Start that has not exited. Cancelling ctx stops the
// scheduler, and ctx is handed to every task.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		s.logger.Warn("scheduler is already running")
		return false
	}
	if s.loopAlive() {
		s.logger.Warn("previous scheduler loop has not exited yet")
		return false
	}
	if len(s.tasks) == 0 {
		s.logger.Warn("no tasks registered with scheduler")
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.state = StateRunning

	go s.run(loopCtx, done)

	s.logger.Info("task scheduler started", "tasks", len(s.tasks), "poll_interval", s.config.PollInterval)
	return true
}

// Stop signals the loop and waits up to StopTimeout for it to exit. A task
// in flight is not interrupted. Calling Stop on a scheduler that is not
// running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.state = StateStopped
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
		s.logger.Info("task scheduler stopped")
	case <-time.After(s.config.StopTimeout):
		s.logger.Warn("task scheduler did not stop in time", "timeout", s.config.StopTimeout)
	}
}

// loopAlive reports whether the goroutine from the last Start is still
// running. Callers hold mu.
func (s *Scheduler) loopAlive() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		if s.done == done {
			s.state = StateStopped
		}
		s.mu.Unlock()
	}()

	s.logger.Debug("scheduler loop started")

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		s.RunPending(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunPending runs every task that is due at the current clock reading and
// returns how many ran. The loop calls it once per poll.
func (s *Scheduler) RunPending(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	tasks := make([]*task, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.Unlock()

	ran := 0
	for _, t := range tasks {
		s.mu.Lock()
		due := t.due(now)
		s.mu.Unlock()
		if !due {
			continue
		}

		s.execute(ctx, t)

		s.mu.Lock()
		t.lastRun = now
		s.mu.Unlock()
		ran++
	}
	return ran
}

// RunTask runs the named task immediately regardless of its schedule and
// records the run.
func (s *Scheduler) RunTask(ctx context.Context, name string) error {
	s.mu.Lock()
	var found *task
	for _, t := range s.tasks {
		if t.name == name {
			found = t
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	now := s.now()
	err := s.execute(ctx, found)

	s.mu.Lock()
	found.lastRun = now
	s.mu.Unlock()
	return err
}

// Tasks describes the registered tasks in registration order.
func (s *Scheduler) Tasks() []TaskInfo {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, TaskInfo{
			Name:     t.name,
			Schedule: t.schedule(),
			LastRun:  t.lastRun,
			NextRun:  t.next(now),
		})
	}
	return out
}

// execute runs one task, converting a panic into an error. Failures are
// logged and never propagate to other tasks.
func (s *Scheduler) execute(ctx context.Context, t *task) (err error) {
	log := s.logger.With("task", t.name)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			log.ErrorContext(ctx, "error in scheduled task", "error", err.Error())
			return
		}
		log.InfoContext(ctx, "scheduled task finished", "duration", time.Since(start))
	}()

	log.InfoContext(ctx, "running scheduled task", "schedule", t.schedule())
	return t.fn(ctx)
}

func (s *Scheduler) now() time.Time {
	return s.config.Now().In(s.config.Location)
}

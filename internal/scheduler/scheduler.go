// Package scheduler runs registered tasks on fixed intervals, checked on a
// periodic tick driven by robfig/cron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/logger"
	"github.com/spigell/job-autopilot/internal/metrics"
)

// DefaultCheckInterval is the tick period used when Start gets zero.
const DefaultCheckInterval = 60 * time.Second

var (
	ErrUnknownTask   = errors.New("unknown task")
	ErrDuplicateTask = errors.New("task already registered")
	ErrRunning       = errors.New("scheduler already running")
)

type Handler func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	handler  Handler
	enabled  bool
	running  bool
	lastRun  time.Time
	lastErr  error
	lastTook time.Duration
}

// TaskStatus is a snapshot of one task.
type TaskStatus struct {
	Name         string        `json:"name"`
	Interval     time.Duration `json:"interval"`
	Enabled      bool          `json:"enabled"`
	Running      bool          `json:"running"`
	LastRun      time.Time     `json:"lastRun"`
	NextRun      time.Time     `json:"nextRun"`
	LastDuration time.Duration `json:"lastDuration"`
	LastError    string        `json:"lastError,omitempty"`
}

type Scheduler struct {
	mu         sync.Mutex
	tasks      []*task
	cron       *cron.Cron
	cancel     context.CancelFunc
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	runOnStart bool
}

type Option func(*Scheduler)

// WithRunOnStart makes tasks registered afterwards due on the first tick
// instead of one interval after registration.
func WithRunOnStart(enabled bool) Option {
	return func(s *Scheduler) { s.runOnStart = enabled }
}

func New(log *zap.Logger, m *metrics.Metrics, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:  logger.OrNop(log),
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds an enabled task. Its first run is due one interval after
// registration, or on the first tick with WithRunOnStart.
func (s *Scheduler) Register(name string, interval time.Duration, handler Handler) error {
	if interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.find(name) != nil {
		return fmt.Errorf("%s: %w", name, ErrDuplicateTask)
	}
	t := &task{
		name:     name,
		interval: interval,
		handler:  handler,
		enabled:  true,
	}
	if !s.runOnStart {
		t.lastRun = s.now()
	}
	s.tasks = append(s.tasks, t)
	return nil
}

// Start begins ticking every checkInterval until Stop or until ctx is done.
func (s *Scheduler) Start(ctx context.Context, checkInterval time.Duration) error {
	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return ErrRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithLogger(cronLogger{s.logger.Sugar()}))
	c.Schedule(cron.Every(checkInterval), cron.FuncJob(func() { s.tick(runCtx) }))
	c.Start()

	s.cron, s.cancel = c, cancel
	s.logger.Info("scheduler started", zap.Duration("check_interval", checkInterval), zap.Int("tasks", len(s.tasks)))

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts ticking and waits for running ticks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) Enable(name string) error  { return s.setEnabled(name, true) }
func (s *Scheduler) Disable(name string) error { return s.setEnabled(name, false) }

func (s *Scheduler) setEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.find(name)
	if t == nil {
		return fmt.Errorf("%s: %w", name, ErrUnknownTask)
	}
	t.enabled = enabled
	return nil
}

// RunNow runs the task immediately, regardless of its schedule and enabled
// flag, and returns the handler error.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	t := s.find(name)
	if t == nil {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", name, ErrUnknownTask)
	}
	if t.running {
		s.mu.Unlock()
		return fmt.Errorf("task %s is already running", name)
	}
	t.lastRun = s.now()
	t.running = true
	s.mu.Unlock()

	return s.run(ctx, t)
}

// Status reports every task in registration order.
func (s *Scheduler) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		st := TaskStatus{
			Name:         t.name,
			Interval:     t.interval,
			Enabled:      t.enabled,
			Running:      t.running,
			LastRun:      t.lastRun,
			LastDuration: t.lastTook,
		}
		// A zero NextRun means the next tick.
		if !t.lastRun.IsZero() {
			st.NextRun = t.lastRun.Add(t.interval)
		}
		if t.lastErr != nil {
			st.LastError = t.lastErr.Error()
		}
		out = append(out, st)
	}
	return out
}

// tick runs every due task in registration order. lastRun is stamped before
// the handler starts so an overlapping tick does not fire it again.
func (s *Scheduler) tick(ctx context.Context) {
	for _, t := range s.due() {
		if ctx.Err() != nil {
			return
		}
		_ = s.run(ctx, t)
	}
}

func (s *Scheduler) due() []*task {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var out []*task
	for _, t := range s.tasks {
		if !t.enabled || t.running || now.Sub(t.lastRun) < t.interval {
			continue
		}
		t.lastRun = now
		t.running = true
		out = append(out, t)
	}
	return out
}

func (s *Scheduler) run(ctx context.Context, t *task) (err error) {
	log := s.logger.With(zap.String(logger.FieldTask, t.name))
	started := s.now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("task %s panicked: %v", t.name, r)
		}

		took := s.now().Sub(started)
		s.mu.Lock()
		t.running = false
		t.lastErr = err
		t.lastTook = took
		s.mu.Unlock()

		s.metrics.TaskRun(t.name, err, took)
		if err != nil {
			log.Error("task failed", zap.Error(err), zap.Duration("took", took))
			return
		}
		log.Info("task finished", zap.Duration("took", took))
	}()

	log.Debug("task started")
	return t.handler(ctx)
}

func (s *Scheduler) find(name string) *task {
	for _, t := range s.tasks {
		if t.name == name {
			return t
		}
	}
	return nil
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

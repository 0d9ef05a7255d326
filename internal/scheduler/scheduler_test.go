package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestScheduler() (*Scheduler, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(zap.NewNop(), nil)
	s.now = c.now
	return s, c
}

func counter(n *int32) Handler {
	return func(context.Context) error {
		atomic.AddInt32(n, 1)
		return nil
	}
}

func TestTaskRunsAtFirstTickAfterInterval(t *testing.T) {
	s, c := newTestScheduler()
	var runs int32
	if err := s.Register("auto-search", 10*time.Minute, counter(&runs)); err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx := context.Background()

	c.advance(9*time.Minute + 59*time.Second)
	s.tick(ctx)
	if runs != 0 {
		t.Fatalf("task ran before its interval elapsed")
	}

	c.advance(time.Second)
	s.tick(ctx)
	if runs != 1 {
		t.Fatalf("expected one run at t0+interval, got %d", runs)
	}

	c.advance(5 * time.Minute)
	s.tick(ctx)
	if runs != 1 {
		t.Fatalf("task ran again before the next interval, got %d runs", runs)
	}

	c.advance(5 * time.Minute)
	s.tick(ctx)
	if runs != 2 {
		t.Fatalf("expected second run, got %d", runs)
	}
}

func TestRunOnStartMakesTasksDueOnFirstTick(t *testing.T) {
	s, _ := newTestScheduler()
	WithRunOnStart(true)(s)
	var runs int32
	if err := s.Register("auto-apply", 2*time.Hour, counter(&runs)); err != nil {
		t.Fatalf("register: %v", err)
	}

	if st := s.Status()[0]; !st.NextRun.IsZero() {
		t.Fatalf("expected the task to be due on the next tick, got next run %s", st.NextRun)
	}

	s.tick(context.Background())
	if runs != 1 {
		t.Fatalf("expected a run on the first tick, got %d", runs)
	}

	s.tick(context.Background())
	if runs != 1 {
		t.Fatalf("task ran again before its interval, got %d runs", runs)
	}
}

func TestDisabledTaskDoesNotRun(t *testing.T) {
	s, c := newTestScheduler()
	var runs int32
	_ = s.Register("auto-apply", time.Minute, counter(&runs))

	if err := s.Disable("auto-apply"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	c.advance(time.Hour)
	s.tick(context.Background())
	if runs != 0 {
		t.Fatal("disabled task ran")
	}

	_ = s.Enable("auto-apply")
	s.tick(context.Background())
	if runs != 1 {
		t.Fatalf("expected run after enabling, got %d", runs)
	}
}

func TestFailuresAreIsolated(t *testing.T) {
	s, c := newTestScheduler()
	core, logs := observer.New(zap.ErrorLevel)
	s.logger = zap.New(core)

	var runs int32
	_ = s.Register("panics", time.Minute, func(context.Context) error { panic("boom") })
	_ = s.Register("fails", time.Minute, func(context.Context) error { return errors.New("store down") })
	_ = s.Register("works", time.Minute, counter(&runs))

	c.advance(time.Minute)
	s.tick(context.Background())

	if runs != 1 {
		t.Fatal("a failing task stopped the tick")
	}
	if logs.FilterMessage("task panicked").Len() != 1 {
		t.Fatal("expected the panic to be logged")
	}

	status := s.Status()
	if len(status) != 3 || status[0].LastError == "" || status[1].LastError != "store down" || status[2].LastError != "" {
		t.Fatalf("unexpected status %+v", status)
	}
	if status[0].Running {
		t.Fatal("panicked task still marked running")
	}
}

func TestRunNow(t *testing.T) {
	s, c := newTestScheduler()
	var runs int32
	_ = s.Register("auto-search", time.Hour, counter(&runs))

	c.advance(time.Minute)
	if err := s.RunNow(context.Background(), "auto-search"); err != nil {
		t.Fatalf("run now: %v", err)
	}
	if runs != 1 {
		t.Fatal("RunNow did not run the handler")
	}
	if got := s.Status()[0].NextRun; !got.Equal(c.now().Add(time.Hour)) {
		t.Fatalf("RunNow must reset the schedule, next run %s", got)
	}

	if err := s.RunNow(context.Background(), "missing"); !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
	if err := s.Enable("missing"); !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestScheduler()
	if err := s.Register("a", 0, counter(new(int32))); err == nil {
		t.Fatal("expected error for zero interval")
	}
	_ = s.Register("a", time.Minute, counter(new(int32)))
	if err := s.Register("a", time.Minute, counter(new(int32))); !errors.Is(err, ErrDuplicateTask) {
		t.Fatalf("expected ErrDuplicateTask, got %v", err)
	}
}

func TestStartTicks(t *testing.T) {
	s := New(zap.NewNop(), nil)
	ran := make(chan struct{}, 1)
	_ = s.Register("quick", time.Nanosecond, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx, time.Second); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	if err := s.Start(ctx, time.Second); !errors.Is(err, ErrRunning) {
		t.Fatalf("expected ErrRunning, got %v", err)
	}

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run within 5s")
	}
}

package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pishocker/internal/eventbus"
	logx "pishocker/pkg/logx"
)

func newTestEngine(t *testing.T, cfg Config) (*Service, eventbus.Bus) {
	t.Helper()
	bus := eventbus.New()
	s := New(cfg, logx.Nop(), bus)
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s, bus
}

func TestEnqueue_RunsEveryTask(t *testing.T) {
	s, _ := newTestEngine(t, Config{Enabled: true, Workers: 2})

	const n = 200
	var ran atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		err := s.Enqueue(Task{Name: "count", Run: func(ctx context.Context) error {
			defer wg.Done()
			ran.Add(1)
			time.Sleep(time.Millisecond)
			return nil
		}})
		if err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	wg.Wait()
	if got := ran.Load(); got != n {
		t.Fatalf("expected %d runs, got %d", n, got)
	}
	if snap := s.Snapshot(); snap.Accepted != n {
		t.Fatalf("expected %d accepted, got %d", n, snap.Accepted)
	}
}

func TestEnqueue_DoesNotBlockWhenWorkersBusy(t *testing.T) {
	s, _ := newTestEngine(t, Config{Enabled: true, Workers: 1})

	release := make(chan struct{})
	defer close(release)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			_ = s.Enqueue(Task{Name: "slow", Run: func(ctx context.Context) error {
				<-release
				return nil
			}})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("enqueue blocked while workers were busy")
	}
}

func TestExec_PanicBecomesFailure(t *testing.T) {
	s, bus := newTestEngine(t, Config{Enabled: true, Workers: 1})
	events, unsub := bus.Subscribe(8)
	defer unsub()

	if err := s.Enqueue(Task{Name: "boom", Run: func(ctx context.Context) error { panic("kaboom") }}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type != eventbus.TaskFailed {
				continue
			}
			te, ok := ev.Data.(TaskEvent)
			if !ok || te.Name != "boom" || te.Error == "" {
				t.Fatalf("unexpected failure event: %+v", ev.Data)
			}
			if snap := s.Snapshot(); snap.Panics != 1 || snap.Failed != 1 {
				t.Fatalf("unexpected counters: %+v", snap)
			}
			return
		case <-deadline:
			t.Fatalf("no task.failed event")
		}
	}
}

func TestExec_AppliesTimeout(t *testing.T) {
	s, _ := newTestEngine(t, Config{Enabled: true, Workers: 1, DefaultTimeout: 20 * time.Millisecond})

	got := make(chan error, 1)
	_ = s.Enqueue(Task{Name: "wait", Run: func(ctx context.Context) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	}})
	select {
	case err := <-got:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout not applied")
	}
}

func TestEnqueue_Errors(t *testing.T) {
	disabled := New(Config{Enabled: false}, logx.Nop(), nil)
	disabled.Start(context.Background())
	if err := disabled.Enqueue(Task{Name: "x", Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}

	stopped := New(Config{Enabled: true}, logx.Nop(), nil)
	if err := stopped.Enqueue(Task{Name: "x", Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}

	if err := stopped.Enqueue(Task{Name: "x"}); err == nil {
		t.Fatalf("expected error for nil Run")
	}
	if err := stopped.Enqueue(Task{Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestStop_DrainsQueuedTasks(t *testing.T) {
	s := New(Config{Enabled: true, Workers: 1}, logx.Nop(), nil)
	s.Start(context.Background())

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		_ = s.Enqueue(Task{Name: "drain", Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)

	if got := ran.Load(); got != 10 {
		t.Fatalf("expected queued tasks to drain, ran %d", got)
	}
	if err := s.Enqueue(Task{Name: "late", Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped after stop, got %v", err)
	}
}

func TestHistory_IsBounded(t *testing.T) {
	s := New(Config{Enabled: true, Workers: 1, HistorySize: 3}, logx.Nop(), nil)
	s.Start(context.Background())
	for i := 0; i < 10; i++ {
		_ = s.Enqueue(Task{Name: "h", Run: func(context.Context) error { return nil }})
	}
	s.Stop(context.Background())

	if got := len(s.Snapshot().History); got != 3 {
		t.Fatalf("expected 3 history items, got %d", got)
	}
}

func TestApply_RestartsOnWorkerChange(t *testing.T) {
	s, _ := newTestEngine(t, Config{Enabled: true, Workers: 1})
	s.Apply(context.Background(), Config{Enabled: true, Workers: 4})

	snap := s.Snapshot()
	if !snap.Running || snap.Workers != 4 {
		t.Fatalf("unexpected snapshot after apply: %+v", snap)
	}

	s.Apply(context.Background(), Config{Enabled: false, Workers: 4})
	if s.Snapshot().Running {
		t.Fatalf("engine should stop when disabled")
	}
}

func TestApply_WorkerChangeKeepsAcceptingTasks(t *testing.T) {
	s, _ := newTestEngine(t, Config{Enabled: true, Workers: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	if err := s.Enqueue(Task{Name: "slow", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}); err != nil {
		t.Fatalf("enqueue slow: %v", err)
	}
	<-started

	applied := make(chan struct{})
	go func() {
		s.Apply(context.Background(), Config{Enabled: true, Workers: 2})
		close(applied)
	}()
	select {
	case <-applied:
	case <-time.After(time.Second):
		close(release)
		t.Fatalf("apply blocked on a busy worker")
	}

	ran := make(chan struct{})
	if err := s.Enqueue(Task{Name: "dispatch", Run: func(ctx context.Context) error {
		close(ran)
		return nil
	}}); err != nil {
		close(release)
		t.Fatalf("enqueue during worker-count change: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		close(release)
		t.Fatalf("task queued after resize did not run while the old pool was busy")
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
	if snap := s.Snapshot(); snap.Running || snap.InFlight != 0 {
		t.Fatalf("stop left work behind: %+v", snap)
	}
}

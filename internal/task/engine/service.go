package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/workerpool"

	"pishocker/internal/eventbus"
	logx "pishocker/pkg/logx"
)

const (
	defaultWorkers     = 8
	defaultHistorySize = 200
)

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	bus eventbus.Bus

	pool     *workerpool.WorkerPool
	runCtx   context.Context
	cancel   context.CancelFunc
	stopping bool
	// retiring counts pools replaced by a resize that are still draining.
	retiring sync.WaitGroup

	inFlight atomic.Int64
	accepted atomic.Uint64
	failed   atomic.Uint64
	panics   atomic.Uint64

	hmu     sync.Mutex
	history []HistoryItem

	idSeq atomic.Uint64
}

type queuedTask struct {
	task       Task
	enqueuedAt time.Time
	timeout    time.Duration
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Service{cfg: normalize(cfg), log: log, bus: bus}
}

func normalize(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	if cfg.DefaultTimeout < 0 {
		cfg.DefaultTimeout = 0
	}
	return cfg
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps the engine config. A worker-count change swaps in a fresh pool and
// retires the old one in the background, so Enqueue keeps accepting tasks throughout.
// Disabling stops the engine; enabling starts it.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	cfg = normalize(cfg)
	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	running := s.pool != nil && !s.stopping
	var retired *workerpool.WorkerPool
	if running && cfg.Enabled && prev.Workers != cfg.Workers {
		retired = s.pool
		s.pool = workerpool.New(cfg.Workers)
		s.retiring.Add(1)
	}
	s.mu.Unlock()

	switch {
	case retired != nil:
		s.log.Info("task engine resized", logx.Int("workers", cfg.Workers), logx.Int("previous", prev.Workers))
		go func() {
			defer s.retiring.Done()
			retired.StopWait()
		}()
	case running && !cfg.Enabled:
		s.Stop(ctx)
	case !running && cfg.Enabled && prev.Enabled != cfg.Enabled:
		s.Start(ctx)
	}
}

// Start is idempotent. Tasks run under a context derived from ctx.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.pool != nil {
		return
	}
	// Tasks must outlive a canceled parent long enough for Stop to drain them.
	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.pool = workerpool.New(s.cfg.Workers)
	s.stopping = false
	s.log.Info("task engine started", logx.Int("workers", s.cfg.Workers))
}

// Stop waits for queued and running tasks to finish. If ctx expires first the
// remaining tasks see their context canceled and Stop returns.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	pool := s.pool
	cancel := s.cancel
	if pool == nil || s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		pool.StopWait()
		s.retiring.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("task engine stopped")
	case <-ctx.Done():
		s.log.Warn("task engine stop timed out", logx.Err(ctx.Err()), logx.Int64("in_flight", s.inFlight.Load()))
		cancel()
		<-done
	}
	cancel()

	s.mu.Lock()
	s.pool = nil
	s.runCtx = nil
	s.cancel = nil
	s.stopping = false
	s.mu.Unlock()
}

// Enqueue hands the task to the pool. It never blocks and never drops a task
// while the engine is running.
func (s *Service) Enqueue(t Task) error {
	if t.Run == nil {
		return errors.New("task Run is nil")
	}
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return errors.New("task Name is required")
	}
	t.Name = name

	now := time.Now()
	if strings.TrimSpace(t.ID) == "" {
		t.ID = s.newTaskID(now)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled {
		return ErrDisabled
	}
	if s.pool == nil {
		return ErrStopped
	}
	if s.stopping {
		return ErrStopping
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	qt := queuedTask{task: t, enqueuedAt: now, timeout: timeout}
	runCtx := s.runCtx
	s.accepted.Add(1)
	s.pool.Submit(func() { s.execOne(runCtx, qt) })
	return nil
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	cfg := s.cfg
	pool := s.pool
	s.mu.Unlock()

	waiting := 0
	if pool != nil {
		waiting = pool.WaitingQueueSize()
	}

	s.hmu.Lock()
	h := make([]HistoryItem, len(s.history))
	copy(h, s.history)
	s.hmu.Unlock()

	return Snapshot{
		Enabled:        cfg.Enabled,
		Running:        pool != nil,
		Workers:        cfg.Workers,
		Waiting:        waiting,
		InFlight:       s.inFlight.Load(),
		Accepted:       s.accepted.Load(),
		Failed:         s.failed.Load(),
		Panics:         s.panics.Load(),
		DefaultTimeout: cfg.DefaultTimeout,
		History:        h,
	}
}

func (s *Service) newTaskID(now time.Time) string {
	seq := s.idSeq.Add(1)
	return fmt.Sprintf("tsk-%x-%x", now.UnixNano(), seq)
}

func (s *Service) record(item HistoryItem) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()
}

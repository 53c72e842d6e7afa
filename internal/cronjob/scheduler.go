package cronjob

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tgifai/macmate/internal/pkg/logs"
	mprom "github.com/tgifai/macmate/internal/pkg/prometheus"
)

const defaultPollInterval = 30 * time.Second

// Scheduler polls the store and executes due tasks one at a time.
type Scheduler struct {
	store    *Store
	exec     *Executor
	interval time.Duration
	now      func() time.Time

	// execMu serialises executions between scans and RunNow.
	execMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(store *Store, exec *Executor, pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Scheduler{
		store:    store,
		exec:     exec,
		interval: pollInterval,
		now:      time.Now,
	}
}

func (s *Scheduler) Store() *Store {
	return s.store
}

// Start begins the scan loop. The first scan runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)

	logs.CtxInfo(ctx, "[cronjob] scheduler started (poll=%s, tasks=%d)", s.interval, s.store.Stats().Total)
}

// Stop ends the loop. A task already executing finishes first unless ctx
// expires.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		logs.CtxWarn(ctx, "[cronjob] stop timed out waiting for the running task")
	}
	logs.CtxInfo(ctx, "[cronjob] scheduler stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	// a cancelled parent ends the loop without Stop
	defer func() {
		s.mu.Lock()
		if s.done == done {
			s.cancel()
			s.cancel, s.done = nil, nil
		}
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

// scan executes every task due at the scan's start and returns how many ran.
func (s *Scheduler) scan(ctx context.Context) int {
	defer func() {
		if rec := recover(); rec != nil {
			logs.CtxError(ctx, "[cronjob] scan panicked: %v", rec)
		}
	}()

	now := s.now()
	ran := 0
	for _, task := range s.store.ListDue(now) {
		if ctx.Err() != nil {
			break
		}
		if s.runDue(ctx, task.ID, now) {
			ran++
		}
	}

	mprom.SchedulerScans.Inc()
	st := s.store.Stats()
	mprom.Tasks.WithLabelValues("enabled").Set(float64(st.Enabled))
	mprom.Tasks.WithLabelValues("disabled").Set(float64(st.Total - st.Enabled))
	return ran
}

// runDue re-reads the task under the execution lock so a toggle or delete
// made since the snapshot wins.
func (s *Scheduler) runDue(ctx context.Context, id string, now time.Time) (ran bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logs.CtxError(ctx, "[cronjob] task %s crashed the scan: %v", id, rec)
		}
	}()

	s.execMu.Lock()
	defer s.execMu.Unlock()

	task, ok := s.store.Get(id)
	if !ok || !task.Due(now) {
		return false
	}
	logs.CtxInfo(ctx, "[cronjob] task %s is due, executing", id)
	_ = s.exec.Execute(context.WithoutCancel(ctx), task)
	return true
}

// RunNow executes a task immediately regardless of its schedule or enabled
// flag.
func (s *Scheduler) RunNow(ctx context.Context, id string) error {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	task, ok := s.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return s.exec.Execute(ctx, task)
}

type Status struct {
	Running      bool   `json:"running"`
	TotalTasks   int    `json:"total_tasks"`
	EnabledTasks int    `json:"enabled_tasks"`
	TasksFile    string `json:"tasks_file"`
}

func (s *Scheduler) Status() Status {
	st := s.store.Stats()
	return Status{
		Running:      s.Running(),
		TotalTasks:   st.Total,
		EnabledTasks: st.Enabled,
		TasksFile:    s.store.Path(),
	}
}

// Package scheduler re-indexes corpus roots on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// IndexFunc runs one index pass over a corpus root.
type IndexFunc func(ctx context.Context, root string) error

// ErrStopped is returned by Trigger after Stop.
var ErrStopped = errors.New("scheduler is stopped")

// parser accepts standard five-field expressions and @descriptors.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// RootStatus is a snapshot of one scheduled root.
type RootStatus struct {
	Root      string
	Schedule  string
	Running   bool
	LastRun   time.Time // Zero until the first successful pass
	NextRun   time.Time
	LastError string
}

type job struct {
	entry    cron.EntryID
	schedule string
	running  bool
	lastRun  time.Time
	lastErr  error
}

// Scheduler runs IndexFunc for each added root on its schedule. A root is
// never indexed by two passes at once; a tick that arrives while a pass is
// still running is skipped. Passes for different roots queue behind each
// other, since they share one database.
type Scheduler struct {
	cron   *cron.Cron
	index  IndexFunc
	logger *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	started bool
	stopped bool

	passMu sync.Mutex // held for the duration of a pass

	ctx    context.Context // cancelled on Stop
	cancel context.CancelFunc
	wg     sync.WaitGroup // running passes
}

// New creates a Scheduler that calls index on each tick.
func New(index IndexFunc) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithParser(parser)),
		index:  index,
		logger: slog.Default(),
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// WithLogger sets the logger for the scheduler.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// AddRoot schedules root with the given cron expression, replacing any
// existing schedule for it.
func (s *Scheduler) AddRoot(root, cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.cron.AddFunc(cronExpr, func() { s.tick(root) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	if old, ok := s.jobs[root]; ok {
		s.cron.Remove(old.entry)
		old.entry = entry
		old.schedule = cronExpr
	} else {
		s.jobs[root] = &job{entry: entry, schedule: cronExpr}
	}

	s.logger.Info("scheduled index",
		"root", root,
		"schedule", cronExpr,
		"next_run", s.cron.Entry(entry).Next)
	return nil
}

// RemoveRoot removes the schedule for root.
func (s *Scheduler) RemoveRoot(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[root]; ok {
		s.cron.Remove(j.entry)
		delete(s.jobs, root)
		s.logger.Info("removed schedule", "root", root)
	}
}

// IsScheduled reports whether root has been added.
func (s *Scheduler) IsScheduled(root string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[root]
	return ok
}

// Start begins executing scheduled passes.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.started = true
	n := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "roots", n)
}

// IsRunning returns true if the scheduler has been started and not yet stopped.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.stopped
}

// Stop stops scheduling, cancels the context of running passes and returns
// a context that is done once they have all returned.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopping")

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronCtx := s.cron.Stop()
	s.cancel()

	done, markDone := context.WithCancel(context.Background())
	go func() {
		<-cronCtx.Done()
		s.wg.Wait()
		markDone()
	}()
	return done
}

// Trigger starts a pass for root immediately, outside its schedule.
func (s *Scheduler) Trigger(root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	j, ok := s.jobs[root]
	if !ok {
		return fmt.Errorf("root %s is not scheduled", root)
	}
	if j.running {
		return fmt.Errorf("index already running for %s", root)
	}
	s.begin(j)
	go s.run(root, j)
	return nil
}

// tick is the cron callback.
func (s *Scheduler) tick(root string) {
	s.mu.Lock()
	j, ok := s.jobs[root]
	if !ok || s.stopped || j.running {
		s.mu.Unlock()
		if ok && j.running {
			s.logger.Debug("skipping tick, previous pass still running", "root", root)
		}
		return
	}
	s.begin(j)
	s.mu.Unlock()

	s.run(root, j)
}

// begin marks j as running. The caller holds s.mu.
func (s *Scheduler) begin(j *job) {
	j.running = true
	s.wg.Add(1)
}

func (s *Scheduler) run(root string, j *job) {
	defer s.wg.Done()

	s.passMu.Lock()
	defer s.passMu.Unlock()

	start := time.Now()
	err := s.ctx.Err()
	if err == nil {
		s.logger.Info("starting scheduled index", "root", root)
		err = s.index(s.ctx, root)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	j.running = false
	j.lastErr = err
	if err != nil {
		s.logger.Error("scheduled index failed", "root", root, "duration", time.Since(start), "error", err)
		return
	}
	j.lastRun = time.Now()
	s.logger.Info("scheduled index completed", "root", root, "duration", time.Since(start))
}

// Status returns a snapshot of every scheduled root, sorted by root.
func (s *Scheduler) Status() []RootStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]RootStatus, 0, len(s.jobs))
	for root, j := range s.jobs {
		st := RootStatus{
			Root:     root,
			Schedule: j.schedule,
			Running:  j.running,
			LastRun:  j.lastRun,
			NextRun:  s.cron.Entry(j.entry).Next,
		}
		if j.lastErr != nil {
			st.LastError = j.lastErr.Error()
		}
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(a, b int) bool { return statuses[a].Root < statuses[b].Root })
	return statuses
}

// ValidateCronExpr validates a cron expression without scheduling anything.
func ValidateCronExpr(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

package sitecheck

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled execution.
type Job func(ctx context.Context) error

// Scheduler repeats a Job on a cron schedule. Runs never overlap; a run
// that is still going when the next one is due delays it.
type Scheduler struct {
	spec    string
	job     Job
	cron    *cron.Cron
	logger  *zap.Logger
	mu      sync.Mutex
	running bool
	entryID cron.EntryID
	lastErr error
	runs    int
}

// NewScheduler creates a scheduler for spec, which accepts standard
// five-field expressions and descriptors such as "@daily" or "@every 1h".
func NewScheduler(spec string, job Job, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		spec:   spec,
		job:    job,
		cron:   cron.New(cron.WithChain(cron.DelayIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
}

// Start registers the job and starts the cron loop. ctx is passed to every
// run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.spec, func() {
		s.run(ctx)
	})
	if err != nil {
		return err
	}

	s.entryID = entryID
	s.cron.Start()
	s.running = true

	s.logger.Info("scheduler started",
		zap.String("schedule", s.spec),
		zap.Time("next_run", s.cron.Entry(s.entryID).Next))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish. The job
// is unregistered so that a later Start schedules it exactly once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	entryID := s.entryID
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.cron.Remove(entryID)
	s.logger.Info("scheduler stopped")
}

// NextRun returns the next scheduled run time, or zero if not running.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Runs returns how many runs completed and the error of the latest one.
func (s *Scheduler) Runs() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.lastErr
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	s.logger.Info("scheduled run starting")
	err := s.job(ctx)

	s.mu.Lock()
	s.runs++
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	s.logger.Info("scheduled run finished", zap.Duration("elapsed", time.Since(start)))
}

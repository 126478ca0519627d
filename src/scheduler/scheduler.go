package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rank-observer/src/logger"

	"github.com/robfig/cron/v3"
)

// TickFunc is one unit of scheduled work.
type TickFunc func(ctx context.Context)

// TickScheduler runs a job on a fixed interval, never two at once.
// The first run happens as soon as the scheduler starts.
type TickScheduler struct {
	Interval time.Duration
	Gate     func() bool // optional, a false result skips the tick
	Logger   *logger.Logger

	job        TickFunc
	cron       *cron.Cron
	entryID    cron.EntryID
	ctx        context.Context
	cancelFunc context.CancelFunc
	skipped    atomic.Int64
	runMu      sync.Mutex // held while the job runs
	mu         sync.Mutex
	isRunning  bool
}

// -----------------------------------------------------------------------------

func NewTickScheduler(interval time.Duration, job TickFunc, log *logger.Logger) *TickScheduler {
	return &TickScheduler{
		Interval: interval,
		Logger:   log,
		job:      job,
	}
}

// -----------------------------------------------------------------------------

// Start schedules the job and fires it once immediately.
func (s *TickScheduler) Start(parent context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if s.Interval < time.Second {
		return fmt.Errorf("interval %s is below one second", s.Interval)
	}

	s.ctx, s.cancelFunc = context.WithCancel(parent)
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(s.Logger)),
		cron.SkipIfStillRunning(cron.PrintfLogger(s.Logger)),
	))
	s.entryID = s.cron.Schedule(cron.Every(s.Interval), cron.FuncJob(s.fire))
	s.cron.Start()
	s.isRunning = true

	s.Logger.Info("Scheduler started, tick every %s", s.Interval)
	go s.RunNow()
	return nil
}

// -----------------------------------------------------------------------------

// RunNow fires the job outside the schedule. It is dropped when a run is
// already in progress.
func (s *TickScheduler) RunNow() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	wrapped := s.cron.Entry(s.entryID).WrappedJob
	s.mu.Unlock()

	if wrapped != nil {
		wrapped.Run()
	}
}

// -----------------------------------------------------------------------------

func (s *TickScheduler) fire() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if s.Gate != nil && !s.Gate() {
		s.skipped.Add(1)
		s.Logger.Info("Market closed, tick skipped")
		return
	}
	s.job(s.ctx)
}

// -----------------------------------------------------------------------------

// NextRun returns the time of the next scheduled tick, zero when stopped.
func (s *TickScheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// -----------------------------------------------------------------------------

// Skipped counts ticks dropped by the gate.
func (s *TickScheduler) Skipped() int64 {
	return s.skipped.Load()
}

// -----------------------------------------------------------------------------

// Stop cancels the job context and waits for a running tick to return.
func (s *TickScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.cancelFunc()
	done := s.cron.Stop()
	s.mu.Unlock()

	<-done.Done()
	s.runMu.Lock()
	s.runMu.Unlock()
	s.Logger.Info("Scheduler stopped")
}

// Package scheduler triggers periodic refresh cycles with robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobalert-crawler/internal/pipeline"
)

const (
	// DefaultInterval matches the listing site's update cadence.
	DefaultInterval = 30 * time.Minute
	// DefaultWarmup delays the first cycle after Start.
	DefaultWarmup = 5 * time.Second
)

// Runner refreshes every configured category.
type Runner interface {
	RefreshAll(ctx context.Context) []pipeline.Result
}

// Config controls cycle timing.
type Config struct {
	Interval time.Duration
	Warmup   time.Duration
}

// Scheduler wraps robfig/cron and owns the refresh loop.
type Scheduler struct {
	cfg    Config
	runner Runner
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	entryID cron.EntryID
	warmup  *time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// New creates a Scheduler. Overlapping cycles are skipped.
func New(cfg Config, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Interval < 0 || cfg.Warmup < 0 {
		return nil, fmt.Errorf("interval and warmup must be >= 0")
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")
	cl := cronLogger{logger: logger.Sugar()}
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger: logger,
	}, nil
}

// Start registers the refresh job, starts the cron loop and schedules one
// cycle after the warm-up delay. Cycles run on a context owned by the
// scheduler, so canceling ctx after Start has no effect; use Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	spec := fmt.Sprintf("@every %s", s.cfg.Interval)
	id, err := s.cron.AddFunc(spec, s.runCycle)
	if err != nil {
		s.cancel()
		s.cancel = nil
		return fmt.Errorf("cron add func: %w", err)
	}
	s.entryID = id
	s.cron.Start()

	job := s.cron.Entry(id).WrappedJob
	s.warmup = time.AfterFunc(s.cfg.Warmup, job.Run)
	s.logger.Info("scheduler started", zap.String("spec", spec), zap.Duration("warmup", s.cfg.Warmup))
	return nil
}

// Stop cancels in-flight cycles and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.warmup.Stop()
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.running.Wait()
	s.logger.Info("scheduler stopped")
}

// Trigger runs one cycle through the cron job chain, so it is skipped while
// another cycle is still running.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()
	if entry := s.cron.Entry(id); entry.Valid() {
		entry.WrappedJob.Run()
	}
}

func (s *Scheduler) runCycle() {
	s.mu.Lock()
	ctx := s.ctx
	if ctx == nil || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	start := time.Now()
	results := s.runner.RefreshAll(ctx)
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
			s.logger.Warn("category refresh failed", zap.String("category", r.Category), zap.String("error", r.Error))
		}
	}
	s.logger.Info("refresh cycle complete",
		zap.Int("categories", len(results)),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)),
	)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

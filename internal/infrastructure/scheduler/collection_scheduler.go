package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/cloudbill/backend/internal/application/collect"
	"go.uber.org/zap"
)

// CollectionScheduler runs periodic usage collection cycles. The
// per-tenant locks inside the collector make the cycles safe to run
// from several processes at once, so the scheduler itself stays dumb:
// tick, collect, repeat.
type CollectionScheduler struct {
	collector *collect.Collector
	logger    *zap.Logger
	config    CollectionSchedulerConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// CollectionSchedulerConfig holds configuration for the collection scheduler
type CollectionSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Interval is the period between collection cycles. The first tick
	// is aligned to the next interval boundary.
	Interval time.Duration

	// RunOnStart runs one cycle immediately instead of waiting for the
	// first aligned tick.
	RunOnStart bool

	// CycleTimeout is the maximum time for one collection cycle
	CycleTimeout time.Duration
}

// DefaultCollectionSchedulerConfig returns default configuration
func DefaultCollectionSchedulerConfig() CollectionSchedulerConfig {
	return CollectionSchedulerConfig{
		Enabled:      true,
		Interval:     time.Hour,
		RunOnStart:   false,
		CycleTimeout: 30 * time.Minute,
	}
}

// NewCollectionScheduler creates a new collection scheduler
func NewCollectionScheduler(
	collector *collect.Collector,
	logger *zap.Logger,
	config CollectionSchedulerConfig,
) (*CollectionScheduler, error) {
	if config.Interval <= 0 {
		return nil, ErrInvalidConfig
	}
	if config.CycleTimeout <= 0 {
		config.CycleTimeout = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionScheduler{
		collector: collector,
		logger:    logger,
		config:    config,
	}, nil
}

// Start starts the collection loop
func (s *CollectionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Collection scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Collection scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Bool("run_on_start", s.config.RunOnStart),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *CollectionScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	// Wait for goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Collection scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Collection scheduler stop timed out")
		return ctx.Err()
	}
}

// run is the collection loop, ticks aligned to the interval boundary
func (s *CollectionScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.executeCycle(ctx, "startup")
	}

	// Align the first tick so hourly collection lands just past the
	// hour boundary, when the previous window has fully closed.
	now := time.Now()
	nextTick := now.Truncate(s.config.Interval).Add(s.config.Interval)
	initialDelay := time.Until(nextTick)

	s.logger.Info("Collection cycle scheduled",
		zap.Time("next_run", nextTick),
		zap.Duration("initial_delay", initialDelay),
	)

	select {
	case <-ctx.Done():
		return
	case <-time.After(initialDelay):
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.executeCycle(ctx, "scheduled")

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Collection loop stopping")
			return
		case <-ticker.C:
			s.executeCycle(ctx, "scheduled")
		}
	}
}

// executeCycle runs one collection cycle over all active tenants
func (s *CollectionScheduler) executeCycle(ctx context.Context, trigger string) {
	s.logger.Info("Starting collection cycle",
		zap.String("trigger", trigger),
		zap.Time("started_at", time.Now()),
	)

	cycleCtx, cancel := context.WithTimeout(ctx, s.config.CycleTimeout)
	defer cancel()

	startTime := time.Now()
	stats := s.collector.RunCycle(cycleCtx)
	duration := time.Since(startTime)

	if stats.Errors > 0 {
		s.logger.Warn("Collection cycle finished with errors",
			zap.String("trigger", trigger),
			zap.Int("errors", stats.Errors),
			zap.Duration("duration", duration),
		)
		return
	}

	s.logger.Info("Collection cycle completed",
		zap.String("trigger", trigger),
		zap.Int("tenants_processed", stats.TenantsProcessed),
		zap.Int("hours_committed", stats.HoursCommitted),
		zap.Duration("duration", duration),
	)
}

// TriggerImmediateCollection runs one cycle outside the normal schedule
func (s *CollectionScheduler) TriggerImmediateCollection(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1) // Track the goroutine
	s.mu.Unlock()

	s.logger.Info("Triggering immediate collection")

	// The caller is typically an HTTP request whose context is cancelled
	// as soon as the response is written. The cycle must outlive it;
	// executeCycle bounds the detached context with CycleTimeout.
	cycleCtx := context.WithoutCancel(ctx)

	// Run in a goroutine to not block
	go func() {
		defer s.wg.Done()
		s.executeCycle(cycleCtx, "manual")
	}()

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *CollectionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/dialtone/internal/logging"
	"github.com/robfig/cron/v3"
)

// Janitor runs Manager.SweepIdle on a fixed interval.
type Janitor struct {
	manager  *Manager
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
	cron     *cron.Cron

	// OnSweep is called after each pass with the number of reclaimed sessions.
	OnSweep func(int)
}

// NewJanitor creates a janitor. It does nothing until Start is called.
func NewJanitor(manager *Manager, maxAge, interval time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Janitor{
		manager:  manager,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
	}
}

// Start schedules the sweep. Stop must be called to release the scheduler.
func (j *Janitor) Start() error {
	if j.interval <= 0 {
		return fmt.Errorf("janitor interval must be positive, got %s", j.interval)
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc("@every "+j.interval.String(), j.RunOnce); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	j.cron = c
	c.Start()
	j.logger.Info("Session janitor started", "interval", j.interval, "max_age", j.maxAge)
	return nil
}

// RunOnce performs a single sweep pass.
func (j *Janitor) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	n, err := j.manager.SweepIdle(ctx, j.maxAge)
	if err != nil {
		j.logger.Warn("Session sweep interrupted", "err", err, "swept", n)
	}
	if n > 0 {
		j.logger.Info("Reclaimed idle sessions", "count", n)
	}
	if j.OnSweep != nil {
		j.OnSweep(n)
	}
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
	j.cron = nil
}

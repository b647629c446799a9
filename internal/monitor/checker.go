package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Checker runs the stale-job sweep in the background.
type Checker struct {
	monitor  *Monitor
	interval time.Duration
}

// NewChecker creates a background recovery loop. A zero interval defaults to
// one minute.
func NewChecker(monitor *Monitor, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Checker{monitor: monitor, interval: interval}
}

// Run starts the periodic sweep. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := c.monitor.log.With(zap.String("component", "monitor.checker"))
	log.Info("starting stale-job checker",
		zap.Duration("interval", c.interval),
		zap.Duration("stale_threshold", c.monitor.threshold),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("stale-job checker stopped")
			return
		case <-ticker.C:
			recovered, err := c.monitor.RecoverStaleJobs(ctx)
			if err != nil {
				log.Error("stale-job sweep failed", zap.Error(err))
				continue
			}
			if recovered > 0 {
				log.Info("stale-job sweep complete", zap.Int("recovered", recovered))
			}
		}
	}
}

// Package monitor detects and resumes jobs stuck in processing, presumed
// crashed mid-run.
package monitor

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadenrich/internal/job"
	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/internal/store"
)

// DefaultStaleThreshold is how long a job may sit in processing before it is
// presumed dead.
const DefaultStaleThreshold = 5 * time.Minute

// Health is the processor health snapshot reported to callers.
type Health struct {
	Healthy        bool `json:"healthy"`
	PendingJobs    int  `json:"pending_jobs"`
	ProcessingJobs int  `json:"processing_jobs"`
	StaleJobs      int  `json:"stale_jobs"`
}

// Monitor scans for stale jobs and hands them back to the processor.
// Reprocessing is safe because the processor skips terminal items.
type Monitor struct {
	store     store.Store
	processor *job.Processor
	threshold time.Duration
	log       *zap.Logger

	now   func() time.Time
	spawn func(func()) // test seam for the fire-and-forget dispatch
}

// New builds a Monitor. A zero threshold falls back to DefaultStaleThreshold.
func New(st store.Store, processor *job.Processor, threshold time.Duration, log *zap.Logger) *Monitor {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		store:     st,
		processor: processor,
		threshold: threshold,
		log:       log,
		now:       time.Now,
		spawn:     func(fn func()) { go fn() },
	}
}

// InlineDispatch makes recovery process jobs inline instead of in background
// goroutines. One-shot CLI invocations need this so the process does not exit
// with recovery still running.
func (m *Monitor) InlineDispatch() {
	m.spawn = func(fn func()) { fn() }
}

// RecoverStaleJobs re-dispatches every stale processing job and returns how
// many were recovered. Dispatch is fire-and-forget; jobs already held by the
// same-job guard are skipped by the processor itself.
func (m *Monitor) RecoverStaleJobs(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.threshold)
	stale, err := m.store.ListStaleJobs(ctx, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "list stale jobs")
	}

	for _, j := range stale {
		jobID := j.ID
		m.log.Warn("recovering stale job",
			zap.String("job_id", jobID),
			zap.Timep("started_at", j.StartedAt))
		m.spawn(func() {
			if err := m.processor.ProcessJobItems(context.WithoutCancel(ctx), jobID); err != nil {
				m.log.Error("stale job recovery failed",
					zap.String("job_id", jobID),
					zap.Error(err))
			}
		})
	}
	return len(stale), nil
}

// ProcessorHealth reports job counts by state. Unhealthy iff any stale job
// exists.
func (m *Monitor) ProcessorHealth(ctx context.Context) (*Health, error) {
	pending, err := m.store.ListBulkJobs(ctx, store.JobFilter{Status: model.JobStatusPending})
	if err != nil {
		return nil, eris.Wrap(err, "list pending jobs")
	}
	processing, err := m.store.ListBulkJobs(ctx, store.JobFilter{Status: model.JobStatusProcessing})
	if err != nil {
		return nil, eris.Wrap(err, "list processing jobs")
	}
	stale, err := m.store.ListStaleJobs(ctx, m.now().Add(-m.threshold))
	if err != nil {
		return nil, eris.Wrap(err, "list stale jobs")
	}

	return &Health{
		Healthy:        len(stale) == 0,
		PendingJobs:    len(pending),
		ProcessingJobs: len(processing),
		StaleJobs:      len(stale),
	}, nil
}

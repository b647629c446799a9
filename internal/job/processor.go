// Package job drives bulk enrichment jobs through their state machine:
// per-item retry with exponential backoff, progress checkpointing, and
// idempotent resumption of interrupted runs.
package job

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/internal/resilience"
	"github.com/sells-group/leadenrich/internal/store"
)

// Config bounds the per-item retry loop and the checkpoint cadence.
type Config struct {
	MaxRetries      int           `json:"max_retries"`
	RetryDelay      time.Duration `json:"retry_delay"`
	MaxRetryDelay   time.Duration `json:"max_retry_delay"`
	CheckpointEvery int           `json:"checkpoint_every"`
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		RetryDelay:      time.Second,
		MaxRetryDelay:   30 * time.Second,
		CheckpointEvery: 10,
	}
}

// Processor runs one job's items in stored order, one at a time. Items that
// are already terminal are skipped, so reprocessing a partially finished job
// picks up exactly where it left off.
type Processor struct {
	store    store.Store
	enricher Enricher
	registry *Registry
	cfg      Config
	log      *zap.Logger

	sleep func(ctx context.Context, d time.Duration)
	now   func() time.Time
}

// NewProcessor builds a Processor around a storage facade and an enricher.
func NewProcessor(st store.Store, enricher Enricher, registry *Registry, cfg Config, log *zap.Logger) *Processor {
	if registry == nil {
		registry = NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg = DefaultConfig()
	}
	return &Processor{
		store:    st,
		enricher: enricher,
		registry: registry,
		cfg:      cfg,
		log:      log,
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// Registry exposes the same-job guard, shared with the health monitor.
func (p *Processor) Registry() *Registry { return p.registry }

// ProcessJobItems runs the job to completion. Invoking it on a job already
// in flight is a no-op. Item failures never abort the run; only a failure of
// the job-level bookkeeping itself marks the job failed.
func (p *Processor) ProcessJobItems(ctx context.Context, jobID string) error {
	if !p.registry.TryAcquire(jobID) {
		p.log.Info("job already processing, skipping", zap.String("job_id", jobID))
		return nil
	}
	defer p.registry.Release(jobID)

	job, err := p.store.GetBulkJob(ctx, jobID)
	if err != nil {
		return eris.Wrapf(err, "load job %s", jobID)
	}
	if job == nil {
		return eris.Errorf("job %s not found", jobID)
	}

	started := p.now()
	job.Status = model.JobStatusProcessing
	job.StartedAt = &started
	job.LastError = ""
	if err := p.store.UpdateBulkJob(ctx, job); err != nil {
		return eris.Wrapf(err, "mark job %s processing", jobID)
	}

	items, err := p.store.GetBulkJobItems(ctx, jobID)
	if err != nil {
		return p.failJob(ctx, job, eris.Wrap(err, "load job items"))
	}

	p.log.Info("processing job",
		zap.String("job_id", jobID),
		zap.Int("items", len(items)))

	var successful, failed, duplicates int
	for i := range items {
		item := &items[i]

		if item.Terminal(p.cfg.MaxRetries) {
			p.countItem(item, &successful, &failed, &duplicates)
			continue
		}

		if err := p.processItem(ctx, item, job.Source); err != nil {
			return p.failJob(ctx, job, err)
		}
		p.countItem(item, &successful, &failed, &duplicates)

		if (i+1)%p.cfg.CheckpointEvery == 0 {
			p.checkpoint(ctx, job, i+1, len(items), successful, failed, duplicates)
		}
	}

	completed := p.now()
	job.Status = model.JobStatusComplete
	job.CompletedAt = &completed
	job.Progress = 100
	job.Successful = successful
	job.Failed = failed
	job.DuplicatesFound = duplicates
	if err := p.store.UpdateBulkJob(ctx, job); err != nil {
		return eris.Wrapf(err, "finalize job %s", jobID)
	}

	p.log.Info("job complete",
		zap.String("job_id", jobID),
		zap.Int("successful", successful),
		zap.Int("failed", failed),
		zap.Int("duplicates", duplicates))
	return nil
}

// processItem runs the retry loop for one item. Returned errors are storage
// failures only; enrichment failures end up recorded on the item.
func (p *Processor) processItem(ctx context.Context, item *model.BulkJobItem, source string) error {
	item.Status = model.ItemStatusProcessing
	if err := p.store.UpdateBulkJobItem(ctx, item); err != nil {
		return eris.Wrap(err, "mark item processing")
	}

	for attempt := item.RetryCount; attempt < p.cfg.MaxRetries; attempt++ {
		enr, err := p.enricher.Enrich(ctx, item.ParsedData, source)
		if err == nil {
			p.recordSuccess(item, enr)
			if uerr := p.store.UpdateBulkJobItem(ctx, item); uerr != nil {
				return eris.Wrap(uerr, "persist item result")
			}
			return nil
		}

		item.LastError = err.Error()

		if !isRetryable(err) {
			// Validation and other non-retryable failures burn no attempts:
			// the item is failed terminally right away.
			item.Status = model.ItemStatusFailed
			item.RetryCount = p.cfg.MaxRetries
			if uerr := p.store.UpdateBulkJobItem(ctx, item); uerr != nil {
				return eris.Wrap(uerr, "persist item failure")
			}
			p.log.Warn("item failed without retry",
				zap.String("item_id", item.ID),
				zap.String("kind", string(KindOf(err))),
				zap.Error(err))
			return nil
		}

		// Persist the attempt before sleeping so a crash mid-job loses at
		// most the in-flight attempt.
		item.RetryCount = attempt + 1
		if uerr := p.store.UpdateBulkJobItem(ctx, item); uerr != nil {
			return eris.Wrap(uerr, "persist retry state")
		}

		p.log.Warn("item attempt failed",
			zap.String("item_id", item.ID),
			zap.Int("attempt", attempt+1),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err))

		if attempt+1 < p.cfg.MaxRetries {
			p.sleep(ctx, resilience.Backoff(attempt, p.cfg.RetryDelay, p.cfg.MaxRetryDelay))
		}
	}

	item.Status = model.ItemStatusFailed
	item.RetryCount = p.cfg.MaxRetries
	if err := p.store.UpdateBulkJobItem(ctx, item); err != nil {
		return eris.Wrap(err, "persist item failure")
	}
	return nil
}

// recordSuccess copies the enrichment outputs onto the item.
func (p *Processor) recordSuccess(item *model.BulkJobItem, enr *Enrichment) {
	item.Status = model.ItemStatusComplete
	item.LastError = ""
	item.Enrichment = &enr.Intel
	item.PersonalizationBullets = enr.Personalization.Bullets
	item.Icebreaker = enr.Personalization.Icebreaker
	item.ConfidenceScore = enr.Confidence.Score
	item.ConfidenceRationale = enr.Confidence.Rationale
	item.FitScore = enr.Quality
	if enr.Scrape != nil {
		item.ScrapeSources = enr.Scrape.Sources
	}
	if enr.Outcome != nil && enr.Outcome.Contact != nil {
		item.ContactID = enr.Outcome.Contact.ID
		item.WasDuplicate = !enr.Outcome.IsNew
	}
}

func (p *Processor) countItem(item *model.BulkJobItem, successful, failed, duplicates *int) {
	switch item.Status {
	case model.ItemStatusComplete:
		*successful++
		if item.WasDuplicate {
			*duplicates++
		}
	case model.ItemStatusFailed:
		*failed++
	}
}

// checkpoint writes running counters to the job row. Checkpoint failures are
// logged, not fatal.
func (p *Processor) checkpoint(ctx context.Context, job *model.BulkJob, done, total, successful, failed, duplicates int) {
	job.Progress = done * 100 / total
	job.Successful = successful
	job.Failed = failed
	job.DuplicatesFound = duplicates
	if err := p.store.UpdateBulkJob(ctx, job); err != nil {
		p.log.Warn("progress checkpoint failed",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}
}

func (p *Processor) failJob(ctx context.Context, job *model.BulkJob, cause error) error {
	job.Status = model.JobStatusFailed
	job.LastError = cause.Error()
	if err := p.store.UpdateBulkJob(ctx, job); err != nil {
		p.log.Error("failed to mark job failed",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}
	p.log.Error("job failed", zap.String("job_id", job.ID), zap.Error(cause))
	return cause
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

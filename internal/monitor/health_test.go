package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadenrich/internal/job"
	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/internal/store"
)

type noopEnricher struct{ calls int }

func (e *noopEnricher) Enrich(context.Context, model.RawRecord, string) (*job.Enrichment, error) {
	e.calls++
	return &job.Enrichment{
		Outcome: &model.MergeOutcome{Contact: &model.Contact{ID: "c-1"}, IsNew: true},
	}, nil
}

func seedProcessingJob(t *testing.T, st store.Store, startedAgo time.Duration) *model.BulkJob {
	t.Helper()
	ctx := context.Background()
	j, err := st.CreateBulkJob(ctx, "csv", []model.RawRecord{{Email: "a@b.com"}})
	require.NoError(t, err)

	started := time.Now().Add(-startedAgo)
	j.Status = model.JobStatusProcessing
	j.StartedAt = &started
	require.NoError(t, st.UpdateBulkJob(ctx, j))
	return j
}

func newTestMonitor(st store.Store, enr job.Enricher) *Monitor {
	p := job.NewProcessor(st, enr, job.NewRegistry(), job.DefaultConfig(), nil)
	m := New(st, p, 5*time.Minute, nil)
	m.spawn = func(fn func()) { fn() } // synchronous for tests
	return m
}

func TestRecoverStaleJobs(t *testing.T) {
	st := store.NewMemory()
	stale := seedProcessingJob(t, st, 10*time.Minute)
	seedProcessingJob(t, st, time.Minute) // fresh, must not be touched

	enr := &noopEnricher{}
	m := newTestMonitor(st, enr)

	recovered, err := m.RecoverStaleJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)
	assert.Equal(t, 1, enr.calls)

	got, err := st.GetBulkJob(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusComplete, got.Status)
}

func TestRecoverStaleJobsNoneStale(t *testing.T) {
	st := store.NewMemory()
	seedProcessingJob(t, st, time.Minute)

	m := newTestMonitor(st, &noopEnricher{})
	recovered, err := m.RecoverStaleJobs(context.Background())
	require.NoError(t, err)
	assert.Zero(t, recovered)
}

func TestProcessorHealth(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	_, err := st.CreateBulkJob(ctx, "csv", []model.RawRecord{{Email: "p@b.com"}})
	require.NoError(t, err)
	seedProcessingJob(t, st, time.Minute)

	m := newTestMonitor(st, &noopEnricher{})

	health, err := m.ProcessorHealth(ctx)
	require.NoError(t, err)
	assert.True(t, health.Healthy)
	assert.Equal(t, 1, health.PendingJobs)
	assert.Equal(t, 1, health.ProcessingJobs)
	assert.Zero(t, health.StaleJobs)
}

func TestProcessorHealthUnhealthyWhenStale(t *testing.T) {
	st := store.NewMemory()
	seedProcessingJob(t, st, 10*time.Minute)

	m := newTestMonitor(st, &noopEnricher{})

	health, err := m.ProcessorHealth(context.Background())
	require.NoError(t, err)
	assert.False(t, health.Healthy)
	assert.Equal(t, 1, health.StaleJobs)
}

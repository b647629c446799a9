package job

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/internal/store"
)

type stubEnricher struct {
	mu    sync.Mutex
	calls int
	fn    func(raw model.RawRecord) (*Enrichment, error)
}

func (s *stubEnricher) Enrich(_ context.Context, raw model.RawRecord, _ string) (*Enrichment, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(raw)
	}
	return okEnrichment(), nil
}

func (s *stubEnricher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func okEnrichment() *Enrichment {
	return &Enrichment{
		Outcome: &model.MergeOutcome{
			Contact: &model.Contact{ID: "c-1"},
			IsNew:   true,
		},
		Confidence: model.Confidence{Score: 0.5, Rationale: "website scraped successfully"},
	}
}

// testProcessor builds a processor with instant sleeps, recording delays.
func testProcessor(st store.Store, enr Enricher) (*Processor, *[]time.Duration) {
	p := NewProcessor(st, enr, NewRegistry(), DefaultConfig(), nil)
	delays := &[]time.Duration{}
	p.sleep = func(_ context.Context, d time.Duration) {
		*delays = append(*delays, d)
	}
	return p, delays
}

func seedJob(t *testing.T, st store.Store, n int) *model.BulkJob {
	t.Helper()
	records := make([]model.RawRecord, n)
	for i := range records {
		records[i] = model.RawRecord{Email: fmt.Sprintf("user%d@acme.com", i)}
	}
	job, err := st.CreateBulkJob(context.Background(), "csv", records)
	require.NoError(t, err)
	return job
}

func TestProcessJobAllSucceed(t *testing.T) {
	st := store.NewMemory()
	job := seedJob(t, st, 3)
	enr := &stubEnricher{}
	p, _ := testProcessor(st, enr)

	require.NoError(t, p.ProcessJobItems(context.Background(), job.ID))

	got, err := st.GetBulkJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusComplete, got.Status)
	assert.Equal(t, 3, got.Successful)
	assert.Equal(t, 0, got.Failed)
	assert.Equal(t, 100, got.Progress)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, 3, enr.callCount())
}

func TestProcessJobUnknownID(t *testing.T) {
	st := store.NewMemory()
	enr := &stubEnricher{}
	p, _ := testProcessor(st, enr)

	err := p.ProcessJobItems(context.Background(), "no-such-job")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Equal(t, 0, enr.callCount())
}

func TestProcessJobPartialFailures(t *testing.T) {
	// 25 items, 5 of which fail on every attempt.
	st := store.NewMemory()
	records := make([]model.RawRecord, 25)
	for i := range records {
		email := fmt.Sprintf("user%d@acme.com", i)
		if i%5 == 0 {
			email = fmt.Sprintf("bad%d@acme.com", i)
		}
		records[i] = model.RawRecord{Email: email}
	}
	job, err := st.CreateBulkJob(context.Background(), "csv", records)
	require.NoError(t, err)

	enr := &stubEnricher{fn: func(raw model.RawRecord) (*Enrichment, error) {
		if strings.HasPrefix(raw.Email, "bad") {
			return nil, NetworkError(eris.New("connection refused"), "scrape")
		}
		return okEnrichment(), nil
	}}
	p, _ := testProcessor(st, enr)

	require.NoError(t, p.ProcessJobItems(context.Background(), job.ID))

	got, err := st.GetBulkJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusComplete, got.Status)
	assert.Equal(t, 20, got.Successful)
	assert.Equal(t, 5, got.Failed)
	assert.Equal(t, 100, got.Progress)
}

func TestRetryTermination(t *testing.T) {
	st := store.NewMemory()
	job := seedJob(t, st, 1)
	enr := &stubEnricher{fn: func(model.RawRecord) (*Enrichment, error) {
		return nil, DatabaseError(eris.New("deadlock"), "merge contact")
	}}
	p, delays := testProcessor(st, enr)

	require.NoError(t, p.ProcessJobItems(context.Background(), job.ID))

	items, err := st.GetBulkJobItems(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.ItemStatusFailed, items[0].Status)
	assert.Equal(t, DefaultConfig().MaxRetries, items[0].RetryCount)
	assert.Contains(t, items[0].LastError, "deadlock")
	assert.Equal(t, 3, enr.callCount())

	// Backoff doubles per attempt; no sleep after the final attempt.
	require.Len(t, *delays, 2)
	assert.Equal(t, time.Second, (*delays)[0])
	assert.Equal(t, 2*time.Second, (*delays)[1])
}

func TestValidationFailsWithoutRetry(t *testing.T) {
	st := store.NewMemory()
	job, err := st.CreateBulkJob(context.Background(), "csv", []model.RawRecord{{FirstName: "only"}})
	require.NoError(t, err)

	enr := &stubEnricher{fn: func(model.RawRecord) (*Enrichment, error) {
		return nil, ValidationError("record has no usable identifier")
	}}
	p, delays := testProcessor(st, enr)

	require.NoError(t, p.ProcessJobItems(context.Background(), job.ID))

	items, err := st.GetBulkJobItems(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusFailed, items[0].Status)
	assert.Equal(t, 1, enr.callCount())
	assert.Empty(t, *delays)
	assert.True(t, items[0].Terminal(DefaultConfig().MaxRetries))
}

func TestResumptionSkipsTerminalItems(t *testing.T) {
	st := store.NewMemory()
	job := seedJob(t, st, 4)

	ctx := context.Background()
	items, err := st.GetBulkJobItems(ctx, job.ID)
	require.NoError(t, err)
	for i := range items {
		items[i].Status = model.ItemStatusComplete
		require.NoError(t, st.UpdateBulkJobItem(ctx, &items[i]))
	}

	enr := &stubEnricher{}
	p, _ := testProcessor(st, enr)
	require.NoError(t, p.ProcessJobItems(ctx, job.ID))

	assert.Zero(t, enr.callCount())

	got, err := st.GetBulkJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusComplete, got.Status)
	assert.Equal(t, 4, got.Successful)
	assert.Equal(t, 100, got.Progress)
}

func TestResumptionRetriesNonTerminalFailures(t *testing.T) {
	st := store.NewMemory()
	job := seedJob(t, st, 1)

	ctx := context.Background()
	items, err := st.GetBulkJobItems(ctx, job.ID)
	require.NoError(t, err)
	items[0].Status = model.ItemStatusFailed
	items[0].RetryCount = 2 // one attempt left
	require.NoError(t, st.UpdateBulkJobItem(ctx, &items[0]))

	enr := &stubEnricher{}
	p, _ := testProcessor(st, enr)
	require.NoError(t, p.ProcessJobItems(ctx, job.ID))

	assert.Equal(t, 1, enr.callCount())
	items, err = st.GetBulkJobItems(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusComplete, items[0].Status)
}

func TestSameJobGuard(t *testing.T) {
	st := store.NewMemory()
	job := seedJob(t, st, 2)
	enr := &stubEnricher{}
	p, _ := testProcessor(st, enr)

	require.True(t, p.Registry().TryAcquire(job.ID))
	require.NoError(t, p.ProcessJobItems(context.Background(), job.ID))

	assert.Zero(t, enr.callCount())
	got, err := st.GetBulkJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, got.Status)
}

func TestDuplicatesCounted(t *testing.T) {
	st := store.NewMemory()
	job := seedJob(t, st, 3)
	enr := &stubEnricher{fn: func(raw model.RawRecord) (*Enrichment, error) {
		e := okEnrichment()
		e.Outcome.IsNew = raw.Email == "user0@acme.com"
		return e, nil
	}}
	p, _ := testProcessor(st, enr)

	require.NoError(t, p.ProcessJobItems(context.Background(), job.ID))

	got, err := st.GetBulkJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Successful)
	assert.Equal(t, 2, got.DuplicatesFound)
}

func TestRegistryAcquireRelease(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.TryAcquire("a"))
	assert.False(t, r.TryAcquire("a"))
	assert.True(t, r.TryAcquire("b"))
	assert.Equal(t, 2, r.Count())

	r.Release("a")
	assert.False(t, r.IsRunning("a"))
	assert.True(t, r.TryAcquire("a"))
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadenrich/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteJobLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	records := []model.RawRecord{
		{Email: "a@acme.com", CompanyName: "Acme"},
		{Email: "b@acme.com"},
	}
	job, err := s.CreateBulkJob(ctx, "csv", records)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.Equal(t, 2, job.TotalRecords)

	got, err := s.GetBulkJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Nil(t, got.StartedAt)

	started := time.Now().UTC().Truncate(time.Second)
	got.Status = model.JobStatusProcessing
	got.StartedAt = &started
	got.Progress = 50
	require.NoError(t, s.UpdateBulkJob(ctx, got))

	reloaded, err := s.GetBulkJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, reloaded.Status)
	assert.Equal(t, 50, reloaded.Progress)
	require.NotNil(t, reloaded.StartedAt)
	assert.WithinDuration(t, started, *reloaded.StartedAt, time.Second)

	// Absence is not an error.
	missing, err := s.GetBulkJob(ctx, "no-such-job")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteJobItemsRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	job, err := s.CreateBulkJob(ctx, "csv", []model.RawRecord{{Email: "a@acme.com", City: "Austin"}})
	require.NoError(t, err)

	items, err := s.GetBulkJobItems(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a@acme.com", items[0].ParsedData.Email)
	assert.Equal(t, model.ItemStatusPending, items[0].Status)

	item := &items[0]
	item.Status = model.ItemStatusComplete
	item.Enrichment = &model.BusinessIntelligence{Industry: "HVAC", Services: []string{"Hvac"}}
	item.ScrapeSources = []model.ScrapeSource{{URL: "https://acme.com", StatusCode: 200, Success: true}}
	item.PersonalizationBullets = []string{"bullet one"}
	item.Icebreaker = "hello"
	item.ConfidenceScore = 0.85
	item.ConfidenceRationale = "website scraped successfully"
	item.FitScore = 70
	item.ContactID = "c-123"
	item.WasDuplicate = true
	require.NoError(t, s.UpdateBulkJobItem(ctx, item))

	reloaded, err := s.GetBulkJobItems(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	got := reloaded[0]
	assert.Equal(t, model.ItemStatusComplete, got.Status)
	require.NotNil(t, got.Enrichment)
	assert.Equal(t, "HVAC", got.Enrichment.Industry)
	assert.Equal(t, []string{"bullet one"}, got.PersonalizationBullets)
	assert.Equal(t, 0.85, got.ConfidenceScore)
	assert.Equal(t, "c-123", got.ContactID)
	assert.True(t, got.WasDuplicate)
}

func TestSQLiteContactsFindAndUpdate(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	contact := &model.Contact{
		Email:      "jo@acme.com",
		EmailNorm:  "jo@acme.com",
		DomainNorm: "acme.com",
		PhoneNorm:  "+15125551234",
		Company:    "Acme",
		Sources:    []string{"csv"},
		LastSeenAt: now,
		CreatedAt:  now,
	}
	require.NoError(t, s.CreateContact(ctx, contact))
	require.NotEmpty(t, contact.ID)

	byEmail, err := s.FindContactByEmail(ctx, "jo@acme.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, contact.ID, byEmail.ID)
	assert.Equal(t, []string{"csv"}, byEmail.Sources)

	byDomain, err := s.FindContactByDomain(ctx, "acme.com")
	require.NoError(t, err)
	require.NotNil(t, byDomain)

	byPhone, err := s.FindContactByPhone(ctx, "+15125551234")
	require.NoError(t, err)
	require.NotNil(t, byPhone)

	// Absence is not an error, and empty keys never match.
	missing, err := s.FindContactByEmail(ctx, "nobody@acme.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
	none, err := s.FindContactByDomain(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, none)

	byEmail.Title = "Owner"
	byEmail.QualityScore = 55
	require.NoError(t, s.UpdateContact(ctx, byEmail))

	updated, err := s.FindContactByEmail(ctx, "jo@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "Owner", updated.Title)
	assert.Equal(t, 55, updated.QualityScore)
}

func TestSQLiteListStaleJobs(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	job, err := s.CreateBulkJob(ctx, "csv", []model.RawRecord{{Email: "a@b.com"}})
	require.NoError(t, err)

	started := time.Now().UTC().Add(-10 * time.Minute)
	job.Status = model.JobStatusProcessing
	job.StartedAt = &started
	require.NoError(t, s.UpdateBulkJob(ctx, job))

	stale, err := s.ListStaleJobs(ctx, time.Now().UTC().Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, job.ID, stale[0].ID)

	none, err := s.ListStaleJobs(ctx, time.Now().UTC().Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteUpsertCompanyByDomain(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	first, err := s.UpsertCompany(ctx, model.Company{Name: "Acme", Domain: "acme.com"})
	require.NoError(t, err)

	// Second upsert on the same domain fills missing fields, keeps the row.
	second, err := s.UpsertCompany(ctx, model.Company{Name: "Acme Inc", Domain: "acme.com", Industry: "HVAC"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Domainless companies always insert.
	a, err := s.UpsertCompany(ctx, model.Company{Name: "No Site LLC"})
	require.NoError(t, err)
	b, err := s.UpsertCompany(ctx, model.Company{Name: "No Site LLC"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

package job

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadenrich/internal/identity"
	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/internal/normalize"
	"github.com/sells-group/leadenrich/internal/resilience"
	"github.com/sells-group/leadenrich/internal/scrape"
	"github.com/sells-group/leadenrich/internal/store"
)

func newTestPipeline(t *testing.T) (*Pipeline, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	p := NewPipeline(
		st,
		identity.NewResolver(st),
		scrape.New(scrape.Options{Rate: 1000, Burst: 1000}),
		nil, // no discovery
		nil, // no polish
		resilience.NewBreakerSet(resilience.DefaultBreakerConfig()),
		nil,
	)
	return p, st
}

const pipelineTestHTML = `<!DOCTYPE html>
<html><head>
<title>Acme Plumbing | Denver</title>
<meta name="description" content="Family-owned plumbing and heating experts serving Denver since 1998.">
</head><body>
<h1>Plumbing and Heating Services</h1>
<p>Acme Plumbing is a family owned business, licensed and insured, serving
Denver, CO and the surrounding metro. Serving Denver, CO since 1998.
Our team handles plumbing, heating, and air conditioning installs and repair.
Emergency service available 24/7. Call (303) 555-0142 or email
office@acmeplumbing.com today. Proudly local in Denver, CO.</p>
</body></html>`

func TestEnrich_FullRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(pipelineTestHTML))
	}))
	defer srv.Close()

	p, st := newTestPipeline(t)
	ctx := context.Background()

	raw := model.RawRecord{
		FirstName:   "Jane",
		LastName:    "Smith",
		Email:       "jane@acmeplumbing.com",
		CompanyName: "Acme Plumbing",
		Website:     srv.URL,
	}

	enr, err := p.Enrich(ctx, raw, "leads.csv")
	require.NoError(t, err)

	require.NotNil(t, enr.Outcome)
	assert.True(t, enr.Outcome.IsNew)
	require.NotNil(t, enr.Scrape)
	assert.True(t, enr.Scrape.Success)

	assert.Contains(t, enr.Intel.Services, "Plumbing")
	assert.NotEmpty(t, enr.Intel.Signals)

	assert.Equal(t, model.TierRich, enr.Personalization.Tier)
	assert.NotEmpty(t, enr.Personalization.Bullets)
	assert.NotEmpty(t, enr.Personalization.Icebreaker)

	assert.Greater(t, enr.Confidence.Score, 0.5)
	assert.NotEqual(t, model.ThinRecordRationale, enr.Confidence.Rationale)
	assert.Greater(t, enr.Quality, 0)

	// Quality score lands on the stored contact.
	contact, err := st.FindContactByEmail(ctx, normalize.Email(raw.Email))
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, enr.Quality, contact.QualityScore)
}

func TestEnrich_NoIdentifierIsValidationError(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.Enrich(context.Background(), model.RawRecord{FirstName: "Jane"}, "leads.csv")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	var enrErr *EnrichmentError
	require.ErrorAs(t, err, &enrErr)
	assert.False(t, enrErr.Retryable())
}

func TestEnrich_ScrapeFailureDoesNotFailRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p, _ := newTestPipeline(t)

	enr, err := p.Enrich(context.Background(), model.RawRecord{
		Email:   "bob@nowhere.example",
		Website: srv.URL,
	}, "leads.csv")
	require.NoError(t, err)

	require.NotNil(t, enr.Scrape)
	assert.False(t, enr.Scrape.Success)
	assert.Equal(t, model.ThinRecordRationale, enr.Confidence.Rationale)
}

func TestEnrich_NoWebsiteNoDiscovery(t *testing.T) {
	p, _ := newTestPipeline(t)

	enr, err := p.Enrich(context.Background(), model.RawRecord{
		Email:       "carol@example.net",
		CompanyName: "Carol Consulting",
	}, "leads.csv")
	require.NoError(t, err)

	assert.Nil(t, enr.Scrape)
	assert.Equal(t, model.ThinRecordRationale, enr.Confidence.Rationale)
	// No successful scrape means no copy, whatever the input carries.
	assert.Equal(t, model.TierGeneric, enr.Personalization.Tier)
	assert.True(t, enr.Personalization.IsGeneric)
}

func TestEnrich_SecondRecordMergesIntoExisting(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	first := model.RawRecord{Email: "dave@example.org", CompanyName: "Dave Roofing"}
	second := model.RawRecord{Email: "DAVE@example.org", Title: "Owner"}

	enr1, err := p.Enrich(ctx, first, "a.csv")
	require.NoError(t, err)
	require.True(t, enr1.Outcome.IsNew)

	enr2, err := p.Enrich(ctx, second, "b.csv")
	require.NoError(t, err)
	assert.False(t, enr2.Outcome.IsNew)
	assert.Equal(t, enr1.Outcome.Contact.ID, enr2.Outcome.Contact.ID)
	assert.Equal(t, model.MatchEmail, enr2.Outcome.MatchedBy)
	// Fill-only merge: the second record's title lands on the contact.
	assert.Equal(t, "Owner", enr2.Outcome.Contact.Title)
	assert.Equal(t, "Dave Roofing", enr2.Outcome.Contact.Company)
}

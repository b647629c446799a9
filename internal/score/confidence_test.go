package score

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadenrich/internal/model"
)

func TestConfidenceFullyEnriched(t *testing.T) {
	scrape := &model.ScrapeResult{
		Success: true,
		Content: &model.PageContent{
			Title:       "Acme Plumbing",
			Description: "Plumbing in Austin",
			BodyText:    strings.Repeat("x", 600),
		},
	}
	intel := model.BusinessIntelligence{
		CompanyName: "Acme Plumbing",
		City:        "Austin",
		Services:    []string{"Plumbing"},
		Signals:     []string{"family-owned business", "free estimates"},
	}
	input := model.RawRecord{Email: "a@b.com", Phone: "5125551234"}

	got := Confidence(scrape, intel, input)

	// 0.30+0.05+0.05+0.10+0.10+0.10+0.10+0.10+0.05+0.05 = 1.00
	assert.Equal(t, 1.00, got.Score)
	assert.Contains(t, got.Rationale, "website scraped successfully")
	assert.Contains(t, got.Rationale, "multiple trust signals found")
	assert.NotEqual(t, model.ThinRecordRationale, got.Rationale)
}

func TestConfidenceThinRecordRationale(t *testing.T) {
	// Input-derived fields alone must not look enriched.
	intel := model.BusinessIntelligence{CompanyName: "Acme", City: "Austin"}
	input := model.RawRecord{Email: "a@b.com", Phone: "5125551234"}

	got := Confidence(nil, intel, input)

	assert.Equal(t, model.ThinRecordRationale, got.Rationale)
	assert.InDelta(t, 0.30, got.Score, 1e-9) // 0.10+0.10+0.05+0.05
}

func TestConfidenceThinRecordOnFailedScrape(t *testing.T) {
	scrape := &model.ScrapeResult{Success: false}

	got := Confidence(scrape, model.BusinessIntelligence{}, model.RawRecord{})

	assert.Equal(t, model.ThinRecordRationale, got.Rationale)
	assert.Equal(t, 0.0, got.Score)
}

func TestConfidenceSingleSignalHalfPoints(t *testing.T) {
	scrape := &model.ScrapeResult{Success: true, Content: &model.PageContent{BodyText: strings.Repeat("y", 60)}}
	intel := model.BusinessIntelligence{Signals: []string{"licensed and insured"}}

	got := Confidence(scrape, intel, model.RawRecord{})

	// 0.30 + 0.05 body + 0.05 signal
	assert.InDelta(t, 0.40, got.Score, 1e-9)
	assert.Contains(t, got.Rationale, "trust signal found")
}

func TestConfidenceRoundsToTwoDecimals(t *testing.T) {
	got := Confidence(&model.ScrapeResult{Success: true}, model.BusinessIntelligence{}, model.RawRecord{Email: "a@b.com"})
	assert.Equal(t, 0.35, got.Score)
}

func TestQualityWeights(t *testing.T) {
	full := model.Contact{
		Email: "a@b.com", Phone: "+15125551234", Website: "https://acme.com",
		Company: "Acme", FirstName: "Jo", LastName: "Day", Title: "Owner",
		City: "Austin", LinkedInURL: "https://linkedin.com/in/jo",
	}
	assert.Equal(t, 100, Quality(full))

	assert.Equal(t, 0, Quality(model.Contact{}))
	assert.Equal(t, 25, Quality(model.Contact{Email: "a@b.com"}))
	// First name without last name earns nothing.
	assert.Equal(t, 0, Quality(model.Contact{FirstName: "Jo"}))
	assert.Equal(t, 10, Quality(model.Contact{State: "TX"}))
}

// Package score computes the confidence and data-quality scores attached to
// every enriched item.
package score

import (
	"math"
	"strings"

	"github.com/sells-group/leadenrich/internal/model"
)

// factor is one additive contribution to the confidence score.
type factor struct {
	points float64
	label  string
}

// Confidence scores how much real enrichment backs a record. The scheme is
// additive: each factor that fires contributes its points and its label to
// the rationale. When nothing beyond input-derived fields fired, the
// rationale collapses to the thin_record token so consumers can tell
// "enriched" apart from "restated input".
func Confidence(scrape *model.ScrapeResult, intel model.BusinessIntelligence, input model.RawRecord) model.Confidence {
	scraped := scrape != nil && scrape.Success

	var factors []factor

	if scraped {
		factors = append(factors, factor{0.30, "website scraped successfully"})
		if scrape.Content != nil {
			if scrape.Content.Title != "" {
				factors = append(factors, factor{0.05, "page title found"})
			}
			if scrape.Content.Description != "" {
				factors = append(factors, factor{0.05, "meta description found"})
			}
			switch body := len(scrape.Content.BodyText); {
			case body > 500:
				factors = append(factors, factor{0.10, "substantial page content"})
			case body > 50:
				factors = append(factors, factor{0.05, "page content found"})
			}
		}
	}

	if intel.CompanyName != "" {
		factors = append(factors, factor{0.10, "company name identified"})
	}
	if intel.City != "" || intel.State != "" {
		factors = append(factors, factor{0.10, "location identified"})
	}
	if len(intel.Services) >= 1 {
		factors = append(factors, factor{0.10, "services identified"})
	}
	switch {
	case len(intel.Signals) >= 2:
		factors = append(factors, factor{0.10, "multiple trust signals found"})
	case len(intel.Signals) == 1:
		factors = append(factors, factor{0.05, "trust signal found"})
	}
	if input.Email != "" {
		factors = append(factors, factor{0.05, "input email present"})
	}
	if input.Phone != "" {
		factors = append(factors, factor{0.05, "input phone present"})
	}

	var total float64
	labels := make([]string, 0, len(factors))
	for _, f := range factors {
		total += f.points
		labels = append(labels, f.label)
	}

	total = math.Round(clamp(total, 0, 1)*100) / 100

	rationale := strings.Join(labels, "; ")
	if !scraped && len(intel.Services) == 0 && len(intel.Signals) == 0 {
		rationale = model.ThinRecordRationale
	}

	return model.Confidence{Score: total, Rationale: rationale}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Package export renders completed job items as outreach-ready artifacts.
package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/internal/store"
)

// csvHeader is the fixed column order of the export artifact.
var csvHeader = []string{
	"company_name", "website", "city", "state", "category", "services",
	"personalization_bullet_1", "personalization_bullet_2",
	"personalization_bullet_3", "personalization_bullet_4",
	"icebreaker", "confidence_score", "confidence_rationale",
	"scrape_url", "scrape_status",
	"email", "phone", "first_name", "last_name", "title",
}

// WriteCSV renders the completed items of a job. Pending and failed items
// are skipped. Field escaping (quote doubling, wrapping fields containing
// commas/quotes/newlines) follows RFC 4180 via encoding/csv.
func WriteCSV(ctx context.Context, st store.Store, jobID string, w io.Writer) (int, error) {
	items, err := st.GetBulkJobItems(ctx, jobID)
	if err != nil {
		return 0, eris.Wrapf(err, "export: load items for job %s", jobID)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return 0, eris.Wrap(err, "export: write header")
	}

	count := 0
	for i := range items {
		item := &items[i]
		if item.Status != model.ItemStatusComplete {
			continue
		}
		if err := writer.Write(itemRow(item)); err != nil {
			return count, eris.Wrap(err, "export: write row")
		}
		count++
	}

	writer.Flush()
	return count, eris.Wrap(writer.Error(), "export: flush")
}

func itemRow(item *model.BulkJobItem) []string {
	raw := item.ParsedData

	var companyName, city, state, category, services string
	if bi := item.Enrichment; bi != nil {
		companyName = bi.CompanyName
		city = bi.City
		state = bi.State
		category = bi.Industry
		services = strings.Join(bi.Services, "; ")
	}
	if companyName == "" {
		companyName = raw.CompanyName
	}
	if city == "" {
		city = raw.City
	}
	if state == "" {
		state = raw.State
	}

	bullets := make([]string, 4)
	for i := 0; i < len(bullets) && i < len(item.PersonalizationBullets); i++ {
		bullets[i] = item.PersonalizationBullets[i]
	}

	var scrapeURL, scrapeStatus string
	if n := len(item.ScrapeSources); n > 0 {
		last := item.ScrapeSources[n-1]
		scrapeURL = last.URL
		if last.StatusCode > 0 {
			scrapeStatus = strconv.Itoa(last.StatusCode)
		} else {
			scrapeStatus = last.Error
		}
	}

	return []string{
		companyName, raw.Website, city, state, category, services,
		bullets[0], bullets[1], bullets[2], bullets[3],
		item.Icebreaker,
		strconv.FormatFloat(item.ConfidenceScore, 'f', 2, 64),
		item.ConfidenceRationale,
		scrapeURL, scrapeStatus,
		raw.Email, raw.Phone, raw.FirstName, raw.LastName, raw.Title,
	}
}

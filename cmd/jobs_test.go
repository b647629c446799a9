package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadenrich/internal/model"
)

func TestFormatJobsList(t *testing.T) {
	jobs := []model.BulkJob{
		{
			ID:              "0de9f1a2-aaaa-bbbb-cccc-111122223333",
			Source:          "leads.csv",
			Status:          model.JobStatusComplete,
			Progress:        100,
			Successful:      18,
			Failed:          2,
			DuplicatesFound: 3,
			CreatedAt:       time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		},
		{
			ID:        "ffe9f1a2-aaaa-bbbb-cccc-111122223333",
			Source:    "https://example.com/very/long/path/to/a/contact-list-export.csv",
			Status:    model.JobStatusPending,
			CreatedAt: time.Date(2026, 3, 15, 11, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	formatJobsList(&buf, jobs)
	out := buf.String()

	assert.Contains(t, out, "0de9f1a2")
	assert.Contains(t, out, "leads.csv")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "2026-03-14 09:30")
	// Long sources are truncated for display.
	assert.NotContains(t, out, "contact-list-export.csv")
	assert.Contains(t, out, "...")
}

func TestFormatItemsList(t *testing.T) {
	items := []model.BulkJobItem{
		{
			Position:        0,
			Status:          model.ItemStatusComplete,
			ConfidenceScore: 0.85,
			WasDuplicate:    true,
			ParsedData:      model.RawRecord{Email: "jane@acme.com", CompanyName: "Acme"},
		},
		{
			Position:   1,
			Status:     model.ItemStatusFailed,
			RetryCount: 3,
			LastError:  "record has no usable identifier (email, phone, website, or company name)",
		},
	}

	var buf bytes.Buffer
	formatItemsList(&buf, items)
	out := buf.String()

	assert.Contains(t, out, "jane@acme.com")
	assert.Contains(t, out, "0.85")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "failed")
	// Long errors are truncated for display.
	assert.Contains(t, out, "record has no usable identifier (emai...")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "0de9f1a2", truncateID("0de9f1a2-aaaa-bbbb-cccc-111122223333"))
	assert.Equal(t, "short", truncateID("short"))
}

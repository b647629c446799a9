package model

import "time"

// JobStatus represents the current state of a bulk import job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

// ItemStatus represents the state of one record within a job.
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusComplete   ItemStatus = "complete"
	ItemStatusFailed     ItemStatus = "failed"
)

// BulkJob is one import batch. Mutated only by the job processor; terminal
// once complete/failed, though a failed job may be retried.
type BulkJob struct {
	ID              string     `json:"id"`
	Source          string     `json:"source"`
	Status          JobStatus  `json:"status"`
	TotalRecords    int        `json:"total_records"`
	Successful      int        `json:"successful"`
	Failed          int        `json:"failed"`
	DuplicatesFound int        `json:"duplicates_found"`
	Progress        int        `json:"progress"` // 0-100
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// BulkJobItem is one record within a job, carrying its enrichment outputs.
type BulkJobItem struct {
	ID         string     `json:"id"`
	JobID      string     `json:"job_id"`
	Position   int        `json:"position"`
	Status     ItemStatus `json:"status"`
	RetryCount int        `json:"retry_count"`
	LastError  string     `json:"last_error,omitempty"`

	ParsedData RawRecord `json:"parsed_data"`

	Enrichment             *BusinessIntelligence `json:"enrichment,omitempty"`
	ScrapeSources          []ScrapeSource        `json:"scrape_sources,omitempty"`
	PersonalizationBullets []string              `json:"personalization_bullets,omitempty"`
	Icebreaker             string                `json:"icebreaker,omitempty"`
	ConfidenceScore        float64               `json:"confidence_score"`
	ConfidenceRationale    string                `json:"confidence_rationale,omitempty"`
	FitScore               int                   `json:"fit_score"`
	ContactID              string                `json:"contact_id,omitempty"`
	WasDuplicate           bool                  `json:"was_duplicate"`
}

// Terminal reports whether the item needs no further processing given the
// retry ceiling. Complete items are always terminal; failed items only once
// their retries are exhausted.
func (it *BulkJobItem) Terminal(maxRetries int) bool {
	switch it.Status {
	case ItemStatusComplete:
		return true
	case ItemStatusFailed:
		return it.RetryCount >= maxRetries
	default:
		return false
	}
}

// Package store provides the persistence facade for the enrichment pipeline.
package store

import (
	"context"
	"time"

	"github.com/sells-group/leadenrich/internal/model"
)

// JobFilter specifies criteria for listing bulk jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface consumed by the job processor and
// identity resolver. Implementations must return (nil, nil) from GetBulkJob
// and the Find* methods when no row matches; absence is not an error.
type Store interface {
	// Bulk jobs
	CreateBulkJob(ctx context.Context, source string, records []model.RawRecord) (*model.BulkJob, error)
	GetBulkJob(ctx context.Context, jobID string) (*model.BulkJob, error)
	UpdateBulkJob(ctx context.Context, job *model.BulkJob) error
	ListBulkJobs(ctx context.Context, filter JobFilter) ([]model.BulkJob, error)
	ListStaleJobs(ctx context.Context, olderThan time.Time) ([]model.BulkJob, error)

	// Job items, ordered by position
	GetBulkJobItems(ctx context.Context, jobID string) ([]model.BulkJobItem, error)
	UpdateBulkJobItem(ctx context.Context, item *model.BulkJobItem) error

	// Contacts
	FindContactByEmail(ctx context.Context, emailNorm string) (*model.Contact, error)
	FindContactByDomain(ctx context.Context, domainNorm string) (*model.Contact, error)
	FindContactByPhone(ctx context.Context, phoneNorm string) (*model.Contact, error)
	CreateContact(ctx context.Context, contact *model.Contact) error
	UpdateContact(ctx context.Context, contact *model.Contact) error

	// Companies, keyed by domain when present
	UpsertCompany(ctx context.Context, company model.Company) (*model.Company, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

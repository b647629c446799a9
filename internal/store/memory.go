package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadenrich/internal/model"
)

// MemoryStore is an in-process Store used by tests. All methods are safe for
// concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*model.BulkJob
	items     map[string][]*model.BulkJobItem // jobID -> ordered items
	contacts  map[string]*model.Contact       // id -> contact
	companies map[string]*model.Company       // domain -> company
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*model.BulkJob),
		items:     make(map[string][]*model.BulkJobItem),
		contacts:  make(map[string]*model.Contact),
		companies: make(map[string]*model.Company),
	}
}

func (s *MemoryStore) CreateBulkJob(_ context.Context, source string, records []model.RawRecord) (*model.BulkJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &model.BulkJob{
		ID:           uuid.New().String(),
		Source:       source,
		Status:       model.JobStatusPending,
		TotalRecords: len(records),
		CreatedAt:    time.Now().UTC(),
	}
	s.jobs[job.ID] = job

	items := make([]*model.BulkJobItem, 0, len(records))
	for i, rec := range records {
		items = append(items, &model.BulkJobItem{
			ID:         uuid.New().String(),
			JobID:      job.ID,
			Position:   i,
			Status:     model.ItemStatusPending,
			ParsedData: rec,
		})
	}
	s.items[job.ID] = items

	jobCopy := *job
	return &jobCopy, nil
}

func (s *MemoryStore) GetBulkJob(_ context.Context, jobID string) (*model.BulkJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	jobCopy := *job
	return &jobCopy, nil
}

func (s *MemoryStore) UpdateBulkJob(_ context.Context, job *model.BulkJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return eris.Errorf("memory: job not found: %s", job.ID)
	}
	jobCopy := *job
	s.jobs[job.ID] = &jobCopy
	return nil
}

func (s *MemoryStore) ListBulkJobs(_ context.Context, filter JobFilter) ([]model.BulkJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []model.BulkJob
	for _, j := range s.jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		jobs = append(jobs, *j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].CreatedAt.After(jobs[k].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(jobs) {
			return nil, nil
		}
		jobs = jobs[filter.Offset:]
	}
	if filter.Limit > 0 && len(jobs) > filter.Limit {
		jobs = jobs[:filter.Limit]
	}
	return jobs, nil
}

func (s *MemoryStore) ListStaleJobs(_ context.Context, olderThan time.Time) ([]model.BulkJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []model.BulkJob
	for _, j := range s.jobs {
		if j.Status == model.JobStatusProcessing && j.StartedAt != nil && j.StartedAt.Before(olderThan) {
			stale = append(stale, *j)
		}
	}
	sort.Slice(stale, func(i, k int) bool { return stale[i].CreatedAt.Before(stale[k].CreatedAt) })
	return stale, nil
}

func (s *MemoryStore) GetBulkJobItems(_ context.Context, jobID string) ([]model.BulkJobItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, ok := s.items[jobID]
	if !ok {
		return nil, eris.Errorf("memory: job not found: %s", jobID)
	}
	out := make([]model.BulkJobItem, 0, len(items))
	for _, it := range items {
		out = append(out, *it)
	}
	return out, nil
}

func (s *MemoryStore) UpdateBulkJobItem(_ context.Context, item *model.BulkJobItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.items[item.JobID]
	if !ok {
		return eris.Errorf("memory: job not found: %s", item.JobID)
	}
	for i, it := range items {
		if it.ID == item.ID {
			itemCopy := *item
			items[i] = &itemCopy
			return nil
		}
	}
	return eris.Errorf("memory: item not found: %s", item.ID)
}

func (s *MemoryStore) FindContactByEmail(_ context.Context, emailNorm string) (*model.Contact, error) {
	return s.findContact(func(c *model.Contact) bool { return c.EmailNorm == emailNorm })
}

func (s *MemoryStore) FindContactByDomain(_ context.Context, domainNorm string) (*model.Contact, error) {
	return s.findContact(func(c *model.Contact) bool { return c.DomainNorm == domainNorm })
}

func (s *MemoryStore) FindContactByPhone(_ context.Context, phoneNorm string) (*model.Contact, error) {
	return s.findContact(func(c *model.Contact) bool { return c.PhoneNorm == phoneNorm })
}

func (s *MemoryStore) findContact(match func(*model.Contact) bool) (*model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.contacts {
		if match(c) {
			contactCopy := *c
			return &contactCopy, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CreateContact(_ context.Context, contact *model.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	contactCopy := *contact
	s.contacts[contact.ID] = &contactCopy
	return nil
}

func (s *MemoryStore) UpdateContact(_ context.Context, contact *model.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contacts[contact.ID]; !ok {
		return eris.Errorf("memory: contact not found: %s", contact.ID)
	}
	contactCopy := *contact
	s.contacts[contact.ID] = &contactCopy
	return nil
}

func (s *MemoryStore) UpsertCompany(_ context.Context, company model.Company) (*model.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if company.Domain != "" {
		if existing, ok := s.companies[company.Domain]; ok {
			if existing.Name == "" && company.Name != "" {
				existing.Name = company.Name
			}
			if existing.Industry == "" && company.Industry != "" {
				existing.Industry = company.Industry
			}
			if existing.City == "" && company.City != "" {
				existing.City = company.City
			}
			if existing.State == "" && company.State != "" {
				existing.State = company.State
			}
			companyCopy := *existing
			return &companyCopy, nil
		}
	}

	company.ID = uuid.New().String()
	company.CreatedAt = time.Now().UTC()
	companyCopy := company
	if company.Domain != "" {
		s.companies[company.Domain] = &companyCopy
	}
	result := companyCopy
	return &result, nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }

// ContactCount reports the number of stored contacts. Test helper.
func (s *MemoryStore) ContactCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contacts)
}

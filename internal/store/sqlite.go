package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadenrich/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// driver for single-machine runs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS bulk_jobs (
	id               TEXT PRIMARY KEY,
	source           TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	total_records    INTEGER NOT NULL DEFAULT 0,
	successful       INTEGER NOT NULL DEFAULT 0,
	failed           INTEGER NOT NULL DEFAULT 0,
	duplicates_found INTEGER NOT NULL DEFAULT 0,
	progress         INTEGER NOT NULL DEFAULT 0,
	started_at       DATETIME,
	completed_at     DATETIME,
	last_error       TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS bulk_job_items (
	id                      TEXT PRIMARY KEY,
	job_id                  TEXT NOT NULL REFERENCES bulk_jobs(id),
	position                INTEGER NOT NULL,
	status                  TEXT NOT NULL DEFAULT 'pending',
	retry_count             INTEGER NOT NULL DEFAULT 0,
	last_error              TEXT NOT NULL DEFAULT '',
	parsed_data             TEXT NOT NULL,
	enrichment              TEXT,
	scrape_sources          TEXT,
	personalization_bullets TEXT,
	icebreaker              TEXT NOT NULL DEFAULT '',
	confidence_score        REAL NOT NULL DEFAULT 0,
	confidence_rationale    TEXT NOT NULL DEFAULT '',
	fit_score               INTEGER NOT NULL DEFAULT 0,
	contact_id              TEXT,
	was_duplicate           INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS contacts (
	id            TEXT PRIMARY KEY,
	first_name    TEXT NOT NULL DEFAULT '',
	last_name     TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	email_norm    TEXT NOT NULL DEFAULT '',
	phone         TEXT NOT NULL DEFAULT '',
	phone_norm    TEXT NOT NULL DEFAULT '',
	company       TEXT NOT NULL DEFAULT '',
	website       TEXT NOT NULL DEFAULT '',
	domain_norm   TEXT NOT NULL DEFAULT '',
	city          TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL DEFAULT '',
	linkedin_url  TEXT NOT NULL DEFAULT '',
	sources       TEXT NOT NULL DEFAULT '[]',
	quality_score INTEGER NOT NULL DEFAULT 0,
	last_seen_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	domain     TEXT NOT NULL DEFAULT '',
	industry   TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bulk_jobs_status ON bulk_jobs(status);
CREATE INDEX IF NOT EXISTS idx_bulk_job_items_job_id ON bulk_job_items(job_id, position);
CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_email_norm ON contacts(email_norm) WHERE email_norm != '';
CREATE INDEX IF NOT EXISTS idx_contacts_domain_norm ON contacts(domain_norm) WHERE domain_norm != '';
CREATE INDEX IF NOT EXISTS idx_contacts_phone_norm ON contacts(phone_norm) WHERE phone_norm != '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_companies_domain ON companies(domain) WHERE domain != '';
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateBulkJob(ctx context.Context, source string, records []model.RawRecord) (*model.BulkJob, error) {
	job := &model.BulkJob{
		ID:           uuid.New().String(),
		Source:       source,
		Status:       model.JobStatusPending,
		TotalRecords: len(records),
		CreatedAt:    time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bulk_jobs (id, source, status, total_records, created_at) VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.Source, string(job.Status), job.TotalRecords, job.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}

	for i, rec := range records {
		parsed, err := json.Marshal(rec)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal record")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO bulk_job_items (id, job_id, position, status, parsed_data) VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), job.ID, i, string(model.ItemStatusPending), string(parsed),
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert item %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit job")
	}
	return job, nil
}

const jobColumns = `id, source, status, total_records, successful, failed, duplicates_found, progress, started_at, completed_at, last_error, created_at`

func (s *SQLiteStore) GetBulkJob(ctx context.Context, jobID string) (*model.BulkJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM bulk_jobs WHERE id = ?`, jobID)
	job, err := scanJobRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", jobID)
	}
	return job, nil
}

func (s *SQLiteStore) UpdateBulkJob(ctx context.Context, job *model.BulkJob) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bulk_jobs SET status = ?, successful = ?, failed = ?, duplicates_found = ?, progress = ?, started_at = ?, completed_at = ?, last_error = ? WHERE id = ?`,
		string(job.Status), job.Successful, job.Failed, job.DuplicatesFound,
		job.Progress, job.StartedAt, job.CompletedAt, job.LastError, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}
	return checkRowsAffected(res, "job", job.ID)
}

func (s *SQLiteStore) ListBulkJobs(ctx context.Context, filter JobFilter) ([]model.BulkJob, error) {
	query := `SELECT ` + jobColumns + ` FROM bulk_jobs`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + strconv.Itoa(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.BulkJob
	for rows.Next() {
		job, err := scanJobRow(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: iterate jobs")
}

func (s *SQLiteStore) ListStaleJobs(ctx context.Context, olderThan time.Time) ([]model.BulkJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM bulk_jobs WHERE status = ? AND started_at IS NOT NULL AND started_at < ?`,
		string(model.JobStatusProcessing), olderThan,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stale jobs")
	}
	defer rows.Close()

	var jobs []model.BulkJob
	for rows.Next() {
		job, err := scanJobRow(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stale job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: iterate stale jobs")
}

func (s *SQLiteStore) GetBulkJobItems(ctx context.Context, jobID string) ([]model.BulkJobItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, position, status, retry_count, last_error, parsed_data, enrichment, scrape_sources, personalization_bullets, icebreaker, confidence_score, confidence_rationale, fit_score, contact_id, was_duplicate FROM bulk_job_items WHERE job_id = ? ORDER BY position`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list items for job %s", jobID)
	}
	defer rows.Close()

	var items []model.BulkJobItem
	for rows.Next() {
		var it model.BulkJobItem
		var parsed string
		var enrichment, sources, bullets, contactID sql.NullString
		if err := rows.Scan(&it.ID, &it.JobID, &it.Position, &it.Status, &it.RetryCount,
			&it.LastError, &parsed, &enrichment, &sources, &bullets, &it.Icebreaker,
			&it.ConfidenceScore, &it.ConfidenceRationale, &it.FitScore, &contactID,
			&it.WasDuplicate); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan item")
		}
		if err := json.Unmarshal([]byte(parsed), &it.ParsedData); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal parsed_data")
		}
		if enrichment.Valid && enrichment.String != "" {
			it.Enrichment = &model.BusinessIntelligence{}
			if err := json.Unmarshal([]byte(enrichment.String), it.Enrichment); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal enrichment")
			}
		}
		if sources.Valid && sources.String != "" {
			if err := json.Unmarshal([]byte(sources.String), &it.ScrapeSources); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal scrape_sources")
			}
		}
		if bullets.Valid && bullets.String != "" {
			if err := json.Unmarshal([]byte(bullets.String), &it.PersonalizationBullets); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal bullets")
			}
		}
		it.ContactID = contactID.String
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: iterate items")
}

func (s *SQLiteStore) UpdateBulkJobItem(ctx context.Context, item *model.BulkJobItem) error {
	marshal := func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}

	var enrichment, sources, bullets any
	var err error
	if item.Enrichment != nil {
		if enrichment, err = marshal(item.Enrichment); err != nil {
			return eris.Wrap(err, "sqlite: marshal enrichment")
		}
	}
	if item.ScrapeSources != nil {
		if sources, err = marshal(item.ScrapeSources); err != nil {
			return eris.Wrap(err, "sqlite: marshal scrape_sources")
		}
	}
	if item.PersonalizationBullets != nil {
		if bullets, err = marshal(item.PersonalizationBullets); err != nil {
			return eris.Wrap(err, "sqlite: marshal bullets")
		}
	}

	var contactID any
	if item.ContactID != "" {
		contactID = item.ContactID
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE bulk_job_items SET status = ?, retry_count = ?, last_error = ?, enrichment = ?, scrape_sources = ?, personalization_bullets = ?, icebreaker = ?, confidence_score = ?, confidence_rationale = ?, fit_score = ?, contact_id = ?, was_duplicate = ? WHERE id = ?`,
		string(item.Status), item.RetryCount, item.LastError, enrichment, sources, bullets,
		item.Icebreaker, item.ConfidenceScore, item.ConfidenceRationale, item.FitScore,
		contactID, item.WasDuplicate, item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update item %s", item.ID)
	}
	return checkRowsAffected(res, "item", item.ID)
}

const sqliteContactColumns = `id, first_name, last_name, email, email_norm, phone, phone_norm, company, website, domain_norm, city, state, title, linkedin_url, sources, quality_score, last_seen_at, created_at`

func (s *SQLiteStore) FindContactByEmail(ctx context.Context, emailNorm string) (*model.Contact, error) {
	return s.findContact(ctx, "email_norm", emailNorm)
}

func (s *SQLiteStore) FindContactByDomain(ctx context.Context, domainNorm string) (*model.Contact, error) {
	return s.findContact(ctx, "domain_norm", domainNorm)
}

func (s *SQLiteStore) FindContactByPhone(ctx context.Context, phoneNorm string) (*model.Contact, error) {
	return s.findContact(ctx, "phone_norm", phoneNorm)
}

func (s *SQLiteStore) findContact(ctx context.Context, column, key string) (*model.Contact, error) {
	if key == "" {
		return nil, nil
	}
	var c model.Contact
	var sources string
	err := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteContactColumns+` FROM contacts WHERE `+column+` = ? LIMIT 1`, key,
	).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.EmailNorm, &c.Phone, &c.PhoneNorm,
		&c.Company, &c.Website, &c.DomainNorm, &c.City, &c.State, &c.Title, &c.LinkedInURL,
		&sources, &c.QualityScore, &c.LastSeenAt, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find contact")
	}
	if sources != "" {
		if err := json.Unmarshal([]byte(sources), &c.Sources); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal sources")
		}
	}
	return &c, nil
}

func (s *SQLiteStore) CreateContact(ctx context.Context, contact *model.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	sources, err := json.Marshal(contact.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contacts (`+sqliteContactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contact.ID, contact.FirstName, contact.LastName, contact.Email, contact.EmailNorm,
		contact.Phone, contact.PhoneNorm, contact.Company, contact.Website, contact.DomainNorm,
		contact.City, contact.State, contact.Title, contact.LinkedInURL, string(sources),
		contact.QualityScore, contact.LastSeenAt, contact.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert contact")
}

func (s *SQLiteStore) UpdateContact(ctx context.Context, contact *model.Contact) error {
	sources, err := json.Marshal(contact.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET first_name = ?, last_name = ?, email = ?, email_norm = ?, phone = ?, phone_norm = ?, company = ?, website = ?, domain_norm = ?, city = ?, state = ?, title = ?, linkedin_url = ?, sources = ?, quality_score = ?, last_seen_at = ? WHERE id = ?`,
		contact.FirstName, contact.LastName, contact.Email, contact.EmailNorm,
		contact.Phone, contact.PhoneNorm, contact.Company, contact.Website, contact.DomainNorm,
		contact.City, contact.State, contact.Title, contact.LinkedInURL, string(sources),
		contact.QualityScore, contact.LastSeenAt, contact.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update contact %s", contact.ID)
	}
	return checkRowsAffected(res, "contact", contact.ID)
}

func (s *SQLiteStore) UpsertCompany(ctx context.Context, company model.Company) (*model.Company, error) {
	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	if company.CreatedAt.IsZero() {
		company.CreatedAt = time.Now().UTC()
	}

	if company.Domain == "" {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO companies (id, name, domain, industry, city, state, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			company.ID, company.Name, company.Domain, company.Industry, company.City, company.State, company.CreatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: insert company")
		}
		return &company, nil
	}

	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO companies (id, name, domain, industry, city, state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (domain) WHERE domain != ''
		 DO UPDATE SET
			name = CASE WHEN companies.name = '' THEN excluded.name ELSE companies.name END,
			industry = CASE WHEN companies.industry = '' THEN excluded.industry ELSE companies.industry END,
			city = CASE WHEN companies.city = '' THEN excluded.city ELSE companies.city END,
			state = CASE WHEN companies.state = '' THEN excluded.state ELSE companies.state END
		 RETURNING id`,
		company.ID, company.Name, company.Domain, company.Industry, company.City, company.State, company.CreatedAt,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert company")
	}
	company.ID = id
	return &company, nil
}

// scanJobRow adapts a Scan func so single-row and multi-row reads share one
// nullable-time decoding path.
func scanJobRow(scan func(...any) error) (*model.BulkJob, error) {
	var j model.BulkJob
	var started, completed sql.NullTime
	if err := scan(&j.ID, &j.Source, &j.Status, &j.TotalRecords, &j.Successful, &j.Failed,
		&j.DuplicatesFound, &j.Progress, &started, &completed, &j.LastError, &j.CreatedAt); err != nil {
		return nil, err
	}
	if started.Valid {
		t := started.Time
		j.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		j.CompletedAt = &t
	}
	return &j, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadenrich/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries prepared on each new connection for the
// hot paths of the job loop.
var preparedStatements = map[string]string{
	"get_job":        `SELECT id, source, status, total_records, successful, failed, duplicates_found, progress, started_at, completed_at, last_error, created_at FROM bulk_jobs WHERE id = $1`,
	"update_job":     `UPDATE bulk_jobs SET status = $1, successful = $2, failed = $3, duplicates_found = $4, progress = $5, started_at = $6, completed_at = $7, last_error = $8 WHERE id = $9`,
	"update_item":    `UPDATE bulk_job_items SET status = $1, retry_count = $2, last_error = $3, enrichment = $4, scrape_sources = $5, personalization_bullets = $6, icebreaker = $7, confidence_score = $8, confidence_rationale = $9, fit_score = $10, contact_id = $11, was_duplicate = $12 WHERE id = $13`,
	"find_by_email":  `SELECT ` + contactColumns + ` FROM contacts WHERE email_norm = $1 LIMIT 1`,
	"find_by_domain": `SELECT ` + contactColumns + ` FROM contacts WHERE domain_norm = $1 LIMIT 1`,
	"find_by_phone":  `SELECT ` + contactColumns + ` FROM contacts WHERE phone_norm = $1 LIMIT 1`,
}

const contactColumns = `id, first_name, last_name, email, email_norm, phone, phone_norm, company, website, domain_norm, city, state, title, linkedin_url, sources, quality_score, last_seen_at, created_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS bulk_jobs (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source           TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	total_records    INTEGER NOT NULL DEFAULT 0,
	successful       INTEGER NOT NULL DEFAULT 0,
	failed           INTEGER NOT NULL DEFAULT 0,
	duplicates_found INTEGER NOT NULL DEFAULT 0,
	progress         INTEGER NOT NULL DEFAULT 0,
	started_at       TIMESTAMPTZ,
	completed_at     TIMESTAMPTZ,
	last_error       TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bulk_job_items (
	id                      TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id                  TEXT NOT NULL REFERENCES bulk_jobs(id),
	position                INTEGER NOT NULL,
	status                  TEXT NOT NULL DEFAULT 'pending',
	retry_count             INTEGER NOT NULL DEFAULT 0,
	last_error              TEXT NOT NULL DEFAULT '',
	parsed_data             JSONB NOT NULL,
	enrichment              JSONB,
	scrape_sources          JSONB,
	personalization_bullets JSONB,
	icebreaker              TEXT NOT NULL DEFAULT '',
	confidence_score        DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence_rationale    TEXT NOT NULL DEFAULT '',
	fit_score               INTEGER NOT NULL DEFAULT 0,
	contact_id              TEXT,
	was_duplicate           BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS contacts (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	sources       JSONB NOT NULL DEFAULT '[]',
	quality_score INTEGER NOT NULL DEFAULT 0,
	last_seen_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	domain     TEXT NOT NULL DEFAULT '',
	industry   TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bulk_jobs_status ON bulk_jobs(status);
CREATE INDEX IF NOT EXISTS idx_bulk_jobs_started_at ON bulk_jobs(started_at);
CREATE INDEX IF NOT EXISTS idx_bulk_job_items_job_id ON bulk_job_items(job_id, position);
CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_email_norm ON contacts(email_norm) WHERE email_norm != '';
CREATE INDEX IF NOT EXISTS idx_contacts_domain_norm ON contacts(domain_norm) WHERE domain_norm != '';
CREATE INDEX IF NOT EXISTS idx_contacts_phone_norm ON contacts(phone_norm) WHERE phone_norm != '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_companies_domain ON companies(domain) WHERE domain != '';
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateBulkJob(ctx context.Context, source string, records []model.RawRecord) (*model.BulkJob, error) {
	job := &model.BulkJob{
		ID:           uuid.New().String(),
		Source:       source,
		Status:       model.JobStatusPending,
		TotalRecords: len(records),
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO bulk_jobs (id, source, status, total_records, created_at) VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.Source, string(job.Status), job.TotalRecords, job.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}

	for i, rec := range records {
		parsed, err := json.Marshal(rec)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal record")
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO bulk_job_items (id, job_id, position, status, parsed_data) VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), job.ID, i, string(model.ItemStatusPending), parsed,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: insert item %d", i)
		}
	}
	return job, nil
}

func (s *PostgresStore) GetBulkJob(ctx context.Context, jobID string) (*model.BulkJob, error) {
	var j model.BulkJob
	err := s.pool.QueryRow(ctx,
		`SELECT id, source, status, total_records, successful, failed, duplicates_found, progress, started_at, completed_at, last_error, created_at FROM bulk_jobs WHERE id = $1`,
		jobID,
	).Scan(&j.ID, &j.Source, &j.Status, &j.TotalRecords, &j.Successful, &j.Failed,
		&j.DuplicatesFound, &j.Progress, &j.StartedAt, &j.CompletedAt, &j.LastError, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}
	return &j, nil
}

func (s *PostgresStore) UpdateBulkJob(ctx context.Context, job *model.BulkJob) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bulk_jobs SET status = $1, successful = $2, failed = $3, duplicates_found = $4, progress = $5, started_at = $6, completed_at = $7, last_error = $8 WHERE id = $9`,
		string(job.Status), job.Successful, job.Failed, job.DuplicatesFound,
		job.Progress, job.StartedAt, job.CompletedAt, job.LastError, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", job.ID)
	}
	return nil
}

func (s *PostgresStore) ListBulkJobs(ctx context.Context, filter JobFilter) ([]model.BulkJob, error) {
	query := `SELECT id, source, status, total_records, successful, failed, duplicates_found, progress, started_at, completed_at, last_error, created_at FROM bulk_jobs`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + strconv.Itoa(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *PostgresStore) ListStaleJobs(ctx context.Context, olderThan time.Time) ([]model.BulkJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, status, total_records, successful, failed, duplicates_found, progress, started_at, completed_at, last_error, created_at FROM bulk_jobs WHERE status = $1 AND started_at IS NOT NULL AND started_at < $2`,
		string(model.JobStatusProcessing), olderThan,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stale jobs")
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *PostgresStore) GetBulkJobItems(ctx context.Context, jobID string) ([]model.BulkJobItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, position, status, retry_count, last_error, parsed_data, enrichment, scrape_sources, personalization_bullets, icebreaker, confidence_score, confidence_rationale, fit_score, contact_id, was_duplicate FROM bulk_job_items WHERE job_id = $1 ORDER BY position`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list items for job %s", jobID)
	}
	defer rows.Close()

	var items []model.BulkJobItem
	for rows.Next() {
		var it model.BulkJobItem
		var parsed, enrichment, sources, bullets []byte
		var contactID *string
		if err := rows.Scan(&it.ID, &it.JobID, &it.Position, &it.Status, &it.RetryCount,
			&it.LastError, &parsed, &enrichment, &sources, &bullets, &it.Icebreaker,
			&it.ConfidenceScore, &it.ConfidenceRationale, &it.FitScore, &contactID,
			&it.WasDuplicate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan item")
		}
		if err := json.Unmarshal(parsed, &it.ParsedData); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal parsed_data")
		}
		if len(enrichment) > 0 {
			it.Enrichment = &model.BusinessIntelligence{}
			if err := json.Unmarshal(enrichment, it.Enrichment); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal enrichment")
			}
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &it.ScrapeSources); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal scrape_sources")
			}
		}
		if len(bullets) > 0 {
			if err := json.Unmarshal(bullets, &it.PersonalizationBullets); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal bullets")
			}
		}
		if contactID != nil {
			it.ContactID = *contactID
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: iterate items")
}

func (s *PostgresStore) UpdateBulkJobItem(ctx context.Context, item *model.BulkJobItem) error {
	var enrichment, sources, bullets []byte
	var err error
	if item.Enrichment != nil {
		if enrichment, err = json.Marshal(item.Enrichment); err != nil {
			return eris.Wrap(err, "postgres: marshal enrichment")
		}
	}
	if item.ScrapeSources != nil {
		if sources, err = json.Marshal(item.ScrapeSources); err != nil {
			return eris.Wrap(err, "postgres: marshal scrape_sources")
		}
	}
	if item.PersonalizationBullets != nil {
		if bullets, err = json.Marshal(item.PersonalizationBullets); err != nil {
			return eris.Wrap(err, "postgres: marshal bullets")
		}
	}

	var contactID *string
	if item.ContactID != "" {
		contactID = &item.ContactID
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE bulk_job_items SET status = $1, retry_count = $2, last_error = $3, enrichment = $4, scrape_sources = $5, personalization_bullets = $6, icebreaker = $7, confidence_score = $8, confidence_rationale = $9, fit_score = $10, contact_id = $11, was_duplicate = $12 WHERE id = $13`,
		string(item.Status), item.RetryCount, item.LastError, enrichment, sources, bullets,
		item.Icebreaker, item.ConfidenceScore, item.ConfidenceRationale, item.FitScore,
		contactID, item.WasDuplicate, item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update item %s", item.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("item not found: %s", item.ID)
	}
	return nil
}

func (s *PostgresStore) FindContactByEmail(ctx context.Context, emailNorm string) (*model.Contact, error) {
	return s.findContact(ctx, `SELECT `+contactColumns+` FROM contacts WHERE email_norm = $1 LIMIT 1`, emailNorm)
}

func (s *PostgresStore) FindContactByDomain(ctx context.Context, domainNorm string) (*model.Contact, error) {
	return s.findContact(ctx, `SELECT `+contactColumns+` FROM contacts WHERE domain_norm = $1 LIMIT 1`, domainNorm)
}

func (s *PostgresStore) FindContactByPhone(ctx context.Context, phoneNorm string) (*model.Contact, error) {
	return s.findContact(ctx, `SELECT `+contactColumns+` FROM contacts WHERE phone_norm = $1 LIMIT 1`, phoneNorm)
}

func (s *PostgresStore) findContact(ctx context.Context, query, key string) (*model.Contact, error) {
	if key == "" {
		return nil, nil
	}
	var c model.Contact
	var sources []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.EmailNorm, &c.Phone, &c.PhoneNorm,
		&c.Company, &c.Website, &c.DomainNorm, &c.City, &c.State, &c.Title, &c.LinkedInURL,
		&sources, &c.QualityScore, &c.LastSeenAt, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find contact")
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &c.Sources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal sources")
		}
	}
	return &c, nil
}

func (s *PostgresStore) CreateContact(ctx context.Context, contact *model.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	sources, err := json.Marshal(contact.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sources")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO contacts (`+contactColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		contact.ID, contact.FirstName, contact.LastName, contact.Email, contact.EmailNorm,
		contact.Phone, contact.PhoneNorm, contact.Company, contact.Website, contact.DomainNorm,
		contact.City, contact.State, contact.Title, contact.LinkedInURL, sources,
		contact.QualityScore, contact.LastSeenAt, contact.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert contact")
}

func (s *PostgresStore) UpdateContact(ctx context.Context, contact *model.Contact) error {
	sources, err := json.Marshal(contact.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sources")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE contacts SET first_name = $1, last_name = $2, email = $3, email_norm = $4, phone = $5, phone_norm = $6, company = $7, website = $8, domain_norm = $9, city = $10, state = $11, title = $12, linkedin_url = $13, sources = $14, quality_score = $15, last_seen_at = $16 WHERE id = $17`,
		contact.FirstName, contact.LastName, contact.Email, contact.EmailNorm,
		contact.Phone, contact.PhoneNorm, contact.Company, contact.Website, contact.DomainNorm,
		contact.City, contact.State, contact.Title, contact.LinkedInURL, sources,
		contact.QualityScore, contact.LastSeenAt, contact.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update contact %s", contact.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("contact not found: %s", contact.ID)
	}
	return nil
}

func (s *PostgresStore) UpsertCompany(ctx context.Context, company model.Company) (*model.Company, error) {
	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	if company.CreatedAt.IsZero() {
		company.CreatedAt = time.Now().UTC()
	}

	if company.Domain == "" {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO companies (id, name, domain, industry, city, state, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			company.ID, company.Name, company.Domain, company.Industry, company.City, company.State, company.CreatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: insert company")
		}
		return &company, nil
	}

	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO companies (id, name, domain, industry, city, state, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (domain) WHERE domain != ''
		 DO UPDATE SET
			name = COALESCE(NULLIF(companies.name, ''), EXCLUDED.name),
			industry = COALESCE(NULLIF(companies.industry, ''), EXCLUDED.industry),
			city = COALESCE(NULLIF(companies.city, ''), EXCLUDED.city),
			state = COALESCE(NULLIF(companies.state, ''), EXCLUDED.state)
		 RETURNING id`,
		company.ID, company.Name, company.Domain, company.Industry, company.City, company.State, company.CreatedAt,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert company")
	}
	company.ID = id
	return &company, nil
}

func scanJobs(rows pgx.Rows) ([]model.BulkJob, error) {
	var jobs []model.BulkJob
	for rows.Next() {
		var j model.BulkJob
		if err := rows.Scan(&j.ID, &j.Source, &j.Status, &j.TotalRecords, &j.Successful,
			&j.Failed, &j.DuplicatesFound, &j.Progress, &j.StartedAt, &j.CompletedAt,
			&j.LastError, &j.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: iterate jobs")
}

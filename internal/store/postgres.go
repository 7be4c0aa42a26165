package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-pipeline/internal/db"
	"github.com/sells-group/outreach-pipeline/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

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

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL UNIQUE,
	first_name     TEXT NOT NULL DEFAULT '',
	last_name      TEXT NOT NULL DEFAULT '',
	company_name   TEXT NOT NULL DEFAULT '',
	company_domain TEXT NOT NULL DEFAULT '',
	discovery_id   TEXT NOT NULL DEFAULT '',
	crm_id         TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contacts_domain ON contacts(company_domain);

CREATE TABLE IF NOT EXISTS enrichments (
	id                 TEXT PRIMARY KEY,
	contact_id         TEXT NOT NULL REFERENCES contacts(id),
	status             TEXT NOT NULL DEFAULT 'awaiting_approval',
	address_line1      TEXT NOT NULL DEFAULT '',
	address_line2      TEXT NOT NULL DEFAULT '',
	city               TEXT NOT NULL DEFAULT '',
	postcode           TEXT NOT NULL DEFAULT '',
	country            TEXT NOT NULL DEFAULT '',
	classification     TEXT NOT NULL DEFAULT '',
	note               TEXT NOT NULL DEFAULT '',
	note_source_url    TEXT NOT NULL DEFAULT '',
	address_source_url TEXT NOT NULL DEFAULT '',
	approval_block     TEXT NOT NULL DEFAULT '',
	error              TEXT NOT NULL DEFAULT '',
	decided_by         TEXT NOT NULL DEFAULT '',
	decided_at         TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_enrichments_contact ON enrichments(contact_id);
CREATE INDEX IF NOT EXISTS idx_enrichments_status ON enrichments(status);
CREATE UNIQUE INDEX IF NOT EXISTS ux_enrichments_pending
	ON enrichments(contact_id) WHERE status = 'awaiting_approval';

CREATE TABLE IF NOT EXISTS events (
	id            TEXT PRIMARY KEY,
	contact_id    TEXT,
	enrichment_id TEXT,
	type          TEXT NOT NULL,
	payload       JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_events_contact ON events(contact_id);
CREATE INDEX IF NOT EXISTS idx_events_enrichment ON events(enrichment_id);
CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at DESC);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	queue        TEXT NOT NULL,
	kind         TEXT NOT NULL,
	payload      JSONB,
	status       TEXT NOT NULL DEFAULT 'pending',
	attempts     INT NOT NULL DEFAULT 0,
	max_attempts INT NOT NULL DEFAULT 3,
	next_run_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_error   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_due ON jobs(queue, status, next_run_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const contactColumns = `id, email, first_name, last_name, company_name, company_domain, discovery_id, crm_id, created_at, updated_at`

func scanContact(row pgx.Row) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.CompanyName,
		&c.CompanyDomain, &c.DiscoveryID, &c.CRMID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "postgres: scan contact")
	}
	return &c, nil
}

func (s *PostgresStore) UpsertContactByEmail(ctx context.Context, c model.Contact) (*model.Contact, bool, error) {
	email := model.NormalizeEmail(c.Email)
	if email == "" {
		return nil, false, eris.New("postgres: contact email is required")
	}
	now := time.Now().UTC()

	// Non-empty incoming values win; empty values keep what is on file.
	row := s.pool.QueryRow(ctx, `
		INSERT INTO contacts (id, email, first_name, last_name, company_name, company_domain, discovery_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (email) DO UPDATE SET
			first_name     = COALESCE(NULLIF(EXCLUDED.first_name, ''), contacts.first_name),
			last_name      = COALESCE(NULLIF(EXCLUDED.last_name, ''), contacts.last_name),
			company_name   = COALESCE(NULLIF(EXCLUDED.company_name, ''), contacts.company_name),
			company_domain = COALESCE(NULLIF(EXCLUDED.company_domain, ''), contacts.company_domain),
			discovery_id   = COALESCE(NULLIF(EXCLUDED.discovery_id, ''), contacts.discovery_id),
			updated_at     = EXCLUDED.updated_at
		RETURNING `+contactColumns+`, (xmax = 0) AS inserted`,
		uuid.New().String(), email, c.FirstName, c.LastName, c.CompanyName,
		strings.ToLower(c.CompanyDomain), c.DiscoveryID, now,
	)

	var out model.Contact
	var inserted bool
	err := row.Scan(&out.ID, &out.Email, &out.FirstName, &out.LastName, &out.CompanyName,
		&out.CompanyDomain, &out.DiscoveryID, &out.CRMID, &out.CreatedAt, &out.UpdatedAt, &inserted)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: upsert contact")
	}
	return &out, inserted, nil
}

func (s *PostgresStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	return scanContact(s.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id))
}

func (s *PostgresStore) FindContactByEmail(ctx context.Context, email string) (*model.Contact, error) {
	return scanContact(s.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE email = $1`,
		model.NormalizeEmail(email)))
}

func (s *PostgresStore) FindRecentContactByDomainName(ctx context.Context, domain, fullName string, since time.Time) (*model.Contact, error) {
	return scanContact(s.pool.QueryRow(ctx, `
		SELECT `+contactColumns+` FROM contacts
		WHERE company_domain = $1
		  AND lower(trim(first_name || ' ' || last_name)) = lower(trim($2))
		  AND updated_at >= $3
		ORDER BY updated_at DESC LIMIT 1`,
		strings.ToLower(domain), fullName, since))
}

func (s *PostgresStore) SetContactCRMID(ctx context.Context, contactID, crmID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contacts SET crm_id = $1, updated_at = $2 WHERE id = $3`,
		crmID, time.Now().UTC(), contactID)
	if err != nil {
		return eris.Wrapf(err, "postgres: set crm id for contact %s", contactID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const enrichmentColumns = `id, contact_id, status, address_line1, address_line2, city, postcode, country, classification, note, note_source_url, address_source_url, approval_block, error, decided_by, decided_at, created_at, updated_at`

func scanEnrichment(row pgx.Row) (*model.Enrichment, error) {
	var e model.Enrichment
	err := row.Scan(&e.ID, &e.ContactID, &e.Status, &e.AddressLine1, &e.AddressLine2,
		&e.City, &e.Postcode, &e.Country, &e.Classification, &e.Note,
		&e.NoteSourceURL, &e.AddrSourceURL, &e.ApprovalBlock, &e.Error,
		&e.DecidedBy, &e.DecidedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "postgres: scan enrichment")
	}
	return &e, nil
}

func (s *PostgresStore) CreateOrReusePendingEnrichment(ctx context.Context, contactID string) (*model.Enrichment, bool, error) {
	now := time.Now().UTC()

	// The partial unique index on pending enrichments makes this race-safe:
	// a concurrent insert lands on DO NOTHING and the follow-up select
	// observes the winner's row.
	row := s.pool.QueryRow(ctx, `
		INSERT INTO enrichments (id, contact_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (contact_id) WHERE status = 'awaiting_approval' DO NOTHING
		RETURNING `+enrichmentColumns,
		uuid.New().String(), contactID, string(model.StatusAwaitingApproval), now)

	e, err := scanEnrichment(row)
	if err == nil {
		return e, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, eris.Wrap(err, "postgres: create pending enrichment")
	}

	e, err = scanEnrichment(s.pool.QueryRow(ctx, `
		SELECT `+enrichmentColumns+` FROM enrichments
		WHERE contact_id = $1 AND status = $2`,
		contactID, string(model.StatusAwaitingApproval)))
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: reuse pending enrichment")
	}
	return e, false, nil
}

func (s *PostgresStore) GetEnrichment(ctx context.Context, id string) (*model.Enrichment, error) {
	return scanEnrichment(s.pool.QueryRow(ctx,
		`SELECT `+enrichmentColumns+` FROM enrichments WHERE id = $1`, id))
}

// patchAssignments maps set EnrichmentPatch fields to numbered column
// assignments starting at placeholder $idx.
func patchAssignments(p EnrichmentPatch, idx int) ([]string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, v)
		idx++
	}
	if p.AddressLine1 != nil {
		add("address_line1", *p.AddressLine1)
	}
	if p.AddressLine2 != nil {
		add("address_line2", *p.AddressLine2)
	}
	if p.City != nil {
		add("city", *p.City)
	}
	if p.Postcode != nil {
		add("postcode", *p.Postcode)
	}
	if p.Country != nil {
		add("country", *p.Country)
	}
	if p.Classification != nil {
		add("classification", *p.Classification)
	}
	if p.Note != nil {
		add("note", *p.Note)
	}
	if p.NoteSourceURL != nil {
		add("note_source_url", *p.NoteSourceURL)
	}
	if p.AddrSourceURL != nil {
		add("address_source_url", *p.AddrSourceURL)
	}
	if p.ApprovalBlock != nil {
		add("approval_block", *p.ApprovalBlock)
	}
	if p.Error != nil {
		add("error", *p.Error)
	}
	if p.DecidedBy != nil {
		add("decided_by", *p.DecidedBy)
	}
	if p.DecidedAt != nil {
		add("decided_at", *p.DecidedAt)
	}
	return sets, args
}

func (s *PostgresStore) TransitionEnrichment(ctx context.Context, id string, from []model.EnrichmentStatus, to model.EnrichmentStatus, patch EnrichmentPatch) (*model.Enrichment, error) {
	fromStrs := make([]string, len(from))
	for i, st := range from {
		fromStrs[i] = string(st)
	}

	// $1 status, $2 updated_at, $3 id, $4.. patch fields, last = allowed set.
	sets, args := patchAssignments(patch, 4)
	sets = append([]string{"status = $1", "updated_at = $2"}, sets...)
	args = append([]any{string(to), time.Now().UTC(), id}, args...)
	query := fmt.Sprintf(
		`UPDATE enrichments SET %s WHERE id = $3 AND status = ANY($%d) RETURNING %s`,
		strings.Join(sets, ", "), len(args)+1, enrichmentColumns)
	args = append(args, fromStrs)

	e, err := scanEnrichment(s.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, eris.Wrapf(err, "postgres: transition enrichment %s", id)
	}

	// Zero rows: distinguish a missing row from a status conflict.
	if _, getErr := s.GetEnrichment(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrConflict
}

func (s *PostgresStore) ListEnrichments(ctx context.Context, filter EnrichmentFilter) ([]model.Enrichment, error) {
	query := `SELECT ` + enrichmentColumns + ` FROM enrichments WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.ContactID != "" {
		args = append(args, filter.ContactID)
		query += fmt.Sprintf(` AND contact_id = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list enrichments")
	}
	defer rows.Close()

	var out []model.Enrichment
	for rows.Next() {
		e, scanErr := scanEnrichment(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list enrichments rows")
}

func (s *PostgresStore) AppendEvent(ctx context.Context, ev model.Event) error {
	id := ev.ID
	if id == "" {
		id = uuid.New().String()
	}
	var payload any
	if len(ev.Payload) > 0 {
		payload = json.RawMessage(ev.Payload)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, contact_id, enrichment_id, type, payload, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6)`,
		id, ev.ContactID, ev.EnrichmentID, string(ev.Type), payload, time.Now().UTC())
	return eris.Wrap(err, "postgres: append event")
}

func (s *PostgresStore) ListEvents(ctx context.Context, filter EventFilter) ([]model.Event, error) {
	query := `SELECT id, COALESCE(contact_id, ''), COALESCE(enrichment_id, ''), type, payload, created_at FROM events WHERE 1=1`
	var args []any

	if filter.ContactID != "" {
		args = append(args, filter.ContactID)
		query += fmt.Sprintf(` AND contact_id = $%d`, len(args))
	}
	if filter.EnrichmentID != "" {
		args = append(args, filter.EnrichmentID)
		query += fmt.Sprintf(` AND enrichment_id = $%d`, len(args))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(&ev.ID, &ev.ContactID, &ev.EnrichmentID, &ev.Type, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list events rows")
}

func (s *PostgresStore) GetSetting(ctx context.Context, key string, out any) (bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, eris.Wrapf(err, "postgres: get setting %s", key)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, eris.Wrapf(err, "postgres: decode setting %s", key)
	}
	return true, nil
}

func (s *PostgresStore) SetSetting(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return eris.Wrapf(err, "postgres: encode setting %s", key)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, raw, time.Now().UTC())
	return eris.Wrapf(err, "postgres: set setting %s", key)
}

const jobColumns = `id, queue, kind, payload, status, attempts, max_attempts, next_run_at, last_error, created_at, updated_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	err := row.Scan(&j.ID, &j.Queue, &j.Kind, &j.Payload, &j.Status, &j.Attempts,
		&j.MaxAttempts, &j.NextRunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "postgres: scan job")
	}
	return &j, nil
}

func (s *PostgresStore) EnqueueJob(ctx context.Context, job model.Job) error {
	id := job.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	nextRun := job.NextRunAt
	if nextRun.IsZero() {
		nextRun = now
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	var payload any
	if len(job.Payload) > 0 {
		payload = json.RawMessage(job.Payload)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, queue, kind, payload, status, attempts, max_attempts, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $8)`,
		id, job.Queue, job.Kind, payload, string(model.JobPending), maxAttempts, nextRun, now)
	return eris.Wrapf(err, "postgres: enqueue %s job", job.Queue)
}

func (s *PostgresStore) ClaimDueJob(ctx context.Context, queue string, now time.Time) (*model.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `
		UPDATE jobs SET status = $1, attempts = attempts + 1, updated_at = $2
		WHERE id = (
			SELECT id FROM jobs
			WHERE queue = $3 AND status = $4 AND next_run_at <= $2
			ORDER BY next_run_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		string(model.JobRunning), now.UTC(), queue, string(model.JobPending)))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: claim job on %s", queue)
	}
	return j, nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	return eris.Wrapf(err, "postgres: complete job %s", jobID)
}

func (s *PostgresStore) RescheduleJob(ctx context.Context, jobID, lastError string, nextRunAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = $1, last_error = $2, next_run_at = $3, updated_at = $4
		WHERE id = $5`,
		string(model.JobPending), lastError, nextRunAt.UTC(), time.Now().UTC(), jobID)
	return eris.Wrapf(err, "postgres: reschedule job %s", jobID)
}

func (s *PostgresStore) MarkJobDead(ctx context.Context, jobID, lastError string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4`,
		string(model.JobDead), lastError, time.Now().UTC(), jobID)
	return eris.Wrapf(err, "postgres: mark job %s dead", jobID)
}

func (s *PostgresStore) ListDeadJobs(ctx context.Context, queue string, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1`
	args := []any{string(model.JobDead)}
	if queue != "" {
		args = append(args, queue)
		query += fmt.Sprintf(` AND queue = $%d`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY updated_at DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dead jobs")
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		j, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, *j)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list dead jobs rows")
}

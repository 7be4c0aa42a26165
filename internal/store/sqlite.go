package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-pipeline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development and tests; Postgres is the production backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqldb.Exec(pragma); err != nil {
			sqldb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqldb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL UNIQUE,
	first_name     TEXT NOT NULL DEFAULT '',
	last_name      TEXT NOT NULL DEFAULT '',
	company_name   TEXT NOT NULL DEFAULT '',
	company_domain TEXT NOT NULL DEFAULT '',
	discovery_id   TEXT NOT NULL DEFAULT '',
	crm_id         TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
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
	decided_at         DATETIME,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_enrichments_contact ON enrichments(contact_id);
CREATE INDEX IF NOT EXISTS idx_enrichments_status ON enrichments(status);
CREATE UNIQUE INDEX IF NOT EXISTS ux_enrichments_pending
	ON enrichments(contact_id) WHERE status = 'awaiting_approval';

CREATE TABLE IF NOT EXISTS events (
	id            TEXT PRIMARY KEY,
	contact_id    TEXT NOT NULL DEFAULT '',
	enrichment_id TEXT NOT NULL DEFAULT '',
	type          TEXT NOT NULL,
	payload       TEXT,
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_contact ON events(contact_id);
CREATE INDEX IF NOT EXISTS idx_events_enrichment ON events(enrichment_id);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	queue        TEXT NOT NULL,
	kind         TEXT NOT NULL,
	payload      TEXT,
	status       TEXT NOT NULL DEFAULT 'pending',
	attempts     INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 3,
	next_run_at  DATETIME NOT NULL,
	last_error   TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_due ON jobs(queue, status, next_run_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContactRow(row rowScanner) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.CompanyName,
		&c.CompanyDomain, &c.DiscoveryID, &c.CRMID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "sqlite: scan contact")
	}
	return &c, nil
}

func (s *SQLiteStore) UpsertContactByEmail(ctx context.Context, c model.Contact) (*model.Contact, bool, error) {
	email := model.NormalizeEmail(c.Email)
	if email == "" {
		return nil, false, eris.New("sqlite: contact email is required")
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, email, first_name, last_name, company_name, company_domain, discovery_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			first_name     = CASE WHEN excluded.first_name     != '' THEN excluded.first_name     ELSE contacts.first_name     END,
			last_name      = CASE WHEN excluded.last_name      != '' THEN excluded.last_name      ELSE contacts.last_name      END,
			company_name   = CASE WHEN excluded.company_name   != '' THEN excluded.company_name   ELSE contacts.company_name   END,
			company_domain = CASE WHEN excluded.company_domain != '' THEN excluded.company_domain ELSE contacts.company_domain END,
			discovery_id   = CASE WHEN excluded.discovery_id   != '' THEN excluded.discovery_id   ELSE contacts.discovery_id   END,
			updated_at     = excluded.updated_at`,
		uuid.New().String(), email, c.FirstName, c.LastName, c.CompanyName,
		strings.ToLower(c.CompanyDomain), c.DiscoveryID, now, now)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: upsert contact")
	}

	out, err := s.FindContactByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	// changes() counts 1 for insert and for update alike, so detect a
	// fresh row by its creation timestamp instead.
	created := out.CreatedAt.Equal(out.UpdatedAt) && !out.CreatedAt.Before(now)
	return out, created, nil
}

const sqliteContactCols = `id, email, first_name, last_name, company_name, company_domain, discovery_id, crm_id, created_at, updated_at`

func (s *SQLiteStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	return scanContactRow(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteContactCols+` FROM contacts WHERE id = ?`, id))
}

func (s *SQLiteStore) FindContactByEmail(ctx context.Context, email string) (*model.Contact, error) {
	return scanContactRow(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteContactCols+` FROM contacts WHERE email = ?`,
		model.NormalizeEmail(email)))
}

func (s *SQLiteStore) FindRecentContactByDomainName(ctx context.Context, domain, fullName string, since time.Time) (*model.Contact, error) {
	return scanContactRow(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteContactCols+` FROM contacts
		WHERE company_domain = ?
		  AND lower(trim(first_name || ' ' || last_name)) = lower(trim(?))
		  AND updated_at >= ?
		ORDER BY updated_at DESC LIMIT 1`,
		strings.ToLower(domain), fullName, since.UTC()))
}

func (s *SQLiteStore) SetContactCRMID(ctx context.Context, contactID, crmID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET crm_id = ?, updated_at = ? WHERE id = ?`,
		crmID, time.Now().UTC(), contactID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set crm id for contact %s", contactID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const sqliteEnrichmentCols = `id, contact_id, status, address_line1, address_line2, city, postcode, country, classification, note, note_source_url, address_source_url, approval_block, error, decided_by, decided_at, created_at, updated_at`

func scanEnrichmentRow(row rowScanner) (*model.Enrichment, error) {
	var e model.Enrichment
	var decidedAt sql.NullTime
	err := row.Scan(&e.ID, &e.ContactID, &e.Status, &e.AddressLine1, &e.AddressLine2,
		&e.City, &e.Postcode, &e.Country, &e.Classification, &e.Note,
		&e.NoteSourceURL, &e.AddrSourceURL, &e.ApprovalBlock, &e.Error,
		&e.DecidedBy, &decidedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "sqlite: scan enrichment")
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		e.DecidedAt = &t
	}
	return &e, nil
}

func (s *SQLiteStore) CreateOrReusePendingEnrichment(ctx context.Context, contactID string) (*model.Enrichment, bool, error) {
	now := time.Now().UTC()
	id := uuid.New().String()

	// The partial unique index on pending rows turns a concurrent create
	// into DO NOTHING; the follow-up select observes the winner.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO enrichments (id, contact_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (contact_id) WHERE status = 'awaiting_approval' DO NOTHING`,
		id, contactID, string(model.StatusAwaitingApproval), now, now)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: create pending enrichment")
	}

	inserted, _ := res.RowsAffected()
	e, err := scanEnrichmentRow(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteEnrichmentCols+` FROM enrichments
		WHERE contact_id = ? AND status = ?`,
		contactID, string(model.StatusAwaitingApproval)))
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: load pending enrichment")
	}
	return e, inserted > 0, nil
}

func (s *SQLiteStore) GetEnrichment(ctx context.Context, id string) (*model.Enrichment, error) {
	return scanEnrichmentRow(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteEnrichmentCols+` FROM enrichments WHERE id = ?`, id))
}

func (s *SQLiteStore) TransitionEnrichment(ctx context.Context, id string, from []model.EnrichmentStatus, to model.EnrichmentStatus, patch EnrichmentPatch) (*model.Enrichment, error) {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{string(to), time.Now().UTC()}

	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.AddressLine1 != nil {
		add("address_line1", *patch.AddressLine1)
	}
	if patch.AddressLine2 != nil {
		add("address_line2", *patch.AddressLine2)
	}
	if patch.City != nil {
		add("city", *patch.City)
	}
	if patch.Postcode != nil {
		add("postcode", *patch.Postcode)
	}
	if patch.Country != nil {
		add("country", *patch.Country)
	}
	if patch.Classification != nil {
		add("classification", *patch.Classification)
	}
	if patch.Note != nil {
		add("note", *patch.Note)
	}
	if patch.NoteSourceURL != nil {
		add("note_source_url", *patch.NoteSourceURL)
	}
	if patch.AddrSourceURL != nil {
		add("address_source_url", *patch.AddrSourceURL)
	}
	if patch.ApprovalBlock != nil {
		add("approval_block", *patch.ApprovalBlock)
	}
	if patch.Error != nil {
		add("error", *patch.Error)
	}
	if patch.DecidedBy != nil {
		add("decided_by", *patch.DecidedBy)
	}
	if patch.DecidedAt != nil {
		add("decided_at", patch.DecidedAt.UTC())
	}

	placeholders := make([]string, len(from))
	args = append(args, id)
	for i, st := range from {
		placeholders[i] = "?"
		args = append(args, string(st))
	}
	query := `UPDATE enrichments SET ` + strings.Join(sets, ", ") +
		` WHERE id = ? AND status IN (` + strings.Join(placeholders, ", ") + `)`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: transition enrichment %s", id)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, getErr := s.GetEnrichment(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	}
	return s.GetEnrichment(ctx, id)
}

func (s *SQLiteStore) ListEnrichments(ctx context.Context, filter EnrichmentFilter) ([]model.Enrichment, error) {
	query := `SELECT ` + sqliteEnrichmentCols + ` FROM enrichments WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ContactID != "" {
		query += ` AND contact_id = ?`
		args = append(args, filter.ContactID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list enrichments")
	}
	defer rows.Close()

	var out []model.Enrichment
	for rows.Next() {
		e, scanErr := scanEnrichmentRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list enrichments rows")
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev model.Event) error {
	id := ev.ID
	if id == "" {
		id = uuid.New().String()
	}
	var payload any
	if len(ev.Payload) > 0 {
		payload = string(ev.Payload)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, contact_id, enrichment_id, type, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, ev.ContactID, ev.EnrichmentID, string(ev.Type), payload, time.Now().UTC())
	return eris.Wrap(err, "sqlite: append event")
}

func (s *SQLiteStore) ListEvents(ctx context.Context, filter EventFilter) ([]model.Event, error) {
	query := `SELECT id, contact_id, enrichment_id, type, payload, created_at FROM events WHERE 1=1`
	var args []any

	if filter.ContactID != "" {
		query += ` AND contact_id = ?`
		args = append(args, filter.ContactID)
	}
	if filter.EnrichmentID != "" {
		query += ` AND enrichment_id = ?`
		args = append(args, filter.EnrichmentID)
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var ev model.Event
		var payload sql.NullString
		if err := rows.Scan(&ev.ID, &ev.ContactID, &ev.EnrichmentID, &ev.Type, &payload, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		if payload.Valid {
			ev.Payload = []byte(payload.String)
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list events rows")
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string, out any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, eris.Wrapf(err, "sqlite: get setting %s", key)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, eris.Wrapf(err, "sqlite: decode setting %s", key)
	}
	return true, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return eris.Wrapf(err, "sqlite: encode setting %s", key)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(raw), time.Now().UTC())
	return eris.Wrapf(err, "sqlite: set setting %s", key)
}

const sqliteJobCols = `id, queue, kind, payload, status, attempts, max_attempts, next_run_at, last_error, created_at, updated_at`

func scanJobRow(row rowScanner) (*model.Job, error) {
	var j model.Job
	var payload sql.NullString
	err := row.Scan(&j.ID, &j.Queue, &j.Kind, &payload, &j.Status, &j.Attempts,
		&j.MaxAttempts, &j.NextRunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "sqlite: scan job")
	}
	if payload.Valid {
		j.Payload = []byte(payload.String)
	}
	return &j, nil
}

func (s *SQLiteStore) EnqueueJob(ctx context.Context, job model.Job) error {
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
		payload = string(job.Payload)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, queue, kind, payload, status, attempts, max_attempts, next_run_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		id, job.Queue, job.Kind, payload, string(model.JobPending), maxAttempts, nextRun.UTC(), now, now)
	return eris.Wrapf(err, "sqlite: enqueue %s job", job.Queue)
}

func (s *SQLiteStore) ClaimDueJob(ctx context.Context, queue string, now time.Time) (*model.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: claim begin")
	}
	defer tx.Rollback() //nolint:errcheck

	j, err := scanJobRow(tx.QueryRowContext(ctx, `
		SELECT `+sqliteJobCols+` FROM jobs
		WHERE queue = ? AND status = ? AND next_run_at <= ?
		ORDER BY next_run_at LIMIT 1`,
		queue, string(model.JobPending), now.UTC()))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: claim job on %s", queue)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(model.JobRunning), now.UTC(), j.ID, string(model.JobPending))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: claim update %s", j.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: claim commit")
	}
	j.Status = model.JobRunning
	j.Attempts++
	return j, nil
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return eris.Wrapf(err, "sqlite: complete job %s", jobID)
}

func (s *SQLiteStore) RescheduleJob(ctx context.Context, jobID, lastError string, nextRunAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, last_error = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?`,
		string(model.JobPending), lastError, nextRunAt.UTC(), time.Now().UTC(), jobID)
	return eris.Wrapf(err, "sqlite: reschedule job %s", jobID)
}

func (s *SQLiteStore) MarkJobDead(ctx context.Context, jobID, lastError string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		string(model.JobDead), lastError, time.Now().UTC(), jobID)
	return eris.Wrapf(err, "sqlite: mark job %s dead", jobID)
}

func (s *SQLiteStore) ListDeadJobs(ctx context.Context, queue string, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + sqliteJobCols + ` FROM jobs WHERE status = ?`
	args := []any{string(model.JobDead)}
	if queue != "" {
		query += ` AND queue = ?`
		args = append(args, queue)
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dead jobs")
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		j, scanErr := scanJobRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, *j)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list dead jobs rows")
}

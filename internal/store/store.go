package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-pipeline/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrConflict is returned when a conditional status transition finds the row
// in a status outside the allowed set. Callers must treat it as
// non-retriable.
var ErrConflict = eris.New("store: status conflict")

// EnrichmentPatch carries the mutations applied together with a status
// transition. Nil pointers leave the column untouched.
type EnrichmentPatch struct {
	AddressLine1   *string
	AddressLine2   *string
	City           *string
	Postcode       *string
	Country        *string
	Classification *string
	Note           *string
	NoteSourceURL  *string
	AddrSourceURL  *string
	ApprovalBlock  *string
	Error          *string
	DecidedBy      *string
	DecidedAt      *time.Time
}

// EnrichmentFilter specifies criteria for listing enrichments.
type EnrichmentFilter struct {
	Status    model.EnrichmentStatus `json:"status,omitempty"`
	ContactID string                 `json:"contact_id,omitempty"`
	Limit     int                    `json:"limit,omitempty"`
	Offset    int                    `json:"offset,omitempty"`
}

// EventFilter specifies criteria for listing audit events.
type EventFilter struct {
	ContactID    string          `json:"contact_id,omitempty"`
	EnrichmentID string          `json:"enrichment_id,omitempty"`
	Type         model.EventType `json:"type,omitempty"`
	Limit        int             `json:"limit,omitempty"`
}

// Store defines the persistence interface for the enrichment pipeline.
// Mutations happen through narrow named operations so the state-machine
// guards live in one place.
type Store interface {
	// Contacts
	UpsertContactByEmail(ctx context.Context, c model.Contact) (*model.Contact, bool, error)
	GetContact(ctx context.Context, id string) (*model.Contact, error)
	FindContactByEmail(ctx context.Context, email string) (*model.Contact, error)
	FindRecentContactByDomainName(ctx context.Context, domain, fullName string, since time.Time) (*model.Contact, error)
	SetContactCRMID(ctx context.Context, contactID, crmID string) error

	// Enrichments
	CreateOrReusePendingEnrichment(ctx context.Context, contactID string) (*model.Enrichment, bool, error)
	GetEnrichment(ctx context.Context, id string) (*model.Enrichment, error)
	// TransitionEnrichment performs a single conditional update: the row
	// moves to status `to` only if its current status is one of `from`.
	// Returns ErrConflict without mutating anything otherwise.
	TransitionEnrichment(ctx context.Context, id string, from []model.EnrichmentStatus, to model.EnrichmentStatus, patch EnrichmentPatch) (*model.Enrichment, error)
	ListEnrichments(ctx context.Context, filter EnrichmentFilter) ([]model.Enrichment, error)

	// Events (append-only)
	AppendEvent(ctx context.Context, ev model.Event) error
	ListEvents(ctx context.Context, filter EventFilter) ([]model.Event, error)

	// Settings
	GetSetting(ctx context.Context, key string, out any) (bool, error)
	SetSetting(ctx context.Context, key string, value any) error

	// Jobs
	EnqueueJob(ctx context.Context, job model.Job) error
	// ClaimDueJob atomically claims the oldest due pending job on the given
	// queue, incrementing its attempt counter. Returns (nil, nil) when no
	// job is due.
	ClaimDueJob(ctx context.Context, queue string, now time.Time) (*model.Job, error)
	CompleteJob(ctx context.Context, jobID string) error
	// RescheduleJob returns a failed job to pending with a new run time.
	RescheduleJob(ctx context.Context, jobID, lastError string, nextRunAt time.Time) error
	// MarkJobDead retains an exhausted job for inspection.
	MarkJobDead(ctx context.Context, jobID, lastError string) error
	ListDeadJobs(ctx context.Context, queue string, limit int) ([]model.Job, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

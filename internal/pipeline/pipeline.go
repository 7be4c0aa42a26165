// Package pipeline implements the four enrichment stages (ingestion,
// enrichment, the approval gate, and CRM sync) over narrow collaborator
// ports so each stage can be tested with fakes.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-pipeline/internal/events"
	"github.com/sells-group/outreach-pipeline/internal/insight"
	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/notify"
	"github.com/sells-group/outreach-pipeline/internal/queue"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

// ErrForbidden is returned when the acting user's role may not perform the
// requested approval mutation.
var ErrForbidden = eris.New("pipeline: forbidden")

// DiscoverySource searches the prospect discovery vendor.
type DiscoverySource interface {
	Search(ctx context.Context, filters model.Filters, page, perPage int) ([]model.Candidate, error)
}

// CRMRecord is the dedupe-relevant view of an existing CRM contact.
type CRMRecord struct {
	ID             string
	LifecycleStage string
	HasAddress     bool
}

// CRM is the sync target. FindByEmail returns nil when no record exists.
type CRM interface {
	FindByEmail(ctx context.Context, email string) (*CRMRecord, error)
	Create(ctx context.Context, properties map[string]any) (string, error)
	Update(ctx context.Context, id string, properties map[string]any) error
}

// ResearchSource fetches one URL's readable content.
type ResearchSource interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Enqueuer persists background jobs. Satisfied by *queue.Runtime.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, kind string, payload any, opts ...queue.EnqueueOption) error
}

// Options tunes stage throughput.
type Options struct {
	// ItemDelay spaces candidate processing during ingestion to respect
	// vendor rate limits.
	ItemDelay time.Duration
	// ResearchFanOut bounds concurrent research fetches per contact.
	ResearchFanOut int
}

// Pipeline holds the shared collaborators for all stages.
type Pipeline struct {
	store     store.Store
	discovery DiscoverySource
	crm       CRM
	research  ResearchSource
	generator insight.Generator
	recorder  *events.Recorder
	notifier  *notify.Notifier
	jobs      Enqueuer
	limiter   *rate.Limiter
	fanOut    int
}

// New creates a Pipeline with all dependencies.
func New(
	st store.Store,
	discovery DiscoverySource,
	crm CRM,
	research ResearchSource,
	generator insight.Generator,
	recorder *events.Recorder,
	notifier *notify.Notifier,
	jobs Enqueuer,
	opts Options,
) *Pipeline {
	if opts.ItemDelay <= 0 {
		opts.ItemDelay = 500 * time.Millisecond
	}
	if opts.ResearchFanOut <= 0 {
		opts.ResearchFanOut = 3
	}
	return &Pipeline{
		store:     st,
		discovery: discovery,
		crm:       crm,
		research:  research,
		generator: generator,
		recorder:  recorder,
		notifier:  notifier,
		jobs:      jobs,
		limiter:   rate.NewLimiter(rate.Every(opts.ItemDelay), 1),
		fanOut:    opts.ResearchFanOut,
	}
}

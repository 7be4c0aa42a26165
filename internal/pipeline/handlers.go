package pipeline

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/notify"
	"github.com/sells-group/outreach-pipeline/internal/queue"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

const (
	notifyKindApprovalReady = "approval_ready"
	notifyKindDigest        = "digest"
)

type notifyPayload struct {
	Kind         string         `json:"kind"`
	EnrichmentID string         `json:"enrichment_id,omitempty"`
	Digest       *notify.Digest `json:"digest,omitempty"`
}

// EnqueueDigest schedules a standalone awaiting-approval digest. Counts for
// the current run are zero; the notify handler fills in the awaiting total.
func (p *Pipeline) EnqueueDigest(ctx context.Context) error {
	payload := notifyPayload{Kind: notifyKindDigest, Digest: &notify.Digest{}}
	return p.jobs.Enqueue(ctx, model.QueueNotify, model.JobKindNotify, payload)
}

// RegisterHandlers binds the pipeline stages to their job kinds on the
// queue runtime.
func (p *Pipeline) RegisterHandlers(rt *queue.Runtime) {
	rt.Register(model.JobKindIngest, p.handleIngest)
	rt.Register(model.JobKindEnrich, p.handleEnrich)
	rt.Register(model.JobKindSync, p.handleSync)
	rt.Register(model.JobKindNotify, p.handleNotify)
}

func (p *Pipeline) handleIngest(ctx context.Context, _ model.Job) error {
	settings, err := p.LoadIngestionSettings(ctx)
	if err != nil {
		return err
	}
	_, err = p.RunIngestion(ctx, settings)
	return err
}

func (p *Pipeline) handleEnrich(ctx context.Context, job model.Job) error {
	var payload enrichPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return eris.Wrap(err, "pipeline: decode enrich payload")
	}
	_, err := p.RunEnrichment(ctx, payload.EnrichmentID)
	return err
}

func (p *Pipeline) handleSync(ctx context.Context, job model.Job) error {
	var payload syncPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return eris.Wrap(err, "pipeline: decode sync payload")
	}
	_, err := p.RunSync(ctx, payload.EnrichmentID)
	return err
}

func (p *Pipeline) handleNotify(ctx context.Context, job model.Job) error {
	var payload notifyPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return eris.Wrap(err, "pipeline: decode notify payload")
	}

	switch payload.Kind {
	case notifyKindApprovalReady:
		enr, err := p.store.GetEnrichment(ctx, payload.EnrichmentID)
		if err != nil {
			return eris.Wrapf(err, "pipeline: notify enrichment %s", payload.EnrichmentID)
		}
		p.notifier.Send(ctx, enr.ApprovalBlock)
	case notifyKindDigest:
		if payload.Digest == nil {
			return eris.New("pipeline: digest payload missing")
		}
		d := *payload.Digest
		awaiting, err := p.store.ListEnrichments(ctx, store.EnrichmentFilter{Status: model.StatusAwaitingApproval})
		if err != nil {
			zap.L().Warn("pipeline: count awaiting for digest", zap.Error(err))
		} else {
			d.Awaiting = len(awaiting)
		}
		p.notifier.Send(ctx, d.Render())
	default:
		return eris.Errorf("pipeline: unknown notify kind %q", payload.Kind)
	}
	return nil
}

package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

// Approve moves a pending enrichment to approved and synchronously runs the
// sync stage; approval is the sync trigger, there is no separate human
// step. The decided-by/at stamp survives whatever sync does. A second call,
// or a call on a non-pending row, fails with store.ErrConflict and mutates
// nothing.
func (p *Pipeline) Approve(ctx context.Context, enrichmentID string, actor model.User) (*model.Enrichment, error) {
	if !actor.CanDecide() {
		return nil, eris.Wrapf(ErrForbidden, "role %s may not approve", actor.Role)
	}

	now := time.Now().UTC()
	enr, err := p.store.TransitionEnrichment(ctx, enrichmentID,
		[]model.EnrichmentStatus{model.StatusAwaitingApproval},
		model.StatusApproved,
		store.EnrichmentPatch{DecidedBy: &actor.ID, DecidedAt: &now})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: approve %s", enrichmentID)
	}

	p.recorder.Record(ctx, model.EventApproved, enr.ContactID, enr.ID, map[string]any{
		"decided_by": actor.ID,
	})

	synced, syncErr := p.RunSync(ctx, enr.ID)
	if syncErr != nil {
		// The approval stands; the row is in error state and the queue
		// retries sync without re-approval.
		zap.L().Warn("pipeline: sync after approval failed",
			zap.String("enrichment_id", enr.ID),
			zap.Error(syncErr),
		)
		if err := p.jobs.Enqueue(ctx, model.QueueSync, model.JobKindSync, syncPayload{EnrichmentID: enr.ID}); err != nil {
			zap.L().Error("pipeline: enqueue sync retry", zap.Error(err))
		}
		current, err := p.store.GetEnrichment(ctx, enr.ID)
		if err != nil {
			return enr, nil
		}
		return current, nil
	}
	return synced, nil
}

// Reject moves a pending enrichment to rejected without touching the CRM.
// The optional reason is stored as the row's error text.
func (p *Pipeline) Reject(ctx context.Context, enrichmentID string, actor model.User, reason string) (*model.Enrichment, error) {
	if !actor.CanDecide() {
		return nil, eris.Wrapf(ErrForbidden, "role %s may not reject", actor.Role)
	}

	now := time.Now().UTC()
	patch := store.EnrichmentPatch{DecidedBy: &actor.ID, DecidedAt: &now}
	if reason != "" {
		patch.Error = &reason
	}
	enr, err := p.store.TransitionEnrichment(ctx, enrichmentID,
		[]model.EnrichmentStatus{model.StatusAwaitingApproval},
		model.StatusRejected, patch)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: reject %s", enrichmentID)
	}

	p.recorder.Record(ctx, model.EventRejected, enr.ContactID, enr.ID, map[string]any{
		"decided_by": actor.ID,
		"reason":     reason,
	})
	return enr, nil
}

// RequestReEnrichment queues another research pass for a contact. An already
// pending enrichment is reused rather than duplicated.
func (p *Pipeline) RequestReEnrichment(ctx context.Context, contactID string) (*model.Enrichment, error) {
	contact, err := p.store.GetContact(ctx, contactID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load contact %s", contactID)
	}

	enr, created, err := p.store.CreateOrReusePendingEnrichment(ctx, contact.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: re-enrich %s", contactID)
	}

	p.recorder.Record(ctx, model.EventReEnrichRequested, contact.ID, enr.ID, map[string]any{
		"reused_pending": !created,
	})

	if err := p.jobs.Enqueue(ctx, model.QueueEnrich, model.JobKindEnrich, enrichPayload{EnrichmentID: enr.ID}); err != nil {
		return nil, eris.Wrap(err, "pipeline: enqueue re-enrich job")
	}
	return enr, nil
}

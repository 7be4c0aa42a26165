package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

type enrichPayload struct {
	EnrichmentID string `json:"enrichment_id"`
}

// RunEnrichment researches one pending enrichment: derives candidate URLs,
// fetches what it can, calls the insight generator, and writes the result
// back at awaiting_approval. Safe to re-enter: a re-run on the same row
// re-researches and overwrites the research fields.
func (p *Pipeline) RunEnrichment(ctx context.Context, enrichmentID string) (*model.Enrichment, error) {
	enr, err := p.store.GetEnrichment(ctx, enrichmentID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load enrichment %s", enrichmentID)
	}
	contact, err := p.store.GetContact(ctx, enr.ContactID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load contact %s", enr.ContactID)
	}

	log := zap.L().With(
		zap.String("enrichment_id", enr.ID),
		zap.String("company", contact.CompanyName),
	)

	urls := CandidateURLs(contact.CompanyDomain, contact.CompanyName)
	pages := p.fetchResearch(ctx, urls)
	log.Info("pipeline: research gathered",
		zap.Int("candidate_urls", len(urls)),
		zap.Int("fetched", len(pages)),
	)

	ins, err := p.generator.Generate(ctx, *contact, pages)
	if err != nil {
		p.failEnrichment(ctx, enr.ID, contact.ID, "enrich", err)
		return nil, eris.Wrapf(err, "pipeline: generate insight for %s", contact.CompanyName)
	}

	patch := store.EnrichmentPatch{
		AddressLine1:   &ins.AddressLine1,
		AddressLine2:   &ins.AddressLine2,
		City:           &ins.City,
		Postcode:       &ins.Postcode,
		Country:        &ins.Country,
		Classification: &ins.Classification,
		Note:           &ins.Note,
		NoteSourceURL:  &ins.NoteSourceURL,
		AddrSourceURL:  &ins.AddrSourceURL,
		ApprovalBlock:  &ins.ApprovalBlock,
	}
	// A row that previously failed enrichment comes back to awaiting.
	updated, err := p.store.TransitionEnrichment(ctx, enr.ID,
		[]model.EnrichmentStatus{model.StatusAwaitingApproval, model.StatusError},
		model.StatusAwaitingApproval, patch)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: store enrichment %s", enr.ID)
	}

	p.recorder.Record(ctx, model.EventEnriched, contact.ID, enr.ID, map[string]any{
		"classification": ins.Classification,
		"has_address":    ins.HasAddress(),
		"pages_fetched":  len(pages),
	})
	p.recorder.Record(ctx, model.EventApprovalRequested, contact.ID, enr.ID, nil)

	payload := notifyPayload{Kind: notifyKindApprovalReady, EnrichmentID: enr.ID}
	if err := p.jobs.Enqueue(ctx, model.QueueNotify, model.JobKindNotify, payload); err != nil {
		log.Warn("pipeline: enqueue approval notification", zap.Error(err))
	}

	log.Info("pipeline: enrichment complete", zap.String("classification", ins.Classification))
	return updated, nil
}

// fetchResearch pulls candidate URLs with bounded fan-out. Individual fetch
// failures are logged and skipped; the stage proceeds with whatever content
// was retrieved. Results keep the deterministic URL order.
func (p *Pipeline) fetchResearch(ctx context.Context, urls []string) []model.ResearchPage {
	results := make([]*model.ResearchPage, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.fanOut)
	for i, u := range urls {
		g.Go(func() error {
			content, err := p.research.Fetch(gctx, u)
			if err != nil {
				zap.L().Debug("pipeline: research fetch failed",
					zap.String("url", u),
					zap.Error(err),
				)
				return nil
			}
			if content == "" {
				return nil
			}
			results[i] = &model.ResearchPage{URL: u, Content: content}
			return nil
		})
	}
	_ = g.Wait()

	pages := make([]model.ResearchPage, 0, len(urls))
	for _, r := range results {
		if r != nil {
			pages = append(pages, *r)
		}
	}
	return pages
}

// failEnrichment moves the row to error with the failure message and records
// the failed event. Secondary store errors are logged, not returned, so the
// original stage error stays the one that propagates.
func (p *Pipeline) failEnrichment(ctx context.Context, enrichmentID, contactID, stage string, cause error) {
	msg := cause.Error()
	_, err := p.store.TransitionEnrichment(ctx, enrichmentID,
		[]model.EnrichmentStatus{model.StatusAwaitingApproval, model.StatusApproved, model.StatusError},
		model.StatusError, store.EnrichmentPatch{Error: &msg})
	if err != nil {
		zap.L().Error("pipeline: record enrichment failure",
			zap.String("enrichment_id", enrichmentID),
			zap.Error(err),
		)
	}
	p.recorder.Record(ctx, model.EventFailed, contactID, enrichmentID, map[string]any{
		"stage": stage,
		"error": msg,
	})
}

package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/notify"
	"github.com/sells-group/outreach-pipeline/internal/resilience"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

// closedLifecycleStages are CRM lifecycle stages that make an existing CRM
// contact off-limits for outreach.
var closedLifecycleStages = map[string]bool{
	"closed":         true,
	"customer":       true,
	"do_not_contact": true,
}

var freeEmailDomains = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"hotmail.com": true,
	"outlook.com": true,
	"aol.com":     true,
	"icloud.com":  true,
}

// LoadIngestionSettings reads the settings snapshot an ingestion run operates
// on. Missing keys fall back to defaults; the snapshot is fixed for the whole
// run so a mid-flight settings change never splits a run's behavior.
func (p *Pipeline) LoadIngestionSettings(ctx context.Context) (model.IngestionSettings, error) {
	s := model.DefaultIngestionSettings()

	reads := []struct {
		key string
		out any
	}{
		{model.SettingDailyQuota, &s.DailyQuota},
		{model.SettingSegmentFilters, &s.Filters},
		{model.SettingCooldownDays, &s.CooldownDays},
		{model.SettingAllowedDomains, &s.AllowedDomains},
		{model.SettingSkipRules, &s.SkipFreeEmail},
		{model.SettingPageCursor, &s.PageCursor},
	}
	for _, r := range reads {
		if _, err := p.store.GetSetting(ctx, r.key, r.out); err != nil {
			return s, eris.Wrapf(err, "pipeline: load setting %s", r.key)
		}
	}
	if s.DailyQuota <= 0 {
		s.DailyQuota = model.DefaultIngestionSettings().DailyQuota
	}
	if s.PageCursor <= 0 {
		s.PageCursor = 1
	}
	return s, nil
}

// RunIngestion pulls up to the quota of candidates from the discovery source,
// dedupes each against the store and the CRM, stages survivors with a pending
// enrichment, and enqueues their enrich jobs. A discovery fetch failure
// aborts the run; a per-candidate failure is recorded and skipped.
func (p *Pipeline) RunIngestion(ctx context.Context, settings model.IngestionSettings) (*model.IngestionResult, error) {
	log := zap.L().With(zap.Int("quota", settings.DailyQuota), zap.Int("page", settings.PageCursor))
	log.Info("pipeline: ingestion starting")

	candidates, err := resilience.DoVal(ctx, resilience.HTTPRetryConfig(), func(ctx context.Context) ([]model.Candidate, error) {
		return p.discovery.Search(ctx, settings.Filters, settings.PageCursor, settings.DailyQuota)
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: discovery search")
	}

	p.advanceCursor(ctx, settings.PageCursor, len(candidates))

	result := &model.IngestionResult{}
	for _, cand := range candidates {
		if err := p.limiter.Wait(ctx); err != nil {
			return result, eris.Wrap(err, "pipeline: ingestion throttle")
		}

		staged, err := p.ingestCandidate(ctx, cand, settings)
		if err != nil {
			log.Warn("pipeline: candidate failed",
				zap.String("external_id", cand.ExternalID),
				zap.Error(err),
			)
			p.recorder.Record(ctx, model.EventFailed, "", "", map[string]any{
				"stage": "ingest",
				"email": cand.Email,
				"error": err.Error(),
			})
			result.Skipped++
			continue
		}
		if staged {
			result.Staged++
		} else {
			result.Skipped++
		}
	}

	p.enqueueDigest(ctx, result)

	log.Info("pipeline: ingestion complete",
		zap.Int("staged", result.Staged),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// advanceCursor moves the persisted page cursor so the next run fetches the
// next page, wrapping back to the first page when a page comes back empty.
func (p *Pipeline) advanceCursor(ctx context.Context, page, fetched int) {
	next := page + 1
	if fetched == 0 {
		next = 1
	}
	if err := p.store.SetSetting(ctx, model.SettingPageCursor, next); err != nil {
		zap.L().Warn("pipeline: advance page cursor", zap.Error(err))
	}
}

// ingestCandidate runs one candidate through skip rules and the three-tier
// dedupe chain, then stages it. Returns true when the candidate was staged.
func (p *Pipeline) ingestCandidate(ctx context.Context, cand model.Candidate, settings model.IngestionSettings) (bool, error) {
	p.recorder.Record(ctx, model.EventPulledFromSource, "", "", map[string]any{
		"external_id": cand.ExternalID,
		"company":     cand.CompanyName,
	})

	email := model.NormalizeEmail(cand.Email)
	if email == "" {
		p.skip(ctx, cand, "no email")
		return false, nil
	}
	if len(settings.AllowedDomains) > 0 && !domainAllowed(cand.CompanyDomain, settings.AllowedDomains) {
		p.skip(ctx, cand, "domain not allowed")
		return false, nil
	}
	if settings.SkipFreeEmail && freeEmailDomains[emailDomain(email)] {
		p.skip(ctx, cand, "free email provider")
		return false, nil
	}

	// Dedupe tier (a): exact email match.
	existing, err := p.store.FindContactByEmail(ctx, email)
	switch {
	case err == nil:
		p.dedupe(ctx, existing.ID, cand, "email exists")
		return false, nil
	case !errors.Is(err, store.ErrNotFound):
		return false, eris.Wrap(err, "pipeline: dedupe email lookup")
	}

	// Dedupe tier (b): domain+name within the cool-down window.
	fullName := strings.TrimSpace(cand.FirstName + " " + cand.LastName)
	if cand.CompanyDomain != "" && fullName != "" {
		since := time.Now().UTC().AddDate(0, 0, -settings.CooldownDays)
		recent, err := p.store.FindRecentContactByDomainName(ctx, cand.CompanyDomain, fullName, since)
		switch {
		case err == nil:
			p.dedupe(ctx, recent.ID, cand, "domain+name within cooldown")
			return false, nil
		case !errors.Is(err, store.ErrNotFound):
			return false, eris.Wrap(err, "pipeline: dedupe domain+name lookup")
		}
	}

	// Dedupe tier (c): CRM-side lookup.
	crmRec, err := resilience.DoVal(ctx, resilience.HTTPRetryConfig(), func(ctx context.Context) (*CRMRecord, error) {
		return p.crm.FindByEmail(ctx, email)
	})
	if err != nil {
		return false, eris.Wrap(err, "pipeline: dedupe CRM lookup")
	}
	if crmRec != nil && (closedLifecycleStages[strings.ToLower(crmRec.LifecycleStage)] || crmRec.HasAddress) {
		p.dedupe(ctx, "", cand, "already in CRM")
		return false, nil
	}

	contact, _, err := p.store.UpsertContactByEmail(ctx, model.Contact{
		Email:         email,
		FirstName:     cand.FirstName,
		LastName:      cand.LastName,
		CompanyName:   cand.CompanyName,
		CompanyDomain: cand.CompanyDomain,
		DiscoveryID:   cand.ExternalID,
	})
	if err != nil {
		return false, eris.Wrap(err, "pipeline: upsert contact")
	}
	if crmRec != nil {
		// Known to the CRM but still contactable; remember the id so sync
		// updates rather than creating a duplicate.
		if err := p.store.SetContactCRMID(ctx, contact.ID, crmRec.ID); err != nil {
			return false, eris.Wrap(err, "pipeline: record CRM id")
		}
	}

	enr, _, err := p.store.CreateOrReusePendingEnrichment(ctx, contact.ID)
	if err != nil {
		return false, eris.Wrap(err, "pipeline: create pending enrichment")
	}

	if err := p.jobs.Enqueue(ctx, model.QueueEnrich, model.JobKindEnrich, enrichPayload{EnrichmentID: enr.ID}); err != nil {
		return false, eris.Wrap(err, "pipeline: enqueue enrich job")
	}
	return true, nil
}

func (p *Pipeline) skip(ctx context.Context, cand model.Candidate, reason string) {
	p.recorder.Record(ctx, model.EventSkipped, "", "", map[string]any{
		"external_id": cand.ExternalID,
		"reason":      reason,
	})
}

func (p *Pipeline) dedupe(ctx context.Context, contactID string, cand model.Candidate, reason string) {
	p.recorder.Record(ctx, model.EventDeduped, contactID, "", map[string]any{
		"external_id": cand.ExternalID,
		"reason":      reason,
	})
}

func (p *Pipeline) enqueueDigest(ctx context.Context, result *model.IngestionResult) {
	payload := notifyPayload{
		Kind: notifyKindDigest,
		Digest: &notify.Digest{
			Staged:  result.Staged,
			Skipped: result.Skipped,
		},
	}
	if err := p.jobs.Enqueue(ctx, model.QueueNotify, model.JobKindNotify, payload); err != nil {
		zap.L().Warn("pipeline: enqueue digest", zap.Error(err))
	}
}

func domainAllowed(domain string, allowed []string) bool {
	d := normalizeDomain(domain)
	for _, a := range allowed {
		if d == normalizeDomain(a) {
			return true
		}
	}
	return false
}

func emailDomain(email string) string {
	if idx := strings.LastIndex(email, "@"); idx >= 0 {
		return email[idx+1:]
	}
	return ""
}

package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/resilience"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

// Static pipeline-stage values written on every synced record.
const (
	crmLeadStatus    = "Enriched - Approved"
	crmPipelineStage = "Outbound Prospecting"
)

type syncPayload struct {
	EnrichmentID string `json:"enrichment_id"`
}

// RunSync pushes an approved enrichment into the CRM: create when the
// contact has no external id yet, update by id otherwise. Safe to re-run; a
// re-invocation on an already-synced row updates rather than duplicating.
// Sync failure moves the row to error but keeps the approval stamp so retry
// needs no re-approval.
func (p *Pipeline) RunSync(ctx context.Context, enrichmentID string) (*model.Enrichment, error) {
	enr, err := p.store.GetEnrichment(ctx, enrichmentID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load enrichment %s", enrichmentID)
	}
	if !syncable(enr) {
		return nil, eris.Wrapf(store.ErrConflict, "pipeline: sync %s in status %s", enr.ID, enr.Status)
	}

	contact, err := p.store.GetContact(ctx, enr.ContactID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load contact %s", enr.ContactID)
	}

	log := zap.L().With(
		zap.String("enrichment_id", enr.ID),
		zap.String("contact_id", contact.ID),
	)

	props := crmProperties(contact, enr)
	crmID := contact.CRMID
	retryCfg := resilience.HTTPRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("crm", "sync")

	if crmID == "" {
		crmID, err = resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (string, error) {
			return p.crm.Create(ctx, props)
		})
		if err == nil {
			if setErr := p.store.SetContactCRMID(ctx, contact.ID, crmID); setErr != nil {
				err = eris.Wrap(setErr, "pipeline: persist CRM id")
			}
		}
	} else {
		err = resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
			return p.crm.Update(ctx, crmID, props)
		})
	}

	if err != nil {
		p.failEnrichment(ctx, enr.ID, contact.ID, "sync", err)
		return nil, eris.Wrapf(err, "pipeline: sync %s", enr.ID)
	}

	empty := ""
	synced, err := p.store.TransitionEnrichment(ctx, enr.ID,
		[]model.EnrichmentStatus{model.StatusApproved, model.StatusError, model.StatusSynced},
		model.StatusSynced, store.EnrichmentPatch{Error: &empty})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: mark synced %s", enr.ID)
	}

	p.recorder.Record(ctx, model.EventSynced, contact.ID, enr.ID, map[string]any{
		"crm_id": crmID,
	})
	log.Info("pipeline: sync complete", zap.String("crm_id", crmID))
	return synced, nil
}

// syncable reports whether the row may enter the sync stage: freshly
// approved, already synced (re-run becomes an update), or in error after an
// approved decision (retry). An error row that was never approved must go
// back through enrichment instead.
func syncable(enr *model.Enrichment) bool {
	switch enr.Status {
	case model.StatusApproved, model.StatusSynced:
		return true
	case model.StatusError:
		return enr.DecidedBy != ""
	default:
		return false
	}
}

// crmProperties maps contact and enrichment fields onto the CRM's fixed
// property schema.
func crmProperties(contact *model.Contact, enr *model.Enrichment) map[string]any {
	return map[string]any{
		"Email":                contact.Email,
		"FirstName":            contact.FirstName,
		"LastName":             contact.LastName,
		"Company_Name__c":      contact.CompanyName,
		"MailingStreet":        joinStreet(enr.AddressLine1, enr.AddressLine2),
		"MailingCity":          enr.City,
		"MailingPostalCode":    enr.Postcode,
		"MailingCountry":       enr.Country,
		"Classification__c":    enr.Classification,
		"Lead_Status__c":       crmLeadStatus,
		"Pipeline_Stage__c":    crmPipelineStage,
		"Personalized_Note__c": enr.Note,
	}
}

func joinStreet(line1, line2 string) string {
	if line2 == "" {
		return line1
	}
	if line1 == "" {
		return line2
	}
	return line1 + "\n" + line2
}

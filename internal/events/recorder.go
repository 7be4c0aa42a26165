// Package events writes the append-only audit ledger. Every stage records
// each meaningful transition here; payloads are redacted before they touch
// the store.
package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

// Recorder appends redacted audit events. A failed event write never fails
// the calling stage; it is logged and dropped.
type Recorder struct {
	store store.Store
}

// NewRecorder creates a Recorder backed by the given store.
func NewRecorder(st store.Store) *Recorder {
	return &Recorder{store: st}
}

// Record appends one event. contactID and enrichmentID may be empty.
func (r *Recorder) Record(ctx context.Context, typ model.EventType, contactID, enrichmentID string, payload map[string]any) {
	raw, err := MarshalRedacted(payload)
	if err != nil {
		zap.L().Warn("events: marshal payload",
			zap.String("type", string(typ)),
			zap.Error(err),
		)
		raw = nil
	}

	ev := model.Event{
		ContactID:    contactID,
		EnrichmentID: enrichmentID,
		Type:         typ,
		Payload:      raw,
	}
	if err := r.store.AppendEvent(ctx, ev); err != nil {
		zap.L().Warn("events: append failed",
			zap.String("type", string(typ)),
			zap.String("contact_id", contactID),
			zap.String("enrichment_id", enrichmentID),
			zap.Error(err),
		)
	}
}

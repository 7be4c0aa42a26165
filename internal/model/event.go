package model

import "time"

// EventType tags an audit event. The set is closed; stages never invent
// ad-hoc tags.
type EventType string

const (
	EventPulledFromSource  EventType = "pulled_from_source"
	EventDeduped           EventType = "deduped"
	EventEnriched          EventType = "enriched"
	EventApprovalRequested EventType = "approval_requested"
	EventApproved          EventType = "approved"
	EventRejected          EventType = "rejected"
	EventSynced            EventType = "synced"
	EventFailed            EventType = "failed"
	EventReEnrichRequested EventType = "re_enrich_requested"
	EventSkipped           EventType = "skipped"
)

// Event is an immutable audit record of a pipeline transition. Payloads are
// redacted before persistence; rows are never mutated or deleted.
type Event struct {
	ID           string    `json:"id"`
	ContactID    string    `json:"contact_id,omitempty"`
	EnrichmentID string    `json:"enrichment_id,omitempty"`
	Type         EventType `json:"type"`
	Payload      []byte    `json:"payload,omitempty"` // redacted JSON
	CreatedAt    time.Time `json:"created_at"`
}

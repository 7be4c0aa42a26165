package model

import "time"

// EnrichmentStatus represents the state of an enrichment attempt.
type EnrichmentStatus string

const (
	StatusAwaitingApproval EnrichmentStatus = "awaiting_approval"
	StatusApproved         EnrichmentStatus = "approved"
	StatusRejected         EnrichmentStatus = "rejected"
	StatusSynced           EnrichmentStatus = "synced"
	StatusError            EnrichmentStatus = "error"
)

// Enrichment is one research/approval attempt for a Contact. A Contact may
// accumulate multiple attempts over time, but at most one may be in
// awaiting_approval at any moment.
type Enrichment struct {
	ID        string           `json:"id"`
	ContactID string           `json:"contact_id"`
	Status    EnrichmentStatus `json:"status"`

	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	Postcode     string `json:"postcode,omitempty"`
	Country      string `json:"country,omitempty"`

	Classification string `json:"classification,omitempty"`
	Note           string `json:"note,omitempty"`
	NoteSourceURL  string `json:"note_source_url,omitempty"`
	AddrSourceURL  string `json:"address_source_url,omitempty"`
	ApprovalBlock  string `json:"approval_block,omitempty"`

	Error     string     `json:"error,omitempty"`
	DecidedBy string     `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Insight is the Insight Generator's output for one contact.
type Insight struct {
	Classification string `json:"classification"`
	AddressLine1   string `json:"address_line1,omitempty"`
	AddressLine2   string `json:"address_line2,omitempty"`
	City           string `json:"city,omitempty"`
	Postcode       string `json:"postcode,omitempty"`
	Country        string `json:"country,omitempty"`
	Note           string `json:"note"`
	NoteSourceURL  string `json:"note_source_url,omitempty"`
	AddrSourceURL  string `json:"address_source_url,omitempty"`
	ApprovalBlock  string `json:"approval_block"`
}

// HasAddress reports whether the insight carries at least a first address
// line and a city.
func (i Insight) HasAddress() bool {
	return i.AddressLine1 != "" && i.City != ""
}

// ResearchPage is one fetched research document.
type ResearchPage struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

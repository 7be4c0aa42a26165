package model

import (
	"strings"
	"time"
)

// Contact is a deduplicated person+company record. Exactly one Contact
// exists per normalized email; repeated discovery sightings upsert into
// the same row.
type Contact struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"` // normalized, lower-cased
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	CompanyName   string    `json:"company_name"`
	CompanyDomain string    `json:"company_domain"`
	DiscoveryID   string    `json:"discovery_id"`          // external id from the discovery source
	CRMID         string    `json:"crm_id,omitempty"`      // external CRM id, empty until first sync
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FullName returns the contact's display name.
func (c Contact) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// NormalizeEmail lower-cases and trims an email for use as the contact key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Candidate is a raw record returned by the Discovery Source, not yet
// deduplicated or persisted.
type Candidate struct {
	ExternalID    string `json:"external_id"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	Email         string `json:"email,omitempty"`
	CompanyName   string `json:"company_name,omitempty"`
	CompanyDomain string `json:"company_domain,omitempty"`
}

// Filters narrows a discovery search.
type Filters struct {
	Titles    []string `json:"titles,omitempty"`
	Locations []string `json:"locations,omitempty"`
	Segments  []string `json:"segments,omitempty"`
}

// IngestionResult summarizes one ingestion run.
type IngestionResult struct {
	Staged  int `json:"staged"`
	Skipped int `json:"skipped"`
}

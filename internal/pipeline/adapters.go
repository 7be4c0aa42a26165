package pipeline

import (
	"context"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/pkg/apollo"
	"github.com/sells-group/outreach-pipeline/pkg/jina"
	"github.com/sells-group/outreach-pipeline/pkg/salesforce"
)

// The adapters below are the parsing boundary between vendor API shapes and
// the typed contracts the stages consume. Stage logic never sees raw vendor
// JSON.

// ApolloDiscovery adapts the Apollo client to the DiscoverySource port.
type ApolloDiscovery struct {
	client apollo.Client
}

// NewApolloDiscovery wraps an Apollo client.
func NewApolloDiscovery(client apollo.Client) *ApolloDiscovery {
	return &ApolloDiscovery{client: client}
}

// Search runs one page of a people search and converts hits to Candidates.
func (d *ApolloDiscovery) Search(ctx context.Context, filters model.Filters, page, perPage int) ([]model.Candidate, error) {
	resp, err := d.client.SearchPeople(ctx, apollo.SearchRequest{
		Titles:    filters.Titles,
		Locations: filters.Locations,
		Keywords:  filters.Segments,
		Page:      page,
		PerPage:   perPage,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Candidate, 0, len(resp.People))
	for _, person := range resp.People {
		cand := model.Candidate{
			ExternalID: person.ID,
			FirstName:  person.FirstName,
			LastName:   person.LastName,
			Email:      person.Email,
		}
		if person.Organization != nil {
			cand.CompanyName = person.Organization.Name
			cand.CompanyDomain = person.Organization.PrimaryDomain
		}
		out = append(out, cand)
	}
	return out, nil
}

// SalesforceCRM adapts the Salesforce client to the CRM port.
type SalesforceCRM struct {
	client salesforce.Client
}

// NewSalesforceCRM wraps a Salesforce client.
func NewSalesforceCRM(client salesforce.Client) *SalesforceCRM {
	return &SalesforceCRM{client: client}
}

// FindByEmail returns nil when the CRM holds no contact for the email.
func (c *SalesforceCRM) FindByEmail(ctx context.Context, email string) (*CRMRecord, error) {
	rec, err := salesforce.FindContactByEmail(ctx, c.client, email)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return &CRMRecord{
		ID:             rec.ID,
		LifecycleStage: rec.LifecycleStage,
		HasAddress:     rec.HasAddress,
	}, nil
}

// Create inserts a new CRM contact and returns its id.
func (c *SalesforceCRM) Create(ctx context.Context, properties map[string]any) (string, error) {
	return salesforce.CreateContact(ctx, c.client, properties)
}

// Update patches an existing CRM contact.
func (c *SalesforceCRM) Update(ctx context.Context, id string, properties map[string]any) error {
	return salesforce.UpdateContact(ctx, c.client, id, properties)
}

// JinaResearch adapts the Jina reader to the ResearchSource port.
type JinaResearch struct {
	client jina.Client
}

// NewJinaResearch wraps a Jina client.
func NewJinaResearch(client jina.Client) *JinaResearch {
	return &JinaResearch{client: client}
}

// Fetch returns the readable content of one URL.
func (r *JinaResearch) Fetch(ctx context.Context, url string) (string, error) {
	resp, err := r.client.Read(ctx, url)
	if err != nil {
		return "", err
	}
	return resp.Data.Content, nil
}

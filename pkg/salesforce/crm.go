package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// CRMContact is the dedupe-relevant view of an existing CRM contact.
type CRMContact struct {
	ID             string
	LifecycleStage string
	HasAddress     bool
}

type contactRecord struct {
	Id                string `json:"Id"`
	LifecycleStage    string `json:"Lifecycle_Stage__c"`
	MailingStreet     string `json:"MailingStreet"`
	MailingPostalCode string `json:"MailingPostalCode"`
}

// FindContactByEmail looks up a Contact by email. Returns nil when no record
// exists.
func FindContactByEmail(ctx context.Context, c Client, email string) (*CRMContact, error) {
	if email == "" {
		return nil, eris.New("sf: email is required")
	}

	soql := fmt.Sprintf(
		"SELECT Id, Lifecycle_Stage__c, MailingStreet, MailingPostalCode FROM Contact WHERE Email = '%s' LIMIT 1",
		escapeSOQL(email),
	)

	var records []contactRecord
	if err := c.Query(ctx, soql, &records); err != nil {
		return nil, eris.Wrap(err, "sf: find contact by email")
	}
	if len(records) == 0 {
		return nil, nil
	}

	rec := records[0]
	return &CRMContact{
		ID:             rec.Id,
		LifecycleStage: rec.LifecycleStage,
		HasAddress:     rec.MailingStreet != "" || rec.MailingPostalCode != "",
	}, nil
}

// CreateContact creates a new Contact record and returns the new Salesforce ID.
func CreateContact(ctx context.Context, c Client, fields map[string]any) (string, error) {
	if fields["Email"] == nil || fields["Email"] == "" {
		return "", eris.New("sf: contact Email is required")
	}
	id, err := c.InsertOne(ctx, "Contact", fields)
	if err != nil {
		return "", eris.Wrap(err, "sf: create contact")
	}
	return id, nil
}

// UpdateContact updates a Contact record with the given fields.
func UpdateContact(ctx context.Context, c Client, contactID string, fields map[string]any) error {
	if contactID == "" {
		return eris.New("sf: contact id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, "Contact", contactID, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update contact %s", contactID))
	}
	return nil
}

// escapeSOQL escapes single quotes and backslashes for SOQL string literals.
func escapeSOQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

func approvedEnrichment(t *testing.T, env *testEnv) (*model.Contact, *model.Enrichment) {
	t.Helper()
	contact, enr := env.stageContact(t, model.Contact{
		Email:       "jo@acme.example",
		FirstName:   "Jo",
		LastName:    "Field",
		CompanyName: "Acme Mailing",
	})

	decider := "u-op"
	approved, err := env.store.TransitionEnrichment(context.Background(), enr.ID,
		[]model.EnrichmentStatus{model.StatusAwaitingApproval},
		model.StatusApproved, store.EnrichmentPatch{DecidedBy: &decider})
	require.NoError(t, err)
	return contact, approved
}

func TestRunSyncCreatesThenUpdates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	contact, enr := approvedEnrichment(t, env)

	var createProps map[string]any
	env.crm.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			createProps = args.Get(1).(map[string]any)
		}).
		Return("003xx7", nil).Once()

	synced, err := env.pipeline.RunSync(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, synced.Status)

	fresh, err := env.store.GetContact(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, "003xx7", fresh.CRMID)

	assert.Equal(t, "jo@acme.example", createProps["Email"])
	assert.Equal(t, "Acme Mailing", createProps["Company_Name__c"])
	assert.Equal(t, crmLeadStatus, createProps["Lead_Status__c"])
	assert.Equal(t, crmPipelineStage, createProps["Pipeline_Stage__c"])

	// Re-run updates by the stored id instead of creating a second record.
	env.crm.On("Update", mock.Anything, "003xx7", mock.Anything).Return(nil)

	again, err := env.pipeline.RunSync(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, again.Status)
	env.crm.AssertNumberOfCalls(t, "Create", 1)
	env.crm.AssertNumberOfCalls(t, "Update", 1)
}

func TestRunSyncConflictsOnPendingRow(t *testing.T) {
	env := newTestEnv(t)

	_, enr := env.stageContact(t, model.Contact{Email: "jo@acme.example"})

	_, err := env.pipeline.RunSync(context.Background(), enr.ID)
	assert.ErrorIs(t, err, store.ErrConflict)
	env.crm.AssertNotCalled(t, "Create")
}

func TestRunSyncConflictsOnUndecidedErrorRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, enr := env.stageContact(t, model.Contact{Email: "jo@acme.example"})
	msg := "enrichment blew up"
	_, err := env.store.TransitionEnrichment(ctx, enr.ID,
		[]model.EnrichmentStatus{model.StatusAwaitingApproval},
		model.StatusError, store.EnrichmentPatch{Error: &msg})
	require.NoError(t, err)

	_, err = env.pipeline.RunSync(ctx, enr.ID)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestRunSyncClearsPreviousError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, enr := approvedEnrichment(t, env)

	msg := "transient CRM outage"
	_, err := env.store.TransitionEnrichment(ctx, enr.ID,
		[]model.EnrichmentStatus{model.StatusApproved},
		model.StatusError, store.EnrichmentPatch{Error: &msg})
	require.NoError(t, err)

	env.crm.On("Create", mock.Anything, mock.Anything).Return("003xx7", nil)

	synced, err := env.pipeline.RunSync(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, synced.Status)
	assert.Empty(t, synced.Error)
	assert.Equal(t, "u-op", synced.DecidedBy)
}

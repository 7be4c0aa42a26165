package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

func TestRunEnrichmentSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, enr := env.stageContact(t, model.Contact{
		Email:         "jo@acme.example",
		FirstName:     "Jo",
		LastName:      "Field",
		CompanyName:   "Acme Mailing",
		CompanyDomain: "acme.example",
	})

	env.research.On("Fetch", mock.Anything, mock.Anything).Return("We run direct mail campaigns.", nil)
	ins := testInsight()
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(ins, nil)

	updated, err := env.pipeline.RunEnrichment(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingApproval, updated.Status)
	assert.Equal(t, ins.Classification, updated.Classification)
	assert.Equal(t, ins.AddressLine1, updated.AddressLine1)
	assert.Equal(t, ins.Note, updated.Note)
	assert.Equal(t, ins.ApprovalBlock, updated.ApprovalBlock)

	require.Len(t, env.eventsOfType(t, model.EventEnriched), 1)
	require.Len(t, env.eventsOfType(t, model.EventApprovalRequested), 1)
	require.Len(t, env.jobs.kinds(model.JobKindNotify), 1)
}

func TestRunEnrichmentSwallowsFetchFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, enr := env.stageContact(t, model.Contact{
		Email:         "jo@acme.example",
		CompanyName:   "Acme Mailing",
		CompanyDomain: "acme.example",
	})

	env.research.On("Fetch", mock.Anything, mock.Anything).Return("", errors.New("fetch blocked"))
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			pages := args.Get(2).([]model.ResearchPage)
			assert.Empty(t, pages)
		}).
		Return(testInsight(), nil)

	updated, err := env.pipeline.RunEnrichment(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingApproval, updated.Status)
}

func TestRunEnrichmentGeneratorFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, enr := env.stageContact(t, model.Contact{
		Email:         "jo@acme.example",
		CompanyDomain: "acme.example",
	})

	env.research.On("Fetch", mock.Anything, mock.Anything).Return("", errors.New("fetch blocked"))
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("generator validation failure"))

	_, err := env.pipeline.RunEnrichment(ctx, enr.ID)
	require.Error(t, err)

	current, err := env.store.GetEnrichment(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, current.Status)
	assert.Contains(t, current.Error, "generator validation failure")
	require.Len(t, env.eventsOfType(t, model.EventFailed), 1)
	assert.Empty(t, env.jobs.kinds(model.JobKindNotify))
}

func TestRunEnrichmentRecoversErroredRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, enr := env.stageContact(t, model.Contact{
		Email:         "jo@acme.example",
		CompanyDomain: "acme.example",
	})

	msg := "earlier failure"
	_, err := env.store.TransitionEnrichment(ctx, enr.ID,
		[]model.EnrichmentStatus{model.StatusAwaitingApproval},
		model.StatusError, store.EnrichmentPatch{Error: &msg})
	require.NoError(t, err)

	env.research.On("Fetch", mock.Anything, mock.Anything).Return("content", nil)
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(testInsight(), nil)

	updated, err := env.pipeline.RunEnrichment(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingApproval, updated.Status)
}

func TestRunEnrichmentUnknownID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.pipeline.RunEnrichment(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/notify"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

type recordingSink struct {
	messages []string
}

func (s *recordingSink) Name() string { return "recording" }
func (s *recordingSink) Send(ctx context.Context, message string) error {
	s.messages = append(s.messages, message)
	return nil
}

func notifyJob(t *testing.T, payload notifyPayload) model.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return model.Job{Queue: model.QueueNotify, Kind: model.JobKindNotify, Payload: raw}
}

func TestHandleNotifyApprovalReady(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sink := &recordingSink{}
	env.pipeline.notifier = notify.New(sink)

	_, enr := env.stageContact(t, model.Contact{Email: "jo@acme.example"})
	block := "Jo Field at Acme Mailing\nApprove this enrichment for CRM sync?"
	_, err := env.store.TransitionEnrichment(ctx, enr.ID,
		[]model.EnrichmentStatus{model.StatusAwaitingApproval},
		model.StatusAwaitingApproval,
		store.EnrichmentPatch{ApprovalBlock: &block})
	require.NoError(t, err)

	job := notifyJob(t, notifyPayload{Kind: notifyKindApprovalReady, EnrichmentID: enr.ID})
	require.NoError(t, env.pipeline.handleNotify(ctx, job))
	require.Len(t, sink.messages, 1)
	assert.Equal(t, block, sink.messages[0])
}

func TestHandleNotifyDigestCountsAwaiting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sink := &recordingSink{}
	env.pipeline.notifier = notify.New(sink)

	env.stageContact(t, model.Contact{Email: "jo@acme.example"})
	env.stageContact(t, model.Contact{Email: "pat@other.example"})

	job := notifyJob(t, notifyPayload{
		Kind:   notifyKindDigest,
		Digest: &notify.Digest{Staged: 2},
	})
	require.NoError(t, env.pipeline.handleNotify(ctx, job))
	require.Len(t, sink.messages, 1)
	assert.Contains(t, sink.messages[0], "Awaiting approval: 2")
}

func TestHandleNotifyUnknownKind(t *testing.T) {
	env := newTestEnv(t)

	job := notifyJob(t, notifyPayload{Kind: "mystery"})
	assert.Error(t, env.pipeline.handleNotify(context.Background(), job))
}

package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-pipeline/internal/events"
	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/notify"
	"github.com/sells-group/outreach-pipeline/internal/queue"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

type mockDiscovery struct {
	mock.Mock
}

func (m *mockDiscovery) Search(ctx context.Context, filters model.Filters, page, perPage int) ([]model.Candidate, error) {
	args := m.Called(ctx, filters, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Candidate), args.Error(1)
}

type mockCRM struct {
	mock.Mock
}

func (m *mockCRM) FindByEmail(ctx context.Context, email string) (*CRMRecord, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CRMRecord), args.Error(1)
}

func (m *mockCRM) Create(ctx context.Context, properties map[string]any) (string, error) {
	args := m.Called(ctx, properties)
	return args.String(0), args.Error(1)
}

func (m *mockCRM) Update(ctx context.Context, id string, properties map[string]any) error {
	args := m.Called(ctx, id, properties)
	return args.Error(0)
}

type mockResearch struct {
	mock.Mock
}

func (m *mockResearch) Fetch(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, contact model.Contact, pages []model.ResearchPage) (*model.Insight, error) {
	args := m.Called(ctx, contact, pages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Insight), args.Error(1)
}

type capturedJob struct {
	Queue   string
	Kind    string
	Payload any
}

// captureQueue records enqueued jobs instead of persisting them.
type captureQueue struct {
	jobs []capturedJob
}

func (q *captureQueue) Enqueue(ctx context.Context, queueName, kind string, payload any, opts ...queue.EnqueueOption) error {
	q.jobs = append(q.jobs, capturedJob{Queue: queueName, Kind: kind, Payload: payload})
	return nil
}

func (q *captureQueue) kinds(kind string) []capturedJob {
	var out []capturedJob
	for _, j := range q.jobs {
		if j.Kind == kind {
			out = append(out, j)
		}
	}
	return out
}

type testEnv struct {
	store     store.Store
	discovery *mockDiscovery
	crm       *mockCRM
	research  *mockResearch
	generator *mockGenerator
	jobs      *captureQueue
	pipeline  *Pipeline
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	env := &testEnv{
		store:     st,
		discovery: &mockDiscovery{},
		crm:       &mockCRM{},
		research:  &mockResearch{},
		generator: &mockGenerator{},
		jobs:      &captureQueue{},
	}
	env.pipeline = New(
		st,
		env.discovery,
		env.crm,
		env.research,
		env.generator,
		events.NewRecorder(st),
		notify.New(),
		env.jobs,
		Options{ItemDelay: time.Millisecond, ResearchFanOut: 2},
	)
	return env
}

// stageContact inserts a contact with a pending enrichment, as ingestion
// would leave it.
func (e *testEnv) stageContact(t *testing.T, c model.Contact) (*model.Contact, *model.Enrichment) {
	t.Helper()
	contact, _, err := e.store.UpsertContactByEmail(context.Background(), c)
	require.NoError(t, err)
	enr, _, err := e.store.CreateOrReusePendingEnrichment(context.Background(), contact.ID)
	require.NoError(t, err)
	return contact, enr
}

func (e *testEnv) eventsOfType(t *testing.T, typ model.EventType) []model.Event {
	t.Helper()
	evs, err := e.store.ListEvents(context.Background(), store.EventFilter{Type: typ})
	require.NoError(t, err)
	return evs
}

func testInsight() *model.Insight {
	ins := &model.Insight{
		Classification: "Direct Mail Specialist",
		AddressLine1:   "1 High Street",
		City:           "Norwich",
		Postcode:       "NR1 1AA",
		Country:        "GB",
		AddrSourceURL:  "https://acme.example/contact",
		Note:           "Congrats on the spring catalogue launch.",
		NoteSourceURL:  "https://acme.example/news",
	}
	ins.ApprovalBlock = "Jo Field at Acme Mailing\nClassification: " + ins.Classification + "\nNote: " + ins.Note
	return ins
}

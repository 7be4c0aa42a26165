package events

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRecordRedactsBeforePersisting(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := NewRecorder(st)
	rec.Record(ctx, model.EventDeduped, "c-1", "", map[string]any{
		"email":  "jo@acme.example",
		"reason": "existing contact",
	})

	evs, err := st.ListEvents(ctx, store.EventFilter{ContactID: "c-1"})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, model.EventDeduped, evs[0].Type)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(evs[0].Payload, &payload))
	assert.Equal(t, Redacted, payload["email"])
	assert.Equal(t, "existing contact", payload["reason"])
}

func TestRecordSurvivesStoreFailure(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Close())

	rec := NewRecorder(st)
	// Must not panic or propagate the append error.
	rec.Record(context.Background(), model.EventFailed, "c-1", "", map[string]any{"stage": "ingest"})
}

func TestRecordNilPayload(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := NewRecorder(st)
	rec.Record(ctx, model.EventApproved, "c-1", "e-1", nil)

	evs, err := st.ListEvents(ctx, store.EventFilter{EnrichmentID: "e-1"})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Empty(t, evs[0].Payload)
}

package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/claudeflow/internal/eventbus"
	"github.com/shaharia-lab/claudeflow/internal/storage"
)

func newTestEventStore(t *testing.T) *storage.SQLiteEventStore {
	t.Helper()
	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return storage.NewSQLiteEventStore(db)
}

func TestSQLiteEventStoreSaveAndList(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	evt := eventbus.Event{
		ID:        "evt-1",
		Type:      eventbus.TypeAgentStarted,
		Source:    "agent:worker-1",
		Payload:   map[string]any{"role": "researcher"},
		Metadata:  map[string]string{"request_id": "req-1"},
		Timestamp: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveEvent(ctx, evt))

	events, err := store.ListEvents(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, evt.ID, got.ID)
	assert.Equal(t, evt.Type, got.Type)
	assert.Equal(t, evt.Source, got.Source)
	assert.Equal(t, "researcher", got.Payload["role"])
	assert.Equal(t, evt.Metadata, got.Metadata)
	assert.True(t, evt.Timestamp.Equal(got.Timestamp.UTC()))
}

func TestSQLiteEventStoreDuplicateID(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	evt := eventbus.NewSystemEvent(eventbus.TypeSystemStartup, nil)
	require.NoError(t, store.SaveEvent(ctx, evt))
	require.NoError(t, store.SaveEvent(ctx, evt), "re-saving the same event is a no-op")

	events, err := store.ListEvents(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSQLiteEventStoreFilterAndOrder(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		evt := eventbus.NewAgentEvent(eventbus.TypeAgentHeartbeat, "a-1", map[string]any{"seq": i})
		evt.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveEvent(ctx, evt))
	}
	swarm := eventbus.NewSwarmEvent(eventbus.TypeSwarmFormed, nil)
	swarm.Timestamp = base.Add(time.Hour)
	require.NoError(t, store.SaveEvent(ctx, swarm))

	heartbeats, err := store.ListEvents(ctx, eventbus.TypeAgentHeartbeat, 0)
	require.NoError(t, err)
	require.Len(t, heartbeats, 3)
	// Newest first.
	assert.EqualValues(t, 2, heartbeats[0].Payload["seq"])

	limited, err := store.ListEvents(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, eventbus.TypeSwarmFormed, limited[0].Type)
}

func TestSQLiteEventStoreCountByType(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, store.SaveEvent(ctx, eventbus.NewAgentEvent(eventbus.TypeAgentStarted, "a-1", nil)))
	}
	require.NoError(t, store.SaveEvent(ctx, eventbus.NewMCPEvent(eventbus.TypeMCPConnected, nil)))

	counts, err := store.CountByType(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[eventbus.TypeAgentStarted])
	assert.EqualValues(t, 1, counts[eventbus.TypeMCPConnected])
}

func TestSQLiteEventStorePrune(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	old := eventbus.NewSystemEvent(eventbus.TypeSystemHealthCheck, nil)
	old.Timestamp = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, store.SaveEvent(ctx, old))

	recent := eventbus.NewSystemEvent(eventbus.TypeSystemHealthCheck, nil)
	require.NoError(t, store.SaveEvent(ctx, recent))

	pruned, err := store.Prune(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	events, err := store.ListEvents(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, recent.ID, events[0].ID)
}

package archive_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/claudeflow/internal/archive"
	"github.com/shaharia-lab/claudeflow/internal/eventbus"
	"github.com/shaharia-lab/claudeflow/internal/storage"
)

func TestRecorderArchivesPublishedEvents(t *testing.T) {
	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()
	store := storage.NewSQLiteEventStore(db)

	bus := eventbus.NewBus()
	defer bus.Close()

	recorder := archive.NewRecorder(store)
	sub := recorder.Attach(bus)
	require.NotNil(t, sub)

	require.NoError(t, bus.Publish(eventbus.NewAgentEvent(eventbus.TypeAgentStarted, "a-1", map[string]any{"role": "coder"})))
	require.NoError(t, bus.Publish(eventbus.NewSwarmEvent(eventbus.TypeSwarmFormed, nil)))

	// Archive writes are async; wait for them.
	require.NoError(t, bus.Drain(context.Background()))

	events, err := store.ListEvents(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	agents, err := store.ListEvents(context.Background(), eventbus.TypeAgentStarted, 0)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "agent:a-1", agents[0].Source)
}

func TestRecorderDetached(t *testing.T) {
	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()
	store := storage.NewSQLiteEventStore(db)

	bus := eventbus.NewBus()
	defer bus.Close()

	recorder := archive.NewRecorder(store)
	sub := recorder.Attach(bus)
	require.NoError(t, bus.Unsubscribe(sub))

	require.NoError(t, bus.Publish(eventbus.NewSystemEvent(eventbus.TypeSystemStartup, nil)))
	require.NoError(t, bus.Drain(context.Background()))

	events, err := store.ListEvents(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

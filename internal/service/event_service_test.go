package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/claudeflow/internal/eventbus"
	"github.com/shaharia-lab/claudeflow/internal/service"
	"github.com/shaharia-lab/claudeflow/internal/storage"
)

func newTestEventService(t *testing.T) (*service.EventService, *eventbus.Bus, storage.EventStore) {
	t.Helper()
	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := eventbus.NewBus()
	t.Cleanup(bus.Close)

	store := storage.NewSQLiteEventStore(db)
	return service.NewEventService(bus, store), bus, store
}

func TestEventServicePublish(t *testing.T) {
	svc, bus, _ := newTestEventService(t)

	var received []eventbus.Event
	bus.SubscribeAll(func(evt eventbus.Event) error {
		received = append(received, evt)
		return nil
	})

	evt, err := svc.Publish(eventbus.TypeAgentCreated, "agent:a-1",
		map[string]any{"role": "researcher"}, map[string]string{"origin": "api"})
	require.NoError(t, err)

	assert.NotEmpty(t, evt.ID)
	assert.False(t, evt.Timestamp.IsZero())
	require.Len(t, received, 1)
	assert.Equal(t, evt.ID, received[0].ID)
	assert.Equal(t, "api", received[0].Metadata["origin"])
}

func TestEventServicePublishRejectsMissingType(t *testing.T) {
	svc, _, _ := newTestEventService(t)

	_, err := svc.Publish("", "somewhere", nil, nil)
	require.ErrorIs(t, err, eventbus.ErrMissingType)
}

func TestEventServiceHistoryAndStats(t *testing.T) {
	svc, _, store := newTestEventService(t)
	ctx := context.Background()

	_, err := svc.Publish(eventbus.TypeSwarmFormed, "swarm:coordinator", nil, nil)
	require.NoError(t, err)
	_, err = svc.Publish(eventbus.TypeSwarmDissolved, "swarm:coordinator", nil, nil)
	require.NoError(t, err)

	history := svc.History(eventbus.TypeSwarmFormed, 0)
	require.Len(t, history, 1)
	assert.Equal(t, eventbus.TypeSwarmFormed, history[0].Type)

	// Archive a copy of one event directly; the service only reads the store.
	require.NoError(t, store.SaveEvent(ctx, history[0]))

	archived, err := svc.Archived(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, archived, 1)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Bus.Published)
	assert.Equal(t, int64(1), stats.Archived[eventbus.TypeSwarmFormed])
}

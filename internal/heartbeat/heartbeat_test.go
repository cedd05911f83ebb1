package heartbeat_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/claudeflow/internal/eventbus"
	"github.com/shaharia-lab/claudeflow/internal/heartbeat"
)

func TestHeartbeatPublishesHealthChecks(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()

	h, err := heartbeat.New(heartbeat.Config{
		Bus:      bus,
		Logger:   slog.Default(),
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, h.Start(context.Background()))
	defer func() { _ = h.Stop() }()

	require.Eventually(t, func() bool {
		return len(bus.History(eventbus.TypeSystemHealthCheck, 0)) > 0
	}, 2*time.Second, 5*time.Millisecond)

	events := bus.History(eventbus.TypeSystemHealthCheck, 1)
	require.Len(t, events, 1)
	assert.Equal(t, "system", events[0].Source)
	assert.Contains(t, events[0].Payload, "goroutines")
	assert.Contains(t, events[0].Payload, "uptime_seconds")
}

func TestHeartbeatDefaultInterval(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()

	h, err := heartbeat.New(heartbeat.Config{Bus: bus, Logger: slog.Default()})
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))
	require.NoError(t, h.Stop())

	// Default 30s interval means no event fires during the test.
	assert.Empty(t, bus.History(eventbus.TypeSystemHealthCheck, 0))
}

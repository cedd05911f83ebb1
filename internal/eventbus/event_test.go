package eventbus_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/claudeflow/internal/eventbus"
)

func TestNewEventDefaults(t *testing.T) {
	e := eventbus.NewAgentEvent(eventbus.TypeAgentCreated, "worker-7", map[string]any{"role": "researcher"})

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, eventbus.TypeAgentCreated, e.Type)
	assert.Equal(t, "agent:worker-7", e.Source)
	assert.Equal(t, "researcher", e.Payload["role"])
	assert.WithinDuration(t, time.Now().UTC(), e.Timestamp, time.Second)

	e2 := eventbus.NewSystemEvent(eventbus.TypeSystemStartup, nil)
	assert.NotNil(t, e2.Payload, "nil payload is normalized to an empty map")
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, eventbus.Event{}.Validate(), eventbus.ErrMissingType)
	assert.NoError(t, eventbus.Event{Type: eventbus.TypeMCPConnected}.Validate())
}

func TestJSONRoundTrip(t *testing.T) {
	e := eventbus.Event{
		ID:     "evt-1",
		Type:   eventbus.TypeMCPToolResult,
		Source: "mcp:client",
		Payload: map[string]any{
			"tool":     "current_time",
			"duration": 12.5,
			"ok":       true,
		},
		Metadata:  map[string]string{"request_id": "req-9"},
		Timestamp: time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC),
	}

	data, err := e.JSON()
	require.NoError(t, err)

	parsed, err := eventbus.ParseEvent(data)
	require.NoError(t, err)
	assert.Equal(t, e.ID, parsed.ID)
	assert.Equal(t, e.Type, parsed.Type)
	assert.Equal(t, e.Source, parsed.Source)
	assert.Equal(t, e.Metadata, parsed.Metadata)
	assert.True(t, e.Timestamp.Equal(parsed.Timestamp))
	assert.Equal(t, e.Payload, parsed.Payload)

	// Serializing the parsed event again yields the same representation.
	data2, err := parsed.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(data2))
}

func TestSerializedFormat(t *testing.T) {
	e := eventbus.Event{
		ID:        "evt-2",
		Type:      eventbus.TypeSwarmFormed,
		Source:    "swarm:coordinator",
		Payload:   map[string]any{"size": float64(4)},
		Timestamp: time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC),
	}

	data, err := e.JSON()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "swarm.formed", raw["type"])
	assert.Equal(t, "swarm:coordinator", raw["source"])
	assert.Equal(t, "2026-08-25T10:30:00Z", raw["timestamp"], "timestamps serialize as RFC 3339")
	assert.NotContains(t, raw, "metadata", "empty metadata is omitted")
}

func TestParseEventErrors(t *testing.T) {
	_, err := eventbus.ParseEvent([]byte("{not json"))
	require.Error(t, err)

	_, err = eventbus.ParseEvent([]byte(`{"source":"agent:a-1"}`))
	assert.ErrorIs(t, err, eventbus.ErrMissingType)

	parsed, err := eventbus.ParseEvent([]byte(`{"type":"system.startup"}`))
	require.NoError(t, err)
	assert.NotNil(t, parsed.Payload)
}

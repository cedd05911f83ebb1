package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event type constants. The dotted prefix groups events by the subsystem
// that emits them.
const (
	// Agent events
	TypeAgentCreated   = "agent.created"
	TypeAgentStarted   = "agent.started"
	TypeAgentStopped   = "agent.stopped"
	TypeAgentError     = "agent.error"
	TypeAgentHeartbeat = "agent.heartbeat"

	// Swarm events
	TypeSwarmFormed       = "swarm.formed"
	TypeSwarmDissolved    = "swarm.dissolved"
	TypeSwarmCoordination = "swarm.coordination"
	TypeSwarmScaling      = "swarm.scaling"

	// Memory events
	TypeMemoryStored    = "memory.stored"
	TypeMemoryRetrieved = "memory.retrieved"
	TypeMemoryCleaned   = "memory.cleaned"

	// MCP events
	TypeMCPConnected  = "mcp.connected"
	TypeMCPToolCalled = "mcp.tool_called"
	TypeMCPToolResult = "mcp.tool_result"
	TypeMCPError      = "mcp.error"

	// Claude events
	TypeClaudeRequest  = "claude.request"
	TypeClaudeResponse = "claude.response"
	TypeClaudeError    = "claude.error"

	// System events
	TypeSystemStartup     = "system.startup"
	TypeSystemShutdown    = "system.shutdown"
	TypeSystemHealthCheck = "system.health_check"
)

// ErrMissingType is returned when an event is published without a type.
var ErrMissingType = errors.New("event type is required")

// Event is an immutable record of something that happened in the system.
// Once published it must not be mutated; handlers receive it by value.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Source    string            `json:"source,omitempty"`
	Payload   map[string]any    `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// New creates a fully-formed event with a fresh ID and the current UTC time.
func New(eventType, source string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentEvent creates an event originating from a specific agent.
func NewAgentEvent(eventType, agentID string, payload map[string]any) Event {
	return New(eventType, "agent:"+agentID, payload)
}

// NewSwarmEvent creates an event originating from the swarm coordinator.
func NewSwarmEvent(eventType string, payload map[string]any) Event {
	return New(eventType, "swarm:coordinator", payload)
}

// NewMCPEvent creates an event originating from the MCP client.
func NewMCPEvent(eventType string, payload map[string]any) Event {
	return New(eventType, "mcp:client", payload)
}

// NewClaudeEvent creates an event originating from the Claude client.
func NewClaudeEvent(eventType string, payload map[string]any) Event {
	return New(eventType, "claude:client", payload)
}

// NewSystemEvent creates a system-level event.
func NewSystemEvent(eventType string, payload map[string]any) Event {
	return New(eventType, "system", payload)
}

// Validate reports whether the event is well-formed enough to publish.
func (e Event) Validate() error {
	if e.Type == "" {
		return ErrMissingType
	}
	return nil
}

// JSON renders the event in its canonical serialized form. Timestamps are
// RFC 3339 with sub-second precision; the payload map is emitted as-is.
func (e Event) JSON() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding event %s: %w", e.ID, err)
	}
	return b, nil
}

// ParseEvent decodes a serialized event and validates it.
func ParseEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	return e, nil
}

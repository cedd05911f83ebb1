package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shaharia-lab/claudeflow/internal/eventbus"
	"github.com/shaharia-lab/claudeflow/internal/storage"
)

// SubjectPrefix is prepended to every outgoing notification subject.
const SubjectPrefix = "Claude-Flow Alert - "

const sendTimeout = 30 * time.Second

// defaultEventTypes is the error-class set notified when flow.yaml does not
// name explicit event types.
var defaultEventTypes = []string{
	eventbus.TypeAgentError,
	eventbus.TypeMCPError,
	eventbus.TypeClaudeError,
}

// Handler receives events from the bus and delivers email notifications
// according to the configured settings. Register it with Bus.Subscribe for
// each type returned by EventTypes, or with SubscribeAll behind its own
// filtering.
type Handler struct {
	settings Settings
	provider Provider
	store    storage.NotificationStore
	logger   *slog.Logger
	types    map[string]struct{}
}

// NewHandler creates a Handler delivering through provider. The store records
// every delivery attempt; logger reports delivery problems.
func NewHandler(settings Settings, provider Provider, store storage.NotificationStore, logger *slog.Logger) *Handler {
	types := make(map[string]struct{})
	configured := settings.EventTypes
	if len(configured) == 0 {
		configured = defaultEventTypes
	}
	for _, t := range configured {
		types[t] = struct{}{}
	}
	return &Handler{
		settings: settings,
		provider: provider,
		store:    store,
		logger:   logger,
		types:    types,
	}
}

// EventTypes returns the event types this handler wants to receive, sorted.
func (h *Handler) EventTypes() []string {
	out := make([]string, 0, len(h.types))
	for t := range h.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// humanSubject returns a readable subject for well-known event types; unknown
// types fall back to the raw event type string.
func humanSubject(eventType string) string {
	switch eventType {
	case eventbus.TypeAgentError:
		return "Agent Reported an Error"
	case eventbus.TypeMCPError:
		return "MCP Tool Call Failed"
	case eventbus.TypeClaudeError:
		return "Claude Request Failed"
	case eventbus.TypeSystemShutdown:
		return "System Shutting Down"
	}
	return eventType
}

// Handle processes one event: filters by settings, builds the message, sends
// it through the provider, and records the attempt. Send failures are
// returned so the bus accounts for them; the delivery log entry is written
// either way.
func (h *Handler) Handle(evt eventbus.Event) error {
	if !h.settings.Enabled {
		return nil
	}
	if _, ok := h.types[evt.Type]; !ok {
		return nil
	}

	subject := SubjectPrefix + humanSubject(evt.Type)
	body := buildBody(evt)

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	sendErr := h.provider.Send(ctx, Message{Subject: subject, Body: body})

	entry := storage.NotificationLogEntry{
		EventID:   evt.ID,
		EventType: evt.Type,
		Provider:  h.provider.Name(),
		Subject:   subject,
		Status:    "sent",
		CreatedAt: time.Now().UTC(),
	}
	if sendErr != nil {
		entry.Status = "failed"
		entry.ErrorMsg = sendErr.Error()
	}
	if logErr := h.store.LogNotification(context.Background(), entry); logErr != nil {
		h.logger.Error("failed to record notification delivery",
			"event_id", evt.ID, "error", logErr)
	}

	if sendErr != nil {
		return fmt.Errorf("sending notification for event %s: %w", evt.ID, sendErr)
	}
	return nil
}

// buildBody renders the event fields as a plain-text message.
func buildBody(evt eventbus.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event:     %s\n", evt.Type)
	if evt.Source != "" {
		fmt.Fprintf(&b, "Source:    %s\n", evt.Source)
	}
	fmt.Fprintf(&b, "Event ID:  %s\n", evt.ID)
	fmt.Fprintf(&b, "Timestamp: %s\n", evt.Timestamp.Format(time.RFC3339))

	if len(evt.Payload) > 0 {
		b.WriteString("\nDetails:\n")
		keys := make([]string, 0, len(evt.Payload))
		for k := range evt.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", k, evt.Payload[k])
		}
	}
	return b.String()
}

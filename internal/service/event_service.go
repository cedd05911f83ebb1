package service

import (
	"context"
	"fmt"

	"github.com/shaharia-lab/claudeflow/internal/eventbus"
	"github.com/shaharia-lab/claudeflow/internal/storage"
)

// EventService exposes the bus and the event archive to the HTTP API.
type EventService struct {
	bus   *eventbus.Bus
	store storage.EventStore
}

// NewEventService creates an EventService over the given bus and archive.
func NewEventService(bus *eventbus.Bus, store storage.EventStore) *EventService {
	return &EventService{bus: bus, store: store}
}

// Publish builds an event from the given fields and publishes it on the bus.
// The completed event, with its generated ID and timestamp, is returned.
func (s *EventService) Publish(eventType, source string, payload map[string]any, metadata map[string]string) (eventbus.Event, error) {
	evt := eventbus.New(eventType, source, payload)
	evt.Metadata = metadata
	if err := s.bus.Publish(evt); err != nil {
		return eventbus.Event{}, fmt.Errorf("publishing event: %w", err)
	}
	return evt, nil
}

// History returns recent events from the in-memory history buffer, oldest
// first, optionally filtered by type and truncated to limit entries.
func (s *EventService) History(eventType string, limit int) []eventbus.Event {
	return s.bus.History(eventType, limit)
}

// Archived returns persisted events from the archive, newest first.
func (s *EventService) Archived(ctx context.Context, eventType string, limit int) ([]eventbus.Event, error) {
	return s.store.ListEvents(ctx, eventType, limit)
}

// Stats reports bus counters alongside per-type archive totals.
type Stats struct {
	Bus      eventbus.Stats   `json:"bus"`
	Archived map[string]int64 `json:"archived_by_type"`
}

// Stats returns a point-in-time snapshot of bus and archive statistics.
func (s *EventService) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.store.CountByType(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting archived events: %w", err)
	}
	return Stats{Bus: s.bus.Stats(), Archived: counts}, nil
}

// Subscribe registers a handler on the bus. An empty eventType receives every
// event.
func (s *EventService) Subscribe(eventType string, h eventbus.Handler) *eventbus.Subscription {
	return s.bus.Subscribe(eventType, h)
}

// Unsubscribe removes a subscription created via Subscribe.
func (s *EventService) Unsubscribe(sub *eventbus.Subscription) error {
	return s.bus.Unsubscribe(sub)
}

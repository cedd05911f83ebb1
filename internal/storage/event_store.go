package storage

import (
	"context"
	"time"

	"github.com/shaharia-lab/claudeflow/internal/eventbus"
)

// EventStore defines the interface for the observational event archive.
// The archive is best effort — it is never the source of truth for the bus.
type EventStore interface {
	// SaveEvent persists a single published event.
	SaveEvent(ctx context.Context, evt eventbus.Event) error
	// ListEvents returns archived events, newest first, optionally filtered
	// by type, up to limit.
	ListEvents(ctx context.Context, eventType string, limit int) ([]eventbus.Event, error)
	// CountByType returns the number of archived events per event type.
	CountByType(ctx context.Context) (map[string]int64, error)
	// Prune deletes events older than the cutoff and returns how many were
	// removed.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

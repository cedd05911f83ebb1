// Package archive mirrors published events into the SQLite event store for
// later inspection. The archive is observational: writes are asynchronous and
// best effort, and the bus never depends on it.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/shaharia-lab/claudeflow/internal/eventbus"
	"github.com/shaharia-lab/claudeflow/internal/storage"
)

const saveTimeout = 5 * time.Second

// Recorder persists every event it receives.
type Recorder struct {
	store storage.EventStore
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store storage.EventStore) *Recorder {
	return &Recorder{store: store}
}

// Attach subscribes the recorder to all events on the bus with async
// delivery, so publishing never waits on the database. Callers should Drain
// the bus before shutdown to flush pending writes.
func (r *Recorder) Attach(bus *eventbus.Bus) *eventbus.Subscription {
	return bus.SubscribeAll(r.Record, eventbus.Async())
}

// Record persists a single event. Errors are returned for the bus to report.
func (r *Recorder) Record(evt eventbus.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := r.store.SaveEvent(ctx, evt); err != nil {
		return fmt.Errorf("archiving event %s: %w", evt.ID, err)
	}
	return nil
}

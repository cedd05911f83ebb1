// Package eventbus provides the in-process publish/subscribe hub that carries
// agent, swarm, memory, MCP, Claude, and system events between components.
//
// A Bus retains a bounded history of published events for inspection. Handlers
// registered without options run inline during Publish, in registration order;
// handlers registered with Async are dispatched as independent goroutines whose
// completion Publish does not await. Drain waits for those before shutdown.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultCapacity = 1000

var (
	// ErrClosed is returned by Publish after the bus has been closed.
	ErrClosed = errors.New("event bus is closed")

	// ErrSubscriptionNotFound is returned when unsubscribing a token that is
	// not (or no longer) registered. Benign; callers may ignore it.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Handler processes a single event. A returned error is reported to the bus's
// error callback and does not affect delivery to other handlers.
type Handler func(Event) error

// Subscription is the token returned by Subscribe, usable to unsubscribe.
type Subscription struct {
	id        uint64
	eventType string // empty matches every event
	async     bool
	handler   Handler
}

// EventType returns the type filter of the subscription; empty means all types.
func (s *Subscription) EventType() string { return s.eventType }

// SubscribeOption configures a single subscription.
type SubscribeOption func(*Subscription)

// Async requests fire-and-forget delivery: the handler runs in its own
// goroutine and Publish does not wait for it. Use Bus.Drain before shutdown
// to await pending async dispatches.
func Async() SubscribeOption {
	return func(s *Subscription) { s.async = true }
}

// Option configures a Bus.
type Option func(*Bus)

// WithCapacity sets the history buffer capacity. Values <= 0 keep the default.
func WithCapacity(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithLogger sets the logger used to report handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithErrorHandler sets a callback invoked for every handler failure (error
// return or panic), after the failure has been logged.
func WithErrorHandler(fn func(Event, error)) Option {
	return func(b *Bus) { b.errFn = fn }
}

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	Published   uint64 `json:"published"`
	Failures    uint64 `json:"handler_failures"`
	Evicted     uint64 `json:"evicted"`
	HistoryLen  int    `json:"history_len"`
	Capacity    int    `json:"capacity"`
	Subscribers int    `json:"subscribers"`
}

// Bus is an in-process publish/subscribe hub with bounded event history.
// All methods are safe for concurrent use. The zero value is not usable;
// construct with New.
type Bus struct {
	mu       sync.Mutex
	subs     []*Subscription
	history  []Event
	head     int // index of the oldest retained event once the ring is full
	capacity int
	nextID   uint64
	closed   bool

	published uint64
	failures  uint64
	evicted   uint64

	inflight sync.WaitGroup
	logger   *slog.Logger
	errFn    func(Event, error)
}

// NewBus creates a Bus ready for immediate use.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		capacity: defaultCapacity,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.history = make([]Event, 0, min(b.capacity, 64))
	return b
}

// Publish validates the event, records it in the history buffer, and delivers
// it to every matching subscription in registration order. Synchronous
// handlers complete before Publish returns; async handlers are scheduled and
// not awaited. An event with an empty ID or zero timestamp is completed at
// this point (publish time is creation time).
func (b *Bus) Publish(evt Event) error {
	if err := evt.Validate(); err != nil {
		return fmt.Errorf("rejecting event: %w", err)
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if evt.Payload == nil {
		evt.Payload = map[string]any{}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.record(evt)
	b.published++
	matching := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.eventType == "" || s.eventType == evt.Type {
			matching = append(matching, s)
		}
	}
	b.mu.Unlock()

	// Handlers run outside the lock so they may subscribe, unsubscribe, or
	// publish without deadlocking. They see the snapshot taken above.
	for _, s := range matching {
		if s.async {
			b.inflight.Add(1)
			go func(s *Subscription) {
				defer b.inflight.Done()
				b.deliver(s, evt)
			}(s)
			continue
		}
		b.deliver(s, evt)
	}
	return nil
}

// deliver invokes a single handler with panic and error isolation.
func (b *Bus) deliver(s *Subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.reportFailure(evt, fmt.Errorf("handler panic: %v", r))
		}
	}()
	if err := s.handler(evt); err != nil {
		b.reportFailure(evt, err)
	}
}

func (b *Bus) reportFailure(evt Event, err error) {
	b.mu.Lock()
	b.failures++
	errFn := b.errFn
	b.mu.Unlock()

	b.logger.Error("event handler failed",
		"event_id", evt.ID,
		"event_type", evt.Type,
		"error", err,
	)
	if errFn != nil {
		errFn(evt, err)
	}
}

// record appends evt to the history ring, evicting the oldest entry when the
// buffer is at capacity. Caller holds b.mu.
func (b *Bus) record(evt Event) {
	if len(b.history) < b.capacity {
		b.history = append(b.history, evt)
		return
	}
	b.history[b.head] = evt
	b.head = (b.head + 1) % b.capacity
	b.evicted++
}

// Subscribe registers a handler for events of the given type. An empty
// eventType subscribes to all events. The returned token can be passed to
// Unsubscribe. Subscribe never fails for a non-nil handler.
func (b *Bus) Subscribe(eventType string, h Handler, opts ...SubscribeOption) *Subscription {
	if h == nil {
		panic("eventbus: nil handler")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{id: b.nextID, eventType: eventType, handler: h}
	for _, opt := range opts {
		opt(sub)
	}
	b.subs = append(b.subs, sub)
	return sub
}

// SubscribeAll registers a handler for every event regardless of type.
func (b *Bus) SubscribeAll(h Handler, opts ...SubscribeOption) *Subscription {
	return b.Subscribe("", h, opts...)
}

// Unsubscribe removes a previously registered subscription. The handler
// receives no events from the moment Unsubscribe returns. Returns
// ErrSubscriptionNotFound if the token was never registered or already
// removed.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == sub.id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

// SubscriberCount returns the number of subscriptions matching events of the
// given type, including wildcard subscriptions. An empty eventType returns
// the total subscription count.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if eventType == "" {
		return len(b.subs)
	}
	n := 0
	for _, s := range b.subs {
		if s.eventType == "" || s.eventType == eventType {
			n++
		}
	}
	return n
}

// History returns a snapshot of retained events in publish order (oldest
// first), optionally filtered by type and truncated to the most recent limit
// entries. The buffer is not mutated.
func (b *Bus) History(eventType string, limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.history)
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		evt := b.history[(b.head+i)%n]
		if eventType == "" || evt.Type == eventType {
			out = append(out, evt)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Published:   b.published,
		Failures:    b.failures,
		Evicted:     b.evicted,
		HistoryLen:  len(b.history),
		Capacity:    b.capacity,
		Subscribers: len(b.subs),
	}
}

// Drain blocks until all pending async dispatches have completed or ctx is
// done. Call before shutdown when async subscribers must observe the final
// events.
func (b *Bus) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the bus. Subsequent Publish calls return ErrClosed. Close waits
// for pending async dispatches to finish. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	b.inflight.Wait()
}

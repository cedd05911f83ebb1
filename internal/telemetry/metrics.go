// Package telemetry exposes event bus metrics through OpenTelemetry, bridged
// to a Prometheus registry served on /metrics.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/shaharia-lab/claudeflow/internal/eventbus"
)

const meterName = "github.com/shaharia-lab/claudeflow"

// Telemetry owns the meter provider and the bus instruments.
type Telemetry struct {
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry
	meter    metric.Meter

	eventsPublished metric.Int64Counter
	handlerFailures metric.Int64Counter
}

// New creates a Telemetry with a dedicated Prometheus registry and installs
// the meter provider as the global OpenTelemetry provider.
func New() (*Telemetry, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(meterName)

	eventsPublished, err := meter.Int64Counter("flow_events_published_total",
		metric.WithDescription("Events published on the bus, by event type."))
	if err != nil {
		return nil, fmt.Errorf("creating events counter: %w", err)
	}
	handlerFailures, err := meter.Int64Counter("flow_event_handler_failures_total",
		metric.WithDescription("Event handler errors and panics, by event type."))
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	return &Telemetry{
		provider:        provider,
		registry:        registry,
		meter:           meter,
		eventsPublished: eventsPublished,
		handlerFailures: handlerFailures,
	}, nil
}

// BusErrorHandler returns a callback suitable for eventbus.WithErrorHandler.
func (t *Telemetry) BusErrorHandler() func(eventbus.Event, error) {
	return func(evt eventbus.Event, _ error) {
		t.handlerFailures.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("event_type", evt.Type)))
	}
}

// ObserveBus registers the published-events counter as a wildcard subscriber
// and wires observable gauges over the bus stats. Call once after the bus is
// constructed.
func (t *Telemetry) ObserveBus(bus *eventbus.Bus) error {
	bus.SubscribeAll(func(evt eventbus.Event) error {
		t.eventsPublished.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("event_type", evt.Type)))
		return nil
	})

	historySize, err := t.meter.Int64ObservableGauge("flow_event_history_size",
		metric.WithDescription("Events currently retained in the history buffer."))
	if err != nil {
		return fmt.Errorf("creating history gauge: %w", err)
	}
	evicted, err := t.meter.Int64ObservableCounter("flow_event_history_evicted_total",
		metric.WithDescription("Events evicted from the history buffer."))
	if err != nil {
		return fmt.Errorf("creating eviction counter: %w", err)
	}
	subscribers, err := t.meter.Int64ObservableGauge("flow_event_subscribers",
		metric.WithDescription("Active subscriptions on the bus."))
	if err != nil {
		return fmt.Errorf("creating subscribers gauge: %w", err)
	}

	_, err = t.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := bus.Stats()
		o.ObserveInt64(historySize, int64(stats.HistoryLen))
		o.ObserveInt64(evicted, int64(stats.Evicted)) //nolint:gosec // counter fits in int64
		o.ObserveInt64(subscribers, int64(stats.Subscribers))
		return nil
	}, historySize, evicted, subscribers)
	if err != nil {
		return fmt.Errorf("registering bus stats callback: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler serving the Prometheus scrape endpoint.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// Package heartbeat runs the periodic housekeeping jobs: publishing
// system.health_check events and pruning expired events from the archive.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/shaharia-lab/claudeflow/internal/eventbus"
	"github.com/shaharia-lab/claudeflow/internal/storage"
)

// Archive pruning runs much less often than the heartbeat itself.
const pruneInterval = time.Hour

// Config holds the heartbeat configuration.
type Config struct {
	Bus       *eventbus.Bus
	Store     storage.EventStore
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration
}

// Heartbeat manages the periodic jobs using gocron.
type Heartbeat struct {
	cron    gocron.Scheduler
	cfg     Config
	started time.Time
}

// New creates a new Heartbeat.
func New(cfg Config) (*Heartbeat, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Heartbeat{cron: cron, cfg: cfg}, nil
}

// Start schedules the jobs and starts the scheduler.
func (h *Heartbeat) Start(_ context.Context) error {
	h.started = time.Now().UTC()

	_, err := h.cron.NewJob(
		gocron.DurationJob(h.cfg.Interval),
		gocron.NewTask(h.publishHealthCheck),
	)
	if err != nil {
		return fmt.Errorf("scheduling health check job: %w", err)
	}

	if h.cfg.Store != nil && h.cfg.Retention > 0 {
		_, err = h.cron.NewJob(
			gocron.DurationJob(pruneInterval),
			gocron.NewTask(h.pruneArchive),
		)
		if err != nil {
			return fmt.Errorf("scheduling archive prune job: %w", err)
		}
	}

	h.cron.Start()
	h.cfg.Logger.Info("heartbeat started",
		"interval", h.cfg.Interval, "retention", h.cfg.Retention)
	return nil
}

// Stop shuts down the gocron scheduler.
func (h *Heartbeat) Stop() error {
	return h.cron.Shutdown()
}

// publishHealthCheck emits a system.health_check event with process vitals.
func (h *Heartbeat) publishHealthCheck() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := h.cfg.Bus.Stats()
	evt := eventbus.NewSystemEvent(eventbus.TypeSystemHealthCheck, map[string]any{
		"uptime_seconds":   int64(time.Since(h.started).Seconds()),
		"goroutines":       runtime.NumGoroutine(),
		"heap_alloc_bytes": mem.HeapAlloc,
		"events_published": stats.Published,
		"handler_failures": stats.Failures,
	})
	if err := h.cfg.Bus.Publish(evt); err != nil {
		h.cfg.Logger.Warn("publishing health check", "error", err)
	}
}

// pruneArchive removes archived events older than the retention window.
func (h *Heartbeat) pruneArchive() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-h.cfg.Retention)
	n, err := h.cfg.Store.Prune(ctx, cutoff)
	if err != nil {
		h.cfg.Logger.Warn("pruning event archive", "error", err)
		return
	}
	if n > 0 {
		h.cfg.Logger.Info("pruned event archive", "removed", n, "cutoff", cutoff)

		evt := eventbus.NewSystemEvent(eventbus.TypeMemoryCleaned, map[string]any{
			"removed": n,
			"cutoff":  cutoff.Format(time.RFC3339),
		})
		if err := h.cfg.Bus.Publish(evt); err != nil {
			h.cfg.Logger.Warn("publishing prune event", "error", err)
		}
	}
}

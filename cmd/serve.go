package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/claudeflow/internal/api"
	"github.com/shaharia-lab/claudeflow/internal/archive"
	"github.com/shaharia-lab/claudeflow/internal/build"
	"github.com/shaharia-lab/claudeflow/internal/config"
	"github.com/shaharia-lab/claudeflow/internal/eventbus"
	"github.com/shaharia-lab/claudeflow/internal/heartbeat"
	"github.com/shaharia-lab/claudeflow/internal/logger"
	"github.com/shaharia-lab/claudeflow/internal/mcpclient"
	"github.com/shaharia-lab/claudeflow/internal/notification"
	"github.com/shaharia-lab/claudeflow/internal/server"
	"github.com/shaharia-lab/claudeflow/internal/service"
	"github.com/shaharia-lab/claudeflow/internal/storage"
	"github.com/shaharia-lab/claudeflow/internal/telemetry"
)

const drainTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the event bus and its HTTP API",
	Long:  "Start the event bus with the archive, heartbeat, notifications, MCP connections, and the HTTP API server.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (overrides PORT env var)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel())
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	tel, err := telemetry.New()
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	bus := eventbus.NewBus(
		eventbus.WithCapacity(cfg.HistoryCapacity),
		eventbus.WithLogger(log),
		eventbus.WithErrorHandler(tel.BusErrorHandler()),
	)
	if err := tel.ObserveBus(bus); err != nil {
		return err
	}

	db, err := storage.NewSQLiteDB(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening event archive: %w", err)
	}
	defer func() { _ = db.Close() }()

	eventStore := storage.NewSQLiteEventStore(db)
	notificationStore := storage.NewSQLiteNotificationStore(db)
	archive.NewRecorder(eventStore).Attach(bus)

	if err := setupNotifications(cfg, bus, notificationStore, log); err != nil {
		return err
	}

	mcpRegistry, err := config.LoadMCPRegistry(cfg.MCPsFile())
	if err != nil {
		return fmt.Errorf("loading MCP registry: %w", err)
	}
	mcp := mcpclient.NewClient(mcpRegistry, bus, build.Version, log)
	// Partial MCP connectivity is fine; failures are published as mcp.error.
	_ = mcp.ConnectAll(ctx)
	defer func() { _ = mcp.Close() }()

	hb, err := heartbeat.New(heartbeat.Config{
		Bus:       bus,
		Store:     eventStore,
		Logger:    log,
		Interval:  cfg.HeartbeatInterval,
		Retention: cfg.ArchiveRetention,
	})
	if err != nil {
		return err
	}
	if err := hb.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = hb.Stop() }()

	_ = bus.Publish(eventbus.NewSystemEvent(eventbus.TypeSystemStartup, map[string]any{
		"version": build.Version,
		"port":    cfg.Port,
	}))

	apiSrv := api.New(
		service.NewEventService(bus, eventStore),
		service.NewNotificationService(notificationStore),
		log,
	)
	srv := server.New(apiSrv, tel.Handler(), cfg.Port, log)

	fmt.Fprintf(os.Stderr, "Claude-Flow running on http://localhost:%d\n", cfg.Port)
	fmt.Fprintf(os.Stderr, "  GET  /api/events          → recent events\n")
	fmt.Fprintf(os.Stderr, "  POST /api/events          → publish an event\n")
	fmt.Fprintf(os.Stderr, "  GET  /api/events/stream   → SSE live stream\n")
	fmt.Fprintf(os.Stderr, "  GET  /api/events/stats    → bus and archive stats\n")
	fmt.Fprintf(os.Stderr, "  GET  /api/notifications   → notification delivery log\n")
	fmt.Fprintf(os.Stderr, "  GET  /metrics             → Prometheus metrics\n")
	fmt.Fprintf(os.Stderr, "  GET  /health              → health check\n")

	runErr := srv.Run(ctx)

	// Announce shutdown, then flush async subscribers before closing.
	_ = bus.Publish(eventbus.NewSystemEvent(eventbus.TypeSystemShutdown, nil))
	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer drainCancel()
	if err := bus.Drain(drainCtx); err != nil {
		log.Warn("draining event bus", "error", err)
	}
	bus.Close()
	_ = tel.Shutdown(context.Background())

	return runErr
}

// setupNotifications wires the SMTP notification handler onto the bus when
// notifications are enabled in flow.yaml.
func setupNotifications(cfg *config.AppConfig, bus *eventbus.Bus, store storage.NotificationStore, log *slog.Logger) error {
	settings, err := config.LoadFlowSettings(cfg.FlowFile())
	if err != nil {
		return fmt.Errorf("loading flow settings: %w", err)
	}
	if !settings.Notifications.Enabled {
		return nil
	}

	provider := notification.NewSMTPProvider(settings.Notifications.SMTP)
	handler := notification.NewHandler(settings.Notifications, provider, store, log)
	for _, eventType := range handler.EventTypes() {
		bus.Subscribe(eventType, handler.Handle, eventbus.Async())
	}
	log.Info("notifications enabled", "event_types", handler.EventTypes())
	return nil
}

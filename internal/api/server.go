// Package api implements the REST and SSE handlers for the event bus.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shaharia-lab/claudeflow/internal/service"
)

const errInvalidJSONBody = "invalid JSON body"

// Server holds all dependencies for the REST API handlers.
type Server struct {
	eventSvc        *service.EventService
	notificationSvc *service.NotificationService
	logger          *slog.Logger
}

// New creates a new API Server backed by the provided services.
func New(eventSvc *service.EventService, notificationSvc *service.NotificationService, logger *slog.Logger) *Server {
	return &Server{
		eventSvc:        eventSvc,
		notificationSvc: notificationSvc,
		logger:          logger,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	// Event bus
	r.Get("/events", s.handleListEvents)
	r.Post("/events", s.handlePublishEvent)
	r.Get("/events/stream", s.handleStreamEvents)
	r.Get("/events/stats", s.handleEventStats)

	// Notification delivery log
	r.Get("/notifications", s.handleListNotificationLog)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	b, _ := json.Marshal(data)
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(b))
	if flusher != nil {
		flusher.Flush()
	}
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shaharia-lab/claudeflow/internal/eventbus"
)

// streamBufferSize bounds how many events a slow SSE client can fall behind
// before newer events are dropped for that client.
const streamBufferSize = 64

// publishRequest is the body accepted by POST /events.
type publishRequest struct {
	Type     string            `json:"type"`
	Source   string            `json:"source,omitempty"`
	Payload  map[string]any    `json:"payload,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// handleListEvents returns recent events. By default it reads the in-memory
// history buffer; ?source=archive reads the persisted archive instead.
// Accepts optional ?type= and ?limit= query parameters.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	eventType := r.URL.Query().Get("type")
	limit := queryLimit(r, 100)

	if r.URL.Query().Get("source") == "archive" {
		events, err := s.eventSvc.Archived(r.Context(), eventType, limit)
		if err != nil {
			s.logger.Error("listing archived events", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list archived events")
			return
		}
		writeJSON(w, http.StatusOK, events)
		return
	}

	writeJSON(w, http.StatusOK, s.eventSvc.History(eventType, limit))
}

// handlePublishEvent publishes a caller-supplied event on the bus and returns
// the completed event.
func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	evt, err := s.eventSvc.Publish(req.Type, req.Source, req.Payload, req.Metadata)
	if err != nil {
		if errors.Is(err, eventbus.ErrMissingType) {
			writeError(w, http.StatusBadRequest, "event type is required")
			return
		}
		s.logger.Error("publishing event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to publish event")
		return
	}
	writeJSON(w, http.StatusCreated, evt)
}

// handleStreamEvents streams live events to the client as server-sent events
// until the client disconnects. An optional ?type= parameter filters by event
// type.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch := make(chan eventbus.Event, streamBufferSize)
	sub := s.eventSvc.Subscribe(r.URL.Query().Get("type"), func(evt eventbus.Event) error {
		select {
		case ch <- evt:
		default: // client too slow, drop
		}
		return nil
	})
	defer func() { _ = s.eventSvc.Unsubscribe(sub) }()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			sendSSEEvent(w, flusher, evt.Type, evt)
		}
	}
}

// handleEventStats returns bus counters and per-type archive totals.
func (s *Server) handleEventStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.eventSvc.Stats(r.Context())
	if err != nil {
		s.logger.Error("collecting event stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to collect event stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// queryLimit parses the ?limit= parameter, falling back to def.
func queryLimit(r *http.Request, def int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			return n
		}
	}
	return def
}

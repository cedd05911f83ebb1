package api_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/claudeflow/internal/api"
	"github.com/shaharia-lab/claudeflow/internal/eventbus"
	"github.com/shaharia-lab/claudeflow/internal/service"
	"github.com/shaharia-lab/claudeflow/internal/storage"
)

// testHarness bundles the real bus, stores, and router used by every test.
type testHarness struct {
	bus               *eventbus.Bus
	eventStore        storage.EventStore
	notificationStore storage.NotificationStore
	router            chi.Router
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := eventbus.NewBus()
	t.Cleanup(bus.Close)

	eventStore := storage.NewSQLiteEventStore(db)
	notificationStore := storage.NewSQLiteNotificationStore(db)

	srv := api.New(
		service.NewEventService(bus, eventStore),
		service.NewNotificationService(notificationStore),
		slog.Default(),
	)

	r := chi.NewRouter()
	srv.Mount(r)

	return &testHarness{
		bus:               bus,
		eventStore:        eventStore,
		notificationStore: notificationStore,
		router:            r,
	}
}

func (h *testHarness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// ---------- Events ----------

func TestListEventsFromHistory(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bus.Publish(eventbus.NewAgentEvent(eventbus.TypeAgentCreated, "a-1", nil)))
	require.NoError(t, h.bus.Publish(eventbus.NewSwarmEvent(eventbus.TypeSwarmFormed, nil)))

	w := h.do(httptest.NewRequest(http.MethodGet, "/events", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var events []eventbus.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, eventbus.TypeAgentCreated, events[0].Type)
	assert.Equal(t, eventbus.TypeSwarmFormed, events[1].Type)
}

func TestListEventsFilterAndLimit(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, h.bus.Publish(eventbus.NewSystemEvent(eventbus.TypeSystemHealthCheck, nil)))
	}
	require.NoError(t, h.bus.Publish(eventbus.NewAgentEvent(eventbus.TypeAgentStarted, "a-1", nil)))

	w := h.do(httptest.NewRequest(http.MethodGet, "/events?type=system.health_check&limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var events []eventbus.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Len(t, events, 2)
}

func TestListEventsFromArchive(t *testing.T) {
	h := newHarness(t)
	evt := eventbus.NewMCPEvent(eventbus.TypeMCPConnected, map[string]any{"server": "github"})
	require.NoError(t, h.eventStore.SaveEvent(context.Background(), evt))

	w := h.do(httptest.NewRequest(http.MethodGet, "/events?source=archive", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var events []eventbus.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, evt.ID, events[0].ID)
}

func TestPublishEvent(t *testing.T) {
	h := newHarness(t)

	var received []eventbus.Event
	h.bus.SubscribeAll(func(evt eventbus.Event) error {
		received = append(received, evt)
		return nil
	})

	body := `{"type":"agent.heartbeat","source":"agent:a-1","payload":{"load":0.4}}`
	w := h.do(httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code)

	var evt eventbus.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &evt))
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, eventbus.TypeAgentHeartbeat, evt.Type)

	require.Len(t, received, 1)
	assert.Equal(t, evt.ID, received[0].ID)
}

func TestPublishEventRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	w := h.do(httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"source":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventStats(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bus.Publish(eventbus.NewSystemEvent(eventbus.TypeSystemStartup, nil)))

	w := h.do(httptest.NewRequest(http.MethodGet, "/events/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var stats service.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, uint64(1), stats.Bus.Published)
}

func TestStreamEvents(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events/stream?type=claude.response", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.router.ServeHTTP(w, req)
	}()

	// Wait for the stream subscription to register, then publish.
	require.Eventually(t, func() bool {
		return h.bus.SubscriberCount(eventbus.TypeClaudeResponse) > 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.bus.Publish(eventbus.NewClaudeEvent(eventbus.TypeClaudeResponse, map[string]any{"text": "done"})))
	require.NoError(t, h.bus.Publish(eventbus.NewClaudeEvent(eventbus.TypeClaudeRequest, nil)))

	// Give the stream loop time to flush the buffered event before closing.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.Contains(t, w.Body.String(), "event: claude.response")

	assert.Contains(t, w.Body.String(), `"text":"done"`)
	assert.NotContains(t, w.Body.String(), "claude.request")
	assert.Equal(t, "text/event-stream", w.Result().Header.Get("Content-Type"))
}

// ---------- Notifications ----------

func TestListNotificationLog(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.notificationStore.LogNotification(context.Background(), storage.NotificationLogEntry{
		EventID:   "evt-1",
		EventType: eventbus.TypeAgentError,
		Provider:  "smtp",
		Subject:   "Claude-Flow Alert - Agent Reported an Error",
		Status:    "sent",
		CreatedAt: time.Now().UTC(),
	}))

	w := h.do(httptest.NewRequest(http.MethodGet, "/notifications", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var entries []storage.NotificationLogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "evt-1", entries[0].EventID)
}

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/events"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
}

func newTestServer(t *testing.T, bus *events.Bus) *httptest.Server {
	t.Helper()
	s := New(Config{
		Log:      zerolog.Nop(),
		Port:     0,
		DevMode:  true,
		Handlers: []RouteRegistrar{pingRoutes{}},
		Bus:      bus,
	})
	if s.stream != nil {
		s.stream.heartbeat = 50 * time.Millisecond
		s.ws.heartbeat = time.Hour
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "zakat-calculator", body["service"])
}

func TestModuleRoutesMountedUnderAPI(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(ts.URL + "/ping")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestEventRoutesAbsentWithoutBus(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/events/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventsStream_FiltersTypes(t *testing.T) {
	bus := events.NewBus()
	ts := newTestServer(t, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events/stream?types=holding_added", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan map[string]interface{}, 8)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var msg map[string]interface{}
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg) == nil {
				lines <- msg
			}
		}
		close(lines)
	}()

	first := <-lines
	assert.Equal(t, "connected", first["type"])
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	bus.Publish(events.Event{Type: events.PricesRefreshed, Module: "prices", Timestamp: time.Now()})
	bus.Publish(events.Event{
		Type:      events.HoldingAdded,
		Module:    "holdings",
		Timestamp: time.Now(),
		Data:      &events.HoldingData{Symbol: "AAPL", Shares: 3, Type: events.HoldingAdded},
	})

	for msg := range lines {
		if msg["type"] == "heartbeat" {
			continue
		}
		assert.Equal(t, "HOLDING_ADDED", msg["type"])
		assert.Equal(t, "holdings", msg["module"])
		data := msg["data"].(map[string]interface{})
		assert.Equal(t, "AAPL", data["symbol"])
		break
	}

	cancel()
	assert.Eventually(t, func() bool { return bus.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestEventsWebSocket(t *testing.T) {
	bus := events.NewBus()
	ts := newTestServer(t, bus)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var msg map[string]interface{}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "connected", msg["type"])

	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)
	bus.Publish(events.Event{
		Type:      events.StateChanged,
		Module:    "state",
		Timestamp: time.Now(),
		Data:      &events.StateChangedData{Reason: "holding_added", Holdings: 1},
	})

	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "STATE_CHANGED", msg["type"])
	assert.Equal(t, "holding_added", msg["data"].(map[string]interface{})["reason"])
}

func TestParseTypesFilter(t *testing.T) {
	assert.Nil(t, parseTypesFilter(" "))
	assert.True(t, parseTypesFilter("").matches(events.BackupCompleted))

	f := parseTypesFilter("state_changed, HOLDING_REMOVED,")
	assert.True(t, f.matches(events.StateChanged))
	assert.True(t, f.matches(events.HoldingRemoved))
	assert.False(t, f.matches(events.HoldingAdded))
}

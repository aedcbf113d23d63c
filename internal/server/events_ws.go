package server

import (
	"context"
	"net/http"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const wsWriteTimeout = 10 * time.Second

// EventsWebSocketHandler pushes bus events to websocket clients.
type EventsWebSocketHandler struct {
	eventBus  *events.Bus
	devMode   bool
	heartbeat time.Duration
	log       zerolog.Logger
}

// NewEventsWebSocketHandler creates a websocket events handler. In dev mode
// any origin is accepted.
func NewEventsWebSocketHandler(eventBus *events.Bus, devMode bool, log zerolog.Logger) *EventsWebSocketHandler {
	return &EventsWebSocketHandler{
		eventBus:  eventBus,
		devMode:   devMode,
		heartbeat: defaultHeartbeat,
		log:       log.With().Str("component", "events_ws").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws.
func (h *EventsWebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.devMode,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	allowed := parseTypesFilter(r.URL.Query().Get("types"))
	eventChan, unsubscribe := h.eventBus.Subscribe()
	defer unsubscribe()

	// Clients only listen; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	h.log.Info().Msg("Client connected to event websocket")
	if err := h.write(ctx, conn, map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event websocket")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event, ok := <-eventChan:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "event bus closed")
				return
			}
			if !allowed.matches(event.Type) {
				continue
			}
			if err := h.write(ctx, conn, eventPayload(event)); err != nil {
				return
			}

		case <-heartbeat.C:
			ctxPing, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(ctxPing)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Websocket ping failed")
				return
			}
		}
	}
}

func (h *EventsWebSocketHandler) write(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, conn, v); err != nil {
		h.log.Debug().Err(err).Msg("Websocket write failed")
		return err
	}
	return nil
}

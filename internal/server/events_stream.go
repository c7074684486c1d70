package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/questrade-sentinel/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// eventStreamBuffer bounds how many unconsumed events a slow client can
// fall behind by before the oldest is dropped in favor of the newest.
const eventStreamBuffer = 32

// EventsStreamHandler upgrades GET /api/events to a WebSocket and streams
// every internal/events.Bus event as a JSON frame. Pure operability
// sugar: nothing in C1-C9 depends on a client being connected.
type EventsStreamHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsStreamHandler builds a stream handler bound to bus.
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{bus: bus, log: log.With().Str("component", "events_stream").Logger()}
}

// ServeHTTP accepts the WebSocket upgrade, subscribes to every event type
// for the connection's lifetime, and forwards each event as a JSON frame
// until the client disconnects or the request context is cancelled.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	eventChan := make(chan *events.Event, eventStreamBuffer)

	var subs []events.Subscription
	for _, eventType := range events.AllEventTypes {
		sub := h.bus.Subscribe(eventType, func(event *events.Event) {
			h.enqueueEvent(eventChan, event)
		})
		subs = append(subs, sub)
	}
	defer func() {
		for _, sub := range subs {
			h.bus.Unsubscribe(sub)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case event := <-eventChan:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// enqueueEvent performs a non-blocking send; when the channel is full it
// drops the oldest buffered event rather than the new one, so a client
// that falls behind still sees the most recent state once it catches up.
func (h *EventsStreamHandler) enqueueEvent(ch chan *events.Event, event *events.Event) {
	select {
	case ch <- event:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
		default:
		}
	}
}

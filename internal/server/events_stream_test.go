package server

import (
	"testing"

	"github.com/aristath/questrade-sentinel/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestEventsStreamHandler_EnqueueEventDropsOldest(t *testing.T) {
	handler := &EventsStreamHandler{log: zerolog.Nop()}

	eventChan := make(chan *events.Event, 2)

	event1 := &events.Event{Type: events.PricesSynced}
	event2 := &events.Event{Type: events.ActivitiesSynced}
	event3 := &events.Event{Type: events.RebalanceNeeded}

	handler.enqueueEvent(eventChan, event1)
	handler.enqueueEvent(eventChan, event2)
	handler.enqueueEvent(eventChan, event3)

	assert.Equal(t, 2, len(eventChan))

	first := <-eventChan
	second := <-eventChan

	assert.Equal(t, events.ActivitiesSynced, first.Type)
	assert.Equal(t, events.RebalanceNeeded, second.Type)
}

func TestEventsStreamHandler_EnqueueEventDoesNotBlockOnEmptyRoom(t *testing.T) {
	handler := &EventsStreamHandler{log: zerolog.Nop()}
	eventChan := make(chan *events.Event, 4)

	handler.enqueueEvent(eventChan, &events.Event{Type: events.TokenRefreshed})

	assert.Equal(t, 1, len(eventChan))
}

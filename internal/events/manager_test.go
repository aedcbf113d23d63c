package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_EmitPublishesToSubscribers(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	m := NewManager(bus, zerolog.Nop())
	m.Emit("holdings", &HoldingData{Symbol: "AAPL", Shares: 10, Type: HoldingAdded})

	select {
	case e := <-ch:
		assert.Equal(t, HoldingAdded, e.Type)
		assert.Equal(t, "holdings", e.Module)
		data, ok := e.Data.(*HoldingData)
		require.True(t, ok)
		assert.Equal(t, "AAPL", data.Symbol)
	default:
		t.Fatal("expected an event")
	}
}

func TestManager_EmitLogsEvent(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	m := NewManager(nil, log)
	m.Emit("prices", &PricesRefreshedData{Currency: "EUR", Updated: 2})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, string(PricesRefreshed), line["event_type"])
	assert.Equal(t, "prices", line["module"])
}

func TestManager_EmitError(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	m := NewManager(bus, zerolog.Nop())
	m.EmitError("backup", errors.New("boom"), map[string]interface{}{"bucket": "b"})
	m.EmitError("backup", nil, nil)

	e := <-ch
	assert.Equal(t, ErrorOccurred, e.Type)
	assert.Equal(t, "boom", e.Data.(*ErrorData).Error)
	assert.Len(t, ch, 0)
}

func TestManager_NilIsSafe(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.Emit("x", &HawlStatusData{HawlMet: true})
	})
	assert.Nil(t, m.Bus())
}

func TestPassiveUpdatedData_EventType(t *testing.T) {
	assert.Equal(t, PassiveUpdated, (&PassiveUpdatedData{Accepted: true}).EventType())
	assert.Equal(t, PassiveRejected, (&PassiveUpdatedData{Accepted: false}).EventType())
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	_, unsubscribe := bus.Subscribe()
	assert.Equal(t, 1, bus.SubscriberCount())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, bus.SubscriberCount())
	assert.Equal(t, 0, bus.Publish(Event{Type: StateChanged}))
}

func TestBus_DropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus()
	_, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer; i++ {
		assert.Equal(t, 1, bus.Publish(Event{Type: StateChanged}))
	}
	assert.Equal(t, 0, bus.Publish(Event{Type: StateChanged}))
}

package events

import (
	"encoding/json"
	"testing"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventReservationCreated, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	payload := ReservationEventPayload{ReservationID: 7, LabID: 1, Status: "pending"}
	if err := bus.PublishJSON(EventReservationCreated, payload); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	if received.Type != EventReservationCreated {
		t.Errorf("expected type %s, got %s", EventReservationCreated, received.Type)
	}

	var decoded ReservationEventPayload
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if decoded.ReservationID != 7 {
		t.Errorf("expected reservation_id 7, got %d", decoded.ReservationID)
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: "event"})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Publishing without subscribers must not panic
	bus.Publish(&Event{Type: "orphan"})

	if err := bus.PublishJSON("orphan", map[string]int{"x": 1}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}
}

func TestEventBusNilReceiver(t *testing.T) {
	var bus *EventBus
	if err := bus.PublishJSON("event", nil); err != nil {
		t.Fatalf("nil bus PublishJSON should be a no-op, got %v", err)
	}
}

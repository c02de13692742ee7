package bus

import (
	"sync"
	"testing"
	"time"
)

func TestEventBusOnEmit(t *testing.T) {
	eb := NewEventBus(testLogger())

	var got []Event
	eb.On(EventDeliveryAck, func(ev Event) {
		got = append(got, ev)
	})

	eb.Emit(Event{Type: EventDeliveryAck, Source: "telegram", Payload: map[string]any{"message_id": "m1"}})
	eb.Emit(Event{Type: EventDeliveryNack, Source: "telegram"})

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Payload["message_id"] != "m1" {
		t.Errorf("payload = %v", got[0].Payload)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("emit should stamp the event")
	}
}

func TestEventBusWildcard(t *testing.T) {
	eb := NewEventBus(testLogger())

	var count int
	eb.On("*", func(ev Event) { count++ })

	eb.Emit(Event{Type: EventDeliveryAck})
	eb.Emit(Event{Type: EventStatus})
	eb.Emit(Event{Type: "custom.event"})

	if count != 3 {
		t.Errorf("wildcard handler saw %d events, want 3", count)
	}
}

func TestEventBusOff(t *testing.T) {
	eb := NewEventBus(testLogger())

	var count int
	id := eb.On(EventStatus, func(ev Event) { count++ })

	eb.Emit(Event{Type: EventStatus})
	eb.Off(EventStatus, id)
	eb.Emit(Event{Type: EventStatus})

	if count != 1 {
		t.Errorf("handler saw %d events after Off, want 1", count)
	}
}

func TestEventBusHandlerPanicContained(t *testing.T) {
	eb := NewEventBus(testLogger())

	var reached bool
	eb.On(EventStatus, func(ev Event) { panic("boom") })
	eb.On(EventStatus, func(ev Event) { reached = true })

	eb.Emit(Event{Type: EventStatus})

	if !reached {
		t.Error("a panicking handler must not stop later handlers")
	}
}

func TestEventBusEmitAsync(t *testing.T) {
	eb := NewEventBus(testLogger())

	var mu sync.Mutex
	var count int
	done := make(chan struct{})
	eb.On(EventStatus, func(ev Event) {
		mu.Lock()
		count++
		mu.Unlock()
		close(done)
	})

	eb.EmitAsync(Event{Type: EventStatus})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async event never delivered")
	}
}

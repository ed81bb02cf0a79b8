package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	a := make(chan Event, 1)
	b := make(chan Event, 1)
	bus.Subscribe(func(e Event) { a <- e })
	bus.Subscribe(func(e Event) { b <- e })

	bus.Publish(TaskToggled, map[string]any{"id": "t1"})

	for _, ch := range []chan Event{a, b} {
		select {
		case e := <-ch:
			assert.Equal(t, TaskToggled, e.Type)
			assert.Equal(t, "t1", e.Data["id"])
			assert.False(t, e.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	got := make(chan Event, 4)
	unsubscribe := bus.Subscribe(func(e Event) { got <- e })
	unsubscribe()
	bus.Publish(TasksCleared, nil)

	select {
	case e := <-got:
		t.Fatalf("unexpected event after unsubscribe: %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusSurvivesPanickingSubscriber(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	got := make(chan Event, 2)
	bus.Subscribe(func(e Event) {
		if e.Type == SyncStarted {
			panic("boom")
		}
		got <- e
	})

	bus.Publish(SyncStarted, nil)
	bus.Publish(SyncFinished, nil)

	select {
	case e := <-got:
		require.Equal(t, SyncFinished, e.Type)
	case <-time.After(time.Second):
		t.Fatal("subscriber stopped after panic")
	}
}

func TestBusSubscribeAfterClose(t *testing.T) {
	bus := NewBus(1)
	bus.Close()
	unsubscribe := bus.Subscribe(func(Event) {})
	unsubscribe()
	bus.Publish(TasksMerged, nil)
}

package events

import (
	"strconv"
	"testing"
	"time"
)

func TestEmitDispatchesInRegistrationOrder(t *testing.T) {
	b := NewBus(time.Millisecond)
	var order []int
	b.Subscribe(func(Event) { order = append(order, 1) })
	b.Subscribe(func(Event) { order = append(order, 2) })

	b.Emit(Event{Type: TypeSet, Key: "k1"})
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected [1 2], got %v", order)
	}
}

func TestEmitThrottlesWithinWindow(t *testing.T) {
	b := NewBus(50 * time.Millisecond)
	var count int
	b.Subscribe(func(Event) { count++ })

	b.Emit(Event{Type: TypeSet, Key: "k1"})
	b.Emit(Event{Type: TypeSet, Key: "k1"})
	b.Emit(Event{Type: TypeSet, Key: "k1"})

	if count != 1 {
		t.Fatalf("expected throttled to 1 dispatch, got %d", count)
	}
}

func TestEmitAllowsAfterWindowElapses(t *testing.T) {
	b := NewBus(5 * time.Millisecond)
	var count int
	b.Subscribe(func(Event) { count++ })

	b.Emit(Event{Type: TypeSet, Key: "k1"})
	time.Sleep(10 * time.Millisecond)
	b.Emit(Event{Type: TypeSet, Key: "k1"})

	if count != 2 {
		t.Fatalf("expected 2 dispatches after window elapsed, got %d", count)
	}
}

func TestEmitTreatsDifferentTypesAndKeysIndependently(t *testing.T) {
	b := NewBus(time.Second)
	var count int
	b.Subscribe(func(Event) { count++ })

	b.Emit(Event{Type: TypeSet, Key: "k1"})
	b.Emit(Event{Type: TypeGet, Key: "k1"})
	b.Emit(Event{Type: TypeSet, Key: "k2"})

	if count != 3 {
		t.Fatalf("expected 3 independent dispatches, got %d", count)
	}
}

func TestEmitAssignsAUniqueIDPerDispatch(t *testing.T) {
	b := NewBus(time.Nanosecond)
	var seen []Event
	b.Subscribe(func(ev Event) { seen = append(seen, ev) })

	b.Emit(Event{Type: TypeSet, Key: "k1"})
	b.Emit(Event{Type: TypeSet, Key: "k1"})

	if len(seen) != 2 {
		t.Fatalf("expected 2 dispatches, got %d", len(seen))
	}
	if seen[0].ID == seen[1].ID {
		t.Fatalf("expected distinct event IDs, got %v twice", seen[0].ID)
	}
}

func TestEmitRecoversFromListenerPanic(t *testing.T) {
	b := NewBus(time.Millisecond)
	var secondCalled bool
	b.Subscribe(func(Event) { panic("boom") })
	b.Subscribe(func(Event) { secondCalled = true })

	b.Emit(Event{Type: TypeSet, Key: "k1"})
	if !secondCalled {
		t.Fatal("expected second listener to run despite first panicking")
	}
}

func TestUnsubscribeStopsFurtherDispatch(t *testing.T) {
	b := NewBus(time.Nanosecond)
	var count int
	id := b.Subscribe(func(Event) { count++ })

	b.Emit(Event{Type: TypeSet, Key: "k1"})
	b.Unsubscribe(id)
	b.Emit(Event{Type: TypeSet, Key: "k2"})

	if count != 1 {
		t.Fatalf("expected 1 dispatch before unsubscribe, got %d", count)
	}
}

func TestUnsubscribeLeavesOtherListenersIntact(t *testing.T) {
	b := NewBus(time.Nanosecond)
	var first, second int
	id := b.Subscribe(func(Event) { first++ })
	b.Subscribe(func(Event) { second++ })

	b.Unsubscribe(id)
	b.Emit(Event{Type: TypeSet, Key: "k1"})

	if first != 0 || second != 1 {
		t.Fatalf("expected only the remaining listener to fire, got first=%d second=%d", first, second)
	}
}

func TestThrottleRingBufferBoundsMemory(t *testing.T) {
	b := NewBus(time.Nanosecond)
	for i := 0; i < defaultThrottleCapacity+100; i++ {
		b.Emit(Event{Type: TypeSet, Key: "k" + strconv.Itoa(i)})
	}
	b.mu.Lock()
	n := len(b.order)
	b.mu.Unlock()
	if n > defaultThrottleCapacity {
		t.Fatalf("expected throttle state bounded by %d, got %d", defaultThrottleCapacity, n)
	}
}

package mapshine

import "testing"

func TestHostEventsOnEmit(t *testing.T) {
	bus := NewHostEvents()

	var got []any
	bus.On(HookUpdateScene, func(data any) { got = append(got, data) })

	bus.Emit(HookUpdateScene, "payload")
	bus.Emit(HookSightRefresh, nil) // different event, no delivery

	if len(got) != 1 || got[0] != "payload" {
		t.Fatalf("got = %v, want [payload]", got)
	}
}

func TestHostEventsOff(t *testing.T) {
	bus := NewHostEvents()

	calls := 0
	off := bus.On(HookCreateTile, func(any) { calls++ })

	bus.Emit(HookCreateTile, nil)
	off()
	bus.Emit(HookCreateTile, nil)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if n := bus.HandlerCount(HookCreateTile); n != 0 {
		t.Errorf("HandlerCount = %d, want 0", n)
	}
}

func TestHostEventsOffIsIdempotent(t *testing.T) {
	bus := NewHostEvents()
	off := bus.On(HookDeleteWall, func(any) {})
	bus.On(HookDeleteWall, func(any) {})

	off()
	off() // second call must not remove the other handler

	if n := bus.HandlerCount(HookDeleteWall); n != 1 {
		t.Errorf("HandlerCount = %d, want 1", n)
	}
}

func TestHostEventsSubscriptionOrder(t *testing.T) {
	bus := NewHostEvents()

	var order []int
	bus.On(HookMasksRendered, func(any) { order = append(order, 1) })
	bus.On(HookMasksRendered, func(any) { order = append(order, 2) })
	bus.On(HookMasksRendered, func(any) { order = append(order, 3) })

	bus.Emit(HookMasksRendered, nil)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestHostEventsPanickingHandlerIsolated(t *testing.T) {
	bus := NewHostEvents()

	ran := false
	bus.On(HookLightingRefresh, func(any) { panic("boom") })
	bus.On(HookLightingRefresh, func(any) { ran = true })

	bus.Emit(HookLightingRefresh, nil)

	if !ran {
		t.Error("handler after panicking handler did not run")
	}
}

func TestHostEventsOffDuringEmit(t *testing.T) {
	bus := NewHostEvents()

	var offFirst func()
	second := 0
	offFirst = bus.On(HookControlToken, func(any) { offFirst() })
	bus.On(HookControlToken, func(any) { second++ })

	bus.Emit(HookControlToken, nil)
	bus.Emit(HookControlToken, nil)

	if second != 2 {
		t.Errorf("second handler ran %d times, want 2", second)
	}
	if n := bus.HandlerCount(HookControlToken); n != 1 {
		t.Errorf("HandlerCount = %d, want 1", n)
	}
}

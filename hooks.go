package mapshine

import (
	"fmt"
	"os"
)

// Hook names emitted by the host event bus. The payload type is listed per
// event; handlers receive it as the data argument.
const (
	HookCanvasReady  = "canvasReady"  // nil
	HookUpdateScene  = "updateScene"  // SceneDoc
	HookCreateTile   = "createTile"   // TileDoc
	HookUpdateTile   = "updateTile"   // TileDoc
	HookDeleteTile   = "deleteTile"   // tile id string
	HookCreateWall   = "createWall"   // WallDoc
	HookUpdateWall   = "updateWall"   // WallDoc
	HookDeleteWall   = "deleteWall"   // wall id string
	HookControlToken = "controlToken" // viewer id string
	HookUpdateToken  = "updateToken"  // viewer id string

	HookSightRefresh    = "sightRefresh"    // nil
	HookLightingRefresh = "lightingRefresh" // nil
	HookMasksRendered   = "masksRendered"   // nil

	HookCreateMeasuredTemplate = "createMeasuredTemplate" // template id string
	HookUpdateMeasuredTemplate = "updateMeasuredTemplate" // template id string
	HookDeleteMeasuredTemplate = "deleteMeasuredTemplate" // template id string
)

// HookFn handles a host event.
type HookFn func(data any)

type hookEntry struct {
	id int
	fn HookFn
}

// HostEvents is the named event bus connecting the host to the core.
// Subscriptions return an off function; every subscriber removes itself on
// dispose so a torn-down composer leaves no handlers behind. Confined to
// the frame loop like the rest of the core.
type HostEvents struct {
	handlers map[string][]hookEntry
	nextID   int
}

// NewHostEvents returns an empty bus.
func NewHostEvents() *HostEvents {
	return &HostEvents{handlers: make(map[string][]hookEntry)}
}

// On subscribes fn to the named event and returns the function that
// removes the subscription.
func (e *HostEvents) On(name string, fn HookFn) (off func()) {
	e.nextID++
	id := e.nextID
	e.handlers[name] = append(e.handlers[name], hookEntry{id: id, fn: fn})
	return func() {
		entries := e.handlers[name]
		for i, entry := range entries {
			if entry.id == id {
				e.handlers[name] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Emit invokes every handler subscribed to the named event, in
// subscription order. A panicking handler is logged and skipped; the
// remaining handlers still run.
func (e *HostEvents) Emit(name string, data any) {
	for _, entry := range e.handlers[name] {
		e.safeCall(name, entry.fn, data)
	}
}

func (e *HostEvents) safeCall(name string, fn HookFn, data any) {
	defer func() {
		if r := recover(); r != nil {
			_, _ = fmt.Fprintf(os.Stderr, "[mapshine] hook %s: handler panicked: %v\n", name, r)
		}
	}()
	fn(data)
}

// HandlerCount returns the number of handlers subscribed to the named
// event. Used by dispose paths to verify symmetric teardown.
func (e *HostEvents) HandlerCount(name string) int {
	return len(e.handlers[name])
}

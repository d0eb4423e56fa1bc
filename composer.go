package mapshine

import (
	"fmt"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// GlobalFloor is the floor index passed to surface effects drawing in the
// global pass, after per-floor visibility has been restored.
const GlobalFloor = -1

// FrameContext carries the per-frame values handed to every effect phase.
// Env is an immutable snapshot; effects never reach into shared mutable
// state during a frame.
type FrameContext struct {
	Time TimeInfo
	Env  EnvSnapshot
}

// Effect is the base contract every registered effect implements. Identity
// and capabilities come from the descriptor; per-frame work happens in
// Update plus whichever phase interfaces the effect also implements.
type Effect interface {
	Descriptor() EffectDescriptor
	// Initialize is called once at registration, after the effect is stored.
	Initialize(ec *EffectComposer) error
	// Update advances CPU state. It runs for every active effect each frame
	// before any rendering.
	Update(ctx *FrameContext) error
	// Resize is called when the drawing buffer changes; effects whose
	// targets depend on screen size recreate them here.
	Resize(w, h int)
	Dispose()
}

// PrePassEffect is implemented by surface and environmental effects that
// render off-screen targets. PrePass runs right after the effect's Update,
// in resolved order; it never draws to the main frame.
type PrePassEffect interface {
	PrePass(ctx *FrameContext) error
}

// SurfaceDrawer is implemented by surface effects that overlay the floor
// composite during the main pass. floor is the band index, or GlobalFloor
// when the effect runs in the global pass.
type SurfaceDrawer interface {
	DrawSurface(ctx *FrameContext, dst *ebiten.Image, floor int) error
}

// PostEffect is implemented by post effects consuming the ping-pong chain.
// Apply samples read and renders to write, covering write fully, and
// returns true; returning false leaves the chain untouched (pass-through)
// and suppresses the swap.
type PostEffect interface {
	Apply(ctx *FrameContext, read, write *ebiten.Image) (bool, error)
}

// Deactivatable is implemented by effects that hold frame-spanning state
// (pools, envelopes, values pushed into the environment) that must be
// cleared the moment the effect is switched off rather than on dispose.
type Deactivatable interface {
	Deactivate()
}

// effectSlot is the composer's mutable state for one registered effect.
type effectSlot struct {
	effect   Effect
	desc     EffectDescriptor
	priority int
	seq      int
	enabled  bool
	errState error
	notified bool
}

// active reports whether the effect participates in the current frame.
func (s *effectSlot) active() bool {
	return s.enabled && s.errState == nil
}

// FrameStats summarizes the last rendered frame for the debug HUD.
type FrameStats struct {
	Frame         uint64
	PrePasses     int
	SurfaceDraws  int
	PostPasses    int
	FailedEffects int
	PrePassSec    float64
	MainPassSec   float64
	PostSec       float64
}

// EffectComposer owns the registered effects, resolves their per-frame
// order, and drives the three-phase frame: off-screen pre-passes, the
// per-floor main pass, and the full-screen post chain.
type EffectComposer struct {
	scene   *SceneComposer
	host    Host
	env     *Environment
	weather *WeatherAdapter

	slots      map[string]*effectSlot
	resolved   []*effectSlot
	orderDirty bool
	nextSeq    int

	shared map[string]*ebiten.Image
	pool   renderTargetPool

	post             *PingPong
	screenW, screenH int

	frame uint64
	stats FrameStats
}

// NewEffectComposer creates a composer over the given scene composer and
// host. The post chain is created on the first size-known frame.
func NewEffectComposer(scene *SceneComposer, host Host) *EffectComposer {
	return &EffectComposer{
		scene:   scene,
		host:    host,
		env:     NewEnvironment(),
		weather: NewWeatherAdapter(host),
		slots:   make(map[string]*effectSlot),
		shared:  make(map[string]*ebiten.Image),
	}
}

// Scene returns the scene composer.
func (ec *EffectComposer) Scene() *SceneComposer { return ec.scene }

// Host returns the host surface.
func (ec *EffectComposer) Host() Host { return ec.host }

// Env returns the environment bag. Only designated writers (the weather
// adapter, the lightning flash envelope) mutate it.
func (ec *EffectComposer) Env() *Environment { return ec.env }

// Stats returns the statistics of the last rendered frame.
func (ec *EffectComposer) Stats() FrameStats { return ec.stats }

// ScreenSize returns the drawing-buffer size of the current frame, or
// (0, 0) before the first sized frame. Effects with screen-resolution
// targets size them from here during PrePass or Resize.
func (ec *EffectComposer) ScreenSize() (int, int) { return ec.screenW, ec.screenH }

// Register stores the effect, invalidates the resolved order, and calls its
// Initialize. Registering an id twice fails with ErrDuplicateEffect. An
// Initialize failure leaves the effect registered but in error state.
func (ec *EffectComposer) Register(e Effect) error {
	desc := e.Descriptor()
	if desc.ID == "" {
		return fmt.Errorf("mapshine: effect with empty id")
	}
	if _, ok := ec.slots[desc.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEffect, desc.ID)
	}

	slot := &effectSlot{
		effect:   e,
		desc:     desc,
		priority: desc.DefaultPriority,
		seq:      ec.nextSeq,
		enabled:  true,
	}
	ec.nextSeq++
	ec.slots[desc.ID] = slot
	ec.orderDirty = true

	ec.guard(slot, "initialize", func() error { return e.Initialize(ec) })
	return nil
}

// Unregister disposes the effect and removes it. Unknown ids are ignored.
func (ec *EffectComposer) Unregister(id string) {
	slot, ok := ec.slots[id]
	if !ok {
		return
	}
	ec.guard(slot, "dispose", func() error { slot.effect.Dispose(); return nil })
	delete(ec.slots, id)
	ec.orderDirty = true
}

// EffectByID returns the registered effect, or nil.
func (ec *EffectComposer) EffectByID(id string) Effect {
	if slot, ok := ec.slots[id]; ok {
		return slot.effect
	}
	return nil
}

// SetEnabled toggles an effect. Switching off a Deactivatable effect
// clears its in-flight state immediately. Returns false for unknown ids.
func (ec *EffectComposer) SetEnabled(id string, enabled bool) bool {
	slot, ok := ec.slots[id]
	if !ok {
		return false
	}
	if slot.enabled && !enabled {
		if d, ok := slot.effect.(Deactivatable); ok {
			d.Deactivate()
		}
	}
	slot.enabled = enabled
	return true
}

// SetPriority reorders an effect within its bucket. Returns false for
// unknown ids.
func (ec *EffectComposer) SetPriority(id string, priority int) bool {
	slot, ok := ec.slots[id]
	if !ok {
		return false
	}
	if slot.priority != priority {
		slot.priority = priority
		ec.orderDirty = true
	}
	return true
}

// RecoverEffect clears an effect's error state so it runs again next frame.
// Returns false for unknown ids.
func (ec *EffectComposer) RecoverEffect(id string) bool {
	slot, ok := ec.slots[id]
	if !ok {
		return false
	}
	slot.errState = nil
	slot.notified = false
	return true
}

// EffectError returns the stored error state for id, or nil.
func (ec *EffectComposer) EffectError(id string) error {
	if slot, ok := ec.slots[id]; ok {
		return slot.errState
	}
	return nil
}

// Capabilities lists every registered effect with its live state, in
// resolved order.
func (ec *EffectComposer) Capabilities() []Capability {
	order := ec.resolveOrder()
	caps := make([]Capability, 0, len(order))
	for _, slot := range order {
		caps = append(caps, Capability{
			EffectDescriptor: slot.desc,
			Priority:         slot.priority,
			Enabled:          slot.enabled,
			Failed:           slot.errState != nil,
		})
	}
	return caps
}

// SetSharedTexture publishes a cross-effect texture under one of the
// well-known identifiers. Publishing nil removes it.
func (ec *EffectComposer) SetSharedTexture(name string, tex *ebiten.Image) {
	if tex == nil {
		delete(ec.shared, name)
		return
	}
	ec.shared[name] = tex
}

// SharedTexture returns the texture published under name, or nil. Whether
// the value is current-frame or previous-frame depends on bucket order and
// priority between producer and consumer.
func (ec *EffectComposer) SharedTexture(name string) *ebiten.Image {
	return ec.shared[name]
}

// AcquireScratch returns a cleared pooled offscreen of exactly (w, h).
// Release it the same frame.
func (ec *EffectComposer) AcquireScratch(w, h int) *ebiten.Image {
	return ec.pool.Acquire(w, h)
}

// ReleaseScratch returns a pooled offscreen for reuse.
func (ec *EffectComposer) ReleaseScratch(img *ebiten.Image) {
	ec.pool.Release(img)
}

// Resize recreates the post chain at the new drawing-buffer size and
// forwards to every effect.
func (ec *EffectComposer) Resize(w, h int) {
	if w < 1 || h < 1 {
		return
	}
	if w == ec.screenW && h == ec.screenH {
		return
	}
	ec.screenW, ec.screenH = w, h
	if ec.post != nil {
		ec.post.Resize(w, h)
	}
	for _, slot := range ec.resolveOrder() {
		s := slot
		ec.guard(s, "resize", func() error { s.effect.Resize(w, h); return nil })
	}
}

// RenderFrame runs one frame: weather sync, clock advance, CPU updates,
// off-screen pre-passes, the per-floor main pass, the post chain, and the
// final present into screen. dt is the wall-clock frame delta in seconds.
func (ec *EffectComposer) RenderFrame(screen *ebiten.Image, dt float64) {
	b := screen.Bounds()
	w, h := b.Dx(), b.Dy()
	if w != ec.screenW || h != ec.screenH {
		ec.Resize(w, h)
	}
	if ec.post == nil {
		ec.post = NewPingPong(w, h)
	}

	ec.weather.Sync(ec.env)
	ec.env.advance(dt)
	snap := ec.env.Snapshot()
	ctx := &FrameContext{
		Time: TimeInfo{ElapsedSec: snap.ElapsedSec, DeltaSec: dt, Frame: ec.frame},
		Env:  snap,
	}
	ec.frame++

	ec.scene.BeginFrame(w, h, dt)

	order := ec.resolveOrder()
	stats := FrameStats{Frame: ctx.Time.Frame}

	// Phase 1: update every active effect, then run the off-screen pass for
	// surface and environmental effects, interleaved in resolved order.
	start := time.Now()
	for _, slot := range order {
		if !slot.active() {
			continue
		}
		s := slot
		ec.guard(s, "update", func() error { return s.effect.Update(ctx) })
		if !s.active() || s.desc.Bucket == LayerPost {
			continue
		}
		if pp, ok := s.effect.(PrePassEffect); ok {
			ec.guard(s, "prepass", func() error { return pp.PrePass(ctx) })
			stats.PrePasses++
		}
	}
	stats.PrePassSec = time.Since(start).Seconds()

	// Phase 2: per-floor main pass into the write buffer, then the global
	// surface pass with visibility restored.
	start = time.Now()
	frameRT := ec.post.Write()
	frameRT.Clear()

	floors := ec.scene.Floors()
	floors.BeginPass()
	for i := 0; i < floors.BandCount(); i++ {
		floors.ApplyBand(i)
		ec.scene.DrawFloor(frameRT.Image(), i)
		for _, slot := range order {
			if !slot.active() || slot.desc.Bucket != LayerSurface || slot.desc.FloorScope != FloorScopePerFloor {
				continue
			}
			sd, ok := slot.effect.(SurfaceDrawer)
			if !ok {
				continue
			}
			s, floor := slot, i
			ec.guard(s, "surface", func() error { return sd.DrawSurface(ctx, frameRT.Image(), floor) })
			stats.SurfaceDraws++
		}
	}
	floors.EndPass()

	for _, slot := range order {
		if !slot.active() || slot.desc.Bucket != LayerSurface || slot.desc.FloorScope != FloorScopeGlobal {
			continue
		}
		sd, ok := slot.effect.(SurfaceDrawer)
		if !ok {
			continue
		}
		s := slot
		ec.guard(s, "surface", func() error { return sd.DrawSurface(ctx, frameRT.Image(), GlobalFloor) })
		stats.SurfaceDraws++
	}
	stats.MainPassSec = time.Since(start).Seconds()

	// Phase 3: post chain. The freshly composited frame becomes the read
	// buffer; each post effect that writes triggers a swap.
	start = time.Now()
	ec.post.Swap()
	for _, slot := range order {
		if !slot.active() || slot.desc.Bucket != LayerPost {
			continue
		}
		pe, ok := slot.effect.(PostEffect)
		if !ok {
			continue
		}
		s := slot
		wrote := false
		ec.guard(s, "post", func() error {
			var err error
			wrote, err = pe.Apply(ctx, ec.post.Read().Image(), ec.post.Write().Image())
			return err
		})
		if wrote {
			ec.post.Swap()
			stats.PostPasses++
		}
	}
	stats.PostSec = time.Since(start).Seconds()

	final := ec.post.Read().Image()
	fb := final.Bounds()
	var op ebiten.DrawImageOptions
	op.Blend = ebiten.BlendCopy
	if fb.Dx() != w || fb.Dy() != h {
		op.GeoM.Scale(float64(w)/float64(fb.Dx()), float64(h)/float64(fb.Dy()))
		op.Filter = ebiten.FilterLinear
	}
	screen.DrawImage(final, &op)

	for _, slot := range order {
		if slot.errState != nil {
			stats.FailedEffects++
		}
	}
	ec.stats = stats
}

// Dispose unregisters every effect, drains the scratch pool, and releases
// the post chain.
func (ec *EffectComposer) Dispose() {
	for id := range ec.slots {
		ec.Unregister(id)
	}
	ec.pool.Drain()
	if ec.post != nil {
		ec.post.Dispose()
		ec.post = nil
	}
	for name := range ec.shared {
		delete(ec.shared, name)
	}
}

// resolveOrder returns the effect slots sorted by bucket, then priority,
// then registration order. The order is cached until registration or a
// priority change invalidates it.
func (ec *EffectComposer) resolveOrder() []*effectSlot {
	if !ec.orderDirty {
		return ec.resolved
	}

	nc := len(ec.slots)
	if cap(ec.resolved) < nc {
		ec.resolved = make([]*effectSlot, 0, nc)
	}
	ec.resolved = ec.resolved[:0]
	for _, s := range ec.slots {
		ec.resolved = append(ec.resolved, s)
	}

	// Stable insertion sort; the seq tiebreaker makes the result
	// deterministic regardless of map iteration order.
	for i := 1; i < nc; i++ {
		key := ec.resolved[i]
		j := i - 1
		for j >= 0 && slotAfter(ec.resolved[j], key) {
			ec.resolved[j+1] = ec.resolved[j]
			j--
		}
		ec.resolved[j+1] = key
	}

	ec.orderDirty = false
	return ec.resolved
}

// slotAfter reports whether a must come after b in resolved order.
func slotAfter(a, b *effectSlot) bool {
	if a.desc.Bucket != b.desc.Bucket {
		return a.desc.Bucket > b.desc.Bucket
	}
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.seq > b.seq
}

// guard runs one effect phase with isolation: an error return or panic
// moves the effect into error state, disables it for subsequent frames,
// and notifies the user once.
func (ec *EffectComposer) guard(slot *effectSlot, phase string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			ec.fail(slot, phase, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		ec.fail(slot, phase, err)
	}
}

func (ec *EffectComposer) fail(slot *effectSlot, phase string, err error) {
	slot.errState = err
	_, _ = fmt.Fprintf(os.Stderr, "[mapshine] effect %s: %s failed: %v\n", slot.desc.ID, phase, err)
	if slot.notified {
		return
	}
	slot.notified = true
	if n := ec.host.Notifier(); n != nil {
		n.Error(fmt.Sprintf("Map effect %q disabled: %v", slot.desc.ID, err))
	}
}

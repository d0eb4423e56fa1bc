package mapshine

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

// stubEffect implements every phase interface and records its calls into a
// shared log, so one type can stand in for surface, environmental, and
// post effects.
type stubEffect struct {
	desc EffectDescriptor
	rec  *[]string

	initErr    error
	updateErr  error
	prePassErr error
	panicPhase string
	wrote      bool

	reads    []*ebiten.Image
	resizes  []int
	disposed bool
}

func (e *stubEffect) log(phase string) {
	if e.rec != nil {
		*e.rec = append(*e.rec, e.desc.ID+":"+phase)
	}
}

func (e *stubEffect) Descriptor() EffectDescriptor { return e.desc }

func (e *stubEffect) Initialize(*EffectComposer) error {
	e.log("init")
	return e.initErr
}

func (e *stubEffect) Update(*FrameContext) error {
	e.log("update")
	if e.panicPhase == "update" {
		panic("stub exploded")
	}
	return e.updateErr
}

func (e *stubEffect) Resize(w, _ int) { e.resizes = append(e.resizes, w) }
func (e *stubEffect) Dispose() { e.disposed = true }

func (e *stubEffect) PrePass(*FrameContext) error {
	e.log("prepass")
	return e.prePassErr
}

func (e *stubEffect) DrawSurface(_ *FrameContext, _ *ebiten.Image, floor int) error {
	e.log(fmt.Sprintf("surface[%d]", floor))
	return nil
}

func (e *stubEffect) Apply(_ *FrameContext, read, _ *ebiten.Image) (bool, error) {
	e.log("apply")
	e.reads = append(e.reads, read)
	return e.wrote, nil
}

func newTestComposer(t *testing.T) (*EffectComposer, *fakeHost) {
	t.Helper()
	h := newFakeHost()
	h.textures.images["maps/keep.webp"] = newTestImage(64, 48, Color{0.2, 0.3, 0.1, 1})
	sc := NewSceneComposer(h)
	ec := NewEffectComposer(sc, h)
	t.Cleanup(func() {
		ec.Dispose()
		sc.Dispose()
	})
	return ec, h
}

func mustRegister(t *testing.T, ec *EffectComposer, e Effect) {
	t.Helper()
	if err := ec.Register(e); err != nil {
		t.Fatalf("Register(%s): %v", e.Descriptor().ID, err)
	}
}

// --- registration + ordering ---

func TestComposerResolvedOrder(t *testing.T) {
	ec, _ := newTestComposer(t)
	add := func(id string, bucket LayerBucket, pri int) {
		mustRegister(t, ec, &stubEffect{desc: EffectDescriptor{ID: id, Bucket: bucket, DefaultPriority: pri}})
	}
	add("post-b", LayerPost, 10)
	add("surf-b", LayerSurface, 20)
	add("env-a", LayerEnvironmental, 10)
	add("surf-a", LayerSurface, 10)
	add("post-a", LayerPost, 5)
	add("surf-c", LayerSurface, 20) // ties surf-b on priority, registered later

	want := []string{"surf-a", "surf-b", "surf-c", "env-a", "post-a", "post-b"}
	caps := ec.Capabilities()
	if len(caps) != len(want) {
		t.Fatalf("capabilities = %d entries, want %d", len(caps), len(want))
	}
	for i, c := range caps {
		if c.ID != want[i] {
			t.Fatalf("order[%d] = %s, want %s (full: %v)", i, c.ID, want[i], capIDs(caps))
		}
	}

	// Priority changes re-resolve; ties keep registration order.
	ec.SetPriority("surf-a", 30)
	caps = ec.Capabilities()
	if got := capIDs(caps); got[2] != "surf-a" {
		t.Fatalf("after reprioritize: %v, want surf-a last in bucket", got)
	}
}

func capIDs(caps []Capability) []string {
	ids := make([]string, len(caps))
	for i, c := range caps {
		ids[i] = c.ID
	}
	return ids
}

func TestComposerRegisterValidation(t *testing.T) {
	ec, _ := newTestComposer(t)
	mustRegister(t, ec, &stubEffect{desc: EffectDescriptor{ID: "dup"}})

	err := ec.Register(&stubEffect{desc: EffectDescriptor{ID: "dup"}})
	if !errors.Is(err, ErrDuplicateEffect) {
		t.Errorf("duplicate id error = %v, want ErrDuplicateEffect", err)
	}
	if err := ec.Register(&stubEffect{}); err == nil {
		t.Errorf("empty id should be rejected")
	}
}

func TestComposerUnregisterDisposes(t *testing.T) {
	ec, _ := newTestComposer(t)
	e := &stubEffect{desc: EffectDescriptor{ID: "solo"}}
	mustRegister(t, ec, e)
	if ec.EffectByID("solo") == nil {
		t.Fatalf("EffectByID should find the effect")
	}
	ec.Unregister("solo")
	if !e.disposed {
		t.Errorf("Unregister should dispose the effect")
	}
	if ec.EffectByID("solo") != nil {
		t.Errorf("effect still resolvable after Unregister")
	}
	ec.Unregister("solo") // unknown id is a no-op
}

func TestEffectDescriptorAllowedAt(t *testing.T) {
	d := EffectDescriptor{ID: "x", Tier: TierMedium}
	if d.AllowedAt(TierLow) {
		t.Errorf("medium effect should be gated on a low-tier client")
	}
	if !d.AllowedAt(TierMedium) || !d.AllowedAt(TierHigh) {
		t.Errorf("medium effect should pass at medium and high tiers")
	}
}

// --- frame phases ---

func TestComposerFramePhaseSequence(t *testing.T) {
	ec, h := newTestComposer(t)
	h.tiles = []TileDoc{
		{ID: "g", Width: 10, Height: 10, Elevation: 0},
		{ID: "u", Width: 10, Height: 10, Elevation: 30},
	}
	h.events.Emit(HookCanvasReady, nil)

	var rec []string
	surf := &stubEffect{desc: EffectDescriptor{ID: "surf", Bucket: LayerSurface}, rec: &rec}
	env := &stubEffect{desc: EffectDescriptor{ID: "env", Bucket: LayerEnvironmental}, rec: &rec}
	post := &stubEffect{desc: EffectDescriptor{ID: "post", Bucket: LayerPost}, rec: &rec, wrote: true}
	mustRegister(t, ec, surf)
	mustRegister(t, ec, env)
	mustRegister(t, ec, post)

	rec = rec[:0]
	screen := newTestImage(200, 150, Color{})
	defer screen.Deallocate()
	ec.RenderFrame(screen, 1.0/60)

	want := []string{
		"surf:update", "surf:prepass",
		"env:update", "env:prepass",
		"post:update",
		"surf:surface[0]", "surf:surface[1]",
		"post:apply",
	}
	if got := strings.Join(rec, " "); got != strings.Join(want, " ") {
		t.Fatalf("phase sequence:\n got %s\nwant %s", got, strings.Join(want, " "))
	}

	stats := ec.Stats()
	if stats.PrePasses != 2 || stats.SurfaceDraws != 2 || stats.PostPasses != 1 {
		t.Errorf("stats = %+v, want 2 prepasses, 2 surface draws, 1 post pass", stats)
	}
	if stats.FailedEffects != 0 {
		t.Errorf("no effect should have failed, got %d", stats.FailedEffects)
	}
}

func TestComposerGlobalSurfaceScope(t *testing.T) {
	ec, h := newTestComposer(t)
	h.tiles = []TileDoc{
		{ID: "g", Width: 10, Height: 10, Elevation: 0},
		{ID: "u", Width: 10, Height: 10, Elevation: 30},
	}
	h.events.Emit(HookCanvasReady, nil)

	var rec []string
	global := &stubEffect{desc: EffectDescriptor{ID: "swarm", Bucket: LayerSurface, FloorScope: FloorScopeGlobal}, rec: &rec}
	mustRegister(t, ec, global)

	rec = rec[:0]
	screen := newTestImage(200, 150, Color{})
	defer screen.Deallocate()
	ec.RenderFrame(screen, 1.0/60)

	var surfaces []string
	for _, call := range rec {
		if strings.Contains(call, "surface") {
			surfaces = append(surfaces, call)
		}
	}
	if len(surfaces) != 1 || surfaces[0] != fmt.Sprintf("swarm:surface[%d]", GlobalFloor) {
		t.Fatalf("global-scope draws = %v, want exactly one global call", surfaces)
	}
}

func TestComposerPassThroughKeepsChain(t *testing.T) {
	ec, h := newTestComposer(t)
	h.events.Emit(HookCanvasReady, nil)

	skip := &stubEffect{desc: EffectDescriptor{ID: "skip", Bucket: LayerPost, DefaultPriority: 1}, wrote: false}
	write := &stubEffect{desc: EffectDescriptor{ID: "write", Bucket: LayerPost, DefaultPriority: 2}, wrote: true}
	mustRegister(t, ec, skip)
	mustRegister(t, ec, write)

	screen := newTestImage(200, 150, Color{})
	defer screen.Deallocate()
	ec.RenderFrame(screen, 1.0/60)

	if len(skip.reads) != 1 || len(write.reads) != 1 {
		t.Fatalf("both post effects should run once")
	}
	if skip.reads[0] != write.reads[0] {
		t.Errorf("pass-through must not advance the chain: the next effect should read the same buffer")
	}
	if got := ec.Stats().PostPasses; got != 1 {
		t.Errorf("PostPasses = %d, want 1 (pass-through excluded)", got)
	}

	// A writing pass advances the chain: on the next frame the first
	// reader sees a different buffer than the one "write" rendered into.
	ec.RenderFrame(screen, 1.0/60)
	if len(skip.reads) != 2 {
		t.Fatalf("second frame should run the chain again")
	}
}

// --- isolation + recovery ---

func TestComposerErrorIsolation(t *testing.T) {
	ec, h := newTestComposer(t)
	h.events.Emit(HookCanvasReady, nil)

	var rec []string
	bad := &stubEffect{desc: EffectDescriptor{ID: "bad", Bucket: LayerSurface, DefaultPriority: 1}, rec: &rec, updateErr: errors.New("shader compile failed")}
	good := &stubEffect{desc: EffectDescriptor{ID: "good", Bucket: LayerSurface, DefaultPriority: 2}, rec: &rec}
	mustRegister(t, ec, bad)
	mustRegister(t, ec, good)

	screen := newTestImage(200, 150, Color{})
	defer screen.Deallocate()

	rec = rec[:0]
	ec.RenderFrame(screen, 1.0/60)
	if ec.EffectError("bad") == nil {
		t.Fatalf("failing effect should hold an error state")
	}
	if count(rec, "good:update") != 1 {
		t.Fatalf("healthy effect should still run: %v", rec)
	}
	if ec.Stats().FailedEffects != 1 {
		t.Errorf("FailedEffects = %d, want 1", ec.Stats().FailedEffects)
	}

	// Failed effects are skipped on later frames and the user is told once.
	ec.RenderFrame(screen, 1.0/60)
	ec.RenderFrame(screen, 1.0/60)
	if got := count(rec, "bad:update"); got != 1 {
		t.Errorf("failed effect updated %d times, want 1", got)
	}
	if got := len(h.notifier.errors); got != 1 {
		t.Errorf("notifier errors = %d, want exactly 1", got)
	}

	// Recovery clears the state and the effect runs again.
	bad.updateErr = nil
	if !ec.RecoverEffect("bad") {
		t.Fatalf("RecoverEffect should find the effect")
	}
	ec.RenderFrame(screen, 1.0/60)
	if got := count(rec, "bad:update"); got != 2 {
		t.Errorf("recovered effect updated %d times, want 2", got)
	}
	if ec.EffectError("bad") != nil {
		t.Errorf("recovered effect should be clean, got %v", ec.EffectError("bad"))
	}
}

func TestComposerPanicIsolation(t *testing.T) {
	ec, h := newTestComposer(t)
	h.events.Emit(HookCanvasReady, nil)

	boom := &stubEffect{desc: EffectDescriptor{ID: "boom", Bucket: LayerSurface}, panicPhase: "update"}
	mustRegister(t, ec, boom)

	screen := newTestImage(200, 150, Color{})
	defer screen.Deallocate()
	ec.RenderFrame(screen, 1.0/60)

	err := ec.EffectError("boom")
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("panic should be captured as error state, got %v", err)
	}
	if len(h.notifier.errors) != 1 {
		t.Errorf("panic should notify once, got %d", len(h.notifier.errors))
	}
}

func TestComposerInitializeFailure(t *testing.T) {
	ec, h := newTestComposer(t)
	h.events.Emit(HookCanvasReady, nil)

	var rec []string
	e := &stubEffect{desc: EffectDescriptor{ID: "lame", Bucket: LayerSurface}, rec: &rec, initErr: errors.New("no such mask")}
	mustRegister(t, ec, e)

	if ec.EffectError("lame") == nil {
		t.Fatalf("Initialize failure should leave the effect in error state")
	}
	rec = rec[:0]
	screen := newTestImage(200, 150, Color{})
	defer screen.Deallocate()
	ec.RenderFrame(screen, 1.0/60)
	if count(rec, "lame:update") != 0 {
		t.Errorf("failed-at-init effect must not run")
	}
}

func TestComposerSetEnabledSkips(t *testing.T) {
	ec, h := newTestComposer(t)
	h.events.Emit(HookCanvasReady, nil)

	var rec []string
	e := &stubEffect{desc: EffectDescriptor{ID: "toggle", Bucket: LayerSurface}, rec: &rec}
	mustRegister(t, ec, e)
	if !ec.SetEnabled("toggle", false) {
		t.Fatalf("SetEnabled should find the effect")
	}

	rec = rec[:0]
	screen := newTestImage(200, 150, Color{})
	defer screen.Deallocate()
	ec.RenderFrame(screen, 1.0/60)
	if len(rec) != 0 {
		t.Errorf("disabled effect ran: %v", rec)
	}
	if ec.SetEnabled("ghost", true) {
		t.Errorf("unknown id should report false")
	}

	caps := ec.Capabilities()
	if len(caps) != 1 || caps[0].Enabled {
		t.Errorf("capability should report the disabled state")
	}
}

// --- shared textures + resize ---

func TestComposerSharedTextures(t *testing.T) {
	ec, _ := newTestComposer(t)
	tex := newTestImage(8, 8, Color{1, 0, 0, 1})
	defer tex.Deallocate()

	ec.SetSharedTexture(TexOverheadShadow, tex)
	if ec.SharedTexture(TexOverheadShadow) != tex {
		t.Fatalf("shared texture not resolvable")
	}
	ec.SetSharedTexture(TexOverheadShadow, nil)
	if ec.SharedTexture(TexOverheadShadow) != nil {
		t.Fatalf("nil publish should remove the texture")
	}
	if ec.SharedTexture("tUnknown") != nil {
		t.Fatalf("unknown name should be nil")
	}
}

func TestComposerResizeForwards(t *testing.T) {
	ec, h := newTestComposer(t)
	h.events.Emit(HookCanvasReady, nil)

	e := &stubEffect{desc: EffectDescriptor{ID: "sized", Bucket: LayerPost}}
	mustRegister(t, ec, e)

	small := newTestImage(200, 150, Color{})
	defer small.Deallocate()
	big := newTestImage(300, 200, Color{})
	defer big.Deallocate()

	ec.RenderFrame(small, 1.0/60)
	ec.RenderFrame(small, 1.0/60)
	ec.RenderFrame(big, 1.0/60)

	if len(e.resizes) != 2 || e.resizes[0] != 200 || e.resizes[1] != 300 {
		t.Errorf("resizes = %v, want [200 300]", e.resizes)
	}
}

func count(rec []string, needle string) int {
	n := 0
	for _, s := range rec {
		if s == needle {
			n++
		}
	}
	return n
}

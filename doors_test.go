package mapshine

import (
	"math"
	"testing"
	"time"
)

func oakDoorWall(id string, state int) WallDoc {
	return WallDoc{
		ID:        id,
		Coords:    [4]float64{160, 120, 240, 120},
		IsDoor:    true,
		DoorState: state,
		Animation: DoorAnimConfig{
			Texture:   "doors/oak.webp",
			Type:      DoorAnimSwing,
			Direction: 1,
			Duration:  2 * time.Second,
			Strength:  1,
		},
	}
}

func doorCtx(dt float64) *FrameContext {
	return &FrameContext{
		Time: TimeInfo{DeltaSec: dt},
		Env:  EnvSnapshot{AmbientDaylight: ColorWhite, TimeScale: 1},
	}
}

func newDoorFixture(t *testing.T, walls ...WallDoc) (*DoorEffect, *EffectComposer, *fakeHost) {
	t.Helper()
	ec, h := newTestComposer(t)
	h.textures.images["doors/oak.webp"] = newTestImage(16, 8, Color{1, 1, 1, 1})
	h.walls = walls
	e := NewDoorEffect()
	mustRegister(t, ec, e)
	h.events.Emit(HookCanvasReady, nil)
	ec.Resize(200, 150)
	ec.Scene().BeginFrame(200, 150, 0)
	if err := e.Update(doorCtx(0)); err != nil {
		t.Fatalf("settle update: %v", err)
	}
	return e, ec, h
}

func TestDoorMeshFromWallGeometry(t *testing.T) {
	e, _, _ := newDoorFixture(t, oakDoorWall("w1", DoorStateClosed))

	leaves := e.Meshes("w1")
	if len(leaves) != 1 {
		t.Fatalf("leaves = %d, want 1", len(leaves))
	}
	m := leaves[0]
	if m.Style != DoorStyleSingle {
		t.Fatalf("style = %v, want single", m.Style)
	}
	if m.Phase() != DoorPhaseClosed || m.Progress() != 0 {
		t.Fatalf("phase = %v progress = %v, want closed at 0", m.Phase(), m.Progress())
	}
	hx, hy, angle, length := m.ClosedPlacement()
	if hx != 160 || hy != 120 {
		t.Fatalf("hinge = (%v, %v), want (160, 120)", hx, hy)
	}
	assertNear(t, "angle", angle, 0)
	assertNear(t, "length", length, 80)
}

func TestDoorOpensWithSineEase(t *testing.T) {
	e, _, h := newDoorFixture(t, oakDoorWall("w1", DoorStateClosed))
	m := e.Meshes("w1")[0]

	h.events.Emit(HookUpdateWall, oakDoorWall("w1", DoorStateOpen))
	if m.Phase() != DoorPhaseOpening {
		t.Fatalf("phase = %v, want opening", m.Phase())
	}

	if err := e.Update(doorCtx(1)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if math.Abs(m.Progress()-0.5) > 1e-3 {
		t.Fatalf("progress at half duration = %v, want 0.5", m.Progress())
	}

	if err := e.Update(doorCtx(1)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if m.Phase() != DoorPhaseOpen || m.Progress() != 1 {
		t.Fatalf("phase = %v progress = %v, want open at 1", m.Phase(), m.Progress())
	}
	assertNear(t, "swing angle", m.Pose().Angle, math.Pi/2)
}

func TestDoorReversalShortensDuration(t *testing.T) {
	e, _, h := newDoorFixture(t, oakDoorWall("w1", DoorStateClosed))
	m := e.Meshes("w1")[0]

	h.events.Emit(HookUpdateWall, oakDoorWall("w1", DoorStateOpen))
	if err := e.Update(doorCtx(1)); err != nil {
		t.Fatalf("update: %v", err)
	}

	h.events.Emit(HookUpdateWall, oakDoorWall("w1", DoorStateClosed))
	if m.Phase() != DoorPhaseClosing {
		t.Fatalf("phase = %v, want closing", m.Phase())
	}
	if err := e.Update(doorCtx(0.5)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if math.Abs(m.Progress()-0.25) > 1e-3 {
		t.Fatalf("progress mid close = %v, want 0.25", m.Progress())
	}
	if err := e.Update(doorCtx(0.5)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if m.Phase() != DoorPhaseClosed || m.Progress() != 0 {
		t.Fatalf("phase = %v progress = %v, want closed at 0", m.Phase(), m.Progress())
	}
}

func TestDoorOpenAtLoadJumpsImmediately(t *testing.T) {
	e, _, _ := newDoorFixture(t, oakDoorWall("w1", DoorStateOpen))
	m := e.Meshes("w1")[0]
	if m.Phase() != DoorPhaseOpen || m.Progress() != 1 {
		t.Fatalf("phase = %v progress = %v, want open at 1 with no tween", m.Phase(), m.Progress())
	}
}

func TestDoorDoubleLeavesMirror(t *testing.T) {
	doc := oakDoorWall("w1", DoorStateOpen)
	doc.Animation.Double = true
	e, _, _ := newDoorFixture(t, doc)

	leaves := e.Meshes("w1")
	if len(leaves) != 2 {
		t.Fatalf("leaves = %d, want 2", len(leaves))
	}
	left, right := leaves[0], leaves[1]
	if left.Style != DoorStyleDoubleL || right.Style != DoorStyleDoubleR {
		t.Fatalf("styles = %v, %v", left.Style, right.Style)
	}

	lx, ly, langle, llen := left.ClosedPlacement()
	rx, ry, rangle, rlen := right.ClosedPlacement()
	if lx != 160 || ly != 120 || rx != 240 || ry != 120 {
		t.Fatalf("hinges = (%v,%v) (%v,%v)", lx, ly, rx, ry)
	}
	assertNear(t, "left angle", langle, 0)
	assertNear(t, "right angle", rangle, math.Pi)
	assertNear(t, "left length", llen, 40)
	assertNear(t, "right length", rlen, 40)

	assertNear(t, "left swing", left.Pose().Angle, math.Pi/2)
	assertNear(t, "right swing", right.Pose().Angle, -math.Pi/2)
}

func TestDoorPoseVariants(t *testing.T) {
	mesh := func(typ DoorAnimType) *DoorMesh {
		return &DoorMesh{
			cfg:       DoorAnimConfig{Type: typ, Direction: 1, Strength: 1},
			length:    100,
			thickness: 20,
			progress:  0.5,
		}
	}

	slide := mesh(DoorAnimSlide).Pose()
	assertNear(t, "slide offset", slide.SlideX, -50)
	assertNear(t, "slide alpha", slide.Alpha, 1)

	ascend := mesh(DoorAnimAscend).Pose()
	assertNear(t, "ascend lift", ascend.Lift, -25)
	assertNear(t, "ascend alpha", ascend.Alpha, 0.625)

	descend := mesh(DoorAnimDescend).Pose()
	assertNear(t, "descend sink", descend.Lift, 12.5)
	assertNear(t, "descend alpha", descend.Alpha, 0.5)

	swivel := mesh(DoorAnimSwivel).Pose()
	assertNear(t, "swivel angle", swivel.Angle, math.Pi/4)
	assertNear(t, "swivel pivot", swivel.PivotU, 0.5)

	flipped := mesh(DoorAnimSwing)
	flipped.cfg.Flip = true
	assertNear(t, "flipped swing", flipped.Pose().Angle, -math.Pi/4)
}

func TestDoorTintMatchesQuantizedProduct(t *testing.T) {
	e, _, _ := newDoorFixture(t, oakDoorWall("w1", DoorStateClosed))

	ctx := doorCtx(0)
	ctx.Env.DarknessLevel = 0.9
	ctx.Env.AmbientDaylight = ColorWhite
	ctx.Env.AmbientDarkness = Color{R: 0.14, G: 0.14, B: 0.28, A: 1}
	if err := e.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}

	level := 0.9
	floor := 0.25
	want := Color{
		R: lerp(1, 0.14, level) * floor,
		G: lerp(1, 0.14, level) * floor,
		B: lerp(1, 0.28, level) * floor,
	}
	got := e.Meshes("w1")[0].Tint()
	if math.Abs(got.R-want.R) > 1.0/255 || math.Abs(got.G-want.G) > 1.0/255 || math.Abs(got.B-want.B) > 1.0/255 {
		t.Fatalf("tint = %+v, want within 1/255 of %+v", got, want)
	}
	if got != dequantizeTint(quantizeTint(want)) {
		t.Fatalf("tint = %+v is not the quantized product", got)
	}
}

func TestDoorTintAppliesOnlyOnKeyChange(t *testing.T) {
	e, _, _ := newDoorFixture(t, oakDoorWall("w1", DoorStateClosed))
	m := e.Meshes("w1")[0]

	ctx := doorCtx(0)
	ctx.Env.DarknessLevel = 0.4
	if err := e.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}

	sentinel := Color{R: -1, G: -1, B: -1, A: -1}
	m.tint = sentinel
	if err := e.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}
	if m.Tint() != sentinel {
		t.Fatal("tint reapplied without a key change")
	}

	ctx.Env.DarknessLevel = 0.8
	if err := e.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}
	if m.Tint() == sentinel {
		t.Fatal("tint not reapplied after key change")
	}
}

func TestDoorPrefersLightingEffectDarkness(t *testing.T) {
	e, _, _ := newDoorFixture(t, oakDoorWall("w1", DoorStateClosed))

	dark := doorCtx(0)
	dark.Env.DarknessLevel = 1
	dark.Env.AmbientDarkness = Color{R: 0.2, G: 0.2, B: 0.2, A: 1}
	if err := e.Update(dark); err != nil {
		t.Fatalf("update: %v", err)
	}
	fallback := e.GlobalTint()

	le := &LightingEffect{}
	le.effectiveDarkness = 0
	e.lighting = le
	if err := e.Update(dark); err != nil {
		t.Fatalf("update: %v", err)
	}
	if e.GlobalTint() == fallback {
		t.Fatal("tint ignored the lighting effect's darkness")
	}
	if e.GlobalTint() != dequantizeTint(quantizeTint(ColorWhite)) {
		t.Fatalf("tint = %+v, want daylight white at zero darkness", e.GlobalTint())
	}
}

func TestDoorMissingTextureStaysInertThenRearms(t *testing.T) {
	doc := oakDoorWall("w1", DoorStateClosed)
	doc.Animation.Texture = "doors/ghost.webp"
	e, _, h := newDoorFixture(t, doc)

	dst := newTestImage(200, 150, Color{0, 0, 0, 1})
	if err := e.DrawSurface(doorCtx(0), dst, GlobalFloor); err != nil {
		t.Fatalf("draw: %v", err)
	}
	r, g, b := rgbAt(t, dst, 100, 35)
	if r != 0 || g != 0 || b != 0 {
		t.Fatalf("inert door drew pixels: (%d, %d, %d)", r, g, b)
	}

	h.textures.images["doors/ghost.webp"] = newTestImage(16, 8, Color{1, 1, 1, 1})
	h.events.Emit(HookUpdateWall, doc)
	if err := e.Update(doorCtx(0)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := e.DrawSurface(doorCtx(0), dst, GlobalFloor); err != nil {
		t.Fatalf("draw: %v", err)
	}
	r, _, _ = rgbAt(t, dst, 100, 35)
	if r < 200 {
		t.Fatalf("re-armed door did not draw, r = %d", r)
	}
}

func TestDoorWallLifecycle(t *testing.T) {
	e, _, h := newDoorFixture(t)

	h.events.Emit(HookCreateWall, oakDoorWall("w9", DoorStateClosed))
	if e.MeshCount() != 1 {
		t.Fatalf("mesh count after create = %d, want 1", e.MeshCount())
	}

	plain := oakDoorWall("w9", DoorStateClosed)
	plain.IsDoor = false
	h.events.Emit(HookUpdateWall, plain)
	if e.MeshCount() != 0 {
		t.Fatalf("mesh count after door removal = %d, want 0", e.MeshCount())
	}

	h.events.Emit(HookCreateWall, oakDoorWall("w9", DoorStateClosed))
	h.events.Emit(HookDeleteWall, "w9")
	if e.MeshCount() != 0 {
		t.Fatalf("mesh count after delete = %d, want 0", e.MeshCount())
	}

	degenerate := oakDoorWall("w0", DoorStateClosed)
	degenerate.Coords = [4]float64{50, 50, 50, 50}
	h.events.Emit(HookCreateWall, degenerate)
	if e.MeshCount() != 0 {
		t.Fatalf("zero length wall produced a mesh")
	}
}

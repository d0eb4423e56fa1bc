package mapshine

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

// newRoofFixture binds a scene with one roof tile, a plain ground tile,
// and a roof tile that bypasses effects. Scene rect {40,40,320,240} maps
// world to target 1:1 with a -40 offset, so the roof at world (100,100)
// 80x80 stamps target [60,140]x[60,140].
func newRoofFixture(t *testing.T) (*EffectComposer, *fakeHost, *OverheadShadowEffect) {
	t.Helper()
	ec, h := newTestComposer(t)
	h.textures.images["tiles/roof.webp"] = newTestImage(16, 16, Color{0.4, 0.3, 0.2, 1})
	h.textures.images["tiles/ground.webp"] = newTestImage(16, 16, Color{0.2, 0.5, 0.2, 1})
	h.tiles = []TileDoc{
		{
			ID: "roof", X: 100, Y: 100, Width: 80, Height: 80,
			Elevation: 30, TextureSrc: "tiles/roof.webp",
			Flags: TileFlags{OverheadIsRoof: true},
		},
		{
			ID: "ground", X: 240, Y: 200, Width: 60, Height: 60,
			TextureSrc: "tiles/ground.webp",
		},
		{
			ID: "shed", X: 60, Y: 240, Width: 40, Height: 40,
			Elevation: 30, TextureSrc: "tiles/roof.webp",
			Flags: TileFlags{OverheadIsRoof: true, BypassEffects: true},
		},
	}
	h.events.Emit(HookCanvasReady, nil)

	e := NewOverheadShadowEffect()
	mustRegister(t, ec, e)
	return ec, h, e
}

func alphaAt(t *testing.T, img *ebiten.Image, x, y int) int {
	t.Helper()
	_, _, _, a := img.At(x, y).RGBA()
	return int(a >> 8)
}

func overheadCtx(env EnvSnapshot) *FrameContext {
	return &FrameContext{Time: TimeInfo{DeltaSec: 1.0 / 60}, Env: env}
}

func overheadPass(t *testing.T, e *OverheadShadowEffect, ctx *FrameContext) {
	t.Helper()
	if err := e.Update(ctx); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := e.PrePass(ctx); err != nil {
		t.Fatalf("PrePass: %v", err)
	}
}

func TestOverheadShadowStampsOnlyRoofTiles(t *testing.T) {
	ec, _, e := newRoofFixture(t)
	overheadPass(t, e, overheadCtx(EnvSnapshot{}))

	roof := ec.SharedTexture(TexRoofAlpha)
	if roof == nil {
		t.Fatal("roof alpha texture not published")
	}
	if a := alphaAt(t, roof, 100, 100); a < 200 {
		t.Errorf("roof center alpha = %d, want >= 200", a)
	}
	if a := alphaAt(t, roof, 230, 190); a != 0 {
		t.Errorf("ground tile center alpha = %d, want 0", a)
	}
	if a := alphaAt(t, roof, 40, 220); a != 0 {
		t.Errorf("bypass tile center alpha = %d, want 0", a)
	}

	shadow := ec.SharedTexture(TexOverheadShadow)
	if shadow == nil {
		t.Fatal("overhead shadow texture not published")
	}
	if r := redAt(t, shadow, 100, 100); r >= 200 {
		t.Errorf("shadow under roof = %d, want < 200", r)
	}
	if r := redAt(t, shadow, 290, 30); r < 250 {
		t.Errorf("shadow in the open = %d, want >= 250", r)
	}
}

// darknessCentroidX locates the shadow mass along one row, so the sun
// displacement shows up as a centroid shift instead of a fragile
// single-pixel probe.
func darknessCentroidX(t *testing.T, img *ebiten.Image, y int) float64 {
	t.Helper()
	var sum, weight float64
	for x := 20; x <= 300; x++ {
		d := float64(255 - redAt(t, img, x, y))
		sum += float64(x) * d
		weight += d
	}
	if weight == 0 {
		t.Fatal("no shadow found along probe row")
	}
	return sum / weight
}

func TestOverheadShadowDisplacesWithSun(t *testing.T) {
	ec, _, e := newRoofFixture(t)

	overheadPass(t, e, overheadCtx(EnvSnapshot{}))
	shadow := ec.SharedTexture(TexOverheadShadow)
	base := darknessCentroidX(t, shadow, 100)

	overheadPass(t, e, overheadCtx(EnvSnapshot{SunDir: Vec2{X: 1, Y: 0}}))
	moved := darknessCentroidX(t, shadow, 100)

	shift := moved - base
	if shift < 5 || shift > 30 {
		t.Errorf("sun displacement shifted centroid by %.1fpx, want 5..30", shift)
	}
}

func TestOverheadShadowCachesUntilTilesChange(t *testing.T) {
	ec, h, e := newRoofFixture(t)
	ctx := overheadCtx(EnvSnapshot{})
	overheadPass(t, e, ctx)
	roof := ec.SharedTexture(TexRoofAlpha)

	// A pose mutation without a tile event must not re-render.
	sprite := ec.Scene().TileByID("roof")
	sprite.X += 120
	overheadPass(t, e, ctx)
	if a := alphaAt(t, roof, 100, 100); a < 200 {
		t.Errorf("stamp re-rendered without a tile event, alpha = %d", a)
	}
	sprite.X -= 120

	// The update hook re-stamps at the document's new position.
	movedDoc := h.tiles[0]
	movedDoc.X = 220
	h.events.Emit(HookUpdateTile, movedDoc)
	overheadPass(t, e, ctx)
	if a := alphaAt(t, roof, 220, 100); a < 200 {
		t.Errorf("moved roof center alpha = %d, want >= 200", a)
	}
	if a := alphaAt(t, roof, 100, 100); a > 30 {
		t.Errorf("old roof center alpha = %d, want <= 30", a)
	}
}

func TestOverheadShadowUnpublishesOnDispose(t *testing.T) {
	ec, _, e := newRoofFixture(t)
	overheadPass(t, e, overheadCtx(EnvSnapshot{}))
	if ec.SharedTexture(TexRoofAlpha) == nil || ec.SharedTexture(TexOverheadShadow) == nil {
		t.Fatal("textures not published after prepass")
	}
	ec.Unregister("overheadshadow")
	if ec.SharedTexture(TexRoofAlpha) != nil || ec.SharedTexture(TexOverheadShadow) != nil {
		t.Error("textures still published after dispose")
	}
}

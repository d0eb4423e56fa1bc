package mapshine

import (
	"math"
	"strings"
	"testing"
	"time"
)

// newTileMotionFixture builds a scene with three unparented tiles and an
// engine on a pinned clock. The returned advance function moves the wall
// clock; Update's dt is independent of it.
func newTileMotionFixture(t *testing.T) (*TileMotionEngine, *SceneComposer, *fakeHost, func(time.Duration)) {
	t.Helper()
	h := newFakeHost()
	h.textures.images["maps/keep.webp"] = newTestImage(64, 48, Color{0.2, 0.3, 0.1, 1})
	h.tiles = []TileDoc{
		{ID: "hub", X: 100, Y: 100, Width: 40, Height: 40},
		{ID: "blade", X: 200, Y: 100, Width: 40, Height: 40},
		{ID: "belt", X: 0, Y: 0, Width: 50, Height: 30},
	}
	sc := NewSceneComposer(h)
	e := NewTileMotionEngine(h, sc)
	t.Cleanup(func() {
		e.Dispose()
		sc.Dispose()
	})

	now := time.UnixMilli(1_700_000_000_000)
	e.clock = func() time.Time { return now }
	advance := func(d time.Duration) { now = now.Add(d) }

	h.events.Emit(HookCanvasReady, nil)
	e.Update(0)
	return e, sc, h, advance
}

func spinRecipe(speed float64) TileMotionConfig {
	return TileMotionConfig{
		Enabled: true,
		Mode:    TileModeTransform,
		Pivot:   Vec2{0.5, 0.5},
		Motion:  TileMotionSpec{Type: TileMotionRotation, Speed: speed},
	}
}

func TestTileMotionRotationAboutCenter(t *testing.T) {
	e, sc, _, _ := newTileMotionFixture(t)
	if !e.SetTileMotion("hub", spinRecipe(math.Pi/2)) {
		t.Fatal("SetTileMotion refused a valid recipe")
	}
	e.SetPlaying(true)
	e.Update(1)

	if e.ActiveTiles() != 1 {
		t.Fatalf("ActiveTiles = %d, want 1", e.ActiveTiles())
	}
	sp := sc.TileByID("hub")
	assertNear(t, "rotation", sp.Rotation, math.Pi/2)
	assertNear(t, "x", sp.X, 100)
	assertNear(t, "y", sp.Y, 100)
}

func TestTileMotionRotationSwingsOffCenterPivot(t *testing.T) {
	e, sc, _, _ := newTileMotionFixture(t)
	cfg := spinRecipe(math.Pi)
	cfg.Pivot = Vec2{0, 0}
	e.SetTileMotion("hub", cfg)
	e.SetPlaying(true)
	e.Update(1)

	// A half turn about the top-left corner mirrors the center through it.
	sp := sc.TileByID("hub")
	assertNear(t, "rotation", sp.Rotation, math.Pi)
	assertNear(t, "x", sp.X, 60)
	assertNear(t, "y", sp.Y, 60)
}

func TestTileMotionOrbit(t *testing.T) {
	e, sc, _, _ := newTileMotionFixture(t)
	e.SetTileMotion("hub", TileMotionConfig{
		Enabled: true,
		Mode:    TileModeTransform,
		Pivot:   Vec2{0.5, 0.5},
		Motion:  TileMotionSpec{Type: TileMotionOrbit, Speed: math.Pi / 2, Radius: 50},
	})
	e.SetPlaying(true)

	sp := sc.TileByID("hub")
	e.Update(1)
	assertNear(t, "x at quarter", sp.X, 100)
	assertNear(t, "y at quarter", sp.Y, 150)
	assertNear(t, "rotation", sp.Rotation, 0)

	e.Update(1)
	assertNear(t, "x at half", sp.X, 50)
	assertNear(t, "y at half", sp.Y, 100)
}

func TestTileMotionPingPongLoopModes(t *testing.T) {
	e, sc, _, _ := newTileMotionFixture(t)
	path := TileMotionSpec{
		Type:   TileMotionPingPong,
		Speed:  1,
		PointA: Vec2{0, 0},
		PointB: Vec2{100, 0},
	}

	saw := path
	saw.LoopMode = TileLoopRepeat
	e.SetTileMotion("belt", TileMotionConfig{Enabled: true, Mode: TileModeTransform, Motion: saw})

	tri := path
	tri.LoopMode = TileLoopPingPong
	e.SetTileMotion("hub", TileMotionConfig{Enabled: true, Mode: TileModeTransform, Motion: tri})

	e.SetPlaying(true)
	e.Update(1.25)

	// Past the first full pass: sawtooth wraps to 0.25, triangle folds
	// back to 0.75 of the way from A to B.
	belt := sc.TileByID("belt")
	assertNear(t, "saw center x", belt.X+25, 25)
	assertNear(t, "saw center y", belt.Y+15, 0)
	hub := sc.TileByID("hub")
	assertNear(t, "triangle center x", hub.X+20, 75)
	assertNear(t, "triangle center y", hub.Y+20, 0)
}

func TestTileMotionSine(t *testing.T) {
	e, sc, _, _ := newTileMotionFixture(t)
	e.SetTileMotion("hub", TileMotionConfig{
		Enabled: true,
		Mode:    TileModeTransform,
		Motion: TileMotionSpec{
			Type:         TileMotionSine,
			Speed:        math.Pi / 2,
			AmplitudeX:   10,
			AmplitudeRot: 0.5,
		},
	})
	e.SetPlaying(true)
	e.Update(1)

	sp := sc.TileByID("hub")
	assertNear(t, "x", sp.X, 110)
	assertNear(t, "y", sp.Y, 100)
	assertNear(t, "rotation", sp.Rotation, 0.5)
}

func TestTileMotionTextureMode(t *testing.T) {
	e, sc, _, _ := newTileMotionFixture(t)
	e.SetTileMotion("belt", TileMotionConfig{
		Enabled: true,
		Mode:    TileModeTexture,
		TextureMotion: TileTextureMotion{
			ScrollU:     0.25,
			RotateSpeed: 1,
			PivotU:      0.3,
			PivotV:      0.7,
		},
	})
	e.SetPlaying(true)
	e.Update(2)

	sp := sc.TileByID("belt")
	assertNear(t, "scroll u", sp.TexScrollU, 0.5)
	assertNear(t, "scroll v", sp.TexScrollV, 0)
	assertNear(t, "tex rotate", sp.TexRotate, 2)
	assertNear(t, "pivot u", sp.TexPivotU, 0.3)
	assertNear(t, "pivot v", sp.TexPivotV, 0.7)
	if !sp.TexRepeat {
		t.Error("texture motion must switch the sprite to repeat addressing")
	}
	assertNear(t, "x untouched", sp.X, 0)
}

func TestTileMotionParentComposition(t *testing.T) {
	e, sc, _, _ := newTileMotionFixture(t)
	e.SetTileMotion("hub", spinRecipe(math.Pi/2))
	e.SetTileMotion("blade", TileMotionConfig{
		Enabled:  true,
		Mode:     TileModeTransform,
		ParentID: "hub",
		Motion:   TileMotionSpec{Type: TileMotionSine},
	})
	e.SetPlaying(true)
	e.Update(1)

	// The blade's center sits 100 units right of the hub; a quarter turn
	// of the hub carries it straight down, and the rotations add.
	if e.ActiveTiles() != 2 {
		t.Fatalf("ActiveTiles = %d, want 2", e.ActiveTiles())
	}
	sp := sc.TileByID("blade")
	assertNear(t, "x", sp.X, 100)
	assertNear(t, "y", sp.Y, 200)
	assertNear(t, "rotation", sp.Rotation, math.Pi/2)
}

func TestTileMotionCycleExcluded(t *testing.T) {
	e, sc, h, _ := newTileMotionFixture(t)
	a := spinRecipe(1)
	a.ParentID = "blade"
	b := spinRecipe(1)
	b.ParentID = "hub"
	e.SetTileMotion("hub", a)
	e.SetTileMotion("blade", b)
	e.SetPlaying(true)
	e.Update(1)

	if n := e.ActiveTiles(); n != 0 {
		t.Fatalf("ActiveTiles = %d, want the whole cycle excluded", n)
	}
	excluded := e.Excluded()
	if _, ok := excluded["hub"]; !ok {
		t.Error("hub missing from the exclusion report")
	}
	if _, ok := excluded["blade"]; !ok {
		t.Error("blade missing from the exclusion report")
	}
	warned := false
	for _, w := range h.notifier.warns {
		if strings.Contains(w, "cycle") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("no cycle warning reached the notifier: %v", h.notifier.warns)
	}
	assertNear(t, "hub stays at base", sc.TileByID("hub").Rotation, 0)

	// Breaking the cycle brings both tiles back.
	a.ParentID = ""
	e.SetTileMotion("hub", a)
	if n := e.ActiveTiles(); n != 2 {
		t.Errorf("ActiveTiles after breaking the cycle = %d, want 2", n)
	}
}

func TestTileMotionDanglingParentExcluded(t *testing.T) {
	e, _, _, _ := newTileMotionFixture(t)
	cfg := spinRecipe(1)
	cfg.ParentID = "ghost"
	e.SetTileMotion("hub", cfg)
	if n := e.ActiveTiles(); n != 0 {
		t.Fatalf("ActiveTiles = %d, want 0", n)
	}
	if reason := e.Excluded()["hub"]; !strings.Contains(reason, "ghost") {
		t.Errorf("exclusion reason %q does not name the missing parent", reason)
	}
}

func TestTileMotionTimeScaleZeroFreezesPose(t *testing.T) {
	e, sc, h, _ := newTileMotionFixture(t)
	e.SetTileMotion("hub", spinRecipe(math.Pi/2))
	e.SetPlaying(true)
	e.Update(1)
	sp := sc.TileByID("hub")
	assertNear(t, "rotation before pause", sp.Rotation, math.Pi/2)

	h.weather.timeScale = 0
	e.Update(1)
	assertNear(t, "elapsed frozen", e.ElapsedSec(), 1)
	assertNear(t, "rotation frozen", sp.Rotation, math.Pi/2)

	h.weather.timeScale = 1
	e.Update(1)
	assertNear(t, "rotation resumes", sp.Rotation, math.Pi)
}

func TestTileMotionStopRestoresAndReplays(t *testing.T) {
	e, sc, _, _ := newTileMotionFixture(t)
	e.SetTileMotion("hub", spinRecipe(math.Pi/2))
	e.SetTileMotion("belt", TileMotionConfig{
		Enabled:       true,
		Mode:          TileModeTexture,
		TextureMotion: TileTextureMotion{ScrollU: 0.25},
	})
	e.SetPlaying(true)
	e.Update(1)

	hub := sc.TileByID("hub")
	belt := sc.TileByID("belt")
	firstRot := hub.Rotation
	if firstRot == 0 {
		t.Fatal("fixture never animated the hub")
	}

	e.SetPlaying(false)
	assertNear(t, "rotation restored", hub.Rotation, 0)
	assertNear(t, "x restored", hub.X, 100)
	assertNear(t, "scroll restored", belt.TexScrollU, 0)
	if belt.TexRepeat {
		t.Error("stop must restore the sprite's address mode")
	}

	// Same epoch, same elapsed time, same pose.
	e.SetPlaying(true)
	e.Update(1)
	assertNear(t, "replayed rotation", hub.Rotation, firstRot)
}

func TestTileMotionSpeedAndFactorScaleClock(t *testing.T) {
	e, _, _, _ := newTileMotionFixture(t)
	e.SetTileMotion("hub", spinRecipe(1))
	e.SetPlaying(true)

	e.SetSpeedPercent(50)
	e.Update(1)
	assertNear(t, "elapsed at half speed", e.ElapsedSec(), 0.5)

	e.SetTimeFactorPercent(200)
	e.Update(1)
	assertNear(t, "elapsed with factor", e.ElapsedSec(), 1.5)
}

func TestTileMotionPersistsAndReloads(t *testing.T) {
	e, sc, h, advance := newTileMotionFixture(t)
	e.SetTileMotion("belt", TileMotionConfig{
		Enabled: true,
		Mode:    TileModeTransform,
		Motion: TileMotionSpec{
			Type:     TileMotionPingPong,
			Speed:    2,
			LoopMode: TileLoopPingPong,
			PointA:   Vec2{10, 20},
			PointB:   Vec2{30, 40},
		},
	})
	e.SetPlaying(true)
	if h.settings.sets != 0 {
		t.Fatalf("saved before the debounce window: %d writes", h.settings.sets)
	}

	advance(3 * time.Second)
	e.Update(0)
	if h.settings.sets != 1 {
		t.Fatalf("writes = %d, want one debounced save", h.settings.sets)
	}

	e2 := NewTileMotionEngine(h, sc)
	t.Cleanup(e2.Dispose)
	e2.clock = e.clock
	e2.Update(0)
	if !e2.Playing() {
		t.Error("reloaded engine lost the playing state")
	}
	cfg, ok := e2.TileMotion("belt")
	if !ok {
		t.Fatal("reloaded engine lost the belt recipe")
	}
	if cfg.Motion.Type != TileMotionPingPong || cfg.Motion.LoopMode != TileLoopPingPong {
		t.Errorf("recipe mangled in round trip: %+v", cfg.Motion)
	}
	assertNear(t, "point b x", cfg.Motion.PointB.X, 30)
	assertNear(t, "point b y", cfg.Motion.PointB.Y, 40)
}

func TestTileMotionMigratesV1Records(t *testing.T) {
	h := newFakeHost()
	h.textures.images["maps/keep.webp"] = newTestImage(64, 48, Color{0.2, 0.3, 0.1, 1})
	h.tiles = []TileDoc{{ID: "hub", X: 100, Y: 100, Width: 40, Height: 40}}
	h.settings.values[tileMotionSettingsKey] = `{
		"hub": {"enabled": true, "mode": "transform", "motion": {"type": "rotation", "speed": 1}},
		"bad": {"enabled": true, "mode": "transform", "motion": {"type": "warp"}}
	}`
	sc := NewSceneComposer(h)
	e := NewTileMotionEngine(h, sc)
	t.Cleanup(func() {
		e.Dispose()
		sc.Dispose()
	})
	h.events.Emit(HookCanvasReady, nil)
	e.Update(0)

	cfg, ok := e.TileMotion("hub")
	if !ok {
		t.Fatal("v1 record lost in migration")
	}
	if cfg.Motion.Type != TileMotionRotation {
		t.Errorf("motion type = %q", cfg.Motion.Type)
	}
	assertNear(t, "migrated pivot x", cfg.Pivot.X, 0.5)
	if _, ok := e.TileMotion("bad"); ok {
		t.Error("invalid tile survived migration")
	}
	if e.Playing() {
		t.Error("migration must not start playback on its own")
	}
	g := e.Global()
	assertNear(t, "migrated speed", g.SpeedPercent, 100)
	assertNear(t, "migrated factor", g.TimeFactorPercent, 100)
}

func TestTileMotionRejectsInvalidRecipes(t *testing.T) {
	e, _, _, _ := newTileMotionFixture(t)
	bad := TileMotionConfig{
		Enabled: true,
		Mode:    TileModeTransform,
		Motion:  TileMotionSpec{Type: "spiral"},
	}
	if e.SetTileMotion("hub", bad) {
		t.Fatal("unknown motion type accepted")
	}
	if _, ok := e.TileMotion("hub"); ok {
		t.Fatal("rejected recipe was stored")
	}
	if e.SetTileMotion("", spinRecipe(1)) {
		t.Fatal("empty tile id accepted")
	}
}

func TestTileMotionContinuousRenderLease(t *testing.T) {
	e, _, h, advance := newTileMotionFixture(t)
	e.SetTileMotion("hub", spinRecipe(1))
	e.SetPlaying(true)

	e.Update(1)
	if len(h.frames.continuous) != 1 {
		t.Fatalf("render requests = %d, want 1", len(h.frames.continuous))
	}
	if h.frames.continuous[0] != tileMotionRenderLease {
		t.Errorf("lease = %v", h.frames.continuous[0])
	}

	e.Update(1)
	if len(h.frames.continuous) != 1 {
		t.Fatalf("lease renewed inside the renewal interval: %d", len(h.frames.continuous))
	}

	advance(1500 * time.Millisecond)
	e.Update(1)
	if len(h.frames.continuous) != 2 {
		t.Errorf("render requests = %d, want a renewal", len(h.frames.continuous))
	}
}

func TestTileMotionHostTileUpdateRebasesSprite(t *testing.T) {
	e, sc, h, _ := newTileMotionFixture(t)
	e.SetTileMotion("hub", spinRecipe(math.Pi/2))
	e.SetPlaying(true)
	e.Update(1)

	h.events.Emit(HookUpdateTile, TileDoc{ID: "hub", X: 500, Y: 100, Width: 40, Height: 40})
	e.Update(1)

	// The new document pose is the new base; the spin continues there.
	sp := sc.TileByID("hub")
	assertNear(t, "x after rebase", sp.X, 500)
	assertNear(t, "rotation after rebase", sp.Rotation, math.Pi)
}

func TestTileMotionReloadsOnSceneUpdate(t *testing.T) {
	e, _, h, _ := newTileMotionFixture(t)
	e.SetTileMotion("hub", spinRecipe(1))

	h.settings.values[tileMotionSettingsKey] = `{
		"version": 2,
		"global": {"playing": false, "speedPercent": 100, "timeFactorPercent": 100},
		"tiles": {"belt": {"enabled": true, "mode": "texture", "textureMotion": {"scrollU": 1}}}
	}`
	h.events.Emit(HookUpdateScene, nil)
	e.Update(0)

	if _, ok := e.TileMotion("hub"); ok {
		t.Error("stale local recipe survived the reload")
	}
	cfg, ok := e.TileMotion("belt")
	if !ok {
		t.Fatal("reload missed the host's new recipe")
	}
	if cfg.Mode != TileModeTexture {
		t.Errorf("mode = %q", cfg.Mode)
	}
	assertNear(t, "scroll u", cfg.TextureMotion.ScrollU, 1)
}

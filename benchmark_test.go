package mapshine

import (
	"fmt"
	"math"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

// Sinks keep the optimizer from discarding pure-math benchmark bodies.
var (
	benchSinkF float64
	benchSinkM [6]float64
	benchSinkB bool
)

// newBenchComposer mirrors newTestComposer for benchmark use.
func newBenchComposer(b *testing.B) (*EffectComposer, *fakeHost) {
	b.Helper()
	h := newFakeHost()
	h.textures.images["maps/keep.webp"] = newTestImage(64, 48, Color{0.2, 0.3, 0.1, 1})
	sc := NewSceneComposer(h)
	ec := NewEffectComposer(sc, h)
	b.Cleanup(func() {
		ec.Dispose()
		sc.Dispose()
	})
	return ec, h
}

func benchPolygon(n int, radius float64) []Vec2 {
	pts := make([]Vec2, 0, n)
	for i := 0; i < n; i++ {
		a := float64(i) / float64(n) * 2 * math.Pi
		pts = append(pts, Vec2{X: 200 + math.Cos(a)*radius, Y: 150 + math.Sin(a)*radius})
	}
	return pts
}

// --- Noise Benchmarks ---

func BenchmarkValueNoise2D(b *testing.B) {
	b.ReportAllocs()
	sum := 0.0
	for i := 0; i < b.N; i++ {
		sum += valueNoise2D(float64(i)*0.17, float64(i)*0.31)
	}
	benchSinkF = sum
}

func BenchmarkFBM2D_4Octaves(b *testing.B) {
	b.ReportAllocs()
	sum := 0.0
	for i := 0; i < b.N; i++ {
		sum += fbm2D(float64(i)*0.05, float64(i)*0.07, 4)
	}
	benchSinkF = sum
}

// --- Affine Benchmarks ---

func BenchmarkComposeAffine(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		benchSinkM = composeAffine(float64(i), 20, 0.3, 1.5, 1.5, 16, 16)
	}
}

func BenchmarkMultiplyAffine(b *testing.B) {
	p := composeAffine(10, 20, 0.3, 1.5, 1.5, 16, 16)
	c := composeAffine(5, -3, -0.1, 1, 1, 8, 8)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		benchSinkM = multiplyAffine(p, c)
	}
}

func BenchmarkInvertAffine(b *testing.B) {
	m := composeAffine(10, 20, 0.3, 1.5, 1.5, 16, 16)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		benchSinkM = invertAffine(m)
	}
}

// --- Geometry Benchmarks ---

func BenchmarkAppendPolygonFan_64(b *testing.B) {
	poly := benchPolygon(64, 120)
	verts := make([]ebiten.Vertex, 0, 256)
	inds := make([]uint16, 0, 1024)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		verts, inds = appendPolygonFan(verts[:0], inds[:0], poly)
	}
}

func BenchmarkAppendRing_48Segments(b *testing.B) {
	verts := make([]ebiten.Vertex, 0, 256)
	inds := make([]uint16, 0, 1024)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		verts, inds = appendRing(verts[:0], inds[:0], 200, 150, 80, 6, 48)
	}
}

func BenchmarkPointInPolygon_24(b *testing.B) {
	poly := benchPolygon(24, 120)
	b.ResetTimer()
	b.ReportAllocs()
	hit := false
	for i := 0; i < b.N; i++ {
		hit = pointInPolygon(Vec2{X: float64(i % 400), Y: 150}, poly)
	}
	benchSinkB = hit
}

// --- Swarm Benchmarks ---

// benchSwarmSetup registers a swarm over one bound area and fills the
// pool to capacity, then stops spawning so iterations measure steady
// state.
func benchSwarmSetup(b *testing.B, maxParticles int) (*SwarmEffect, *FrameContext) {
	b.Helper()
	ec, h := newBenchComposer(b)
	h.events.Emit(HookCanvasReady, nil)

	points := NewMapPointsStore(h)
	b.Cleanup(points.Dispose)
	points.CreateGroup(MapPointGroup{
		ID:             "bench-area",
		Type:           GroupTypeArea,
		IsEffectSource: true,
		EffectTarget:   EffectTargetSwarm,
		Points:         benchPolygon(8, 100),
	})

	params := FireflySwarmParams()
	params.MaxParticles = maxParticles
	params.EmitRate = 100000 // fill the pool fast
	params.Lifetime = Range{Min: 600, Max: 600}
	sw := NewSwarmEffect(points, params)
	if err := ec.Register(sw); err != nil {
		b.Fatal(err)
	}

	ctx := &FrameContext{Time: TimeInfo{DeltaSec: 1.0 / 60}}
	ctx.Env.WindDir = Vec2{X: 1}
	ctx.Env.WindSpeed = 0.4

	for sw.AliveCount() < maxParticles {
		if err := sw.Update(ctx); err != nil {
			b.Fatal(err)
		}
	}
	sw.Params().EmitRate = 0
	return sw, ctx
}

func benchSwarmUpdate(b *testing.B, maxParticles int) {
	sw, ctx := benchSwarmSetup(b, maxParticles)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := sw.Update(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSwarmUpdate_256Particles(b *testing.B) { benchSwarmUpdate(b, 256) }

func BenchmarkSwarmUpdate_4096Particles(b *testing.B) { benchSwarmUpdate(b, 4096) }

func BenchmarkSwarmDraw_4096Particles(b *testing.B) {
	sw, ctx := benchSwarmSetup(b, 4096)
	dst := ebiten.NewImage(640, 480)

	if err := sw.DrawSurface(ctx, dst, GlobalFloor); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := sw.DrawSurface(ctx, dst, GlobalFloor); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Tile Motion Benchmarks ---

func BenchmarkTileMotionUpdate_100Tiles(b *testing.B) {
	h := newFakeHost()
	h.textures.images["maps/keep.webp"] = newTestImage(64, 48, Color{0.2, 0.3, 0.1, 1})
	h.textures.images["tiles/crate.webp"] = newTestImage(16, 16, ColorWhite)
	for i := 0; i < 100; i++ {
		h.tiles = append(h.tiles, TileDoc{
			ID:         fmt.Sprintf("tile-%d", i),
			X:          float64(i%10) * 30,
			Y:          float64(i/10) * 30,
			Width:      16,
			Height:     16,
			Alpha:      1,
			TextureSrc: "tiles/crate.webp",
		})
	}
	sc := NewSceneComposer(h)
	b.Cleanup(sc.Dispose)
	h.events.Emit(HookCanvasReady, nil)

	engine := NewTileMotionEngine(h, sc)
	b.Cleanup(engine.Dispose)
	for i := 0; i < 100; i++ {
		engine.SetTileMotion(fmt.Sprintf("tile-%d", i), TileMotionConfig{
			Enabled: true,
			Mode:    TileModeTransform,
			Motion:  TileMotionSpec{Type: TileMotionRotation, Speed: 0.5},
		})
	}
	engine.SetPlaying(true)

	engine.Update(1.0 / 60)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		engine.Update(1.0 / 60)
	}
}

// --- Frame Benchmarks ---

type benchEffect struct {
	desc EffectDescriptor
}

func (e *benchEffect) Descriptor() EffectDescriptor { return e.desc }

func (e *benchEffect) Initialize(*EffectComposer) error { return nil }

func (e *benchEffect) Update(*FrameContext) error { return nil }

func (e *benchEffect) Resize(int, int) {}

func (e *benchEffect) Dispose() {}

type benchSurfaceEffect struct {
	benchEffect
}

func (e *benchSurfaceEffect) DrawSurface(*FrameContext, *ebiten.Image, int) error { return nil }

type benchPostEffect struct {
	benchEffect
}

func (e *benchPostEffect) Apply(*FrameContext, *ebiten.Image, *ebiten.Image) (bool, error) {
	return false, nil
}

func BenchmarkRenderFrame_Bare(b *testing.B) {
	ec, h := newBenchComposer(b)
	h.events.Emit(HookCanvasReady, nil)
	screen := ebiten.NewImage(640, 480)

	ec.RenderFrame(screen, 1.0/60) // warmup sizes the buffers

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ec.RenderFrame(screen, 1.0/60)
	}
}

func BenchmarkRenderFrame_18NoopEffects(b *testing.B) {
	ec, h := newBenchComposer(b)
	h.events.Emit(HookCanvasReady, nil)
	for i := 0; i < 6; i++ {
		effects := []Effect{
			&benchEffect{desc: EffectDescriptor{
				ID: fmt.Sprintf("env-%d", i), Bucket: LayerEnvironmental, DefaultPriority: i,
			}},
			&benchSurfaceEffect{benchEffect: benchEffect{desc: EffectDescriptor{
				ID: fmt.Sprintf("surf-%d", i), Bucket: LayerSurface, DefaultPriority: i,
			}}},
			&benchPostEffect{benchEffect: benchEffect{desc: EffectDescriptor{
				ID: fmt.Sprintf("post-%d", i), Bucket: LayerPost, DefaultPriority: i,
			}}},
		}
		for _, e := range effects {
			if err := ec.Register(e); err != nil {
				b.Fatal(err)
			}
		}
	}
	screen := ebiten.NewImage(640, 480)
	ec.RenderFrame(screen, 1.0/60)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ec.RenderFrame(screen, 1.0/60)
	}
}

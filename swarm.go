package mapshine

import (
	"math"
	"math/rand/v2"

	"github.com/hajimehoshi/ebiten/v2"
)

// --- swarm constants ---

const (
	swarmSpriteSize  = 16
	swarmSpriteGamma = 2.0

	// swarmWindSpeed converts the environment's normalized wind speed to
	// pixels per second at full response.
	swarmWindSpeed = 60.0

	// swarmWindRelax is the velocity relaxation rate toward the wind.
	swarmWindRelax = 2.0

	swarmFadeInFrac  = 0.1
	swarmFadeOutFrac = 0.3
)

// SwarmPreset names a built-in particle look.
type SwarmPreset string

const (
	SwarmFireflies SwarmPreset = "fireflies"
	SwarmEmbers    SwarmPreset = "embers"
)

// SwarmParams tunes the emitter. Zero MaxParticles falls back to the pool
// default; rates and ranges may be edited live through Params.
type SwarmParams struct {
	Preset        SwarmPreset
	MaxParticles  int
	EmitRate      float64 // particles per second across all bound areas
	Lifetime      Range   // seconds
	Speed         Range   // initial speed, pixels per second
	Size          Range   // radius, world pixels
	Gravity       Vec2    // constant acceleration, pixels per second squared
	WindResponse  float64 // [0, 1] how strongly wind drags particles
	DriftStrength float64 // noise wander acceleration, pixels per second squared
	StartColor    Color
	EndColor      Color
}

// FireflySwarmParams is a slow warm-green wander for night scenes.
func FireflySwarmParams() SwarmParams {
	return SwarmParams{
		Preset:        SwarmFireflies,
		MaxParticles:  256,
		EmitRate:      12,
		Lifetime:      Range{Min: 2.5, Max: 6},
		Speed:         Range{Min: 4, Max: 14},
		Size:          Range{Min: 1.5, Max: 3},
		WindResponse:  0.35,
		DriftStrength: 18,
		StartColor:    Color{R: 0.78, G: 1, B: 0.45, A: 1},
		EndColor:      Color{R: 0.55, G: 0.85, B: 0.3, A: 1},
	}
}

// EmberSwarmParams is a fast orange rise that leans into the wind.
func EmberSwarmParams() SwarmParams {
	return SwarmParams{
		Preset:        SwarmEmbers,
		MaxParticles:  192,
		EmitRate:      20,
		Lifetime:      Range{Min: 1, Max: 2.5},
		Speed:         Range{Min: 10, Max: 30},
		Size:          Range{Min: 1, Max: 2.5},
		Gravity:       Vec2{Y: -22},
		WindResponse:  0.8,
		DriftStrength: 10,
		StartColor:    Color{R: 1, G: 0.58, B: 0.2, A: 1},
		EndColor:      Color{R: 0.55, G: 0.12, B: 0.05, A: 1},
	}
}

// swarmParticle holds per-particle simulation state.
type swarmParticle struct {
	x, y    float64
	vx, vy  float64
	life    float64
	maxLife float64
	seed    float64
	size    float64
	colorR  float32
	colorG  float32
	colorB  float32
	alpha   float32
}

// SwarmEffect is a CPU particle emitter fed by the map-point area groups
// bound to the swarm target. Spawns pick a bound area uniformly and a
// point inside it; simulation applies gravity, wind drag, and a value
// noise wander, then one additive triangle batch draws every particle
// over a shared glow sprite.
type SwarmEffect struct {
	composer *EffectComposer
	points   *MapPointsStore

	params SwarmParams

	pool      []swarmParticle
	alive     int
	emitAccum float64
	seedTick  float64

	areas      []MapPointGroup
	areasDirty bool

	sprite *ebiten.Image
	verts  []ebiten.Vertex
	inds   []uint16

	offs []func()
}

// NewSwarmEffect creates a swarm emitter over the given store. The store
// may be nil; the emitter then idles until recreated with one.
func NewSwarmEffect(points *MapPointsStore, params SwarmParams) *SwarmEffect {
	if params.MaxParticles <= 0 {
		params.MaxParticles = 128
	}
	return &SwarmEffect{points: points, params: params}
}

func (e *SwarmEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:                "swarm",
		Bucket:            LayerSurface,
		Tier:              TierMedium,
		FloorScope:        FloorScopeGlobal,
		DefaultPriority:   25,
		SupportsEnabled:   true,
		SupportsIntensity: true,
	}
}

func (e *SwarmEffect) Initialize(ec *EffectComposer) error {
	e.composer = ec
	e.pool = make([]swarmParticle, e.params.MaxParticles)
	e.sprite = generateFalloffDisc(swarmSpriteSize, swarmSpriteGamma, false)
	e.areasDirty = true
	if e.points != nil {
		e.offs = append(e.offs, e.points.Subscribe(func(MapPointsEvent) {
			e.areasDirty = true
		}))
	}
	return nil
}

// Params returns the live tuning block.
func (e *SwarmEffect) Params() *SwarmParams { return &e.params }

// AliveCount returns the number of live particles.
func (e *SwarmEffect) AliveCount() int { return e.alive }

// Reset kills every particle and clears the spawn accumulator.
func (e *SwarmEffect) Reset() {
	e.alive = 0
	e.emitAccum = 0
}

// Deactivate drops all particles when the effect is switched off, so
// re-enabling starts clean instead of resuming a stale cloud.
func (e *SwarmEffect) Deactivate() { e.Reset() }

func (e *SwarmEffect) Update(ctx *FrameContext) error {
	dt := ctx.Time.DeltaSec
	if dt <= 0 {
		return nil
	}
	if e.areasDirty {
		e.areasDirty = false
		e.rebuildAreas()
	}

	env := &ctx.Env
	windX := env.WindDir.X * env.WindSpeed * swarmWindSpeed
	windY := env.WindDir.Y * env.WindSpeed * swarmWindSpeed
	drag := min(swarmWindRelax*dt, 1) * e.params.WindResponse
	gx := e.params.Gravity.X * dt
	gy := e.params.Gravity.Y * dt

	i := 0
	for i < e.alive {
		p := &e.pool[i]
		p.life -= dt
		if p.life <= 0 {
			e.alive--
			e.pool[i] = e.pool[e.alive]
			continue
		}

		age := p.maxLife - p.life
		wander := 2 * math.Pi * valueNoise2D(p.seed, age*0.5)
		p.vx += gx + math.Cos(wander)*e.params.DriftStrength*dt
		p.vy += gy + math.Sin(wander)*e.params.DriftStrength*dt
		p.vx += (windX - p.vx) * drag
		p.vy += (windY - p.vy) * drag

		p.x += p.vx * dt
		p.y += p.vy * dt

		t := 1 - p.life/p.maxLife
		p.colorR = lerp32(float32(e.params.StartColor.R), float32(e.params.EndColor.R), float32(t))
		p.colorG = lerp32(float32(e.params.StartColor.G), float32(e.params.EndColor.G), float32(t))
		p.colorB = lerp32(float32(e.params.StartColor.B), float32(e.params.EndColor.B), float32(t))
		p.alpha = float32(swarmEnvelope(age, p.life, p.maxLife))

		i++
	}

	if len(e.areas) > 0 && e.params.EmitRate > 0 {
		e.emitAccum += e.params.EmitRate * dt
		for e.emitAccum >= 1 {
			e.emitAccum -= 1
			if e.alive < len(e.pool) {
				e.spawn()
			}
		}
	}
	return nil
}

// swarmEnvelope fades a particle in over the first fraction of its life
// and out over the last.
func swarmEnvelope(age, life, maxLife float64) float64 {
	in := clamp01(age / (swarmFadeInFrac * maxLife))
	out := clamp01(life / (swarmFadeOutFrac * maxLife))
	return in * out
}

// spawn initializes the particle at slot alive and increments alive.
func (e *SwarmEffect) spawn() {
	area := e.areas[rand.IntN(len(e.areas))]
	pos, ok := randomPointInPolygon(area.Points)
	if !ok {
		return
	}

	p := &e.pool[e.alive]
	angle := Range{Max: 2 * math.Pi}.Random()
	speed := e.params.Speed.Random()
	p.x = pos.X
	p.y = pos.Y
	p.vx = math.Cos(angle) * speed
	p.vy = math.Sin(angle) * speed

	p.life = e.params.Lifetime.Random()
	if p.life <= 0 {
		p.life = 1
	}
	p.maxLife = p.life

	e.seedTick++
	p.seed = hash11(e.seedTick) * 1024
	p.size = e.params.Size.Random()
	p.colorR = float32(e.params.StartColor.R)
	p.colorG = float32(e.params.StartColor.G)
	p.colorB = float32(e.params.StartColor.B)
	p.alpha = 0

	e.alive++
}

// rebuildAreas snapshots the area groups bound to the swarm target.
// Spawning stops while no areas are bound; live particles finish out.
func (e *SwarmEffect) rebuildAreas() {
	e.areas = e.areas[:0]
	if e.points == nil {
		return
	}
	e.areas = append(e.areas, e.points.AreasForEffect(EffectTargetSwarm)...)
}

func (e *SwarmEffect) DrawSurface(_ *FrameContext, dst *ebiten.Image, _ int) error {
	if e.alive == 0 {
		return nil
	}
	scene := e.composer.Scene()
	if scene == nil || scene.Scene() == nil {
		return nil
	}
	cam := scene.Camera()

	e.verts = e.verts[:0]
	e.inds = e.inds[:0]
	for i := 0; i < e.alive; i++ {
		p := &e.pool[i]
		if p.alpha <= 0 {
			continue
		}
		sx, sy := cam.WorldToScreen(p.x, p.y)
		r := float32(p.size * cam.Zoom)
		base := uint16(len(e.verts))
		for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			e.verts = append(e.verts, ebiten.Vertex{
				DstX: float32(sx) + c[0]*r, DstY: float32(sy) + c[1]*r,
				SrcX:   (c[0] + 1) / 2 * swarmSpriteSize,
				SrcY:   (c[1] + 1) / 2 * swarmSpriteSize,
				ColorR: p.colorR, ColorG: p.colorG, ColorB: p.colorB, ColorA: p.alpha,
			})
		}
		e.inds = append(e.inds, base, base+1, base+2, base, base+2, base+3)
	}
	if len(e.inds) == 0 {
		return nil
	}
	op := &ebiten.DrawTrianglesOptions{Blend: ebiten.BlendLighter}
	dst.DrawTriangles(e.verts, e.inds, e.sprite, op)
	return nil
}

func (e *SwarmEffect) Resize(int, int) {}

func (e *SwarmEffect) Dispose() {
	for _, off := range e.offs {
		off()
	}
	e.offs = nil
	e.pool = nil
	e.alive = 0
	e.verts = nil
	e.inds = nil
	if e.sprite != nil {
		e.sprite.Dispose()
		e.sprite = nil
	}
}

package mapshine

import (
	"math"
	"math/rand/v2"

	"github.com/hajimehoshi/ebiten/v2"
)

// Lightning pool and geometry limits.
const (
	lightningPoolMax    = 12
	lightningDropFactor = 0.45 // sky origin height as a share of the scene rect
	lightningWindLean   = 0.25 // horizontal lean of dropped strikes per wind unit
)

// lightningTint is the cold core color of the ribbon.
var lightningTint = [3]float64{0.88, 0.94, 1.0}

// LightningParams are the authorable storm parameters. Delays are in
// environment seconds, so the shared time scale stretches storms too.
type LightningParams struct {
	MinDelaySec    float64
	MaxDelaySec    float64
	BurstMin       int
	BurstMax       int
	StrikeDelaySec float64
	StrikeLifeSec  float64

	WidthPx     float64
	Segments    int
	MacroJitter float64
	MicroJitter float64

	BranchChance   float64
	FlashAttackSec float64
	FlashDecaySec  float64
	FlashPeak      float64
}

// DefaultLightningParams returns the tuning shipped with the module.
func DefaultLightningParams() LightningParams {
	return LightningParams{
		MinDelaySec:    4,
		MaxDelaySec:    11,
		BurstMin:       1,
		BurstMax:       3,
		StrikeDelaySec: 0.12,
		StrikeLifeSec:  0.28,
		WidthPx:        3,
		Segments:       22,
		MacroJitter:    46,
		MicroJitter:    7,
		BranchChance:   0.6,
		FlashAttackSec: 0.04,
		FlashDecaySec:  0.45,
		FlashPeak:      1,
	}
}

// branchPreset scales a side branch relative to its parent bolt.
type branchPreset struct {
	length    float64
	width     float64
	intensity float64
}

var lightningBranchPresets = [...]branchPreset{
	{length: 0.45, width: 0.6, intensity: 0.7},
	{length: 0.3, width: 0.45, intensity: 0.55},
	{length: 0.2, width: 0.35, intensity: 0.4},
}

// lightningBolt is one jittered polyline with its ribbon parameters.
// Point buffers are reused across pool generations.
type lightningBolt struct {
	points    []Vec2
	width     float64
	intensity float64
}

// lightningStrike is a pool entry: the main bolt, its branches, and the
// timing that drives both the ribbon fade and the flash envelope.
type lightningStrike struct {
	active   bool
	bornSec  float64
	lifeSec  float64
	main     lightningBolt
	branches [len(lightningBranchPresets)]lightningBolt
	branched int
	target   Vec2
	dir      Vec2
}

type lightningPhase int

const (
	lightningIdle lightningPhase = iota
	lightningPendingBurst
	lightningBurstActive
)

// LightningEffect schedules storm bursts over the strike endpoints
// authored in the map points store: line groups arc between their
// segment endpoints, point groups are hit from a sky origin upwind.
// Each strike is a seeded quadratic-Bezier polyline with macro and
// micro displacement plus preset-scaled branches, drawn as additive
// screen-space ribbons, while a shared flash envelope feeds the
// environment value the lighting composite boosts outdoors with.
type LightningEffect struct {
	composer *EffectComposer
	points   *MapPointsStore
	params   LightningParams

	phase        lightningPhase
	nextBurstAt  float64
	nextStrikeAt float64
	strikesLeft  int

	segments        [][2]Vec2
	targets         []Vec2
	candidatesDirty bool

	pool    []*lightningStrike
	lastUV  Vec2
	lastDir Vec2
	flash   float64

	verts     []ebiten.Vertex
	inds      []uint16
	screenBuf []Vec2
	offs      []func()
}

func NewLightningEffect(points *MapPointsStore) *LightningEffect {
	return &LightningEffect{points: points, params: DefaultLightningParams()}
}

func (e *LightningEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:                "lightning",
		Bucket:            LayerSurface,
		Tier:              TierMedium,
		FloorScope:        FloorScopeGlobal,
		DefaultPriority:   30,
		SupportsEnabled:   true,
		SupportsIntensity: true,
	}
}

func (e *LightningEffect) Initialize(ec *EffectComposer) error {
	e.composer = ec
	e.candidatesDirty = true
	if e.points != nil {
		e.offs = append(e.offs, e.points.Subscribe(func(MapPointsEvent) {
			e.candidatesDirty = true
		}))
	}
	return nil
}

func (e *LightningEffect) Params() LightningParams { return e.params }

func (e *LightningEffect) SetParams(p LightningParams) { e.params = p }

func (e *LightningEffect) Update(ctx *FrameContext) error {
	if e.candidatesDirty {
		e.rebuildCandidates()
		e.candidatesDirty = false
	}
	now := ctx.Env.ElapsedSec
	e.step(now, ctx)
	e.driveFlash(now)
	return nil
}

func (e *LightningEffect) rebuildCandidates() {
	e.segments = e.segments[:0]
	e.targets = e.targets[:0]
	if e.points == nil {
		return
	}
	e.segments = append(e.segments, e.points.LinesForEffect(EffectTargetLightning)...)
	e.targets = append(e.targets, e.points.PointsForEffect(EffectTargetLightning)...)
}

// step advances the burst scheduler: idle schedules the next burst gap,
// a pending burst waits it out, an active burst spaces its strikes.
func (e *LightningEffect) step(now float64, ctx *FrameContext) {
	if len(e.segments)+len(e.targets) == 0 {
		return
	}
	switch e.phase {
	case lightningIdle:
		spread := e.params.MaxDelaySec - e.params.MinDelaySec
		if spread < 0 {
			spread = 0
		}
		e.nextBurstAt = now + e.params.MinDelaySec + rand.Float64()*spread
		e.phase = lightningPendingBurst
	case lightningPendingBurst:
		if now >= e.nextBurstAt {
			e.strikesLeft = e.burstSize()
			e.nextStrikeAt = now
			e.phase = lightningBurstActive
		}
	case lightningBurstActive:
		if e.strikesLeft <= 0 {
			e.phase = lightningIdle
			return
		}
		if now >= e.nextStrikeAt {
			e.spawnStrike(now, ctx)
			e.strikesLeft--
			e.nextStrikeAt = now + e.params.StrikeDelaySec
		}
	}
}

func (e *LightningEffect) burstSize() int {
	lo, hi := e.params.BurstMin, e.params.BurstMax
	if hi < lo {
		hi = lo
	}
	n := lo
	if hi > lo {
		n += rand.IntN(hi - lo + 1)
	}
	if n < 1 {
		n = 1
	}
	return n
}

// spawnStrike picks an endpoint candidate, builds the seeded bolt and
// its branches into a pool entry, and records the strike geometry the
// environment exposes.
func (e *LightningEffect) spawnStrike(now float64, ctx *FrameContext) {
	total := len(e.segments) + len(e.targets)
	if total == 0 {
		return
	}
	idx := rand.IntN(total)
	var a, b Vec2
	if idx < len(e.segments) {
		seg := e.segments[idx]
		a, b = seg[0], seg[1]
	} else {
		b = e.targets[idx-len(e.segments)]
		a = e.skyOrigin(b, ctx)
	}
	b.X += (rand.Float64() - 0.5) * e.params.MacroJitter

	s := e.acquire()
	s.active = true
	s.bornSec = now
	s.lifeSec = e.params.StrikeLifeSec * (0.85 + rand.Float64()*0.3)
	s.target = b
	dx, dy := b.X-a.X, b.Y-a.Y
	if n := math.Hypot(dx, dy); n > 1e-6 {
		s.dir = Vec2{X: dx / n, Y: dy / n}
	} else {
		s.dir = Vec2{X: 0, Y: 1}
	}

	seed := rand.Float64() * 1000
	s.main.width = e.params.WidthPx
	s.main.intensity = 1
	buildBolt(&s.main, a, b, seed, e.params.Segments, e.params.MacroJitter, e.params.MicroJitter)

	s.branched = 0
	for pi, preset := range lightningBranchPresets {
		if rand.Float64() >= e.params.BranchChance {
			continue
		}
		br := &s.branches[s.branched]
		br.width = e.params.WidthPx * preset.width
		br.intensity = preset.intensity
		e.buildBranch(br, s, seed+float64(pi+1)*17.3, preset)
		if len(br.points) >= 2 {
			s.branched++
		}
	}

	e.lastUV = e.strikeUV(b)
	e.lastDir = s.dir
}

// skyOrigin places the start of a dropped strike above the target,
// leaning with the wind.
func (e *LightningEffect) skyOrigin(target Vec2, ctx *FrameContext) Vec2 {
	h := 600.0
	if frame := e.composer.Scene().Frame(); frame != nil {
		if r := frame.SceneRect(); r.Height > 0 {
			h = r.Height * lightningDropFactor
		}
	}
	lean := 0.0
	if ctx != nil {
		lean = ctx.Env.WindDir.X * ctx.Env.WindSpeed * lightningWindLean * h
	}
	return Vec2{X: target.X - lean, Y: target.Y - h}
}

func (e *LightningEffect) strikeUV(p Vec2) Vec2 {
	if frame := e.composer.Scene().Frame(); frame != nil {
		if r := frame.SceneRect(); r.Width > 0 && r.Height > 0 {
			return Vec2{
				X: clamp01((p.X - r.X) / r.Width),
				Y: clamp01((p.Y - r.Y) / r.Height),
			}
		}
	}
	return Vec2{}
}

// buildBolt tessellates a seeded bolt from a to b: a quadratic Bezier
// whose control point bows perpendicular to the chord, then per-vertex
// macro displacement from value noise and micro jitter from the hash,
// both pinned to zero at the endpoints. The same seed rebuilds the same
// bolt.
func buildBolt(bolt *lightningBolt, a, b Vec2, seed float64, segs int, macro, micro float64) {
	if segs < 2 {
		segs = 2
	}
	length := math.Hypot(b.X-a.X, b.Y-a.Y)
	px, py := perpendicular(a, b)
	bow := (hash11(seed) - 0.5) * 0.5 * length
	ctrl := Vec2{
		X: (a.X+b.X)/2 + px*bow,
		Y: (a.Y+b.Y)/2 + py*bow,
	}
	bolt.points = quadBezierPoints(bolt.points[:0], a, ctrl, b, segs)

	n := len(bolt.points)
	for i := 1; i < n-1; i++ {
		t := float64(i) / float64(n-1)
		pin := math.Sin(math.Pi * t)
		m := (valueNoise2D(seed+float64(i)*0.37, seed*0.61) - 0.5) * 2 * macro
		j := (hash21(seed, float64(i)) - 0.5) * 2 * micro
		off := (m + j) * pin
		bolt.points[i].X += px * off
		bolt.points[i].Y += py * off
	}
}

// buildBranch grows a preset-scaled side bolt from an interior vertex of
// the parent, angled off the local direction.
func (e *LightningEffect) buildBranch(br *lightningBolt, s *lightningStrike, seed float64, preset branchPreset) {
	pts := s.main.points
	n := len(pts)
	if n < 4 {
		br.points = br.points[:0]
		return
	}
	lo := n / 4
	hi := 3 * n / 4
	i := lo + int(hash11(seed*1.7)*float64(hi-lo))
	start := pts[i]

	dx, dy := pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y
	ang := math.Atan2(dy, dx)
	side := 1.0
	if hash11(seed*2.3) < 0.5 {
		side = -1
	}
	ang += side * (0.35 + hash11(seed*3.1)*0.6)

	length := math.Hypot(s.target.X-start.X, s.target.Y-start.Y) * preset.length
	end := Vec2{X: start.X + math.Cos(ang)*length, Y: start.Y + math.Sin(ang)*length}
	segs := e.params.Segments / 2
	if segs < 2 {
		segs = 2
	}
	buildBolt(br, start, end, seed, segs, e.params.MacroJitter*preset.length, e.params.MicroJitter*0.5)
}

// acquire returns an inactive pool entry, growing the pool up to its cap
// and stealing the oldest strike beyond it.
func (e *LightningEffect) acquire() *lightningStrike {
	for _, s := range e.pool {
		if !s.active {
			return s
		}
	}
	if len(e.pool) < lightningPoolMax {
		s := &lightningStrike{}
		e.pool = append(e.pool, s)
		return s
	}
	oldest := e.pool[0]
	for _, s := range e.pool[1:] {
		if s.bornSec < oldest.bornSec {
			oldest = s
		}
	}
	return oldest
}

// driveFlash aggregates the per-strike envelopes into the shared
// environment flash: linear attack, pow-curve decay, max over strikes,
// flickered by the deterministic hash so collaborators stay in sync.
func (e *LightningEffect) driveFlash(now float64) {
	attack := e.params.FlashAttackSec
	decay := e.params.FlashDecaySec
	peak := 0.0
	for _, s := range e.pool {
		if !s.active {
			continue
		}
		t := now - s.bornSec
		if t >= s.lifeSec && t >= attack+decay {
			s.active = false
			continue
		}
		v := flashEnvelope(t, attack, decay)
		if v > peak {
			peak = v
		}
	}
	flash := clamp01(peak * e.params.FlashPeak)
	if flash > 0 {
		flick := 0.75 + 0.25*hash11(math.Floor(now*40))
		flash *= flick
	}
	e.flash = flash
	e.composer.Env().SetLightningFlash(flash, e.lastUV, e.lastDir, now)
}

// flashEnvelope is the attack-then-decay curve of one strike.
func flashEnvelope(t, attack, decay float64) float64 {
	if t < 0 {
		return 0
	}
	if attack > 0 && t < attack {
		return t / attack
	}
	if decay <= 0 {
		return 0
	}
	u := (t - attack) / decay
	if u >= 1 {
		return 0
	}
	return math.Pow(1-u, 2.2)
}

func (e *LightningEffect) DrawSurface(ctx *FrameContext, dst *ebiten.Image, floor int) error {
	now := ctx.Env.ElapsedSec
	cam := e.composer.Scene().Camera()
	e.verts = e.verts[:0]
	e.inds = e.inds[:0]
	for _, s := range e.pool {
		if !s.active {
			continue
		}
		lifeT := (now - s.bornSec) / s.lifeSec
		if lifeT < 0 || lifeT >= 1 {
			continue
		}
		fade := math.Pow(1-lifeT, 1.4)
		e.appendBolt(&s.main, cam, fade*s.main.intensity)
		for i := 0; i < s.branched; i++ {
			e.appendBolt(&s.branches[i], cam, fade*s.branches[i].intensity)
		}
	}
	if len(e.inds) == 0 {
		return nil
	}
	op := &ebiten.DrawTrianglesOptions{Blend: ebiten.BlendLighter, AntiAlias: true}
	dst.DrawTriangles(e.verts, e.inds, WhitePixel, op)
	return nil
}

// appendBolt projects a world polyline to screen space and ribbons it at
// its pixel width, so zoom never changes the perceived thickness.
func (e *LightningEffect) appendBolt(b *lightningBolt, cam *Camera, brightness float64) {
	if len(b.points) < 2 || brightness <= 0 {
		return
	}
	e.screenBuf = e.screenBuf[:0]
	for _, p := range b.points {
		sx, sy := cam.WorldToScreen(p.X, p.Y)
		e.screenBuf = append(e.screenBuf, Vec2{X: sx, Y: sy})
	}
	start := len(e.verts)
	e.verts, e.inds = appendRibbon(e.verts, e.inds, e.screenBuf, b.width)
	for i := start; i < len(e.verts); i++ {
		v := &e.verts[i]
		v.ColorR = float32(lightningTint[0] * brightness)
		v.ColorG = float32(lightningTint[1] * brightness)
		v.ColorB = float32(lightningTint[2] * brightness)
		v.ColorA = 1
	}
}

// Flash returns the current envelope value, mostly for tests and the HUD.
func (e *LightningEffect) Flash() float64 { return e.flash }

// ActiveStrikes counts live pool entries.
func (e *LightningEffect) ActiveStrikes() int {
	n := 0
	for _, s := range e.pool {
		if s.active {
			n++
		}
	}
	return n
}

// Deactivate retires every pool entry and zeroes the shared flash. The
// composer calls it when the effect is switched off mid-storm.
func (e *LightningEffect) Deactivate() {
	for _, s := range e.pool {
		s.active = false
	}
	e.phase = lightningIdle
	e.flash = 0
	if e.composer != nil {
		e.composer.Env().SetLightningFlash(0, e.lastUV, e.lastDir, 0)
	}
}

func (e *LightningEffect) Resize(int, int) {}

func (e *LightningEffect) Dispose() {
	e.Deactivate()
	for _, off := range e.offs {
		off()
	}
	e.offs = nil
	e.pool = nil
}

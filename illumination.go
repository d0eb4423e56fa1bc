package mapshine

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

const (
	// illuminationRadiusSquares is the reach of an emission point in grid
	// squares. The emission record carries intensity and falloff shape
	// but no radius, so every source shares this footprint.
	illuminationRadiusSquares = 3.0

	// illuminationCircleSize is the resolution of the cached falloff
	// discs. Stamps scale the disc to the on-screen diameter, so one
	// texture per falloff shape serves every zoom level.
	illuminationCircleSize = 256
)

// lightSource is one resolved emission point in world coordinates.
type lightSource struct {
	pos       Vec2
	radius    float64
	intensity float64
	gamma     float64
	hard      bool
}

// IlluminationEffect accumulates world-space light emission into a
// screen-resolution additive buffer published as TexLight. Sources are
// the point groups bound to the illumination effect target; each point
// becomes a feathered disc whose shape follows the group's emission
// falloff. The lighting composite samples the buffer per pixel, and
// IlluminationAt mirrors the same math on the CPU for overlay tinting.
type IlluminationEffect struct {
	composer *EffectComposer
	points   *MapPointsStore

	light        *RenderTarget
	sources      []lightSource
	sourcesDirty bool
	circles      map[int]*ebiten.Image
	imgOp        ebiten.DrawImageOptions
	offs         []func()
}

// NewIlluminationEffect creates the TexLight producer. The store may be
// nil, in which case the buffer stays dark until one is attached via a
// new effect instance.
func NewIlluminationEffect(points *MapPointsStore) *IlluminationEffect {
	return &IlluminationEffect{points: points}
}

func (e *IlluminationEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:                "illumination",
		Bucket:            LayerEnvironmental,
		Tier:              TierLow,
		DefaultPriority:   35,
		SupportsEnabled:   true,
		SupportsIntensity: true,
	}
}

func (e *IlluminationEffect) Initialize(ec *EffectComposer) error {
	e.composer = ec
	e.sourcesDirty = true
	if e.points != nil {
		e.offs = append(e.offs, e.points.Subscribe(func(MapPointsEvent) {
			e.sourcesDirty = true
		}))
	}
	return nil
}

func (e *IlluminationEffect) Update(ctx *FrameContext) error { return nil }

func (e *IlluminationEffect) PrePass(ctx *FrameContext) error {
	scene := e.composer.Scene()
	if scene == nil || scene.Scene() == nil {
		return nil
	}
	w, h := e.composer.ScreenSize()
	if w < 1 || h < 1 {
		return nil
	}
	e.ensureTarget(w, h)
	if e.sourcesDirty {
		e.rebuildSources()
		e.sourcesDirty = false
	}
	e.render(scene)
	e.composer.SetSharedTexture(TexLight, e.light.Image())
	return nil
}

// rebuildSources resolves the store's illumination groups into flat
// world-space sources. Non-point groups bound to the target are skipped;
// emission lines and areas have no defined center.
func (e *IlluminationEffect) rebuildSources() {
	e.sources = e.sources[:0]
	if e.points == nil {
		return
	}
	radius := illuminationRadiusSquares * 100
	if scene := e.composer.Scene().Scene(); scene != nil {
		if size := scene.Dimensions().Size; size > 0 {
			radius = illuminationRadiusSquares * size
		}
	}
	for _, g := range e.points.GroupsForEffect(EffectTargetIllumination) {
		if g.Type != GroupTypePoint {
			continue
		}
		intensity := clamp01(g.Emission.Intensity)
		if intensity <= 0 {
			continue
		}
		gamma, hard := falloffShape(g.Emission.Falloff)
		for _, p := range g.Points {
			e.sources = append(e.sources, lightSource{
				pos:       p,
				radius:    radius,
				intensity: intensity,
				gamma:     gamma,
				hard:      hard,
			})
		}
	}
}

// falloffShape maps an emission falloff record to a brightness exponent.
// Disabled falloff yields a hard disc; stronger falloff steepens the
// smoothstep so light dies off closer to the source.
func falloffShape(f EmissionFalloff) (gamma float64, hard bool) {
	if !f.Enabled {
		return 1, true
	}
	return 0.5 + 1.5*clamp01(f.Strength), false
}

// lightFalloff is the shared brightness curve: smoothstep over the
// normalized distance raised to the shape exponent. The cached circle
// textures and the CPU probe both evaluate it so they cannot disagree.
func lightFalloff(dist01, gamma float64, hard bool) float64 {
	if dist01 >= 1 {
		return 0
	}
	if hard {
		return 1
	}
	t := 1 - dist01
	a := t * t * (3 - 2*t)
	if gamma != 1 {
		a = math.Pow(a, gamma)
	}
	return a
}

func (e *IlluminationEffect) render(scene *SceneComposer) {
	e.light.Clear()
	if len(e.sources) == 0 {
		return
	}
	cam := scene.Camera()
	w, h := e.composer.ScreenSize()
	op := &e.imgOp
	for _, s := range e.sources {
		sx, sy := cam.WorldToScreen(s.pos.X, s.pos.Y)
		screenR := s.radius * cam.Zoom
		if screenR <= 0.5 {
			continue
		}
		if sx+screenR < 0 || sy+screenR < 0 || sx-screenR > float64(w) || sy-screenR > float64(h) {
			continue
		}
		img := e.circle(s.gamma, s.hard)
		d := screenR * 2
		src := float64(illuminationCircleSize)
		op.GeoM.Reset()
		op.GeoM.Scale(d/src, d/src)
		op.GeoM.Translate(sx-screenR, sy-screenR)
		op.ColorScale.Reset()
		i := float32(s.intensity)
		op.ColorScale.Scale(i, i, i, i)
		op.Blend = ebiten.BlendLighter
		op.Filter = ebiten.FilterLinear
		e.light.Image().DrawImage(img, op)
	}
}

// circle returns the cached falloff disc for a shape, generating it on
// first use. The key folds the hard flag in as a negative exponent.
func (e *IlluminationEffect) circle(gamma float64, hard bool) *ebiten.Image {
	key := int(math.Round(gamma * 16))
	if hard {
		key = -1
	}
	if img, ok := e.circles[key]; ok {
		return img
	}
	if e.circles == nil {
		e.circles = make(map[int]*ebiten.Image)
	}
	img := generateFalloffDisc(illuminationCircleSize, gamma, hard)
	e.circles[key] = img
	return img
}

// generateFalloffDisc writes a premultiplied white disc whose alpha
// follows lightFalloff over the normalized center distance.
func generateFalloffDisc(size int, gamma float64, hard bool) *ebiten.Image {
	img := ebiten.NewImage(size, size)
	pix := make([]byte, size*size*4)
	radius := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := float64(x) + 0.5 - radius
			dy := float64(y) + 0.5 - radius
			dist := math.Sqrt(dx*dx+dy*dy) / radius
			a := uint8(lightFalloff(dist, gamma, hard) * 255)
			off := (y*size + x) * 4
			pix[off+0] = a
			pix[off+1] = a
			pix[off+2] = a
			pix[off+3] = a
		}
	}
	img.WritePixels(pix)
	return img
}

// IlluminationAt samples the scene brightness at a world point without
// touching the GPU: ambient mixed by effective darkness plus the direct
// contribution of every source covering the point. Cast shadows and the
// lightning flash term are not modeled; callers use it as a tint, not
// as ground truth.
func (e *IlluminationEffect) IlluminationAt(p Vec2) Color {
	env := e.composer.Env().Snapshot()
	d := clamp01(env.DarknessLevel * (1 - env.LightningFlash))
	day, night := env.AmbientDaylight, env.AmbientDarkness
	r := day.R + (night.R-day.R)*d
	g := day.G + (night.G-day.G)*d
	b := day.B + (night.B-day.B)*d
	for _, s := range e.sources {
		dist := math.Hypot(p.X-s.pos.X, p.Y-s.pos.Y) / s.radius
		contrib := s.intensity * lightFalloff(dist, s.gamma, s.hard)
		r += contrib
		g += contrib
		b += contrib
	}
	return Color{R: clamp01(r), G: clamp01(g), B: clamp01(b), A: 1}
}

// Sources returns the resolved source count, mostly for diagnostics.
func (e *IlluminationEffect) Sources() int { return len(e.sources) }

func (e *IlluminationEffect) ensureTarget(w, h int) {
	if e.light == nil {
		e.light = NewRenderTarget(w, h)
		return
	}
	if e.light.Width() != w || e.light.Height() != h {
		e.light.Resize(w, h)
	}
}

func (e *IlluminationEffect) Resize(w, h int) {
	if e.light != nil && w > 0 && h > 0 {
		e.light.Resize(w, h)
	}
}

func (e *IlluminationEffect) Dispose() {
	for _, off := range e.offs {
		off()
	}
	e.offs = nil
	if e.composer != nil {
		e.composer.SetSharedTexture(TexLight, nil)
	}
	if e.light != nil {
		e.light.Dispose()
		e.light = nil
	}
	for _, img := range e.circles {
		img.Deallocate()
	}
	e.circles = nil
	e.sources = nil
}

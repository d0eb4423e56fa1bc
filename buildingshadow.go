package mapshine

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

const (
	// Per-tap march length in scene pixels at full sun; the march
	// lengthens as the sun drops, so dusk shadows reach further.
	buildingShadowStepPx   = 4.0
	buildingShadowStrength = 0.8

	buildingSunEpsilon  = 1e-3
	buildingHourEpsilon = 0.01

	// Dawn/dusk ramp width in hours, so shadows fade in instead of
	// popping at 6:00.
	buildingShadowRampHours = 0.5
)

// buildingShadowTimeIntensity is the sun-elevation envelope: zero at
// night, ramping in over the first half hour of daylight, strongest at
// low sun and weakest at noon.
func buildingShadowTimeIntensity(hour, elevation float64) float64 {
	in := clamp01((hour - 6) / buildingShadowRampHours)
	out := clamp01((18 - hour) / buildingShadowRampHours)
	return in * out * (1 - 0.6*clamp01(elevation))
}

// BuildingShadowEffect casts long directional shadows from indoor regions
// of the outdoors mask onto adjacent outdoor ground, via a 24-tap march
// toward the sun. The factor texture (1 = lit) is scene-resolution and
// world-pinned; it re-renders when the mask or the sun changes. Published
// as tBuildingShadow.
type BuildingShadowEffect struct {
	composer *EffectComposer

	shadow *RenderTarget

	dirty    bool
	lastSun  Vec2
	lastHour float64

	uniforms map[string]any
	stepPx   [2]float32

	offs []func()
}

// NewBuildingShadowEffect creates the building shadow producer.
func NewBuildingShadowEffect() *BuildingShadowEffect {
	return &BuildingShadowEffect{}
}

func (e *BuildingShadowEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:              "buildingshadow",
		Bucket:          LayerEnvironmental,
		Tier:            TierMedium,
		DefaultPriority: 20,
		SupportsEnabled: true,
	}
}

func (e *BuildingShadowEffect) Initialize(ec *EffectComposer) error {
	e.composer = ec
	e.dirty = true
	e.lastHour = -1
	e.uniforms = map[string]any{
		"SunStepPx":     e.stepPx[:],
		"Strength":      float32(buildingShadowStrength),
		"TimeIntensity": float32(0),
	}
	e.offs = append(e.offs,
		ec.Scene().Masks().Subscribe(MaskOutdoors, func(*ebiten.Image) { e.dirty = true }),
	)
	return nil
}

func (e *BuildingShadowEffect) Update(ctx *FrameContext) error {
	env := ctx.Env
	if math.Abs(env.SunDir.X-e.lastSun.X) > buildingSunEpsilon ||
		math.Abs(env.SunDir.Y-e.lastSun.Y) > buildingSunEpsilon ||
		math.Abs(env.TimeOfDayHour-e.lastHour) > buildingHourEpsilon {
		e.dirty = true
	}
	return nil
}

func (e *BuildingShadowEffect) PrePass(ctx *FrameContext) error {
	scene := e.composer.Scene()
	if scene.Scene() == nil {
		return nil
	}
	w, h := scene.Frame().SceneTargetSize()
	if w < 1 || h < 1 {
		return nil
	}
	if e.ensureTarget(w, h) || e.dirty {
		e.render(ctx, w, h)
		e.dirty = false
		e.lastSun = ctx.Env.SunDir
		e.lastHour = ctx.Env.TimeOfDayHour
	}
	e.composer.SetSharedTexture(TexBuildingShadow, e.shadow.Image())
	return nil
}

func (e *BuildingShadowEffect) render(ctx *FrameContext, w, h int) {
	scene := e.composer.Scene()
	mask := scene.Masks().Get(MaskOutdoors)
	env := ctx.Env
	ti := buildingShadowTimeIntensity(env.TimeOfDayHour, env.SunElevation)
	if mask == nil || ti <= 0.001 {
		e.shadow.Fill(Color{1, 1, 1, 1})
		return
	}

	rect := scene.Frame().SceneRect()
	if rect.Width <= 0 || rect.Height <= 0 {
		return
	}
	sx := float64(w) / rect.Width
	sy := float64(h) / rect.Height
	step := buildingShadowStepPx * (1 + 2*(1-clamp01(env.SunElevation)))
	e.stepPx[0] = float32(env.SunDir.X * step * sx)
	e.stepPx[1] = float32(env.SunDir.Y * step * sy)
	e.uniforms["TimeIntensity"] = float32(ti)

	var op ebiten.DrawRectShaderOptions
	op.Blend = ebiten.BlendCopy
	op.Images[0] = mask
	op.Uniforms = e.uniforms
	e.shadow.Image().DrawRectShader(w, h, ensureBuildingShadowShader(), &op)
}

func (e *BuildingShadowEffect) ensureTarget(w, h int) bool {
	if e.shadow == nil {
		e.shadow = NewRenderTarget(w, h)
		e.shadow.Fill(Color{1, 1, 1, 1})
		return true
	}
	if e.shadow.Width() != w || e.shadow.Height() != h {
		e.shadow.Resize(w, h)
		e.shadow.Fill(Color{1, 1, 1, 1})
		return true
	}
	return false
}

func (e *BuildingShadowEffect) Resize(int, int) {}

func (e *BuildingShadowEffect) Dispose() {
	for _, off := range e.offs {
		off()
	}
	e.offs = nil
	e.composer.SetSharedTexture(TexBuildingShadow, nil)
	if e.shadow != nil {
		e.shadow.Dispose()
		e.shadow = nil
	}
}

package mapshine

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

const (
	// cloudNoiseScale converts scene UV to noise cells; higher means
	// smaller clouds.
	cloudNoiseScale = 6.0

	// cloudWindAdvance is the noise-space drift per second at full wind.
	// The accumulated offset wraps at cloudWindWrap so years of game time
	// cannot degrade float precision.
	cloudWindAdvance = 0.35
	cloudWindWrap    = 100.0

	// cloudSunOffsetWorld displaces the shadow sample along the sun
	// direction, in world pixels; the screen offset scales with zoom so
	// the displacement stays world-pinned.
	cloudSunOffsetWorld = 96.0

	cloudShadowStrength = 0.55

	// Shadow softness is a world-space quantity too: the blur radius in
	// screen pixels grows with zoom.
	cloudShadowBlurWorld = 6.0
	cloudShadowBlurMax   = 32

	// Cloud tops read best zoomed out: full opacity at or below the low
	// zoom, fully faded at the high one.
	cloudTopsMaxAlpha = 0.85
	cloudTopsFadeLow  = 0.45
	cloudTopsFadeHigh = 1.0
)

// CloudEffect generates the per-frame cloud textures: a world-pinned
// density field sampled through the view bounds (panning moves the window,
// not the clouds) and a sun-displaced shadow factor gated by the outdoors
// mask. Both live at screen resolution and are published as tCloudDensity
// and tCloudShadow for the shadow pack, the lighting composite, and the
// cloud tops overlay.
type CloudEffect struct {
	composer *EffectComposer

	density *RenderTarget
	shadow  *RenderTarget
	blur    *BlurFilter

	windOffset Vec2
	uniforms   map[string]any
	shadowUni  map[string]any
	sunOffset  [2]float32
}

// NewCloudEffect creates the cloud pipeline. Register it with the composer
// to activate it.
func NewCloudEffect() *CloudEffect {
	return &CloudEffect{}
}

func (c *CloudEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:                "clouds",
		Bucket:            LayerEnvironmental,
		Tier:              TierMedium,
		DefaultPriority:   30,
		SupportsEnabled:   true,
		SupportsIntensity: true,
	}
}

func (c *CloudEffect) Initialize(ec *EffectComposer) error {
	c.composer = ec
	c.blur = NewBlurFilter(int(cloudShadowBlurWorld))
	c.uniforms = map[string]any{
		"UViewBounds": []float32{0, 0, 1, 1},
		"WindOffset":  []float32{0, 0},
		"NoiseScale":  float32(cloudNoiseScale),
		"CloudCover":  float32(0),
		"Time":        float32(0),
	}
	c.shadowUni = map[string]any{
		"SunOffsetPx":    c.sunOffset[:],
		"ShadowStrength": float32(cloudShadowStrength),
	}
	return nil
}

// Update advances the wind drift. The offset accumulates instead of being
// derived from elapsed time so wind changes steer the existing field
// rather than teleporting it.
func (c *CloudEffect) Update(ctx *FrameContext) error {
	env := ctx.Env
	dt := ctx.Time.DeltaSec * env.TimeScale
	c.windOffset.X += env.WindDir.X * env.WindSpeed * cloudWindAdvance * dt
	c.windOffset.Y += env.WindDir.Y * env.WindSpeed * cloudWindAdvance * dt
	c.windOffset.X = math.Mod(c.windOffset.X, cloudWindWrap)
	c.windOffset.Y = math.Mod(c.windOffset.Y, cloudWindWrap)
	return nil
}

// PrePass renders the density field and the blurred, outdoors-gated shadow
// factor, then publishes both.
func (c *CloudEffect) PrePass(ctx *FrameContext) error {
	scene := c.composer.Scene()
	if scene.Scene() == nil {
		return nil
	}
	w, h := c.composer.ScreenSize()
	if w < 1 || h < 1 {
		return nil
	}
	c.ensureTargets(w, h)

	env := ctx.Env
	if env.CloudCover <= 0.001 {
		// No clouds: empty sky, unshadowed ground.
		c.density.Clear()
		c.shadow.Fill(Color{1, 1, 1, 1})
		c.publish()
		return nil
	}

	frame := scene.Frame()
	c.uniforms["UViewBounds"] = frame.UViewBounds()
	wind := c.uniforms["WindOffset"].([]float32)
	wind[0] = float32(c.windOffset.X)
	wind[1] = float32(c.windOffset.Y)
	c.uniforms["CloudCover"] = float32(env.CloudCover)
	c.uniforms["Time"] = float32(env.ElapsedSec)

	var dop ebiten.DrawRectShaderOptions
	dop.Blend = ebiten.BlendCopy
	dop.Uniforms = c.uniforms
	c.density.Image().DrawRectShader(w, h, ensureCloudDensityShader(), &dop)

	// Outdoors gate at screen resolution. Without a mask the whole scene
	// counts as outdoors.
	outdoors := c.composer.AcquireScratch(w, h)
	defer c.composer.ReleaseScratch(outdoors)
	if mask := scene.Masks().Get(MaskOutdoors); mask != nil {
		var mp ebiten.DrawImageOptions
		mp.Filter = ebiten.FilterLinear
		mp.GeoM = scene.SceneToScreenGeoM()
		outdoors.DrawImage(mask, &mp)
	} else {
		outdoors.Fill(Color{1, 1, 1, 1}.toRGBA())
	}

	zoom := scene.Camera().Zoom
	c.sunOffset[0] = float32(env.SunDir.X * cloudSunOffsetWorld * zoom)
	c.sunOffset[1] = float32(env.SunDir.Y * cloudSunOffsetWorld * zoom)

	raw := c.composer.AcquireScratch(w, h)
	defer c.composer.ReleaseScratch(raw)
	var sop ebiten.DrawRectShaderOptions
	sop.Blend = ebiten.BlendCopy
	sop.Images[0] = c.density.Image()
	sop.Images[1] = outdoors
	sop.Uniforms = c.shadowUni
	raw.DrawRectShader(w, h, ensureCloudShadowShader(), &sop)

	radius := int(cloudShadowBlurWorld*zoom + 0.5)
	if radius < 1 {
		radius = 1
	}
	if radius > cloudShadowBlurMax {
		radius = cloudShadowBlurMax
	}
	c.blur.Radius = radius
	c.shadow.Fill(Color{1, 1, 1, 1})
	c.blur.Apply(raw, c.shadow.Image())

	c.publish()
	return nil
}

func (c *CloudEffect) publish() {
	c.composer.SetSharedTexture(TexCloudDensity, c.density.Image())
	c.composer.SetSharedTexture(TexCloudShadow, c.shadow.Image())
}

func (c *CloudEffect) ensureTargets(w, h int) {
	if c.density == nil {
		c.density = NewRenderTarget(w, h)
		c.shadow = NewRenderTarget(w, h)
		c.shadow.Fill(Color{1, 1, 1, 1})
		return
	}
	if c.density.Width() != w || c.density.Height() != h {
		c.density.Resize(w, h)
		c.shadow.Resize(w, h)
		c.shadow.Fill(Color{1, 1, 1, 1})
	}
}

func (c *CloudEffect) Resize(w, h int) {
	if w < 1 || h < 1 {
		return
	}
	if c.density != nil {
		c.ensureTargets(w, h)
	}
}

func (c *CloudEffect) Dispose() {
	c.composer.SetSharedTexture(TexCloudDensity, nil)
	c.composer.SetSharedTexture(TexCloudShadow, nil)
	if c.density != nil {
		c.density.Dispose()
		c.density = nil
	}
	if c.shadow != nil {
		c.shadow.Dispose()
		c.shadow = nil
	}
}

// CloudTopsEffect overlays the white cloud layer itself, faded in as the
// camera zooms out. Runs above the lighting composite so the tops stay
// bright at night.
type CloudTopsEffect struct {
	composer *EffectComposer
	uniforms map[string]any
	tint     [4]float32
}

func NewCloudTopsEffect() *CloudTopsEffect {
	return &CloudTopsEffect{}
}

func (c *CloudTopsEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:                "cloudtops",
		Bucket:            LayerPost,
		Tier:              TierLow,
		DefaultPriority:   20,
		SupportsEnabled:   true,
		SupportsIntensity: true,
	}
}

func (c *CloudTopsEffect) Initialize(ec *EffectComposer) error {
	c.composer = ec
	c.uniforms = map[string]any{
		"TopsAlpha": float32(0),
		"TintColor": c.tint[:],
	}
	return nil
}

func (c *CloudTopsEffect) Update(*FrameContext) error { return nil }

// topsAlpha maps camera zoom to overlay opacity.
func topsAlpha(zoom float64) float64 {
	t := (cloudTopsFadeHigh - zoom) / (cloudTopsFadeHigh - cloudTopsFadeLow)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return cloudTopsMaxAlpha * t
}

func (c *CloudTopsEffect) Apply(ctx *FrameContext, read, write *ebiten.Image) (bool, error) {
	density := c.composer.SharedTexture(TexCloudDensity)
	if density == nil {
		return false, nil
	}
	alpha := topsAlpha(c.composer.Scene().Camera().Zoom)
	if alpha <= 0.004 || ctx.Env.CloudCover <= 0.001 {
		return false, nil
	}

	var cp ebiten.DrawImageOptions
	cp.Blend = ebiten.BlendCopy
	write.DrawImage(read, &cp)

	// Night dims the tops toward the ambient darkness color.
	env := ctx.Env
	k := env.DarknessLevel * 0.7
	c.tint[0] = float32(1 - k + k*env.AmbientDarkness.R)
	c.tint[1] = float32(1 - k + k*env.AmbientDarkness.G)
	c.tint[2] = float32(1 - k + k*env.AmbientDarkness.B)
	c.tint[3] = 1
	c.uniforms["TopsAlpha"] = float32(alpha)

	b := write.Bounds()
	var op ebiten.DrawRectShaderOptions
	op.Images[0] = density
	op.Uniforms = c.uniforms
	write.DrawRectShader(b.Dx(), b.Dy(), ensureCloudTopsShader(), &op)
	return true, nil
}

func (c *CloudTopsEffect) Resize(int, int) {}

func (c *CloudTopsEffect) Dispose() {}

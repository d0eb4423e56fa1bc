package mapshine

import "github.com/hajimehoshi/ebiten/v2"

// lightingDynamicShadow is how strongly overhead shadow occludes dynamic
// lights. Building and cloud shadow never occlude them: a torch under a
// storm still lights the ground it stands on.
const lightingDynamicShadow = 0.55

// lightningFlashTint is the sky color a strike throws across outdoor
// ground through the Flash uniform.
var lightningFlashTint = [3]float32{0.82, 0.88, 1.0}

// ShadowPackEffect folds the three shadow factor textures into one RGB
// pack at screen resolution: R overhead, G building, B cloud. The
// scene-resolution factors are projected through the camera; a missing
// factor packs as 1 (lit). Runs after every shadow producer and publishes
// tShadowPack for the lighting composite and the surface shaders.
type ShadowPackEffect struct {
	composer *EffectComposer
	pack     *RenderTarget
}

// NewShadowPackEffect creates the pack stage.
func NewShadowPackEffect() *ShadowPackEffect {
	return &ShadowPackEffect{}
}

func (e *ShadowPackEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:              "shadowpack",
		Bucket:          LayerEnvironmental,
		Tier:            TierLow,
		DefaultPriority: 40,
	}
}

func (e *ShadowPackEffect) Initialize(ec *EffectComposer) error {
	e.composer = ec
	return nil
}

func (e *ShadowPackEffect) Update(*FrameContext) error { return nil }

func (e *ShadowPackEffect) PrePass(*FrameContext) error {
	w, h := e.composer.ScreenSize()
	if w < 1 || h < 1 {
		return nil
	}
	e.ensureTarget(w, h)

	overhead := e.projectFactor(TexOverheadShadow, w, h)
	defer e.composer.ReleaseScratch(overhead)
	building := e.projectFactor(TexBuildingShadow, w, h)
	defer e.composer.ReleaseScratch(building)

	cloud := e.composer.SharedTexture(TexCloudShadow)
	var cloudScratch *ebiten.Image
	if cloud == nil || cloud.Bounds().Dx() != w || cloud.Bounds().Dy() != h {
		cloudScratch = e.composer.AcquireScratch(w, h)
		cloudScratch.Fill(Color{1, 1, 1, 1}.toRGBA())
		cloud = cloudScratch
	}
	if cloudScratch != nil {
		defer e.composer.ReleaseScratch(cloudScratch)
	}

	var op ebiten.DrawRectShaderOptions
	op.Blend = ebiten.BlendCopy
	op.Images[0] = overhead
	op.Images[1] = building
	op.Images[2] = cloud
	e.pack.Image().DrawRectShader(w, h, ensureChannelPackShader(), &op)
	e.composer.SetSharedTexture(TexShadowPack, e.pack.Image())
	return nil
}

// projectFactor maps a scene-resolution factor texture onto a white
// screen scratch. White first: a factor defaults to 1, and the projection
// covers only the scene rect's screen area.
func (e *ShadowPackEffect) projectFactor(name string, w, h int) *ebiten.Image {
	dst := e.composer.AcquireScratch(w, h)
	dst.Fill(Color{1, 1, 1, 1}.toRGBA())
	if tex := e.composer.SharedTexture(name); tex != nil {
		var op ebiten.DrawImageOptions
		op.GeoM = e.composer.Scene().SceneToScreenGeoM()
		op.Filter = ebiten.FilterLinear
		dst.DrawImage(tex, &op)
	}
	return dst
}

func (e *ShadowPackEffect) ensureTarget(w, h int) {
	if e.pack == nil {
		e.pack = NewRenderTarget(w, h)
		return
	}
	if e.pack.Width() != w || e.pack.Height() != h {
		e.pack.Resize(w, h)
	}
}

func (e *ShadowPackEffect) Resize(w, h int) {
	if e.pack != nil && w > 0 && h > 0 {
		e.ensureTarget(w, h)
	}
}

func (e *ShadowPackEffect) Dispose() {
	e.composer.SetSharedTexture(TexShadowPack, nil)
	if e.pack != nil {
		e.pack.Dispose()
		e.pack = nil
	}
}

// LightingEffect is the central post composite: ambient light blended by
// darkness level, occluded by the packed shadow factors, boosted outdoors
// by the lightning flash, plus the dynamic light texture. The result
// multiplies the composed frame. Missing inputs degrade gracefully: no
// light texture means no dynamic lights, no pack means full sun.
type LightingEffect struct {
	composer *EffectComposer

	uniforms     map[string]any
	ambientDay   [3]float32
	ambientNight [3]float32

	effectiveDarkness float64
}

// NewLightingEffect creates the lighting composite.
func NewLightingEffect() *LightingEffect {
	return &LightingEffect{}
}

func (e *LightingEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:              "lighting",
		Bucket:          LayerPost,
		Tier:            TierLow,
		DefaultPriority: 10,
		SupportsEnabled: true,
	}
}

func (e *LightingEffect) Initialize(ec *EffectComposer) error {
	e.composer = ec
	e.uniforms = map[string]any{
		"AmbientDay":   e.ambientDay[:],
		"AmbientNight": e.ambientNight[:],
		"Darkness":     float32(0),
		"KD":           float32(lightingDynamicShadow),
		"Flash":        float32(0),
		"FlashColor":   lightningFlashTint[:],
	}
	return nil
}

func (e *LightingEffect) Update(ctx *FrameContext) error {
	env := ctx.Env
	e.effectiveDarkness = clamp01(env.DarknessLevel * (1 - env.LightningFlash))
	return nil
}

// EffectiveDarkness is the darkness level after the lightning flash
// counteracts it, for consumers that tint against the lit frame.
func (e *LightingEffect) EffectiveDarkness() float64 { return e.effectiveDarkness }

func (e *LightingEffect) Apply(ctx *FrameContext, read, write *ebiten.Image) (bool, error) {
	scene := e.composer.Scene()
	if scene.Scene() == nil {
		return false, nil
	}
	b := read.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 1 || h < 1 {
		return false, nil
	}

	var scratches []*ebiten.Image
	release := func() {
		for _, s := range scratches {
			e.composer.ReleaseScratch(s)
		}
	}
	defer release()

	light := sharedExact(e.composer, TexLight, w, h)
	if light == nil {
		s := e.composer.AcquireScratch(w, h)
		scratches = append(scratches, s)
		light = s
	}
	pack := sharedExact(e.composer, TexShadowPack, w, h)
	if pack == nil {
		s := e.composer.AcquireScratch(w, h)
		s.Fill(Color{1, 1, 1, 1}.toRGBA())
		scratches = append(scratches, s)
		pack = s
	}

	outdoors := e.composer.AcquireScratch(w, h)
	scratches = append(scratches, outdoors)
	outdoors.Fill(Color{1, 1, 1, 1}.toRGBA())
	if mask := scene.Masks().Get(MaskOutdoors); mask != nil {
		var op ebiten.DrawImageOptions
		op.GeoM = scene.SceneToScreenGeoM()
		op.Filter = ebiten.FilterLinear
		outdoors.DrawImage(mask, &op)
	}

	env := ctx.Env
	storeRGB(e.ambientDay[:], env.AmbientDaylight)
	storeRGB(e.ambientNight[:], env.AmbientDarkness)
	e.uniforms["Darkness"] = float32(env.DarknessLevel)
	e.uniforms["Flash"] = float32(clamp01(env.LightningFlash))

	var op ebiten.DrawRectShaderOptions
	op.Blend = ebiten.BlendCopy
	op.Images[0] = read
	op.Images[1] = light
	op.Images[2] = pack
	op.Images[3] = outdoors
	op.Uniforms = e.uniforms
	write.DrawRectShader(w, h, ensureLightingShader(), &op)
	return true, nil
}

// sharedExact returns the named shared texture only when it matches the
// frame size; anything else is treated as absent. Stale sizes show up for
// a frame after resizes and must not reach DrawRectShader.
func sharedExact(ec *EffectComposer, name string, w, h int) *ebiten.Image {
	tex := ec.SharedTexture(name)
	if tex == nil || tex.Bounds().Dx() != w || tex.Bounds().Dy() != h {
		return nil
	}
	return tex
}

func (e *LightingEffect) Resize(int, int) {}

func (e *LightingEffect) Dispose() {}

func storeRGB(dst []float32, c Color) {
	dst[0] = float32(c.R)
	dst[1] = float32(c.G)
	dst[2] = float32(c.B)
}

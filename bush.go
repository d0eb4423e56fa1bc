package mapshine

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// bushWindRamp is the low-pass rate (1/s) applied to wind speed so
// weather transitions ease into the foliage instead of snapping.
const bushWindRamp = 2.0

// BushParams are the authorable foliage parameters: motion shape on the
// left, color correction on the right of the settings sheet.
type BushParams struct {
	GustScale   float64
	GustSpeed   float64
	Elasticity  float64
	FlutterFreq float64
	FlutterAmp  float64
	SwayAmpPx   float64

	Exposure    float64
	Brightness  float64
	Contrast    float64
	Saturation  float64
	Temperature float64
	TintGreen   float64
}

// DefaultBushParams returns the tuning shipped with the module.
func DefaultBushParams() BushParams {
	return BushParams{
		GustScale:   0.02,
		GustSpeed:   40,
		Elasticity:  3,
		FlutterFreq: 6,
		FlutterAmp:  1.5,
		SwayAmpPx:   6,
		Contrast:    1,
		Saturation:  1,
	}
}

// BushEffect animates foliage painted into the _Bush mask: UVs are
// displaced by a scrolling gust field, an orbital sway riding the gust,
// and per-leaf flutter, then color corrected and shadowed like the base
// plane. Without a published mask the effect is inert; it re-arms on the
// next registry publish.
type BushEffect struct {
	composer *EffectComposer
	params   BushParams

	mask         *ebiten.Image
	windSmoothed float64
	windDir      [2]float32
	uniforms     map[string]any
	offs         []func()
}

func NewBushEffect() *BushEffect {
	return &BushEffect{params: DefaultBushParams()}
}

func (e *BushEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:                "bush",
		Bucket:            LayerSurface,
		Tier:              TierMedium,
		FloorScope:        FloorScopePerFloor,
		DefaultPriority:   10,
		SupportsEnabled:   true,
		SupportsIntensity: true,
	}
}

func (e *BushEffect) Initialize(ec *EffectComposer) error {
	e.composer = ec
	e.uniforms = map[string]any{
		"Time":         float32(0),
		"WindDir":      e.windDir[:],
		"WindStrength": float32(0),
	}
	e.offs = append(e.offs, ec.Scene().Masks().Subscribe(MaskBush, func(tex *ebiten.Image) {
		e.mask = tex
	}))
	return nil
}

// Params returns the current tuning.
func (e *BushEffect) Params() BushParams { return e.params }

// SetParams replaces the tuning; it takes effect on the next frame.
func (e *BushEffect) SetParams(p BushParams) { e.params = p }

func (e *BushEffect) Update(ctx *FrameContext) error {
	env := ctx.Env
	alpha := bushWindRamp * ctx.Time.DeltaSec
	if alpha > 1 {
		alpha = 1
	}
	e.windSmoothed += (clamp01(env.WindSpeed) - e.windSmoothed) * alpha

	dx, dy := env.WindDir.X, env.WindDir.Y
	if n := math.Hypot(dx, dy); n > 1e-6 {
		dx, dy = dx/n, dy/n
	} else {
		dx, dy = 1, 0
	}
	e.windDir[0] = float32(dx)
	e.windDir[1] = float32(dy)
	return nil
}

func (e *BushEffect) DrawSurface(ctx *FrameContext, dst *ebiten.Image, floor int) error {
	if e.mask == nil || e.composer.Scene().Scene() == nil {
		return nil
	}
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	if w < 1 || h < 1 {
		return nil
	}

	// The shader reads the frame it overlays, so work from a copy.
	base := e.composer.AcquireScratch(w, h)
	defer e.composer.ReleaseScratch(base)
	base.DrawImage(dst, nil)

	maskScr := e.composer.AcquireScratch(w, h)
	defer e.composer.ReleaseScratch(maskScr)
	{
		var op ebiten.DrawImageOptions
		op.GeoM = e.composer.Scene().SceneToScreenGeoM()
		op.Filter = ebiten.FilterLinear
		maskScr.DrawImage(e.mask, &op)
	}

	pack := sharedExact(e.composer, TexShadowPack, w, h)
	if pack == nil {
		s := e.composer.AcquireScratch(w, h)
		defer e.composer.ReleaseScratch(s)
		s.Fill(Color{1, 1, 1, 1}.toRGBA())
		pack = s
	}

	p := e.params
	e.uniforms["Time"] = float32(ctx.Env.ElapsedSec)
	e.uniforms["WindStrength"] = float32(e.windSmoothed)
	e.uniforms["GustScale"] = float32(p.GustScale)
	e.uniforms["GustSpeed"] = float32(p.GustSpeed)
	e.uniforms["Elasticity"] = float32(p.Elasticity)
	e.uniforms["FlutterFreq"] = float32(p.FlutterFreq)
	e.uniforms["FlutterAmp"] = float32(p.FlutterAmp)
	e.uniforms["SwayAmpPx"] = float32(p.SwayAmpPx)
	e.uniforms["Exposure"] = float32(p.Exposure)
	e.uniforms["Brightness"] = float32(p.Brightness)
	e.uniforms["Contrast"] = float32(p.Contrast)
	e.uniforms["Saturation"] = float32(p.Saturation)
	e.uniforms["Temperature"] = float32(p.Temperature)
	e.uniforms["TintGreen"] = float32(p.TintGreen)

	var op ebiten.DrawRectShaderOptions
	op.Images[0] = base
	op.Images[1] = maskScr
	op.Images[2] = pack
	op.Uniforms = e.uniforms
	dst.DrawRectShader(w, h, ensureBushShader(), &op)
	return nil
}

// WindStrength exposes the smoothed wind value for tests and the HUD.
func (e *BushEffect) WindStrength() float64 { return e.windSmoothed }

func (e *BushEffect) Resize(int, int) {}

func (e *BushEffect) Dispose() {
	for _, off := range e.offs {
		off()
	}
	e.offs = nil
	e.mask = nil
}

package mapshine

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// prismParallaxBase scales the camera center into facet-space drift so a
// full-strength parallax stays a shimmer, not a slide.
const prismParallaxBase = 0.05

// PrismParams are the authorable crystal parameters.
type PrismParams struct {
	FacetScale       float64
	DispersionPx     float64
	GlintSpeed       float64
	GlintIntensity   float64
	ParallaxStrength float64
}

// DefaultPrismParams returns the tuning shipped with the module.
func DefaultPrismParams() PrismParams {
	return PrismParams{
		FacetScale:       48,
		DispersionPx:     3,
		GlintSpeed:       2,
		GlintIntensity:   0.35,
		ParallaxStrength: 1,
	}
}

// PrismEffect refracts the composed frame through the _Prism mask: an
// animated Voronoi facet field splits the sample spectrally and adds a
// moving glint, so panning the camera shimmers the crystal. Inert until
// the mask registry publishes _Prism.
type PrismEffect struct {
	composer *EffectComposer
	params   PrismParams

	mask     *ebiten.Image
	uniforms map[string]any
	parallax [2]float32
	offs     []func()
}

func NewPrismEffect() *PrismEffect {
	return &PrismEffect{params: DefaultPrismParams()}
}

func (e *PrismEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:                "prism",
		Bucket:            LayerSurface,
		Tier:              TierMedium,
		FloorScope:        FloorScopePerFloor,
		DefaultPriority:   20,
		SupportsEnabled:   true,
		SupportsIntensity: true,
	}
}

func (e *PrismEffect) Initialize(ec *EffectComposer) error {
	e.composer = ec
	e.uniforms = map[string]any{"ParallaxPx": e.parallax[:]}
	e.offs = append(e.offs, ec.Scene().Masks().Subscribe(MaskPrism, func(tex *ebiten.Image) {
		e.mask = tex
	}))
	return nil
}

func (e *PrismEffect) Params() PrismParams { return e.params }

func (e *PrismEffect) SetParams(p PrismParams) { e.params = p }

func (e *PrismEffect) Update(ctx *FrameContext) error { return nil }

func (e *PrismEffect) DrawSurface(ctx *FrameContext, dst *ebiten.Image, floor int) error {
	if e.mask == nil || e.composer.Scene().Scene() == nil {
		return nil
	}
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	if w < 1 || h < 1 {
		return nil
	}

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
	facet := p.FacetScale
	if facet < 1 {
		facet = 1
	}
	cam := e.composer.Scene().Camera()
	drift := p.ParallaxStrength * prismParallaxBase
	e.parallax[0] = float32(cam.X * drift)
	e.parallax[1] = float32(cam.Y * drift)

	e.uniforms["Time"] = float32(ctx.Env.ElapsedSec)
	e.uniforms["FacetScale"] = float32(facet)
	e.uniforms["DispersionPx"] = float32(p.DispersionPx)
	e.uniforms["GlintSpeed"] = float32(p.GlintSpeed)
	e.uniforms["GlintIntensity"] = float32(p.GlintIntensity)

	var op ebiten.DrawRectShaderOptions
	op.Images[0] = base
	op.Images[1] = maskScr
	op.Images[2] = pack
	op.Uniforms = e.uniforms
	dst.DrawRectShader(w, h, ensurePrismShader(), &op)
	return nil
}

func (e *PrismEffect) Resize(int, int) {}

func (e *PrismEffect) Dispose() {
	for _, off := range e.offs {
		off()
	}
	e.offs = nil
	e.mask = nil
}

package mapshine

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

const (
	overheadShadowBlurPx   = 10
	overheadShadowStrength = 0.45

	// Shadow displacement along the sun, in world pixels.
	overheadShadowOffsetPx = 14.0

	// Sun movement below this threshold does not re-render the stamp.
	overheadSunEpsilon = 1e-3
)

// OverheadShadowEffect rasterizes the opaque regions of roof-layer tiles
// into a scene-resolution stamp, blurs it, and displaces it along the sun
// to produce the soft occlusion the ground shows under eaves. Both the raw
// stamp (tRoofAlpha) and the shadow factor (tOverheadShadow, 1 = lit) are
// world-pinned, so they re-render only when tiles or the sun change, not
// when the camera moves.
type OverheadShadowEffect struct {
	composer *EffectComposer

	roof   *RenderTarget
	shadow *RenderTarget
	blur   *BlurFilter

	dirty   bool
	lastSun Vec2

	offs  []func()
	verts []ebiten.Vertex
	inds  []uint16
}

// NewOverheadShadowEffect creates the roof shadow producer.
func NewOverheadShadowEffect() *OverheadShadowEffect {
	return &OverheadShadowEffect{}
}

func (e *OverheadShadowEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:              "overheadshadow",
		Bucket:          LayerEnvironmental,
		Tier:            TierLow,
		DefaultPriority: 10,
		SupportsEnabled: true,
	}
}

func (e *OverheadShadowEffect) Initialize(ec *EffectComposer) error {
	e.composer = ec
	e.blur = NewBlurFilter(overheadShadowBlurPx)
	e.dirty = true

	markDirty := func(any) { e.dirty = true }
	ev := ec.Host().Events()
	e.offs = append(e.offs,
		ev.On(HookCanvasReady, markDirty),
		ev.On(HookUpdateScene, markDirty),
		ev.On(HookCreateTile, markDirty),
		ev.On(HookUpdateTile, markDirty),
		ev.On(HookDeleteTile, markDirty),
	)
	return nil
}

func (e *OverheadShadowEffect) Update(ctx *FrameContext) error {
	sun := ctx.Env.SunDir
	if math.Abs(sun.X-e.lastSun.X) > overheadSunEpsilon ||
		math.Abs(sun.Y-e.lastSun.Y) > overheadSunEpsilon {
		e.dirty = true
	}
	return nil
}

func (e *OverheadShadowEffect) PrePass(ctx *FrameContext) error {
	scene := e.composer.Scene()
	if scene.Scene() == nil {
		return nil
	}
	w, h := scene.Frame().SceneTargetSize()
	if w < 1 || h < 1 {
		return nil
	}
	if e.ensureTargets(w, h) || e.dirty {
		e.render(ctx, w, h)
		e.dirty = false
		e.lastSun = ctx.Env.SunDir
	}
	e.composer.SetSharedTexture(TexRoofAlpha, e.roof.Image())
	e.composer.SetSharedTexture(TexOverheadShadow, e.shadow.Image())
	return nil
}

// render stamps every roof tile at its runtime pose into the roof target,
// then derives the displaced shadow factor.
func (e *OverheadShadowEffect) render(ctx *FrameContext, w, h int) {
	scene := e.composer.Scene()
	rect := scene.Frame().SceneRect()
	if rect.Width <= 0 || rect.Height <= 0 {
		return
	}
	sx := float64(w) / rect.Width
	sy := float64(h) / rect.Height
	toTarget := [6]float64{sx, 0, 0, sy, -rect.X * sx, -rect.Y * sy}

	e.roof.Clear()
	for _, s := range scene.TileSprites() {
		doc := s.Doc
		if !doc.Flags.OverheadIsRoof || doc.Hidden || doc.Flags.BypassEffects {
			continue
		}
		if s.Texture() == nil || s.Alpha <= 0 {
			continue
		}
		m := multiplyAffine(toTarget, s.WorldMatrix())
		e.verts, e.inds = appendTexturedQuad(e.verts[:0], e.inds[:0], m, s.TexMatrix(), doc.Width, doc.Height, s.Alpha)
		op := ebiten.DrawTrianglesOptions{Filter: ebiten.FilterLinear}
		e.roof.Image().DrawTriangles(e.verts, e.inds, s.Texture(), &op)
	}

	blurred := e.composer.AcquireScratch(w, h)
	defer e.composer.ReleaseScratch(blurred)
	e.blur.Apply(e.roof.Image(), blurred)

	sun := ctx.Env.SunDir
	e.shadow.Fill(Color{1, 1, 1, 1})
	var op ebiten.DrawImageOptions
	op.GeoM.Translate(sun.X*overheadShadowOffsetPx*sx, sun.Y*overheadShadowOffsetPx*sy)
	op.ColorScale.Scale(0, 0, 0, overheadShadowStrength)
	e.shadow.Image().DrawImage(blurred, &op)
}

// ensureTargets sizes both targets to the scene resolution, reporting
// whether they were (re)created.
func (e *OverheadShadowEffect) ensureTargets(w, h int) bool {
	if e.roof == nil {
		e.roof = NewRenderTarget(w, h)
		e.shadow = NewRenderTarget(w, h)
		e.shadow.Fill(Color{1, 1, 1, 1})
		return true
	}
	if e.roof.Width() != w || e.roof.Height() != h {
		e.roof.Resize(w, h)
		e.shadow.Resize(w, h)
		e.shadow.Fill(Color{1, 1, 1, 1})
		return true
	}
	return false
}

func (e *OverheadShadowEffect) Resize(int, int) {}

func (e *OverheadShadowEffect) Dispose() {
	for _, off := range e.offs {
		off()
	}
	e.offs = nil
	e.composer.SetSharedTexture(TexRoofAlpha, nil)
	e.composer.SetSharedTexture(TexOverheadShadow, nil)
	if e.roof != nil {
		e.roof.Dispose()
		e.roof = nil
	}
	if e.shadow != nil {
		e.shadow.Dispose()
		e.shadow = nil
	}
}

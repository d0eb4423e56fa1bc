package mapshine

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// --- selection constants ---

const (
	selRingSegments  = 32
	selRingRadius    = 0.55 // grid fractions
	selRingWidth     = 0.06 // grid fractions
	selPulseRate     = 1.4  // full pulses per second
	selPulseGrow     = 0.08
	selBaseAlpha     = 0.9
	selMinProbeLight = 0.35
)

// selAccent is the highlight color before illumination tinting.
var selAccent = Color{R: 1, G: 0.64, B: 0.22, A: 1}

// selPulse maps elapsed time to the ring's radius scale and alpha.
func selPulse(elapsedSec float64) (scale, alpha float64) {
	wave := 0.5 + 0.5*math.Sin(2*math.Pi*selPulseRate*elapsedSec)
	return 1 + selPulseGrow*wave, selBaseAlpha * (0.7 + 0.3*wave)
}

// luma601 is the Rec.601 luma of a color, matching the saturation matrix
// weights so probe tints agree with the post grade.
func luma601(c Color) float64 {
	return 0.299*c.R + 0.587*c.G + 0.114*c.B
}

// SelectionEffect draws a pulsing ring under every controlled viewer,
// tinted by the CPU illumination probe so selections sit into the scene
// light instead of glowing through darkness.
type SelectionEffect struct {
	composer *EffectComposer
	host     Host
	illum    *IlluminationEffect

	verts []ebiten.Vertex
	inds  []uint16
}

func NewSelectionEffect() *SelectionEffect { return &SelectionEffect{} }

func (e *SelectionEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:              "selection",
		Bucket:          LayerSurface,
		Tier:            TierLow,
		FloorScope:      FloorScopeGlobal,
		DefaultPriority: 35,
		SupportsEnabled: true,
	}
}

func (e *SelectionEffect) Initialize(ec *EffectComposer) error {
	e.composer = ec
	e.host = ec.Host()
	return nil
}

func (e *SelectionEffect) Update(*FrameContext) error {
	if e.illum == nil {
		if il, ok := e.composer.EffectByID("illumination").(*IlluminationEffect); ok {
			e.illum = il
		}
	}
	return nil
}

func (e *SelectionEffect) DrawSurface(ctx *FrameContext, dst *ebiten.Image, _ int) error {
	scene := e.composer.Scene()
	if scene == nil || scene.Scene() == nil {
		return nil
	}
	viewers := e.host.ControlledViewers()
	if len(viewers) == 0 {
		return nil
	}
	grid := scene.Scene().Dimensions().Size
	if grid <= 0 {
		grid = 100
	}
	cam := scene.Camera()
	scale, alpha := selPulse(ctx.Time.ElapsedSec)

	e.verts = e.verts[:0]
	e.inds = e.inds[:0]
	for _, v := range viewers {
		poly := v.VisionPolygon()
		if len(poly) < 3 {
			continue
		}
		center := polygonCentroid(poly)
		sx, sy := cam.WorldToScreen(center.X, center.Y)
		radius := grid * selRingRadius * scale * cam.Zoom
		width := max(grid*selRingWidth*cam.Zoom, 1)
		tint := e.ringTint(center)

		start := len(e.verts)
		e.verts, e.inds = appendRing(e.verts, e.inds, sx, sy, radius, width, selRingSegments)
		for i := start; i < len(e.verts); i++ {
			e.verts[i].ColorR = float32(tint.R)
			e.verts[i].ColorG = float32(tint.G)
			e.verts[i].ColorB = float32(tint.B)
			e.verts[i].ColorA = float32(alpha)
		}
	}
	if len(e.inds) == 0 {
		return nil
	}
	op := &ebiten.DrawTrianglesOptions{AntiAlias: true}
	dst.DrawTriangles(e.verts, e.inds, WhitePixel, op)
	return nil
}

// ringTint folds the illumination probe into the accent color. Without an
// illumination effect the probe reads full daylight.
func (e *SelectionEffect) ringTint(p Vec2) Color {
	probe := ColorWhite
	if e.illum != nil {
		probe = e.illum.IlluminationAt(p)
	}
	f := selMinProbeLight + (1-selMinProbeLight)*luma601(probe)
	return Color{R: selAccent.R * f, G: selAccent.G * f, B: selAccent.B * f, A: 1}
}

func (e *SelectionEffect) Resize(int, int) {}

func (e *SelectionEffect) Dispose() {
	e.verts = nil
	e.inds = nil
}

package mapshine

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

const (
	overlayFillAlpha    = 0.22
	overlayStrokeAlpha  = 0.85
	overlayStrokeWidth  = 2.0
	overlayMarkerRadius = 4.0
	overlayMarkerSegs   = 10
)

// overlayPalette colors each group type so authors can tell them apart at
// a glance.
var overlayPalette = map[string]Color{
	GroupTypePoint: {R: 0.45, G: 0.9, B: 0.5, A: 1},
	GroupTypeLine:  {R: 0.95, G: 0.72, B: 0.25, A: 1},
	GroupTypeRope:  {R: 0.8, G: 0.45, B: 0.85, A: 1},
	GroupTypeArea:  {R: 0.3, G: 0.62, B: 0.95, A: 1},
}

// MapPointsOverlay projects the map point groups onto the screen as an
// authoring aid: filled and outlined areas, line ribbons, and point
// markers. It is a GM-only projection of the store, never a source of
// truth; tessellation happens in screen space so stroke widths and marker
// radii hold steady across zoom.
type MapPointsOverlay struct {
	composer *EffectComposer
	points   *MapPointsStore

	verts     []ebiten.Vertex
	inds      []uint16
	screenBuf []Vec2
	fanBuf    []Vec2
}

// NewMapPointsOverlay creates the overlay for a store. Register it with
// the composer to activate it.
func NewMapPointsOverlay(points *MapPointsStore) *MapPointsOverlay {
	return &MapPointsOverlay{points: points}
}

// Descriptor places the overlay above every other surface effect, so the
// authoring geometry is never hidden by foliage or lightning.
func (o *MapPointsOverlay) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:                "overlay",
		Bucket:            LayerSurface,
		Tier:              TierLow,
		FloorScope:        FloorScopeGlobal,
		DefaultPriority:   40,
		SupportsEnabled:   true,
		SupportsIntensity: false,
	}
}

func (o *MapPointsOverlay) Initialize(ec *EffectComposer) error {
	o.composer = ec
	return nil
}

func (o *MapPointsOverlay) Update(*FrameContext) error { return nil }

// DrawSurface tessellates every group into one vertex buffer and draws it
// in a single pass: fills first, then strokes, then markers.
func (o *MapPointsOverlay) DrawSurface(_ *FrameContext, dst *ebiten.Image, _ int) error {
	if o.points == nil || !o.composer.Host().IsGM() {
		return nil
	}
	scene := o.composer.Scene()
	if scene.Scene() == nil {
		return nil
	}
	cam := scene.Camera()

	o.verts = o.verts[:0]
	o.inds = o.inds[:0]
	for _, g := range o.points.Groups() {
		color, ok := overlayPalette[g.Type]
		if !ok {
			continue
		}
		o.screenBuf = o.screenBuf[:0]
		for _, p := range g.Points {
			sx, sy := cam.WorldToScreen(p.X, p.Y)
			o.screenBuf = append(o.screenBuf, Vec2{X: sx, Y: sy})
		}
		switch g.Type {
		case GroupTypeArea:
			o.appendAreaFill(o.screenBuf, color)
			o.appendClosedStroke(o.screenBuf, color)
		case GroupTypeLine, GroupTypeRope:
			start := len(o.verts)
			o.verts, o.inds = appendRibbon(o.verts, o.inds, o.screenBuf, overlayStrokeWidth)
			o.tintRange(start, color, overlayStrokeAlpha)
			for _, p := range o.screenBuf {
				o.appendMarker(p, overlayMarkerRadius-1, color)
			}
		case GroupTypePoint:
			for _, p := range o.screenBuf {
				o.appendMarker(p, overlayMarkerRadius, color)
			}
		}
	}
	if len(o.inds) == 0 {
		return nil
	}
	dst.DrawTriangles(o.verts, o.inds, WhitePixel, &ebiten.DrawTrianglesOptions{
		AntiAlias: true,
	})
	return nil
}

// appendAreaFill star-triangulates the polygon from its centroid. Fans
// from the centroid cover the hand-drawn regions authors actually make;
// the fill is a projection, not collision geometry.
func (o *MapPointsOverlay) appendAreaFill(poly []Vec2, c Color) {
	if len(poly) < 3 {
		return
	}
	o.fanBuf = o.fanBuf[:0]
	o.fanBuf = append(o.fanBuf, polygonCentroid(poly))
	o.fanBuf = append(o.fanBuf, poly...)
	o.fanBuf = append(o.fanBuf, poly[0])
	start := len(o.verts)
	o.verts, o.inds = appendPolygonFan(o.verts, o.inds, o.fanBuf)
	o.tintRange(start, c, overlayFillAlpha)
}

func (o *MapPointsOverlay) appendClosedStroke(poly []Vec2, c Color) {
	if len(poly) < 3 {
		return
	}
	o.fanBuf = o.fanBuf[:0]
	o.fanBuf = append(o.fanBuf, poly...)
	o.fanBuf = append(o.fanBuf, poly[0])
	start := len(o.verts)
	o.verts, o.inds = appendRibbon(o.verts, o.inds, o.fanBuf, overlayStrokeWidth)
	o.tintRange(start, c, overlayStrokeAlpha)
}

func (o *MapPointsOverlay) appendMarker(at Vec2, radius float64, c Color) {
	o.fanBuf = o.fanBuf[:0]
	for i := 0; i < overlayMarkerSegs; i++ {
		a := float64(i) / overlayMarkerSegs * 2 * math.Pi
		sin, cos := math.Sincos(a)
		o.fanBuf = append(o.fanBuf, Vec2{X: at.X + cos*radius, Y: at.Y + sin*radius})
	}
	start := len(o.verts)
	o.verts, o.inds = appendPolygonFan(o.verts, o.inds, o.fanBuf)
	o.tintRange(start, c, 1)
}

func (o *MapPointsOverlay) tintRange(start int, c Color, alpha float64) {
	for i := start; i < len(o.verts); i++ {
		v := &o.verts[i]
		v.ColorR = float32(c.R)
		v.ColorG = float32(c.G)
		v.ColorB = float32(c.B)
		v.ColorA = float32(alpha)
	}
}

func (o *MapPointsOverlay) Resize(int, int) {}

func (o *MapPointsOverlay) Dispose() {
	o.verts = nil
	o.inds = nil
	o.screenBuf = nil
	o.fanBuf = nil
}

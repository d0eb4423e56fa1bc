package mapshine

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// scrollAnim holds active scroll-to tweens for camera X and Y.
type scrollAnim struct {
	tweenX *gween.Tween
	tweenY *gween.Tween
	doneX  bool
	doneY  bool
}

// Camera controls the view into the map: the world position it centers on,
// the zoom factor, and the screen viewport. The compositor's coordinate
// frame derives its view bounds from here every frame.
type Camera struct {
	// X and Y are the world-space position the camera centers on.
	X, Y float64
	// Zoom is the scale factor (1.0 = no zoom, >1 = zoom in, <1 = zoom out).
	Zoom float64
	// Viewport is the screen-space rectangle the camera renders into.
	Viewport Rect

	// BoundsEnabled clamps the camera position so the visible area stays
	// within Bounds (the padded scene rectangle).
	BoundsEnabled bool
	Bounds        Rect

	viewMatrix    [6]float64
	invViewMatrix [6]float64
	dirty         bool

	scrollTween *scrollAnim
}

// NewCamera creates a camera with zoom 1 over the given viewport.
func NewCamera(viewport Rect) *Camera {
	return &Camera{
		Zoom:     1.0,
		Viewport: viewport,
		dirty:    true,
	}
}

// ScrollTo animates the camera to the given world position over duration
// seconds with the given easing.
func (c *Camera) ScrollTo(x, y float64, duration float32, easeFn ease.TweenFunc) {
	c.scrollTween = &scrollAnim{
		tweenX: gween.New(float32(c.X), float32(x), duration, easeFn),
		tweenY: gween.New(float32(c.Y), float32(y), duration, easeFn),
	}
}

// Scrolling reports whether a ScrollTo animation is still running.
func (c *Camera) Scrolling() bool {
	return c.scrollTween != nil
}

// SetBounds enables camera bounds clamping.
func (c *Camera) SetBounds(bounds Rect) {
	c.BoundsEnabled = true
	c.Bounds = bounds
}

// ClearBounds disables camera bounds clamping.
func (c *Camera) ClearBounds() {
	c.BoundsEnabled = false
}

// ClampToBounds immediately clamps the camera position so the visible area
// stays within Bounds. Call after modifying X/Y directly (e.g. in a drag
// callback) to avoid one frame outside the bounds. No-op when
// BoundsEnabled is false.
func (c *Camera) ClampToBounds() {
	if c.BoundsEnabled {
		c.clampToBounds()
	}
}

// SetViewport updates the screen rectangle. Called on drawing-buffer
// resize.
func (c *Camera) SetViewport(viewport Rect) {
	if c.Viewport == viewport {
		return
	}
	c.Viewport = viewport
	c.dirty = true
}

// Update advances scroll animation and bounds clamping. Called once per
// frame before any view-matrix consumer.
func (c *Camera) Update(dt float64) {
	prevX, prevY, prevZoom := c.X, c.Y, c.Zoom

	if c.scrollTween != nil {
		if !c.scrollTween.doneX {
			val, done := c.scrollTween.tweenX.Update(float32(dt))
			c.X = float64(val)
			c.scrollTween.doneX = done
		}
		if !c.scrollTween.doneY {
			val, done := c.scrollTween.tweenY.Update(float32(dt))
			c.Y = float64(val)
			c.scrollTween.doneY = done
		}
		if c.scrollTween.doneX && c.scrollTween.doneY {
			c.scrollTween = nil
		}
	}

	if c.BoundsEnabled {
		c.clampToBounds()
	}

	if c.X != prevX || c.Y != prevY || c.Zoom != prevZoom {
		c.dirty = true
	}
}

// clampToBounds restricts the position so the visible area stays within
// Bounds; bounds smaller than the visible area center the camera.
func (c *Camera) clampToBounds() {
	halfW := c.Viewport.Width / (2 * c.Zoom)
	halfH := c.Viewport.Height / (2 * c.Zoom)

	minX := c.Bounds.X + halfW
	maxX := c.Bounds.X + c.Bounds.Width - halfW
	minY := c.Bounds.Y + halfH
	maxY := c.Bounds.Y + c.Bounds.Height - halfH

	if minX > maxX {
		c.X = c.Bounds.X + c.Bounds.Width/2
	} else {
		c.X = math.Max(minX, math.Min(c.X, maxX))
	}
	if minY > maxY {
		c.Y = c.Bounds.Y + c.Bounds.Height/2
	} else {
		c.Y = math.Max(minY, math.Min(c.Y, maxY))
	}
}

// computeViewMatrix recomputes the cached view matrix if dirty.
//
// viewMatrix = Translate(cx, cy) * Scale(zoom) * Translate(-X, -Y)
// where cx, cy = viewport center.
func (c *Camera) computeViewMatrix() [6]float64 {
	if !c.dirty {
		return c.viewMatrix
	}
	c.dirty = false

	cx := c.Viewport.X + c.Viewport.Width/2
	cy := c.Viewport.Y + c.Viewport.Height/2
	z := c.Zoom

	c.viewMatrix = [6]float64{z, 0, 0, z, cx - z*c.X, cy - z*c.Y}
	c.invViewMatrix = invertAffine(c.viewMatrix)
	return c.viewMatrix
}

// ViewMatrix returns the world-to-screen affine matrix.
func (c *Camera) ViewMatrix() [6]float64 {
	return c.computeViewMatrix()
}

// ViewGeoM returns the world-to-screen transform as an ebiten.GeoM, ready
// for DrawImage and DrawTriangles submissions.
func (c *Camera) ViewGeoM() ebiten.GeoM {
	m := c.computeViewMatrix()
	var g ebiten.GeoM
	g.SetElement(0, 0, m[0])
	g.SetElement(0, 1, m[2])
	g.SetElement(0, 2, m[4])
	g.SetElement(1, 0, m[1])
	g.SetElement(1, 1, m[3])
	g.SetElement(1, 2, m[5])
	return g
}

// WorldToScreen converts world coordinates to screen coordinates.
func (c *Camera) WorldToScreen(wx, wy float64) (sx, sy float64) {
	c.computeViewMatrix()
	return transformPoint(c.viewMatrix, wx, wy)
}

// ScreenToWorld converts screen coordinates to world coordinates.
func (c *Camera) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	c.computeViewMatrix()
	return transformPoint(c.invViewMatrix, sx, sy)
}

// VisibleBounds returns the axis-aligned bounding rect of the visible area
// in world space.
func (c *Camera) VisibleBounds() Rect {
	c.computeViewMatrix()
	inv := c.invViewMatrix

	vx := c.Viewport.X
	vy := c.Viewport.Y
	vr := vx + c.Viewport.Width
	vb := vy + c.Viewport.Height

	x0, y0 := transformPoint(inv, vx, vy)
	x1, y1 := transformPoint(inv, vr, vy)
	x2, y2 := transformPoint(inv, vr, vb)
	x3, y3 := transformPoint(inv, vx, vb)

	minX := math.Min(math.Min(x0, x1), math.Min(x2, x3))
	minY := math.Min(math.Min(y0, y1), math.Min(y2, y3))
	maxX := math.Max(math.Max(x0, x1), math.Max(x2, x3))
	maxY := math.Max(math.Max(y0, y1), math.Max(y2, y3))

	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// MarkDirty forces recomputation of the view matrix.
func (c *Camera) MarkDirty() {
	c.dirty = true
}

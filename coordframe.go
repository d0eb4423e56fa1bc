package mapshine

// CoordFrame is the single conversion point between the host's coordinate
// system and the render frame, and the source of the uniform bundle every
// world-pinned shader consumes.
//
// The host frame has its origin at the top-left with Y increasing downward.
// The render frame keeps the same origin and axes on screen, but shader
// samples that address the scene texture use normalized UV with V growing
// downward too, so the only real conversion is between world pixels and
// scene-relative UV. All lengths passed to shaders are expressed in pixels
// and multiplied by the texel size; shaders never receive raw UV offsets.
type CoordFrame struct {
	sceneRect  Rect
	viewBounds Rect

	texelW float64
	texelH float64
}

// NewCoordFrame builds a frame for the given scene rectangle, the padded
// area of the map in host coordinates.
func NewCoordFrame(sceneRect Rect) *CoordFrame {
	f := &CoordFrame{}
	f.SetSceneRect(sceneRect)
	return f
}

// SetSceneRect replaces the scene rectangle and recomputes the texel size.
// A degenerate rectangle keeps the previous texel size so uniform consumers
// never divide by zero.
func (f *CoordFrame) SetSceneRect(r Rect) {
	f.sceneRect = r
	if r.Width > 0 && r.Height > 0 {
		f.texelW = 1 / r.Width
		f.texelH = 1 / r.Height
	}
}

// SetViewBounds records the world-space rectangle the camera currently
// sees. Environmental passes call this once per frame before rendering.
func (f *CoordFrame) SetViewBounds(r Rect) {
	f.viewBounds = r
}

// SceneRect returns the scene rectangle in host coordinates.
func (f *CoordFrame) SceneRect() Rect { return f.sceneRect }

// ViewBounds returns the world-space rectangle set by the last
// SetViewBounds call.
func (f *CoordFrame) ViewBounds() Rect { return f.viewBounds }

// WorldToSceneUV converts a host world point to scene-relative UV in
// [0, 1] for points inside the scene rectangle.
func (f *CoordFrame) WorldToSceneUV(x, y float64) (u, v float64) {
	return (x - f.sceneRect.X) * f.texelW, (y - f.sceneRect.Y) * f.texelH
}

// SceneUVToWorld converts scene-relative UV back to a host world point.
func (f *CoordFrame) SceneUVToWorld(u, v float64) (x, y float64) {
	return f.sceneRect.X + u*f.sceneRect.Width, f.sceneRect.Y + v*f.sceneRect.Height
}

// PixelsToUV converts a length in world pixels to UV units along each axis.
// This is the hard rule for shader offsets: lengths are specified in pixels
// and scaled by the texel size at upload time, never as raw UV.
func (f *CoordFrame) PixelsToUV(px float64) (du, dv float64) {
	return px * f.texelW, px * f.texelH
}

// SceneTargetSize returns the pixel resolution scene-space render targets
// use: the scene rectangle clamped to the texture size limit. Every
// scene-space texture shares this resolution so multi-source shader passes
// stay size-homogeneous.
func (f *CoordFrame) SceneTargetSize() (int, int) {
	return clampTargetSize(int(f.sceneRect.Width), int(f.sceneRect.Height))
}

// UViewBounds returns the view bounds as {minU, minV, maxU, maxV} in
// scene-relative UV, the form world-pinned shaders sample with.
func (f *CoordFrame) UViewBounds() []float32 {
	minU, minV := f.WorldToSceneUV(f.viewBounds.X, f.viewBounds.Y)
	maxU, maxV := f.WorldToSceneUV(f.viewBounds.X+f.viewBounds.Width, f.viewBounds.Y+f.viewBounds.Height)
	return []float32{float32(minU), float32(minV), float32(maxU), float32(maxV)}
}

// USceneBounds returns {x, y, width, height} of the scene rectangle in host
// coordinates.
func (f *CoordFrame) USceneBounds() []float32 {
	return []float32{
		float32(f.sceneRect.X), float32(f.sceneRect.Y),
		float32(f.sceneRect.Width), float32(f.sceneRect.Height),
	}
}

// USceneDimensions returns {width, height} of the scene rectangle.
func (f *CoordFrame) USceneDimensions() []float32 {
	return []float32{float32(f.sceneRect.Width), float32(f.sceneRect.Height)}
}

// UTexelSize returns {1/width, 1/height} of the scene rectangle.
func (f *CoordFrame) UTexelSize() []float32 {
	return []float32{float32(f.texelW), float32(f.texelH)}
}

// ApplyUniforms writes the four standard uniforms into a shader uniform
// map. Effects add their own entries afterwards.
func (f *CoordFrame) ApplyUniforms(uniforms map[string]any) {
	uniforms["UViewBounds"] = f.UViewBounds()
	uniforms["USceneBounds"] = f.USceneBounds()
	uniforms["USceneDimensions"] = f.USceneDimensions()
	uniforms["UTexelSize"] = f.UTexelSize()
}

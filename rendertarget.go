package mapshine

import (
	"image"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// maxTargetSize caps offscreen target dimensions. Scene rectangles larger
// than this are scaled down preserving aspect ratio; shaders address
// targets in UV so consumers never notice the reduced resolution.
const maxTargetSize = 4096

// RenderTarget is a persistent offscreen canvas owned by a single effect.
// Unlike pooled scratch images it survives across frames; accumulation
// targets (fog exploration) rely on that. Shared exposure through the
// composer is read-only by convention.
type RenderTarget struct {
	image *ebiten.Image
	w, h  int
}

// NewRenderTarget creates a persistent offscreen canvas of the given size,
// clamped to maxTargetSize preserving aspect ratio.
func NewRenderTarget(w, h int) *RenderTarget {
	w, h = clampTargetSize(w, h)
	return &RenderTarget{
		image: ebiten.NewImage(w, h),
		w:     w,
		h:     h,
	}
}

// Image returns the underlying *ebiten.Image for direct manipulation.
func (rt *RenderTarget) Image() *ebiten.Image {
	if debugChecks {
		debugCheckTarget(rt, "Image")
	}
	return rt.image
}

// Width returns the target width in pixels.
func (rt *RenderTarget) Width() int {
	return rt.w
}

// Height returns the target height in pixels.
func (rt *RenderTarget) Height() int {
	return rt.h
}

// Clear fills the target with transparent black.
func (rt *RenderTarget) Clear() {
	if debugChecks {
		debugCheckTarget(rt, "Clear")
	}
	rt.image.Clear()
}

// Fill fills the entire target with the given color.
func (rt *RenderTarget) Fill(c Color) {
	if debugChecks {
		debugCheckTarget(rt, "Fill")
	}
	rt.image.Fill(c.toRGBA())
}

// DrawImage draws src onto this target using the provided options.
func (rt *RenderTarget) DrawImage(src *ebiten.Image, op *ebiten.DrawImageOptions) {
	if debugChecks {
		debugCheckTarget(rt, "DrawImage")
	}
	rt.image.DrawImage(src, op)
}

// DrawImageAt draws src at the given position with the specified blend mode.
func (rt *RenderTarget) DrawImageAt(src *ebiten.Image, x, y float64, blend BlendMode) {
	if debugChecks {
		debugCheckTarget(rt, "DrawImageAt")
	}
	var op ebiten.DrawImageOptions
	op.GeoM.Translate(x, y)
	op.Blend = blend.EbitenBlend()
	rt.image.DrawImage(src, &op)
}

// Resize deallocates the old image and creates a new one at the given
// dimensions. Contents are lost; a GPU texture cannot be resized in place.
func (rt *RenderTarget) Resize(w, h int) {
	w, h = clampTargetSize(w, h)
	if w == rt.w && h == rt.h {
		return
	}
	if rt.image != nil {
		rt.image.Deallocate()
	}
	rt.image = ebiten.NewImage(w, h)
	rt.w = w
	rt.h = h
}

// Dispose deallocates the underlying image. The RenderTarget must not be
// used after calling Dispose.
func (rt *RenderTarget) Dispose() {
	if rt.image != nil {
		rt.image.Deallocate()
		rt.image = nil
	}
}

// clampTargetSize limits (w, h) to maxTargetSize on the longer axis,
// preserving aspect ratio. Non-positive dimensions become 1.
func clampTargetSize(w, h int) (int, int) {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	longer := w
	if h > longer {
		longer = h
	}
	if longer <= maxTargetSize {
		return w, h
	}
	scale := float64(maxTargetSize) / float64(longer)
	w = int(math.Round(float64(w) * scale))
	h = int(math.Round(float64(h) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// --- Ping-pong pair ---

// PingPong is a read/write pair of same-sized targets for accumulation
// passes. A pass samples Read and renders to Write, then calls Swap; the
// pair is never aliased, which keeps every pass a legal
// sample-from-one-draw-to-other operation.
type PingPong struct {
	read  *RenderTarget
	write *RenderTarget
}

// NewPingPong creates a pair of targets of the given size.
func NewPingPong(w, h int) *PingPong {
	return &PingPong{
		read:  NewRenderTarget(w, h),
		write: NewRenderTarget(w, h),
	}
}

// Read returns the target holding the result of the last completed pass.
func (p *PingPong) Read() *RenderTarget { return p.read }

// Write returns the target the current pass renders into.
func (p *PingPong) Write() *RenderTarget { return p.write }

// Swap exchanges the read and write targets. Called after every
// accumulation pass.
func (p *PingPong) Swap() {
	p.read, p.write = p.write, p.read
}

// Resize resizes both targets. Contents are lost.
func (p *PingPong) Resize(w, h int) {
	p.read.Resize(w, h)
	p.write.Resize(w, h)
}

// Dispose deallocates both targets.
func (p *PingPong) Dispose() {
	p.read.Dispose()
	p.write.Dispose()
}

// --- Scratch target pool ---

// renderTargetPool manages reusable offscreen ebiten.Images keyed by exact
// dimensions. After warmup, Acquire/Release are zero-alloc. Sizes are kept
// exact rather than rounded up: shader passes require every source image
// to match the destination rect, so a padded scratch image would be
// unusable there. Frame-recurring sizes (screen, scene) hit the same
// buckets every frame.
type renderTargetPool struct {
	buckets map[uint64][]*ebiten.Image
}

// poolKey packs width and height into a single uint64.
func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// Acquire returns a cleared offscreen image of exactly (w, h) pixels.
func (p *renderTargetPool) Acquire(w, h int) *ebiten.Image {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	key := poolKey(w, h)

	if p.buckets != nil {
		if stack := p.buckets[key]; len(stack) > 0 {
			img := stack[len(stack)-1]
			p.buckets[key] = stack[:len(stack)-1]
			img.Clear()
			return img
		}
	}

	return ebiten.NewImageWithOptions(
		image.Rect(0, 0, w, h),
		&ebiten.NewImageOptions{Unmanaged: true},
	)
}

// Release returns an image to the pool for reuse. The image is cleared on
// next Acquire, not here (avoids redundant GPU work if released then
// immediately re-acquired).
func (p *renderTargetPool) Release(img *ebiten.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	key := poolKey(b.Dx(), b.Dy())

	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	p.buckets[key] = append(p.buckets[key], img)
}

// Drain deallocates every pooled image. Called on scene teardown.
func (p *renderTargetPool) Drain() {
	for key, stack := range p.buckets {
		for _, img := range stack {
			img.Deallocate()
		}
		delete(p.buckets, key)
	}
}

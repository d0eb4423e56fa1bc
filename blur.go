package mapshine

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// Filter is the interface for image-to-image passes used inside effect
// pipelines (shadow softening, vision-mode grading).
type Filter interface {
	// Apply renders src into dst with the filter effect.
	Apply(src, dst *ebiten.Image)
	// Padding returns the extra pixels needed around the source to
	// accommodate the effect. Zero means no padding.
	Padding() int
}

// --- BlurFilter ---

// BlurFilter applies a Kawase iterative blur using downscale/upscale passes.
// No Kage shader needed; bilinear filtering during DrawImage does the work.
// Cloud and cast shadows run this every frame with a zoom-scaled radius, so
// the temp chain is retained between applications.
type BlurFilter struct {
	Radius int
	temps  []*ebiten.Image
	imgOp  ebiten.DrawImageOptions
}

// NewBlurFilter creates a blur filter with the given radius (in pixels).
func NewBlurFilter(radius int) *BlurFilter {
	if radius < 0 {
		radius = 0
	}
	return &BlurFilter{Radius: radius}
}

// Apply renders a Kawase blur from src into dst using iterative
// downscale/upscale. Radius 0 degrades to a plain copy.
func (f *BlurFilter) Apply(src, dst *ebiten.Image) {
	if f.Radius <= 0 {
		f.imgOp.GeoM.Reset()
		f.imgOp.ColorScale.Reset()
		f.imgOp.Filter = ebiten.FilterNearest
		dst.DrawImage(src, &f.imgOp)
		return
	}

	// Number of iterations: log2(radius), minimum 1.
	passes := int(math.Ceil(math.Log2(float64(f.Radius))))
	if passes < 1 {
		passes = 1
	}

	srcBounds := src.Bounds()
	w, h := srcBounds.Dx(), srcBounds.Dy()

	// Grow/shrink the temp chain; the downscale chain is reused on the way
	// back up.
	needed := passes
	for len(f.temps) < needed {
		f.temps = append(f.temps, nil)
	}
	for i := needed; i < len(f.temps); i++ {
		if f.temps[i] != nil {
			f.temps[i].Deallocate()
			f.temps[i] = nil
		}
	}
	f.temps = f.temps[:needed]

	op := &f.imgOp

	// Downscale passes: each half-size.
	current := src
	for i := 0; i < passes; i++ {
		w = max(w/2, 1)
		h = max(h/2, 1)
		if f.temps[i] == nil || f.temps[i].Bounds().Dx() != w || f.temps[i].Bounds().Dy() != h {
			if f.temps[i] != nil {
				f.temps[i].Deallocate()
			}
			f.temps[i] = ebiten.NewImage(w, h)
		} else {
			f.temps[i].Clear()
		}
		op.GeoM.Reset()
		op.ColorScale.Reset()
		sw := float64(current.Bounds().Dx())
		sh := float64(current.Bounds().Dy())
		op.GeoM.Scale(float64(w)/sw, float64(h)/sh)
		op.Filter = ebiten.FilterLinear
		f.temps[i].DrawImage(current, op)
		current = f.temps[i]
	}

	// Upscale passes: draw each back up.
	for i := passes - 2; i >= 0; i-- {
		f.temps[i].Clear()
		op.GeoM.Reset()
		op.ColorScale.Reset()
		sw := float64(current.Bounds().Dx())
		sh := float64(current.Bounds().Dy())
		tw := float64(f.temps[i].Bounds().Dx())
		th := float64(f.temps[i].Bounds().Dy())
		op.GeoM.Scale(tw/sw, th/sh)
		op.Filter = ebiten.FilterLinear
		f.temps[i].DrawImage(current, op)
		current = f.temps[i]
	}

	// Final upscale to dst.
	op.GeoM.Reset()
	op.ColorScale.Reset()
	sw := float64(current.Bounds().Dx())
	sh := float64(current.Bounds().Dy())
	tw := float64(dst.Bounds().Dx())
	th := float64(dst.Bounds().Dy())
	op.GeoM.Scale(tw/sw, th/sh)
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(current, op)
}

// Padding returns the blur radius; offscreen buffers are expanded to avoid
// clipping.
func (f *BlurFilter) Padding() int { return f.Radius }

// Dispose deallocates the retained temp chain.
func (f *BlurFilter) Dispose() {
	for i, img := range f.temps {
		if img != nil {
			img.Deallocate()
			f.temps[i] = nil
		}
	}
	f.temps = f.temps[:0]
}

// --- ColorMatrixFilter ---

// ColorMatrixFilter applies a 4x5 color matrix transformation using a Kage
// shader. The matrix is stored in row-major order:
// [R_r, R_g, R_b, R_a, R_offset, G_r, ...]. Vision modes compose their
// grade (saturation, brightness, contrast, tint) into a single matrix and
// run one pass.
type ColorMatrixFilter struct {
	Matrix      [20]float64
	uniforms    map[string]any
	matrixF32   [20]float32 // persistent buffer to avoid per-frame slice escape
	matrixSlice []float32   // persistent slice header pointing into matrixF32
	shaderOp    ebiten.DrawRectShaderOptions
}

// NewColorMatrixFilter creates a color matrix filter initialized to the
// identity.
func NewColorMatrixFilter() *ColorMatrixFilter {
	f := &ColorMatrixFilter{
		uniforms: make(map[string]any, 1),
	}
	f.matrixSlice = f.matrixF32[:]
	f.uniforms["Matrix"] = f.matrixSlice
	f.Matrix = identityColorMatrix
	return f
}

// identityColorMatrix passes colors through unchanged.
var identityColorMatrix = [20]float64{
	1, 0, 0, 0, 0,
	0, 1, 0, 0, 0,
	0, 0, 1, 0, 0,
	0, 0, 0, 1, 0,
}

// saturationMatrix returns a matrix scaling saturation. s=1 is normal,
// 0 grayscale. Luma weights are Rec. 601.
func saturationMatrix(s float64) [20]float64 {
	sr := (1 - s) * 0.299
	sg := (1 - s) * 0.587
	sb := (1 - s) * 0.114
	return [20]float64{
		sr + s, sg, sb, 0, 0,
		sr, sg + s, sb, 0, 0,
		sr, sg, sb + s, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// brightnessMatrix returns a matrix offsetting channels by b in [-1, 1].
func brightnessMatrix(b float64) [20]float64 {
	return [20]float64{
		1, 0, 0, 0, b,
		0, 1, 0, 0, b,
		0, 0, 1, 0, b,
		0, 0, 0, 1, 0,
	}
}

// contrastMatrix returns a matrix scaling contrast around mid-gray.
// c=1 is normal, 0 flat gray.
func contrastMatrix(c float64) [20]float64 {
	t := (1.0 - c) / 2.0
	return [20]float64{
		c, 0, 0, 0, t,
		0, c, 0, 0, t,
		0, 0, c, 0, t,
		0, 0, 0, 1, 0,
	}
}

// tintMatrix returns a matrix scaling each channel by the tint color.
func tintMatrix(tint Color) [20]float64 {
	return [20]float64{
		tint.R, 0, 0, 0, 0,
		0, tint.G, 0, 0, 0,
		0, 0, tint.B, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// multiplyColorMatrix composes two 4x5 matrices: result applies b first,
// then a.
func multiplyColorMatrix(a, b [20]float64) [20]float64 {
	var out [20]float64
	for row := 0; row < 4; row++ {
		for col := 0; col < 5; col++ {
			sum := 0.0
			for k := 0; k < 4; k++ {
				sum += a[row*5+k] * b[k*5+col]
			}
			if col == 4 {
				sum += a[row*5+4]
			}
			out[row*5+col] = sum
		}
	}
	return out
}

// lerpColorMatrix interpolates element-wise between a and b by t.
func lerpColorMatrix(a, b [20]float64, t float64) [20]float64 {
	var out [20]float64
	for i := range out {
		out[i] = a[i] + (b[i]-a[i])*t
	}
	return out
}

// Apply renders the color matrix transformation from src into dst.
func (f *ColorMatrixFilter) Apply(src, dst *ebiten.Image) {
	shader := ensureColorMatrixShader()
	// Convert [20]float64 to [20]float32 in-place (no allocation; the
	// slice header is pre-stored in the uniforms map).
	for i, v := range f.Matrix {
		f.matrixF32[i] = float32(v)
	}
	bounds := src.Bounds()
	f.shaderOp.Images[0] = src
	f.shaderOp.Uniforms = f.uniforms
	dst.DrawRectShader(bounds.Dx(), bounds.Dy(), shader, &f.shaderOp)
}

// Padding returns 0; color matrix transforms don't expand the image bounds.
func (f *ColorMatrixFilter) Padding() int { return 0 }

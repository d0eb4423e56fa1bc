package mapshine

import (
	"math/rand/v2"

	"github.com/hajimehoshi/ebiten/v2"
)

// ModuleID is the namespace under which per-scene flags and settings are
// stored on the host.
const ModuleID = "map-shine-advanced"

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
// Premultiplication occurs at render submission time.
type Color struct {
	R, G, B, A float64
}

// ColorWhite is the default tint (no color modification).
var ColorWhite = Color{1, 1, 1, 1}

// Lerp returns the component-wise interpolation between c and other by t.
func (c Color) Lerp(other Color, t float64) Color {
	return Color{
		R: c.R + (other.R-c.R)*t,
		G: c.G + (other.G-c.G)*t,
		B: c.B + (other.B-c.B)*t,
		A: c.A + (other.A-c.A)*t,
	}
}

// Scale returns the color with R, G and B multiplied by s. Alpha is kept.
func (c Color) Scale(s float64) Color {
	return Color{R: c.R * s, G: c.G * s, B: c.B * s, A: c.A}
}

// Quantized returns the color packed to 8 bits per channel. Two colors with
// the same quantized key are indistinguishable on screen, which lets callers
// skip re-applying tints that did not visibly change.
func (c Color) Quantized() uint32 {
	r := uint32(clamp01(c.R)*255 + 0.5)
	g := uint32(clamp01(c.G)*255 + 0.5)
	b := uint32(clamp01(c.B)*255 + 0.5)
	a := uint32(clamp01(c.A)*255 + 0.5)
	return r<<24 | g<<16 | b<<8 | a
}

// Vec2 is a 2D vector used for positions, offsets, sizes, and directions
// throughout the API.
type Vec2 struct {
	X, Y float64
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Mul returns v scaled by s.
func (v Vec2) Mul(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Rect is an axis-aligned rectangle. The host coordinate system has its
// origin at the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other overlap.
// Adjacent rectangles (sharing only an edge) are considered intersecting.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width &&
		r.X+r.Width >= other.X &&
		r.Y <= other.Y+other.Height &&
		r.Y+r.Height >= other.Y
}

// Range is a general-purpose min/max range used by the lightning scheduler
// and the particle swarm.
type Range struct {
	Min, Max float64
}

// Random returns a random float64 in [Min, Max].
func (r Range) Random() float64 {
	if r.Min == r.Max {
		return r.Min
	}
	return r.Min + rand.Float64()*(r.Max-r.Min)
}

// Lerp returns the value at t between Min and Max.
func (r Range) Lerp(t float64) float64 {
	return r.Min + (r.Max-r.Min)*t
}

// LayerBucket assigns an effect to one of the three fixed composition
// stages. Buckets are always processed in the order Surface, Environmental
// (pre-pass only), Post.
type LayerBucket uint8

const (
	// LayerSurface effects draw ground overlays that share the base plane's
	// geometry (bush sway, prism, lightning ribbons, swarms).
	LayerSurface LayerBucket = iota
	// LayerEnvironmental effects produce off-screen textures consumed by
	// others (clouds, cast shadows, illumination). They never draw to the
	// main frame.
	LayerEnvironmental
	// LayerPost effects run in the full-screen ping-pong chain after the
	// floors have been composited (lighting composite, vision modes).
	LayerPost
)

// String returns the bucket name used in logs and capability listings.
func (b LayerBucket) String() string {
	switch b {
	case LayerSurface:
		return "surface"
	case LayerEnvironmental:
		return "environmental"
	case LayerPost:
		return "post"
	default:
		return "unknown"
	}
}

// Tier classifies an effect's GPU cost so a client can gate expensive
// effects on weaker hardware.
type Tier uint8

const (
	TierLow    Tier = iota // cheap enough for any GPU
	TierMedium             // one or two full-screen passes
	TierHigh               // multi-pass or per-frame noise generation
)

// String returns the tier name used in capability listings.
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	default:
		return "unknown"
	}
}

// FloorScope controls whether an effect participates once per frame or once
// per floor band during the main pass.
type FloorScope uint8

const (
	FloorScopePerFloor FloorScope = iota // default: runs for every floor band
	FloorScopeGlobal                     // runs exactly once per frame
)

// Shared texture identifiers. The names are part of the cross-effect
// contract: consumers pull collaborator output through these keys, so
// ordering within a bucket decides whether they observe the current or the
// previous frame's value.
const (
	TexOverheadShadow = "tOverheadShadow"
	TexBuildingShadow = "tBuildingShadow"
	TexCloudShadow    = "tCloudShadow"
	TexCloudDensity   = "tCloudDensity"
	TexOutdoorsMask   = "tOutdoorsMask"
	TexRoofAlpha      = "tRoofAlpha"
	TexLight          = "tLight"
	TexShadowPack     = "tShadowPack"
)

// Well-known mask identifiers published by the asset bundle.
const (
	MaskOutdoors = "_Outdoors"
	MaskBush     = "_Bush"
	MaskPrism    = "_Prism"
	MaskRoof     = "_Roof"
)

// TimeInfo carries the per-frame clock handed to every effect update.
// ElapsedSec already includes the environment time scale; DeltaSec is the
// raw wall-clock frame delta.
type TimeInfo struct {
	ElapsedSec float64
	DeltaSec   float64
	Frame      uint64
}

// BlendMode selects a compositing operation. Each maps to a specific
// ebiten.Blend value.
type BlendMode uint8

const (
	BlendNormal   BlendMode = iota // source-over (standard alpha blending)
	BlendAdd                       // additive / lighter
	BlendMultiply                  // multiply (source * destination; only darkens)
	BlendScreen                    // screen (1 - (1-src)*(1-dst); only brightens)
	BlendErase                     // destination-out (punch transparent holes)
	BlendMask                      // clip destination to source alpha
	BlendBelow                     // destination-over (draw behind existing content)
	BlendNone                      // opaque copy (skip blending)
)

// EbitenBlend returns the ebiten.Blend value corresponding to this BlendMode.
func (b BlendMode) EbitenBlend() ebiten.Blend {
	switch b {
	case BlendNormal:
		return ebiten.BlendSourceOver
	case BlendAdd:
		return ebiten.BlendLighter
	case BlendMultiply:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorDestinationColor,
			BlendFactorSourceAlpha:      ebiten.BlendFactorDestinationAlpha,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceAlpha,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendScreen:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorOne,
			BlendFactorSourceAlpha:      ebiten.BlendFactorOne,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceColor,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendErase:
		return ebiten.BlendDestinationOut
	case BlendMask:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorZero,
			BlendFactorSourceAlpha:      ebiten.BlendFactorZero,
			BlendFactorDestinationRGB:   ebiten.BlendFactorSourceAlpha,
			BlendFactorDestinationAlpha: ebiten.BlendFactorSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendBelow:
		return ebiten.BlendDestinationOver
	case BlendNone:
		return ebiten.BlendCopy
	default:
		return ebiten.BlendSourceOver
	}
}

// WhitePixel is a 1x1 white image used for solid color quads and untextured
// polygon meshes.
var WhitePixel *ebiten.Image

func init() {
	WhitePixel = ebiten.NewImage(1, 1)
	WhitePixel.Fill(ColorWhite.toRGBA())
}

// toRGBA converts a Color to a color.Color (premultiplied).
func (c Color) toRGBA() colorRGBA {
	return colorRGBA{
		R: uint8(clamp01(c.R*c.A) * 255),
		G: uint8(clamp01(c.G*c.A) * 255),
		B: uint8(clamp01(c.B*c.A) * 255),
		A: uint8(clamp01(c.A) * 255),
	}
}

// colorRGBA implements the color.Color interface for image fills.
type colorRGBA struct {
	R, G, B, A uint8
}

func (c colorRGBA) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R) * 0x101
	g = uint32(c.G) * 0x101
	b = uint32(c.B) * 0x101
	a = uint32(c.A) * 0x101
	return
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// lerp linearly interpolates between a and b by t.
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// lerp32 linearly interpolates between a and b by t (float32).
func lerp32(a, b, t float32) float32 {
	return a + (b-a)*t
}

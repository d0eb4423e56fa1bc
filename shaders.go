package mapshine

import (
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
)

// Shader registry names. Live overrides (see ShaderWatcher) address
// shaders by these keys.
const (
	ShaderColorMatrix    = "colormatrix"
	ShaderExplorationMax = "explorationmax"
	ShaderFog            = "fog"
	ShaderCloudDensity   = "clouddensity"
	ShaderCloudShadow    = "cloudshadow"
	ShaderCloudTops      = "cloudtops"
	ShaderBuildingShadow = "buildingshadow"
	ShaderChannelPack    = "channelpack"
	ShaderLighting       = "lighting"
	ShaderBush           = "bush"
	ShaderPrism          = "prism"
)

// --- Kage shader sources ---
// All shaders use //kage:unit pixels as required by Ebitengine.
// Ebitengine uses premultiplied alpha; shaders un-premultiply before
// processing and re-premultiply output where needed.
//
// Sampling contract: every source image bound to a pass has the same
// dimensions as the destination rect (the asset bundle normalizes all
// scene-space textures to one resolution, post passes run at screen
// resolution). Length offsets arrive in pixels of that shared space.

const colorMatrixShaderSrc = `//kage:unit pixels
package main

var Matrix [20]float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	// Un-premultiply alpha.
	if c.a > 0 {
		c.rgb /= c.a
	}
	// Apply 4x5 color matrix (row-major, offset in elements 4,9,14,19).
	r := Matrix[0]*c.r + Matrix[1]*c.g + Matrix[2]*c.b + Matrix[3]*c.a + Matrix[4]
	g := Matrix[5]*c.r + Matrix[6]*c.g + Matrix[7]*c.b + Matrix[8]*c.a + Matrix[9]
	b := Matrix[10]*c.r + Matrix[11]*c.g + Matrix[12]*c.b + Matrix[13]*c.a + Matrix[14]
	a := Matrix[15]*c.r + Matrix[16]*c.g + Matrix[17]*c.b + Matrix[18]*c.a + Matrix[19]
	// Clamp and re-premultiply.
	r = clamp(r, 0, 1)
	g = clamp(g, 0, 1)
	b = clamp(b, 0, 1)
	a = clamp(a, 0, 1)
	return vec4(r*a, g*a, b*a, a)
}
`

// explorationMaxShaderSrc accumulates the exploration mask: the write
// target receives the per-texel maximum of the previous exploration
// (image 0) and the current vision (image 1). Monotonic: a texel never
// becomes less explored.
const explorationMaxShaderSrc = `//kage:unit pixels
package main

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	prev := imageSrc0At(src).r
	vis := imageSrc1At(src).r
	v := max(prev, vis)
	return vec4(v, v, v, 1)
}
`

// fogShaderSrc composites the fog plane. Image 0 is the vision texture
// (current LOS, softened), image 1 the accumulated exploration mask.
// Unexplored regions get the opaque unexplored color, explored-but-unseen
// regions the softer explored tint, currently visible regions are clear.
const fogShaderSrc = `//kage:unit pixels
package main

var UnexploredColor vec4
var ExploredColor vec4
var HasVision float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	vis := imageSrc0At(src).r * HasVision
	explored := imageSrc1At(src).r

	// The vision texture arrives pre-blurred, so a centered smoothstep
	// turns its gradient into a feathered edge.
	reveal := smoothstep(0.2, 0.8, vis)

	c := mix(UnexploredColor, ExploredColor, explored)
	a := c.a * (1.0 - reveal)
	return vec4(c.rgb*a, a)
}
`

// cloudDensityShaderSrc renders world-pinned fractal cloud cover into a
// view-sized target. UV is derived from the view bounds, so a camera pan
// moves the sampling window instead of the clouds (zero parallax).
const cloudDensityShaderSrc = `//kage:unit pixels
package main

var UViewBounds vec4
var WindOffset vec2
var NoiseScale float
var CloudCover float
var Time float

func hash(p vec2) float {
	return fract(sin(dot(p, vec2(127.1, 311.7))) * 43758.5453123)
}

func noise(p vec2) float {
	i := floor(p)
	f := fract(p)
	u := f * f * (3.0 - 2.0*f)
	a := hash(i)
	b := hash(i + vec2(1, 0))
	c := hash(i + vec2(0, 1))
	d := hash(i + vec2(1, 1))
	return mix(mix(a, b, u.x), mix(c, d, u.x), u.y)
}

func fbm(p vec2) float {
	v := 0.0
	amp := 0.5
	for i := 0; i < 5; i++ {
		v += amp * noise(p)
		p *= 2.0
		amp *= 0.5
	}
	return v / 0.96875
}

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	uv := (dst.xy - imageDstOrigin()) / imageDstSize()
	wu := mix(UViewBounds.x, UViewBounds.z, uv.x)
	wv := mix(UViewBounds.y, UViewBounds.w, uv.y)

	p := vec2(wu, wv)*NoiseScale + WindOffset
	d := fbm(p + vec2(Time*0.013, -Time*0.009))

	// Cover threshold: higher cover lowers the cutoff so more of the
	// noise field reads as cloud.
	lo := 0.78 - CloudCover*0.55
	d = smoothstep(lo, lo+0.28, d)
	return vec4(d, d, d, 1)
}
`

// cloudShadowShaderSrc samples the density field displaced along the sun
// direction and gates it by the outdoors mask so interiors are never
// darkened. Output is a shadow factor: 1 unshadowed, lower under cloud.
const cloudShadowShaderSrc = `//kage:unit pixels
package main

var SunOffsetPx vec2
var ShadowStrength float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	d := imageSrc0At(src + SunOffsetPx).r
	outdoors := imageSrc1At(src).r
	f := 1.0 - d*ShadowStrength*outdoors
	return vec4(f, f, f, 1)
}
`

// cloudTopsShaderSrc shades the density field as white cloud tops whose
// opacity the caller fades by zoom (clouds read best zoomed out).
const cloudTopsShaderSrc = `//kage:unit pixels
package main

var TopsAlpha float
var TintColor vec4

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	d := imageSrc0At(src).r
	a := d * TopsAlpha
	return vec4(TintColor.rgb*a, a)
}
`

// buildingShadowShaderSrc casts long directional shadows from indoor
// regions (outdoors mask = 0) onto adjacent outdoor ground. Marching
// toward the sun with decaying weights approximates a soft directional
// convolution; SunStepPx sets per-tap length, so elongation scales with
// sun elevation on the CPU side.
const buildingShadowShaderSrc = `//kage:unit pixels
package main

var SunStepPx vec2
var Strength float
var TimeIntensity float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	occ := 0.0
	norm := 0.0
	for i := 1; i <= 24; i++ {
		w := 1.0 - float(i)/25.0
		s := imageSrc0At(src - SunStepPx*float(i)).r
		occ += (1.0 - s) * w
		norm += w
	}
	sh := clamp(occ/norm*Strength, 0.0, 1.0) * TimeIntensity
	// Only outdoor ground receives the cast; indoor texels keep factor 1.
	f := 1.0 - sh*imageSrc0At(src).r
	return vec4(f, f, f, 1)
}
`

// channelPackShaderSrc packs the R channels of up to three sources into
// one RGB texture. Shadow factors travel together so downstream passes
// spend one sampler instead of three.
const channelPackShaderSrc = `//kage:unit pixels
package main

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	r := imageSrc0At(src).r
	g := imageSrc1At(src).r
	b := imageSrc2At(src).r
	return vec4(r, g, b, 1)
}
`

// lightingShaderSrc is the central composite. Ambient light interpolates
// between the daylight and darkness colors by darkness level, is occluded
// by the packed shadow factors, and boosted outdoors by the lightning
// flash; dynamic lights bypass building and cloud shadow entirely and
// overhead shadow partially (KD). The result multiplies the base frame.
//
//	image 0: composed frame
//	image 1: light texture (screen projected)
//	image 2: packed shadow factors (R overhead, G building, B cloud)
//	image 3: outdoors mask (screen projected)
const lightingShaderSrc = `//kage:unit pixels
package main

var AmbientDay vec3
var AmbientNight vec3
var Darkness float
var KD float
var Flash float
var FlashColor vec3

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	base := imageSrc0At(src)
	light := imageSrc1At(src)
	shadows := imageSrc2At(src)
	outdoors := imageSrc3At(src).r

	ambient := mix(AmbientDay, AmbientNight, Darkness)
	ambient *= shadows.r * shadows.g * shadows.b
	ambient += FlashColor * Flash * outdoors

	total := ambient + light.rgb*mix(1.0, shadows.r, KD)
	return vec4(base.rgb*total, base.a)
}
`

// bushShaderSrc displaces foliage UVs by gust, orbital sway, and flutter,
// then applies color correction. Mask channels: R sway weight, G per-leaf
// phase, A coverage.
//
//	image 0: base scene color
//	image 1: bush mask
//	image 2: packed shadow factors (R overhead, G building, B cloud)
const bushShaderSrc = `//kage:unit pixels
package main

var Time float
var WindDir vec2
var WindStrength float
var GustScale float
var GustSpeed float
var Elasticity float
var FlutterFreq float
var FlutterAmp float
var SwayAmpPx float
var Exposure float
var Brightness float
var Contrast float
var Saturation float
var Temperature float
var TintGreen float

func hash(p vec2) float {
	return fract(sin(dot(p, vec2(127.1, 311.7))) * 43758.5453123)
}

func noise(p vec2) float {
	i := floor(p)
	f := fract(p)
	u := f * f * (3.0 - 2.0*f)
	a := hash(i)
	b := hash(i + vec2(1, 0))
	c := hash(i + vec2(0, 1))
	d := hash(i + vec2(1, 1))
	return mix(mix(a, b, u.x), mix(c, d, u.x), u.y)
}

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	m := imageSrc1At(src)
	if m.a < 0.01 {
		return vec4(0)
	}

	// Low-frequency gust field scrolling along the wind.
	gp := src*GustScale - WindDir*(Time*GustSpeed)
	gust := noise(gp)

	// Orbital sway: wind-aligned push plus perpendicular swing whose
	// amplitude rides the gust, turning piston motion into ellipses.
	perp := vec2(-WindDir.y, WindDir.x)
	phase := Time*Elasticity + m.g*6.2831853
	orbital := WindDir*cos(phase)*gust + perp*sin(phase)*gust*0.6

	// High-frequency per-leaf flutter.
	flutter := vec2(
		sin(Time*FlutterFreq+src.x*0.37+src.y*0.21),
		cos(Time*FlutterFreq*1.31+src.x*0.23),
	) * FlutterAmp

	off := (WindDir*gust + orbital) * (SwayAmpPx * WindStrength)
	off += flutter * WindStrength
	off *= m.r

	c := imageSrc0At(src + off)
	if c.a > 0 {
		c.rgb /= c.a
	}

	// Color correction.
	rgb := c.rgb * exp2(Exposure)
	rgb += vec3(Brightness)
	rgb = (rgb-0.5)*Contrast + 0.5
	lum := dot(rgb, vec3(0.299, 0.587, 0.114))
	rgb = mix(vec3(lum), rgb, Saturation)
	rgb += vec3(Temperature*0.1, TintGreen*0.1, -Temperature*0.1)
	rgb = clamp(rgb, 0.0, 1.0)

	// Receive the same shadowing as the base plane.
	sh := imageSrc2At(src)
	rgb *= sh.r * sh.g

	a := m.a
	return vec4(rgb*a, a)
}
`

// prismShaderSrc refracts the base map through an animated Voronoi facet
// field with spectral splitting and a moving glint.
//
//	image 0: base scene color
//	image 1: prism mask
//	image 2: packed shadow factors (R overhead, G building, B cloud)
const prismShaderSrc = `//kage:unit pixels
package main

var Time float
var FacetScale float
var DispersionPx float
var GlintSpeed float
var GlintIntensity float
var ParallaxPx vec2

func hash2(p vec2) vec2 {
	return fract(sin(vec2(
		dot(p, vec2(127.1, 311.7)),
		dot(p, vec2(269.5, 183.3)),
	)) * 43758.5453123)
}

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	m := imageSrc1At(src)
	if m.a < 0.01 {
		return vec4(0)
	}

	// Nearest Voronoi cell over a 3x3 neighborhood.
	p := (src + ParallaxPx) / FacetScale
	ip := floor(p)
	fp := fract(p)
	bestD := 8.0
	bestID := vec2(0)
	for y := -1; y <= 1; y++ {
		for x := -1; x <= 1; x++ {
			cell := vec2(float(x), float(y))
			site := hash2(ip + cell)
			d := length(cell + site - fp)
			if d < bestD {
				bestD = d
				bestID = site
			}
		}
	}

	// Facet normal wobbles over time for a living sparkle.
	ang := bestID.x*6.2831853 + sin(Time*0.7+bestID.y*6.2831853)*0.4
	n := vec2(cos(ang), sin(ang))
	off := n * DispersionPx

	r := imageSrc0At(src + off).r
	g := imageSrc0At(src + off*0.62).g
	b := imageSrc0At(src + off*0.25).b

	glint := pow(max(sin(Time*GlintSpeed+bestID.x*6.2831853+bestID.y*4.7), 0.0), 24.0)
	rgb := vec3(r, g, b) + vec3(glint*GlintIntensity)
	rgb = clamp(rgb, 0.0, 1.0)

	sh := imageSrc2At(src)
	rgb *= sh.r * sh.g

	a := m.a
	return vec4(rgb*a, a)
}
`

// --- Lazy shader compilation (no sync.Once; the core is single-threaded) ---

var builtinShaderSources = map[string]string{
	ShaderColorMatrix:    colorMatrixShaderSrc,
	ShaderExplorationMax: explorationMaxShaderSrc,
	ShaderFog:            fogShaderSrc,
	ShaderCloudDensity:   cloudDensityShaderSrc,
	ShaderCloudShadow:    cloudShadowShaderSrc,
	ShaderCloudTops:      cloudTopsShaderSrc,
	ShaderBuildingShadow: buildingShadowShaderSrc,
	ShaderChannelPack:    channelPackShaderSrc,
	ShaderLighting:       lightingShaderSrc,
	ShaderBush:           bushShaderSrc,
	ShaderPrism:          prismShaderSrc,
}

var (
	compiledShaders = map[string]*ebiten.Shader{}
	shaderOverrides = map[string]string{}
)

// ensureShader returns the compiled shader for name, compiling lazily. An
// active override that fails to compile is dropped with a log line and the
// built-in source takes over; a built-in that fails to compile is a
// programming error and panics.
func ensureShader(name string) *ebiten.Shader {
	if s := compiledShaders[name]; s != nil {
		return s
	}

	if src, ok := shaderOverrides[name]; ok {
		s, err := ebiten.NewShader([]byte(src))
		if err == nil {
			compiledShaders[name] = s
			return s
		}
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] shader override %q rejected: %v\n", name, err)
		delete(shaderOverrides, name)
	}

	src, ok := builtinShaderSources[name]
	if !ok {
		panic("mapshine: unknown shader " + name)
	}
	s, err := ebiten.NewShader([]byte(src))
	if err != nil {
		panic("mapshine: failed to compile " + name + " shader: " + err.Error())
	}
	compiledShaders[name] = s
	return s
}

// OverrideShaderSource installs replacement source for a named shader. The
// next ensure compiles it; a compile failure falls back to the built-in.
func OverrideShaderSource(name, src string) {
	shaderOverrides[name] = src
	delete(compiledShaders, name)
}

// ClearShaderOverride removes an override and restores the built-in source
// on next use.
func ClearShaderOverride(name string) {
	delete(shaderOverrides, name)
	delete(compiledShaders, name)
}

func ensureColorMatrixShader() *ebiten.Shader { return ensureShader(ShaderColorMatrix) }
func ensureExplorationMaxShader() *ebiten.Shader { return ensureShader(ShaderExplorationMax) }
func ensureFogShader() *ebiten.Shader { return ensureShader(ShaderFog) }
func ensureCloudDensityShader() *ebiten.Shader { return ensureShader(ShaderCloudDensity) }
func ensureCloudShadowShader() *ebiten.Shader { return ensureShader(ShaderCloudShadow) }
func ensureCloudTopsShader() *ebiten.Shader { return ensureShader(ShaderCloudTops) }
func ensureBuildingShadowShader() *ebiten.Shader { return ensureShader(ShaderBuildingShadow) }
func ensureChannelPackShader() *ebiten.Shader { return ensureShader(ShaderChannelPack) }
func ensureLightingShader() *ebiten.Shader { return ensureShader(ShaderLighting) }
func ensureBushShader() *ebiten.Shader { return ensureShader(ShaderBush) }
func ensurePrismShader() *ebiten.Shader { return ensureShader(ShaderPrism) }

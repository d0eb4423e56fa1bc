package mapshine

import (
	"fmt"
	"math"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
)

// Built-in vision mode ids. Hosts may register further modes with
// RegisterMode; the empty id always means normal sight.
const (
	VisionModeDarkvision         = "darkvision"
	VisionModeMonochromatic      = "monochromatic"
	VisionModeLightAmplification = "lightAmplification"
	VisionModeTremorsense        = "tremorsense"
)

const (
	visionModeDefaultSmoothing = 6.0

	// Below this per-element distance the smoothed matrix snaps to its
	// target, so a resting neutral grade is exactly the identity.
	visionModeSnapEpsilon = 1e-4
)

// VisionModeGrade is the color grade a vision mode applies to the finished
// frame. Saturation and Contrast are scale factors (1 = unchanged),
// Brightness is an offset in [-1, 1], Tint scales each channel. Strength
// blends the whole grade against normal sight; 0 leaves the frame
// untouched.
type VisionModeGrade struct {
	Saturation float64
	Brightness float64
	Contrast   float64
	Tint       Color
	Strength   float64
}

// matrix folds the grade into a single 4x5 color matrix: saturation, then
// contrast, then brightness, then tint.
func (g VisionModeGrade) matrix() [20]float64 {
	m := saturationMatrix(g.Saturation)
	m = multiplyColorMatrix(contrastMatrix(g.Contrast), m)
	m = multiplyColorMatrix(brightnessMatrix(g.Brightness), m)
	m = multiplyColorMatrix(tintMatrix(g.Tint), m)
	if g.Strength >= 1 {
		return m
	}
	return lerpColorMatrix(identityColorMatrix, m, clamp01(g.Strength))
}

func builtinVisionModes() map[string]VisionModeGrade {
	return map[string]VisionModeGrade{
		VisionModeDarkvision: {
			Saturation: 0.1, Brightness: 0.12, Contrast: 1.05,
			Tint: Color{R: 0.82, G: 0.88, B: 1.08, A: 1}, Strength: 1,
		},
		VisionModeMonochromatic: {
			Saturation: 0, Brightness: 0, Contrast: 1,
			Tint: ColorWhite, Strength: 1,
		},
		VisionModeLightAmplification: {
			Saturation: 0.35, Brightness: 0.3, Contrast: 1.1,
			Tint: Color{R: 0.72, G: 1.12, B: 0.78, A: 1}, Strength: 1,
		},
		VisionModeTremorsense: {
			Saturation: 0, Brightness: -0.18, Contrast: 1.25,
			Tint: Color{R: 0.92, G: 0.78, B: 1.18, A: 1}, Strength: 1,
		},
	}
}

// VisionModeEffect grades the composited frame for the sense the current
// viewer perceives the map with. Each frame it resolves the first
// controlled viewer with a non-empty vision mode, looks the mode up in its
// grade table, and eases the active color matrix toward that grade. The
// quad draws every frame, neutral grade included, so the post chain's read
// and write buffers keep swapping in step.
type VisionModeEffect struct {
	composer  *EffectComposer
	host      Host
	filter    *ColorMatrixFilter
	modes     map[string]VisionModeGrade
	smoothing float64
	active    string
	current   [20]float64
	target    [20]float64
	unknown   map[string]bool
}

// NewVisionModeEffect creates the vision mode pass with the built-in mode
// table. Register it with the composer to activate it.
func NewVisionModeEffect() *VisionModeEffect {
	return &VisionModeEffect{
		modes:     builtinVisionModes(),
		smoothing: visionModeDefaultSmoothing,
		current:   identityColorMatrix,
		target:    identityColorMatrix,
		unknown:   map[string]bool{},
	}
}

// Descriptor identifies the vision mode pass as the last post effect,
// above fog, so the grade covers the fully composited frame.
func (e *VisionModeEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:              "visionmode",
		Bucket:          LayerPost,
		Tier:            TierLow,
		FloorScope:      FloorScopeGlobal,
		DefaultPriority: 40,
		SupportsEnabled: true,
	}
}

func (e *VisionModeEffect) Initialize(ec *EffectComposer) error {
	e.composer = ec
	e.host = ec.Host()
	e.filter = NewColorMatrixFilter()
	// The write buffer holds a stale frame; the grade replaces it outright.
	e.filter.shaderOp.Blend = ebiten.BlendCopy
	return nil
}

// Update resolves the frame's vision mode and eases the active matrix
// toward its grade at smoothing speed per second.
func (e *VisionModeEffect) Update(ctx *FrameContext) error {
	e.active = e.resolveMode()
	e.target = e.targetMatrix(e.active)
	t := clamp01(e.smoothing * ctx.Time.DeltaSec)
	e.current = lerpColorMatrix(e.current, e.target, t)
	if matrixMaxDelta(e.current, e.target) < visionModeSnapEpsilon {
		e.current = e.target
	}
	return nil
}

// Apply grades the frame from read into write through the smoothed matrix.
func (e *VisionModeEffect) Apply(_ *FrameContext, read, write *ebiten.Image) (bool, error) {
	b := read.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return false, nil
	}
	e.filter.Matrix = e.current
	e.filter.Apply(read, write)
	return true, nil
}

func (e *VisionModeEffect) Resize(int, int) {}

// Deactivate snaps the grade back to normal sight, so a later re-enable
// starts neutral instead of popping in with a stale grade.
func (e *VisionModeEffect) Deactivate() {
	e.active = ""
	e.current = identityColorMatrix
	e.target = identityColorMatrix
}

func (e *VisionModeEffect) Dispose() {
	e.Deactivate()
}

// RegisterMode adds or replaces a vision mode grade. The empty id names
// normal sight and cannot be reassigned; registering it returns false.
func (e *VisionModeEffect) RegisterMode(id string, grade VisionModeGrade) bool {
	if id == "" {
		return false
	}
	e.modes[id] = grade
	delete(e.unknown, id)
	return true
}

// ActiveMode is the vision mode id resolved for the last frame. Empty
// means normal sight.
func (e *VisionModeEffect) ActiveMode() string { return e.active }

// SmoothingSpeed is the grade transition rate in units of full blend per
// second.
func (e *VisionModeEffect) SmoothingSpeed() float64 { return e.smoothing }

func (e *VisionModeEffect) SetSmoothingSpeed(v float64) {
	e.smoothing = max(v, 0)
}

// resolveMode picks the first controlled viewer with a non-empty vision
// mode. A GM with nothing controlled, or viewers with plain sight, grade
// as normal.
func (e *VisionModeEffect) resolveMode() string {
	for _, v := range e.host.ControlledViewers() {
		if mode := v.VisionMode(); mode != "" {
			return mode
		}
	}
	return ""
}

// targetMatrix maps a mode id to its grade matrix. Ids missing from the
// table fall back to normal sight with one log line per id.
func (e *VisionModeEffect) targetMatrix(id string) [20]float64 {
	if id == "" {
		return identityColorMatrix
	}
	grade, ok := e.modes[id]
	if !ok {
		if !e.unknown[id] {
			e.unknown[id] = true
			_, _ = fmt.Fprintf(os.Stderr, "[mapshine] vision mode %q not registered, grading as normal sight\n", id)
		}
		return identityColorMatrix
	}
	return grade.matrix()
}

func matrixMaxDelta(a, b [20]float64) float64 {
	var d float64
	for i := range a {
		d = max(d, math.Abs(a[i]-b[i]))
	}
	return d
}

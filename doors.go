package mapshine

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// --- door constants ---

const (
	// doorThicknessFactor sizes the leaf quad across the wall line as a
	// fraction of the scene grid size.
	doorThicknessFactor = 0.2

	// doorSwingArc is the full swing/swivel rotation at strength 1.
	doorSwingArc = math.Pi / 2

	doorAscendLift  = 0.5  // grid fractions risen at full open
	doorDescendSink = 0.25 // grid fractions sunk at full open
	doorAscendFade  = 0.75 // alpha removed at full open
)

// DoorPhase is the runtime animation state of a door leaf.
type DoorPhase int

const (
	DoorPhaseClosed DoorPhase = iota
	DoorPhaseOpening
	DoorPhaseOpen
	DoorPhaseClosing
)

func (p DoorPhase) String() string {
	switch p {
	case DoorPhaseClosed:
		return "closed"
	case DoorPhaseOpening:
		return "opening"
	case DoorPhaseOpen:
		return "open"
	case DoorPhaseClosing:
		return "closing"
	}
	return "unknown"
}

// DoorStyle identifies which leaf of a door a mesh renders.
type DoorStyle int

const (
	DoorStyleSingle DoorStyle = iota
	DoorStyleDoubleL
	DoorStyleDoubleR
)

// DoorPose is the animated displacement of a leaf relative to its closed
// placement. Angle rotates about the point PivotU along the leaf axis,
// SlideX translates along the leaf axis before rotation, Lift translates
// in world Y after it.
type DoorPose struct {
	Angle  float64
	PivotU float64
	SlideX float64
	Lift   float64
	Alpha  float64
}

// DoorMesh is one animated door leaf. Its closed placement is derived from
// the wall endpoints and the scene grid size alone; animation only ever
// contributes the pose on top.
type DoorMesh struct {
	WallID string
	Style  DoorStyle

	cfg DoorAnimConfig

	texture *ebiten.Image

	// closed placement
	hingeX, hingeY float64
	angle          float64
	length         float64
	thickness      float64
	mirrored       bool

	progress float32
	phase    DoorPhase
	tween    *gween.Tween

	tint Color
}

// Progress is the animation position in [0, 1]; 0 closed, 1 open.
func (m *DoorMesh) Progress() float64 { return float64(m.progress) }

// Phase reports the leaf's animation state.
func (m *DoorMesh) Phase() DoorPhase { return m.phase }

// Tint is the material color last applied by the global tint pass.
func (m *DoorMesh) Tint() Color { return m.tint }

// ClosedPlacement returns the hinge position, leaf axis angle and leaf
// length of the closed pose.
func (m *DoorMesh) ClosedPlacement() (hx, hy, angle, length float64) {
	return m.hingeX, m.hingeY, m.angle, m.length
}

// direction folds the configured swing direction and flip into one sign.
// Double right leaves mirror so the pair opens outward together.
func (m *DoorMesh) direction() float64 {
	d := m.cfg.Direction
	if d == 0 {
		d = 1
	}
	if m.cfg.Flip {
		d = -d
	}
	if m.Style == DoorStyleDoubleR {
		d = -d
	}
	return d
}

// Pose maps the current progress to the leaf displacement. The tween has
// already shaped progress over time, so every mapping here is linear in it.
func (m *DoorMesh) Pose() DoorPose {
	p := float64(m.progress)
	s := m.cfg.Strength
	if s == 0 {
		s = 1
	}
	pose := DoorPose{Alpha: 1}
	switch m.cfg.Type {
	case DoorAnimSwing:
		pose.Angle = m.direction() * p * doorSwingArc * s
	case DoorAnimSlide:
		pose.SlideX = -m.direction() * p * m.length * s
	case DoorAnimAscend:
		pose.Lift = -doorAscendLift * m.thickness / doorThicknessFactor * s * p
		pose.Alpha = 1 - doorAscendFade*p
	case DoorAnimDescend:
		pose.Lift = doorDescendSink * m.thickness / doorThicknessFactor * s * p
		pose.Alpha = 1 - p
	case DoorAnimSwivel:
		pose.Angle = m.direction() * p * doorSwingArc * s
		pose.PivotU = 0.5
	}
	return pose
}

// setImmediate jumps to fully closed or open with no tween. Used when a
// door first appears so loads do not replay its last transition.
func (m *DoorMesh) setImmediate(open bool) {
	m.tween = nil
	if open {
		m.progress = 1
		m.phase = DoorPhaseOpen
	} else {
		m.progress = 0
		m.phase = DoorPhaseClosed
	}
}

// setTarget starts a transition toward open or closed. A reversal mid-flight
// tweens from the current progress with a proportionally shortened duration,
// so a door caught half open closes in half the configured time.
func (m *DoorMesh) setTarget(open bool) {
	target := float32(0)
	if open {
		target = 1
	}
	if m.progress == target {
		m.setImmediate(open)
		return
	}
	dur := float32(m.cfg.Duration.Seconds())
	if dur <= 0 {
		m.setImmediate(open)
		return
	}
	span := target - m.progress
	if span < 0 {
		span = -span
	}
	m.tween = gween.New(m.progress, target, dur*span, ease.InOutSine)
	if open {
		m.phase = DoorPhaseOpening
	} else {
		m.phase = DoorPhaseClosing
	}
}

// advance steps the running tween, settling the phase when it finishes.
func (m *DoorMesh) advance(dt float64) {
	if m.tween == nil {
		return
	}
	v, done := m.tween.Update(float32(dt))
	m.progress = v
	if done {
		m.tween = nil
		if m.phase == DoorPhaseOpening {
			m.phase = DoorPhaseOpen
		} else {
			m.phase = DoorPhaseClosed
		}
	}
}

// DoorEffect renders an animated leaf mesh for every door-bearing wall and
// keeps all leaves tinted to the scene's effective light. Tinting is driven
// by an 8-bit quantized key so the mesh loop only runs when the resulting
// color actually changes.
type DoorEffect struct {
	composer *EffectComposer
	host     Host
	lighting *LightingEffect

	meshes map[string][]*DoorMesh
	order  []string

	rebuild bool

	tint    Color
	tintKey uint32
	tinted  bool

	verts []ebiten.Vertex
	inds  []uint16

	offs []func()
}

// NewDoorEffect builds the door layer. Register it on a composer to use it.
func NewDoorEffect() *DoorEffect {
	return &DoorEffect{meshes: map[string][]*DoorMesh{}}
}

func (e *DoorEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:              "doors",
		Bucket:          LayerSurface,
		Tier:            TierLow,
		FloorScope:      FloorScopeGlobal,
		DefaultPriority: 5,
		SupportsEnabled: true,
	}
}

func (e *DoorEffect) Initialize(ec *EffectComposer) error {
	e.composer = ec
	e.host = ec.Host()
	ev := e.host.Events()
	e.offs = append(e.offs,
		ev.On(HookCanvasReady, func(any) { e.rebuild = true }),
		ev.On(HookUpdateScene, func(any) { e.rebuild = true }),
		ev.On(HookCreateWall, func(v any) {
			if doc, ok := v.(WallDoc); ok {
				e.upsertWall(doc, true)
			}
		}),
		ev.On(HookUpdateWall, func(v any) {
			if doc, ok := v.(WallDoc); ok {
				e.upsertWall(doc, false)
			}
		}),
		ev.On(HookDeleteWall, func(v any) {
			if id, ok := v.(string); ok {
				e.removeWall(id)
			}
		}),
	)
	return nil
}

// Meshes returns the live leaves for a wall, or nil for walls without doors.
func (e *DoorEffect) Meshes(wallID string) []*DoorMesh { return e.meshes[wallID] }

// MeshCount reports the total number of live leaves.
func (e *DoorEffect) MeshCount() int {
	n := 0
	for _, leaves := range e.meshes {
		n += len(leaves)
	}
	return n
}

// GlobalTint is the current quantized door tint.
func (e *DoorEffect) GlobalTint() Color { return e.tint }

func (e *DoorEffect) Update(ctx *FrameContext) error {
	if e.rebuild {
		e.rebuild = false
		e.rebuildAll()
	}
	for _, id := range e.order {
		for _, m := range e.meshes[id] {
			m.advance(ctx.Time.DeltaSec)
		}
	}
	e.updateTint(ctx)
	return nil
}

// updateTint recomputes the global door tint from the scene light and
// pushes it to the meshes only when the 8-bit quantized key moves.
func (e *DoorEffect) updateTint(ctx *FrameContext) {
	level := e.effectiveDarkness(ctx)
	env := &ctx.Env

	ambient := Color{
		R: lerp(env.AmbientDaylight.R, env.AmbientDarkness.R, level),
		G: lerp(env.AmbientDaylight.G, env.AmbientDarkness.G, level),
		B: lerp(env.AmbientDaylight.B, env.AmbientDarkness.B, level),
		A: 1,
	}

	floor := max(1-level, 0.25)
	tint := Color{R: ambient.R * floor, G: ambient.G * floor, B: ambient.B * floor, A: 1}

	w := 0.35 * clamp01(env.SkyIntensity)
	tint.R = lerp(tint.R, env.SkyColor.R, w)
	tint.G = lerp(tint.G, env.SkyColor.G, w)
	tint.B = lerp(tint.B, env.SkyColor.B, w)

	key := quantizeTint(tint)
	if e.tinted && key == e.tintKey {
		return
	}
	e.tinted = true
	e.tintKey = key
	e.tint = dequantizeTint(key)
	for _, leaves := range e.meshes {
		for _, m := range leaves {
			m.tint = e.tint
		}
	}
}

// effectiveDarkness prefers the lighting effect's flash-adjusted level and
// falls back to folding the flash into the raw scene darkness itself.
func (e *DoorEffect) effectiveDarkness(ctx *FrameContext) float64 {
	if e.lighting == nil {
		if le, ok := e.composer.EffectByID("lighting").(*LightingEffect); ok {
			e.lighting = le
		}
	}
	if e.lighting != nil {
		return clamp01(e.lighting.EffectiveDarkness())
	}
	return clamp01(ctx.Env.DarknessLevel * (1 - ctx.Env.LightningFlash))
}

func (e *DoorEffect) DrawSurface(_ *FrameContext, dst *ebiten.Image, _ int) error {
	scene := e.composer.Scene()
	if scene == nil || scene.Scene() == nil {
		return nil
	}
	view := scene.Camera().ViewMatrix()
	for _, id := range e.order {
		for _, m := range e.meshes[id] {
			e.drawMesh(dst, view, m)
		}
	}
	return nil
}

// drawMesh submits one leaf quad. Leaves without a texture stay inert until
// a wall update re-arms the load.
func (e *DoorEffect) drawMesh(dst *ebiten.Image, view [6]float64, m *DoorMesh) {
	if m.texture == nil || m.length <= 0 {
		return
	}
	pose := m.Pose()
	if pose.Alpha <= 0 {
		return
	}

	pivotX := pose.PivotU * m.length
	px := m.hingeX + math.Cos(m.angle)*pivotX
	py := m.hingeY + math.Sin(m.angle)*pivotX

	base := composeAffine(px, py+pose.Lift, m.angle+pose.Angle, 1, 1, pivotX, m.thickness/2)
	slide := identityAffine
	slide[4] = pose.SlideX
	world := multiplyAffine(base, slide)
	screen := multiplyAffine(view, world)

	tw := float64(m.texture.Bounds().Dx())
	th := float64(m.texture.Bounds().Dy())
	tm := [6]float64{tw / m.length, 0, 0, th / m.thickness, 0, 0}
	if m.mirrored {
		tm[0] = -tm[0]
		tm[4] = tw
	}

	e.verts = e.verts[:0]
	e.inds = e.inds[:0]
	e.verts, e.inds = appendTexturedQuad(e.verts, e.inds, screen, tm, m.length, m.thickness, pose.Alpha)
	for i := range e.verts {
		e.verts[i].ColorR = float32(m.tint.R)
		e.verts[i].ColorG = float32(m.tint.G)
		e.verts[i].ColorB = float32(m.tint.B)
	}
	op := &ebiten.DrawTrianglesOptions{}
	dst.DrawTriangles(e.verts, e.inds, m.texture, op)
}

func (e *DoorEffect) Resize(int, int) {}

func (e *DoorEffect) Dispose() {
	for _, off := range e.offs {
		off()
	}
	e.offs = nil
	for id := range e.meshes {
		delete(e.meshes, id)
	}
	e.order = nil
	e.verts = nil
	e.inds = nil
}

// --- wall lifecycle ---

// rebuildAll resyncs the mesh set from the host wall list. Doors present at
// bind time jump straight to their document state.
func (e *DoorEffect) rebuildAll() {
	for id := range e.meshes {
		delete(e.meshes, id)
	}
	e.order = e.order[:0]
	for _, doc := range e.host.Walls() {
		if doc.IsDoor {
			e.upsertWall(doc, true)
		}
	}
	e.tinted = false
}

// upsertWall creates or refreshes the leaves for one wall. immediate snaps
// to the document state; otherwise a door state change animates.
func (e *DoorEffect) upsertWall(doc WallDoc, immediate bool) {
	if !doc.IsDoor {
		e.removeWall(doc.ID)
		return
	}
	x1, y1, x2, y2 := doc.Coords[0], doc.Coords[1], doc.Coords[2], doc.Coords[3]
	length := math.Hypot(x2-x1, y2-y1)
	if length <= 0 {
		e.removeWall(doc.ID)
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] doors: wall %s has zero length, skipping\n", doc.ID)
		return
	}
	open := doc.DoorState == DoorStateOpen

	leaves := e.meshes[doc.ID]
	wantLeaves := 1
	if doc.Animation.Double {
		wantLeaves = 2
	}
	if len(leaves) != wantLeaves {
		leaves = nil
	}
	fresh := leaves == nil
	if fresh {
		e.dropOrder(doc.ID)
		if doc.Animation.Double {
			leaves = []*DoorMesh{
				{WallID: doc.ID, Style: DoorStyleDoubleL},
				{WallID: doc.ID, Style: DoorStyleDoubleR},
			}
		} else {
			leaves = []*DoorMesh{{WallID: doc.ID, Style: DoorStyleSingle}}
		}
		e.meshes[doc.ID] = leaves
		e.order = append(e.order, doc.ID)
		sort.Strings(e.order)
	}

	grid := 100.0
	if scene := e.host.Scene(); scene != nil {
		if size := scene.Dimensions().Size; size > 0 {
			grid = size
		}
	}
	angle := math.Atan2(y2-y1, x2-x1)
	texture := e.loadDoorTexture(doc)

	for _, m := range leaves {
		prevTexture := m.cfg.Texture
		m.cfg = doc.Animation
		m.thickness = grid * doorThicknessFactor
		m.tint = e.tint
		switch m.Style {
		case DoorStyleDoubleR:
			m.hingeX, m.hingeY = x2, y2
			m.angle = angle + math.Pi
			m.length = length / 2
			m.mirrored = true
		case DoorStyleDoubleL:
			m.hingeX, m.hingeY = x1, y1
			m.angle = angle
			m.length = length / 2
		default:
			m.hingeX, m.hingeY = x1, y1
			m.angle = angle
			m.length = length
		}
		if texture != nil || prevTexture != doc.Animation.Texture {
			m.texture = texture
		}
		if immediate || fresh {
			m.setImmediate(open)
		} else if (m.phase == DoorPhaseOpen || m.phase == DoorPhaseOpening) != open {
			m.setTarget(open)
		}
	}
}

func (e *DoorEffect) removeWall(id string) {
	if _, ok := e.meshes[id]; !ok {
		return
	}
	delete(e.meshes, id)
	e.dropOrder(id)
}

func (e *DoorEffect) dropOrder(id string) {
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// loadDoorTexture fetches the configured leaf texture. A failed load leaves
// the mesh inert; the next wall event retries.
func (e *DoorEffect) loadDoorTexture(doc WallDoc) *ebiten.Image {
	src := doc.Animation.Texture
	if src == "" {
		return nil
	}
	tex, err := e.host.Textures().LoadTexture(src)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] doors: texture %q for wall %s unavailable: %v\n", src, doc.ID, err)
		return nil
	}
	return tex
}

// --- tint quantization ---

// quantizeTint packs a tint into an 8-bit-per-channel key.
func quantizeTint(c Color) uint32 {
	r := uint32(math.Round(clamp01(c.R) * 255))
	g := uint32(math.Round(clamp01(c.G) * 255))
	b := uint32(math.Round(clamp01(c.B) * 255))
	return r<<16 | g<<8 | b
}

// dequantizeTint restores the color a key stands for, so the applied
// material matches the key exactly.
func dequantizeTint(key uint32) Color {
	return Color{
		R: float64(key>>16&0xFF) / 255,
		G: float64(key>>8&0xFF) / 255,
		B: float64(key&0xFF) / 255,
		A: 1,
	}
}

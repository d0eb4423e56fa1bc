package mapshine

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

const (
	// Camera movement beyond these thresholds invalidates the current
	// vision polygons and requests a host perception pass.
	fogCameraMoveThresholdPx = 50.0
	fogZoomThreshold         = 0.1

	fogSaveDebounce        = 2 * time.Second
	fogSaveCommitThreshold = 70

	// After this many frames of failed exploration loads the subsystem
	// gives up and starts blank.
	fogLoadGiveUpFrames = 600

	fogVisionBlurRadius = 8
)

// FogStatus reports how the fog plane participated in the last frame.
type FogStatus uint8

const (
	// FogStatusNA means the plane was bypassed: token vision disabled on
	// the scene, or a GM with no viewers selected.
	FogStatusNA FogStatus = iota
	// FogStatusPending means vision is being rebuilt; the plane renders
	// without a current-vision reveal until the new polygons arrive, so a
	// stale selection never leaks areas the new viewers cannot see.
	FogStatusPending
	// FogStatusActive means the plane rendered with valid vision.
	FogStatusActive
)

// String returns the status name used in the debug HUD.
func (s FogStatus) String() string {
	switch s {
	case FogStatusNA:
		return "n/a"
	case FogStatusPending:
		return "pending"
	case FogStatusActive:
		return "active"
	default:
		return "unknown"
	}
}

// FogEffect renders the fog-of-war plane: currently visible regions come
// from the controlled viewers' line-of-sight polygons, ever-explored
// regions accumulate monotonically in a ping-pong pair and persist to the
// host as a WebP mask.
type FogEffect struct {
	composer *EffectComposer
	host     Host
	scene    *SceneComposer

	vision  *RenderTarget
	explore *PingPong
	blur    *BlurFilter

	needsVision      bool
	hasValidVision   bool
	lastSelectionKey string
	camValid         bool
	lastCamX         float64
	lastCamY         float64
	lastZoom         float64

	loaded     bool
	loadFrames int
	rebind     bool

	status FogStatus

	save       *SavePipeline
	saveWarned bool
	clock      func() time.Time

	offs []func()

	verts      []ebiten.Vertex
	inds       []uint16
	pts        []Vec2
	uniforms   map[string]any
	unexplored [4]float32
	explored   [4]float32
}

// NewFogEffect creates the fog effect. Register it with the composer to
// activate it.
func NewFogEffect() *FogEffect {
	return &FogEffect{clock: time.Now}
}

// Descriptor identifies the fog plane as a post effect above the lighting
// composite and the cloud tops.
func (f *FogEffect) Descriptor() EffectDescriptor {
	return EffectDescriptor{
		ID:              "fog",
		Bucket:          LayerPost,
		Tier:            TierMedium,
		FloorScope:      FloorScopeGlobal,
		DefaultPriority: 30,
		SupportsEnabled: true,
	}
}

// Initialize creates the scene-resolution targets, wires the perception
// and scene hooks, and starts the exploration load.
func (f *FogEffect) Initialize(ec *EffectComposer) error {
	f.composer = ec
	f.host = ec.Host()
	f.scene = ec.Scene()
	f.blur = NewBlurFilter(fogVisionBlurRadius)
	f.save = NewSavePipeline(fogSaveDebounce, fogSaveCommitThreshold, f.saveExploration)
	f.save.SetOnError(f.reportSaveError)
	f.uniforms = map[string]any{
		"UnexploredColor": f.unexplored[:],
		"ExploredColor":   f.explored[:],
		"HasVision":       float32(0),
	}

	w, h := f.scene.Frame().SceneTargetSize()
	f.vision = NewRenderTarget(w, h)
	f.explore = NewPingPong(w, h)

	ev := f.host.Events()
	f.offs = append(f.offs,
		ev.On(HookSightRefresh, func(any) { f.invalidateVision() }),
		ev.On(HookControlToken, func(any) { f.invalidateVision() }),
		ev.On(HookUpdateToken, func(any) { f.invalidateVision() }),
		ev.On(HookCanvasReady, func(any) { f.rebind = true }),
		ev.On(HookUpdateScene, func(any) { f.rebind = true }),
	)
	return nil
}

// Update drives the per-frame fog state machine: load gate, selection and
// camera invalidation, vision rebuild, exploration accumulation, save
// polling.
func (f *FogEffect) Update(*FrameContext) error {
	scene := f.host.Scene()
	if scene == nil || !scene.TokenVision() {
		f.status = FogStatusNA
		return nil
	}
	if f.rebind {
		f.rebindTargets()
	}
	if !f.loaded {
		f.attemptLoad()
	}
	f.save.Poll(f.clock())

	viewers := f.host.ControlledViewers()
	if len(viewers) == 0 && f.host.IsGM() {
		f.status = FogStatusNA
		return nil
	}

	if key := selectionKey(viewers); key != f.lastSelectionKey {
		f.lastSelectionKey = key
		f.invalidateVision()
	}

	cam := f.scene.Camera()
	if !f.camValid ||
		math.Abs(cam.X-f.lastCamX) > fogCameraMoveThresholdPx ||
		math.Abs(cam.Y-f.lastCamY) > fogCameraMoveThresholdPx ||
		math.Abs(cam.Zoom-f.lastZoom) > fogZoomThreshold {
		f.invalidateVision()
	}

	if f.needsVision {
		f.rebuildVision(viewers)
	}

	if f.needsVision && !f.hasValidVision {
		f.status = FogStatusPending
	} else {
		f.status = FogStatusActive
	}
	return nil
}

// Apply overlays the fog plane on the composited frame. With status n/a
// the pass falls through untouched.
func (f *FogEffect) Apply(_ *FrameContext, read, write *ebiten.Image) (bool, error) {
	if f.status == FogStatusNA {
		return false, nil
	}
	scene := f.host.Scene()
	if scene == nil {
		return false, nil
	}

	var cp ebiten.DrawImageOptions
	cp.Blend = ebiten.BlendCopy
	write.DrawImage(read, &cp)

	w, h := f.vision.Width(), f.vision.Height()
	overlay := f.composer.AcquireScratch(w, h)
	defer f.composer.ReleaseScratch(overlay)

	colors := scene.FogColors()
	storeColor(f.unexplored[:], colors.Unexplored)
	storeColor(f.explored[:], colors.Explored)
	if f.status == FogStatusActive {
		f.uniforms["HasVision"] = float32(1)
	} else {
		f.uniforms["HasVision"] = float32(0)
	}

	var op ebiten.DrawRectShaderOptions
	op.Blend = ebiten.BlendCopy
	op.Images[0] = f.vision.Image()
	op.Images[1] = f.explore.Read().Image()
	op.Uniforms = f.uniforms
	overlay.DrawRectShader(w, h, ensureFogShader(), &op)

	var ov ebiten.DrawImageOptions
	ov.Filter = ebiten.FilterLinear
	ov.GeoM = f.scene.SceneToScreenGeoM()
	write.DrawImage(overlay, &ov)
	return true, nil
}

// Resize is a no-op: every fog target lives at scene resolution, not
// screen resolution.
func (f *FogEffect) Resize(int, int) {}

// Dispose flushes any unsaved exploration, unsubscribes, and releases the
// targets.
func (f *FogEffect) Dispose() {
	if f.save != nil {
		f.save.Flush(f.clock())
	}
	for _, off := range f.offs {
		off()
	}
	f.offs = nil
	if f.vision != nil {
		f.vision.Dispose()
		f.vision = nil
	}
	if f.explore != nil {
		f.explore.Dispose()
		f.explore = nil
	}
	if f.blur != nil {
		f.blur.Dispose()
	}
}

// Status reports how the plane participated in the last frame.
func (f *FogEffect) Status() FogStatus { return f.status }

// Loaded reports whether stored exploration finished loading (or the
// subsystem gave up and started blank).
func (f *FogEffect) Loaded() bool { return f.loaded }

// ResetExploration clears the accumulated exploration, e.g. on a GM fog
// reset. Accumulation resumes immediately and the blank state persists.
func (f *FogEffect) ResetExploration() {
	f.explore.Read().Clear()
	f.explore.Write().Clear()
	f.loaded = true
	f.loadFrames = 0
	f.save.MarkDirty(f.clock())
}

func (f *FogEffect) invalidateVision() {
	f.hasValidVision = false
	if f.needsVision {
		return
	}
	f.needsVision = true
	f.host.Frames().ForcePerceptionUpdate()
}

// rebuildVision rasterizes the viewers' polygons into the vision target.
// Any viewer without a computed polygon keeps the rebuild pending for the
// next frame; zero viewers produce a valid empty vision (opaque fog).
func (f *FogEffect) rebuildVision(viewers []Viewer) {
	for _, v := range viewers {
		if len(v.VisionPolygon()) < 3 {
			return
		}
	}

	f.rasterizeVision(viewers)
	f.needsVision = false
	f.hasValidVision = true
	cam := f.scene.Camera()
	f.lastCamX, f.lastCamY, f.lastZoom = cam.X, cam.Y, cam.Zoom
	f.camValid = true

	if f.loaded {
		f.accumulate()
	}
}

func (f *FogEffect) rasterizeVision(viewers []Viewer) {
	rect := f.scene.Frame().SceneRect()
	w, h := f.vision.Width(), f.vision.Height()
	if rect.Width <= 0 || rect.Height <= 0 {
		f.vision.Clear()
		return
	}
	sx := float64(w) / rect.Width
	sy := float64(h) / rect.Height

	raw := f.composer.AcquireScratch(w, h)
	defer f.composer.ReleaseScratch(raw)

	f.verts = f.verts[:0]
	f.inds = f.inds[:0]
	for _, v := range viewers {
		poly := v.VisionPolygon()
		f.pts = f.pts[:0]
		for _, p := range poly {
			f.pts = append(f.pts, Vec2{X: (p.X - rect.X) * sx, Y: (p.Y - rect.Y) * sy})
		}
		f.verts, f.inds = appendPolygonFan(f.verts, f.inds, f.pts)
	}
	if len(f.inds) > 0 {
		raw.DrawTriangles(f.verts, f.inds, WhitePixel, &ebiten.DrawTrianglesOptions{})
	}

	f.vision.Clear()
	f.blur.Apply(raw, f.vision.Image())
}

// accumulate folds the current vision into the exploration pair:
// write = max(read, vision), then swap. The swap is the commit point.
func (f *FogEffect) accumulate() {
	w, h := f.explore.Read().Width(), f.explore.Read().Height()
	var op ebiten.DrawRectShaderOptions
	op.Blend = ebiten.BlendCopy
	op.Images[0] = f.explore.Read().Image()
	op.Images[1] = f.vision.Image()
	f.explore.Write().Image().DrawRectShader(w, h, ensureExplorationMaxShader(), &op)
	f.explore.Swap()
	f.save.MarkDirty(f.clock())
}

func (f *FogEffect) attemptLoad() {
	doc, err := f.host.Fog().Load()
	if err != nil {
		f.loadFrames++
		if f.loadFrames >= fogLoadGiveUpFrames {
			f.loaded = true
			_, _ = fmt.Fprintf(os.Stderr, "[mapshine] fog: exploration unavailable after %d frames, starting blank: %v\n", f.loadFrames, err)
		}
		return
	}
	f.loaded = true
	f.loadFrames = 0
	if doc == nil || doc.Explored == "" {
		return
	}
	img, err := decodeExploration(doc.Explored)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] fog: stored exploration unreadable: %v\n", err)
		return
	}
	blitExploration(f.explore.Read().Image(), img)
	blitExploration(f.explore.Write().Image(), img)
}

func (f *FogEffect) saveExploration() error {
	scene := f.host.Scene()
	if scene == nil {
		return nil
	}
	data, err := encodeExploration(f.explore.Read().Image())
	if err != nil {
		return err
	}
	err = f.host.Fog().Save(&FogExplorationDoc{
		Scene:     scene.ID(),
		Explored:  data,
		Timestamp: f.clock().UnixMilli(),
	})
	if err == nil {
		f.saveWarned = false
	}
	return err
}

func (f *FogEffect) reportSaveError(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "[mapshine] fog: exploration save failed: %v\n", err)
	if f.saveWarned {
		return
	}
	f.saveWarned = true
	if n := f.host.Notifier(); n != nil {
		n.Warn("Fog exploration could not be saved; will retry.")
	}
}

// rebindTargets resizes every target to the current scene and restarts
// the exploration load.
func (f *FogEffect) rebindTargets() {
	f.rebind = false
	w, h := f.scene.Frame().SceneTargetSize()
	f.vision.Resize(w, h)
	f.explore.Resize(w, h)
	f.vision.Clear()
	f.explore.Read().Clear()
	f.explore.Write().Clear()

	f.loaded = false
	f.loadFrames = 0
	f.save.Reset()
	f.lastSelectionKey = ""
	f.camValid = false
	f.hasValidVision = false
	if !f.needsVision {
		f.needsVision = true
		f.host.Frames().ForcePerceptionUpdate()
	}
}

// selectionKey folds the viewer ids into an order-independent identity
// for change detection.
func selectionKey(viewers []Viewer) string {
	if len(viewers) == 0 {
		return ""
	}
	ids := make([]string, len(viewers))
	for i, v := range viewers {
		ids[i] = v.ID()
	}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

// storeColor writes a straight-alpha color into a uniform slice.
func storeColor(dst []float32, c Color) {
	dst[0] = float32(c.R)
	dst[1] = float32(c.G)
	dst[2] = float32(c.B)
	dst[3] = float32(c.A)
}

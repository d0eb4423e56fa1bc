package mapshine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"
)

const (
	tileMotionSettingsKey = "tileMotion"
	tileMotionFileVersion = 2

	tileMotionSaveDebounce  = 2 * time.Second
	tileMotionSaveThreshold = 1

	// While tiles animate the host is asked to keep rendering; the lease
	// outlives the renewal interval so idle throttling never lands
	// between renewals.
	tileMotionRenderLease = 3 * time.Second
	tileMotionRenderRenew = time.Second
)

// TileMotionKind selects how a transform-mode tile moves.
type TileMotionKind string

const (
	TileMotionRotation TileMotionKind = "rotation"
	TileMotionOrbit    TileMotionKind = "orbit"
	TileMotionPingPong TileMotionKind = "pingPong"
	TileMotionSine     TileMotionKind = "sine"
)

// TileLoopMode shapes how a ping-pong path repeats: jump back to A, or
// reverse direction at each end.
type TileLoopMode string

const (
	TileLoopRepeat   TileLoopMode = "loop"
	TileLoopPingPong TileLoopMode = "pingPong"
)

// TileMotionMode separates tiles that move from tiles whose texture
// matrix animates in place.
type TileMotionMode string

const (
	TileModeTransform TileMotionMode = "transform"
	TileModeTexture   TileMotionMode = "texture"
)

// TileMotionSpec parameterizes a transform-mode motion. Speed is radians
// per second for rotation and orbit, path positions per second for
// pingPong, and oscillator radians per second for sine; Phase offsets the
// driver. Radius, PointA/PointB and the amplitudes are world units.
type TileMotionSpec struct {
	Type         TileMotionKind
	Speed        float64
	Phase        float64
	LoopMode     TileLoopMode
	Radius       float64
	PointA       Vec2
	PointB       Vec2
	AmplitudeX   float64
	AmplitudeY   float64
	AmplitudeRot float64
}

// TileTextureMotion animates the sprite's texture matrix without moving
// the sprite: scroll in texture units per second, rotation in radians per
// second about the normalized pivot.
type TileTextureMotion struct {
	ScrollU     float64
	ScrollV     float64
	RotateSpeed float64
	PivotU      float64
	PivotV      float64
}

// TileMotionConfig is the persisted animation recipe for one tile. Pivot
// is normalized tile-local ({0.5, 0.5} is the center). ParentID chains
// the tile under another animated tile; the child follows the parent's
// translation and rotation delta.
type TileMotionConfig struct {
	Enabled                 bool
	Mode                    TileMotionMode
	ParentID                string
	Pivot                   Vec2
	Motion                  TileMotionSpec
	TextureMotion           TileTextureMotion
	ShadowProjectionEnabled bool
}

// TileMotionGlobal is the scene-wide playback state shared by every
// client. SpeedPercent persists with the scene; TimeFactorPercent is a
// second multiplier for runtime overrides.
type TileMotionGlobal struct {
	Playing           bool
	StartEpochMs      int64
	SpeedPercent      float64
	TimeFactorPercent float64
	AutoPlayEnabled   bool
}

// tileBaseState is a sprite pose captured before animation first touches
// it, used to restore the sprite when playback stops.
type tileBaseState struct {
	x, y             float64
	rotation         float64
	scaleX, scaleY   float64
	scrollU, scrollV float64
	texRotate        float64
	pivotU, pivotV   float64
	texRepeat        bool
}

// tileResolvedState is a tile's animated pose for the current frame, kept
// so children can compose against it.
type tileResolvedState struct {
	centerX, centerY         float64
	baseCenterX, baseCenterY float64
	rotDelta                 float64
}

// TileMotionEngine overlays animated transforms on the scene's tile
// sprites without touching host documents. Tiles form a parented graph
// resolved in topological order; cyclic or dangling parents exclude the
// offending tiles from the runtime order with a report. Time advances
// through an accumulator scaled by the scene speed, the runtime factor
// and the host time scale, so pausing time freezes the current pose
// instead of snapping back to the start.
type TileMotionEngine struct {
	host  Host
	scene *SceneComposer
	clock func() time.Time

	global TileMotionGlobal
	tiles  map[string]*TileMotionConfig

	order      []string
	excluded   map[string]string
	orderDirty bool

	elapsedSec float64
	base       map[string]tileBaseState
	animated   map[string]bool
	resolved   map[string]tileResolvedState

	save          *SavePipeline
	saveWarned    bool
	loaded        bool
	reloadPending bool
	lastLease     time.Time

	offs []func()
}

// NewTileMotionEngine wires the engine to the host and scene composer.
// Call Update once per frame before the composer renders.
func NewTileMotionEngine(host Host, scene *SceneComposer) *TileMotionEngine {
	e := &TileMotionEngine{
		host:     host,
		scene:    scene,
		clock:    time.Now,
		tiles:    make(map[string]*TileMotionConfig),
		excluded: make(map[string]string),
		base:     make(map[string]tileBaseState),
		animated: make(map[string]bool),
		resolved: make(map[string]tileResolvedState),
		global:   TileMotionGlobal{SpeedPercent: 100, TimeFactorPercent: 100},
	}
	e.save = NewSavePipeline(tileMotionSaveDebounce, tileMotionSaveThreshold, e.persist)
	e.save.SetOnError(e.reportSaveError)

	ev := host.Events()
	e.offs = append(e.offs,
		ev.On(HookCanvasReady, func(any) { e.reloadPending = true }),
		ev.On(HookUpdateScene, func(any) { e.reloadPending = true }),
		ev.On(HookCreateTile, func(any) { e.orderDirty = true }),
		ev.On(HookUpdateTile, func(data any) {
			if doc, ok := data.(TileDoc); ok {
				// upsertTile resets the sprite to the new document pose;
				// the stale base must not overwrite it on restore.
				delete(e.base, doc.ID)
				delete(e.animated, doc.ID)
				e.orderDirty = true
			}
		}),
		ev.On(HookDeleteTile, func(data any) {
			if id, ok := data.(string); ok {
				delete(e.base, id)
				delete(e.animated, id)
				e.orderDirty = true
			}
		}),
	)
	return e
}

// Update advances playback by dt seconds and poses every animated tile.
func (e *TileMotionEngine) Update(dt float64) {
	now := e.clock()
	if e.reloadPending || !e.loaded {
		e.reloadPending = false
		e.Reload()
	}
	e.save.Poll(now)
	if !e.global.Playing {
		return
	}
	if e.orderDirty {
		e.rebuildOrder()
	}
	e.elapsedSec += dt * e.speedFrac() * e.factorFrac() * e.timeScale()
	e.pose()
	if len(e.order) > 0 && now.Sub(e.lastLease) >= tileMotionRenderRenew {
		e.lastLease = now
		e.host.Frames().RequestContinuousRender(tileMotionRenderLease)
	}
}

// Reload replaces the engine state from the host settings, migrating v1
// records and dropping invalid tiles with a log line. Sprites animated
// under the previous state are restored first.
func (e *TileMotionEngine) Reload() {
	e.restoreAll()
	e.tiles = make(map[string]*TileMotionConfig)
	e.global = TileMotionGlobal{SpeedPercent: 100, TimeFactorPercent: 100}
	e.loaded = true
	// Host state supersedes whatever local edits were pending.
	e.save.Reset()

	raw, ok := e.host.Settings().Get(tileMotionSettingsKey)
	if ok {
		var data []byte
		switch v := raw.(type) {
		case string:
			data = []byte(v)
		case []byte:
			data = v
		}
		if len(data) > 0 {
			e.decodeState(data)
		}
	}
	e.rebuildOrder()
	if e.global.Playing || e.global.AutoPlayEnabled {
		e.global.Playing = true
		e.seedElapsed(e.clock())
	}
}

func (e *TileMotionEngine) decodeState(data []byte) {
	var file tileMotionFileDoc
	if err := json.Unmarshal(data, &file); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] tile motion: stored record unreadable: %v\n", err)
		return
	}
	if file.Version < tileMotionFileVersion {
		// v1 stored the per-tile map at the top level with no global
		// section and no version field.
		if len(file.Tiles) == 0 {
			var legacy map[string]tileMotionTileDoc
			if err := json.Unmarshal(data, &legacy); err == nil && len(legacy) > 0 {
				file.Tiles = legacy
			}
		}
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] tile motion: migrating v%d record to v%d\n",
			max(file.Version, 1), tileMotionFileVersion)
	}

	e.global = globalFromDoc(file.Global)
	if e.global.SpeedPercent <= 0 {
		e.global.SpeedPercent = 100
	}
	if e.global.TimeFactorPercent <= 0 {
		e.global.TimeFactorPercent = 100
	}
	for id, doc := range file.Tiles {
		cfg := tileMotionFromDoc(doc)
		normalizeTileMotion(&cfg)
		if err := validateTileMotion(&cfg); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "[mapshine] tile motion: dropping tile %s: %v\n", id, err)
			continue
		}
		cc := cfg
		e.tiles[id] = &cc
	}
}

// --- Playback control ---

// Playing reports whether tile animation is running.
func (e *TileMotionEngine) Playing() bool { return e.global.Playing }

// SetPlaying starts or stops playback. Stopping restores every animated
// sprite from its captured base, transform and texture matrix both.
// Starting reseeds the accumulator from the shared epoch, so a stopped
// and restarted scene lands on the same pose at the same elapsed time.
func (e *TileMotionEngine) SetPlaying(playing bool) {
	if e.global.Playing == playing {
		return
	}
	now := e.clock()
	e.global.Playing = playing
	if playing {
		e.seedElapsed(now)
		e.orderDirty = true
	} else {
		e.restoreAll()
	}
	e.save.MarkDirty(now)
}

// ResetEpoch restamps the shared epoch to now, synchronizing every
// client's accumulator on the next reseed.
func (e *TileMotionEngine) ResetEpoch() {
	now := e.clock()
	e.global.StartEpochMs = now.UnixMilli()
	e.seedElapsed(now)
	e.save.MarkDirty(now)
}

// SpeedPercent returns the persisted scene speed multiplier.
func (e *TileMotionEngine) SpeedPercent() float64 { return e.global.SpeedPercent }

// SetSpeedPercent sets the persisted speed multiplier, clamped to
// [0, 1000]. Mid-playback changes bend the accumulator rate without
// snapping the pose.
func (e *TileMotionEngine) SetSpeedPercent(v float64) {
	e.global.SpeedPercent = math.Min(math.Max(v, 0), 1000)
	e.save.MarkDirty(e.clock())
}

// TimeFactorPercent returns the runtime time factor.
func (e *TileMotionEngine) TimeFactorPercent() float64 { return e.global.TimeFactorPercent }

// SetTimeFactorPercent sets the runtime time factor, clamped to [0, 1000].
func (e *TileMotionEngine) SetTimeFactorPercent(v float64) {
	e.global.TimeFactorPercent = math.Min(math.Max(v, 0), 1000)
	e.save.MarkDirty(e.clock())
}

// AutoPlayEnabled reports whether playback starts when the scene loads.
func (e *TileMotionEngine) AutoPlayEnabled() bool { return e.global.AutoPlayEnabled }

func (e *TileMotionEngine) SetAutoPlay(enabled bool) {
	e.global.AutoPlayEnabled = enabled
	e.save.MarkDirty(e.clock())
}

// Global returns a copy of the scene-wide playback state.
func (e *TileMotionEngine) Global() TileMotionGlobal { return e.global }

// ElapsedSec is the animation clock in scaled seconds.
func (e *TileMotionEngine) ElapsedSec() float64 { return e.elapsedSec }

// --- Tile configuration ---

// SetTileMotion validates and installs the animation recipe for a tile.
// Invalid recipes are rejected with a log line and no state change. An
// existing animated pose is restored before the new recipe takes over.
func (e *TileMotionEngine) SetTileMotion(id string, cfg TileMotionConfig) bool {
	if id == "" {
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] tile motion: rejecting recipe with empty tile id\n")
		return false
	}
	normalizeTileMotion(&cfg)
	if err := validateTileMotion(&cfg); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] tile motion: rejecting tile %s: %v\n", id, err)
		return false
	}
	e.restoreTile(id)
	cc := cfg
	e.tiles[id] = &cc
	e.orderDirty = true
	e.save.MarkDirty(e.clock())
	return true
}

// RemoveTileMotion drops a tile's recipe and restores its sprite.
func (e *TileMotionEngine) RemoveTileMotion(id string) bool {
	if _, ok := e.tiles[id]; !ok {
		return false
	}
	e.restoreTile(id)
	delete(e.tiles, id)
	e.orderDirty = true
	e.save.MarkDirty(e.clock())
	return true
}

// TileMotion returns a copy of a tile's recipe.
func (e *TileMotionEngine) TileMotion(id string) (TileMotionConfig, bool) {
	cfg, ok := e.tiles[id]
	if !ok {
		return TileMotionConfig{}, false
	}
	return *cfg, true
}

// ActiveTiles is the number of tiles in the runtime order.
func (e *TileMotionEngine) ActiveTiles() int {
	if e.orderDirty {
		e.rebuildOrder()
	}
	return len(e.order)
}

// Excluded maps tile ids shut out of the runtime order to the reason.
func (e *TileMotionEngine) Excluded() map[string]string {
	if e.orderDirty {
		e.rebuildOrder()
	}
	out := make(map[string]string, len(e.excluded))
	for id, reason := range e.excluded {
		out[id] = reason
	}
	return out
}

// Dispose restores every animated sprite, flushes pending state, and
// unhooks from the host.
func (e *TileMotionEngine) Dispose() {
	e.restoreAll()
	if e.save != nil {
		e.save.Flush(e.clock())
	}
	for _, off := range e.offs {
		off()
	}
	e.offs = nil
}

// --- Time base ---

func (e *TileMotionEngine) speedFrac() float64 { return e.global.SpeedPercent / 100 }
func (e *TileMotionEngine) factorFrac() float64 { return e.global.TimeFactorPercent / 100 }

func (e *TileMotionEngine) timeScale() float64 {
	if wp := e.host.Weather(); wp != nil {
		return wp.TimeScale()
	}
	return 1
}

// seedElapsed restamps the accumulator from the shared epoch so clients
// agree on the animation clock after an explicit reset or play toggle.
func (e *TileMotionEngine) seedElapsed(now time.Time) {
	if e.global.StartEpochMs == 0 {
		e.global.StartEpochMs = now.UnixMilli()
	}
	since := float64(now.UnixMilli()-e.global.StartEpochMs) / 1000
	e.elapsedSec = math.Max(since, 0) * e.speedFrac() * e.factorFrac() * e.timeScale()
}

// --- Graph ---

// rebuildOrder rebuilds the runtime order with a depth-first walk over
// the parent chains. Visiting/done coloring catches cycles; cycle members
// and tiles with dangling or excluded parents are shut out and reported
// once per rebuild.
func (e *TileMotionEngine) rebuildOrder() {
	e.orderDirty = false
	e.order = e.order[:0]
	for id := range e.excluded {
		delete(e.excluded, id)
	}

	ids := make([]string, 0, len(e.tiles))
	for id, cfg := range e.tiles {
		if cfg.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	const (
		colorVisiting = 1
		colorDone     = 2
	)
	colors := make(map[string]int, len(ids))

	var visit func(id string) bool
	visit = func(id string) bool {
		switch colors[id] {
		case colorDone:
			_, bad := e.excluded[id]
			return !bad
		case colorVisiting:
			colors[id] = colorDone
			e.excluded[id] = "parent chain forms a cycle"
			return false
		}
		colors[id] = colorVisiting

		cfg := e.tiles[id]
		reason := ""
		if e.scene.TileByID(id) == nil {
			reason = "no tile with this id in the scene"
		} else if pid := cfg.ParentID; pid != "" {
			p, ok := e.tiles[pid]
			switch {
			case !ok || !p.Enabled:
				reason = fmt.Sprintf("parent %q is not an animated tile", pid)
			case !visit(pid):
				reason = fmt.Sprintf("parent %q is excluded", pid)
			}
		}
		if colors[id] == colorDone {
			// The walk closed a cycle through this tile and classified it.
			_, bad := e.excluded[id]
			return !bad
		}
		colors[id] = colorDone
		if reason != "" {
			e.excluded[id] = reason
			return false
		}
		e.order = append(e.order, id)
		return true
	}
	for _, id := range ids {
		visit(id)
	}

	if len(e.excluded) > 0 {
		bad := make([]string, 0, len(e.excluded))
		for id := range e.excluded {
			bad = append(bad, id)
		}
		sort.Strings(bad)
		for i, id := range bad {
			bad[i] = fmt.Sprintf("%s (%s)", id, e.excluded[id])
		}
		e.host.Notifier().Warn("Tile motion: excluded " + strings.Join(bad, ", "))
	}
}

// --- Posing ---

// captureBase records the sprite pose the first time animation touches a
// tile. Later frames reuse the cache; a playing scene never overwrites a
// captured base.
func (e *TileMotionEngine) captureBase(id string, sp *TileSprite) tileBaseState {
	if b, ok := e.base[id]; ok {
		return b
	}
	b := tileBaseState{
		x: sp.X, y: sp.Y,
		rotation: sp.Rotation,
		scaleX:   sp.ScaleX, scaleY: sp.ScaleY,
		scrollU: sp.TexScrollU, scrollV: sp.TexScrollV,
		texRotate: sp.TexRotate,
		pivotU:    sp.TexPivotU, pivotV: sp.TexPivotV,
		texRepeat: sp.TexRepeat,
	}
	e.base[id] = b
	return b
}

func (e *TileMotionEngine) pose() {
	for id := range e.resolved {
		delete(e.resolved, id)
	}
	t := e.elapsedSec
	for _, id := range e.order {
		cfg := e.tiles[id]
		sp := e.scene.TileByID(id)
		if sp == nil {
			continue
		}
		b := e.captureBase(id, sp)
		w, h := sp.Doc.Width, sp.Doc.Height
		bcx, bcy := b.x+w/2, b.y+h/2

		if cfg.Mode == TileModeTexture {
			tm := cfg.TextureMotion
			sp.TexScrollU = b.scrollU + tm.ScrollU*t
			sp.TexScrollV = b.scrollV + tm.ScrollV*t
			sp.TexRotate = b.texRotate + tm.RotateSpeed*t
			if tm.PivotU != 0 || tm.PivotV != 0 {
				sp.TexPivotU, sp.TexPivotV = tm.PivotU, tm.PivotV
			}
			sp.TexRepeat = true
			e.animated[id] = true
			e.resolved[id] = tileResolvedState{
				centerX: bcx, centerY: bcy,
				baseCenterX: bcx, baseCenterY: bcy,
			}
			continue
		}

		offX, offY, rot := evalTileMotion(cfg, b, w, h, t)
		cx, cy := bcx+offX, bcy+offY
		total := b.rotation + rot
		if pr, ok := e.resolved[cfg.ParentID]; cfg.ParentID != "" && ok {
			rx, ry := cx-pr.baseCenterX, cy-pr.baseCenterY
			sin, cos := math.Sincos(pr.rotDelta)
			cx = pr.centerX + rx*cos - ry*sin
			cy = pr.centerY + rx*sin + ry*cos
			total += pr.rotDelta
		}
		sp.X, sp.Y = cx-w/2, cy-h/2
		sp.Rotation = total
		e.animated[id] = true
		e.resolved[id] = tileResolvedState{
			centerX: cx, centerY: cy,
			baseCenterX: bcx, baseCenterY: bcy,
			rotDelta: total - b.rotation,
		}
	}
}

// evalTileMotion returns the tile's own center offset and rotation delta
// at animation time t, before parent composition.
func evalTileMotion(cfg *TileMotionConfig, b tileBaseState, w, h, t float64) (dx, dy, rot float64) {
	m := cfg.Motion
	u := m.Speed*t + m.Phase
	switch m.Type {
	case TileMotionRotation:
		rot = u
		dx, dy = pivotSwing(cfg.Pivot, b, w, h, rot)
	case TileMotionOrbit:
		px, py := pivotWorld(cfg.Pivot, b, w, h)
		sin, cos := math.Sincos(u)
		dx = px + cos*m.Radius - (b.x + w/2)
		dy = py + sin*m.Radius - (b.y + h/2)
	case TileMotionPingPong:
		wgt := loopWeight(u, m.LoopMode)
		dx = m.PointA.X + (m.PointB.X-m.PointA.X)*wgt - (b.x + w/2)
		dy = m.PointA.Y + (m.PointB.Y-m.PointA.Y)*wgt - (b.y + h/2)
	case TileMotionSine:
		s := math.Sin(u)
		dx = m.AmplitudeX * s
		dy = m.AmplitudeY * s
		rot = m.AmplitudeRot * s
	}
	return dx, dy, rot
}

// pivotWorld maps a normalized tile-local pivot to world coordinates of
// the base pose.
func pivotWorld(p Vec2, b tileBaseState, w, h float64) (float64, float64) {
	return b.x + p.X*w, b.y + p.Y*h
}

// pivotSwing returns the center displacement from rotating the tile about
// an off-center pivot. A centered pivot swings nothing.
func pivotSwing(p Vec2, b tileBaseState, w, h, rot float64) (float64, float64) {
	px, py := pivotWorld(p, b, w, h)
	cx, cy := b.x+w/2, b.y+h/2
	rx, ry := cx-px, cy-py
	sin, cos := math.Sincos(rot)
	return px + rx*cos - ry*sin - cx, py + rx*sin + ry*cos - cy
}

// loopWeight maps the unbounded path driver u onto [0, 1] according to
// the loop mode: sawtooth for loop, triangle for pingPong.
func loopWeight(u float64, mode TileLoopMode) float64 {
	if mode == TileLoopPingPong {
		u = math.Mod(u, 2)
		if u < 0 {
			u += 2
		}
		if u > 1 {
			u = 2 - u
		}
		return u
	}
	u = math.Mod(u, 1)
	if u < 0 {
		u++
	}
	return u
}

// --- Restore ---

func (e *TileMotionEngine) restoreTile(id string) {
	if !e.animated[id] {
		delete(e.base, id)
		return
	}
	if sp := e.scene.TileByID(id); sp != nil {
		if b, ok := e.base[id]; ok {
			sp.X, sp.Y = b.x, b.y
			sp.Rotation = b.rotation
			sp.ScaleX, sp.ScaleY = b.scaleX, b.scaleY
			sp.TexScrollU, sp.TexScrollV = b.scrollU, b.scrollV
			sp.TexRotate = b.texRotate
			sp.TexPivotU, sp.TexPivotV = b.pivotU, b.pivotV
			sp.TexRepeat = b.texRepeat
		}
	}
	delete(e.animated, id)
	delete(e.base, id)
	delete(e.resolved, id)
}

// restoreAll puts every animated sprite back at its captured base and
// drops the base cache, so the next playback captures fresh poses.
func (e *TileMotionEngine) restoreAll() {
	for id := range e.animated {
		e.restoreTile(id)
	}
	for id := range e.base {
		delete(e.base, id)
	}
	for id := range e.resolved {
		delete(e.resolved, id)
	}
}

// --- Validation ---

func normalizeTileMotion(cfg *TileMotionConfig) {
	if cfg.Mode == "" {
		cfg.Mode = TileModeTransform
	}
	if cfg.Motion.LoopMode == "" {
		cfg.Motion.LoopMode = TileLoopRepeat
	}
	if cfg.Mode == TileModeTransform && cfg.Motion.Type == "" {
		cfg.Motion.Type = TileMotionRotation
	}
}

func validateTileMotion(cfg *TileMotionConfig) error {
	switch cfg.Mode {
	case TileModeTransform, TileModeTexture:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidMotion, cfg.Mode)
	}
	if cfg.Mode == TileModeTransform {
		switch cfg.Motion.Type {
		case TileMotionRotation, TileMotionOrbit, TileMotionPingPong, TileMotionSine:
		default:
			return fmt.Errorf("%w: unknown motion type %q", ErrInvalidMotion, cfg.Motion.Type)
		}
		switch cfg.Motion.LoopMode {
		case TileLoopRepeat, TileLoopPingPong:
		default:
			return fmt.Errorf("%w: unknown loop mode %q", ErrInvalidMotion, cfg.Motion.LoopMode)
		}
	}
	return nil
}

// --- Persistence ---

func (e *TileMotionEngine) persist() error {
	file := tileMotionFileDoc{
		Version: tileMotionFileVersion,
		Global:  globalToDoc(e.global),
		Tiles:   make(map[string]tileMotionTileDoc, len(e.tiles)),
	}
	for id, cfg := range e.tiles {
		file.Tiles[id] = tileMotionToDoc(cfg)
	}
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode tile motion: %w", err)
	}
	return e.host.Settings().Set(tileMotionSettingsKey, string(data))
}

func (e *TileMotionEngine) reportSaveError(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "[mapshine] tile motion: save failed: %v\n", err)
	if e.saveWarned {
		return
	}
	e.saveWarned = true
	n := e.host.Notifier()
	if n == nil {
		return
	}
	if errors.Is(err, ErrPermission) {
		n.Warn("Tile motion: you lack permission to save animation state.")
	} else {
		n.Warn("Tile motion state could not be saved; will retry.")
	}
}

// --- Wire shape ---

type tileMotionGlobalDoc struct {
	Playing           bool    `json:"playing"`
	StartEpochMs      int64   `json:"startEpochMs"`
	SpeedPercent      float64 `json:"speedPercent"`
	TimeFactorPercent float64 `json:"timeFactorPercent"`
	AutoPlayEnabled   bool    `json:"autoPlayEnabled"`
}

type tileMotionSpecDoc struct {
	Type         string       `json:"type"`
	Speed        float64      `json:"speed"`
	Phase        float64      `json:"phase,omitempty"`
	LoopMode     string       `json:"loopMode,omitempty"`
	Radius       float64      `json:"radius,omitempty"`
	PointA       *mapPointDoc `json:"pointA,omitempty"`
	PointB       *mapPointDoc `json:"pointB,omitempty"`
	AmplitudeX   float64      `json:"amplitudeX,omitempty"`
	AmplitudeY   float64      `json:"amplitudeY,omitempty"`
	AmplitudeRot float64      `json:"amplitudeRot,omitempty"`
}

type tileTextureMotionDoc struct {
	ScrollU     float64 `json:"scrollU,omitempty"`
	ScrollV     float64 `json:"scrollV,omitempty"`
	RotateSpeed float64 `json:"rotateSpeed,omitempty"`
	PivotU      float64 `json:"pivotU,omitempty"`
	PivotV      float64 `json:"pivotV,omitempty"`
}

type tileMotionTileDoc struct {
	Enabled                 bool                  `json:"enabled"`
	Mode                    string                `json:"mode"`
	ParentID                string                `json:"parentId,omitempty"`
	Pivot                   *mapPointDoc          `json:"pivot,omitempty"`
	Motion                  *tileMotionSpecDoc    `json:"motion,omitempty"`
	TextureMotion           *tileTextureMotionDoc `json:"textureMotion,omitempty"`
	ShadowProjectionEnabled bool                  `json:"shadowProjectionEnabled,omitempty"`
}

type tileMotionFileDoc struct {
	Version int                          `json:"version,omitempty"`
	Global  tileMotionGlobalDoc          `json:"global"`
	Tiles   map[string]tileMotionTileDoc `json:"tiles"`
}

func globalToDoc(g TileMotionGlobal) tileMotionGlobalDoc {
	return tileMotionGlobalDoc{
		Playing:           g.Playing,
		StartEpochMs:      g.StartEpochMs,
		SpeedPercent:      g.SpeedPercent,
		TimeFactorPercent: g.TimeFactorPercent,
		AutoPlayEnabled:   g.AutoPlayEnabled,
	}
}

func globalFromDoc(doc tileMotionGlobalDoc) TileMotionGlobal {
	return TileMotionGlobal{
		Playing:           doc.Playing,
		StartEpochMs:      doc.StartEpochMs,
		SpeedPercent:      doc.SpeedPercent,
		TimeFactorPercent: doc.TimeFactorPercent,
		AutoPlayEnabled:   doc.AutoPlayEnabled,
	}
}

func tileMotionToDoc(cfg *TileMotionConfig) tileMotionTileDoc {
	doc := tileMotionTileDoc{
		Enabled:                 cfg.Enabled,
		Mode:                    string(cfg.Mode),
		ParentID:                cfg.ParentID,
		Pivot:                   &mapPointDoc{X: cfg.Pivot.X, Y: cfg.Pivot.Y},
		ShadowProjectionEnabled: cfg.ShadowProjectionEnabled,
	}
	if cfg.Mode == TileModeTransform {
		m := cfg.Motion
		spec := tileMotionSpecDoc{
			Type:         string(m.Type),
			Speed:        m.Speed,
			Phase:        m.Phase,
			LoopMode:     string(m.LoopMode),
			Radius:       m.Radius,
			AmplitudeX:   m.AmplitudeX,
			AmplitudeY:   m.AmplitudeY,
			AmplitudeRot: m.AmplitudeRot,
		}
		if m.Type == TileMotionPingPong {
			spec.PointA = &mapPointDoc{X: m.PointA.X, Y: m.PointA.Y}
			spec.PointB = &mapPointDoc{X: m.PointB.X, Y: m.PointB.Y}
		}
		doc.Motion = &spec
	} else {
		tm := cfg.TextureMotion
		doc.TextureMotion = &tileTextureMotionDoc{
			ScrollU:     tm.ScrollU,
			ScrollV:     tm.ScrollV,
			RotateSpeed: tm.RotateSpeed,
			PivotU:      tm.PivotU,
			PivotV:      tm.PivotV,
		}
	}
	return doc
}

func tileMotionFromDoc(doc tileMotionTileDoc) TileMotionConfig {
	cfg := TileMotionConfig{
		Enabled:                 doc.Enabled,
		Mode:                    TileMotionMode(doc.Mode),
		ParentID:                doc.ParentID,
		Pivot:                   Vec2{0.5, 0.5},
		ShadowProjectionEnabled: doc.ShadowProjectionEnabled,
	}
	if doc.Pivot != nil {
		cfg.Pivot = Vec2{doc.Pivot.X, doc.Pivot.Y}
	}
	if doc.Motion != nil {
		m := doc.Motion
		cfg.Motion = TileMotionSpec{
			Type:         TileMotionKind(m.Type),
			Speed:        m.Speed,
			Phase:        m.Phase,
			LoopMode:     TileLoopMode(m.LoopMode),
			Radius:       m.Radius,
			AmplitudeX:   m.AmplitudeX,
			AmplitudeY:   m.AmplitudeY,
			AmplitudeRot: m.AmplitudeRot,
		}
		if m.PointA != nil {
			cfg.Motion.PointA = Vec2{m.PointA.X, m.PointA.Y}
		}
		if m.PointB != nil {
			cfg.Motion.PointB = Vec2{m.PointB.X, m.PointB.Y}
		}
	}
	if doc.TextureMotion != nil {
		tm := doc.TextureMotion
		cfg.TextureMotion = TileTextureMotion{
			ScrollU:     tm.ScrollU,
			ScrollV:     tm.ScrollV,
			RotateSpeed: tm.RotateSpeed,
			PivotU:      tm.PivotU,
			PivotV:      tm.PivotV,
		}
	}
	return cfg
}

// Stormkeep drives the full effect stack over an in-memory host: a
// generated keep map with fog exploration, cloud shadows, torch
// illumination, animated doors, vision modes, a spinning windmill tile,
// and an optional scripted scenario for unattended captures.
//
// Keys:
//
//	WASD / arrows  move the knight (the vision source)
//	Q / E          zoom out / in
//	O              open and close the doors
//	V              cycle vision modes
//	T / R          advance / rewind the clock by an hour
//	G              toggle the storm
//	Space          pause and resume tile motion
//	[ / ]          raise / lower scene darkness
//	1-9, 0         toggle individual effects
//	N              swap the swarm preset
//	F1             debug HUD
//	P              screenshot
package main

import (
	_ "embed"
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"gopkg.in/yaml.v3"

	"github.com/phanxgames/mapshine"
)

//go:embed scene.yaml
var sceneYAML []byte

const (
	screenW = 1280
	screenH = 800
)

// --- scene descriptor ---

type sceneConfig struct {
	Name                string         `yaml:"name"`
	Background          string         `yaml:"background"`
	Width               float64        `yaml:"width"`
	Height              float64        `yaml:"height"`
	Scene               rectConfig     `yaml:"scene"`
	Grid                float64        `yaml:"grid"`
	Distance            float64        `yaml:"distance"`
	Darkness            float64        `yaml:"darkness"`
	ForegroundElevation float64        `yaml:"foregroundElevation"`
	Ambient             ambientConfig  `yaml:"ambient"`
	Fog                 fogConfig      `yaml:"fog"`
	Weather             weatherConfig  `yaml:"weather"`
	Tiles               []tileConfig   `yaml:"tiles"`
	Walls               []wallConfig   `yaml:"walls"`
	PointGroups         []groupConfig  `yaml:"pointGroups"`
	Viewers             []viewerConfig `yaml:"viewers"`
	TileMotions         []motionConfig `yaml:"tileMotions"`
}

type rectConfig struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type ambientConfig struct {
	Daylight string `yaml:"daylight"`
	Darkness string `yaml:"darkness"`
}

type fogConfig struct {
	Exploration bool   `yaml:"exploration"`
	Unexplored  string `yaml:"unexplored"`
	Explored    string `yaml:"explored"`
}

type weatherConfig struct {
	Wind         []float64 `yaml:"wind"`
	WindSpeed    float64   `yaml:"windSpeed"`
	CloudCover   float64   `yaml:"cloudCover"`
	Sky          string    `yaml:"sky"`
	SkyIntensity float64   `yaml:"skyIntensity"`
	TimeOfDay    float64   `yaml:"timeOfDay"`
}

type tileConfig struct {
	ID           string  `yaml:"id"`
	X            float64 `yaml:"x"`
	Y            float64 `yaml:"y"`
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	Elevation    float64 `yaml:"elevation"`
	Sort         int     `yaml:"sort"`
	Texture      string  `yaml:"texture"`
	Roof         bool    `yaml:"roof"`
	CloudShadows bool    `yaml:"cloudShadows"`
	CloudTops    bool    `yaml:"cloudTops"`
}

type wallConfig struct {
	ID        string     `yaml:"id"`
	Coords    []float64  `yaml:"coords"`
	Door      bool       `yaml:"door"`
	State     string     `yaml:"state"`
	Animation animConfig `yaml:"animation"`
}

type animConfig struct {
	Texture   string  `yaml:"texture"`
	Type      string  `yaml:"type"`
	Direction float64 `yaml:"direction"`
	Double    bool    `yaml:"double"`
	Duration  string  `yaml:"duration"`
	Strength  float64 `yaml:"strength"`
	Flip      bool    `yaml:"flip"`
}

type groupConfig struct {
	ID       string         `yaml:"id"`
	Label    string         `yaml:"label"`
	Type     string         `yaml:"type"`
	Effect   string         `yaml:"effect"`
	Emission emissionConfig `yaml:"emission"`
	Points   [][]float64    `yaml:"points"`
}

type emissionConfig struct {
	Intensity float64 `yaml:"intensity"`
	Falloff   float64 `yaml:"falloff"`
}

type viewerConfig struct {
	ID     string  `yaml:"id"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Radius float64 `yaml:"radius"`
}

type motionConfig struct {
	Tile  string  `yaml:"tile"`
	Type  string  `yaml:"type"`
	Speed float64 `yaml:"speed"`
}

func parseColorOr(s string, fallback mapshine.Color) mapshine.Color {
	if c, ok := mapshine.ParseHexColor(s); ok {
		return c
	}
	if s != "" {
		log.Printf("bad color %q, using fallback", s)
	}
	return fallback
}

func doorAnimType(s string) mapshine.DoorAnimType {
	switch s {
	case "slide":
		return mapshine.DoorAnimSlide
	case "ascend":
		return mapshine.DoorAnimAscend
	case "descend":
		return mapshine.DoorAnimDescend
	case "swivel":
		return mapshine.DoorAnimSwivel
	default:
		return mapshine.DoorAnimSwing
	}
}

func tileDoc(tc tileConfig) mapshine.TileDoc {
	return mapshine.TileDoc{
		ID:         tc.ID,
		X:          tc.X,
		Y:          tc.Y,
		Width:      tc.Width,
		Height:     tc.Height,
		Elevation:  tc.Elevation,
		Sort:       tc.Sort,
		Alpha:      1,
		TextureSrc: tc.Texture,
		Flags: mapshine.TileFlags{
			OverheadIsRoof:      tc.Roof,
			CloudShadowsEnabled: tc.CloudShadows,
			CloudTopsEnabled:    tc.CloudTops,
		},
	}
}

func wallDoc(wc wallConfig) (mapshine.WallDoc, error) {
	if len(wc.Coords) != 4 {
		return mapshine.WallDoc{}, fmt.Errorf("wall %s: want 4 coords, got %d", wc.ID, len(wc.Coords))
	}
	doc := mapshine.WallDoc{
		ID:     wc.ID,
		Coords: [4]float64{wc.Coords[0], wc.Coords[1], wc.Coords[2], wc.Coords[3]},
		IsDoor: wc.Door,
	}
	if wc.State == "open" {
		doc.DoorState = mapshine.DoorStateOpen
	}
	if wc.Door {
		dur, err := time.ParseDuration(wc.Animation.Duration)
		if err != nil {
			dur = time.Second
		}
		doc.Animation = mapshine.DoorAnimConfig{
			Texture:   wc.Animation.Texture,
			Type:      doorAnimType(wc.Animation.Type),
			Direction: wc.Animation.Direction,
			Double:    wc.Animation.Double,
			Duration:  dur,
			Strength:  wc.Animation.Strength,
			Flip:      wc.Animation.Flip,
		}
	}
	return doc, nil
}

func vec2s(points [][]float64) []mapshine.Vec2 {
	out := make([]mapshine.Vec2, 0, len(points))
	for _, p := range points {
		if len(p) != 2 {
			continue
		}
		out = append(out, mapshine.Vec2{X: p[0], Y: p[1]})
	}
	return out
}

// --- in-memory host ---

type memScene struct {
	cfg      *sceneConfig
	darkness float64
}

func (s *memScene) ID() string { return "stormkeep" }

func (s *memScene) Name() string { return s.cfg.Name }

func (s *memScene) BackgroundSrc() string { return s.cfg.Background }

func (s *memScene) ForegroundElevation() float64 { return s.cfg.ForegroundElevation }

func (s *memScene) TokenVision() bool { return true }

func (s *memScene) FogExploration() bool { return s.cfg.Fog.Exploration }

func (s *memScene) DarknessLevel() float64 { return s.darkness }

func (s *memScene) Dimensions() mapshine.SceneDims {
	return mapshine.SceneDims{
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
		SceneRect: mapshine.Rect{
			X:      s.cfg.Scene.X,
			Y:      s.cfg.Scene.Y,
			Width:  s.cfg.Scene.Width,
			Height: s.cfg.Scene.Height,
		},
		Distance: s.cfg.Distance,
		Size:     s.cfg.Grid,
	}
}

func (s *memScene) FogColors() mapshine.FogColors {
	return mapshine.FogColors{
		Unexplored: parseColorOr(s.cfg.Fog.Unexplored, mapshine.Color{A: 1}),
		Explored:   parseColorOr(s.cfg.Fog.Explored, mapshine.Color{R: 0.47, G: 0.47, B: 0.47, A: 1}),
	}
}

func (s *memScene) AmbientColors() (mapshine.Color, mapshine.Color) {
	day := parseColorOr(s.cfg.Ambient.Daylight, mapshine.ColorWhite)
	night := parseColorOr(s.cfg.Ambient.Darkness, mapshine.Color{R: 0.14, G: 0.16, B: 0.27, A: 1})
	return day, night
}

type memSettings struct {
	values map[string]any
}

func (s *memSettings) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *memSettings) Set(key string, value any) error {
	s.values[key] = value
	return nil
}

type memFog struct {
	doc *mapshine.FogExplorationDoc
}

func (f *memFog) Load() (*mapshine.FogExplorationDoc, error) { return f.doc, nil }

func (f *memFog) Save(doc *mapshine.FogExplorationDoc) error {
	f.doc = doc
	return nil
}

type memWeather struct {
	state     mapshine.WeatherState
	timeScale float64
}

func (w *memWeather) CurrentWeather() (mapshine.WeatherState, bool) { return w.state, true }

func (w *memWeather) TimeScale() float64 { return w.timeScale }

type memFrames struct{}

func (memFrames) ForcePerceptionUpdate() {}

func (memFrames) RequestContinuousRender(time.Duration) {}

type memNotifier struct{}

func (memNotifier) Info(msg string) { log.Printf("info: %s", msg) }

func (memNotifier) Warn(msg string) { log.Printf("warn: %s", msg) }

func (memNotifier) Error(msg string) { log.Printf("error: %s", msg) }

type memViewer struct {
	id     string
	x, y   float64
	radius float64
	mode   string
}

func (v *memViewer) ID() string { return v.id }

func (v *memViewer) VisionMode() string { return v.mode }

func (v *memViewer) VisionPolygon() []mapshine.Vec2 {
	const segs = 24
	poly := make([]mapshine.Vec2, 0, segs)
	for i := 0; i < segs; i++ {
		a := float64(i) / segs * 2 * math.Pi
		poly = append(poly, mapshine.Vec2{
			X: v.x + math.Cos(a)*v.radius,
			Y: v.y + math.Sin(a)*v.radius,
		})
	}
	return poly
}

type memHost struct {
	events   *mapshine.HostEvents
	scene    *memScene
	tiles    []mapshine.TileDoc
	walls    []mapshine.WallDoc
	viewers  []*memViewer
	settings *memSettings
	fog      *memFog
	weather  *memWeather
	textures *texGen
}

func newMemHost(cfg *sceneConfig) (*memHost, error) {
	h := &memHost{
		events:   mapshine.NewHostEvents(),
		scene:    &memScene{cfg: cfg, darkness: cfg.Darkness},
		settings: &memSettings{values: make(map[string]any)},
		fog:      &memFog{},
		weather: &memWeather{
			state: mapshine.WeatherState{
				WindDirection: windDir(cfg.Weather.Wind),
				WindSpeed:     cfg.Weather.WindSpeed,
				CloudCover:    cfg.Weather.CloudCover,
				SkyColor:      parseColorOr(cfg.Weather.Sky, mapshine.Color{R: 0.55, G: 0.7, B: 0.88, A: 1}),
				SkyIntensity:  cfg.Weather.SkyIntensity,
				TimeOfDay:     cfg.Weather.TimeOfDay,
			},
			timeScale: 1,
		},
		textures: buildTextures(),
	}
	for _, tc := range cfg.Tiles {
		h.tiles = append(h.tiles, tileDoc(tc))
	}
	for _, wc := range cfg.Walls {
		doc, err := wallDoc(wc)
		if err != nil {
			return nil, err
		}
		h.walls = append(h.walls, doc)
	}
	for _, vc := range cfg.Viewers {
		h.viewers = append(h.viewers, &memViewer{id: vc.ID, x: vc.X, y: vc.Y, radius: vc.Radius})
	}
	return h, nil
}

func windDir(v []float64) mapshine.Vec2 {
	if len(v) != 2 {
		return mapshine.Vec2{X: 1}
	}
	return mapshine.Vec2{X: v[0], Y: v[1]}
}

func (h *memHost) Events() *mapshine.HostEvents { return h.events }

func (h *memHost) Scene() mapshine.SceneDoc { return h.scene }

func (h *memHost) Tiles() []mapshine.TileDoc {
	return append([]mapshine.TileDoc(nil), h.tiles...)
}

func (h *memHost) Walls() []mapshine.WallDoc {
	return append([]mapshine.WallDoc(nil), h.walls...)
}

func (h *memHost) ControlledViewers() []mapshine.Viewer {
	out := make([]mapshine.Viewer, len(h.viewers))
	for i, v := range h.viewers {
		out[i] = v
	}
	return out
}

func (h *memHost) IsGM() bool { return false }

func (h *memHost) Settings() mapshine.SettingsStore { return h.settings }

func (h *memHost) Fog() mapshine.FogStore { return h.fog }

func (h *memHost) Weather() mapshine.WeatherProvider { return h.weather }

func (h *memHost) Frames() mapshine.FrameCoordinator { return memFrames{} }

func (h *memHost) Notifier() mapshine.Notifier { return memNotifier{} }

func (h *memHost) Textures() mapshine.TextureLoader { return h.textures }

// --- game loop ---

var effectKeys = map[ebiten.Key]string{
	ebiten.Key1: "bush",
	ebiten.Key2: "prism",
	ebiten.Key3: "clouds",
	ebiten.Key4: "cloudtops",
	ebiten.Key5: "fog",
	ebiten.Key6: "doors",
	ebiten.Key7: "swarm",
	ebiten.Key8: "selection",
	ebiten.Key9: "overlay",
	ebiten.Key0: "lightning",
}

var visionCycle = []string{
	"",
	mapshine.VisionModeDarkvision,
	mapshine.VisionModeMonochromatic,
	mapshine.VisionModeLightAmplification,
	mapshine.VisionModeTremorsense,
}

type game struct {
	host     *memHost
	scene    *mapshine.SceneComposer
	ec       *mapshine.EffectComposer
	points   *mapshine.MapPointsStore
	motion   *mapshine.TileMotionEngine
	settings *mapshine.EffectSettings
	hud      *mapshine.DebugHUD
	shots    *mapshine.Screenshotter
	watcher  *mapshine.ShaderWatcher
	script   *scenario

	pending  float64
	showHUD  bool
	enabled  map[string]bool
	storm    bool
	calm     mapshine.WeatherState
	visionIx int
	quit     bool
}

func (g *game) Update() error {
	if g.quit {
		return ebiten.Termination
	}
	const dt = 1.0 / 60
	g.pending += dt
	g.handleKeys(dt)
	g.settings.Poll()
	g.motion.Update(dt)
	if g.watcher != nil {
		g.watcher.Poll()
	}
	if g.script != nil {
		g.script.step(g)
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	dt := g.pending
	g.pending = 0
	g.ec.RenderFrame(screen, dt)
	if g.showHUD {
		g.hud.Update(dt)
		g.hud.Draw(screen)
	}
	g.shots.Flush(screen)
}

func (g *game) Layout(int, int) (int, int) { return screenW, screenH }

func (g *game) handleKeys(dt float64) {
	g.moveKnight(dt)

	cam := g.scene.Camera()
	if ebiten.IsKeyPressed(ebiten.KeyQ) {
		cam.Zoom = max(cam.Zoom*(1-0.9*dt), 0.2)
		cam.MarkDirty()
	}
	if ebiten.IsKeyPressed(ebiten.KeyE) {
		cam.Zoom = min(cam.Zoom*(1+0.9*dt), 2.5)
		cam.MarkDirty()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyO) {
		g.toggleDoors()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyV) {
		g.setVisionMode(visionCycle[(g.visionIx+1)%len(visionCycle)])
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyT) {
		g.setTimeOfDay(g.host.weather.state.TimeOfDay + 1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.setTimeOfDay(g.host.weather.state.TimeOfDay - 1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyG) {
		g.setStorm(!g.storm)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.motion.SetPlaying(!g.motion.Playing())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketLeft) {
		g.setDarkness(g.host.scene.darkness + 0.05)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketRight) {
		g.setDarkness(g.host.scene.darkness - 0.05)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF1) {
		g.showHUD = !g.showHUD
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.shots.Request("stormkeep")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyN) {
		g.swapSwarmPreset()
	}
	for key, id := range effectKeys {
		if inpututil.IsKeyJustPressed(key) {
			g.setEffectEnabled(id, !g.enabled[id])
		}
	}
}

func (g *game) moveKnight(dt float64) {
	if len(g.host.viewers) == 0 {
		return
	}
	dx, dy := 0.0, 0.0
	if ebiten.IsKeyPressed(ebiten.KeyW) || ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
		dy--
	}
	if ebiten.IsKeyPressed(ebiten.KeyS) || ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
		dy++
	}
	if ebiten.IsKeyPressed(ebiten.KeyA) || ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
		dx--
	}
	if ebiten.IsKeyPressed(ebiten.KeyD) || ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
		dx++
	}
	if dx == 0 && dy == 0 {
		return
	}
	v := g.host.viewers[0]
	const speed = 260
	rect := g.host.scene.Dimensions().SceneRect
	v.x = math.Max(rect.X, math.Min(v.x+dx*speed*dt, rect.X+rect.Width))
	v.y = math.Max(rect.Y, math.Min(v.y+dy*speed*dt, rect.Y+rect.Height))
	g.host.events.Emit(mapshine.HookUpdateToken, v.id)
	g.host.events.Emit(mapshine.HookSightRefresh, nil)
}

func (g *game) setEffectEnabled(id string, on bool) {
	if g.ec.SetEnabled(id, on) {
		g.enabled[id] = on
	}
}

func (g *game) toggleDoors() {
	for i := range g.host.walls {
		w := &g.host.walls[i]
		if !w.IsDoor {
			continue
		}
		if w.DoorState == mapshine.DoorStateClosed {
			w.DoorState = mapshine.DoorStateOpen
		} else {
			w.DoorState = mapshine.DoorStateClosed
		}
		g.host.events.Emit(mapshine.HookUpdateWall, *w)
	}
}

func (g *game) setVisionMode(mode string) {
	if len(g.host.viewers) == 0 {
		return
	}
	g.host.viewers[0].mode = mode
	g.visionIx = 0
	for i, m := range visionCycle {
		if m == mode {
			g.visionIx = i
			break
		}
	}
	g.host.events.Emit(mapshine.HookSightRefresh, nil)
}

func (g *game) setTimeOfDay(hour float64) {
	hour = math.Mod(hour, 24)
	if hour < 0 {
		hour += 24
	}
	g.host.weather.state.TimeOfDay = hour
}

func (g *game) setDarkness(v float64) {
	g.host.scene.darkness = math.Max(0, math.Min(v, 1))
}

// setStorm swaps the weather between the descriptor's calm state and a
// gale, and arms the lightning effect while it blows.
func (g *game) setStorm(on bool) {
	if on == g.storm {
		return
	}
	g.storm = on
	w := g.host.weather
	if on {
		g.calm = w.state
		w.state.WindSpeed = 0.9
		w.state.CloudCover = 0.92
		w.state.SkyColor = parseColorOr("#4a5668", w.state.SkyColor)
		w.state.SkyIntensity = 0.45
		g.setEffectEnabled("lightning", true)
		return
	}
	tod := w.state.TimeOfDay
	w.state = g.calm
	w.state.TimeOfDay = tod
	g.setEffectEnabled("lightning", false)
}

func (g *game) swapSwarmPreset() {
	next := string(mapshine.SwarmEmbers)
	if cur, _ := g.settings.Value("swarm", "preset"); cur == next {
		next = string(mapshine.SwarmFireflies)
	}
	g.settings.SetValue("swarm", "preset", next)
	g.applySwarmPreset(next)
}

func (g *game) applySwarmPreset(name string) {
	sw, ok := g.ec.EffectByID("swarm").(*mapshine.SwarmEffect)
	if !ok {
		return
	}
	p := mapshine.FireflySwarmParams()
	if name == string(mapshine.SwarmEmbers) {
		p = mapshine.EmberSwarmParams()
	}
	if rate, ok := g.settings.Value("swarm", "rate"); ok {
		if f, ok := rate.(float64); ok && f > 0 {
			p.EmitRate = f
		}
	}
	*sw.Params() = p
	sw.Reset()
}

// --- setup ---

func seedPointGroups(points *mapshine.MapPointsStore, cfg *sceneConfig) {
	for _, gc := range cfg.PointGroups {
		grp := mapshine.MapPointGroup{
			ID:             gc.ID,
			Label:          gc.Label,
			Type:           gc.Type,
			Points:         vec2s(gc.Points),
			IsEffectSource: gc.Effect != "",
			EffectTarget:   gc.Effect,
			Emission: mapshine.Emission{
				Intensity: gc.Emission.Intensity,
				Falloff: mapshine.EmissionFalloff{
					Enabled:  gc.Emission.Falloff > 0,
					Strength: gc.Emission.Falloff,
				},
			},
		}
		if !points.CreateGroup(grp) {
			log.Printf("point group %q rejected", gc.ID)
		}
	}
}

func seedTileMotions(motion *mapshine.TileMotionEngine, cfg *sceneConfig) {
	for _, mc := range cfg.TileMotions {
		ok := motion.SetTileMotion(mc.Tile, mapshine.TileMotionConfig{
			Enabled: true,
			Mode:    mapshine.TileModeTransform,
			Motion: mapshine.TileMotionSpec{
				Type:  mapshine.TileMotionKind(mc.Type),
				Speed: mc.Speed,
			},
		})
		if !ok {
			log.Printf("tile motion for %q rejected", mc.Tile)
		}
	}
}

func main() {
	scenarioPath := flag.String("scenario", "", "JSON step script to run unattended")
	shaderDir := flag.String("shaders", "", "directory of .kage overrides to live-reload")
	flag.Parse()

	var cfg sceneConfig
	if err := yaml.Unmarshal(sceneYAML, &cfg); err != nil {
		log.Fatal(err)
	}

	host, err := newMemHost(&cfg)
	if err != nil {
		log.Fatal(err)
	}
	scene := mapshine.NewSceneComposer(host)
	ec := mapshine.NewEffectComposer(scene, host)
	points := mapshine.NewMapPointsStore(host)

	if err := mapshine.RegisterStandardEffects(ec, points); err != nil {
		log.Fatal(err)
	}

	host.events.Emit(mapshine.HookCanvasReady, nil)
	seedPointGroups(points, &cfg)

	motion := mapshine.NewTileMotionEngine(host, scene)
	seedTileMotions(motion, &cfg)
	motion.SetPlaying(true)

	settings := mapshine.NewEffectSettings(host)
	settings.RegisterSchema("swarm", []mapshine.ParamSpec{
		{
			Name:    "preset",
			Label:   "Preset",
			Kind:    mapshine.ParamChoice,
			Default: string(mapshine.SwarmFireflies),
			Choices: []string{string(mapshine.SwarmFireflies), string(mapshine.SwarmEmbers)},
		},
		{
			Name:    "rate",
			Label:   "Emit rate",
			Kind:    mapshine.ParamNumber,
			Min:     0,
			Max:     60,
			Step:    1,
			Default: 12.0,
		},
	})

	g := &game{
		host:     host,
		scene:    scene,
		ec:       ec,
		points:   points,
		motion:   motion,
		settings: settings,
		hud:      mapshine.NewDebugHUD(ec),
		shots:    mapshine.NewScreenshotter(),
		showHUD:  true,
		enabled:  make(map[string]bool),
	}
	for _, id := range effectKeys {
		g.enabled[id] = true
	}
	// lightning waits for a storm
	g.setEffectEnabled("lightning", false)

	if *scenarioPath != "" {
		sc, err := loadScenario(*scenarioPath)
		if err != nil {
			log.Fatal(err)
		}
		g.script = sc
	}
	if *shaderDir != "" {
		w, err := mapshine.NewShaderWatcher(*shaderDir)
		if err != nil {
			log.Fatal(err)
		}
		g.watcher = w
		defer w.Close()
	}

	mapshine.EnableDebugChecks(true)
	ebiten.SetWindowSize(screenW, screenH)
	ebiten.SetWindowTitle("mapshine: stormkeep")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
	ec.Dispose()
	scene.Dispose()
}

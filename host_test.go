package mapshine

import (
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// Shared test doubles for the host surface. Subsystem tests build a
// newFakeHost and mutate its fields directly; every collaborator records
// what was asked of it.

type fakeScene struct {
	id             string
	name           string
	dims           SceneDims
	background     string
	foreground     float64
	tokenVision    bool
	fogExploration bool
	fogColors      FogColors
	darkness       float64
	daylight       Color
	darknessColor  Color
}

func (s *fakeScene) ID() string { return s.id }
func (s *fakeScene) Name() string { return s.name }
func (s *fakeScene) Dimensions() SceneDims { return s.dims }
func (s *fakeScene) BackgroundSrc() string { return s.background }
func (s *fakeScene) ForegroundElevation() float64 { return s.foreground }
func (s *fakeScene) TokenVision() bool { return s.tokenVision }
func (s *fakeScene) FogExploration() bool { return s.fogExploration }
func (s *fakeScene) FogColors() FogColors { return s.fogColors }
func (s *fakeScene) DarknessLevel() float64 { return s.darkness }
func (s *fakeScene) AmbientColors() (Color, Color) {
	return s.daylight, s.darknessColor
}

type fakeViewer struct {
	id   string
	poly []Vec2
	mode string
}

func (v *fakeViewer) ID() string { return v.id }
func (v *fakeViewer) VisionPolygon() []Vec2 { return v.poly }
func (v *fakeViewer) VisionMode() string { return v.mode }

type fakeSettings struct {
	values  map[string]any
	failSet bool
	sets    int
}

func (s *fakeSettings) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *fakeSettings) Set(key string, value any) error {
	if s.failSet {
		return ErrPermission
	}
	s.sets++
	s.values[key] = value
	return nil
}

type fakeFog struct {
	doc     *FogExplorationDoc
	loadErr error
	saveErr error
	saves   []*FogExplorationDoc
}

func (f *fakeFog) Load() (*FogExplorationDoc, error) {
	return f.doc, f.loadErr
}

func (f *fakeFog) Save(doc *FogExplorationDoc) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, doc)
	f.doc = doc
	return nil
}

type fakeWeather struct {
	state     WeatherState
	installed bool
	timeScale float64
}

func (w *fakeWeather) CurrentWeather() (WeatherState, bool) {
	return w.state, w.installed
}

func (w *fakeWeather) TimeScale() float64 { return w.timeScale }

type fakeFrames struct {
	perceptionCalls int
	continuous      []time.Duration
}

func (f *fakeFrames) ForcePerceptionUpdate() { f.perceptionCalls++ }

func (f *fakeFrames) RequestContinuousRender(d time.Duration) {
	f.continuous = append(f.continuous, d)
}

type fakeNotifier struct {
	infos  []string
	warns  []string
	errors []string
}

func (n *fakeNotifier) Info(msg string) { n.infos = append(n.infos, msg) }
func (n *fakeNotifier) Warn(msg string) { n.warns = append(n.warns, msg) }
func (n *fakeNotifier) Error(msg string) { n.errors = append(n.errors, msg) }

type fakeTextures struct {
	images map[string]*ebiten.Image
	loads  []string
}

func (t *fakeTextures) LoadTexture(src string) (*ebiten.Image, error) {
	t.loads = append(t.loads, src)
	if img, ok := t.images[src]; ok {
		return img, nil
	}
	return nil, fmt.Errorf("texture %q not found", src)
}

type fakeHost struct {
	events   *HostEvents
	scene    *fakeScene
	tiles    []TileDoc
	walls    []WallDoc
	viewers  []Viewer
	gm       bool
	settings *fakeSettings
	fog      *fakeFog
	weather  *fakeWeather
	frames   *fakeFrames
	notifier *fakeNotifier
	textures *fakeTextures
}

func (h *fakeHost) Events() *HostEvents { return h.events }

func (h *fakeHost) Scene() SceneDoc {
	if h.scene == nil {
		return nil
	}
	return h.scene
}

func (h *fakeHost) Tiles() []TileDoc { return h.tiles }
func (h *fakeHost) Walls() []WallDoc { return h.walls }
func (h *fakeHost) ControlledViewers() []Viewer { return h.viewers }
func (h *fakeHost) IsGM() bool { return h.gm }
func (h *fakeHost) Settings() SettingsStore { return h.settings }
func (h *fakeHost) Fog() FogStore { return h.fog }
func (h *fakeHost) Weather() WeatherProvider { return h.weather }
func (h *fakeHost) Frames() FrameCoordinator { return h.frames }
func (h *fakeHost) Notifier() Notifier { return h.notifier }
func (h *fakeHost) Textures() TextureLoader { return h.textures }

// newFakeHost builds a host with a small bound scene and empty collaborators.
func newFakeHost() *fakeHost {
	return &fakeHost{
		events: NewHostEvents(),
		scene: &fakeScene{
			id:         "scene-1",
			name:       "Stormkeep",
			background: "maps/keep.webp",
			dims: SceneDims{
				Width:  400,
				Height: 320,
				SceneRect: Rect{
					X: 40, Y: 40, Width: 320, Height: 240,
				},
				Distance: 5,
				Size:     100,
			},
			foreground:     20,
			tokenVision:    true,
			fogExploration: true,
			fogColors: FogColors{
				Unexplored: Color{0, 0, 0, 1},
				Explored:   Color{0.1, 0.1, 0.15, 0.55},
			},
			daylight:      Color{1, 1, 1, 1},
			darknessColor: Color{0.14, 0.16, 0.26, 1},
		},
		settings: &fakeSettings{values: make(map[string]any)},
		fog:      &fakeFog{},
		weather:  &fakeWeather{timeScale: 1},
		frames:   &fakeFrames{},
		notifier: &fakeNotifier{},
		textures: &fakeTextures{images: make(map[string]*ebiten.Image)},
	}
}

// newTestImage returns a solid-color image for loader fakes.
func newTestImage(w, h int, c Color) *ebiten.Image {
	img := ebiten.NewImage(w, h)
	img.Fill(c.toRGBA())
	return img
}

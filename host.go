package mapshine

import (
	"errors"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// Sentinel errors returned by host collaborators and store mutators.
var (
	// ErrPermission is returned when the host refuses a write. Mutators
	// catch it, warn the user, and leave state unchanged.
	ErrPermission = errors.New("mapshine: permission denied")
	// ErrGroupNotFound is returned by map-point mutators targeting an
	// unknown group id.
	ErrGroupNotFound = errors.New("mapshine: group not found")
	// ErrInvalidGroup is returned when a group fails validation (too few
	// points for its type, unknown type).
	ErrInvalidGroup = errors.New("mapshine: invalid group")
	// ErrDuplicateEffect is returned by EffectComposer.Register when the
	// effect id is already registered.
	ErrDuplicateEffect = errors.New("mapshine: duplicate effect id")
	// ErrInvalidMotion is returned when a tile motion recipe fails
	// validation (unknown mode, motion type, or loop mode).
	ErrInvalidMotion = errors.New("mapshine: invalid tile motion")
)

// SceneDims mirrors the host canvas dimensions. SceneRect is the padded
// map area; Width and Height cover the full canvas including padding.
type SceneDims struct {
	Width     float64
	Height    float64
	SceneRect Rect
	// Distance is map units per grid square, Size the grid square in pixels.
	Distance float64
	Size     float64
}

// FogColors holds the scene's fog tint pair.
type FogColors struct {
	Unexplored Color
	Explored   Color
}

// SceneDoc is the read surface of the host's current scene document.
type SceneDoc interface {
	ID() string
	Name() string
	Dimensions() SceneDims
	BackgroundSrc() string
	ForegroundElevation() float64
	TokenVision() bool
	FogExploration() bool
	FogColors() FogColors
	DarknessLevel() float64
	AmbientColors() (daylight, darkness Color)
}

// TileFlags are the per-tile options stored under the module's flag
// namespace on the host tile document.
type TileFlags struct {
	OverheadIsRoof      bool
	BypassEffects       bool
	CloudShadowsEnabled bool
	CloudTopsEnabled    bool
	OccludesWater       bool
}

// TileDoc is a snapshot of a host tile document.
type TileDoc struct {
	ID         string
	X, Y       float64
	Width      float64
	Height     float64
	Rotation   float64 // radians
	Elevation  float64
	Sort       int
	Hidden     bool
	Alpha      float64
	TextureSrc string
	Flags      TileFlags
}

// DoorAnimType selects the door opening motion.
type DoorAnimType uint8

const (
	DoorAnimSwing DoorAnimType = iota
	DoorAnimSlide
	DoorAnimAscend
	DoorAnimDescend
	DoorAnimSwivel
)

// DoorAnimConfig is the host wall's door animation block.
type DoorAnimConfig struct {
	Texture   string
	Type      DoorAnimType
	Direction float64 // +1 or -1 swing direction
	Double    bool
	Duration  time.Duration
	Strength  float64
	Flip      bool
}

// Door state values mirrored from the host wall document.
const (
	DoorStateClosed = 0
	DoorStateOpen   = 1
)

// WallDoc is a snapshot of a host wall document. Coords is {x1, y1, x2, y2}
// in host world coordinates.
type WallDoc struct {
	ID        string
	Coords    [4]float64
	IsDoor    bool
	DoorState int
	Animation DoorAnimConfig
}

// Viewer is a vision source: a token the current user perceives the map
// through. VisionPolygon returns the line-of-sight polygon in host world
// coordinates, or nil while the host has not computed it yet. VisionMode
// names the detection sense the token sees with; empty means normal sight.
type Viewer interface {
	ID() string
	VisionPolygon() []Vec2
	VisionMode() string
}

// SettingsStore reads and writes persistent per-scene module values.
// Get returns false when the namespace or key is absent. Set returns
// ErrPermission when the current user may not write.
type SettingsStore interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
}

// FogExplorationDoc is the persisted fog-of-war record. Explored carries
// the exploration mask as a base64 WebP with the mask in the R channel.
type FogExplorationDoc struct {
	User      string
	Scene     string
	Explored  string
	Timestamp int64
}

// FogStore loads and saves the per-user fog exploration document.
// Load returns nil with no error when the host has no record yet.
// Save creates or updates as needed.
type FogStore interface {
	Load() (*FogExplorationDoc, error)
	Save(doc *FogExplorationDoc) error
}

// WeatherState is the snapshot returned by the host weather controller.
type WeatherState struct {
	WindDirection Vec2
	WindSpeed     float64
	CloudCover    float64
	SkyColor      Color
	SkyIntensity  float64
	TimeOfDay     float64 // hour in [0, 24)
}

// WeatherProvider exposes the host's weather and game-time state.
// CurrentWeather returns false when no weather system is installed, in
// which case the environment keeps its defaults.
type WeatherProvider interface {
	CurrentWeather() (WeatherState, bool)
	TimeScale() float64
}

// FrameCoordinator lets the core nudge the host's frame scheduling.
type FrameCoordinator interface {
	// ForcePerceptionUpdate asks the host to recompute vision polygons.
	ForcePerceptionUpdate()
	// RequestContinuousRender keeps the host rendering every frame for
	// the given duration instead of idling.
	RequestContinuousRender(d time.Duration)
}

// Notifier surfaces one-line messages to the user.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// TextureLoader resolves a host asset path to a GPU texture.
type TextureLoader interface {
	LoadTexture(src string) (*ebiten.Image, error)
}

// Host aggregates every collaborator the compositor consumes. A client
// embeds its own adapters behind this interface; the demos package carries
// an in-memory implementation.
type Host interface {
	Events() *HostEvents
	Scene() SceneDoc
	Tiles() []TileDoc
	Walls() []WallDoc
	ControlledViewers() []Viewer
	// IsGM reports whether the current user oversees the whole map; with no
	// viewers selected a GM sees it unfogged.
	IsGM() bool
	Settings() SettingsStore
	Fog() FogStore
	Weather() WeatherProvider
	Frames() FrameCoordinator
	Notifier() Notifier
	Textures() TextureLoader
}

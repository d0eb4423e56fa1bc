package mapshine

import "math"

// EnvSnapshot is an immutable copy of the environmental state handed to
// every effect update. Effects read the snapshot instead of reaching into
// shared mutable state, so a mid-frame write by one effect (the lightning
// flash) is only observed by later effects on the following frame.
type EnvSnapshot struct {
	// DarknessLevel is the host scene's darkness in [0, 1]; 0 is full day.
	DarknessLevel   float64
	AmbientDaylight Color
	AmbientDarkness Color

	// SunDir is the normalized 2D direction shadows are cast along,
	// derived from the time of day. SunElevation is the normalized height
	// of the sun in [0, 1]; 0 at the horizon, 1 at noon.
	SunDir       Vec2
	SunElevation float64

	WindDir       Vec2
	WindSpeed     float64 // [0, 1]
	CloudCover    float64 // [0, 1]
	SkyColor      Color
	SkyIntensity  float64 // [0, 1] how much SkyColor bleeds into tints
	TimeOfDayHour float64 // [0, 24)

	// Lightning flash state written by the lightning effect's envelope.
	LightningFlash      float64
	LightningStrikeUV   Vec2
	LightningStrikeDir  Vec2
	LightningStrikeTime float64

	// TimeScale multiplies all animation clocks. ElapsedSec already has it
	// applied.
	TimeScale  float64
	ElapsedSec float64
}

// Environment is the shared read-mostly state bag. The weather collaborator
// and the lightning effect write it; everything else reads per-frame
// snapshots. Access is confined to the frame loop.
type Environment struct {
	snap EnvSnapshot
}

// NewEnvironment returns an environment with daylight defaults.
func NewEnvironment() *Environment {
	return &Environment{snap: EnvSnapshot{
		AmbientDaylight: Color{1, 1, 1, 1},
		AmbientDarkness: Color{0.14, 0.16, 0.26, 1},
		SunDir:          Vec2{X: 1, Y: 0},
		SunElevation:    1,
		WindDir:         Vec2{X: 1, Y: 0},
		SkyColor:        Color{0.55, 0.68, 0.88, 1},
		SkyIntensity:    1,
		TimeOfDayHour:   12,
		TimeScale:       1,
	}}
}

// Snapshot returns the current state by value.
func (e *Environment) Snapshot() EnvSnapshot { return e.snap }

// SetDarkness sets the scene darkness level, clamped to [0, 1].
func (e *Environment) SetDarkness(level float64) {
	e.snap.DarknessLevel = clamp01(level)
}

// SetAmbientColors sets the daylight and darkness ambient colors.
func (e *Environment) SetAmbientColors(daylight, darkness Color) {
	e.snap.AmbientDaylight = daylight
	e.snap.AmbientDarkness = darkness
}

// SetWind sets the wind direction and speed. The direction is normalized;
// a zero vector keeps the previous direction.
func (e *Environment) SetWind(dir Vec2, speed float64) {
	if l := math.Hypot(dir.X, dir.Y); l > 1e-9 {
		e.snap.WindDir = Vec2{X: dir.X / l, Y: dir.Y / l}
	}
	e.snap.WindSpeed = clamp01(speed)
}

// SetCloudCover sets the cloud cover fraction, clamped to [0, 1].
func (e *Environment) SetCloudCover(c float64) {
	e.snap.CloudCover = clamp01(c)
}

// SetSky sets the sky color and how strongly it tints the scene.
func (e *Environment) SetSky(c Color, intensity float64) {
	e.snap.SkyColor = c
	e.snap.SkyIntensity = clamp01(intensity)
}

// SetTimeOfDay sets the clock hour in [0, 24) and derives the sun
// direction and elevation from it. Noon puts the sun at maximum elevation;
// 6:00 and 18:00 put it at the horizon, east and west.
func (e *Environment) SetTimeOfDay(hour float64) {
	hour = math.Mod(hour, 24)
	if hour < 0 {
		hour += 24
	}
	e.snap.TimeOfDayHour = hour

	// Azimuth sweeps half a turn from sunrise to sunset. Shadows point
	// away from the sun, so the cast direction is the azimuth negated.
	dayT := clamp01((hour - 6) / 12)
	azimuth := math.Pi * dayT
	e.snap.SunDir = Vec2{X: -math.Cos(azimuth), Y: -0.35 * math.Sin(azimuth)}
	e.snap.SunElevation = math.Sin(math.Pi * dayT)
}

// SetTimeScale sets the global animation speed multiplier. Negative values
// clamp to zero.
func (e *Environment) SetTimeScale(s float64) {
	if s < 0 {
		s = 0
	}
	e.snap.TimeScale = s
}

// SetLightningFlash records the flash envelope value and strike geometry.
// Called by the lightning effect each frame it is active; collaborating
// effects see the update on their next snapshot.
func (e *Environment) SetLightningFlash(value float64, strikeUV, strikeDir Vec2, atSec float64) {
	if value < 0 {
		value = 0
	}
	e.snap.LightningFlash = value
	e.snap.LightningStrikeUV = strikeUV
	e.snap.LightningStrikeDir = strikeDir
	e.snap.LightningStrikeTime = atSec
}

// advance accumulates the scaled clock. The composer calls this once per
// frame before snapshotting.
func (e *Environment) advance(deltaSec float64) {
	e.snap.ElapsedSec += deltaSec * e.snap.TimeScale
}

package mapshine

import "testing"

func TestEnvironmentDefaults(t *testing.T) {
	env := NewEnvironment()
	snap := env.Snapshot()

	if snap.TimeScale != 1 {
		t.Errorf("TimeScale = %v, want 1", snap.TimeScale)
	}
	if snap.DarknessLevel != 0 {
		t.Errorf("DarknessLevel = %v, want 0", snap.DarknessLevel)
	}
	assertNear(t, "SunDir.X", snap.SunDir.X, 1)
}

func TestEnvironmentSnapshotIsCopy(t *testing.T) {
	env := NewEnvironment()
	snap := env.Snapshot()

	env.SetDarkness(0.8)

	if snap.DarknessLevel != 0 {
		t.Errorf("earlier snapshot mutated: DarknessLevel = %v", snap.DarknessLevel)
	}
	if got := env.Snapshot().DarknessLevel; got != 0.8 {
		t.Errorf("DarknessLevel = %v, want 0.8", got)
	}
}

func TestEnvironmentDarknessClamped(t *testing.T) {
	env := NewEnvironment()
	env.SetDarkness(3)
	if got := env.Snapshot().DarknessLevel; got != 1 {
		t.Errorf("DarknessLevel = %v, want 1", got)
	}
	env.SetDarkness(-1)
	if got := env.Snapshot().DarknessLevel; got != 0 {
		t.Errorf("DarknessLevel = %v, want 0", got)
	}
}

func TestEnvironmentWindNormalized(t *testing.T) {
	env := NewEnvironment()
	env.SetWind(Vec2{X: 3, Y: 4}, 0.5)

	snap := env.Snapshot()
	assertNear(t, "WindDir.X", snap.WindDir.X, 0.6)
	assertNear(t, "WindDir.Y", snap.WindDir.Y, 0.8)
	assertNear(t, "WindSpeed", snap.WindSpeed, 0.5)
}

func TestEnvironmentZeroWindKeepsDirection(t *testing.T) {
	env := NewEnvironment()
	env.SetWind(Vec2{X: 0, Y: 1}, 1)
	env.SetWind(Vec2{}, 0)

	snap := env.Snapshot()
	assertNear(t, "WindDir.Y", snap.WindDir.Y, 1)
	assertNear(t, "WindSpeed", snap.WindSpeed, 0)
}

func TestEnvironmentSunAtNoon(t *testing.T) {
	env := NewEnvironment()
	env.SetTimeOfDay(12)

	snap := env.Snapshot()
	assertNear(t, "SunElevation", snap.SunElevation, 1)
	// Noon sun is overhead: horizontal cast direction is near zero in X.
	if snap.SunDir.X > 1e-9 || snap.SunDir.X < -1e-9 {
		t.Errorf("SunDir.X = %v, want 0 at noon", snap.SunDir.X)
	}
}

func TestEnvironmentSunrise(t *testing.T) {
	env := NewEnvironment()
	env.SetTimeOfDay(6)

	snap := env.Snapshot()
	assertNear(t, "SunElevation", snap.SunElevation, 0)
	// Morning sun in the east casts shadows west: the cast direction
	// points along -cos(0) = -1.
	assertNear(t, "SunDir.X", snap.SunDir.X, -1)
}

func TestEnvironmentTimeOfDayWraps(t *testing.T) {
	env := NewEnvironment()
	env.SetTimeOfDay(26.5)
	assertNear(t, "hour", env.Snapshot().TimeOfDayHour, 2.5)

	env.SetTimeOfDay(-1)
	assertNear(t, "negative hour", env.Snapshot().TimeOfDayHour, 23)
}

func TestEnvironmentAdvanceRespectsTimeScale(t *testing.T) {
	env := NewEnvironment()
	env.SetTimeScale(2)
	env.advance(0.5)
	assertNear(t, "ElapsedSec", env.Snapshot().ElapsedSec, 1)

	env.SetTimeScale(0)
	env.advance(10)
	assertNear(t, "ElapsedSec frozen", env.Snapshot().ElapsedSec, 1)
}

func TestEnvironmentLightningFlashNeverNegative(t *testing.T) {
	env := NewEnvironment()
	env.SetLightningFlash(-0.5, Vec2{}, Vec2{}, 0)
	if got := env.Snapshot().LightningFlash; got != 0 {
		t.Errorf("LightningFlash = %v, want 0", got)
	}
}

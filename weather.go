package mapshine

// WeatherAdapter pulls host weather and scene lighting state into the
// environment once per frame. It is the single writer for the wind,
// cloud, sky, sun, and ambient fields; the lightning effect owns the
// flash fields.
type WeatherAdapter struct {
	host Host
}

// NewWeatherAdapter returns an adapter reading from the given host.
func NewWeatherAdapter(host Host) *WeatherAdapter {
	return &WeatherAdapter{host: host}
}

// Sync copies the host's scene lighting and weather state into env.
// A host without an installed weather system leaves the wind, cloud,
// sky, and clock fields at their previous values.
func (w *WeatherAdapter) Sync(env *Environment) {
	if scene := w.host.Scene(); scene != nil {
		env.SetDarkness(scene.DarknessLevel())
		day, dark := scene.AmbientColors()
		env.SetAmbientColors(day, dark)
	}

	wp := w.host.Weather()
	if wp == nil {
		return
	}
	env.SetTimeScale(wp.TimeScale())
	st, ok := wp.CurrentWeather()
	if !ok {
		return
	}
	env.SetWind(st.WindDirection, st.WindSpeed)
	env.SetCloudCover(st.CloudCover)
	env.SetSky(st.SkyColor, st.SkyIntensity)
	env.SetTimeOfDay(st.TimeOfDay)
}

// Package mapshine is a real-time lighting and effects compositor for 2D
// battle maps, built on [Ebitengine].
//
// Mapshine augments a host virtual-tabletop scene with dynamic lighting,
// fog of war, weather-driven surface effects (animated foliage, clouds and
// cloud shadows), cast shadows from roofs and buildings, lightning bursts,
// particle swarms, and post-processing (vision modes, color grading).
//
// # Architecture
//
// The center of the package is the [EffectComposer]. Effects register with
// a (layer, priority, tier) tuple and are driven in three phases per frame:
// an off-screen pre-pass for surface and environmental effects, a per-floor
// main pass, and a ping-pong post-processing chain. Effects exchange
// textures through well-known shared identifiers such as [TexCloudShadow]
// and [TexOutdoorsMask].
//
// A [SceneComposer] owns the camera, the base map plane, and the sprite set,
// and feeds every effect a consistent [CoordFrame]: world-space view bounds,
// scene bounds, and texel size, so that world-pinned shaders stay free of
// parallax while panning and zooming.
//
// The host VTT is abstracted behind small interfaces ([HostEvents],
// [SettingsStore], [FogStore], [WeatherProvider], ...) so the core runs
// against a fake host in tests and against a real adapter in production.
//
// # Quick start
//
//	host := myHostAdapter()
//	sc := mapshine.NewSceneComposer(host)
//	ec := mapshine.NewEffectComposer(sc, host)
//	points := mapshine.NewMapPointsStore(host)
//	if err := mapshine.RegisterStandardEffects(ec, points); err != nil {
//		log.Fatal(err)
//	}
//
//	// each frame:
//	ec.RenderFrame(screen, dt)
//
// See demos/stormkeep for a complete runnable example with an in-memory
// host.
//
// [Ebitengine]: https://ebitengine.org
package mapshine

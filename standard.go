package mapshine

// StandardEffects builds the full built-in roster: the environmental
// producers (cast shadows, clouds, illumination, the shadow pack), the
// post chain (lighting composite, cloud tops, fog, vision modes), and
// the surface set (doors, bush, prism, swarm, lightning, selection
// rings, the map-points overlay). Effects that read map-point groups
// share the given store; points may be nil, in which case those effects
// idle.
func StandardEffects(points *MapPointsStore) []Effect {
	return []Effect{
		NewOverheadShadowEffect(),
		NewBuildingShadowEffect(),
		NewCloudEffect(),
		NewIlluminationEffect(points),
		NewShadowPackEffect(),
		NewLightingEffect(),
		NewCloudTopsEffect(),
		NewFogEffect(),
		NewVisionModeEffect(),
		NewDoorEffect(),
		NewBushEffect(),
		NewPrismEffect(),
		NewSwarmEffect(points, FireflySwarmParams()),
		NewLightningEffect(points),
		NewSelectionEffect(),
		NewMapPointsOverlay(points),
	}
}

// RegisterStandardEffects registers the full built-in roster on the
// composer and stops at the first registration error.
func RegisterStandardEffects(ec *EffectComposer, points *MapPointsStore) error {
	for _, e := range StandardEffects(points) {
		if err := ec.Register(e); err != nil {
			return err
		}
	}
	return nil
}

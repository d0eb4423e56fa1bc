package mapshine

// EffectDescriptor is the immutable identity an effect declares at
// registration, plus the capability metadata a client UI reads to build its
// control panel and to gate expensive effects on weaker hardware.
type EffectDescriptor struct {
	ID     string
	Bucket LayerBucket
	Tier   Tier

	// FloorScope picks between drawing once per floor band and drawing
	// exactly once per frame after floor visibility is restored. Only
	// surface effects consult it.
	FloorScope FloorScope

	// DefaultPriority seeds the slot priority; lower values draw first
	// within a bucket.
	DefaultPriority int

	// SupportsEnabled and SupportsIntensity describe which of the two
	// standard controls the client may show for this effect.
	SupportsEnabled   bool
	SupportsIntensity bool
}

// AllowedAt reports whether the effect may register under the given maximum
// tier.
func (d EffectDescriptor) AllowedAt(max Tier) bool {
	return d.Tier <= max
}

// Capability is a descriptor joined with the composer's live state for it,
// as returned by EffectComposer.Capabilities.
type Capability struct {
	EffectDescriptor
	Priority int
	Enabled  bool
	Failed   bool
}

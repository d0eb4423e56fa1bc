package mapshine

import "sort"

// defaultForegroundElevation separates ground tiles from overhead tiles
// when the scene does not supply its own threshold.
const defaultForegroundElevation = 20.0

// FloorBand is one elevation slice of the scene. Band 0 is the ground
// band and also carries the base plane; overhead bands follow in
// ascending elevation order.
type FloorBand struct {
	Index     int
	Elevation float64
	IsGround  bool
	Tiles     []*TileSprite
}

// FloorStack groups tile sprites into floor bands and drives the
// per-band visibility pass: BeginPass captures every sprite's visibility
// exactly once, ApplyBand shows only one band's sprites, EndPass restores
// the captured state. Sprites hidden before the pass stay hidden inside
// their own band.
type FloorStack struct {
	bands      []*FloorBand
	activeBand int
	saved      map[*TileSprite]bool
	inPass     bool
}

// NewFloorStack returns a stack holding a single empty ground band.
func NewFloorStack() *FloorStack {
	f := &FloorStack{saved: make(map[*TileSprite]bool)}
	f.Rebuild(nil, nil)
	return f
}

// Rebuild regroups sprites into bands: one ground band below the scene's
// foreground elevation, then one band per distinct overhead elevation.
// The active band resets to the topmost band.
func (f *FloorStack) Rebuild(scene SceneDoc, sprites []*TileSprite) {
	fg := defaultForegroundElevation
	if scene != nil {
		fg = scene.ForegroundElevation()
	}

	ground := &FloorBand{Index: 0, IsGround: true}
	overhead := make(map[float64]*FloorBand)
	var elevations []float64
	for _, s := range sprites {
		e := s.Doc.Elevation
		if e < fg {
			ground.Tiles = append(ground.Tiles, s)
			continue
		}
		b, ok := overhead[e]
		if !ok {
			b = &FloorBand{Elevation: e}
			overhead[e] = b
			elevations = append(elevations, e)
		}
		b.Tiles = append(b.Tiles, s)
	}
	sort.Float64s(elevations)

	f.bands = f.bands[:0]
	f.bands = append(f.bands, ground)
	for _, e := range elevations {
		b := overhead[e]
		b.Index = len(f.bands)
		f.bands = append(f.bands, b)
	}
	f.activeBand = len(f.bands) - 1
}

// BandCount returns the number of visible bands: ground up to and
// including the active band.
func (f *FloorStack) BandCount() int { return f.activeBand + 1 }

// TotalBands returns the full band count regardless of the active band.
func (f *FloorStack) TotalBands() int { return len(f.bands) }

// Band returns band i, or nil when out of range.
func (f *FloorStack) Band(i int) *FloorBand {
	if i < 0 || i >= len(f.bands) {
		return nil
	}
	return f.bands[i]
}

// IsGroundBand reports whether band i is the ground band.
func (f *FloorStack) IsGroundBand(i int) bool {
	b := f.Band(i)
	return b != nil && b.IsGround
}

// ActiveBand returns the index of the topmost rendered band.
func (f *FloorStack) ActiveBand() int { return f.activeBand }

// SetActiveBand clamps i into range and makes it the topmost rendered
// band. Bands above it are skipped by the frame loop.
func (f *FloorStack) SetActiveBand(i int) {
	if i < 0 {
		i = 0
	}
	if max := len(f.bands) - 1; i > max {
		i = max
	}
	f.activeBand = i
}

// BeginPass captures every sprite's visibility. Calling it again before
// EndPass is a no-op so the captured state is never overwritten by
// in-pass mutations.
func (f *FloorStack) BeginPass() {
	if f.inPass {
		return
	}
	f.inPass = true
	for k := range f.saved {
		delete(f.saved, k)
	}
	for _, b := range f.bands {
		for _, s := range b.Tiles {
			f.saved[s] = s.visible
		}
	}
}

// ApplyBand hides every sprite except band i's, which get their captured
// visibility back.
func (f *FloorStack) ApplyBand(i int) {
	for _, b := range f.bands {
		for _, s := range b.Tiles {
			s.visible = false
		}
	}
	b := f.Band(i)
	if b == nil {
		return
	}
	for _, s := range b.Tiles {
		s.visible = f.saved[s]
	}
}

// EndPass restores every sprite's captured visibility.
func (f *FloorStack) EndPass() {
	if !f.inPass {
		return
	}
	for _, b := range f.bands {
		for _, s := range b.Tiles {
			s.visible = f.saved[s]
		}
	}
	f.inPass = false
}

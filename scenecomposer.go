package mapshine

import (
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
)

// TileSprite is the renderable state of one host tile. The Doc holds the
// host's view of the tile; the pose fields start from the Doc and are
// mutated by the tile motion engine, which restores them from its captured
// base when playback stops.
type TileSprite struct {
	Doc     TileDoc
	texture *ebiten.Image

	// X, Y are the world top-left corner; rotation and scale apply about
	// the tile center.
	X, Y           float64
	Rotation       float64
	ScaleX, ScaleY float64
	Alpha          float64

	// Texture motion state in normalized texture units. TexRepeat selects
	// the repeat address mode so scrolled samples wrap.
	TexScrollU, TexScrollV float64
	TexRotate              float64
	TexPivotU, TexPivotV   float64
	TexRepeat              bool

	visible bool
}

func newTileSprite(doc TileDoc, tex *ebiten.Image) *TileSprite {
	s := &TileSprite{Doc: doc, texture: tex, visible: true}
	s.ResetPose()
	return s
}

// ResetPose returns the sprite to the pose described by its host document.
// A zero document alpha renders opaque.
func (s *TileSprite) ResetPose() {
	s.X, s.Y = s.Doc.X, s.Doc.Y
	s.Rotation = s.Doc.Rotation
	s.ScaleX, s.ScaleY = 1, 1
	s.Alpha = s.Doc.Alpha
	if s.Alpha <= 0 {
		s.Alpha = 1
	}
	s.TexScrollU, s.TexScrollV = 0, 0
	s.TexRotate = 0
	s.TexPivotU, s.TexPivotV = 0.5, 0.5
	s.TexRepeat = false
}

// Texture returns the sprite's GPU texture, or nil while unloaded.
func (s *TileSprite) Texture() *ebiten.Image { return s.texture }

// Visible reports whether this sprite draws in the current pass.
func (s *TileSprite) Visible() bool { return s.visible }

// SetVisible overrides the sprite's visibility. The floor pass captures
// and restores this flag around per-band rendering, so out-of-pass writes
// survive the frame.
func (s *TileSprite) SetVisible(v bool) { s.visible = v }

// WorldMatrix returns the local-quad-to-world transform. The local quad
// spans (0,0)..(Width,Height); scale and rotation apply about its center.
func (s *TileSprite) WorldMatrix() [6]float64 {
	w, h := s.Doc.Width, s.Doc.Height
	return composeAffine(s.X+w/2, s.Y+h/2, s.Rotation, s.ScaleX, s.ScaleY, w/2, h/2)
}

// TexMatrix returns the local-quad-to-source-pixel transform including
// texture motion scroll and rotation.
func (s *TileSprite) TexMatrix() [6]float64 {
	if s.texture == nil {
		return identityAffine
	}
	w, h := s.Doc.Width, s.Doc.Height
	if w <= 0 || h <= 0 {
		return identityAffine
	}
	b := s.texture.Bounds()
	tw, th := float64(b.Dx()), float64(b.Dy())

	tm := [6]float64{tw / w, 0, 0, th / h, 0, 0}
	if s.TexRotate != 0 {
		px, py := s.TexPivotU*tw, s.TexPivotV*th
		tm = multiplyAffine(composeAffine(px, py, s.TexRotate, 1, 1, px, py), tm)
	}
	if s.TexScrollU != 0 || s.TexScrollV != 0 {
		tm = multiplyAffine([6]float64{1, 0, 0, 1, s.TexScrollU * tw, s.TexScrollV * th}, tm)
	}
	return tm
}

// SceneComposer owns the world-side of the pipeline: camera, coordinate
// frame, asset bundle, mask registry, tile sprites, and the floor stack.
// It binds to the host scene on canvasReady/updateScene and keeps sprites
// in sync with tile document events.
type SceneComposer struct {
	host   Host
	camera *Camera
	frame  *CoordFrame
	masks  *MaskRegistry
	assets *AssetBundle
	floors *FloorStack

	scene   SceneDoc
	sprites []*TileSprite
	byID    map[string]*TileSprite

	camInit bool

	verts []ebiten.Vertex
	inds  []uint16

	offs []func()
}

// NewSceneComposer creates a composer bound to the host's event bus. Call
// BindScene (or emit canvasReady) once the host scene is readable.
func NewSceneComposer(host Host) *SceneComposer {
	sc := &SceneComposer{
		host:   host,
		camera: NewCamera(Rect{}),
		frame:  NewCoordFrame(Rect{}),
		masks:  NewMaskRegistry(),
		floors: NewFloorStack(),
		byID:   make(map[string]*TileSprite),
	}
	sc.assets = NewAssetBundle(host, sc.masks)

	ev := host.Events()
	sc.offs = append(sc.offs,
		ev.On(HookCanvasReady, func(any) { sc.BindScene() }),
		ev.On(HookUpdateScene, func(any) { sc.BindScene() }),
		ev.On(HookCreateTile, func(data any) {
			if doc, ok := data.(TileDoc); ok {
				sc.upsertTile(doc)
			}
		}),
		ev.On(HookUpdateTile, func(data any) {
			if doc, ok := data.(TileDoc); ok {
				sc.upsertTile(doc)
			}
		}),
		ev.On(HookDeleteTile, func(data any) {
			if id, ok := data.(string); ok {
				sc.removeTile(id)
			}
		}),
	)
	return sc
}

// Camera returns the scene camera.
func (sc *SceneComposer) Camera() *Camera { return sc.camera }

// Frame returns the coordinate frame.
func (sc *SceneComposer) Frame() *CoordFrame { return sc.frame }

// Masks returns the mask registry.
func (sc *SceneComposer) Masks() *MaskRegistry { return sc.masks }

// Assets returns the asset bundle.
func (sc *SceneComposer) Assets() *AssetBundle { return sc.assets }

// Floors returns the floor stack.
func (sc *SceneComposer) Floors() *FloorStack { return sc.floors }

// Scene returns the currently bound scene document, or nil.
func (sc *SceneComposer) Scene() SceneDoc { return sc.scene }

// TileSprites returns every sprite in draw order.
func (sc *SceneComposer) TileSprites() []*TileSprite { return sc.sprites }

// TileByID returns the sprite for a host tile id, or nil.
func (sc *SceneComposer) TileByID(id string) *TileSprite { return sc.byID[id] }

// BindScene (re)binds to the host's current scene: coordinate frame,
// camera bounds, asset bundle, sprites, floor stack. A nil scene unbinds
// everything.
func (sc *SceneComposer) BindScene() {
	scene := sc.host.Scene()
	sc.scene = scene
	if scene == nil {
		sc.assets.Unbind()
		sc.sprites = sc.sprites[:0]
		for id := range sc.byID {
			delete(sc.byID, id)
		}
		sc.floors.Rebuild(nil, nil)
		sc.frame.SetSceneRect(Rect{})
		return
	}

	dims := scene.Dimensions()
	sc.frame.SetSceneRect(dims.SceneRect)
	sc.camera.SetBounds(Rect{X: 0, Y: 0, Width: dims.Width, Height: dims.Height})
	if !sc.camInit {
		sc.camInit = true
		sc.camera.X = dims.SceneRect.X + dims.SceneRect.Width/2
		sc.camera.Y = dims.SceneRect.Y + dims.SceneRect.Height/2
		sc.camera.MarkDirty()
	}

	if err := sc.assets.Bind(scene); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] scene bind: %v\n", err)
	}
	sc.rebuildSprites()
}

// BeginFrame advances the camera and refreshes the coordinate frame's view
// bounds. Called by the effect composer at the top of every frame.
func (sc *SceneComposer) BeginFrame(w, h int, dt float64) {
	sc.camera.SetViewport(Rect{Width: float64(w), Height: float64(h)})
	sc.camera.Update(dt)
	sc.frame.SetViewBounds(sc.camera.VisibleBounds())
}

// DrawFloor renders one floor band through the camera: the base plane on
// the ground band, then the band's tiles in draw order.
func (sc *SceneComposer) DrawFloor(dst *ebiten.Image, band int) {
	b := sc.floors.Band(band)
	if b == nil {
		return
	}
	if b.IsGround {
		sc.drawBasePlane(dst)
	}
	for _, s := range b.Tiles {
		sc.drawSprite(dst, s)
	}
}

func (sc *SceneComposer) drawBasePlane(dst *ebiten.Image) {
	base := sc.assets.BaseTexture()
	if base == nil {
		return
	}
	bb := base.Bounds()
	r := sc.frame.SceneRect()

	var op ebiten.DrawImageOptions
	op.Filter = ebiten.FilterLinear
	op.GeoM.Scale(r.Width/float64(bb.Dx()), r.Height/float64(bb.Dy()))
	op.GeoM.Translate(r.X, r.Y)
	op.GeoM.Concat(sc.camera.ViewGeoM())
	dst.DrawImage(base, &op)
}

func (sc *SceneComposer) drawSprite(dst *ebiten.Image, s *TileSprite) {
	if !s.visible || s.Doc.Hidden || s.texture == nil || s.Alpha <= 0 {
		return
	}
	m := multiplyAffine(sc.camera.ViewMatrix(), s.WorldMatrix())
	sc.verts = sc.verts[:0]
	sc.inds = sc.inds[:0]
	sc.verts, sc.inds = appendTexturedQuad(sc.verts, sc.inds, m, s.TexMatrix(), s.Doc.Width, s.Doc.Height, s.Alpha)

	opts := &ebiten.DrawTrianglesOptions{Filter: ebiten.FilterLinear}
	if s.TexRepeat {
		opts.Address = ebiten.AddressRepeat
	} else {
		opts.Address = ebiten.AddressUnsafe
	}
	dst.DrawTriangles(sc.verts, sc.inds, s.texture, opts)
}

// SceneToScreenGeoM returns the transform that projects a scene-resolution
// texture onto the screen: scene texture pixels to world, world to screen.
func (sc *SceneComposer) SceneToScreenGeoM() ebiten.GeoM {
	var g ebiten.GeoM
	sw, sh := sc.frame.SceneTargetSize()
	r := sc.frame.SceneRect()
	if r.Width > 0 && r.Height > 0 {
		g.Scale(r.Width/float64(sw), r.Height/float64(sh))
	}
	g.Translate(r.X, r.Y)
	g.Concat(sc.camera.ViewGeoM())
	return g
}

// Dispose unsubscribes every hook handler and releases scene resources.
func (sc *SceneComposer) Dispose() {
	for _, off := range sc.offs {
		off()
	}
	sc.offs = nil
	sc.assets.Dispose()
}

func (sc *SceneComposer) rebuildSprites() {
	sc.sprites = sc.sprites[:0]
	for id := range sc.byID {
		delete(sc.byID, id)
	}
	for _, doc := range sc.host.Tiles() {
		sc.addSprite(doc)
	}
	sc.sortSprites()
	sc.floors.Rebuild(sc.scene, sc.sprites)
}

func (sc *SceneComposer) addSprite(doc TileDoc) {
	var tex *ebiten.Image
	if doc.TextureSrc != "" {
		t, err := sc.host.Textures().LoadTexture(doc.TextureSrc)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "[mapshine] tile %s: %v\n", doc.ID, err)
		} else {
			tex = t
		}
	}
	s := newTileSprite(doc, tex)
	sc.sprites = append(sc.sprites, s)
	sc.byID[doc.ID] = s
}

func (sc *SceneComposer) upsertTile(doc TileDoc) {
	if s, ok := sc.byID[doc.ID]; ok {
		if s.Doc.TextureSrc != doc.TextureSrc {
			if doc.TextureSrc == "" {
				s.texture = nil
			} else if t, err := sc.host.Textures().LoadTexture(doc.TextureSrc); err == nil {
				s.texture = t
			} else {
				_, _ = fmt.Fprintf(os.Stderr, "[mapshine] tile %s: %v\n", doc.ID, err)
				s.texture = nil
			}
		}
		s.Doc = doc
		s.ResetPose()
	} else {
		sc.addSprite(doc)
	}
	sc.sortSprites()
	sc.floors.Rebuild(sc.scene, sc.sprites)
}

func (sc *SceneComposer) removeTile(id string) {
	s, ok := sc.byID[id]
	if !ok {
		return
	}
	delete(sc.byID, id)
	for i, sp := range sc.sprites {
		if sp == s {
			sc.sprites = append(sc.sprites[:i], sc.sprites[i+1:]...)
			break
		}
	}
	sc.floors.Rebuild(sc.scene, sc.sprites)
}

// sortSprites orders sprites by elevation, then host sort key, then id.
// Stable insertion sort; sprite sets are small and usually nearly sorted.
func (sc *SceneComposer) sortSprites() {
	n := len(sc.sprites)
	for i := 1; i < n; i++ {
		key := sc.sprites[i]
		j := i - 1
		for j >= 0 && spriteAfter(sc.sprites[j], key) {
			sc.sprites[j+1] = sc.sprites[j]
			j--
		}
		sc.sprites[j+1] = key
	}
}

func spriteAfter(a, b *TileSprite) bool {
	if a.Doc.Elevation != b.Doc.Elevation {
		return a.Doc.Elevation > b.Doc.Elevation
	}
	if a.Doc.Sort != b.Doc.Sort {
		return a.Doc.Sort > b.Doc.Sort
	}
	return a.Doc.ID > b.Doc.ID
}

package mapshine

import (
	"fmt"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
)

// defaultMasks are resolved on every scene bind. Effects needing additional
// masks call RequestMask before or after binding.
var defaultMasks = []string{MaskOutdoors, MaskBush, MaskPrism, MaskRoof}

// AssetBundle owns the per-scene texture set: the base color texture and the
// named world masks. Everything it hands out is normalized to one scene
// resolution (the scene rect clamped to the target size limit), so any two
// scene-space textures can legally feed the same shader pass. Loader-owned
// source images are never deallocated here; the bundle owns only its scaled
// copies.
//
// Mask sources are derived from the background path by inserting the mask id
// before the extension: "maps/keep.webp" resolves "_Bush" to
// "maps/keep_Bush.webp". A source the loader cannot resolve leaves the mask
// unbound; the dependent effect stays inert until a later bind publishes it.
type AssetBundle struct {
	host     Host
	registry *MaskRegistry

	requested []string

	baseSrc string
	sceneW  int
	sceneH  int
	base    *RenderTarget
	masks   map[string]*RenderTarget
	bound   bool
}

// NewAssetBundle creates an unbound bundle publishing into registry.
func NewAssetBundle(host Host, registry *MaskRegistry) *AssetBundle {
	ab := &AssetBundle{
		host:     host,
		registry: registry,
		masks:    make(map[string]*RenderTarget),
	}
	ab.requested = append(ab.requested, defaultMasks...)
	return ab
}

// RequestMask adds id to the set resolved at bind time. If a scene is
// already bound the mask is resolved and published immediately.
func (ab *AssetBundle) RequestMask(id string) {
	for _, r := range ab.requested {
		if r == id {
			return
		}
	}
	ab.requested = append(ab.requested, id)
	if ab.bound {
		ab.resolveMask(id)
	}
}

// Bind loads the scene's base texture and masks, scales them to the scene
// resolution, and publishes every requested mask (bound or nil) through the
// registry. Rebinding replaces the previous scene's content in place.
func (ab *AssetBundle) Bind(scene SceneDoc) error {
	if scene == nil {
		ab.Unbind()
		return nil
	}

	dims := scene.Dimensions()
	w, h := clampTargetSize(int(dims.SceneRect.Width), int(dims.SceneRect.Height))

	raw, err := ab.host.Textures().LoadTexture(scene.BackgroundSrc())
	if err != nil {
		ab.Unbind()
		return fmt.Errorf("load scene background %q: %w", scene.BackgroundSrc(), err)
	}

	ab.baseSrc = scene.BackgroundSrc()
	ab.sceneW, ab.sceneH = w, h
	if ab.base == nil {
		ab.base = NewRenderTarget(w, h)
	} else {
		ab.base.Resize(w, h)
	}
	scaleInto(ab.base, raw)
	ab.bound = true

	for _, id := range ab.requested {
		ab.resolveMask(id)
	}
	return nil
}

// resolveMask loads, scales, and publishes a single mask. A load failure
// unbinds the id; missing masks are routine, not errors.
func (ab *AssetBundle) resolveMask(id string) {
	src := maskSrc(ab.baseSrc, id)
	raw, err := ab.host.Textures().LoadTexture(src)
	if err != nil {
		if rt := ab.masks[id]; rt != nil {
			rt.Dispose()
			delete(ab.masks, id)
		}
		ab.registry.Publish(id, nil)
		return
	}

	rt := ab.masks[id]
	if rt == nil {
		rt = NewRenderTarget(ab.sceneW, ab.sceneH)
		ab.masks[id] = rt
	} else {
		rt.Resize(ab.sceneW, ab.sceneH)
	}
	scaleInto(rt, raw)
	ab.registry.Publish(id, rt.Image())
}

// Unbind disposes all scaled textures and unbinds every mask. Safe to call
// when already unbound.
func (ab *AssetBundle) Unbind() {
	for id, rt := range ab.masks {
		rt.Dispose()
		delete(ab.masks, id)
		ab.registry.Publish(id, nil)
	}
	if ab.base != nil {
		ab.base.Dispose()
		ab.base = nil
	}
	ab.bound = false
	ab.baseSrc = ""
	ab.sceneW, ab.sceneH = 0, 0
}

// Dispose releases everything. The bundle must not be used afterwards.
func (ab *AssetBundle) Dispose() {
	ab.Unbind()
}

// Bound reports whether a scene is currently bound.
func (ab *AssetBundle) Bound() bool { return ab.bound }

// BaseTexture returns the scene-resolution base color texture, or nil when
// unbound.
func (ab *AssetBundle) BaseTexture() *ebiten.Image {
	if ab.base == nil {
		return nil
	}
	return ab.base.Image()
}

// Mask returns the scene-resolution texture for id, or nil when unbound.
func (ab *AssetBundle) Mask(id string) *ebiten.Image {
	if rt := ab.masks[id]; rt != nil {
		return rt.Image()
	}
	return nil
}

// SceneSize returns the normalized scene resolution in pixels.
func (ab *AssetBundle) SceneSize() (int, int) {
	return ab.sceneW, ab.sceneH
}

// maskSrc derives a mask source path from the base path: the mask id slots
// in before the extension.
func maskSrc(baseSrc, maskID string) string {
	if i := strings.LastIndexByte(baseSrc, '.'); i > strings.LastIndexByte(baseSrc, '/') {
		return baseSrc[:i] + maskID + baseSrc[i:]
	}
	return baseSrc + maskID
}

// scaleInto stretches src over the whole target with linear filtering.
func scaleInto(dst *RenderTarget, src *ebiten.Image) {
	dst.Clear()
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	var op ebiten.DrawImageOptions
	op.Filter = ebiten.FilterLinear
	op.GeoM.Scale(
		float64(dst.Width())/float64(b.Dx()),
		float64(dst.Height())/float64(b.Dy()),
	)
	dst.DrawImage(src, &op)
}

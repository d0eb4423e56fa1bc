package mapshine

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

func TestAssetBundleBindPublishesMasks(t *testing.T) {
	h := newFakeHost()
	h.textures.images["maps/keep.webp"] = newTestImage(64, 48, Color{0.5, 0.5, 0.5, 1})
	h.textures.images["maps/keep_Bush.webp"] = newTestImage(32, 24, Color{1, 0, 0, 1})

	reg := NewMaskRegistry()
	ab := NewAssetBundle(h, reg)
	if err := ab.Bind(h.Scene()); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer ab.Dispose()

	if !ab.Bound() {
		t.Fatal("bundle should be bound")
	}
	if reg.Get(MaskBush) == nil {
		t.Error("bush mask should be published")
	}
	if reg.Get(MaskPrism) != nil {
		t.Error("prism mask has no source and should be unbound")
	}
	if ab.BaseTexture() == nil {
		t.Error("base texture should be available")
	}
}

func TestAssetBundleNormalizesToSceneResolution(t *testing.T) {
	h := newFakeHost()
	// Source images deliberately smaller than the 320x240 scene rect.
	h.textures.images["maps/keep.webp"] = newTestImage(64, 48, Color{0.5, 0.5, 0.5, 1})
	h.textures.images["maps/keep_Outdoors.webp"] = newTestImage(16, 12, Color{1, 1, 1, 1})

	reg := NewMaskRegistry()
	ab := NewAssetBundle(h, reg)
	if err := ab.Bind(h.Scene()); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer ab.Dispose()

	w, hgt := ab.SceneSize()
	if w != 320 || hgt != 240 {
		t.Fatalf("scene size = %dx%d, want 320x240", w, hgt)
	}

	base := ab.BaseTexture()
	if b := base.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("base = %dx%d, want 320x240", b.Dx(), b.Dy())
	}
	mask := reg.Get(MaskOutdoors)
	if b := mask.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("mask = %dx%d, want 320x240", b.Dx(), b.Dy())
	}
}

func TestAssetBundleMissingBaseFails(t *testing.T) {
	h := newFakeHost()
	reg := NewMaskRegistry()
	ab := NewAssetBundle(h, reg)

	if err := ab.Bind(h.Scene()); err == nil {
		t.Fatal("Bind should fail when the background cannot load")
	}
	if ab.Bound() {
		t.Error("bundle should stay unbound after a failed bind")
	}
	if ab.BaseTexture() != nil {
		t.Error("no base texture should be exposed after a failed bind")
	}
}

func TestAssetBundleRebindReplacesMasks(t *testing.T) {
	h := newFakeHost()
	h.textures.images["maps/keep.webp"] = newTestImage(32, 24, Color{0.5, 0.5, 0.5, 1})
	h.textures.images["maps/keep_Bush.webp"] = newTestImage(8, 8, Color{1, 0, 0, 1})

	reg := NewMaskRegistry()
	var seen []*ebiten.Image
	reg.Subscribe(MaskBush, func(tex *ebiten.Image) {
		seen = append(seen, tex)
	})

	ab := NewAssetBundle(h, reg)
	if err := ab.Bind(h.Scene()); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer ab.Dispose()

	if len(seen) != 1 || seen[0] == nil {
		t.Fatalf("subscriber calls after first bind = %d (nil? %v), want 1 bound", len(seen), seen)
	}

	// Second scene has no bush mask.
	h.scene.background = "maps/cavern.webp"
	h.textures.images["maps/cavern.webp"] = newTestImage(32, 24, Color{0.2, 0.2, 0.2, 1})
	if err := ab.Bind(h.Scene()); err != nil {
		t.Fatalf("rebind: %v", err)
	}

	if reg.Get(MaskBush) != nil {
		t.Error("bush mask should be unbound after rebind")
	}
	if len(seen) != 2 || seen[1] != nil {
		t.Errorf("subscriber should have observed the unbind, calls=%d", len(seen))
	}
}

func TestAssetBundleRequestMaskAfterBind(t *testing.T) {
	h := newFakeHost()
	h.textures.images["maps/keep.webp"] = newTestImage(32, 24, Color{0.5, 0.5, 0.5, 1})
	h.textures.images["maps/keep_Water.webp"] = newTestImage(8, 8, Color{0, 0, 1, 1})

	reg := NewMaskRegistry()
	ab := NewAssetBundle(h, reg)
	if err := ab.Bind(h.Scene()); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer ab.Dispose()

	ab.RequestMask("_Water")
	if reg.Get("_Water") == nil {
		t.Error("requested mask should be resolved immediately when bound")
	}
}

func TestAssetBundleUnbindPublishesNil(t *testing.T) {
	h := newFakeHost()
	h.textures.images["maps/keep.webp"] = newTestImage(32, 24, Color{0.5, 0.5, 0.5, 1})
	h.textures.images["maps/keep_Roof.webp"] = newTestImage(8, 8, Color{1, 1, 1, 1})

	reg := NewMaskRegistry()
	ab := NewAssetBundle(h, reg)
	if err := ab.Bind(h.Scene()); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	ab.Unbind()
	if reg.Get(MaskRoof) != nil {
		t.Error("roof mask should be unbound")
	}
	if ab.Bound() {
		t.Error("bundle should report unbound")
	}
}

func TestMaskSrc(t *testing.T) {
	cases := []struct {
		base, id, want string
	}{
		{"maps/keep.webp", "_Bush", "maps/keep_Bush.webp"},
		{"keep.png", "_Roof", "keep_Roof.png"},
		{"keep", "_Bush", "keep_Bush"},
		{"assets.v2/keep", "_Bush", "assets.v2/keep_Bush"},
	}
	for _, tc := range cases {
		if got := maskSrc(tc.base, tc.id); got != tc.want {
			t.Errorf("maskSrc(%q, %q) = %q, want %q", tc.base, tc.id, got, tc.want)
		}
	}
}

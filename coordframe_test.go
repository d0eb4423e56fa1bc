package mapshine

import "testing"

func TestCoordFrameWorldToSceneUV(t *testing.T) {
	f := NewCoordFrame(Rect{X: 100, Y: 200, Width: 1000, Height: 500})

	u, v := f.WorldToSceneUV(100, 200)
	assertNear(t, "origin.u", u, 0)
	assertNear(t, "origin.v", v, 0)

	u, v = f.WorldToSceneUV(1100, 700)
	assertNear(t, "corner.u", u, 1)
	assertNear(t, "corner.v", v, 1)

	u, v = f.WorldToSceneUV(600, 450)
	assertNear(t, "center.u", u, 0.5)
	assertNear(t, "center.v", v, 0.5)
}

func TestCoordFrameUVRoundtrip(t *testing.T) {
	f := NewCoordFrame(Rect{X: -50, Y: 30, Width: 2048, Height: 1024})

	wx, wy := 371.5, 612.25
	u, v := f.WorldToSceneUV(wx, wy)
	gx, gy := f.SceneUVToWorld(u, v)
	assertNear(t, "roundtrip.x", gx, wx)
	assertNear(t, "roundtrip.y", gy, wy)
}

func TestCoordFramePixelsToUV(t *testing.T) {
	f := NewCoordFrame(Rect{Width: 2000, Height: 1000})

	du, dv := f.PixelsToUV(50)
	assertNear(t, "du", du, 0.025)
	assertNear(t, "dv", dv, 0.05)
}

func TestCoordFrameDegenerateRectKeepsTexel(t *testing.T) {
	f := NewCoordFrame(Rect{Width: 1000, Height: 1000})
	f.SetSceneRect(Rect{Width: 0, Height: 0})

	du, dv := f.PixelsToUV(10)
	assertNear(t, "du", du, 0.01)
	assertNear(t, "dv", dv, 0.01)
}

func TestCoordFrameUViewBounds(t *testing.T) {
	f := NewCoordFrame(Rect{X: 0, Y: 0, Width: 1000, Height: 1000})
	f.SetViewBounds(Rect{X: 250, Y: 500, Width: 500, Height: 250})

	vb := f.UViewBounds()
	if len(vb) != 4 {
		t.Fatalf("UViewBounds len = %d, want 4", len(vb))
	}
	assertNear(t, "minU", float64(vb[0]), 0.25)
	assertNear(t, "minV", float64(vb[1]), 0.5)
	assertNear(t, "maxU", float64(vb[2]), 0.75)
	assertNear(t, "maxV", float64(vb[3]), 0.75)
}

func TestCoordFrameApplyUniforms(t *testing.T) {
	f := NewCoordFrame(Rect{X: 10, Y: 20, Width: 800, Height: 600})
	f.SetViewBounds(Rect{X: 10, Y: 20, Width: 400, Height: 300})

	uniforms := map[string]any{}
	f.ApplyUniforms(uniforms)

	for _, key := range []string{"UViewBounds", "USceneBounds", "USceneDimensions", "UTexelSize"} {
		if _, ok := uniforms[key]; !ok {
			t.Errorf("uniform %q missing", key)
		}
	}

	dims := uniforms["USceneDimensions"].([]float32)
	assertNear(t, "dims.w", float64(dims[0]), 800)
	assertNear(t, "dims.h", float64(dims[1]), 600)
}

package mapshine

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/HugoSmits86/nativewebp"
	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// The exploration mask travels as a WebP image in base64, monochrome with
// the explored fraction in the R channel, at the exploration target's own
// resolution. Lossless encoding keeps the round trip pixel-exact.

// encodeExploration reads the target's R channel and returns it as a WebP
// base64 string.
func encodeExploration(rt *ebiten.Image) (string, error) {
	b := rt.Bounds()
	w, h := b.Dx(), b.Dy()
	pixels := make([]byte, 4*w*h)
	rt.ReadPixels(pixels)

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(pixels); i += 4 {
		r := pixels[i]
		img.Pix[i] = r
		img.Pix[i+1] = r
		img.Pix[i+2] = r
		img.Pix[i+3] = 255
	}

	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return "", fmt.Errorf("encode exploration webp: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodeExploration turns a WebP base64 string back into an image.
func decodeExploration(data string) (image.Image, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode exploration base64: %w", err)
	}
	img, err := webp.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode exploration webp: %w", err)
	}
	return img, nil
}

// blitExploration uploads a decoded exploration image into the target,
// rescaling when the stored resolution differs from the target's (the
// scene or clamp limit may have changed between sessions).
func blitExploration(dst *ebiten.Image, src image.Image) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()

	rgba, ok := src.(*image.RGBA)
	if !ok || src.Bounds().Dx() != w || src.Bounds().Dy() != h {
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)
		rgba = scaled
	}
	dst.WritePixels(rgba.Pix)
}

package main

// Texture plates for the stormkeep scene, painted on the CPU at startup
// so the demo runs from a bare checkout. The bank doubles as the host's
// texture loader; the mask plates follow the suffix convention the asset
// bundle derives from the background path (keep_Outdoors, keep_Bush,
// keep_Prism, keep_Roof).

import (
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"

	"github.com/hajimehoshi/ebiten/v2"
)

type texGen struct {
	images map[string]*ebiten.Image
}

func (g *texGen) LoadTexture(src string) (*ebiten.Image, error) {
	img, ok := g.images[src]
	if !ok {
		return nil, fmt.Errorf("texture %q not generated", src)
	}
	return img, nil
}

func buildTextures() *texGen {
	g := &texGen{images: make(map[string]*ebiten.Image)}
	g.images["maps/keep.webp"] = ebiten.NewImageFromImage(paintBase())
	g.images["maps/keep_Outdoors.webp"] = ebiten.NewImageFromImage(paintOutdoorsMask())
	g.images["maps/keep_Bush.webp"] = ebiten.NewImageFromImage(paintBushMask())
	g.images["maps/keep_Prism.webp"] = ebiten.NewImageFromImage(paintPrismMask())
	g.images["maps/keep_Roof.webp"] = ebiten.NewImageFromImage(paintRoofMask())
	g.images["tiles/roof.webp"] = ebiten.NewImageFromImage(paintRoofTile())
	g.images["tiles/windmill.webp"] = ebiten.NewImageFromImage(paintWindmillTile())
	g.images["tiles/door.webp"] = ebiten.NewImageFromImage(paintDoorTile())
	return g
}

// The base plate is half scene resolution; the asset bundle stretches it
// over the 2000x1500 scene rect, so world (wx, wy) lands at texel
// ((wx-100)/2, (wy-100)/2).
func paintBase() *image.NRGBA {
	rng := rand.New(rand.NewPCG(7, 93))
	img := plate(1000, 750, color.NRGBA{63, 107, 53, 255})
	speckle(img, rng, 0, 0, 1000, 750, 14)

	dirt := color.NRGBA{121, 96, 62, 255}
	fillRect(img, 430, 425, 140, 325, dirt)
	speckle(img, rng, 430, 425, 140, 325, 10)
	fillDisc(img, 790, 165, 34, dirt)

	// pond, shared with the prism mask
	fillDisc(img, 750, 550, 46, color.NRGBA{58, 96, 138, 255})
	fillDisc(img, 750, 550, 38, color.NRGBA{74, 118, 164, 255})

	// keep courtyard and curtain wall
	fillRect(img, 300, 175, 300, 250, color.NRGBA{116, 112, 104, 255})
	speckle(img, rng, 300, 175, 300, 250, 9)
	wall := color.NRGBA{84, 82, 78, 255}
	fillRect(img, 300, 175, 300, 12, wall)
	fillRect(img, 300, 413, 300, 12, wall)
	fillRect(img, 300, 175, 12, 250, wall)
	fillRect(img, 588, 175, 12, 250, wall)
	// gate breach in the south wall
	fillRect(img, 400, 413, 100, 12, dirt)
	return img
}

func paintOutdoorsMask() *image.NRGBA {
	img := plate(1000, 750, color.NRGBA{255, 255, 255, 255})
	fillRect(img, 300, 175, 300, 250, color.NRGBA{0, 0, 0, 0})
	return img
}

func paintBushMask() *image.NRGBA {
	img := plate(1000, 750, color.NRGBA{0, 0, 0, 0})
	white := color.NRGBA{255, 255, 255, 255}
	// thicket in the south-west glade
	fillDisc(img, 150, 540, 18, white)
	fillDisc(img, 222, 520, 14, white)
	fillDisc(img, 252, 600, 19, white)
	fillDisc(img, 172, 622, 12, white)
	fillDisc(img, 128, 500, 10, white)
	return img
}

func paintPrismMask() *image.NRGBA {
	img := plate(1000, 750, color.NRGBA{0, 0, 0, 0})
	fillDisc(img, 750, 550, 42, color.NRGBA{255, 255, 255, 255})
	return img
}

func paintRoofMask() *image.NRGBA {
	img := plate(1000, 750, color.NRGBA{0, 0, 0, 0})
	fillRect(img, 300, 175, 300, 250, color.NRGBA{255, 255, 255, 255})
	return img
}

func paintRoofTile() *image.NRGBA {
	rng := rand.New(rand.NewPCG(11, 29))
	img := plate(300, 250, color.NRGBA{74, 79, 88, 255})
	speckle(img, rng, 0, 0, 300, 250, 8)
	for y := 24; y < 250; y += 25 {
		fillRect(img, 0, y, 300, 2, color.NRGBA{56, 60, 68, 255})
	}
	fillRect(img, 0, 123, 300, 4, color.NRGBA{96, 102, 112, 255})
	return img
}

func paintWindmillTile() *image.NRGBA {
	img := plate(128, 128, color.NRGBA{0, 0, 0, 0})
	blade := color.NRGBA{201, 179, 138, 255}
	fillRect(img, 58, 8, 12, 112, blade)
	fillRect(img, 8, 58, 112, 12, blade)
	fillDisc(img, 64, 64, 14, color.NRGBA{74, 58, 40, 255})
	fillDisc(img, 64, 64, 6, color.NRGBA{150, 128, 96, 255})
	return img
}

func paintDoorTile() *image.NRGBA {
	img := plate(64, 16, color.NRGBA{122, 90, 54, 255})
	for x := 7; x < 64; x += 8 {
		fillRect(img, x, 0, 1, 16, color.NRGBA{86, 62, 36, 255})
	}
	iron := color.NRGBA{60, 60, 66, 255}
	fillRect(img, 0, 2, 64, 2, iron)
	fillRect(img, 0, 12, 64, 2, iron)
	return img
}

// --- painting helpers ---

func plate(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func fillRect(img *image.NRGBA, x, y, w, h int, c color.NRGBA) {
	r := image.Rect(x, y, x+w, y+h).Intersect(img.Bounds())
	for py := r.Min.Y; py < r.Max.Y; py++ {
		i := img.PixOffset(r.Min.X, py)
		for px := r.Min.X; px < r.Max.X; px++ {
			img.Pix[i+0] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			img.Pix[i+3] = c.A
			i += 4
		}
	}
}

func fillDisc(img *image.NRGBA, cx, cy, r int, c color.NRGBA) {
	rr := r * r
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > rr {
				continue
			}
			px, py := cx+dx, cy+dy
			if !(image.Point{X: px, Y: py}.In(img.Bounds())) {
				continue
			}
			i := img.PixOffset(px, py)
			img.Pix[i+0] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			img.Pix[i+3] = c.A
		}
	}
}

func speckle(img *image.NRGBA, rng *rand.Rand, x, y, w, h, amount int) {
	r := image.Rect(x, y, x+w, y+h).Intersect(img.Bounds())
	for py := r.Min.Y; py < r.Max.Y; py++ {
		i := img.PixOffset(r.Min.X, py)
		for px := r.Min.X; px < r.Max.X; px++ {
			d := rng.IntN(2*amount+1) - amount
			img.Pix[i+0] = clampByte(int(img.Pix[i+0]) + d)
			img.Pix[i+1] = clampByte(int(img.Pix[i+1]) + d)
			img.Pix[i+2] = clampByte(int(img.Pix[i+2]) + d)
			i += 4
		}
	}
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

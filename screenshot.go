package mapshine

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// Screenshotter captures labeled frames to timestamped PNG files. Request
// queues a capture from anywhere; Flush runs at the end of the frame's Draw
// when the screen pixels are complete.
type Screenshotter struct {
	// Dir receives the PNG files. Defaults to "screenshots".
	Dir string

	queue []string
	clock func() time.Time
}

func NewScreenshotter() *Screenshotter {
	return &Screenshotter{Dir: "screenshots", clock: time.Now}
}

// Request queues a labeled capture for the next Flush. Safe to call from
// Update or Draw.
func (s *Screenshotter) Request(label string) {
	s.queue = append(s.queue, label)
}

// Pending reports how many captures are queued.
func (s *Screenshotter) Pending() int {
	return len(s.queue)
}

// Flush captures the rendered frame for every queued label and writes each
// as a PNG file. Call at the end of Draw.
func (s *Screenshotter) Flush(screen *ebiten.Image) {
	if len(s.queue) == 0 {
		return
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] screenshot: mkdir %s: %v\n", s.Dir, err)
		s.queue = s.queue[:0]
		return
	}

	img := captureNRGBA(screen)
	stamp := s.clock().Format("20060102_150405")

	for _, label := range s.queue {
		safe := sanitizeLabel(label)
		path := fmt.Sprintf("%s/%s_%s.png", s.Dir, stamp, safe)
		if err := writePNG(path, img); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "[mapshine] screenshot: %v\n", err)
		}
	}

	s.queue = s.queue[:0]
}

// captureNRGBA reads the image's pixels and converts premultiplied RGBA to
// straight-alpha NRGBA for encoding.
func captureNRGBA(src *ebiten.Image) *image.NRGBA {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, 4*w*h)
	src.ReadPixels(pixels)

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(pixels); i += 4 {
		r, g, b, a := pixels[i], pixels[i+1], pixels[i+2], pixels[i+3]
		if a > 0 && a < 255 {
			r = uint8(min(int(r)*255/int(a), 255))
			g = uint8(min(int(g)*255/int(a), 255))
			b = uint8(min(int(b)*255/int(a), 255))
		}
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = a
	}
	return img
}

// writePNG encodes an image to a PNG file at the given path.
func writePNG(path string, img *image.NRGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// sanitizeLabel replaces characters that are unsafe in file names with
// underscores and falls back to "unlabeled" for empty strings.
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

package mapshine

import (
	"fmt"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// debugChecks enables use-after-dispose panics on render targets. Off in
// release; demos and tests flip it on to surface lifecycle bugs early.
var debugChecks bool

// EnableDebugChecks turns on the disposed-use guards.
func EnableDebugChecks(on bool) { debugChecks = on }

func debugCheckTarget(rt *RenderTarget, op string) {
	if rt.image == nil {
		panic(fmt.Sprintf("mapshine debug: %s on disposed render target", op))
	}
}

// hudRefreshSec is how often the HUD text reflows.
const hudRefreshSec = 0.5

// DebugHUD is a corner panel with frame rate, composer phase timings, and
// the failing-effect list. Draw it last, after RenderFrame.
type DebugHUD struct {
	composer *EffectComposer
	img      *ebiten.Image
	since    float64
	lines    int

	// LogEveryRefresh also prints the stats line to stderr every n-th
	// text reflow; 0 disables.
	LogEveryRefresh int
	refreshes       int
}

func NewDebugHUD(ec *EffectComposer) *DebugHUD {
	return &DebugHUD{composer: ec, since: hudRefreshSec}
}

// Update reflows the panel text at the refresh cadence.
func (h *DebugHUD) Update(dt float64) {
	h.since += dt
	if h.since < hudRefreshSec {
		return
	}
	h.since = 0

	text := h.statsText()
	lines := strings.Count(text, "\n") + 1
	if h.img == nil || lines != h.lines {
		if h.img != nil {
			h.img.Deallocate()
		}
		h.img = ebiten.NewImage(340, 4+16*lines)
		h.lines = lines
	}
	h.img.Fill(Color{0, 0, 0, 0.5}.toRGBA())
	ebitenutil.DebugPrint(h.img, text)

	h.refreshes++
	if h.LogEveryRefresh > 0 && h.refreshes%h.LogEveryRefresh == 0 {
		LogFrameStats(h.composer)
	}
}

// Draw blits the panel to the top-left corner.
func (h *DebugHUD) Draw(dst *ebiten.Image) {
	if h.img == nil {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(8, 8)
	dst.DrawImage(h.img, op)
}

func (h *DebugHUD) Dispose() {
	if h.img != nil {
		h.img.Deallocate()
		h.img = nil
	}
}

func (h *DebugHUD) statsText() string {
	stats := h.composer.Stats()
	env := h.composer.Env().Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "FPS %.1f  TPS %.1f\n", ebiten.ActualFPS(), ebiten.ActualTPS())
	fmt.Fprintf(&b, "frame %d  pre %.2fms  main %.2fms  post %.2fms\n",
		stats.Frame, stats.PrePassSec*1000, stats.MainPassSec*1000, stats.PostSec*1000)
	fmt.Fprintf(&b, "prepasses %d  surface %d  post %d\n",
		stats.PrePasses, stats.SurfaceDraws, stats.PostPasses)
	fmt.Fprintf(&b, "dark %.2f  wind %.2f  cloud %.2f  %04.1fh",
		env.DarknessLevel, env.WindSpeed, env.CloudCover, env.TimeOfDayHour)

	if stats.FailedEffects > 0 {
		var failed []string
		for _, c := range h.composer.Capabilities() {
			if c.Failed {
				failed = append(failed, c.ID)
			}
		}
		fmt.Fprintf(&b, "\nfailed: %s", strings.Join(failed, ", "))
	}
	return b.String()
}

// LogFrameStats prints the last frame's phase timings and pass counts to
// stderr in one line.
func LogFrameStats(ec *EffectComposer) {
	stats := ec.Stats()
	_, _ = fmt.Fprintf(os.Stderr,
		"[mapshine] frame %d | pre: %.2fms (%d) | main: %.2fms (%d) | post: %.2fms (%d) | failed: %d\n",
		stats.Frame,
		stats.PrePassSec*1000, stats.PrePasses,
		stats.MainPassSec*1000, stats.SurfaceDraws,
		stats.PostSec*1000, stats.PostPasses,
		stats.FailedEffects)
}

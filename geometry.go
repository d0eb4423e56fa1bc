package mapshine

import (
	"math"
	"math/rand/v2"

	"github.com/hajimehoshi/ebiten/v2"
)

// Tessellation and polygon helpers shared by the fog, lightning and map
// point subsystems. Vision polygons become triangle fans rendered onto the
// vision texture; lightning bolts become miter-joined ribbons. All meshes
// are untextured: vertices sample the center of the shared white pixel and
// take their color from the DrawTriangles color scale.

// appendPolygonFan appends a fan-triangulated polygon to verts/inds and
// returns the grown slices. For N points it adds N vertices and 3*(N-2)
// indices, so several polygons can share one DrawTriangles call. Polygons
// with fewer than three points are skipped.
func appendPolygonFan(verts []ebiten.Vertex, inds []uint16, points []Vec2) ([]ebiten.Vertex, []uint16) {
	n := len(points)
	if n < 3 {
		return verts, inds
	}

	base := uint16(len(verts))
	for _, p := range points {
		verts = append(verts, ebiten.Vertex{
			DstX: float32(p.X), DstY: float32(p.Y),
			SrcX: 0.5, SrcY: 0.5,
			ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
		})
	}

	// Fan triangulation: the first vertex is the hub.
	for i := 0; i < n-2; i++ {
		inds = append(inds, base, base+uint16(i+1), base+uint16(i+2))
	}
	return verts, inds
}

// appendRibbon appends a constant-width ribbon that follows the polyline to
// verts/inds and returns the grown slices. For N points it adds 2N vertices
// and 6*(N-1) indices. Interior joins use averaged miter normals, scaled to
// preserve width at the corner but clamped to twice the half width so sharp
// corners do not spike. Polylines with fewer than two points are skipped.
func appendRibbon(verts []ebiten.Vertex, inds []uint16, points []Vec2, width float64) ([]ebiten.Vertex, []uint16) {
	n := len(points)
	if n < 2 {
		return verts, inds
	}

	base := uint16(len(verts))
	halfW := width / 2

	for i := 0; i < n; i++ {
		var nx, ny float64
		if i == 0 {
			nx, ny = perpendicular(points[0], points[1])
		} else if i == n-1 {
			nx, ny = perpendicular(points[n-2], points[n-1])
		} else {
			// Average of adjacent segment normals (miter).
			nx0, ny0 := perpendicular(points[i-1], points[i])
			nx1, ny1 := perpendicular(points[i], points[i+1])
			nx, ny = nx0+nx1, ny0+ny1
			ln := math.Sqrt(nx*nx + ny*ny)
			if ln > 1e-10 {
				nx /= ln
				ny /= ln
			}
			// Scale to maintain width at the miter, clamped to avoid
			// exaggerated spikes at sharp corners (max 2x extension).
			dot := nx0*nx + ny0*ny
			if dot > 0.1 {
				scale := 1.0 / dot
				if scale > 2.0 {
					scale = 2.0
				}
				nx *= scale
				ny *= scale
			}
		}

		verts = append(verts,
			ebiten.Vertex{
				DstX: float32(points[i].X + nx*halfW),
				DstY: float32(points[i].Y + ny*halfW),
				SrcX: 0.5, SrcY: 0.5,
				ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
			},
			ebiten.Vertex{
				DstX: float32(points[i].X - nx*halfW),
				DstY: float32(points[i].Y - ny*halfW),
				SrcX: 0.5, SrcY: 0.5,
				ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
			},
		)
	}

	// Two triangles per segment.
	for i := 0; i < n-1; i++ {
		v := base + uint16(i*2)
		inds = append(inds, v, v+1, v+2, v+1, v+3, v+2)
	}
	return verts, inds
}

// appendTexturedQuad appends a quad of local size (w, h) whose corners are
// transformed by m into destination space and by tm into source pixel
// space. alpha premultiplies the vertex color. Drawing with a repeat
// address mode makes out-of-range source coordinates tile, which is how
// scrolling tile textures wrap.
func appendTexturedQuad(verts []ebiten.Vertex, inds []uint16, m, tm [6]float64, w, h, alpha float64) ([]ebiten.Vertex, []uint16) {
	base := uint16(len(verts))
	a := float32(alpha)
	corners := [4]Vec2{{0, 0}, {w, 0}, {w, h}, {0, h}}
	for _, p := range corners {
		dx, dy := transformPoint(m, p.X, p.Y)
		sx, sy := transformPoint(tm, p.X, p.Y)
		verts = append(verts, ebiten.Vertex{
			DstX: float32(dx), DstY: float32(dy),
			SrcX: float32(sx), SrcY: float32(sy),
			ColorR: a, ColorG: a, ColorB: a, ColorA: a,
		})
	}
	inds = append(inds, base, base+1, base+2, base, base+2, base+3)
	return verts, inds
}

// perpendicular returns the unit left-perpendicular of the segment from a to b.
func perpendicular(a, b Vec2) (float64, float64) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	ln := math.Sqrt(dx*dx + dy*dy)
	if ln < 1e-10 {
		return 0, -1
	}
	return -dy / ln, dx / ln
}

// quadBezierPoints fills buf with segs+1 points along the quadratic Bézier
// from a to b with control point c, growing buf as needed, and returns the
// slice. segs <= 0 defaults to 20 subdivisions.
func quadBezierPoints(buf []Vec2, a, c, b Vec2, segs int) []Vec2 {
	if segs <= 0 {
		segs = 20
	}
	n := segs + 1
	if cap(buf) < n {
		buf = make([]Vec2, n)
	}
	buf = buf[:n]
	for i := 0; i < n; i++ {
		t := float64(i) / float64(segs)
		u := 1 - t
		buf[i] = Vec2{
			X: u*u*a.X + 2*u*t*c.X + t*t*b.X,
			Y: u*u*a.Y + 2*u*t*c.Y + t*t*b.Y,
		}
	}
	return buf
}

// pointInPolygon reports whether p lies inside poly using the even-odd rule.
// Works for concave and self-intersecting polygons. Polygons with fewer than
// three points contain nothing.
func pointInPolygon(p Vec2, poly []Vec2) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		pi, pj := poly[i], poly[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			x := pi.X + (p.Y-pi.Y)/(pj.Y-pi.Y)*(pj.X-pi.X)
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// polygonBounds returns the axis-aligned bounding box of poly. An empty
// polygon yields a zero rect.
func polygonBounds(poly []Vec2) Rect {
	if len(poly) == 0 {
		return Rect{}
	}
	minX, minY := poly[0].X, poly[0].Y
	maxX, maxY := minX, minY
	for _, p := range poly[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// polygonCentroid returns the area-weighted centroid of poly. Degenerate
// polygons (zero area) fall back to the mean of the points.
func polygonCentroid(poly []Vec2) Vec2 {
	n := len(poly)
	if n == 0 {
		return Vec2{}
	}

	var area, cx, cy float64
	j := n - 1
	for i := 0; i < n; i++ {
		cross := poly[j].X*poly[i].Y - poly[i].X*poly[j].Y
		area += cross
		cx += (poly[j].X + poly[i].X) * cross
		cy += (poly[j].Y + poly[i].Y) * cross
		j = i
	}

	if math.Abs(area) < 1e-10 {
		var sx, sy float64
		for _, p := range poly {
			sx += p.X
			sy += p.Y
		}
		return Vec2{X: sx / float64(n), Y: sy / float64(n)}
	}

	area *= 3 // centroid divisor is 6 * (area/2)
	return Vec2{X: cx / area, Y: cy / area}
}

// randomPointInPolygon returns a uniformly distributed point inside poly via
// rejection sampling over the bounding box. After 64 misses it falls back to
// the centroid. Returns false for polygons with fewer than three points.
func randomPointInPolygon(poly []Vec2) (Vec2, bool) {
	if len(poly) < 3 {
		return Vec2{}, false
	}
	b := polygonBounds(poly)
	if b.Width <= 0 && b.Height <= 0 {
		return Vec2{}, false
	}
	for i := 0; i < 64; i++ {
		p := Vec2{
			X: b.X + rand.Float64()*b.Width,
			Y: b.Y + rand.Float64()*b.Height,
		}
		if pointInPolygon(p, poly) {
			return p, true
		}
	}
	return polygonCentroid(poly), true
}

// appendRing appends a closed annular band centered at (cx, cy) with the
// given center-line radius and band width. Vertices are white; callers
// recolor the appended range. Fewer than three segments appends nothing.
func appendRing(verts []ebiten.Vertex, inds []uint16, cx, cy, radius, width float64, segments int) ([]ebiten.Vertex, []uint16) {
	if segments < 3 || radius <= 0 || width <= 0 {
		return verts, inds
	}
	outer := radius + width/2
	inner := max(radius-width/2, 0)

	base := uint16(len(verts))
	for i := 0; i < segments; i++ {
		s, c := math.Sincos(float64(i) / float64(segments) * 2 * math.Pi)
		for _, r := range [2]float64{outer, inner} {
			verts = append(verts, ebiten.Vertex{
				DstX: float32(cx + c*r), DstY: float32(cy + s*r),
				SrcX: 0.5, SrcY: 0.5,
				ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
			})
		}
	}
	for i := 0; i < segments; i++ {
		j := (i + 1) % segments
		o1 := base + uint16(2*i)
		i1 := o1 + 1
		o2 := base + uint16(2*j)
		i2 := o2 + 1
		inds = append(inds, o1, o2, i1, i1, o2, i2)
	}
	return verts, inds
}

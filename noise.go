package mapshine

import "math"

// hash11 maps a float to a pseudo-random value in [0, 1). Deterministic:
// the same input always produces the same output, which the lightning
// generator relies on to rebuild identical bolts from a seed.
func hash11(p float64) float64 {
	v := math.Sin(p*127.1+311.7) * 43758.5453123
	return v - math.Floor(v)
}

// hash21 maps a 2D point to a pseudo-random value in [0, 1).
func hash21(x, y float64) float64 {
	v := math.Sin(x*127.1+y*311.7) * 43758.5453123
	return v - math.Floor(v)
}

// valueNoise2D is smooth 2D value noise in [0, 1]. Lattice values come from
// hash21, interpolated with the smoothstep cubic.
func valueNoise2D(x, y float64) float64 {
	ix := math.Floor(x)
	iy := math.Floor(y)
	fx := x - ix
	fy := y - iy

	ux := fx * fx * (3 - 2*fx)
	uy := fy * fy * (3 - 2*fy)

	a := hash21(ix, iy)
	b := hash21(ix+1, iy)
	c := hash21(ix, iy+1)
	d := hash21(ix+1, iy+1)

	return lerp(lerp(a, b, ux), lerp(c, d, ux), uy)
}

// fbm2D sums octaves of value noise with halved amplitude and doubled
// frequency per octave. Output is normalized to [0, 1].
func fbm2D(x, y float64, octaves int) float64 {
	sum := 0.0
	amp := 0.5
	norm := 0.0
	for i := 0; i < octaves; i++ {
		sum += amp * valueNoise2D(x, y)
		norm += amp
		amp *= 0.5
		x *= 2
		y *= 2
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

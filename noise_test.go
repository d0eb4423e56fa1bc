package mapshine

import "testing"

func TestHash11Deterministic(t *testing.T) {
	a := hash11(42.5)
	b := hash11(42.5)
	if a != b {
		t.Errorf("hash11(42.5) = %v and %v, want identical", a, b)
	}
}

func TestHash11Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v := hash11(float64(i) * 0.37)
		if v < 0 || v >= 1 {
			t.Fatalf("hash11(%v) = %v, want [0, 1)", float64(i)*0.37, v)
		}
	}
}

func TestValueNoise2DMatchesLatticeCorners(t *testing.T) {
	// At integer lattice points the noise must equal the raw hash.
	got := valueNoise2D(3, 7)
	want := hash21(3, 7)
	assertNear(t, "lattice", got, want)
}

func TestValueNoise2DContinuity(t *testing.T) {
	// Adjacent samples must not jump: value noise is C1 across cell borders.
	const step = 1e-4
	prev := valueNoise2D(0.9995, 0.5)
	for x := 0.9995 + step; x < 1.0005; x += step {
		cur := valueNoise2D(x, 0.5)
		if diff := cur - prev; diff > 0.01 || diff < -0.01 {
			t.Fatalf("noise jump %v at x=%v", diff, x)
		}
		prev = cur
	}
}

func TestFbm2DRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := fbm2D(float64(i)*0.13, float64(i)*0.29, 4)
		if v < 0 || v > 1 {
			t.Fatalf("fbm2D = %v, want [0, 1]", v)
		}
	}
}

func TestFbm2DZeroOctaves(t *testing.T) {
	if v := fbm2D(1, 2, 0); v != 0 {
		t.Errorf("fbm2D with 0 octaves = %v, want 0", v)
	}
}

func BenchmarkFbm2D(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		_ = fbm2D(12.7, 3.1, 5)
	}
}

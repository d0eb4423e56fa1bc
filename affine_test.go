package mapshine

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func assertNear(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func assertMatrix(t *testing.T, name string, got, want [6]float64) {
	t.Helper()
	for i := range got {
		if math.Abs(got[i]-want[i]) > epsilon {
			t.Errorf("%s[%d] = %v, want %v (full: %v vs %v)", name, i, got[i], want[i], got, want)
		}
	}
}

// --- composeAffine ---

func TestComposeAffineIdentity(t *testing.T) {
	got := composeAffine(0, 0, 0, 1, 1, 0, 0)
	assertMatrix(t, "identity", got, [6]float64{1, 0, 0, 1, 0, 0})
}

func TestComposeAffineTranslation(t *testing.T) {
	got := composeAffine(10, 20, 0, 1, 1, 0, 0)
	assertMatrix(t, "translation", got, [6]float64{1, 0, 0, 1, 10, 20})
}

func TestComposeAffineScale(t *testing.T) {
	got := composeAffine(0, 0, 0, 2, 3, 0, 0)
	assertMatrix(t, "scale", got, [6]float64{2, 0, 0, 3, 0, 0})
}

func TestComposeAffineRotation90(t *testing.T) {
	got := composeAffine(0, 0, math.Pi/2, 1, 1, 0, 0)
	// cos(90)=0, sin(90)=1 → a=0, b=1, c=-1, d=0
	assertMatrix(t, "rot90", got, [6]float64{0, 1, -1, 0, 0, 0})
}

func TestComposeAffinePivot(t *testing.T) {
	got := composeAffine(100, 200, 0, 1, 1, 16, 16)
	// T(100,200) * T(-16,-16) = [1,0,0,1, 84, 184]
	assertMatrix(t, "pivot", got, [6]float64{1, 0, 0, 1, 84, 184})
}

func TestComposeAffineCombined(t *testing.T) {
	got := composeAffine(50, 100, math.Pi/2, 2, 2, 0, 0)
	// Scale(2,2) then Rotate(90°): a=0, b=2, c=-2, d=0, tx=50, ty=100
	assertMatrix(t, "combined", got, [6]float64{0, 2, -2, 0, 50, 100})
}

func TestComposeAffinePivotRotation(t *testing.T) {
	// Rotating 180° around a pivot at (10, 0): local point (10, 0) must land
	// back on (X, Y).
	m := composeAffine(100, 50, math.Pi, 1, 1, 10, 0)
	x, y := transformPoint(m, 10, 0)
	assertNear(t, "pivot.x", x, 100)
	assertNear(t, "pivot.y", y, 50)
	// Local point (20, 0), 10 past the pivot, ends up 10 before it.
	x, y = transformPoint(m, 20, 0)
	assertNear(t, "past-pivot.x", x, 90)
	assertNear(t, "past-pivot.y", y, 50)
}

// --- multiplyAffine ---

func TestMultiplyAffineIdentity(t *testing.T) {
	id := identityAffine
	m := [6]float64{2, 1, 3, 4, 5, 6}
	assertMatrix(t, "id*m", multiplyAffine(id, m), m)
	assertMatrix(t, "m*id", multiplyAffine(m, id), m)
}

func TestMultiplyAffineTranslations(t *testing.T) {
	a := [6]float64{1, 0, 0, 1, 10, 20}
	b := [6]float64{1, 0, 0, 1, 5, 3}
	got := multiplyAffine(a, b)
	assertMatrix(t, "translations", got, [6]float64{1, 0, 0, 1, 15, 23})
}

// --- invertAffine ---

func TestInvertAffine(t *testing.T) {
	m := [6]float64{2, 0, 0, 3, 10, 20}
	inv := invertAffine(m)
	result := multiplyAffine(m, inv)
	assertMatrix(t, "m*inv=id", result, identityAffine)
}

func TestInvertAffineComplex(t *testing.T) {
	m := composeAffine(15, -40, math.Pi/3, 2, 1, 0, 0)
	inv := invertAffine(m)
	result := multiplyAffine(m, inv)
	assertMatrix(t, "m*inv=id", result, identityAffine)
}

func TestInvertAffineSingularReturnsIdentity(t *testing.T) {
	// ScaleX=0 produces a singular matrix (determinant=0).
	m := [6]float64{0, 0, 0, 1, 10, 20}
	inv := invertAffine(m)
	assertMatrix(t, "singular→identity", inv, identityAffine)
}

// --- rotateAround ---

func TestRotateAroundQuarterTurn(t *testing.T) {
	x, y := rotateAround(10, 0, 0, 0, math.Pi/2)
	assertNear(t, "x", x, 0)
	assertNear(t, "y", y, 10)
}

func TestRotateAroundOffCenter(t *testing.T) {
	// Point 5 units right of center (100, 100), half turn → 5 units left.
	x, y := rotateAround(105, 100, 100, 100, math.Pi)
	assertNear(t, "x", x, 95)
	assertNear(t, "y", y, 100)
}

func TestRotateAroundCenterFixed(t *testing.T) {
	x, y := rotateAround(42, 17, 42, 17, 1.3)
	assertNear(t, "x", x, 42)
	assertNear(t, "y", y, 17)
}

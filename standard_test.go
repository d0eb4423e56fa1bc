package mapshine

import "testing"

func TestRegisterStandardEffects(t *testing.T) {
	ec, h := newTestComposer(t)
	points := NewMapPointsStore(h)
	t.Cleanup(points.Dispose)

	if err := RegisterStandardEffects(ec, points); err != nil {
		t.Fatalf("RegisterStandardEffects: %v", err)
	}

	caps := ec.Capabilities()
	if len(caps) != 16 {
		t.Fatalf("capability count = %d, want 16", len(caps))
	}
	for _, id := range []string{
		"overheadshadow", "buildingshadow", "clouds", "illumination", "shadowpack",
		"lighting", "cloudtops", "fog", "visionmode",
		"doors", "bush", "prism", "swarm", "lightning", "selection", "overlay",
	} {
		if ec.EffectByID(id) == nil {
			t.Errorf("effect %q missing from roster", id)
		}
	}
}

func TestStandardRosterResolvedOrder(t *testing.T) {
	ec, h := newTestComposer(t)
	points := NewMapPointsStore(h)
	t.Cleanup(points.Dispose)

	if err := RegisterStandardEffects(ec, points); err != nil {
		t.Fatalf("RegisterStandardEffects: %v", err)
	}

	caps := ec.Capabilities()
	if caps[0].ID != "doors" {
		t.Errorf("first resolved effect = %q, want doors", caps[0].ID)
	}
	if last := caps[len(caps)-1].ID; last != "visionmode" {
		t.Errorf("last resolved effect = %q, want visionmode", last)
	}
	for i := 1; i < len(caps); i++ {
		if caps[i].Bucket < caps[i-1].Bucket {
			t.Fatalf("bucket order broken: %s follows %s", caps[i].ID, caps[i-1].ID)
		}
	}
}

func TestRegisterStandardEffectsTwiceFails(t *testing.T) {
	ec, h := newTestComposer(t)
	points := NewMapPointsStore(h)
	t.Cleanup(points.Dispose)

	if err := RegisterStandardEffects(ec, points); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := RegisterStandardEffects(ec, points); err == nil {
		t.Fatal("second registration succeeded, want duplicate error")
	}
}

func TestStandardEffectsNilStore(t *testing.T) {
	ec, _ := newTestComposer(t)
	if err := RegisterStandardEffects(ec, nil); err != nil {
		t.Fatalf("RegisterStandardEffects(nil store): %v", err)
	}
	if got := len(ec.Capabilities()); got != 16 {
		t.Fatalf("capability count = %d, want 16", got)
	}
}

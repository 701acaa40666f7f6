package classifier

import (
	"math"
	"testing"
)

func TestStandardizerWarmupGate(t *testing.T) {
	s := NewStandardizer("vix_level", 4, 3, 1e-6, false)
	if _, ready := s.Observe(1, true); ready {
		t.Fatalf("ready after 1 observation")
	}
	if _, ready := s.Observe(2, true); ready {
		t.Fatalf("ready after 2 observations")
	}
	if _, ready := s.Observe(3, true); !ready {
		t.Fatalf("not ready after min_history observations")
	}
}

func TestStandardizerMissingDoesNotAdvanceWarmup(t *testing.T) {
	s := NewStandardizer("vix_level", 4, 2, 1e-6, false)
	s.Observe(1, true)
	s.Observe(0, false)
	s.Observe(0, false)
	if s.Warm() {
		t.Fatalf("missing inputs must not count toward warm-up")
	}
	if _, ready := s.Observe(2, true); !ready {
		t.Fatalf("expected warm after second valid observation")
	}
}

func TestStandardizerZScore(t *testing.T) {
	s := NewStandardizer("vix_level", 4, 2, 1e-6, false)
	s.Observe(2, true)
	z, ready := s.Observe(4, true)
	if !ready {
		t.Fatalf("expected ready")
	}
	// window {2,4}: mean 3, sample std sqrt(2)
	want := (4.0 - 3.0) / math.Sqrt2
	if math.Abs(z-want) > 1e-12 {
		t.Fatalf("z: got %g want %g", z, want)
	}
}

func TestStandardizerEpsilonFloor(t *testing.T) {
	s := NewStandardizer("vix_level", 3, 2, 1e-6, false)
	s.Observe(5, true)
	s.Observe(5, true)
	z, ready := s.Observe(5, true)
	if !ready {
		t.Fatalf("expected ready")
	}
	// constant window: std floored at epsilon, numerator zero
	if z != 0 {
		t.Fatalf("z over constant window: got %g want 0", z)
	}
	z, _ = s.Observe(5.000001, true)
	if math.IsInf(z, 0) || math.IsNaN(z) {
		t.Fatalf("epsilon floor failed: z=%g", z)
	}
}

func TestStandardizerNaNTreatedAsMissing(t *testing.T) {
	s := NewStandardizer("vix_level", 4, 2, 1e-6, false)
	s.Observe(1, true)
	if _, ready := s.Observe(math.NaN(), true); ready {
		t.Fatalf("NaN must not be ready")
	}
	if s.stats.Count() != 1 {
		t.Fatalf("NaN entered the window")
	}
}

func TestStandardizerStaleZPolicy(t *testing.T) {
	s := NewStandardizer("vix_level", 4, 2, 1e-6, true)
	s.Observe(2, true)
	want, _ := s.Observe(4, true)
	z, ready := s.Observe(0, false)
	if !ready {
		t.Fatalf("stale-z policy should re-emit last score once warm")
	}
	if z != want {
		t.Fatalf("stale z: got %g want %g", z, want)
	}

	// without the policy the same situation is not ready
	s2 := NewStandardizer("vix_level", 4, 2, 1e-6, false)
	s2.Observe(2, true)
	s2.Observe(4, true)
	if _, ready := s2.Observe(0, false); ready {
		t.Fatalf("missing input reported ready without stale-z policy")
	}
}

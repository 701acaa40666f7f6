package classifier

import (
	"testing"
	"time"

	"RegimeFlow/internal/domain/models"
)

func ts(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*i)
}

func runProbs(t *testing.T, h *Hysteresis, probs []float64) []models.Regime {
	t.Helper()
	out := make([]models.Regime, 0, len(probs))
	for i, p := range probs {
		r, _, _ := h.Step(p, ts(i))
		out = append(out, r)
	}
	return out
}

func TestHysteresisEnterConfirmation(t *testing.T) {
	h := NewHysteresis(0.60, 0.40, 2)
	got := runProbs(t, h, []float64{0.5, 0.65, 0.70})
	want := []models.Regime{models.RegimeNormal, models.RegimeNormal, models.RegimeHighVol}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d: got %s want %s", i, got[i], want[i])
		}
	}
	if s := h.State(); s.RegimeTimestamp != ts(2) {
		t.Fatalf("transition timestamp: got %v want %v", s.RegimeTimestamp, ts(2))
	}
}

func TestHysteresisCounterResetOnBreak(t *testing.T) {
	h := NewHysteresis(0.60, 0.40, 2)
	got := runProbs(t, h, []float64{0.65, 0.55, 0.65, 0.65})
	want := []models.Regime{models.RegimeNormal, models.RegimeNormal, models.RegimeNormal, models.RegimeHighVol}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestHysteresisExitSymmetry(t *testing.T) {
	h := NewHysteresis(0.60, 0.40, 2)
	h.restore(State{CurrentRegime: models.RegimeHighVol, PreviousRegime: models.RegimeNormal})

	got := runProbs(t, h, []float64{0.35, 0.35})
	want := []models.Regime{models.RegimeHighVol, models.RegimeNormal}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d: got %s want %s", i, got[i], want[i])
		}
	}
	if s := h.State(); s.PreviousRegime != models.RegimeHighVol {
		t.Fatalf("previous regime: got %s want high_vol", s.PreviousRegime)
	}
}

func TestHysteresisDeadZoneNeverCounts(t *testing.T) {
	h := NewHysteresis(0.60, 0.40, 2)
	// values just inside (0.40, 0.60) never accumulate confirmation
	for i, p := range []float64{0.59, 0.599, 0.5999, 0.41, 0.45} {
		r, _, tr := h.Step(p, ts(i))
		if r != models.RegimeNormal || tr {
			t.Fatalf("step %d: unexpected regime %s transitioned=%v", i, r, tr)
		}
	}
	if s := h.State(); s.EnterCounter != 0 || s.ExitCounter != 0 {
		t.Fatalf("counters not zero: %+v", s)
	}
}

func TestHysteresisIrrelevantCounterStaysZero(t *testing.T) {
	h := NewHysteresis(0.60, 0.40, 2)
	h.Step(0.65, ts(0))
	if s := h.State(); s.EnterCounter != 1 || s.ExitCounter != 0 {
		t.Fatalf("counters after one qualifying step: %+v", s)
	}
	h.Step(0.65, ts(1)) // transition resets both
	if s := h.State(); s.EnterCounter != 0 || s.ExitCounter != 0 {
		t.Fatalf("counters after transition: %+v", s)
	}
	if s := h.State(); s.CurrentRegime != models.RegimeHighVol {
		t.Fatalf("expected high_vol, got %s", s.CurrentRegime)
	}
}

func TestHysteresisRestoreNormalizesCounters(t *testing.T) {
	h := NewHysteresis(0.60, 0.40, 2)
	h.restore(State{CurrentRegime: models.RegimeNormal, PreviousRegime: models.RegimeNormal, EnterCounter: 1, ExitCounter: 3})
	if s := h.State(); s.ExitCounter != 0 || s.EnterCounter != 1 {
		t.Fatalf("restore did not normalize counters: %+v", s)
	}
}

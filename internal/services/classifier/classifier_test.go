package classifier

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"RegimeFlow/internal/domain/models"
)

func fp(v float64) *float64 { return &v }

func testParams() Params {
	p := DefaultParams()
	p.WindowSize = 4
	p.MinHistory = 2
	p.ConfirmTicks = 2
	return p
}

func row(i int, vix, corr *float64) models.FeatureRow {
	return models.FeatureRow{Timestamp: ts(i), VIXLevel: vix, Corr4W: corr}
}

// risingRows produces a deterministic series that warms both features and
// then pushes the engine into high_vol.
func risingRows(n int) []models.FeatureRow {
	rows := make([]models.FeatureRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, row(i, fp(float64(i+1)), fp(0.5)))
	}
	return rows
}

func TestClassifierDeterminism(t *testing.T) {
	a, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	rows := risingRows(20)
	ra, err := a.ClassifySeries(rows)
	if err != nil {
		t.Fatalf("run a: %v", err)
	}
	rb, err := b.ClassifySeries(rows)
	if err != nil {
		t.Fatalf("run b: %v", err)
	}
	if len(ra) != len(rb) {
		t.Fatalf("length mismatch: %d vs %d", len(ra), len(rb))
	}
	for i := range ra {
		if ra[i] != rb[i] {
			t.Fatalf("record %d differs: %+v vs %+v", i, ra[i], rb[i])
		}
	}
}

func TestClassifierEntersHighVol(t *testing.T) {
	c, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// warm-up rows fall back (no features ready), then rising vix z-scores
	// confirm the entry after two consecutive qualifying probabilities
	recs, err := c.ClassifySeries(risingRows(6))
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if !recs[0].Fallback {
		t.Fatalf("cold start must fall back, got %+v", recs[0])
	}
	last := recs[len(recs)-1]
	if last.Regime != models.RegimeHighVol {
		t.Fatalf("expected high_vol at end, got %s (p=%g)", last.Regime, last.Probability)
	}
	if last.PreviousRegime != models.RegimeNormal {
		t.Fatalf("previous regime: got %s want normal", last.PreviousRegime)
	}
}

func TestClassifierFailClosedFallback(t *testing.T) {
	c, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rows := risingRows(6)
	if _, err := c.ClassifySeries(rows); err != nil {
		t.Fatalf("series: %v", err)
	}
	if c.View().Regime != models.RegimeHighVol {
		t.Fatalf("setup: expected high_vol, got %s", c.View().Regime)
	}

	// both critical features missing: forced normal, p=0, prior regime intact
	rec, err := c.Process(models.FeatureRow{Timestamp: ts(6)})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !rec.Fallback || rec.Regime != models.RegimeNormal || rec.Probability != 0.0 {
		t.Fatalf("fallback record wrong: %+v", rec)
	}
	if v := c.View(); v.Regime != models.RegimeHighVol || v.EnterCounter != 0 || v.ExitCounter != 0 {
		t.Fatalf("fallback mutated machine state: %+v", v)
	}

	// exit confirmation starts fresh after the fallback gap; both features
	// drop so the composite z goes negative
	rec, err = c.Process(row(7, fp(0.0), fp(0.3)))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if rec.Regime != models.RegimeHighVol {
		t.Fatalf("one low probability must not exit yet, got %s", rec.Regime)
	}
	rec, err = c.Process(row(8, fp(0.0), fp(0.3)))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if rec.Regime != models.RegimeNormal {
		t.Fatalf("expected exit after two low periods, got %s (p=%g)", rec.Regime, rec.Probability)
	}
}

func TestClassifierNaNCriticalTriggersFallback(t *testing.T) {
	c, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rec, err := c.Process(row(0, fp(math.NaN()), fp(0.5)))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !rec.Fallback {
		t.Fatalf("NaN critical feature must fall back: %+v", rec)
	}
}

func TestClassifierOptionalFeatureExcludedUntilWarm(t *testing.T) {
	pRV := testParams()
	pRV.EnableRV = true
	withRV, err := New(pRV)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	noRV, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// rv never arrives: the unready optional feature must not change outputs
	rows := risingRows(8)
	ra, err := withRV.ClassifySeries(rows)
	if err != nil {
		t.Fatalf("with rv: %v", err)
	}
	rb, err := noRV.ClassifySeries(rows)
	if err != nil {
		t.Fatalf("no rv: %v", err)
	}
	for i := range ra {
		if ra[i] != rb[i] {
			t.Fatalf("record %d differs with unready rv: %+v vs %+v", i, ra[i], rb[i])
		}
	}
}

func TestClassifierOutOfOrderRejected(t *testing.T) {
	c, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.Process(row(2, fp(1), fp(0.5))); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := c.Process(row(1, fp(1), fp(0.5))); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
	if _, err := c.Process(row(2, fp(1), fp(0.5))); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("equal timestamp must be rejected, got %v", err)
	}
}

func TestClassifierConfigFailFast(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"exit above enter", func(p *Params) { p.ProbExit = 0.7 }},
		{"zero confirm ticks", func(p *Params) { p.ConfirmTicks = 0 }},
		{"zero epsilon", func(p *Params) { p.Epsilon = 0 }},
		{"bad clamp", func(p *Params) { p.ClampMin = 0.5; p.ClampMax = 0.2 }},
		{"window too small", func(p *Params) { p.WindowSize = 1 }},
		{"no criticals", func(p *Params) { p.Critical = nil }},
		{"unknown critical", func(p *Params) { p.Critical = []string{"spread_8w"} }},
		{"rv critical without enable", func(p *Params) { p.Critical = []string{"rv_4w"} }},
	}
	for _, tc := range cases {
		p := testParams()
		tc.mutate(&p)
		if _, err := New(p); err == nil {
			t.Fatalf("%s: expected config error", tc.name)
		}
	}
}

func TestClassifierSnapshotReplay(t *testing.T) {
	rows := risingRows(12)

	full, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	want, err := full.ClassifySeries(rows)
	if err != nil {
		t.Fatalf("full run: %v", err)
	}

	// run the prefix, snapshot through JSON, restore into a fresh engine
	prefixed, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := prefixed.ClassifySeries(rows[:7]); err != nil {
		t.Fatalf("prefix run: %v", err)
	}
	raw, err := json.Marshal(prefixed.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}

	restored, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := restored.Restore(&snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	for i, r := range rows[7:] {
		rec, err := restored.Process(r)
		if err != nil {
			t.Fatalf("resume at %d: %v", i+7, err)
		}
		if rec != want[i+7] {
			t.Fatalf("record %d differs after restore: %+v vs %+v", i+7, rec, want[i+7])
		}
	}
}

func TestClassifierRestoreRejectsBadSnapshot(t *testing.T) {
	c, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Restore(nil); err == nil {
		t.Fatalf("nil snapshot accepted")
	}
	bad := &Snapshot{State: State{CurrentRegime: "sideways", PreviousRegime: "normal"}}
	if err := c.Restore(bad); err == nil {
		t.Fatalf("invalid regime accepted")
	}
}

func TestClassifierRegimeTimestampBeforeFirstTransition(t *testing.T) {
	c, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rec, err := c.Process(models.FeatureRow{Timestamp: start, VIXLevel: fp(1), Corr4W: fp(0.5)})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if rec.RegimeTimestamp != start {
		t.Fatalf("regime timestamp before any transition: got %v want stream start %v", rec.RegimeTimestamp, start)
	}
}

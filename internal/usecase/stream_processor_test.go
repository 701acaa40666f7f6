package usecase

import (
	"context"
	"testing"
	"time"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/services/classifier"
)

func fp(v float64) *float64 { return &v }

func ts(i int) time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, 7*i)
}

func row(i int, vix, corr float64) *models.FeatureRow {
	return &models.FeatureRow{Timestamp: ts(i), VIXLevel: fp(vix), Corr4W: fp(corr)}
}

func testParams() classifier.Params {
	p := classifier.DefaultParams()
	p.WindowSize = 4
	p.MinHistory = 2
	p.ConfirmTicks = 2
	return p
}

type fakePublisher struct {
	published []*models.OutputRecord
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, rec *models.OutputRecord) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, rec)
	return nil
}

func (f *fakePublisher) PublishBatch(_ context.Context, recs []*models.OutputRecord) error {
	f.published = append(f.published, recs...)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeStore struct {
	records []models.OutputRecord
	rows    []models.FeatureRow
}

func (f *fakeStore) StoreRecord(_ context.Context, rec *models.OutputRecord) error {
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeStore) StoreFeatureRow(_ context.Context, row *models.FeatureRow) error {
	f.rows = append(f.rows, *row)
	return nil
}

func (f *fakeStore) QueryRecords(_ context.Context, from, to time.Time, limit int) ([]models.OutputRecord, error) {
	return f.records, nil
}

func (f *fakeStore) LatestRecord(_ context.Context) (*models.OutputRecord, error) {
	if len(f.records) == 0 {
		return nil, nil
	}
	rec := f.records[len(f.records)-1]
	return &rec, nil
}

func (f *fakeStore) QueryFeatureRows(_ context.Context, from, to time.Time, limit int) ([]models.FeatureRow, error) {
	out := make([]models.FeatureRow, 0, len(f.rows))
	for _, r := range f.rows {
		if !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) Health(_ context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

type fakeState struct {
	raw []byte
}

func (f *fakeState) Save(_ context.Context, raw []byte) error {
	f.raw = append([]byte(nil), raw...)
	return nil
}

func (f *fakeState) Load(_ context.Context) ([]byte, bool, error) {
	if f.raw == nil {
		return nil, false, nil
	}
	return f.raw, true, nil
}

type fakeAlerter struct {
	alerts []models.StressAlert
}

func (f *fakeAlerter) Raise(_ context.Context, a models.StressAlert) error {
	f.alerts = append(f.alerts, a)
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordRegime(models.Regime)           {}
func (nopMetrics) RecordProbability(float64)            {}
func (nopMetrics) RecordTransition(_, _ models.Regime)  {}
func (nopMetrics) RecordFallback(string)                {}
func (nopMetrics) RecordSample()                        {}
func (nopMetrics) RecordError(string)                   {}
func (nopMetrics) RecordLatency(string, float64)        {}

func newTestProcessor(t *testing.T, backend string, snapshotEvery int) (*StreamProcessor, *fakePublisher, *fakeStore, *fakeState, *fakeAlerter) {
	t.Helper()
	engine, err := classifier.New(testParams())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	pub := &fakePublisher{}
	store := &fakeStore{}
	state := &fakeState{}
	alerter := &fakeAlerter{}
	proc := NewStreamProcessor(engine, pub, store, state, alerter, nopMetrics{}, backend, snapshotEvery)
	return proc, pub, store, state, alerter
}

type transitionMetrics struct {
	nopMetrics
	transitions int
}

func (m *transitionMetrics) RecordTransition(_, _ models.Regime) { m.transitions++ }

func TestStreamProcessorCountsTransitionsOnce(t *testing.T) {
	engine, err := classifier.New(testParams())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	m := &transitionMetrics{}
	proc := NewStreamProcessor(engine, &fakePublisher{}, &fakeStore{}, &fakeState{}, &fakeAlerter{}, m, "clickhouse", 1)
	ctx := context.Background()

	// Rising vix over constant corr: warm-up row, two qualifying rows that
	// confirm high_vol, then rows that stay inside the regime.
	for i := 0; i < 10; i++ {
		rec, err := proc.Process(ctx, row(i, float64(i+1), 0.5))
		if err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
		if want := i == 2; rec.Transitioned != want {
			t.Fatalf("row %d: transitioned = %v, want %v", i, rec.Transitioned, want)
		}
	}

	if m.transitions != 1 {
		t.Fatalf("recorded %d transitions, want 1", m.transitions)
	}
}

func TestStreamProcessorRoutesToBoth(t *testing.T) {
	proc, pub, store, _, _ := newTestProcessor(t, "both", 1)
	ctx := context.Background()

	rec, err := proc.Process(ctx, row(0, 10.0, 0.5))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if rec.Regime != models.RegimeNormal {
		t.Fatalf("regime = %s, want normal", rec.Regime)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published = %d, want 1", len(pub.published))
	}
	if len(store.records) != 1 || len(store.rows) != 1 {
		t.Fatalf("stored records=%d rows=%d, want 1 and 1", len(store.records), len(store.rows))
	}
}

func TestStreamProcessorRejectsOutOfOrder(t *testing.T) {
	proc, pub, _, _, _ := newTestProcessor(t, "kafka", 1)
	ctx := context.Background()

	if _, err := proc.Process(ctx, row(1, 10.0, 0.5)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := proc.Process(ctx, row(0, 11.0, 0.5)); err == nil {
		t.Fatal("expected out-of-order rejection")
	}
	if len(pub.published) != 1 {
		t.Fatalf("published = %d, want 1", len(pub.published))
	}
}

func TestStreamProcessorAlertsOnFallback(t *testing.T) {
	proc, _, _, _, alerter := newTestProcessor(t, "kafka", 1)
	ctx := context.Background()

	// the very first row is still warming up, which is itself a fallback
	for i := 0; i < 3; i++ {
		if _, err := proc.Process(ctx, row(i, float64(i+1), 0.5)); err != nil {
			t.Fatalf("warm %d: %v", i, err)
		}
	}
	if len(alerter.alerts) != 1 {
		t.Fatalf("alerts after warm-up = %d, want 1", len(alerter.alerts))
	}

	rec, err := proc.Process(ctx, &models.FeatureRow{Timestamp: ts(3), Corr4W: fp(0.5)})
	if err != nil {
		t.Fatalf("fallback row: %v", err)
	}
	if !rec.Fallback {
		t.Fatal("expected fallback record")
	}
	if rec.Regime != models.RegimeNormal || rec.Probability != 0.0 {
		t.Fatalf("fallback output = (%s, %v), want (normal, 0)", rec.Regime, rec.Probability)
	}
	if len(alerter.alerts) != 2 {
		t.Fatalf("alerts = %d, want 2", len(alerter.alerts))
	}
	for _, a := range alerter.alerts {
		if a.Severity != models.SeverityP1 {
			t.Fatalf("severity = %s, want P1", a.Severity)
		}
	}
}

func TestStreamProcessorSnapshotRestore(t *testing.T) {
	proc, _, _, state, _ := newTestProcessor(t, "kafka", 1)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := proc.Process(ctx, row(i, float64(i+1), 0.5)); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if state.raw == nil {
		t.Fatal("expected a persisted snapshot")
	}

	// A fresh processor restored from the snapshot rejects already-seen input.
	engine2, err := classifier.New(testParams())
	if err != nil {
		t.Fatalf("engine2: %v", err)
	}
	proc2 := NewStreamProcessor(engine2, &fakePublisher{}, &fakeStore{}, state, nil, nopMetrics{}, "kafka", 1)
	restored, err := proc2.Restore(ctx)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !restored {
		t.Fatal("expected restore to find a snapshot")
	}
	if _, err := proc2.Process(ctx, row(4, 5.0, 0.5)); err == nil {
		t.Fatal("expected replayed row to be rejected after restore")
	}
	if _, err := proc2.Process(ctx, row(5, 6.0, 0.5)); err != nil {
		t.Fatalf("next row after restore: %v", err)
	}
}

func TestStreamProcessorSnapshotCadence(t *testing.T) {
	proc, _, _, state, _ := newTestProcessor(t, "kafka", 3)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := proc.Process(ctx, row(i, float64(i+1), 0.5)); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if state.raw != nil {
		t.Fatal("snapshot saved before cadence reached")
	}
	if _, err := proc.Process(ctx, row(2, 3.0, 0.5)); err != nil {
		t.Fatalf("process 2: %v", err)
	}
	if state.raw == nil {
		t.Fatal("expected snapshot at cadence boundary")
	}
}

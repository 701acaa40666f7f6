package usecase

import (
	"context"
	"testing"
	"time"

	"RegimeFlow/internal/domain/models"
	pkgcache "RegimeFlow/pkg/cache"
)

func TestRegimeQueryLatestUsesCache(t *testing.T) {
	proc, _, store, _, _ := newTestProcessor(t, "clickhouse", 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := proc.Process(ctx, row(i, float64(i+1), 0.5)); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}

	q := NewRegimeQuery(store, proc, pkgcache.NewMemoryCache(), time.Minute)
	first, err := q.Latest(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if first == nil {
		t.Fatal("expected a latest record")
	}
	if !first.Timestamp.Equal(ts(2)) {
		t.Fatalf("latest timestamp = %s, want %s", first.Timestamp, ts(2))
	}

	// A newer stored record is not visible until the cache entry expires.
	store.records = append(store.records, models.OutputRecord{Timestamp: ts(3), Regime: models.RegimeNormal})
	second, err := q.Latest(ctx)
	if err != nil {
		t.Fatalf("latest cached: %v", err)
	}
	if !second.Timestamp.Equal(first.Timestamp) {
		t.Fatalf("cached latest changed: %s != %s", second.Timestamp, first.Timestamp)
	}
}

func TestRegimeQueryLatestEmpty(t *testing.T) {
	proc, _, store, _, _ := newTestProcessor(t, "clickhouse", 1)
	q := NewRegimeQuery(store, proc, nil, time.Minute)
	rec, err := q.Latest(context.Background())
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}
}

func TestRegimeQueryHistoryRange(t *testing.T) {
	proc, _, store, _, _ := newTestProcessor(t, "clickhouse", 1)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, err := proc.Process(ctx, row(i, float64(i+1), 0.5)); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}

	q := NewRegimeQuery(store, proc, nil, time.Minute)
	if _, err := q.History(ctx, ts(3), ts(0), 10); err == nil {
		t.Fatal("expected invalid range error")
	}
	recs, err := q.History(ctx, ts(0), ts(3), 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("history returned %d records, want 4", len(recs))
	}
}

func TestRegimeQueryStateView(t *testing.T) {
	proc, _, store, _, _ := newTestProcessor(t, "clickhouse", 1)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := proc.Process(ctx, row(i, float64(i+1), 0.5)); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}

	q := NewRegimeQuery(store, proc, nil, time.Minute)
	view := q.State()

	// Rows 1 and 2 both qualify, so the two confirm ticks are in and the
	// machine has entered high_vol by the last row.
	if view.Regime != models.RegimeHighVol {
		t.Fatalf("state regime = %s, want high_vol", view.Regime)
	}
	if view.PreviousRegime != models.RegimeNormal {
		t.Fatalf("state previous regime = %s, want normal", view.PreviousRegime)
	}
	if !view.LastTimestamp.Equal(ts(2)) {
		t.Fatalf("state last timestamp = %s, want %s", view.LastTimestamp, ts(2))
	}
	if view.Warmup[models.FeatureVIX] != 3 {
		t.Fatalf("vix warmup = %d, want 3", view.Warmup[models.FeatureVIX])
	}
}

package usecase

import (
	"context"
	"testing"
)

func TestReplayMatchesLiveRun(t *testing.T) {
	proc, _, store, _, _ := newTestProcessor(t, "clickhouse", 1)
	ctx := context.Background()

	var live []string
	for i := 0; i < 8; i++ {
		rec, err := proc.Process(ctx, row(i, float64(i+1), 0.5))
		if err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
		live = append(live, string(rec.Regime))
	}

	replayer := NewReplayer(store, testParams())
	recs, err := replayer.Replay(ctx, ts(0), ts(7), 100)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(recs) != len(live) {
		t.Fatalf("replay returned %d records, want %d", len(recs), len(live))
	}
	for i, rec := range recs {
		if string(rec.Regime) != live[i] {
			t.Fatalf("replay[%d] regime = %s, live run = %s", i, rec.Regime, live[i])
		}
		if !rec.Timestamp.Equal(ts(i)) {
			t.Fatalf("replay[%d] timestamp = %s, want %s", i, rec.Timestamp, ts(i))
		}
	}
}

func TestReplayRejectsInvalidRange(t *testing.T) {
	replayer := NewReplayer(&fakeStore{}, testParams())
	if _, err := replayer.Replay(context.Background(), ts(5), ts(1), 100); err == nil {
		t.Fatal("expected invalid range error")
	}
}

func TestReplayEmptyRange(t *testing.T) {
	replayer := NewReplayer(&fakeStore{}, testParams())
	recs, err := replayer.Replay(context.Background(), ts(0), ts(1), 100)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
}

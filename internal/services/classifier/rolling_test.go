package classifier

import (
	"math"
	"testing"
)

func TestRollingStatsFIFOEviction(t *testing.T) {
	r := NewRollingStats(3)
	for _, v := range []float64{1, 2, 3, 4} {
		r.Add(v)
	}
	if r.Len() != 3 {
		t.Fatalf("len: got %d want 3", r.Len())
	}
	got := r.Values()
	want := []float64{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("values: got %v want %v", got, want)
		}
	}
	if r.Count() != 4 {
		t.Fatalf("count: got %d want 4", r.Count())
	}
}

func TestRollingStatsMeanStd(t *testing.T) {
	r := NewRollingStats(4)
	for _, v := range []float64{2, 4, 4, 6} {
		r.Add(v)
	}
	if m := r.Mean(); m != 4 {
		t.Fatalf("mean: got %g want 4", m)
	}
	// sample variance of {2,4,4,6} = 8/3
	want := math.Sqrt(8.0 / 3.0)
	if s := r.Std(); math.Abs(s-want) > 1e-12 {
		t.Fatalf("std: got %g want %g", s, want)
	}
}

func TestRollingStatsSingleValueStd(t *testing.T) {
	r := NewRollingStats(5)
	r.Add(7)
	if s := r.Std(); s != 0 {
		t.Fatalf("std of one value: got %g want 0", s)
	}
}

func TestRollingStatsRestore(t *testing.T) {
	r := NewRollingStats(3)
	r.restore([]float64{1, 2, 3, 4, 5}, 10)
	got := r.Values()
	want := []float64{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("values after restore: got %v want %v", got, want)
		}
	}
	if r.Count() != 10 {
		t.Fatalf("count after restore: got %d want 10", r.Count())
	}
	// eviction continues correctly after restore
	r.Add(6)
	got = r.Values()
	want = []float64{4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("values after add: got %v want %v", got, want)
		}
	}
}

package classifier

import (
	"math"
	"testing"
)

func defaultMapper() Mapper {
	return Mapper{A: 1.0, B: 0.0, ClampMin: 0.01, ClampMax: 0.99}
}

func TestMapperClampHigh(t *testing.T) {
	m := defaultMapper()
	for _, z := range []float64{4.6, 10, 100, math.Inf(1)} {
		p, ok := m.Map([]float64{z})
		if !ok {
			t.Fatalf("z=%g: expected ok", z)
		}
		if p != 0.99 {
			t.Fatalf("z=%g: got %g want 0.99", z, p)
		}
	}
}

func TestMapperClampLow(t *testing.T) {
	m := defaultMapper()
	for _, z := range []float64{-4.6, -10, -100} {
		p, ok := m.Map([]float64{z})
		if !ok {
			t.Fatalf("z=%g: expected ok", z)
		}
		if p != 0.01 {
			t.Fatalf("z=%g: got %g want 0.01", z, p)
		}
	}
}

func TestMapperCompositeIsMax(t *testing.T) {
	m := defaultMapper()
	p, ok := m.Map([]float64{-1.0, 2.0, 0.5})
	if !ok {
		t.Fatalf("expected ok")
	}
	want := 1.0 / (1.0 + math.Exp(-2.0))
	if math.Abs(p-want) > 1e-12 {
		t.Fatalf("got %g want %g", p, want)
	}
}

func TestMapperZeroScore(t *testing.T) {
	m := defaultMapper()
	p, ok := m.Map([]float64{0})
	if !ok || p != 0.5 {
		t.Fatalf("got p=%g ok=%v, want 0.5 true", p, ok)
	}
}

func TestMapperNoFeaturesReady(t *testing.T) {
	m := defaultMapper()
	if _, ok := m.Map(nil); ok {
		t.Fatalf("empty input must not produce a probability")
	}
}

func TestMapperSlopeIntercept(t *testing.T) {
	m := Mapper{A: 2.0, B: -1.0, ClampMin: 0.01, ClampMax: 0.99}
	p, ok := m.Map([]float64{1.0})
	if !ok {
		t.Fatalf("expected ok")
	}
	want := 1.0 / (1.0 + math.Exp(-(2.0*1.0 - 1.0)))
	if math.Abs(p-want) > 1e-12 {
		t.Fatalf("got %g want %g", p, want)
	}
}

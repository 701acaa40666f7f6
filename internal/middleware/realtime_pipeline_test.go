package middleware

import (
	"context"
	"fmt"
	"testing"
	"time"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/services/classifier"
)

type stubProc struct {
	calls int
	err   error
}

func (s *stubProc) Process(_ context.Context, row *models.FeatureRow) (*models.OutputRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.OutputRecord{Timestamp: row.Timestamp, Regime: models.RegimeNormal}, nil
}

type countMetrics struct {
	errors map[string]int
}

func (m *countMetrics) RecordRegime(models.Regime)          {}
func (m *countMetrics) RecordProbability(float64)           {}
func (m *countMetrics) RecordTransition(_, _ models.Regime) {}
func (m *countMetrics) RecordFallback(string)               {}
func (m *countMetrics) RecordSample()                       {}
func (m *countMetrics) RecordError(kind string) {
	if m.errors == nil {
		m.errors = make(map[string]int)
	}
	m.errors[kind]++
}
func (m *countMetrics) RecordLatency(string, float64) {}

func TestPipelineRejectsInvalidRow(t *testing.T) {
	proc := &stubProc{}
	pipe := NewRealtimePipeline(proc, &countMetrics{})

	if err := pipe.Process(context.Background(), nil); err == nil {
		t.Fatal("expected nil row rejection")
	}
	if err := pipe.Process(context.Background(), &models.FeatureRow{}); err == nil {
		t.Fatal("expected zero timestamp rejection")
	}
	if proc.calls != 0 {
		t.Fatalf("downstream called %d times for invalid rows", proc.calls)
	}
}

func TestPipelineForwardsValidRow(t *testing.T) {
	proc := &stubProc{}
	pipe := NewRealtimePipeline(proc, &countMetrics{})

	row := &models.FeatureRow{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := pipe.Process(context.Background(), row); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.calls != 1 {
		t.Fatalf("downstream calls = %d, want 1", proc.calls)
	}
}

func TestPipelineDoesNotBufferOutOfOrder(t *testing.T) {
	proc := &stubProc{err: fmt.Errorf("reject: %w", classifier.ErrOutOfOrder)}
	m := &countMetrics{}
	pipe := NewRealtimePipeline(proc, m, WithBufferSize(4))

	row := &models.FeatureRow{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := pipe.Process(context.Background(), row); err == nil {
		t.Fatal("expected error to propagate")
	}
	if len(pipe.bufCh) != 0 {
		t.Fatalf("out-of-order row buffered, depth = %d", len(pipe.bufCh))
	}
}

func TestPipelineBuffersTransientFailure(t *testing.T) {
	proc := &stubProc{err: fmt.Errorf("downstream unavailable")}
	m := &countMetrics{}
	pipe := NewRealtimePipeline(proc, m, WithBufferSize(4))

	row := &models.FeatureRow{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := pipe.Process(context.Background(), row); err == nil {
		t.Fatal("expected error to propagate")
	}
	if len(pipe.bufCh) != 1 {
		t.Fatalf("buffer depth = %d, want 1", len(pipe.bufCh))
	}
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"RegimeFlow/internal/domain/models"
	drepo "RegimeFlow/internal/domain/repository"
	dsvc "RegimeFlow/internal/domain/service"
	"RegimeFlow/internal/services/classifier"
)

// StreamProcessor owns the single live classification engine and routes each
// accepted feature row through it: classify, persist, publish, alert.
// All engine access is serialized through the processor's mutex.
type StreamProcessor struct {
	mu      sync.Mutex
	engine  *classifier.Classifier
	pub     drepo.RegimePublisher
	store   drepo.RegimeStore
	state   drepo.StateStore
	alerter dsvc.Alerter
	metrics drepo.Metrics
	backend string

	snapshotEvery int
	sinceSnapshot int
}

// NewStreamProcessor creates a new StreamProcessor instance. backend selects
// where records go: "kafka" publishes, "clickhouse" stores, "both" does both.
func NewStreamProcessor(
	engine *classifier.Classifier,
	pub drepo.RegimePublisher,
	store drepo.RegimeStore,
	state drepo.StateStore,
	alerter dsvc.Alerter,
	metrics drepo.Metrics,
	backend string,
	snapshotEvery int,
) *StreamProcessor {
	if snapshotEvery <= 0 {
		snapshotEvery = 1
	}
	return &StreamProcessor{
		engine:        engine,
		pub:           pub,
		store:         store,
		state:         state,
		alerter:       alerter,
		metrics:       metrics,
		backend:       backend,
		snapshotEvery: snapshotEvery,
	}
}

// Restore loads the last persisted engine snapshot, if any.
func (p *StreamProcessor) Restore(ctx context.Context) (bool, error) {
	raw, ok, err := p.state.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("restore: %w", err)
	}
	if !ok {
		return false, nil
	}
	var snap classifier.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return false, fmt.Errorf("restore decode: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.engine.Restore(&snap); err != nil {
		return false, fmt.Errorf("restore: %w", err)
	}
	return true, nil
}

// Process classifies a single feature row and routes the output record to the
// configured backend. Rejected rows (out of order) return an error without
// touching the engine state.
func (p *StreamProcessor) Process(ctx context.Context, row *models.FeatureRow) (*models.OutputRecord, error) {
	if row == nil {
		return nil, fmt.Errorf("feature row is nil")
	}

	start := time.Now()

	p.mu.Lock()
	rec, err := p.engine.Process(*row)
	if err != nil {
		p.mu.Unlock()
		p.metrics.RecordError("classify")
		return nil, fmt.Errorf("process row: %w", err)
	}
	p.sinceSnapshot++
	var snapRaw []byte
	if p.sinceSnapshot >= p.snapshotEvery {
		p.sinceSnapshot = 0
		snapRaw, _ = json.Marshal(p.engine.Snapshot())
	}
	p.mu.Unlock()

	p.metrics.RecordSample()
	p.metrics.RecordRegime(rec.Regime)
	p.metrics.RecordProbability(rec.Probability)
	if rec.Fallback {
		p.metrics.RecordFallback(rec.FallbackReason)
		p.raiseFallbackAlert(ctx, &rec)
	} else if rec.Transitioned {
		p.metrics.RecordTransition(rec.PreviousRegime, rec.Regime)
	}

	if err := p.route(ctx, row, &rec); err != nil {
		p.metrics.RecordError("route")
		return nil, err
	}

	if snapRaw != nil {
		if err := p.state.Save(ctx, snapRaw); err != nil {
			p.metrics.RecordError("snapshot")
		}
	}

	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return &rec, nil
}

func (p *StreamProcessor) route(ctx context.Context, row *models.FeatureRow, rec *models.OutputRecord) error {
	switch p.backend {
	case "kafka":
		if err := p.pub.Publish(ctx, rec); err != nil {
			return fmt.Errorf("publish record: %w", err)
		}
	case "clickhouse":
		if err := p.storeBoth(ctx, row, rec); err != nil {
			return err
		}
	case "both":
		if err := p.pub.Publish(ctx, rec); err != nil {
			return fmt.Errorf("publish record: %w", err)
		}
		if err := p.storeBoth(ctx, row, rec); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown backend: %s", p.backend)
	}
	return nil
}

func (p *StreamProcessor) storeBoth(ctx context.Context, row *models.FeatureRow, rec *models.OutputRecord) error {
	if err := p.store.StoreFeatureRow(ctx, row); err != nil {
		return fmt.Errorf("store feature row: %w", err)
	}
	if err := p.store.StoreRecord(ctx, rec); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

func (p *StreamProcessor) raiseFallbackAlert(ctx context.Context, rec *models.OutputRecord) {
	if p.alerter == nil {
		return
	}
	alert := models.StressAlert{
		Timestamp: rec.Timestamp,
		Severity:  models.SeverityP1,
		Reason:    rec.FallbackReason,
	}
	if err := p.alerter.Raise(ctx, alert); err != nil {
		p.metrics.RecordError("alert")
	}
}

// Snapshot serializes the current engine state.
func (p *StreamProcessor) Snapshot() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return json.Marshal(p.engine.Snapshot())
}

// SaveSnapshot persists the current engine state immediately. Called on
// shutdown so a restart resumes from the last processed row.
func (p *StreamProcessor) SaveSnapshot(ctx context.Context) error {
	raw, err := p.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot encode: %w", err)
	}
	return p.state.Save(ctx, raw)
}

// View returns the current engine state for introspection.
func (p *StreamProcessor) View() classifier.StateView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.View()
}

// Close closes underlying resources if available.
func (p *StreamProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}

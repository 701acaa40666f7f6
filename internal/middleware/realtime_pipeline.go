package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"RegimeFlow/internal/domain/models"
	domrepo "RegimeFlow/internal/domain/repository"
	"RegimeFlow/internal/services/classifier"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, row *models.FeatureRow) (*models.OutputRecord, error)
}

// RealtimePipeline sits between the feature stream and the classifier.
// It validates, throttles, optionally transforms, and buffers rows when the
// downstream processor is unavailable.
type RealtimePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	maxRPS  int
	bufSize int
	bufCh   chan *models.FeatureRow
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	// last accepted wall-clock time, for the throttle window
	lastAccept time.Time
	// format transform hook (optional)
	transform func(*models.FeatureRow) *models.FeatureRow
	// metrics
	bufDepthGauge func(int)
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS sets the max accepted rows per second.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a transformation hook to modify row format.
func WithTransform(fn func(*models.FeatureRow) *models.FeatureRow) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:    proc,
		metrics: metrics,
		maxRPS:  20,   // default throttle
		bufSize: 1000, // default buffer
		bufCh:   make(chan *models.FeatureRow, 1000),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.FeatureRow, p.bufSize)
	}
	p.bufDepthGauge = func(n int) { p.metrics.RecordLatency("pipeline_buffer_depth", float64(n)) }
	return p
}

// Start launches background flushing of buffered rows.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case row := <-p.bufCh:
				if row == nil {
					continue
				}
				if _, err := p.proc.Process(ctx, row); err != nil {
					if errors.Is(err, classifier.ErrOutOfOrder) {
						// superseded by newer accepted rows
						p.metrics.RecordError("pipeline_buffer_stale")
						continue
					}
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- row:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards the row downstream, buffering on
// transient errors. Rows the engine rejects as out of order are not buffered.
func (p *RealtimePipeline) Process(ctx context.Context, row *models.FeatureRow) error {
	start := time.Now()
	if err := validateRow(row); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		row = p.transform(row)
		if err := validateRow(row); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if _, err := p.proc.Process(ctx, row); err != nil {
		p.metrics.RecordError("pipeline_process")
		if errors.Is(err, classifier.ErrOutOfOrder) {
			return err
		}
		// buffer non-blocking
		select {
		case p.bufCh <- row:
			if p.bufDepthGauge != nil {
				p.bufDepthGauge(len(p.bufCh))
			}
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateRow(row *models.FeatureRow) error {
	if row == nil {
		return fmt.Errorf("row nil")
	}
	if row.Timestamp.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	return nil
}

func (p *RealtimePipeline) allow(now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastAccept.IsZero() || now.Sub(p.lastAccept) >= time.Second/time.Duration(p.maxRPS) {
		p.lastAccept = now
		return true
	}
	return false
}

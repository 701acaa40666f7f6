package usecase

import (
	"context"

	"RegimeFlow/internal/domain/models"
	drepo "RegimeFlow/internal/domain/repository"
	mid "RegimeFlow/internal/middleware"
)

// FeatureCollector consumes feature rows from the live stream and feeds them
// through the ingest pipeline into the classifier.
type FeatureCollector struct {
	stream  drepo.FeatureStream
	proc    *StreamProcessor
	metrics drepo.Metrics
	pipe    *mid.RealtimePipeline
}

// NewFeatureCollector creates a new FeatureCollector instance.
func NewFeatureCollector(stream drepo.FeatureStream, proc *StreamProcessor, metrics drepo.Metrics, pipe *mid.RealtimePipeline) *FeatureCollector {
	return &FeatureCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the feature stream is connected.
func (c *FeatureCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *FeatureCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	rowCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, rowCh, errCh)
	return nil
}

func (c *FeatureCollector) consume(ctx context.Context, rowCh <-chan *models.FeatureRow, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case row := <-rowCh:
			if row == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, row)
			} else {
				_, _ = c.proc.Process(ctx, row)
			}
		}
	}
}

func (c *FeatureCollector) Stop() error { return c.stream.Close() }

// Processor returns the underlying StreamProcessor for lifecycle management.
func (c *FeatureCollector) Processor() *StreamProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *FeatureCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}

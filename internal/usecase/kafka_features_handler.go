package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"RegimeFlow/internal/domain/models"
	domrepo "RegimeFlow/internal/domain/repository"
	pkgkafka "RegimeFlow/pkg/kafka"
)

// KafkaFeaturesHandler consumes feature rows from Kafka and feeds them into
// the classifier via the stream processor.
type KafkaFeaturesHandler struct {
	topic   string
	proc    *StreamProcessor
	metrics domrepo.Metrics
}

func NewKafkaFeaturesHandler(topic string, proc *StreamProcessor, metrics domrepo.Metrics) *KafkaFeaturesHandler {
	return &KafkaFeaturesHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaFeaturesHandler) Topic() string { return h.topic }

// incoming message schema: {timestamp, vix_level, corr_4w, rv_4w}
func (h *KafkaFeaturesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Timestamp string   `json:"timestamp"`
		VIXLevel  *float64 `json:"vix_level"`
		Corr4W    *float64 `json:"corr_4w"`
		RV4W      *float64 `json:"rv_4w"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	ts, err := time.Parse(time.RFC3339, m.Timestamp)
	if err != nil {
		h.metrics.RecordError("consumer_timestamp")
		return fmt.Errorf("parse timestamp %q: %w", m.Timestamp, err)
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(ts).Seconds())

	_, err = h.proc.Process(ctx, &models.FeatureRow{
		Timestamp: ts,
		VIXLevel:  m.VIXLevel,
		Corr4W:    m.Corr4W,
		RV4W:      m.RV4W,
	})
	if err != nil {
		h.metrics.RecordError("consumer_process")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaFeaturesHandler)(nil)

package repository

import (
	"context"

	"RegimeFlow/internal/domain/models"
	domrepo "RegimeFlow/internal/domain/repository"
	pkgkafka "RegimeFlow/pkg/kafka"
)

// KafkaRegimePublisher implements RegimePublisher on Kafka. Records are keyed
// by regime so downstream consumers can partition by state.
type KafkaRegimePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaRegimePublisher creates a Kafka-backed regime publisher.
func NewKafkaRegimePublisher(producer *pkgkafka.Producer, topic string) domrepo.RegimePublisher {
	return &KafkaRegimePublisher{producer: producer, topic: topic}
}

func (p *KafkaRegimePublisher) Publish(ctx context.Context, rec *models.OutputRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.Regime), rec)
}

func (p *KafkaRegimePublisher) PublishBatch(ctx context.Context, recs []*models.OutputRecord) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(recs))
	for i, rec := range recs {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(rec.Regime),
			Value: rec,
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaRegimePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

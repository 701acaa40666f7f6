package repository

import (
	"context"
	"time"

	"RegimeFlow/internal/domain/models"
)

// FeatureStream is a live source of upstream feature rows (e.g. a WebSocket
// feed from the feature pipeline).
type FeatureStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.FeatureRow, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// RegimePublisher pushes emitted output records to downstream consumers.
type RegimePublisher interface {
	Publish(ctx context.Context, rec *models.OutputRecord) error
	PublishBatch(ctx context.Context, recs []*models.OutputRecord) error
	Close() error
}

// RegimeStore persists output records and their input rows for audit,
// history queries, and replay.
type RegimeStore interface {
	StoreRecord(ctx context.Context, rec *models.OutputRecord) error
	StoreFeatureRow(ctx context.Context, row *models.FeatureRow) error
	QueryRecords(ctx context.Context, from, to time.Time, limit int) ([]models.OutputRecord, error)
	LatestRecord(ctx context.Context) (*models.OutputRecord, error)
	QueryFeatureRows(ctx context.Context, from, to time.Time, limit int) ([]models.FeatureRow, error)
	Health(ctx context.Context) error
	Close() error
}

// StateStore persists the serialized engine snapshot for restart continuity.
type StateStore interface {
	Save(ctx context.Context, raw []byte) error
	Load(ctx context.Context) ([]byte, bool, error)
}

// Metrics records operational metrics.
type Metrics interface {
	RecordRegime(regime models.Regime)
	RecordProbability(p float64)
	RecordTransition(from, to models.Regime)
	RecordFallback(reason string)
	RecordSample()
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

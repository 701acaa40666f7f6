package usecase

import (
	"context"
	"fmt"
	"time"

	"RegimeFlow/internal/domain/models"
	domrepo "RegimeFlow/internal/domain/repository"
	"RegimeFlow/internal/services/classifier"
)

// Replayer re-runs classification over stored feature rows with a fresh
// engine. Replay never touches the live engine, so repeated replays over the
// same range produce identical output.
type Replayer struct {
	store  domrepo.RegimeStore
	params classifier.Params
}

func NewReplayer(store domrepo.RegimeStore, params classifier.Params) *Replayer {
	return &Replayer{store: store, params: params}
}

// Replay classifies stored rows in [from, to], oldest first.
func (r *Replayer) Replay(ctx context.Context, from, to time.Time, limit int) ([]models.OutputRecord, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("invalid range: to must be after from")
	}
	rows, err := r.store.QueryFeatureRows(ctx, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("load feature rows: %w", err)
	}
	if len(rows) == 0 {
		return []models.OutputRecord{}, nil
	}

	engine, err := classifier.New(r.params)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	recs, err := engine.ClassifySeries(rows)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	return recs, nil
}

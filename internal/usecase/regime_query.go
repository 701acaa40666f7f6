package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"RegimeFlow/internal/domain/models"
	domrepo "RegimeFlow/internal/domain/repository"
	"RegimeFlow/internal/services/classifier"
	pkgcache "RegimeFlow/pkg/cache"
)

const latestCacheKey = "regime:latest"

// RegimeQuery serves read-side queries over classification output: the
// latest record, historical ranges, and the live engine state.
type RegimeQuery struct {
	store     domrepo.RegimeStore
	proc      *StreamProcessor
	cache     pkgcache.Service
	latestTTL time.Duration
}

func NewRegimeQuery(store domrepo.RegimeStore, proc *StreamProcessor, cache pkgcache.Service, latestTTL time.Duration) *RegimeQuery {
	if latestTTL <= 0 {
		latestTTL = 5 * time.Second
	}
	return &RegimeQuery{store: store, proc: proc, cache: cache, latestTTL: latestTTL}
}

// Latest returns the most recent output record, or nil when none exist yet.
func (q *RegimeQuery) Latest(ctx context.Context) (*models.OutputRecord, error) {
	if q.cache != nil {
		var raw string
		if err := q.cache.Get(ctx, latestCacheKey, &raw); err == nil {
			var rec models.OutputRecord
			if err := json.Unmarshal([]byte(raw), &rec); err == nil {
				return &rec, nil
			}
		}
	}

	rec, err := q.store.LatestRecord(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest record: %w", err)
	}
	if rec == nil {
		return nil, nil
	}

	if q.cache != nil {
		if b, err := json.Marshal(rec); err == nil {
			_ = q.cache.Set(ctx, latestCacheKey, string(b), q.latestTTL)
		}
	}
	return rec, nil
}

// History returns output records in [from, to], oldest first, capped at limit.
func (q *RegimeQuery) History(ctx context.Context, from, to time.Time, limit int) ([]models.OutputRecord, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("invalid range: to must be after from")
	}
	recs, err := q.store.QueryRecords(ctx, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return recs, nil
}

// State returns the live engine state view.
func (q *RegimeQuery) State() classifier.StateView {
	return q.proc.View()
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RegimeFlow/internal/domain/models"
	domrepo "RegimeFlow/internal/domain/repository"
	pkgch "RegimeFlow/pkg/clickhouse"
	applogger "RegimeFlow/pkg/logger"
)

// CHRegimeStore persists classification output and the raw feature rows that
// produced it, and serves the history/replay queries.
type CHRegimeStore struct {
	db            *sql.DB
	recordsTable  string
	featuresTable string
	l             *applogger.Logger
}

func NewCHRegimeStore(ch *pkgch.Client, recordsTable, featuresTable string) *CHRegimeStore {
	return &CHRegimeStore{db: ch.DB(), recordsTable: recordsTable, featuresTable: featuresTable}
}

// SetLogger injects a structured logger.
func (s *CHRegimeStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHRegimeStore) StoreRecord(ctx context.Context, rec *models.OutputRecord) error {
	q := fmt.Sprintf(
		"INSERT INTO %s (ts, regime, probability, previous_regime, regime_ts, fallback, fallback_reason) VALUES (?, ?, ?, ?, ?, ?, ?)",
		s.recordsTable)
	fallback := uint8(0)
	if rec.Fallback {
		fallback = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		rec.Timestamp,
		string(rec.Regime),
		rec.Probability,
		string(rec.PreviousRegime),
		rec.RegimeTimestamp,
		fallback,
		rec.FallbackReason,
	)
	if err != nil {
		s.logError("record insert error", err)
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

func (s *CHRegimeStore) StoreFeatureRow(ctx context.Context, row *models.FeatureRow) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, vix_level, corr_4w, rv_4w) VALUES (?, ?, ?, ?)", s.featuresTable)
	_, err := s.db.ExecContext(ctx, q, row.Timestamp, row.VIXLevel, row.Corr4W, row.RV4W)
	if err != nil {
		s.logError("feature row insert error", err)
		return fmt.Errorf("store feature row: %w", err)
	}
	return nil
}

func (s *CHRegimeStore) QueryRecords(ctx context.Context, from, to time.Time, limit int) ([]models.OutputRecord, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT ts, regime, probability, previous_regime, regime_ts, fallback, fallback_reason
        FROM %s
        WHERE ts >= ? AND ts <= ?
        ORDER BY ts ASC
        LIMIT ?
    `, s.recordsTable)
	rows, err := s.db.QueryContext(ctx, q, from, to, limit)
	if err != nil {
		s.logError("records query error", err)
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := make([]models.OutputRecord, 0, 256)
	for rows.Next() {
		var rec models.OutputRecord
		var regime, prev string
		var fallback uint8
		if err := rows.Scan(&rec.Timestamp, &regime, &rec.Probability, &prev, &rec.RegimeTimestamp, &fallback, &rec.FallbackReason); err != nil {
			s.logError("records scan error", err)
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Regime = models.Regime(regime)
		rec.PreviousRegime = models.Regime(prev)
		rec.Fallback = fallback != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse records query ok",
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHRegimeStore) LatestRecord(ctx context.Context) (*models.OutputRecord, error) {
	q := fmt.Sprintf(`
        SELECT ts, regime, probability, previous_regime, regime_ts, fallback, fallback_reason
        FROM %s
        ORDER BY ts DESC
        LIMIT 1
    `, s.recordsTable)
	var rec models.OutputRecord
	var regime, prev string
	var fallback uint8
	err := s.db.QueryRowContext(ctx, q).Scan(&rec.Timestamp, &regime, &rec.Probability, &prev, &rec.RegimeTimestamp, &fallback, &rec.FallbackReason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		s.logError("latest record query error", err)
		return nil, fmt.Errorf("latest record: %w", err)
	}
	rec.Regime = models.Regime(regime)
	rec.PreviousRegime = models.Regime(prev)
	rec.Fallback = fallback != 0
	return &rec, nil
}

func (s *CHRegimeStore) QueryFeatureRows(ctx context.Context, from, to time.Time, limit int) ([]models.FeatureRow, error) {
	q := fmt.Sprintf(`
        SELECT ts, vix_level, corr_4w, rv_4w
        FROM %s
        WHERE ts >= ? AND ts <= ?
        ORDER BY ts ASC
        LIMIT ?
    `, s.featuresTable)
	rows, err := s.db.QueryContext(ctx, q, from, to, limit)
	if err != nil {
		s.logError("feature rows query error", err)
		return nil, fmt.Errorf("query feature rows: %w", err)
	}
	defer rows.Close()

	out := make([]models.FeatureRow, 0, 256)
	for rows.Next() {
		var row models.FeatureRow
		var vix, corr, rv sql.NullFloat64
		if err := rows.Scan(&row.Timestamp, &vix, &corr, &rv); err != nil {
			s.logError("feature rows scan error", err)
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		if vix.Valid {
			v := vix.Float64
			row.VIXLevel = &v
		}
		if corr.Valid {
			v := corr.Float64
			row.Corr4W = &v
		}
		if rv.Valid {
			v := rv.Float64
			row.RV4W = &v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHRegimeStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHRegimeStore) Close() error {
	return nil // connection pool managed by pkg/clickhouse
}

func (s *CHRegimeStore) logError(msg string, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.Error(err))
	}
}

var _ domrepo.RegimeStore = (*CHRegimeStore)(nil)

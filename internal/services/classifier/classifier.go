package classifier

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"RegimeFlow/internal/domain/models"
)

// ErrOutOfOrder is returned when a period arrives with a timestamp not
// strictly after the last processed one. The call fails instead of silently
// corrupting the rolling state.
var ErrOutOfOrder = errors.New("classifier: timestamp not after last processed")

// Classifier is the orchestrator: one standardizer per feature, the
// probability mapper, the hysteresis machine, and the fail-closed fallback
// policy. It owns all mutable state and is not safe for concurrent use;
// independent streams must each own their own instance.
type Classifier struct {
	params        Params
	order         []string
	standardizers map[string]*Standardizer
	mapper        Mapper
	hysteresis    *Hysteresis

	started     bool
	streamStart time.Time
	lastTS      time.Time
}

// New validates params and builds a fresh engine in the normal regime.
func New(params Params) (*Classifier, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("classifier config: %w", err)
	}

	c := &Classifier{
		params:        params,
		order:         params.featureNames(),
		standardizers: make(map[string]*Standardizer),
		mapper: Mapper{
			A:        params.SigmoidA,
			B:        params.SigmoidB,
			ClampMin: params.ClampMin,
			ClampMax: params.ClampMax,
		},
		hysteresis: NewHysteresis(params.ProbEnter, params.ProbExit, params.ConfirmTicks),
	}
	for _, name := range c.order {
		c.standardizers[name] = NewStandardizer(name, params.WindowSize, params.MinHistory, params.Epsilon, params.StaleZ)
	}
	return c, nil
}

// Params returns the engine configuration.
func (c *Classifier) Params() Params { return c.params }

// Process consumes one feature row and returns the period's output record.
// Rows must arrive in strictly increasing timestamp order.
func (c *Classifier) Process(row models.FeatureRow) (models.OutputRecord, error) {
	if row.Timestamp.IsZero() {
		return models.OutputRecord{}, fmt.Errorf("classifier: zero timestamp")
	}
	if c.started && !row.Timestamp.After(c.lastTS) {
		return models.OutputRecord{}, fmt.Errorf("%w: %s <= %s",
			ErrOutOfOrder, row.Timestamp.Format(time.RFC3339), c.lastTS.Format(time.RFC3339))
	}
	if !c.started {
		c.streamStart = row.Timestamp
		c.started = true
	}
	c.lastTS = row.Timestamp

	// Standardize every tracked feature first so valid observations still
	// enter their windows even when the period ends in fallback.
	zs := make([]float64, 0, len(c.order))
	var missingCritical []string
	for _, name := range c.order {
		value, present := row.Value(name)
		valid := present && !math.IsNaN(value) && !math.IsInf(value, 0)
		z, ready := c.standardizers[name].Observe(value, present)
		if ready {
			zs = append(zs, z)
		}
		if !valid && c.isCritical(name) {
			missingCritical = append(missingCritical, name)
		}
	}

	if len(missingCritical) > 0 {
		return c.fallbackRecord(row.Timestamp, "critical features unavailable: "+strings.Join(missingCritical, ",")), nil
	}

	prob, ok := c.mapper.Map(zs)
	if !ok {
		return c.fallbackRecord(row.Timestamp, "no features ready"), nil
	}

	regime, previous, transitioned := c.hysteresis.Step(prob, row.Timestamp)
	return models.OutputRecord{
		Timestamp:       row.Timestamp,
		Regime:          regime,
		Probability:     prob,
		PreviousRegime:  previous,
		RegimeTimestamp: c.regimeTimestamp(),
		Transitioned:    transitioned,
	}, nil
}

// fallbackRecord emits the fail-closed output: the configured regime (normal)
// and probability (0.0), with the hysteresis counters frozen. Fallback is an
// out-of-band observation; it never raises high_vol and never counts toward
// confirmation.
func (c *Classifier) fallbackRecord(ts time.Time, reason string) models.OutputRecord {
	s := c.hysteresis.State()
	return models.OutputRecord{
		Timestamp:       ts,
		Regime:          c.params.FallbackRegime,
		Probability:     c.params.FallbackProbability,
		PreviousRegime:  s.PreviousRegime,
		RegimeTimestamp: c.regimeTimestamp(),
		Fallback:        true,
		FallbackReason:  reason,
	}
}

// regimeTimestamp is the last transition time, or the stream start if the
// machine has never transitioned.
func (c *Classifier) regimeTimestamp() time.Time {
	if ts := c.hysteresis.State().RegimeTimestamp; !ts.IsZero() {
		return ts
	}
	return c.streamStart
}

func (c *Classifier) isCritical(name string) bool {
	for _, n := range c.params.Critical {
		if n == name {
			return true
		}
	}
	return false
}

// ClassifySeries resets the engine and folds an ordered series of rows.
func (c *Classifier) ClassifySeries(rows []models.FeatureRow) ([]models.OutputRecord, error) {
	c.Reset()
	out := make([]models.OutputRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := c.Process(row)
		if err != nil {
			return out, fmt.Errorf("series at %s: %w", row.Timestamp.Format(time.RFC3339), err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Reset restores the engine to its initial state: empty windows, normal
// regime, zero counters.
func (c *Classifier) Reset() {
	for _, name := range c.order {
		c.standardizers[name] = NewStandardizer(name, c.params.WindowSize, c.params.MinHistory, c.params.Epsilon, c.params.StaleZ)
	}
	c.hysteresis.Reset()
	c.started = false
	c.streamStart = time.Time{}
	c.lastTS = time.Time{}
}

// StateView is a read-only summary of the engine for introspection endpoints.
type StateView struct {
	Regime          models.Regime    `json:"regime"`
	PreviousRegime  models.Regime    `json:"previous_regime"`
	RegimeTimestamp time.Time        `json:"regime_timestamp"`
	EnterCounter    int              `json:"enter_counter"`
	ExitCounter     int              `json:"exit_counter"`
	LastTimestamp   time.Time        `json:"last_timestamp"`
	Warmup          map[string]int64 `json:"warmup"`
}

// View returns the current engine state summary.
func (c *Classifier) View() StateView {
	s := c.hysteresis.State()
	warm := make(map[string]int64, len(c.order))
	for _, name := range c.order {
		warm[name] = c.standardizers[name].stats.Count()
	}
	return StateView{
		Regime:          s.CurrentRegime,
		PreviousRegime:  s.PreviousRegime,
		RegimeTimestamp: s.RegimeTimestamp,
		EnterCounter:    s.EnterCounter,
		ExitCounter:     s.ExitCounter,
		LastTimestamp:   c.lastTS,
		Warmup:          warm,
	}
}

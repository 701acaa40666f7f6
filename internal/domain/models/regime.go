package models

import "time"

// Regime is the discrete market-state label.
type Regime string

const (
	RegimeNormal  Regime = "normal"
	RegimeHighVol Regime = "high_vol"
)

// IsValid reports whether r is a known regime label.
func (r Regime) IsValid() bool {
	return r == RegimeNormal || r == RegimeHighVol
}

// Feature names the classifier understands.
const (
	FeatureVIX  = "vix_level"
	FeatureCorr = "corr_4w"
	FeatureRV   = "rv_4w"
)

// FeatureRow is one period of upstream-reduced features.
// A nil pointer means the value is missing for that period.
type FeatureRow struct {
	Timestamp time.Time `json:"timestamp"`
	VIXLevel  *float64  `json:"vix_level,omitempty"`
	Corr4W    *float64  `json:"corr_4w,omitempty"`
	RV4W      *float64  `json:"rv_4w,omitempty"`
}

// Value returns the raw value for a named feature and whether it is present.
func (r *FeatureRow) Value(name string) (float64, bool) {
	var p *float64
	switch name {
	case FeatureVIX:
		p = r.VIXLevel
	case FeatureCorr:
		p = r.Corr4W
	case FeatureRV:
		p = r.RV4W
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// OutputRecord is the per-period classification result. Immutable once emitted.
type OutputRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	Regime          Regime    `json:"regime"`
	Probability     float64   `json:"probability"`
	PreviousRegime  Regime    `json:"previous_regime"`
	RegimeTimestamp time.Time `json:"regime_timestamp"`
	Fallback        bool      `json:"fallback,omitempty"`
	FallbackReason  string    `json:"fallback_reason,omitempty"`

	// Transitioned is set only on the record that confirms a regime change.
	// In-process signal for monitoring; not part of the wire shape.
	Transitioned bool `json:"-"`
}

// StressAlert is the payload raised to the monitoring collaborator when the
// classifier falls back due to unavailable inputs.
type StressAlert struct {
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"` // "P1"
	Reason    string    `json:"reason"`
	Missing   []string  `json:"missing,omitempty"`
}

const SeverityP1 = "P1"

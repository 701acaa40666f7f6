package classifier

import (
	"fmt"
	"time"
)

// Snapshot is the JSON-serializable capture of everything the engine needs
// to continue a stream after a restart: the hysteresis state plus every
// feature's rolling window and warm-up progress.
type Snapshot struct {
	State       State                      `json:"state"`
	Features    map[string]FeatureSnapshot `json:"features"`
	StreamStart time.Time                  `json:"stream_start"`
	LastTS      time.Time                  `json:"last_ts"`
}

// FeatureSnapshot captures one feature's rolling window, oldest first.
type FeatureSnapshot struct {
	Window    []float64 `json:"window"`
	CountSeen int64     `json:"count_seen"`
	LastZ     float64   `json:"last_z"`
	HasLast   bool      `json:"has_last"`
}

// Snapshot captures the engine state. The result is independent of the
// engine: mutating it later does not affect the running stream.
func (c *Classifier) Snapshot() *Snapshot {
	snap := &Snapshot{
		State:       c.hysteresis.State(),
		Features:    make(map[string]FeatureSnapshot, len(c.order)),
		StreamStart: c.streamStart,
		LastTS:      c.lastTS,
	}
	for _, name := range c.order {
		s := c.standardizers[name]
		snap.Features[name] = FeatureSnapshot{
			Window:    s.stats.Values(),
			CountSeen: s.stats.Count(),
			LastZ:     s.lastZ,
			HasLast:   s.hasLast,
		}
	}
	return snap
}

// Restore replaces the engine state with a previously captured snapshot.
// Replaying the remaining stream afterwards reproduces the exact outputs of
// an uninterrupted run.
func (c *Classifier) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("classifier: nil snapshot")
	}
	if !snap.State.CurrentRegime.IsValid() || !snap.State.PreviousRegime.IsValid() {
		return fmt.Errorf("classifier: snapshot has invalid regime %q/%q", snap.State.CurrentRegime, snap.State.PreviousRegime)
	}

	c.Reset()
	c.hysteresis.restore(snap.State)
	for _, name := range c.order {
		fs, ok := snap.Features[name]
		if !ok {
			// feature added since the snapshot was taken; it warms up fresh
			continue
		}
		s := c.standardizers[name]
		s.stats.restore(fs.Window, fs.CountSeen)
		s.lastZ = fs.LastZ
		s.hasLast = fs.HasLast
	}
	c.streamStart = snap.StreamStart
	c.lastTS = snap.LastTS
	c.started = !snap.LastTS.IsZero()
	return nil
}

package drill

import (
	"math/rand"
	"time"
)

// VariationStatus records the best-known outcome for one variation within a
// study set.
type VariationStatus string

const (
	StatusPending VariationStatus = "pending"
	StatusSuccess VariationStatus = "success"
	StatusError   VariationStatus = "error"
)

// SelectionMode controls how the tracker picks the next variation.
type SelectionMode string

const (
	// SelectSeries walks the variations in order, skipping none.
	SelectSeries SelectionMode = "series"
	// SelectRandom draws uniformly, preferring variations still pending.
	SelectRandom SelectionMode = "random"
)

// Tracker follows a trainee through the variations of one opening. It is not
// safe for concurrent use; the owning service serializes access per trainee.
type Tracker struct {
	keys        []string
	statuses    map[string]VariationStatus
	cursor      int
	mode        SelectionMode
	upgradeOnly bool
	rng         *rand.Rand
}

// TrackerOption configures a Tracker at construction.
type TrackerOption func(*Tracker)

// WithUpgradeOnly keeps a variation's status from regressing: once success,
// a later failed attempt leaves it success.
func WithUpgradeOnly() TrackerOption {
	return func(t *Tracker) { t.upgradeOnly = true }
}

// WithRand replaces the random source, for deterministic selection in tests.
func WithRand(r *rand.Rand) TrackerOption {
	return func(t *Tracker) { t.rng = r }
}

// NewTracker starts fresh over the given variation keys, all pending.
func NewTracker(keys []string, mode SelectionMode, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		keys:     append([]string(nil), keys...),
		statuses: make(map[string]VariationStatus, len(keys)),
		mode:     mode,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, k := range t.keys {
		t.statuses[k] = StatusPending
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RestoreTracker rebuilds a tracker from persisted statuses. Keys absent from
// the snapshot come back pending; snapshot entries for unknown keys are
// dropped.
func RestoreTracker(keys []string, snapshot map[string]VariationStatus, cursor int, mode SelectionMode, opts ...TrackerOption) *Tracker {
	t := NewTracker(keys, mode, opts...)
	for _, k := range t.keys {
		if st, ok := snapshot[k]; ok {
			t.statuses[k] = st
		}
	}
	if cursor >= 0 && cursor <= len(t.keys) {
		t.cursor = cursor
	}
	return t
}

// Statuses returns a copy of the per-variation state.
func (t *Tracker) Statuses() map[string]VariationStatus {
	out := make(map[string]VariationStatus, len(t.statuses))
	for k, v := range t.statuses {
		out[k] = v
	}
	return out
}

// Status reports one variation's state; unknown keys read as pending.
func (t *Tracker) Status(key string) VariationStatus {
	if st, ok := t.statuses[key]; ok {
		return st
	}
	return StatusPending
}

// MarkResult records an attempt outcome. Under upgrade-only policy a success
// is never overwritten by an error.
func (t *Tracker) MarkResult(key string, success bool) {
	if _, ok := t.statuses[key]; !ok {
		return
	}
	if success {
		t.statuses[key] = StatusSuccess
		return
	}
	if t.upgradeOnly && t.statuses[key] == StatusSuccess {
		return
	}
	t.statuses[key] = StatusError
}

// SelectNext picks the next variation to drill, or false when the set is
// empty. Series mode cycles through the set in order; random mode draws among
// the pending variations first and falls back to the whole set once none
// remain pending.
func (t *Tracker) SelectNext() (string, bool) {
	if len(t.keys) == 0 {
		return "", false
	}
	switch t.mode {
	case SelectRandom:
		pending := make([]string, 0, len(t.keys))
		for _, k := range t.keys {
			if t.statuses[k] == StatusPending {
				pending = append(pending, k)
			}
		}
		if len(pending) > 0 {
			return pending[t.rng.Intn(len(pending))], true
		}
		return t.keys[t.rng.Intn(len(t.keys))], true
	default:
		key := t.keys[t.cursor%len(t.keys)]
		t.cursor = (t.cursor + 1) % len(t.keys)
		return key, true
	}
}

// Cursor exposes the series position for persistence.
func (t *Tracker) Cursor() int { return t.cursor }

// Remaining counts variations still pending.
func (t *Tracker) Remaining() int {
	n := 0
	for _, k := range t.keys {
		if t.statuses[k] == StatusPending {
			n++
		}
	}
	return n
}

// Reinitialize resizes the tracker to a new variation set, marks everything
// pending, then pre-marks previously completed variations as success. Used
// when switching openings, seeded from historical completion records.
func (t *Tracker) Reinitialize(keys []string, completed []string) {
	t.keys = append(t.keys[:0], keys...)
	t.statuses = make(map[string]VariationStatus, len(keys))
	for _, k := range t.keys {
		t.statuses[k] = StatusPending
	}
	for _, k := range completed {
		if _, ok := t.statuses[k]; ok {
			t.statuses[k] = StatusSuccess
		}
	}
	t.cursor = 0
}

// Package track implements the multi-target tracking engine: per-target
// Kalman state estimation, detection-to-target association, lifecycle
// management and fall-risk scoring. The Tracker owns every Target and its
// filter; consumers only ever see value copies.
package track

import (
	"math"
	"time"
)

// TargetState represents the lifecycle state of a tracked target.
type TargetState string

const (
	StateTracking  TargetState = "tracking"  // Recently measured, low fall risk
	StateFalling   TargetState = "falling"   // Fall risk score above the falling threshold
	StatePredicted TargetState = "predicted" // Coasting on prediction, no measurement this cycle
)

// Vec2 is a 2D vector in metres (or metres-per-second, per-second² for
// derived rates). Plain struct so it serialises cleanly.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + w.
func (v Vec2) Add(w Vec2) Vec2 { return Vec2{v.X + w.X, v.Y + w.Y} }

// Sub returns v - w.
func (v Vec2) Sub(w Vec2) Vec2 { return Vec2{v.X - w.X, v.Y - w.Y} }

// Scale returns v scaled by s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Norm returns the Euclidean magnitude of v.
func (v Vec2) Norm() float64 { return math.Hypot(v.X, v.Y) }

// Target is one tracked physical object. Identity is a monotonically
// increasing id, unique for the process lifetime and never reused. The
// channel is the acquisition channel (antenna index) of the first
// detection; it is used for capacity accounting and queries only.
type Target struct {
	ID      uint32 `json:"id"`
	Channel uint8  `json:"channel"`

	Position     Vec2 `json:"position"`
	Velocity     Vec2 `json:"velocity"`
	Acceleration Vec2 `json:"acceleration"`

	State      TargetState `json:"state"`
	Confidence float64     `json:"confidence"` // [0,1], smoothed up on updates, decayed on coasts
	FallRisk   float64     `json:"fall_risk"`  // [0,1], recomputed on every measurement update

	LastUpdate time.Time `json:"last_update"`
	CoastCount int       `json:"coast_count"` // Consecutive predict-only cycles since last measurement
}

// newTarget initialises a target from its first detection. Initial state is
// Tracking with full confidence and zero derived rates.
func newTarget(id uint32, channel uint8, pos Vec2, now time.Time) *Target {
	return &Target{
		ID:         id,
		Channel:    channel,
		Position:   pos,
		State:      StateTracking,
		Confidence: 1.0,
		LastUpdate: now,
	}
}

// markMeasured applies the measurement-update bookkeeping: confidence is
// smoothed toward 1 and the coast counter resets.
func (t *Target) markMeasured(now time.Time) {
	t.Confidence = clamp01(t.Confidence*0.8 + 0.2)
	t.CoastCount = 0
	t.LastUpdate = now
}

// markCoasted applies the coast-cycle bookkeeping: confidence decays and
// the coast counter increments. LastUpdate is untouched so pruning still
// sees the age of the last real measurement.
func (t *Target) markCoasted() {
	t.Confidence = clamp01(t.Confidence * 0.9)
	t.CoastCount++
	t.State = StatePredicted
}

// IsFalling reports whether the target's lifecycle state is Falling.
func (t *Target) IsFalling() bool { return t.State == StateFalling }

// Speed returns the velocity magnitude in m/s.
func (t *Target) Speed() float64 { return t.Velocity.Norm() }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package track

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hexar-systems/hexar/internal/monitoring"
	"github.com/hexar-systems/hexar/internal/timeutil"
)

// ErrChannelFull is returned when a detection cannot spawn a new target
// because its channel already holds the configured maximum. The detection
// is dropped and counted; tracking of existing targets is unaffected.
var ErrChannelFull = errors.New("channel at target capacity")

// Config holds tuning parameters for the tracker.
type Config struct {
	ChannelCount         int           // Number of acquisition channels (antennas)
	MaxTargetsPerChannel int           // Per-channel live target cap
	GatingDistance       float64       // Max association distance (metres, Euclidean)
	PruneTimeout         time.Duration // Idle time before a target is removed
	ConfidenceFloor      float64       // Targets below this confidence are pruned
	MaxCoastCycles       int           // Consecutive coast cycles before removal
	Kalman               KalmanConfig  // Noise magnitudes for per-target filters
}

// DefaultConfig returns the stock tracker configuration.
func DefaultConfig() Config {
	return Config{
		ChannelCount:         6,
		MaxTargetsPerChannel: 8,
		GatingDistance:       2.0,
		PruneTimeout:         30 * time.Second,
		ConfidenceFloor:      0.1,
		MaxCoastCycles:       10,
		Kalman:               DefaultKalmanConfig(),
	}
}

// Tracker owns the collection of targets and their filters. Every target is
// created and destroyed here, always together with its filter; no other
// component holds a reference across cycles. A single mutex guards all
// public operations, which is sufficient because individual updates are
// O(1) in-memory arithmetic.
type Tracker struct {
	mu sync.RWMutex

	cfg      Config
	detector *FallDetector
	clock    timeutil.Clock

	targets map[uint32]*Target
	filters map[uint32]*Kalman
	nextID  uint32

	capacityDrops  uint64
	dropsByChannel map[uint8]uint64
}

// NewTracker creates an empty tracker. A nil detector or clock falls back
// to the stock fall detector and the real clock.
func NewTracker(cfg Config, detector *FallDetector, clock timeutil.Clock) *Tracker {
	if detector == nil {
		detector = NewFallDetector()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Tracker{
		cfg:            cfg,
		detector:       detector,
		clock:          clock,
		targets:        make(map[uint32]*Target),
		filters:        make(map[uint32]*Kalman),
		dropsByChannel: make(map[uint8]uint64),
	}
}

// AssociateOrCreate routes one detection: the nearest live target within the
// gating distance receives it as a measurement update; otherwise a new
// target is created on the detection's channel, subject to the per-channel
// capacity. Ties at equal distance resolve to the lowest target id so
// association is deterministic. Returns the id of the touched target.
func (t *Tracker) AssociateOrCreate(channel uint8, pos Vec2) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.findNearest(pos); ok {
		t.update(id, pos)
		return id, nil
	}
	return t.create(channel, pos)
}

// findNearest returns the live target closest to pos within the gating
// distance. Caller must hold the lock.
func (t *Tracker) findNearest(pos Vec2) (uint32, bool) {
	bestID := uint32(0)
	bestDist := 0.0
	found := false

	for id, tg := range t.targets {
		dist := tg.Position.Sub(pos).Norm()
		if dist >= t.cfg.GatingDistance {
			continue
		}
		if !found || dist < bestDist || (dist == bestDist && id < bestID) {
			bestID = id
			bestDist = dist
			found = true
		}
	}
	return bestID, found
}

// create allocates the next id and inserts a target with its filter.
// Caller must hold the lock.
func (t *Tracker) create(channel uint8, pos Vec2) (uint32, error) {
	count := 0
	for _, tg := range t.targets {
		if tg.Channel == channel {
			count++
		}
	}
	if count >= t.cfg.MaxTargetsPerChannel {
		t.capacityDrops++
		t.dropsByChannel[channel]++
		monitoring.Logf("track: channel %d at capacity (%d targets), detection dropped", channel, count)
		return 0, fmt.Errorf("channel %d: %w", channel, ErrChannelFull)
	}

	id := t.nextID
	t.nextID++

	t.targets[id] = newTarget(id, channel, pos, t.clock.Now())
	t.filters[id] = NewKalman(pos, t.cfg.Kalman)
	monitoring.Logf("track: new target %d on channel %d at (%.2f, %.2f)", id, channel, pos.X, pos.Y)
	return id, nil
}

// update runs one predict/correct cycle for a target and copies the
// filtered kinematics back. A zero or negative elapsed time is a benign
// no-op (duplicate timestamp or clock granularity). A singular innovation
// covariance degrades the cycle to a coast. Caller must hold the lock.
func (t *Tracker) update(id uint32, pos Vec2) {
	tg := t.targets[id]
	kf := t.filters[id]

	now := t.clock.Now()
	dt := now.Sub(tg.LastUpdate).Seconds()
	if dt <= 0 {
		return
	}

	kf.Predict(dt)
	if err := kf.Update(pos); err != nil {
		monitoring.Logf("track: target %d measurement rejected: %v", id, err)
		t.copyKinematics(tg, kf)
		tg.markCoasted()
		return
	}

	t.copyKinematics(tg, kf)
	tg.FallRisk = t.detector.Score(tg)
	if t.detector.IsFalling(tg.FallRisk) {
		tg.State = StateFalling
	} else {
		tg.State = StateTracking
	}
	tg.markMeasured(now)
}

func (t *Tracker) copyKinematics(tg *Target, kf *Kalman) {
	tg.Position = kf.Position()
	tg.Velocity = kf.Velocity()
	tg.Acceleration = kf.Acceleration()
}

// CoastAll advances every live target by prediction only: the filter
// predicts dt seconds ahead, the target transitions to Predicted, its coast
// counter increments and its confidence decays.
func (t *Tracker) CoastAll(dt float64) {
	t.CoastMissed(dt, nil)
}

// CoastMissed coasts every live target not present in touched. A nil map
// coasts everything. Used by the scan loop so targets that received a
// measurement this cycle are not additionally coasted.
func (t *Tracker) CoastMissed(dt float64, touched map[uint32]bool) {
	if dt <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, tg := range t.targets {
		if touched[id] {
			continue
		}
		kf := t.filters[id]
		kf.Predict(dt)
		t.copyKinematics(tg, kf)
		tg.markCoasted()
	}
}

// Prune removes every target that has not been measured within timeout,
// whose confidence has dropped below the floor, or that has coasted past
// the coast-cycle bound. The target and its filter are removed in the same
// operation so no orphaned estimator state survives. Returns copies of the
// removed targets for downstream bookkeeping.
func (t *Tracker) Prune(timeout time.Duration) []Target {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	var removed []Target
	for id, tg := range t.targets {
		if now.Sub(tg.LastUpdate) > timeout ||
			tg.Confidence < t.cfg.ConfidenceFloor ||
			tg.CoastCount > t.cfg.MaxCoastCycles {
			removed = append(removed, *tg)
			delete(t.targets, id)
			delete(t.filters, id)
			monitoring.Logf("track: removed lost target %d", id)
		}
	}
	return removed
}

// Target returns a copy of the target with the given id.
func (t *Tracker) Target(id uint32) (Target, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tg, ok := t.targets[id]
	if !ok {
		return Target{}, false
	}
	return *tg, true
}

// Targets returns copies of all live targets.
func (t *Tracker) Targets() []Target {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Target, 0, len(t.targets))
	for _, tg := range t.targets {
		out = append(out, *tg)
	}
	return out
}

// FallingTargets returns copies of the targets currently in Falling state.
func (t *Tracker) FallingTargets() []Target {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Target
	for _, tg := range t.targets {
		if tg.IsFalling() {
			out = append(out, *tg)
		}
	}
	return out
}

// TargetsByChannel returns copies of the live targets on one channel.
func (t *Tracker) TargetsByChannel(channel uint8) []Target {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Target
	for _, tg := range t.targets {
		if tg.Channel == channel {
			out = append(out, *tg)
		}
	}
	return out
}

// Count returns the number of live targets.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.targets)
}

// CountByChannel returns the number of live targets on one channel.
func (t *Tracker) CountByChannel(channel uint8) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, tg := range t.targets {
		if tg.Channel == channel {
			count++
		}
	}
	return count
}

// ChannelCounts returns live target counts for every occupied channel.
func (t *Tracker) ChannelCounts() map[uint8]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[uint8]int)
	for _, tg := range t.targets {
		out[tg.Channel]++
	}
	return out
}

// CapacityDrops returns the total number of detections dropped because a
// channel was at capacity.
func (t *Tracker) CapacityDrops() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.capacityDrops
}

// CapacityDropsByChannel returns per-channel drop counts.
func (t *Tracker) CapacityDropsByChannel() map[uint8]uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[uint8]uint64, len(t.dropsByChannel))
	for ch, n := range t.dropsByChannel {
		out[ch] = n
	}
	return out
}

// Trajectory returns a ballistic preview of the target's future positions.
// The second return is false when the id is unknown.
func (t *Tracker) Trajectory(id uint32, steps int) ([]Vec2, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tg, ok := t.targets[id]
	if !ok {
		return nil, false
	}
	return t.detector.Trajectory(tg.Position, tg.Velocity, steps), true
}

// Clear removes every target and filter. Used on controller shutdown.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targets = make(map[uint32]*Target)
	t.filters = make(map[uint32]*Kalman)
	monitoring.Logf("track: cleared all targets")
}

package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexar-systems/hexar/internal/timeutil"
	"github.com/hexar-systems/hexar/internal/track"
)

// fallHappyDetector classifies every measured target as falling so the
// lifecycle paths fire without waiting on filter convergence.
func fallHappyDetector() *track.FallDetector {
	return &track.FallDetector{
		GravityThreshold:      1000,
		VelocityThreshold:     -1000,
		AccelerationThreshold: -1,
		FallingRiskThreshold:  0.7,
	}
}

func newTestRunner(t *testing.T, detector *track.FallDetector) (*Runner, *track.Tracker, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	tracker := track.NewTracker(track.DefaultConfig(), detector, clock)
	return NewRunner(tracker, 100*time.Millisecond, 30*time.Second, clock), tracker, clock
}

func TestCycleCreatesAndUpdates(t *testing.T) {
	t.Parallel()

	r, tracker, clock := newTestRunner(t, nil)

	res := r.Cycle([]track.Detection{
		{Channel: 0, Position: track.Vec2{X: 1.0}},
		{Channel: 1, Position: track.Vec2{X: 8.0}},
	})

	assert.Equal(t, 2, res.Detections)
	assert.Equal(t, 2, res.Live)
	assert.Zero(t, res.Dropped)
	assert.NotZero(t, res.ScanID)
	assert.Equal(t, 2, tracker.Count())

	// Same positions next cycle associate instead of creating.
	clock.Advance(100 * time.Millisecond)
	res = r.Cycle([]track.Detection{
		{Channel: 0, Position: track.Vec2{X: 1.05}},
		{Channel: 1, Position: track.Vec2{X: 8.05}},
	})
	assert.Equal(t, 2, res.Live)
	assert.Equal(t, 2, tracker.Count())
}

func TestCycleCountsCapacityDrops(t *testing.T) {
	t.Parallel()

	r, tracker, _ := newTestRunner(t, nil)

	// Ten spread-out detections on one channel: capacity is eight.
	var batch []track.Detection
	for i := 0; i < 10; i++ {
		batch = append(batch, track.Detection{Channel: 0, Position: track.Vec2{X: float64(i) * 3.0}})
	}

	res := r.Cycle(batch)
	assert.Equal(t, 10, res.Detections)
	assert.Equal(t, 2, res.Dropped)
	assert.Equal(t, 8, res.Live)
	assert.Equal(t, uint64(2), tracker.CapacityDrops())
	assert.Equal(t, uint64(2), r.Stats().CapacityDrops)
}

func TestCycleCoastsMissedTargets(t *testing.T) {
	t.Parallel()

	r, tracker, clock := newTestRunner(t, nil)

	id, err := tracker.AssociateOrCreate(0, track.Vec2{})
	require.NoError(t, err)
	_, err = tracker.AssociateOrCreate(0, track.Vec2{X: 5.0})
	require.NoError(t, err)

	// Only the second target sees a detection this cycle.
	clock.Advance(100 * time.Millisecond)
	r.Cycle([]track.Detection{{Channel: 0, Position: track.Vec2{X: 5.05}}})

	missed, ok := tracker.Target(id)
	require.True(t, ok)
	assert.Equal(t, track.StatePredicted, missed.State)
	assert.Equal(t, 1, missed.CoastCount)
}

func TestCyclePrunesStaleTargets(t *testing.T) {
	t.Parallel()

	r, tracker, clock := newTestRunner(t, nil)

	var pruned []track.Target
	r.OnPrune(func(removed []track.Target) { pruned = append(pruned, removed...) })

	_, err := tracker.AssociateOrCreate(0, track.Vec2{})
	require.NoError(t, err)

	clock.Advance(31 * time.Second)
	r.Cycle(nil)

	assert.Zero(t, tracker.Count())
	assert.Len(t, pruned, 1)
}

func TestFallFiresOncePerFall(t *testing.T) {
	t.Parallel()

	r, _, clock := newTestRunner(t, fallHappyDetector())

	var falls []track.Target
	r.OnFall(func(tg track.Target) { falls = append(falls, tg) })

	// Create, then update so the detector can classify it.
	r.Cycle([]track.Detection{{Channel: 0, Position: track.Vec2{}}})
	require.Empty(t, falls)

	clock.Advance(100 * time.Millisecond)
	r.Cycle([]track.Detection{{Channel: 0, Position: track.Vec2{X: 0.1}}})
	require.Len(t, falls, 1)

	// Still falling next cycle: no duplicate event.
	clock.Advance(100 * time.Millisecond)
	r.Cycle([]track.Detection{{Channel: 0, Position: track.Vec2{X: 0.2}}})
	assert.Len(t, falls, 1)

	assert.Equal(t, uint64(1), r.Stats().FallEvents)
}

func TestOnCycleReceivesEverySummary(t *testing.T) {
	t.Parallel()

	r, _, clock := newTestRunner(t, nil)

	var cycles []CycleResult
	r.OnCycle(func(res CycleResult) { cycles = append(cycles, res) })

	r.Cycle(nil)
	clock.Advance(100 * time.Millisecond)
	r.Cycle([]track.Detection{{Channel: 0, Position: track.Vec2{X: 1.0}}})

	require.Len(t, cycles, 2)
	assert.NotEqual(t, cycles[0].ScanID, cycles[1].ScanID)
	assert.Equal(t, 1, cycles[1].Detections)
}

func TestStatsAccumulate(t *testing.T) {
	t.Parallel()

	r, _, clock := newTestRunner(t, nil)

	r.Cycle([]track.Detection{{Channel: 0, Position: track.Vec2{X: 1.0}}})
	clock.Advance(100 * time.Millisecond)
	r.Cycle([]track.Detection{{Channel: 0, Position: track.Vec2{X: 1.1}}})

	stats := r.Stats()
	assert.Equal(t, uint64(2), stats.Cycles)
	assert.Equal(t, uint64(2), stats.Detections)
	assert.Equal(t, clock.Now(), stats.LastCycle)
}

func TestRunDrivenByTicker(t *testing.T) {
	t.Parallel()

	r, tracker, clock := newTestRunner(t, nil)

	source := make(chan track.Detection, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(source)
	}()

	source <- track.Detection{Channel: 0, Position: track.Vec2{X: 1.0}}

	// Let the runner drain the source, then fire a tick.
	require.Eventually(t, func() bool {
		clock.Advance(100 * time.Millisecond)
		return tracker.Count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	r.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunStopsWhenSourceCloses(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRunner(t, nil)

	source := make(chan track.Detection)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(source)
	}()

	close(source)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on source close")
	}
}

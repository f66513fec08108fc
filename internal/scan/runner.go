// Package scan drives the tracking engine from a detection source. The
// engine itself is synchronous; the Runner is the single goroutine that
// feeds it, one cycle per scan interval: submit detections, coast the
// targets that saw none, prune, then notify consumers.
package scan

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hexar-systems/hexar/internal/monitoring"
	"github.com/hexar-systems/hexar/internal/timeutil"
	"github.com/hexar-systems/hexar/internal/track"
)

// CycleResult summarises one scan cycle.
type CycleResult struct {
	ScanID     uuid.UUID     `json:"scan_id"`
	Timestamp  time.Time     `json:"timestamp"`
	Detections int           `json:"detections"`
	Dropped    int           `json:"dropped"` // Detections lost to channel capacity
	Falling    int           `json:"falling"`
	Live       int           `json:"live"`
	Duration   time.Duration `json:"duration"`
}

// Stats aggregates cycle results over the life of the runner.
type Stats struct {
	Cycles        uint64        `json:"cycles"`
	Detections    uint64        `json:"detections"`
	CapacityDrops uint64        `json:"capacity_drops"`
	FallEvents    uint64        `json:"fall_events"`
	LastCycle     time.Time     `json:"last_cycle"`
	LastDuration  time.Duration `json:"last_duration"`
}

// FallHandler is called once per target transition into the Falling state.
type FallHandler func(track.Target)

// PruneHandler receives the targets removed by a cycle's prune pass.
type PruneHandler func([]track.Target)

// CycleHandler receives every cycle summary.
type CycleHandler func(CycleResult)

// Runner owns the scan loop. Handlers run on the loop goroutine and must
// not block; hand off to your own goroutine if you need to.
type Runner struct {
	tracker      *track.Tracker
	interval     time.Duration
	pruneTimeout time.Duration
	clock        timeutil.Clock

	onFall  []FallHandler
	onPrune []PruneHandler
	onCycle []CycleHandler

	mu          sync.Mutex
	stats       Stats
	fallingSeen map[uint32]bool

	stop chan struct{}
	once sync.Once
}

// NewRunner creates a runner around a tracker. A nil clock uses the real
// one.
func NewRunner(tracker *track.Tracker, interval, pruneTimeout time.Duration, clock timeutil.Clock) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Runner{
		tracker:      tracker,
		interval:     interval,
		pruneTimeout: pruneTimeout,
		clock:        clock,
		fallingSeen:  make(map[uint32]bool),
		stop:         make(chan struct{}),
	}
}

// OnFall registers a handler for new fall detections.
func (r *Runner) OnFall(h FallHandler) { r.onFall = append(r.onFall, h) }

// OnPrune registers a handler for pruned targets.
func (r *Runner) OnPrune(h PruneHandler) { r.onPrune = append(r.onPrune, h) }

// OnCycle registers a handler for cycle summaries.
func (r *Runner) OnCycle(h CycleHandler) { r.onCycle = append(r.onCycle, h) }

// Run consumes the source until Close is called or the source closes.
// Detections arriving between ticks are buffered and submitted as the next
// cycle's batch. Blocks; run in a goroutine.
func (r *Runner) Run(source <-chan track.Detection) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	var pending []track.Detection
	for {
		select {
		case <-r.stop:
			return
		case d, ok := <-source:
			if !ok {
				monitoring.Logf("scan: detection source closed")
				return
			}
			pending = append(pending, d)
		case <-ticker.C():
			r.Cycle(pending)
			pending = pending[:0]
		}
	}
}

// Close stops the runner. Safe to call more than once.
func (r *Runner) Close() {
	r.once.Do(func() { close(r.stop) })
}

// Cycle runs one complete scan cycle with the given detection batch.
// Exported so the binary and tests can drive the engine synchronously.
func (r *Runner) Cycle(detections []track.Detection) CycleResult {
	start := r.clock.Now()

	touched := make(map[uint32]bool, len(detections))
	dropped := 0
	for _, d := range detections {
		id, err := r.tracker.AssociateOrCreate(d.Channel, d.Position)
		if err != nil {
			if errors.Is(err, track.ErrChannelFull) {
				dropped++
				continue
			}
			monitoring.Logf("scan: detection rejected: %v", err)
			continue
		}
		touched[id] = true
	}

	r.tracker.CoastMissed(r.interval.Seconds(), touched)

	removed := r.tracker.Prune(r.pruneTimeout)
	if len(removed) > 0 {
		for _, h := range r.onPrune {
			h(removed)
		}
	}

	falling := r.tracker.FallingTargets()
	newFalls := r.noteFalls(falling, removed)
	for _, tg := range newFalls {
		for _, h := range r.onFall {
			h(tg)
		}
	}

	result := CycleResult{
		ScanID:     uuid.New(),
		Timestamp:  start,
		Detections: len(detections),
		Dropped:    dropped,
		Falling:    len(falling),
		Live:       r.tracker.Count(),
		Duration:   r.clock.Now().Sub(start),
	}

	r.mu.Lock()
	r.stats.Cycles++
	r.stats.Detections += uint64(len(detections))
	r.stats.CapacityDrops += uint64(dropped)
	r.stats.FallEvents += uint64(len(newFalls))
	r.stats.LastCycle = result.Timestamp
	r.stats.LastDuration = result.Duration
	r.mu.Unlock()

	for _, h := range r.onCycle {
		h(result)
	}
	return result
}

// noteFalls tracks which targets are already known to be falling so each
// fall raises exactly one event, and forgets removed targets.
func (r *Runner) noteFalls(falling, removed []track.Target) []track.Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tg := range removed {
		delete(r.fallingSeen, tg.ID)
	}

	current := make(map[uint32]bool, len(falling))
	var fresh []track.Target
	for _, tg := range falling {
		current[tg.ID] = true
		if !r.fallingSeen[tg.ID] {
			fresh = append(fresh, tg)
		}
	}
	// Targets that recovered out of Falling can alert again next time.
	for id := range r.fallingSeen {
		if !current[id] {
			delete(r.fallingSeen, id)
		}
	}
	for id := range current {
		r.fallingSeen[id] = true
	}
	return fresh
}

// Stats returns a copy of the running aggregates.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

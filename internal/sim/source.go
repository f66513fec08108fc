// Package sim generates synthetic detections for dev mode and demos: a few
// targets wander the sensed area and one of them periodically drops in a
// gravity-like fall, which should trip the fall detector downstream.
package sim

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/hexar-systems/hexar/internal/monitoring"
	"github.com/hexar-systems/hexar/internal/track"
)

const (
	areaRadius    = 10.0 // metres, matches the nominal sensing radius
	walkerSpeed   = 1.2  // m/s, typical walking pace
	positionNoise = 0.05 // metres of jitter per emitted detection
	fallDuration  = 600 * time.Millisecond
)

type walker struct {
	channel  uint8
	pos      track.Vec2
	vel      track.Vec2
	fallVel  float64 // Downward velocity while falling
	fallLeft time.Duration
}

// Source emits synthetic detections at a fixed cadence.
type Source struct {
	mu       sync.Mutex
	walkers  []*walker
	interval time.Duration
	fallGap  time.Duration // Time between scripted falls
	nextFall time.Duration
	rng      *rand.Rand

	out  chan track.Detection
	stop chan struct{}
	once sync.Once
}

// NewSource creates a source with one walker per channel. A fixed seed
// makes runs reproducible.
func NewSource(channels int, interval, fallGap time.Duration, seed int64) *Source {
	rng := rand.New(rand.NewSource(seed))
	s := &Source{
		interval: interval,
		fallGap:  fallGap,
		nextFall: fallGap,
		rng:      rng,
		out:      make(chan track.Detection, 16),
		stop:     make(chan struct{}),
	}
	for ch := 0; ch < channels; ch++ {
		angle := rng.Float64() * 2 * math.Pi
		s.walkers = append(s.walkers, &walker{
			channel: uint8(ch),
			pos: track.Vec2{
				X: 0.5 * areaRadius * math.Cos(angle),
				Y: 0.5 * areaRadius * math.Sin(angle),
			},
			vel: track.Vec2{
				X: walkerSpeed * math.Cos(angle+math.Pi/2),
				Y: walkerSpeed * math.Sin(angle+math.Pi/2),
			},
		})
	}
	return s
}

// Detections returns the output stream.
func (s *Source) Detections() <-chan track.Detection { return s.out }

// Run emits detections until Close is called. Blocks; run in a goroutine.
func (s *Source) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.out)

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			for _, d := range s.step() {
				select {
				case s.out <- d:
				case <-s.stop:
					return
				}
			}
		}
	}
}

// Close stops the source. Safe to call more than once.
func (s *Source) Close() {
	s.once.Do(func() { close(s.stop) })
}

// step advances every walker by one interval and returns their noisy
// detections.
func (s *Source) step() []track.Detection {
	s.mu.Lock()
	defer s.mu.Unlock()

	dt := s.interval.Seconds()

	s.nextFall -= s.interval
	if s.nextFall <= 0 && len(s.walkers) > 0 {
		w := s.walkers[s.rng.Intn(len(s.walkers))]
		if w.fallLeft <= 0 {
			w.fallLeft = fallDuration
			w.fallVel = 0
			monitoring.Logf("sim: scripting fall on channel %d", w.channel)
		}
		s.nextFall = s.fallGap
	}

	out := make([]track.Detection, 0, len(s.walkers))
	for _, w := range s.walkers {
		if w.fallLeft > 0 {
			// Free fall: downward velocity grows at g, position follows.
			w.fallVel -= 9.81 * dt
			w.pos.Y += w.fallVel * dt
			w.fallLeft -= s.interval
		} else {
			w.pos = w.pos.Add(w.vel.Scale(dt))
			// Bounce back toward the centre at the area boundary.
			if w.pos.Norm() > areaRadius {
				w.vel = w.vel.Scale(-1)
			}
		}

		out = append(out, track.Detection{
			Channel: w.channel,
			Position: track.Vec2{
				X: w.pos.X + s.rng.NormFloat64()*positionNoise,
				Y: w.pos.Y + s.rng.NormFloat64()*positionNoise,
			},
		})
	}
	return out
}

package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVec2(t *testing.T) {
	t.Parallel()

	a := Vec2{X: 3, Y: 4}
	b := Vec2{X: 1, Y: -2}

	assert.Equal(t, Vec2{X: 4, Y: 2}, a.Add(b))
	assert.Equal(t, Vec2{X: 2, Y: 6}, a.Sub(b))
	assert.Equal(t, Vec2{X: 6, Y: 8}, a.Scale(2))
	assert.InDelta(t, 5.0, a.Norm(), 1e-9)
	assert.Zero(t, Vec2{}.Norm())
}

func TestMarkMeasured(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tg := newTarget(1, 0, Vec2{}, now)
	tg.Confidence = 0.5
	tg.CoastCount = 3

	later := now.Add(100 * time.Millisecond)
	tg.markMeasured(later)

	assert.InDelta(t, 0.6, tg.Confidence, 1e-9)
	assert.Zero(t, tg.CoastCount)
	assert.Equal(t, later, tg.LastUpdate)
}

func TestMarkMeasuredConvergesToOne(t *testing.T) {
	t.Parallel()

	tg := newTarget(1, 0, Vec2{}, time.Now())
	tg.Confidence = 0.1
	for i := 0; i < 100; i++ {
		tg.markMeasured(time.Now())
	}
	assert.InDelta(t, 1.0, tg.Confidence, 1e-6)
	assert.LessOrEqual(t, tg.Confidence, 1.0)
}

func TestMarkCoasted(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tg := newTarget(1, 0, Vec2{}, now)
	tg.markCoasted()

	assert.InDelta(t, 0.9, tg.Confidence, 1e-9)
	assert.Equal(t, 1, tg.CoastCount)
	assert.Equal(t, StatePredicted, tg.State)
	// Coasting never refreshes the measurement timestamp.
	assert.Equal(t, now, tg.LastUpdate)
}

func TestIsFalling(t *testing.T) {
	t.Parallel()

	tg := newTarget(1, 0, Vec2{}, time.Now())
	assert.False(t, tg.IsFalling())
	tg.State = StateFalling
	assert.True(t, tg.IsFalling())
}

func TestClamp01(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 0.5, clamp01(0.5))
	assert.Equal(t, 1.0, clamp01(1.5))
}

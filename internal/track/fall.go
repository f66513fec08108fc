package track

// Ballistic preview integration parameters. The preview exists purely for
// alert visualisation and never mutates tracker state.
const (
	trajectoryStep = 0.05  // seconds per Euler step
	gravityAccel   = -9.81 // m/s², downward along -Y
)

// FallDetector scores a target's current kinematics for fall risk. It holds
// only fixed thresholds, so scoring is a pure function of the target.
type FallDetector struct {
	GravityThreshold      float64 // Downward acceleration below this is free-fall-like (m/s²)
	VelocityThreshold     float64 // Downward velocity magnitude threshold (m/s)
	AccelerationThreshold float64 // Acceleration magnitude spike threshold (m/s²)
	FallingRiskThreshold  float64 // Score above this classifies the target as falling
}

// NewFallDetector returns a detector with the stock thresholds.
func NewFallDetector() *FallDetector {
	return &FallDetector{
		GravityThreshold:      -9.5,
		VelocityThreshold:     2.0,
		AccelerationThreshold: 15.0,
		FallingRiskThreshold:  0.7,
	}
}

// Score accumulates risk from four independent kinematic conditions, capped
// at 1.0:
//
//	downward acceleration below the gravity threshold  +0.4
//	downward velocity below -velocity threshold        +0.3
//	acceleration magnitude above the spike threshold   +0.2
//	velocity magnitude above twice the threshold       +0.1
func (d *FallDetector) Score(t *Target) float64 {
	risk := 0.0

	if t.Acceleration.Y < d.GravityThreshold {
		risk += 0.4
	}
	if t.Velocity.Y < -d.VelocityThreshold {
		risk += 0.3
	}
	if t.Acceleration.Norm() > d.AccelerationThreshold {
		risk += 0.2
	}
	if t.Velocity.Norm() > d.VelocityThreshold*2.0 {
		risk += 0.1
	}

	return clamp01(risk)
}

// IsFalling reports whether a score classifies as falling.
func (d *FallDetector) IsFalling(score float64) bool {
	return score > d.FallingRiskThreshold
}

// Trajectory simulates steps future positions from the given position and
// velocity by explicit Euler integration under constant gravity, 50 ms per
// step. Read-only with respect to any target or filter.
func (d *FallDetector) Trajectory(pos, vel Vec2, steps int) []Vec2 {
	if steps <= 0 {
		return nil
	}
	gravity := Vec2{0, gravityAccel}
	out := make([]Vec2, 0, steps)
	for i := 0; i < steps; i++ {
		vel = vel.Add(gravity.Scale(trajectoryStep))
		pos = pos.Add(vel.Scale(trajectoryStep))
		out = append(out, pos)
	}
	return out
}

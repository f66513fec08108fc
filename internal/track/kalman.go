package track

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Filter state layout: [x, y, vx, vy, ax, ay]. Measurements are position
// only, so H is the fixed 2x6 position selector.
const (
	stateDim = 6
	measDim  = 2
)

// Kalman is a constant-acceleration Kalman filter estimating a 6-dimensional
// kinematic state from noisy 2D position measurements. All matrices are
// allocated once at construction; Predict and Update reuse them so the
// per-cycle cost is pure arithmetic.
//
// The update applies the textbook full-state correction: the gain-weighted
// innovation is committed to all six state rows, so velocity and
// acceleration estimates converge from position-only measurements.
type Kalman struct {
	x *mat.VecDense // State estimate
	p *mat.Dense    // State covariance

	f *mat.Dense // State transition, rebuilt each Predict since dt varies
	q *mat.Dense // Process noise (fixed diagonal)
	r *mat.Dense // Measurement noise (fixed diagonal)
	h *mat.Dense // Measurement matrix (fixed position selector)

	// Scratch space reused across calls.
	fp   *mat.Dense    // F*P
	fpft *mat.Dense    // F*P*Fᵀ
	pht  *mat.Dense    // P*Hᵀ
	s    *mat.Dense    // Innovation covariance H*P*Hᵀ + R
	sInv *mat.Dense    // Inverse of s
	k    *mat.Dense    // Kalman gain
	kh   *mat.Dense    // K*H
	ikh  *mat.Dense    // I - K*H
	newP *mat.Dense    // Corrected covariance
	innv *mat.VecDense // Innovation
	dx   *mat.VecDense // Gain-weighted state correction
}

// KalmanConfig holds the fixed noise magnitudes for a filter. Values at or
// below zero are floored to the defaults, so a constructed filter always
// carries strictly positive noise and a singular innovation covariance
// signals numerical failure rather than configuration.
type KalmanConfig struct {
	InitialCovariance float64 // Diagonal of the initial state covariance
	ProcessNoise      float64 // Diagonal of Q
	MeasurementNoise  float64 // Diagonal of R
}

// DefaultKalmanConfig returns the stock noise configuration: a large initial
// covariance so early measurements dominate, modest process noise, unit
// measurement noise.
func DefaultKalmanConfig() KalmanConfig {
	return KalmanConfig{
		InitialCovariance: 100.0,
		ProcessNoise:      0.1,
		MeasurementNoise:  1.0,
	}
}

// NewKalman constructs a filter seeded at the given position with zero
// velocity and acceleration.
func NewKalman(initial Vec2, cfg KalmanConfig) *Kalman {
	if cfg.InitialCovariance <= 0 {
		cfg.InitialCovariance = DefaultKalmanConfig().InitialCovariance
	}
	if cfg.ProcessNoise <= 0 {
		cfg.ProcessNoise = DefaultKalmanConfig().ProcessNoise
	}
	if cfg.MeasurementNoise <= 0 {
		cfg.MeasurementNoise = DefaultKalmanConfig().MeasurementNoise
	}

	k := &Kalman{
		x:    mat.NewVecDense(stateDim, nil),
		p:    eye(stateDim, cfg.InitialCovariance),
		f:    eye(stateDim, 1),
		q:    eye(stateDim, cfg.ProcessNoise),
		r:    eye(measDim, cfg.MeasurementNoise),
		h:    mat.NewDense(measDim, stateDim, nil),
		fp:   mat.NewDense(stateDim, stateDim, nil),
		fpft: mat.NewDense(stateDim, stateDim, nil),
		pht:  mat.NewDense(stateDim, measDim, nil),
		s:    mat.NewDense(measDim, measDim, nil),
		sInv: mat.NewDense(measDim, measDim, nil),
		k:    mat.NewDense(stateDim, measDim, nil),
		kh:   mat.NewDense(stateDim, stateDim, nil),
		ikh:  mat.NewDense(stateDim, stateDim, nil),
		newP: mat.NewDense(stateDim, stateDim, nil),
		innv: mat.NewVecDense(measDim, nil),
		dx:   mat.NewVecDense(stateDim, nil),
	}

	k.x.SetVec(0, initial.X)
	k.x.SetVec(1, initial.Y)
	k.h.Set(0, 0, 1)
	k.h.Set(1, 1, 1)
	return k
}

// Predict advances the state by dt seconds under the constant-acceleration
// kinematic model and propagates the covariance: P ← F·P·Fᵀ + Q.
func (k *Kalman) Predict(dt float64) {
	// F is identity plus the kinematic couplings, rebuilt since dt varies.
	for i := 0; i < stateDim; i++ {
		for j := 0; j < stateDim; j++ {
			if i == j {
				k.f.Set(i, j, 1)
			} else {
				k.f.Set(i, j, 0)
			}
		}
	}
	half := 0.5 * dt * dt
	k.f.Set(0, 2, dt)   // x += vx*dt
	k.f.Set(1, 3, dt)   // y += vy*dt
	k.f.Set(0, 4, half) // x += 0.5*ax*dt²
	k.f.Set(1, 5, half) // y += 0.5*ay*dt²
	k.f.Set(2, 4, dt)   // vx += ax*dt
	k.f.Set(3, 5, dt)   // vy += ay*dt

	k.dx.MulVec(k.f, k.x)
	k.x.CopyVec(k.dx)

	k.fp.Mul(k.f, k.p)
	k.fpft.Mul(k.fp, k.f.T())
	k.p.Add(k.fpft, k.q)
}

// Update corrects the state with a position measurement. If the innovation
// covariance is numerically singular the correction cannot be formed; the
// state is left as predicted and an error is returned so the caller can
// degrade the cycle to a coast.
func (k *Kalman) Update(meas Vec2) error {
	k.innv.SetVec(0, meas.X-k.x.AtVec(0))
	k.innv.SetVec(1, meas.Y-k.x.AtVec(1))

	// S = H*P*Hᵀ + R
	k.pht.Mul(k.p, k.h.T())
	k.s.Mul(k.h, k.pht)
	k.s.Add(k.s, k.r)

	if err := k.sInv.Inverse(k.s); err != nil {
		return fmt.Errorf("innovation covariance not invertible: %w", err)
	}

	// K = P*Hᵀ*S⁻¹
	k.k.Mul(k.pht, k.sInv)

	// x ← x + K*innovation (full-state correction)
	k.dx.MulVec(k.k, k.innv)
	k.x.AddVec(k.x, k.dx)

	// P ← (I - K*H)*P
	k.kh.Mul(k.k, k.h)
	for i := 0; i < stateDim; i++ {
		for j := 0; j < stateDim; j++ {
			id := 0.0
			if i == j {
				id = 1.0
			}
			k.ikh.Set(i, j, id-k.kh.At(i, j))
		}
	}
	k.newP.Mul(k.ikh, k.p)
	k.p.Copy(k.newP)
	return nil
}

// Position returns the estimated position.
func (k *Kalman) Position() Vec2 { return Vec2{k.x.AtVec(0), k.x.AtVec(1)} }

// Velocity returns the estimated velocity.
func (k *Kalman) Velocity() Vec2 { return Vec2{k.x.AtVec(2), k.x.AtVec(3)} }

// Acceleration returns the estimated acceleration.
func (k *Kalman) Acceleration() Vec2 { return Vec2{k.x.AtVec(4), k.x.AtVec(5)} }

// eye returns an n×n matrix with v on the diagonal.
func eye(n int, v float64) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, v)
	}
	return m
}

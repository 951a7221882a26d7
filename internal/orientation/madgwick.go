// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"sync"
)

// Vector is a 3-axis sensor reading.
type Vector [3]float64

func (v Vector) isZero() bool { return v[0] == 0 && v[1] == 0 && v[2] == 0 }

const (
	DefaultBeta       = 0.1
	DefaultSampleFreq = 512.0 // Hz
)

// Madgwick is a gradient-descent AHRS filter. Gyro readings are in rad/s;
// accelerometer and magnetometer only need consistent units since they are
// normalised. The quaternion starts at Identity.
//
// One Madgwick tracks one physical sensor. Methods are safe for concurrent
// use so a reader may sample Quaternion while the acquisition loop updates.
type Madgwick struct {
	beta       float64
	sampleFreq float64

	mu sync.RWMutex
	q  Quaternion
}

// NewMadgwick returns a filter with gain beta integrating at sampleFreq Hz.
// Non-positive sampleFreq falls back to DefaultSampleFreq; negative beta
// to DefaultBeta.
func NewMadgwick(beta, sampleFreq float64) *Madgwick {
	if beta < 0 {
		beta = DefaultBeta
	}
	if sampleFreq <= 0 {
		sampleFreq = DefaultSampleFreq
	}
	return &Madgwick{beta: beta, sampleFreq: sampleFreq, q: Identity()}
}

// Beta returns the filter gain.
func (m *Madgwick) Beta() float64 { return m.beta }

// SampleFreq returns the nominal integration rate in Hz.
func (m *Madgwick) SampleFreq() float64 { return m.sampleFreq }

// Quaternion returns the current attitude.
func (m *Madgwick) Quaternion() Quaternion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.q
}

// Pose is FromQuaternion(m.Quaternion()).
func (m *Madgwick) Pose() Pose { return FromQuaternion(m.Quaternion()) }

// Reset puts the filter back to Identity.
func (m *Madgwick) Reset() {
	m.mu.Lock()
	m.q = Identity()
	m.mu.Unlock()
}

// Update runs one filter step at the nominal sample period. A zero
// magnetometer falls back to UpdateIMU; a zero accelerometer skips the
// correction and integrates the gyro alone.
func (m *Madgwick) Update(g, a, mag Vector) {
	m.UpdateDt(g, a, mag, 1/m.sampleFreq)
}

// UpdateIMU runs one accelerometer + gyro step (no heading correction) at
// the nominal sample period.
func (m *Madgwick) UpdateIMU(g, a Vector) {
	m.updateIMU(g, a, 1/m.sampleFreq)
}

// UpdateDt is Update with an explicit integration step in seconds, for
// callers that measure the time between samples. Non-positive dt uses the
// nominal period.
func (m *Madgwick) UpdateDt(g, a, mag Vector, dt float64) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		dt = 1 / m.sampleFreq
	}
	if mag.isZero() {
		m.updateIMU(g, a, dt)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	q0, q1, q2, q3 := m.q.Q0, m.q.Q1, m.q.Q2, m.q.Q3
	gx, gy, gz := g[0], g[1], g[2]

	// Quaternion rate from the gyro.
	qDot1 := 0.5 * (-q1*gx - q2*gy - q3*gz)
	qDot2 := 0.5 * (q0*gx + q2*gz - q3*gy)
	qDot3 := 0.5 * (q0*gy - q1*gz + q3*gx)
	qDot4 := 0.5 * (q0*gz + q1*gy - q2*gx)

	if !a.isZero() {
		ax, ay, az := normalize(a)
		mx, my, mz := normalize(mag)

		_2q0mx := 2 * q0 * mx
		_2q0my := 2 * q0 * my
		_2q0mz := 2 * q0 * mz
		_2q1mx := 2 * q1 * mx
		_2q0 := 2 * q0
		_2q1 := 2 * q1
		_2q2 := 2 * q2
		_2q3 := 2 * q3
		_2q0q2 := 2 * q0 * q2
		_2q2q3 := 2 * q2 * q3
		q0q0 := q0 * q0
		q0q1 := q0 * q1
		q0q2 := q0 * q2
		q0q3 := q0 * q3
		q1q1 := q1 * q1
		q1q2 := q1 * q2
		q1q3 := q1 * q3
		q2q2 := q2 * q2
		q2q3 := q2 * q3
		q3q3 := q3 * q3

		// Earth field direction in the current frame, projected onto x/z.
		hx := mx*q0q0 - _2q0my*q3 + _2q0mz*q2 + mx*q1q1 + _2q1*my*q2 + _2q1*mz*q3 - mx*q2q2 - mx*q3q3
		hy := _2q0mx*q3 + my*q0q0 - _2q0mz*q1 + _2q1mx*q2 - my*q1q1 + my*q2q2 + _2q2*mz*q3 - my*q3q3
		_2bx := math.Sqrt(hx*hx + hy*hy)
		_2bz := -_2q0mx*q2 + _2q0my*q1 + mz*q0q0 + _2q1mx*q3 - mz*q1q1 + _2q2*my*q3 - mz*q2q2 + mz*q3q3
		_4bx := 2 * _2bx
		_4bz := 2 * _2bz

		// Objective function residuals.
		fax := 2*q1q3 - _2q0q2 - ax
		fay := 2*q0q1 + _2q2q3 - ay
		faz := 1 - 2*q1q1 - 2*q2q2 - az
		fmx := _2bx*(0.5-q2q2-q3q3) + _2bz*(q1q3-q0q2) - mx
		fmy := _2bx*(q1q2-q0q3) + _2bz*(q0q1+q2q3) - my
		fmz := _2bx*(q0q2+q1q3) + _2bz*(0.5-q1q1-q2q2) - mz

		s0 := -_2q2*fax + _2q1*fay - _2bz*q2*fmx + (-_2bx*q3+_2bz*q1)*fmy + _2bx*q2*fmz
		s1 := _2q3*fax + _2q0*fay - 4*q1*faz + _2bz*q3*fmx + (_2bx*q2+_2bz*q0)*fmy + (_2bx*q3-_4bz*q1)*fmz
		s2 := -_2q0*fax + _2q3*fay - 4*q2*faz + (-_4bx*q2-_2bz*q0)*fmx + (_2bx*q1+_2bz*q3)*fmy + (_2bx*q0-_4bz*q2)*fmz
		s3 := _2q1*fax + _2q2*fay + (-_4bx*q3+_2bz*q1)*fmx + (-_2bx*q0+_2bz*q2)*fmy + _2bx*q1*fmz

		qDot1, qDot2, qDot3, qDot4 = m.feedback(qDot1, qDot2, qDot3, qDot4, s0, s1, s2, s3)
	}

	m.integrate(qDot1, qDot2, qDot3, qDot4, dt)
}

func (m *Madgwick) updateIMU(g, a Vector, dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q0, q1, q2, q3 := m.q.Q0, m.q.Q1, m.q.Q2, m.q.Q3
	gx, gy, gz := g[0], g[1], g[2]

	qDot1 := 0.5 * (-q1*gx - q2*gy - q3*gz)
	qDot2 := 0.5 * (q0*gx + q2*gz - q3*gy)
	qDot3 := 0.5 * (q0*gy - q1*gz + q3*gx)
	qDot4 := 0.5 * (q0*gz + q1*gy - q2*gx)

	if !a.isZero() {
		ax, ay, az := normalize(a)

		_2q0 := 2 * q0
		_2q1 := 2 * q1
		_2q2 := 2 * q2
		_2q3 := 2 * q3
		_4q0 := 4 * q0
		_4q1 := 4 * q1
		_4q2 := 4 * q2
		_8q1 := 8 * q1
		_8q2 := 8 * q2
		q0q0 := q0 * q0
		q1q1 := q1 * q1
		q2q2 := q2 * q2
		q3q3 := q3 * q3

		s0 := _4q0*q2q2 + _2q2*ax + _4q0*q1q1 - _2q1*ay
		s1 := _4q1*q3q3 - _2q3*ax + 4*q0q0*q1 - _2q0*ay - _4q1 + _8q1*q1q1 + _8q1*q2q2 + _4q1*az
		s2 := 4*q0q0*q2 + _2q0*ax + _4q2*q3q3 - _2q3*ay - _4q2 + _8q2*q1q1 + _8q2*q2q2 + _4q2*az
		s3 := 4*q1q1*q3 - _2q1*ax + 4*q2q2*q3 - _2q2*ay

		qDot1, qDot2, qDot3, qDot4 = m.feedback(qDot1, qDot2, qDot3, qDot4, s0, s1, s2, s3)
	}

	m.integrate(qDot1, qDot2, qDot3, qDot4, dt)
}

// feedback subtracts the beta-scaled, normalised gradient from the rate.
// A zero gradient (already at the optimum) leaves the rate alone.
func (m *Madgwick) feedback(d0, d1, d2, d3, s0, s1, s2, s3 float64) (float64, float64, float64, float64) {
	n := math.Sqrt(s0*s0 + s1*s1 + s2*s2 + s3*s3)
	if n == 0 || math.IsNaN(n) {
		return d0, d1, d2, d3
	}
	k := m.beta / n
	return d0 - k*s0, d1 - k*s1, d2 - k*s2, d3 - k*s3
}

// integrate takes one explicit Euler step and renormalises. Caller holds mu.
func (m *Madgwick) integrate(d0, d1, d2, d3, dt float64) {
	q := Quaternion{
		Q0: m.q.Q0 + d0*dt,
		Q1: m.q.Q1 + d1*dt,
		Q2: m.q.Q2 + d2*dt,
		Q3: m.q.Q3 + d3*dt,
	}
	m.q = q.Normalized()
}

func normalize(v Vector) (float64, float64, float64) {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	return v[0] / n, v[1] / n, v[2] / n
}

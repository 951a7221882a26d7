// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import "math"

// Quaternion is an attitude quaternion, Q0 being the scalar part.
type Quaternion struct {
	Q0 float64 `json:"q0"`
	Q1 float64 `json:"q1"`
	Q2 float64 `json:"q2"`
	Q3 float64 `json:"q3"`
}

// Identity is the zero rotation.
func Identity() Quaternion { return Quaternion{Q0: 1} }

// Norm is the Euclidean length of q.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.Q0*q.Q0 + q.Q1*q.Q1 + q.Q2*q.Q2 + q.Q3*q.Q3)
}

// Normalized returns q scaled to unit length; the zero quaternion maps to
// Identity.
func (q Quaternion) Normalized() Quaternion {
	n := q.Norm()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Identity()
	}
	return Quaternion{q.Q0 / n, q.Q1 / n, q.Q2 / n, q.Q3 / n}
}

// FromAxisAngle builds the rotation of angle radians around the axis
// (x, y, z), which need not be unit length.
func FromAxisAngle(x, y, z, angle float64) Quaternion {
	n := math.Sqrt(x*x + y*y + z*z)
	if n == 0 {
		return Identity()
	}
	s := math.Sin(angle/2) / n
	return Quaternion{math.Cos(angle / 2), x * s, y * s, z * s}
}

// Mul returns the Hamilton product q*r.
func (q Quaternion) Mul(r Quaternion) Quaternion {
	return Quaternion{
		Q0: q.Q0*r.Q0 - q.Q1*r.Q1 - q.Q2*r.Q2 - q.Q3*r.Q3,
		Q1: q.Q0*r.Q1 + q.Q1*r.Q0 + q.Q2*r.Q3 - q.Q3*r.Q2,
		Q2: q.Q0*r.Q2 - q.Q1*r.Q3 + q.Q2*r.Q0 + q.Q3*r.Q1,
		Q3: q.Q0*r.Q3 + q.Q1*r.Q2 - q.Q2*r.Q1 + q.Q3*r.Q0,
	}
}

// Conj is the conjugate of q (the inverse rotation for unit quaternions).
func (q Quaternion) Conj() Quaternion {
	return Quaternion{q.Q0, -q.Q1, -q.Q2, -q.Q3}
}

// Rotate applies q to the vector v (q v q*).
func (q Quaternion) Rotate(v [3]float64) [3]float64 {
	p := q.Mul(Quaternion{0, v[0], v[1], v[2]}).Mul(q.Conj())
	return [3]float64{p.Q1, p.Q2, p.Q3}
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation fuses IMU samples into an attitude quaternion and
// turns it into roll/pitch/yaw.
package orientation

import "math"

// Pose is the attitude published to consumers, in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Valid reports whether all three angles are finite.
func (p Pose) Valid() bool {
	return isFinite(p.Roll) && isFinite(p.Pitch) && isFinite(p.Yaw)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

const radToDeg = 180.0 / math.Pi

// FromQuaternion extracts Euler angles from q through the rotation matrix
// elements R11, R21, R31, R32 and R33.
func FromQuaternion(q Quaternion) Pose {
	r11 := 2*q.Q0*q.Q0 - 1 + 2*q.Q1*q.Q1
	r21 := 2 * (q.Q1*q.Q2 - q.Q0*q.Q3)
	r31 := 2 * (q.Q1*q.Q3 + q.Q0*q.Q2)
	r32 := 2 * (q.Q2*q.Q3 - q.Q0*q.Q1)
	r33 := 2*q.Q0*q.Q0 - 1 + 2*q.Q3*q.Q3
	return FromRotation(r11, r21, r31, r32, r33)
}

// FromRotation computes roll = atan2(R32, R33), pitch = -atan(R31/sqrt(1-R31²))
// and yaw = atan2(R21, R11), in degrees. R31 is clamped to [-1, 1] so round-off
// near ±90° pitch gives ∓90 instead of NaN.
func FromRotation(r11, r21, r31, r32, r33 float64) Pose {
	r31 = math.Max(-1, math.Min(1, r31))
	cosPitch := math.Sqrt(math.Max(0, 1-r31*r31))
	return Pose{
		Roll:  math.Atan2(r32, r33) * radToDeg,
		Pitch: math.Atan2(-r31, cosPitch) * radToDeg,
		Yaw:   math.Atan2(r21, r11) * radToDeg,
	}
}

// TiltFromAccel estimates roll and pitch from a single accelerometer
// reading, with the signs FromQuaternion gives for the filter's attitude.
// Yaw is 0. ok is false for a zero or non-finite vector.
//
//	roll  = atan2(-ay, az)
//	pitch = atan2(ax, sqrt(ay² + az²))
func TiltFromAccel(a Vector) (p Pose, ok bool) {
	if a.isZero() || !isFinite(a[0]) || !isFinite(a[1]) || !isFinite(a[2]) {
		return Pose{}, false
	}
	return Pose{
		Roll:  math.Atan2(-a[1], a[2]) * radToDeg,
		Pitch: math.Atan2(a[0], math.Hypot(a[1], a[2])) * radToDeg,
	}, true
}

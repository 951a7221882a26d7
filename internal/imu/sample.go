// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package imu holds the raw sample exchanged with the sensor board and the
// codec for its line-oriented wire format.
package imu

// Sample is one accelerometer + gyroscope + magnetometer reading as sent by
// the board. Units are whatever the board sends unless a Calibration has
// been applied.
type Sample struct {
	Sequence int        `json:"seq"`
	Accel    [3]float32 `json:"accel"` // ax, ay, az
	Gyro     [3]float32 `json:"gyro"`  // gx, gy, gz
	Mag      [3]float32 `json:"mag"`   // mx, my, mz
	Time     float32    `json:"time"`  // board timestamp
}

// SampleSource is anything that yields samples one at a time: a decoded
// serial stream, a simulator, a replay file.
type SampleSource interface {
	NextSample() (Sample, error)
}

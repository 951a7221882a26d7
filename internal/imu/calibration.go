// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "math"

// Per-LSB ratios of an MPU-9250 set to ±4 g and ±1000 °/s, for boards that
// send raw signed 16-bit counts.
const (
	AccelPerLSB = 4.0 / 32767.0                          // g
	GyroPerLSB  = (1000.0 / 32767.0) * (math.Pi / 180.0) // rad/s
	MagPerLSB   = 48.0 / 32767.0
)

// Calibration converts raw counts to physical units. Gyro bias (in counts)
// is subtracted before scaling. The zero value is not useful; start from
// DefaultCalibration.
type Calibration struct {
	Accel    float64    `mapstructure:"accel_ratio" yaml:"accel_ratio"`
	Gyro     float64    `mapstructure:"gyro_ratio" yaml:"gyro_ratio"`
	Mag      float64    `mapstructure:"mag_ratio" yaml:"mag_ratio"`
	GyroBias [3]float64 `mapstructure:"gyro_bias" yaml:"gyro_bias"`
}

// DefaultCalibration returns the MPU-9250 ratios with no gyro bias.
func DefaultCalibration() Calibration {
	return Calibration{Accel: AccelPerLSB, Gyro: GyroPerLSB, Mag: MagPerLSB}
}

// Apply returns s converted to physical units. Sequence and Time are kept.
func (c Calibration) Apply(s Sample) Sample {
	out := s
	for i := 0; i < 3; i++ {
		out.Accel[i] = float32(float64(s.Accel[i]) * c.Accel)
		out.Gyro[i] = float32((float64(s.Gyro[i]) - c.GyroBias[i]) * c.Gyro)
		out.Mag[i] = float32(float64(s.Mag[i]) * c.Mag)
	}
	return out
}

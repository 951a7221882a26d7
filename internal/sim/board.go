// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim is a synthetic sensor board: it moves through a smooth
// attitude trajectory and reports the accelerometer, gyroscope and
// magnetometer readings a real board would send.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"time"

	"github.com/relabs-tech/serial_ahrs/internal/imu"
	"github.com/relabs-tech/serial_ahrs/internal/orientation"
)

const deg = math.Pi / 180

// EarthField is the reference magnetic field direction (north and down
// components only).
var EarthField = [3]float64{0.6, 0, 0.8}

// Board generates samples at a fixed rate. Physical units are used: g for
// the accelerometer, rad/s for the gyro, a unit-ish field for the
// magnetometer.
type Board struct {
	Rate  float64 // samples per second
	Noise float64 // std dev of additive noise, 0 for exact readings

	seq int
	rng *rand.Rand
}

// NewBoard returns a noiseless board sampling at rate Hz.
func NewBoard(rate float64) *Board {
	if rate <= 0 {
		rate = 100
	}
	return &Board{Rate: rate, rng: rand.New(rand.NewPCG(1, 2))}
}

// Attitude is the board orientation t seconds into the run.
func Attitude(t float64) orientation.Quaternion {
	roll := 20 * math.Sin(t) * deg
	pitch := 15 * math.Cos(t*0.7) * deg
	yaw := math.Mod(t*30, 360) * deg
	return orientation.FromAxisAngle(0, 0, 1, yaw).
		Mul(orientation.FromAxisAngle(0, 1, 0, pitch)).
		Mul(orientation.FromAxisAngle(1, 0, 0, roll))
}

// SampleAt returns what the board measures at t seconds.
func (b *Board) SampleAt(t float64) imu.Sample {
	q := Attitude(t)
	inv := q.Conj()

	// Body rate from the attitude change over one sample period.
	dt := 1 / b.Rate
	dq := inv.Mul(Attitude(t + dt))
	gyro := [3]float64{2 * dq.Q1 / dt, 2 * dq.Q2 / dt, 2 * dq.Q3 / dt}

	accel := inv.Rotate([3]float64{0, 0, 1})
	mag := inv.Rotate(EarthField)

	var s imu.Sample
	for i := 0; i < 3; i++ {
		s.Accel[i] = float32(accel[i] + b.noise())
		s.Gyro[i] = float32(gyro[i] + b.noise())
		s.Mag[i] = float32(mag[i] + b.noise())
	}
	s.Time = float32(t)
	return s
}

func (b *Board) noise() float64 {
	if b.Noise == 0 || b.rng == nil {
		return 0
	}
	return b.rng.NormFloat64() * b.Noise
}

// NextSample advances one sample period and implements imu.SampleSource.
func (b *Board) NextSample() (imu.Sample, error) {
	t := float64(b.seq) / b.Rate
	s := b.SampleAt(t)
	b.seq++
	s.Sequence = b.seq
	return s, nil
}

// FrameWriter is where encoded frames go; *serial.Port satisfies it.
type FrameWriter interface {
	WriteBytes([]byte) error
}

// Stream writes one encoded frame per sample period until ctx is done.
func (b *Board) Stream(ctx context.Context, w FrameWriter) error {
	return Stream(ctx, b, time.Duration(float64(time.Second)/b.Rate), w)
}

// Stream writes one encoded frame from src every interval until ctx is
// done. A source returning io.EOF ends the stream without error.
func Stream(ctx context.Context, src imu.SampleSource, interval time.Duration, w FrameWriter) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s, err := src.NextSample()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("sim: next sample: %w", err)
			}
			if err := w.WriteBytes(imu.Format(s)); err != nil {
				return fmt.Errorf("sim: write frame %d: %w", s.Sequence, err)
			}
		}
	}
}

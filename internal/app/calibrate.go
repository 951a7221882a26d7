// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/serial_ahrs/internal/acquisition"
	"github.com/relabs-tech/serial_ahrs/internal/config"
	"github.com/relabs-tech/serial_ahrs/internal/imu"
)

// GyroBiasResult is the outcome of a static gyroscope calibration, in raw
// sensor units.
type GyroBiasResult struct {
	Samples    int        `json:"samples"`
	Bias       [3]float64 `json:"gyro_bias"`
	StdDev     [3]float64 `json:"gyro_stddev"`
	Confidence float64    `json:"confidence"`
}

// gyroBias averages the gyroscope of samples taken with the board at rest.
func gyroBias(samples []imu.Sample) GyroBiasResult {
	data := make([][3]float64, len(samples))
	for i, s := range samples {
		data[i] = [3]float64{float64(s.Gyro[0]), float64(s.Gyro[1]), float64(s.Gyro[2])}
	}
	res := GyroBiasResult{Samples: len(samples)}
	for axis := 0; axis < 3; axis++ {
		res.Bias[axis] = mean(data, axis)
		res.StdDev[axis] = stddev(data, axis)
	}
	avg := (res.StdDev[0] + res.StdDev[1] + res.StdDev[2]) / 3.0
	res.Confidence = 100.0 / (1.0 + avg)
	return res
}

func mean(data [][3]float64, axis int) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v[axis]
	}
	return sum / float64(len(data))
}

func stddev(data [][3]float64, axis int) float64 {
	if len(data) == 0 {
		return 0
	}
	m := mean(data, axis)
	variance := 0.0
	for _, v := range data {
		diff := v[axis] - m
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(data)))
}

// collectSamples runs the acquisition loop over src until n raw samples
// were published or ctx is done.
func collectSamples(ctx context.Context, src acquisition.LineReader, cfg *config.Config, n int) ([]imu.Sample, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	samples := make([]imu.Sample, 0, n)
	collect := acquisition.PublisherFunc(func(r acquisition.Reading) {
		mu.Lock()
		defer mu.Unlock()
		if len(samples) < n {
			samples = append(samples, r.Sample)
		}
		if len(samples) == n {
			cancel()
		}
	})

	noCal := *cfg
	noCal.Calibration.Enabled = false
	err := newLoop(src, &noCal, collect).Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		return samples, err
	}
	if len(samples) < n {
		return samples, fmt.Errorf("calibration: got %d of %d samples: %w", len(samples), n, context.Cause(ctx))
	}
	return samples, nil
}

// CalibrateOptions controls RunCalibrate.
type CalibrateOptions struct {
	// Samples is how many frames are averaged.
	Samples int
	// Output, if set, receives cfg with the measured bias as YAML.
	Output    string
	Overwrite bool
}

// RunCalibrate measures the gyroscope bias with the board at rest, prints
// it and optionally writes it into a config file.
func RunCalibrate(ctx context.Context, cfg *config.Config, opts CalibrateOptions, out io.Writer) error {
	if opts.Samples <= 0 {
		return fmt.Errorf("calibration: samples must be positive, got %d", opts.Samples)
	}
	port, err := openPort(ctx, cfg.Serial)
	if err != nil {
		return err
	}
	defer port.Close()

	log.Infof("calibration: keep the board still, averaging %d frames", opts.Samples)
	start := time.Now()
	samples, err := collectSamples(ctx, port, cfg, opts.Samples)
	if err != nil {
		return err
	}
	res := gyroBias(samples)
	fmt.Fprintf(out, "samples     %d in %s\n", res.Samples, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "gyro bias   %.4f %.4f %.4f\n", res.Bias[0], res.Bias[1], res.Bias[2])
	fmt.Fprintf(out, "gyro stddev %.4f %.4f %.4f\n", res.StdDev[0], res.StdDev[1], res.StdDev[2])
	fmt.Fprintf(out, "confidence  %.1f%%\n", res.Confidence)

	if opts.Output == "" {
		return nil
	}
	updated := *cfg
	updated.Calibration.GyroBias = res.Bias
	if err := config.WriteFile(&updated, opts.Output, opts.Overwrite); err != nil {
		return err
	}
	log.Infof("calibration: wrote %s", opts.Output)
	return nil
}

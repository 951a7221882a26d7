// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package acquisition drives one sensor: it polls the serial link, decodes
// frames, feeds the AHRS filter and publishes the result.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/serial_ahrs/internal/imu"
	"github.com/relabs-tech/serial_ahrs/internal/orientation"
	"github.com/relabs-tech/serial_ahrs/internal/serial"
	"github.com/relabs-tech/serial_ahrs/internal/timeout"
)

// LineReader is the part of *serial.Port the loop needs.
type LineReader interface {
	PendingBytes() (int, error)
	ReadLine(delim byte, maxBytes int, timeoutMS uint) (serial.Line, error)
}

// Options tunes the loop. Zero fields take the defaults below.
type Options struct {
	Interval      time.Duration // poll cadence
	ReadTimeout   time.Duration // budget for one ReadLine
	MaxLine       int
	Delimiter     byte
	StatsInterval time.Duration // 0 disables the periodic summary

	// Calibration, when set, converts raw counts before the filter.
	Calibration *imu.Calibration
	// VariableDt feeds the measured time between frames to the filter
	// instead of its nominal sample period.
	VariableDt bool
}

const (
	DefaultInterval    = 10 * time.Millisecond
	DefaultReadTimeout = 10 * time.Millisecond
	DefaultMaxLine     = 200
	DefaultDelimiter   = '\n'

	// maxDt caps the measured step after a gap in the stream.
	maxDt = 0.5
)

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.MaxLine <= 0 {
		o.MaxLine = DefaultMaxLine
	}
	if o.Delimiter == 0 {
		o.Delimiter = DefaultDelimiter
	}
	return o
}

// Outcome says what a single Tick did.
type Outcome int

const (
	Idle       Outcome = iota // nothing pending
	Published                 // a frame was decoded and published
	Malformed                 // a line arrived but did not decode
	TimedOut                  // bytes were pending but no full line within budget
	Overflow                  // line longer than MaxLine
	ReadFailed                // transport error
)

func (o Outcome) String() string {
	switch o {
	case Idle:
		return "idle"
	case Published:
		return "published"
	case Malformed:
		return "malformed"
	case TimedOut:
		return "timed out"
	case Overflow:
		return "overflow"
	case ReadFailed:
		return "read failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Loop owns the per-sensor pipeline. One Loop per serial connection and
// per filter; Tick must not be called concurrently.
type Loop struct {
	src    LineReader
	filter *orientation.Madgwick
	pub    Publisher
	opts   Options
	stats  Stats

	sinceFrame *timeout.Timer
	haveFrame  bool
	now        func() time.Time
}

// New builds a loop. pub may be nil.
func New(src LineReader, filter *orientation.Madgwick, pub Publisher, opts Options) *Loop {
	if pub == nil {
		pub = Publishers(nil)
	}
	return &Loop{
		src:        src,
		filter:     filter,
		pub:        pub,
		opts:       opts.withDefaults(),
		sinceFrame: timeout.New(),
		now:        time.Now,
	}
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() StatsSnapshot { return l.stats.Snapshot() }

// Filter returns the estimator fed by the loop.
func (l *Loop) Filter() *orientation.Madgwick { return l.filter }

// Tick runs one poll cycle: check for pending bytes, read at most one line
// within the read budget, decode it, update the filter and publish. Per-frame
// problems are logged and counted; the returned error is only non-nil for
// transport failures, which the caller may use to decide on reconnecting.
func (l *Loop) Tick(ctx context.Context) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Idle, err
	}
	l.stats.ticks.Add(1)

	n, err := l.src.PendingBytes()
	if err != nil {
		l.stats.readErrors.Add(1)
		return ReadFailed, fmt.Errorf("acquisition: pending: %w", err)
	}
	if n == 0 {
		l.stats.idle.Add(1)
		return Idle, nil
	}

	line, err := l.src.ReadLine(l.opts.Delimiter, l.opts.MaxLine, uint(l.opts.ReadTimeout/time.Millisecond))
	if err != nil {
		l.stats.readErrors.Add(1)
		return ReadFailed, fmt.Errorf("acquisition: read line: %w", err)
	}
	switch line.Status {
	case serial.LineTimedOut:
		l.stats.timeouts.Add(1)
		if line.Len() > 0 {
			log.Debugf("acquisition: partial line dropped after timeout: %q", line.Data)
		}
		return TimedOut, nil
	case serial.LineBufferFull:
		l.stats.overflows.Add(1)
		log.Warnf("acquisition: line exceeds %d bytes, dropped", l.opts.MaxLine)
		return Overflow, nil
	}

	sample, err := imu.ParseLine(line.Data)
	if err != nil {
		l.stats.malformed.Add(1)
		log.Warnf("acquisition: %v", err)
		return Malformed, nil
	}
	l.process(sample)
	return Published, nil
}

func (l *Loop) process(raw imu.Sample) {
	s := raw
	if l.opts.Calibration != nil {
		s = l.opts.Calibration.Apply(raw)
	}
	g := orientation.Vector{float64(s.Gyro[0]), float64(s.Gyro[1]), float64(s.Gyro[2])}
	a := orientation.Vector{float64(s.Accel[0]), float64(s.Accel[1]), float64(s.Accel[2])}
	m := orientation.Vector{float64(s.Mag[0]), float64(s.Mag[1]), float64(s.Mag[2])}

	if l.opts.VariableDt && l.haveFrame {
		dt := l.sinceFrame.Elapsed().Seconds()
		if dt > maxDt {
			dt = maxDt
		}
		l.filter.UpdateDt(g, a, m, dt)
	} else {
		l.filter.Update(g, a, m)
	}
	l.sinceFrame.Start()
	l.haveFrame = true

	q := l.filter.Quaternion()
	pose := orientation.FromQuaternion(q)
	l.stats.frames.Add(1)
	l.stats.lastSeq.Store(int64(raw.Sequence))
	log.Debugf("acquisition: #%d roll=%.2f pitch=%.2f yaw=%.2f", raw.Sequence, pose.Roll, pose.Pitch, pose.Yaw)

	l.pub.Publish(Reading{Sample: raw, Pose: pose, Quaternion: q, At: l.now()})
}

// Run calls Tick every Interval until ctx is done or the port is closed.
// Transport errors are logged and the cadence continues; a closed or
// never-opened port ends the loop with that error.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	var statsC <-chan time.Time
	if l.opts.StatsInterval > 0 {
		st := time.NewTicker(l.opts.StatsInterval)
		defer st.Stop()
		statsC = st.C
	}

	log.Infof("acquisition: polling every %s (read budget %s, max line %d)",
		l.opts.Interval, l.opts.ReadTimeout, l.opts.MaxLine)

	var lastErr string
	for {
		select {
		case <-ctx.Done():
			l.logStats()
			return nil
		case <-statsC:
			l.logStats()
		case <-ticker.C:
			_, err := l.Tick(ctx)
			if err == nil {
				lastErr = ""
				continue
			}
			if errors.Is(err, serial.ErrClosed) || errors.Is(err, serial.ErrNotOpen) {
				l.logStats()
				return err
			}
			if ctx.Err() != nil {
				continue
			}
			// Avoid flooding the log with the same failure every tick.
			if msg := err.Error(); msg != lastErr {
				log.Warnf("%v", err)
				lastErr = msg
			}
		}
	}
}

func (l *Loop) logStats() {
	s := l.stats.Snapshot()
	log.WithFields(log.Fields{
		"frames":      s.Frames,
		"malformed":   s.Malformed,
		"timeouts":    s.Timeouts,
		"overflows":   s.Overflows,
		"read_errors": s.ReadErrors,
		"last_seq":    s.LastSeq,
	}).Info("acquisition: stats")
}

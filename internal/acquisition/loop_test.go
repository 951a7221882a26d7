// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquisition

import (
	"context"
	"errors"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/serial_ahrs/internal/imu"
	"github.com/relabs-tech/serial_ahrs/internal/orientation"
	"github.com/relabs-tech/serial_ahrs/internal/serial"
)

// scriptedReader replays a fixed list of ReadLine results.
type scriptedReader struct {
	lines   []serial.Line
	errs    []error
	pending error
}

func (r *scriptedReader) PendingBytes() (int, error) {
	if r.pending != nil {
		return 0, r.pending
	}
	if len(r.lines) == 0 {
		return 0, nil
	}
	return r.lines[0].Len(), nil
}

func (r *scriptedReader) ReadLine(byte, int, uint) (serial.Line, error) {
	l := r.lines[0]
	r.lines = r.lines[1:]
	var err error
	if len(r.errs) > 0 {
		err, r.errs = r.errs[0], r.errs[1:]
	}
	return l, err
}

func complete(s string) serial.Line {
	return serial.Line{Status: serial.LineComplete, Data: []byte(s)}
}

type recorder struct {
	mu  sync.Mutex
	got []Reading
}

func (r *recorder) Publish(rd Reading) {
	r.mu.Lock()
	r.got = append(r.got, rd)
	r.mu.Unlock()
}

func (r *recorder) readings() []Reading {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reading(nil), r.got...)
}

func newFilter() *orientation.Madgwick {
	return orientation.NewMadgwick(orientation.DefaultBeta, orientation.DefaultSampleFreq)
}

func TestTickIdleWhenNothingPending(t *testing.T) {
	rec := &recorder{}
	l := New(&scriptedReader{}, newFilter(), rec, Options{})
	out, err := l.Tick(context.Background())
	if err != nil || out != Idle {
		t.Fatalf("out=%v err=%v want idle", out, err)
	}
	if len(rec.readings()) != 0 {
		t.Fatalf("published on idle tick")
	}
}

func TestTickMalformedThenValidLine(t *testing.T) {
	src := &scriptedReader{lines: []serial.Line{
		complete("garbage\n"),
		complete("1 0.0 0.0 1.0 0.0 0.0 0.0 0.0 0.0 1.0 0.0\n"),
	}}
	rec := &recorder{}
	l := New(src, newFilter(), rec, Options{})

	out, err := l.Tick(context.Background())
	if err != nil || out != Malformed {
		t.Fatalf("first tick out=%v err=%v want malformed", out, err)
	}
	out, err = l.Tick(context.Background())
	if err != nil || out != Published {
		t.Fatalf("second tick out=%v err=%v want published", out, err)
	}

	got := rec.readings()
	if len(got) != 1 {
		t.Fatalf("published %d readings want 1", len(got))
	}
	want := imu.Sample{Sequence: 1, Accel: [3]float32{0, 0, 1}, Mag: [3]float32{0, 0, 1}}
	if got[0].Sample != want {
		t.Fatalf("sample got=%+v want=%+v", got[0].Sample, want)
	}
	if !got[0].Pose.Valid() || got[0].At.IsZero() {
		t.Fatalf("reading=%+v", got[0])
	}
	st := l.Stats()
	if st.Malformed != 1 || st.Frames != 1 || st.LastSeq != 1 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestTickNonFrameOutcomes(t *testing.T) {
	src := &scriptedReader{lines: []serial.Line{
		{Status: serial.LineTimedOut, Data: []byte("12 0.1")},
		{Status: serial.LineBufferFull, Data: make([]byte, 200)},
		{Status: serial.LineTimedOut, Data: []byte("x")},
	}, errs: []error{nil, nil, serial.ErrRead}}
	rec := &recorder{}
	l := New(src, newFilter(), rec, Options{})

	wants := []Outcome{TimedOut, Overflow, ReadFailed}
	for i, want := range wants {
		out, err := l.Tick(context.Background())
		if out != want {
			t.Fatalf("tick %d out=%v want=%v", i, out, want)
		}
		if (want == ReadFailed) != (err != nil) {
			t.Fatalf("tick %d err=%v", i, err)
		}
	}
	if len(rec.readings()) != 0 {
		t.Fatalf("published a non-frame")
	}
	st := l.Stats()
	if st.Timeouts != 1 || st.Overflows != 1 || st.ReadErrors != 1 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestTickPendingErrorIsReported(t *testing.T) {
	l := New(&scriptedReader{pending: serial.ErrClosed}, newFilter(), nil, Options{})
	out, err := l.Tick(context.Background())
	if out != ReadFailed || !errors.Is(err, serial.ErrClosed) {
		t.Fatalf("out=%v err=%v", out, err)
	}
}

func TestTickAppliesCalibrationOnlyToFilterInput(t *testing.T) {
	cal := imu.DefaultCalibration()
	rec := &recorder{}
	src := &scriptedReader{lines: []serial.Line{complete("5 0 0 8191 0 0 0 0 0 0 0\n")}}
	l := New(src, newFilter(), rec, Options{Calibration: &cal})

	if out, err := l.Tick(context.Background()); out != Published || err != nil {
		t.Fatalf("out=%v err=%v", out, err)
	}
	if got := rec.readings()[0].Sample.Accel[2]; got != 8191 {
		t.Fatalf("published sample should stay raw, az=%v", got)
	}
}

func TestPublishersFanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	var called int
	ps := Publishers{a, nil, b, PublisherFunc(func(Reading) { called++ })}
	ps.Publish(Reading{Sample: imu.Sample{Sequence: 3}})
	if len(a.readings()) != 1 || len(b.readings()) != 1 || called != 1 {
		t.Fatalf("fan-out a=%d b=%d f=%d", len(a.readings()), len(b.readings()), called)
	}
}

// The full path over a real Port: garbage is skipped and the next frame
// still gets through.
func TestRunOverStreamPort(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	port := serial.NewStreamPort("pipe", local)
	defer port.Close()

	rec := &recorder{}
	l := New(port, newFilter(), rec, Options{Interval: 2 * time.Millisecond, ReadTimeout: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	go func() {
		_, _ = remote.Write([]byte("garbage\n"))
		_, _ = remote.Write(imu.Format(imu.Sample{Sequence: 1, Accel: [3]float32{0, 0, 1}, Mag: [3]float32{0, 0, 1}}))
		_, _ = remote.Write(imu.Format(imu.Sample{Sequence: 2, Accel: [3]float32{0, 0, 1}, Mag: [3]float32{0, 0, 1}}))
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.readings()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("published %d readings, stats %+v", len(rec.readings()), l.Stats())
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := rec.readings()
	if got[0].Sample.Sequence != 1 || got[1].Sample.Sequence != 2 {
		t.Fatalf("sequences %d,%d", got[0].Sample.Sequence, got[1].Sample.Sequence)
	}
	if l.Stats().Malformed != 1 {
		t.Fatalf("stats=%+v", l.Stats())
	}
}

func TestRunStopsWhenPortClosed(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	port := serial.NewStreamPort("pipe", local)

	l := New(port, newFilter(), nil, Options{Interval: time.Millisecond})
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	_ = port.Close()
	select {
	case err := <-done:
		if !errors.Is(err, serial.ErrNotOpen) && !errors.Is(err, serial.ErrClosed) {
			t.Fatalf("err=%v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after Close")
	}
}

func TestVariableDtUsesMeasuredGap(t *testing.T) {
	frame := "1 0 0 1 0 0 1 0 0 1 0\n"
	yawAfterGap := func(variable bool) float64 {
		src := &scriptedReader{lines: []serial.Line{complete(frame), complete(frame)}}
		l := New(src, orientation.NewMadgwick(0, orientation.DefaultSampleFreq), nil, Options{VariableDt: variable})
		for i := 0; i < 2; i++ {
			if out, err := l.Tick(context.Background()); out != Published || err != nil {
				t.Fatalf("tick %d out=%v err=%v", i, out, err)
			}
			time.Sleep(100 * time.Millisecond)
		}
		return math.Abs(l.Filter().Pose().Yaw)
	}

	fixed := yawAfterGap(false)
	measured := yawAfterGap(true)
	// Two nominal steps at 1 rad/s are ~0.22 deg; one measured 100 ms step
	// alone is ~5.7 deg.
	if fixed > 0.5 {
		t.Fatalf("fixed dt yaw got=%v want<0.5", fixed)
	}
	if measured < 4 || measured > 10 {
		t.Fatalf("variable dt yaw got=%v want ~5.9", measured)
	}
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package timeout

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestElapsedMS_BorrowsAcrossSecondBoundary(t *testing.T) {
	c := &fakeClock{t: time.Unix(100, 900_000_000)}
	tm := newWithClock(c.now)

	c.t = time.Unix(101, 100_000_000)
	if got := tm.ElapsedMS(); got != 200 {
		t.Fatalf("got=%d want=200", got)
	}
}

func TestElapsedMS_Table(t *testing.T) {
	base := time.Unix(50, 250_000_000)
	tests := []struct {
		name string
		now  time.Time
		want uint64
	}{
		{"same instant", base, 0},
		{"sub-ms", base.Add(999 * time.Microsecond), 0},
		{"same second", base.Add(500 * time.Millisecond), 500},
		{"several seconds", base.Add(3*time.Second + 900*time.Millisecond), 3900},
		{"clock stepped back", base.Add(-2 * time.Second), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := elapsedMillis(base, tt.now); got != tt.want {
				t.Fatalf("got=%d want=%d", got, tt.want)
			}
		})
	}
}

func TestStartRearms(t *testing.T) {
	c := &fakeClock{t: time.Unix(10, 0)}
	tm := newWithClock(c.now)
	c.t = c.t.Add(40 * time.Millisecond)
	tm.Start()
	c.t = c.t.Add(15 * time.Millisecond)
	if got := tm.ElapsedMS(); got != 15 {
		t.Fatalf("got=%d want=15", got)
	}
}

func TestRemaining(t *testing.T) {
	c := &fakeClock{t: time.Unix(10, 0)}
	tm := newWithClock(c.now)
	c.t = c.t.Add(7 * time.Millisecond)
	if got := tm.Remaining(10); got != 3 {
		t.Fatalf("got=%d want=3", got)
	}
	c.t = c.t.Add(10 * time.Millisecond)
	if got := tm.Remaining(10); got != 0 {
		t.Fatalf("got=%d want=0", got)
	}
}

func TestRealClockIsMonotonic(t *testing.T) {
	tm := New()
	time.Sleep(5 * time.Millisecond)
	if got := tm.ElapsedMS(); got < 5 {
		t.Fatalf("got=%d want>=5", got)
	}
	if tm.Elapsed() < 5*time.Millisecond {
		t.Fatalf("elapsed=%s want>=5ms", tm.Elapsed())
	}
}

func TestMonotonicOnlyForRealClock(t *testing.T) {
	if !New().mono {
		t.Fatalf("real-clock timer mono=false want=true")
	}
	c := &fakeClock{t: time.Unix(10, 0)}
	if newWithClock(c.now).mono {
		t.Fatalf("fake-clock timer mono=true want=false")
	}
}

func TestElapsedMillisUsesWallClock(t *testing.T) {
	ref := time.Now()
	now := ref.Add(1500 * time.Millisecond)
	if got := elapsedMillis(ref, now); got != 1500 {
		t.Fatalf("got=%d want=1500", got)
	}
	if got := elapsedMillis(now, ref); got != 0 {
		t.Fatalf("stepped back got=%d want=0", got)
	}
}

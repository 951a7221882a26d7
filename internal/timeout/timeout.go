// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package timeout provides the stopwatch used to bound every
// timeout-sensitive serial operation.
package timeout

import "time"

// Timer measures whole milliseconds since the last Start.
// The zero value is usable and reads as started at the zero time.
type Timer struct {
	ref  time.Time
	now  func() time.Time
	mono bool // ref came from time.Now and carries a monotonic reading
}

// New returns a started timer.
func New() *Timer {
	t := &Timer{}
	t.Start()
	return t
}

// newWithClock is used by tests to drive the timer from a fake clock.
func newWithClock(now func() time.Time) *Timer {
	t := &Timer{now: now}
	t.Start()
	return t
}

func (t *Timer) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Start (re)arms the timer at the current instant.
func (t *Timer) Start() {
	t.ref = t.clock()
	t.mono = t.now == nil
}

// Elapsed returns the duration since Start. It uses the monotonic clock
// when available and never returns a negative value.
func (t *Timer) Elapsed() time.Duration {
	d := t.clock().Sub(t.ref)
	if d < 0 {
		return 0
	}
	return d
}

// ElapsedMS returns whole milliseconds since Start.
func (t *Timer) ElapsedMS() uint64 {
	if t.mono {
		return uint64(t.Elapsed() / time.Millisecond)
	}
	return elapsedMillis(t.ref, t.clock())
}

// Remaining returns how many milliseconds of budgetMS are left, or 0 once
// the budget is spent.
func (t *Timer) Remaining(budgetMS uint) uint {
	el := t.ElapsedMS()
	if el >= uint64(budgetMS) {
		return 0
	}
	return budgetMS - uint(el)
}

// elapsedMillis splits both wall-clock instants into seconds and
// sub-second parts and borrows a full second when the current sub-second
// part is smaller than the reference one. A clock stepped back reads as 0.
func elapsedMillis(ref, now time.Time) uint64 {
	sec := now.Unix() - ref.Unix()
	nsec := int64(now.Nanosecond()) - int64(ref.Nanosecond())
	if nsec < 0 {
		nsec += int64(time.Second)
		sec--
	}
	if sec < 0 {
		return 0
	}
	return uint64(sec)*1000 + uint64(nsec)/uint64(time.Millisecond)
}

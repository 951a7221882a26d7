// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquisition

import "sync/atomic"

// Stats counts loop outcomes. Counters are atomic so a status endpoint can
// read them while the loop runs.
type Stats struct {
	ticks      atomic.Uint64
	idle       atomic.Uint64
	frames     atomic.Uint64
	malformed  atomic.Uint64
	timeouts   atomic.Uint64
	overflows  atomic.Uint64
	readErrors atomic.Uint64
	lastSeq    atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Ticks      uint64 `json:"ticks"`
	Idle       uint64 `json:"idle"`
	Frames     uint64 `json:"frames"`
	Malformed  uint64 `json:"malformed"`
	Timeouts   uint64 `json:"timeouts"`
	Overflows  uint64 `json:"overflows"`
	ReadErrors uint64 `json:"read_errors"`
	LastSeq    int64  `json:"last_seq"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Ticks:      s.ticks.Load(),
		Idle:       s.idle.Load(),
		Frames:     s.frames.Load(),
		Malformed:  s.malformed.Load(),
		Timeouts:   s.timeouts.Load(),
		Overflows:  s.overflows.Load(),
		ReadErrors: s.readErrors.Load(),
		LastSeq:    s.lastSeq.Load(),
	}
}

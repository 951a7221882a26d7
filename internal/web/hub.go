// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package web serves the latest attitude over HTTP and streams every update
// to websocket clients.
package web

import (
	"sync"
	"time"

	"github.com/relabs-tech/serial_ahrs/internal/acquisition"
	"github.com/relabs-tech/serial_ahrs/internal/imu"
	"github.com/relabs-tech/serial_ahrs/internal/orientation"
)

// Snapshot is the merged latest state. Parts that were never received are
// nil.
type Snapshot struct {
	Pose       *orientation.Pose       `json:"pose,omitempty"`
	Sample     *imu.Sample             `json:"sample,omitempty"`
	Quaternion *orientation.Quaternion `json:"quaternion,omitempty"`
	Updated    time.Time               `json:"updated"`
}

// Hub keeps the most recent snapshot and fans updates out to subscribers.
// Slow subscribers miss updates rather than block the publisher. A nil
// *Hub is inert.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Snapshot
	nextID int
	last   Snapshot
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Snapshot)}
}

// Subscribe registers a listener. If a snapshot exists it is delivered
// immediately.
func (h *Hub) Subscribe(buffer int) (int, <-chan Snapshot) {
	if h == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 4
	}
	ch := make(chan Snapshot, buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	if !h.last.Updated.IsZero() {
		ch <- h.last
	}
	return id, ch
}

// Unsubscribe removes and closes a listener.
func (h *Hub) Unsubscribe(id int) {
	if h == nil {
		return
	}
	h.mu.Lock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

// Subscribers is the number of active listeners.
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Last returns the latest snapshot; ok is false before the first update.
func (h *Hub) Last() (Snapshot, bool) {
	if h == nil {
		return Snapshot{}, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last, !h.last.Updated.IsZero()
}

// Publish implements acquisition.Publisher.
func (h *Hub) Publish(r acquisition.Reading) {
	h.update(r.At, func(s *Snapshot) {
		s.Pose = &r.Pose
		s.Sample = &r.Sample
		s.Quaternion = &r.Quaternion
	})
}

// UpdatePose merges a pose received on its own (e.g. from MQTT).
func (h *Hub) UpdatePose(p orientation.Pose) {
	h.update(time.Time{}, func(s *Snapshot) { s.Pose = &p })
}

// UpdateSample merges a raw sample received on its own.
func (h *Hub) UpdateSample(smp imu.Sample) {
	h.update(time.Time{}, func(s *Snapshot) { s.Sample = &smp })
}

// UpdateQuaternion merges a quaternion received on its own.
func (h *Hub) UpdateQuaternion(q orientation.Quaternion) {
	h.update(time.Time{}, func(s *Snapshot) { s.Quaternion = &q })
}

func (h *Hub) update(at time.Time, apply func(*Snapshot)) {
	if h == nil {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	apply(&h.last)
	h.last.Updated = at
	// Sending under the lock keeps Unsubscribe from closing a channel
	// mid-send; sends never block.
	for _, ch := range h.subs {
		select {
		case ch <- h.last:
		default:
		}
	}
}

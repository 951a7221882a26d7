// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquisition

import (
	"time"

	"github.com/relabs-tech/serial_ahrs/internal/imu"
	"github.com/relabs-tech/serial_ahrs/internal/orientation"
)

// Reading is what the loop publishes for every decoded frame.
type Reading struct {
	Sample     imu.Sample             `json:"sample"`
	Pose       orientation.Pose       `json:"pose"`
	Quaternion orientation.Quaternion `json:"quaternion"`
	At         time.Time              `json:"at"`
}

// Publisher receives readings. Publish must not block the loop for long;
// failures are the publisher's to log.
type Publisher interface {
	Publish(Reading)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Reading)

func (f PublisherFunc) Publish(r Reading) { f(r) }

// Publishers fans a reading out to every element in order.
type Publishers []Publisher

func (ps Publishers) Publish(r Reading) {
	for _, p := range ps {
		if p != nil {
			p.Publish(r)
		}
	}
}

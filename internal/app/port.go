// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/serial_ahrs/internal/config"
	"github.com/relabs-tech/serial_ahrs/internal/serial"
)

// openPort opens the configured device. Missing or busy devices are retried
// every cfg.Reconnect until ctx ends; other failures (bad baud, a path that
// is not a tty) are returned at once. After opening, stale input that
// piled up in the driver is flushed once the line has settled.
func openPort(ctx context.Context, cfg config.SerialConfig) (*serial.Port, error) {
	port, err := serial.NewPort(serial.Options{Driver: cfg.Driver})
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		err = port.Open(cfg.Device, cfg.Baud)
		if err == nil {
			break
		}
		if cfg.Reconnect <= 0 || !serial.Retryable(err) {
			return nil, err
		}
		if attempt == 1 {
			log.Warnf("serial: %v; retrying every %s", err, cfg.Reconnect)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.Reconnect):
		}
	}

	if cfg.Settle > 0 {
		time.Sleep(cfg.Settle)
	}
	if err := port.FlushInput(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("serial: flush after open: %w", err)
	}
	log.Infof("serial: %s open at %d baud (%s driver)", cfg.Device, cfg.Baud, port.Driver())
	return port, nil
}

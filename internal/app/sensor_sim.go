// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/serial_ahrs/internal/config"
	"github.com/relabs-tech/serial_ahrs/internal/sim"
)

// RunSensorSim writes synthetic frames to cfg.Sim.Device at cfg.Sim.Rate
// until ctx is done. Pointed at one end of a virtual null-modem pair it
// stands in for the real board.
func RunSensorSim(ctx context.Context, cfg *config.Config) error {
	serialCfg := cfg.Serial
	serialCfg.Device = cfg.Sim.Device
	port, err := openPort(ctx, serialCfg)
	if err != nil {
		return err
	}
	defer port.Close()

	board := sim.NewBoard(cfg.Sim.Rate)
	board.Noise = cfg.Sim.Noise
	log.Infof("sim: streaming frames to %s at %.0f Hz (noise %.3f)", cfg.Sim.Device, cfg.Sim.Rate, cfg.Sim.Noise)

	return board.Stream(ctx, port)
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/serial_ahrs/internal/acquisition"
	"github.com/relabs-tech/serial_ahrs/internal/config"
	"github.com/relabs-tech/serial_ahrs/internal/orientation"
	"github.com/relabs-tech/serial_ahrs/internal/web"
)

// ProducerOptions selects the outputs of RunProducer.
type ProducerOptions struct {
	// MQTT publishes readings to the broker.
	MQTT bool
	// Web serves the embedded dashboard API on cfg.Web.Listen.
	Web bool
}

// newLoop wires a filter and the acquisition loop from cfg.
func newLoop(src acquisition.LineReader, cfg *config.Config, pub acquisition.Publisher) *acquisition.Loop {
	filter := orientation.NewMadgwick(cfg.Filter.Beta, cfg.Filter.SampleFreq)
	opts := acquisition.Options{
		Interval:      cfg.Loop.Interval,
		ReadTimeout:   cfg.Loop.ReadTimeout,
		MaxLine:       cfg.Loop.MaxLine,
		Delimiter:     cfg.DelimiterByte(),
		StatsInterval: cfg.Loop.StatsInterval,
		VariableDt:    cfg.Filter.VariableDt,
	}
	if cfg.Calibration.Enabled {
		cal := cfg.Calibration.Calibration
		opts.Calibration = &cal
	}
	return acquisition.New(src, filter, pub, opts)
}

// RunProducer reads the board on cfg.Serial, runs the filter and publishes
// every reading until ctx is done.
func RunProducer(ctx context.Context, cfg *config.Config, po ProducerOptions) error {
	log.Infof("starting serial AHRS producer on %s", cfg.Serial.Device)

	var pubs acquisition.Publishers
	if po.MQTT {
		client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		pubs = append(pubs, NewMQTTPublisher(client, cfg.MQTT))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var hub *web.Hub
	webErr := make(chan error, 1)
	if po.Web {
		hub = web.NewHub()
		pubs = append(pubs, hub)
	}

	port, err := openPort(ctx, cfg.Serial)
	if err != nil {
		return err
	}
	defer port.Close()

	loop := newLoop(port, cfg, pubs)
	if po.Web {
		srv := web.NewServer(hub, web.WithStats(func() any { return loop.Stats() }))
		go func() { webErr <- srv.ListenAndServe(ctx, cfg.Web.Listen) }()
	}

	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(ctx) }()

	select {
	case err := <-webErr:
		cancel()
		<-loopErr
		return err
	case err := <-loopErr:
		cancel()
		if po.Web {
			<-webErr
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

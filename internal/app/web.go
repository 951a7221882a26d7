// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/serial_ahrs/internal/config"
	"github.com/relabs-tech/serial_ahrs/internal/web"
)

// RunWeb subscribes to the producer's MQTT topics and serves the latest
// values over HTTP and websocket. staticDir, if set, is served on /.
func RunWeb(ctx context.Context, cfg *config.Config, staticDir string) error {
	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID+"-web")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	hub := web.NewHub()
	if err := subscribeJSON(client, cfg.MQTT.TopicPose, cfg.MQTT.QoS, hub.UpdatePose); err != nil {
		return err
	}
	if err := subscribeJSON(client, cfg.MQTT.TopicIMU, cfg.MQTT.QoS, hub.UpdateSample); err != nil {
		return err
	}
	if err := subscribeJSON(client, cfg.MQTT.TopicQuaternion, cfg.MQTT.QoS, hub.UpdateQuaternion); err != nil {
		return err
	}

	var opts []web.Option
	if staticDir != "" {
		opts = append(opts, web.WithStatic(staticDir))
	}
	err = web.NewServer(hub, opts...).ListenAndServe(ctx, cfg.Web.Listen)
	log.Infof("web: stopped")
	return err
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/serial_ahrs/internal/config"
	"github.com/relabs-tech/serial_ahrs/internal/imu"
	"github.com/relabs-tech/serial_ahrs/internal/orientation"
)

func formatPose(p orientation.Pose) string {
	return fmt.Sprintf("[POSE] ROLL=%7.2f  PITCH=%7.2f  YAW=%7.2f", p.Roll, p.Pitch, p.Yaw)
}

func formatSample(s imu.Sample) string {
	return fmt.Sprintf("[IMU ] #%-6d a=%s  g=%s  m=%s  t=%.3f",
		s.Sequence, formatVec(s.Accel), formatVec(s.Gyro), formatVec(s.Mag), s.Time)
}

func formatQuaternion(q orientation.Quaternion) string {
	return fmt.Sprintf("[QUAT] %+.4f %+.4f %+.4f %+.4f", q.Q0, q.Q1, q.Q2, q.Q3)
}

func formatVec(v [3]float32) string {
	return fmt.Sprintf("(%8.3f %8.3f %8.3f)", v[0], v[1], v[2])
}

// RunConsoleMQTT prints every pose, sample and quaternion received from the
// producer to out until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer) error {
	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID+"-console")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// Callbacks run on paho's goroutines; keep lines whole.
	var mu sync.Mutex
	emit := func(s string) {
		mu.Lock()
		fmt.Fprintln(out, s)
		mu.Unlock()
	}

	if err := subscribeJSON(client, cfg.MQTT.TopicPose, cfg.MQTT.QoS, func(p orientation.Pose) {
		emit(formatPose(p))
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, cfg.MQTT.TopicIMU, cfg.MQTT.QoS, func(s imu.Sample) {
		emit(formatSample(s))
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, cfg.MQTT.TopicQuaternion, cfg.MQTT.QoS, func(q orientation.Quaternion) {
		emit(formatQuaternion(q))
	}); err != nil {
		return err
	}

	<-ctx.Done()
	log.Infof("console: shutting down")
	return nil
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/serial_ahrs/internal/acquisition"
	"github.com/relabs-tech/serial_ahrs/internal/config"
)

// publishWait bounds how long one publish may hold up the acquisition loop.
const publishWait = 100 * time.Millisecond

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", broker, err)
	}
	log.Infof("mqtt: connected to %s as %s", broker, clientID)
	return client, nil
}

// mqttPublisher is the subset of mqtt.Client used to publish.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher sends every reading as three JSON messages: the pose, the
// raw sample and the quaternion, each on its configured topic.
type MQTTPublisher struct {
	client mqttPublisher
	cfg    config.MQTTConfig
}

func NewMQTTPublisher(client mqttPublisher, cfg config.MQTTConfig) *MQTTPublisher {
	return &MQTTPublisher{client: client, cfg: cfg}
}

// Publish implements acquisition.Publisher. Errors are logged, never
// returned.
func (p *MQTTPublisher) Publish(r acquisition.Reading) {
	p.send(p.cfg.TopicPose, r.Pose)
	p.send(p.cfg.TopicIMU, r.Sample)
	p.send(p.cfg.TopicQuaternion, r.Quaternion)
}

func (p *MQTTPublisher) send(topic string, v any) {
	if topic == "" {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		log.Warnf("mqtt: json marshal error (%s): %v", topic, err)
		return
	}
	token := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload)
	if !token.WaitTimeout(publishWait) {
		log.Debugf("mqtt: publish to %s still pending", topic)
		return
	}
	if err := token.Error(); err != nil {
		log.Warnf("mqtt: publish error (%s): %v", topic, err)
	}
}

// subscribeJSON subscribes to topic and hands each decoded payload to fn.
func subscribeJSON[T any](client mqtt.Client, topic string, qos byte, fn func(T)) error {
	token := client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Warnf("mqtt: %s payload unmarshal error: %v", topic, err)
			return
		}
		fn(v)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", topic, err)
	}
	log.Infof("mqtt: subscribed to %s", topic)
	return nil
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/orientation_tracker/internal/display"
	imu_raw "github.com/relabs-tech/orientation_tracker/internal/imu"
	"github.com/relabs-tech/orientation_tracker/internal/listener"
	"github.com/relabs-tech/orientation_tracker/internal/orientation"
	"github.com/relabs-tech/orientation_tracker/internal/tracker"
)

// mqttTimeout bounds every wait on a broker acknowledgement.
const mqttTimeout = 2 * time.Second

// mqttClient is the part of mqtt.Client used here.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

func waitToken(token mqtt.Token) error {
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("timed out after %s", mqttTimeout)
	}
	return token.Error()
}

// OrientationEvent is the JSON payload published on every change.
type OrientationEvent struct {
	Orientation orientation.Orientation `json:"orientation"`
	Rotation    int                     `json:"rotation"`
	Time        string                  `json:"time"`
}

// MQTTObserver publishes orientation changes as retained JSON messages.
type MQTTObserver struct {
	client       mqttClient
	outputTopic  string
	previewTopic string
	now          func() time.Time
}

var _ tracker.Observer = (*MQTTObserver)(nil)

func NewMQTTObserver(client mqttClient, outputTopic, previewTopic string) *MQTTObserver {
	return &MQTTObserver{
		client:       client,
		outputTopic:  outputTopic,
		previewTopic: previewTopic,
		now:          time.Now,
	}
}

func (o *MQTTObserver) OnOutputOrientationChanged(or orientation.Orientation) {
	o.publish(o.outputTopic, or)
}

func (o *MQTTObserver) OnPreviewOrientationChanged(or orientation.Orientation) {
	o.publish(o.previewTopic, or)
}

func (o *MQTTObserver) publish(topic string, or orientation.Orientation) {
	payload, err := json.Marshal(OrientationEvent{
		Orientation: or,
		Rotation:    int(or.Rotation()),
		Time:        o.now().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("mqtt: json marshal error (%s): %v", topic, err)
		return
	}
	if err := waitToken(o.client.Publish(topic, 0, true, payload)); err != nil {
		log.Printf("mqtt: publish error (%s): %v", topic, err)
	}
}

// DisplayReport is the payload of <prefix>/<id>/rotation.
type DisplayReport struct {
	Rotation int `json:"rotation"`
}

// MQTTDisplaySource keeps a display.Manager in sync with rotation reports
// published on <prefix>/<id>/rotation. An empty (cleared retained) payload
// removes the display.
type MQTTDisplaySource struct {
	*display.Manager

	client mqttClient
	prefix string
}

// NewMQTTDisplaySource creates the source with the given displays known at 0°.
func NewMQTTDisplaySource(client mqttClient, prefix string, known []string) *MQTTDisplaySource {
	m := display.NewManager()
	for _, id := range known {
		m.AddDisplay(id, orientation.Rotation0)
	}
	return &MQTTDisplaySource{
		Manager: m,
		client:  client,
		prefix:  strings.TrimSuffix(prefix, "/"),
	}
}

func (s *MQTTDisplaySource) topicFilter() string {
	return s.prefix + "/+/rotation"
}

// Start subscribes to display reports. Reports are applied even while the
// tracker is not listening, so the registry always holds current rotations.
func (s *MQTTDisplaySource) Start() error {
	if err := waitToken(s.client.Subscribe(s.topicFilter(), 0, s.handleMessage)); err != nil {
		return fmt.Errorf("display: subscribe %s: %w", s.topicFilter(), err)
	}
	log.Printf("display: subscribed to %s", s.topicFilter())
	return nil
}

func (s *MQTTDisplaySource) Stop() {
	if err := waitToken(s.client.Unsubscribe(s.topicFilter())); err != nil {
		log.Printf("display: unsubscribe %s: %v", s.topicFilter(), err)
	}
}

func (s *MQTTDisplaySource) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	id, ok := displayIDFromTopic(s.prefix, msg.Topic())
	if !ok {
		log.Printf("display: ignoring message on %s", msg.Topic())
		return
	}

	payload := bytes.TrimSpace(msg.Payload())
	if len(payload) == 0 {
		s.RemoveDisplay(id)
		return
	}

	var report DisplayReport
	if err := json.Unmarshal(payload, &report); err != nil {
		log.Printf("display: %s unmarshal error: %v", id, err)
		return
	}
	r, err := orientation.RotationFromDegrees(report.Rotation)
	if err != nil {
		log.Printf("display: %s: %v", id, err)
		return
	}
	s.SetRotation(id, r)
}

func displayIDFromTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/rotation")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// MQTTTiltSource derives device tilt from raw IMU samples published by an
// IMU producer. The topic is only subscribed while the source is enabled.
type MQTTTiltSource struct {
	client mqttClient
	topic  string

	mu         sync.Mutex
	subscribed bool

	listener listener.Gate[int]
}

var _ tracker.TiltSource = (*MQTTTiltSource)(nil)

func NewMQTTTiltSource(client mqttClient, topic string) *MQTTTiltSource {
	return &MQTTTiltSource{client: client, topic: topic}
}

func (s *MQTTTiltSource) EnableTiltSource(fn func(degrees int)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listener.Set(fn)
	if s.subscribed {
		return nil
	}
	if err := waitToken(s.client.Subscribe(s.topic, 0, s.handleMessage)); err != nil {
		s.listener.Clear()
		return fmt.Errorf("tilt: subscribe %s: %w", s.topic, err)
	}
	s.subscribed = true
	log.Printf("tilt: subscribed to %s", s.topic)
	return nil
}

func (s *MQTTTiltSource) DisableTiltSource() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listener.Clear()
	if !s.subscribed {
		return
	}
	s.subscribed = false
	if err := waitToken(s.client.Unsubscribe(s.topic)); err != nil {
		log.Printf("tilt: unsubscribe %s: %v", s.topic, err)
	}
}

func (s *MQTTTiltSource) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var raw imu_raw.IMURaw
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		log.Printf("tilt: imu unmarshal error: %v", err)
		return
	}
	deg, ok := raw.Accel().Tilt()
	if !ok {
		return
	}
	s.listener.Deliver(deg)
}

// modeSetter is the part of the tracker that mode commands drive.
type modeSetter interface {
	SetTargetMode(mode orientation.OutputMode) error
}

// SubscribeModeCommands switches the tracker's output mode on every message
// on topic. The payload is either a bare mode name or {"mode":"..."}.
func SubscribeModeCommands(client mqttClient, topic string, tr modeSetter) error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		mode, err := parseModeCommand(msg.Payload())
		if err != nil {
			log.Printf("mode: %v", err)
			return
		}
		if err := tr.SetTargetMode(mode); err != nil {
			log.Printf("mode: %v", err)
		}
	}
	if err := waitToken(client.Subscribe(topic, 0, handler)); err != nil {
		return fmt.Errorf("mode: subscribe %s: %w", topic, err)
	}
	log.Printf("mode: subscribed to %s", topic)
	return nil
}

type modeCommand struct {
	Mode string `json:"mode"`
}

func parseModeCommand(payload []byte) (orientation.OutputMode, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return orientation.ModeDevice, fmt.Errorf("empty mode command")
	}
	if payload[0] == '{' {
		var cmd modeCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return orientation.ModeDevice, fmt.Errorf("mode command unmarshal error: %w", err)
		}
		return orientation.ParseOutputMode(cmd.Mode)
	}
	return orientation.ParseOutputMode(string(payload))
}

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/orientation_tracker/internal/config"
	imu_raw "github.com/relabs-tech/orientation_tracker/internal/imu"
)

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeOrientation(client, cfg.TopicOrientationOutput, "OUT "); err != nil {
		return err
	}
	if err := subscribeOrientation(client, cfg.TopicOrientationPreview, "PREV"); err != nil {
		return err
	}

	// Raw IMU samples, with the tilt they imply
	imuToken := client.Subscribe(cfg.TopicIMULeft, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s imu_raw.IMURaw
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: imu unmarshal error: %v", err)
			return
		}

		tilt := "flat"
		if deg, ok := s.Accel().Tilt(); ok {
			tilt = fmt.Sprintf("%3d°", deg)
		}
		fmt.Printf(
			"[IMU ] ax=%6d ay=%6d az=%6d  gx=%6d gy=%6d gz=%6d  tilt=%s\n",
			s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz, tilt,
		)
	})
	imuToken.Wait()
	if imuToken.Error() != nil {
		return imuToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicIMULeft)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func subscribeOrientation(client mqtt.Client, topic, label string) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev OrientationEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("console: %s unmarshal error: %v", topic, err)
			return
		}
		fmt.Printf("[%s] %-20s rotation=%3d  at %s\n", label, ev.Orientation, ev.Rotation, ev.Time)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", topic)
	return nil
}

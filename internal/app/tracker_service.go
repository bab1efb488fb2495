// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/orientation_tracker/internal/config"
	"github.com/relabs-tech/orientation_tracker/internal/orientation"
	"github.com/relabs-tech/orientation_tracker/internal/sensors"
	"github.com/relabs-tech/orientation_tracker/internal/tracker"
)

// RunTracker wires the display and tilt sources into a tracker and
// publishes its output until SIGINT/SIGTERM.
func RunTracker() error {
	cfg := config.Get()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Handlers publish and switch modes, so they must not block the
	// client's router.
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDTracker).
		SetOrderMatters(false).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("tracker: MQTT connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("tracker: connected to MQTT broker at %s", cfg.MQTTBroker)

	displays := NewMQTTDisplaySource(client, cfg.TopicDisplayPrefix, cfg.DisplayIDs)
	if err := displays.Start(); err != nil {
		return err
	}
	defer displays.Stop()

	tilt, err := newTiltSource(ctx, cfg, client)
	if err != nil {
		return err
	}

	hub := NewHub()
	observers := tracker.MultiObserver{
		tracker.LogObserver{},
		NewMQTTObserver(client, cfg.TopicOrientationOutput, cfg.TopicOrientationPreview),
		hub,
	}
	if cfg.OLEDEnabled {
		dev, closeBus, err := OpenOLED(cfg.OLEDI2CBus, cfg.OLEDI2CAddr)
		if err != nil {
			// The status screen is optional.
			log.Printf("tracker: OLED disabled: %v", err)
		} else {
			defer closeBus()
			observers = append(observers, NewOLEDObserver(dev))
		}
	}

	tr := tracker.New(tracker.Options{
		Display:   displays,
		Tilt:      tilt,
		Observer:  observers,
		DisplayID: cfg.DisplayID,
	})
	defer tr.Close()

	if err := tr.SetTargetMode(cfg.OutputMode); err != nil {
		log.Printf("tracker: initial mode %s: %v", cfg.OutputMode, err)
	}

	if err := SubscribeModeCommands(client, cfg.TopicOrientationMode, tr); err != nil {
		return err
	}

	webErr := make(chan error, 1)
	if cfg.WebServerPort > 0 {
		srv := NewWebServer(tr, hub, cfg.WebStaticDir)
		go func() {
			webErr <- srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.WebServerPort))
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-webErr:
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
	}

	log.Println("tracker: shutting down")
	return nil
}

func newTiltSource(ctx context.Context, cfg *config.Config, client mqtt.Client) (tracker.TiltSource, error) {
	interval := time.Duration(cfg.IMUSampleInterval) * time.Millisecond

	switch cfg.TiltSource {
	case config.TiltSourceIMU:
		src, err := sensors.NewIMUSource("left", cfg.IMULeftSPIDevice, cfg.IMULeftCSPin)
		if err != nil {
			return nil, err
		}
		log.Printf("tracker: tilt from IMU on %s", cfg.IMULeftSPIDevice)
		return sensors.NewTiltPoller(src, interval), nil

	case config.TiltSourceMock:
		log.Println("tracker: tilt from mock source")
		return sensors.NewTiltPoller(orientation.NewMockSource(), interval), nil

	case config.TiltSourceNMEA:
		src := sensors.NewSerialAttitudeSource(cfg.NMEASerialPort, uint(cfg.NMEABaudRate))
		go func() {
			if err := src.Run(ctx); err != nil {
				log.Printf("tracker: attitude sensor stopped: %v", err)
			}
		}()
		log.Printf("tracker: tilt from NMEA attitude sensor on %s", cfg.NMEASerialPort)
		return src, nil

	case config.TiltSourceMQTT:
		log.Printf("tracker: tilt from %s", cfg.TopicIMULeft)
		return NewMQTTTiltSource(client, cfg.TopicIMULeft), nil
	}
	return nil, fmt.Errorf("unknown tilt source %q", cfg.TiltSource)
}

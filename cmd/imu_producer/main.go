// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/orientation_tracker/internal/app"
	"github.com/relabs-tech/orientation_tracker/internal/config"
)

func main() {
	configPath := flag.String("config", "./orientation_config.txt", "path to configuration file")
	mock := flag.Bool("mock", false, "publish simulated samples instead of reading the IMU")
	flag.Parse()

	log.Println("starting orientation IMU producer (IMU → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunIMUProducer(*mock); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

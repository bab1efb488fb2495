// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/orientation_tracker/internal/app"
)

func main() {
	cycle := flag.Duration("cycle", 0, "switch output mode at this interval (0 stays in device mode)")
	flag.Parse()

	log.Println("starting orientation tracker (mock console)")

	if err := app.RunMockConsole(*cycle); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

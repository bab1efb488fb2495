// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/orientation_tracker/internal/display"
	"github.com/relabs-tech/orientation_tracker/internal/orientation"
	"github.com/relabs-tech/orientation_tracker/internal/sensors"
	"github.com/relabs-tech/orientation_tracker/internal/tracker"
)

// RunMockConsole runs the tracker against a simulated device that keeps
// turning, and prints every orientation change. No broker or hardware is
// needed. The mode is cycled every modeEvery (0 keeps ModeDevice).
func RunMockConsole(modeEvery time.Duration) error {
	displays := display.NewManager()
	displays.AddDisplay("mock", orientation.Rotation0)

	tilt := sensors.NewTiltPoller(orientation.NewMockSource(), 100*time.Millisecond)

	tr := tracker.New(tracker.Options{
		Display: displays,
		Tilt:    tilt,
		Observer: tracker.ObserverFuncs{
			Output: func(o orientation.Orientation) {
				fmt.Printf("[OUT ] %-20s rotation=%3d\n", o, int(o.Rotation()))
			},
			Preview: func(o orientation.Orientation) {
				fmt.Printf("[PREV] %-20s rotation=%3d\n", o, int(o.Rotation()))
			},
		},
	})
	defer tr.Close()

	if err := tr.SetTargetMode(orientation.ModeDevice); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var cycle <-chan time.Time
	if modeEvery > 0 {
		ticker := time.NewTicker(modeEvery)
		defer ticker.Stop()
		cycle = ticker.C
	}

	mode := orientation.ModeDevice
	for {
		select {
		case <-sigCh:
			log.Println("console: shutting down")
			return nil
		case <-cycle:
			mode = (mode + 1) % (orientation.ModeLandscapeRight + 1)
			fmt.Printf("[MODE] %s\n", mode)
			if err := tr.SetTargetMode(mode); err != nil {
				log.Printf("console: set mode %s: %v", mode, err)
			}
		}
	}
}

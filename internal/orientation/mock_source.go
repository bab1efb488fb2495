// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"
)

const standardGravity = 9.80665

type mockSource struct {
	start time.Time
	now   func() time.Time
	// degrees per second the simulated device turns by
	rate float64
}

// NewMockSource creates a mock accelerometer that slowly turns the device
// around in the screen plane, one full turn every 24 seconds.
func NewMockSource() Source {
	return &mockSource{start: time.Now(), now: time.Now, rate: 15}
}

func (m *mockSource) Next() (Sample, error) {
	elapsed := m.now().Sub(m.start).Seconds()
	tilt := math.Mod(elapsed*m.rate, 360)

	// Inverse of TiltFromAccel: the device is turned by tilt degrees.
	angle := (90 - tilt) * math.Pi / 180.0
	return Sample{
		Ax: -standardGravity * math.Cos(angle),
		Ay: standardGravity * math.Sin(angle),
		Az: 0.5 * math.Sin(elapsed),
	}, nil
}

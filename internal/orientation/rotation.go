// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import "fmt"

// Rotation is a quantized screen or device rotation in degrees.
// Only the four right angles are valid.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// Valid reports whether r is one of the four right angles.
func (r Rotation) Valid() bool {
	switch r {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		return true
	}
	return false
}

func (r Rotation) String() string {
	return fmt.Sprintf("%d°", int(r))
}

// RotationFromDegrees converts an already discrete rotation (as reported by a
// display) into a Rotation. Anything other than 0/90/180/270 is rejected.
func RotationFromDegrees(deg int) (Rotation, error) {
	r := Rotation(deg)
	if !r.Valid() {
		return Rotation0, fmt.Errorf("rotation must be 0, 90, 180 or 270, got %d", deg)
	}
	return r, nil
}

// Normalize maps any angle in degrees into [0, 360).
func Normalize(deg int) int {
	d := deg % 360
	if d < 0 {
		d += 360
	}
	return d
}

// Quantize maps a device tilt reading in degrees to a discrete rotation.
//
// Tilt sensors report the angle the device is turned by, which is the
// opposite of the rotation the screen content needs:
//
//	[45, 135)            -> 270°
//	[135, 225)           -> 180°
//	[225, 315)           -> 90°
//	[315, 360) ∪ [0, 45) -> 0°
//
// Input outside [0, 360) is normalized first.
func Quantize(deg int) Rotation {
	d := Normalize(deg)
	switch {
	case d >= 45 && d < 135:
		return Rotation270
	case d >= 135 && d < 225:
		return Rotation180
	case d >= 225 && d < 315:
		return Rotation90
	default:
		return Rotation0
	}
}

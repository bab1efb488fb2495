package orientation

import (
	"math"
)

// Sample is a single accelerometer reading, in any unit.
type Sample struct {
	Ax float64 `json:"ax"`
	Ay float64 `json:"ay"`
	Az float64 `json:"az"`
}

// Source is anything that can provide accelerometer samples over time:
// mock source, SPI IMU, a replay, etc.
type Source interface {
	Next() (Sample, error)
}

// TiltFromAccel computes how far the device is turned in the screen plane,
// in degrees [0, 360), from the gravity vector:
//
//	upright        (0, +g, 0) ->   0
//	right side up  (-g, 0, 0) ->  90
//	upside down    (0, -g, 0) -> 180
//	left side up   (+g, 0, 0) -> 270
//
// ok is false when the device lies too flat for the angle to mean anything
// (the in-plane component is less than half of the Z component).
func TiltFromAccel(ax, ay, az float64) (deg int, ok bool) {
	// Accelerometers report the reaction to gravity; flip it to get "down".
	x, y, z := -ax, -ay, -az

	magnitude := x*x + y*y
	if magnitude*4 < z*z || magnitude == 0 {
		return 0, false
	}

	angle := math.Atan2(-y, x) * 180.0 / math.Pi
	return Normalize(90 - int(math.Round(angle))), true
}

// Tilt is a convenience wrapper of TiltFromAccel for a Sample.
func (s Sample) Tilt() (int, bool) {
	return TiltFromAccel(s.Ax, s.Ay, s.Az)
}

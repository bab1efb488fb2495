package imu

import "github.com/relabs-tech/orientation_tracker/internal/orientation"

// IMURaw represents a single raw IMU sample.
type IMURaw struct {
	Source string `json:"source"` // "left" or "right"

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// Accel returns the accelerometer part of the sample.
func (r IMURaw) Accel() orientation.Sample {
	return orientation.Sample{Ax: float64(r.Ax), Ay: float64(r.Ay), Az: float64(r.Az)}
}

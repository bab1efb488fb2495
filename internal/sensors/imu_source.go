// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	imu_raw "github.com/relabs-tech/orientation_tracker/internal/imu"
	"github.com/relabs-tech/orientation_tracker/internal/orientation"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// IMURawReader defines the interface for reading raw IMU data.
type IMURawReader interface {
	ReadRaw() (imu_raw.IMURaw, error)
}

// IMUSource is an MPU9250 on SPI. It serves both raw samples (for the
// producer) and accelerometer samples (for tilt tracking).
type IMUSource struct {
	name string // "left" or "right" for logging
	imu  *mpu9250.MPU9250
}

var (
	_ IMURawReader       = (*IMUSource)(nil)
	_ orientation.Source = (*IMUSource)(nil)
)

// NewIMUSource initializes an MPU9250 over SPI, then self-tests and
// calibrates it. Self-test and calibration failures are logged, not fatal.
func NewIMUSource(name, spiDev, csPin string) (*IMUSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: periph host init: %w", name, err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("%s IMU: CS pin %q not found", name, csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: SPI transport (%s): %w", name, spiDev, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: device creation: %w", name, err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: initialization: %w", name, err)
	}

	if _, err := dev.SelfTest(); err != nil {
		log.Printf("Warning: %s IMU self-test failed: %v", name, err)
	} else {
		log.Printf("%s IMU self-test passed", name)
	}

	if err := dev.Calibrate(); err != nil {
		log.Printf("Warning: %s IMU calibration failed: %v", name, err)
	} else {
		log.Printf("%s IMU calibration complete", name)
	}

	return &IMUSource{name: name, imu: dev}, nil
}

// ReadRaw reads accelerometer and gyroscope data from this IMU.
func (s *IMUSource) ReadRaw() (imu_raw.IMURaw, error) {
	ax, ay, az, err := s.readAccel()
	if err != nil {
		return imu_raw.IMURaw{}, err
	}

	gx, err := s.imu.GetRotationX()
	if err != nil {
		return imu_raw.IMURaw{}, fmt.Errorf("%s IMU gyro X: %w", s.name, err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return imu_raw.IMURaw{}, fmt.Errorf("%s IMU gyro Y: %w", s.name, err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return imu_raw.IMURaw{}, fmt.Errorf("%s IMU gyro Z: %w", s.name, err)
	}

	return imu_raw.IMURaw{
		Source: s.name,
		Ax:     ax,
		Ay:     ay,
		Az:     az,
		Gx:     gx,
		Gy:     gy,
		Gz:     gz,
	}, nil
}

// Next reads only the accelerometer. Raw counts are fine: tilt only needs
// the ratios between axes.
func (s *IMUSource) Next() (orientation.Sample, error) {
	ax, ay, az, err := s.readAccel()
	if err != nil {
		return orientation.Sample{}, err
	}
	return orientation.Sample{Ax: float64(ax), Ay: float64(ay), Az: float64(az)}, nil
}

func (s *IMUSource) readAccel() (ax, ay, az int16, err error) {
	if ax, err = s.imu.GetAccelerationX(); err != nil {
		return 0, 0, 0, fmt.Errorf("%s IMU accel X: %w", s.name, err)
	}
	if ay, err = s.imu.GetAccelerationY(); err != nil {
		return 0, 0, 0, fmt.Errorf("%s IMU accel Y: %w", s.name, err)
	}
	if az, err = s.imu.GetAccelerationZ(); err != nil {
		return 0, 0, 0, fmt.Errorf("%s IMU accel Z: %w", s.name, err)
	}
	return ax, ay, az, nil
}

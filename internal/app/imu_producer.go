package app

import (
	"encoding/json"
	"log"
	"math"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/orientation_tracker/internal/config"
	imu_raw "github.com/relabs-tech/orientation_tracker/internal/imu"
	"github.com/relabs-tech/orientation_tracker/internal/orientation"
	"github.com/relabs-tech/orientation_tracker/internal/sensors"
)

// accelCountsPerMS2 converts m/s² to MPU9250 counts at ±2g full scale.
const accelCountsPerMS2 = 16384 / 9.80665

// mockRawReader turns an orientation.Source into raw IMU samples.
type mockRawReader struct {
	src orientation.Source
}

func (m mockRawReader) ReadRaw() (imu_raw.IMURaw, error) {
	s, err := m.src.Next()
	if err != nil {
		return imu_raw.IMURaw{}, err
	}
	return imu_raw.IMURaw{
		Source: "mock",
		Ax:     toCounts(s.Ax),
		Ay:     toCounts(s.Ay),
		Az:     toCounts(s.Az),
	}, nil
}

func toCounts(v float64) int16 {
	c := math.Round(v * accelCountsPerMS2)
	return int16(max(math.MinInt16, min(math.MaxInt16, c)))
}

// RunIMUProducer publishes raw IMU samples to the IMU topic, where the
// tracker's MQTT tilt source picks them up.
func RunIMUProducer(useMock bool) error {
	log.Println("starting orientation IMU producer")

	cfg := config.Get()

	var reader sensors.IMURawReader
	if useMock {
		log.Println("using mock IMU source")
		reader = mockRawReader{src: orientation.NewMockSource()}
	} else {
		src, err := sensors.NewIMUSource("left", cfg.IMULeftSPIDevice, cfg.IMULeftCSPin)
		if err != nil {
			return err
		}
		log.Println("using left IMU")
		reader = src
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)

	log.Println("connected to MQTT, starting publish loop")

	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	var published int
	for t := range ticker.C {
		raw, err := reader.ReadRaw()
		if err != nil {
			log.Printf("error reading IMU: %v", err)
			continue
		}

		payload, err := json.Marshal(raw)
		if err != nil {
			log.Printf("imu marshal error: %v", err)
			continue
		}
		if token := client.Publish(cfg.TopicIMULeft, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (%s): %v", cfg.TopicIMULeft, token.Error())
			continue
		}

		// Log about once a second
		published++
		if published%max(1, 1000/cfg.IMUSampleInterval) == 0 {
			tilt := "flat"
			if deg, ok := raw.Accel().Tilt(); ok {
				tilt = orientation.Quantize(deg).String()
			}
			log.Printf("%s tick: accel ax=%d ay=%d az=%d | gyro gx=%d gy=%d gz=%d | tilt %s",
				t.Format(time.RFC3339),
				raw.Ax, raw.Ay, raw.Az,
				raw.Gx, raw.Gy, raw.Gz,
				tilt,
			)
		}
	}
	return nil
}

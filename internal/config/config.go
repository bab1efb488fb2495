package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/orientation_tracker/internal/orientation"
)

// Tilt source kinds.
const (
	TiltSourceIMU  = "imu"
	TiltSourceMQTT = "mqtt"
	TiltSourceNMEA = "nmea"
	TiltSourceMock = "mock"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDTracker  string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string

	// Topics
	TopicIMULeft            string
	TopicDisplayPrefix      string // display reports arrive on <prefix>/<id>/rotation
	TopicOrientationOutput  string
	TopicOrientationPreview string
	TopicOrientationMode    string

	// Tracking
	OutputMode orientation.OutputMode
	DisplayIDs []string // displays known at startup
	DisplayID  string   // display to follow, empty follows any
	TiltSource string   // "imu", "mqtt", "nmea" or "mock"

	// IMU Hardware
	IMULeftSPIDevice  string
	IMULeftCSPin      string
	IMUSampleInterval int // milliseconds

	// Serial attitude sensor
	NMEASerialPort string
	NMEABaudRate   int

	// Web Server (0 disables it)
	WebServerPort int
	WebStaticDir  string // empty serves only the API

	// OLED status display
	OLEDEnabled bool
	OLEDI2CBus  string
	OLEDI2CAddr uint16
}

// Package-level unexported variables for the singleton:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: InitGlobal only loads once.
//   - configMu: write lock for initialization, read lock for Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		MQTTClientIDTracker:     "orientation-tracker",
		MQTTClientIDProducer:    "orientation-imu-producer",
		MQTTClientIDConsole:     "orientation-console",
		TopicIMULeft:            "inertial/imu/left",
		TopicDisplayPrefix:      "inertial/display",
		TopicOrientationOutput:  "inertial/orientation/output",
		TopicOrientationPreview: "inertial/orientation/preview",
		TopicOrientationMode:    "inertial/orientation/mode",
		OutputMode:              orientation.ModeDevice,
		TiltSource:              TiltSourceMQTT,
		IMULeftCSPin:            "18",
		IMUSampleInterval:       50,
		NMEABaudRate:            4800,
		WebServerPort:           8080,
		OLEDI2CBus:              "",
		OLEDI2CAddr:             0x3C,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default. Blank lines and lines
// starting with '#' are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_TRACKER":
		c.MQTTClientIDTracker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_IMU_LEFT":
		c.TopicIMULeft = value
	case "TOPIC_DISPLAY_PREFIX":
		c.TopicDisplayPrefix = strings.TrimSuffix(value, "/")
	case "TOPIC_ORIENTATION_OUTPUT":
		c.TopicOrientationOutput = value
	case "TOPIC_ORIENTATION_PREVIEW":
		c.TopicOrientationPreview = value
	case "TOPIC_ORIENTATION_MODE":
		c.TopicOrientationMode = value

	// Tracking
	case "OUTPUT_MODE":
		mode, err := orientation.ParseOutputMode(value)
		if err != nil {
			return fmt.Errorf("invalid OUTPUT_MODE: %w", err)
		}
		c.OutputMode = mode
	case "DISPLAY_IDS":
		c.DisplayIDs = nil
		for _, id := range strings.Split(value, ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.DisplayIDs = append(c.DisplayIDs, id)
			}
		}
	case "DISPLAY_ID":
		c.DisplayID = value
	case "TILT_SOURCE":
		switch v := strings.ToLower(value); v {
		case TiltSourceIMU, TiltSourceMQTT, TiltSourceNMEA, TiltSourceMock:
			c.TiltSource = v
		default:
			return fmt.Errorf("TILT_SOURCE must be imu, mqtt, nmea or mock, got %q", value)
		}

	// IMU Hardware
	case "IMU_LEFT_SPI_DEVICE":
		c.IMULeftSPIDevice = value
	case "IMU_LEFT_CS_PIN":
		c.IMULeftCSPin = value
	case "IMU_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_SAMPLE_INTERVAL %q: %w", value, err)
		}
		if interval <= 0 {
			return fmt.Errorf("IMU_SAMPLE_INTERVAL must be positive, got %d", interval)
		}
		c.IMUSampleInterval = interval

	// Serial attitude sensor
	case "NMEA_SERIAL_PORT":
		c.NMEASerialPort = value
	case "NMEA_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid NMEA_BAUD_RATE %q: %w", value, err)
		}
		c.NMEABaudRate = rate

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		if port < 0 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 0-65535, got %d", port)
		}
		c.WebServerPort = port
	case "WEB_STATIC_DIR":
		c.WebStaticDir = value

	// OLED
	case "OLED_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid OLED_ENABLED %q: %w", value, err)
		}
		c.OLEDEnabled = enabled
	case "OLED_I2C_BUS":
		c.OLEDI2CBus = value
	case "OLED_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid OLED_I2C_ADDR %q: %w", value, err)
		}
		c.OLEDI2CAddr = uint16(addr)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	switch c.TiltSource {
	case TiltSourceIMU:
		if c.IMULeftSPIDevice == "" {
			return fmt.Errorf("IMU_LEFT_SPI_DEVICE is required when TILT_SOURCE=imu")
		}
	case TiltSourceNMEA:
		if c.NMEASerialPort == "" {
			return fmt.Errorf("NMEA_SERIAL_PORT is required when TILT_SOURCE=nmea")
		}
		if c.NMEABaudRate <= 0 {
			return fmt.Errorf("NMEA_BAUD_RATE is required when TILT_SOURCE=nmea")
		}
	}
	if c.DisplayID != "" && len(c.DisplayIDs) > 0 && !slices.Contains(c.DisplayIDs, c.DisplayID) {
		return fmt.Errorf("DISPLAY_ID %q is not listed in DISPLAY_IDS", c.DisplayID)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls are no-ops.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

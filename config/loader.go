package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults applied to zero values.
const (
	DefaultPort            = 16181
	DefaultLevel           = "info"
	DefaultFormat          = "text"
	DefaultChannel         = "vehicle-telemetry"
	DefaultQueueCapacity   = 2
	DefaultStartDelayMS    = 10000
	DefaultFrameIntervalMS = 5000
	DefaultReadIntervalMS  = 30000
	DefaultTimeoutMS       = 10000
	DefaultVehicleType     = "truck"
	DefaultProducerRef     = "FLEETVIEW"
	DefaultValidForMS      = 30000
	DefaultMaxSizeMB       = 100
)

// SearchPaths are tried in order when Load is given no path.
var SearchPaths = []string{"config.yml", "./config/config.yml"}

var validate = validator.New()

// Load reads, validates and defaults the configuration at path. With an empty
// path the SearchPaths are tried and a missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	data, err := read(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse validates and defaults a YAML document.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func read(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return data, nil
	}
	for _, p := range SearchPaths {
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return nil, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultMaxSizeMB
	}
	if c.Telemetry.Channel == "" {
		c.Telemetry.Channel = DefaultChannel
	}
	if c.Telemetry.QueueCapacity == 0 {
		c.Telemetry.QueueCapacity = DefaultQueueCapacity
	}
	if c.Simulator.StartDelayMS == 0 {
		c.Simulator.StartDelayMS = DefaultStartDelayMS
	}
	if c.Simulator.FrameIntervalMS == 0 {
		c.Simulator.FrameIntervalMS = DefaultFrameIntervalMS
	}
	for i := range c.GTFSRT.Feeds {
		f := &c.GTFSRT.Feeds[i]
		if f.ReadIntervalMS == 0 {
			f.ReadIntervalMS = DefaultReadIntervalMS
		}
		if f.TimeoutMS == 0 {
			f.TimeoutMS = DefaultTimeoutMS
		}
		if f.DefaultVehicleType == "" {
			f.DefaultVehicleType = DefaultVehicleType
		}
	}
	if len(c.ViewGroups) == 0 {
		c.ViewGroups = []ViewGroupConfig{{Views: 2}}
	}
	if c.SIRI.ProducerRef == "" {
		c.SIRI.ProducerRef = DefaultProducerRef
	}
	if c.SIRI.ValidForMS == 0 {
		c.SIRI.ValidForMS = DefaultValidForMS
	}
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

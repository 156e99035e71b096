package config

// ServerConfig contains server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// LoggingConfig selects the log level, the output format and an optional
// rotating log file
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"omitempty,oneof=text json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB" validate:"gte=0"`
	MaxBackups int    `yaml:"maxBackups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"maxAgeDays" validate:"gte=0"`
}

// TelemetryConfig contains the distribution channel and consumer queue settings
type TelemetryConfig struct {
	Channel       string `yaml:"channel"`
	QueueCapacity int    `yaml:"queueCapacity" validate:"gte=0"`
}

// SimulatorConfig contains the demo fleet simulator settings
type SimulatorConfig struct {
	Enabled         bool   `yaml:"enabled"`
	StartDelayMS    int    `yaml:"startDelayMS" validate:"gte=0"`
	FrameIntervalMS int    `yaml:"frameIntervalMS" validate:"gte=0"`
	SeedFile        string `yaml:"seedFile"`
}

// FeedConfig contains one GTFS-Realtime VehiclePositions feed
type FeedConfig struct {
	Name                string `yaml:"name" validate:"required"`
	VehiclePositionsURL string `yaml:"vehiclePositionsURL" validate:"required"`
	ReadIntervalMS      int    `yaml:"readIntervalMS" validate:"gte=0"`
	TimeoutMS           int    `yaml:"timeoutMS" validate:"gte=0"`
	DefaultVehicleType  string `yaml:"defaultVehicleType" validate:"omitempty,oneof=truck van"`
}

// GTFSRTConfig lists the live feeds
type GTFSRTConfig struct {
	Feeds []FeedConfig `yaml:"feeds" validate:"dive"`
}

// ViewGroupConfig describes a view group and how many viewers it starts with
type ViewGroupConfig struct {
	ID    string `yaml:"id"`
	Views int    `yaml:"views" validate:"gte=0"`
}

// SIRIConfig contains the VehicleMonitoring export settings
type SIRIConfig struct {
	ProducerRef string `yaml:"producerRef"`
	ValidForMS  int    `yaml:"validForMS" validate:"gte=0"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server     ServerConfig      `yaml:"server"`
	Logging    LoggingConfig     `yaml:"logging"`
	Telemetry  TelemetryConfig   `yaml:"telemetry"`
	Simulator  SimulatorConfig   `yaml:"simulator"`
	GTFSRT     GTFSRTConfig      `yaml:"gtfsrt"`
	ViewGroups []ViewGroupConfig `yaml:"viewGroups" validate:"dive"`
	SIRI       SIRIConfig        `yaml:"siri"`
}

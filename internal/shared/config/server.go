package config

import (
	"time"

	"github.com/spf13/viper"
)

// ServerConfig contains all configuration for the run server.
type ServerConfig struct {
	REST      RESTConfig      `mapstructure:"rest"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Input     InputConfig     `mapstructure:"input"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// RESTConfig contains REST API server configuration.
type RESTConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
}

// GRPCConfig contains gRPC server configuration.
type GRPCConfig struct {
	Addr             string        `mapstructure:"addr" validate:"required"`
	EnableReflection bool          `mapstructure:"enable_reflection"`
	KeepaliveMinTime time.Duration `mapstructure:"keepalive_min_time" validate:"gte=0"`
}

// InputConfig confines submitted input patterns to Root.
type InputConfig struct {
	Root string `mapstructure:"root" validate:"required"`
}

// OutputConfig controls where submitted runs write their results. Every run
// gets its own subdirectory named after the run ID.
type OutputConfig struct {
	Dir        string `mapstructure:"dir" validate:"required"`
	Partitions int    `mapstructure:"partitions" validate:"gte=1"`
}

// TelemetryConfig configures OTLP/HTTP export of run spans and task metrics.
// An empty Endpoint disables export.
type TelemetryConfig struct {
	Endpoint       string        `mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	Insecure       bool          `mapstructure:"insecure"`
	ServiceName    string        `mapstructure:"service_name" validate:"required"`
	MetricInterval time.Duration `mapstructure:"metric_interval" validate:"gt=0"`
}

// LoadServer loads the server configuration from the given path.
// If configPath is empty, it looks for server.yaml in the config/ directory.
// Environment variables with PARMR_SERVER_ prefix override config file values.
func LoadServer(configPath string) (*ServerConfig, error) {
	v := viper.New()

	v.SetDefault("rest.addr", ":8080")
	v.SetDefault("rest.read_timeout", 15*time.Second)
	v.SetDefault("rest.write_timeout", 15*time.Second)
	v.SetDefault("rest.idle_timeout", 60*time.Second)
	v.SetDefault("grpc.addr", ":9090")
	v.SetDefault("grpc.enable_reflection", true)
	v.SetDefault("grpc.keepalive_min_time", 30*time.Second)
	v.SetDefault("input.root", "./data")
	v.SetDefault("output.dir", "./output")
	v.SetDefault("output.partitions", 4)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.service_name", "parmr")
	v.SetDefault("telemetry.metric_interval", 15*time.Second)
	setLoggingDefaults(v)

	var cfg ServerConfig
	if err := load(v, configPath, "server", "PARMR_SERVER", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

package config

import (
	"github.com/spf13/viper"
)

// LocalConfig contains the configuration of a single command line run.
type LocalConfig struct {
	Job        string            `mapstructure:"job" validate:"required"`
	Input      []string          `mapstructure:"input" validate:"required,min=1,dive,required"`
	Output     string            `mapstructure:"output"`
	Partitions int               `mapstructure:"partitions" validate:"gte=1"`
	Params     map[string]string `mapstructure:"params"`
	Logging    LoggingConfig     `mapstructure:"logging"`
}

// LoadLocal loads the local run configuration from the given path.
// If configPath is empty, it looks for local.yaml in the config/ directory.
// Environment variables with PARMR_LOCAL_ prefix override config file values,
// and overrides (typically command line flags) override both.
func LoadLocal(configPath string, overrides map[string]any) (*LocalConfig, error) {
	v := viper.New()

	v.SetDefault("job", "")
	v.SetDefault("input", []string{})
	v.SetDefault("output", "")
	v.SetDefault("partitions", 4)
	v.SetDefault("params", map[string]string{})
	setLoggingDefaults(v)

	var cfg LocalConfig
	if err := load(v, configPath, "local", "PARMR_LOCAL", overrides, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

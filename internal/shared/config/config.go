package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoggingConfig contains logging-related configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// EnvFile is loaded into the process environment, if present, before
// environment variables are bound. Variables already set are not overridden.
var EnvFile = ".env"

var validate = validator.New(validator.WithRequiredStructEnabled())

func setLoggingDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// load reads the optional config file and environment into out and validates
// the result. If configPath is empty, name.yaml is looked up in ./config and
// the working directory. overrides take precedence over every other source.
func load(v *viper.Viper, configPath, name, envPrefix string, overrides map[string]any, out any) error {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(name)
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading env file: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range overrides {
		v.Set(key, value)
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

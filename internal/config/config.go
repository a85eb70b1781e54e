package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	dterrors "dtools/internal/errors"
)

const (
	// EnvPrefix is prepended to every key when it is read from the environment.
	EnvPrefix = "DTOOLS"
	// EnvFile is loaded from the working directory before anything else.
	EnvFile = ".dtools.env"
)

// Config holds the settings shared by dbuild and drun.
type Config struct {
	DockerBinary   string   `mapstructure:"docker_binary" validate:"required"`
	GPUBinary      string   `mapstructure:"gpu_binary" validate:"required"`
	GPUEnv         string   `mapstructure:"gpu_env" validate:"required"`
	DefaultCommand []string `mapstructure:"default_command" validate:"min=1,dive,required"`
	Interactive    bool     `mapstructure:"interactive"`
	Remove         bool     `mapstructure:"remove"`
	RevisionLabel  bool     `mapstructure:"revision_label"`
	CheckImage     bool     `mapstructure:"check_image"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("mapstructure")
	})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("docker_binary", "docker")
	v.SetDefault("gpu_binary", "nvidia-docker")
	v.SetDefault("gpu_env", "NV_GPU")
	v.SetDefault("default_command", []string{"bash"})
	v.SetDefault("interactive", true)
	v.SetDefault("remove", true)
	v.SetDefault("revision_label", true)
	v.SetDefault("check_image", false)
}

// DefaultDir returns the directory searched for config.yaml when no explicit
// file is given.
func DefaultDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dtools"), nil
}

// Load builds the configuration from defaults, the config file and DTOOLS_*
// environment variables, in increasing priority. An explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, dterrors.NewConfigError(
			fmt.Sprintf("Failed to read '%s'", EnvFile),
			err.Error(),
			"Use KEY=value lines in the env file",
			fmt.Errorf("failed to load %s: %w", EnvFile, err),
		)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, dterrors.NewNotFoundError(
				fmt.Sprintf("Config file '%s' not found", path),
				err.Error(),
				"Check the path passed to --config",
				fmt.Errorf("config file not found: %s", path),
			)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, readError(path, err)
		}
	} else if dir, err := DefaultDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, readError(filepath.Join(dir, "config.yaml"), err)
			}
		}
	}

	if used := v.ConfigFileUsed(); used != "" {
		slog.Debug("Loaded configuration file", "path", used)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, dterrors.NewConfigError(
			"Configuration has values of the wrong type",
			err.Error(),
			"",
			fmt.Errorf("failed to decode configuration: %w", err),
		)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, formatValidationError(err)
	}

	return &cfg, nil
}

func readError(path string, err error) error {
	return dterrors.NewConfigError(
		fmt.Sprintf("Failed to read config file '%s'", path),
		err.Error(),
		"Check the file is valid YAML",
		fmt.Errorf("failed to read config file %s: %w", path, err),
	)
}

// formatValidationError reports the first offending key.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return dterrors.NewConfigError("Configuration is invalid", err.Error(), "", err)
	}

	e := validationErrors[0]
	key := strings.SplitN(e.Field(), "[", 2)[0]
	var msg string
	switch e.Tag() {
	case "required":
		msg = fmt.Sprintf("config key '%s' must not be empty", key)
	case "min":
		msg = fmt.Sprintf("config key '%s' needs at least %s entries", key, e.Param())
	default:
		msg = fmt.Sprintf("config key '%s' failed validation (%s)", key, e.Tag())
	}

	return dterrors.NewConfigError(
		"Configuration is invalid",
		msg,
		fmt.Sprintf("Set %s or %s_%s", key, EnvPrefix, strings.ToUpper(key)),
		fmt.Errorf("validation error: %s", msg),
	)
}

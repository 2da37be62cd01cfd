package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/thruflo/turnlink/internal/logging"
	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultAdvanceThresholdMeters = 20.0
	DefaultRerouteThresholdMeters = 50.0
	DefaultReconnectDelay         = 3 * time.Second
	DefaultDialTimeout            = 5 * time.Second
	DefaultFallbackTimeout        = 5 * time.Second
	DefaultRoutingBaseURL         = "https://router.project-osrm.org"
	DefaultRoutingProfile         = "driving"
	DefaultRerouteCooldown        = 30 * time.Second
	DefaultGeocodingBaseURL       = "https://nominatim.openstreetmap.org"
	DefaultUserAgent              = "turnlink/dev"
	DefaultSimulationSpeedMPS     = 1.4
	DefaultSimulationInterval     = time.Second
	DefaultLogLevel               = "info"
)

// DirName is the per-project configuration directory.
const DirName = ".turnlink"

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Tracker: TrackerConfig{
			AdvanceThresholdMeters: DefaultAdvanceThresholdMeters,
			RerouteThresholdMeters: DefaultRerouteThresholdMeters,
			OffRouteMode:           OffRouteModeVertex,
		},
		Device: DeviceConfig{
			ReconnectDelay:  DefaultReconnectDelay,
			DialTimeout:     DefaultDialTimeout,
			FallbackTimeout: DefaultFallbackTimeout,
		},
		Routing: RoutingConfig{
			BaseURL:         DefaultRoutingBaseURL,
			Profile:         DefaultRoutingProfile,
			RerouteCooldown: DefaultRerouteCooldown,
		},
		Geocoding: GeocodingConfig{
			BaseURL:   DefaultGeocodingBaseURL,
			UserAgent: DefaultUserAgent,
		},
		Simulation: SimulationConfig{
			SpeedMPS: DefaultSimulationSpeedMPS,
			Interval: DefaultSimulationInterval,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		_, err := logging.ParseLevel(fl.Field().String())
		return err == nil
	})
	return v
}

// LoadConfig reads .turnlink/config.yaml from the given base path.
// If the file doesn't exist, returns default config.
func LoadConfig(basePath string) (*Config, error) {
	cfg, err := LoadConfigFile(filepath.Join(basePath, DirName, "config.yaml"))
	if err != nil && errors.Is(err, os.ErrNotExist) {
		def := DefaultConfig()
		return &def, nil
	}
	return cfg, err
}

// LoadConfigFile reads and validates a config file at an explicit path.
// Missing fields keep their defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateConfig checks that all config values are valid. The first failing
// field is reported as a ValidationError named by its YAML path.
func ValidateConfig(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return ValidationError{Field: field, Message: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required field is empty"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	case "hostname_port":
		return "must be host:port"
	case "loglevel":
		return "must be one of: debug info warn warning error"
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

package config

import "time"

// TrackerConfig tunes the route-progress state machine.
type TrackerConfig struct {
	// AdvanceThresholdMeters is how close a fix must be to the end of the
	// current step before the tracker moves on to the next one.
	AdvanceThresholdMeters float64 `yaml:"advance_threshold_meters" validate:"gt=0"`
	// RerouteThresholdMeters is the distance from the route beyond which an
	// off-route event is reported.
	RerouteThresholdMeters float64 `yaml:"reroute_threshold_meters" validate:"gt=0"`
	// OffRouteMode selects the off-route metric: "vertex" or "segment".
	OffRouteMode string `yaml:"off_route_mode" validate:"oneof=vertex segment"`
}

// DeviceConfig describes the embedded display and the bridge policy.
type DeviceConfig struct {
	Address              string        `yaml:"address" validate:"omitempty,hostname_port"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay" validate:"gt=0"`
	DialTimeout          time.Duration `yaml:"dial_timeout" validate:"gte=0"`
	FallbackTimeout      time.Duration `yaml:"fallback_timeout" validate:"gt=0"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" validate:"gte=0"`
}

// RoutingConfig points at an OSRM-compatible routing service.
type RoutingConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	Profile string `yaml:"profile" validate:"oneof=driving walking foot cycling"`

	// Reroute requests a new route when the traveller goes off route, at
	// most once per RerouteCooldown.
	Reroute         bool          `yaml:"reroute"`
	RerouteCooldown time.Duration `yaml:"reroute_cooldown" validate:"gte=0"`
}

// GeocodingConfig points at a Nominatim-compatible search service.
type GeocodingConfig struct {
	BaseURL   string `yaml:"base_url" validate:"required,url"`
	UserAgent string `yaml:"user_agent" validate:"required"`
}

// SimulationConfig drives the simulated position source.
type SimulationConfig struct {
	SpeedMPS float64       `yaml:"speed_mps" validate:"gt=0"`
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

// LogConfig sets the default log level. Accepted values are those of
// logging.ParseLevel, so the file and --log-level agree.
type LogConfig struct {
	Level string `yaml:"level" validate:"loglevel"`
}

// Config represents the .turnlink/config.yaml file.
type Config struct {
	Tracker    TrackerConfig    `yaml:"tracker"`
	Device     DeviceConfig     `yaml:"device"`
	Routing    RoutingConfig    `yaml:"routing"`
	Geocoding  GeocodingConfig  `yaml:"geocoding"`
	Simulation SimulationConfig `yaml:"simulation"`
	Log        LogConfig        `yaml:"log"`
}

// Off-route metrics.
const (
	OffRouteModeVertex  = "vertex"
	OffRouteModeSegment = "segment"
)

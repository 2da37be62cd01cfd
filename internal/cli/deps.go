package cli

import (
	"github.com/thruflo/turnlink/internal/bridge"
	"github.com/thruflo/turnlink/internal/config"
	"github.com/thruflo/turnlink/internal/geocode"
	"github.com/thruflo/turnlink/internal/geometry"
	"github.com/thruflo/turnlink/internal/osrm"
	"github.com/thruflo/turnlink/internal/tracker"
)

func newBridge(cfg *config.Config) *bridge.Bridge {
	return bridge.New(
		bridge.WithReconnectDelay(cfg.Device.ReconnectDelay),
		bridge.WithDialTimeout(cfg.Device.DialTimeout),
		bridge.WithFallbackTimeout(cfg.Device.FallbackTimeout),
		bridge.WithMaxReconnectAttempts(cfg.Device.MaxReconnectAttempts),
	)
}

func newRouter(cfg *config.Config) *osrm.Client {
	return osrm.NewClient(cfg.Routing.BaseURL, osrm.WithProfile(cfg.Routing.Profile))
}

func newResolver(cfg *config.Config) *geocode.Client {
	return geocode.NewClient(cfg.Geocoding.BaseURL, cfg.Geocoding.UserAgent)
}

func trackerOptions(cfg *config.Config) []tracker.Option {
	opts := []tracker.Option{
		tracker.WithAdvanceThreshold(cfg.Tracker.AdvanceThresholdMeters),
		tracker.WithRerouteThreshold(cfg.Tracker.RerouteThresholdMeters),
	}
	if cfg.Tracker.OffRouteMode == config.OffRouteModeSegment {
		opts = append(opts, tracker.WithRouteDistance(geometry.NearestSegmentDistance))
	}
	return opts
}

// Package osrm requests turn-by-turn routes from an OSRM server and turns
// them into route.Route values.
package osrm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/thruflo/turnlink/internal/geometry"
	"github.com/thruflo/turnlink/internal/logging"
	"github.com/thruflo/turnlink/internal/route"
)

const (
	// DefaultBaseURL is the public OSRM demo server.
	DefaultBaseURL = "https://router.project-osrm.org"

	// DefaultProfile is the routing profile used when none is set.
	DefaultProfile = "driving"

	defaultTimeout = 15 * time.Second
)

// ErrNoRoute means the server answered but found no usable route.
var ErrNoRoute = errors.New("no route found")

// ParseCoord parses "lat,lon" text, for example "12.9716,77.5946".
func ParseCoord(s string) (orb.Point, error) {
	return geometry.ParseLatLon(s)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithProfile sets the routing profile (driving, walking, cycling...).
func WithProfile(profile string) Option {
	return func(c *Client) {
		c.profile = profile
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// Client talks to the OSRM route service. A request is made once; callers
// decide whether to retry.
type Client struct {
	baseURL    string
	profile    string
	httpClient *http.Client
	log        *logging.Logger
}

// NewClient creates a Client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		profile:    DefaultProfile,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        logging.For("osrm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Legs     []struct {
			Steps []stepJSON `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

type stepJSON struct {
	Distance float64          `json:"distance"`
	Name     string           `json:"name"`
	Ref      string           `json:"ref"`
	Geometry geojson.Geometry `json:"geometry"`
	Maneuver Maneuver         `json:"maneuver"`
}

// Maneuver is the OSRM description of what happens at the start of a step.
type Maneuver struct {
	Type         string  `json:"type"`
	Modifier     string  `json:"modifier"`
	BearingAfter float64 `json:"bearing_after"`
	Exit         int     `json:"exit"`
}

// URL returns the request URL for a route from origin to dest.
func (c *Client) URL(origin, dest orb.Point) string {
	return fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?steps=true&overview=full&geometries=geojson",
		c.baseURL, c.profile, origin.Lon(), origin.Lat(), dest.Lon(), dest.Lat())
}

// Route requests a route from origin to dest. Each OSRM step becomes one
// route step with a synthesised instruction.
func (c *Client) Route(ctx context.Context, origin, dest orb.Point) (*route.Route, error) {
	url := c.URL(origin, dest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.log.Debug("requesting route", "url", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("route request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read route response: %w", err)
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("osrm returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("failed to decode route response: %w", err)
	}
	if parsed.Code != "Ok" {
		return nil, fmt.Errorf("%w: %s %s", ErrNoRoute, parsed.Code, parsed.Message)
	}
	if len(parsed.Routes) == 0 {
		return nil, ErrNoRoute
	}

	var steps []route.Step
	for _, leg := range parsed.Routes[0].Legs {
		for i, s := range leg.Steps {
			line, err := stepLine(s.Geometry)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			steps = append(steps, route.Step{
				Instruction: Instruction(s.Maneuver, streetName(s)),
				Distance:    s.Distance,
				Polyline:    line,
			})
		}
	}
	if len(steps) == 0 {
		return nil, ErrNoRoute
	}

	c.log.Info("route received", "steps", len(steps), "distance", parsed.Routes[0].Distance)
	return route.New(steps), nil
}

func stepLine(g geojson.Geometry) (orb.LineString, error) {
	switch v := g.Geometry().(type) {
	case orb.LineString:
		if len(v) == 0 {
			return nil, fmt.Errorf("empty step geometry")
		}
		return v, nil
	case orb.Point:
		return orb.LineString{v}, nil
	default:
		return nil, fmt.Errorf("unexpected step geometry %s", v.GeoJSONType())
	}
}

func streetName(s stepJSON) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Ref
}

// Instruction renders an OSRM maneuver as display text, for example
// "Turn right onto Main St" or "Make a U-turn".
func Instruction(m Maneuver, name string) string {
	onto := func(text string) string {
		if name == "" {
			return text
		}
		return text + " onto " + name
	}

	modifier := m.Modifier
	if modifier == "uturn" {
		return "Make a U-turn"
	}

	switch m.Type {
	case "depart":
		text := "Head " + compass(m.BearingAfter)
		if name != "" {
			text += " on " + name
		}
		return text
	case "arrive":
		return "Arrive at destination"
	case "roundabout", "rotary":
		text := "Enter the roundabout"
		if m.Exit > 0 {
			text = fmt.Sprintf("At the roundabout, take exit %d", m.Exit)
		}
		return onto(text)
	case "fork":
		return onto("Keep " + sideOf(modifier) + " at the fork")
	case "merge":
		return onto("Merge " + sideOf(modifier))
	case "on ramp":
		return onto("Take the ramp on the " + sideOf(modifier))
	case "off ramp":
		return onto("Take the exit on the " + sideOf(modifier))
	case "new name":
		if name == "" {
			return "Continue straight"
		}
		return "Continue onto " + name
	}

	switch modifier {
	case "", "straight":
		if name == "" {
			return "Continue straight"
		}
		return "Continue straight on " + name
	default:
		return onto("Turn " + modifier)
	}
}

// sideOf collapses a modifier to left, right or straight.
func sideOf(modifier string) string {
	switch {
	case strings.Contains(modifier, "left"):
		return "left"
	case strings.Contains(modifier, "right"):
		return "right"
	}
	return "straight"
}

var compassPoints = []string{"north", "northeast", "east", "southeast", "south", "southwest", "west", "northwest"}

func compass(bearing float64) string {
	i := int((bearing+22.5)/45) % len(compassPoints)
	if i < 0 {
		i += len(compassPoints)
	}
	return compassPoints[i]
}

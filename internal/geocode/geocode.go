// Package geocode resolves free-text destinations to coordinates using a
// Nominatim search endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/thruflo/turnlink/internal/geometry"
	"github.com/thruflo/turnlink/internal/logging"
)

const (
	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	defaultTimeout = 10 * time.Second
)

var (
	// ErrNotFound means the search returned no results.
	ErrNotFound = errors.New("destination not found")

	// ErrEmptyQuery means there was nothing to search for.
	ErrEmptyQuery = errors.New("empty destination")
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// Client queries Nominatim. The usage policy requires an identifying
// User-Agent on every request.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        *logging.Logger
}

// NewClient creates a Client for baseURL.
func NewClient(baseURL, userAgent string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        logging.For("geocode"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve returns the best match for text and its display name. Text that
// already reads as "lat,lon" is returned as-is without a request.
func (c *Client) Resolve(ctx context.Context, text string) (orb.Point, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return orb.Point{}, "", ErrEmptyQuery
	}
	if p, err := geometry.ParseLatLon(text); err == nil {
		return p, text, nil
	}

	q := url.Values{}
	q.Set("q", text)
	q.Set("format", "json")
	q.Set("limit", "1")
	endpoint := c.baseURL + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return orb.Point{}, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.log.Debug("geocoding", "query", text)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return orb.Point{}, "", fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return orb.Point{}, "", fmt.Errorf("geocoder returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return orb.Point{}, "", fmt.Errorf("failed to decode geocode response: %w", err)
	}
	if len(places) == 0 {
		return orb.Point{}, "", fmt.Errorf("%w: %q", ErrNotFound, text)
	}

	lat, err1 := strconv.ParseFloat(places[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(places[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return orb.Point{}, "", fmt.Errorf("geocoder returned invalid coordinates %q,%q", places[0].Lat, places[0].Lon)
	}

	c.log.Info("destination resolved", "query", text, "name", places[0].DisplayName)
	return geometry.Pt(lat, lon), places[0].DisplayName, nil
}

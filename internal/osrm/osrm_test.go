package osrm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/turnlink/internal/geometry"
	"github.com/thruflo/turnlink/internal/logging"
	"github.com/thruflo/turnlink/internal/route"
	"github.com/thruflo/turnlink/internal/testutil"
)

const okResponse = `{
  "code": "Ok",
  "routes": [{
    "distance": 333.4,
    "duration": 60,
    "legs": [{
      "steps": [
        {"distance": 111.2, "name": "Main St",
         "geometry": {"type": "LineString", "coordinates": [[0, 0], [0.001, 0]]},
         "maneuver": {"type": "depart", "bearing_after": 90}},
        {"distance": 111.1, "name": "Oak Ave",
         "geometry": {"type": "LineString", "coordinates": [[0.001, 0], [0.001, 0.001]]},
         "maneuver": {"type": "turn", "modifier": "left"}},
        {"distance": 0, "name": "Oak Ave",
         "geometry": {"type": "LineString", "coordinates": [[0.001, 0.001], [0.001, 0.001]]},
         "maneuver": {"type": "arrive"}}
      ]
    }]
  }]
}`

func newServer(t *testing.T, status int, body string, seen chan<- string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			seen <- r.URL.String()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRoute(t *testing.T) {
	t.Parallel()

	seen := make(chan string, 1)
	ts := newServer(t, http.StatusOK, okResponse, seen)
	c := NewClient(ts.URL+"/", WithProfile("walking"), WithLogger(logging.Discard()))

	ctx, cancel := testutil.NetworkContext(t)
	defer cancel()
	r, err := c.Route(ctx, geometry.Pt(0, 0), geometry.Pt(0.001, 0.001))
	require.NoError(t, err)

	assert.Equal(t,
		"/route/v1/walking/0.000000,0.000000;0.001000,0.001000?steps=true&overview=full&geometries=geojson",
		<-seen)

	testutil.AssertRouteSteps(t, r, "Head east on Main St", "Turn left onto Oak Ave", "Arrive at destination")
	assert.InDelta(t, 111.2, r.Steps[0].Distance, 1e-9)
	assert.Equal(t, geometry.Pt(0, 0.001), r.Steps[0].Polyline[1])
	assert.Len(t, r.Polyline, 3, "joined polyline drops repeated vertices")
	assert.Equal(t, route.TurnLeft, route.Classify(r.Steps[1].Instruction))
}

func TestRouteErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantNoRte bool
	}{
		{"no route code", http.StatusOK, `{"code":"NoRoute","message":"Impossible route between points"}`, true},
		{"no segment on 400", http.StatusBadRequest, `{"code":"NoSegment","message":"Could not find a matching segment"}`, true},
		{"empty routes", http.StatusOK, `{"code":"Ok","routes":[]}`, true},
		{"no steps", http.StatusOK, `{"code":"Ok","routes":[{"legs":[{"steps":[]}]}]}`, true},
		{"server error", http.StatusBadGateway, `bad gateway`, false},
		{"garbage", http.StatusOK, `<html>`, false},
		{"missing geometry", http.StatusOK, `{"code":"Ok","routes":[{"legs":[{"steps":[{"maneuver":{"type":"depart"}}]}]}]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newServer(t, tt.status, tt.body, nil)
			c := NewClient(ts.URL, WithLogger(logging.Discard()))
			_, err := c.Route(context.Background(), geometry.Pt(0, 0), geometry.Pt(1, 1))
			require.Error(t, err)
			if tt.wantNoRte {
				assert.ErrorIs(t, err, ErrNoRoute)
			} else {
				assert.NotErrorIs(t, err, ErrNoRoute)
			}
		})
	}
}

func TestRouteUnreachable(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewClient(url, WithLogger(logging.Discard())).Route(context.Background(), geometry.Pt(0, 0), geometry.Pt(1, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route request failed")
}

func TestInstruction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		m    Maneuver
		name string
		want string
	}{
		{Maneuver{Type: "depart", BearingAfter: 0}, "High St", "Head north on High St"},
		{Maneuver{Type: "depart", BearingAfter: 350}, "", "Head north"},
		{Maneuver{Type: "depart", BearingAfter: 225}, "", "Head southwest"},
		{Maneuver{Type: "turn", Modifier: "right"}, "Main St", "Turn right onto Main St"},
		{Maneuver{Type: "turn", Modifier: "sharp left"}, "", "Turn sharp left"},
		{Maneuver{Type: "turn", Modifier: "uturn"}, "Main St", "Make a U-turn"},
		{Maneuver{Type: "continue", Modifier: "straight"}, "", "Continue straight"},
		{Maneuver{Type: "continue", Modifier: "straight"}, "A1", "Continue straight on A1"},
		{Maneuver{Type: "new name", Modifier: "straight"}, "Elm St", "Continue onto Elm St"},
		{Maneuver{Type: "end of road", Modifier: "left"}, "Oak Ave", "Turn left onto Oak Ave"},
		{Maneuver{Type: "fork", Modifier: "slight right"}, "", "Keep right at the fork"},
		{Maneuver{Type: "merge", Modifier: "slight left"}, "M4", "Merge left onto M4"},
		{Maneuver{Type: "off ramp", Modifier: "right"}, "", "Take the exit on the right"},
		{Maneuver{Type: "roundabout", Exit: 2}, "Elm St", "At the roundabout, take exit 2 onto Elm St"},
		{Maneuver{Type: "rotary"}, "", "Enter the roundabout"},
		{Maneuver{Type: "arrive"}, "Oak Ave", "Arrive at destination"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Instruction(tt.m, tt.name))
	}
}

func TestParseCoord(t *testing.T) {
	t.Parallel()

	p, err := ParseCoord("12.9716,77.5946")
	require.NoError(t, err)
	assert.Equal(t, 12.9716, p.Lat())
	assert.Equal(t, 77.5946, p.Lon())

	_, err = ParseCoord("12.9716")
	assert.Error(t, err)
}

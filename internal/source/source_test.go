package source

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/turnlink/internal/geometry"
	"github.com/thruflo/turnlink/internal/logging"
	"github.com/thruflo/turnlink/internal/testutil"
)

func collect(t *testing.T, ch <-chan geometry.Position) []geometry.Position {
	t.Helper()
	var out []geometry.Position
	timeout := time.After(5 * time.Second)
	for {
		select {
		case fix, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, fix)
		case <-timeout:
			t.Fatal("source did not finish")
		}
	}
}

func TestSimulatorWalksTheLine(t *testing.T) {
	t.Parallel()

	// ~111 m east at 10 m per fix.
	line := orb.LineString{geometry.Pt(0, 0), geometry.Pt(0, 0.001)}
	sim := NewSimulator(line,
		WithSpeed(10),
		WithInterval(time.Millisecond),
		WithSimulatorLogger(logging.Discard()),
	)

	points, err := sim.Points()
	require.NoError(t, err)
	assert.Len(t, points, 13)
	assert.True(t, points[0].Equal(line[0]))
	assert.True(t, points[len(points)-1].Equal(line[1]))
	for i := 1; i < len(points)-1; i++ {
		assert.InDelta(t, 10, geometry.Distance(points[i-1], points[i]), 0.5, "stride %d", i)
	}

	fixes := collect(t, mustPositions(t, sim, context.Background()))
	require.Len(t, fixes, len(points))
	for i, fix := range fixes {
		assert.InDelta(t, points[i].Lat(), fix.Lat, 1e-9)
		assert.InDelta(t, points[i].Lon(), fix.Lon, 1e-9)
		assert.False(t, fix.Time.IsZero())
	}
}

func TestSimulatorFollowsCorners(t *testing.T) {
	t.Parallel()

	r := testutil.CityRoute()
	sim := NewSimulator(r.Polyline, WithSpeed(5), WithInterval(time.Millisecond))

	points, err := sim.Points()
	require.NoError(t, err)
	for _, p := range points {
		assert.Less(t, geometry.NearestSegmentDistance(p, r.Polyline), 1.0, "fix drifted off the route")
	}
}

func TestSimulatorIsRestartable(t *testing.T) {
	t.Parallel()

	line := orb.LineString{geometry.Pt(0, 0), geometry.Pt(0, 0.0005)}
	sim := NewSimulator(line, WithSpeed(20), WithInterval(time.Millisecond))

	first := collect(t, mustPositions(t, sim, context.Background()))
	second := collect(t, mustPositions(t, sim, context.Background()))
	assert.Equal(t, len(first), len(second))
	assert.Equal(t, first[0].Lat, second[0].Lat)
}

func TestSimulatorStopsOnCancel(t *testing.T) {
	t.Parallel()

	line := orb.LineString{geometry.Pt(0, 0), geometry.Pt(0, 0.01)}
	sim := NewSimulator(line, WithSpeed(1), WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	ch := mustPositions(t, sim, ctx)
	<-ch
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "channel closed after cancel")
}

func TestSimulatorErrors(t *testing.T) {
	t.Parallel()

	_, err := NewSimulator(nil).Positions(context.Background())
	assert.ErrorIs(t, err, ErrEmptyTrack)

	_, err = NewSimulator(orb.LineString{geometry.Pt(0, 0)}, WithSpeed(0)).Positions(context.Background())
	assert.Error(t, err)

	points, err := NewSimulator(orb.LineString{geometry.Pt(1, 2)}).Points()
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestSimulatorClock(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sim := NewSimulator(orb.LineString{geometry.Pt(0, 0)}, WithClock(func() time.Time { return at }))
	fixes := collect(t, mustPositions(t, sim, context.Background()))
	require.Len(t, fixes, 1)
	assert.Equal(t, at, fixes[0].Time)
}

const trackGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [0, 0]},
     "properties": {"time": "2024-05-01T12:00:00Z"}},
    {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[0.0005, 0], [0.001, 0]]},
     "properties": {}},
    {"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]},
     "properties": {}}
  ]
}`

func TestParseReplay(t *testing.T) {
	t.Parallel()

	r, err := ParseReplay([]byte(trackGeoJSON), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	fixes := collect(t, mustPositions(t, r, context.Background()))
	require.Len(t, fixes, 3)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), fixes[0].Time)
	assert.Equal(t, 0.0005, fixes[1].Lon)
	assert.Equal(t, 0.001, fixes[2].Lon)
	assert.False(t, fixes[2].Time.IsZero(), "untimed fixes are stamped")
}

func TestParseReplayErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     string
		interval time.Duration
	}{
		{"invalid json", "{", time.Second},
		{"no fixes", `{"type":"FeatureCollection","features":[]}`, time.Second},
		{"bad time", `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"time":"noon"}}]}`, time.Second},
		{"zero interval", trackGeoJSON, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseReplay([]byte(tt.data), tt.interval)
			assert.Error(t, err)
		})
	}
}

func TestLoadReplayRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fixes := []geometry.Position{
		{Lat: 0, Lon: 0, Time: at},
		{Lat: 0, Lon: 0.0005, Time: at.Add(time.Second)},
	}
	data, err := EncodeTrack(fixes)
	require.NoError(t, err)

	dir := t.TempDir()
	path := testutil.WriteTestFile(t, dir, "track.geojson", data)

	r, err := LoadReplay(path, time.Millisecond)
	require.NoError(t, err)
	got := collect(t, mustPositions(t, r, context.Background()))
	assert.Equal(t, fixes, got)

	_, err = LoadReplay(dir+"/missing.geojson", time.Second)
	assert.Error(t, err)
}

func TestChannel(t *testing.T) {
	t.Parallel()

	in := make(chan geometry.Position, 2)
	in <- geometry.Position{Lat: 1}
	in <- geometry.Position{Lat: 2}
	close(in)

	got := collect(t, mustPositions(t, Channel(in), context.Background()))
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[1].Lat)
}

func TestChannelStopsOnCancel(t *testing.T) {
	t.Parallel()

	in := make(chan geometry.Position)
	ctx, cancel := context.WithCancel(context.Background())
	out := mustPositions(t, Channel(in), ctx)
	cancel()

	_, ok := <-out
	assert.False(t, ok)
}

type positioner interface {
	Positions(ctx context.Context) (<-chan geometry.Position, error)
}

func mustPositions(t *testing.T, src positioner, ctx context.Context) <-chan geometry.Position {
	t.Helper()
	ch, err := src.Positions(ctx)
	require.NoError(t, err)
	return ch
}

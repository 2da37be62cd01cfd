package route

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		instruction string
		want        Maneuver
	}{
		{"Turn right onto Main St", TurnRight},
		{"Make a U-turn", UTurn},
		{"Continue straight for 2 mi", Straight},
		{"Merge onto Highway 5", Straight},
		{"Turn LEFT at the lights", TurnLeft},
		{"make a u turn and turn right", UTurn},
		{"Uturn when possible", UTurn},
		{"Keep right, then left", TurnRight},
		{"Go straight", Straight},
		{"", Straight},
	}

	for _, tt := range tests {
		t.Run(tt.instruction, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.instruction))
		})
	}
}

func TestFormatDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		meters float64
		want   string
	}{
		{0, "0 m"},
		{12.4, "12 m"},
		{120, "120 m"},
		{999.4, "999 m"},
		{999.6, "1.0 km"},
		{1500, "1.5 km"},
		{12345, "12.3 km"},
		{-3, "0 m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDistance(tt.meters), "meters=%v", tt.meters)
	}
}

func TestNewJoinsStepPolylines(t *testing.T) {
	t.Parallel()

	r := New([]Step{
		{Instruction: "Head east", Distance: 111, Polyline: orb.LineString{{0, 0}, {0.001, 0}}},
		{Instruction: "Turn left", Distance: 111, Polyline: orb.LineString{{0.001, 0}, {0.001, 0.001}}},
	})

	assert.Equal(t, orb.LineString{{0, 0}, {0.001, 0}, {0.001, 0.001}}, r.Polyline)
	assert.Equal(t, 2, r.Len())
	assert.NoError(t, r.Validate())
}

func TestRouteClone(t *testing.T) {
	t.Parallel()

	r := New([]Step{{Instruction: "Head north", Polyline: orb.LineString{{0, 0}, {0, 1}}}})
	c := r.Clone()

	r.Steps[0].Instruction = "changed"
	r.Steps[0].Polyline[1] = orb.Point{9, 9}
	r.Polyline[0] = orb.Point{9, 9}

	assert.Equal(t, "Head north", c.Steps[0].Instruction)
	assert.Equal(t, orb.Point{0, 1}, c.Steps[0].Polyline[1])
	assert.Equal(t, orb.Point{0, 0}, c.Polyline[0])

	var nilRoute *Route
	assert.Nil(t, nilRoute.Clone())
	assert.Zero(t, nilRoute.Len())
}

func TestRouteValidate(t *testing.T) {
	t.Parallel()

	var nilRoute *Route
	assert.Error(t, nilRoute.Validate())
	assert.NoError(t, New(nil).Validate())

	bad := &Route{Steps: []Step{{Instruction: "x"}}, Polyline: orb.LineString{{0, 0}}}
	assert.ErrorContains(t, bad.Validate(), "step 0 has an empty polyline")
}

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "LineString", "coordinates": [[0, 0], [0.001, 0]]},
      "properties": {"instruction": "Head east on Main St", "distance": 111}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [0.001, 0.001]},
      "properties": {"name": "destination"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "LineString", "coordinates": [[0.001, 0], [0.001, 0.001]]},
      "properties": {"instruction": "Turn left onto Oak Ave"}
    }
  ]
}`

func TestParseGeoJSON(t *testing.T) {
	t.Parallel()

	r, err := ParseGeoJSON([]byte(sampleGeoJSON))
	require.NoError(t, err)
	require.Equal(t, 2, r.Len())

	assert.Equal(t, "Head east on Main St", r.Steps[0].Instruction)
	assert.Equal(t, 111.0, r.Steps[0].Distance)
	assert.Equal(t, "Turn left onto Oak Ave", r.Steps[1].Instruction)
	assert.InDelta(t, 111.3, r.Steps[1].Distance, 0.5)
	assert.Len(t, r.Polyline, 3)
}

func TestParseGeoJSONErrors(t *testing.T) {
	t.Parallel()

	_, err := ParseGeoJSON([]byte("not json"))
	assert.ErrorContains(t, err, "failed to parse route geojson")

	_, err = ParseGeoJSON([]byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{}}]}`))
	assert.ErrorContains(t, err, `missing "instruction" property`)
}

func TestGeoJSONRoundTripThroughFile(t *testing.T) {
	t.Parallel()

	original, err := ParseGeoJSON([]byte(sampleGeoJSON))
	require.NoError(t, err)

	data, err := ToGeoJSON(original)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "route.geojson")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original.Steps[1].Instruction, loaded.Steps[1].Instruction)
	assert.InDelta(t, original.Steps[1].Distance, loaded.Steps[1].Distance, 1e-9)
	assert.Equal(t, original.Polyline, loaded.Polyline)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.ErrorContains(t, err, "failed to read route file")
}

package route

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// Feature properties read by ParseGeoJSON.
const (
	PropInstruction = "instruction"
	PropDistance    = "distance"
)

// LoadFile reads a route from a GeoJSON file. See ParseGeoJSON.
func LoadFile(path string) (*Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route file: %w", err)
	}
	r, err := ParseGeoJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// ParseGeoJSON decodes a FeatureCollection in which every LineString feature
// is one step, in order. The "instruction" property is required; "distance"
// (meters) is computed from the geometry when absent. Point features (for
// example a destination marker) are ignored.
func ParseGeoJSON(data []byte) (*Route, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse route geojson: %w", err)
	}

	var steps []Step
	for i, f := range fc.Features {
		line, ok := f.Geometry.(orb.LineString)
		if !ok {
			continue
		}
		if len(line) == 0 {
			return nil, fmt.Errorf("feature %d: empty geometry", i)
		}

		instruction := f.Properties.MustString(PropInstruction, "")
		if instruction == "" {
			return nil, fmt.Errorf("feature %d: missing %q property", i, PropInstruction)
		}

		distance := f.Properties.MustFloat64(PropDistance, -1)
		if distance < 0 {
			distance = geo.LengthHaversine(line)
		}

		steps = append(steps, Step{
			Instruction: instruction,
			Distance:    distance,
			Polyline:    line,
		})
	}

	return New(steps), nil
}

// ToGeoJSON encodes r in the format ParseGeoJSON reads.
func ToGeoJSON(r *Route) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, s := range r.Steps {
		f := geojson.NewFeature(s.Polyline)
		f.Properties[PropInstruction] = s.Instruction
		f.Properties[PropDistance] = s.Distance
		fc.Append(f)
	}
	return fc.MarshalJSON()
}

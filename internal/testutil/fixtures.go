package testutil

import (
	"github.com/paulmach/orb"
	"github.com/thruflo/turnlink/internal/geometry"
	"github.com/thruflo/turnlink/internal/route"
)

// TwoStepRoute returns a route whose first step ends at (0,0) and whose
// second step ends at (0,0.001), roughly 111 m further east.
func TwoStepRoute() *route.Route {
	return route.New([]route.Step{
		{
			Instruction: "Head east",
			Distance:    0,
			Polyline:    orb.LineString{geometry.Pt(0, 0)},
		},
		{
			Instruction: "Turn right onto Main St",
			Distance:    111,
			Polyline:    orb.LineString{geometry.Pt(0, 0), geometry.Pt(0, 0.001)},
		},
	})
}

// CityRoute returns a four-step route around a small block near the
// equator. Each leg is about 111 m long.
func CityRoute() *route.Route {
	a := geometry.Pt(0, 0)
	b := geometry.Pt(0, 0.001)
	c := geometry.Pt(0.001, 0.001)
	d := geometry.Pt(0.001, 0.002)
	return route.New([]route.Step{
		{Instruction: "Head east on Main St", Distance: 111, Polyline: orb.LineString{a, b}},
		{Instruction: "Turn left onto Oak Ave", Distance: 111, Polyline: orb.LineString{b, c}},
		{Instruction: "Turn right onto Elm St", Distance: 111, Polyline: orb.LineString{c, d}},
		{Instruction: "Make a U-turn", Distance: 111, Polyline: orb.LineString{d, c}},
	})
}

// NearPoint returns a fix meters away from p along bearing degrees.
func NearPoint(p orb.Point, meters, bearing float64) geometry.Position {
	q := geometry.Offset(p, meters, bearing)
	return geometry.Position{Lat: q.Lat(), Lon: q.Lon()}
}

// At returns a fix exactly at p.
func At(p orb.Point) geometry.Position {
	return geometry.Position{Lat: p.Lat(), Lon: p.Lon()}
}

// WalkFixes returns fixes spaced roughly spacing meters apart along line,
// always including the final vertex.
func WalkFixes(line orb.LineString, spacing float64) []geometry.Position {
	if len(line) == 0 {
		return nil
	}
	fixes := []geometry.Position{At(line[0])}
	for i := 1; i < len(line); i++ {
		from, to := line[i-1], line[i]
		segment := geometry.Distance(from, to)
		for d := spacing; d < segment; d += spacing {
			f := d / segment
			fixes = append(fixes, geometry.Position{
				Lat: from.Lat() + (to.Lat()-from.Lat())*f,
				Lon: from.Lon() + (to.Lon()-from.Lon())*f,
			})
		}
		fixes = append(fixes, At(to))
	}
	return fixes
}

// SampleRouteGeoJSON is CityRoute's first two steps as a route file.
const SampleRouteGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "LineString", "coordinates": [[0, 0], [0.001, 0]]},
      "properties": {"instruction": "Head east on Main St", "distance": 111}
    },
    {
      "type": "Feature",
      "geometry": {"type": "LineString", "coordinates": [[0.001, 0], [0.001, 0.001]]},
      "properties": {"instruction": "Turn left onto Oak Ave", "distance": 111}
    }
  ]
}`

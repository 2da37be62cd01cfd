// Package geometry holds the distance functions the route tracker is built
// on. Points and polylines are orb values, so longitude comes first:
// orb.Point{lon, lat}. Use Pt to build one from latitude/longitude order.
package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// earthRadiusMeters matches the radius orb/geo uses for haversine.
const earthRadiusMeters = orb.EarthRadius

// Position is a single location fix.
type Position struct {
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
	Time time.Time `json:"time"`
}

// Point returns the fix as an orb.Point.
func (p Position) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Pt builds an orb.Point from latitude and longitude.
func Pt(lat, lon float64) orb.Point {
	return orb.Point{lon, lat}
}

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// NearestVertexDistance returns the smallest distance from p to any vertex of
// line. It returns +Inf for an empty line.
func NearestVertexDistance(p orb.Point, line orb.LineString) float64 {
	best := math.Inf(1)
	for _, v := range line {
		if d := Distance(p, v); d < best {
			best = d
		}
	}
	return best
}

// NearestSegmentDistance returns the distance from p to the closest point on
// any segment of line, using an equirectangular projection centred on p. A
// single-vertex line is treated as that vertex; an empty line yields +Inf.
func NearestSegmentDistance(p orb.Point, line orb.LineString) float64 {
	switch len(line) {
	case 0:
		return math.Inf(1)
	case 1:
		return Distance(p, line[0])
	}

	best := math.Inf(1)
	for i := 1; i < len(line); i++ {
		ax, ay := project(p, line[i-1])
		bx, by := project(p, line[i])
		if d := segmentDistance(ax, ay, bx, by); d < best {
			best = d
		}
	}
	return best
}

// LastVertex returns the final vertex of line, the point a step arrives at.
func LastVertex(line orb.LineString) (orb.Point, bool) {
	if len(line) == 0 {
		return orb.Point{}, false
	}
	return line[len(line)-1], true
}

// Length returns the summed haversine length of line in meters.
func Length(line orb.LineString) float64 {
	return geo.LengthHaversine(line)
}

// Offset returns the point distance meters from p along bearing degrees
// (0 = north, 90 = east).
func Offset(p orb.Point, distance, bearing float64) orb.Point {
	return geo.PointAtBearingAndDistance(p, bearing, distance)
}

// project maps q into meters on a plane tangent at origin.
func project(origin, q orb.Point) (float64, float64) {
	lat0 := deg2rad(origin.Lat())
	x := deg2rad(q.Lon()-origin.Lon()) * math.Cos(lat0) * earthRadiusMeters
	y := deg2rad(q.Lat()-origin.Lat()) * earthRadiusMeters
	return x, y
}

// segmentDistance is the distance from the origin to segment a-b.
func segmentDistance(ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(ax, ay)
	}
	t := -(ax*dx + ay*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(ax+t*dx, ay+t*dy)
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180
}

// ParseLatLon parses "lat,lon" text such as "12.9716, 77.5946".
func ParseLatLon(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("invalid coordinate %q: want lat,lon", s)
	}

	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return orb.Point{}, fmt.Errorf("invalid coordinate %q: not numeric", s)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return orb.Point{}, fmt.Errorf("invalid coordinate %q: out of range", s)
	}
	return Pt(lat, lon), nil
}

package source

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/thruflo/turnlink/internal/geometry"
)

// PropTime is the optional RFC 3339 timestamp on a Point feature.
const PropTime = "time"

// Replay plays back a recorded track.
type Replay struct {
	points   []orb.Point
	times    []time.Time
	interval time.Duration
	now      func() time.Time
}

// LoadReplay reads a track from a GeoJSON file. See ParseReplay.
func LoadReplay(path string, interval time.Duration) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read track file: %w", err)
	}
	r, err := ParseReplay(data, interval)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// ParseReplay decodes a FeatureCollection of fixes. Point features are one
// fix each and may carry a "time" property; every vertex of a LineString
// feature is a fix. Features are played in file order, one per interval.
func ParseReplay(data []byte, interval time.Duration) (*Replay, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid replay interval %s", interval)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse track geojson: %w", err)
	}

	r := &Replay{interval: interval, now: time.Now}
	for i, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Point:
			var ts time.Time
			if raw := f.Properties.MustString(PropTime, ""); raw != "" {
				ts, err = time.Parse(time.RFC3339, raw)
				if err != nil {
					return nil, fmt.Errorf("feature %d: invalid %q property: %w", i, PropTime, err)
				}
			}
			r.points = append(r.points, g)
			r.times = append(r.times, ts)
		case orb.LineString:
			for _, p := range g {
				r.points = append(r.points, p)
				r.times = append(r.times, time.Time{})
			}
		}
	}

	if len(r.points) == 0 {
		return nil, ErrEmptyTrack
	}
	return r, nil
}

// Len returns the number of fixes.
func (r *Replay) Len() int {
	return len(r.points)
}

// Positions starts playback from the first fix. Fixes without a recorded
// time are stamped when emitted.
func (r *Replay) Positions(ctx context.Context) (<-chan geometry.Position, error) {
	return emit(ctx, r.points, r.times, r.interval, r.now), nil
}

// EncodeTrack writes fixes in the format ParseReplay reads.
func EncodeTrack(fixes []geometry.Position) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, fix := range fixes {
		f := geojson.NewFeature(fix.Point())
		if !fix.Time.IsZero() {
			f.Properties[PropTime] = fix.Time.UTC().Format(time.RFC3339)
		}
		fc.Append(f)
	}
	return fc.MarshalJSON()
}

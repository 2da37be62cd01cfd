package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/thruflo/turnlink/internal/geometry"
	"github.com/thruflo/turnlink/internal/logging"
)

const (
	// DefaultSpeed is a walking pace in meters per second.
	DefaultSpeed = 1.4

	// DefaultInterval is the time between simulated fixes.
	DefaultInterval = time.Second
)

// ErrEmptyTrack means there is nothing to emit.
var ErrEmptyTrack = errors.New("track has no points")

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithSpeed sets the walking speed in meters per second.
func WithSpeed(mps float64) SimulatorOption {
	return func(s *Simulator) {
		s.speed = mps
	}
}

// WithInterval sets the time between fixes.
func WithInterval(d time.Duration) SimulatorOption {
	return func(s *Simulator) {
		s.interval = d
	}
}

// WithClock sets the time source used to stamp fixes.
func WithClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) {
		s.now = now
	}
}

// WithSimulatorLogger sets the logger.
func WithSimulatorLogger(l *logging.Logger) SimulatorOption {
	return func(s *Simulator) {
		s.log = l
	}
}

// Simulator walks a polyline at a constant speed, emitting one fix per
// interval. The final fix is always the last vertex.
type Simulator struct {
	line     orb.LineString
	speed    float64
	interval time.Duration
	now      func() time.Time
	log      *logging.Logger
}

// NewSimulator creates a Simulator for line.
func NewSimulator(line orb.LineString, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		line:     line,
		speed:    DefaultSpeed,
		interval: DefaultInterval,
		now:      time.Now,
		log:      logging.For("source"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Points returns the positions the walk visits, without timestamps.
func (s *Simulator) Points() ([]orb.Point, error) {
	if len(s.line) == 0 {
		return nil, ErrEmptyTrack
	}
	if s.speed <= 0 || s.interval <= 0 {
		return nil, fmt.Errorf("invalid simulation: speed %.2f m/s, interval %s", s.speed, s.interval)
	}

	stride := s.speed * s.interval.Seconds()
	total := geo.Length(s.line)
	n := int(math.Ceil(total / stride))

	points := make([]orb.Point, 0, n+1)
	for i := 0; i < n; i++ {
		p, _ := geo.PointAtDistanceAlongLine(s.line, float64(i)*stride)
		points = append(points, p)
	}
	return append(points, s.line[len(s.line)-1]), nil
}

// Positions starts a new walk from the first vertex.
func (s *Simulator) Positions(ctx context.Context) (<-chan geometry.Position, error) {
	points, err := s.Points()
	if err != nil {
		return nil, err
	}

	s.log.Info("simulating walk", "fixes", len(points), "speed_mps", s.speed, "interval", s.interval)
	return emit(ctx, points, nil, s.interval, s.now), nil
}

// emit sends one fix per interval, the first immediately. times, when
// non-nil, supplies each fix's timestamp; otherwise now is used.
func emit(ctx context.Context, points []orb.Point, times []time.Time, interval time.Duration, now func() time.Time) <-chan geometry.Position {
	out := make(chan geometry.Position)

	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i, p := range points {
			if i > 0 {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}

			fix := geometry.Position{Lat: p.Lat(), Lon: p.Lon(), Time: now()}
			if times != nil && !times[i].IsZero() {
				fix.Time = times[i]
			}

			select {
			case <-ctx.Done():
				return
			case out <- fix:
			}
		}
	}()

	return out
}

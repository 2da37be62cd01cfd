// Package route defines the route model consumed by the tracker: a route is
// an ordered list of steps, each with an instruction, its own length and the
// polyline it follows, plus an overall polyline used for off-route checks.
//
// It also holds the pure functions that turn a step into something a small
// display can show: maneuver classification and compact distance text.
package route

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
)

// Step is one instruction-bearing leg of a route.
type Step struct {
	Instruction string         `json:"instruction"`
	Distance    float64        `json:"distance"`
	Polyline    orb.LineString `json:"polyline"`
}

// Route is an ordered sequence of steps plus the overall polyline.
type Route struct {
	Steps    []Step         `json:"steps"`
	Polyline orb.LineString `json:"polyline"`
}

// New builds a Route from steps, deriving the overall polyline by joining
// the step polylines and dropping vertices repeated at step boundaries.
func New(steps []Step) *Route {
	var line orb.LineString
	for _, s := range steps {
		for _, p := range s.Polyline {
			if n := len(line); n > 0 && line[n-1].Equal(p) {
				continue
			}
			line = append(line, p)
		}
	}
	return &Route{Steps: steps, Polyline: line}
}

// Clone returns a deep copy, so a holder of the copy is unaffected by later
// changes to r.
func (r *Route) Clone() *Route {
	if r == nil {
		return nil
	}
	out := &Route{
		Steps:    make([]Step, len(r.Steps)),
		Polyline: r.Polyline.Clone(),
	}
	for i, s := range r.Steps {
		out.Steps[i] = Step{
			Instruction: s.Instruction,
			Distance:    s.Distance,
			Polyline:    s.Polyline.Clone(),
		}
	}
	return out
}

// Len returns the number of steps; a nil route has none.
func (r *Route) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Steps)
}

// Validate reports the first structural problem with the route.
func (r *Route) Validate() error {
	if r == nil {
		return fmt.Errorf("route is nil")
	}
	for i, s := range r.Steps {
		if len(s.Polyline) == 0 {
			return fmt.Errorf("step %d has an empty polyline", i)
		}
		if s.Distance < 0 || math.IsNaN(s.Distance) {
			return fmt.Errorf("step %d has invalid distance %v", i, s.Distance)
		}
	}
	if len(r.Steps) > 0 && len(r.Polyline) == 0 {
		return fmt.Errorf("route has steps but no polyline")
	}
	return nil
}

// Maneuver is the turn category shown on the device.
type Maneuver string

// Maneuvers understood by the device.
const (
	TurnLeft  Maneuver = "turn-left"
	TurnRight Maneuver = "turn-right"
	Straight  Maneuver = "straight"
	UTurn     Maneuver = "uturn"
)

// Classify derives a maneuver from instruction text. Matching is a
// case-insensitive substring search and the first rule that matches wins:
// u-turn, right, left, straight/continue. Anything else is Straight.
func Classify(instruction string) Maneuver {
	s := strings.ToLower(instruction)
	switch {
	case containsAny(s, "u-turn", "u turn", "uturn"):
		return UTurn
	case strings.Contains(s, "right"):
		return TurnRight
	case strings.Contains(s, "left"):
		return TurnLeft
	case containsAny(s, "straight", "continue"):
		return Straight
	default:
		return Straight
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// FormatDistance renders meters for a small display: whole meters under a
// kilometer ("120 m"), kilometers with one decimal above ("1.5 km").
func FormatDistance(meters float64) string {
	if math.IsNaN(meters) || meters < 0 {
		meters = 0
	}
	rounded := math.Round(meters)
	if rounded < 1000 {
		return fmt.Sprintf("%d m", int(rounded))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

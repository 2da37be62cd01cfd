// Package tracker turns a stream of position fixes into discrete navigation
// events. A Tracker holds one route and the index of the step being
// followed. Each fix either advances to the next step (when it lands within
// the advance threshold of the current step's end), reports that the
// traveller has strayed from the route, or does nothing.
//
// The Tracker performs no I/O and never blocks. It is not safe for
// concurrent use: callers deliver fixes from a single goroutine.
package tracker

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/thruflo/turnlink/internal/geometry"
	"github.com/thruflo/turnlink/internal/route"
)

// Default thresholds, in meters.
const (
	DefaultAdvanceThreshold = 20.0
	DefaultRerouteThreshold = 50.0
)

// State is the tracker's lifecycle state.
type State int

const (
	// Idle means no route is set.
	Idle State = iota
	// Active means a step is being followed.
	Active
	// Finished means the last step has been reached, or the route was empty.
	Finished
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Finished:
		return "finished"
	default:
		return "idle"
	}
}

// EventType identifies what an update produced.
type EventType int

const (
	// NoOp means the fix changed nothing worth reporting.
	NoOp EventType = iota
	// StepChanged means a new step became current.
	StepChanged
	// OffRoute means the fix is farther than the reroute threshold from the
	// route. It is advisory; the tracker never asks for a new route.
	OffRoute
	// RouteFinished means the final step was reached. It is produced once
	// per route.
	RouteFinished
)

func (t EventType) String() string {
	switch t {
	case StepChanged:
		return "step_changed"
	case OffRoute:
		return "off_route"
	case RouteFinished:
		return "route_finished"
	default:
		return "noop"
	}
}

// Event is the result of SetRoute or UpdateLocation.
type Event struct {
	Type EventType
	// Index and Step are set for StepChanged.
	Index int
	Step  route.Step
	// Distance is the distance to the route for OffRoute, or to the end of
	// the current step for NoOp, in meters.
	Distance float64
}

// DistanceFunc measures a point against a polyline.
type DistanceFunc func(p orb.Point, line orb.LineString) float64

// Option configures a Tracker.
type Option func(*Tracker)

// WithAdvanceThreshold sets the advance distance in meters.
func WithAdvanceThreshold(meters float64) Option {
	return func(t *Tracker) {
		t.advanceThreshold = meters
	}
}

// WithRerouteThreshold sets the off-route distance in meters.
func WithRerouteThreshold(meters float64) Option {
	return func(t *Tracker) {
		t.rerouteThreshold = meters
	}
}

// WithRouteDistance replaces the off-route metric. The default measures to
// the nearest route vertex (geometry.NearestVertexDistance).
func WithRouteDistance(fn DistanceFunc) Option {
	return func(t *Tracker) {
		t.routeDistance = fn
	}
}

// Tracker is the route-progress state machine.
type Tracker struct {
	advanceThreshold float64
	rerouteThreshold float64
	routeDistance    DistanceFunc

	route     *route.Route
	stepIndex int
	state     State
}

// New creates an idle Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		advanceThreshold: DefaultAdvanceThreshold,
		rerouteThreshold: DefaultRerouteThreshold,
		routeDistance:    geometry.NearestVertexDistance,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetRoute replaces the current route and starts at step 0. The tracker
// keeps its own copy of r. A route with steps yields StepChanged for step 0;
// an empty route moves straight to Finished and yields NoOp.
func (t *Tracker) SetRoute(r *route.Route) (Event, error) {
	if err := r.Validate(); err != nil {
		return Event{}, fmt.Errorf("invalid route: %w", err)
	}

	t.route = r.Clone()
	t.stepIndex = 0

	if len(t.route.Steps) == 0 {
		t.state = Finished
		return Event{Type: NoOp}, nil
	}

	t.state = Active
	return Event{Type: StepChanged, Index: 0, Step: t.route.Steps[0]}, nil
}

// Clear discards the route and returns to Idle.
func (t *Tracker) Clear() {
	t.route = nil
	t.stepIndex = 0
	t.state = Idle
}

// State returns the lifecycle state.
func (t *Tracker) State() State {
	return t.state
}

// StepIndex returns the index of the current step. It is only meaningful
// while Active.
func (t *Tracker) StepIndex() int {
	return t.stepIndex
}

// Route returns the tracker's copy of the current route, or nil.
func (t *Tracker) Route() *route.Route {
	return t.route
}

// CurrentStep returns the step being followed.
func (t *Tracker) CurrentStep() (route.Step, bool) {
	if t.state != Active || t.route == nil || t.stepIndex >= len(t.route.Steps) {
		return route.Step{}, false
	}
	return t.route.Steps[t.stepIndex], true
}

// UpdateLocation feeds one fix into the state machine. It is a no-op while
// Idle or Finished. When the fix is within the advance threshold of the
// current step's last vertex the tracker advances by exactly one step and
// the off-route check is skipped for that fix.
func (t *Tracker) UpdateLocation(pos geometry.Position) Event {
	step, ok := t.CurrentStep()
	if !ok {
		return Event{Type: NoOp}
	}

	p := pos.Point()
	end, _ := geometry.LastVertex(step.Polyline)
	distToEnd := geometry.Distance(p, end)

	if distToEnd <= t.advanceThreshold {
		t.stepIndex++
		if t.stepIndex < len(t.route.Steps) {
			return Event{Type: StepChanged, Index: t.stepIndex, Step: t.route.Steps[t.stepIndex]}
		}
		t.state = Finished
		return Event{Type: RouteFinished, Index: t.stepIndex - 1}
	}

	distToRoute := t.routeDistance(p, t.route.Polyline)
	if distToRoute > t.rerouteThreshold {
		return Event{Type: OffRoute, Index: t.stepIndex, Distance: distToRoute}
	}

	return Event{Type: NoOp, Index: t.stepIndex, Distance: distToEnd}
}

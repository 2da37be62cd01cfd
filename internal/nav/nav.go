// Package nav wires the pieces of turnlink together. A Navigator owns a
// route tracker and a device link: it feeds position fixes into the tracker
// one at a time, turns step changes into device messages, and reports
// progress and failures as Status values.
//
// Neither the tracker nor the device holds a reference back to the
// Navigator. The tracker returns events from each call; the device publishes
// events on a channel that Run consumes alongside the position stream.
package nav

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/thruflo/turnlink/internal/bridge"
	"github.com/thruflo/turnlink/internal/geocode"
	"github.com/thruflo/turnlink/internal/geometry"
	"github.com/thruflo/turnlink/internal/logging"
	"github.com/thruflo/turnlink/internal/route"
	"github.com/thruflo/turnlink/internal/tracker"
)

const statusBuffer = 64

// PositionSource produces position fixes. Each call to Positions starts a
// new stream; the channel is closed when the stream ends or ctx is done.
type PositionSource interface {
	Positions(ctx context.Context) (<-chan geometry.Position, error)
}

// Router computes a route between two points.
type Router interface {
	Route(ctx context.Context, origin, destination orb.Point) (*route.Route, error)
}

// Resolver turns destination text into a point and a display name. It
// returns an error wrapping geocode.ErrNotFound when nothing matches.
type Resolver interface {
	Resolve(ctx context.Context, text string) (orb.Point, string, error)
}

// Device is the link to the display. *bridge.Bridge satisfies it.
type Device interface {
	Connect(ctx context.Context, address string) error
	Send(msg bridge.Message) (bridge.Transport, error)
	Events() <-chan bridge.Event
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithRouter sets the router used by Navigate and rerouting.
func WithRouter(r Router) Option {
	return func(n *Navigator) {
		n.router = r
	}
}

// WithResolver sets the destination resolver used by Navigate.
func WithResolver(r Resolver) Option {
	return func(n *Navigator) {
		n.resolver = r
	}
}

// WithTrackerOptions configures the route tracker.
func WithTrackerOptions(opts ...tracker.Option) Option {
	return func(n *Navigator) {
		n.trackerOpts = append(n.trackerOpts, opts...)
	}
}

// WithReroute requests a fresh route from the current fix when the
// traveller goes off route, at most once per cooldown. It needs a Router
// and a destination set by Navigate.
func WithReroute(cooldown time.Duration) Option {
	return func(n *Navigator) {
		n.reroute = true
		n.rerouteCooldown = cooldown
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(n *Navigator) {
		n.log = l
	}
}

// Navigator drives one navigation session at a time.
type Navigator struct {
	device          Device
	router          Router
	resolver        Resolver
	trackerOpts     []tracker.Option
	reroute         bool
	rerouteCooldown time.Duration
	log             *logging.Logger

	// mu serializes tracker access between Start, Navigate and Run.
	mu          sync.Mutex
	tracker     *tracker.Tracker
	runID       string
	destination *orb.Point
	offRoute    bool
	lastReroute time.Time

	statuses chan Status
}

// New creates a Navigator that sends to device.
func New(device Device, opts ...Option) *Navigator {
	n := &Navigator{
		device:   device,
		log:      logging.For("nav"),
		statuses: make(chan Status, statusBuffer),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.tracker = tracker.New(n.trackerOpts...)
	return n
}

// Statuses returns the status channel. Reports are dropped, with a warning,
// when nobody keeps up with it.
func (n *Navigator) Statuses() <-chan Status {
	return n.statuses
}

// RunID identifies the current route session; it changes on every Start.
func (n *Navigator) RunID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.runID
}

// State returns the tracker state.
func (n *Navigator) State() tracker.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tracker.State()
}

// Connect points the device link at address. A malformed address is
// reported as InvalidAddress and returned as an *Error. A failed dial is
// reported as TransportFailed and returned as well, but the device keeps
// retrying in the background and the fallback stays usable.
func (n *Navigator) Connect(ctx context.Context, address string) error {
	err := n.device.Connect(ctx, address)
	if err == nil {
		return nil
	}

	kind := TransportFailed
	text := fmt.Sprintf("Cannot reach device at %s: %v", address, err)
	if errors.Is(err, bridge.ErrInvalidAddress) {
		kind = InvalidAddress
		text = fmt.Sprintf("Invalid device address %q", address)
	}
	n.mu.Lock()
	n.publishLocked(Status{Kind: kind, Text: text, Index: -1})
	n.mu.Unlock()
	return &Error{Kind: kind, Err: err}
}

// Start begins a new session on r and sends its first step.
func (n *Navigator) Start(ctx context.Context, r *route.Route) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.startLocked(r)
}

func (n *Navigator) startLocked(r *route.Route) error {
	ev, err := n.tracker.SetRoute(r)
	if err != nil {
		return fmt.Errorf("failed to set route: %w", err)
	}

	n.runID = uuid.NewString()
	n.offRoute = false
	n.log.Info("route started", "run_id", n.runID, "steps", r.Len())

	if n.tracker.State() == tracker.Finished {
		n.publishLocked(Status{Text: "Route has no steps", Index: -1})
		return nil
	}
	n.handleLocked(ev)
	return nil
}

// Navigate resolves destination, requests a route from origin and starts
// it. Failures are reported as DestinationNotFound or RouteRequestFailed
// and are not retried.
func (n *Navigator) Navigate(ctx context.Context, origin orb.Point, destination string) (*route.Route, error) {
	if n.resolver == nil || n.router == nil {
		return nil, errors.New("navigate needs a resolver and a router")
	}

	dest, name, err := n.resolver.Resolve(ctx, destination)
	if err != nil {
		text := fmt.Sprintf("Could not find %q: %v", destination, err)
		if errors.Is(err, geocode.ErrNotFound) {
			text = fmt.Sprintf("No place matches %q", destination)
		}
		n.report(Status{Kind: DestinationNotFound, Text: text, Index: -1})
		return nil, &Error{Kind: DestinationNotFound, Err: err}
	}
	n.report(Status{Text: "Routing to " + name, Index: -1})

	r, err := n.router.Route(ctx, origin, dest)
	if err != nil {
		n.report(Status{Kind: RouteRequestFailed, Text: fmt.Sprintf("Route request failed: %v", err), Index: -1})
		return nil, &Error{Kind: RouteRequestFailed, Err: err}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.destination = &dest
	if err := n.startLocked(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Run feeds fixes from src into the tracker until the route finishes, the
// source ends or ctx is done, forwarding device events as statuses in the
// meantime. Fixes are processed strictly one after another. The source's
// context is cancelled when Run returns.
func (n *Navigator) Run(ctx context.Context, src PositionSource) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fixes, err := src.Positions(ctx)
	if err != nil {
		return fmt.Errorf("failed to start position source: %w", err)
	}

	events := n.device.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			n.handleDeviceEvent(ev)

		case fix, ok := <-fixes:
			if !ok {
				n.log.Info("position source ended")
				return nil
			}
			if n.Update(ctx, fix) == tracker.Finished {
				return nil
			}
		}
	}
}

// Update applies one fix and returns the resulting tracker state. A
// reroute request runs without holding the navigator lock.
func (n *Navigator) Update(ctx context.Context, fix geometry.Position) tracker.State {
	n.mu.Lock()
	if n.tracker.State() != tracker.Active {
		state := n.tracker.State()
		n.mu.Unlock()
		return state
	}

	ev := n.tracker.UpdateLocation(fix)
	n.handleLocked(ev)

	var (
		dest orb.Point
		due  bool
	)
	if ev.Type == tracker.OffRoute {
		dest, due = n.rerouteDueLocked()
	}
	runID := n.runID
	state := n.tracker.State()
	n.mu.Unlock()

	if due {
		return n.rerouteFrom(ctx, fix, dest, runID)
	}
	return state
}

func (n *Navigator) handleLocked(ev tracker.Event) {
	switch ev.Type {
	case tracker.StepChanged:
		n.offRoute = false
		msg := bridge.NewMessage(ev.Index, ev.Step)
		n.publishLocked(Status{
			Text:  fmt.Sprintf("Step %d: %s (%s)", ev.Index+1, msg.Instruction, msg.DistanceText),
			Index: ev.Index,
		})
		if _, err := n.device.Send(msg); err != nil {
			n.publishLocked(Status{
				Kind:  SendFailed,
				Text:  fmt.Sprintf("Could not deliver step %d: %v", ev.Index+1, err),
				Index: ev.Index,
			})
		}

	case tracker.OffRoute:
		if n.offRoute {
			return
		}
		n.offRoute = true
		n.publishLocked(Status{
			Kind:  OffRoute,
			Text:  fmt.Sprintf("Off route: %.0f m from the route", ev.Distance),
			Index: n.tracker.StepIndex(),
		})

	case tracker.RouteFinished:
		n.publishLocked(Status{Text: "Arrived at destination", Index: ev.Index})

	case tracker.NoOp:
		n.offRoute = false
	}
}

// rerouteDueLocked reports whether a reroute may start now and claims the
// cooldown slot if so.
func (n *Navigator) rerouteDueLocked() (orb.Point, bool) {
	if !n.reroute || n.router == nil || n.destination == nil {
		return orb.Point{}, false
	}
	if !n.lastReroute.IsZero() && time.Since(n.lastReroute) < n.rerouteCooldown {
		return orb.Point{}, false
	}
	n.lastReroute = time.Now()
	return *n.destination, true
}

// rerouteFrom requests a route from fix and starts it, unless another
// session was started while the request was in flight.
func (n *Navigator) rerouteFrom(ctx context.Context, fix geometry.Position, dest orb.Point, runID string) tracker.State {
	r, err := n.router.Route(ctx, fix.Point(), dest)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.runID != runID {
		n.log.Info("discarding reroute for a replaced session", "run_id", runID)
		return n.tracker.State()
	}
	if err != nil {
		n.publishLocked(Status{Kind: RouteRequestFailed, Text: fmt.Sprintf("Reroute failed: %v", err), Index: -1})
		return n.tracker.State()
	}
	n.publishLocked(Status{Text: "Rerouted", Index: -1})
	if err := n.startLocked(r); err != nil {
		n.publishLocked(Status{Kind: RouteRequestFailed, Text: err.Error(), Index: -1})
	}
	return n.tracker.State()
}

func (n *Navigator) handleDeviceEvent(ev bridge.Event) {
	st := Status{Index: -1}
	switch ev.Type {
	case bridge.EventConnected:
		st.Text = "Device connected at " + ev.Address
	case bridge.EventDisconnected:
		switch {
		case ev.Err == nil:
			st.Text = "Device disconnected"
		case ev.Dial:
			// Connect already reported the failed dial; retries follow
			// as ReconnectScheduled.
			n.log.Debug("dial failed", "address", ev.Address, "error", ev.Err)
			return
		default:
			st.Kind = TransportFailed
			st.Text = fmt.Sprintf("Device connection lost: %v", ev.Err)
		}
	case bridge.EventReconnectScheduled:
		st.Text = fmt.Sprintf("Reconnecting in %s (attempt %d)", ev.Delay, ev.Attempt)
	case bridge.EventReconnectExhausted:
		st.Kind = TransportFailed
		st.Text = fmt.Sprintf("Gave up reconnecting after %d attempts", ev.Attempt)
	case bridge.EventSendFailed:
		st.Kind = SendFailed
		st.Index = ev.Index
		st.Text = fmt.Sprintf("Websocket send failed for step %d (%v), using fallback", ev.Index+1, ev.Err)
	case bridge.EventFallbackSent:
		st.Index = ev.Index
		st.Text = fmt.Sprintf("Step %d delivered via fallback", ev.Index+1)
	case bridge.EventFallbackFailed:
		st.Kind = FallbackFailed
		st.Index = ev.Index
		st.Text = fmt.Sprintf("Fallback failed for step %d: %v", ev.Index+1, ev.Err)
	default:
		return
	}
	n.report(st)
}

func (n *Navigator) report(st Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.publishLocked(st)
}

func (n *Navigator) publishLocked(st Status) {
	st.RunID = n.runID
	if st.Time.IsZero() {
		st.Time = time.Now()
	}

	log := n.log.With("run_id", st.RunID)
	if st.Failed() {
		log.Warn(st.Text, "kind", st.Kind, "index", st.Index)
	} else {
		log.Info(st.Text, "index", st.Index)
	}

	select {
	case n.statuses <- st:
	default:
		n.log.Warn("status dropped", "text", st.Text)
	}
}

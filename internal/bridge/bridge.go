// Package bridge maintains the link between turnlink and an embedded
// display device.
//
// The primary transport is a persistent websocket at ws://<host:port>/.
// When a message cannot be written there (no connection, or the write
// fails) the bridge makes exactly one fallback attempt: POST
// http://<host:port>/step with the same JSON body. Any transport failure
// drops the connection and schedules a reconnect after a fixed delay; the
// retry continues until Disconnect, Connect to another address, or Close.
//
// # Concurrency
//
// Connect, Disconnect, Send, the read loop and the reconnect timer run
// concurrently. All state lives behind one mutex. Every Connect and
// Disconnect bumps a generation counter; timers, dials and read loops
// capture the generation they were started under and do nothing once it
// has moved on. At most one transport is open at any time.
//
// Lifecycle and delivery events are published on a single buffered
// channel (Events). The bridge never blocks on it: when the buffer is full
// the event is dropped and a warning is logged.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/thruflo/turnlink/internal/logging"
)

const (
	// DefaultReconnectDelay is the fixed wait before each reconnect.
	DefaultReconnectDelay = 3 * time.Second

	// DefaultDialTimeout bounds a single websocket dial.
	DefaultDialTimeout = 5 * time.Second

	// DefaultFallbackTimeout bounds the fallback POST.
	DefaultFallbackTimeout = 5 * time.Second

	// FallbackPath is the device endpoint for one-shot delivery.
	FallbackPath = "/step"

	eventBuffer = 64
)

var (
	// ErrInvalidAddress means the address is not a usable host:port.
	ErrInvalidAddress = errors.New("invalid device address")

	// ErrNotConnected means no websocket connection is open.
	ErrNotConnected = errors.New("not connected")

	// ErrNoAddress means Send was called before any Connect.
	ErrNoAddress = errors.New("no device address")

	// ErrSuperseded means a dial finished after Disconnect or a newer
	// Connect had already taken over.
	ErrSuperseded = errors.New("connection attempt superseded")

	// ErrClosed means the bridge has been closed.
	ErrClosed = errors.New("bridge closed")
)

// State is the connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// EventType identifies a bridge event.
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
	EventReconnectScheduled
	EventReconnectExhausted
	EventSendFailed
	EventFallbackSent
	EventFallbackFailed
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReconnectScheduled:
		return "reconnect_scheduled"
	case EventReconnectExhausted:
		return "reconnect_exhausted"
	case EventSendFailed:
		return "send_failed"
	case EventFallbackSent:
		return "fallback_sent"
	case EventFallbackFailed:
		return "fallback_failed"
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// Event is published on the Events channel.
type Event struct {
	Type    EventType
	Address string
	// Index is the message index for send and fallback events.
	Index int
	// Attempt and Delay describe a scheduled reconnect.
	Attempt int
	Delay   time.Duration
	// Dial marks a Disconnected event caused by a failed dial rather than
	// by losing an open connection.
	Dial bool
	Err     error
	Time    time.Time
}

// Transport names the path a message was handed to.
type Transport int

const (
	// TransportWebSocket means the message was written on the open socket.
	TransportWebSocket Transport = iota + 1
	// TransportFallback means the fallback POST was dispatched. Its outcome
	// arrives later as EventFallbackSent or EventFallbackFailed.
	TransportFallback
)

func (t Transport) String() string {
	switch t {
	case TransportWebSocket:
		return "websocket"
	case TransportFallback:
		return "fallback"
	}
	return "none"
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(b *Bridge) {
		b.dialer = d
	}
}

// WithHTTPClient sets the client used for the fallback POST.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Bridge) {
		b.httpClient = client
	}
}

// WithReconnectDelay sets the fixed delay between reconnect attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(b *Bridge) {
		b.reconnectDelay = d
	}
}

// WithDialTimeout bounds each dial. Zero disables the bound.
func WithDialTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		b.dialTimeout = d
	}
}

// WithFallbackTimeout bounds the fallback POST.
func WithFallbackTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		b.fallbackTimeout = d
	}
}

// WithMaxReconnectAttempts caps consecutive reconnect attempts. Zero, the
// default, retries forever.
func WithMaxReconnectAttempts(n int) Option {
	return func(b *Bridge) {
		b.maxReconnectAttempts = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(b *Bridge) {
		b.log = l
	}
}

// Bridge owns the device transports.
type Bridge struct {
	dialer               Dialer
	httpClient           *http.Client
	reconnectDelay       time.Duration
	dialTimeout          time.Duration
	fallbackTimeout      time.Duration
	maxReconnectAttempts int
	log                  *logging.Logger

	mu         sync.Mutex
	state      State
	address    string
	generation uint64
	conn       Conn
	cancelDial context.CancelFunc
	timer      *time.Timer
	attempts   int
	closed     bool

	// gorilla/websocket allows one concurrent writer.
	writeMu sync.Mutex

	events chan Event
	wg     sync.WaitGroup
}

// New creates a disconnected Bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		dialer:          WebSocketDialer{},
		httpClient:      &http.Client{},
		reconnectDelay:  DefaultReconnectDelay,
		dialTimeout:     DefaultDialTimeout,
		fallbackTimeout: DefaultFallbackTimeout,
		log:             logging.For("bridge"),
		events:          make(chan Event, eventBuffer),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Events returns the event channel. It is closed by Close.
func (b *Bridge) Events() <-chan Event {
	return b.events
}

// State returns the connection state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Address returns the current target address.
func (b *Bridge) Address() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.address
}

// Connect tears down any existing transport, then dials ws://address/.
// A malformed address returns ErrInvalidAddress and leaves the bridge
// Disconnected with nothing scheduled. A dial failure is returned and a
// reconnect is scheduled. Connect blocks until the dial completes or ctx
// is done.
func (b *Bridge) Connect(ctx context.Context, address string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.teardownLocked()

	if err := ValidateAddress(address); err != nil {
		b.address = ""
		b.mu.Unlock()
		b.log.Warn("rejected device address", "address", address, "error", err)
		return err
	}

	b.address = address
	b.state = Connecting
	gen := b.generation
	b.mu.Unlock()

	b.log.Info("connecting", "address", address)
	return b.dial(ctx, gen, address)
}

// Disconnect cancels any pending reconnect and closes the transport. The
// address is kept so Send can still use the fallback.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.teardownLocked()
}

// Close disconnects, waits for background work, and closes Events.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.teardownLocked()
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	close(b.events)
	return nil
}

// Send hands msg to the device. If the socket is open the message is
// written there. Otherwise, or if the write fails, one fallback POST is
// dispatched in the background; a failed write also drops the connection
// and schedules a reconnect. The returned Transport says which path was
// taken. An error is returned only when neither path can be attempted.
func (b *Bridge) Send(msg Message) (Transport, error) {
	payload, err := msg.Marshal()
	if err != nil {
		return 0, fmt.Errorf("failed to encode message: %w", err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, ErrClosed
	}
	conn, state, gen, address := b.conn, b.state, b.generation, b.address
	b.mu.Unlock()

	if state == Connected && conn != nil {
		b.writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, payload)
		b.writeMu.Unlock()
		if err == nil {
			b.log.Debug("step sent", "index", msg.Index, "transport", TransportWebSocket)
			return TransportWebSocket, nil
		}

		b.log.Warn("websocket write failed", "index", msg.Index, "error", err)
		b.emit(Event{Type: EventSendFailed, Address: address, Index: msg.Index, Err: err})
		b.handleDisconnect(gen, conn, err)
	} else {
		b.log.Debug("websocket unavailable", "index", msg.Index, "state", state)
		b.emit(Event{Type: EventSendFailed, Address: address, Index: msg.Index, Err: ErrNotConnected})
	}

	if address == "" {
		return 0, ErrNoAddress
	}
	if !b.startFallback(address, msg.Index, payload) {
		return 0, ErrClosed
	}
	return TransportFallback, nil
}

// startFallback runs the one-shot POST in its own goroutine.
func (b *Bridge) startFallback(address string, index int, payload []byte) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), b.fallbackTimeout)
		defer cancel()

		if err := postStep(ctx, b.httpClient, address, payload); err != nil {
			b.log.Warn("fallback failed", "index", index, "address", address, "error", err)
			b.emit(Event{Type: EventFallbackFailed, Address: address, Index: index, Err: err})
			return
		}
		b.log.Info("step sent", "index", index, "transport", TransportFallback)
		b.emit(Event{Type: EventFallbackSent, Address: address, Index: index})
	}()
	return true
}

// dial opens a transport for generation gen. It is called with the state
// already set to Connecting.
func (b *Bridge) dial(parent context.Context, gen uint64, address string) error {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if b.dialTimeout > 0 {
		ctx, cancel = context.WithTimeout(parent, b.dialTimeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	b.mu.Lock()
	if b.closed || b.generation != gen || b.state != Connecting {
		b.mu.Unlock()
		cancel()
		return ErrSuperseded
	}
	b.cancelDial = cancel
	b.mu.Unlock()

	conn, err := b.dialer.Dial(ctx, WebSocketURL(address))
	cancel()

	b.mu.Lock()
	if b.closed || b.generation != gen || b.state != Connecting {
		b.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return ErrSuperseded
	}
	b.cancelDial = nil

	if err != nil {
		b.mu.Unlock()
		b.log.Warn("dial failed", "address", address, "error", err)
		b.handleDisconnect(gen, nil, err)
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	b.conn = conn
	b.state = Connected
	b.attempts = 0
	b.wg.Add(1)
	b.emitLocked(Event{Type: EventConnected, Address: address})
	b.mu.Unlock()

	b.log.Info("connected", "address", address)
	go b.readLoop(gen, conn)
	return nil
}

// readLoop consumes inbound frames until the connection fails. Inbound
// payloads carry no control meaning and are only logged.
func (b *Bridge) readLoop(gen uint64, conn Conn) {
	defer b.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			b.handleDisconnect(gen, conn, err)
			return
		}
		b.log.Debug("frame received", "bytes", len(data), "payload", string(data))
	}
}

// handleDisconnect reacts to a transport failure. conn is the failed
// connection, or nil for a failed dial. Failures from superseded
// generations or already replaced connections are ignored.
func (b *Bridge) handleDisconnect(gen uint64, conn Conn, cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.generation != gen {
		return
	}
	if conn != nil && b.conn != conn {
		return
	}
	if conn == nil && b.state != Connecting {
		return
	}

	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	prev := b.state
	b.state = Disconnected
	if prev != Disconnected {
		b.emitLocked(Event{Type: EventDisconnected, Address: b.address, Err: cause, Dial: conn == nil})
	}
	b.log.Warn("transport lost", "address", b.address, "error", cause)

	b.scheduleReconnectLocked(gen)
}

func (b *Bridge) scheduleReconnectLocked(gen uint64) {
	if b.address == "" {
		return
	}
	if b.maxReconnectAttempts > 0 && b.attempts >= b.maxReconnectAttempts {
		b.log.Error("giving up on reconnect", "address", b.address, "attempts", b.attempts)
		b.emitLocked(Event{Type: EventReconnectExhausted, Address: b.address, Attempt: b.attempts})
		return
	}

	b.attempts++
	attempt := b.attempts
	delay := b.reconnectDelay
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(delay, func() {
		b.fireReconnect(gen, attempt)
	})
	b.emitLocked(Event{Type: EventReconnectScheduled, Address: b.address, Attempt: attempt, Delay: delay})
}

// fireReconnect runs when a reconnect timer expires. It only dials if the
// bridge is still Disconnected under the same generation with an address.
func (b *Bridge) fireReconnect(gen uint64, attempt int) {
	b.mu.Lock()
	if b.closed || b.generation != gen || b.state != Disconnected || b.address == "" {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	b.state = Connecting
	address := b.address
	b.mu.Unlock()

	b.log.Info("reconnecting", "address", address, "attempt", attempt)
	_ = b.dial(context.Background(), gen, address)
}

// teardownLocked invalidates the current generation and releases the
// transport, any in-flight dial and any pending timer.
func (b *Bridge) teardownLocked() {
	b.generation++

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if b.cancelDial != nil {
		b.cancelDial()
		b.cancelDial = nil
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	b.attempts = 0

	prev := b.state
	b.state = Disconnected
	if prev == Connected || prev == Connecting {
		b.log.Info("disconnected", "address", b.address)
		b.emitLocked(Event{Type: EventDisconnected, Address: b.address})
	}
}

func (b *Bridge) emit(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitLocked(ev)
}

func (b *Bridge) emitLocked(ev Event) {
	if b.closed {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case b.events <- ev:
	default:
		b.log.Warn("event dropped", "type", ev.Type)
	}
}

package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/thruflo/turnlink/internal/bridge"
	"github.com/thruflo/turnlink/internal/logging"
)

const (
	// DefaultAddr is where `turnlink device` listens by default.
	DefaultAddr = "127.0.0.1:8081"

	maxMessageBytes = 64 << 10
)

// Transport names how a message reached the device.
type Transport string

const (
	TransportWebSocket Transport = "ws"
	TransportHTTP      Transport = "http"
)

// Received is one message accepted by the simulator.
type Received struct {
	Transport Transport      `json:"transport"`
	Message   bridge.Message `json:"message"`
	Time      time.Time      `json:"time"`
}

// ServerOptions holds configuration for creating a Server.
type ServerOptions struct {
	// Addr is the listen address. Port 0 picks a free port.
	Addr   string
	Logger *logging.Logger
}

// Server is the device simulator.
type Server struct {
	addr string
	log  *logging.Logger

	upgrader websocket.Upgrader

	mu             sync.Mutex
	received       []Received
	conns          map[*websocket.Conn]struct{}
	fallbackStatus int
	subscribers    []chan Received

	server   *http.Server
	listener net.Listener
	running  bool
}

// NewServer creates a simulator with the given options.
func NewServer(opts ServerOptions) *Server {
	addr := opts.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	log := opts.Logger
	if log == nil {
		log = logging.For("device")
	}

	return &Server{
		addr:  addr,
		log:   log,
		conns: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the simulator's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc(bridge.FallbackPath, s.handleStep)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/last", s.handleLast)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server already running")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.running = true

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server stopped", "error", err)
		}
	}()

	s.log.Info("device listening", "address", ln.Addr().String())
	return nil
}

// Stop closes open websockets and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.server
	s.mu.Unlock()

	s.DropConnections()
	return srv.Shutdown(ctx)
}

// Addr returns the bound host:port once started, else the configured
// address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Running reports whether Start has been called without Stop.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Received returns a copy of everything received so far.
func (s *Server) Received() []Received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Received(nil), s.received...)
}

// Last returns the most recent message.
func (s *Server) Last() (Received, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.received) == 0 {
		return Received{}, false
	}
	return s.received[len(s.received)-1], true
}

// Connections returns the number of open websockets.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Subscribe returns a channel that receives every subsequent message. The
// channel is buffered; a slow subscriber misses messages.
func (s *Server) Subscribe() <-chan Received {
	ch := make(chan Received, 16)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

// SetFallbackStatus makes POST /step answer with code without recording
// the message. Zero restores normal behavior.
func (s *Server) SetFallbackStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallbackStatus = code
}

// DropConnections closes every open websocket, as a device reboot would.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *Server) record(transport Transport, msg bridge.Message) {
	r := Received{Transport: transport, Message: msg, Time: time.Now()}

	s.mu.Lock()
	s.received = append(s.received, r)
	subs := append([]chan Received(nil), s.subscribers...)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- r:
		default:
		}
	}
	s.log.Info("step received", "transport", string(transport), "index", msg.Index,
		"maneuver", string(msg.Maneuver), "instruction", msg.Instruction, "distance", msg.DistanceText)
}

// handleRoot upgrades websocket requests and answers plain GETs with a
// short banner.
// GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !websocket.IsWebSocketUpgrade(r) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "turnlink device simulator")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	s.log.Info("client connected", "remote", conn.RemoteAddr().String())

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
		s.log.Info("client disconnected", "remote", conn.RemoteAddr().String())
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg bridge.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("ignoring malformed frame", "error", err)
			continue
		}
		s.record(TransportWebSocket, msg)

		ack, _ := json.Marshal(map[string]int{"ack": msg.Index})
		if err := conn.WriteMessage(websocket.TextMessage, ack); err != nil {
			return
		}
	}
}

// handleStep accepts a single message.
// POST /step
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	status := s.fallbackStatus
	s.mu.Unlock()
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	var msg bridge.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		http.Error(w, fmt.Sprintf("Invalid message JSON: %v", err), http.StatusBadRequest)
		return
	}
	if msg.Instruction == "" {
		http.Error(w, "Instruction is required", http.StatusBadRequest)
		return
	}

	s.record(TransportHTTP, msg)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"index":  msg.Index,
	})
}

// handleHealth returns a simple health check response.
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	received, conns := len(s.received), len(s.conns)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"received":    received,
		"connections": conns,
	})
}

// handleLast returns the most recent message, or 404 if none arrived yet.
// GET /last
func (s *Server) handleLast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	last, ok := s.Last()
	if !ok {
		http.Error(w, "No message received", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(last)
}

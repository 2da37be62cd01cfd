package bridge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

// Conn is the persistent, message-oriented link to the device. A
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a Conn to a ws:// URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// Dial calls f.
func (f DialFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}

// WebSocketDialer dials the device with gorilla/websocket.
type WebSocketDialer struct {
	// Dialer defaults to websocket.DefaultDialer when nil.
	Dialer *websocket.Dialer
}

// Dial opens a websocket connection.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return conn, nil
}

// ValidateAddress checks that address is a bare host:port with a numeric
// port, as expected by ws://<address>/ and http://<address>/step.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if strings.Contains(address, "://") || strings.ContainsAny(address, "/?# ") {
		return fmt.Errorf("%w: %q must be host:port", ErrInvalidAddress, address)
	}

	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidAddress, address)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%w: %q has invalid port", ErrInvalidAddress, address)
	}
	return nil
}

// WebSocketURL returns the primary transport URL for address.
func WebSocketURL(address string) string {
	return "ws://" + address + "/"
}

// FallbackURL returns the one-shot fallback URL for address.
func FallbackURL(address string) string {
	return "http://" + address + FallbackPath
}

// postStep delivers payload with a single HTTP POST.
func postStep(ctx context.Context, client *http.Client, address string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, FallbackURL(address), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post step: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("device returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

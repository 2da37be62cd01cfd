package nav

import (
	"fmt"
	"time"
)

// ErrorKind classifies a failure reported by the Navigator.
type ErrorKind int

const (
	// None marks a progress report rather than a failure.
	None ErrorKind = iota
	RouteRequestFailed
	OffRoute
	InvalidAddress
	SendFailed
	FallbackFailed
	TransportFailed
	DestinationNotFound
)

var kindNames = map[ErrorKind]string{
	None:                "none",
	RouteRequestFailed:  "route_request_failed",
	OffRoute:            "off_route",
	InvalidAddress:      "invalid_address",
	SendFailed:          "send_failed",
	FallbackFailed:      "fallback_failed",
	TransportFailed:     "transport_failed",
	DestinationNotFound: "destination_not_found",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a failure the Navigator returns to its caller.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status is one human-readable report, published on Navigator.Statuses.
type Status struct {
	Kind  ErrorKind
	Text  string
	RunID string
	// Index is the step the report concerns, or -1.
	Index int
	Time  time.Time
}

// Failed reports whether s describes a failure.
func (s Status) Failed() bool {
	return s.Kind != None
}

func (s Status) String() string {
	if s.Failed() {
		return fmt.Sprintf("[%s] %s", s.Kind, s.Text)
	}
	return s.Text
}

package cli

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/thruflo/turnlink/internal/config"
	"github.com/thruflo/turnlink/internal/device"
	"github.com/thruflo/turnlink/internal/logging"
	"github.com/thruflo/turnlink/internal/testutil"
)

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a reading test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Contains(s string) bool {
	return strings.Contains(b.String(), s)
}

// testConfig returns defaults tuned for fast local runs.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Device.ReconnectDelay = 50 * time.Millisecond
	cfg.Device.DialTimeout = time.Second
	cfg.Device.FallbackTimeout = time.Second
	cfg.Tracker.OffRouteMode = config.OffRouteModeSegment
	cfg.Simulation.SpeedMPS = 10000
	cfg.Simulation.Interval = time.Millisecond
	return &cfg
}

func startDevice(t *testing.T) *device.Server {
	t.Helper()

	srv := device.NewServer(device.ServerOptions{Addr: "127.0.0.1:0", Logger: logging.Discard()})
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := testutil.ContextWithTimeout(t, 5*time.Second)
		defer cancel()
		srv.Stop(ctx)
	})
	return srv
}

package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/turnlink/internal/bridge"
	"github.com/thruflo/turnlink/internal/device"
	"github.com/thruflo/turnlink/internal/nav"
	"github.com/thruflo/turnlink/internal/route"
	"github.com/thruflo/turnlink/internal/testutil"
)

func TestRunClassify(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, runClassify(&buf, "Turn right onto Main St", 120, 3))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "maneuver: turn-right", lines[0])
	assert.Equal(t, "distance: 120 m", lines[1])

	var msg bridge.Message
	testutil.MustUnmarshalJSON(t, []byte(strings.TrimPrefix(lines[2], "message:  ")), &msg)
	assert.Equal(t, bridge.Message{
		Index:        3,
		Instruction:  "Turn right onto Main St",
		DistanceText: "120 m",
		Maneuver:     route.TurnRight,
	}, msg)
}

func TestPrintRoute(t *testing.T) {
	t.Parallel()

	t.Run("steps", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := testutil.WriteTestFile(t, dir, "walk.geojson", []byte(testutil.SampleRouteGeoJSON))
		r, err := loadRoute(t.Context(), testConfig(), path, "", "")
		require.NoError(t, err)

		var buf bytes.Buffer
		printRoute(&buf, r)
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 4)
		assert.Contains(t, lines[0], "MANEUVER")
		assert.Contains(t, lines[2], "Head east on Main St")
		assert.Contains(t, lines[2], "straight")
		assert.Contains(t, lines[3], "turn-left")
		assert.Contains(t, lines[3], "111 m")
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		printRoute(&buf, route.New(nil))
		assert.Equal(t, "Route has no steps.\n", buf.String())
	})
}

func TestLoadRouteFlags(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		file, from, to string
		want           string
	}{
		{"nothing", "", "", "", "either --file or --to"},
		{"both", "walk.geojson", "", "x", "mutually exclusive"},
		{"to without from", "", "", "x", "--from is required"},
		{"bad origin", "", "north", "1,2", "invalid coordinate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := loadRoute(t.Context(), testConfig(), tc.file, tc.from, tc.to)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestWriteRoute(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.geojson")
	require.NoError(t, writeRoute(path, testutil.CityRoute()))

	r, err := route.LoadFile(path)
	require.NoError(t, err)
	testutil.AssertRouteSteps(t, r,
		"Head east on Main St", "Turn left onto Oak Ave", "Turn right onto Elm St", "Make a U-turn")
}

func TestStatusPrinter(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("plain", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		p := newStatusPrinter(&buf)
		assert.False(t, p.interactive)

		p.print(nav.Status{Text: "Step 1: Head east (111 m)", Time: at})
		p.print(nav.Status{Kind: nav.OffRoute, Text: "Off route: 80 m from the route", Time: at})
		assert.Equal(t,
			"2025-03-01T12:00:00Z none Step 1: Head east (111 m)\n"+
				"2025-03-01T12:00:00Z off_route Off route: 80 m from the route\n",
			buf.String())
	})

	t.Run("interactive", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		p := &statusPrinter{w: &buf, interactive: true}
		p.print(nav.Status{Text: "Arrived at destination"})
		p.print(nav.Status{Kind: nav.SendFailed, Text: "Send failed"})
		assert.Equal(t, "› Arrived at destination\n! Send failed\n", buf.String())
	})

	t.Run("drain flushes buffered statuses", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		ch := make(chan nav.Status, 4)
		ch <- nav.Status{Text: "a", Time: at}
		ch <- nav.Status{Text: "b", Time: at}
		done := make(chan struct{})
		close(done)

		newStatusPrinter(&buf).drain(ch, done)
		assert.Contains(t, buf.String(), " a\n")
		assert.Contains(t, buf.String(), " b\n")
	})
}

func TestRunSend(t *testing.T) {
	t.Parallel()

	msg := bridge.NewMessage(2, route.Step{Instruction: "Turn left onto Oak Ave", Distance: 40})

	t.Run("websocket", func(t *testing.T) {
		t.Parallel()

		srv := startDevice(t)
		b := newBridge(testConfig())
		defer b.Close()

		var buf bytes.Buffer
		require.NoError(t, runSend(t.Context(), &buf, b, srv.Addr(), msg, time.Second))
		assert.Equal(t, "sent via websocket: Turn left onto Oak Ave\n", buf.String())

		testutil.WaitFor(t, 2*time.Second, func() bool { return len(srv.Received()) == 1 }, "device received the message")
		got, _ := srv.Last()
		assert.Equal(t, device.TransportWebSocket, got.Transport)
		assert.Equal(t, msg, got.Message)
	})

	t.Run("fallback", func(t *testing.T) {
		t.Parallel()

		posted := make(chan struct{}, 1)
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == bridge.FallbackPath {
				posted <- struct{}{}
				w.WriteHeader(http.StatusOK)
				return
			}
			http.NotFound(w, r)
		}))
		defer ts.Close()

		b := newBridge(testConfig())
		defer b.Close()

		var buf bytes.Buffer
		address := strings.TrimPrefix(ts.URL, "http://")
		require.NoError(t, runSend(t.Context(), &buf, b, address, msg, 2*time.Second))
		assert.Equal(t, "sent via fallback: Turn left onto Oak Ave\n", buf.String())
		assert.Len(t, posted, 1)
	})

	t.Run("fallback rejected", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "busy", http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		b := newBridge(testConfig())
		defer b.Close()

		err := runSend(t.Context(), &bytes.Buffer{}, b, strings.TrimPrefix(ts.URL, "http://"), msg, 2*time.Second)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fallback failed")
	})

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()

		b := newBridge(testConfig())
		defer b.Close()

		err := runSend(t.Context(), &bytes.Buffer{}, b, "http://device", msg, time.Second)
		require.ErrorIs(t, err, bridge.ErrInvalidAddress)
	})
}

func TestRunDevice(t *testing.T) {
	t.Parallel()

	srv := device.NewServer(device.ServerOptions{Addr: "127.0.0.1:0"})
	out := &syncBuffer{}

	ctx, cancel := testutil.ContextWithTimeout(t, 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- runDevice(ctx, out, srv) }()

	testutil.WaitFor(t, 2*time.Second, srv.Running, "device started")

	body := testutil.MustMarshalJSON(t, bridge.NewMessage(1, route.Step{Instruction: "Turn right onto Elm St", Distance: 80}))
	resp, err := http.Post("http://"+srv.Addr()+bridge.FallbackPath, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return out.Contains("[http] #1 turn-right") && out.Contains("Turn right onto Elm St")
	}, "received message printed")
	assert.True(t, out.Contains("Device simulator listening on 127.0.0.1:"))

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runDevice did not stop")
	}
	assert.False(t, srv.Running())
}

func TestRunNavigation(t *testing.T) {
	t.Parallel()

	t.Run("follows a route file to the end", func(t *testing.T) {
		t.Parallel()

		srv := startDevice(t)
		path := testutil.WriteTestFile(t, t.TempDir(), "walk.geojson", []byte(testutil.SampleRouteGeoJSON))

		ctx, cancel := testutil.ContextWithTimeout(t, 10*time.Second)
		defer cancel()

		var buf bytes.Buffer
		err := runNavigation(ctx, testConfig(), &buf, runOptions{File: path, Device: srv.Addr()})
		require.NoError(t, err)

		out := buf.String()
		assert.Contains(t, out, "Step 1: Head east on Main St")
		assert.Contains(t, out, "Step 2: Turn left onto Oak Ave")
		assert.Contains(t, out, "Arrived at destination")
		assert.NotContains(t, out, "off_route")

		testutil.WaitFor(t, 2*time.Second, func() bool { return len(srv.Received()) == 2 }, "both steps delivered")
		var indices []int
		for _, r := range srv.Received() {
			assert.Equal(t, device.TransportWebSocket, r.Transport)
			indices = append(indices, r.Message.Index)
		}
		assert.Equal(t, []int{0, 1}, indices)
	})

	t.Run("replays a recorded track", func(t *testing.T) {
		t.Parallel()

		srv := startDevice(t)
		dir := t.TempDir()
		routePath := testutil.WriteTestFile(t, dir, "walk.geojson", []byte(testutil.SampleRouteGeoJSON))
		track := `{"type":"FeatureCollection","features":[
			{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{}},
			{"type":"Feature","geometry":{"type":"Point","coordinates":[0.001,0]},"properties":{}},
			{"type":"Feature","geometry":{"type":"Point","coordinates":[0.001,0.001]},"properties":{}}
		]}`
		trackPath := testutil.WriteTestFile(t, dir, "track.geojson", []byte(track))

		ctx, cancel := testutil.ContextWithTimeout(t, 10*time.Second)
		defer cancel()

		var buf bytes.Buffer
		err := runNavigation(ctx, testConfig(), &buf, runOptions{File: routePath, Device: srv.Addr(), Track: trackPath})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Arrived at destination")
	})

	t.Run("rejects bad input", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			name string
			opts runOptions
			want string
		}{
			{"no device", runOptions{File: "walk.geojson"}, "no device address"},
			{"no route", runOptions{Device: "127.0.0.1:1"}, "either --file or --to"},
			{"both routes", runOptions{Device: "127.0.0.1:1", File: "a", To: "b"}, "mutually exclusive"},
			{"invalid device", runOptions{Device: "ws://device", File: "walk.geojson"}, "invalid_address"},
		}
		for _, tc := range cases {
			err := runNavigation(t.Context(), testConfig(), &bytes.Buffer{}, tc.opts)
			require.Error(t, err, tc.name)
			assert.Contains(t, err.Error(), tc.want, tc.name)
		}
	})

	t.Run("missing route file", func(t *testing.T) {
		t.Parallel()

		srv := startDevice(t)
		err := runNavigation(t.Context(), testConfig(), &bytes.Buffer{},
			runOptions{Device: srv.Addr(), File: filepath.Join(t.TempDir(), "missing.geojson")})
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestJournal(t *testing.T) {
	t.Parallel()

	srv := startDevice(t)
	dir := t.TempDir()
	routePath := testutil.WriteTestFile(t, dir, "walk.geojson", []byte(testutil.SampleRouteGeoJSON))
	journalPath := filepath.Join(dir, "walk.ndjson")

	ctx, cancel := testutil.ContextWithTimeout(t, 10*time.Second)
	defer cancel()

	opts := runOptions{File: routePath, Device: srv.Addr(), Journal: journalPath}
	require.NoError(t, runNavigation(ctx, testConfig(), &bytes.Buffer{}, opts))

	var buf bytes.Buffer
	require.NoError(t, runJournal(&buf, journalPath, 0))
	out := buf.String()
	assert.Contains(t, out, "Step 1: Head east on Main St")
	assert.Contains(t, out, "Arrived at destination")
	assert.Regexp(t, `(?m)^\s+1  `, out)

	t.Run("from", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, runJournal(&buf, journalPath, 1000))
		assert.Equal(t, "No entries.\n", buf.String())
	})

	t.Run("missing", func(t *testing.T) {
		err := runJournal(&bytes.Buffer{}, filepath.Join(dir, "missing.ndjson"), 0)
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/thruflo/turnlink/internal/config"
	"github.com/thruflo/turnlink/internal/journal"
	"github.com/thruflo/turnlink/internal/nav"
	"github.com/thruflo/turnlink/internal/osrm"
	"github.com/thruflo/turnlink/internal/route"
	"github.com/thruflo/turnlink/internal/source"
)

// runOptions are the inputs of one `turnlink run`.
type runOptions struct {
	File    string
	From    string
	To      string
	Device  string
	Track   string
	Journal string
	Reroute bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Follow a route and stream instructions to the device",
	Long: `Loads or requests a route, connects to the device and follows the route
using simulated or recorded position fixes. Each new step is sent to the
device as it becomes current. Runs until the route is finished, the fixes
run out, or it is interrupted.

Examples:
  turnlink run --device 192.168.1.55:81 --file walk.geojson
  turnlink run --device 192.168.1.55:81 --from 52.5163,13.3777 --to "Alexanderplatz, Berlin"
  turnlink run --device 127.0.0.1:8081 --file walk.geojson --track recorded.geojson`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runNavigation(ctx, cfg, os.Stdout, runOpts)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOpts.File, "file", "f", "", "GeoJSON route file")
	runCmd.Flags().StringVar(&runOpts.From, "from", "", "origin as lat,lon (with --to)")
	runCmd.Flags().StringVar(&runOpts.To, "to", "", "destination address or lat,lon")
	runCmd.Flags().StringVar(&runOpts.Device, "device", "", "device address host:port (default: device.address from config)")
	runCmd.Flags().StringVarP(&runOpts.Track, "track", "t", "", "replay fixes from this GeoJSON file instead of simulating a walk")
	runCmd.Flags().StringVarP(&runOpts.Journal, "journal", "j", "", "append statuses to this NDJSON journal")
	runCmd.Flags().BoolVar(&runOpts.Reroute, "reroute", false, "request a new route when off route")
	rootCmd.AddCommand(runCmd)
}

func runNavigation(ctx context.Context, cfg *config.Config, w io.Writer, opts runOptions) error {
	address := opts.Device
	if address == "" {
		address = cfg.Device.Address
	}
	if address == "" {
		return errors.New("no device address: pass --device or set device.address in config")
	}
	if opts.File != "" && opts.To != "" {
		return errors.New("--file and --to are mutually exclusive")
	}
	if opts.File == "" && opts.To == "" {
		return errors.New("either --file or --to is required")
	}

	b := newBridge(cfg)
	defer b.Close()

	navOpts := []nav.Option{
		nav.WithTrackerOptions(trackerOptions(cfg)...),
		nav.WithRouter(newRouter(cfg)),
		nav.WithResolver(newResolver(cfg)),
	}
	if opts.Reroute || cfg.Routing.Reroute {
		navOpts = append(navOpts, nav.WithReroute(cfg.Routing.RerouteCooldown))
	}
	n := nav.New(b, navOpts...)

	printer := newStatusPrinter(w)
	if opts.Journal != "" {
		j, err := journal.Open(opts.Journal)
		if err != nil {
			return err
		}
		defer j.Close()
		printer.journal = j
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printer.drain(n.Statuses(), done)
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	if err := n.Connect(ctx, address); err != nil {
		var navErr *nav.Error
		if errors.As(err, &navErr) && navErr.Kind == nav.InvalidAddress {
			return err
		}
	}

	r, err := startRoute(ctx, n, opts)
	if err != nil {
		return err
	}

	src, err := positionSource(cfg, opts, r)
	if err != nil {
		return err
	}

	err = n.Run(ctx, src)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func startRoute(ctx context.Context, n *nav.Navigator, opts runOptions) (*route.Route, error) {
	if opts.File != "" {
		r, err := route.LoadFile(opts.File)
		if err != nil {
			return nil, err
		}
		if err := n.Start(ctx, r); err != nil {
			return nil, err
		}
		return r, nil
	}

	if opts.From == "" {
		return nil, errors.New("--from is required with --to")
	}
	origin, err := osrm.ParseCoord(opts.From)
	if err != nil {
		return nil, err
	}
	return n.Navigate(ctx, origin, opts.To)
}

func positionSource(cfg *config.Config, opts runOptions, r *route.Route) (nav.PositionSource, error) {
	if opts.Track != "" {
		replay, err := source.LoadReplay(opts.Track, cfg.Simulation.Interval)
		if err != nil {
			return nil, err
		}
		return replay, nil
	}
	if len(r.Polyline) == 0 {
		return nil, fmt.Errorf("route has no geometry to simulate")
	}
	return source.NewSimulator(r.Polyline,
		source.WithSpeed(cfg.Simulation.SpeedMPS),
		source.WithInterval(cfg.Simulation.Interval),
	), nil
}

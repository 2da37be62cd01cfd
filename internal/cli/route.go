package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thruflo/turnlink/internal/config"
	"github.com/thruflo/turnlink/internal/osrm"
	"github.com/thruflo/turnlink/internal/route"
)

var (
	routeFile string
	routeFrom string
	routeTo   string
	routeOut  string
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Print a route's steps",
	Long: `Prints the steps of a route, either loaded from a GeoJSON route file or
requested from the routing service.

Examples:
  turnlink route --file walk.geojson
  turnlink route --from 52.5163,13.3777 --to "Alexanderplatz, Berlin" --out walk.geojson`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		r, err := loadRoute(ctx, cfg, routeFile, routeFrom, routeTo)
		if err != nil {
			return err
		}
		if routeOut != "" {
			if err := writeRoute(routeOut, r); err != nil {
				return err
			}
		}
		printRoute(os.Stdout, r)
		return nil
	},
}

func init() {
	routeCmd.Flags().StringVarP(&routeFile, "file", "f", "", "GeoJSON route file")
	routeCmd.Flags().StringVar(&routeFrom, "from", "", "origin as lat,lon")
	routeCmd.Flags().StringVar(&routeTo, "to", "", "destination address or lat,lon")
	routeCmd.Flags().StringVarP(&routeOut, "out", "o", "", "also write the route to this GeoJSON file")
	rootCmd.AddCommand(routeCmd)
}

// loadRoute reads file when given, otherwise resolves to and asks the
// router for a route from from.
func loadRoute(ctx context.Context, cfg *config.Config, file, from, to string) (*route.Route, error) {
	switch {
	case file != "" && to != "":
		return nil, errors.New("--file and --to are mutually exclusive")
	case file != "":
		return route.LoadFile(file)
	case to == "":
		return nil, errors.New("either --file or --to is required")
	case from == "":
		return nil, errors.New("--from is required with --to")
	}

	origin, err := osrm.ParseCoord(from)
	if err != nil {
		return nil, err
	}
	dest, _, err := newResolver(cfg).Resolve(ctx, to)
	if err != nil {
		return nil, err
	}
	return newRouter(cfg).Route(ctx, origin, dest)
}

func writeRoute(path string, r *route.Route) error {
	data, err := route.ToGeoJSON(r)
	if err != nil {
		return fmt.Errorf("failed to encode route: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write route file: %w", err)
	}
	return nil
}

func printRoute(w io.Writer, r *route.Route) {
	if r.Len() == 0 {
		fmt.Fprintln(w, "Route has no steps.")
		return
	}

	instrWidth := len("INSTRUCTION")
	for _, s := range r.Steps {
		if len(s.Instruction) > instrWidth {
			instrWidth = len(s.Instruction)
		}
	}

	fmt.Fprintf(w, "%-3s  %-10s  %-*s  %s\n", "#", "MANEUVER", instrWidth, "INSTRUCTION", "DISTANCE")
	fmt.Fprintf(w, "%s  %s  %s  %s\n", strings.Repeat("-", 3), strings.Repeat("-", 10), strings.Repeat("-", instrWidth), "--------")
	for i, s := range r.Steps {
		fmt.Fprintf(w, "%-3d  %-10s  %-*s  %s\n", i+1, route.Classify(s.Instruction), instrWidth, s.Instruction, route.FormatDistance(s.Distance))
	}
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thruflo/turnlink/internal/device"
)

var deviceListen string

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Run the device simulator",
	Long: `Runs a stand-in for the embedded display. It accepts instructions on a
websocket at / and on POST /step, and prints each one as it arrives.

Point "turnlink run --device" at the listen address to watch a route play out.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := device.NewServer(device.ServerOptions{Addr: deviceListen})
		return runDevice(ctx, os.Stdout, srv)
	},
}

func init() {
	deviceCmd.Flags().StringVarP(&deviceListen, "listen", "l", device.DefaultAddr, "listen address")
	rootCmd.AddCommand(deviceCmd)
}

// runDevice serves until ctx is done, printing received messages.
func runDevice(ctx context.Context, w io.Writer, srv *device.Server) error {
	received := srv.Subscribe()
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Device simulator listening on %s\n", srv.Addr())

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		case r := <-received:
			fmt.Fprintf(w, "[%s] #%d %-10s %-8s %s\n",
				r.Transport, r.Message.Index, r.Message.Maneuver, r.Message.DistanceText, r.Message.Instruction)
		}
	}
}

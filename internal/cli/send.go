package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thruflo/turnlink/internal/bridge"
	"github.com/thruflo/turnlink/internal/logging"
	"github.com/thruflo/turnlink/internal/route"
)

var (
	sendDistance float64
	sendIndex    int
)

var sendCmd = &cobra.Command{
	Use:   "send <address> <instruction>",
	Short: "Send one instruction to a device",
	Long: `Connects to the device at address (host:port) and sends a single
instruction, falling back to HTTP POST /step if the websocket is unavailable.
Useful for checking a display without running a route.

Example:
  turnlink send 192.168.1.55:81 "Turn left onto Oak Ave" --distance 40`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b := newBridge(cfg)
		defer b.Close()

		msg := bridge.NewMessage(sendIndex, route.Step{
			Instruction: strings.Join(args[1:], " "),
			Distance:    sendDistance,
		})
		return runSend(ctx, os.Stdout, b, args[0], msg, cfg.Device.FallbackTimeout+time.Second)
	},
}

func init() {
	sendCmd.Flags().Float64VarP(&sendDistance, "distance", "d", 0, "step distance in meters")
	sendCmd.Flags().IntVarP(&sendIndex, "index", "i", 0, "step index")
	rootCmd.AddCommand(sendCmd)
}

// runSend delivers msg once and, if the fallback was used, waits up to wait
// for its outcome.
func runSend(ctx context.Context, w io.Writer, b *bridge.Bridge, address string, msg bridge.Message, wait time.Duration) error {
	if err := b.Connect(ctx, address); err != nil {
		if errors.Is(err, bridge.ErrInvalidAddress) {
			return err
		}
		logging.Warn("websocket unavailable, trying fallback", "address", address, "error", err)
	}

	transport, err := b.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	if transport == bridge.TransportWebSocket {
		fmt.Fprintf(w, "sent via websocket: %s\n", msg.Instruction)
		return nil
	}

	timeout := time.After(wait)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("no fallback result after %s", wait)
		case ev := <-b.Events():
			switch ev.Type {
			case bridge.EventFallbackSent:
				fmt.Fprintf(w, "sent via fallback: %s\n", msg.Instruction)
				return nil
			case bridge.EventFallbackFailed:
				return fmt.Errorf("fallback failed: %w", ev.Err)
			}
		}
	}
}

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thruflo/turnlink/internal/bridge"
	"github.com/thruflo/turnlink/internal/route"
)

var (
	classifyDistance float64
	classifyIndex    int
)

var classifyCmd = &cobra.Command{
	Use:   "classify <instruction>",
	Short: "Show the device message for an instruction",
	Long: `Classifies instruction text into a maneuver and prints the JSON message
the device would receive.

Example:
  turnlink classify "Turn right onto Main St" --distance 120`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClassify(os.Stdout, strings.Join(args, " "), classifyDistance, classifyIndex)
	},
}

func init() {
	classifyCmd.Flags().Float64VarP(&classifyDistance, "distance", "d", 0, "step distance in meters")
	classifyCmd.Flags().IntVarP(&classifyIndex, "index", "i", 0, "step index")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(w io.Writer, instruction string, distance float64, index int) error {
	msg := bridge.NewMessage(index, route.Step{Instruction: instruction, Distance: distance})
	data, err := msg.Marshal()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "maneuver: %s\n", msg.Maneuver)
	fmt.Fprintf(w, "distance: %s\n", msg.DistanceText)
	fmt.Fprintf(w, "message:  %s\n", data)
	return nil
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/thruflo/turnlink/internal/config"
	"github.com/thruflo/turnlink/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "turnlink",
	Short: "Turn-by-turn guidance streamed to an embedded display",
	Long: `Turnlink follows a route from a stream of position fixes and sends each
new instruction to a small display device, over a websocket with a one-shot
HTTP fallback. The device link reconnects on its own.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("turnlink version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default: ./"+config.DirName+"/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: debug, info, warn, error (overrides config)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the configuration selected by --config, or the default
// location under the working directory, and applies the log level.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadConfigFile(configPath)
	} else {
		cwd, werr := os.Getwd()
		if werr != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", werr)
		}
		cfg, err = config.LoadConfig(cwd)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	parsed, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(parsed)

	return cfg, nil
}

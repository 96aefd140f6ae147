package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/signalbot/config"
	"github.com/rustyeddy/signalbot/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "signalbot",
	Short: "Trade-signal execution bot with peer copy trading",
	Long: `Signalbot turns alert webhooks into risk-sized, multi-leg market orders.

It provides:
  - Webhook intake with duplicate, broker, symbol and alert-type checks
  - Fixed or balance-driven dynamic risk sizing split across 2-3 legs
  - A group trailing stop that only ever tightens
  - A daily kill switch on drawdown, daily loss and group win/loss caps
  - Broadcasting of every open, modify and close to up to four peers
  - A receiver that copies or reverses trades broadcast by another bot`,
	SilenceUsage: true,
}

var (
	configPath string
	logLevel   string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", "signalbot.yaml", "path to config file (YAML, JSON or TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

// loadConfig reads the config file and builds the logger it describes.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

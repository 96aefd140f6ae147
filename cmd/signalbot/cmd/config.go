package cmd

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/signalbot/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage signalbot configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  signalbot config init -o signalbot.yaml
  signalbot config validate -f signalbot.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var configInitOutput string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "signalbot.yaml", "output config file path (.yaml, .json or .toml)")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  signalbot run -f %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("✓ Configuration valid: %s\n", configPath)
	fmt.Printf("  Bot: %s on %s (%s orders)\n", cfg.Bot.Mode, cfg.Bot.Symbol, cfg.Bot.OrderMode)
	fmt.Printf("  Risk: %s\n", describeRisk(cfg.Risk))
	fmt.Printf("  Legs: %v%% at %vR\n", cfg.Trade.LegPercents, cfg.Trade.RMultiples)
	if cfg.Webhook.Enabled {
		fmt.Printf("  Webhook: %s%s\n", cfg.Webhook.Addr, cfg.Webhook.Path)
	}
	if len(cfg.Broadcast.Ports) > 0 {
		ports := make([]string, len(cfg.Broadcast.Ports))
		for i, p := range cfg.Broadcast.Ports {
			ports[i] = fmt.Sprint(p)
		}
		fmt.Printf("  Broadcast: %s ports %s\n", cfg.Broadcast.Host, strings.Join(ports, ","))
	}
	if cfg.Receiver.Enabled {
		fmt.Printf("  Receiver: %s%s (%s)\n", cfg.Receiver.Addr, cfg.Receiver.Path, cfg.Receiver.TradeMode)
	}
	fmt.Printf("  Journal: %s\n", cfg.Journal.Type)
	return nil
}

func describeRisk(r config.RiskConfig) string {
	if r.Mode == "dynamic" {
		return fmt.Sprintf("dynamic %.2f%%-%.2f%% from %.2f", r.BasePercent, r.MaxPercent, r.StartingBalance)
	}
	if r.FixedKind == "amount" {
		return fmt.Sprintf("fixed %.2f per signal", r.FixedAmount)
	}
	return fmt.Sprintf("fixed %.2f%% of balance", r.FixedPercent)
}

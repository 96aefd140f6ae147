package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rustyeddy/signalbot/market"
	"gopkg.in/yaml.v3"
)

// Config represents the complete bot configuration
type Config struct {
	Bot        BotConfig        `json:"bot" yaml:"bot" toml:"bot"`
	Risk       RiskConfig       `json:"risk" yaml:"risk" toml:"risk"`
	Limits     LimitsConfig     `json:"limits" yaml:"limits" toml:"limits"`
	Trade      TradeConfig      `json:"trade" yaml:"trade" toml:"trade"`
	Trailing   TrailingConfig   `json:"trailing" yaml:"trailing" toml:"trailing"`
	Webhook    WebhookConfig    `json:"webhook" yaml:"webhook" toml:"webhook"`
	Broadcast  BroadcastConfig  `json:"broadcast" yaml:"broadcast" toml:"broadcast"`
	Receiver   ReceiverConfig   `json:"receiver" yaml:"receiver" toml:"receiver"`
	Listener   ListenerConfig   `json:"listener" yaml:"listener" toml:"listener"`
	Journal    JournalConfig    `json:"journal" yaml:"journal" toml:"journal"`
	Log        LogConfig        `json:"log" yaml:"log" toml:"log"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation" toml:"simulation"`
}

type BotConfig struct {
	Mode      string `json:"mode" yaml:"mode" toml:"mode" validate:"oneof=auto manual_only"`
	Symbol    string `json:"symbol" yaml:"symbol" toml:"symbol" validate:"required"`
	OrderMode string `json:"order_mode" yaml:"order_mode" toml:"order_mode" validate:"oneof=distance exact_price"`
	Timezone  string `json:"timezone" yaml:"timezone" toml:"timezone"`
	// SymbolMap translates webhook instruments to platform symbols,
	// e.g. "US30-Pepperstone" -> "US30".
	SymbolMap map[string]string `json:"symbol_map,omitempty" yaml:"symbol_map,omitempty" toml:"symbol_map,omitempty"`
}

// RiskConfig holds percentages as whole numbers: 1.0 means one percent.
type RiskConfig struct {
	Mode            string  `json:"mode" yaml:"mode" toml:"mode" validate:"oneof=fixed dynamic"`
	FixedKind       string  `json:"fixed_kind" yaml:"fixed_kind" toml:"fixed_kind" validate:"oneof=percent amount"`
	FixedPercent    float64 `json:"fixed_percent" yaml:"fixed_percent" toml:"fixed_percent" validate:"gte=0,lte=100"`
	FixedAmount     float64 `json:"fixed_amount" yaml:"fixed_amount" toml:"fixed_amount" validate:"gte=0"`
	StartingBalance float64 `json:"starting_balance" yaml:"starting_balance" toml:"starting_balance" validate:"gte=0"`
	BasePercent     float64 `json:"base_percent" yaml:"base_percent" toml:"base_percent" validate:"gte=0,lte=100"`
	MaxPercent      float64 `json:"max_percent" yaml:"max_percent" toml:"max_percent" validate:"gte=0,lte=100"`
	GrowthStep      float64 `json:"growth_step" yaml:"growth_step" toml:"growth_step" validate:"gte=0"`
	GrowthIncrement float64 `json:"growth_increment" yaml:"growth_increment" toml:"growth_increment" validate:"gte=0"`
	DrawdownStep    float64 `json:"drawdown_step" yaml:"drawdown_step" toml:"drawdown_step" validate:"gte=0"`
	Reduction       float64 `json:"reduction" yaml:"reduction" toml:"reduction" validate:"gte=0,lte=100"`
	Compounding     bool    `json:"compounding" yaml:"compounding" toml:"compounding"`
}

type LimitsConfig struct {
	MaxDrawdownPercent  float64 `json:"max_drawdown_percent" yaml:"max_drawdown_percent" toml:"max_drawdown_percent" validate:"gte=0,lte=100"`
	MaxDailyLossPercent float64 `json:"max_daily_loss_percent" yaml:"max_daily_loss_percent" toml:"max_daily_loss_percent" validate:"gte=0,lte=100"`
	MaxPositiveTrades   int     `json:"max_positive_trades" yaml:"max_positive_trades" toml:"max_positive_trades" validate:"gte=0"`
	MaxNegativeTrades   int     `json:"max_negative_trades" yaml:"max_negative_trades" toml:"max_negative_trades" validate:"gte=0"`
}

type TradeConfig struct {
	LegPercents     []float64 `json:"leg_percents" yaml:"leg_percents" toml:"leg_percents" validate:"min=2,max=3,dive,gt=0"`
	RMultiples      []float64 `json:"r_multiples" yaml:"r_multiples" toml:"r_multiples" validate:"len=3,dive,gt=0"`
	DefaultStopPips float64   `json:"default_stop_pips" yaml:"default_stop_pips" toml:"default_stop_pips" validate:"gt=0"`
	StopZone        string    `json:"stop_zone" yaml:"stop_zone" toml:"stop_zone" validate:"oneof=tight wide"`
	TargetZone      string    `json:"target_zone" yaml:"target_zone" toml:"target_zone" validate:"oneof=early full"`
}

type TrailingConfig struct {
	Enabled   bool    `json:"enabled" yaml:"enabled" toml:"enabled"`
	TriggerR  float64 `json:"trigger_r" yaml:"trigger_r" toml:"trigger_r" validate:"gte=0"`
	DistanceR float64 `json:"distance_r" yaml:"distance_r" toml:"distance_r" validate:"gte=0"`
}

type WebhookConfig struct {
	Enabled         bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Addr            string `json:"addr" yaml:"addr" toml:"addr"`
	Path            string `json:"path" yaml:"path" toml:"path"`
	CheckBroker     bool   `json:"check_broker" yaml:"check_broker" toml:"check_broker"`
	ExpectedBroker  string `json:"expected_broker" yaml:"expected_broker" toml:"expected_broker"`
	SymbolFilter    string `json:"symbol_filter" yaml:"symbol_filter" toml:"symbol_filter"`
	ExecutableAlert string `json:"executable_alert" yaml:"executable_alert" toml:"executable_alert"`
}

type BroadcastConfig struct {
	Host    string        `json:"host" yaml:"host" toml:"host"`
	Path    string        `json:"path" yaml:"path" toml:"path"`
	Ports   []int         `json:"ports" yaml:"ports" toml:"ports" validate:"max=4,dive,gt=0,lte=65535"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
}

type ReceiverConfig struct {
	Enabled          bool    `json:"enabled" yaml:"enabled" toml:"enabled"`
	Addr             string  `json:"addr" yaml:"addr" toml:"addr"`
	Path             string  `json:"path" yaml:"path" toml:"path"`
	TradeMode        string  `json:"trade_mode" yaml:"trade_mode" toml:"trade_mode" validate:"oneof=copy reverse"`
	SLInput          string  `json:"sl_input" yaml:"sl_input" toml:"sl_input" validate:"oneof=pips price"`
	TPInput          string  `json:"tp_input" yaml:"tp_input" toml:"tp_input" validate:"oneof=pips price"`
	TPMod            string  `json:"tp_mod" yaml:"tp_mod" toml:"tp_mod" validate:"oneof=price pip_diff"`
	SLMod            string  `json:"sl_mod" yaml:"sl_mod" toml:"sl_mod" validate:"oneof=price pip_diff"`
	SLOffsetPips     float64 `json:"sl_offset_pips" yaml:"sl_offset_pips" toml:"sl_offset_pips" validate:"gte=0"`
	InstrumentSource string  `json:"instrument_source" yaml:"instrument_source" toml:"instrument_source" validate:"oneof=chart broadcast"`
}

// ListenerConfig is shared by the webhook and receiver listeners.
type ListenerConfig struct {
	MaxBindAttempts int           `json:"max_bind_attempts" yaml:"max_bind_attempts" toml:"max_bind_attempts" validate:"gte=0"`
	RetryInterval   time.Duration `json:"retry_interval" yaml:"retry_interval" toml:"retry_interval"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type" toml:"type" validate:"oneof=none csv sqlite"`
	LegsFile   string `json:"legs_file,omitempty" yaml:"legs_file,omitempty" toml:"legs_file,omitempty"`
	SignalFile string `json:"signal_file,omitempty" yaml:"signal_file,omitempty" toml:"signal_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty" toml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty" toml:"db_path,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level" validate:"oneof=trace debug info warn error"`
	Format string `json:"format" yaml:"format" toml:"format" validate:"oneof=console json"`
}

// SimulationConfig drives the paper broker used by the run command.
type SimulationConfig struct {
	AccountID  string        `json:"account_id" yaml:"account_id" toml:"account_id"`
	Currency   string        `json:"currency" yaml:"currency" toml:"currency"`
	Balance    float64       `json:"balance" yaml:"balance" toml:"balance" validate:"gt=0"`
	InitialBid float64       `json:"initial_bid" yaml:"initial_bid" toml:"initial_bid" validate:"gt=0"`
	InitialAsk float64       `json:"initial_ask" yaml:"initial_ask" toml:"initial_ask" validate:"gtfield=InitialBid"`
	TickEvery  time.Duration `json:"tick_every" yaml:"tick_every" toml:"tick_every"`
	PriceSteps []PriceStep   `json:"price_steps,omitempty" yaml:"price_steps,omitempty" toml:"price_steps,omitempty" validate:"dive"`
	Manual     *ManualDemo   `json:"manual,omitempty" yaml:"manual,omitempty" toml:"manual,omitempty"`
	Feed       FeedConfig    `json:"feed" yaml:"feed" toml:"feed"`
}

// FeedConfig selects where paper quotes come from. "steps" replays
// PriceSteps; "oanda" streams practice prices for Instrument, with the API
// token read from OANDA_TOKEN; "csv" replays recorded ticks from Path,
// waiting Pace between rows.
type FeedConfig struct {
	Source     string        `json:"source" yaml:"source" toml:"source" validate:"oneof=steps oanda csv"`
	Path       string        `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	Pace       time.Duration `json:"pace,omitempty" yaml:"pace,omitempty" toml:"pace,omitempty" validate:"gte=0"`
	Env        string        `json:"env,omitempty" yaml:"env,omitempty" toml:"env,omitempty" validate:"omitempty,oneof=practice demo"`
	AccountID  string        `json:"account_id,omitempty" yaml:"account_id,omitempty" toml:"account_id,omitempty"`
	Instrument string        `json:"instrument,omitempty" yaml:"instrument,omitempty" toml:"instrument,omitempty"`
}

// ManualDemo opens one manual trade once the bot has started.
type ManualDemo struct {
	Direction string `json:"direction" yaml:"direction" toml:"direction" validate:"oneof=buy sell BUY SELL long short LONG SHORT"`
}

// PriceStep represents a price update in the simulation
type PriceStep struct {
	Bid   float64 `json:"bid" yaml:"bid" toml:"bid" validate:"gt=0"`
	Ask   float64 `json:"ask" yaml:"ask" toml:"ask" validate:"gtfield=Bid"`
	Delay string  `json:"delay" yaml:"delay" toml:"delay"` // e.g., "1h", "30m", "1s"
}

// ParseDuration converts the delay string to time.Duration
func (ps PriceStep) ParseDuration() (time.Duration, error) {
	if ps.Delay == "" {
		return 0, nil
	}
	return time.ParseDuration(ps.Delay)
}

var validate = validator.New()

// LoadFromFile loads configuration from a file. TOML is chosen by
// extension; anything else is tried as YAML, then JSON. Values missing
// from the file keep their defaults, and SIGNALBOT_* environment
// variables (optionally from a .env file) override both.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config (toml): %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON, YAML or TOML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(c)
		data = []byte(sb.String())
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks struct tags first, then rules spanning several fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if _, err := market.LookupInstrument(c.Bot.Symbol); err != nil {
		return err
	}
	if len(c.Trade.LegPercents) == 3 {
		sum := 0.0
		for _, p := range c.Trade.LegPercents {
			sum += p
		}
		if math.Abs(sum-100) > 1e-6 {
			return fmt.Errorf("trade.leg_percents must sum to 100, got %g", sum)
		}
	}
	switch c.Risk.Mode {
	case "fixed":
		if c.Risk.FixedKind == "percent" && c.Risk.FixedPercent <= 0 {
			return fmt.Errorf("risk.fixed_percent must be positive")
		}
		if c.Risk.FixedKind == "amount" && c.Risk.FixedAmount <= 0 {
			return fmt.Errorf("risk.fixed_amount must be positive")
		}
	case "dynamic":
		if c.Risk.StartingBalance <= 0 {
			return fmt.Errorf("risk.starting_balance is required for dynamic mode")
		}
		if c.Risk.BasePercent <= 0 {
			return fmt.Errorf("risk.base_percent must be positive")
		}
		if c.Risk.MaxPercent < c.Risk.BasePercent {
			return fmt.Errorf("risk.max_percent must be at least risk.base_percent")
		}
	}
	if c.Trailing.Enabled && (c.Trailing.TriggerR <= 0 || c.Trailing.DistanceR <= 0) {
		return fmt.Errorf("trailing trigger_r and distance_r must be positive when enabled")
	}
	if c.Webhook.Enabled && (c.Webhook.Addr == "" || c.Webhook.Path == "") {
		return fmt.Errorf("webhook addr and path are required when enabled")
	}
	if c.Receiver.Enabled && (c.Receiver.Addr == "" || c.Receiver.Path == "") {
		return fmt.Errorf("receiver addr and path are required when enabled")
	}
	if c.Webhook.Enabled && c.Receiver.Enabled && c.Webhook.Addr == c.Receiver.Addr {
		return fmt.Errorf("webhook and receiver must listen on different addresses")
	}
	if c.Journal.Type == "csv" && (c.Journal.LegsFile == "" || c.Journal.SignalFile == "" || c.Journal.EquityFile == "") {
		return fmt.Errorf("journal legs_file, signal_file and equity_file required for CSV type")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for SQLite type")
	}
	if c.Simulation.Feed.Source == "oanda" && (c.Simulation.Feed.AccountID == "" || c.Simulation.Feed.Instrument == "") {
		return fmt.Errorf("simulation.feed account_id and instrument are required for the oanda feed")
	}
	if c.Simulation.Feed.Source == "csv" && c.Simulation.Feed.Path == "" {
		return fmt.Errorf("simulation.feed path is required for the csv feed")
	}
	for i, step := range c.Simulation.PriceSteps {
		if _, err := step.ParseDuration(); err != nil {
			return fmt.Errorf("simulation.price_steps[%d].delay: %w", i, err)
		}
	}
	return nil
}

// MapSymbol returns the platform symbol for a webhook instrument.
func (c *Config) MapSymbol(instrument string) string {
	if s, ok := c.Bot.SymbolMap[instrument]; ok {
		return s
	}
	for k, s := range c.Bot.SymbolMap {
		if strings.EqualFold(k, instrument) {
			return s
		}
	}
	return c.Bot.Symbol
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Bot: BotConfig{
			Mode:      "auto",
			Symbol:    "US30",
			OrderMode: "distance",
			Timezone:  "America/Guayaquil",
			SymbolMap: map[string]string{"US30-Pepperstone": "US30"},
		},
		Risk: RiskConfig{
			Mode:            "fixed",
			FixedKind:       "percent",
			FixedPercent:    1.0,
			FixedAmount:     100.0,
			StartingBalance: 1000,
			BasePercent:     1.0,
			MaxPercent:      2.0,
			GrowthStep:      3.0,
			GrowthIncrement: 20.0,
			DrawdownStep:    5.0,
			Reduction:       50.0,
			Compounding:     true,
		},
		Limits: LimitsConfig{
			MaxDrawdownPercent:  15.0,
			MaxDailyLossPercent: 5.0,
			MaxPositiveTrades:   10,
			MaxNegativeTrades:   10,
		},
		Trade: TradeConfig{
			LegPercents:     []float64{30, 30, 40},
			RMultiples:      []float64{1, 2, 10},
			DefaultStopPips: 20,
			StopZone:        "wide",
			TargetZone:      "full",
		},
		Trailing: TrailingConfig{
			Enabled:   true,
			TriggerR:  2.0,
			DistanceR: 2.0,
		},
		Webhook: WebhookConfig{
			Enabled:         true,
			Addr:            ":8050",
			Path:            "/webhook",
			CheckBroker:     true,
			ExpectedBroker:  "Pepperstone",
			SymbolFilter:    "US30-Pepperstone",
			ExecutableAlert: "ai_recommends_entry",
		},
		Broadcast: BroadcastConfig{
			Host:    "localhost",
			Path:    "/newtrade",
			Timeout: 5 * time.Second,
		},
		Receiver: ReceiverConfig{
			Enabled:          false,
			Addr:             ":8301",
			Path:             "/newtrade",
			TradeMode:        "copy",
			SLInput:          "pips",
			TPInput:          "price",
			TPMod:            "price",
			SLMod:            "price",
			InstrumentSource: "broadcast",
		},
		Listener: ListenerConfig{
			MaxBindAttempts: 3,
			RetryInterval:   5 * time.Second,
		},
		Journal: JournalConfig{
			Type:       "csv",
			LegsFile:   "./legs.csv",
			SignalFile: "./signals.csv",
			EquityFile: "./equity.csv",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Simulation: SimulationConfig{
			AccountID:  "SIM-001",
			Currency:   "USD",
			Balance:    100000,
			InitialBid: 42000.0,
			InitialAsk: 42002.0,
			TickEvery:  time.Second,
			Feed: FeedConfig{
				Source:     "steps",
				Env:        "practice",
				Instrument: "US30_USD",
			},
		},
	}
}

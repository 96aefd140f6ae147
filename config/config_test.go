package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []float64{30, 30, 40}, cfg.Trade.LegPercents)
	assert.Equal(t, []float64{1, 2, 10}, cfg.Trade.RMultiples)
	assert.Equal(t, 20.0, cfg.Trade.DefaultStopPips)
	assert.True(t, cfg.Trailing.Enabled)
	assert.Equal(t, 2.0, cfg.Trailing.TriggerR)
	assert.Equal(t, ":8050", cfg.Webhook.Addr)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad bot mode", func(c *Config) { c.Bot.Mode = "semi" }},
		{"unknown symbol", func(c *Config) { c.Bot.Symbol = "DOGE" }},
		{"one leg", func(c *Config) { c.Trade.LegPercents = []float64{100} }},
		{"three legs not 100", func(c *Config) { c.Trade.LegPercents = []float64{30, 30, 30} }},
		{"five peers", func(c *Config) { c.Broadcast.Ports = []int{1, 2, 3, 4, 5} }},
		{"dynamic without start", func(c *Config) {
			c.Risk.Mode = "dynamic"
			c.Risk.StartingBalance = 0
		}},
		{"dynamic max below base", func(c *Config) {
			c.Risk.Mode = "dynamic"
			c.Risk.MaxPercent = 0.5
		}},
		{"crossed simulation prices", func(c *Config) { c.Simulation.InitialAsk = c.Simulation.InitialBid }},
		{"bad step delay", func(c *Config) {
			c.Simulation.PriceSteps = []PriceStep{{Bid: 1, Ask: 2, Delay: "soon"}}
		}},
		{"sqlite without path", func(c *Config) {
			c.Journal.Type = "sqlite"
			c.Journal.DBPath = ""
		}},
		{"shared listener addr", func(c *Config) {
			c.Receiver.Enabled = true
			c.Receiver.Addr = c.Webhook.Addr
		}},
		{"bad receiver mode", func(c *Config) { c.Receiver.TradeMode = "mirror" }},
		{"oanda feed without account", func(c *Config) { c.Simulation.Feed.Source = "oanda" }},
		{"csv feed without path", func(c *Config) { c.Simulation.Feed.Source = "csv" }},
		{"live oanda feed", func(c *Config) {
			c.Simulation.Feed = FeedConfig{Source: "oanda", Env: "live", AccountID: "a", Instrument: "US30_USD"}
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	for _, ext := range []string{".yaml", ".json", ".toml"} {
		ext := ext
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "signalbot"+ext)

			cfg := Default()
			cfg.Bot.Symbol = "EURUSD"
			cfg.Broadcast.Ports = []int{8302, 8303}
			cfg.Simulation.PriceSteps = []PriceStep{{Bid: 1.1, Ask: 1.1002, Delay: "1s"}}
			require.NoError(t, cfg.SaveToFile(path))

			got, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, "EURUSD", got.Bot.Symbol)
			assert.Equal(t, []int{8302, 8303}, got.Broadcast.Ports)
			assert.Equal(t, cfg.Simulation.PriceSteps, got.Simulation.PriceSteps)
			assert.Equal(t, cfg.Trade, got.Trade)
		})
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bot:\n  symbol: XAUUSD\n"), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "XAUUSD", cfg.Bot.Symbol)
	assert.Equal(t, "auto", cfg.Bot.Mode)
	assert.Equal(t, 5*time.Second, cfg.Listener.RetryInterval)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SIGNALBOT_LOG_LEVEL", "debug")
	t.Setenv("SIGNALBOT_BROADCAST_PORTS", "9001, 9002")
	t.Setenv("SIGNALBOT_RECEIVER_TRADE_MODE", "reverse")
	t.Setenv("SIGNALBOT_WEBHOOK_ENABLED", "false")

	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, Default().SaveToFile(path))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []int{9001, 9002}, cfg.Broadcast.Ports)
	assert.Equal(t, "reverse", cfg.Receiver.TradeMode)
	assert.False(t, cfg.Webhook.Enabled)
}

func TestMapSymbol(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "US30", cfg.MapSymbol("US30-Pepperstone"))
	assert.Equal(t, "US30", cfg.MapSymbol("us30-pepperstone"))
	assert.Equal(t, "US30", cfg.MapSymbol("NAS100-Other"))
}

func TestPriceStepDuration(t *testing.T) {
	d, err := PriceStep{Delay: "30m"}.ParseDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, d)

	d, err = PriceStep{}.ParseDuration()
	require.NoError(t, err)
	assert.Zero(t, d)
}

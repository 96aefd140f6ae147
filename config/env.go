package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "SIGNALBOT_"

// applyEnvOverrides overwrites fields whose SIGNALBOT_* variable is set and
// non-empty. Unparseable numbers are ignored.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Bot.Mode, "BOT_MODE")
	setStr(&cfg.Bot.Symbol, "BOT_SYMBOL")
	setStr(&cfg.Bot.OrderMode, "BOT_ORDER_MODE")
	setStr(&cfg.Bot.Timezone, "BOT_TIMEZONE")

	setStr(&cfg.Risk.Mode, "RISK_MODE")
	setFloat64(&cfg.Risk.FixedPercent, "RISK_FIXED_PERCENT")
	setFloat64(&cfg.Risk.StartingBalance, "RISK_STARTING_BALANCE")

	setBool(&cfg.Webhook.Enabled, "WEBHOOK_ENABLED")
	setStr(&cfg.Webhook.Addr, "WEBHOOK_ADDR")
	setStr(&cfg.Webhook.ExpectedBroker, "WEBHOOK_EXPECTED_BROKER")
	setStr(&cfg.Webhook.SymbolFilter, "WEBHOOK_SYMBOL_FILTER")

	setIntSlice(&cfg.Broadcast.Ports, "BROADCAST_PORTS")
	setStr(&cfg.Broadcast.Host, "BROADCAST_HOST")
	setDuration(&cfg.Broadcast.Timeout, "BROADCAST_TIMEOUT")

	setBool(&cfg.Receiver.Enabled, "RECEIVER_ENABLED")
	setStr(&cfg.Receiver.Addr, "RECEIVER_ADDR")
	setStr(&cfg.Receiver.TradeMode, "RECEIVER_TRADE_MODE")

	setStr(&cfg.Journal.Type, "JOURNAL_TYPE")
	setStr(&cfg.Journal.DBPath, "JOURNAL_DB_PATH")

	setStr(&cfg.Simulation.Feed.Source, "FEED_SOURCE")
	setStr(&cfg.Simulation.Feed.AccountID, "FEED_ACCOUNT_ID")
	setStr(&cfg.Simulation.Feed.Instrument, "FEED_INSTRUMENT")
	setStr(&cfg.Simulation.Feed.Path, "FEED_PATH")

	setStr(&cfg.Log.Level, "LOG_LEVEL")
	setStr(&cfg.Log.Format, "LOG_FORMAT")
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// setIntSlice parses a comma separated list; any bad entry leaves dst as is.
func setIntSlice(dst *[]int, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return
		}
		out = append(out, n)
	}
	*dst = out
}

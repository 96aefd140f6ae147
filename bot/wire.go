package bot

import (
	"github.com/rs/zerolog"
	"github.com/rustyeddy/signalbot/broker"
	"github.com/rustyeddy/signalbot/clock"
	"github.com/rustyeddy/signalbot/config"
	"github.com/rustyeddy/signalbot/ingest"
	"github.com/rustyeddy/signalbot/journal"
	"github.com/rustyeddy/signalbot/metrics"
	"github.com/rustyeddy/signalbot/order"
	"github.com/rustyeddy/signalbot/peer"
	"github.com/rustyeddy/signalbot/risk"
	"github.com/rustyeddy/signalbot/trailing"
)

// FromConfig builds a Bot and all of its collaborators from cfg. The
// config is assumed to have been validated.
func FromConfig(cfg *config.Config, b broker.Broker, j journal.Journal, m *metrics.Metrics, logger zerolog.Logger) (*Bot, error) {
	mode, err := peer.ParseMode(cfg.Receiver.TradeMode)
	if err != nil {
		return nil, err
	}

	engine := risk.NewEngine(RiskParams(cfg.Risk))
	// The drawdown floor is measured from the configured starting balance
	// in every risk mode.
	gate := risk.NewGate(risk.Limits{
		StartingBalance:     cfg.Risk.StartingBalance,
		MaxDrawdownPercent:  cfg.Limits.MaxDrawdownPercent,
		MaxDailyLossPercent: cfg.Limits.MaxDailyLossPercent,
		MaxPositiveTrades:   cfg.Limits.MaxPositiveTrades,
		MaxNegativeTrades:   cfg.Limits.MaxNegativeTrades,
	}, b, logger)

	validator := ingest.NewValidator(ingest.Rules{
		ManualOnly:      cfg.Bot.Mode == "manual_only",
		WebhookEnabled:  cfg.Webhook.Enabled,
		CheckBroker:     cfg.Webhook.CheckBroker,
		ExpectedBroker:  cfg.Webhook.ExpectedBroker,
		SymbolFilter:    cfg.Webhook.SymbolFilter,
		ExecutableAlert: cfg.Webhook.ExecutableAlert,
	}, gate)

	var peers *peer.Client
	if len(cfg.Broadcast.Ports) > 0 {
		peers = peer.NewClient(peer.ClientConfig{
			Host:    cfg.Broadcast.Host,
			Path:    cfg.Broadcast.Path,
			Ports:   cfg.Broadcast.Ports,
			Timeout: cfg.Broadcast.Timeout,
		}, logger)
		if m != nil {
			peers.OnResult = m.BroadcastResult
		}
	}

	opts := Options{
		Symbol:          cfg.Bot.Symbol,
		LegPercents:     cfg.Trade.LegPercents,
		RMultiples:      cfg.Trade.RMultiples,
		DefaultStopPips: cfg.Trade.DefaultStopPips,
		Zones: ingest.ZonePrefs{
			Stop:   ingest.StopPref(cfg.Trade.StopZone),
			Target: ingest.TargetPref(cfg.Trade.TargetZone),
		},
		Receiver: ReceiverOptions{
			Translator:       peer.Translator{Mode: mode},
			SLInput:          cfg.Receiver.SLInput,
			TPInput:          cfg.Receiver.TPInput,
			TPMod:            cfg.Receiver.TPMod,
			SLMod:            cfg.Receiver.SLMod,
			SLOffsetPips:     cfg.Receiver.SLOffsetPips,
			InstrumentSource: cfg.Receiver.InstrumentSource,
		},
		MapSymbol: cfg.MapSymbol,
	}

	deps := Deps{
		Broker:    b,
		Risk:      engine,
		Gate:      gate,
		Validator: validator,
		Executor:  order.NewExecutor(b, order.Mode(cfg.Bot.OrderMode), logger),
		Trailing: trailing.NewManager(cfg.Bot.Symbol, trailing.Params{
			Enabled:   cfg.Trailing.Enabled,
			TriggerR:  cfg.Trailing.TriggerR,
			DistanceR: cfg.Trailing.DistanceR,
		}, b, logger),
		Clock:   clock.NewDayRollover(clock.LoadLocation(cfg.Bot.Timezone)),
		Peers:   peers,
		Journal: j,
		Metrics: m,
		Logger:  logger,
	}
	return New(opts, deps), nil
}

// RiskParams converts the config form of the risk settings.
func RiskParams(rc config.RiskConfig) risk.Params {
	return risk.Params{
		Mode:                   risk.Mode(rc.Mode),
		FixedKind:              risk.FixedKind(rc.FixedKind),
		FixedPercent:           rc.FixedPercent,
		FixedAmount:            rc.FixedAmount,
		StartingBalance:        rc.StartingBalance,
		BaseRiskPercent:        rc.BasePercent,
		MaxRiskPercent:         rc.MaxPercent,
		GrowthStepPercent:      rc.GrowthStep,
		GrowthIncrementPercent: rc.GrowthIncrement,
		DrawdownStepPercent:    rc.DrawdownStep,
		ReductionPercent:       rc.Reduction,
		Compounding:            rc.Compounding,
	}
}

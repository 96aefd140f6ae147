package risk

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/signalbot/broker"
)

type Limits struct {
	StartingBalance     float64
	MaxDrawdownPercent  float64
	MaxDailyLossPercent float64
	MaxPositiveTrades   int
	MaxNegativeTrades   int
}

// State is the per-day risk bookkeeping of one bot.
type State struct {
	Day               time.Time
	DailyStartBalance float64
	PositiveGroups    int
	NegativeGroups    int
	KillSwitch        bool
	HaltReason        string
	GroupOpen         bool
	GroupProfit       float64
}

type AccountReader interface {
	GetAccount(ctx context.Context) (broker.Account, error)
}

// HaltFunc flattens every open position. It is called once each time the
// kill switch trips.
type HaltFunc func(ctx context.Context, v Violation)

// Gate decides whether new entries are allowed and trips the kill switch
// when a hard limit is crossed. It is not safe for concurrent use; the bot
// drives it from its tick goroutine.
type Gate struct {
	limits Limits
	acct   AccountReader
	onHalt HaltFunc
	logger zerolog.Logger
	state  State
}

func NewGate(limits Limits, acct AccountReader, logger zerolog.Logger) *Gate {
	return &Gate{
		limits: limits,
		acct:   acct,
		logger: logger.With().Str("component", "risk_gate").Logger(),
	}
}

func (g *Gate) SetHaltHandler(fn HaltFunc) {
	g.onHalt = fn
}

// Start initialises the daily baseline. The overall starting balance falls
// back to the first daily balance when none was configured.
func (g *Gate) Start(balance float64, day time.Time) {
	if g.limits.StartingBalance <= 0 {
		g.limits.StartingBalance = balance
	}
	g.state = State{Day: day, DailyStartBalance: balance}
}

func (g *Gate) Limits() Limits { return g.limits }

func (g *Gate) Snapshot() State { return g.state }

// CanTrade returns nil when a new entry is allowed.
func (g *Gate) CanTrade(ctx context.Context) *Violation {
	if g.state.KillSwitch {
		return violation(CodeKillSwitch, "trading blocked by risk management gates: %s", g.state.HaltReason)
	}
	acct, err := g.acct.GetAccount(ctx)
	if err != nil {
		return violation(CodeAccountUnavailable, "account unavailable: %v", err)
	}
	return g.limits.Thresholds(acct.Equity, g.limits.StartingBalance, g.state.DailyStartBalance)
}

// EvaluateHardStops trips the kill switch and flattens when equity has
// crossed the drawdown or daily loss limit. It returns the violation that
// tripped, or nil.
func (g *Gate) EvaluateHardStops(ctx context.Context) *Violation {
	if g.state.KillSwitch {
		return nil
	}
	acct, err := g.acct.GetAccount(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Msg("hard stop check skipped")
		return nil
	}
	v := g.limits.Thresholds(acct.Equity, g.limits.StartingBalance, g.state.DailyStartBalance)
	if v == nil {
		return nil
	}
	g.halt(ctx, *v)
	return v
}

// OpenGroup marks the start of a signal group. Profit accumulates across
// groups that overlap until every leg has closed.
func (g *Gate) OpenGroup() {
	if !g.state.GroupOpen {
		g.state.GroupOpen = true
		g.state.GroupProfit = 0
	}
}

// RecordClose adds the net result of one closed leg. When remaining is zero
// the group is complete and counted as positive or negative; reaching
// either cap halts trading for the day.
func (g *Gate) RecordClose(ctx context.Context, netProfit float64, remaining int) *Violation {
	if !g.state.GroupOpen {
		return nil
	}
	g.state.GroupProfit += netProfit
	if remaining > 0 {
		return nil
	}

	profit := g.state.GroupProfit
	g.state.GroupOpen = false
	g.state.GroupProfit = 0

	var v *Violation
	switch {
	case profit > 0:
		g.state.PositiveGroups++
		g.logger.Info().Float64("profit", profit).Int("positive", g.state.PositiveGroups).Msg("group closed positive")
		if g.limits.MaxPositiveTrades > 0 && g.state.PositiveGroups >= g.limits.MaxPositiveTrades {
			v = violation(CodeMaxPositiveTrades, "max positive trades reached: %d", g.state.PositiveGroups)
		}
	case profit < 0:
		g.state.NegativeGroups++
		g.logger.Info().Float64("profit", profit).Int("negative", g.state.NegativeGroups).Msg("group closed negative")
		if g.limits.MaxNegativeTrades > 0 && g.state.NegativeGroups >= g.limits.MaxNegativeTrades {
			v = violation(CodeMaxNegativeTrades, "max negative trades reached: %d", g.state.NegativeGroups)
		}
	}
	if v != nil && !g.state.KillSwitch {
		g.halt(ctx, *v)
	}
	return v
}

// Rollover starts a new trading day: the kill switch, both counters and
// the open group are cleared and balance becomes the daily baseline.
func (g *Gate) Rollover(balance float64, day time.Time) {
	g.logger.Info().
		Time("day", day).
		Float64("balance", balance).
		Bool("was_halted", g.state.KillSwitch).
		Msg("day rollover")
	g.state = State{Day: day, DailyStartBalance: balance}
}

func (g *Gate) halt(ctx context.Context, v Violation) {
	g.state.KillSwitch = true
	g.state.HaltReason = v.Msg
	g.logger.Warn().Str("code", v.Code).Str("reason", v.Msg).Msg("kill switch tripped")
	if g.onHalt != nil {
		g.onHalt(ctx, v)
	}
}

package bot

import (
	"context"
	"fmt"

	"github.com/rustyeddy/signalbot/ingest"
	"github.com/rustyeddy/signalbot/journal"
	"github.com/rustyeddy/signalbot/market"
	"github.com/rustyeddy/signalbot/order"
	"github.com/rustyeddy/signalbot/peer"
	"github.com/rustyeddy/signalbot/risk"
)

// HandleWebhook parses, validates and executes one webhook body.
// Unparseable bodies are dropped without a journal entry.
func (b *Bot) HandleWebhook(ctx context.Context, body []byte) Outcome {
	sig, err := ingest.Parse(body)
	if err != nil {
		b.logger.Debug().Err(err).Int("bytes", len(body)).Msg("webhook body dropped")
		return Outcome{Decision: DecisionDropped, Reason: err.Error()}
	}

	rec := journal.SignalRecord{
		Source:     "webhook",
		TradeID:    sig.TradeID,
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
	}

	if v := b.validator.Validate(ctx, sig); v != nil {
		b.logger.Info().
			Str("trade_id", sig.TradeID).
			Str("code", v.Code).
			Str("reason", v.Msg).
			Msg("signal rejected")
		return b.finish(rec, rejected(v))
	}

	out := b.executeSignal(ctx, sig)
	return b.finish(rec, out)
}

func (b *Bot) executeSignal(ctx context.Context, sig *ingest.TradeSignal) Outcome {
	dir, err := market.ParseDirection(sig.Direction)
	if err != nil {
		return failed(CodeInvalidPrices, err.Error())
	}
	symbol := b.opts.MapSymbol(sig.Instrument)
	sym, err := b.broker.GetSymbol(ctx, symbol)
	if err != nil {
		return failed(CodePlatform, err.Error())
	}
	acct, err := b.broker.GetAccount(ctx)
	if err != nil {
		return failed(CodePlatform, err.Error())
	}

	prices := b.opts.Zones.Pick(sig)
	if prices.Stop <= 0 || prices.TP1 <= 0 {
		return failed(CodeInvalidPrices, fmt.Sprintf("stop %.5f and first target %.5f must be positive", prices.Stop, prices.TP1))
	}

	entry := sym.EntryPrice(dir)
	stopPips := sym.ToPips(entry - prices.Stop)
	if stopPips <= 0 {
		return failed(CodeInvalidPrices, "stop distance is zero")
	}

	targets := []float64{prices.TP1, prices.TP2, prices.TP3}
	n := 2
	if prices.TP3 > 0 {
		n = 3
	}
	pcts := b.legPercents(n)
	n = len(pcts)

	riskAmount := b.risk.RiskAmount(acct.Balance, stopPips)
	sizing, err := risk.Split(riskAmount, stopPips, sym, pcts)
	if err != nil {
		return failed(CodeSizing, err.Error())
	}

	short := order.ShortTradeID(sig.TradeID)
	legs := make([]order.Leg, n)
	levels := make([]peer.TPLevel, n)
	for i := 0; i < n; i++ {
		var targetPips float64
		if targets[i] > 0 {
			targetPips = sym.ToPips(targets[i] - entry)
		}
		legs[i] = order.Leg{
			Symbol:      symbol,
			Direction:   dir,
			Volume:      sizing.Legs[i],
			Label:       order.LegLabel(short, i+1),
			StopPips:    stopPips,
			TargetPips:  targetPips,
			StopPrice:   prices.Stop,
			TargetPrice: targets[i],
		}
		levels[i] = peer.TPLevel{Label: legs[i].Label, Pips: targetPips, Price: targets[i]}
	}

	b.logger.Info().
		Str("trade_id", sig.TradeID).
		Str("direction", dir.String()).
		Float64("entry", entry).
		Float64("stop_pips", stopPips).
		Float64("risk", riskAmount).
		Float64("volume", sizing.Total).
		Int("legs", n).
		Msg("executing signal")

	opened := b.submit(ctx, b.executor, legs)
	b.validator.MarkProcessed(sig.TradeID)
	if opened == 0 {
		return failed(CodeNoLegs, "no leg could be opened")
	}
	b.broadcast(ctx, peer.OpenMessage(dir, symbol, stopPips, prices.Stop, entry, levels))
	return Outcome{Decision: journal.DecisionExecuted, Opened: opened}
}

// OpenManual opens a three-leg group at market. A non-positive stopPips
// uses the configured default. Targets are laid off at the configured R
// multiples of the stop.
func (b *Bot) OpenManual(ctx context.Context, dir market.Direction, stopPips float64) Outcome {
	rec := journal.SignalRecord{
		Source:     "manual",
		Instrument: b.opts.Symbol,
		Direction:  dir.String(),
	}
	if v := b.gate.CanTrade(ctx); v != nil {
		b.logger.Warn().Str("code", v.Code).Str("reason", v.Msg).Msg("manual trade blocked")
		return b.finish(rec, rejected(v))
	}
	if stopPips <= 0 {
		stopPips = b.opts.DefaultStopPips
	}

	sym, err := b.broker.GetSymbol(ctx, b.opts.Symbol)
	if err != nil {
		return b.finish(rec, failed(CodePlatform, err.Error()))
	}
	acct, err := b.broker.GetAccount(ctx)
	if err != nil {
		return b.finish(rec, failed(CodePlatform, err.Error()))
	}

	entry := sym.EntryPrice(dir)
	pcts := b.legPercents(len(b.opts.RMultiples))
	riskAmount := b.risk.RiskAmount(acct.Balance, stopPips)
	sizing, err := risk.Split(riskAmount, stopPips, sym, pcts)
	if err != nil {
		return b.finish(rec, failed(CodeSizing, err.Error()))
	}

	stopPrice := entry - dir.Sign()*sym.FromPips(stopPips)
	short := order.ShortTradeID("")
	legs := make([]order.Leg, len(pcts))
	levels := make([]peer.TPLevel, len(pcts))
	for i := range pcts {
		targetPips := stopPips * b.opts.RMultiples[i]
		target := entry + dir.Sign()*sym.FromPips(targetPips)
		legs[i] = order.Leg{
			Symbol:      b.opts.Symbol,
			Direction:   dir,
			Volume:      sizing.Legs[i],
			Label:       order.LegLabel(short, i+1),
			StopPips:    stopPips,
			TargetPips:  targetPips,
			StopPrice:   stopPrice,
			TargetPrice: target,
		}
		levels[i] = peer.TPLevel{Label: legs[i].Label, Pips: targetPips, Price: target}
	}

	opened := b.submit(ctx, b.distance, legs)
	if opened == 0 {
		return b.finish(rec, failed(CodeNoLegs, "no leg could be opened"))
	}
	b.broadcast(ctx, peer.OpenMessage(dir, b.opts.Symbol, stopPips, stopPrice, entry, levels))
	return b.finish(rec, Outcome{Decision: journal.DecisionExecuted, Opened: opened})
}

// submit places legs with x and opens a group when any leg filled.
func (b *Bot) submit(ctx context.Context, x *order.Executor, legs []order.Leg) int {
	results := x.SubmitAll(ctx, legs)
	opened := order.Opened(results)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		p, ok := b.position(ctx, r.Leg.Symbol, r.PositionID)
		if ok {
			b.tpSeen[p.ID] = copyPrice(p.TakeProfit)
			b.slSeen[p.ID] = copyPrice(p.StopLoss)
		}
	}
	b.metrics.LegsOpened.Add(float64(opened))
	b.metrics.LegsFailed.Add(float64(len(results) - opened))
	if opened > 0 {
		b.gate.OpenGroup()
	}
	return opened
}

// finish journals and counts an outcome.
func (b *Bot) finish(rec journal.SignalRecord, out Outcome) Outcome {
	rec.Decision = out.Decision
	rec.Code = out.Code
	rec.Reason = out.Reason
	rec.LegsOpened = out.Opened
	b.recordSignal(rec)

	switch out.Decision {
	case journal.DecisionExecuted:
		b.metrics.SignalsExecuted.Inc()
	case journal.DecisionRejected, journal.DecisionFailed:
		b.metrics.SignalsRejected.WithLabelValues(out.Code).Inc()
	}
	return out
}

func rejected(v *risk.Violation) Outcome {
	return Outcome{Decision: journal.DecisionRejected, Code: v.Code, Reason: v.Msg}
}

func failed(code, reason string) Outcome {
	return Outcome{Decision: journal.DecisionFailed, Code: code, Reason: reason}
}

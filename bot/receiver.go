package bot

import (
	"context"

	"github.com/rustyeddy/signalbot/broker"
	"github.com/rustyeddy/signalbot/ingest"
	"github.com/rustyeddy/signalbot/journal"
	"github.com/rustyeddy/signalbot/market"
	"github.com/rustyeddy/signalbot/order"
	"github.com/rustyeddy/signalbot/peer"
	"github.com/rustyeddy/signalbot/risk"
)

// Receiver input and modification modes.
const (
	InputPips    = "pips"
	InputPrice   = "price"
	ModPrice     = "price"
	ModPipDiff   = "pip_diff"
	SourceChart  = "chart"
	SourcePeer   = "broadcast"
	peerLabelTag = "PEER"
)

// HandlePeer decodes and applies one message from a peer bot. Opens are
// sized with this bot's own risk settings; nothing received is relayed.
func (b *Bot) HandlePeer(ctx context.Context, body []byte) Outcome {
	msg, err := peer.Decode(body)
	if err != nil {
		b.logger.Debug().Err(err).Msg("peer body dropped")
		return Outcome{Decision: DecisionDropped, Reason: err.Error()}
	}
	route := ingest.Route(msg)
	b.metrics.PeerActions.WithLabelValues(route.String()).Inc()

	switch route {
	case ingest.RouteOpen:
		return b.openFromPeer(ctx, msg)
	case ingest.RouteModifyTP, ingest.RouteModifySL:
		return b.modifyFromPeer(ctx, msg, route)
	case ingest.RouteClose:
		return b.closeFromPeer(ctx, msg.PositionLabel)
	case ingest.RouteCloseAll:
		n := b.flatten(ctx, true)
		b.logger.Info().Int("closed", n).Msg("peer closed all positions")
		return Outcome{Decision: journal.DecisionExecuted}
	}
	b.logger.Warn().Str("action", msg.Action).Msg("unknown peer action")
	return Outcome{Decision: DecisionIgnored, Reason: "unknown action " + msg.Action}
}

func (b *Bot) openFromPeer(ctx context.Context, msg peer.Message) Outcome {
	rc := b.opts.Receiver
	rec := journal.SignalRecord{
		Source:     "peer",
		Instrument: msg.Symbol,
		Direction:  msg.Action,
	}
	if v := b.gate.CanTrade(ctx); v != nil {
		b.logger.Warn().Str("code", v.Code).Str("reason", v.Msg).Msg("peer open blocked")
		return b.finish(rec, rejected(v))
	}

	received, err := msg.Direction()
	if err != nil {
		return b.finish(rec, failed(CodeInvalidPrices, err.Error()))
	}
	actual := rc.Translator.Direction(received)
	rec.Direction = actual.String()

	symbol := b.opts.Symbol
	if rc.InstrumentSource == SourcePeer && msg.Symbol != "" {
		symbol = msg.Symbol
	}
	rec.Instrument = symbol
	sym, err := b.broker.GetSymbol(ctx, symbol)
	if err != nil {
		return b.finish(rec, failed(CodePlatform, err.Error()))
	}
	acct, err := b.broker.GetAccount(ctx)
	if err != nil {
		return b.finish(rec, failed(CodePlatform, err.Error()))
	}
	entry := sym.EntryPrice(actual)

	stopPips, ok := peerStopPips(rc.SLInput, msg, sym, entry)
	if !ok {
		return b.finish(rec, failed(CodeMissingStop, "message carries neither sl_pips nor sl_price"))
	}
	stopPips += rc.SLOffsetPips
	if stopPips <= 0 {
		return b.finish(rec, failed(CodeMissingStop, "stop distance is not positive"))
	}

	targets, labels := b.peerTargets(msg, received, actual, sym, entry, stopPips)
	pcts := b.legPercents(len(targets))
	riskAmount := b.risk.RiskAmount(acct.Balance, stopPips)
	sizing, err := risk.Split(riskAmount, stopPips, sym, pcts)
	if err != nil {
		return b.finish(rec, failed(CodeSizing, err.Error()))
	}

	legs := make([]order.Leg, len(pcts))
	for i := range pcts {
		var targetPips float64
		if targets[i] > 0 {
			targetPips = sym.ToPips(targets[i] - entry)
		}
		legs[i] = order.Leg{
			Symbol:      symbol,
			Direction:   actual,
			Volume:      sizing.Legs[i],
			Label:       labels[i],
			StopPips:    stopPips,
			TargetPips:  targetPips,
			StopPrice:   entry - actual.Sign()*sym.FromPips(stopPips),
			TargetPrice: targets[i],
		}
	}

	b.logger.Info().
		Str("received", received.String()).
		Str("direction", actual.String()).
		Str("mode", string(rc.Translator.Mode)).
		Float64("stop_pips", stopPips).
		Int("legs", len(legs)).
		Msg("executing peer open")

	opened := b.submit(ctx, b.distance, legs)
	if opened == 0 {
		return b.finish(rec, failed(CodeNoLegs, "no leg could be opened"))
	}
	return b.finish(rec, Outcome{Decision: journal.DecisionExecuted, Opened: opened})
}

// peerStopPips reads the stop distance in the preferred form, falling back
// to the other one.
func peerStopPips(input string, msg peer.Message, sym market.Symbol, entry float64) (float64, bool) {
	fromPips := func() (float64, bool) { return msg.SLPips, msg.SLPips > 0 }
	fromPrice := func() (float64, bool) {
		if msg.SLPrice <= 0 {
			return 0, false
		}
		return sym.ToPips(entry - msg.SLPrice), true
	}
	first, second := fromPips, fromPrice
	if input == InputPrice {
		first, second = fromPrice, fromPips
	}
	if v, ok := first(); ok {
		return v, true
	}
	return second()
}

// peerTargets returns one target price and label per leg. With fewer than
// two levels the legs fall back to this bot's own R multiples.
func (b *Bot) peerTargets(msg peer.Message, received, actual market.Direction, sym market.Symbol, entry, stopPips float64) ([]float64, []string) {
	rc := b.opts.Receiver
	levels := msg.TPLevels
	if len(levels) > 3 {
		levels = levels[:3]
	}

	if len(levels) < 2 {
		n := len(b.opts.RMultiples)
		targets := make([]float64, n)
		labels := make([]string, n)
		for i, r := range b.opts.RMultiples {
			targets[i] = entry + actual.Sign()*sym.FromPips(stopPips*r)
			labels[i] = order.LegLabel(peerLabelTag, i+1)
		}
		return targets, labels
	}

	// Levels are expressed on the sender's side of the market.
	sent := sym.EntryPrice(received)
	targets := make([]float64, len(levels))
	labels := make([]string, len(levels))
	for i, lvl := range levels {
		price, pips := lvl.Price, lvl.Pips
		if rc.TPInput == InputPips || price <= 0 {
			if pips > 0 {
				price = sent + received.Sign()*sym.FromPips(pips)
			}
		} else {
			pips = sym.ToPips(price - sent)
		}

		switch {
		case rc.TPMod == ModPipDiff && pips > 0:
			targets[i] = entry + actual.Sign()*sym.FromPips(pips)
		case price > 0:
			targets[i] = rc.Translator.ReflectTarget(price, received, sym)
		}

		labels[i] = lvl.Label
		if !order.IsLegLabel(labels[i]) {
			labels[i] = order.LegLabel(peerLabelTag, i+1)
		}
	}
	return targets, labels
}

// modifyFromPeer applies a received target or stop to every local position
// carrying the same label. The new value is recorded as already seen so
// the watcher does not relay it.
func (b *Bot) modifyFromPeer(ctx context.Context, msg peer.Message, route ingest.RouteAction) Outcome {
	rc := b.opts.Receiver
	received, err := msg.Direction()
	if err != nil {
		b.logger.Warn().Err(err).Str("label", msg.PositionLabel).Msg("peer modify without trade type")
		return Outcome{Decision: DecisionIgnored, Reason: err.Error()}
	}
	actual := rc.Translator.Direction(received)

	sym, err := b.broker.GetSymbol(ctx, b.opts.Symbol)
	if err != nil {
		return Outcome{Decision: journal.DecisionFailed, Code: CodePlatform, Reason: err.Error()}
	}
	matches := b.labelled(ctx, msg.PositionLabel)
	if len(matches) == 0 {
		b.logger.Info().Str("label", msg.PositionLabel).Msg("no position matches peer modify")
		return Outcome{Decision: DecisionIgnored, Reason: "no matching position"}
	}

	var value float64
	if route == ingest.RouteModifyTP {
		value = rc.Translator.ReflectTarget(msg.TPPrice, received, sym)
		if rc.TPMod == ModPipDiff {
			value = sym.ExitPrice(actual) + actual.Sign()*sym.FromPips(msg.TPPipDiff)
		}
	} else {
		value = rc.Translator.ReflectStop(msg.SLPrice, received, sym)
		if rc.SLMod == ModPipDiff {
			value = sym.EntryPrice(actual) - actual.Sign()*sym.FromPips(msg.SLPipDiff)
		}
	}
	if value <= 0 {
		return Outcome{Decision: DecisionIgnored, Reason: "no usable price in message"}
	}

	modified := 0
	for _, p := range matches {
		stop, target := p.StopLoss, p.TakeProfit
		if route == ingest.RouteModifyTP {
			target = broker.Price(value)
		} else {
			stop = broker.Price(value)
		}
		if err := b.broker.ModifyPosition(ctx, p.ID, stop, target); err != nil {
			b.logger.Error().Err(err).Str("position", p.ID).Str("label", p.Label).Msg("peer modify failed")
			continue
		}
		b.tpSeen[p.ID] = copyPrice(target)
		b.slSeen[p.ID] = copyPrice(stop)
		modified++
	}
	b.logger.Info().
		Str("route", route.String()).
		Str("label", msg.PositionLabel).
		Float64("price", value).
		Int("positions", modified).
		Msg("peer modification applied")
	return Outcome{Decision: journal.DecisionExecuted}
}

func (b *Bot) closeFromPeer(ctx context.Context, label string) Outcome {
	closed := 0
	for _, p := range b.labelled(ctx, label) {
		b.quiet[p.ID] = struct{}{}
		if err := b.broker.ClosePosition(ctx, p.ID); err != nil {
			delete(b.quiet, p.ID)
			b.logger.Error().Err(err).Str("position", p.ID).Msg("peer close failed")
			continue
		}
		closed++
	}
	if closed == 0 {
		return Outcome{Decision: DecisionIgnored, Reason: "no matching position"}
	}
	b.logger.Info().Str("label", label).Int("closed", closed).Msg("peer close applied")
	return Outcome{Decision: journal.DecisionExecuted}
}

// labelled returns this bot's positions carrying label.
func (b *Bot) labelled(ctx context.Context, label string) []broker.Position {
	positions, err := b.broker.Positions(ctx, b.opts.Symbol)
	if err != nil {
		b.logger.Warn().Err(err).Msg("list positions")
		return nil
	}
	var out []broker.Position
	for _, p := range positions {
		if p.Label == label {
			out = append(out, p)
		}
	}
	return out
}

package bot

import (
	"context"
	"time"

	"github.com/rustyeddy/signalbot/broker"
	"github.com/rustyeddy/signalbot/journal"
	"github.com/rustyeddy/signalbot/order"
	"github.com/rustyeddy/signalbot/peer"
	"github.com/rustyeddy/signalbot/risk"
)

// notifyClosed is registered with the broker. It may run on any goroutine,
// including the tick goroutine from inside a broker call, so it only
// queues the event.
func (b *Bot) notifyClosed(c broker.ClosedPosition) {
	b.mu.Lock()
	b.pending = append(b.pending, c)
	b.mu.Unlock()
	b.Tick()
}

// drainClosed processes queued close events until none remain. Handling a
// close can trip the kill switch and flatten, which queues more.
func (b *Bot) drainClosed(ctx context.Context) {
	for {
		b.mu.Lock()
		batch := b.pending
		b.pending = nil
		b.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for i, c := range batch {
			b.handleClose(ctx, c, b.queuedLegs(batch[i+1:]))
		}
	}
}

// handleClose journals one closed position and, for a leg of the bot's
// symbol, feeds its result to the group counters. queued is the number of
// leg closes already reported by the broker but not yet handled.
func (b *Bot) handleClose(ctx context.Context, c broker.ClosedPosition, queued int) {
	_, quiet := b.quiet[c.ID]
	delete(b.quiet, c.ID)
	delete(b.tpSeen, c.ID)
	delete(b.slSeen, c.ID)

	b.metrics.LegsClosed.WithLabelValues(c.Reason).Inc()
	err := b.journal.RecordLeg(journal.LegRecord{
		PositionID: c.ID,
		Label:      c.Label,
		Symbol:     c.Symbol,
		Direction:  c.Direction.String(),
		Volume:     c.Volume,
		EntryPrice: c.EntryPrice,
		ClosePrice: c.ClosePrice,
		OpenTime:   c.OpenTime,
		CloseTime:  c.CloseTime,
		NetProfit:  c.NetProfit,
		Reason:     c.Reason,
	})
	if err != nil {
		b.logger.Warn().Err(err).Str("position", c.ID).Msg("journal leg")
	}

	if c.Symbol != b.opts.Symbol || !order.IsLegLabel(c.Label) {
		return
	}

	remaining := b.openLegs(ctx) + queued
	b.logger.Info().
		Str("position", c.ID).
		Str("label", c.Label).
		Str("reason", c.Reason).
		Float64("profit", c.NetProfit).
		Int("remaining", remaining).
		Msg("leg closed")

	if !quiet {
		b.broadcast(ctx, peer.CloseMessage(c.Symbol, c.Label, c.Direction))
	}
	if v := b.gate.RecordClose(ctx, c.NetProfit, remaining); v != nil {
		b.logger.Warn().Str("code", v.Code).Str("reason", v.Msg).Msg("group cap reached")
	}
	if remaining == 0 {
		b.recordEquity(ctx)
	}
}

func (b *Bot) queuedLegs(batch []broker.ClosedPosition) int {
	n := 0
	for _, c := range batch {
		if c.Symbol == b.opts.Symbol && order.IsLegLabel(c.Label) {
			n++
		}
	}
	return n
}

// openLegs counts leg positions of the bot's symbol still open.
func (b *Bot) openLegs(ctx context.Context) int {
	positions, err := b.broker.Positions(ctx, b.opts.Symbol)
	if err != nil {
		b.logger.Warn().Err(err).Msg("list positions")
		return 0
	}
	n := 0
	for _, p := range positions {
		if order.IsLegLabel(p.Label) && p.Volume > 0 {
			n++
		}
	}
	return n
}

func (b *Bot) onHalt(ctx context.Context, v risk.Violation) {
	b.logger.Warn().Str("code", v.Code).Str("reason", v.Msg).Msg("flattening after kill switch")
	b.metrics.KillSwitch.Set(1)
	b.CloseAll(ctx)
}

// CloseAll tells every peer to flatten and then closes every position of
// the bot's symbol.
func (b *Bot) CloseAll(ctx context.Context) int {
	b.broadcast(ctx, peer.CloseAllMessage(b.opts.Symbol))
	return b.flatten(ctx, false)
}

// flatten closes every position of the bot's symbol. With quiet set the
// individual closes are not relayed to peers.
func (b *Bot) flatten(ctx context.Context, quiet bool) int {
	positions, err := b.broker.Positions(ctx, b.opts.Symbol)
	if err != nil {
		b.logger.Error().Err(err).Msg("flatten: list positions")
		return 0
	}
	closed := 0
	for _, p := range positions {
		if quiet {
			b.quiet[p.ID] = struct{}{}
		}
		if err := b.broker.ClosePosition(ctx, p.ID); err != nil {
			delete(b.quiet, p.ID)
			b.logger.Error().Err(err).Str("position", p.ID).Str("label", p.Label).Msg("flatten: close failed")
			continue
		}
		closed++
	}
	return closed
}

// rollover starts a new trading day. Legs still open keep counting towards
// a group on the new day.
func (b *Bot) rollover(ctx context.Context, day time.Time) {
	acct, err := b.broker.GetAccount(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("rollover: account unavailable")
		return
	}
	b.recordEquity(ctx)
	b.gate.Rollover(acct.Balance, day)
	b.validator.Reset()
	if b.openLegs(ctx) > 0 {
		b.gate.OpenGroup()
	}
	b.logger.Info().Time("day", day).Float64("balance", acct.Balance).Msg("new trading day")
}

// watchModifications relays target and stop changes made on this bot's
// positions, whether by the trailing manager or by hand on the platform.
// The first sighting of a position only records its values.
func (b *Bot) watchModifications(ctx context.Context) {
	positions, err := b.broker.Positions(ctx, b.opts.Symbol)
	if err != nil {
		b.logger.Warn().Err(err).Msg("watch: list positions")
		return
	}
	sym, err := b.broker.GetSymbol(ctx, b.opts.Symbol)
	if err != nil {
		b.logger.Warn().Err(err).Msg("watch: symbol unavailable")
		return
	}

	live := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		live[p.ID] = struct{}{}

		if old, seen := b.tpSeen[p.ID]; !seen {
			b.tpSeen[p.ID] = copyPrice(p.TakeProfit)
		} else if !samePrice(old, p.TakeProfit) {
			b.tpSeen[p.ID] = copyPrice(p.TakeProfit)
			if p.TakeProfit != nil {
				current := sym.ExitPrice(p.Direction)
				pipDiff := sym.ToPips(current - *p.TakeProfit)
				b.broadcast(ctx, peer.ModifyTPMessage(p.Symbol, p.Label, p.Direction, *p.TakeProfit, pipDiff, current, p.EntryPrice))
			}
		}

		if old, seen := b.slSeen[p.ID]; !seen {
			b.slSeen[p.ID] = copyPrice(p.StopLoss)
		} else if !samePrice(old, p.StopLoss) {
			b.slSeen[p.ID] = copyPrice(p.StopLoss)
			if p.StopLoss != nil {
				current := sym.EntryPrice(p.Direction)
				pipDiff := sym.ToPips(current - *p.StopLoss)
				b.broadcast(ctx, peer.ModifySLMessage(p.Symbol, p.Label, p.Direction, *p.StopLoss, pipDiff, current, p.EntryPrice))
			}
		}
	}

	for id := range b.tpSeen {
		if _, ok := live[id]; !ok {
			delete(b.tpSeen, id)
		}
	}
	for id := range b.slSeen {
		if _, ok := live[id]; !ok {
			delete(b.slSeen, id)
		}
	}
}

// position looks up one open position by id.
func (b *Bot) position(ctx context.Context, symbol, id string) (broker.Position, bool) {
	positions, err := b.broker.Positions(ctx, symbol)
	if err != nil {
		return broker.Position{}, false
	}
	for _, p := range positions {
		if p.ID == id {
			return p, true
		}
	}
	return broker.Position{}, false
}

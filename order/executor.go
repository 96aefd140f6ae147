// Package order submits the legs of a signal to the broker.
package order

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/signalbot/broker"
	"github.com/rustyeddy/signalbot/market"
)

type Mode string

const (
	// ModeDistance attaches stop and target as pip distances from the fill.
	ModeDistance Mode = "distance"
	// ModeExactPrice opens unprotected and then sets exact prices with a
	// follow-up modify.
	ModeExactPrice Mode = "exact_price"
)

// Leg is one market order of a signal. Both the pip and price forms of
// the stop and target are carried; the executor's mode picks which is
// sent. Zero means none.
type Leg struct {
	Symbol      string
	Direction   market.Direction
	Volume      float64
	Label       string
	StopPips    float64
	TargetPips  float64
	StopPrice   float64
	TargetPrice float64
}

type Result struct {
	Leg        Leg
	PositionID string
	Err        error
}

type Executor struct {
	broker broker.Broker
	mode   Mode
	logger zerolog.Logger
}

func NewExecutor(b broker.Broker, mode Mode, logger zerolog.Logger) *Executor {
	if mode == "" {
		mode = ModeDistance
	}
	return &Executor{
		broker: b,
		mode:   mode,
		logger: logger.With().Str("component", "executor").Logger(),
	}
}

func (x *Executor) Mode() Mode { return x.mode }

// Submit places one leg and returns its position id. In exact-price mode
// a failed modify is logged and the open, unprotected position id is still
// returned.
func (x *Executor) Submit(ctx context.Context, leg Leg) (string, error) {
	req := broker.MarketOrderRequest{
		Symbol:    leg.Symbol,
		Direction: leg.Direction,
		Volume:    leg.Volume,
		Label:     leg.Label,
	}
	if x.mode == ModeDistance {
		req.StopLossPips = leg.StopPips
		req.TakeProfitPips = leg.TargetPips
	}

	pos, err := x.broker.CreateMarketOrder(ctx, req)
	if err != nil {
		return "", fmt.Errorf("submit %s: %w", leg.Label, err)
	}

	x.logger.Info().
		Str("label", leg.Label).
		Str("position", pos.ID).
		Str("direction", leg.Direction.String()).
		Float64("volume", leg.Volume).
		Float64("entry", pos.EntryPrice).
		Msg("leg opened")

	if x.mode == ModeExactPrice {
		var stop, target *float64
		if leg.StopPrice > 0 {
			stop = broker.Price(leg.StopPrice)
		}
		if leg.TargetPrice > 0 {
			target = broker.Price(leg.TargetPrice)
		}
		if stop != nil || target != nil {
			if err := x.broker.ModifyPosition(ctx, pos.ID, stop, target); err != nil {
				x.logger.Error().
					Err(err).
					Str("label", leg.Label).
					Str("position", pos.ID).
					Msg("leg open without protection, modify failed")
			}
		}
	}
	return pos.ID, nil
}

// SubmitAll places every leg independently. A failed leg does not stop or
// undo the others.
func (x *Executor) SubmitAll(ctx context.Context, legs []Leg) []Result {
	out := make([]Result, 0, len(legs))
	for _, leg := range legs {
		id, err := x.Submit(ctx, leg)
		if err != nil {
			x.logger.Error().Err(err).Str("label", leg.Label).Msg("leg submission failed")
		}
		out = append(out, Result{Leg: leg, PositionID: id, Err: err})
	}
	return out
}

// Opened counts results that produced a position.
func Opened(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

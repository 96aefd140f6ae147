package order

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/signalbot/broker"
	"github.com/rustyeddy/signalbot/broker/sim"
	"github.com/rustyeddy/signalbot/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSim(t *testing.T) *sim.Engine {
	t.Helper()
	e := sim.NewEngine(broker.Account{ID: "acct", Currency: "USD", Balance: 10000})
	e.SetSymbol(market.Instruments["EURUSD"].Symbol(1.1000, 1.1002))
	return e
}

func legs() []Leg {
	return []Leg{
		{Symbol: "EURUSD", Direction: market.Long, Volume: 0.15, Label: "abc_TP1", StopPips: 20, TargetPips: 20, StopPrice: 1.0982, TargetPrice: 1.1022},
		{Symbol: "EURUSD", Direction: market.Long, Volume: 0.15, Label: "abc_TP2", StopPips: 20, TargetPips: 40, StopPrice: 1.0982, TargetPrice: 1.1042},
		{Symbol: "EURUSD", Direction: market.Long, Volume: 0.20, Label: "abc_TP3", StopPips: 20, TargetPips: 200, StopPrice: 1.0982, TargetPrice: 1.1202},
	}
}

func TestSubmitDistanceMode(t *testing.T) {
	t.Parallel()
	b := newSim(t)
	x := NewExecutor(b, ModeDistance, zerolog.Nop())

	id, err := x.Submit(context.Background(), legs()[1])
	require.NoError(t, err)

	pos, _ := b.Positions(context.Background(), "EURUSD")
	require.Len(t, pos, 1)
	assert.Equal(t, id, pos[0].ID)
	assert.Equal(t, "abc_TP2", pos[0].Label)
	assert.InDelta(t, 1.0982, *pos[0].StopLoss, 1e-9)
	assert.InDelta(t, 1.1042, *pos[0].TakeProfit, 1e-9)
}

func TestSubmitExactPriceMode(t *testing.T) {
	t.Parallel()
	b := newSim(t)
	x := NewExecutor(b, ModeExactPrice, zerolog.Nop())

	leg := legs()[0]
	leg.StopPrice = 1.0975
	_, err := x.Submit(context.Background(), leg)
	require.NoError(t, err)

	pos, _ := b.Positions(context.Background(), "EURUSD")
	require.Len(t, pos, 1)
	assert.Equal(t, 1.0975, *pos[0].StopLoss)
	assert.Equal(t, 1.1022, *pos[0].TakeProfit)
}

func TestExactPriceModifyFailureLeavesLegOpen(t *testing.T) {
	t.Parallel()
	b := newSim(t)
	b.SetHook(func(op, label string) error {
		if op == "modify" {
			return errors.New("rejected")
		}
		return nil
	})
	x := NewExecutor(b, ModeExactPrice, zerolog.Nop())

	id, err := x.Submit(context.Background(), legs()[0])
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	pos, _ := b.Positions(context.Background(), "EURUSD")
	require.Len(t, pos, 1)
	assert.Nil(t, pos[0].StopLoss)
	assert.Nil(t, pos[0].TakeProfit)
}

func TestSubmitAllIsIndependentPerLeg(t *testing.T) {
	t.Parallel()
	b := newSim(t)
	b.SetHook(func(op, label string) error {
		if op == "order" && label == "abc_TP2" {
			return errors.New("no liquidity")
		}
		return nil
	})
	x := NewExecutor(b, ModeDistance, zerolog.Nop())

	results := x.SubmitAll(context.Background(), legs())
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 2, Opened(results))

	pos, _ := b.Positions(context.Background(), "EURUSD")
	assert.Len(t, pos, 2)
}

func TestLabels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc123", ShortTradeID("abc-123"))
	assert.Equal(t, "MANUAL", ShortTradeID(""))
	assert.Equal(t, "MANUAL", ShortTradeID("---"))
	assert.Equal(t, "3456789abcde", ShortTradeID("0123-4567-89ab-cde"))
	assert.Equal(t, "abc123_TP2", LegLabel("abc123", 2))

	tests := []struct {
		label string
		want  int
	}{
		{"abc123_TP1", 1},
		{"abc123_TP3", 3},
		{"abc123_TP4", 0},
		{"TP2Position", 2},
		{"manual", 0},
		{"", 0},
		{"x_TPx", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LegIndex(tt.label), tt.label)
		assert.Equal(t, tt.want > 0, IsLegLabel(tt.label), tt.label)
	}
}

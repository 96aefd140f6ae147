package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/rustyeddy/signalbot/broker"
	"github.com/rustyeddy/signalbot/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eurusd(bid, ask float64) market.Symbol {
	return market.Instruments["EURUSD"].Symbol(bid, ask)
}

func newEngine(t *testing.T, balance float64) *Engine {
	t.Helper()
	e := NewEngine(broker.Account{ID: "acct-1", Currency: "USD", Balance: balance})
	e.SetSymbol(eurusd(1.1000, 1.1002))
	return e
}

func openMarket(t *testing.T, e *Engine, d market.Direction, vol, sl, tp float64, label string) broker.Position {
	t.Helper()
	p, err := e.CreateMarketOrder(context.Background(), broker.MarketOrderRequest{
		Symbol:         "EURUSD",
		Direction:      d,
		Volume:         vol,
		Label:          label,
		StopLossPips:   sl,
		TakeProfitPips: tp,
	})
	require.NoError(t, err)
	return p
}

func TestCreateMarketOrderFillsOnCorrectSide(t *testing.T) {
	t.Parallel()
	e := newEngine(t, 10000)

	long := openMarket(t, e, market.Long, 1, 20, 40, "A_TP1")
	assert.Equal(t, 1.1002, long.EntryPrice)
	require.NotNil(t, long.StopLoss)
	require.NotNil(t, long.TakeProfit)
	assert.InDelta(t, 1.0982, *long.StopLoss, 1e-9)
	assert.InDelta(t, 1.1042, *long.TakeProfit, 1e-9)

	short := openMarket(t, e, market.Short, 1, 20, 0, "A_TP2")
	assert.Equal(t, 1.1000, short.EntryPrice)
	assert.InDelta(t, 1.1020, *short.StopLoss, 1e-9)
	assert.Nil(t, short.TakeProfit)
}

func TestCreateMarketOrderRejects(t *testing.T) {
	t.Parallel()
	e := newEngine(t, 10000)
	ctx := context.Background()

	_, err := e.CreateMarketOrder(ctx, broker.MarketOrderRequest{Symbol: "GBPUSD", Direction: market.Long, Volume: 1})
	assert.ErrorIs(t, err, broker.ErrUnknownSymbol)

	_, err = e.CreateMarketOrder(ctx, broker.MarketOrderRequest{Symbol: "EURUSD", Direction: market.Long, Volume: 0})
	assert.Error(t, err)

	_, err = e.CreateMarketOrder(ctx, broker.MarketOrderRequest{Symbol: "EURUSD", Volume: 1})
	assert.ErrorIs(t, err, market.ErrUnknownDirection)
}

func TestUpdatePriceTriggersStopAndTarget(t *testing.T) {
	t.Parallel()
	e := newEngine(t, 10000)

	var closed []broker.ClosedPosition
	e.OnPositionClosed(func(c broker.ClosedPosition) { closed = append(closed, c) })

	long := openMarket(t, e, market.Long, 1, 20, 40, "A_TP1")
	short := openMarket(t, e, market.Short, 1, 50, 40, "A_TP2")

	// Bid up through the long's target; ask still below the short's stop.
	require.NoError(t, e.UpdatePrice("EURUSD", 1.1043, 1.1045))
	require.Len(t, closed, 1)
	assert.Equal(t, long.ID, closed[0].ID)
	assert.Equal(t, "TakeProfit", closed[0].Reason)
	assert.InDelta(t, 41.0*10, closed[0].NetProfit, 1e-6)

	require.NoError(t, e.UpdatePrice("EURUSD", 1.1049, 1.1051))
	require.Len(t, closed, 2)
	assert.Equal(t, short.ID, closed[1].ID)
	assert.Equal(t, "StopLoss", closed[1].Reason)

	pos, err := e.Positions(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Empty(t, pos)

	acct, _ := e.GetAccount(context.Background())
	assert.InDelta(t, acct.Balance, acct.Equity, 1e-9)
	assert.InDelta(t, 10000+410-510, acct.Balance, 1e-6)
}

func TestEquityTracksOpenPositions(t *testing.T) {
	t.Parallel()
	e := newEngine(t, 10000)

	openMarket(t, e, market.Long, 2, 0, 0, "")
	require.NoError(t, e.UpdatePrice("EURUSD", 1.0990, 1.0992))

	acct, _ := e.GetAccount(context.Background())
	assert.Equal(t, 10000.0, acct.Balance)
	// 12 pips against, 2 lots, $10/pip/lot
	assert.InDelta(t, 10000-240, acct.Equity, 1e-6)
}

func TestModifyAndClosePosition(t *testing.T) {
	t.Parallel()
	e := newEngine(t, 10000)
	ctx := context.Background()

	var closed []broker.ClosedPosition
	e.OnPositionClosed(func(c broker.ClosedPosition) { closed = append(closed, c) })

	p := openMarket(t, e, market.Long, 1, 0, 0, "A_TP1")
	require.NoError(t, e.ModifyPosition(ctx, p.ID, broker.Price(1.0990), broker.Price(1.1050)))

	pos, _ := e.Positions(ctx, "EURUSD")
	require.Len(t, pos, 1)
	assert.Equal(t, 1.0990, *pos[0].StopLoss)
	assert.Equal(t, 1.1050, *pos[0].TakeProfit)

	require.NoError(t, e.ClosePosition(ctx, p.ID))
	require.Len(t, closed, 1)
	assert.Equal(t, "Closed", closed[0].Reason)

	assert.ErrorIs(t, e.ClosePosition(ctx, p.ID), broker.ErrPositionNotFound)
	assert.ErrorIs(t, e.ModifyPosition(ctx, p.ID, nil, nil), broker.ErrPositionNotFound)
}

func TestPartialClose(t *testing.T) {
	t.Parallel()
	e := newEngine(t, 10000)
	ctx := context.Background()

	var closed []broker.ClosedPosition
	e.OnPositionClosed(func(c broker.ClosedPosition) { closed = append(closed, c) })

	p := openMarket(t, e, market.Long, 1, 0, 0, "A_TP1")
	require.NoError(t, e.PartialClose(ctx, p.ID, 0.4))
	assert.Empty(t, closed)

	pos, _ := e.Positions(ctx, "EURUSD")
	require.Len(t, pos, 1)
	assert.InDelta(t, 0.6, pos[0].Volume, 1e-9)

	require.NoError(t, e.PartialClose(ctx, p.ID, 0.6))
	assert.Len(t, closed, 1)
}

func TestHookFailsOperations(t *testing.T) {
	t.Parallel()
	e := newEngine(t, 10000)
	boom := errors.New("boom")
	e.SetHook(func(op, label string) error {
		if op == "order" && label == "A_TP2" {
			return boom
		}
		return nil
	})

	openMarket(t, e, market.Long, 1, 0, 0, "A_TP1")
	_, err := e.CreateMarketOrder(context.Background(), broker.MarketOrderRequest{
		Symbol: "EURUSD", Direction: market.Long, Volume: 1, Label: "A_TP2",
	})
	assert.ErrorIs(t, err, boom)
}

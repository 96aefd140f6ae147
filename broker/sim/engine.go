// Package sim is an in-memory Broker used for paper trading and tests. It
// fills market orders at the current quote, triggers stops and targets on
// price updates, and supports partial closes.
package sim

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/signalbot/broker"
	"github.com/rustyeddy/signalbot/id"
	"github.com/rustyeddy/signalbot/market"
)

// Hook lets tests fail individual broker calls.
type Hook func(op string, label string) error

type Engine struct {
	mu        sync.Mutex
	acct      broker.Account
	symbols   map[string]market.Symbol
	positions map[string]*broker.Position
	listeners []func(broker.ClosedPosition)
	hook      Hook
	now       func() time.Time
}

var _ broker.Broker = (*Engine)(nil)

func NewEngine(acct broker.Account) *Engine {
	if acct.Equity == 0 {
		acct.Equity = acct.Balance
	}
	return &Engine{
		acct:      acct,
		symbols:   make(map[string]market.Symbol),
		positions: make(map[string]*broker.Position),
		now:       time.Now,
	}
}

// SetHook installs a failure hook consulted by CreateMarketOrder
// ("order"), ModifyPosition ("modify") and ClosePosition ("close").
func (e *Engine) SetHook(h Hook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hook = h
}

// SetSymbol registers or replaces a symbol and its quote without running
// triggers.
func (e *Engine) SetSymbol(s market.Symbol) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.symbols[s.Name] = s
	e.revalueLocked()
}

func (e *Engine) GetAccount(ctx context.Context) (broker.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct, nil
}

func (e *Engine) GetSymbol(ctx context.Context, name string) (market.Symbol, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.symbols[name]
	if !ok {
		return market.Symbol{}, fmt.Errorf("get symbol: %w: %q", broker.ErrUnknownSymbol, name)
	}
	return s, nil
}

func (e *Engine) OnPositionClosed(fn func(broker.ClosedPosition)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) CreateMarketOrder(ctx context.Context, req broker.MarketOrderRequest) (broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.callHook("order", req.Label); err != nil {
		return broker.Position{}, err
	}
	s, ok := e.symbols[req.Symbol]
	if !ok {
		return broker.Position{}, fmt.Errorf("create order: %w: %q", broker.ErrUnknownSymbol, req.Symbol)
	}
	if !req.Direction.Valid() {
		return broker.Position{}, fmt.Errorf("create order: %w", market.ErrUnknownDirection)
	}
	if req.Volume <= 0 {
		return broker.Position{}, fmt.Errorf("create order: volume must be positive, got %v", req.Volume)
	}

	entry := s.EntryPrice(req.Direction)
	p := &broker.Position{
		ID:         id.New(),
		Symbol:     req.Symbol,
		Label:      req.Label,
		Direction:  req.Direction,
		Volume:     req.Volume,
		EntryPrice: entry,
		OpenTime:   e.now(),
	}
	if req.StopLossPips > 0 {
		p.StopLoss = broker.Price(entry - req.Direction.Sign()*s.FromPips(req.StopLossPips))
	}
	if req.TakeProfitPips > 0 {
		p.TakeProfit = broker.Price(entry + req.Direction.Sign()*s.FromPips(req.TakeProfitPips))
	}
	p.NetProfit = unrealized(p, s)
	e.positions[p.ID] = p

	return *p, nil
}

func (e *Engine) ModifyPosition(ctx context.Context, id string, stop, target *float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.positions[id]
	if !ok {
		return fmt.Errorf("modify position: %w: %q", broker.ErrPositionNotFound, id)
	}
	if err := e.callHook("modify", p.Label); err != nil {
		return err
	}
	p.StopLoss = copyPrice(stop)
	p.TakeProfit = copyPrice(target)
	return nil
}

// ClosePosition closes the whole position at the current exit price.
// Longs close on Bid, shorts on Ask.
func (e *Engine) ClosePosition(ctx context.Context, id string) error {
	e.mu.Lock()
	p, ok := e.positions[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("close position: %w: %q", broker.ErrPositionNotFound, id)
	}
	if err := e.callHook("close", p.Label); err != nil {
		e.mu.Unlock()
		return err
	}
	closed := e.closeLocked(p, p.Volume, "Closed")
	listeners := e.listeners
	e.mu.Unlock()

	notify(listeners, closed)
	return nil
}

// PartialClose closes volume of a position. The remainder stays open with
// the same id. Closing the full volume or more closes the position.
func (e *Engine) PartialClose(ctx context.Context, id string, volume float64) error {
	e.mu.Lock()
	p, ok := e.positions[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("partial close: %w: %q", broker.ErrPositionNotFound, id)
	}
	if volume >= p.Volume {
		closed := e.closeLocked(p, p.Volume, "Closed")
		listeners := e.listeners
		e.mu.Unlock()
		notify(listeners, closed)
		return nil
	}
	_ = e.closeLocked(p, volume, "PartialClose")
	e.mu.Unlock()
	return nil
}

func (e *Engine) Positions(ctx context.Context, symbol string) ([]broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]broker.Position, 0, len(e.positions))
	for _, p := range e.positions {
		if symbol != "" && p.Symbol != symbol {
			continue
		}
		cp := *p
		cp.StopLoss = copyPrice(p.StopLoss)
		cp.TakeProfit = copyPrice(p.TakeProfit)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdatePrice moves the quote of a registered symbol, closes positions
// whose stop or target was crossed and revalues the account.
func (e *Engine) UpdatePrice(symbol string, bid, ask float64) error {
	e.mu.Lock()

	s, ok := e.symbols[symbol]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("update price: %w: %q", broker.ErrUnknownSymbol, symbol)
	}
	if bid <= 0 || ask <= 0 {
		e.mu.Unlock()
		return fmt.Errorf("update price: %w for %q", broker.ErrNoPrice, symbol)
	}
	s.Bid, s.Ask = bid, ask
	e.symbols[symbol] = s

	ids := make([]string, 0, len(e.positions))
	for id := range e.positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var closed []broker.ClosedPosition
	for _, id := range ids {
		p := e.positions[id]
		if p.Symbol != symbol {
			continue
		}
		mark := s.ExitPrice(p.Direction)
		reason := ""
		switch {
		case hitStopLoss(p, mark):
			reason = "StopLoss"
		case hitTakeProfit(p, mark):
			reason = "TakeProfit"
		}
		if reason != "" {
			closed = append(closed, e.closeLocked(p, p.Volume, reason))
		}
	}
	e.revalueLocked()
	listeners := e.listeners
	e.mu.Unlock()

	for _, c := range closed {
		notify(listeners, c)
	}
	return nil
}

// closeLocked realizes volume of p into the balance. The returned
// ClosedPosition is only meaningful when the whole position was closed.
func (e *Engine) closeLocked(p *broker.Position, volume float64, reason string) broker.ClosedPosition {
	s := e.symbols[p.Symbol]
	exit := s.ExitPrice(p.Direction)
	pl := realized(p.Direction, p.EntryPrice, exit, volume, s)

	e.acct.Balance += pl

	closed := broker.ClosedPosition{
		Position:   *p,
		ClosePrice: exit,
		CloseTime:  e.now(),
		Reason:     reason,
	}
	closed.Volume = volume
	closed.NetProfit = pl

	p.Volume = roundVolume(p.Volume - volume)
	if p.Volume <= 0 {
		delete(e.positions, p.ID)
	}
	e.revalueLocked()
	return closed
}

func (e *Engine) revalueLocked() {
	equity := e.acct.Balance
	for _, p := range e.positions {
		s, ok := e.symbols[p.Symbol]
		if !ok {
			continue
		}
		p.NetProfit = unrealized(p, s)
		equity += p.NetProfit
	}
	e.acct.Equity = equity
}

func (e *Engine) callHook(op, label string) error {
	if e.hook == nil {
		return nil
	}
	return e.hook(op, label)
}

func notify(listeners []func(broker.ClosedPosition), c broker.ClosedPosition) {
	for _, fn := range listeners {
		fn(c)
	}
}

func copyPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

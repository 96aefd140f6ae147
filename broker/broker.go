package broker

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/signalbot/market"
)

var (
	ErrPositionNotFound = errors.New("position not found")
	ErrUnknownSymbol    = errors.New("unknown symbol")
	ErrNoPrice          = errors.New("no price")
)

// Broker is the platform surface the bot trades through. Implementations
// must be safe for use from multiple goroutines.
type Broker interface {
	GetAccount(ctx context.Context) (Account, error)
	GetSymbol(ctx context.Context, name string) (market.Symbol, error)
	CreateMarketOrder(ctx context.Context, req MarketOrderRequest) (Position, error)
	ModifyPosition(ctx context.Context, id string, stop, target *float64) error
	ClosePosition(ctx context.Context, id string) error
	Positions(ctx context.Context, symbol string) ([]Position, error)

	// OnPositionClosed registers fn to be called after any position is
	// closed, whether by request or by a stop/target trigger. fn runs on the
	// goroutine that caused the close.
	OnPositionClosed(fn func(ClosedPosition))
}

type Account struct {
	ID       string
	Currency string
	Balance  float64
	Equity   float64
}

// MarketOrderRequest opens one position. Zero pip distances mean no
// protection is attached at submission.
type MarketOrderRequest struct {
	Symbol         string
	Direction      market.Direction
	Volume         float64
	Label          string
	StopLossPips   float64
	TakeProfitPips float64
}

type Position struct {
	ID         string
	Symbol     string
	Label      string
	Direction  market.Direction
	Volume     float64
	EntryPrice float64
	StopLoss   *float64
	TakeProfit *float64
	NetProfit  float64
	OpenTime   time.Time
}

type ClosedPosition struct {
	Position
	ClosePrice float64
	CloseTime  time.Time
	Reason     string
}

// Price returns a pointer to v, for the optional stop and target fields.
func Price(v float64) *float64 {
	return &v
}

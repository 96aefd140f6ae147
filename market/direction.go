package market

import (
	"errors"
	"fmt"
	"strings"
)

// Direction is the side of a position. Long buys at the ask and exits at
// the bid, Short sells at the bid and exits at the ask.
type Direction int

const (
	Long  Direction = 1
	Short Direction = -1
)

var ErrUnknownDirection = errors.New("unknown direction")

// String returns the trade type used on the wire ("Buy" or "Sell").
func (d Direction) String() string {
	switch d {
	case Long:
		return "Buy"
	case Short:
		return "Sell"
	default:
		return "Unknown"
	}
}

func (d Direction) Opposite() Direction {
	return -d
}

// Sign is +1 for Long and -1 for Short.
func (d Direction) Sign() float64 {
	return float64(d)
}

func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// ParseDirection accepts LONG/SHORT as sent by alert sources and Buy/Sell
// as sent by peers, in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return Long, nil
	case "SHORT", "SELL":
		return Short, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

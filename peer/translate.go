package peer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/signalbot/market"
)

type Mode string

const (
	Copy    Mode = "copy"
	Reverse Mode = "reverse"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Copy, "":
		return Copy, nil
	case Reverse:
		return Reverse, nil
	}
	return "", fmt.Errorf("unknown trade mode %q", s)
}

// Translator maps a received trade onto the receiver's side of the
// market. Copy passes everything through. Reverse flips the direction and
// reflects absolute prices around the receiver's own entry.
type Translator struct {
	Mode Mode
}

func (t Translator) Direction(received market.Direction) market.Direction {
	if t.Mode == Reverse {
		return received.Opposite()
	}
	return received
}

// ReflectTarget maps a target price sent for a trade in direction
// received. The distance from the received side's entry is kept and laid
// off in the profitable direction of the reversed trade.
func (t Translator) ReflectTarget(price float64, received market.Direction, sym market.Symbol) float64 {
	if t.Mode != Reverse || price <= 0 {
		return price
	}
	actual := received.Opposite()
	dist := math.Abs(price - sym.EntryPrice(received))
	return sym.EntryPrice(actual) + actual.Sign()*dist
}

// ReflectStop maps a stop price the same way, laid off against the
// reversed trade.
func (t Translator) ReflectStop(price float64, received market.Direction, sym market.Symbol) float64 {
	if t.Mode != Reverse || price <= 0 {
		return price
	}
	actual := received.Opposite()
	dist := math.Abs(price - sym.EntryPrice(received))
	return sym.EntryPrice(actual) - actual.Sign()*dist
}

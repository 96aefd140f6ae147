package risk

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/signalbot/market"
)

var (
	ErrInvalidStop     = errors.New("stop distance must be positive")
	ErrNoRisk          = errors.New("risk amount must be positive")
	ErrLegCount        = errors.New("need 2 or 3 leg percentages")
	ErrInvalidPercents = errors.New("leg percentages must be positive")
	ErrInvalidSymbol   = errors.New("symbol has no pip value")
)

// Sizing is the result of splitting one signal's volume into legs.
type Sizing struct {
	Total   float64   // normalized and floored total volume
	Raw     []float64 // Total * percent, before any rounding
	Rounded []float64 // Raw normalized to the volume step, before floors
	Legs    []float64 // Rounded raised to the minimum volume
}

// Sum returns the volume actually submitted across all legs.
func (s Sizing) Sum() float64 {
	var sum float64
	for _, v := range s.Legs {
		sum += v
	}
	return sum
}

// Split converts a risk amount and stop distance into leg volumes.
//
// Two percentages are rescaled to sum to 100 before splitting. Floors are
// applied per leg after the split, so the legs may add up to more than
// Total when the minimum volume binds.
func Split(riskAmount, stopPips float64, sym market.Symbol, legPercents []float64) (Sizing, error) {
	if stopPips <= 0 {
		return Sizing{}, ErrInvalidStop
	}
	if riskAmount <= 0 {
		return Sizing{}, ErrNoRisk
	}
	if sym.PipValue <= 0 {
		return Sizing{}, fmt.Errorf("split %s: %w", sym.Name, ErrInvalidSymbol)
	}
	if len(legPercents) < 2 || len(legPercents) > 3 {
		return Sizing{}, fmt.Errorf("%w, got %d", ErrLegCount, len(legPercents))
	}

	pcts := make([]float64, len(legPercents))
	copy(pcts, legPercents)
	for _, p := range pcts {
		if p <= 0 {
			return Sizing{}, ErrInvalidPercents
		}
	}
	if len(pcts) == 2 {
		sum := pcts[0] + pcts[1]
		pcts[0] = pcts[0] / sum * 100
		pcts[1] = pcts[1] / sum * 100
	}

	total := sym.FloorVolume(sym.NormalizeVolume(riskAmount / (stopPips * sym.PipValue)))

	s := Sizing{
		Total:   total,
		Raw:     make([]float64, len(pcts)),
		Rounded: make([]float64, len(pcts)),
		Legs:    make([]float64, len(pcts)),
	}
	for i, p := range pcts {
		s.Raw[i] = total * p / 100
		s.Rounded[i] = sym.NormalizeVolume(s.Raw[i])
		s.Legs[i] = sym.FloorVolume(s.Rounded[i])
	}
	return s, nil
}

package sim

import (
	"math"

	"github.com/rustyeddy/signalbot/broker"
	"github.com/rustyeddy/signalbot/market"
)

// realized returns the account-currency result of moving volume from entry
// to exit in direction d.
func realized(d market.Direction, entry, exit, volume float64, s market.Symbol) float64 {
	if s.PipSize <= 0 {
		return 0
	}
	pips := d.Sign() * (exit - entry) / s.PipSize
	return pips * s.PipValue * volume
}

func unrealized(p *broker.Position, s market.Symbol) float64 {
	return realized(p.Direction, p.EntryPrice, s.ExitPrice(p.Direction), p.Volume, s)
}

func roundVolume(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}

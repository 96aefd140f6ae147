package market

import "math"

// Symbol is the live view of one tradable instrument: the quote plus the
// arithmetic needed to turn price distances into pips and risk into volume.
type Symbol struct {
	Name string
	Bid  float64
	Ask  float64

	PipSize  float64 // price units per pip
	PipValue float64 // account currency per pip for one unit of volume

	VolumeStep float64
	VolumeMin  float64
}

// EntryPrice is the price a new position in direction d fills at.
func (s Symbol) EntryPrice(d Direction) float64 {
	if d == Short {
		return s.Bid
	}
	return s.Ask
}

// ExitPrice is the price an open position in direction d is marked and
// closed at.
func (s Symbol) ExitPrice(d Direction) float64 {
	if d == Short {
		return s.Ask
	}
	return s.Bid
}

func (s Symbol) Mid() float64 {
	return (s.Bid + s.Ask) / 2
}

func (s Symbol) Spread() float64 {
	return s.Ask - s.Bid
}

// ToPips converts an absolute price distance to pips.
func (s Symbol) ToPips(dist float64) float64 {
	if s.PipSize <= 0 {
		return 0
	}
	return math.Abs(dist) / s.PipSize
}

// FromPips converts pips to a price distance.
func (s Symbol) FromPips(pips float64) float64 {
	return pips * s.PipSize
}

// NormalizeVolume rounds v to the nearest volume step.
func (s Symbol) NormalizeVolume(v float64) float64 {
	if s.VolumeStep <= 0 {
		return v
	}
	n := math.Round(v/s.VolumeStep) * s.VolumeStep
	return roundTo(n, 8)
}

// FloorVolume raises v to the minimum tradable volume when below it.
func (s Symbol) FloorVolume(v float64) float64 {
	if v < s.VolumeMin {
		return s.VolumeMin
	}
	return v
}

func roundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

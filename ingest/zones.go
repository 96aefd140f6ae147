package ingest

import "strings"

type StopPref string

const (
	StopTight StopPref = "tight"
	StopWide  StopPref = "wide"
)

type TargetPref string

const (
	TargetEarly TargetPref = "early"
	TargetFull  TargetPref = "full"
)

// ZonePrefs selects which named price of a zone is used.
type ZonePrefs struct {
	Stop   StopPref
	Target TargetPref
}

// Prices are the concrete levels picked from a signal. Zero means absent.
type Prices struct {
	Stop float64
	TP1  float64
	TP2  float64
	TP3  float64
}

func (p ZonePrefs) StopPrice(z *PriceZone) float64 {
	if z == nil {
		return 0
	}
	if !z.IsZone {
		return z.Mid
	}
	if StopPref(strings.ToLower(string(p.Stop))) == StopTight {
		return z.Tight
	}
	return z.Wide
}

func (p ZonePrefs) TargetPrice(z *PriceZone) float64 {
	if z == nil {
		return 0
	}
	if !z.IsZone {
		return z.Mid
	}
	if TargetPref(strings.ToLower(string(p.Target))) == TargetEarly {
		return z.Early
	}
	return z.Full
}

// Pick extracts the stop and target prices of s.
func (p ZonePrefs) Pick(s *TradeSignal) Prices {
	return Prices{
		Stop: p.StopPrice(s.StopLoss),
		TP1:  p.TargetPrice(s.TP1),
		TP2:  p.TargetPrice(s.TP2),
		TP3:  p.TargetPrice(s.TP3),
	}
}

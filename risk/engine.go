package risk

import "math"

type Mode string

const (
	ModeFixed   Mode = "fixed"
	ModeDynamic Mode = "dynamic"
)

type FixedKind string

const (
	FixedPercent FixedKind = "percent"
	FixedAmount  FixedKind = "amount"
)

// stepEpsilon absorbs float error when a balance sits exactly on a step
// boundary, so 6.0% growth with a 3% step counts as two steps.
const stepEpsilon = 1e-9

type Params struct {
	Mode Mode

	FixedKind    FixedKind
	FixedPercent float64
	FixedAmount  float64

	StartingBalance        float64
	BaseRiskPercent        float64
	MaxRiskPercent         float64
	GrowthStepPercent      float64
	GrowthIncrementPercent float64
	DrawdownStepPercent    float64
	ReductionPercent       float64
	Compounding            bool
}

// Engine turns a balance and a stop distance into the amount of account
// currency to risk on one signal.
type Engine struct {
	p Params
}

func NewEngine(p Params) *Engine {
	return &Engine{p: p}
}

func (e *Engine) Params() Params { return e.p }

// CurrentRiskPercent is the effective percentage of balance at risk per
// signal.
//
// Dynamic mode grows the base percentage linearly for every full growth
// step above the starting balance and shrinks it geometrically for every
// full drawdown step below it. The result is capped at MaxRiskPercent.
func (e *Engine) CurrentRiskPercent(balance float64) float64 {
	p := e.p
	if p.Mode != ModeDynamic {
		if p.FixedKind == FixedAmount {
			if balance <= 0 {
				return 0
			}
			return p.FixedAmount / balance * 100
		}
		return p.FixedPercent
	}

	risk := p.BaseRiskPercent
	if p.StartingBalance > 0 {
		diffPct := (balance - p.StartingBalance) / p.StartingBalance * 100
		switch {
		case diffPct > 0 && p.GrowthStepPercent > 0:
			steps := math.Floor(diffPct/p.GrowthStepPercent + stepEpsilon)
			risk = p.BaseRiskPercent * (1 + steps*p.GrowthIncrementPercent/100)
		case diffPct < 0 && p.DrawdownStepPercent > 0:
			steps := math.Floor(-diffPct/p.DrawdownStepPercent + stepEpsilon)
			risk = p.BaseRiskPercent * math.Pow(1-p.ReductionPercent/100, steps)
		}
	}
	if p.MaxRiskPercent > 0 && risk > p.MaxRiskPercent {
		risk = p.MaxRiskPercent
	}
	return risk
}

// RiskAmount is the currency amount to lose if every leg of a signal with
// the given stop distance is stopped out.
func (e *Engine) RiskAmount(balance, stopPips float64) float64 {
	if stopPips <= 0 {
		return 0
	}
	p := e.p
	if p.Mode != ModeDynamic {
		if p.FixedKind == FixedAmount {
			return p.FixedAmount
		}
		return balance * p.FixedPercent / 100
	}

	base := p.StartingBalance
	if p.Compounding || base <= 0 {
		base = balance
	}
	return base * e.CurrentRiskPercent(balance) / 100
}

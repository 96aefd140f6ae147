// Package trailing runs one group trailing stop over every open leg of a
// symbol. The group arms once any leg reaches the trigger multiple of its
// own R-distance; from then on every leg's stop follows price at a fixed
// multiple of its R-distance and only ever tightens.
package trailing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/signalbot/broker"
	"github.com/rustyeddy/signalbot/market"
	"github.com/rustyeddy/signalbot/order"
)

var ErrStopLoosened = errors.New("stop would loosen")

// armEpsilon keeps a price sitting exactly on the trigger from missing it
// through pip-size rounding.
const armEpsilon = 1e-9

type State int

const (
	Idle State = iota
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "Armed"
	}
	return "Idle"
}

type Params struct {
	Enabled   bool
	TriggerR  float64
	DistanceR float64
}

// Leg is a position tracked by the group. RPips is fixed at admission.
type Leg struct {
	PositionID  string
	Label       string
	Direction   market.Direction
	Entry       float64
	InitialStop float64
	RPips       float64
}

type StopChange struct {
	PositionID string
	Label      string
	Old        *float64
	New        float64
}

// Platform is the part of the broker the manager needs.
type Platform interface {
	GetSymbol(ctx context.Context, name string) (market.Symbol, error)
	Positions(ctx context.Context, symbol string) ([]broker.Position, error)
	ModifyPosition(ctx context.Context, id string, stop, target *float64) error
}

type Manager struct {
	symbol   string
	params   Params
	platform Platform
	logger   zerolog.Logger

	legs  map[string]*Leg
	state State
}

func NewManager(symbol string, params Params, platform Platform, logger zerolog.Logger) *Manager {
	return &Manager{
		symbol:   symbol,
		params:   params,
		platform: platform,
		logger:   logger.With().Str("component", "trailing").Str("symbol", symbol).Logger(),
		legs:     make(map[string]*Leg),
	}
}

func (m *Manager) State() State { return m.state }

// Legs returns the tracked legs ordered by position id.
func (m *Manager) Legs() []Leg {
	out := make([]Leg, 0, len(m.legs))
	for _, l := range m.legs {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionID < out[j].PositionID })
	return out
}

// Evaluate syncs the group with the broker's open positions, arms the
// group when a leg reaches the trigger and, while armed, tightens stops.
// It returns the stop changes applied.
func (m *Manager) Evaluate(ctx context.Context) ([]StopChange, error) {
	if !m.params.Enabled {
		return nil, nil
	}

	sym, err := m.platform.GetSymbol(ctx, m.symbol)
	if err != nil {
		return nil, fmt.Errorf("trailing: %w", err)
	}
	positions, err := m.platform.Positions(ctx, m.symbol)
	if err != nil {
		return nil, fmt.Errorf("trailing: %w", err)
	}

	live := m.sync(positions, sym)
	if len(m.legs) == 0 {
		if m.state == Armed {
			m.logger.Info().Msg("group empty, trailing reset")
		}
		m.state = Idle
		return nil, nil
	}

	if m.state == Idle && m.shouldArm(sym) {
		m.state = Armed
		m.logger.Info().Float64("trigger_r", m.params.TriggerR).Msg("trailing armed")
	}
	if m.state != Armed {
		return nil, nil
	}

	var changes []StopChange
	for _, p := range live {
		leg := m.legs[p.ID]
		price := sym.ExitPrice(leg.Direction)
		desired := price - leg.Direction.Sign()*leg.RPips*m.params.DistanceR*sym.PipSize
		if !Improves(leg.Direction, p.StopLoss, desired) {
			continue
		}
		if err := m.apply(ctx, leg, p, desired); err != nil {
			m.logger.Error().Err(err).Str("position", p.ID).Msg("trail stop failed")
			continue
		}
		changes = append(changes, StopChange{PositionID: p.ID, Label: p.Label, Old: p.StopLoss, New: desired})
	}
	return changes, nil
}

// sync admits new leg positions that carry a stop and drops legs that are
// gone or fully closed. It returns the live positions of tracked legs in
// id order.
func (m *Manager) sync(positions []broker.Position, sym market.Symbol) []broker.Position {
	present := make(map[string]struct{}, len(positions))
	var live []broker.Position
	for _, p := range positions {
		if p.Volume <= 0 || !order.IsLegLabel(p.Label) {
			continue
		}
		present[p.ID] = struct{}{}
		if _, ok := m.legs[p.ID]; !ok {
			if p.StopLoss == nil || sym.PipSize <= 0 {
				continue
			}
			r := math.Abs(p.EntryPrice-*p.StopLoss) / sym.PipSize
			if r <= 0 {
				continue
			}
			m.legs[p.ID] = &Leg{
				PositionID:  p.ID,
				Label:       p.Label,
				Direction:   p.Direction,
				Entry:       p.EntryPrice,
				InitialStop: *p.StopLoss,
				RPips:       r,
			}
			m.logger.Debug().Str("position", p.ID).Float64("r_pips", r).Msg("leg admitted")
		}
		live = append(live, p)
	}
	for id := range m.legs {
		if _, ok := present[id]; !ok {
			delete(m.legs, id)
			m.logger.Debug().Str("position", id).Msg("leg removed")
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID < live[j].ID })
	return live
}

func (m *Manager) shouldArm(sym market.Symbol) bool {
	for _, leg := range m.legs {
		price := sym.ExitPrice(leg.Direction)
		gained := leg.Direction.Sign() * (price - leg.Entry) / sym.PipSize
		if gained/leg.RPips >= m.params.TriggerR-armEpsilon {
			return true
		}
	}
	return false
}

// apply is the only place a stop is moved. It refuses any change that is
// not a tightening.
func (m *Manager) apply(ctx context.Context, leg *Leg, p broker.Position, stop float64) error {
	if !Improves(leg.Direction, p.StopLoss, stop) {
		return fmt.Errorf("%w: %s %v -> %v", ErrStopLoosened, p.ID, derefOr(p.StopLoss, 0), stop)
	}
	return m.platform.ModifyPosition(ctx, p.ID, broker.Price(stop), p.TakeProfit)
}

// Improves reports whether next is a tighter stop than cur for direction
// d. Any stop improves on none.
func Improves(d market.Direction, cur *float64, next float64) bool {
	if cur == nil {
		return true
	}
	if d == market.Short {
		return next < *cur
	}
	return next > *cur
}

func derefOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// Package peer relays trade lifecycle events between bot instances and
// translates received events for Copy or Reverse execution.
package peer

import (
	"encoding/json"
	"fmt"

	"github.com/rustyeddy/signalbot/market"
)

const (
	ActionBuy           = "Buy"
	ActionSell          = "Sell"
	ActionModifyTP      = "ModifyTP"
	ActionModifySL      = "ModifySL"
	ActionClosePosition = "ClosePosition"
	ActionCloseAll      = "Close All Positions"
)

type TPLevel struct {
	Label string  `json:"label"`
	Pips  float64 `json:"tp_pips"`
	Price float64 `json:"tp_price"`
}

// Message is the JSON body posted to a peer's /newtrade endpoint. Which
// fields are set depends on Action.
type Message struct {
	Action       string    `json:"action"`
	Symbol       string    `json:"symbol,omitempty"`
	SLPips       float64   `json:"sl_pips,omitempty"`
	SLPrice      float64   `json:"sl_price,omitempty"`
	CurrentPrice float64   `json:"current_price,omitempty"`
	TPLevels     []TPLevel `json:"tp_levels,omitempty"`

	PositionLabel string  `json:"position_label,omitempty"`
	TradeType     string  `json:"trade_type,omitempty"`
	TPPrice       float64 `json:"tp_price,omitempty"`
	TPPipDiff     float64 `json:"tp_pip_diff,omitempty"`
	SLPipDiff     float64 `json:"sl_pip_diff,omitempty"`
	EntryPrice    float64 `json:"entry_price,omitempty"`
}

// Decode parses a peer message. A body without an action is an error.
func Decode(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("decode peer message: %w", err)
	}
	if m.Action == "" {
		return Message{}, fmt.Errorf("decode peer message: missing action")
	}
	return m, nil
}

// Direction returns the trade direction of an open message, or of the
// trade_type of a modify or close message.
func (m Message) Direction() (market.Direction, error) {
	switch m.Action {
	case ActionBuy, ActionSell:
		return market.ParseDirection(m.Action)
	}
	return market.ParseDirection(m.TradeType)
}

// OpenMessage describes a newly opened signal group.
func OpenMessage(d market.Direction, symbol string, slPips, slPrice, current float64, levels []TPLevel) Message {
	return Message{
		Action:       d.String(),
		Symbol:       symbol,
		SLPips:       slPips,
		SLPrice:      slPrice,
		CurrentPrice: current,
		TPLevels:     levels,
	}
}

// ModifyTPMessage reports a new target on one leg. pipDiff is the signed
// distance of the target from current price.
func ModifyTPMessage(symbol, label string, d market.Direction, target, pipDiff, current, entry float64) Message {
	return Message{
		Action:        ActionModifyTP,
		Symbol:        symbol,
		PositionLabel: label,
		TradeType:     d.String(),
		TPPrice:       target,
		TPPipDiff:     pipDiff,
		CurrentPrice:  current,
		EntryPrice:    entry,
	}
}

// ModifySLMessage reports a new stop on one leg.
func ModifySLMessage(symbol, label string, d market.Direction, stop, pipDiff, current, entry float64) Message {
	return Message{
		Action:        ActionModifySL,
		Symbol:        symbol,
		PositionLabel: label,
		TradeType:     d.String(),
		SLPrice:       stop,
		SLPipDiff:     pipDiff,
		CurrentPrice:  current,
		EntryPrice:    entry,
	}
}

func CloseMessage(symbol, label string, d market.Direction) Message {
	return Message{
		Action:        ActionClosePosition,
		Symbol:        symbol,
		PositionLabel: label,
		TradeType:     d.String(),
	}
}

func CloseAllMessage(symbol string) Message {
	return Message{Action: ActionCloseAll, Symbol: symbol}
}

// Package ingest receives trade signals over HTTP, validates them and
// routes peer messages.
package ingest

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrUnparseable = errors.New("payload is neither a flat nor a wrapped trade signal")

// PriceZone is a price band from the alert source with named picks.
type PriceZone struct {
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mid          float64 `json:"mid"`
	IsZone       bool    `json:"is_zone"`
	Aggressive   float64 `json:"aggressive"`
	Conservative float64 `json:"conservative"`
	Tight        float64 `json:"tight"`
	Wide         float64 `json:"wide"`
	Early        float64 `json:"early"`
	Full         float64 `json:"full"`
}

// TradeSignal is one alert as delivered to the webhook.
type TradeSignal struct {
	AlertType  string     `json:"alert_type"`
	AlertID    string     `json:"alert_id"`
	TradeID    string     `json:"trade_id"`
	Instrument string     `json:"instrument" validate:"required"`
	Direction  string     `json:"direction" validate:"required,oneof=LONG SHORT long short Long Short"`
	Time       string     `json:"time"`
	EntryZone  *PriceZone `json:"entry_zone" validate:"required"`
	StopLoss   *PriceZone `json:"stop_loss" validate:"required"`
	TP1        *PriceZone `json:"tp1" validate:"required"`
	TP2        *PriceZone `json:"tp2"`
	TP3        *PriceZone `json:"tp3"`
	AIDecision string     `json:"ai_decision"`
	Confidence *int       `json:"confidence"`
}

var validate = validator.New()

// Parse decodes a webhook body. The flat shape is tried first; when it
// does not carry an instrument the body is tried as {"Data": {...}} with
// the wrapper key matched case-insensitively. The decoded signal must
// carry an instrument, a direction and the entry, stop and TP1 zones.
func Parse(body []byte) (*TradeSignal, error) {
	var flat TradeSignal
	if err := json.Unmarshal(body, &flat); err == nil && flat.Instrument != "" {
		return checked(&flat)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, ErrUnparseable
	}
	for k, raw := range wrapper {
		if !strings.EqualFold(k, "data") {
			continue
		}
		var inner TradeSignal
		if err := json.Unmarshal(raw, &inner); err != nil || inner.Instrument == "" {
			return nil, ErrUnparseable
		}
		return checked(&inner)
	}
	return nil, ErrUnparseable
}

func checked(s *TradeSignal) (*TradeSignal, error) {
	if err := validate.Struct(s); err != nil {
		return nil, errors.Join(ErrUnparseable, err)
	}
	return s, nil
}

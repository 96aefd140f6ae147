// market/instruments.go
package market

import (
	"fmt"
	"math"
	"strings"
)

type InstrumentMeta struct {
	Name          string
	BaseCurrency  string
	QuoteCurrency string
	PipLocation   int
	ContractSize  float64
	VolumeStep    float64
	VolumeMin     float64
}

// PipSize returns 10^PipLocation.
func (m InstrumentMeta) PipSize() float64 {
	return math.Pow(10, float64(m.PipLocation))
}

// Symbol builds a quoted Symbol for a USD account. USD-quoted instruments
// carry a fixed pip value; USD-based ones convert through the mid price.
func (m InstrumentMeta) Symbol(bid, ask float64) Symbol {
	pip := m.PipSize()
	pipValue := m.ContractSize * pip
	if m.QuoteCurrency != "USD" && m.BaseCurrency == "USD" {
		mid := (bid + ask) / 2
		if mid > 0 {
			pipValue = pipValue / mid
		}
	}
	return Symbol{
		Name:       m.Name,
		Bid:        bid,
		Ask:        ask,
		PipSize:    pip,
		PipValue:   pipValue,
		VolumeStep: m.VolumeStep,
		VolumeMin:  m.VolumeMin,
	}
}

var Instruments = map[string]InstrumentMeta{
	"EURUSD": {
		Name:          "EURUSD",
		BaseCurrency:  "EUR",
		QuoteCurrency: "USD",
		PipLocation:   -4,
		ContractSize:  100000,
		VolumeStep:    0.01,
		VolumeMin:     0.01,
	},
	"GBPUSD": {
		Name:          "GBPUSD",
		BaseCurrency:  "GBP",
		QuoteCurrency: "USD",
		PipLocation:   -4,
		ContractSize:  100000,
		VolumeStep:    0.01,
		VolumeMin:     0.01,
	},
	"USDJPY": {
		Name:          "USDJPY",
		BaseCurrency:  "USD",
		QuoteCurrency: "JPY",
		PipLocation:   -2,
		ContractSize:  100000,
		VolumeStep:    0.01,
		VolumeMin:     0.01,
	},
	"XAUUSD": {
		Name:          "XAUUSD",
		BaseCurrency:  "XAU",
		QuoteCurrency: "USD",
		PipLocation:   -1,
		ContractSize:  100,
		VolumeStep:    0.01,
		VolumeMin:     0.01,
	},
	"US30": {
		Name:          "US30",
		BaseCurrency:  "US30",
		QuoteCurrency: "USD",
		PipLocation:   0,
		ContractSize:  1,
		VolumeStep:    0.1,
		VolumeMin:     0.1,
	},
	"NAS100": {
		Name:          "NAS100",
		BaseCurrency:  "NAS100",
		QuoteCurrency: "USD",
		PipLocation:   0,
		ContractSize:  1,
		VolumeStep:    0.1,
		VolumeMin:     0.1,
	},
}

// LookupInstrument finds metadata by name, ignoring case and the separators
// used by different feeds ("EUR_USD", "EUR/USD", "eurusd").
func LookupInstrument(name string) (InstrumentMeta, error) {
	key := strings.ToUpper(name)
	key = strings.NewReplacer("_", "", "/", "").Replace(key)
	meta, ok := Instruments[key]
	if !ok {
		return InstrumentMeta{}, fmt.Errorf("unknown instrument: %s", name)
	}
	return meta, nil
}

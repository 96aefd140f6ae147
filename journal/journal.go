// Package journal is the append-only audit trail of the bot: closed legs,
// signal decisions and daily equity. It is never read back to restore
// state.
package journal

import (
	"fmt"
	"time"
)

// LegRecord is one closed leg.
type LegRecord struct {
	PositionID string
	Label      string
	Symbol     string
	Direction  string
	Volume     float64
	EntryPrice float64
	ClosePrice float64
	OpenTime   time.Time
	CloseTime  time.Time
	NetProfit  float64
	Reason     string
}

const (
	DecisionExecuted = "executed"
	DecisionRejected = "rejected"
	DecisionFailed   = "failed"
)

// SignalRecord is the outcome of one inbound signal.
type SignalRecord struct {
	ID         string
	Time       time.Time
	Source     string // webhook, peer or manual
	TradeID    string
	Instrument string
	Direction  string
	Decision   string
	Code       string
	Reason     string
	LegsOpened int
}

// EquitySnapshot is written at start-up and at every day rollover.
type EquitySnapshot struct {
	Time           time.Time
	Balance        float64
	Equity         float64
	PositiveGroups int
	NegativeGroups int
	KillSwitch     bool
}

type Journal interface {
	RecordLeg(LegRecord) error
	RecordSignal(SignalRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordLeg(LegRecord) error         { return nil }
func (Nop) RecordSignal(SignalRecord) error   { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }

// Paths locates the journal files; CSV uses the three file paths, SQLite
// uses DB.
type Paths struct {
	Legs    string
	Signals string
	Equity  string
	DB      string
}

// Open returns the journal of the given kind: "csv", "sqlite", or "none".
func Open(kind string, p Paths) (Journal, error) {
	switch kind {
	case "csv":
		return NewCSV(p.Legs, p.Signals, p.Equity)
	case "sqlite":
		return NewSQLite(p.DB)
	case "", "none":
		return Nop{}, nil
	}
	return nil, fmt.Errorf("unknown journal type %q", kind)
}

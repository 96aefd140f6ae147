package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// RecordLeg upserts by position id; a partially closed position keeps its
// last close.
func (j *SQLite) RecordLeg(l LegRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO legs
		(position_id, label, symbol, direction, volume, entry_price, close_price, open_time, close_time, net_profit, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.PositionID, l.Label, l.Symbol, l.Direction, l.Volume, l.EntryPrice,
		l.ClosePrice, l.OpenTime.UTC(), l.CloseTime.UTC(), l.NetProfit, l.Reason,
	)
	return err
}

func (j *SQLite) RecordSignal(s SignalRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO signals
		(id, time, source, trade_id, instrument, direction, decision, code, reason, legs_opened)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Time.UTC(), s.Source, s.TradeID, s.Instrument, s.Direction,
		s.Decision, s.Code, s.Reason, s.LegsOpened,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, balance, equity, positive_groups, negative_groups, kill_switch)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time.UTC(), e.Balance, e.Equity, e.PositiveGroups, e.NegativeGroups, e.KillSwitch,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

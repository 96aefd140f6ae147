package journal

import (
	"database/sql"
	"time"
)

const legColumns = `position_id, label, symbol, direction, volume, entry_price, close_price, open_time, close_time, net_profit, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanLeg(s scanner) (LegRecord, error) {
	var rec LegRecord
	err := s.Scan(
		&rec.PositionID,
		&rec.Label,
		&rec.Symbol,
		&rec.Direction,
		&rec.Volume,
		&rec.EntryPrice,
		&rec.ClosePrice,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.NetProfit,
		&rec.Reason,
	)
	return rec, err
}

func collectLegs(rows *sql.Rows) ([]LegRecord, error) {
	defer rows.Close()
	var out []LegRecord
	for rows.Next() {
		rec, err := scanLeg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListLegsClosedBetween returns legs whose close_time is within [start, end).
func (j *SQLite) ListLegsClosedBetween(start, end time.Time) ([]LegRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+legColumns+`
		FROM legs
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	return collectLegs(rows)
}

// RecentLegs returns up to n legs, newest close first.
func (j *SQLite) RecentLegs(n int) ([]LegRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+legColumns+`
		FROM legs
		ORDER BY close_time DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	return collectLegs(rows)
}

func (j *SQLite) ListSignalsBetween(start, end time.Time) ([]SignalRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, time, source, trade_id, instrument, direction, decision, code, reason, legs_opened
		FROM signals
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SignalRecord
	for rows.Next() {
		var rec SignalRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Time,
			&rec.Source,
			&rec.TradeID,
			&rec.Instrument,
			&rec.Direction,
			&rec.Decision,
			&rec.Code,
			&rec.Reason,
			&rec.LegsOpened,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LastEquity returns the latest snapshot at or before t.
func (j *SQLite) LastEquity(t time.Time) (EquitySnapshot, bool, error) {
	var e EquitySnapshot
	err := j.db.QueryRow(`
		SELECT time, balance, equity, positive_groups, negative_groups, kill_switch
		FROM equity
		WHERE time <= ?
		ORDER BY time DESC
		LIMIT 1`, t.UTC()).Scan(&e.Time, &e.Balance, &e.Equity, &e.PositiveGroups, &e.NegativeGroups, &e.KillSwitch)
	if err == sql.ErrNoRows {
		return EquitySnapshot{}, false, nil
	}
	if err != nil {
		return EquitySnapshot{}, false, err
	}
	return e, true, nil
}

package journal

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	j, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func leg(id string, closeT time.Time, profit float64) LegRecord {
	return LegRecord{
		PositionID: id,
		Label:      "abc_TP1",
		Symbol:     "EURUSD",
		Direction:  "Sell",
		Volume:     0.1,
		EntryPrice: 1.1,
		ClosePrice: 1.09,
		OpenTime:   closeT.Add(-time.Hour),
		CloseTime:  closeT,
		NetProfit:  profit,
		Reason:     "Closed",
	}
}

func TestSQLiteLegsClosedBetween(t *testing.T) {
	t.Parallel()
	j := newTestSQLite(t)

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordLeg(leg("A", day.Add(2*time.Hour), 10)))
	require.NoError(t, j.RecordLeg(leg("B", day.Add(26*time.Hour), -5)))
	require.NoError(t, j.RecordLeg(leg("C", day.Add(23*time.Hour), -2)))

	got, err := j.ListLegsClosedBetween(day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].PositionID)
	assert.Equal(t, "C", got[1].PositionID)
	assert.True(t, got[0].CloseTime.Equal(day.Add(2*time.Hour)))
	assert.InDelta(t, 10, got[0].NetProfit, 1e-9)
}

func TestSQLiteRecordLegUpserts(t *testing.T) {
	t.Parallel()
	j := newTestSQLite(t)

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordLeg(leg("A", at, 1)))
	require.NoError(t, j.RecordLeg(leg("A", at.Add(time.Minute), 3)))

	got, err := j.RecentLegs(10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 3, got[0].NetProfit, 1e-9)
}

func TestSQLiteRecentLegsNewestFirst(t *testing.T) {
	t.Parallel()
	j := newTestSQLite(t)

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"A", "B", "C"} {
		require.NoError(t, j.RecordLeg(leg(id, at.Add(time.Duration(i)*time.Minute), 1)))
	}

	got, err := j.RecentLegs(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "C", got[0].PositionID)
	assert.Equal(t, "B", got[1].PositionID)
}

func TestSQLiteSignalsAndEquity(t *testing.T) {
	t.Parallel()
	j := newTestSQLite(t)

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordSignal(SignalRecord{
		ID: "S1", Time: at, Source: "webhook", TradeID: "t-1", Instrument: "US30",
		Direction: "LONG", Decision: DecisionExecuted, LegsOpened: 3,
	}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: at, Balance: 100, Equity: 101, NegativeGroups: 1, KillSwitch: true}))

	sigs, err := j.ListSignalsBetween(at, at.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, 3, sigs[0].LegsOpened)
	assert.Equal(t, DecisionExecuted, sigs[0].Decision)

	e, ok, err := j.LastEquity(at.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, e.KillSwitch)
	assert.Equal(t, 1, e.NegativeGroups)

	_, ok, err = j.LastEquity(at.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDayReportOrg(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	legs := []LegRecord{leg("A", day, 10), leg("B", day, -4), leg("C", day, 0)}
	signals := []SignalRecord{
		{Decision: DecisionExecuted},
		{Decision: DecisionRejected, Code: "SYMBOL_FILTER"},
		{Decision: DecisionRejected, Code: "SYMBOL_FILTER"},
	}

	r := Summarize(day, "EURUSD", legs, signals)
	r.StartBalance = 1000
	r.EndBalance = 1006
	assert.Equal(t, 1, r.Wins)
	assert.Equal(t, 1, r.Losses)
	assert.InDelta(t, 6, r.NetPL, 1e-9)
	assert.InDelta(t, 0.5, r.WinRate(), 1e-9)
	assert.Equal(t, 2, r.Rejected["SYMBOL_FILTER"])

	var buf bytes.Buffer
	require.NoError(t, r.WriteOrg(&buf))
	out := buf.String()
	assert.Contains(t, out, "* DAY: EURUSD 2024-03-01")
	assert.Contains(t, out, ":NET_PL:      6.00")
	assert.Contains(t, out, ":WIN_RATE:    50.00")
	assert.Contains(t, out, "| SYMBOL_FILTER | 2 |")
}

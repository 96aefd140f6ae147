package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

var (
	legHeader    = []string{"position_id", "label", "symbol", "direction", "volume", "entry_price", "close_price", "open_time", "close_time", "net_profit", "reason"}
	signalHeader = []string{"id", "time", "source", "trade_id", "instrument", "direction", "decision", "code", "reason", "legs_opened"}
	equityHeader = []string{"time", "balance", "equity", "positive_groups", "negative_groups", "kill_switch"}
)

type csvFile struct {
	f *os.File
	w *csv.Writer
}

// openCSV appends to path, writing the header only when the file is new.
func openCSV(path string, header []string) (*csvFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &csvFile{f: f, w: w}, nil
}

func (c *csvFile) write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvFile) close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

type CSVJournal struct {
	legs, signals, equity *csvFile
}

func NewCSV(legsPath, signalPath, equityPath string) (*CSVJournal, error) {
	legs, err := openCSV(legsPath, legHeader)
	if err != nil {
		return nil, err
	}
	signals, err := openCSV(signalPath, signalHeader)
	if err != nil {
		legs.close()
		return nil, err
	}
	equity, err := openCSV(equityPath, equityHeader)
	if err != nil {
		legs.close()
		signals.close()
		return nil, err
	}
	return &CSVJournal{legs: legs, signals: signals, equity: equity}, nil
}

func (j *CSVJournal) RecordLeg(l LegRecord) error {
	return j.legs.write([]string{
		l.PositionID,
		l.Label,
		l.Symbol,
		l.Direction,
		f(l.Volume),
		f(l.EntryPrice),
		f(l.ClosePrice),
		l.OpenTime.Format(time.RFC3339),
		l.CloseTime.Format(time.RFC3339),
		f(l.NetProfit),
		l.Reason,
	})
}

func (j *CSVJournal) RecordSignal(s SignalRecord) error {
	return j.signals.write([]string{
		s.ID,
		s.Time.Format(time.RFC3339),
		s.Source,
		s.TradeID,
		s.Instrument,
		s.Direction,
		s.Decision,
		s.Code,
		s.Reason,
		strconv.Itoa(s.LegsOpened),
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return j.equity.write([]string{
		e.Time.Format(time.RFC3339),
		f(e.Balance),
		f(e.Equity),
		strconv.Itoa(e.PositiveGroups),
		strconv.Itoa(e.NegativeGroups),
		strconv.FormatBool(e.KillSwitch),
	})
}

func (j *CSVJournal) Close() error {
	var first error
	for _, c := range []*csvFile{j.legs, j.signals, j.equity} {
		if err := c.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

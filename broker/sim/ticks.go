package sim

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Tick is one recorded quote.
type Tick struct {
	Time       time.Time
	Instrument string
	Bid        float64
	Ask        float64
}

// CSVTicks reads quotes recorded as time,instrument,bid,ask rows. Extra
// columns are ignored and a single header row is allowed.
type CSVTicks struct {
	r        *csv.Reader
	sawFirst bool
}

func NewCSVTicks(r io.Reader) *CSVTicks {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return &CSVTicks{r: cr}
}

// Next returns the next usable tick. ok is false at end of input.
func (f *CSVTicks) Next() (Tick, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return Tick{}, false, nil
		}
		if err != nil {
			return Tick{}, false, err
		}
		if len(row) == 0 {
			continue
		}

		if !f.sawFirst {
			f.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		t, ok, err := parseTickRow(row)
		if err != nil {
			return Tick{}, false, err
		}
		if ok {
			return t, true, nil
		}
	}
}

func parseTickRow(row []string) (Tick, bool, error) {
	if len(row) < 4 {
		return Tick{}, false, nil
	}
	ts := strings.TrimSpace(row[0])
	inst := strings.TrimSpace(row[1])
	if ts == "" || inst == "" {
		return Tick{}, false, nil
	}

	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Tick{}, false, fmt.Errorf("bad time %q: %w", ts, err)
	}
	bid, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return Tick{}, false, fmt.Errorf("bad bid %q: %w", row[2], err)
	}
	ask, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
	if err != nil {
		return Tick{}, false, fmt.Errorf("bad ask %q: %w", row[3], err)
	}
	if bid <= 0 || ask < bid {
		return Tick{}, false, fmt.Errorf("bad quote %g/%g at %s", bid, ask, ts)
	}
	return Tick{Time: t, Instrument: inst, Bid: bid, Ask: ask}, true, nil
}

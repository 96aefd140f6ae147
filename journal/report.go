package journal

import (
	"io"
	"text/template"
	"time"
)

// DayReport summarises one trading day from the journal.
type DayReport struct {
	Day    time.Time
	Symbol string

	Legs   []LegRecord
	Wins   int
	Losses int
	NetPL  float64

	Executed int
	Rejected map[string]int // by code

	StartBalance float64
	EndBalance   float64
}

// Summarize builds the report of the given legs and signals.
func Summarize(day time.Time, symbol string, legs []LegRecord, signals []SignalRecord) DayReport {
	r := DayReport{Day: day, Symbol: symbol, Legs: legs, Rejected: map[string]int{}}
	for _, l := range legs {
		r.NetPL += l.NetProfit
		switch {
		case l.NetProfit > 0:
			r.Wins++
		case l.NetProfit < 0:
			r.Losses++
		}
	}
	for _, s := range signals {
		switch s.Decision {
		case DecisionExecuted:
			r.Executed++
		case DecisionRejected:
			r.Rejected[s.Code]++
		}
	}
	return r
}

func (r DayReport) WinRate() float64 {
	n := r.Wins + r.Losses
	if n == 0 {
		return 0
	}
	return float64(r.Wins) / float64(n)
}

var reportFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
}

var reportTmpl = template.Must(template.New("day").Funcs(reportFuncs).Parse(DayOrgTemplate))

// WriteOrg renders r as an Org-mode entry.
func (r DayReport) WriteOrg(w io.Writer) error {
	return reportTmpl.Execute(w, r)
}

const DayOrgTemplate = `* DAY: {{.Symbol}} {{.Day.Format "2006-01-02"}}
:PROPERTIES:
:SYMBOL:      {{.Symbol}}
:START_BAL:   {{printf "%.2f" .StartBalance}}
:END_BAL:     {{printf "%.2f" .EndBalance}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:LEGS:        {{len .Legs}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .WinRate)}}
:EXECUTED:    {{.Executed}}
:END:

** Closed Legs
| Label | Dir | Volume | Entry | Close | Net P/L | Reason |
|-------+-----+--------+-------+-------+---------+--------|
{{- range .Legs }}
| {{.Label}} | {{.Direction}} | {{printf "%.2f" .Volume}} | {{printf "%.5f" .EntryPrice}} | {{printf "%.5f" .ClosePrice}} | {{printf "%.2f" .NetProfit}} | {{.Reason}} |
{{- end }}
{{- if .Rejected }}

** Rejections
| Code | Count |
|------+-------|
{{- range $code, $n := .Rejected }}
| {{$code}} | {{$n}} |
{{- end }}
{{- end }}
`

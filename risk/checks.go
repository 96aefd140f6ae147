package risk

import "fmt"

// Violation is a reason an entry was refused or trading was halted.
type Violation struct {
	Code string
	Msg  string
}

func (v Violation) Error() string {
	return v.Code + ": " + v.Msg
}

func (v Violation) String() string {
	return v.Msg
}

func violation(code, format string, args ...any) *Violation {
	return &Violation{Code: code, Msg: fmt.Sprintf(format, args...)}
}

const (
	CodeKillSwitch         = "KILL_SWITCH"
	CodeMaxDrawdown        = "MAX_DRAWDOWN"
	CodeDailyLoss          = "DAILY_LOSS"
	CodeMaxPositiveTrades  = "MAX_POSITIVE_TRADES"
	CodeMaxNegativeTrades  = "MAX_NEGATIVE_TRADES"
	CodeAccountUnavailable = "ACCOUNT_UNAVAILABLE"
)

// Thresholds reports which hard limit, if any, equity has crossed.
func (l Limits) Thresholds(equity, startBalance, dailyStart float64) *Violation {
	if l.MaxDrawdownPercent > 0 && startBalance > 0 {
		floor := startBalance * (1 - l.MaxDrawdownPercent/100)
		if equity <= floor {
			return violation(CodeMaxDrawdown,
				"equity %.2f <= max drawdown floor %.2f (%.2f%% of %.2f)",
				equity, floor, l.MaxDrawdownPercent, startBalance)
		}
	}
	if l.MaxDailyLossPercent > 0 && dailyStart > 0 {
		lossPct := (dailyStart - equity) / dailyStart * 100
		if lossPct >= l.MaxDailyLossPercent {
			return violation(CodeDailyLoss,
				"daily loss %.2f%% >= max %.2f%%", lossPct, l.MaxDailyLossPercent)
		}
	}
	return nil
}

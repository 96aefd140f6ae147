package sim

import "github.com/rustyeddy/signalbot/broker"

func hitStopLoss(p *broker.Position, price float64) bool {
	if p.StopLoss == nil {
		return false
	}
	if p.Direction.Sign() > 0 {
		return price <= *p.StopLoss
	}
	return price >= *p.StopLoss
}

func hitTakeProfit(p *broker.Position, price float64) bool {
	if p.TakeProfit == nil {
		return false
	}
	if p.Direction.Sign() > 0 {
		return price >= *p.TakeProfit
	}
	return price <= *p.TakeProfit
}

package ingest

import "github.com/rustyeddy/signalbot/peer"

type RouteAction int

const (
	RouteUnknown RouteAction = iota
	RouteOpen
	RouteModifyTP
	RouteModifySL
	RouteClose
	RouteCloseAll
)

func (r RouteAction) String() string {
	switch r {
	case RouteOpen:
		return "open"
	case RouteModifyTP:
		return "modify_tp"
	case RouteModifySL:
		return "modify_sl"
	case RouteClose:
		return "close"
	case RouteCloseAll:
		return "close_all"
	}
	return "unknown"
}

// Route maps a peer message to the action the receiver takes.
func Route(m peer.Message) RouteAction {
	switch m.Action {
	case peer.ActionBuy, peer.ActionSell:
		return RouteOpen
	case peer.ActionModifyTP:
		return RouteModifyTP
	case peer.ActionModifySL:
		return RouteModifySL
	case peer.ActionClosePosition:
		return RouteClose
	case peer.ActionCloseAll, "CloseAllPositions":
		return RouteCloseAll
	}
	return RouteUnknown
}

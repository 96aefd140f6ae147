package ingest

import (
	"context"
	"strings"

	"github.com/rustyeddy/signalbot/risk"
)

const (
	CodeManualOnly         = "MANUAL_ONLY"
	CodeWebhookDisabled    = "WEBHOOK_DISABLED"
	CodeMissingTradeID     = "MISSING_TRADE_ID"
	CodeDuplicateTradeID   = "DUPLICATE_TRADE_ID"
	CodeBrokerMismatch     = "BROKER_MISMATCH"
	CodeSymbolFilter       = "SYMBOL_FILTER"
	CodeAlertNotExecutable = "ALERT_NOT_EXECUTABLE"
)

// DefaultExecutableAlert is the only alert type that opens positions.
const DefaultExecutableAlert = "ai_recommends_entry"

// AcceptAny disables the symbol filter.
const AcceptAny = "any"

type Rules struct {
	ManualOnly      bool
	WebhookEnabled  bool
	CheckBroker     bool
	ExpectedBroker  string
	SymbolFilter    string
	ExecutableAlert string
}

// Gate is consulted last, after every signal-level check has passed.
type Gate interface {
	CanTrade(ctx context.Context) *risk.Violation
}

// Validator applies the webhook acceptance rules in a fixed order and
// remembers which trade ids have been executed. It is not safe for
// concurrent use.
type Validator struct {
	rules     Rules
	gate      Gate
	processed map[string]struct{}
}

func NewValidator(rules Rules, gate Gate) *Validator {
	if rules.ExecutableAlert == "" {
		rules.ExecutableAlert = DefaultExecutableAlert
	}
	return &Validator{
		rules:     rules,
		gate:      gate,
		processed: make(map[string]struct{}),
	}
}

func (v *Validator) Rules() Rules { return v.rules }

// Validate returns nil when s may be executed, otherwise the first rule it
// breaks.
func (v *Validator) Validate(ctx context.Context, s *TradeSignal) *risk.Violation {
	r := v.rules
	if r.ManualOnly {
		return reject(CodeManualOnly, "bot is in manual only mode - webhooks are disabled")
	}
	if !r.WebhookEnabled {
		return reject(CodeWebhookDisabled, "webhook server is disabled")
	}

	if s.TradeID == "" {
		return reject(CodeMissingTradeID, "missing trade_id")
	}
	if _, dup := v.processed[s.TradeID]; dup {
		return reject(CodeDuplicateTradeID, "duplicate trade_id detected: "+s.TradeID)
	}

	if r.CheckBroker {
		if b := BrokerName(s.Instrument); b != "" && !strings.EqualFold(b, r.ExpectedBroker) {
			return reject(CodeBrokerMismatch,
				"broker mismatch: expected '"+r.ExpectedBroker+"', got '"+b+"'")
		}
	}

	if !MatchesFilter(s.Instrument, r.SymbolFilter) {
		return reject(CodeSymbolFilter,
			"symbol filter mismatch: '"+s.Instrument+"' does not match filter '"+r.SymbolFilter+"'")
	}

	if !strings.EqualFold(s.AlertType, r.ExecutableAlert) {
		return reject(CodeAlertNotExecutable,
			"alert type '"+s.AlertType+"' is not executable, only '"+r.ExecutableAlert+"' triggers trades")
	}

	if v.gate != nil {
		if gv := v.gate.CanTrade(ctx); gv != nil {
			return gv
		}
	}
	return nil
}

// MarkProcessed records that orders were attempted for id.
func (v *Validator) MarkProcessed(id string) {
	if id != "" {
		v.processed[id] = struct{}{}
	}
}

func (v *Validator) Processed(id string) bool {
	_, ok := v.processed[id]
	return ok
}

func (v *Validator) ProcessedCount() int { return len(v.processed) }

// Reset forgets every processed id. Called at day rollover.
func (v *Validator) Reset() {
	v.processed = make(map[string]struct{})
}

func reject(code, msg string) *risk.Violation {
	return &risk.Violation{Code: code, Msg: msg}
}

// BrokerName is the token after the first "-" of an instrument such as
// "US30-Pepperstone", or "" when there is none.
func BrokerName(instrument string) string {
	parts := strings.Split(instrument, "-")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// BaseSymbol strips the broker suffix and a ".cash" qualifier:
// "US30.cash-FTMO" becomes "US30".
func BaseSymbol(instrument string) string {
	base, _, _ := strings.Cut(instrument, "-")
	if name, qual, ok := strings.Cut(base, "."); ok && strings.EqualFold(qual, "cash") {
		return name
	}
	return base
}

// MatchesFilter compares base symbols case-insensitively. An empty filter
// or "any" matches everything.
func MatchesFilter(instrument, filter string) bool {
	if filter == "" || strings.EqualFold(filter, AcceptAny) {
		return true
	}
	return strings.EqualFold(BaseSymbol(instrument), BaseSymbol(filter))
}

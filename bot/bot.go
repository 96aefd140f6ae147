// Package bot wires the signal pipeline together and owns the single
// goroutine on which every piece of trading state is touched.
//
// Listeners never call into the pipeline directly. They hand request
// bodies to Submit, which queues a closure for the tick goroutine. Broker
// close notifications are buffered and drained on the same goroutine.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/signalbot/broker"
	"github.com/rustyeddy/signalbot/clock"
	"github.com/rustyeddy/signalbot/id"
	"github.com/rustyeddy/signalbot/ingest"
	"github.com/rustyeddy/signalbot/journal"
	"github.com/rustyeddy/signalbot/metrics"
	"github.com/rustyeddy/signalbot/order"
	"github.com/rustyeddy/signalbot/peer"
	"github.com/rustyeddy/signalbot/risk"
	"github.com/rustyeddy/signalbot/trailing"
)

const DefaultQueueSize = 64

// Outcome decisions beyond the journal's executed/rejected/failed.
const (
	DecisionDropped = "dropped"
	DecisionIgnored = "ignored"
)

// Failure codes for signals that passed validation but could not be
// turned into orders.
const (
	CodeInvalidPrices = "INVALID_PRICES"
	CodeMissingStop   = "MISSING_STOP"
	CodeSizing        = "SIZING_FAILED"
	CodePlatform      = "PLATFORM_ERROR"
	CodeNoLegs        = "NO_LEGS_OPENED"
)

// Outcome reports what happened to one inbound signal or peer message.
type Outcome struct {
	Decision string
	Code     string
	Reason   string
	Opened   int
}

// ReceiverOptions controls how peer opens and modifications are applied.
type ReceiverOptions struct {
	Translator       peer.Translator
	SLInput          string // pips or price, each falling back to the other
	TPInput          string // price or pips
	TPMod            string // price or pip_diff
	SLMod            string // price or pip_diff
	SLOffsetPips     float64
	InstrumentSource string // chart or broadcast
}

type Options struct {
	Symbol          string
	LegPercents     []float64
	RMultiples      []float64
	DefaultStopPips float64
	Zones           ingest.ZonePrefs
	Receiver        ReceiverOptions
	// MapSymbol turns a webhook instrument into a platform symbol. Nil
	// maps everything to Symbol.
	MapSymbol func(instrument string) string
	QueueSize int
	Now       func() time.Time
}

// Deps are the collaborators of a Bot. Peers, Journal and Metrics may be
// nil.
type Deps struct {
	Broker    broker.Broker
	Risk      *risk.Engine
	Gate      *risk.Gate
	Validator *ingest.Validator
	Executor  *order.Executor
	Trailing  *trailing.Manager
	Clock     *clock.DayRollover
	Peers     *peer.Client
	Journal   journal.Journal
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

type Bot struct {
	opts Options

	broker    broker.Broker
	risk      *risk.Engine
	gate      *risk.Gate
	validator *ingest.Validator
	executor  *order.Executor
	distance  *order.Executor
	trailing  *trailing.Manager
	clock     *clock.DayRollover
	peers     *peer.Client
	journal   journal.Journal
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	queue chan func(context.Context)
	ticks chan struct{}

	mu      sync.Mutex
	pending []broker.ClosedPosition

	started bool
	tpSeen  map[string]*float64
	slSeen  map[string]*float64
	quiet   map[string]struct{} // closes that must not be relayed
}

func New(opts Options, deps Deps) *Bot {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MapSymbol == nil {
		opts.MapSymbol = func(string) string { return opts.Symbol }
	}
	if deps.Journal == nil {
		deps.Journal = journal.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	logger := deps.Logger.With().Str("component", "bot").Str("symbol", opts.Symbol).Logger()

	b := &Bot{
		opts:      opts,
		broker:    deps.Broker,
		risk:      deps.Risk,
		gate:      deps.Gate,
		validator: deps.Validator,
		executor:  deps.Executor,
		distance:  order.NewExecutor(deps.Broker, order.ModeDistance, deps.Logger),
		trailing:  deps.Trailing,
		clock:     deps.Clock,
		peers:     deps.Peers,
		journal:   deps.Journal,
		metrics:   deps.Metrics,
		logger:    logger,
		queue:     make(chan func(context.Context), opts.QueueSize),
		ticks:     make(chan struct{}, 1),
		tpSeen:    make(map[string]*float64),
		slSeen:    make(map[string]*float64),
		quiet:     make(map[string]struct{}),
	}
	b.gate.SetHaltHandler(b.onHalt)
	return b
}

func (b *Bot) Metrics() *metrics.Metrics { return b.metrics }

// Start records the daily baseline, scans for leg positions left open by
// an earlier run and subscribes to close notifications. Run calls it; tests
// that drive the bot synchronously call it directly.
func (b *Bot) Start(ctx context.Context) error {
	if b.started {
		return nil
	}
	acct, err := b.broker.GetAccount(ctx)
	if err != nil {
		return err
	}
	day := b.clock.Start(b.opts.Now())
	b.gate.Start(acct.Balance, day)

	positions, err := b.broker.Positions(ctx, b.opts.Symbol)
	if err != nil {
		return err
	}
	legs := 0
	for _, p := range positions {
		b.tpSeen[p.ID] = copyPrice(p.TakeProfit)
		b.slSeen[p.ID] = copyPrice(p.StopLoss)
		if order.IsLegLabel(p.Label) && p.Volume > 0 {
			legs++
		}
	}
	if legs > 0 {
		b.gate.OpenGroup()
		b.logger.Info().Int("legs", legs).Msg("found open legs at start-up")
	}

	b.broker.OnPositionClosed(b.notifyClosed)
	b.recordEquity(ctx)
	b.started = true

	b.logger.Info().
		Float64("balance", acct.Balance).
		Time("day", day).
		Float64("risk_percent", b.risk.CurrentRiskPercent(acct.Balance)).
		Msg("bot started")
	return nil
}

// Run is the tick goroutine. It returns when ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Start(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("bot stopped")
			return nil
		case fn := <-b.queue:
			fn(ctx)
			b.drainClosed(ctx)
		case <-b.ticks:
			b.OnTick(ctx)
		}
	}
}

// Submit hands fn to the tick goroutine. It never blocks; when the queue
// is full the work is dropped and false returned.
func (b *Bot) Submit(fn func(context.Context)) bool {
	select {
	case b.queue <- fn:
		return true
	default:
		b.logger.Warn().Int("capacity", cap(b.queue)).Msg("hand-off queue full, request dropped")
		return false
	}
}

// Tick asks the tick goroutine to evaluate. Ticks arriving while one is
// pending are coalesced.
func (b *Bot) Tick() {
	select {
	case b.ticks <- struct{}{}:
	default:
	}
}

// WebhookHandler adapts the bot to ingest.Listener.HandleWebhook.
func (b *Bot) WebhookHandler() func([]byte) {
	return func(body []byte) {
		b.metrics.SignalsReceived.WithLabelValues("webhook").Inc()
		b.Submit(func(ctx context.Context) { b.HandleWebhook(ctx, body) })
	}
}

// PeerHandler adapts the bot to ingest.Listener.HandlePeer.
func (b *Bot) PeerHandler() func([]byte) {
	return func(body []byte) {
		b.metrics.SignalsReceived.WithLabelValues("peer").Inc()
		b.Submit(func(ctx context.Context) { b.HandlePeer(ctx, body) })
	}
}

// OnTick runs one evaluation: day rollover, hard stops, trailing and the
// modification watcher.
func (b *Bot) OnTick(ctx context.Context) {
	if day, ok := b.clock.Check(b.opts.Now()); ok {
		b.rollover(ctx, day)
	}
	b.drainClosed(ctx)

	if v := b.gate.EvaluateHardStops(ctx); v != nil {
		b.logger.Warn().Str("code", v.Code).Str("reason", v.Msg).Msg("hard stop")
	}
	b.drainClosed(ctx)

	changes, err := b.trailing.Evaluate(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("trailing evaluation failed")
	}
	for _, c := range changes {
		b.logger.Info().
			Str("position", c.PositionID).
			Str("label", c.Label).
			Float64("stop", c.New).
			Msg("stop trailed")
	}
	b.metrics.StopsTrailed.Add(float64(len(changes)))

	b.watchModifications(ctx)
	b.drainClosed(ctx)
	b.updateGauges(ctx)
}

func (b *Bot) updateGauges(ctx context.Context) {
	if acct, err := b.broker.GetAccount(ctx); err == nil {
		b.metrics.Equity.Set(acct.Equity)
		b.metrics.CurrentRiskPct.Set(b.risk.CurrentRiskPercent(acct.Balance))
	}
	st := b.gate.Snapshot()
	metrics.SetBool(b.metrics.KillSwitch, st.KillSwitch)
	metrics.SetBool(b.metrics.TrailingArmed, b.trailing.State() == trailing.Armed)
	b.metrics.ProcessedTradeID.Set(float64(b.validator.ProcessedCount()))
}

func (b *Bot) broadcast(ctx context.Context, msg peer.Message) {
	if b.peers == nil {
		return
	}
	b.peers.Broadcast(ctx, msg)
}

func (b *Bot) recordSignal(rec journal.SignalRecord) {
	if rec.ID == "" {
		rec.ID = id.New()
	}
	if rec.Time.IsZero() {
		rec.Time = b.opts.Now()
	}
	if err := b.journal.RecordSignal(rec); err != nil {
		b.logger.Warn().Err(err).Msg("journal signal")
	}
}

func (b *Bot) recordEquity(ctx context.Context) {
	acct, err := b.broker.GetAccount(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("equity snapshot skipped")
		return
	}
	st := b.gate.Snapshot()
	err = b.journal.RecordEquity(journal.EquitySnapshot{
		Time:           b.opts.Now(),
		Balance:        acct.Balance,
		Equity:         acct.Equity,
		PositiveGroups: st.PositiveGroups,
		NegativeGroups: st.NegativeGroups,
		KillSwitch:     st.KillSwitch,
	})
	if err != nil {
		b.logger.Warn().Err(err).Msg("journal equity")
	}
}

// legPercents returns the first n configured percentages.
func (b *Bot) legPercents(n int) []float64 {
	if n > len(b.opts.LegPercents) {
		n = len(b.opts.LegPercents)
	}
	return b.opts.LegPercents[:n]
}

func copyPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func samePrice(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

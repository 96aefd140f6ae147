package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/signalbot/bot"
	"github.com/rustyeddy/signalbot/broker"
	"github.com/rustyeddy/signalbot/broker/oanda"
	"github.com/rustyeddy/signalbot/broker/sim"
	"github.com/rustyeddy/signalbot/config"
	"github.com/rustyeddy/signalbot/ingest"
	"github.com/rustyeddy/signalbot/journal"
	"github.com/rustyeddy/signalbot/market"
	"github.com/rustyeddy/signalbot/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot against the paper broker",
	Long: `Run the bot with its webhook and receiver listeners against an in-memory
paper broker.

The simulation section of the config seeds the account and the opening
quote. Price steps, when present, are replayed in order; afterwards the
bot keeps ticking until interrupted. With feed.source set to "oanda" the
paper broker follows live practice prices instead (OANDA_TOKEN must be
set); with "csv" it replays recorded time,instrument,bid,ask ticks.

Example:
  signalbot run -f signalbot.yaml`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	var manual *market.Direction
	if demo := cfg.Simulation.Manual; demo != nil {
		dir, err := market.ParseDirection(demo.Direction)
		if err != nil {
			return fmt.Errorf("manual demo: %w", err)
		}
		manual = &dir
	}

	var stream *oanda.Client
	if cfg.Simulation.Feed.Source == "oanda" {
		stream, err = oanda.NewClient(cfg.Simulation.Feed.Env, "")
		if err != nil {
			return fmt.Errorf("price feed: %w", err)
		}
	}

	j, err := journal.Open(cfg.Journal.Type, journal.Paths{
		Legs:    cfg.Journal.LegsFile,
		Signals: cfg.Journal.SignalFile,
		Equity:  cfg.Journal.EquityFile,
		DB:      cfg.Journal.DBPath,
	})
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	engine := sim.NewEngine(broker.Account{
		ID:       cfg.Simulation.AccountID,
		Currency: cfg.Simulation.Currency,
		Balance:  cfg.Simulation.Balance,
		Equity:   cfg.Simulation.Balance,
	})
	meta, err := market.LookupInstrument(cfg.Bot.Symbol)
	if err != nil {
		return err
	}
	engine.SetSymbol(meta.Symbol(cfg.Simulation.InitialBid, cfg.Simulation.InitialAsk))

	m := metrics.New()
	b, err := bot.FromConfig(cfg, engine, j, m, logger)
	if err != nil {
		return fmt.Errorf("build bot: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return b.Run(ctx) })

	if cfg.Webhook.Enabled {
		l := ingest.NewListener(ingest.ListenerConfig{
			Addr:            cfg.Webhook.Addr,
			WebhookPath:     cfg.Webhook.Path,
			MaxBindAttempts: cfg.Listener.MaxBindAttempts,
			RetryInterval:   cfg.Listener.RetryInterval,
			Metrics:         m.Handler(),
		}, logger.With().Str("listener", "webhook").Logger())
		l.OnStatus = m.ListenerStatus("webhook")
		l.HandleWebhook(b.WebhookHandler())
		g.Go(func() error { return l.Run(ctx) })
	}

	if cfg.Receiver.Enabled {
		l := ingest.NewListener(ingest.ListenerConfig{
			Addr:            cfg.Receiver.Addr,
			PeerPath:        cfg.Receiver.Path,
			MaxBindAttempts: cfg.Listener.MaxBindAttempts,
			RetryInterval:   cfg.Listener.RetryInterval,
			Metrics:         m.Handler(),
		}, logger.With().Str("listener", "receiver").Logger())
		l.OnStatus = m.ListenerStatus("receiver")
		l.HandlePeer(b.PeerHandler())
		g.Go(func() error { return l.Run(ctx) })
	}

	if manual != nil {
		dir := *manual
		b.Submit(func(ctx context.Context) { b.OpenManual(ctx, dir, 0) })
	}

	g.Go(func() error { return feed(ctx, cfg, engine, b, logger) })
	switch {
	case stream != nil:
		g.Go(func() error { return streamPrices(ctx, stream, cfg, engine, b, logger) })
	case cfg.Simulation.Feed.Source == "csv":
		g.Go(func() error { return replayTicks(ctx, cfg, engine, b, logger) })
	}

	err = g.Wait()

	acct, _ := engine.GetAccount(context.Background())
	logger.Info().
		Float64("balance", acct.Balance).
		Float64("equity", acct.Equity).
		Float64("pl", acct.Equity-cfg.Simulation.Balance).
		Msg("stopped")
	return err
}

// feed replays the configured price steps into the paper broker, then
// keeps the bot ticking so day rollover and hard stops are evaluated.
func feed(ctx context.Context, cfg *config.Config, engine *sim.Engine, b *bot.Bot, logger zerolog.Logger) error {
	for i, step := range cfg.Simulation.PriceSteps {
		delay, err := step.ParseDuration()
		if err != nil {
			return fmt.Errorf("invalid delay in step %d: %w", i, err)
		}
		if !sleep(ctx, delay) {
			return nil
		}
		if err := engine.UpdatePrice(cfg.Bot.Symbol, step.Bid, step.Ask); err != nil {
			return fmt.Errorf("update price: %w", err)
		}
		logger.Debug().Int("step", i).Float64("bid", step.Bid).Float64("ask", step.Ask).Msg("price step")
		b.Tick()
	}

	every := cfg.Simulation.TickEvery
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.Tick()
		}
	}
}

// streamPrices moves the paper broker with live practice quotes and ticks
// the bot on each one.
func streamPrices(ctx context.Context, c *oanda.Client, cfg *config.Config, engine *sim.Engine, b *bot.Bot, logger zerolog.Logger) error {
	logger = logger.With().Str("component", "feed").Str("instrument", cfg.Simulation.Feed.Instrument).Logger()
	logger.Info().Msg("streaming practice prices")

	n, err := c.StreamPrices(ctx, oanda.PricingStreamOptions{
		AccountID:   cfg.Simulation.Feed.AccountID,
		Instruments: []string{cfg.Simulation.Feed.Instrument},
	}, func(q oanda.Quote) error {
		if err := engine.UpdatePrice(cfg.Bot.Symbol, q.Bid, q.Ask); err != nil {
			return err
		}
		b.Tick()
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	logger.Info().Int("quotes", n).Msg("price stream ended")
	return err
}

// replayTicks feeds recorded quotes for the configured instrument into the
// paper broker. Rows for other instruments are skipped.
func replayTicks(ctx context.Context, cfg *config.Config, engine *sim.Engine, b *bot.Bot, logger zerolog.Logger) error {
	fc := cfg.Simulation.Feed
	f, err := os.Open(fc.Path)
	if err != nil {
		return fmt.Errorf("open ticks: %w", err)
	}
	defer f.Close()

	logger = logger.With().Str("component", "feed").Str("path", fc.Path).Logger()
	ticks := sim.NewCSVTicks(f)
	n := 0
	for {
		t, ok, err := ticks.Next()
		if err != nil {
			return fmt.Errorf("read ticks: %w", err)
		}
		if !ok {
			break
		}
		if fc.Instrument != "" && !strings.EqualFold(t.Instrument, fc.Instrument) {
			continue
		}
		if !sleep(ctx, fc.Pace) {
			return nil
		}
		if err := engine.UpdatePrice(cfg.Bot.Symbol, t.Bid, t.Ask); err != nil {
			return fmt.Errorf("update price: %w", err)
		}
		b.Tick()
		n++
	}
	logger.Info().Int("ticks", n).Msg("replay finished")
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

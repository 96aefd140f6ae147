package ingest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxBindAttempts = 3
	DefaultRetryInterval   = 5 * time.Second
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type ListenerConfig struct {
	Addr            string
	WebhookPath     string // empty disables the route
	PeerPath        string // empty disables the route
	MaxBindAttempts int
	RetryInterval   time.Duration
	Metrics         http.Handler // served on GET /metrics when set
}

// Listener is the HTTP intake. Handlers only read the body and pass it
// on; every request is answered 200 whatever the downstream outcome.
type Listener struct {
	cfg    ListenerConfig
	router *gin.Engine
	logger zerolog.Logger

	onWebhook func([]byte)
	onPeer    func([]byte)

	up     atomic.Bool
	failed atomic.Bool

	// OnStatus, when set, is called whenever the bound state changes.
	OnStatus func(up bool)
}

func NewListener(cfg ListenerConfig, logger zerolog.Logger) *Listener {
	if cfg.MaxBindAttempts <= 0 {
		cfg.MaxBindAttempts = DefaultMaxBindAttempts
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}

	l := &Listener{
		cfg:    cfg,
		router: gin.New(),
		logger: logger.With().Str("component", "listener").Str("addr", cfg.Addr).Logger(),
	}
	l.router.Use(gin.Recovery(), l.requestLogger())

	if cfg.WebhookPath != "" {
		l.router.POST(cfg.WebhookPath, l.receive(func(b []byte) {
			if l.onWebhook != nil {
				l.onWebhook(b)
			}
		}))
	}
	if cfg.PeerPath != "" {
		l.router.POST(cfg.PeerPath, l.receive(func(b []byte) {
			if l.onPeer != nil {
				l.onPeer(b)
			}
		}))
	}
	if cfg.Metrics != nil {
		l.router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}
	l.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return l
}

// HandleWebhook sets the receiver of webhook bodies. fn must not block.
func (l *Listener) HandleWebhook(fn func(body []byte)) { l.onWebhook = fn }

// HandlePeer sets the receiver of peer broadcast bodies. fn must not block.
func (l *Listener) HandlePeer(fn func(body []byte)) { l.onPeer = fn }

func (l *Listener) Handler() http.Handler { return l.router }

// Up reports whether the listener is bound and serving.
func (l *Listener) Up() bool { return l.up.Load() }

// Failed reports whether every bind attempt failed. It stays set until the
// process restarts.
func (l *Listener) Failed() bool { return l.failed.Load() }

// Run binds the address, retrying a bounded number of times, and serves
// until ctx is cancelled. Exhausted bind attempts are not an error to the
// caller: Failed is set and Run returns nil so the rest of the bot keeps
// running.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := l.bind(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		l.failed.Store(true)
		l.logger.Error().Err(err).Int("attempts", l.cfg.MaxBindAttempts).Msg("listener gave up binding")
		return nil
	}

	srv := &http.Server{Handler: l.router, ReadHeaderTimeout: 10 * time.Second}
	l.setUp(true)
	l.logger.Info().Str("bound", ln.Addr().String()).Msg("listening")

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		l.setUp(false)
		return nil
	case err := <-errc:
		l.setUp(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		l.logger.Error().Err(err).Msg("listener stopped")
		return nil
	}
}

func (l *Listener) bind(ctx context.Context) (net.Listener, error) {
	var lastErr error
	for attempt := 1; attempt <= l.cfg.MaxBindAttempts; attempt++ {
		ln, err := net.Listen("tcp", l.cfg.Addr)
		if err == nil {
			return ln, nil
		}
		lastErr = err
		l.logger.Warn().Err(err).Int("attempt", attempt).Msg("bind failed")
		if attempt == l.cfg.MaxBindAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.cfg.RetryInterval):
		}
	}
	return nil, lastErr
}

func (l *Listener) setUp(up bool) {
	l.up.Store(up)
	if l.OnStatus != nil {
		l.OnStatus(up)
	}
}

func (l *Listener) receive(fn func([]byte)) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			l.logger.Warn().Err(err).Str("path", c.FullPath()).Msg("read body")
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		fn(body)
		c.JSON(http.StatusOK, gin.H{"status": "received"})
	}
}

func (l *Listener) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

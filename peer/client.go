package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const MaxPeers = 4

type ClientConfig struct {
	Host    string
	Path    string
	Ports   []int
	Timeout time.Duration
}

// Client posts messages to every configured peer, one after another. Each
// delivery is attempted once; failures are logged and reported through
// OnResult but never retried.
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	logger zerolog.Logger

	// OnResult, when set, is called once per peer per message.
	OnResult func(port int, action string, err error)
}

func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Path == "" {
		cfg.Path = "/newtrade"
	}
	if len(cfg.Ports) > MaxPeers {
		cfg.Ports = cfg.Ports[:MaxPeers]
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "broadcast").Logger(),
	}
}

func (c *Client) Ports() []int { return c.cfg.Ports }

func (c *Client) URL(port int) string {
	return fmt.Sprintf("http://%s:%d%s", c.cfg.Host, port, c.cfg.Path)
}

// Broadcast sends msg to every peer and returns how many accepted it.
func (c *Client) Broadcast(ctx context.Context, msg Message) int {
	if len(c.cfg.Ports) == 0 {
		return 0
	}
	body, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error().Err(err).Str("action", msg.Action).Msg("encode broadcast")
		return 0
	}

	delivered := 0
	for _, port := range c.cfg.Ports {
		err := c.post(ctx, port, body)
		if c.OnResult != nil {
			c.OnResult(port, msg.Action, err)
		}
		if err != nil {
			c.logger.Warn().Err(err).Int("port", port).Str("action", msg.Action).Msg("broadcast failed")
			continue
		}
		delivered++
		c.logger.Debug().Int("port", port).Str("action", msg.Action).Msg("broadcast delivered")
	}
	return delivered
}

func (c *Client) post(ctx context.Context, port int, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(port), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("peer %d: status %d", port, resp.StatusCode)
	}
	return nil
}

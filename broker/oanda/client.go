// Package oanda streams live quotes from the OANDA v20 REST API. The bot
// only paper trades against them, so only the practice environment is
// reachable.
package oanda

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// TokenEnv names the environment variable holding the API token.
const TokenEnv = "OANDA_TOKEN"

var ErrLiveTrading = errors.New("oanda: live environment not allowed")

type Client struct {
	BaseURL string // e.g. https://api-fxpractice.oanda.com
	Token   string
	HTTP    *http.Client
}

func BaseURL(env string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "practice", "demo", "":
		return "https://api-fxpractice.oanda.com", nil
	case "live", "trade":
		return "", ErrLiveTrading
	default:
		return "", fmt.Errorf("unknown OANDA env %q (want practice)", env)
	}
}

// NewClient returns a client for env. An empty token is read from
// OANDA_TOKEN.
func NewClient(env, token string) (*Client, error) {
	base, err := BaseURL(env)
	if err != nil {
		return nil, err
	}
	if token == "" {
		token = os.Getenv(TokenEnv)
	}
	if token == "" {
		return nil, fmt.Errorf("oanda: missing token (set %s)", TokenEnv)
	}
	return &Client{BaseURL: base, Token: token}, nil
}

// get issues an authenticated GET and returns the body of a 200 response.
// The caller closes it.
func (c *Client) get(ctx context.Context, path string, query url.Values) (io.ReadCloser, error) {
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	u.Path = path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, fmt.Errorf("oanda %s http %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return resp.Body, nil
}

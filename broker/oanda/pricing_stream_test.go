package oanda

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const streamBody = `{"type":"HEARTBEAT","time":"2025-01-06T15:00:00.000000000Z"}
{"type":"PRICE","time":"2025-01-06T15:00:01.000000000Z","instrument":"US30_USD","bids":[{"price":"39000.0"}],"asks":[{"price":"39002.0"}]}

{"type":"PRICE","time":"2025-01-06T15:00:02.000000000Z","instrument":"US30_USD","bids":[{"price":"39010.5"}],"asks":[{"price":"39012.5"}]}
{"type":"PRICE","instrument":"US30_USD","bids":[],"asks":[{"price":"39012.5"}]}
`

type requestLog struct {
	mu  sync.Mutex
	url *url.URL
}

func (l *requestLog) last() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.url
}

func streamServer(t *testing.T, body string) (*httptest.Server, *requestLog) {
	t.Helper()
	seen := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.mu.Lock()
		seen.url = r.URL
		seen.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, `{"errorMessage":"Insufficient authorization"}`, http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestBaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env     string
		want    string
		wantErr bool
	}{
		{env: "practice", want: "https://api-fxpractice.oanda.com"},
		{env: " Demo ", want: "https://api-fxpractice.oanda.com"},
		{env: "", want: "https://api-fxpractice.oanda.com"},
		{env: "live", wantErr: true},
		{env: "staging", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()
			got, err := BaseURL(tt.env)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := BaseURL("live")
	assert.ErrorIs(t, err, ErrLiveTrading)
}

func TestStreamPrices(t *testing.T) {
	t.Parallel()

	srv, seen := streamServer(t, streamBody)
	c := &Client{BaseURL: srv.URL, Token: "tok"}

	var quotes []Quote
	n, err := c.StreamPrices(context.Background(), PricingStreamOptions{
		AccountID:   "101-001-1",
		Instruments: []string{"US30_USD"},
	}, func(q Quote) error {
		quotes = append(quotes, q)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, quotes, 2)

	u := seen.last()
	require.NotNil(t, u)
	assert.Equal(t, "/v3/accounts/101-001-1/pricing/stream", u.Path)
	assert.Equal(t, "US30_USD", u.Query().Get("instruments"))

	assert.Equal(t, "US30_USD", quotes[0].Instrument)
	assert.Equal(t, 39000.0, quotes[0].Bid)
	assert.Equal(t, 39002.0, quotes[0].Ask)
	assert.Equal(t, 1, quotes[0].Time.Second())
	assert.Equal(t, 39010.5, quotes[1].Bid)
}

func TestStreamPricesStopsAtMax(t *testing.T) {
	t.Parallel()

	srv, _ := streamServer(t, streamBody)
	c := &Client{BaseURL: srv.URL, Token: "tok"}

	n, err := c.StreamPrices(context.Background(), PricingStreamOptions{
		AccountID:   "101-001-1",
		Instruments: []string{"US30_USD"},
		MaxQuotes:   1,
	}, func(Quote) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStreamPricesCallbackError(t *testing.T) {
	t.Parallel()

	srv, _ := streamServer(t, streamBody)
	c := &Client{BaseURL: srv.URL, Token: "tok"}
	boom := errors.New("boom")

	n, err := c.StreamPrices(context.Background(), PricingStreamOptions{
		AccountID:   "101-001-1",
		Instruments: []string{"US30_USD"},
	}, func(Quote) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, n)
}

func TestStreamPricesErrors(t *testing.T) {
	t.Parallel()

	srv, _ := streamServer(t, "{not json}\n")
	opts := PricingStreamOptions{AccountID: "a", Instruments: []string{"US30_USD"}}

	tests := []struct {
		name   string
		client Client
		opts   PricingStreamOptions
		want   string
	}{
		{name: "missing token", client: Client{BaseURL: srv.URL}, opts: opts, want: "missing token"},
		{name: "missing base url", client: Client{Token: "tok"}, opts: opts, want: "missing base url"},
		{name: "missing account", client: Client{BaseURL: srv.URL, Token: "tok"}, opts: PricingStreamOptions{Instruments: []string{"X"}}, want: "missing account id"},
		{name: "missing instruments", client: Client{BaseURL: srv.URL, Token: "tok"}, opts: PricingStreamOptions{AccountID: "a"}, want: "missing instruments"},
		{name: "unauthorized", client: Client{BaseURL: srv.URL, Token: "bad"}, opts: opts, want: "http 401"},
		{name: "bad json", client: Client{BaseURL: srv.URL, Token: "tok"}, opts: opts, want: "bad json"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.client.StreamPrices(context.Background(), tt.opts, func(Quote) error { return nil })
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewClient(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")

	c, err := NewClient("practice", "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Token)

	c, err = NewClient("practice", "explicit")
	require.NoError(t, err)
	assert.Equal(t, "explicit", c.Token)

	_, err = NewClient("live", "explicit")
	assert.ErrorIs(t, err, ErrLiveTrading)
}

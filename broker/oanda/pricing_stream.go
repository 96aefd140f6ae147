package oanda

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type PricingStreamOptions struct {
	AccountID   string
	Instruments []string
	// MaxQuotes stops the stream after that many quotes; zero streams
	// until ctx is done or the server hangs up.
	MaxQuotes int
}

// Quote is one top-of-book price from the stream.
type Quote struct {
	Time       time.Time
	Instrument string
	Bid        float64
	Ask        float64
}

type pricingStreamMsg struct {
	Type       string `json:"type"`
	Time       string `json:"time"`
	Instrument string `json:"instrument"`

	Bids []struct {
		Price string `json:"price"`
	} `json:"bids"`

	Asks []struct {
		Price string `json:"price"`
	} `json:"asks"`
}

// errSkip marks stream lines that carry no quote, such as heartbeats.
var errSkip = errors.New("no quote")

// StreamPrices connects to the pricing stream and calls fn for every
// quote. It returns the number of quotes delivered. An error from fn ends
// the stream.
func (c *Client) StreamPrices(ctx context.Context, opts PricingStreamOptions, fn func(Quote) error) (int, error) {
	if c.Token == "" {
		return 0, fmt.Errorf("oanda: missing token")
	}
	if c.BaseURL == "" {
		return 0, fmt.Errorf("oanda: missing base url")
	}
	if opts.AccountID == "" {
		return 0, fmt.Errorf("oanda: missing account id")
	}
	if len(opts.Instruments) == 0 {
		return 0, fmt.Errorf("oanda: missing instruments")
	}

	q := url.Values{}
	q.Set("instruments", strings.Join(opts.Instruments, ","))
	body, err := c.get(ctx, fmt.Sprintf("/v3/accounts/%s/pricing/stream", opts.AccountID), q)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	sc := bufio.NewScanner(body)
	// OANDA stream messages can be long; bump max token
	sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	delivered := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		quote, err := parseQuote([]byte(line))
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			return delivered, err
		}
		if err := fn(quote); err != nil {
			return delivered, err
		}

		delivered++
		if opts.MaxQuotes > 0 && delivered >= opts.MaxQuotes {
			return delivered, nil
		}
	}

	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		return delivered, err
	}
	return delivered, ctx.Err()
}

func parseQuote(line []byte) (Quote, error) {
	var msg pricingStreamMsg
	if err := json.Unmarshal(line, &msg); err != nil {
		return Quote{}, fmt.Errorf("oanda: bad json: %w (line=%q)", err, trimForErr(string(line)))
	}
	if !strings.EqualFold(msg.Type, "PRICE") {
		return Quote{}, errSkip
	}
	if msg.Instrument == "" || len(msg.Bids) == 0 || len(msg.Asks) == 0 {
		return Quote{}, errSkip
	}

	bid, err := strconv.ParseFloat(msg.Bids[0].Price, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("oanda: bid %q: %w", msg.Bids[0].Price, err)
	}
	ask, err := strconv.ParseFloat(msg.Asks[0].Price, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("oanda: ask %q: %w", msg.Asks[0].Price, err)
	}

	t := time.Now().UTC()
	if msg.Time != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, msg.Time); err == nil {
			t = parsed
		}
	}
	return Quote{Time: t, Instrument: msg.Instrument, Bid: bid, Ask: ask}, nil
}

func trimForErr(s string) string {
	const n = 200
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

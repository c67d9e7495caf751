// Package rofex talks to the Primary (Matba Rofex) REST API for DLR futures market data.
package rofex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hetulpatel/dlrarb/internal/breakers"
	"github.com/hetulpatel/dlrarb/internal/logging"
	"github.com/hetulpatel/dlrarb/internal/numparse"
)

// Environment selects the Primary deployment.
type Environment string

const (
	EnvRemarket Environment = "remarket"
	EnvLive     Environment = "live"
)

const (
	remarketURL = "https://api.remarkets.primary.com.ar/"
	liveURL     = "https://api.primary.com.ar/"

	// MarketID is the ROFEX market identifier for futures.
	MarketID = "ROFX"
)

// Entries requested for every ticker: bids, offers, last, open, close, settlement,
// trade volume and open interest.
var Entries = []string{"BI", "OF", "LA", "OP", "CL", "SE", "TV", "OI"}

// ErrMissingCredentials is returned when username, password or account is empty.
var ErrMissingCredentials = errors.New("rofex: username, password and account are required")

// ParseEnvironment maps a config string to an Environment; empty means remarket.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case "", EnvRemarket:
		return EnvRemarket, nil
	case EnvLive:
		return EnvLive, nil
	default:
		return "", fmt.Errorf("unknown rofex environment %q (want remarket or live)", s)
	}
}

// BaseURL returns the REST root for the environment.
func (e Environment) BaseURL() string {
	if e == EnvLive {
		return liveURL
	}
	return remarketURL
}

// Credentials identify the trading account.
type Credentials struct {
	Username string
	Password string
	Account  string
}

// Validate reports ErrMissingCredentials when any field is blank.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" || strings.TrimSpace(c.Password) == "" || strings.TrimSpace(c.Account) == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Config controls the client.
type Config struct {
	Credentials
	Environment Environment
	// BaseURL overrides the environment URL (tests).
	BaseURL string
	Timeout time.Duration
}

// Client is a minimal Primary REST client. The session token is memoized for the
// lifetime of the client and only cleared by Reset.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// NewClient builds a client; credentials are required.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}
	base := cfg.BaseURL
	if base == "" {
		base = cfg.Environment.BaseURL()
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    base,
		creds:      cfg.Credentials,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Authenticate obtains a session token once; later calls are no-ops until Reset.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"auth/getToken", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Username", c.creds.Username)
	req.Header.Set("X-Password", c.creds.Password)

	var token string
	err = breakers.Execute(ctx, "rofex.auth", func() error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return fmt.Errorf("rofex auth %s: %s", resp.Status, string(body))
		}
		token = resp.Header.Get("X-Auth-Token")
		if token == "" {
			return fmt.Errorf("rofex auth: no token in response")
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.token = token
	logging.Infof("[rofex] authenticated as %s", c.creds.Username)
	return nil
}

// Reset drops the memoized session so the next call authenticates again.
func (c *Client) Reset() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// Authenticated reports whether a session token is cached.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

type instrumentsResponse struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	Instruments []struct {
		InstrumentID struct {
			MarketID string `json:"marketId"`
			Symbol   string `json:"symbol"`
		} `json:"instrumentId"`
	} `json:"instruments"`
}

// Instruments lists every symbol known to the market.
func (c *Client) Instruments(ctx context.Context) ([]string, error) {
	var resp instrumentsResponse
	err := breakers.Execute(ctx, "rofex.instruments", func() error {
		return c.get(ctx, "rest/instruments/all", nil, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("rofex instruments: %w", err)
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("rofex instruments: status %q: %s", resp.Status, resp.Description)
	}
	out := make([]string, 0, len(resp.Instruments))
	for _, inst := range resp.Instruments {
		out = append(out, inst.InstrumentID.Symbol)
	}
	return out, nil
}

// Quote is one price level or statistic; Price is unparsed when the entry was absent.
type Quote struct {
	Price numparse.Number
	Size  numparse.Number
}

// MarketData is the top-of-book view for one symbol.
type MarketData struct {
	Symbol       string
	Bid          Quote
	Offer        Quote
	Last         Quote
	Opening      Quote
	Closing      Quote
	Settlement   Quote
	Volume       Quote
	OpenInterest Quote
}

type marketDataResponse struct {
	Status      string         `json:"status"`
	Description string         `json:"description"`
	Message     string         `json:"message"`
	MarketData  map[string]any `json:"marketData"`
}

// MarketData fetches depth-1 data for symbol. It is not breaker-guarded: one failing
// ticker must not block the rest of the batch.
func (c *Client) MarketData(ctx context.Context, symbol string) (MarketData, error) {
	q := url.Values{}
	q.Set("marketId", MarketID)
	q.Set("symbol", symbol)
	q.Set("entries", strings.Join(Entries, ","))
	q.Set("depth", "1")

	var resp marketDataResponse
	if err := c.get(ctx, "rest/marketdata/get", q, &resp); err != nil {
		return MarketData{}, fmt.Errorf("rofex market data %s: %w", symbol, err)
	}
	if resp.Status != "OK" {
		msg := resp.Description
		if msg == "" {
			msg = resp.Message
		}
		return MarketData{}, fmt.Errorf("rofex market data %s: status %q: %s", symbol, resp.Status, msg)
	}
	md := resp.MarketData
	return MarketData{
		Symbol:       symbol,
		Bid:          entry(md["BI"]),
		Offer:        entry(md["OF"]),
		Last:         entry(md["LA"]),
		Opening:      entry(md["OP"]),
		Closing:      entry(md["CL"]),
		Settlement:   entry(md["SE"]),
		Volume:       entry(md["TV"]),
		OpenInterest: entry(md["OI"]),
	}, nil
}

// entry normalizes the shapes Primary uses for a market data entry: a bare number, an
// object with price/size, or a list of such objects (book levels).
func entry(v any) Quote {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return Quote{Price: numparse.FromJSON(nil), Size: numparse.FromJSON(nil)}
		}
		return entry(t[0])
	case map[string]any:
		return Quote{Price: numparse.FromJSON(t["price"]), Size: numparse.FromJSON(t["size"])}
	default:
		return Quote{Price: numparse.FromJSON(v), Size: numparse.FromJSON(nil)}
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dst any) error {
	if err := c.Authenticate(ctx); err != nil {
		return err
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	req.Header.Set("X-Auth-Token", c.token)
	c.mu.Unlock()
	req.Header.Set("Accept", "application/json")
	return c.do(req, dst)
}

func (c *Client) do(req *http.Request, dst any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("rofex API %s: %s", resp.Status, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

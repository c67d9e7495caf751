// Package ambito reads the public dólar futuro listing and wholesale spot quote published
// by Ámbito Financiero.
package ambito

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hetulpatel/dlrarb/internal/breakers"
	"github.com/hetulpatel/dlrarb/internal/numparse"
)

const (
	defaultFuturesURL = "https://mercados.ambito.com//dolarfuturo/datos"
	defaultSpotURL    = "https://mercados.ambito.com//dolar/mayorista/variacion"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config controls optional overrides for the client.
type Config struct {
	FuturesURL     string
	SpotURL        string
	SpotTimeout    time.Duration
	FuturesTimeout time.Duration
}

// Client fetches Ámbito endpoints, each through its own tick-scoped breaker. Calls are
// never retried.
type Client struct {
	futuresURL     string
	spotURL        string
	spotTimeout    time.Duration
	futuresTimeout time.Duration
	httpClient     *http.Client
}

// Row is one entry of the futures listing with its numbers already parsed.
type Row struct {
	Name    string
	Last    numparse.Number
	Closing numparse.Number
	Bid     numparse.Number
	Ask     numparse.Number
}

// NewClient builds an Ámbito client with sane defaults.
func NewClient(cfg Config) *Client {
	futures := cfg.FuturesURL
	if futures == "" {
		futures = defaultFuturesURL
	}
	spot := cfg.SpotURL
	if spot == "" {
		spot = defaultSpotURL
	}
	spotTimeout := cfg.SpotTimeout
	if spotTimeout == 0 {
		spotTimeout = 5 * time.Second
	}
	futuresTimeout := cfg.FuturesTimeout
	if futuresTimeout == 0 {
		futuresTimeout = 10 * time.Second
	}
	return &Client{
		futuresURL:     futures,
		spotURL:        spot,
		spotTimeout:    spotTimeout,
		futuresTimeout: futuresTimeout,
		httpClient:     &http.Client{},
	}
}

// WholesaleSpot returns the "venta" side of the wholesale quote, the price paid to buy spot.
func (c *Client) WholesaleSpot(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.spotTimeout)
	defer cancel()

	var payload map[string]any
	if err := c.get(ctx, "ambito.spot", c.spotURL, &payload); err != nil {
		return 0, fmt.Errorf("ambito spot: %w", err)
	}
	n := numparse.FromJSON(payload["venta"])
	if !n.Positive() {
		return 0, fmt.Errorf("ambito spot: unusable venta %q", n.Raw)
	}
	return n.Value, nil
}

// Futures returns the raw listing rows. Malformed numbers come back as unparsed zeros.
func (c *Client) Futures(ctx context.Context) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, c.futuresTimeout)
	defer cancel()

	var items []map[string]any
	if err := c.get(ctx, "ambito.futures", c.futuresURL, &items); err != nil {
		return nil, fmt.Errorf("ambito futures: %w", err)
	}
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, Row{
			Name:    firstString(item, "contrato", "nombre"),
			Last:    numparse.FromJSON(item["ultimo"]),
			Closing: numparse.FromJSON(item["cierre"]),
			Bid:     numparse.FromJSON(item["compra"]),
			Ask:     numparse.FromJSON(item["venta"]),
		})
	}
	return rows, nil
}

func (c *Client) get(ctx context.Context, endpoint, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", "https://www.ambito.com/")
	req.Header.Set("Origin", "https://www.ambito.com")
	req.Header.Set("Accept", "application/json")

	return breakers.Execute(ctx, endpoint, func() error {
		return c.do(req, dst)
	})
}

func (c *Client) do(req *http.Request, dst any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ambito API %s: %s", resp.Status, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func firstString(item map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := item[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

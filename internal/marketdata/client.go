// Package marketdata fetches end-of-day price series over HTTP.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/indicator"
	"finanzas/internal/log"
	"finanzas/internal/ports"
)

// ErrNoData is returned when the source has no observations for a symbol.
var ErrNoData = errors.New("no price data")

var _ ports.PriceSource = (*Client)(nil)

// Client reads daily closes from an EOD JSON endpoint of the form
// {base}/eod/{symbol}?fmt=json&api_token={key}.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the logger used for request logging.
func WithLogger(l *log.Logger) Option {
	return func(cl *Client) { cl.logger = l.WithComponent(log.ComponentMarketData) }
}

// NewClient creates a market data client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentMarketData),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type eodRow struct {
	Date          string   `json:"date"`
	Close         float64  `json:"close"`
	AdjustedClose *float64 `json:"adjusted_close"`
}

// FetchDaily returns the daily closes for symbol in ascending date order.
// Split-adjusted closes are preferred when the source provides them. Rows
// without a positive close are skipped.
func (c *Client) FetchDaily(ctx context.Context, symbol string) ([]core.PricePoint, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol")
	}

	q := url.Values{}
	q.Set("fmt", "json")
	if c.apiKey != "" {
		q.Set("api_token", c.apiKey)
	}
	addr := fmt.Sprintf("%s/eod/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	var rows []eodRow
	if err := c.getJSON(ctx, addr, &rows); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	points := make([]core.PricePoint, 0, len(rows))
	for i, r := range rows {
		d, err := core.ParseDay(r.Date)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: row %d: %w", symbol, i, err)
		}
		p := core.PricePoint{Date: d, Close: r.Close}
		if r.AdjustedClose != nil && *r.AdjustedClose > 0 {
			p.Close = *r.AdjustedClose
		}
		if err := p.Validate(); err != nil {
			c.logger.WarnContext(ctx, "Skipping price row",
				log.FieldSymbol, symbol,
				"row", i,
				log.FieldError, err.Error())
			continue
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("fetch %s: %w", symbol, ErrNoData)
	}
	indicator.SortAscending(points)
	return points, nil
}

func (c *Client) getJSON(ctx context.Context, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Market data request",
		"host", req.URL.Host,
		log.FieldPath, req.URL.Path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode == http.StatusNotFound {
		return ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", req.URL.Host, req.URL.Path, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, data)
}

package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"navtrack/internal/domain"
	"navtrack/internal/infra"

	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client fetches quotes and intraday series from the Yahoo Finance chart
// API. It serves both as the QuoteSource and the HistorySource of the
// engine.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Yahoo Finance client with default endpoints.
func NewClient() *Client {
	return NewClientWithURL(defaultBaseURL)
}

// NewClientWithURL creates a client against a custom base URL (for tests).
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		logger: slog.Default().With("module", "yahoo_client"),
	}
}

// chartResponse is the Yahoo Finance chart API payload.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// CurrentPrice returns the latest 1-minute close for the symbol.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	points, err := c.fetchChart(ctx, symbol, "1m", "1d")
	if err != nil {
		infra.GlobalMetrics.RecordFetchError()
		return decimal.Zero, domain.NewFeedError("quote", err)
	}
	if len(points) == 0 {
		infra.GlobalMetrics.RecordFetchError()
		return decimal.Zero, domain.NewFeedError("quote", domain.ErrNoData)
	}

	infra.GlobalMetrics.RecordQuoteFetched()
	return points[len(points)-1].Price, nil
}

// RecentSeries returns the intraday 1-minute series for the symbol, trimmed
// to the requested window and ordered by ascending time.
func (c *Client) RecentSeries(ctx context.Context, symbol string, window time.Duration) ([]domain.PricePoint, error) {
	points, err := c.fetchChart(ctx, symbol, "1m", "1d")
	if err != nil {
		infra.GlobalMetrics.RecordFetchError()
		return nil, domain.NewFeedError("history", err)
	}
	if len(points) == 0 {
		infra.GlobalMetrics.RecordFetchError()
		return nil, domain.NewFeedError("history", domain.ErrNoData)
	}

	cutoff := time.Now().Add(-window)
	trimmed := points[:0:0]
	for _, p := range points {
		if p.Time.After(cutoff) {
			trimmed = append(trimmed, p)
		}
	}
	if len(trimmed) == 0 {
		// Window predates today's session; hand back what we have.
		trimmed = points
	}
	return trimmed, nil
}

// fetchChart retrieves and decodes a chart, retrying transient failures with
// exponential backoff.
func (c *Client) fetchChart(ctx context.Context, symbol, interval, rng string) ([]domain.PricePoint, error) {
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			delay := infra.CalculateBackoff(i - 1)
			c.logger.Info("retrying chart fetch",
				slog.String("symbol", symbol), slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		points, err := c.doFetch(ctx, symbol, interval, rng)
		if err == nil {
			return points, nil
		}
		lastErr = err
		c.logger.Warn("chart fetch attempt failed",
			slog.String("symbol", symbol), slog.Int("attempt", i+1), slog.Any("error", err))
	}
	return nil, lastErr
}

func (c *Client) doFetch(ctx context.Context, symbol, interval, rng string) ([]domain.PricePoint, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		c.baseURL, url.PathEscape(symbol), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, domain.ErrNoData
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, domain.ErrNoData
	}
	closes := result.Indicators.Quote[0].Close

	points := make([]domain.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue // null bars (halts, holidays)
		}
		points = append(points, domain.PricePoint{
			Time:  time.Unix(ts, 0),
			Price: decimal.NewFromFloat(*closes[i]),
		})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, nil
}

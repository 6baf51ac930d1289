package ohlcv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kosquant/krxagent/pkg/models"
)

// Yahoo implements Source using the Yahoo Finance v8 chart API, which covers
// KRX equities (.KS/.KQ) and the composite indices (^KS11/^KQ11).
type Yahoo struct {
	cache       *Cache
	limiter     *RateLimiter
	baseURL     string
	concurrency int
}

// YahooOption customises a Yahoo source.
type YahooOption func(*Yahoo)

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(url string) YahooOption {
	return func(y *Yahoo) { y.baseURL = url }
}

// WithConcurrency bounds the parallel per-ticker fetches in a Slab call.
func WithConcurrency(n int) YahooOption {
	return func(y *Yahoo) {
		if n > 0 {
			y.concurrency = n
		}
	}
}

// NewYahoo creates a new Yahoo Finance daily-bar source.
func NewYahoo(opts ...YahooOption) *Yahoo {
	y := &Yahoo{
		cache:       NewCache(15 * time.Minute),
		limiter:     NewRateLimiter(5, time.Second), // 5 req/s
		baseURL:     "https://query1.finance.yahoo.com",
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Name returns the data source name.
func (y *Yahoo) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v8 chart API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
}

type yfIndicators struct {
	Quote    []yfOHLCV    `json:"quote"`
	AdjClose []yfAdjClose `json:"adjclose"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Source implementation ---

// Slab fetches daily bars for every ticker concurrently and aligns them on a
// shared date axis. Tickers Yahoo does not know are logged and omitted; the
// call fails only when no ticker yields data.
func (y *Yahoo) Slab(ctx context.Context, tickers []string, start, end time.Time) (*Slab, error) {
	perTicker := make(map[string][]models.Bar, len(tickers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(y.concurrency)

	for _, ticker := range tickers {
		g.Go(func() error {
			bars, err := y.Daily(gctx, ticker, start, end)
			if err != nil {
				if errors.Is(err, ErrTickerNotFound) || errors.Is(err, ErrNoData) {
					log.Printf("ohlcv/yahoo: skipping %s: %v", ticker, err)
					return nil
				}
				return err
			}
			mu.Lock()
			perTicker[ticker] = bars
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(perTicker) == 0 {
		return nil, ErrNoData
	}
	return BuildSlab(perTicker), nil
}

// Daily returns the daily bars for one ticker over [start, end).
func (y *Yahoo) Daily(ctx context.Context, ticker string, start, end time.Time) ([]models.Bar, error) {
	cacheKey := fmt.Sprintf("daily:%s:%d:%d", ticker, start.Unix(), end.Unix())
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.([]models.Bar), nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf(
		"%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=div%%2Csplit",
		y.baseURL, ticker, start.Unix(), end.Unix(),
	)

	body, status, err := doGet(ctx, url, map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		if status == 404 {
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
		}
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp yfChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse yahoo chart: %w", err)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error for %s: %s", ticker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}

	bars := parseChartBars(resp.Chart.Result[0])
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s..%s", ErrNoData, ticker,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	y.cache.Set(cacheKey, bars)
	return bars, nil
}

// parseChartBars converts a chart result into daily bars. Cells Yahoo leaves
// null stay NaN so suspended days survive the alignment.
func parseChartBars(result yfChartResult) []models.Bar {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}

	q := result.Indicators.Quote[0]
	var adjCloses []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjCloses = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]models.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		b := models.EmptyBar(time.Unix(ts, 0))
		if i < len(q.Open) && q.Open[i] != nil {
			b.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			b.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			b.Low = *q.Low[i]
		}
		if i < len(q.Close) && q.Close[i] != nil {
			b.Close = *q.Close[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			b.Volume = float64(*q.Volume[i])
		}
		if i < len(adjCloses) && adjCloses[i] != nil {
			b.AdjClose = *adjCloses[i]
		}
		// Indices report no adjusted series; fall back to the close.
		if math.IsNaN(b.AdjClose) {
			b.AdjClose = b.Close
		}
		bars = append(bars, b)
	}
	return bars
}

package tasks

import (
	"context"
	"fmt"

	"github.com/kosquant/krxagent/internal/scan"
	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

func (r *Registry) handleMarketRank(ctx context.Context, p *models.Params, _ string) (string, error) {
	if len(p.Metrics) == 0 {
		return unsupportedMetric, nil
	}
	metric := p.Metrics[0]
	n := p.RankN
	if n < 1 {
		n = 1
	}

	pool := r.deps.Catalog.Tickers(p.Market)
	tickers := pool
	depth := 0
	switch metric {
	case models.MetricAscendRate, models.MetricDescendRate:
		depth = scan.PriorCloseLookback
	case models.MetricVolatility, models.MetricBeta:
		depth = scan.DefaultRiskLookback + 1
		if metric == models.MetricBeta {
			tickers = models.DedupTickers(pool, []string{
				utils.KOSPIIndexTicker, utils.KOSDAQIndexTicker,
			})
		}
	}

	slab, day, err := r.daySlab(ctx, tickers, p.Date, depth)
	if err != nil {
		return r.dataErr(p.Date, err)
	}
	di := slab.IndexOf(day)
	if di < 0 {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}

	// Bidirectional metrics rank by the order sub-field, default highest.
	high := true
	if p.Conditions.Order != nil && p.Conditions.Order.Direction == "low" {
		high = false
	}

	var results []scan.Result
	switch metric {
	case models.MetricVolume:
		results = scan.TopVolume(slab, di, pool, n)
	case models.MetricAscendRate:
		results = scan.TopMovers(slab, di, pool, n, true)
	case models.MetricDescendRate:
		results = scan.TopMovers(slab, di, pool, n, false)
	case models.MetricPrice:
		results = scan.TopPrice(slab, di, pool, n, true)
	case models.MetricVolatility:
		results = scan.TopVolatility(slab, di, pool, n, scan.DefaultRiskLookback, high)
	case models.MetricBeta:
		indexTicker := utils.IndexTickerFor(string(p.Market))
		results = scan.TopBeta(slab, di, pool, indexTicker, n, scan.DefaultRiskLookback, high)
	default:
		return unsupportedMetric, nil
	}

	if len(results) == 0 {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}

	// The single-winner volume answer carries the share count.
	if metric == models.MetricVolume && n == 1 {
		name, _ := r.deps.Catalog.NameOf(results[0].Ticker)
		if name == "" {
			name = results[0].Ticker
		}
		return fmt.Sprintf("%s (%s)", name, utils.FormatShares(results[0].Value)), nil
	}

	codes := make([]string, len(results))
	for i, res := range results {
		codes[i] = res.Ticker
	}
	return joinNames(r.namesOf(codes)), nil
}

func (r *Registry) handleBreadthCount(ctx context.Context, p *models.Params, _ string) (string, error) {
	pool := r.deps.Catalog.Tickers(p.Market)

	depth := 0
	if p.Task != models.TaskTradedCount {
		depth = scan.PriorCloseLookback
	}
	slab, day, err := r.daySlab(ctx, pool, p.Date, depth)
	if err != nil {
		return r.dataErr(p.Date, err)
	}
	di := slab.IndexOf(day)
	if di < 0 {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}

	bc := scan.Breadth(slab, di, pool)
	var count int
	var label string
	switch p.Task {
	case models.TaskAdvancersCount:
		count, label = bc.Advancers, "상승한"
	case models.TaskDeclinersCount:
		count, label = bc.Decliners, "하락한"
	default:
		count, label = bc.Traded, "거래된"
	}
	if count == 0 {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}
	return fmt.Sprintf("%s에 %s%s 종목은 %s개입니다.",
		p.Date, marketPrefix(p.Market), label, utils.FormatComma(int64(count))), nil
}

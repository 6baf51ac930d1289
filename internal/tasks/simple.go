package tasks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kosquant/krxagent/internal/ohlcv"
	"github.com/kosquant/krxagent/internal/scan"
	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

// metricDepth is the warmup each lookup metric needs before the anchor day.
func metricDepth(metric string) int {
	switch metric {
	case models.MetricPctChange:
		return scan.PriorCloseLookback
	case models.MetricRSI:
		return scan.DefaultRSIWindow
	case models.MetricVolatility, models.MetricBeta:
		return scan.DefaultRiskLookback + 1
	default:
		return 0
	}
}

// riskMetric marks the metrics routed through the vectorized path.
func riskMetric(metric string) bool {
	return metric == models.MetricVolatility || metric == models.MetricBeta
}

func (r *Registry) handleSimpleLookup(ctx context.Context, p *models.Params, bearer string) (string, error) {
	if len(p.Metrics) == 0 {
		return unsupportedMetric, nil
	}
	metric := p.Metrics[0]

	// Two tickers on one metric reads as a comparison.
	if len(p.Tickers) == 2 && len(p.Metrics) == 1 {
		return r.compareTickers(ctx, p, metric, bearer)
	}

	switch {
	case metric == models.MetricIndex:
		return r.answerIndexLevel(ctx, p)
	case metric == models.MetricTurnover && len(p.Tickers) == 0:
		return r.answerTurnover(ctx, p)
	}

	// One ticker's move against the market average, when a market qualifier
	// rides along with the change metric.
	if len(p.Tickers) == 1 && metric == models.MetricPctChange && p.Market != "" && p.Conditions.Empty() {
		return r.compareAgainstMarket(ctx, p, bearer)
	}

	if len(p.Tickers) == 0 {
		return unsupportedMetric, nil
	}

	// Risk metrics and multi-ticker/multi-metric requests take the
	// vectorized path; the common case stays a single sentence.
	if riskMetric(metric) || len(p.Tickers) > 1 || len(p.Metrics) > 1 {
		return r.answerMultiLookup(ctx, p, bearer)
	}
	return r.answerSingleLookup(ctx, p, metric, bearer)
}

func (r *Registry) answerSingleLookup(ctx context.Context, p *models.Params, metric, bearer string) (string, error) {
	codes, names, err := r.resolveAll(ctx, p.Tickers[:1], bearer)
	if err != nil {
		return "", err
	}
	code, name := codes[0], names[0]

	tickers := []string{code}
	if metric == models.MetricBeta {
		tickers = append(tickers, utils.IndexTickerFor(utils.MarketOf(code)))
	}
	slab, day, err := r.daySlab(ctx, tickers, p.Date, metricDepth(metric))
	if err != nil {
		return r.dataErr(p.Date, err)
	}
	di := slab.IndexOf(day)
	if di < 0 {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}

	value, ok := r.metricValue(slab, di, code, metric)
	if !ok {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}
	return fmt.Sprintf("%s에 %s의 %s은(는) %s 입니다.", p.Date, name, metric, value), nil
}

func (r *Registry) answerMultiLookup(ctx context.Context, p *models.Params, bearer string) (string, error) {
	codes, names, err := r.resolveAll(ctx, p.Tickers, bearer)
	if err != nil {
		return "", err
	}

	depth := 0
	for _, m := range p.Metrics {
		if d := metricDepth(m); d > depth {
			depth = d
		}
	}
	tickers := append([]string(nil), codes...)
	for _, m := range p.Metrics {
		if m == models.MetricBeta {
			for _, c := range codes {
				tickers = append(tickers, utils.IndexTickerFor(utils.MarketOf(c)))
			}
			break
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

	var b strings.Builder
	fmt.Fprintf(&b, "%s 기준 조회 결과입니다.", p.Date)
	for i, code := range codes {
		for _, m := range p.Metrics {
			value, ok := r.metricValue(slab, di, code, m)
			if !ok {
				value = "데이터 없음"
			}
			fmt.Fprintf(&b, "\n  - %s %s: %s", names[i], m, value)
		}
	}
	return b.String(), nil
}

// metricValue evaluates one metric for one ticker at di and formats it with
// its unit.
func (r *Registry) metricValue(slab *ohlcv.Slab, di int, code, metric string) (string, bool) {
	series := slab.Series(code)
	if series == nil {
		return "", false
	}
	b := series[di]

	switch metric {
	case models.MetricClose, models.MetricOpen, models.MetricHigh, models.MetricLow:
		if !b.Traded() {
			return "", false
		}
		v := map[string]float64{
			models.MetricClose: b.Close, models.MetricOpen: b.Open,
			models.MetricHigh: b.High, models.MetricLow: b.Low,
		}[metric]
		if math.IsNaN(v) {
			return "", false
		}
		return utils.FormatWon(v), true
	case models.MetricVolume:
		if !b.Traded() {
			return "", false
		}
		return utils.FormatShares(b.Volume), true
	case models.MetricPctChange:
		v := scan.DayChangePct(series, di)
		if math.IsNaN(v) {
			return "", false
		}
		return utils.FormatPct(v), true
	case models.MetricRSI:
		v := scan.RSI(series, di, scan.DefaultRSIWindow)
		if math.IsNaN(v) {
			return "", false
		}
		return fmt.Sprintf("%.1f", v), true
	case models.MetricVolatility:
		v := scan.Volatility(series, di, scan.DefaultRiskLookback)
		if math.IsNaN(v) {
			return "", false
		}
		return fmt.Sprintf("%.2f", v), true
	case models.MetricBeta:
		index := slab.Series(utils.IndexTickerFor(utils.MarketOf(code)))
		if index == nil {
			return "", false
		}
		v := scan.Beta(series, index, di, scan.DefaultRiskLookback)
		if math.IsNaN(v) {
			return "", false
		}
		return fmt.Sprintf("%.2f", v), true
	}
	return "", false
}

func (r *Registry) answerIndexLevel(ctx context.Context, p *models.Params) (string, error) {
	if p.Market == "" {
		return "KOSPI와 KOSDAQ 중 시장을 지정해주세요.", nil
	}
	indexTicker := utils.IndexTickerFor(string(p.Market))
	slab, day, err := r.daySlab(ctx, []string{indexTicker}, p.Date, 0)
	if err != nil {
		return r.dataErr(p.Date, err)
	}
	di := slab.IndexOf(day)
	if di < 0 {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}
	level := scan.IndexLevel(slab, di, indexTicker)
	if math.IsNaN(level) {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}
	return fmt.Sprintf("%s에 %s 지수은(는) %s 입니다.", p.Date, p.Market, utils.FormatIndexLevel(level)), nil
}

func (r *Registry) answerTurnover(ctx context.Context, p *models.Params) (string, error) {
	tickers := r.deps.Catalog.Tickers(p.Market)
	slab, day, err := r.daySlab(ctx, tickers, p.Date, 0)
	if err != nil {
		return r.dataErr(p.Date, err)
	}
	di := slab.IndexOf(day)
	if di < 0 {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}
	total := scan.Turnover(slab, di, tickers)
	if total == 0 {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}
	label := "전체 시장"
	if p.Market != "" {
		label = string(p.Market)
	}
	return fmt.Sprintf("%s에 %s의 거래대금은(는) %s 입니다.", p.Date, label, utils.FormatWon(total)), nil
}

func (r *Registry) compareTickers(ctx context.Context, p *models.Params, metric, bearer string) (string, error) {
	codes, names, err := r.resolveAll(ctx, p.Tickers, bearer)
	if err != nil {
		return "", err
	}

	tickers := append([]string(nil), codes...)
	slab, day, err := r.daySlab(ctx, tickers, p.Date, metricDepth(metric))
	if err != nil {
		return r.dataErr(p.Date, err)
	}
	di := slab.IndexOf(day)
	if di < 0 {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}

	valA, okA := r.metricValue(slab, di, codes[0], metric)
	valB, okB := r.metricValue(slab, di, codes[1], metric)
	if !okA || !okB {
		return fmt.Sprintf("%s에 필요한 데이터를 찾을 수 없습니다.", p.Date), nil
	}

	rawA := rawMetric(slab, di, codes[0], metric)
	rawB := rawMetric(slab, di, codes[1], metric)

	// Only the day-low reads lower-is-better.
	higherWins := metric != models.MetricLow
	winner := names[0]
	if (rawB > rawA) == higherWins {
		winner = names[1]
	}
	compWord := "높은"
	if !higherWins {
		compWord = "낮은"
	}

	return fmt.Sprintf("%s 기준 %s이 더 %s 종목은 %s입니다.\n  - %s: %s\n  - %s: %s",
		p.Date, metric, compWord, winner, names[0], valA, names[1], valB), nil
}

// rawMetric is the unformatted value compareTickers ranks on.
func rawMetric(slab *ohlcv.Slab, di int, code, metric string) float64 {
	series := slab.Series(code)
	b := series[di]
	switch metric {
	case models.MetricClose:
		return b.Close
	case models.MetricOpen:
		return b.Open
	case models.MetricHigh:
		return b.High
	case models.MetricLow:
		return b.Low
	case models.MetricVolume:
		return b.Volume
	case models.MetricPctChange:
		return scan.DayChangePct(series, di)
	case models.MetricRSI:
		return scan.RSI(series, di, scan.DefaultRSIWindow)
	case models.MetricVolatility:
		return scan.Volatility(series, di, scan.DefaultRiskLookback)
	}
	return math.NaN()
}

func (r *Registry) compareAgainstMarket(ctx context.Context, p *models.Params, bearer string) (string, error) {
	codes, names, err := r.resolveAll(ctx, p.Tickers[:1], bearer)
	if err != nil {
		return "", err
	}
	code, name := codes[0], names[0]

	pool := r.deps.Catalog.Tickers(p.Market)
	tickers := models.DedupTickers(pool, []string{code})
	slab, day, err := r.daySlab(ctx, tickers, p.Date, scan.PriorCloseLookback)
	if err != nil {
		return r.dataErr(p.Date, err)
	}
	di := slab.IndexOf(day)
	if di < 0 {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}

	own := scan.DayChangePct(slab.Series(code), di)
	if math.IsNaN(own) {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}

	var sum float64
	var n int
	for _, t := range pool {
		if !slab.Has(t) {
			continue
		}
		v := scan.DayChangePct(slab.Series(t), di)
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}
	avg := sum / float64(n)

	verdict := "낮습니다"
	if own > avg {
		verdict = "높습니다"
	}
	return fmt.Sprintf("%s 기준 %s의 등락률은 %s 시장 평균보다 %s.\n  - %s: %s\n  - 시장 평균: %s",
		p.Date, name, p.Market, verdict, name, utils.FormatPct(own), utils.FormatPct(avg)), nil
}

// dataErr maps a fetch failure: a clean no-data miss becomes the terminal
// Korean message, anything else propagates.
func (r *Registry) dataErr(dateISO string, err error) (string, error) {
	if isNoData(err) {
		return fmt.Sprintf(noDataFmt, dateISO), nil
	}
	return "", err
}

func isNoData(err error) bool {
	return errors.Is(err, ohlcv.ErrNoData)
}

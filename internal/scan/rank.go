package scan

import (
	"math"

	"github.com/kosquant/krxagent/internal/ohlcv"
	"github.com/kosquant/krxagent/pkg/models"
)

// TopVolume ranks tickers by share volume at di, busiest first.
func TopVolume(slab *ohlcv.Slab, di int, tickers []string, n int) []Result {
	return rankDesc(slab, tickers, n, func(series []models.Bar) float64 {
		b := series[di]
		if !b.Traded() {
			return math.NaN()
		}
		return b.Volume
	})
}

// TopMovers ranks tickers by day-over-day close change in percent. up=true
// ranks gainers descending, up=false ranks losers ascending.
func TopMovers(slab *ohlcv.Slab, di int, tickers []string, n int, up bool) []Result {
	eval := func(series []models.Bar) float64 {
		return DayChangePct(series, di)
	}
	if up {
		return rankDesc(slab, tickers, n, eval)
	}
	return rankAsc(slab, tickers, n, eval)
}

// TopPrice ranks tickers by raw close at di, highest first when high=true.
func TopPrice(slab *ohlcv.Slab, di int, tickers []string, n int, high bool) []Result {
	eval := func(series []models.Bar) float64 {
		b := series[di]
		if !b.Traded() || !finite(b.Close) {
			return math.NaN()
		}
		return b.Close
	}
	if high {
		return rankDesc(slab, tickers, n, eval)
	}
	return rankAsc(slab, tickers, n, eval)
}

// Volatility is the annualized standard deviation of daily returns over the
// trailing lookback ending at di. NaN on shallow history.
func Volatility(series []models.Bar, di, lookback int) float64 {
	if lookback <= 0 {
		lookback = DefaultRiskLookback
	}
	rets := dailyReturns(series, di, lookback)
	if rets == nil {
		return math.NaN()
	}
	return stddev(rets) * math.Sqrt(252)
}

// Beta regresses the ticker's daily returns on the index's over the trailing
// lookback ending at di: covariance over index variance. NaN when either
// history is shallow or the two return series diverge in length.
func Beta(series, index []models.Bar, di, lookback int) float64 {
	if lookback <= 0 {
		lookback = DefaultRiskLookback
	}
	r := dailyReturns(series, di, lookback)
	m := dailyReturns(index, di, lookback)
	if r == nil || m == nil || len(r) != len(m) {
		return math.NaN()
	}
	rMean, mMean := mean(r), mean(m)
	var cov, varM float64
	for i := range r {
		cov += (r[i] - rMean) * (m[i] - mMean)
		varM += (m[i] - mMean) * (m[i] - mMean)
	}
	if varM == 0 {
		return math.NaN()
	}
	return cov / varM
}

// TopVolatility ranks tickers by annualized volatility at di, high=true for
// the most volatile first.
func TopVolatility(slab *ohlcv.Slab, di int, tickers []string, n, lookback int, high bool) []Result {
	eval := func(series []models.Bar) float64 {
		return Volatility(series, di, lookback)
	}
	if high {
		return rankDesc(slab, tickers, n, eval)
	}
	return rankAsc(slab, tickers, n, eval)
}

// TopBeta ranks tickers by beta against the given index series.
func TopBeta(slab *ohlcv.Slab, di int, tickers []string, indexTicker string, n, lookback int, high bool) []Result {
	if !slab.Has(indexTicker) {
		return nil
	}
	index := slab.Series(indexTicker)
	eval := func(series []models.Bar) float64 {
		return Beta(series, index, di, lookback)
	}
	if high {
		return rankDesc(slab, tickers, n, eval)
	}
	return rankAsc(slab, tickers, n, eval)
}

func rankDesc(slab *ohlcv.Slab, tickers []string, n int, eval func([]models.Bar) float64) []Result {
	rs := collect(slab, tickers, eval)
	SortByValueDesc(rs)
	return headN(rs, n)
}

func rankAsc(slab *ohlcv.Slab, tickers []string, n int, eval func([]models.Bar) float64) []Result {
	rs := collect(slab, tickers, eval)
	SortByValueAsc(rs)
	return headN(rs, n)
}

func collect(slab *ohlcv.Slab, tickers []string, eval func([]models.Bar) float64) []Result {
	rs := make([]Result, 0, len(tickers))
	for _, t := range tickersIn(slab, tickers) {
		v := eval(slab.Series(t))
		if !finite(v) {
			continue
		}
		rs = append(rs, Result{Ticker: t, Value: v})
	}
	return rs
}

func headN(rs []Result, n int) []Result {
	if n > 0 && len(rs) > n {
		rs = rs[:n]
	}
	return rs
}

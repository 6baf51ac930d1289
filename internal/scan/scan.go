// Package scan implements the analytic primitives: pure, deterministic
// filters, aggregates, and rankings over an OHLCV slab. Conditional filters
// and rankings read the raw close; RSI, moving averages, Bollinger bands,
// MA crosses, and three-candle patterns read the adjusted close so corporate
// actions do not fabricate signals.
package scan

import (
	"math"
	"sort"

	"github.com/kosquant/krxagent/internal/ohlcv"
	"github.com/kosquant/krxagent/pkg/models"
)

// PriorCloseLookback bounds the walk back to the last traded close when the
// immediately preceding day was suspended.
const PriorCloseLookback = 7

// Default windows for the lookback-bearing conditions.
const (
	DefaultRSIWindow      = 14
	DefaultSpikeWindow    = 20
	DefaultMAWindow       = 20
	DefaultBollingerDays  = 20
	DefaultPeakPeriodDays = 260
	DefaultRiskLookback   = 60
)

// Result pairs a ticker with the value a ranking or scan computed for it.
type Result struct {
	Ticker string
	Value  float64
}

// SortByValueDesc sorts results by value descending, ticker as tiebreak.
func SortByValueDesc(rs []Result) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Value != rs[j].Value {
			return rs[i].Value > rs[j].Value
		}
		return rs[i].Ticker < rs[j].Ticker
	})
}

// SortByValueAsc sorts results by value ascending, ticker as tiebreak.
func SortByValueAsc(rs []Result) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Value != rs[j].Value {
			return rs[i].Value < rs[j].Value
		}
		return rs[i].Ticker < rs[j].Ticker
	})
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// inRange applies optional min/max bounds.
func inRange(v float64, min, max *float64) bool {
	if !finite(v) {
		return false
	}
	if min != nil && v < *min {
		return false
	}
	if max != nil && v > *max {
		return false
	}
	return true
}

// priorTradedIdx walks back from di-1 to the last index with a traded bar,
// up to PriorCloseLookback rows. Returns -1 when none is found.
func priorTradedIdx(series []models.Bar, di int) int {
	lo := di - PriorCloseLookback
	if lo < 0 {
		lo = 0
	}
	for j := di - 1; j >= lo; j-- {
		if series[j].Traded() {
			return j
		}
	}
	return -1
}

// tickersIn keeps the tickers actually present in the slab, preserving
// input order.
func tickersIn(slab *ohlcv.Slab, tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if slab.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// mean of a float slice; NaN when empty.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation; NaN when empty.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}

// returns computes simple daily returns over the adjusted closes ending at
// di, using the last lookback+1 traded observations. Returns nil when the
// history is too shallow.
func dailyReturns(series []models.Bar, di, lookback int) []float64 {
	closes := make([]float64, 0, lookback+1)
	for j := di; j >= 0 && len(closes) < lookback+1; j-- {
		if series[j].Traded() && finite(series[j].AdjClose) {
			closes = append(closes, series[j].AdjClose)
		}
	}
	if len(closes) < lookback+1 {
		return nil
	}
	// closes are newest-first; returns oldest-first is irrelevant for
	// moment statistics, so compute in place.
	rets := make([]float64, 0, lookback)
	for i := 0; i < len(closes)-1; i++ {
		prev := closes[i+1]
		if prev == 0 {
			return nil
		}
		rets = append(rets, closes[i]/prev-1)
	}
	return rets
}

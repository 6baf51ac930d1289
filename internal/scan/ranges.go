package scan

import (
	"math"
	"time"

	"github.com/kosquant/krxagent/internal/ohlcv"
	"github.com/kosquant/krxagent/pkg/models"
)

// Directions for consecutive-change scans.
const (
	DirUp   = "up"
	DirDown = "down"
)

// CumulativeChangePct is the close-to-close change in percent from the first
// traded bar at or after fromIdx to the last traded bar at or before toIdx.
func CumulativeChangePct(series []models.Bar, fromIdx, toIdx int) float64 {
	first, last := -1, -1
	for j := fromIdx; j <= toIdx; j++ {
		if series[j].Traded() && finite(series[j].Close) {
			if first < 0 {
				first = j
			}
			last = j
		}
	}
	if first < 0 || first == last {
		return math.NaN()
	}
	base := series[first].Close
	if base == 0 {
		return math.NaN()
	}
	return (series[last].Close/base - 1) * 100
}

// FilterPctChangeRange keeps tickers whose cumulative close change over
// [fromIdx, toIdx], in percent, lies within [min, max].
func FilterPctChangeRange(slab *ohlcv.Slab, fromIdx, toIdx int, tickers []string, min, max *float64) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickersIn(slab, tickers) {
		if inRange(CumulativeChangePct(slab.Series(t), fromIdx, toIdx), min, max) {
			out = append(out, t)
		}
	}
	return out
}

// IsConsecutive reports whether every traded close in [fromIdx, toIdx] moves
// strictly in the given direction day over day. At least two traded closes
// are required.
func IsConsecutive(series []models.Bar, fromIdx, toIdx int, direction string) bool {
	prev := math.NaN()
	steps := 0
	for j := fromIdx; j <= toIdx; j++ {
		b := series[j]
		if !b.Traded() || !finite(b.Close) {
			continue
		}
		if !math.IsNaN(prev) {
			d := b.Close - prev
			if direction == DirDown {
				if d >= 0 {
					return false
				}
			} else if d <= 0 {
				return false
			}
			steps++
		}
		prev = b.Close
	}
	return steps >= 1
}

// FilterConsecutive keeps tickers moving strictly in one direction across
// the whole range.
func FilterConsecutive(slab *ohlcv.Slab, fromIdx, toIdx int, tickers []string, direction string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickersIn(slab, tickers) {
		if IsConsecutive(slab.Series(t), fromIdx, toIdx, direction) {
			out = append(out, t)
		}
	}
	return out
}

// Cross sides.
const (
	CrossGolden = "golden"
	CrossDead   = "dead"
	CrossBoth   = "both"
)

// Fast and slow windows for MA cross detection.
const (
	crossFastWindow = 5
	crossSlowWindow = 20
)

// CrossDates lists the dates in [fromIdx, toIdx] where the 5-day moving
// average crosses the 20-day moving average on the adjusted close. A golden
// cross is a negative-to-positive flip of MA5−MA20, a dead cross the
// opposite. The slab must carry enough history before fromIdx for the slow
// window to warm up.
func CrossDates(slab *ohlcv.Slab, ticker string, fromIdx, toIdx int, side string) []time.Time {
	if !slab.Has(ticker) {
		return nil
	}
	series := slab.Series(ticker)
	dates := slab.Dates()

	var out []time.Time
	for j := fromIdx; j <= toIdx; j++ {
		cur := maDiff(series, j)
		prev := maDiff(series, j-1)
		if !finite(cur) || !finite(prev) || prev*cur >= 0 {
			continue
		}
		golden := prev < 0 && cur > 0
		switch side {
		case CrossGolden:
			if !golden {
				continue
			}
		case CrossDead:
			if golden {
				continue
			}
		}
		out = append(out, dates[j])
	}
	return out
}

// CountCrosses tallies golden and dead crosses in [fromIdx, toIdx].
func CountCrosses(slab *ohlcv.Slab, ticker string, fromIdx, toIdx int) (golden, dead int) {
	golden = len(CrossDates(slab, ticker, fromIdx, toIdx, CrossGolden))
	dead = len(CrossDates(slab, ticker, fromIdx, toIdx, CrossDead))
	return golden, dead
}

// FilterCross keeps tickers with at least one cross of the requested side
// inside the range.
func FilterCross(slab *ohlcv.Slab, fromIdx, toIdx int, tickers []string, side string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickersIn(slab, tickers) {
		if len(CrossDates(slab, t, fromIdx, toIdx, side)) > 0 {
			out = append(out, t)
		}
	}
	return out
}

func maDiff(series []models.Bar, di int) float64 {
	if di < 0 {
		return math.NaN()
	}
	fast := movingAvg(series, di, crossFastWindow)
	slow := movingAvg(series, di, crossSlowWindow)
	if !finite(fast) || !finite(slow) {
		return math.NaN()
	}
	return fast - slow
}

// Candle pattern colors.
const (
	PatternWhite = "white"
	PatternBlack = "black"
)

// ThreePatternDates lists the dates in [fromIdx, toIdx] completing a
// three-soldiers pattern: three consecutive traded bars of the same candle
// color with strictly monotone adjusted closes. White means rising bullish
// candles, black falling bearish ones. The returned date is the third bar's.
func ThreePatternDates(slab *ohlcv.Slab, ticker string, fromIdx, toIdx int, color string) []time.Time {
	if !slab.Has(ticker) {
		return nil
	}
	series := slab.Series(ticker)
	dates := slab.Dates()

	var out []time.Time
	for j := fromIdx; j <= toIdx; j++ {
		if j < 2 {
			continue
		}
		if threeAt(series, j, color) {
			out = append(out, dates[j])
		}
	}
	return out
}

// FilterThreePattern keeps tickers completing the pattern on the final day
// of the range.
func FilterThreePattern(slab *ohlcv.Slab, di int, tickers []string, color string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickersIn(slab, tickers) {
		if di >= 2 && threeAt(slab.Series(t), di, color) {
			out = append(out, t)
		}
	}
	return out
}

// threeAt checks the pattern over bars di-2, di-1, di. Candle color uses the
// raw open/close of each bar; the monotone leg uses adjusted closes so a
// split inside the window cannot fake it.
func threeAt(series []models.Bar, di int, color string) bool {
	white := color != PatternBlack
	for j := di - 2; j <= di; j++ {
		b := series[j]
		if !b.Traded() || !finite(b.Open) || !finite(b.Close) || !finite(b.AdjClose) {
			return false
		}
		if white && b.Close <= b.Open {
			return false
		}
		if !white && b.Close >= b.Open {
			return false
		}
	}
	a, b, c := series[di-2].AdjClose, series[di-1].AdjClose, series[di].AdjClose
	if white {
		return a < b && b < c
	}
	return a > b && b > c
}

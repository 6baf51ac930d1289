package scan

import (
	"math"

	"github.com/kosquant/krxagent/internal/ohlcv"
	"github.com/kosquant/krxagent/pkg/models"
)

// FilterPriceClose keeps tickers whose raw close at di lies within [min, max].
func FilterPriceClose(slab *ohlcv.Slab, di int, tickers []string, min, max *float64) []string {
	return filterValue(slab, tickers, func(series []models.Bar) float64 {
		b := series[di]
		if !b.Traded() {
			return math.NaN()
		}
		return b.Close
	}, min, max)
}

// FilterVolume keeps tickers whose share volume at di lies within [min, max].
func FilterVolume(slab *ohlcv.Slab, di int, tickers []string, min, max *float64) []string {
	return filterValue(slab, tickers, func(series []models.Bar) float64 {
		b := series[di]
		if !b.Traded() {
			return math.NaN()
		}
		return b.Volume
	}, min, max)
}

// FilterPctChange keeps tickers whose day-over-day close change in percent
// lies within [min, max]. The previous close is the preceding slab row.
func FilterPctChange(slab *ohlcv.Slab, di int, tickers []string, min, max *float64) []string {
	return filterValue(slab, tickers, func(series []models.Bar) float64 {
		return DayChangePct(series, di)
	}, min, max)
}

// DayChangePct is the close-over-prior-close change in percent at di, with
// the prior close found by walking back to the last traded bar. NaN when
// either side is missing.
func DayChangePct(series []models.Bar, di int) float64 {
	b := series[di]
	if !b.Traded() || !finite(b.Close) {
		return math.NaN()
	}
	pj := priorTradedIdx(series, di)
	if pj < 0 {
		return math.NaN()
	}
	prev := series[pj].Close
	if !finite(prev) || prev == 0 {
		return math.NaN()
	}
	return (b.Close/prev - 1) * 100
}

// FilterVolumePct keeps tickers whose day-over-day volume change in percent
// lies within [min, max].
func FilterVolumePct(slab *ohlcv.Slab, di int, tickers []string, min, max *float64) []string {
	return filterValue(slab, tickers, func(series []models.Bar) float64 {
		b := series[di]
		if !b.Traded() {
			return math.NaN()
		}
		pj := priorTradedIdx(series, di)
		if pj < 0 {
			return math.NaN()
		}
		prev := series[pj].Volume
		if !finite(prev) || prev == 0 {
			return math.NaN()
		}
		return (b.Volume/prev - 1) * 100
	}, min, max)
}

// FilterGapPct keeps tickers whose open gap versus the prior close, in
// percent, lies within [min, max].
func FilterGapPct(slab *ohlcv.Slab, di int, tickers []string, min, max *float64) []string {
	return filterValue(slab, tickers, func(series []models.Bar) float64 {
		b := series[di]
		if !b.Traded() || !finite(b.Open) {
			return math.NaN()
		}
		pj := priorTradedIdx(series, di)
		if pj < 0 {
			return math.NaN()
		}
		prev := series[pj].Close
		if !finite(prev) || prev == 0 {
			return math.NaN()
		}
		return (b.Open/prev - 1) * 100
	}, min, max)
}

// RSI computes the simple-average RSI over the last window adjusted-close
// deltas ending at di. Requires di ≥ window; an all-gain window reads 100.
// NaN when the history is too shallow or contains holes.
func RSI(series []models.Bar, di, window int) float64 {
	if window <= 0 {
		window = DefaultRSIWindow
	}
	if di < window {
		return math.NaN()
	}
	var gain, loss float64
	for j := di - window + 1; j <= di; j++ {
		cur, prev := series[j].AdjClose, series[j-1].AdjClose
		if !finite(cur) || !finite(prev) {
			return math.NaN()
		}
		d := cur - prev
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(window)
	avgLoss := loss / float64(window)
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// FilterRSI keeps tickers whose RSI at di lies within [min, max].
func FilterRSI(slab *ohlcv.Slab, di int, tickers []string, window int, min, max *float64) []string {
	return filterValue(slab, tickers, func(series []models.Bar) float64 {
		return RSI(series, di, window)
	}, min, max)
}

// VolumeSpikePct is today's volume versus the average of the prior window
// volumes, in percent above average. NaN when the window has holes.
func VolumeSpikePct(series []models.Bar, di, window int) float64 {
	if window <= 0 {
		window = DefaultSpikeWindow
	}
	if di < window {
		return math.NaN()
	}
	b := series[di]
	if !b.Traded() {
		return math.NaN()
	}
	var sum float64
	for j := di - window; j < di; j++ {
		v := series[j].Volume
		if !finite(v) {
			return math.NaN()
		}
		sum += v
	}
	avg := sum / float64(window)
	if avg == 0 {
		return math.NaN()
	}
	return (b.Volume/avg - 1) * 100
}

// FilterVolumeSpike keeps tickers whose volume runs at least minRatio percent
// above its trailing window average.
func FilterVolumeSpike(slab *ohlcv.Slab, di int, tickers []string, window int, minRatio float64) []string {
	return filterValue(slab, tickers, func(series []models.Bar) float64 {
		return VolumeSpikePct(series, di, window)
	}, &minRatio, nil)
}

// MovingAvgDeviationPct is the percent deviation of the adjusted close at di
// from its window-day moving average (window includes di).
func MovingAvgDeviationPct(series []models.Bar, di, window int) float64 {
	if window <= 0 {
		window = DefaultMAWindow
	}
	ma := movingAvg(series, di, window)
	cur := series[di].AdjClose
	if !finite(ma) || !finite(cur) || ma == 0 {
		return math.NaN()
	}
	return (cur/ma - 1) * 100
}

// FilterMovingAvg keeps tickers whose deviation from the window-day moving
// average, in percent, lies within [min, max].
func FilterMovingAvg(slab *ohlcv.Slab, di int, tickers []string, window int, min, max *float64) []string {
	return filterValue(slab, tickers, func(series []models.Bar) float64 {
		return MovingAvgDeviationPct(series, di, window)
	}, min, max)
}

// movingAvg is the simple moving average of the adjusted close over the
// window ending at di (inclusive). NaN on shallow or holed history.
func movingAvg(series []models.Bar, di, window int) float64 {
	if di < window-1 {
		return math.NaN()
	}
	var sum float64
	for j := di - window + 1; j <= di; j++ {
		v := series[j].AdjClose
		if !finite(v) {
			return math.NaN()
		}
		sum += v
	}
	return sum / float64(window)
}

// BollingerBand names which band a close must touch.
const (
	BandUpper = "upper"
	BandLower = "lower"
)

// TouchesBollinger reports whether the adjusted close at di touches the
// requested band of the 20-day, 2-sigma Bollinger envelope.
func TouchesBollinger(series []models.Bar, di int, band string) bool {
	const window = DefaultBollingerDays
	if di < window-1 {
		return false
	}
	closes := make([]float64, 0, window)
	for j := di - window + 1; j <= di; j++ {
		v := series[j].AdjClose
		if !finite(v) {
			return false
		}
		closes = append(closes, v)
	}
	m := mean(closes)
	sd := stddev(closes)
	cur := series[di].AdjClose
	switch band {
	case BandLower:
		return cur <= m-2*sd
	default:
		return cur >= m+2*sd
	}
}

// FilterBollingerTouch keeps tickers touching the requested Bollinger band.
func FilterBollingerTouch(slab *ohlcv.Slab, di int, tickers []string, band string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickersIn(slab, tickers) {
		if TouchesBollinger(slab.Series(t), di, band) {
			out = append(out, t)
		}
	}
	return out
}

// FilterPeakBreak keeps tickers whose close at di is at or above the highest
// close of the trailing period (period includes di).
func FilterPeakBreak(slab *ohlcv.Slab, di int, tickers []string, periodDays int) []string {
	return filterPeak(slab, di, tickers, periodDays, true)
}

// FilterPeakLow keeps tickers whose close at di is at or below the lowest
// close of the trailing period.
func FilterPeakLow(slab *ohlcv.Slab, di int, tickers []string, periodDays int) []string {
	return filterPeak(slab, di, tickers, periodDays, false)
}

func filterPeak(slab *ohlcv.Slab, di int, tickers []string, periodDays int, high bool) []string {
	if periodDays <= 0 {
		periodDays = DefaultPeakPeriodDays
	}
	out := make([]string, 0, len(tickers))
	for _, t := range tickersIn(slab, tickers) {
		series := slab.Series(t)
		b := series[di]
		if !b.Traded() || !finite(b.Close) {
			continue
		}
		ext, ok := trailingExtreme(series, di, periodDays, high)
		if !ok {
			continue
		}
		if (high && b.Close >= ext) || (!high && b.Close <= ext) {
			out = append(out, t)
		}
	}
	return out
}

// FilterOffPeak keeps tickers trading at least minDrop percent below their
// trailing-period high close.
func FilterOffPeak(slab *ohlcv.Slab, di int, tickers []string, periodDays int, minDrop float64) []string {
	if periodDays <= 0 {
		periodDays = DefaultPeakPeriodDays
	}
	out := make([]string, 0, len(tickers))
	for _, t := range tickersIn(slab, tickers) {
		series := slab.Series(t)
		b := series[di]
		if !b.Traded() || !finite(b.Close) {
			continue
		}
		peak, ok := trailingExtreme(series, di, periodDays, true)
		if !ok || peak == 0 {
			continue
		}
		drop := (1 - b.Close/peak) * 100
		if drop >= minDrop {
			out = append(out, t)
		}
	}
	return out
}

// trailingExtreme is the max (or min) traded close over the periodDays rows
// ending at di, inclusive. ok is false when no traded close exists.
func trailingExtreme(series []models.Bar, di, periodDays int, high bool) (float64, bool) {
	lo := di - periodDays + 1
	if lo < 0 {
		lo = 0
	}
	ext := math.NaN()
	for j := lo; j <= di; j++ {
		b := series[j]
		if !b.Traded() || !finite(b.Close) {
			continue
		}
		if math.IsNaN(ext) || (high && b.Close > ext) || (!high && b.Close < ext) {
			ext = b.Close
		}
	}
	return ext, !math.IsNaN(ext)
}

// filterValue evaluates one value per ticker and keeps those within bounds.
func filterValue(slab *ohlcv.Slab, tickers []string, eval func([]models.Bar) float64, min, max *float64) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickersIn(slab, tickers) {
		if inRange(eval(slab.Series(t)), min, max) {
			out = append(out, t)
		}
	}
	return out
}

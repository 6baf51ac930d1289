package scan

import (
	"math"

	"github.com/kosquant/krxagent/internal/ohlcv"
)

// BreadthCount holds the market-breadth tallies for one day. Advancers,
// decliners, and unchanged partition the traded universe.
type BreadthCount struct {
	Advancers int
	Decliners int
	Unchanged int
	Traded    int
}

// Breadth tallies advancers, decliners, unchanged, and traded tickers at di.
// A ticker counts as traded when its bar has a finite close and positive
// volume; direction compares against the last traded close within the
// lookback walk, and tickers with no usable prior close land in unchanged.
func Breadth(slab *ohlcv.Slab, di int, tickers []string) BreadthCount {
	var bc BreadthCount
	for _, t := range tickersIn(slab, tickers) {
		series := slab.Series(t)
		b := series[di]
		if !b.Traded() {
			continue
		}
		bc.Traded++

		pj := priorTradedIdx(series, di)
		if pj < 0 || !finite(series[pj].Close) {
			bc.Unchanged++
			continue
		}
		switch prev := series[pj].Close; {
		case b.Close > prev:
			bc.Advancers++
		case b.Close < prev:
			bc.Decliners++
		default:
			bc.Unchanged++
		}
	}
	return bc
}

// Turnover is the total traded value (close × volume, in won) across the
// tickers at di.
func Turnover(slab *ohlcv.Slab, di int, tickers []string) float64 {
	var sum float64
	for _, t := range tickersIn(slab, tickers) {
		b := slab.Series(t)[di]
		if !b.Traded() || !finite(b.Close) {
			continue
		}
		sum += b.Close * b.Volume
	}
	return sum
}

// IndexLevel reads the index close at di; NaN when the pseudo-ticker is
// absent or the day is empty.
func IndexLevel(slab *ohlcv.Slab, di int, indexTicker string) float64 {
	if !slab.Has(indexTicker) {
		return math.NaN()
	}
	b := slab.Series(indexTicker)[di]
	if !finite(b.Close) {
		return math.NaN()
	}
	return b.Close
}

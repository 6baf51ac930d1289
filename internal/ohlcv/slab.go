package ohlcv

import (
	"sort"
	"time"

	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

// Slab is a date-indexed table of daily bars: one sorted date axis shared by
// every ticker, with NaN bars padding the dates a ticker did not trade.
// A Slab is immutable once built and safe for concurrent reads.
type Slab struct {
	dates  []time.Time
	series map[string][]models.Bar
}

// BuildSlab aligns per-ticker bar slices onto a shared sorted date axis.
// Input slices need not be sorted or aligned; dates are compared at KST
// day granularity.
func BuildSlab(perTicker map[string][]models.Bar) *Slab {
	dateSet := make(map[string]time.Time)
	for _, bars := range perTicker {
		for _, b := range bars {
			key := utils.FormatDateKST(b.Date)
			if _, ok := dateSet[key]; !ok {
				dateSet[key] = dayOf(b.Date)
			}
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for _, d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	idx := make(map[string]int, len(dates))
	for i, d := range dates {
		idx[utils.FormatDateKST(d)] = i
	}

	series := make(map[string][]models.Bar, len(perTicker))
	for ticker, bars := range perTicker {
		row := make([]models.Bar, len(dates))
		for i, d := range dates {
			row[i] = models.EmptyBar(d)
		}
		for _, b := range bars {
			if i, ok := idx[utils.FormatDateKST(b.Date)]; ok {
				b.Date = dates[i]
				row[i] = b
			}
		}
		series[ticker] = row
	}

	return &Slab{dates: dates, series: series}
}

// Dates returns the shared date axis in ascending order.
func (s *Slab) Dates() []time.Time { return s.dates }

// Len returns the number of dates on the axis.
func (s *Slab) Len() int { return len(s.dates) }

// Tickers returns the tickers present in the slab in sorted order.
func (s *Slab) Tickers() []string {
	out := make([]string, 0, len(s.series))
	for t := range s.series {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Has reports whether the slab carries a series for the ticker.
func (s *Slab) Has(ticker string) bool {
	_, ok := s.series[ticker]
	return ok
}

// Series returns the date-aligned bars for a ticker, or nil when absent.
func (s *Slab) Series(ticker string) []models.Bar {
	return s.series[ticker]
}

// IndexOf returns the axis position of the given calendar day, or -1.
func (s *Slab) IndexOf(date time.Time) int {
	key := utils.FormatDateKST(date)
	for i, d := range s.dates {
		if utils.FormatDateKST(d) == key {
			return i
		}
	}
	return -1
}

// LastIndexOnOrBefore returns the largest axis position whose date is on or
// before the given day, or -1 when the slab starts later.
func (s *Slab) LastIndexOnOrBefore(date time.Time) int {
	day := dayOf(date)
	for i := len(s.dates) - 1; i >= 0; i-- {
		if !s.dates[i].After(day) {
			return i
		}
	}
	return -1
}

// Bar returns the bar for a ticker on a calendar day.
func (s *Slab) Bar(ticker string, date time.Time) (models.Bar, bool) {
	row, ok := s.series[ticker]
	if !ok {
		return models.Bar{}, false
	}
	i := s.IndexOf(date)
	if i < 0 {
		return models.Bar{}, false
	}
	return row[i], true
}

// Window returns a sub-slab restricted to dates in [from, to] inclusive.
// Series slices are shared with the parent.
func (s *Slab) Window(from, to time.Time) *Slab {
	lo, hi := 0, len(s.dates)
	f, t := dayOf(from), dayOf(to)
	for lo < hi && s.dates[lo].Before(f) {
		lo++
	}
	for hi > lo && s.dates[hi-1].After(t) {
		hi--
	}
	sub := &Slab{
		dates:  s.dates[lo:hi],
		series: make(map[string][]models.Bar, len(s.series)),
	}
	for ticker, row := range s.series {
		sub.series[ticker] = row[lo:hi]
	}
	return sub
}

func dayOf(t time.Time) time.Time {
	t = t.In(utils.KST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, utils.KST)
}

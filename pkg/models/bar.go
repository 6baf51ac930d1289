// Package models defines the shared data types for krxagent: daily bars,
// market identifiers, and the query-parameter record that flows between the
// dialog router, the LLM bridge, and the task handlers.
package models

import (
	"math"
	"time"
)

// Market identifies one of the two KRX boards.
type Market string

const (
	MarketKOSPI  Market = "KOSPI"
	MarketKOSDAQ Market = "KOSDAQ"
)

// Composite index pseudo-tickers. They are valid fetch targets but are not
// part of the equity universe.
const (
	KOSPIIndex  = "^KS11"
	KOSDAQIndex = "^KQ11"
)

// Bar is a single daily OHLCV observation. Missing cells are NaN; a bar with
// NaN close or zero volume is treated as a suspended day by the scans.
type Bar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   float64   `json:"volume"`
}

// EmptyBar returns a bar for the given date with every cell set to NaN.
func EmptyBar(date time.Time) Bar {
	nan := math.NaN()
	return Bar{Date: date, Open: nan, High: nan, Low: nan, Close: nan, AdjClose: nan, Volume: nan}
}

// Traded reports whether the bar represents an actual trading session:
// a finite close and strictly positive volume.
func (b Bar) Traded() bool {
	return !math.IsNaN(b.Close) && !math.IsInf(b.Close, 0) && b.Volume > 0
}

package utils

import (
	"strings"
)

// Yahoo Finance suffixes for the two KRX boards and the composite index
// symbols used as fetchable pseudo-tickers.
const (
	KOSPISuffix  = ".KS"
	KOSDAQSuffix = ".KQ"

	KOSPIIndexTicker  = "^KS11"
	KOSDAQIndexTicker = "^KQ11"
)

// NormalizeTicker trims whitespace and uppercases a user-supplied code.
// Bare six-digit codes are left untouched; the universe catalog decides the
// board suffix.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// IsIndexTicker reports whether the code is one of the composite index
// pseudo-tickers.
func IsIndexTicker(ticker string) bool {
	return ticker == KOSPIIndexTicker || ticker == KOSDAQIndexTicker
}

// IndexTickerFor returns the composite index pseudo-ticker for a market
// name ("KOSPI"/"KOSDAQ", case-insensitive). Unknown markets fall back to
// the KOSPI composite.
func IndexTickerFor(market string) string {
	if strings.EqualFold(market, "KOSDAQ") {
		return KOSDAQIndexTicker
	}
	return KOSPIIndexTicker
}

// MarketOf infers the board from a ticker's suffix. Returns "" for index
// pseudo-tickers and unsuffixed codes.
func MarketOf(ticker string) string {
	switch {
	case strings.HasSuffix(ticker, KOSPISuffix):
		return "KOSPI"
	case strings.HasSuffix(ticker, KOSDAQSuffix):
		return "KOSDAQ"
	default:
		return ""
	}
}

// CodeOf strips the board suffix, leaving the bare listing code.
func CodeOf(ticker string) string {
	ticker = strings.TrimSuffix(ticker, KOSPISuffix)
	return strings.TrimSuffix(ticker, KOSDAQSuffix)
}

// WithSuffix attaches the board suffix for the given market to a bare code.
// Codes that already carry a suffix are returned unchanged.
func WithSuffix(code, market string) string {
	if strings.HasSuffix(code, KOSPISuffix) || strings.HasSuffix(code, KOSDAQSuffix) {
		return code
	}
	if strings.EqualFold(market, "KOSDAQ") {
		return code + KOSDAQSuffix
	}
	return code + KOSPISuffix
}

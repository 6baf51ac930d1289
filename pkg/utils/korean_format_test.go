package utils

import (
	"math"
	"testing"
)

func TestFormatComma(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{72300, "72,300"},
		{1234567, "1,234,567"},
		{-4521000, "-4,521,000"},
	}
	for _, tc := range cases {
		if got := FormatComma(tc.in); got != tc.want {
			t.Errorf("FormatComma(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatWon(t *testing.T) {
	if got := FormatWon(72300); got != "72,300원" {
		t.Errorf("FormatWon(72300) = %q", got)
	}
	if got := FormatWon(72300.4); got != "72,300원" {
		t.Errorf("FormatWon(72300.4) = %q", got)
	}
}

func TestFormatShares(t *testing.T) {
	if got := FormatShares(12345678); got != "12,345,678주" {
		t.Errorf("FormatShares = %q", got)
	}
}

func TestFormatPct(t *testing.T) {
	if got := FormatPct(2.456); got != "+2.46%" {
		t.Errorf("FormatPct(2.456) = %q", got)
	}
	if got := FormatPct(-1.2); got != "-1.20%" {
		t.Errorf("FormatPct(-1.2) = %q", got)
	}
}

func TestFormatIndexLevel(t *testing.T) {
	if got := FormatIndexLevel(2894.625); got != "2,894.62" && got != "2,894.63" {
		t.Errorf("FormatIndexLevel = %q", got)
	}
	if got := FormatIndexLevel(math.NaN()); got != "-" {
		t.Errorf("FormatIndexLevel(NaN) = %q", got)
	}
}

func TestMarketHelpers(t *testing.T) {
	if MarketOf("005930.KS") != "KOSPI" {
		t.Error("005930.KS should be KOSPI")
	}
	if MarketOf("035720.KQ") != "KOSDAQ" {
		t.Error("035720.KQ should be KOSDAQ")
	}
	if MarketOf("^KS11") != "" {
		t.Error("index tickers carry no board")
	}
	if !IsIndexTicker("^KQ11") {
		t.Error("^KQ11 is an index ticker")
	}
	if CodeOf("005930.KS") != "005930" {
		t.Error("CodeOf should strip the suffix")
	}
	if WithSuffix("035720", "KOSDAQ") != "035720.KQ" {
		t.Error("WithSuffix KOSDAQ")
	}
	if IndexTickerFor("kosdaq") != KOSDAQIndexTicker {
		t.Error("IndexTickerFor should be case-insensitive")
	}
}

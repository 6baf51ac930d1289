package scan

import (
	"math"
	"testing"
	"time"

	"github.com/kosquant/krxagent/internal/ohlcv"
	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

func day(n int) time.Time {
	return time.Date(2025, 6, 2, 0, 0, 0, 0, utils.KST).AddDate(0, 0, n)
}

// closeBars builds bars where open, close and adjusted close all equal the
// given closes, one per consecutive day starting at day(0).
func closeBars(closes []float64, volume float64) []models.Bar {
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Date: day(i), Open: c, High: c, Low: c,
			Close: c, AdjClose: c, Volume: volume,
		}
	}
	return bars
}

func slabOf(perTicker map[string][]models.Bar) *ohlcv.Slab {
	return ohlcv.BuildSlab(perTicker)
}

func TestFilterPriceCloseAndVolume(t *testing.T) {
	slab := slabOf(map[string][]models.Bar{
		"A.KS": closeBars([]float64{50000}, 1000),
		"B.KS": closeBars([]float64{150000}, 500),
		"C.KS": closeBars([]float64{80000}, 0), // suspended
	})
	tickers := []string{"A.KS", "B.KS", "C.KS"}

	got := FilterPriceClose(slab, 0, tickers, models.Float(40000), models.Float(100000))
	if len(got) != 1 || got[0] != "A.KS" {
		t.Errorf("price filter = %v", got)
	}

	got = FilterVolume(slab, 0, tickers, models.Float(600), nil)
	if len(got) != 1 || got[0] != "A.KS" {
		t.Errorf("volume filter = %v", got)
	}
}

func TestDayChangePctWalksOverSuspension(t *testing.T) {
	bars := closeBars([]float64{100, 110, 121}, 1000)
	bars[1].Volume = 0 // suspended day, close ignored
	slab := slabOf(map[string][]models.Bar{"A.KS": bars})

	got := DayChangePct(slab.Series("A.KS"), 2)
	if math.Abs(got-21) > 1e-9 {
		t.Errorf("change = %v, want 21 (prior traded close is day 0)", got)
	}
}

func TestDayChangePctNoPriorClose(t *testing.T) {
	slab := slabOf(map[string][]models.Bar{"A.KS": closeBars([]float64{100}, 1000)})
	if got := DayChangePct(slab.Series("A.KS"), 0); !math.IsNaN(got) {
		t.Errorf("change = %v, want NaN", got)
	}
}

func TestRSI(t *testing.T) {
	// Monotone rise: no losses, RSI pegs at 100.
	up := closeBars([]float64{100, 101, 102, 103, 104}, 1000)
	if got := RSI(up, 4, 4); got != 100.0 {
		t.Errorf("all-gain RSI = %v, want 100", got)
	}

	// One +1 and one -1 delta: gains equal losses, RSI 50.
	flat := closeBars([]float64{100, 101, 100}, 1000)
	if got := RSI(flat, 2, 2); math.Abs(got-50) > 1e-9 {
		t.Errorf("balanced RSI = %v, want 50", got)
	}

	// Too shallow.
	if got := RSI(flat, 1, 14); !math.IsNaN(got) {
		t.Errorf("shallow RSI = %v, want NaN", got)
	}
}

func TestVolumeSpikePct(t *testing.T) {
	bars := closeBars([]float64{100, 100, 100, 100}, 100)
	bars[3].Volume = 250
	if got := VolumeSpikePct(bars, 3, 3); math.Abs(got-150) > 1e-9 {
		t.Errorf("spike = %v, want 150", got)
	}

	slab := slabOf(map[string][]models.Bar{"A.KS": bars})
	if got := FilterVolumeSpike(slab, 3, []string{"A.KS"}, 3, 100); len(got) != 1 {
		t.Errorf("spike filter = %v", got)
	}
	if got := FilterVolumeSpike(slab, 3, []string{"A.KS"}, 3, 200); len(got) != 0 {
		t.Errorf("spike filter above threshold = %v", got)
	}
}

func TestMovingAvgDeviationPct(t *testing.T) {
	bars := closeBars([]float64{100, 110}, 1000)
	got := MovingAvgDeviationPct(bars, 1, 2)
	want := (110.0/105.0 - 1) * 100
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("deviation = %v, want %v", got, want)
	}
}

func TestTouchesBollinger(t *testing.T) {
	closes := make([]float64, DefaultBollingerDays)
	for i := range closes {
		closes[i] = 100
	}
	closes[len(closes)-1] = 130
	bars := closeBars(closes, 1000)
	di := len(bars) - 1

	if !TouchesBollinger(bars, di, BandUpper) {
		t.Error("outlier close should touch the upper band")
	}
	if TouchesBollinger(bars, di, BandLower) {
		t.Error("outlier close must not touch the lower band")
	}
	if TouchesBollinger(bars, di-1, BandUpper) {
		t.Error("shallow history should never touch")
	}
}

func TestPeakFilters(t *testing.T) {
	bars := closeBars([]float64{100, 120, 110, 125}, 1000)
	slab := slabOf(map[string][]models.Bar{"A.KS": bars})
	tickers := []string{"A.KS"}

	if got := FilterPeakBreak(slab, 3, tickers, 4); len(got) != 1 {
		t.Errorf("125 is the 4-day high: %v", got)
	}
	if got := FilterPeakBreak(slab, 2, tickers, 3); len(got) != 0 {
		t.Errorf("110 is not the 3-day high: %v", got)
	}
	if got := FilterPeakLow(slab, 0, tickers, 1); len(got) != 1 {
		t.Errorf("single-day window is its own low: %v", got)
	}

	// 110 sits 8.33% off the 120 peak.
	if got := FilterOffPeak(slab, 2, tickers, 3, 5); len(got) != 1 {
		t.Errorf("off-peak 5%%: %v", got)
	}
	if got := FilterOffPeak(slab, 2, tickers, 3, 10); len(got) != 0 {
		t.Errorf("off-peak 10%%: %v", got)
	}
}

func TestCumulativeChangePct(t *testing.T) {
	bars := closeBars([]float64{100, 105, 90, 120}, 1000)
	bars[2].Volume = 0 // hole in the middle changes nothing
	if got := CumulativeChangePct(bars, 0, 3); math.Abs(got-20) > 1e-9 {
		t.Errorf("cumulative = %v, want 20", got)
	}
	if got := CumulativeChangePct(bars, 1, 1); !math.IsNaN(got) {
		t.Errorf("single-point range = %v, want NaN", got)
	}
}

func TestIsConsecutive(t *testing.T) {
	up := closeBars([]float64{100, 101, 103, 108}, 1000)
	if !IsConsecutive(up, 0, 3, DirUp) {
		t.Error("strictly rising run should pass")
	}
	if IsConsecutive(up, 0, 3, DirDown) {
		t.Error("rising run is not a down run")
	}

	// A suspension inside the run is skipped, not a break.
	holed := closeBars([]float64{100, 101, 0, 103}, 1000)
	holed[2].Volume = 0
	if !IsConsecutive(holed, 0, 3, DirUp) {
		t.Error("suspended day should not break the run")
	}

	flat := closeBars([]float64{100, 100, 101}, 1000)
	if IsConsecutive(flat, 0, 2, DirUp) {
		t.Error("a flat day breaks a strict run")
	}
}

func TestCrossDetection(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	closes[20] = 90 // MA5 dips under MA20
	for i := 21; i < 25; i++ {
		closes[i] = 130 // MA5 snaps back over
	}
	slab := slabOf(map[string][]models.Bar{"A.KS": closeBars(closes, 1000)})

	golden, dead := CountCrosses(slab, "A.KS", 20, 24)
	if golden != 1 || dead != 0 {
		t.Fatalf("crosses = %d golden, %d dead; want 1, 0", golden, dead)
	}

	dates := CrossDates(slab, "A.KS", 20, 24, CrossGolden)
	if len(dates) != 1 || !dates[0].Equal(day(21)) {
		t.Errorf("golden cross dates = %v, want [%v]", dates, day(21))
	}

	if got := FilterCross(slab, 20, 24, []string{"A.KS"}, CrossDead); len(got) != 0 {
		t.Errorf("dead-cross filter = %v", got)
	}
	if got := FilterCross(slab, 20, 24, []string{"A.KS"}, CrossBoth); len(got) != 1 {
		t.Errorf("both-sides filter = %v", got)
	}
}

func TestThreePattern(t *testing.T) {
	mk := func(open, close float64, n int) models.Bar {
		return models.Bar{
			Date: day(n), Open: open, High: math.Max(open, close),
			Low: math.Min(open, close), Close: close, AdjClose: close, Volume: 1000,
		}
	}
	white := []models.Bar{mk(100, 105, 0), mk(104, 110, 1), mk(109, 118, 2)}
	slab := slabOf(map[string][]models.Bar{"A.KS": white})

	dates := ThreePatternDates(slab, "A.KS", 0, 2, PatternWhite)
	if len(dates) != 1 || !dates[0].Equal(day(2)) {
		t.Errorf("white pattern dates = %v", dates)
	}
	if got := ThreePatternDates(slab, "A.KS", 0, 2, PatternBlack); len(got) != 0 {
		t.Errorf("black pattern dates = %v", got)
	}
	if got := FilterThreePattern(slab, 2, []string{"A.KS"}, PatternWhite); len(got) != 1 {
		t.Errorf("pattern filter = %v", got)
	}

	// Rising closes but one bearish candle: no pattern.
	mixed := []models.Bar{mk(100, 105, 0), mk(112, 110, 1), mk(109, 118, 2)}
	slab = slabOf(map[string][]models.Bar{"A.KS": mixed})
	if got := ThreePatternDates(slab, "A.KS", 0, 2, PatternWhite); len(got) != 0 {
		t.Errorf("bearish middle candle should break the pattern: %v", got)
	}
}

func TestBreadth(t *testing.T) {
	slab := slabOf(map[string][]models.Bar{
		"UP.KS":   closeBars([]float64{100, 110}, 1000),
		"DOWN.KS": closeBars([]float64{100, 90}, 1000),
		"FLAT.KS": closeBars([]float64{100, 100}, 1000),
		"SUSP.KS": {
			{Date: day(0), Close: 100, AdjClose: 100, Volume: 1000},
			{Date: day(1), Close: 100, AdjClose: 100, Volume: 0},
		},
	})
	tickers := []string{"UP.KS", "DOWN.KS", "FLAT.KS", "SUSP.KS"}

	bc := Breadth(slab, 1, tickers)
	if bc.Advancers != 1 || bc.Decliners != 1 || bc.Unchanged != 1 || bc.Traded != 3 {
		t.Errorf("breadth = %+v", bc)
	}
	if bc.Advancers+bc.Decliners+bc.Unchanged != bc.Traded {
		t.Error("tallies must partition the traded universe")
	}
}

func TestTurnoverAndIndexLevel(t *testing.T) {
	slab := slabOf(map[string][]models.Bar{
		"A.KS":  closeBars([]float64{100}, 10),
		"B.KS":  closeBars([]float64{200}, 5),
		"^KS11": closeBars([]float64{2800.5}, 0),
	})

	if got := Turnover(slab, 0, []string{"A.KS", "B.KS"}); got != 2000 {
		t.Errorf("turnover = %v, want 2000", got)
	}
	if got := IndexLevel(slab, 0, "^KS11"); got != 2800.5 {
		t.Errorf("index level = %v", got)
	}
	if got := IndexLevel(slab, 0, "^KQ11"); !math.IsNaN(got) {
		t.Errorf("missing index = %v, want NaN", got)
	}
}

func TestRankings(t *testing.T) {
	slab := slabOf(map[string][]models.Bar{
		"A.KS": closeBars([]float64{100, 110}, 3000), // +10%
		"B.KS": closeBars([]float64{100, 95}, 5000),  // -5%
		"C.KS": closeBars([]float64{100, 102}, 1000), // +2%
	})
	tickers := []string{"A.KS", "B.KS", "C.KS"}

	vol := TopVolume(slab, 1, tickers, 2)
	if len(vol) != 2 || vol[0].Ticker != "B.KS" || vol[1].Ticker != "A.KS" {
		t.Errorf("top volume = %+v", vol)
	}

	gainers := TopMovers(slab, 1, tickers, 1, true)
	if len(gainers) != 1 || gainers[0].Ticker != "A.KS" {
		t.Errorf("top gainers = %+v", gainers)
	}
	losers := TopMovers(slab, 1, tickers, 1, false)
	if len(losers) != 1 || losers[0].Ticker != "B.KS" {
		t.Errorf("top losers = %+v", losers)
	}

	price := TopPrice(slab, 1, tickers, 3, false)
	if price[0].Ticker != "B.KS" {
		t.Errorf("lowest price first = %+v", price)
	}
}

func TestVolatilityAndBeta(t *testing.T) {
	// A perfectly steady 1% daily drift has zero return dispersion.
	steady := make([]float64, 7)
	steady[0] = 100
	for i := 1; i < len(steady); i++ {
		steady[i] = steady[i-1] * 1.01
	}
	bars := closeBars(steady, 1000)
	if got := Volatility(bars, 6, 5); math.Abs(got) > 1e-9 {
		t.Errorf("volatility = %v, want 0", got)
	}
	if got := Volatility(bars, 2, 5); !math.IsNaN(got) {
		t.Errorf("shallow volatility = %v, want NaN", got)
	}

	// Ticker returns are exactly twice the index returns: beta 2.
	idxRets := []float64{0.01, -0.02, 0.03, 0.01}
	idxCloses := []float64{100}
	tkCloses := []float64{100}
	for _, r := range idxRets {
		idxCloses = append(idxCloses, idxCloses[len(idxCloses)-1]*(1+r))
		tkCloses = append(tkCloses, tkCloses[len(tkCloses)-1]*(1+2*r))
	}
	index := closeBars(idxCloses, 1000)
	ticker := closeBars(tkCloses, 1000)
	if got := Beta(ticker, index, 4, 4); math.Abs(got-2) > 1e-9 {
		t.Errorf("beta = %v, want 2", got)
	}
}

func TestApplyConditionsIntersects(t *testing.T) {
	slab := slabOf(map[string][]models.Bar{
		"A.KS": closeBars([]float64{100, 110}, 3000), // +10%, cheap
		"B.KS": closeBars([]float64{100, 95}, 5000),  // -5%
		"C.KS": closeBars([]float64{500, 550}, 1000), // +10%, pricey
	})
	cond := models.Conditions{
		PctChange:  &models.Range{Min: models.Float(5)},
		PriceClose: &models.Range{Max: models.Float(200)},
	}

	got := ApplyConditions(slab, 1, 1, []string{"A.KS", "B.KS", "C.KS"}, cond)
	if len(got) != 1 || got[0] != "A.KS" {
		t.Errorf("intersection = %v, want [A.KS]", got)
	}
}

func TestMaxLookback(t *testing.T) {
	cases := []struct {
		name string
		cond models.Conditions
		want int
	}{
		{"empty", models.Conditions{}, 0},
		{"pct change", models.Conditions{PctChange: &models.Range{Min: models.Float(1)}}, PriorCloseLookback},
		{"rsi default", models.Conditions{RSI: &models.RSICond{Min: models.Float(70)}}, DefaultRSIWindow},
		{"rsi custom", models.Conditions{RSI: &models.RSICond{Window: models.Int(30)}}, 30},
		{"peak", models.Conditions{PeakBreak: &models.PeakWindow{}}, DefaultPeakPeriodDays},
		{"cross", models.Conditions{Cross: &models.CrossCond{Side: CrossGolden}}, 21},
		{
			"deepest wins",
			models.Conditions{
				RSI:       &models.RSICond{Min: models.Float(70)},
				PeakBreak: &models.PeakWindow{},
			},
			DefaultPeakPeriodDays,
		},
	}
	for _, tc := range cases {
		if got := MaxLookback(tc.cond); got != tc.want {
			t.Errorf("%s: lookback = %d, want %d", tc.name, got, tc.want)
		}
	}
}

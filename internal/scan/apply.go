package scan

import (
	"github.com/kosquant/krxagent/internal/ohlcv"
	"github.com/kosquant/krxagent/pkg/models"
)

// ApplyConditions intersects every present condition leaf over the tickers.
// Point-in-time leaves evaluate at toIdx; range leaves span [fromIdx, toIdx].
// Single-day screens pass fromIdx == toIdx. The rank-order leaf is not a
// screen and is ignored here.
func ApplyConditions(slab *ohlcv.Slab, fromIdx, toIdx int, tickers []string, c models.Conditions) []string {
	out := tickersIn(slab, tickers)
	di := toIdx

	if c.PriceClose.Specified() {
		out = FilterPriceClose(slab, di, out, c.PriceClose.Min, c.PriceClose.Max)
	}
	if c.Volume.Specified() {
		out = FilterVolume(slab, di, out, c.Volume.Min, c.Volume.Max)
	}
	if c.PctChange.Specified() {
		out = FilterPctChange(slab, di, out, c.PctChange.Min, c.PctChange.Max)
	}
	if c.VolumePct.Specified() {
		out = FilterVolumePct(slab, di, out, c.VolumePct.Min, c.VolumePct.Max)
	}
	if c.GapPct.Specified() {
		out = FilterGapPct(slab, di, out, c.GapPct.Min, c.GapPct.Max)
	}
	if c.RSI != nil {
		out = FilterRSI(slab, di, out, intOr(c.RSI.Window, DefaultRSIWindow), c.RSI.Min, c.RSI.Max)
	}
	if c.VolumeSpike != nil && c.VolumeSpike.VolumeRatio.Specified() && c.VolumeSpike.VolumeRatio.Min != nil {
		out = FilterVolumeSpike(slab, di, out,
			intOr(c.VolumeSpike.Window, DefaultSpikeWindow), *c.VolumeSpike.VolumeRatio.Min)
	}
	if c.MovingAvg != nil && c.MovingAvg.DiffPct.Specified() {
		out = FilterMovingAvg(slab, di, out,
			intOr(c.MovingAvg.Window, DefaultMAWindow), c.MovingAvg.DiffPct.Min, c.MovingAvg.DiffPct.Max)
	}
	if c.Bollinger != nil && c.Bollinger.Band != "" {
		out = FilterBollingerTouch(slab, di, out, c.Bollinger.Band)
	}
	if c.PeakBreak != nil {
		out = FilterPeakBreak(slab, di, out, intOr(c.PeakBreak.PeriodDays, DefaultPeakPeriodDays))
	}
	if c.PeakLow != nil {
		out = FilterPeakLow(slab, di, out, intOr(c.PeakLow.PeriodDays, DefaultPeakPeriodDays))
	}
	if c.OffPeak != nil && c.OffPeak.Min != nil {
		out = FilterOffPeak(slab, di, out, intOr(c.OffPeak.PeriodDays, DefaultPeakPeriodDays), *c.OffPeak.Min)
	}

	if c.PctChangeRange.Specified() {
		out = FilterPctChangeRange(slab, fromIdx, toIdx, out, c.PctChangeRange.Min, c.PctChangeRange.Max)
	}
	if c.Consecutive != nil && c.Consecutive.Direction != "" {
		out = FilterConsecutive(slab, fromIdx, toIdx, out, c.Consecutive.Direction)
	}
	if c.Cross != nil && c.Cross.Side != "" {
		out = FilterCross(slab, fromIdx, toIdx, out, c.Cross.Side)
	}
	if c.ThreePattern != nil && c.ThreePattern.Color != "" {
		out = FilterThreePattern(slab, di, out, c.ThreePattern.Color)
	}

	return out
}

// MaxLookback is the deepest pre-range history, in trading days, that the
// present condition leaves need before the scan window starts. The data
// layer extends its fetch by this many trading days so indicators are warm
// on day one.
func MaxLookback(c models.Conditions) int {
	depth := 0
	bump := func(d int) {
		if d > depth {
			depth = d
		}
	}

	if c.PctChange.Specified() || c.VolumePct.Specified() || c.GapPct.Specified() {
		bump(PriorCloseLookback)
	}
	if c.RSI != nil {
		bump(intOr(c.RSI.Window, DefaultRSIWindow))
	}
	if c.VolumeSpike != nil {
		bump(intOr(c.VolumeSpike.Window, DefaultSpikeWindow))
	}
	if c.MovingAvg != nil {
		bump(intOr(c.MovingAvg.Window, DefaultMAWindow))
	}
	if c.Bollinger != nil {
		bump(DefaultBollingerDays)
	}
	if c.PeakBreak != nil {
		bump(intOr(c.PeakBreak.PeriodDays, DefaultPeakPeriodDays))
	}
	if c.PeakLow != nil {
		bump(intOr(c.PeakLow.PeriodDays, DefaultPeakPeriodDays))
	}
	if c.OffPeak != nil {
		bump(intOr(c.OffPeak.PeriodDays, DefaultPeakPeriodDays))
	}
	if c.Cross != nil {
		// The slow MA needs a full window plus a prior diff to flip against.
		bump(crossSlowWindow + 1)
	}
	if c.ThreePattern != nil {
		bump(2)
	}
	return depth
}

func intOr(p *int, def int) int {
	if p != nil && *p > 0 {
		return *p
	}
	return def
}

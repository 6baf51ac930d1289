package models

import (
	"encoding/json"
	"strings"
)

// Conditions is the closed set of screen leaves a search task may carry.
// Each leaf is independently present (non-nil) and independently partially
// specified; the dialog checker walks the present leaves and reports the
// dotted paths of any holes (e.g. "moving_avg.diff_pct.min").
type Conditions struct {
	PriceClose     *Range          `json:"price_close,omitempty"`
	Volume         *Range          `json:"volume,omitempty"`
	PctChange      *Range          `json:"pct_change,omitempty"`
	VolumePct      *Range          `json:"volume_pct,omitempty"`
	PctChangeRange *Range          `json:"pct_change_range,omitempty"`
	GapPct         *Range          `json:"gap_pct,omitempty"`
	RSI            *RSICond        `json:"RSI,omitempty"`
	VolumeSpike    *VolumeSpike    `json:"volume_spike,omitempty"`
	MovingAvg      *MovingAvgCond  `json:"moving_avg,omitempty"`
	Bollinger      *BollingerTouch `json:"bollinger_touch,omitempty"`
	PeakBreak      *PeakWindow     `json:"peak_break,omitempty"`
	PeakLow        *PeakWindow     `json:"peak_low,omitempty"`
	OffPeak        *OffPeak        `json:"off_peak,omitempty"`
	Cross          *CrossCond      `json:"cross,omitempty"`
	Consecutive    *ConsecutiveDir `json:"consecutive_change,omitempty"`
	ThreePattern   *PatternColor   `json:"three_pattern,omitempty"`
	Order          *RankOrder      `json:"order,omitempty"`
}

// Range is a half-open or closed numeric interval; nil bounds are absent.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Specified reports whether at least one bound is present.
func (r *Range) Specified() bool {
	return r != nil && (r.Min != nil || r.Max != nil)
}

// RSICond screens by RSI level; Window defaults to 14 when nil.
type RSICond struct {
	Window *int     `json:"window,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// VolumeSpike screens for volume above the trailing-window average.
type VolumeSpike struct {
	Window      *int   `json:"window,omitempty"`
	VolumeRatio *Range `json:"volume_ratio,omitempty"`
}

// MovingAvgCond screens by percent deviation from the N-day moving average.
type MovingAvgCond struct {
	Window  *int   `json:"window,omitempty"`
	DiffPct *Range `json:"diff_pct,omitempty"`
}

// BollingerTouch selects the touched band: "upper" or "lower". An empty
// Band marks a leaf the user requested but has not yet qualified.
type BollingerTouch struct {
	Band string `json:"band,omitempty"`
}

// PeakWindow parameterises the N-day high/low screens.
type PeakWindow struct {
	PeriodDays *int `json:"period_days,omitempty"`
}

// OffPeak screens for drawdown of at least Min percent from the
// PeriodDays-day peak.
type OffPeak struct {
	PeriodDays *int     `json:"period_days,omitempty"`
	Min        *float64 `json:"min,omitempty"`
}

// CrossCond selects MA5/MA20 crossings: "golden", "dead" or "both".
type CrossCond struct {
	Side string `json:"side,omitempty"`
}

// ConsecutiveDir screens for monotone close runs: "up" or "down".
type ConsecutiveDir struct {
	Direction string `json:"direction,omitempty"`
}

// PatternColor selects a three-candle pattern: "white" or "black".
type PatternColor struct {
	Color string `json:"color,omitempty"`
}

// RankOrder selects ranking direction for bidirectional metrics: "high" or
// "low".
type RankOrder struct {
	Direction string `json:"direction,omitempty"`
}

// The single-field leaves appear in the wild both as bare strings
// ("cross": "golden") and as objects ("cross": {"side": "golden"}); accept
// both and canonicalise on the struct form.

func unmarshalStringOr(data []byte, field string) (string, bool) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err == nil {
		if v, ok := m[field].(string); ok {
			return strings.TrimSpace(v), true
		}
		return "", true // present but unqualified
	}
	return "", false
}

// UnmarshalJSON accepts "golden" or {"side": "golden"}.
func (c *CrossCond) UnmarshalJSON(data []byte) error {
	if v, ok := unmarshalStringOr(data, "side"); ok {
		c.Side = v
	}
	return nil
}

// UnmarshalJSON accepts "upper" or {"band": "upper"}.
func (b *BollingerTouch) UnmarshalJSON(data []byte) error {
	if v, ok := unmarshalStringOr(data, "band"); ok {
		b.Band = v
	}
	return nil
}

// UnmarshalJSON accepts "up" or {"direction": "up"}.
func (d *ConsecutiveDir) UnmarshalJSON(data []byte) error {
	if v, ok := unmarshalStringOr(data, "direction"); ok {
		d.Direction = v
	}
	return nil
}

// UnmarshalJSON accepts "white" or {"color": "white"}.
func (p *PatternColor) UnmarshalJSON(data []byte) error {
	if v, ok := unmarshalStringOr(data, "color"); ok {
		p.Color = v
	}
	return nil
}

// UnmarshalJSON accepts "high" or {"direction": "high"}.
func (o *RankOrder) UnmarshalJSON(data []byte) error {
	if v, ok := unmarshalStringOr(data, "direction"); ok {
		o.Direction = v
	}
	return nil
}

// Empty reports whether no leaf is present at all.
func (c Conditions) Empty() bool {
	return c == (Conditions{})
}

// HasRangeLeaf reports whether any leaf that needs a date range is present
// (cumulative return, consecutive run, cross, three-candle pattern).
func (c Conditions) HasRangeLeaf() bool {
	return c.PctChangeRange != nil || c.Consecutive != nil || c.Cross != nil || c.ThreePattern != nil
}

// Clone deep-copies every present leaf.
func (c Conditions) Clone() Conditions {
	out := Conditions{}
	out.PriceClose = cloneRange(c.PriceClose)
	out.Volume = cloneRange(c.Volume)
	out.PctChange = cloneRange(c.PctChange)
	out.VolumePct = cloneRange(c.VolumePct)
	out.PctChangeRange = cloneRange(c.PctChangeRange)
	out.GapPct = cloneRange(c.GapPct)
	if c.RSI != nil {
		v := RSICond{Window: cloneInt(c.RSI.Window), Min: cloneFloat(c.RSI.Min), Max: cloneFloat(c.RSI.Max)}
		out.RSI = &v
	}
	if c.VolumeSpike != nil {
		v := VolumeSpike{Window: cloneInt(c.VolumeSpike.Window), VolumeRatio: cloneRange(c.VolumeSpike.VolumeRatio)}
		out.VolumeSpike = &v
	}
	if c.MovingAvg != nil {
		v := MovingAvgCond{Window: cloneInt(c.MovingAvg.Window), DiffPct: cloneRange(c.MovingAvg.DiffPct)}
		out.MovingAvg = &v
	}
	if c.Bollinger != nil {
		v := *c.Bollinger
		out.Bollinger = &v
	}
	if c.PeakBreak != nil {
		v := PeakWindow{PeriodDays: cloneInt(c.PeakBreak.PeriodDays)}
		out.PeakBreak = &v
	}
	if c.PeakLow != nil {
		v := PeakWindow{PeriodDays: cloneInt(c.PeakLow.PeriodDays)}
		out.PeakLow = &v
	}
	if c.OffPeak != nil {
		v := OffPeak{PeriodDays: cloneInt(c.OffPeak.PeriodDays), Min: cloneFloat(c.OffPeak.Min)}
		out.OffPeak = &v
	}
	if c.Cross != nil {
		v := *c.Cross
		out.Cross = &v
	}
	if c.Consecutive != nil {
		v := *c.Consecutive
		out.Consecutive = &v
	}
	if c.ThreePattern != nil {
		v := *c.ThreePattern
		out.ThreePattern = &v
	}
	if c.Order != nil {
		v := *c.Order
		out.Order = &v
	}
	return out
}

func cloneRange(r *Range) *Range {
	if r == nil {
		return nil
	}
	return &Range{Min: cloneFloat(r.Min), Max: cloneFloat(r.Max)}
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

// Float returns a pointer to v; a convenience for building condition trees.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

package dialog

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

// applySlots writes the slot values the fill operation returned into the
// pending record. Flat slots land on the record itself; dotted paths walk
// into the conditions tree, creating leaves as needed. Values that do not
// coerce to the slot's type are dropped rather than stored broken.
func applySlots(p *models.Params, filled map[string]any) {
	for slot, value := range filled {
		applySlot(p, slot, value)
	}
}

func applySlot(p *models.Params, slot string, value any) {
	switch slot {
	case "date":
		if d := asISODate(value); d != "" {
			p.Date = d
		}
	case "date_from":
		if d := asISODate(value); d != "" {
			p.DateFrom = d
		}
	case "date_to":
		if d := asISODate(value); d != "" {
			p.DateTo = d
		}
	case "tickers":
		p.Tickers = models.DedupTickers(p.Tickers, toStrings(value))
	case "metrics":
		if vs := toStrings(value); len(vs) > 0 {
			p.Metrics = vs
		}
	case "market":
		if m := asMarket(value); m != "" {
			p.Market = m
		}
	case "rank_n":
		if n, ok := toInt(value); ok && n >= 1 {
			p.RankN = n
		}
	case "conditions":
		applyConditionsObject(p, value)
	default:
		applyConditionSlot(&p.Conditions, slot, value)
	}
}

// applyConditionsObject handles the whole-tree slot asked when a search had
// no conditions at all; an existing tree is never replaced.
func applyConditionsObject(p *models.Params, value any) {
	m, ok := value.(map[string]any)
	if !ok || !p.Conditions.Empty() {
		return
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	var c models.Conditions
	if json.Unmarshal(raw, &c) == nil {
		p.Conditions = c
	}
}

// applyConditionSlot writes one dotted path into the conditions tree. The
// path vocabulary is exactly what the checker emits.
func applyConditionSlot(c *models.Conditions, path string, value any) {
	if f, ok := toFloat(value); ok {
		switch path {
		case "volume.min":
			ensureRange(&c.Volume).Min = &f
		case "volume.max":
			ensureRange(&c.Volume).Max = &f
		case "price_close.min":
			ensureRange(&c.PriceClose).Min = &f
		case "price_close.max":
			ensureRange(&c.PriceClose).Max = &f
		case "pct_change.min":
			ensureRange(&c.PctChange).Min = &f
		case "pct_change.max":
			ensureRange(&c.PctChange).Max = &f
		case "volume_pct.min":
			ensureRange(&c.VolumePct).Min = &f
		case "volume_pct.max":
			ensureRange(&c.VolumePct).Max = &f
		case "gap_pct.min":
			ensureRange(&c.GapPct).Min = &f
		case "gap_pct.max":
			ensureRange(&c.GapPct).Max = &f
		case "pct_change_range.min":
			ensureRange(&c.PctChangeRange).Min = &f
		case "pct_change_range.max":
			ensureRange(&c.PctChangeRange).Max = &f
		case "RSI.min":
			ensureRSI(c).Min = &f
		case "RSI.max":
			ensureRSI(c).Max = &f
		case "RSI.window":
			ensureRSI(c).Window = models.Int(int(f))
		case "volume_spike.window":
			ensureSpike(c).Window = models.Int(int(f))
		case "volume_spike.volume_ratio.min":
			ensureRange(&ensureSpike(c).VolumeRatio).Min = &f
		case "moving_avg.window":
			ensureMovingAvg(c).Window = models.Int(int(f))
		case "moving_avg.diff_pct.min":
			ensureRange(&ensureMovingAvg(c).DiffPct).Min = &f
		case "moving_avg.diff_pct.max":
			ensureRange(&ensureMovingAvg(c).DiffPct).Max = &f
		case "peak_break.period_days":
			ensurePeak(&c.PeakBreak).PeriodDays = models.Int(int(f))
		case "peak_low.period_days":
			ensurePeak(&c.PeakLow).PeriodDays = models.Int(int(f))
		case "off_peak.period_days":
			ensureOffPeak(c).PeriodDays = models.Int(int(f))
		case "off_peak.min":
			ensureOffPeak(c).Min = &f
		}
		return
	}

	s := asWord(value)
	if s == "" {
		return
	}
	switch path {
	case "bollinger_touch":
		if band := asBand(s); band != "" {
			if c.Bollinger == nil {
				c.Bollinger = &models.BollingerTouch{}
			}
			c.Bollinger.Band = band
		}
	case "cross":
		if side := asCrossSide(s); side != "" {
			if c.Cross == nil {
				c.Cross = &models.CrossCond{}
			}
			c.Cross.Side = side
		}
	case "consecutive_change":
		if dir := asRunDirection(s); dir != "" {
			if c.Consecutive == nil {
				c.Consecutive = &models.ConsecutiveDir{}
			}
			c.Consecutive.Direction = dir
		}
	case "three_pattern":
		if color := asPatternColor(s); color != "" {
			if c.ThreePattern == nil {
				c.ThreePattern = &models.PatternColor{}
			}
			c.ThreePattern.Color = color
		}
	}
}

// mergeFollowUp folds a re-parsed reply into the pending record: tickers
// accumulate, scalar slots only land where the pending record is empty, and
// the task never changes mid-session. An already-populated conditions tree
// is kept whole so a stray re-parse cannot graft unrelated leaves onto it.
func mergeFollowUp(p, follow *models.Params) {
	if follow == nil {
		return
	}
	p.Tickers = models.DedupTickers(p.Tickers, follow.Tickers)
	if p.Date == "" {
		p.Date = follow.Date
	}
	if p.DateFrom == "" {
		p.DateFrom = follow.DateFrom
	}
	if p.DateTo == "" {
		p.DateTo = follow.DateTo
	}
	if p.Market == "" {
		p.Market = follow.Market
	}
	if len(p.Metrics) == 0 && len(follow.Metrics) > 0 {
		p.Metrics = append([]string(nil), follow.Metrics...)
	}
	if p.RankN < 1 {
		p.RankN = follow.RankN
	}
	if p.Conditions.Empty() {
		p.Conditions = follow.Conditions.Clone()
	}
}

// normalizeDateOrder keeps date_from ≤ date_to after merges; ISO strings
// order lexicographically.
func normalizeDateOrder(p *models.Params) {
	if p.DateFrom != "" && p.DateTo != "" && p.DateFrom > p.DateTo {
		p.DateFrom, p.DateTo = p.DateTo, p.DateFrom
	}
}

// --- ensure helpers ---

func ensureRange(pp **models.Range) *models.Range {
	if *pp == nil {
		*pp = &models.Range{}
	}
	return *pp
}

func ensureRSI(c *models.Conditions) *models.RSICond {
	if c.RSI == nil {
		c.RSI = &models.RSICond{}
	}
	return c.RSI
}

func ensureSpike(c *models.Conditions) *models.VolumeSpike {
	if c.VolumeSpike == nil {
		c.VolumeSpike = &models.VolumeSpike{}
	}
	return c.VolumeSpike
}

func ensureMovingAvg(c *models.Conditions) *models.MovingAvgCond {
	if c.MovingAvg == nil {
		c.MovingAvg = &models.MovingAvgCond{}
	}
	return c.MovingAvg
}

func ensurePeak(pp **models.PeakWindow) *models.PeakWindow {
	if *pp == nil {
		*pp = &models.PeakWindow{}
	}
	return *pp
}

func ensureOffPeak(c *models.Conditions) *models.OffPeak {
	if c.OffPeak == nil {
		c.OffPeak = &models.OffPeak{}
	}
	return c.OffPeak
}

// --- value coercion ---

// Replies carry units ("20일", "150%"); take the leading signed decimal.
var leadingNumber = regexp.MustCompile(`^-?[0-9]+(?:\.[0-9]+)?`)

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		if m := leadingNumber.FindString(strings.TrimSpace(t)); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s := asWord(e); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return nil
}

func asWord(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asISODate(v any) string {
	s := asWord(v)
	if s == "" {
		return ""
	}
	if _, err := utils.ParseDateKST(s); err != nil {
		return ""
	}
	return s
}

func asMarket(v any) models.Market {
	switch strings.ToUpper(asWord(v)) {
	case "KOSPI", "코스피":
		return models.MarketKOSPI
	case "KOSDAQ", "코스닥":
		return models.MarketKOSDAQ
	default:
		return ""
	}
}

func asBand(s string) string {
	switch s {
	case "upper", "상단", "위":
		return "upper"
	case "lower", "하단", "아래":
		return "lower"
	default:
		return ""
	}
}

func asCrossSide(s string) string {
	switch s {
	case "golden", "골든", "골든크로스":
		return "golden"
	case "dead", "데드", "데드크로스":
		return "dead"
	case "both", "둘다", "양쪽", "모두":
		return "both"
	default:
		return ""
	}
}

func asRunDirection(s string) string {
	switch s {
	case "up", "상승":
		return "up"
	case "down", "하락":
		return "down"
	default:
		return ""
	}
}

func asPatternColor(s string) string {
	switch s {
	case "white", models.MetricThreeWhite:
		return "white"
	case "black", models.MetricThreeBlack:
		return "black"
	default:
		return ""
	}
}

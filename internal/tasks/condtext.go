package tasks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

// describeConditions renders the filled condition leaves as the Korean
// phrases the search answers restate ("종가가 50,000원 이상", "RSI가 70
// 이상인", ...). Only fully-specified leaves appear; the dialog checker
// guarantees there are no holes by the time a handler runs.
func describeConditions(c models.Conditions) string {
	var parts []string
	add := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}

	add(rangeText("등락률이", c.PctChange, "%"))
	add(rangeText("거래량이 전날대비", c.VolumePct, "%"))
	if c.Volume.Specified() && c.Volume.Min != nil {
		add(fmt.Sprintf("거래량이 %s 이상", utils.FormatShares(*c.Volume.Min)))
	}
	add(wonRangeText("종가가", c.PriceClose))
	add(rangeText("갭이", c.GapPct, "%"))
	if c.RSI != nil {
		if c.RSI.Min != nil {
			add(fmt.Sprintf("RSI가 %s 이상", trimNum(*c.RSI.Min)))
		}
		if c.RSI.Max != nil {
			add(fmt.Sprintf("RSI가 %s 이하", trimNum(*c.RSI.Max)))
		}
	}
	if c.VolumeSpike != nil && c.VolumeSpike.VolumeRatio != nil && c.VolumeSpike.VolumeRatio.Min != nil {
		win := 0
		if c.VolumeSpike.Window != nil {
			win = *c.VolumeSpike.Window
		}
		add(fmt.Sprintf("거래량이 %d일 평균 대비 %s%% 이상 급증한", win, trimNum(*c.VolumeSpike.VolumeRatio.Min)))
	}
	if c.MovingAvg != nil && c.MovingAvg.Window != nil && c.MovingAvg.DiffPct.Specified() {
		win := *c.MovingAvg.Window
		if c.MovingAvg.DiffPct.Min != nil {
			v := *c.MovingAvg.DiffPct.Min
			add(fmt.Sprintf("종가가 %d일 이동평균보다 %s%% 이상 %s", win, trimNum(abs(v)), upDown(v)))
		} else if c.MovingAvg.DiffPct.Max != nil {
			v := *c.MovingAvg.DiffPct.Max
			add(fmt.Sprintf("종가가 %d일 이동평균보다 %s%% 이하 %s", win, trimNum(abs(v)), upDown(v)))
		}
	}
	if c.Bollinger != nil {
		switch c.Bollinger.Band {
		case "upper":
			add("볼린저 밴드 상단에 터치한")
		case "lower":
			add("볼린저 밴드 하단에 터치한")
		}
	}
	if c.PeakBreak != nil && c.PeakBreak.PeriodDays != nil {
		add(fmt.Sprintf("%d일 신고가를 돌파한", *c.PeakBreak.PeriodDays))
	}
	if c.PeakLow != nil && c.PeakLow.PeriodDays != nil {
		add(fmt.Sprintf("%d일 신저가를 갱신한", *c.PeakLow.PeriodDays))
	}
	if c.OffPeak != nil && c.OffPeak.PeriodDays != nil && c.OffPeak.Min != nil {
		add(fmt.Sprintf("%d일 고점 대비 %s%% 이상 하락한", *c.OffPeak.PeriodDays, trimNum(*c.OffPeak.Min)))
	}
	add(rangeText("누적 수익률이", c.PctChangeRange, "%"))
	if c.Consecutive != nil {
		switch c.Consecutive.Direction {
		case "up":
			add("연속 상승한")
		case "down":
			add("연속 하락한")
		}
	}
	if c.Cross != nil && c.Cross.Side != "" {
		add(crossLabel(c.Cross.Side) + "가 발생한")
	}
	if c.ThreePattern != nil && c.ThreePattern.Color != "" {
		label := models.MetricThreeWhite
		if c.ThreePattern.Color == "black" {
			label = models.MetricThreeBlack
		}
		add(label + "이 발생한")
	}

	if len(parts) == 0 {
		return "조건에 맞는"
	}
	sort.Strings(parts)
	return strings.Join(parts, " 및 ")
}

// rangeText renders "{label} {min}{unit} 이상 {max}{unit} 이하".
func rangeText(label string, r *models.Range, unit string) string {
	if !r.Specified() {
		return ""
	}
	switch {
	case r.Min != nil && r.Max != nil:
		return fmt.Sprintf("%s %s%s 이상 %s%s 이하", label, trimNum(*r.Min), unit, trimNum(*r.Max), unit)
	case r.Min != nil:
		return fmt.Sprintf("%s %s%s 이상", label, trimNum(*r.Min), unit)
	default:
		return fmt.Sprintf("%s %s%s 이하", label, trimNum(*r.Max), unit)
	}
}

// wonRangeText is rangeText with comma-grouped won amounts.
func wonRangeText(label string, r *models.Range) string {
	if !r.Specified() {
		return ""
	}
	switch {
	case r.Min != nil && r.Max != nil:
		return fmt.Sprintf("%s %s 이상 %s 이하", label, utils.FormatWon(*r.Min), utils.FormatWon(*r.Max))
	case r.Min != nil:
		return fmt.Sprintf("%s %s 이상", label, utils.FormatWon(*r.Min))
	default:
		return fmt.Sprintf("%s %s 이하", label, utils.FormatWon(*r.Max))
	}
}

// trimNum drops the trailing zeros of a threshold so prompts read "5" and
// "2.5" rather than "5.000000".
func trimNum(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func upDown(v float64) string {
	if v >= 0 {
		return "높은"
	}
	return "낮은"
}

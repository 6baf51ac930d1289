package dialog

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kosquant/krxagent/pkg/models"
)

// verdict is one checker outcome: either ready for dispatch, or a follow-up
// prompt plus the slot paths it asks the user to fill.
type verdict struct {
	ready   bool
	prompt  string
	missing []string
}

func ready() verdict {
	return verdict{ready: true}
}

func ask(prompt string, missing ...string) verdict {
	return verdict{prompt: prompt, missing: missing}
}

// check computes the slots p's task still requires and synthesizes the
// Korean follow-up sentence asking for them. Condition-tree holes are
// reported as dotted paths ("moving_avg.diff_pct.min"); the prompt restates
// what is already understood so the user sees the partial interpretation.
func check(p *models.Params) verdict {
	switch p.Task {
	case models.TaskSimpleLookup:
		return checkSimpleLookup(p)
	case models.TaskMarketRank:
		return checkMarketRank(p)
	case models.TaskAdvancersCount, models.TaskDeclinersCount, models.TaskTradedCount:
		return checkBreadthCount(p)
	case models.TaskStockSearch:
		return checkStockSearch(p)
	case models.TaskCountSearch:
		return checkEventSearch(p, "횟수")
	case models.TaskDateSearch:
		return checkEventSearch(p, "날짜")
	default:
		return ready()
	}
}

func checkSimpleLookup(p *models.Params) verdict {
	onlyIndex := len(p.Metrics) > 0 && metricsSubset(p.Metrics, models.MetricIndex, models.MetricTurnover)

	var miss []string
	if p.Date == "" {
		miss = append(miss, "date")
	}
	if !onlyIndex && len(p.Tickers) == 0 {
		miss = append(miss, "tickers")
	}
	if len(p.Metrics) == 0 {
		miss = append(miss, "metrics")
	}
	if hasMetric(p.Metrics, models.MetricIndex) && p.Market == "" {
		miss = append(miss, "market")
	}
	if len(miss) == 0 {
		return ready()
	}

	date := p.Date
	if date == "" {
		date = "해당 날짜"
	}
	tickers := joinKo(p.Tickers)
	metrics := joinKo(p.Metrics)

	switch strings.Join(miss, "+") {
	case "date":
		return ask(fmt.Sprintf("어떤 날짜의 %s %s를 알려 드릴까요?", tickers, metrics), miss...)
	case "tickers":
		return ask(fmt.Sprintf("%s에 어떤 종목의 %s를 알려 드릴까요?", date, metrics), miss...)
	case "metrics":
		return ask(fmt.Sprintf("%s에 %s의 어떤 지표(예: 종가·시가·거래량)를 원하시나요?", date, tickers), miss...)
	case "market":
		return ask(fmt.Sprintf("%s에 어느 시장(KOSPI·KOSDAQ)의 지수를 알려 드릴까요?", date), miss...)
	case "date+tickers":
		return ask(fmt.Sprintf("어떤 날짜에 어떤 종목의 %s를 알려 드릴까요?", metrics), miss...)
	case "date+metrics":
		return ask(fmt.Sprintf("어떤 날짜에 %s의 어떤 지표(예: 종가·시가·거래량)를 알려 드릴까요?", tickers), miss...)
	case "tickers+metrics":
		return ask(fmt.Sprintf("%s의 어떤 종목의 어떤 지표(예: 종가·시가·거래량)를 알려 드릴까요?", date), miss...)
	case "date+market":
		return ask("어떤 날짜에 어떤 시장(KOSPI·KOSDAQ)의 지수를 알려 드릴까요?", miss...)
	default:
		return ask("어떤 날짜에 어떤 종목의 어떤 지표를 알려 드릴까요?", miss...)
	}
}

// Metrics ranked in one natural direction only; 변동성/베타 need the order
// sub-field to pick 높은/낮은.
var bidirectionalMetrics = map[string]bool{
	models.MetricVolatility: true,
	models.MetricBeta:       true,
}

func checkMarketRank(p *models.Params) verdict {
	needDate := p.Date == ""
	needMetrics := len(p.Metrics) == 0
	if !needDate && !needMetrics {
		return ready()
	}

	metric := ""
	if len(p.Metrics) > 0 {
		metric = p.Metrics[0]
	}
	orderTxt := "높은"
	if p.Conditions.Order != nil && p.Conditions.Order.Direction == "low" {
		orderTxt = "낮은"
	}
	n := p.RankN
	if n < 1 {
		n = 1
	}

	switch {
	case needDate && needMetrics:
		if n == 1 {
			return ask("어떤 날짜에 어떤 지표가 가장 높은 종목을 알려 드릴까요?", "date", "metrics")
		}
		return ask(fmt.Sprintf("어떤 날짜에 어떤 지표가 높은 %d개의 종목을 알려 드릴까요?", n), "date", "metrics")
	case needDate:
		var sentence string
		switch {
		case bidirectionalMetrics[metric] && n == 1:
			sentence = fmt.Sprintf("어떤 날짜 기준으로 %s이 가장 %s 종목을 알려 드릴까요?", metric, orderTxt)
		case bidirectionalMetrics[metric]:
			sentence = fmt.Sprintf("어떤 날짜 기준으로 %s이 %s %d개의 종목을 알려 드릴까요?", metric, orderTxt, n)
		case n == 1:
			sentence = fmt.Sprintf("어떤 날짜 기준으로 %s이 가장 높은 종목을 알려 드릴까요?", metric)
		default:
			sentence = fmt.Sprintf("어떤 날짜 기준으로 %s이 높은 %d개의 종목을 알려 드릴까요?", metric, n)
		}
		return ask(sentence, "date")
	default:
		if n == 1 {
			return ask(fmt.Sprintf("%s에 어떤 지표가 가장 %s 종목을 알려 드릴까요?", p.Date, orderTxt), "metrics")
		}
		return ask(fmt.Sprintf("%s에 어떤 지표가 %s %d개의 종목을 알려 드릴까요?", p.Date, orderTxt, n), "metrics")
	}
}

func checkBreadthCount(p *models.Params) verdict {
	if p.Date != "" {
		return ready()
	}
	var what string
	switch p.Task {
	case models.TaskAdvancersCount:
		what = "상승한 종목 수"
	case models.TaskDeclinersCount:
		what = "하락한 종목 수"
	default:
		what = "거래된 종목 수"
	}
	return ask(fmt.Sprintf("어느 날짜 기준으로 %s를 알려 드릴까요?", what), "date")
}

func checkStockSearch(p *models.Params) verdict {
	cond := p.Conditions
	if cond.Empty() {
		if p.Date == "" {
			return ask("어떤 날짜에 어떤 조건의 종목을 알려 드릴까요?", "date", "conditions")
		}
		return ask(fmt.Sprintf("%s에 어떤 조건의 종목을 알려 드릴까요?", p.Date), "conditions")
	}

	merged, holes := describeSearchLeaves(cond)

	// Range leaves switch the task onto the period axis, mirroring the
	// handler's dispatch.
	if cond.HasRangeLeaf() {
		switch {
		case p.DateFrom == "" && p.DateTo == "":
			return ask(fmt.Sprintf("언제부터 언제까지의 %s 종목을 알려 드릴까요?", merged),
				append([]string{"date_from", "date_to"}, holes...)...)
		case p.DateFrom == "":
			return ask(fmt.Sprintf("언제부터 %s까지의 %s 종목을 알려 드릴까요?", p.DateTo, merged),
				append([]string{"date_from"}, holes...)...)
		case p.DateTo == "":
			return ask(fmt.Sprintf("%s부터 언제까지의 %s 종목을 알려 드릴까요?", p.DateFrom, merged),
				append([]string{"date_to"}, holes...)...)
		case len(holes) > 0:
			return ask(fmt.Sprintf("%s~%s 기간에 %s 종목을 알려 드릴까요?", p.DateFrom, p.DateTo, merged), holes...)
		}
		return ready()
	}

	switch {
	case p.Date == "":
		return ask(fmt.Sprintf("어떤 날짜에 %s 종목을 알려 드릴까요?", merged),
			append([]string{"date"}, holes...)...)
	case len(holes) > 0:
		return ask(fmt.Sprintf("%s에 %s 종목을 알려 드릴까요?", p.Date, merged), holes...)
	}
	return ready()
}

func checkEventSearch(p *models.Params, what string) verdict {
	needFrom := p.DateFrom == ""
	needTo := p.DateTo == ""
	needTickers := len(p.Tickers) == 0
	if !needFrom && !needTo && !needTickers {
		return ready()
	}

	desc := eventDesc(p.Conditions)
	subject := joinKo(p.Tickers)
	if subject == "" {
		subject = "어떤 종목의"
	}

	switch {
	case needFrom && needTo:
		miss := []string{"date_from", "date_to"}
		if needTickers {
			miss = append(miss, "tickers")
		}
		return ask(fmt.Sprintf("언제부터 언제까지의 %s %s %s를 알려 드릴까요?", subject, desc, what), miss...)
	case needFrom:
		miss := []string{"date_from"}
		if needTickers {
			miss = append(miss, "tickers")
		}
		return ask(fmt.Sprintf("언제부터 %s까지의 %s %s %s를 알려 드릴까요?", p.DateTo, subject, desc, what), miss...)
	case needTo:
		miss := []string{"date_to"}
		if needTickers {
			miss = append(miss, "tickers")
		}
		return ask(fmt.Sprintf("%s부터 언제까지의 %s %s %s를 알려 드릴까요?", p.DateFrom, subject, desc, what), miss...)
	default:
		return ask(fmt.Sprintf("%s~%s 기간에 어떤 종목의 %s %s를 알려 드릴까요?", p.DateFrom, p.DateTo, desc, what), "tickers")
	}
}

// eventDesc names the event a count/date search is looking for. The pattern
// leaf wins over the cross leaf, like the handler; with neither present the
// handler reports both cross sides, so the prompt says so.
func eventDesc(c models.Conditions) string {
	if c.ThreePattern != nil {
		switch c.ThreePattern.Color {
		case "white", models.MetricThreeWhite:
			return "적삼병이 발생한"
		case "black", models.MetricThreeBlack:
			return "흑삼병이 발생한"
		}
	}
	side := ""
	if c.Cross != nil {
		side = c.Cross.Side
	}
	switch side {
	case "golden":
		return "골든크로스가 발생한"
	case "dead":
		return "데드크로스가 발생한"
	default:
		return "골든크로스 또는 데드크로스가 발생한"
	}
}

// --- Condition-leaf phrase synthesis ---

// leafText collects the restated understanding of the condition tree: one
// or more phrases per present leaf (filled parts rendered with their values,
// holes rendered with 몇/며칠 placeholders) plus the dotted paths of the
// holes.
type leafText struct {
	phrases []string
	holes   []string
}

func (lt *leafText) filled(phrase string) {
	lt.phrases = append(lt.phrases, phrase)
}

func (lt *leafText) hole(phrase string, paths ...string) {
	lt.phrases = append(lt.phrases, phrase)
	lt.holes = append(lt.holes, paths...)
}

// describeSearchLeaves renders every present leaf and returns the merged
// "A · B · C" description plus the dotted hole paths in walk order.
func describeSearchLeaves(c models.Conditions) (string, []string) {
	var lt leafText

	if c.Volume != nil {
		lt.rangeLeaf("거래량", "volume", c.Volume)
	}
	if c.PriceClose != nil {
		lt.rangeLeaf("종가", "price_close", c.PriceClose)
	}
	if c.PctChange != nil {
		lt.rangeLeaf("등락률", "pct_change", c.PctChange)
	}
	if c.GapPct != nil {
		lt.rangeLeaf("갭", "gap_pct", c.GapPct)
	}
	if c.VolumePct != nil {
		if c.VolumePct.Min != nil {
			lt.filled(fmt.Sprintf("거래량이 %s%% 이상 증가한", num(*c.VolumePct.Min)))
		} else {
			lt.hole("거래량이 몇 % 이상 증가한", "volume_pct.min")
		}
	}
	if c.RSI != nil {
		if c.RSI.Min == nil && c.RSI.Max == nil {
			lt.hole("RSI가 몇 이상/이하인", "RSI.min")
		} else {
			if c.RSI.Min != nil {
				lt.filled(fmt.Sprintf("RSI가 %s 이상인", num(*c.RSI.Min)))
			}
			if c.RSI.Max != nil {
				lt.filled(fmt.Sprintf("RSI가 %s 이하인", num(*c.RSI.Max)))
			}
		}
	}
	if vs := c.VolumeSpike; vs != nil {
		var ratio *float64
		if vs.VolumeRatio != nil {
			ratio = vs.VolumeRatio.Min
		}
		if vs.Window != nil && ratio != nil {
			lt.filled(fmt.Sprintf("거래량이 %d일 평균 대비 %s%% 이상 급증한", *vs.Window, num(*ratio)))
		} else {
			winTxt, ratioTxt := "며칠", "몇"
			var paths []string
			if vs.Window != nil {
				winTxt = fmt.Sprintf("%d일", *vs.Window)
			} else {
				paths = append(paths, "volume_spike.window")
			}
			if ratio != nil {
				ratioTxt = num(*ratio)
			} else {
				paths = append(paths, "volume_spike.volume_ratio.min")
			}
			lt.hole(fmt.Sprintf("거래량이 %s 평균 대비 %s%% 이상 급증한", winTxt, ratioTxt), paths...)
		}
	}
	if ma := c.MovingAvg; ma != nil {
		lt.movingAvgLeaf(ma)
	}
	if c.Bollinger != nil {
		switch c.Bollinger.Band {
		case "upper":
			lt.filled("볼린저 밴드 상단에 터치한")
		case "lower":
			lt.filled("볼린저 밴드 하단에 터치한")
		default:
			lt.hole("볼린저 밴드 상단·하단 중 어디에 터치한", "bollinger_touch")
		}
	}
	if c.PeakBreak != nil {
		if c.PeakBreak.PeriodDays != nil {
			lt.filled(fmt.Sprintf("%d일 신고가를 돌파한", *c.PeakBreak.PeriodDays))
		} else {
			lt.hole("며칠 신고가를 돌파한", "peak_break.period_days")
		}
	}
	if c.PeakLow != nil {
		if c.PeakLow.PeriodDays != nil {
			lt.filled(fmt.Sprintf("%d일 신저가를 갱신한", *c.PeakLow.PeriodDays))
		} else {
			lt.hole("며칠 신저가를 갱신한", "peak_low.period_days")
		}
	}
	if op := c.OffPeak; op != nil {
		if op.PeriodDays != nil && op.Min != nil {
			lt.filled(fmt.Sprintf("%d일 대비 %s%% 이상 하락한", *op.PeriodDays, num(*op.Min)))
		} else {
			winTxt, minTxt := "며칠", "몇"
			var paths []string
			if op.PeriodDays != nil {
				winTxt = fmt.Sprintf("%d일", *op.PeriodDays)
			} else {
				paths = append(paths, "off_peak.period_days")
			}
			if op.Min != nil {
				minTxt = num(*op.Min)
			} else {
				paths = append(paths, "off_peak.min")
			}
			lt.hole(fmt.Sprintf("%s 대비 %s%% 이상 하락한", winTxt, minTxt), paths...)
		}
	}

	if c.PctChangeRange != nil {
		if c.PctChangeRange.Specified() {
			lt.filled(fmtMinMax("기간 등락률", c.PctChangeRange))
		} else {
			lt.hole("기간 등락률이 몇 % 이상/이하인", "pct_change_range.min")
		}
	}
	if c.Consecutive != nil {
		switch c.Consecutive.Direction {
		case "up":
			lt.filled("연속 상승한")
		case "down":
			lt.filled("연속 하락한")
		default:
			lt.hole("연속 상승·하락 중 어떤", "consecutive_change")
		}
	}
	if c.Cross != nil {
		switch c.Cross.Side {
		case "golden":
			lt.filled("골든크로스가 발생한")
		case "dead":
			lt.filled("데드크로스가 발생한")
		case "both":
			lt.filled("골든크로스 또는 데드크로스가 발생한")
		default:
			lt.hole("골든/데드/양쪽 중 어떤 크로스가 발생한", "cross")
		}
	}
	if c.ThreePattern != nil {
		switch c.ThreePattern.Color {
		case "white", models.MetricThreeWhite:
			lt.filled("적삼병이 발생한")
		case "black", models.MetricThreeBlack:
			lt.filled("흑삼병이 발생한")
		default:
			lt.hole("적삼병·흑삼병 중 어떤 패턴이 발생한", "three_pattern")
		}
	}

	sort.Strings(lt.phrases)
	return strings.Join(lt.phrases, " · "), lt.holes
}

func (lt *leafText) rangeLeaf(label, key string, r *models.Range) {
	if !r.Specified() {
		lt.hole(label+"이 몇 이상/이하인", key+".min")
		return
	}
	lt.filled(fmtMinMax(label, r))
}

func (lt *leafText) movingAvgLeaf(ma *models.MovingAvgCond) {
	haveWin := ma.Window != nil
	haveDiff := ma.DiffPct.Specified()

	switch {
	case haveWin && haveDiff:
		if ma.DiffPct.Min != nil {
			v := *ma.DiffPct.Min
			lt.filled(fmt.Sprintf("종가가 %d일 이동평균보다 %s%% 이상 %s", *ma.Window, num(math.Abs(v)), upDown(v)))
		} else {
			v := *ma.DiffPct.Max
			lt.filled(fmt.Sprintf("종가가 %d일 이동평균보다 %s%% 이하 %s", *ma.Window, num(math.Abs(v)), upDown(v)))
		}
	case haveWin:
		lt.hole(fmt.Sprintf("종가가 %d일 이동평균보다 몇 %% 이상/이하 높은·낮은", *ma.Window),
			"moving_avg.diff_pct.min")
	case haveDiff:
		if ma.DiffPct.Min != nil {
			v := *ma.DiffPct.Min
			lt.hole(fmt.Sprintf("종가가 며칠 이동평균보다 %s%% 이상 %s", num(math.Abs(v)), upDown(v)),
				"moving_avg.window")
		} else {
			v := *ma.DiffPct.Max
			lt.hole(fmt.Sprintf("종가가 며칠 이동평균보다 %s%% 이하 %s", num(math.Abs(v)), upDown(v)),
				"moving_avg.window")
		}
	default:
		lt.hole("종가가 며칠 이동평균보다 몇 % 이상/이하 높은·낮은",
			"moving_avg.window", "moving_avg.diff_pct.min")
	}
}

// fmtMinMax renders a bounded-range phrase: "종가가 5000 이상 10000 이하인".
func fmtMinMax(label string, r *models.Range) string {
	switch {
	case r.Min != nil && r.Max != nil:
		return fmt.Sprintf("%s이 %s 이상 %s 이하인", label, num(*r.Min), num(*r.Max))
	case r.Min != nil:
		return fmt.Sprintf("%s이 %s 이상인", label, num(*r.Min))
	default:
		return fmt.Sprintf("%s이 %s 이하인", label, num(*r.Max))
	}
}

// upDown picks the deviation direction word for moving-average phrases.
func upDown(v float64) string {
	if v >= 0 {
		return "높은"
	}
	return "낮은"
}

// num prints a threshold without trailing zeros (100, 2.5).
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// joinKo joins list values with a middle dot, mapping stray English metric
// forms back to their Korean labels.
func joinKo(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	mapped := make([]string, len(xs))
	for i, x := range xs {
		if x == "pct_change" {
			x = models.MetricPctChange
		}
		mapped[i] = x
	}
	return strings.Join(mapped, " · ")
}

func hasMetric(metrics []string, want string) bool {
	for _, m := range metrics {
		if m == want {
			return true
		}
	}
	return false
}

func metricsSubset(metrics []string, allowed ...string) bool {
	for _, m := range metrics {
		ok := false
		for _, a := range allowed {
			if m == a {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

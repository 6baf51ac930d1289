package models

// Task is the intent class assigned by the parameter extractor. The values
// are the Korean task labels the extraction prompt asks the model to emit.
type Task string

const (
	TaskSimpleLookup   Task = "단순조회"
	TaskMarketRank     Task = "시장순위"
	TaskAdvancersCount Task = "상승종목수"
	TaskDeclinersCount Task = "하락종목수"
	TaskTradedCount    Task = "거래종목수"
	TaskStockSearch    Task = "종목검색"
	TaskCountSearch    Task = "횟수검색"
	TaskDateSearch     Task = "날짜검색"
	TaskUnknown        Task = "unknown"
)

// Metric vocabulary. Metrics are carried as the Korean surface forms the
// extractor emits; handlers dispatch on these constants.
const (
	MetricClose       = "종가"
	MetricOpen        = "시가"
	MetricHigh        = "고가"
	MetricLow         = "저가"
	MetricVolume      = "거래량"
	MetricPctChange   = "등락률"
	MetricIndex       = "지수"
	MetricTurnover    = "거래대금"
	MetricAscendRate  = "상승률"
	MetricDescendRate = "하락률"
	MetricPrice       = "가격"
	MetricVolatility  = "변동성"
	MetricBeta        = "베타"
	MetricThreeWhite  = "적삼병"
	MetricThreeBlack  = "흑삼병"
	MetricRSI         = "RSI"
)

// Params is one parsed query intent. A Params value lives in the session
// store while slots are still missing and is handed to a task handler once
// the checker reports it complete.
//
// Date fields are ISO "2006-01-02" strings or empty. Missing holds the slot
// paths the checker still requires; it is session-managed and never rendered
// to the user.
type Params struct {
	Task       Task       `json:"task"`
	Date       string     `json:"date,omitempty"`
	DateFrom   string     `json:"date_from,omitempty"`
	DateTo     string     `json:"date_to,omitempty"`
	Market     Market     `json:"market,omitempty"`
	Tickers    []string   `json:"tickers,omitempty"`
	Metrics    []string   `json:"metrics,omitempty"`
	RankN      int        `json:"rank_n,omitempty"`
	Conditions Conditions `json:"conditions,omitempty"`

	Missing []string `json:"-"`
}

// Clone returns a deep copy so session merges never alias stored state.
func (p *Params) Clone() *Params {
	cp := *p
	cp.Tickers = append([]string(nil), p.Tickers...)
	cp.Metrics = append([]string(nil), p.Metrics...)
	cp.Missing = append([]string(nil), p.Missing...)
	cp.Conditions = p.Conditions.Clone()
	return &cp
}

// DedupTickers merges extra into base, preserving first-seen order and
// dropping duplicates. Both inputs are left untouched.
func DedupTickers(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, t := range base {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range extra {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

package nlu

import (
	"context"
	"testing"

	"github.com/kosquant/krxagent/internal/llm"
	"github.com/kosquant/krxagent/pkg/models"
)

// scriptedProvider returns canned completions in order.
type scriptedProvider struct {
	replies []string
	err     error
	calls   int
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Ping(context.Context) error { return nil }

func (s *scriptedProvider) Chat(_ context.Context, _ []llm.Message, _ *llm.ChatOptions) (*llm.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	i := s.calls
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	s.calls++
	return &llm.Response{Content: s.replies[i]}, nil
}

func TestFirstJSONObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"설명입니다.\n```json\n{\"a\": {\"b\": 2}}\n```\n끝.", `{"a": {"b": 2}}`, true},
		{`{"s":"중괄호 } 포함"} trailing {"x":1}`, `{"s":"중괄호 } 포함"}`, true},
		{`no json here`, ``, false},
		{`{"unbalanced": {`, ``, false},
	}
	for _, tc := range cases {
		got, ok := firstJSONObject(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("firstJSONObject(%q) = %q, %v", tc.in, got, ok)
		}
	}
}

func TestStripNoise(t *testing.T) {
	if got := stripNoise("  upper!! 밴드~ "); got != "upper밴드" {
		t.Errorf("stripNoise = %q", got)
	}
}

func TestExtractParams(t *testing.T) {
	p := &scriptedProvider{replies: []string{
		`{"task":"단순조회","date":"2025-06-11","tickers":["삼성전자"],"metrics":["종가"],"rank_n":null}`,
	}}
	b := New(p, llm.ChatOptions{})

	got := b.ExtractParams(context.Background(), "2025-06-11 삼성전자 종가", "key")
	if got.Task != models.TaskSimpleLookup {
		t.Errorf("task = %q", got.Task)
	}
	if got.Date != "2025-06-11" || len(got.Tickers) != 1 || got.Tickers[0] != "삼성전자" {
		t.Errorf("params = %+v", got)
	}
	if got.RankN != 10 {
		t.Errorf("rank_n default = %d, want 10", got.RankN)
	}
}

func TestExtractParamsUnknownOnGarbage(t *testing.T) {
	p := &scriptedProvider{replies: []string{"죄송합니다, 이해하지 못했습니다."}}
	b := New(p, llm.ChatOptions{})

	got := b.ExtractParams(context.Background(), "???", "key")
	if got.Task != models.TaskUnknown {
		t.Errorf("task = %q, want unknown", got.Task)
	}

	hard := &scriptedProvider{err: llm.ErrProviderDown}
	if got := New(hard, llm.ChatOptions{}).ExtractParams(context.Background(), "q", "key"); got.Task != models.TaskUnknown {
		t.Errorf("provider failure should collapse to unknown, got %q", got.Task)
	}
}

func TestExtractParamsSanitizesFields(t *testing.T) {
	p := &scriptedProvider{replies: []string{
		`{"task":"없는작업","date":"6월 11일","market":"kosdaq","date_from":"2025-06-11","date_to":"2025-06-02"}`,
	}}
	got := New(p, llm.ChatOptions{}).ExtractParams(context.Background(), "q", "key")

	if got.Task != models.TaskUnknown {
		t.Errorf("unknown task label should normalize, got %q", got.Task)
	}
	if got.Date != "" {
		t.Errorf("non-ISO date should be dropped, got %q", got.Date)
	}
	if got.Market != models.MarketKOSDAQ {
		t.Errorf("market = %q", got.Market)
	}
	if got.DateFrom != "2025-06-02" || got.DateTo != "2025-06-11" {
		t.Errorf("reversed range should swap: %s..%s", got.DateFrom, got.DateTo)
	}
}

func TestExtractParamsConditionsBothShapes(t *testing.T) {
	p := &scriptedProvider{replies: []string{
		`{"task":"종목검색","date":"2025-06-11","conditions":{"cross":"golden","bollinger_touch":{"band":"upper"},"price_close":{"min":50000}}}`,
	}}
	got := New(p, llm.ChatOptions{}).ExtractParams(context.Background(), "q", "key")

	if got.Conditions.Cross == nil || got.Conditions.Cross.Side != "golden" {
		t.Errorf("flat cross string should decode, got %+v", got.Conditions.Cross)
	}
	if got.Conditions.Bollinger == nil || got.Conditions.Bollinger.Band != "upper" {
		t.Errorf("object bollinger should decode, got %+v", got.Conditions.Bollinger)
	}
	if !got.Conditions.PriceClose.Specified() || *got.Conditions.PriceClose.Min != 50000 {
		t.Errorf("price_close = %+v", got.Conditions.PriceClose)
	}
}

func TestExtractParamsRangeDefaultsFromDate(t *testing.T) {
	p := &scriptedProvider{replies: []string{
		`{"task":"횟수검색","date":"2025-06-11","tickers":["삼성전자"],"conditions":{"cross":"golden"}}`,
	}}
	got := New(p, llm.ChatOptions{}).ExtractParams(context.Background(), "q", "key")
	if got.DateFrom != "2025-06-11" || got.DateTo != "2025-06-11" {
		t.Errorf("single-day range default: %s..%s", got.DateFrom, got.DateTo)
	}
}

func TestFillSlots(t *testing.T) {
	p := &scriptedProvider{replies: []string{
		`{"date":"2024-12-01","bollinger_touch":" upper!! ","rank_n":5}`,
	}}
	b := New(p, llm.ChatOptions{})

	got := b.FillSlots(context.Background(), "2024-12-01 상단이요", []string{"date", "bollinger_touch"}, "key")
	if got["date"] != "2024-12-01" {
		t.Errorf("reserved slot must stay verbatim, got %v", got["date"])
	}
	if got["bollinger_touch"] != "upper" {
		t.Errorf("non-reserved slot should be noise-stripped, got %v", got["bollinger_touch"])
	}
}

func TestFillSlotsEmptyOnFailure(t *testing.T) {
	p := &scriptedProvider{err: llm.ErrProviderDown}
	got := New(p, llm.ChatOptions{}).FillSlots(context.Background(), "reply", []string{"date"}, "key")
	if len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
}

func TestChooseAlias(t *testing.T) {
	candidates := []string{"삼성전자", "삼성전기", "삼성SDI"}

	p := &scriptedProvider{replies: []string{`{"best":"삼성전기","confidence":0.93}`}}
	best, conf := New(p, llm.ChatOptions{}).ChooseAlias(context.Background(), "삼전기", candidates, "key")
	if best != "삼성전기" || conf != 0.93 {
		t.Errorf("got %q, %v", best, conf)
	}

	// A best outside the candidate list forces confidence to zero.
	p = &scriptedProvider{replies: []string{`{"best":"LG전자","confidence":0.99}`}}
	_, conf = New(p, llm.ChatOptions{}).ChooseAlias(context.Background(), "엘지", candidates, "key")
	if conf != 0 {
		t.Errorf("out-of-list best must zero confidence, got %v", conf)
	}

	// Confidence is clamped to [0, 1].
	p = &scriptedProvider{replies: []string{`{"best":"삼성전자","confidence":1.7}`}}
	_, conf = New(p, llm.ChatOptions{}).ChooseAlias(context.Background(), "삼전", candidates, "key")
	if conf != 1 {
		t.Errorf("confidence clamp, got %v", conf)
	}
}

// Package nlu wraps the LLM bridge's three abstract operations: initial
// question → parameter extraction, slot filling from follow-up replies, and
// alias disambiguation. Every operation degrades gracefully: transport or
// parse failures collapse to "unknown" / empty instead of erroring out.
package nlu

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/kosquant/krxagent/internal/llm"
	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

// maxAttempts bounds the retry loop on rate-limit failures.
const maxAttempts = 3

// defaultRankN is the ranking depth when the question names none.
const defaultRankN = 10

// Slots whose values must be preserved verbatim. Values for every other
// slot get the noise strip, since they flow into free-form condition text.
var reservedSlots = map[string]bool{
	"date":      true,
	"date_from": true,
	"date_to":   true,
	"metrics":   true,
	"market":    true,
	"tickers":   true,
	"rank_n":    true,
}

var knownTasks = map[models.Task]bool{
	models.TaskSimpleLookup:   true,
	models.TaskMarketRank:     true,
	models.TaskAdvancersCount: true,
	models.TaskDeclinersCount: true,
	models.TaskTradedCount:    true,
	models.TaskStockSearch:    true,
	models.TaskCountSearch:    true,
	models.TaskDateSearch:     true,
}

// Bridge binds the three operations to one chat provider.
type Bridge struct {
	provider llm.ChatProvider
	opts     llm.ChatOptions
}

// New creates a bridge. opts carries the model and sampling defaults; the
// per-request bearer is supplied per call.
func New(provider llm.ChatProvider, opts llm.ChatOptions) *Bridge {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1024
	}
	return &Bridge{provider: provider, opts: opts}
}

// ExtractParams parses a user question into a parameter record. It never
// fails: anything unparseable comes back as {task: unknown}.
func (b *Bridge) ExtractParams(ctx context.Context, question, bearer string) *models.Params {
	unknown := &models.Params{Task: models.TaskUnknown}

	resp, err := b.chat(ctx, extractSystemPrompt, question, bearer)
	if err != nil {
		log.Printf("nlu/extract: %v", err)
		return unknown
	}

	var raw rawParams
	if !decodeFirstObject(resp.Content, &raw) {
		log.Printf("nlu/extract: no JSON object in completion")
		return unknown
	}
	return raw.normalize()
}

// FillSlots extracts values for the named slots from a follow-up reply.
// The result maps slot paths to decoded values; an empty map means the
// reply filled nothing.
func (b *Bridge) FillSlots(ctx context.Context, reply string, slots []string, bearer string) map[string]any {
	if len(slots) == 0 {
		return map[string]any{}
	}

	user := fmt.Sprintf("추출할 슬롯: %s\n사용자 답변: %s", strings.Join(slots, ", "), reply)
	resp, err := b.chat(ctx, fillSlotsSystemPrompt, user, bearer)
	if err != nil {
		log.Printf("nlu/fill: %v", err)
		return map[string]any{}
	}

	var decoded map[string]any
	if !decodeFirstObject(resp.Content, &decoded) {
		log.Printf("nlu/fill: no JSON object in completion")
		return map[string]any{}
	}

	out := make(map[string]any, len(decoded))
	for slot, value := range decoded {
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok && !reservedSlots[slot] {
			value = stripNoise(s)
		}
		out[slot] = value
	}
	return out
}

// ChooseAlias asks the model which candidate a user alias refers to.
// A best outside the candidate list forces confidence to zero.
func (b *Bridge) ChooseAlias(ctx context.Context, alias string, candidates []string, bearer string) (string, float64) {
	if len(candidates) == 0 {
		return "", 0
	}

	user := fmt.Sprintf("별칭: %s\n후보: %s", alias, strings.Join(candidates, ", "))
	resp, err := b.chat(ctx, chooseAliasSystemPrompt, user, bearer)
	if err != nil {
		log.Printf("nlu/alias: %v", err)
		return "", 0
	}

	var decoded struct {
		Best       string  `json:"best"`
		Confidence float64 `json:"confidence"`
	}
	if !decodeFirstObject(resp.Content, &decoded) {
		return "", 0
	}

	best := strings.TrimSpace(decoded.Best)
	found := false
	for _, c := range candidates {
		if c == best {
			found = true
			break
		}
	}
	if !found {
		return best, 0
	}

	conf := decoded.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return best, conf
}

func (b *Bridge) chat(ctx context.Context, system, user, bearer string) (*llm.Response, error) {
	opts := b.opts
	opts.Bearer = bearer
	messages := []llm.Message{
		llm.SystemMessage(system),
		llm.UserMessage(user),
	}
	return llm.ChatWithRetry(ctx, b.provider, messages, &opts, maxAttempts)
}

// --- Extraction post-processing ---

// rawParams mirrors the extraction schema with loose field types; models
// get creative with scalars.
type rawParams struct {
	Task       string            `json:"task"`
	Date       any               `json:"date"`
	DateFrom   any               `json:"date_from"`
	DateTo     any               `json:"date_to"`
	Market     any               `json:"market"`
	Tickers    any               `json:"tickers"`
	Metrics    any               `json:"metrics"`
	RankN      any               `json:"rank_n"`
	Conditions models.Conditions `json:"conditions"`
}

func (r *rawParams) normalize() *models.Params {
	p := &models.Params{
		Task:       models.Task(strings.TrimSpace(r.Task)),
		Date:       cleanDate(asString(r.Date)),
		DateFrom:   cleanDate(asString(r.DateFrom)),
		DateTo:     cleanDate(asString(r.DateTo)),
		Tickers:    models.DedupTickers(asStringSlice(r.Tickers), nil),
		Metrics:    asStringSlice(r.Metrics),
		RankN:      asInt(r.RankN),
		Conditions: r.Conditions,
	}

	if !knownTasks[p.Task] {
		p.Task = models.TaskUnknown
	}

	switch strings.ToUpper(asString(r.Market)) {
	case "KOSPI":
		p.Market = models.MarketKOSPI
	case "KOSDAQ":
		p.Market = models.MarketKOSDAQ
	}

	if p.RankN < 1 {
		p.RankN = defaultRankN
	}

	// Range tasks anchored on a single day cover exactly that day.
	if p.DateFrom == "" && p.DateTo == "" && p.Date != "" {
		if p.Task == models.TaskCountSearch || p.Task == models.TaskDateSearch {
			p.DateFrom, p.DateTo = p.Date, p.Date
		}
	}
	if p.DateFrom != "" && p.DateTo != "" && p.DateFrom > p.DateTo {
		p.DateFrom, p.DateTo = p.DateTo, p.DateFrom
	}

	return p
}

// cleanDate keeps only values that parse as ISO dates.
func cleanDate(s string) string {
	if s == "" {
		return ""
	}
	if _, err := utils.ParseDateKST(s); err != nil {
		return ""
	}
	return s
}

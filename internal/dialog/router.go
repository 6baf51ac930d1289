// Package dialog implements the slot-filling conversation loop. Each turn
// either merges the user's reply into a pending parameter record and asks
// for whatever is still missing, or hands the completed record to its task
// handler. The package owns the session lifecycle: a session opens when a
// question arrives incomplete, survives follow-up prompts and ambiguous
// ticker re-prompts, and closes on a final answer.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kosquant/krxagent/internal/resolve"
	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

// FailMsg is the generic apology for anything the agent could not process:
// unparseable questions, unknown tasks, handler failures.
const FailMsg = "질문을 이해하지 못했습니다."

const ambiguousFmt = "종목명 인식에 실패하였습니다. 조회할 종목명을 정확하게 입력해 주세요 (제안: %s)"

// Date-less questions with these words anchor on the most recent trading day.
var relativeDateWords = []string{
	"최근", "요즘", "근래", "요새", "이즈음",
	"오늘", "금일", "당일", "오늘자",
}

// Extractor is the language-model surface the router needs; *nlu.Bridge
// satisfies it.
type Extractor interface {
	ExtractParams(ctx context.Context, question, bearer string) *models.Params
	FillSlots(ctx context.Context, reply string, slots []string, bearer string) map[string]any
}

// Dispatcher runs a fully-specified parameter record; *tasks.Registry
// satisfies it.
type Dispatcher interface {
	Handle(ctx context.Context, p *models.Params, bearer string) (string, error)
}

// Router drives one conversation turn at a time. Safe for concurrent use;
// concurrent turns on the same conversation merge last-writer-wins.
type Router struct {
	store  Store
	bridge Extractor
	tasks  Dispatcher
	now    func() time.Time
}

// Option customises a Router.
type Option func(*Router)

// WithClock overrides the relative-date anchor clock.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a router over the given session store, LLM bridge, and task
// registry.
func New(store Store, bridge Extractor, tasks Dispatcher, opts ...Option) *Router {
	r := &Router{
		store:  store,
		bridge: bridge,
		tasks:  tasks,
		now:    utils.NowKST,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route processes one user turn and returns the agent's reply: a final
// answer, a follow-up prompt, or the generic failure message. bearer is the
// caller's API key, passed through to every LLM call this turn makes.
func (r *Router) Route(ctx context.Context, question, convID, bearer string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return FailMsg
	}

	if pending, ok := r.store.Get(convID); ok {
		return r.continueTurn(ctx, question, convID, bearer, pending)
	}
	return r.firstTurn(ctx, question, convID, bearer)
}

func (r *Router) firstTurn(ctx context.Context, question, convID, bearer string) string {
	p := r.bridge.ExtractParams(ctx, question, bearer)
	if p == nil || p.Task == models.TaskUnknown {
		// Parse failure never opens a session.
		return FailMsg
	}

	r.autoFillRelativeDates(question, p)
	normalizeDateOrder(p)

	if v := check(p); !v.ready {
		p.Missing = v.missing
		r.store.Set(convID, p)
		return v.prompt
	}
	return r.dispatch(ctx, convID, p, bearer)
}

func (r *Router) continueTurn(ctx context.Context, reply, convID, bearer string, pending *models.Params) string {
	// First give the reply to the slot filler for exactly the slots we
	// asked about, then re-parse it whole: users often volunteer more than
	// the prompt requested.
	if len(pending.Missing) > 0 {
		applySlots(pending, r.bridge.FillSlots(ctx, reply, pending.Missing, bearer))
	}
	mergeFollowUp(pending, r.bridge.ExtractParams(ctx, reply, bearer))

	r.autoFillRelativeDates(reply, pending)
	normalizeDateOrder(pending)

	if v := check(pending); !v.ready {
		pending.Missing = v.missing
		r.store.Set(convID, pending)
		return v.prompt
	}
	return r.dispatch(ctx, convID, pending, bearer)
}

// dispatch hands a complete record to its handler. The session is cleared
// only on a definitive answer; an ambiguous ticker reopens the session, and
// an internal failure leaves whatever was stored untouched so the user can
// retry the turn.
func (r *Router) dispatch(ctx context.Context, convID string, p *models.Params, bearer string) string {
	p.Missing = nil

	answer, err := r.tasks.Handle(ctx, p, bearer)
	if err == nil && answer != "" {
		r.store.Clear(convID)
		return answer
	}

	var amb *resolve.AmbiguousTickerError
	if errors.As(err, &amb) {
		return r.reopenForTicker(convID, p, amb)
	}
	if err != nil {
		log.Printf("dialog/route: task %s failed: %v", p.Task, err)
	} else {
		log.Printf("dialog/route: task %s returned an empty answer", p.Task)
	}
	return FailMsg
}

// reopenForTicker drops the unresolvable alias, re-opens the session asking
// for a ticker, and suggests the disambiguator's shortlist.
func (r *Router) reopenForTicker(convID string, p *models.Params, amb *resolve.AmbiguousTickerError) string {
	reopened := p.Clone()
	kept := reopened.Tickers[:0]
	for _, t := range reopened.Tickers {
		if t != amb.Alias {
			kept = append(kept, t)
		}
	}
	reopened.Tickers = kept
	reopened.Missing = []string{"tickers"}
	r.store.Set(convID, reopened)

	return fmt.Sprintf(ambiguousFmt, strings.Join(amb.Candidates, " · "))
}

// autoFillRelativeDates anchors "최근"/"오늘"-style questions that carry no
// explicit date on the most recent trading day. A date_from already present
// turns the anchor into the range's closing date too.
func (r *Router) autoFillRelativeDates(question string, p *models.Params) {
	if p.Date != "" || p.DateTo != "" {
		return
	}
	for _, w := range relativeDateWords {
		if strings.Contains(question, w) {
			recent := utils.FormatDateKST(utils.MostRecentTradingDay(r.now()))
			p.Date = recent
			if p.DateFrom != "" {
				p.DateTo = recent
			}
			return
		}
	}
}

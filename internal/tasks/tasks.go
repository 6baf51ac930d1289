// Package tasks holds the per-task orchestration layer: each handler
// validates the calendar, fetches one OHLCV slab sized by the lookback its
// conditions need, composes the scan primitives, and formats the Korean
// answer sentence.
package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kosquant/krxagent/internal/ohlcv"
	"github.com/kosquant/krxagent/internal/universe"
	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

// Terminal message templates shared by every handler.
const (
	holidayMsgFmt     = "%s는 휴장일입니다. 데이터가 없습니다."
	noDataFmt         = "%s의 데이터가 없습니다."
	noRangeDataFmt    = "%s~%s의 데이터가 없습니다."
	noMatchMsg        = "조건에 맞는 종목이 없습니다"
	unsupportedMetric = "지원하지 않는 지표입니다."
)

// TickerResolver maps a user alias to (code, official name); implemented by
// *resolve.Resolver.
type TickerResolver interface {
	Resolve(ctx context.Context, alias, bearer string) (code, name string, err error)
}

// Deps are the collaborators a handler may touch.
type Deps struct {
	Source   ohlcv.Source
	Catalog  *universe.Catalog
	Resolver TickerResolver
}

type handlerFn func(ctx context.Context, p *models.Params, bearer string) (string, error)

// Registry dispatches a fully-specified parameter record to its task handler.
type Registry struct {
	deps     Deps
	handlers map[models.Task]handlerFn
}

// New builds the task registry.
func New(deps Deps) *Registry {
	r := &Registry{deps: deps}
	r.handlers = map[models.Task]handlerFn{
		models.TaskSimpleLookup:   r.handleSimpleLookup,
		models.TaskMarketRank:     r.handleMarketRank,
		models.TaskAdvancersCount: r.handleBreadthCount,
		models.TaskDeclinersCount: r.handleBreadthCount,
		models.TaskTradedCount:    r.handleBreadthCount,
		models.TaskStockSearch:    r.handleStockSearch,
		models.TaskCountSearch:    r.handleCountSearch,
		models.TaskDateSearch:     r.handleDateSearch,
	}
	return r
}

// Known reports whether the task has a registered handler.
func (r *Registry) Known(task models.Task) bool {
	_, ok := r.handlers[task]
	return ok
}

// Handle runs the handler for p.Task. A single-day anchor falling on a
// non-trading day short-circuits to the holiday message no matter what else
// the record carries.
func (r *Registry) Handle(ctx context.Context, p *models.Params, bearer string) (string, error) {
	fn, ok := r.handlers[p.Task]
	if !ok {
		return "", fmt.Errorf("tasks: no handler for task %q", p.Task)
	}
	if p.Date != "" {
		day, err := utils.ParseDateKST(p.Date)
		if err != nil {
			return "", fmt.Errorf("tasks: bad date %q: %w", p.Date, err)
		}
		if !utils.IsTradingDay(day) {
			return fmt.Sprintf(holidayMsgFmt, p.Date), nil
		}
	}
	return fn(ctx, p, bearer)
}

// daySlab fetches the slab for a single anchor day, extended backwards by
// depth trading days of warmup.
func (r *Registry) daySlab(ctx context.Context, tickers []string, dateISO string, depth int) (*ohlcv.Slab, time.Time, error) {
	day, err := utils.ParseDateKST(dateISO)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("tasks: bad date %q: %w", dateISO, err)
	}
	start := day
	if depth > 0 {
		start = utils.NthPrevTradingDay(day, depth)
	}
	slab, err := r.deps.Source.Slab(ctx, tickers, start, day.AddDate(0, 0, 1))
	return slab, day, err
}

// rangeSlab fetches the slab for [fromISO, toISO], extended backwards by
// depth trading days of warmup.
func (r *Registry) rangeSlab(ctx context.Context, tickers []string, fromISO, toISO string, depth int) (*ohlcv.Slab, time.Time, time.Time, error) {
	from, err := utils.ParseDateKST(fromISO)
	if err != nil {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("tasks: bad date %q: %w", fromISO, err)
	}
	to, err := utils.ParseDateKST(toISO)
	if err != nil {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("tasks: bad date %q: %w", toISO, err)
	}
	start := from
	if depth > 0 {
		start = utils.NthPrevTradingDay(from, depth)
	}
	slab, err := r.deps.Source.Slab(ctx, tickers, start, to.AddDate(0, 0, 1))
	return slab, from, to, err
}

// resolveAll maps every alias through the disambiguator; an
// AmbiguousTickerError propagates to the router.
func (r *Registry) resolveAll(ctx context.Context, aliases []string, bearer string) (codes, names []string, err error) {
	for _, alias := range aliases {
		code, name, err := r.deps.Resolver.Resolve(ctx, alias, bearer)
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, code)
		names = append(names, name)
	}
	return codes, names, nil
}

// firstIndexOnOrAfter is the smallest axis position at or after the day, or
// -1 when the slab ends earlier.
func firstIndexOnOrAfter(slab *ohlcv.Slab, day time.Time) int {
	key := utils.FormatDateKST(day)
	for i, d := range slab.Dates() {
		if utils.FormatDateKST(d) >= key {
			return i
		}
	}
	return -1
}

// marketPrefix renders the "KOSPI에서 " qualifier, empty for the full market.
func marketPrefix(market models.Market) string {
	if market == "" {
		return ""
	}
	return string(market) + "에서 "
}

// namesOf maps codes to display names, falling back to the code itself.
func (r *Registry) namesOf(codes []string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		name, err := r.deps.Catalog.NameOf(c)
		if err != nil {
			name = c
		}
		out[i] = name
	}
	return out
}

// sortedNames is namesOf plus the lexicographic order search answers use.
func (r *Registry) sortedNames(codes []string) []string {
	names := r.namesOf(codes)
	sort.Strings(names)
	return names
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}

// patternLabel maps the condition color (or a metric surface form) to the
// Korean candle-pattern name.
func patternLabel(p *models.Params) string {
	for _, m := range p.Metrics {
		if m == models.MetricThreeWhite || m == models.MetricThreeBlack {
			return m
		}
	}
	if p.Conditions.ThreePattern != nil {
		switch p.Conditions.ThreePattern.Color {
		case "black", models.MetricThreeBlack:
			return models.MetricThreeBlack
		case "white", models.MetricThreeWhite:
			return models.MetricThreeWhite
		}
	}
	return ""
}

// patternColor is the scan-side color for a Korean pattern label.
func patternColor(label string) string {
	if label == models.MetricThreeBlack {
		return "black"
	}
	return "white"
}

func crossLabel(side string) string {
	switch side {
	case "golden":
		return "골든크로스"
	case "dead":
		return "데드크로스"
	default:
		return "골든크로스 또는 데드크로스"
	}
}

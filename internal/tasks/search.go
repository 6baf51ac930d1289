package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/kosquant/krxagent/internal/ohlcv"
	"github.com/kosquant/krxagent/internal/scan"
	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

func (r *Registry) handleStockSearch(ctx context.Context, p *models.Params, _ string) (string, error) {
	cond := p.Conditions
	if cond.Empty() {
		return noMatchMsg, nil
	}
	if cond.HasRangeLeaf() {
		return r.searchRange(ctx, p)
	}
	return r.searchSingleDay(ctx, p)
}

func (r *Registry) searchSingleDay(ctx context.Context, p *models.Params) (string, error) {
	pool := r.deps.Catalog.Tickers(p.Market)
	depth := scan.MaxLookback(p.Conditions)

	slab, day, err := r.daySlab(ctx, pool, p.Date, depth)
	if err != nil {
		return r.dataErr(p.Date, err)
	}
	di := slab.IndexOf(day)
	if di < 0 {
		return fmt.Sprintf(noDataFmt, p.Date), nil
	}

	hits := scan.ApplyConditions(slab, di, di, pool, p.Conditions)
	if len(hits) == 0 {
		return noMatchMsg, nil
	}

	return fmt.Sprintf("%s에 %s%s인 종목은 다음과 같습니다.\n%s",
		p.Date, marketPrefix(p.Market), describeConditions(p.Conditions),
		joinNames(r.sortedNames(hits))), nil
}

func (r *Registry) searchRange(ctx context.Context, p *models.Params) (string, error) {
	pool := r.deps.Catalog.Tickers(p.Market)
	cond := p.Conditions
	depth := scan.MaxLookback(cond)

	slab, from, to, err := r.rangeSlab(ctx, pool, p.DateFrom, p.DateTo, depth)
	if err != nil {
		if isNoData(err) {
			return fmt.Sprintf(noRangeDataFmt, p.DateFrom, p.DateTo), nil
		}
		return "", err
	}
	fromIdx := firstIndexOnOrAfter(slab, from)
	toIdx := slab.LastIndexOnOrBefore(to)
	if fromIdx < 0 || toIdx < fromIdx {
		return fmt.Sprintf(noRangeDataFmt, p.DateFrom, p.DateTo), nil
	}

	var hits []string
	switch {
	case cond.ThreePattern != nil && cond.ThreePattern.Color != "":
		// A pattern anywhere in the window qualifies, not only on its
		// final day.
		color := cond.ThreePattern.Color
		for _, t := range pool {
			if len(scan.ThreePatternDates(slab, t, fromIdx, toIdx, color)) > 0 {
				hits = append(hits, t)
			}
		}
	default:
		hits = scan.ApplyConditions(slab, fromIdx, toIdx, pool, cond)
	}

	// Suspended-on-the-last-day tickers drop out of range answers.
	hits = tradedOnFinalDay(slab, toIdx, hits)
	if len(hits) == 0 {
		if cond.ThreePattern != nil {
			label := patternLabel(p)
			mkt := "전체 시장"
			if p.Market != "" {
				mkt = string(p.Market)
			}
			return fmt.Sprintf("%s~%s 기간에 %s에서 %s 패턴이 관측된 종목이 없습니다.",
				p.DateFrom, p.DateTo, mkt, label), nil
		}
		return noMatchMsg, nil
	}
	names := joinNames(r.sortedNames(hits))

	switch {
	case cond.Cross != nil && cond.Cross.Side != "":
		return fmt.Sprintf("%s부터 %s까지 %s가 발생한 종목은 다음과 같습니다.\n%s",
			p.DateFrom, p.DateTo, crossLabel(cond.Cross.Side), names), nil
	case cond.ThreePattern != nil:
		mkt := "전체 시장"
		if p.Market != "" {
			mkt = string(p.Market)
		}
		return fmt.Sprintf("%s~%s 기간에 %s에서 %s 발생 종목은 다음과 같습니다.\n%s",
			p.DateFrom, p.DateTo, mkt, patternLabel(p), names), nil
	case cond.Consecutive != nil && cond.Consecutive.Direction != "":
		word := "연속 상승"
		if cond.Consecutive.Direction == "down" {
			word = "연속 하락"
		}
		return fmt.Sprintf("%s부터 %s까지 %s%s한 종목은 다음과 같습니다.\n%s",
			p.DateFrom, p.DateTo, marketPrefix(p.Market), word, names), nil
	default:
		return fmt.Sprintf("%s부터 %s까지 %s%s인 종목은 다음과 같습니다.\n%s",
			p.DateFrom, p.DateTo, marketPrefix(p.Market), describeConditions(cond), names), nil
	}
}

func tradedOnFinalDay(slab *ohlcv.Slab, toIdx int, tickers []string) []string {
	out := tickers[:0]
	for _, t := range tickers {
		series := slab.Series(t)
		if series != nil && series[toIdx].Traded() {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) handleCountSearch(ctx context.Context, p *models.Params, bearer string) (string, error) {
	if len(p.Tickers) == 0 {
		return noMatchMsg, nil
	}
	codes, names, err := r.resolveAll(ctx, p.Tickers[:1], bearer)
	if err != nil {
		return "", err
	}
	code, name := codes[0], names[0]

	if label := patternLabel(p); label != "" {
		dates, err := r.patternDates(ctx, code, p, label)
		if err != nil {
			return r.rangeDataErr(p, err)
		}
		return fmt.Sprintf("%s (%s~%s) %s 발생 횟수는 %d입니다.",
			name, p.DateFrom, p.DateTo, label, len(dates)), nil
	}

	slab, from, to, err := r.rangeSlab(ctx, []string{code}, p.DateFrom, p.DateTo, scan.MaxLookback(p.Conditions))
	if err != nil {
		return r.rangeDataErr(p, err)
	}
	fromIdx := firstIndexOnOrAfter(slab, from)
	toIdx := slab.LastIndexOnOrBefore(to)
	if fromIdx < 0 || toIdx < fromIdx {
		return fmt.Sprintf(noRangeDataFmt, p.DateFrom, p.DateTo), nil
	}

	golden, dead := scan.CountCrosses(slab, code, fromIdx, toIdx)
	side := ""
	if p.Conditions.Cross != nil {
		side = p.Conditions.Cross.Side
	}
	switch side {
	case scan.CrossGolden:
		return fmt.Sprintf("%s에서 %s부터 %s까지 골든크로스가 발생한 횟수는 %d번입니다.",
			name, p.DateFrom, p.DateTo, golden), nil
	case scan.CrossDead:
		return fmt.Sprintf("%s에서 %s부터 %s까지 데드크로스가 발생한 횟수는 %d번입니다.",
			name, p.DateFrom, p.DateTo, dead), nil
	case scan.CrossBoth:
		return fmt.Sprintf("%s에서 %s부터 %s까지 데드크로스는 %d번, 골든크로스는 %d번 발생했습니다.",
			name, p.DateFrom, p.DateTo, dead, golden), nil
	default:
		return fmt.Sprintf("%s에서 %s부터 %s까지 골든크로스 %d번, 데드크로스 %d번 발생했습니다.",
			name, p.DateFrom, p.DateTo, golden, dead), nil
	}
}

func (r *Registry) handleDateSearch(ctx context.Context, p *models.Params, bearer string) (string, error) {
	if len(p.Tickers) == 0 {
		return noMatchMsg, nil
	}
	codes, names, err := r.resolveAll(ctx, p.Tickers[:1], bearer)
	if err != nil {
		return "", err
	}
	code, name := codes[0], names[0]

	if label := patternLabel(p); label != "" {
		dates, err := r.patternDates(ctx, code, p, label)
		if err != nil {
			return r.rangeDataErr(p, err)
		}
		if len(dates) == 0 {
			return fmt.Sprintf("%s은(는) %s~%s 기간에 %s 패턴이 없습니다.",
				name, p.DateFrom, p.DateTo, label), nil
		}
		return fmt.Sprintf("%s (%s~%s) %s 발생일은 %s입니다.",
			name, p.DateFrom, p.DateTo, label, strings.Join(dates, ", ")), nil
	}

	side := scan.CrossBoth
	if p.Conditions.Cross != nil && p.Conditions.Cross.Side != "" {
		side = p.Conditions.Cross.Side
	}
	slab, from, to, err := r.rangeSlab(ctx, []string{code}, p.DateFrom, p.DateTo, scan.MaxLookback(p.Conditions))
	if err != nil {
		return r.rangeDataErr(p, err)
	}
	fromIdx := firstIndexOnOrAfter(slab, from)
	toIdx := slab.LastIndexOnOrBefore(to)
	if fromIdx < 0 || toIdx < fromIdx {
		return fmt.Sprintf(noRangeDataFmt, p.DateFrom, p.DateTo), nil
	}

	crossDates := scan.CrossDates(slab, code, fromIdx, toIdx, side)
	if len(crossDates) == 0 {
		return fmt.Sprintf("%s에서 %s부터 %s까지 %s가 발생하지 않았습니다.",
			name, p.DateFrom, p.DateTo, crossLabel(side)), nil
	}
	isoDates := make([]string, len(crossDates))
	for i, d := range crossDates {
		isoDates[i] = utils.FormatDateKST(d)
	}
	return fmt.Sprintf("%s에서 %s부터 %s까지 %s 발생일은 %s입니다.",
		name, p.DateFrom, p.DateTo, crossLabel(side), strings.Join(isoDates, ", ")), nil
}

// patternDates lists the ISO dates the three-candle pattern completed for
// one ticker over the query range.
func (r *Registry) patternDates(ctx context.Context, code string, p *models.Params, label string) ([]string, error) {
	slab, from, to, err := r.rangeSlab(ctx, []string{code}, p.DateFrom, p.DateTo, 2)
	if err != nil {
		return nil, err
	}
	fromIdx := firstIndexOnOrAfter(slab, from)
	toIdx := slab.LastIndexOnOrBefore(to)
	if fromIdx < 0 || toIdx < fromIdx {
		return nil, nil
	}
	dates := scan.ThreePatternDates(slab, code, fromIdx, toIdx, patternColor(label))
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = utils.FormatDateKST(d)
	}
	return out, nil
}

// rangeDataErr mirrors dataErr for range tasks.
func (r *Registry) rangeDataErr(p *models.Params, err error) (string, error) {
	if isNoData(err) {
		return fmt.Sprintf(noRangeDataFmt, p.DateFrom, p.DateTo), nil
	}
	return "", err
}

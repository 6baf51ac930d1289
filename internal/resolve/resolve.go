// Package resolve maps user-typed Korean aliases to canonical listing codes.
// The pipeline is exact lookup → fuzzy shortlist → semantic shortlist →
// LLM tie-break behind a confidence gate; anything below the gate surfaces
// as an AmbiguousTickerError the dialog layer turns into a re-prompt.
package resolve

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kosquant/krxagent/internal/universe"
)

// Defaults for the shortlist sizes and the confidence gate.
const (
	DefaultFuzzyK        = 3
	DefaultEmbedK        = 3
	DefaultConfThreshold = 0.82
)

// AmbiguousTickerError is the structured failure raised when no candidate
// clears the confidence gate. Candidates are ordered best-first.
type AmbiguousTickerError struct {
	Alias      string
	Candidates []string
}

func (e *AmbiguousTickerError) Error() string {
	return fmt.Sprintf("resolve: ambiguous ticker %q (candidates: %s)",
		e.Alias, strings.Join(e.Candidates, ", "))
}

// Chooser is the LLM tie-break operation; satisfied by *nlu.Bridge.
type Chooser interface {
	ChooseAlias(ctx context.Context, alias string, candidates []string, bearer string) (string, float64)
}

// Trailing subject/object particles users leave on names (삼성전자의 → 삼성전자).
var particlePattern = regexp.MustCompile(`[의은는이가를]\s*$`)

// Resolver resolves aliases against one immutable catalog.
type Resolver struct {
	catalog *universe.Catalog
	chooser Chooser
	index   *embedIndex

	fuzzyK        int
	embedK        int
	confThreshold float64
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithFuzzyK sets the fuzzy shortlist size.
func WithFuzzyK(k int) Option {
	return func(r *Resolver) {
		if k > 0 {
			r.fuzzyK = k
		}
	}
}

// WithEmbedK sets the semantic shortlist size.
func WithEmbedK(k int) Option {
	return func(r *Resolver) {
		if k > 0 {
			r.embedK = k
		}
	}
}

// WithConfThreshold sets the LLM confidence gate.
func WithConfThreshold(t float64) Option {
	return func(r *Resolver) {
		if t > 0 {
			r.confThreshold = t
		}
	}
}

// New creates a resolver. embedder may be nil, which disables the semantic
// shortlist (fuzzy candidates still flow to the tie-break).
func New(catalog *universe.Catalog, embedder Embedder, chooser Chooser, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:       catalog,
		chooser:       chooser,
		fuzzyK:        DefaultFuzzyK,
		embedK:        DefaultEmbedK,
		confThreshold: DefaultConfThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	if embedder != nil {
		r.index = newEmbedIndex(embedder, catalog.Names())
	}
	return r
}

// Resolve maps an alias to (code, official name). The bearer is forwarded
// to the LLM tie-break.
func (r *Resolver) Resolve(ctx context.Context, alias, bearer string) (string, string, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return "", "", &AmbiguousTickerError{Alias: alias}
	}

	// Direct lookup, then once more with a trailing particle stripped.
	if code, ok := r.catalog.Lookup(alias); ok {
		return r.withName(code)
	}
	if stripped := particlePattern.ReplaceAllString(alias, ""); stripped != alias && stripped != "" {
		if code, ok := r.catalog.Lookup(stripped); ok {
			return r.withName(code)
		}
	}

	candidates := r.shortlist(ctx, alias)
	if len(candidates) == 0 {
		return "", "", &AmbiguousTickerError{Alias: alias}
	}

	best, conf := r.chooser.ChooseAlias(ctx, alias, candidates, bearer)
	if conf >= r.confThreshold {
		if code, ok := r.catalog.Lookup(best); ok {
			return r.withName(code)
		}
	}
	return "", "", &AmbiguousTickerError{Alias: alias, Candidates: candidates}
}

func (r *Resolver) withName(code string) (string, string, error) {
	name, err := r.catalog.NameOf(code)
	if err != nil {
		return "", "", err
	}
	return code, name, nil
}

// shortlist merges the fuzzy and semantic candidate lists, keeping the max
// score per name and at most fuzzyK+embedK entries, best first.
func (r *Resolver) shortlist(ctx context.Context, alias string) []string {
	scores := make(map[string]float64)

	for _, c := range r.fuzzyShortlist(alias) {
		if c.score > scores[c.name] {
			scores[c.name] = c.score
		}
	}
	if r.index != nil {
		for _, c := range r.index.Nearest(ctx, alias, r.embedK) {
			if c.score > scores[c.name] {
				scores[c.name] = c.score
			}
		}
	}

	merged := make([]scored, 0, len(scores))
	for name, score := range scores {
		merged = append(merged, scored{name: name, score: score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].name < merged[j].name
	})

	limit := r.fuzzyK + r.embedK
	if len(merged) > limit {
		merged = merged[:limit]
	}

	out := make([]string, len(merged))
	for i, c := range merged {
		out[i] = c.name
	}
	return out
}

type scored struct {
	name  string
	score float64
}

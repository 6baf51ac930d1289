package resolve

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Embedder encodes text into a dense vector; satisfied by *llm.ClovaProvider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// embedIndex is a lazily built in-memory nearest-neighbor index over the
// official listing names. The build happens exactly once, on first use,
// under singleflight; afterwards the index is read-only.
type embedIndex struct {
	embedder Embedder
	names    []string

	sf      singleflight.Group
	mu      sync.RWMutex
	vectors [][]float64
	built   bool
}

const buildConcurrency = 8

func newEmbedIndex(embedder Embedder, names []string) *embedIndex {
	return &embedIndex{embedder: embedder, names: names}
}

// Nearest returns the k names closest to the alias by cosine similarity.
// A failed index build or alias embedding degrades to an empty shortlist.
func (ix *embedIndex) Nearest(ctx context.Context, alias string, k int) []scored {
	if err := ix.ensure(ctx); err != nil {
		log.Printf("resolve/embed: index build failed: %v", err)
		return nil
	}

	query, err := ix.embedder.Embed(ctx, alias)
	if err != nil {
		log.Printf("resolve/embed: encode %q: %v", alias, err)
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]scored, 0, len(ix.names))
	for i, name := range ix.names {
		vec := ix.vectors[i]
		if vec == nil {
			continue
		}
		if sim := cosine(query, vec); sim > 0 {
			out = append(out, scored{name: name, score: sim})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].name < out[j].name
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// ensure builds the index once; concurrent first callers share one build.
func (ix *embedIndex) ensure(ctx context.Context) error {
	ix.mu.RLock()
	built := ix.built
	ix.mu.RUnlock()
	if built {
		return nil
	}

	_, err, _ := ix.sf.Do("build", func() (any, error) {
		ix.mu.RLock()
		built := ix.built
		ix.mu.RUnlock()
		if built {
			return nil, nil
		}

		vectors := make([][]float64, len(ix.names))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(buildConcurrency)
		for i, name := range ix.names {
			g.Go(func() error {
				vec, err := ix.embedder.Embed(gctx, name)
				if err != nil {
					// A handful of failed names should not sink the
					// whole index; they just drop out of the shortlist.
					log.Printf("resolve/embed: encode %q: %v", name, err)
					return nil
				}
				vectors[i] = vec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		ix.mu.Lock()
		ix.vectors = vectors
		ix.built = true
		ix.mu.Unlock()
		return nil, nil
	})
	return err
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

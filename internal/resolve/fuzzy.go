package resolve

import (
	"sort"

	"github.com/agnivade/levenshtein"
)

// fuzzyShortlist scores the alias against every resolvable catalog key with
// normalized edit similarity (1 − distance/maxLen) and returns the top
// fuzzyK, best first. Zero-similarity keys are skipped.
func (r *Resolver) fuzzyShortlist(alias string) []scored {
	keys := r.catalog.Keys()
	out := make([]scored, 0, len(keys))

	aliasLen := len([]rune(alias))
	for _, key := range keys {
		sim := editSimilarity(alias, aliasLen, key)
		if sim > 0 {
			out = append(out, scored{name: key, score: sim})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].name < out[j].name
	})
	if len(out) > r.fuzzyK {
		out = out[:r.fuzzyK]
	}
	return out
}

func editSimilarity(alias string, aliasLen int, key string) float64 {
	keyLen := len([]rune(key))
	maxLen := aliasLen
	if keyLen > maxLen {
		maxLen = keyLen
	}
	if maxLen == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(alias, key)
	return 1 - float64(dist)/float64(maxLen)
}

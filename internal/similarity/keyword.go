package similarity

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/fixhive/internal/remote"
)

// KeywordRank scores each candidate by the share of the query's words
// longer than three characters that occur in its message. The top limit
// candidates are kept and zero scores dropped.
func KeywordRank(query string, candidates []remote.Candidate, limit int) []Match {
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(w) > 3 {
			keywords = append(keywords, w)
		}
	}
	if len(keywords) == 0 || limit <= 0 {
		return nil
	}

	scored := make([]Match, len(candidates))
	for i, c := range candidates {
		msg := strings.ToLower(c.Message)
		hits := 0
		for _, k := range keywords {
			if strings.Contains(msg, k) {
				hits++
			}
		}
		scored[i] = Match{Candidate: c, Similarity: float64(hits) / float64(len(keywords))}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })

	if len(scored) > limit {
		scored = scored[:limit]
	}
	out := scored[:0]
	for _, m := range scored {
		if m.Similarity > 0 {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

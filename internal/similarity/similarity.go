// Package similarity ranks remote error candidates against a query error,
// either with a text generator or by keyword overlap.
package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/fixhive/internal/engine"
	"github.com/kalambet/fixhive/internal/remote"
)

const (
	rankMaxTokens      = 500
	summaryMaxTokens   = 300
	candidateTextLimit = 200
)

// NoSolutionsSummary is returned by Summarize for an empty solution list.
const NoSolutionsSummary = "No related solutions found."

var errNoJSON = errors.New("no JSON object in response")

// Match is a ranked candidate. Similarity is in (0, 1].
type Match struct {
	Candidate  remote.Candidate
	Similarity float64
}

// Ranker orders candidates by how closely they resemble a query error.
type Ranker struct {
	gen    engine.Generator
	logger *slog.Logger
}

// NewRanker creates a Ranker. A nil gen makes every ranking use keywords.
func NewRanker(gen engine.Generator) *Ranker {
	return &Ranker{gen: gen, logger: slog.Default()}
}

// Rank returns up to limit matches for query. When the generator fails or
// returns something unparseable, the keyword ranking is used instead.
func (r *Ranker) Rank(ctx context.Context, query string, candidates []remote.Candidate, limit int) []Match {
	if len(candidates) == 0 || limit <= 0 {
		return nil
	}
	if r.gen == nil {
		return KeywordRank(query, candidates, limit)
	}

	matches, err := r.generatorRank(ctx, query, candidates, limit)
	if err != nil {
		r.logger.Warn("generator ranking failed, using keyword ranking", "generator", r.gen.Name(), "error", err)
		return KeywordRank(query, candidates, limit)
	}
	return matches
}

type rankResponse struct {
	Matches   []int  `json:"matches"`
	Reasoning string `json:"reasoning"`
}

func (r *Ranker) generatorRank(ctx context.Context, query string, candidates []remote.Candidate, limit int) ([]Match, error) {
	out, err := r.gen.Generate(ctx, rankPrompt(query, candidates, limit), rankMaxTokens)
	if err != nil {
		return nil, err
	}
	raw, err := ExtractJSON(out)
	if err != nil {
		return nil, err
	}
	var resp rankResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("decoding ranking: %w", err)
	}
	r.logger.Debug("generator ranking", "matches", resp.Matches, "reasoning", resp.Reasoning)

	// Similarity follows the position in the full returned list, so a
	// skipped index still costs the ones after it.
	total := float64(len(resp.Matches))
	seen := make(map[int]bool, len(resp.Matches))
	var matches []Match
	for pos, idx := range resp.Matches {
		if len(matches) == limit {
			break
		}
		if idx < 1 || idx > len(candidates) || seen[idx] {
			continue
		}
		seen[idx] = true
		matches = append(matches, Match{
			Candidate:  candidates[idx-1],
			Similarity: 1 - float64(pos)/total,
		})
	}
	return matches, nil
}

func rankPrompt(query string, candidates []remote.Candidate, limit int) string {
	var b strings.Builder
	b.WriteString("Pick the candidates most similar to the error below.\n\n")
	b.WriteString("Error:\n")
	b.WriteString(query)
	b.WriteString("\n\nCandidates:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, truncate(c.Message, candidateTextLimit))
	}
	fmt.Fprintf(&b, `
Rules:
- Prefer candidates with the same error type, cause and context.
- Choose at most %d, most similar first.
- Return an empty list when nothing is similar.

Reply with JSON only:
{"matches": [candidate numbers], "reasoning": "why"}`, limit)
	return b.String()
}

// ExtractJSON returns the first balanced {...} span in text. Braces inside
// JSON strings do not count toward the nesting depth.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", errNoJSON
	}
	var (
		depth   int
		inStr   bool
		escaped bool
	)
	for i := start; i < len(text); i++ {
		c := text[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", errNoJSON
}

// Summarize condenses the solutions for query into a few sentences. Without
// a generator, or when it fails, the first resolution is returned.
func (r *Ranker) Summarize(ctx context.Context, query string, solutions []remote.Solution) string {
	if len(solutions) == 0 {
		return NoSolutionsSummary
	}
	if r.gen == nil {
		return solutions[0].Resolution
	}

	out, err := r.gen.Generate(ctx, summaryPrompt(query, solutions), summaryMaxTokens)
	if err != nil {
		r.logger.Warn("summarising solutions failed", "generator", r.gen.Name(), "error", err)
		return solutions[0].Resolution
	}
	if out = strings.TrimSpace(out); out == "" {
		return solutions[0].Resolution
	}
	return out
}

func summaryPrompt(query string, solutions []remote.Solution) string {
	var b strings.Builder
	b.WriteString("Summarise the community solutions for this error.\n\n")
	b.WriteString("Error:\n")
	b.WriteString(query)
	b.WriteString("\n\nSolutions:\n")
	for i, s := range solutions {
		fmt.Fprintf(&b, "%d. [+%d] %s\n", i+1, s.Upvotes, s.Resolution)
	}
	b.WriteString(`
Guidelines:
- Lead with the most effective solution.
- Give the key steps briefly.
- If there are several, note what they share and where they differ.
- Two or three sentences.`)
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/fixhive/internal/fingerprint"
	"github.com/kalambet/fixhive/internal/redact"
	"github.com/kalambet/fixhive/internal/remote"
	"github.com/kalambet/fixhive/internal/storage"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 20
	localSimilarity    = 0.5
	searchKeywords     = 3
	solutionFetchers   = 4
)

// SearchInput holds the fixhive_search arguments.
type SearchInput struct {
	ErrorMessage string
	Language     string
	Framework    string
	Limit        int
}

type SearchResult struct {
	Found       bool        `json:"found"`
	ResultCount int         `json:"resultCount,omitempty"`
	Summary     string      `json:"summary,omitempty"`
	Results     []SearchHit `json:"results,omitempty"`
	Hint        string      `json:"hint,omitempty"`
	Message     string      `json:"message,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty"`
}

type SearchHit struct {
	Rank          int          `json:"rank"`
	ErrorID       string       `json:"errorId"`
	ErrorMessage  string       `json:"errorMessage"`
	Similarity    string       `json:"similarity"`
	SolutionCount int          `json:"solutionCount"`
	TopSolution   *TopSolution `json:"topSolution"`
}

type TopSolution struct {
	ID         string `json:"id"`
	Resolution string `json:"resolution"`
	Votes      int    `json:"votes"`
}

// hit is a search result before formatting.
type hit struct {
	errorID    string
	message    string
	similarity float64
	solutions  []remote.Solution
}

// Search looks for known errors resembling in.ErrorMessage. With cloud
// enabled the remote candidates are ranked first; when that yields nothing
// the local store is searched by substring.
func (s *Service) Search(ctx context.Context, in SearchInput) (SearchResult, error) {
	if strings.TrimSpace(in.ErrorMessage) == "" {
		return SearchResult{}, invalid("errorMessage", "errorMessage is required")
	}
	if in.Limit == 0 {
		in.Limit = defaultSearchLimit
	}
	if in.Limit < 1 || in.Limit > maxSearchLimit {
		return SearchResult{}, invalid("limit", fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit))
	}

	s.logger.Info("searching for error solutions",
		"message", truncate(in.ErrorMessage, 100), "language", in.Language, "framework", in.Framework)

	var hits []hit
	if s.gateway != nil {
		var err error
		hits, err = s.cloudSearch(ctx, in)
		if err != nil {
			s.logger.Warn("cloud search failed, falling back to local", "error", err)
			hits = nil
		}
	}

	if len(hits) == 0 {
		var err error
		hits, err = s.localSearch(in)
		if err != nil {
			return SearchResult{}, err
		}
	}

	if len(hits) == 0 {
		return SearchResult{
			Found:   false,
			Message: "No similar errors found in the knowledge base.",
			Suggestions: []string{
				"Try searching with different keywords",
				"Check if the error message is complete",
				"Consider contributing your solution after resolving the issue",
			},
		}, nil
	}

	res := SearchResult{
		Found:       true,
		ResultCount: len(hits),
		Results:     make([]SearchHit, len(hits)),
		Hint:        "Use fixhive_vote to upvote helpful solutions, or fixhive_helpful to mark them as helpful.",
	}
	for i, h := range hits {
		sh := SearchHit{
			Rank:          i + 1,
			ErrorID:       h.errorID,
			ErrorMessage:  h.message,
			Similarity:    fmt.Sprintf("%d%%", int(math.Round(h.similarity*100))),
			SolutionCount: len(h.solutions),
		}
		if len(h.solutions) > 0 {
			top := h.solutions[0]
			sh.TopSolution = &TopSolution{ID: top.ID, Resolution: top.Resolution, Votes: top.Upvotes - top.Downvotes}
		}
		res.Results[i] = sh
	}

	if s.gateway != nil && len(hits[0].solutions) > 0 {
		res.Summary = s.ranker.Summarize(ctx, redact.Redact(in.ErrorMessage).Text, hits[0].solutions)
	}
	return res, nil
}

func (s *Service) cloudSearch(ctx context.Context, in SearchInput) ([]hit, error) {
	query := redact.Redact(in.ErrorMessage).Text
	candidates, err := s.candidates(ctx, query, remote.Filter{Language: in.Language, Framework: in.Framework})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		s.logger.Info("no candidates found for similarity search")
		return nil, nil
	}

	matches := s.ranker.Rank(ctx, query, candidates, in.Limit)
	hits := make([]hit, len(matches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(solutionFetchers)
	for i, m := range matches {
		hits[i] = hit{errorID: m.Candidate.ID, message: m.Candidate.Message, similarity: m.Similarity}
		g.Go(func() error {
			sols, err := s.gateway.Solutions(gctx, m.Candidate.ID)
			if err != nil {
				return err
			}
			hits[i].solutions = sols
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hits, nil
}

// candidates returns the most recent remote errors plus full-text hits on
// the query's leading keywords, deduplicated and capped at
// remote.CandidateLimit. The full-text lookup is best effort.
func (s *Service) candidates(ctx context.Context, query string, f remote.Filter) ([]remote.Candidate, error) {
	f.Limit = remote.CandidateLimit
	recent, err := s.gateway.Candidates(ctx, f)
	if err != nil {
		return nil, err
	}

	var text []remote.Candidate
	if kw := fingerprint.Keywords(query); len(kw) > 0 {
		kw = kw[:min(len(kw), searchKeywords)]
		tf := f
		tf.Limit = 10
		text, err = s.gateway.SearchText(ctx, strings.Join(kw, " "), tf)
		if err != nil {
			s.logger.Debug("text candidate lookup failed", "error", err)
			text = nil
		}
	}

	seen := make(map[string]bool, len(recent)+len(text))
	out := make([]remote.Candidate, 0, min(remote.CandidateLimit, len(recent)+len(text)))
	for _, list := range [][]remote.Candidate{text, recent} {
		for _, c := range list {
			if len(out) == remote.CandidateLimit {
				return out, nil
			}
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) localSearch(in SearchInput) ([]hit, error) {
	records, err := s.store.SearchErrors(storage.SearchQuery{
		Text:      in.ErrorMessage,
		Language:  in.Language,
		Framework: in.Framework,
		Limit:     in.Limit,
	})
	if err != nil {
		return nil, s.storageErr("search errors", err)
	}

	hits := make([]hit, 0, len(records))
	for _, r := range records {
		sols, err := s.store.SolutionsForError(r.ID)
		if err != nil {
			return nil, s.storageErr("solutions for error", err)
		}
		hits = append(hits, hit{
			errorID:    r.ID,
			message:    r.Message,
			similarity: localSimilarity,
			solutions:  localSolutions(sols),
		})
	}
	return hits, nil
}

func localSolutions(sols []storage.Solution) []remote.Solution {
	out := make([]remote.Solution, len(sols))
	for i, s := range sols {
		out[i] = remote.Solution{
			ID:             s.ID,
			ErrorID:        s.ErrorID,
			Resolution:     s.Resolution,
			ResolutionCode: s.ResolutionCode,
			Upvotes:        s.Upvotes,
			Downvotes:      s.Downvotes,
			ContributorID:  s.ContributorID,
			CreatedAt:      s.CreatedAt,
		}
	}
	return out
}

// Package mock provides an in-memory remote.Gateway for tests.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/fixhive/internal/remote"
	"github.com/kalambet/fixhive/internal/vote"
)

var errDown = errors.New("mock gateway is down")

type storedError struct {
	remote.Candidate
	hash      string
	createdAt time.Time
}

type voteKey struct{ knowledge, contributor string }

// Report is a recorded content report.
type Report struct {
	KnowledgeID string
	Reason      string
	ReporterID  string
}

// Gateway keeps everything in maps. Set Down to make every call fail with
// remote.ErrUnavailable.
type Gateway struct {
	mu        sync.Mutex
	down      bool
	errors    map[string]*storedError
	byHash    map[string]string
	solutions map[string]*remote.Solution
	votes     map[voteKey]bool
	reports   []Report
	calls     map[string]int
	seq       int
}

func New() *Gateway {
	return &Gateway{
		errors:    make(map[string]*storedError),
		byHash:    make(map[string]string),
		solutions: make(map[string]*remote.Solution),
		votes:     make(map[voteKey]bool),
		calls:     make(map[string]int),
	}
}

// SetDown toggles simulated unavailability.
func (g *Gateway) SetDown(down bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.down = down
}

// Calls returns how many times op was invoked, including failed calls.
func (g *Gateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *Gateway) enter(op string) error {
	g.calls[op]++
	if g.down {
		return fmt.Errorf("%s: %w: %w", op, remote.ErrUnavailable, errDown)
	}
	return nil
}

func (g *Gateway) UpsertError(_ context.Context, row remote.ErrorRow) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("UpsertError"); err != nil {
		return "", err
	}
	if id, ok := g.byHash[row.MessageHash]; ok {
		return id, nil
	}
	g.seq++
	id := uuid.NewString()
	g.errors[id] = &storedError{
		Candidate: remote.Candidate{ID: id, Message: row.Message, Language: row.Language, Framework: row.Framework},
		hash:      row.MessageHash,
		createdAt: time.Unix(int64(g.seq), 0),
	}
	g.byHash[row.MessageHash] = id
	return id, nil
}

func (g *Gateway) UpsertSolution(_ context.Context, row remote.SolutionRow) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("UpsertSolution"); err != nil {
		return "", err
	}
	if _, ok := g.errors[row.ErrorID]; !ok {
		return "", fmt.Errorf("upsert solution: %w: unknown error %s", remote.ErrUnavailable, row.ErrorID)
	}
	for _, s := range g.solutions {
		if s.ErrorID == row.ErrorID && s.ContributorID == row.ContributorID && s.Resolution == row.Resolution {
			return s.ID, nil
		}
	}
	g.seq++
	id := uuid.NewString()
	g.solutions[id] = &remote.Solution{
		ID:             id,
		ErrorID:        row.ErrorID,
		Resolution:     row.Resolution,
		ResolutionCode: row.ResolutionCode,
		ContributorID:  row.ContributorID,
		CreatedAt:      time.Unix(int64(g.seq), 0),
	}
	return id, nil
}

func (g *Gateway) filtered(f remote.Filter, match func(*storedError) bool, def int) []remote.Candidate {
	var list []*storedError
	for _, e := range g.errors {
		if f.Language != "" && e.Language != f.Language {
			continue
		}
		if f.Framework != "" && e.Framework != f.Framework {
			continue
		}
		if match != nil && !match(e) {
			continue
		}
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].createdAt.After(list[j].createdAt) })

	limit := f.Limit
	if limit <= 0 {
		limit = def
	}
	out := make([]remote.Candidate, 0, min(limit, len(list)))
	for _, e := range list {
		if len(out) == limit {
			break
		}
		out = append(out, e.Candidate)
	}
	return out
}

func (g *Gateway) Candidates(_ context.Context, f remote.Filter) ([]remote.Candidate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("Candidates"); err != nil {
		return nil, err
	}
	return g.filtered(f, nil, remote.CandidateLimit), nil
}

// SearchText matches when every query word occurs in the message.
func (g *Gateway) SearchText(_ context.Context, query string, f remote.Filter) ([]remote.Candidate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("SearchText"); err != nil {
		return nil, err
	}
	words := strings.Fields(strings.ToLower(query))
	return g.filtered(f, func(e *storedError) bool {
		msg := strings.ToLower(e.Message)
		for _, w := range words {
			if !strings.Contains(msg, w) {
				return false
			}
		}
		return true
	}, 10), nil
}

func (g *Gateway) Solutions(_ context.Context, errorID string) ([]remote.Solution, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("Solutions"); err != nil {
		return nil, err
	}
	var out []remote.Solution
	for _, s := range g.solutions {
		if s.ErrorID == errorID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Upvotes != out[j].Upvotes {
			return out[i].Upvotes > out[j].Upvotes
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (g *Gateway) ApplyVote(_ context.Context, knowledgeID, contributorID string, helpful bool) (vote.Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("ApplyVote"); err != nil {
		return vote.Outcome{}, err
	}
	k := voteKey{knowledgeID, contributorID}
	var prior *bool
	if v, ok := g.votes[k]; ok {
		prior = &v
	}
	o := vote.Decide(prior, helpful)
	if o.Applied() {
		g.votes[k] = helpful
	} else {
		delete(g.votes, k)
	}
	if s, ok := g.solutions[knowledgeID]; ok {
		s.Upvotes = max(0, s.Upvotes+o.UpDelta)
		s.Downvotes = max(0, s.Downvotes+o.DownDelta)
	}
	return o, nil
}

func (g *Gateway) Report(_ context.Context, knowledgeID, reason, reporterID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("Report"); err != nil {
		return err
	}
	g.reports = append(g.reports, Report{KnowledgeID: knowledgeID, Reason: reason, ReporterID: reporterID})
	return nil
}

func (g *Gateway) Ping(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enter("Ping")
}

func (g *Gateway) Close() error { return nil }

// Errors returns the number of stored errors.
func (g *Gateway) Errors() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.errors)
}

// Solution returns a copy of a stored solution.
func (g *Gateway) Solution(id string) (remote.Solution, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.solutions[id]
	if !ok {
		return remote.Solution{}, false
	}
	return *s, true
}

// SolutionCount returns the number of stored solutions.
func (g *Gateway) SolutionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.solutions)
}

// Vote returns the live vote polarity for a contributor, if any.
func (g *Gateway) Vote(knowledgeID, contributorID string) (helpful, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	helpful, ok = g.votes[voteKey{knowledgeID, contributorID}]
	return helpful, ok
}

// Reports returns a copy of the recorded reports.
func (g *Gateway) Reports() []Report {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Report(nil), g.reports...)
}

// SeedSolution stores a solution directly, creating its error if needed.
func (g *Gateway) SeedSolution(errorMessage, resolution string, up, down int) (errorID, solutionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	errorID = uuid.NewString()
	g.errors[errorID] = &storedError{
		Candidate: remote.Candidate{ID: errorID, Message: errorMessage},
		hash:      errorID,
		createdAt: time.Unix(int64(g.seq), 0),
	}
	g.byHash[errorID] = errorID
	solutionID = uuid.NewString()
	g.solutions[solutionID] = &remote.Solution{
		ID:            solutionID,
		ErrorID:       errorID,
		Resolution:    resolution,
		Upvotes:       up,
		Downvotes:     down,
		ContributorID: "seed",
		CreatedAt:     time.Unix(int64(g.seq), 0),
	}
	return errorID, solutionID
}

var _ remote.Gateway = (*Gateway)(nil)

// Package remote talks to the shared knowledge store. Two backends exist:
// a PostgREST (Supabase) client and a direct Postgres client. Both can be
// wrapped with a rate limiter and a Redis candidate cache.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/fixhive/internal/vote"
)

var (
	// ErrUnavailable wraps every failure to reach or use the remote store.
	ErrUnavailable = errors.New("remote unavailable")
	// ErrRateLimited is returned when the local limiter or the server
	// refuses a call. It is always reported together with ErrUnavailable.
	ErrRateLimited = errors.New("remote rate limited")
)

// CandidateLimit caps the candidate set handed to similarity ranking.
const CandidateLimit = 50

// ErrorRow is an error record as uploaded.
type ErrorRow struct {
	Message       string `json:"message"`
	MessageHash   string `json:"message_hash"`
	Language      string `json:"language,omitempty"`
	Framework     string `json:"framework,omitempty"`
	ContributorID string `json:"contributor_id"`
}

// SolutionRow is a solution as uploaded. ErrorID is the remote error id.
type SolutionRow struct {
	ErrorID        string `json:"error_id"`
	Resolution     string `json:"resolution"`
	ResolutionCode string `json:"resolution_code,omitempty"`
	ContributorID  string `json:"contributor_id"`
}

// Candidate is a remote error record offered to similarity ranking.
type Candidate struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Language  string `json:"language,omitempty"`
	Framework string `json:"framework,omitempty"`
}

type Solution struct {
	ID             string    `json:"id"`
	ErrorID        string    `json:"error_id"`
	Resolution     string    `json:"resolution"`
	ResolutionCode string    `json:"resolution_code,omitempty"`
	Upvotes        int       `json:"upvotes"`
	Downvotes      int       `json:"downvotes"`
	ContributorID  string    `json:"contributor_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Filter narrows candidate and text searches. Empty fields do not filter.
type Filter struct {
	Language  string
	Framework string
	Limit     int
}

func (f Filter) limit(def int) int {
	if f.Limit <= 0 {
		return def
	}
	return f.Limit
}

// Gateway is the contract every remote backend implements. Failures are
// wrapped with ErrUnavailable.
type Gateway interface {
	// UpsertError stores an error keyed by its message hash and returns the
	// remote id. Uploading the same hash twice returns the same id.
	UpsertError(ctx context.Context, row ErrorRow) (string, error)
	// UpsertSolution stores a solution keyed by error, contributor and
	// resolution text and returns the remote id.
	UpsertSolution(ctx context.Context, row SolutionRow) (string, error)
	// Candidates returns the most recent errors, newest first.
	Candidates(ctx context.Context, f Filter) ([]Candidate, error)
	// SearchText runs a full-text search over error messages.
	SearchText(ctx context.Context, query string, f Filter) ([]Candidate, error)
	// Solutions returns the solutions of a remote error, best voted first.
	Solutions(ctx context.Context, errorID string) ([]Solution, error)
	// ApplyVote applies the vote toggle rule for one contributor.
	ApplyVote(ctx context.Context, knowledgeID, contributorID string, helpful bool) (vote.Outcome, error)
	Report(ctx context.Context, knowledgeID, reason, reporterID string) error
	Ping(ctx context.Context) error
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Counter RPC names, shared by the REST and Postgres backends.
const (
	rpcIncrementUpvotes   = "increment_upvotes"
	rpcDecrementUpvotes   = "decrement_upvotes"
	rpcIncrementDownvotes = "increment_downvotes"
	rpcDecrementDownvotes = "decrement_downvotes"
)

// counterCalls translates an outcome into the counter RPCs that realize it.
func counterCalls(o vote.Outcome) []string {
	var calls []string
	switch {
	case o.UpDelta > 0:
		calls = append(calls, rpcIncrementUpvotes)
	case o.UpDelta < 0:
		calls = append(calls, rpcDecrementUpvotes)
	}
	switch {
	case o.DownDelta > 0:
		calls = append(calls, rpcIncrementDownvotes)
	case o.DownDelta < 0:
		calls = append(calls, rpcDecrementDownvotes)
	}
	return calls
}

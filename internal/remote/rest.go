package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/fixhive/internal/vote"
)

const (
	defaultTimeout = 10 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// RESTClient talks to a PostgREST endpoint such as a Supabase project.
type RESTClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewRESTClient creates a client for the project at baseURL. A zero timeout
// selects the default.
func NewRESTClient(baseURL, apiKey string, timeout time.Duration) *RESTClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &RESTClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/") + "/rest/v1",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	_, ok := err.(*rateLimitError)
	return ok
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	prefer string
}

// do sends req, retrying on 429 with exponential backoff, and decodes the
// JSON response into out when out is non-nil.
func (c *RESTClient) do(ctx context.Context, req request, out any) error {
	var body []byte
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = b
	}

	var lastErr error
	for attempt := range maxRetries {
		err := c.doOnce(ctx, req, body, out)
		if err == nil {
			return nil
		}
		if !isRateLimit(err) {
			return err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("%w after %d retries: %v", ErrRateLimited, maxRetries, lastErr)
}

func (c *RESTClient) doOnce(ctx context.Context, req request, body []byte, out any) error {
	u := c.baseURL + "/" + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, rd)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)
	if req.prefer != "" {
		httpReq.Header.Set("Prefer", req.prefer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &rateLimitError{status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *RESTClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

type idRow struct {
	ID string `json:"id"`
}

func eq(v string) string { return "eq." + v }

// findID returns the id of the first row in table matching filters, or "".
func (c *RESTClient) findID(ctx context.Context, table string, filters url.Values) (string, error) {
	q := url.Values{"select": {"id"}, "limit": {"1"}}
	for k, v := range filters {
		q[k] = v
	}
	var rows []idRow
	if err := c.do(ctx, request{method: http.MethodGet, path: table, query: q}, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].ID, nil
}

func (c *RESTClient) insertReturningID(ctx context.Context, table string, row any) (string, error) {
	var rows []idRow
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   table,
		query:  url.Values{"select": {"id"}},
		body:   row,
		prefer: "return=representation",
	}, &rows)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0].ID == "" {
		return "", fmt.Errorf("insert into %s returned no id", table)
	}
	return rows[0].ID, nil
}

func (c *RESTClient) UpsertError(ctx context.Context, row ErrorRow) (string, error) {
	id, err := c.findID(ctx, "errors", url.Values{"message_hash": {eq(row.MessageHash)}})
	if err != nil {
		return "", unavailable("looking up error", err)
	}
	if id != "" {
		return id, nil
	}
	id, err = c.insertReturningID(ctx, "errors", row)
	if err != nil {
		return "", unavailable("uploading error", err)
	}
	return id, nil
}

func (c *RESTClient) UpsertSolution(ctx context.Context, row SolutionRow) (string, error) {
	id, err := c.findID(ctx, "solutions", url.Values{
		"error_id":       {eq(row.ErrorID)},
		"contributor_id": {eq(row.ContributorID)},
		"resolution":     {eq(row.Resolution)},
	})
	if err != nil {
		return "", unavailable("looking up solution", err)
	}
	if id != "" {
		return id, nil
	}
	id, err = c.insertReturningID(ctx, "solutions", row)
	if err != nil {
		return "", unavailable("uploading solution", err)
	}
	return id, nil
}

func filterQuery(f Filter, def int) url.Values {
	q := url.Values{
		"select": {"id,message,language,framework"},
		"order":  {"created_at.desc"},
		"limit":  {strconv.Itoa(f.limit(def))},
	}
	if f.Language != "" {
		q.Set("language", eq(f.Language))
	}
	if f.Framework != "" {
		q.Set("framework", eq(f.Framework))
	}
	return q
}

func (c *RESTClient) Candidates(ctx context.Context, f Filter) ([]Candidate, error) {
	var out []Candidate
	if err := c.do(ctx, request{method: http.MethodGet, path: "errors", query: filterQuery(f, CandidateLimit)}, &out); err != nil {
		return nil, unavailable("fetching candidates", err)
	}
	return out, nil
}

func (c *RESTClient) SearchText(ctx context.Context, query string, f Filter) ([]Candidate, error) {
	q := filterQuery(f, 10)
	q.Set("message", "wfts."+query)
	var out []Candidate
	if err := c.do(ctx, request{method: http.MethodGet, path: "errors", query: q}, &out); err != nil {
		return nil, unavailable("searching errors", err)
	}
	return out, nil
}

func (c *RESTClient) Solutions(ctx context.Context, errorID string) ([]Solution, error) {
	q := url.Values{
		"select":   {"*"},
		"error_id": {eq(errorID)},
		"order":    {"upvotes.desc,created_at.desc"},
	}
	var out []Solution
	if err := c.do(ctx, request{method: http.MethodGet, path: "solutions", query: q}, &out); err != nil {
		return nil, unavailable("fetching solutions", err)
	}
	return out, nil
}

type voteRow struct {
	ID      string `json:"id"`
	Helpful bool   `json:"helpful"`
}

func (c *RESTClient) ApplyVote(ctx context.Context, knowledgeID, contributorID string, helpful bool) (vote.Outcome, error) {
	var existing []voteRow
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "votes",
		query: url.Values{
			"select":         {"id,helpful"},
			"knowledge_id":   {eq(knowledgeID)},
			"contributor_id": {eq(contributorID)},
			"limit":          {"1"},
		},
	}, &existing)
	if err != nil {
		return vote.Outcome{}, unavailable("reading vote", err)
	}

	var prior *bool
	if len(existing) > 0 {
		prior = &existing[0].Helpful
	}
	o := vote.Decide(prior, helpful)

	switch o.Action {
	case vote.Insert:
		err = c.do(ctx, request{
			method: http.MethodPost,
			path:   "votes",
			body: map[string]any{
				"knowledge_id":   knowledgeID,
				"helpful":        helpful,
				"contributor_id": contributorID,
			},
			prefer: "return=minimal",
		}, nil)
	case vote.Retract:
		err = c.do(ctx, request{
			method: http.MethodDelete,
			path:   "votes",
			query:  url.Values{"id": {eq(existing[0].ID)}},
		}, nil)
	case vote.Flip:
		err = c.do(ctx, request{
			method: http.MethodPatch,
			path:   "votes",
			query:  url.Values{"id": {eq(existing[0].ID)}},
			body:   map[string]any{"helpful": helpful},
			prefer: "return=minimal",
		}, nil)
	}
	if err != nil {
		return vote.Outcome{}, unavailable("recording vote", err)
	}

	for _, fn := range counterCalls(o) {
		if err := c.do(ctx, request{
			method: http.MethodPost,
			path:   "rpc/" + fn,
			body:   map[string]string{"solution_id": knowledgeID},
		}, nil); err != nil {
			return vote.Outcome{}, unavailable("calling "+fn, err)
		}
	}
	return o, nil
}

func (c *RESTClient) Report(ctx context.Context, knowledgeID, reason, reporterID string) error {
	row := map[string]any{
		"knowledge_id": knowledgeID,
		"reporter_id":  reporterID,
	}
	if reason != "" {
		row["reason"] = reason
	}
	if err := c.do(ctx, request{method: http.MethodPost, path: "reports", body: row, prefer: "return=minimal"}, nil); err != nil {
		return unavailable("reporting content", err)
	}
	return nil
}

func (c *RESTClient) Ping(ctx context.Context) error {
	if _, err := c.findID(ctx, "errors", nil); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (c *RESTClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

package remote

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kalambet/fixhive/internal/vote"
)

// maxLimiterWait is how long a call may queue for a token before it is
// refused with ErrRateLimited.
const maxLimiterWait = 2 * time.Second

// Limited throttles calls to the wrapped gateway.
type Limited struct {
	next    Gateway
	limiter *rate.Limiter
	maxWait time.Duration
}

// WithRateLimit wraps g so that at most perSecond calls run per second,
// with bursts of up to burst calls. A non-positive perSecond disables
// limiting and returns g unchanged.
func WithRateLimit(g Gateway, perSecond float64, burst int) Gateway {
	if perSecond <= 0 {
		return g
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		next:    g,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		maxWait: maxLimiterWait,
	}
}

func (l *Limited) wait(ctx context.Context, op string) error {
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, ErrRateLimited)
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if delay > l.maxWait {
		r.Cancel()
		return fmt.Errorf("%s: %w: %w (next slot in %s)", op, ErrUnavailable, ErrRateLimited, delay.Round(time.Millisecond))
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return unavailable(op, ctx.Err())
	case <-t.C:
		return nil
	}
}

func (l *Limited) UpsertError(ctx context.Context, row ErrorRow) (string, error) {
	if err := l.wait(ctx, "upsert error"); err != nil {
		return "", err
	}
	return l.next.UpsertError(ctx, row)
}

func (l *Limited) UpsertSolution(ctx context.Context, row SolutionRow) (string, error) {
	if err := l.wait(ctx, "upsert solution"); err != nil {
		return "", err
	}
	return l.next.UpsertSolution(ctx, row)
}

func (l *Limited) Candidates(ctx context.Context, f Filter) ([]Candidate, error) {
	if err := l.wait(ctx, "candidates"); err != nil {
		return nil, err
	}
	return l.next.Candidates(ctx, f)
}

func (l *Limited) SearchText(ctx context.Context, query string, f Filter) ([]Candidate, error) {
	if err := l.wait(ctx, "search"); err != nil {
		return nil, err
	}
	return l.next.SearchText(ctx, query, f)
}

func (l *Limited) Solutions(ctx context.Context, errorID string) ([]Solution, error) {
	if err := l.wait(ctx, "solutions"); err != nil {
		return nil, err
	}
	return l.next.Solutions(ctx, errorID)
}

func (l *Limited) ApplyVote(ctx context.Context, knowledgeID, contributorID string, helpful bool) (vote.Outcome, error) {
	if err := l.wait(ctx, "vote"); err != nil {
		return vote.Outcome{}, err
	}
	return l.next.ApplyVote(ctx, knowledgeID, contributorID, helpful)
}

func (l *Limited) Report(ctx context.Context, knowledgeID, reason, reporterID string) error {
	if err := l.wait(ctx, "report"); err != nil {
		return err
	}
	return l.next.Report(ctx, knowledgeID, reason, reporterID)
}

func (l *Limited) Ping(ctx context.Context) error {
	return l.next.Ping(ctx)
}

func (l *Limited) Close() error {
	return l.next.Close()
}

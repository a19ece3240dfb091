package remote

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Options selects and tunes the gateway built by Open.
type Options struct {
	URL         string // PostgREST project URL
	Key         string // PostgREST API key
	DatabaseURL string // direct Postgres DSN; preferred over URL/Key
	RateLimit   float64
	Timeout     time.Duration
	RedisURL    string
	CacheTTL    time.Duration
}

// Enabled reports whether enough is configured to reach a remote store.
func (o Options) Enabled() bool {
	return o.DatabaseURL != "" || (o.URL != "" && o.Key != "")
}

// Open builds the configured gateway stack: backend, then rate limiter,
// then cache. It returns nil, nil when no remote is configured.
func Open(ctx context.Context, o Options) (Gateway, error) {
	if !o.Enabled() {
		return nil, nil
	}

	var g Gateway
	if o.DatabaseURL != "" {
		pctx, cancel := context.WithTimeout(ctx, timeoutOr(o.Timeout))
		defer cancel()
		pg, err := ConnectPostgres(pctx, o.DatabaseURL)
		if err != nil {
			return nil, err
		}
		g = pg
		slog.Info("remote gateway: postgres")
	} else {
		g = NewRESTClient(o.URL, o.Key, o.Timeout)
		slog.Info("remote gateway: rest", "url", o.URL)
	}

	g = WithRateLimit(g, o.RateLimit, max(1, int(o.RateLimit)))

	if o.RedisURL != "" {
		rc, err := NewRedisCache(o.RedisURL)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("opening candidate cache: %w", err)
		}
		ttl := o.CacheTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		g = WithCache(g, rc, ttl)
		slog.Info("remote gateway: redis cache enabled", "ttl", ttl)
	}
	return g, nil
}

func timeoutOr(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}

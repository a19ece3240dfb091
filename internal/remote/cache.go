package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kalambet/fixhive/internal/vote"
)

// Cache is the byte store behind Cached. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// RedisCache implements Cache using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func candidatesKey(f Filter) string {
	return fmt.Sprintf("fixhive:candidates:%s:%s:%d", f.Language, f.Framework, f.limit(CandidateLimit))
}

func solutionsKey(errorID string) string {
	return "fixhive:solutions:" + errorID
}

// Cached serves candidate and solution reads from a cache. Cache errors are
// logged and fall through to the wrapped gateway.
type Cached struct {
	next   Gateway
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// WithCache wraps g with c. Entries expire after ttl.
func WithCache(g Gateway, c Cache, ttl time.Duration) *Cached {
	return &Cached{next: g, cache: c, ttl: ttl, logger: slog.Default()}
}

func cachedRead[T any](ctx context.Context, c *Cached, key string, load func() (T, error)) (T, error) {
	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		c.logger.Warn("discarding undecodable cache entry", "key", key)
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return v, nil
}

func (c *Cached) invalidate(ctx context.Context, keys ...string) {
	if err := c.cache.Delete(ctx, keys...); err != nil {
		c.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}

func (c *Cached) Candidates(ctx context.Context, f Filter) ([]Candidate, error) {
	return cachedRead(ctx, c, candidatesKey(f), func() ([]Candidate, error) {
		return c.next.Candidates(ctx, f)
	})
}

func (c *Cached) Solutions(ctx context.Context, errorID string) ([]Solution, error) {
	return cachedRead(ctx, c, solutionsKey(errorID), func() ([]Solution, error) {
		return c.next.Solutions(ctx, errorID)
	})
}

// UpsertError drops the unfiltered and matching filtered candidate lists so
// the new error shows up before the TTL runs out.
func (c *Cached) UpsertError(ctx context.Context, row ErrorRow) (string, error) {
	id, err := c.next.UpsertError(ctx, row)
	if err != nil {
		return "", err
	}
	c.invalidate(ctx,
		candidatesKey(Filter{}),
		candidatesKey(Filter{Language: row.Language}),
		candidatesKey(Filter{Framework: row.Framework}),
		candidatesKey(Filter{Language: row.Language, Framework: row.Framework}),
	)
	return id, nil
}

func (c *Cached) UpsertSolution(ctx context.Context, row SolutionRow) (string, error) {
	id, err := c.next.UpsertSolution(ctx, row)
	if err != nil {
		return "", err
	}
	c.invalidate(ctx, solutionsKey(row.ErrorID))
	return id, nil
}

func (c *Cached) SearchText(ctx context.Context, query string, f Filter) ([]Candidate, error) {
	return c.next.SearchText(ctx, query, f)
}

func (c *Cached) ApplyVote(ctx context.Context, knowledgeID, contributorID string, helpful bool) (vote.Outcome, error) {
	return c.next.ApplyVote(ctx, knowledgeID, contributorID, helpful)
}

func (c *Cached) Report(ctx context.Context, knowledgeID, reason, reporterID string) error {
	return c.next.Report(ctx, knowledgeID, reason, reporterID)
}

func (c *Cached) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

func (c *Cached) Close() error {
	cerr := c.cache.Close()
	if err := c.next.Close(); err != nil {
		return err
	}
	return cerr
}

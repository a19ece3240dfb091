package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kalambet/fixhive/internal/vote"
)

// Postgres is a Gateway backed directly by the knowledge store's database.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pool for dsn and verifies connectivity.
func ConnectPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, unavailable("connect to database", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping database", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) UpsertError(ctx context.Context, row ErrorRow) (string, error) {
	var id string
	err := p.pool.QueryRow(ctx, `
		INSERT INTO errors (message, message_hash, language, framework, contributor_id)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		ON CONFLICT (message_hash) DO UPDATE SET message_hash = EXCLUDED.message_hash
		RETURNING id::text`,
		row.Message, row.MessageHash, row.Language, row.Framework, row.ContributorID,
	).Scan(&id)
	if err != nil {
		return "", unavailable("upsert error", err)
	}
	return id, nil
}

func (p *Postgres) UpsertSolution(ctx context.Context, row SolutionRow) (string, error) {
	var id string
	err := p.pool.QueryRow(ctx, `
		INSERT INTO solutions (error_id, resolution, resolution_code, contributor_id)
		VALUES ($1::uuid, $2, NULLIF($3, ''), $4)
		ON CONFLICT (error_id, contributor_id, md5(resolution)) DO UPDATE SET resolution = EXCLUDED.resolution
		RETURNING id::text`,
		row.ErrorID, row.Resolution, row.ResolutionCode, row.ContributorID,
	).Scan(&id)
	if err != nil {
		return "", unavailable("upsert solution", err)
	}
	return id, nil
}

func (p *Postgres) queryCandidates(ctx context.Context, op, query string, args ...any) ([]Candidate, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.Message, &c.Language, &c.Framework); err != nil {
			return nil, unavailable(op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

func (p *Postgres) Candidates(ctx context.Context, f Filter) ([]Candidate, error) {
	return p.queryCandidates(ctx, "fetch candidates", `
		SELECT id::text, message, COALESCE(language, ''), COALESCE(framework, '')
		FROM errors
		WHERE ($1 = '' OR language = $1) AND ($2 = '' OR framework = $2)
		ORDER BY created_at DESC
		LIMIT $3`,
		f.Language, f.Framework, f.limit(CandidateLimit))
}

func (p *Postgres) SearchText(ctx context.Context, query string, f Filter) ([]Candidate, error) {
	return p.queryCandidates(ctx, "search errors", `
		SELECT id::text, message, COALESCE(language, ''), COALESCE(framework, '')
		FROM errors
		WHERE to_tsvector('english', message) @@ websearch_to_tsquery('english', $1)
		  AND ($2 = '' OR language = $2) AND ($3 = '' OR framework = $3)
		ORDER BY created_at DESC
		LIMIT $4`,
		query, f.Language, f.Framework, f.limit(10))
}

func (p *Postgres) Solutions(ctx context.Context, errorID string) ([]Solution, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, error_id::text, resolution, COALESCE(resolution_code, ''), upvotes, downvotes, contributor_id, created_at
		FROM solutions
		WHERE error_id::text = $1
		ORDER BY upvotes DESC, created_at DESC`, errorID)
	if err != nil {
		return nil, unavailable("fetch solutions", err)
	}
	defer rows.Close()

	var out []Solution
	for rows.Next() {
		var s Solution
		if err := rows.Scan(&s.ID, &s.ErrorID, &s.Resolution, &s.ResolutionCode,
			&s.Upvotes, &s.Downvotes, &s.ContributorID, &s.CreatedAt); err != nil {
			return nil, unavailable("scan solution", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("fetch solutions", err)
	}
	return out, nil
}

// ApplyVote runs the toggle and the counter functions in one transaction.
func (p *Postgres) ApplyVote(ctx context.Context, knowledgeID, contributorID string, helpful bool) (vote.Outcome, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return vote.Outcome{}, unavailable("begin vote", err)
	}
	defer tx.Rollback(ctx)

	var (
		voteID  string
		current bool
		prior   *bool
	)
	err = tx.QueryRow(ctx, `
		SELECT id::text, helpful FROM votes
		WHERE knowledge_id = $1 AND contributor_id = $2
		FOR UPDATE`, knowledgeID, contributorID).Scan(&voteID, &current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return vote.Outcome{}, unavailable("read vote", err)
	default:
		prior = &current
	}

	o := vote.Decide(prior, helpful)
	switch o.Action {
	case vote.Insert:
		_, err = tx.Exec(ctx, `INSERT INTO votes (knowledge_id, helpful, contributor_id) VALUES ($1, $2, $3)`,
			knowledgeID, helpful, contributorID)
	case vote.Retract:
		_, err = tx.Exec(ctx, `DELETE FROM votes WHERE id = $1::uuid`, voteID)
	case vote.Flip:
		_, err = tx.Exec(ctx, `UPDATE votes SET helpful = $1 WHERE id = $2::uuid`, helpful, voteID)
	}
	if err != nil {
		return vote.Outcome{}, unavailable("record vote", err)
	}

	for _, fn := range counterCalls(o) {
		// fn is one of four fixed names.
		if _, err := tx.Exec(ctx, `SELECT `+fn+`($1::uuid)`, knowledgeID); err != nil {
			return vote.Outcome{}, unavailable("call "+fn, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return vote.Outcome{}, unavailable("commit vote", err)
	}
	return o, nil
}

func (p *Postgres) Report(ctx context.Context, knowledgeID, reason, reporterID string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO reports (knowledge_id, reason, reporter_id) VALUES ($1, NULLIF($2, ''), $3)`,
		knowledgeID, reason, reporterID)
	if err != nil {
		return unavailable("report content", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kalambet/fixhive/internal/vote"
)

// ApplyLocalVote records a contributor's vote on knowledgeID using the
// toggle rule. When the solution is stored locally, under its own id or its
// cloud id, its counters are adjusted in the same transaction.
func (s *Store) ApplyLocalVote(knowledgeID, contributorID string, helpful bool) (vote.Outcome, error) {
	var outcome vote.Outcome
	err := s.inTx(func(tx *sql.Tx) error {
		var (
			voteID   string
			existing *bool
			current  bool
		)
		err := tx.QueryRow(`SELECT id, helpful FROM votes WHERE knowledge_id = ? AND contributor_id = ?`,
			knowledgeID, contributorID).Scan(&voteID, &current)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("reading vote: %w", err)
		default:
			existing = &current
		}

		outcome = vote.Decide(existing, helpful)
		switch outcome.Action {
		case vote.Insert:
			_, err = tx.Exec(`INSERT INTO votes (id, knowledge_id, helpful, contributor_id, created_at) VALUES (?, ?, ?, ?, ?)`,
				uuid.NewString(), knowledgeID, helpful, contributorID, formatTime(s.now()))
		case vote.Retract:
			_, err = tx.Exec(`DELETE FROM votes WHERE id = ?`, voteID)
		case vote.Flip:
			_, err = tx.Exec(`UPDATE votes SET helpful = ?, created_at = ? WHERE id = ?`,
				helpful, formatTime(s.now()), voteID)
		}
		if err != nil {
			return fmt.Errorf("applying %s: %w", outcome.Action, err)
		}

		if _, err := tx.Exec(`
			UPDATE solutions
			SET upvotes = MAX(upvotes + ?, 0), downvotes = MAX(downvotes + ?, 0)
			WHERE id = ? OR cloud_id = ?`,
			outcome.UpDelta, outcome.DownDelta, knowledgeID, knowledgeID); err != nil {
			return fmt.Errorf("adjusting solution counters: %w", err)
		}
		return nil
	})
	if err != nil {
		return vote.Outcome{}, err
	}
	return outcome, nil
}

// LocalVote returns the polarity of the contributor's live vote on
// knowledgeID, or nil when there is none.
func (s *Store) LocalVote(knowledgeID, contributorID string) (*bool, error) {
	var helpful bool
	err := s.db.QueryRow(`SELECT helpful FROM votes WHERE knowledge_id = ? AND contributor_id = ?`,
		knowledgeID, contributorID).Scan(&helpful)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &helpful, nil
}

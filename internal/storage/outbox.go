package storage

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Enqueue validates p and appends it to the pending sync queue. It returns
// the new item id.
func (s *Store) Enqueue(p Payload) (string, error) {
	return s.enqueue(s.db, p)
}

func (s *Store) enqueue(db execer, p Payload) (string, error) {
	if p == nil {
		return "", fmt.Errorf("%w: nil payload", ErrInvalidItem)
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding %s payload: %w", p.Kind(), err)
	}

	id := uuid.NewString()
	if _, err := db.Exec(`
		INSERT INTO pending_sync (id, type, data, created_at, retry_count)
		VALUES (?, ?, ?, ?, 0)`,
		id, string(p.Kind()), string(data), formatTime(s.now()),
	); err != nil {
		return "", fmt.Errorf("enqueueing %s item: %w", p.Kind(), err)
	}
	return id, nil
}

// PendingItems returns up to limit queued items, oldest first.
func (s *Store) PendingItems(limit int) ([]Item, error) {
	rows, err := s.db.Query(`
		SELECT id, type, data, created_at, retry_count
		FROM pending_sync
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it        Item
			kind      string
			data      string
			createdAt string
		)
		if err := rows.Scan(&it.ID, &kind, &data, &createdAt, &it.RetryCount); err != nil {
			return nil, err
		}
		it.Kind = Kind(kind)
		it.Data = json.RawMessage(data)
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for item %s: %w", it.ID, err)
		}
		it.CreatedAt = t
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) RemovePending(id string) error {
	_, err := s.db.Exec(`DELETE FROM pending_sync WHERE id = ?`, id)
	return err
}

func (s *Store) IncrementRetry(id string) error {
	res, err := s.db.Exec(`UPDATE pending_sync SET retry_count = retry_count + 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasPendingVote reports whether a vote by contributorID on knowledgeID is
// still waiting in the queue.
func (s *Store) HasPendingVote(knowledgeID, contributorID string) (bool, error) {
	var found bool
	err := s.db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM pending_sync
			WHERE type = ?
			  AND json_extract(data, '$.knowledgeId') = ?
			  AND json_extract(data, '$.contributorId') = ?
		)`, string(KindVote), knowledgeID, contributorID).Scan(&found)
	return found, err
}

func (s *Store) PendingCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pending_sync`).Scan(&n)
	return n, err
}

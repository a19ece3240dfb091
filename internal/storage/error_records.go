package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const errorColumns = `id, message, message_hash, full_output, language, framework, tool_name, status, created_at, resolved_at, cloud_id`

type rowScanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func scanError(row rowScanner) (ErrorRecord, error) {
	var (
		e                               ErrorRecord
		fullOutput, language, framework sql.NullString
		resolvedAt, cloudID             sql.NullString
		createdAt                       string
	)
	if err := row.Scan(&e.ID, &e.Message, &e.MessageHash, &fullOutput, &language, &framework,
		&e.ToolName, &e.Status, &createdAt, &resolvedAt, &cloudID); err != nil {
		return ErrorRecord{}, err
	}
	e.FullOutput = fullOutput.String
	e.Language = language.String
	e.Framework = framework.String
	e.CloudID = cloudID.String

	t, err := parseTime(createdAt)
	if err != nil {
		return ErrorRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	e.CreatedAt = t
	if resolvedAt.Valid {
		rt, err := parseTime(resolvedAt.String)
		if err != nil {
			return ErrorRecord{}, fmt.Errorf("parsing resolved_at: %w", err)
		}
		e.ResolvedAt = &rt
	}
	return e, nil
}

// SaveError inserts a new error record and bumps total_errors in the same
// transaction. Inserting an existing id fails.
func (s *Store) SaveError(e ErrorRecord) error {
	if e.Status == "" {
		e.Status = StatusUnresolved
	}
	if !ValidStatus(e.Status) {
		return fmt.Errorf("invalid status %q", e.Status)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	var resolvedAt sql.NullString
	if e.ResolvedAt != nil {
		resolvedAt = nullString(formatTime(*e.ResolvedAt))
	}

	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO errors (`+errorColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Message, e.MessageHash, nullString(e.FullOutput), nullString(e.Language),
			nullString(e.Framework), e.ToolName, e.Status, formatTime(e.CreatedAt), resolvedAt,
			nullString(e.CloudID),
		); err != nil {
			return fmt.Errorf("inserting error %s: %w", e.ID, err)
		}
		return incrementStat(tx, StatTotalErrors, 1)
	})
}

func (s *Store) GetError(id string) (ErrorRecord, error) {
	e, err := scanError(s.db.QueryRow(`SELECT `+errorColumns+` FROM errors WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrorRecord{}, ErrNotFound
	}
	return e, err
}

// GetErrorByHash returns the most recent error record with the given
// fingerprint.
func (s *Store) GetErrorByHash(hash string) (ErrorRecord, error) {
	e, err := scanError(s.db.QueryRow(`
		SELECT `+errorColumns+` FROM errors
		WHERE message_hash = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrorRecord{}, ErrNotFound
	}
	return e, err
}

// ErrorsByHash returns every error record sharing the fingerprint, newest
// first.
func (s *Store) ErrorsByHash(hash string) ([]ErrorRecord, error) {
	return s.queryErrors(`
		SELECT `+errorColumns+` FROM errors
		WHERE message_hash = ?
		ORDER BY created_at DESC, rowid DESC`, hash)
}

// ListErrors returns error records newest first. An empty status lists all.
func (s *Store) ListErrors(status string, limit int) ([]ErrorRecord, error) {
	if status == "" {
		return s.queryErrors(`
			SELECT `+errorColumns+` FROM errors
			ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	}
	return s.queryErrors(`
		SELECT `+errorColumns+` FROM errors WHERE status = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, status, limit)
}

// SearchErrors matches q.Text as a substring of the message.
func (s *Store) SearchErrors(q SearchQuery) ([]ErrorRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	where := []string{`message LIKE ? ESCAPE '\'`}
	args := []any{"%" + escapeLike(q.Text) + "%"}
	if q.Language != "" {
		where = append(where, "language = ?")
		args = append(args, q.Language)
	}
	if q.Framework != "" {
		where = append(where, "framework = ?")
		args = append(args, q.Framework)
	}
	args = append(args, limit)

	return s.queryErrors(`
		SELECT `+errorColumns+` FROM errors
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func (s *Store) queryErrors(query string, args ...any) ([]ErrorRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ErrorRecord
	for rows.Next() {
		e, err := scanError(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// UpdateErrorStatus moves an error record to status. Entering resolved sets
// resolved_at to at and bumps resolved_errors.
func (s *Store) UpdateErrorStatus(id, status string, at time.Time) error {
	if !ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	return s.inTx(func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRow(`SELECT status FROM errors WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if status == StatusResolved {
			if at.IsZero() {
				at = s.now()
			}
			if _, err := tx.Exec(`UPDATE errors SET status = ?, resolved_at = ? WHERE id = ?`,
				status, formatTime(at), id); err != nil {
				return err
			}
			if current == StatusResolved {
				return nil
			}
			return incrementStat(tx, StatResolvedErrors, 1)
		}

		_, err = tx.Exec(`UPDATE errors SET status = ? WHERE id = ?`, status, id)
		return err
	})
}

// ResolveError moves an unresolved error to resolved and stores sol for it
// in one transaction, bumping resolved_errors. With queue set, a solution
// sync item is enqueued in the same transaction and its id returned. Nothing
// is written when any step fails.
func (s *Store) ResolveError(id string, sol Solution, at time.Time, queue bool) (Solution, string, error) {
	if at.IsZero() {
		at = s.now()
	}
	sol.ErrorID = id

	var itemID string
	err := s.inTx(func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRow(`SELECT status FROM errors WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if current != StatusUnresolved {
			return ErrAlreadyResolved
		}

		if _, err := tx.Exec(`UPDATE errors SET status = ?, resolved_at = ? WHERE id = ?`,
			StatusResolved, formatTime(at), id); err != nil {
			return err
		}
		if err := incrementStat(tx, StatResolvedErrors, 1); err != nil {
			return err
		}
		if sol, err = s.insertSolution(tx, sol); err != nil {
			return err
		}
		if queue {
			itemID, err = s.enqueue(tx, SolutionPayload{ErrorID: id, SolutionID: sol.ID})
		}
		return err
	})
	if err != nil {
		return Solution{}, "", err
	}
	return sol, itemID, nil
}

// CountErrorsByStatus returns the number of error records per status.
func (s *Store) CountErrorsByStatus() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM errors GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{StatusUnresolved: 0, StatusResolved: 0, StatusUploaded: 0}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *Store) SetErrorCloudID(id, cloudID string) error {
	return s.setCloudID("errors", id, cloudID)
}

func (s *Store) setCloudID(table, id, cloudID string) error {
	res, err := s.db.Exec(`UPDATE `+table+` SET cloud_id = ? WHERE id = ?`, cloudID, id)
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

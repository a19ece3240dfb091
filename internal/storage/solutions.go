package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const solutionColumns = `id, error_id, resolution, resolution_code, upvotes, downvotes, contributor_id, created_at, cloud_id`

func scanSolution(row rowScanner) (Solution, error) {
	var (
		sol           Solution
		code, cloudID sql.NullString
		createdAt     string
	)
	if err := row.Scan(&sol.ID, &sol.ErrorID, &sol.Resolution, &code, &sol.Upvotes, &sol.Downvotes,
		&sol.ContributorID, &createdAt, &cloudID); err != nil {
		return Solution{}, err
	}
	sol.ResolutionCode = code.String
	sol.CloudID = cloudID.String
	t, err := parseTime(createdAt)
	if err != nil {
		return Solution{}, fmt.Errorf("parsing created_at: %w", err)
	}
	sol.CreatedAt = t
	return sol, nil
}

// SaveSolution inserts sol, filling in the id and creation time when unset,
// and returns the stored record.
func (s *Store) SaveSolution(sol Solution) (Solution, error) {
	return s.insertSolution(s.db, sol)
}

func (s *Store) insertSolution(db execer, sol Solution) (Solution, error) {
	if sol.ID == "" {
		sol.ID = uuid.NewString()
	}
	if sol.CreatedAt.IsZero() {
		sol.CreatedAt = s.now()
	}
	sol.CreatedAt = sol.CreatedAt.UTC()
	_, err := db.Exec(`
		INSERT INTO solutions (`+solutionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sol.ID, sol.ErrorID, sol.Resolution, nullString(sol.ResolutionCode), sol.Upvotes, sol.Downvotes,
		sol.ContributorID, formatTime(sol.CreatedAt), nullString(sol.CloudID),
	)
	if err != nil {
		return Solution{}, fmt.Errorf("inserting solution: %w", err)
	}
	return sol, nil
}

func (s *Store) GetSolution(id string) (Solution, error) {
	sol, err := scanSolution(s.db.QueryRow(`SELECT `+solutionColumns+` FROM solutions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Solution{}, ErrNotFound
	}
	return sol, err
}

// SolutionsForError returns the solutions of an error, best voted first.
func (s *Store) SolutionsForError(errorID string) ([]Solution, error) {
	rows, err := s.db.Query(`
		SELECT `+solutionColumns+` FROM solutions
		WHERE error_id = ?
		ORDER BY upvotes DESC, created_at DESC`, errorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Solution
	for rows.Next() {
		sol, err := scanSolution(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sol)
	}
	return results, rows.Err()
}

func (s *Store) SetSolutionCloudID(id, cloudID string) error {
	return s.setCloudID("solutions", id, cloudID)
}

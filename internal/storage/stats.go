package storage

import (
	"database/sql"
	"fmt"
)

func (s *Store) Stats() (Stats, error) {
	rows, err := s.db.Query(`SELECT key, value FROM stats`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var (
			key   string
			value int
		)
		if err := rows.Scan(&key, &value); err != nil {
			return Stats{}, err
		}
		switch key {
		case StatTotalErrors:
			st.TotalErrors = value
		case StatResolvedErrors:
			st.ResolvedErrors = value
		case StatUploadedSolutions:
			st.UploadedSolutions = value
		case StatHelpfulVotes:
			st.HelpfulVotes = value
		}
	}
	return st, rows.Err()
}

// IncrementStat adds delta to a named counter. Counters never go down.
func (s *Store) IncrementStat(name string, delta int) error {
	if delta < 0 {
		return fmt.Errorf("negative delta %d for %s", delta, name)
	}
	return s.inTx(func(tx *sql.Tx) error {
		return incrementStat(tx, name, delta)
	})
}

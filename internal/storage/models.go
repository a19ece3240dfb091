package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidItem is returned by Enqueue when a payload fails validation.
var ErrInvalidItem = errors.New("invalid sync item")

// ErrAlreadyResolved is returned by ResolveError for a record that has left
// the unresolved state.
var ErrAlreadyResolved = errors.New("error already resolved")

// Error record statuses. The only transitions are unresolved -> resolved ->
// uploaded.
const (
	StatusUnresolved = "unresolved"
	StatusResolved   = "resolved"
	StatusUploaded   = "uploaded"
)

// ValidStatus reports whether s is one of the error record statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusUnresolved, StatusResolved, StatusUploaded:
		return true
	}
	return false
}

type ErrorRecord struct {
	ID          string
	Message     string
	MessageHash string
	FullOutput  string
	Language    string
	Framework   string
	ToolName    string
	Status      string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
	CloudID     string
}

type Solution struct {
	ID             string
	ErrorID        string
	Resolution     string
	ResolutionCode string
	Upvotes        int
	Downvotes      int
	ContributorID  string
	CreatedAt      time.Time
	CloudID        string
}

// Stat counter names.
const (
	StatTotalErrors       = "total_errors"
	StatResolvedErrors    = "resolved_errors"
	StatUploadedSolutions = "uploaded_solutions"
	StatHelpfulVotes      = "helpful_votes"
)

type Stats struct {
	TotalErrors       int
	ResolvedErrors    int
	UploadedSolutions int
	HelpfulVotes      int
}

// SearchQuery filters SearchErrors. Empty fields do not filter.
type SearchQuery struct {
	Text      string
	Language  string
	Framework string
	Limit     int
}

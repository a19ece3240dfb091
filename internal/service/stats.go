package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/fixhive/internal/storage"
)

const (
	defaultListLimit = 10
	maxListLimit     = 50
	breakdownSample  = 100
)

type StatsResult struct {
	Overview      Overview      `json:"overview"`
	Breakdown     Breakdown     `json:"breakdown"`
	Configuration Configuration `json:"configuration"`
	Message       string        `json:"message"`
}

type Overview struct {
	TotalErrors       int    `json:"totalErrors"`
	ResolvedErrors    int    `json:"resolvedErrors"`
	UploadedSolutions int    `json:"uploadedSolutions"`
	HelpfulVotes      int    `json:"helpfulVotes"`
	ResolutionRate    string `json:"resolutionRate"`
}

type Breakdown struct {
	ByLanguage  map[string]int `json:"byLanguage"`
	ByFramework map[string]int `json:"byFramework"`
}

type Configuration struct {
	CloudEnabled  bool   `json:"cloudEnabled"`
	ContributorID string `json:"contributorId"`
	PendingSync   int    `json:"pendingSync"`
}

// Stats reports the usage counters plus a language and framework breakdown
// of the most recent errors.
func (s *Service) Stats() (StatsResult, error) {
	st, err := s.store.Stats()
	if err != nil {
		return StatsResult{}, s.storageErr("stats", err)
	}
	recent, err := s.store.ListErrors("", breakdownSample)
	if err != nil {
		return StatsResult{}, s.storageErr("list errors", err)
	}
	pending, err := s.PendingCount()
	if err != nil {
		return StatsResult{}, err
	}

	rate := 0
	if st.TotalErrors > 0 {
		rate = st.ResolvedErrors * 100 / st.TotalErrors
	}

	bd := Breakdown{ByLanguage: map[string]int{}, ByFramework: map[string]int{}}
	for _, r := range recent {
		if r.Language != "" {
			bd.ByLanguage[r.Language]++
		}
		if r.Framework != "" {
			bd.ByFramework[r.Framework]++
		}
	}

	res := StatsResult{
		Overview: Overview{
			TotalErrors:       st.TotalErrors,
			ResolvedErrors:    st.ResolvedErrors,
			UploadedSolutions: st.UploadedSolutions,
			HelpfulVotes:      st.HelpfulVotes,
			ResolutionRate:    fmt.Sprintf("%d%%", rate),
		},
		Breakdown: bd,
		Configuration: Configuration{
			CloudEnabled:  s.CloudEnabled(),
			ContributorID: s.contributorID,
			PendingSync:   pending,
		},
	}
	if st.TotalErrors == 0 {
		res.Message = "No errors detected yet. FixHive will automatically track errors from tool outputs."
	} else {
		res.Message = fmt.Sprintf("You have resolved %d out of %d errors (%d%% resolution rate).",
			st.ResolvedErrors, st.TotalErrors, rate)
	}
	return res, nil
}

// ListInput holds the fixhive_list arguments. An empty Status lists all.
type ListInput struct {
	Status string
	Limit  int
}

type ListResult struct {
	Count        int            `json:"count"`
	StatusCounts map[string]int `json:"statusCounts,omitempty"`
	Errors       []ErrorSummary `json:"errors,omitempty"`
	Message      string         `json:"message,omitempty"`
	Hint         string         `json:"hint"`
}

type ErrorSummary struct {
	ID         string     `json:"id"`
	Message    string     `json:"message"`
	Language   string     `json:"language,omitempty"`
	Framework  string     `json:"framework,omitempty"`
	Status     string     `json:"status"`
	ToolName   string     `json:"toolName"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

func (s *Service) List(in ListInput) (ListResult, error) {
	if in.Status != "" && !storage.ValidStatus(in.Status) {
		return ListResult{}, invalid("status", "status must be one of unresolved, resolved, uploaded")
	}
	if in.Limit == 0 {
		in.Limit = defaultListLimit
	}
	if in.Limit < 1 || in.Limit > maxListLimit {
		return ListResult{}, invalid("limit", fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
	}

	records, err := s.store.ListErrors(in.Status, in.Limit)
	if err != nil {
		return ListResult{}, s.storageErr("list errors", err)
	}

	if len(records) == 0 {
		msg := "No errors detected yet."
		if in.Status != "" {
			msg = fmt.Sprintf("No %s errors found.", in.Status)
		}
		return ListResult{
			Count:   0,
			Message: msg,
			Hint:    "Errors are automatically detected from tool outputs.",
		}, nil
	}

	res := ListResult{
		Count:        len(records),
		StatusCounts: map[string]int{},
		Errors:       make([]ErrorSummary, len(records)),
		Hint:         "Use fixhive_search <errorId> to find solutions, or fixhive_resolve to mark as resolved.",
	}
	for i, r := range records {
		res.StatusCounts[r.Status]++
		res.Errors[i] = summarize(r)
	}
	return res, nil
}

func summarize(r storage.ErrorRecord) ErrorSummary {
	msg := r.Message
	if short := truncate(msg, 200); short != msg {
		msg = short + "..."
	}
	return ErrorSummary{
		ID:         r.ID,
		Message:    msg,
		Language:   r.Language,
		Framework:  r.Framework,
		Status:     r.Status,
		ToolName:   r.ToolName,
		CreatedAt:  r.CreatedAt,
		ResolvedAt: r.ResolvedAt,
	}
}

// ErrorDetail is a single stored error with its local solutions.
type ErrorDetail struct {
	ID          string          `json:"id"`
	Message     string          `json:"message"`
	MessageHash string          `json:"messageHash"`
	FullOutput  string          `json:"fullOutput,omitempty"`
	Language    string          `json:"language,omitempty"`
	Framework   string          `json:"framework,omitempty"`
	Status      string          `json:"status"`
	ToolName    string          `json:"toolName"`
	CreatedAt   time.Time       `json:"createdAt"`
	ResolvedAt  *time.Time      `json:"resolvedAt,omitempty"`
	CloudID     string          `json:"cloudId,omitempty"`
	Solutions   []SolutionEntry `json:"solutions"`
}

type SolutionEntry struct {
	ID             string    `json:"id"`
	Resolution     string    `json:"resolution"`
	ResolutionCode string    `json:"resolutionCode,omitempty"`
	Upvotes        int       `json:"upvotes"`
	Downvotes      int       `json:"downvotes"`
	CreatedAt      time.Time `json:"createdAt"`
	CloudID        string    `json:"cloudId,omitempty"`
}

func (s *Service) ErrorDetail(id string) (ErrorDetail, error) {
	if err := requireUUID("id", id); err != nil {
		return ErrorDetail{}, err
	}
	r, err := s.store.GetError(id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrorDetail{}, NewError(CodeNotFound, "Error not found: "+id)
	}
	if err != nil {
		return ErrorDetail{}, s.storageErr("get error", err)
	}
	sols, err := s.store.SolutionsForError(id)
	if err != nil {
		return ErrorDetail{}, s.storageErr("solutions for error", err)
	}

	d := ErrorDetail{
		ID:          r.ID,
		Message:     r.Message,
		MessageHash: r.MessageHash,
		FullOutput:  r.FullOutput,
		Language:    r.Language,
		Framework:   r.Framework,
		Status:      r.Status,
		ToolName:    r.ToolName,
		CreatedAt:   r.CreatedAt,
		ResolvedAt:  r.ResolvedAt,
		CloudID:     r.CloudID,
		Solutions:   make([]SolutionEntry, len(sols)),
	}
	for i, sol := range sols {
		d.Solutions[i] = SolutionEntry{
			ID:             sol.ID,
			Resolution:     sol.Resolution,
			ResolutionCode: sol.ResolutionCode,
			Upvotes:        sol.Upvotes,
			Downvotes:      sol.Downvotes,
			CreatedAt:      sol.CreatedAt,
			CloudID:        sol.CloudID,
		}
	}
	return d, nil
}

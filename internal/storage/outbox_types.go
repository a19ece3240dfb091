package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the payload type of a pending sync item.
type Kind string

const (
	KindError    Kind = "error"
	KindSolution Kind = "solution"
	KindVote     Kind = "vote"
	KindReport   Kind = "report"
)

// Payload is implemented by the four pending sync payload types.
type Payload interface {
	Kind() Kind
	Validate() error
}

// ErrorPayload uploads an error record on its own.
type ErrorPayload struct {
	ErrorID     string `json:"errorId"`
	Message     string `json:"message"`
	MessageHash string `json:"messageHash"`
	Language    string `json:"language,omitempty"`
	Framework   string `json:"framework,omitempty"`
}

func (ErrorPayload) Kind() Kind { return KindError }

func (p ErrorPayload) Validate() error {
	if p.ErrorID == "" || p.MessageHash == "" || p.Message == "" {
		return fmt.Errorf("%w: error payload needs errorId, message and messageHash", ErrInvalidItem)
	}
	return nil
}

// SolutionPayload uploads a local solution together with its owning error.
// The records themselves are read from the store when the item is applied.
type SolutionPayload struct {
	ErrorID    string `json:"errorId"`
	SolutionID string `json:"solutionId"`
}

func (SolutionPayload) Kind() Kind { return KindSolution }

func (p SolutionPayload) Validate() error {
	if p.ErrorID == "" || p.SolutionID == "" {
		return fmt.Errorf("%w: solution payload needs errorId and solutionId", ErrInvalidItem)
	}
	return nil
}

type VotePayload struct {
	KnowledgeID   string `json:"knowledgeId"`
	Helpful       bool   `json:"helpful"`
	ContributorID string `json:"contributorId"`
}

func (VotePayload) Kind() Kind { return KindVote }

func (p VotePayload) Validate() error {
	if p.KnowledgeID == "" || p.ContributorID == "" {
		return fmt.Errorf("%w: vote payload needs knowledgeId and contributorId", ErrInvalidItem)
	}
	return nil
}

type ReportPayload struct {
	KnowledgeID string `json:"knowledgeId"`
	Reason      string `json:"reason,omitempty"`
	ReporterID  string `json:"reporterId"`
}

func (ReportPayload) Kind() Kind { return KindReport }

func (p ReportPayload) Validate() error {
	if p.KnowledgeID == "" || p.ReporterID == "" {
		return fmt.Errorf("%w: report payload needs knowledgeId and reporterId", ErrInvalidItem)
	}
	return nil
}

// Item is a row of the pending sync queue. Data holds the JSON payload;
// Decode turns it back into one of the Payload types.
type Item struct {
	ID         string
	Kind       Kind
	Data       json.RawMessage
	CreatedAt  time.Time
	RetryCount int
}

// Decode unmarshals Data into the payload type selected by Kind and
// validates it.
func (it Item) Decode() (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch it.Kind {
	case KindError:
		var v ErrorPayload
		err = json.Unmarshal(it.Data, &v)
		p = v
	case KindSolution:
		var v SolutionPayload
		err = json.Unmarshal(it.Data, &v)
		p = v
	case KindVote:
		var v VotePayload
		err = json.Unmarshal(it.Data, &v)
		p = v
	case KindReport:
		var v ReportPayload
		err = json.Unmarshal(it.Data, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidItem, it.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s payload: %v", ErrInvalidItem, it.Kind, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

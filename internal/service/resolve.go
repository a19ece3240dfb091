package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/kalambet/fixhive/internal/storage"
)

const minResolutionLength = 10

// ResolveInput holds the fixhive_resolve arguments. A nil Upload means true.
type ResolveInput struct {
	ErrorID        string
	Resolution     string
	ResolutionCode string
	Upload         *bool
}

type ResolveResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	ErrorID         string `json:"errorId"`
	SolutionID      string `json:"solutionId,omitempty"`
	CloudErrorID    string `json:"cloudErrorId,omitempty"`
	CloudSolutionID string `json:"cloudSolutionId,omitempty"`
	Uploaded        bool   `json:"uploaded"`
}

// Resolve marks a local error resolved, records its solution and shares it.
// The status change, the solution and its sync item are written together.
// The upload happens immediately when the cloud is reachable; otherwise the
// item stays queued and the call still succeeds.
func (s *Service) Resolve(ctx context.Context, in ResolveInput) (ResolveResult, error) {
	if err := requireUUID("errorId", in.ErrorID); err != nil {
		return ResolveResult{}, err
	}
	if utf8.RuneCountInString(in.Resolution) < minResolutionLength {
		return ResolveResult{}, invalid("resolution",
			fmt.Sprintf("resolution must be at least %d characters", minResolutionLength))
	}
	upload := in.Upload == nil || *in.Upload

	s.logger.Info("resolving error", "error_id", in.ErrorID, "upload", upload)

	sol, itemID, err := s.store.ResolveError(in.ErrorID, storage.Solution{
		Resolution:     in.Resolution,
		ResolutionCode: in.ResolutionCode,
		ContributorID:  s.contributorID,
	}, s.now(), upload)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ResolveResult{}, NewError(CodeNotFound, "Error not found: "+in.ErrorID)
	case errors.Is(err, storage.ErrAlreadyResolved):
		return ResolveResult{
			Success: false,
			Message: "This error is already marked as resolved.",
			ErrorID: in.ErrorID,
		}, nil
	case err != nil:
		return ResolveResult{}, s.storageErr("resolve error", err)
	}

	res := ResolveResult{Success: true, ErrorID: in.ErrorID, SolutionID: sol.ID}

	// The solution item is already queued; a direct upload only has to
	// take it back off the queue.
	if upload {
		if s.reconciler != nil {
			cloudErr, cloudSol, err := s.reconciler.UploadSolution(ctx, in.ErrorID, sol.ID)
			if err == nil {
				res.CloudErrorID, res.CloudSolutionID, res.Uploaded = cloudErr, cloudSol, true
				s.logger.Info("solution uploaded", "cloud_error_id", cloudErr, "cloud_solution_id", cloudSol)
				if err := s.store.RemovePending(itemID); err != nil {
					s.logger.Warn("failed to dequeue uploaded solution", "item_id", itemID, "error", err)
				}
			} else {
				s.logger.Warn("cloud upload failed, solution stays in sync queue", "error", err)
			}
		} else {
			s.logger.Info("cloud not configured, solution added to sync queue")
		}
	}

	switch {
	case res.Uploaded:
		res.Message = "Error resolved and solution shared with the community!"
	case upload:
		res.Message = "Error resolved locally. Solution will be uploaded when cloud is available."
	default:
		res.Message = "Error resolved locally."
	}
	return res, nil
}

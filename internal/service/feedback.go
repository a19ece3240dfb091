package service

import (
	"context"

	"github.com/kalambet/fixhive/internal/storage"
	"github.com/kalambet/fixhive/internal/vote"
)

type VoteResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	KnowledgeID string `json:"knowledgeId"`
	Helpful     bool   `json:"helpful"`
	Action      string `json:"action"`
	Synced      bool   `json:"synced"`
}

// Vote applies the toggle rule for this contributor's vote on knowledgeID,
// locally first and then remotely, queueing the remote half when the cloud
// cannot take it now.
func (s *Service) Vote(ctx context.Context, knowledgeID string, helpful bool) (VoteResult, error) {
	if err := requireUUID("knowledgeId", knowledgeID); err != nil {
		return VoteResult{}, err
	}
	s.logger.Info("recording vote", "knowledge_id", knowledgeID, "helpful", helpful)

	outcome, synced, err := s.castVote(ctx, knowledgeID, helpful)
	if err != nil {
		return VoteResult{}, err
	}
	if helpful && outcome.Applied() {
		if err := s.store.IncrementStat(storage.StatHelpfulVotes, 1); err != nil {
			return VoteResult{}, s.storageErr("count helpful vote", err)
		}
	}

	res := VoteResult{
		Success:     true,
		KnowledgeID: knowledgeID,
		Helpful:     helpful,
		Action:      outcome.Action.String(),
		Synced:      synced,
	}
	switch {
	case !s.CloudEnabled():
		res.Message = "Vote recorded locally. It will be synced when cloud is available."
	case !synced:
		res.Message = "Vote recorded locally. It will be synced later."
	case outcome.Action == vote.Retract:
		res.Message = "Vote removed."
	case helpful:
		res.Message = "Upvoted! Thank you for your feedback."
	default:
		res.Message = "Downvoted. Thank you for your feedback."
	}
	return res, nil
}

type HelpfulResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	KnowledgeID string `json:"knowledgeId"`
	Synced      bool   `json:"synced"`
}

// MarkHelpful upvotes knowledgeID and counts a helpful vote. A contributor
// who already has a live upvote on it is thanked without touching the vote,
// so repeating the call never retracts it.
func (s *Service) MarkHelpful(ctx context.Context, knowledgeID string) (HelpfulResult, error) {
	if err := requireUUID("knowledgeId", knowledgeID); err != nil {
		return HelpfulResult{}, err
	}
	s.logger.Info("recording helpful feedback", "knowledge_id", knowledgeID)

	res := HelpfulResult{Success: true, KnowledgeID: knowledgeID}

	current, err := s.store.LocalVote(knowledgeID, s.contributorID)
	if err != nil {
		return HelpfulResult{}, s.storageErr("read local vote", err)
	}
	if current != nil && *current {
		pending, err := s.store.HasPendingVote(knowledgeID, s.contributorID)
		if err != nil {
			return HelpfulResult{}, s.storageErr("check queued votes", err)
		}
		res.Synced = s.CloudEnabled() && !pending
		res.Message = "You already marked this solution as helpful. Thank you!"
		return res, nil
	}

	_, synced, err := s.castVote(ctx, knowledgeID, true)
	if err != nil {
		return HelpfulResult{}, err
	}
	if err := s.store.IncrementStat(storage.StatHelpfulVotes, 1); err != nil {
		return HelpfulResult{}, s.storageErr("count helpful vote", err)
	}

	res.Synced = synced
	switch {
	case !s.CloudEnabled():
		res.Message = "Thank you for your feedback! It will be synced when cloud is available."
	case !synced:
		res.Message = "Thank you! Your feedback will be synced later."
	default:
		res.Message = "Thank you! Your feedback helps improve the knowledge base."
	}
	return res, nil
}

// castVote records the vote in the local ledger, then pushes it to the
// remote store or queues it. While an earlier vote by this contributor on
// the same solution is still queued, this one is queued behind it so the
// remote applies them in the order they were cast.
func (s *Service) castVote(ctx context.Context, knowledgeID string, helpful bool) (vote.Outcome, bool, error) {
	outcome, err := s.store.ApplyLocalVote(knowledgeID, s.contributorID, helpful)
	if err != nil {
		return vote.Outcome{}, false, s.storageErr("apply local vote", err)
	}

	if s.gateway != nil {
		pending, err := s.store.HasPendingVote(knowledgeID, s.contributorID)
		if err != nil {
			return vote.Outcome{}, false, s.storageErr("check queued votes", err)
		}
		if pending {
			s.logger.Info("earlier vote still queued, queueing this one behind it", "knowledge_id", knowledgeID)
		} else {
			_, err := s.gateway.ApplyVote(ctx, knowledgeID, s.contributorID, helpful)
			if err == nil {
				return outcome, true, nil
			}
			s.logger.Warn("vote failed, adding to sync queue", "error", err)
		}
	}

	if err := s.enqueue(storage.VotePayload{
		KnowledgeID:   knowledgeID,
		Helpful:       helpful,
		ContributorID: s.contributorID,
	}); err != nil {
		return vote.Outcome{}, false, err
	}
	return outcome, false, nil
}

type ReportResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	KnowledgeID string `json:"knowledgeId"`
	Submitted   bool   `json:"submitted"`
}

// Report flags knowledgeID for review.
func (s *Service) Report(ctx context.Context, knowledgeID, reason string) (ReportResult, error) {
	if err := requireUUID("knowledgeId", knowledgeID); err != nil {
		return ReportResult{}, err
	}
	s.logger.Info("reporting content", "knowledge_id", knowledgeID, "reason", reason)

	res := ReportResult{Success: true, KnowledgeID: knowledgeID}
	if s.gateway != nil {
		err := s.gateway.Report(ctx, knowledgeID, reason, s.contributorID)
		if err == nil {
			res.Submitted = true
			res.Message = "Thank you for reporting. Our team will review this content."
			return res, nil
		}
		s.logger.Warn("report submission failed, adding to sync queue", "error", err)
	}

	if err := s.enqueue(storage.ReportPayload{
		KnowledgeID: knowledgeID,
		Reason:      reason,
		ReporterID:  s.contributorID,
	}); err != nil {
		return ReportResult{}, err
	}
	if s.CloudEnabled() {
		res.Message = "Report recorded. It will be submitted later."
	} else {
		res.Message = "Report recorded locally. It will be submitted when cloud is available."
	}
	return res, nil
}

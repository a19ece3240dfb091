// Package syncer drains the local pending-sync queue into the remote
// knowledge store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kalambet/fixhive/internal/remote"
	"github.com/kalambet/fixhive/internal/storage"
)

// Store is the part of the local store the reconciler needs.
type Store interface {
	PendingItems(limit int) ([]storage.Item, error)
	RemovePending(id string) error
	IncrementRetry(id string) error
	GetError(id string) (storage.ErrorRecord, error)
	GetSolution(id string) (storage.Solution, error)
	SetErrorCloudID(id, cloudID string) error
	SetSolutionCloudID(id, cloudID string) error
	UpdateErrorStatus(id, status string, at time.Time) error
	IncrementStat(name string, delta int) error
}

// Report summarises one drain.
type Report struct {
	Processed int `json:"processed"`
	Applied   int `json:"applied"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Reconciler applies queued items to a remote gateway. Items that fail
// stay queued with their retry count bumped. Drains and direct uploads are
// serialised so a queued solution is never pushed twice at once.
type Reconciler struct {
	mu            sync.Mutex
	store         Store
	gateway       remote.Gateway
	contributorID string
	logger        *slog.Logger
}

// NewReconciler creates a Reconciler. contributorID is stamped on uploaded
// error and solution rows.
func NewReconciler(store Store, gateway remote.Gateway, contributorID string) *Reconciler {
	return &Reconciler{
		store:         store,
		gateway:       gateway,
		contributorID: contributorID,
		logger:        slog.Default(),
	}
}

// Drain processes up to maxItems pending items, oldest first. A storage
// failure while listing the queue is returned; per-item failures are
// counted in the report and do not stop the drain.
func (r *Reconciler) Drain(ctx context.Context, maxItems int) (Report, error) {
	var rep Report
	if maxItems <= 0 {
		return rep, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.store.PendingItems(maxItems)
	if err != nil {
		return rep, fmt.Errorf("listing pending items: %w", err)
	}

	for _, it := range items {
		if ctx.Err() != nil {
			break
		}
		rep.Processed++

		p, err := it.Decode()
		if err != nil {
			r.logger.Warn("skipping undecodable sync item", "item_id", it.ID, "kind", it.Kind, "error", err)
			rep.Skipped++
			r.retry(it.ID)
			continue
		}

		if err := r.apply(ctx, p); err != nil {
			r.logger.Warn("sync item failed", "item_id", it.ID, "kind", it.Kind, "retries", it.RetryCount+1, "error", err)
			rep.Failed++
			r.retry(it.ID)
			continue
		}

		if err := r.store.RemovePending(it.ID); err != nil {
			r.logger.Error("failed to remove synced item", "item_id", it.ID, "error", err)
		}
		rep.Applied++
	}
	return rep, nil
}

func (r *Reconciler) retry(id string) {
	if err := r.store.IncrementRetry(id); err != nil {
		r.logger.Error("failed to bump retry count", "item_id", id, "error", err)
	}
}

func (r *Reconciler) apply(ctx context.Context, p storage.Payload) error {
	switch v := p.(type) {
	case storage.ErrorPayload:
		rec, err := r.store.GetError(v.ErrorID)
		switch {
		case err == nil && rec.CloudID != "":
			return nil
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("loading error %s: %w", v.ErrorID, err)
		}
		cloudID, err := r.gateway.UpsertError(ctx, remote.ErrorRow{
			Message:       v.Message,
			MessageHash:   v.MessageHash,
			Language:      v.Language,
			Framework:     v.Framework,
			ContributorID: r.contributorID,
		})
		if err != nil {
			return err
		}
		if err := r.store.SetErrorCloudID(v.ErrorID, cloudID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("recording cloud id: %w", err)
		}
		return nil

	case storage.SolutionPayload:
		_, _, err := r.uploadSolution(ctx, v.ErrorID, v.SolutionID)
		return err

	case storage.VotePayload:
		_, err := r.gateway.ApplyVote(ctx, v.KnowledgeID, v.ContributorID, v.Helpful)
		return err

	case storage.ReportPayload:
		return r.gateway.Report(ctx, v.KnowledgeID, v.Reason, v.ReporterID)
	}
	return fmt.Errorf("%w: unhandled kind %s", storage.ErrInvalidItem, p.Kind())
}

// UploadSolution pushes a local solution and its owning error to the remote
// store. Cloud ids already recorded locally are reused, so repeating an
// upload never creates duplicates. On success the error is marked uploaded
// and uploaded_solutions is bumped the first time the solution lands.
func (r *Reconciler) UploadSolution(ctx context.Context, errorID, solutionID string) (cloudErrorID, cloudSolutionID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uploadSolution(ctx, errorID, solutionID)
}

func (r *Reconciler) uploadSolution(ctx context.Context, errorID, solutionID string) (cloudErrorID, cloudSolutionID string, err error) {
	rec, err := r.store.GetError(errorID)
	if err != nil {
		return "", "", fmt.Errorf("loading error %s: %w", errorID, err)
	}
	sol, err := r.store.GetSolution(solutionID)
	if err != nil {
		return "", "", fmt.Errorf("loading solution %s: %w", solutionID, err)
	}

	cloudErrorID = rec.CloudID
	if cloudErrorID == "" {
		cloudErrorID, err = r.gateway.UpsertError(ctx, remote.ErrorRow{
			Message:       rec.Message,
			MessageHash:   rec.MessageHash,
			Language:      rec.Language,
			Framework:     rec.Framework,
			ContributorID: r.contributorID,
		})
		if err != nil {
			return "", "", err
		}
		if err := r.store.SetErrorCloudID(rec.ID, cloudErrorID); err != nil {
			return "", "", fmt.Errorf("recording error cloud id: %w", err)
		}
	}

	cloudSolutionID = sol.CloudID
	fresh := cloudSolutionID == ""
	if fresh {
		contributor := sol.ContributorID
		if contributor == "" {
			contributor = r.contributorID
		}
		cloudSolutionID, err = r.gateway.UpsertSolution(ctx, remote.SolutionRow{
			ErrorID:        cloudErrorID,
			Resolution:     sol.Resolution,
			ResolutionCode: sol.ResolutionCode,
			ContributorID:  contributor,
		})
		if err != nil {
			return cloudErrorID, "", err
		}
		if err := r.store.SetSolutionCloudID(sol.ID, cloudSolutionID); err != nil {
			return cloudErrorID, "", fmt.Errorf("recording solution cloud id: %w", err)
		}
	}

	if rec.Status != storage.StatusUploaded {
		if err := r.store.UpdateErrorStatus(rec.ID, storage.StatusUploaded, time.Time{}); err != nil {
			return cloudErrorID, cloudSolutionID, fmt.Errorf("marking error uploaded: %w", err)
		}
	}
	if fresh {
		if err := r.store.IncrementStat(storage.StatUploadedSolutions, 1); err != nil {
			return cloudErrorID, cloudSolutionID, fmt.Errorf("counting upload: %w", err)
		}
	}
	return cloudErrorID, cloudSolutionID, nil
}

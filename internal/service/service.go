// Package service implements the FixHive operations exposed over MCP, HTTP
// and the CLI. It owns the local store, the optional remote gateway and the
// similarity ranker for the lifetime of the process.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/fixhive/internal/detect"
	"github.com/kalambet/fixhive/internal/fingerprint"
	"github.com/kalambet/fixhive/internal/remote"
	"github.com/kalambet/fixhive/internal/similarity"
	"github.com/kalambet/fixhive/internal/storage"
	"github.com/kalambet/fixhive/internal/syncer"
)

// Service is the application context shared by every entry point.
type Service struct {
	store         *storage.Store
	gateway       remote.Gateway
	reconciler    *syncer.Reconciler
	ranker        *similarity.Ranker
	detector      *detect.Detector
	contributorID string
	logger        *slog.Logger
	now           func() time.Time
}

// New creates a Service. gateway may be nil, in which case every remote
// write is queued and search only looks at the local store. A nil ranker
// ranks by keywords.
func New(store *storage.Store, gateway remote.Gateway, ranker *similarity.Ranker, contributorID string) *Service {
	if ranker == nil {
		ranker = similarity.NewRanker(nil)
	}
	s := &Service{
		store:         store,
		gateway:       gateway,
		ranker:        ranker,
		detector:      detect.New(nil),
		contributorID: contributorID,
		logger:        slog.Default(),
		now:           time.Now,
	}
	if gateway != nil {
		s.reconciler = syncer.NewReconciler(store, gateway, contributorID)
	}
	return s
}

// CloudEnabled reports whether a remote gateway is configured.
func (s *Service) CloudEnabled() bool { return s.gateway != nil }

// ContributorID returns the id stamped on uploads and votes.
func (s *Service) ContributorID() string { return s.contributorID }

// Reconciler returns the sync reconciler, or nil when cloud is disabled.
func (s *Service) Reconciler() *syncer.Reconciler { return s.reconciler }

func (s *Service) storageErr(op string, err error) *Error {
	s.logger.Error("storage operation failed", "op", op, "error", err)
	return NewError(CodeStorageError, "")
}

func requireUUID(field, value string) error {
	if _, err := uuid.Parse(value); err != nil {
		return invalid(field, fmt.Sprintf("%s must be a UUID", field))
	}
	return nil
}

// IngestResult is what the post-tool hook prints.
type IngestResult struct {
	Detected int      `json:"detected"`
	Saved    int      `json:"-"`
	Message  string   `json:"message"`
	ErrorIDs []string `json:"errorIds"`
}

// Ingest detects errors in a tool's output and stores the ones not seen
// before. ErrorIDs lists the stored record for every detected error,
// whether it was saved now or earlier.
func (s *Service) Ingest(toolName, output string) (IngestResult, error) {
	var res IngestResult
	if !detect.HasError(output) {
		return res, nil
	}
	candidates := s.detector.Detect(output, toolName)
	if len(candidates) == 0 {
		return res, nil
	}
	s.logger.Info("errors detected", "tool", toolName, "count", len(candidates))

	for _, c := range candidates {
		existing, err := s.findByFingerprint(c.MessageHash, c.Message)
		if err != nil {
			return res, s.storageErr("lookup error by hash", err)
		}
		if existing != "" {
			s.logger.Debug("duplicate error skipped", "hash", c.MessageHash)
			res.ErrorIDs = append(res.ErrorIDs, existing)
			continue
		}

		rec := storage.ErrorRecord{
			ID:          c.ID,
			Message:     c.Message,
			MessageHash: c.MessageHash,
			FullOutput:  c.FullOutput,
			Language:    c.Language,
			Framework:   c.Framework,
			ToolName:    c.ToolName,
			Status:      storage.StatusUnresolved,
			CreatedAt:   c.CreatedAt,
		}
		if err := s.store.SaveError(rec); err != nil {
			return res, s.storageErr("save error", err)
		}
		s.logger.Info("error saved", "id", rec.ID, "message", truncate(rec.Message, 100))
		res.Saved++
		res.ErrorIDs = append(res.ErrorIDs, rec.ID)
	}

	res.Detected = len(candidates)
	res.Message = fmt.Sprintf("FixHive detected %d error(s). Use fixhive_search to find solutions.", res.Detected)
	return res, nil
}

// findByFingerprint returns the id of a stored error with the same hash and
// the same normalized message. Records that only share the hash are
// collisions and do not count as duplicates.
func (s *Service) findByFingerprint(hash, message string) (string, error) {
	records, err := s.store.ErrorsByHash(hash)
	if err != nil {
		return "", err
	}
	for _, r := range records {
		if !fingerprint.Collision(r.Message, message) {
			return r.ID, nil
		}
	}
	if len(records) > 0 {
		s.logger.Warn("fingerprint collision, storing as a distinct error", "hash", hash)
	}
	return "", nil
}

// Sync drains up to limit pending items into the remote store.
func (s *Service) Sync(ctx context.Context, limit int) (syncer.Report, error) {
	if s.reconciler == nil {
		return syncer.Report{}, NewError(CodeCloudUnavailable, "Cloud sync is not configured.")
	}
	rep, err := s.reconciler.Drain(ctx, limit)
	if err != nil {
		return rep, s.storageErr("drain", err)
	}
	return rep, nil
}

// PendingCount returns the number of queued sync items.
func (s *Service) PendingCount() (int, error) {
	n, err := s.store.PendingCount()
	if err != nil {
		return 0, s.storageErr("pending count", err)
	}
	return n, nil
}

func (s *Service) enqueue(p storage.Payload) error {
	if _, err := s.store.Enqueue(p); err != nil {
		if errors.Is(err, storage.ErrInvalidItem) {
			return NewError(CodeValidationError, err.Error())
		}
		return s.storageErr("enqueue "+string(p.Kind()), err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

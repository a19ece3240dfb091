package syncer

import (
	"context"
	"log/slog"
	"time"
)

// Drainer is satisfied by *Reconciler.
type Drainer interface {
	Drain(ctx context.Context, maxItems int) (Report, error)
}

// Worker drains the queue on a fixed interval until its context ends.
type Worker struct {
	drainer Drainer
	batch   int
	poll    time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0 it defaults to 30s,
// and a batch <= 0 defaults to 50.
func NewWorker(d Drainer, batch int, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	return &Worker{
		drainer: d,
		batch:   batch,
		poll:    pollInterval,
		logger:  slog.Default(),
	}
}

// Run drains once immediately and then on every tick until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("sync iteration failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce performs a single bounded drain and logs its report when anything
// was processed.
func (w *Worker) RunOnce(ctx context.Context) (Report, error) {
	rep, err := w.drainer.Drain(ctx, w.batch)
	if err != nil {
		return rep, err
	}
	if rep.Processed > 0 {
		w.logger.Info("sync drained",
			"processed", rep.Processed,
			"applied", rep.Applied,
			"failed", rep.Failed,
			"skipped", rep.Skipped,
		)
	}
	return rep, nil
}

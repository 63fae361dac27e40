// Package history stores settled recommendations off the request path.
package history

import (
	"context"
	"log/slog"

	"github.com/mr1hm/go-saferoute/internal/models"
	"github.com/mr1hm/go-saferoute/internal/repository"
	"github.com/mr1hm/go-saferoute/internal/worker"
)

type Recorder struct {
	repo repository.SelectionRepository
	pool *worker.WorkerPool[*models.Selection]
}

func NewRecorder(repo repository.SelectionRepository, workers, bufferSize int) *Recorder {
	r := &Recorder{repo: repo}
	r.pool = worker.NewWorkerPool("history", workers, bufferSize, r.store)
	return r
}

func (r *Recorder) Start(ctx context.Context) {
	r.pool.Start(ctx)
}

func (r *Recorder) store(ctx context.Context, sel *models.Selection) error {
	if err := r.repo.AddSelection(ctx, sel); err != nil {
		slog.Error("error recording selection", "session_id", sel.SessionID, "generation", sel.Generation, "error", err)
		return err
	}
	slog.Debug("recorded selection",
		"session_id", sel.SessionID,
		"facility_id", sel.FacilityID,
		"source", sel.Source,
	)
	return nil
}

// Record queues a settled snapshot without blocking. Snapshots without a
// recommendation are ignored; when the queue is full the entry is dropped.
func (r *Recorder) Record(s *models.Snapshot) bool {
	sel := models.SelectionFromSnapshot(s)
	if sel == nil {
		return false
	}
	if !r.pool.TrySubmit(sel) {
		slog.Warn("history queue full, dropping selection", "session_id", sel.SessionID, "generation", sel.Generation)
		return false
	}
	return true
}

// Stop drains queued entries and waits for the workers.
func (r *Recorder) Stop() {
	r.pool.Stop()
	slog.Info("history recorder stopped")
}

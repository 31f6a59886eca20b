package workers

import (
	"context"
	"log/slog"
	"time"

	"realtime-core/contract"
)

// CheckpointWorker periodically asks the presence coordinator to flush its
// book to durable storage, so a restart does not force every client to
// re-announce status.
type CheckpointWorker struct {
	log      *slog.Logger
	interval time.Duration
	target   contract.Checkpointer
}

func NewCheckpointWorker(log *slog.Logger, interval time.Duration, target contract.Checkpointer) *CheckpointWorker {
	return &CheckpointWorker{log: log, interval: interval, target: target}
}

func (w *CheckpointWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping checkpoint worker")
			return nil
		case <-ticker.C:
			w.target.Checkpoint()
		}
	}
}

package workers

import (
	"context"
	"log/slog"
	"time"

	"realtime-core/contract"
)

// SweepWorker drives the periodic maintenance pass: expire stale typing
// indicators and demote stale online presences. The sweep itself runs
// inside each coordinator actor; this worker only triggers it at coarse
// intervals.
type SweepWorker struct {
	log      *slog.Logger
	interval time.Duration
	target   contract.Sweeper
}

func NewSweepWorker(log *slog.Logger, interval time.Duration, target contract.Sweeper) *SweepWorker {
	return &SweepWorker{log: log, interval: interval, target: target}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping sweep worker")
			return nil
		case <-ticker.C:
			w.target.SweepAll()
		}
	}
}

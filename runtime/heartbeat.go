package runtime

import (
	"context"
	"log/slog"
	"time"

	"realtime-core/contract"
)

// heartbeat is a background periodic task scoped to one connection's
// lifetime. Each tick it sends a ping if the transport reports itself open,
// otherwise it asks the owning actor to reap the connection. Liveness is
// inferred from transport-open state, not from pong receipt, which keeps
// the monitor tolerant of a missed pong.
type heartbeat struct {
	cancel context.CancelFunc
}

// startHeartbeat launches the monitor goroutine. reap is called at most
// once, from the monitor goroutine, and is expected to hand the connection
// id back to the actor mailbox rather than touch actor state directly.
func startHeartbeat(ctx context.Context, log *slog.Logger, conn contract.Conn,
	interval time.Duration, reap func(connID string)) *heartbeat {
	hbCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if !conn.Open() {
					log.Debug("Heartbeat found connection closed, reaping",
						"conn_id", conn.ID(), "user_id", conn.UserID())
					reap(conn.ID())
					return
				}
				if err := conn.Ping(); err != nil {
					log.Debug("Heartbeat ping failed, reaping",
						"conn_id", conn.ID(), "user_id", conn.UserID(), "error", err)
					reap(conn.ID())
					return
				}
			}
		}
	}()

	return &heartbeat{cancel: cancel}
}

// stop cancels the timer. Always called when the connection is unregistered
// through any path, so no timer outlives its connection.
func (h *heartbeat) stop() {
	h.cancel()
}

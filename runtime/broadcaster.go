package runtime

import (
	"log/slog"

	"realtime-core/contract"
	"realtime-core/domain/event"
)

// Broadcaster delivers one outbound event to every open connection of a
// coordinator instance.
//
// Delivery is fire and forget: no acknowledgement, no retry, no
// per-recipient backpressure. A slow or dead consumer degrades only its own
// delivery and is reported back for pruning; it never blocks the others.
type Broadcaster struct {
	log      *slog.Logger
	registry contract.IRegistry
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry) *Broadcaster {
	return &Broadcaster{log: log, registry: registry}
}

// Broadcast serializes the event once and attempts a non-blocking send to
// every open connection. It returns the delivered count and the ids of
// connections found dead; the owning actor unregisters those in a second
// pass, never mutating the registry mid-iteration.
func (b *Broadcaster) Broadcast(evt event.Outbound) (int, []string) {
	frame, err := evt.Encode()
	if err != nil {
		b.log.Error("Failed to encode outbound event", "type", evt.Type, "error", err)
		return 0, nil
	}

	delivered := 0
	var dead []string
	b.registry.ForEachOpen(func(conn contract.Conn) {
		if !conn.Open() {
			dead = append(dead, conn.ID())
			return
		}
		if err := conn.Send(frame); err != nil {
			b.log.Debug("Dropping connection after failed send",
				"conn_id", conn.ID(), "user_id", conn.UserID(), "error", err)
			dead = append(dead, conn.ID())
			return
		}
		delivered++
	})
	return delivered, dead
}

// Unicast sends one event to a single connection, used for the initial
// presence snapshot of a new subscriber.
func (b *Broadcaster) Unicast(conn contract.Conn, evt event.Outbound) error {
	frame, err := evt.Encode()
	if err != nil {
		return err
	}
	return conn.Send(frame)
}

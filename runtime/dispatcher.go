package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"realtime-core/contract"
	"realtime-core/observability"
)

// PresenceKey is the fixed routing key of the single platform-wide
// presence coordinator instance.
const PresenceKey = "presence"

// Dispatcher supervises the map from routing key to coordinator actor.
// Room actors are created lazily on first use, guaranteed unique per key,
// and remove themselves once idle. The presence actor is a singleton
// created up front and run under the worker supervisor.
type Dispatcher struct {
	mu           sync.Mutex
	log          *slog.Logger
	baseCtx      context.Context
	rooms        map[string]*RoomActor
	presence     *PresenceActor
	archiver     contract.MessageArchiver
	typingExpiry time.Duration
	actorCfg     ActorConfig
}

func NewDispatcher(log *slog.Logger, archiver contract.MessageArchiver,
	presence *PresenceActor, typingExpiry time.Duration, actorCfg ActorConfig) *Dispatcher {
	return &Dispatcher{
		log:          log,
		rooms:        make(map[string]*RoomActor),
		presence:     presence,
		archiver:     archiver,
		typingExpiry: typingExpiry,
		actorCfg:     actorCfg,
	}
}

// Start records the context under which lazily created room actors run.
// Cancelling it stops every actor.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.baseCtx = ctx
}

// Room returns the live actor for a conversation, creating it if needed.
// At most one actor per key is ever live: creation happens under the lock,
// and an actor that stopped removes itself before a new one replaces it.
func (d *Dispatcher) Room(conversationID string) *RoomActor {
	d.mu.Lock()
	defer d.mu.Unlock()

	if actor, ok := d.rooms[conversationID]; ok {
		return actor
	}

	actor := NewRoomActor(d.log, conversationID, d.archiver, d.typingExpiry, d.actorCfg)
	d.rooms[conversationID] = actor
	ctx := d.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		if err := actor.Run(ctx); err != nil {
			d.log.Error("Room actor stopped with error",
				"conversation_id", conversationID, "error", err)
		}
		d.mu.Lock()
		if d.rooms[conversationID] == actor {
			delete(d.rooms, conversationID)
		}
		d.mu.Unlock()
	}()

	d.log.Debug("Room actor created", "conversation_id", conversationID)
	return actor
}

func (d *Dispatcher) Presence() *PresenceActor {
	return d.presence
}

// SweepAll fans the periodic sweep out to every live coordinator. Each
// actor applies it from its own mailbox, so the sweep never races with
// request handling.
func (d *Dispatcher) SweepAll() {
	now := time.Now().UTC()
	d.presence.Sweep(now)

	d.mu.Lock()
	actors := make([]*RoomActor, 0, len(d.rooms))
	for _, actor := range d.rooms {
		actors = append(actors, actor)
	}
	d.mu.Unlock()

	for _, actor := range actors {
		actor.Sweep(now)
	}
}

// Stats reports a point-in-time view for the health monitor.
func (d *Dispatcher) Stats() observability.Stats {
	d.mu.Lock()
	rooms := len(d.rooms)
	var roomConns int64
	for _, actor := range d.rooms {
		roomConns += actor.ConnCount()
	}
	d.mu.Unlock()

	return observability.Stats{
		Rooms:               rooms,
		RoomConnections:     roomConns,
		PresenceConnections: d.presence.ConnCount(),
		KnownUsers:          d.presence.UserCount(),
	}
}

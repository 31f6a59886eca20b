package runtime

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"realtime-core/contract"
	"realtime-core/domain"
	"realtime-core/domain/event"
)

type presenceCommand interface{}

type presenceSubscribeCmd struct{ conn contract.Conn }
type presenceDropCmd struct{ connID string }
type setPresenceCmd struct {
	userID             string
	status             domain.PresenceStatus
	device             string
	activeConversation string
}
type presenceTypingCmd struct {
	userID         string
	conversationID string
	typing         bool
}
type presenceSweepCmd struct{ now time.Time }
type checkpointCmd struct{}

// PresenceActor is the single platform-wide coordinator instance owning the
// live online/away/offline status and active-typing state of every user. It
// broadcasts presence deltas to all subscribers, unicasts a full snapshot
// to each new subscriber, and periodically demotes stale users to offline.
//
// The presence book is durably checkpointed; connection and typing state is
// rebuilt from zero on restart by clients resubscribing.
type PresenceActor struct {
	log         *slog.Logger
	registry    *Registry
	broadcaster *Broadcaster
	book        *domain.PresenceBook
	typing      *domain.TypingTracker
	checkpoint  contract.PresenceCheckpoint
	cfg         ActorConfig
	mailbox     chan presenceCommand
	heartbeats  map[string]*heartbeat
	done        chan struct{}
	connCount   atomic.Int64
	userCount   atomic.Int64
}

func NewPresenceActor(log *slog.Logger, checkpoint contract.PresenceCheckpoint,
	typingExpiry, staleness time.Duration, cfg ActorConfig) *PresenceActor {
	registry := NewRegistry()
	log = log.With("coordinator", "presence")
	return &PresenceActor{
		log:         log,
		registry:    registry,
		broadcaster: NewBroadcaster(log, registry),
		book:        domain.NewPresenceBook(staleness),
		typing:      domain.NewTypingTracker(typingExpiry),
		checkpoint:  checkpoint,
		cfg:         cfg,
		mailbox:     make(chan presenceCommand, cfg.MailboxSize),
		heartbeats:  make(map[string]*heartbeat),
		done:        make(chan struct{}),
	}
}

func (a *PresenceActor) ConnCount() int64 { return a.connCount.Load() }
func (a *PresenceActor) UserCount() int64 { return a.userCount.Load() }

// Subscribe returns false only once the actor stopped for good.
func (a *PresenceActor) Subscribe(conn contract.Conn) bool {
	return a.enqueue(presenceSubscribeCmd{conn: conn})
}

func (a *PresenceActor) Drop(connID string) {
	a.enqueue(presenceDropCmd{connID: connID})
}

func (a *PresenceActor) SetPresence(userID string, status domain.PresenceStatus, device, activeConversation string) {
	a.enqueue(setPresenceCmd{
		userID:             userID,
		status:             status,
		device:             device,
		activeConversation: activeConversation,
	})
}

// NoteTyping mirrors a conversation's typing signal into the global view so
// presence subscribers and snapshots see who types where.
func (a *PresenceActor) NoteTyping(userID, conversationID string, typing bool) {
	a.enqueue(presenceTypingCmd{userID: userID, conversationID: conversationID, typing: typing})
}

func (a *PresenceActor) Sweep(now time.Time) {
	a.enqueue(presenceSweepCmd{now: now})
}

// Checkpoint asks the actor to flush the presence book to durable storage.
func (a *PresenceActor) Checkpoint() {
	a.enqueue(checkpointCmd{})
}

func (a *PresenceActor) enqueue(cmd presenceCommand) bool {
	select {
	case <-a.done:
		return false
	default:
	}
	select {
	case a.mailbox <- cmd:
		return true
	case <-a.done:
		return false
	}
}

// Run restores the last checkpoint, then serializes every operation through
// the mailbox until the context is cancelled. The presence coordinator
// never stops on idle: there is exactly one instance platform-wide.
func (a *PresenceActor) Run(ctx context.Context) error {
	defer close(a.done)
	defer a.shutdown()

	a.restore()

	for {
		select {
		case <-ctx.Done():
			a.flush()
			return nil
		case cmd := <-a.mailbox:
			a.handle(ctx, cmd)
		}
	}
}

func (a *PresenceActor) restore() {
	records, err := a.checkpoint.LoadAll()
	if err != nil {
		a.log.Error("Failed to restore presence checkpoint, starting empty", "error", err)
		return
	}
	a.book.Load(records)
	a.userCount.Store(int64(a.book.Len()))
	a.log.Info("Presence checkpoint restored", "users", len(records))
}

func (a *PresenceActor) handle(ctx context.Context, cmd presenceCommand) {
	switch c := cmd.(type) {
	case presenceSubscribeCmd:
		a.handleSubscribe(ctx, c.conn)
	case presenceDropCmd:
		a.dropConnection(c.connID)
	case setPresenceCmd:
		a.handleSetPresence(c)
	case presenceTypingCmd:
		a.handleTyping(c)
	case presenceSweepCmd:
		a.handleSweep(c.now)
	case checkpointCmd:
		a.flush()
	}
}

// handleSubscribe registers the connection, marks its owner active, and
// unicasts a full state snapshot so the new subscriber starts from a
// consistent view instead of waiting for the next delta.
func (a *PresenceActor) handleSubscribe(ctx context.Context, conn contract.Conn) {
	now := time.Now().UTC()
	a.registry.Register(conn)
	a.heartbeats[conn.ID()] = startHeartbeat(ctx, a.log, conn, a.cfg.HeartbeatInterval,
		func(connID string) { a.Drop(connID) })
	a.connCount.Store(int64(a.registry.Len()))

	presence, changed := a.book.Touch(conn.UserID(), now)
	a.userCount.Store(int64(a.book.Len()))

	// The snapshot is always the subscriber's first event; the touch delta
	// only goes out once the full view has been delivered.
	snapshot := event.NewPresenceSnapshot(a.book.All(), a.typing.Active(now))
	if err := a.broadcaster.Unicast(conn, snapshot); err != nil {
		a.log.Debug("Failed to deliver initial snapshot, reaping",
			"conn_id", conn.ID(), "error", err)
		a.dropConnection(conn.ID())
		return
	}
	if changed {
		_, dead := a.broadcaster.Broadcast(event.NewPresenceUpdate(presence))
		a.prune(dead)
	}
	a.log.Info("Presence subscriber connected", "conn_id", conn.ID(),
		"user_id", conn.UserID(), "connections", a.registry.Len())
}

// dropConnection unregisters the connection; losing the user's last
// connection demotes them to offline immediately, without waiting for the
// staleness sweep.
func (a *PresenceActor) dropConnection(connID string) {
	if hb, ok := a.heartbeats[connID]; ok {
		hb.stop()
		delete(a.heartbeats, connID)
	}
	userID, userGone := a.registry.Unregister(connID)
	a.connCount.Store(int64(a.registry.Len()))
	if !userGone {
		return
	}
	if presence, changed := a.book.Disconnect(userID, time.Now().UTC()); changed {
		_, dead := a.broadcaster.Broadcast(event.NewPresenceUpdate(presence))
		a.prune(dead)
		a.log.Info("User fully disconnected, now offline", "user_id", userID)
	}
}

func (a *PresenceActor) handleSetPresence(cmd setPresenceCmd) {
	presence := a.book.Set(cmd.userID, cmd.status, cmd.device, cmd.activeConversation, time.Now().UTC())
	a.userCount.Store(int64(a.book.Len()))
	_, dead := a.broadcaster.Broadcast(event.NewPresenceUpdate(presence))
	a.prune(dead)
}

func (a *PresenceActor) handleTyping(cmd presenceTypingCmd) {
	now := time.Now().UTC()
	a.book.NoteTyping(cmd.userID, cmd.conversationID, cmd.typing, now)
	if cmd.typing {
		if a.typing.Start(cmd.userID, cmd.conversationID, now) {
			_, dead := a.broadcaster.Broadcast(event.NewTypingStart(cmd.userID, cmd.conversationID))
			a.prune(dead)
		}
		return
	}
	if a.typing.Stop(cmd.userID, cmd.conversationID, now) {
		_, dead := a.broadcaster.Broadcast(event.NewTypingStop(cmd.userID, cmd.conversationID))
		a.prune(dead)
	}
}

// handleSweep runs the two idempotent cleanups: expire typing indicators
// and demote stale online users. Both only move state toward "not active".
func (a *PresenceActor) handleSweep(now time.Time) {
	for _, indicator := range a.typing.SweepExpired(now) {
		a.book.NoteTyping(indicator.UserID, indicator.ConversationID, false, now)
		_, dead := a.broadcaster.Broadcast(event.NewTypingStop(indicator.UserID, indicator.ConversationID))
		a.prune(dead)
	}
	for _, presence := range a.book.SweepStale(now) {
		_, dead := a.broadcaster.Broadcast(event.NewPresenceUpdate(presence))
		a.prune(dead)
	}
}

func (a *PresenceActor) flush() {
	if err := a.checkpoint.Flush(a.book.All()); err != nil {
		a.log.Error("Failed to flush presence checkpoint", "error", err)
		return
	}
	a.log.Debug("Presence checkpoint flushed", "users", a.book.Len())
}

func (a *PresenceActor) prune(dead []string) {
	for _, connID := range dead {
		a.dropConnection(connID)
	}
}

func (a *PresenceActor) shutdown() {
	for connID, hb := range a.heartbeats {
		hb.stop()
		delete(a.heartbeats, connID)
	}
	a.registry.ForEachOpen(func(conn contract.Conn) { _ = conn.Close() })
	a.connCount.Store(0)
}

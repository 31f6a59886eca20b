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

// ActorConfig carries the tunables shared by both coordinator kinds.
type ActorConfig struct {
	HeartbeatInterval time.Duration
	MailboxSize       int
	IdleTimeout       time.Duration
	ArchiveTimeout    time.Duration
}

type roomCommand interface{}

type subscribeCmd struct{ conn contract.Conn }
type dropCmd struct{ connID string }
type publishCmd struct {
	senderID string
	content  string
	msgType  domain.MessageType
}
type typingCmd struct {
	userID string
	typing bool
}
type sweepCmd struct{ now time.Time }

// RoomActor is the coordinator instance for one conversation. It owns the
// conversation's live connections and typing state, broadcasts messages and
// typing transitions, and hands successfully broadcast messages to the
// archive collaborator.
//
// All operations are serialized through the mailbox, so the registry and
// typing tracker are mutated by a single goroutine and need no locks.
type RoomActor struct {
	log            *slog.Logger
	conversationID string
	registry       *Registry
	broadcaster    *Broadcaster
	typing         *domain.TypingTracker
	archiver       contract.MessageArchiver
	cfg            ActorConfig
	mailbox        chan roomCommand
	heartbeats     map[string]*heartbeat
	done           chan struct{}
	connCount      atomic.Int64
}

func NewRoomActor(log *slog.Logger, conversationID string,
	archiver contract.MessageArchiver, typingExpiry time.Duration, cfg ActorConfig) *RoomActor {
	registry := NewRegistry()
	log = log.With("conversation_id", conversationID)
	return &RoomActor{
		log:            log,
		conversationID: conversationID,
		registry:       registry,
		broadcaster:    NewBroadcaster(log, registry),
		typing:         domain.NewTypingTracker(typingExpiry),
		archiver:       archiver,
		cfg:            cfg,
		mailbox:        make(chan roomCommand, cfg.MailboxSize),
		heartbeats:     make(map[string]*heartbeat),
		done:           make(chan struct{}),
	}
}

func (a *RoomActor) ConversationID() string { return a.conversationID }

// ConnCount is safe to call from any goroutine.
func (a *RoomActor) ConnCount() int64 { return a.connCount.Load() }

// Subscribe hands a freshly accepted connection to the actor. Returns false
// if the actor already stopped; the caller should obtain a fresh handle
// from the dispatcher and retry.
func (a *RoomActor) Subscribe(conn contract.Conn) bool {
	return a.enqueue(subscribeCmd{conn: conn})
}

func (a *RoomActor) Drop(connID string) {
	a.enqueue(dropCmd{connID: connID})
}

func (a *RoomActor) Publish(senderID, content string, msgType domain.MessageType) {
	a.enqueue(publishCmd{senderID: senderID, content: content, msgType: msgType})
}

func (a *RoomActor) SetTyping(userID string, typing bool) {
	a.enqueue(typingCmd{userID: userID, typing: typing})
}

func (a *RoomActor) Sweep(now time.Time) {
	a.enqueue(sweepCmd{now: now})
}

func (a *RoomActor) enqueue(cmd roomCommand) bool {
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

// Run drains the mailbox until the context is cancelled or the room has
// been empty for the idle timeout. One command at a time: no parallel
// mutation of in-process state.
func (a *RoomActor) Run(ctx context.Context) error {
	defer close(a.done)
	defer a.shutdown()

	idle := time.NewTimer(a.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-a.mailbox:
			a.handle(ctx, cmd)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(a.cfg.IdleTimeout)
		case <-idle.C:
			if a.registry.Len() == 0 {
				a.log.Debug("Room idle, stopping actor")
				return nil
			}
			idle.Reset(a.cfg.IdleTimeout)
		}
	}
}

func (a *RoomActor) handle(ctx context.Context, cmd roomCommand) {
	switch c := cmd.(type) {
	case subscribeCmd:
		a.handleSubscribe(ctx, c.conn)
	case dropCmd:
		a.dropConnection(c.connID)
	case publishCmd:
		a.handlePublish(ctx, c)
	case typingCmd:
		a.handleTyping(c)
	case sweepCmd:
		a.handleSweep(c.now)
	}
}

func (a *RoomActor) handleSubscribe(ctx context.Context, conn contract.Conn) {
	a.registry.Register(conn)
	a.heartbeats[conn.ID()] = startHeartbeat(ctx, a.log, conn, a.cfg.HeartbeatInterval,
		func(connID string) { a.Drop(connID) })
	a.connCount.Store(int64(a.registry.Len()))
	a.log.Info("Connection subscribed", "conn_id", conn.ID(), "user_id", conn.UserID(),
		"connections", a.registry.Len())
}

// dropConnection is the single unregister path: heartbeat cancelled first,
// then both registry maps. A room has no presence side effect beyond
// bookkeeping.
func (a *RoomActor) dropConnection(connID string) {
	if hb, ok := a.heartbeats[connID]; ok {
		hb.stop()
		delete(a.heartbeats, connID)
	}
	userID, userGone := a.registry.Unregister(connID)
	a.connCount.Store(int64(a.registry.Len()))
	if userGone {
		a.log.Info("User fully disconnected from conversation", "user_id", userID)
	}
}

func (a *RoomActor) handlePublish(ctx context.Context, cmd publishCmd) {
	message := domain.NewMessage(a.conversationID, cmd.senderID, cmd.content, cmd.msgType, time.Now().UTC())

	delivered, dead := a.broadcaster.Broadcast(event.NewMessage(message))
	a.prune(dead)
	a.log.Debug("Message broadcast", "message_id", message.ID, "delivered", delivered)

	// The broadcast already reached live subscribers; a failing archive call
	// is logged and neither retried nor surfaced to them.
	archiveCtx, cancel := context.WithTimeout(ctx, a.cfg.ArchiveTimeout)
	defer cancel()
	if err := a.archiver.Store(archiveCtx, message); err != nil {
		a.log.Error("Archive collaborator failed after broadcast",
			"message_id", message.ID, "error", err)
	}
}

func (a *RoomActor) handleTyping(cmd typingCmd) {
	now := time.Now().UTC()
	if cmd.typing {
		if a.typing.Start(cmd.userID, a.conversationID, now) {
			_, dead := a.broadcaster.Broadcast(event.NewTypingStart(cmd.userID, a.conversationID))
			a.prune(dead)
		}
		return
	}
	if a.typing.Stop(cmd.userID, a.conversationID, now) {
		_, dead := a.broadcaster.Broadcast(event.NewTypingStop(cmd.userID, a.conversationID))
		a.prune(dead)
	}
}

func (a *RoomActor) handleSweep(now time.Time) {
	for _, indicator := range a.typing.SweepExpired(now) {
		_, dead := a.broadcaster.Broadcast(event.NewTypingStop(indicator.UserID, indicator.ConversationID))
		a.prune(dead)
	}
}

func (a *RoomActor) prune(dead []string) {
	for _, connID := range dead {
		a.dropConnection(connID)
	}
}

func (a *RoomActor) shutdown() {
	for connID, hb := range a.heartbeats {
		hb.stop()
		delete(a.heartbeats, connID)
	}
	a.registry.ForEachOpen(func(conn contract.Conn) { _ = conn.Close() })
	a.connCount.Store(0)
}

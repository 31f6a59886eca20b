package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"realtime-core/domain"
	"realtime-core/domain/event"
)

func startPresenceActor(t *testing.T, checkpoint *fakeCheckpoint) *PresenceActor {
	t.Helper()
	actor := NewPresenceActor(slog.Default(), checkpoint, 10*time.Second, 5*time.Minute, testActorConfig())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = actor.Run(ctx) }()
	return actor
}

func TestPresenceActor_NewSubscriberGetsSnapshot(t *testing.T) {
	req := require.New(t)
	actor := startPresenceActor(t, &fakeCheckpoint{})

	// Given existing presence and typing state
	actor.SetPresence("alice", domain.StatusOnline, "web", "")
	actor.SetPresence("bob", domain.StatusAway, "mobile", "")
	actor.NoteTyping("alice", "c1", true)

	// When a new subscriber connects
	carol := newFakeConn("carol")
	req.True(actor.Subscribe(carol))

	// Then it receives a snapshot covering every known user and every
	// live typing indicator
	req.Eventually(func() bool {
		return carol.countType("presence_state_snapshot") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// And the snapshot is the very first event, ahead of carol's own
	// presence delta
	req.Equal("presence_state_snapshot", carol.eventTypes()[0])

	var snap event.SnapshotPayload
	req.True(carol.lastPayload("presence_state_snapshot", &snap))
	users := make(map[string]string)
	for _, user := range snap.Users {
		users[user.UserID] = user.Status
	}
	// carol herself was touched online on subscribe
	req.Len(users, 3)
	req.Equal("online", users["alice"])
	req.Equal("away", users["bob"])
	req.Equal("online", users["carol"])
	req.Len(snap.Typing, 1)
	req.Equal("alice", snap.Typing[0].UserID)
	req.Equal("c1", snap.Typing[0].ConversationID)
}

func TestPresenceActor_DisconnectDemotesImmediately(t *testing.T) {
	req := require.New(t)
	actor := startPresenceActor(t, &fakeCheckpoint{})

	// Given alice online with exactly one connection, and bob watching
	alice := newFakeConn("alice")
	bob := newFakeConn("bob")
	req.True(actor.Subscribe(alice))
	req.True(actor.Subscribe(bob))
	req.Eventually(func() bool { return actor.ConnCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	// When alice's connection goes away
	actor.Drop(alice.ID())

	// Then bob sees her offline without waiting for the staleness sweep
	req.Eventually(func() bool {
		var presence event.PresencePayload
		if !bob.lastPayload("presence_update", &presence) {
			return false
		}
		return presence.UserID == "alice" && presence.Status == "offline"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPresenceActor_SecondDeviceKeepsUserOnline(t *testing.T) {
	req := require.New(t)
	actor := startPresenceActor(t, &fakeCheckpoint{})

	laptop := newFakeConn("alice")
	phone := newFakeConn("alice")
	watcher := newFakeConn("bob")
	req.True(actor.Subscribe(laptop))
	req.True(actor.Subscribe(phone))
	req.True(actor.Subscribe(watcher))
	req.Eventually(func() bool { return actor.ConnCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	// Dropping one of two devices is bookkeeping only
	actor.Drop(laptop.ID())
	req.Eventually(func() bool { return actor.ConnCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	var presence event.PresencePayload
	if watcher.lastPayload("presence_update", &presence) {
		req.NotEqual("offline", presence.Status)
	}
}

func TestPresenceActor_SweepDemotesStaleOnline(t *testing.T) {
	req := require.New(t)
	actor := startPresenceActor(t, &fakeCheckpoint{})

	watcher := newFakeConn("bob")
	req.True(actor.Subscribe(watcher))
	actor.SetPresence("alice", domain.StatusOnline, "web", "")

	req.Eventually(func() bool {
		return watcher.countType("presence_update") >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// When the sweep runs past the staleness window
	actor.Sweep(time.Now().UTC().Add(6 * time.Minute))

	// Then alice is demoted with one broadcast
	req.Eventually(func() bool {
		for _, raw := range watcher.payloads("presence_update") {
			var presence event.PresencePayload
			if json.Unmarshal(raw, &presence) == nil &&
				presence.UserID == "alice" && presence.Status == "offline" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPresenceActor_TypingMirrorsToSubscribers(t *testing.T) {
	req := require.New(t)
	actor := startPresenceActor(t, &fakeCheckpoint{})

	watcher := newFakeConn("bob")
	req.True(actor.Subscribe(watcher))

	actor.NoteTyping("alice", "c1", true)
	req.Eventually(func() bool {
		return watcher.countType("typing_start") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Sweep past the typing expiry emits exactly one stop
	actor.Sweep(time.Now().UTC().Add(11 * time.Second))
	req.Eventually(func() bool {
		return watcher.countType("typing_stop") == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPresenceActor_RestoresCheckpointOnStart(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	checkpoint := &fakeCheckpoint{preset: []domain.UserPresence{
		{UserID: "dave", Status: domain.StatusAway, LastActivity: now, Device: "cli"},
	}}
	actor := startPresenceActor(t, checkpoint)

	// A subscriber right after restart already sees the restored book
	carol := newFakeConn("carol")
	req.True(actor.Subscribe(carol))

	req.Eventually(func() bool {
		var snap event.SnapshotPayload
		if !carol.lastPayload("presence_state_snapshot", &snap) {
			return false
		}
		for _, user := range snap.Users {
			if user.UserID == "dave" && user.Status == "away" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPresenceActor_CheckpointFlushesBook(t *testing.T) {
	req := require.New(t)
	checkpoint := &fakeCheckpoint{}
	actor := startPresenceActor(t, checkpoint)

	actor.SetPresence("alice", domain.StatusOnline, "web", "")
	actor.Checkpoint()

	req.Eventually(func() bool { return checkpoint.flushCount() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

package domain

import (
	"time"

	"github.com/samber/lo"
)

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusOffline PresenceStatus = "offline"
)

func (s PresenceStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusOffline:
		return true
	}
	return false
}

// UserPresence is the live status of one user across the whole platform.
type UserPresence struct {
	UserID             string
	Status             PresenceStatus
	LastActivity       time.Time
	Device             string
	ActiveConversation string
	TypingIn           string
}

// PresenceBook holds the presence state machine for every known user.
//
// Owned exclusively by the presence coordinator actor; no internal locking.
// Invariant: status online implies LastActivity within the staleness window.
// A violation is corrected by SweepStale, never by readers.
type PresenceBook struct {
	staleness time.Duration
	entries   map[string]*UserPresence
}

func NewPresenceBook(staleness time.Duration) *PresenceBook {
	return &PresenceBook{
		staleness: staleness,
		entries:   make(map[string]*UserPresence),
	}
}

// Set applies a caller-supplied status update immediately and refreshes the
// last-activity timestamp. The returned copy is what should be broadcast.
func (b *PresenceBook) Set(userID string, status PresenceStatus, device, activeConversation string, now time.Time) UserPresence {
	entry := b.entry(userID)
	entry.Status = status
	entry.LastActivity = now
	if device != "" {
		entry.Device = device
	}
	entry.ActiveConversation = activeConversation
	return *entry
}

// Touch records activity for a user, creating an online record on first
// sight. Returns the current state and whether the status changed (first
// write, or a comeback from offline), which is what warrants a broadcast.
func (b *PresenceBook) Touch(userID string, now time.Time) (UserPresence, bool) {
	entry, ok := b.entries[userID]
	if !ok {
		entry = &UserPresence{UserID: userID, Status: StatusOnline, LastActivity: now}
		b.entries[userID] = entry
		return *entry, true
	}
	changed := entry.Status == StatusOffline
	if changed {
		entry.Status = StatusOnline
	}
	entry.LastActivity = now
	return *entry, changed
}

// Disconnect demotes a fully disconnected user to offline, independent of
// the staleness sweep. Returns false when there is nothing to broadcast.
func (b *PresenceBook) Disconnect(userID string, now time.Time) (UserPresence, bool) {
	entry, ok := b.entries[userID]
	if !ok || entry.Status == StatusOffline {
		return UserPresence{}, false
	}
	entry.Status = StatusOffline
	entry.LastActivity = now
	entry.TypingIn = ""
	return *entry, true
}

// NoteTyping tracks which conversation a user is typing in, for snapshots.
// Only a typing start counts as activity: a stop may come from an expiry
// sweep, which must never push state away from "not active".
func (b *PresenceBook) NoteTyping(userID, conversationID string, typing bool, now time.Time) {
	if typing {
		entry := b.entry(userID)
		entry.TypingIn = conversationID
		entry.LastActivity = now
		return
	}
	if entry, ok := b.entries[userID]; ok && entry.TypingIn == conversationID {
		entry.TypingIn = ""
	}
}

// SweepStale demotes every online user whose last activity is older than the
// staleness window to offline and returns the demoted entries, one
// presence_update broadcast each. Monotonic toward "not active", so it is
// safe to run at any time.
func (b *PresenceBook) SweepStale(now time.Time) []UserPresence {
	var demoted []UserPresence
	for _, entry := range b.entries {
		if entry.Status == StatusOnline && now.Sub(entry.LastActivity) > b.staleness {
			entry.Status = StatusOffline
			entry.TypingIn = ""
			demoted = append(demoted, *entry)
		}
	}
	return demoted
}

func (b *PresenceBook) Get(userID string) (UserPresence, bool) {
	entry, ok := b.entries[userID]
	if !ok {
		return UserPresence{}, false
	}
	return *entry, true
}

// All returns a copy of every known presence record.
func (b *PresenceBook) All() []UserPresence {
	return lo.MapToSlice(b.entries, func(_ string, entry *UserPresence) UserPresence {
		return *entry
	})
}

func (b *PresenceBook) Len() int { return len(b.entries) }

// Load replaces the book content, used to restore a checkpoint on restart.
func (b *PresenceBook) Load(records []UserPresence) {
	for _, record := range records {
		copied := record
		b.entries[record.UserID] = &copied
	}
}

func (b *PresenceBook) entry(userID string) *UserPresence {
	entry, ok := b.entries[userID]
	if !ok {
		// First-ever presence write starts online.
		entry = &UserPresence{UserID: userID, Status: StatusOnline}
		b.entries[userID] = entry
	}
	return entry
}

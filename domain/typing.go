package domain

import "time"

// TypingIndicator marks one user as actively typing in one conversation.
type TypingIndicator struct {
	UserID         string
	ConversationID string
	LastSignal     time.Time
}

type typingKey struct {
	userID         string
	conversationID string
}

// TypingTracker holds the idle/typing state machine for every
// (user, conversation) pair known to one coordinator instance.
//
// State is owned by the coordinator actor; no internal locking.
// An indicator older than the expiry is logically stale: readers must treat
// it as "not typing" even before a sweep removes it.
type TypingTracker struct {
	expiry     time.Duration
	indicators map[typingKey]time.Time
}

func NewTypingTracker(expiry time.Duration) *TypingTracker {
	return &TypingTracker{
		expiry:     expiry,
		indicators: make(map[typingKey]time.Time),
	}
}

// Start moves the pair to typing. Returns true on a real idle -> typing
// transition; a repeated start only refreshes the timestamp.
// A stale, unswept indicator counts as idle, so a start over it is a
// transition again.
func (t *TypingTracker) Start(userID, conversationID string, now time.Time) bool {
	key := typingKey{userID, conversationID}
	last, ok := t.indicators[key]
	t.indicators[key] = now
	return !ok || now.Sub(last) > t.expiry
}

// Stop moves the pair back to idle. Returns true if the pair was typing
// (and not already stale), meaning a typing_stop should be broadcast.
func (t *TypingTracker) Stop(userID, conversationID string, now time.Time) bool {
	key := typingKey{userID, conversationID}
	last, ok := t.indicators[key]
	if !ok {
		return false
	}
	delete(t.indicators, key)
	return now.Sub(last) <= t.expiry
}

// SweepExpired removes every indicator older than the expiry and returns
// the removed ones, one typing_stop broadcast each.
func (t *TypingTracker) SweepExpired(now time.Time) []TypingIndicator {
	var expired []TypingIndicator
	for key, last := range t.indicators {
		if now.Sub(last) > t.expiry {
			expired = append(expired, TypingIndicator{
				UserID:         key.userID,
				ConversationID: key.conversationID,
				LastSignal:     last,
			})
			delete(t.indicators, key)
		}
	}
	return expired
}

// Active returns the currently live indicators, filtering out stale ones
// that no sweep has removed yet.
func (t *TypingTracker) Active(now time.Time) []TypingIndicator {
	var active []TypingIndicator
	for key, last := range t.indicators {
		if now.Sub(last) <= t.expiry {
			active = append(active, TypingIndicator{
				UserID:         key.userID,
				ConversationID: key.conversationID,
				LastSignal:     last,
			})
		}
	}
	return active
}

func (t *TypingTracker) IsTyping(userID, conversationID string, now time.Time) bool {
	last, ok := t.indicators[typingKey{userID, conversationID}]
	return ok && now.Sub(last) <= t.expiry
}

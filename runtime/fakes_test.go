package runtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"realtime-core/domain"
	"realtime-core/errors"
)

// fakeConn records every frame it receives; tests flip failSend or close it
// to simulate dead consumers.
type fakeConn struct {
	id       string
	userID   string
	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	failSend bool
	pings    int
}

func newFakeConn(userID string) *fakeConn {
	return &fakeConn{id: uuid.NewString(), userID: userID}
}

func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) UserID() string { return c.userID }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.failSend {
		return errors.ErrConnClosed
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return nil
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.ErrConnClosed
	}
	c.pings++
	return nil
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

// eventTypes decodes the type discriminator of every received frame.
func (c *fakeConn) eventTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var types []string
	for _, frame := range c.frames {
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(frame, &envelope); err == nil {
			types = append(types, envelope.Type)
		}
	}
	return types
}

func (c *fakeConn) countType(eventType string) int {
	count := 0
	for _, t := range c.eventTypes() {
		if t == eventType {
			count++
		}
	}
	return count
}

// lastPayload decodes the data of the most recent frame of the given type.
func (c *fakeConn) lastPayload(eventType string, out any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		var envelope struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(c.frames[i], &envelope); err != nil || envelope.Type != eventType {
			continue
		}
		return json.Unmarshal(envelope.Data, out) == nil
	}
	return false
}

// payloads returns the raw data of every frame of the given type, oldest
// first.
func (c *fakeConn) payloads(eventType string) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, frame := range c.frames {
		var envelope struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(frame, &envelope); err == nil && envelope.Type == eventType {
			out = append(out, envelope.Data)
		}
	}
	return out
}

type fakeArchiver struct {
	mu     sync.Mutex
	stored []domain.Message
	fail   bool
}

func (a *fakeArchiver) Store(_ context.Context, message domain.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errors.ErrConnClosed
	}
	a.stored = append(a.stored, message)
	return nil
}

func (a *fakeArchiver) History(string, *string) ([]domain.Message, *string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Message(nil), a.stored...), nil, nil
}

func (a *fakeArchiver) storedMessages() []domain.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Message(nil), a.stored...)
}

type fakeCheckpoint struct {
	mu      sync.Mutex
	preset  []domain.UserPresence
	flushed [][]domain.UserPresence
}

func (c *fakeCheckpoint) Flush(records []domain.UserPresence) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushed = append(c.flushed, append([]domain.UserPresence(nil), records...))
	return nil
}

func (c *fakeCheckpoint) LoadAll() ([]domain.UserPresence, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.UserPresence(nil), c.preset...), nil
}

func (c *fakeCheckpoint) flushCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.flushed)
}

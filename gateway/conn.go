package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"realtime-core/errors"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// pingFrame is the heartbeat event of the wire union; subscribers answer
// with a content-free {"type":"pong"} frame.
var pingFrame = []byte(`{"type":"ping"}`)

// Conn adapts a gorilla WebSocket connection to the contract.Conn the
// coordinators own. Writes go through a buffered channel drained by a
// single write pump, so Send never blocks: a full buffer is an error the
// broadcast engine turns into a prune.
type Conn struct {
	id        string
	userID    string
	ws        *websocket.Conn
	send      chan []byte
	die       chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewConn(userID string, ws *websocket.Conn, bufferSize int) *Conn {
	c := &Conn{
		id:     uuid.NewString(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, bufferSize),
		die:    make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *Conn) ID() string     { return c.id }
func (c *Conn) UserID() string { return c.userID }

// Send queues one frame without blocking.
func (c *Conn) Send(frame []byte) error {
	if c.closed.Load() {
		return errors.ErrConnClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errors.ErrSendBufferFull
	}
}

// Ping queues the heartbeat frame. A buffer too backed up to take a ping
// is indistinguishable from a dead consumer and reported as such.
func (c *Conn) Ping() error {
	return c.Send(pingFrame)
}

func (c *Conn) Open() bool {
	return !c.closed.Load()
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.die)
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) writePump() {
	defer func() {
		_ = c.Close()
	}()

	for {
		select {
		case <-c.die:
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}

// Package runtime hosts the coordinator actors and the machinery they
// compose: connection registry, heartbeat monitor, broadcast engine, and
// the dispatcher that owns one actor per routing key.
package runtime

import (
	"realtime-core/contract"
)

type Set map[string]struct{}

// Registry tracks the open connections of one coordinator instance and
// which user owns each. Both maps move in lockstep: a connection id lives
// in exactly one user's set.
//
// The registry is owned by a single actor goroutine; no internal locking.
type Registry struct {
	conns     map[string]contract.Conn
	userConns map[string]Set
}

func NewRegistry() *Registry {
	return &Registry{
		conns:     make(map[string]contract.Conn),
		userConns: make(map[string]Set),
	}
}

// Register inserts the connection into both maps. Ids are generated at
// accept time and assumed unique within the instance.
func (r *Registry) Register(conn contract.Conn) {
	r.conns[conn.ID()] = conn

	if _, ok := r.userConns[conn.UserID()]; !ok {
		r.userConns[conn.UserID()] = make(Set)
	}
	r.userConns[conn.UserID()][conn.ID()] = struct{}{}
}

// Unregister closes the stream if still open and removes the connection
// from both maps. userGone reports whether this was the user's last
// connection on this instance, which is what triggers the presence
// downgrade on the presence coordinator.
func (r *Registry) Unregister(connID string) (string, bool) {
	conn, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	_ = conn.Close()
	delete(r.conns, connID)

	userID := conn.UserID()
	members, ok := r.userConns[userID]
	if !ok {
		return userID, false
	}
	delete(members, connID)
	if len(members) > 0 {
		return userID, false
	}
	delete(r.userConns, userID)
	return userID, true
}

// ForEachOpen iterates the currently open connections. Callers must not
// mutate the registry during iteration; collect dead ids and prune in a
// second pass.
func (r *Registry) ForEachOpen(fn func(conn contract.Conn)) {
	for _, conn := range r.conns {
		fn(conn)
	}
}

func (r *Registry) Get(connID string) (contract.Conn, bool) {
	conn, ok := r.conns[connID]
	return conn, ok
}

func (r *Registry) Len() int { return len(r.conns) }

func (r *Registry) UserConnCount(userID string) int {
	return len(r.userConns[userID])
}

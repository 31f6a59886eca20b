//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"realtime-core/domain"
)

// Conn is an open bidirectional stream owned exclusively by the coordinator
// instance that accepted it. Send must never block: a full outbound buffer
// is reported as an error and the caller decides what to do with the body.
type Conn interface {
	ID() string
	UserID() string
	Send(frame []byte) error
	Ping() error
	Open() bool
	Close() error
}

// IRegistry tracks which connections are open and which user owns each.
// A connection id appears in exactly one user's set; when the set becomes
// empty the user is fully disconnected from this instance.
type IRegistry interface {
	Register(conn Conn)
	Unregister(connID string) (userID string, userGone bool)
	ForEachOpen(fn func(conn Conn))
	Get(connID string) (Conn, bool)
	Len() int
	UserConnCount(userID string) int
}

// MessageArchiver is the external persistence collaborator. A failure after
// a successful broadcast is logged by the caller, never retried here.
type MessageArchiver interface {
	Store(ctx context.Context, message domain.Message) error
	History(conversationID string, cursor *string) ([]domain.Message, *string, error)
}

// PresenceCheckpoint durably snapshots the presence book so a restarted
// presence coordinator does not force every client to re-announce status.
type PresenceCheckpoint interface {
	Flush(records []domain.UserPresence) error
	LoadAll() ([]domain.UserPresence, error)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself; the supervisor recovers its panics.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// used for logging and supervision without manual naming.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Sweeper is anything a periodic sweep can be driven against.
type Sweeper interface {
	SweepAll()
}

// Checkpointer flushes durable state on demand.
type Checkpointer interface {
	Checkpoint()
}

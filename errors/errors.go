package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrMissingIdentity  = fmt.Errorf("no caller identity attached")
	ErrMalformedFrame   = fmt.Errorf("malformed frame")
	ErrUnknownFrameType = fmt.Errorf("unknown frame type")
	ErrSendBufferFull   = fmt.Errorf("connection send buffer full")
	ErrConnClosed       = fmt.Errorf("connection closed")
	ErrActorStopped     = fmt.Errorf("coordinator stopped")
)

package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"realtime-core/errors"
)

// scriptedWorker runs the next behavior from its script on every start;
// once the script is exhausted it blocks until cancelled.
type scriptedWorker struct {
	runs   atomic.Int64
	script []func() error
}

func (w *scriptedWorker) Run(ctx context.Context) error {
	run := int(w.runs.Add(1)) - 1
	if run < len(w.script) {
		return w.script[run]()
	}
	<-ctx.Done()
	return nil
}

func TestSupervisor_RestartsCrashedWorker(t *testing.T) {
	req := require.New(t)
	sup := NewSupervisor(slog.Default(), 10*time.Millisecond)

	// Given a worker that errors once, then panics once, then runs clean
	worker := &scriptedWorker{script: []func() error{
		func() error { return errors.ErrWorkerPanic },
		func() error { panic("boom") },
	}}
	sup.Add(worker)

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	// Then it is restarted through both failures
	req.Eventually(func() bool { return worker.runs.Load() == 3 }, 2*time.Second, 10*time.Millisecond)

	sup.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("supervisor did not stop")
	}
}

func TestSupervisor_CleanExitIsNotRestarted(t *testing.T) {
	req := require.New(t)
	sup := NewSupervisor(slog.Default(), 10*time.Millisecond)

	worker := &scriptedWorker{script: []func() error{
		func() error { return nil },
	}}
	sup.Add(worker)

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	// Run returns on its own once the only worker finished properly
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("supervisor did not return after clean worker exit")
	}
	req.Equal(int64(1), worker.runs.Load())
}

func TestSupervisor_ParentCancelStopsWorkers(t *testing.T) {
	req := require.New(t)
	sup := NewSupervisor(slog.Default(), 10*time.Millisecond)

	blocking := &scriptedWorker{}
	sup.Add(blocking)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	req.Eventually(func() bool { return blocking.runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("supervisor did not honor parent cancellation")
	}
}

func TestSupervisor_OneCrashDoesNotStopOthers(t *testing.T) {
	req := require.New(t)
	sup := NewSupervisor(slog.Default(), time.Hour)

	crasher := &scriptedWorker{script: []func() error{
		func() error { panic("boom") },
	}}
	steady := &scriptedWorker{}
	sup.Add(crasher, steady)

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	// The crash parks the first worker in its restart delay while the
	// second keeps running
	req.Eventually(func() bool { return crasher.runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	req.Eventually(func() bool { return steady.runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	sup.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("supervisor did not stop")
	}
}

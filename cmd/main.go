package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"realtime-core/gateway"
	"realtime-core/internal"
	"realtime-core/repositories"
	"realtime-core/runtime"
	"realtime-core/runtime/workers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database cleanup included)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.LoggerFromLevel(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Coordinators & supervision
	archive := repositories.NewMessageArchive(db, log, config.LimitMessages)
	checkpoint := repositories.NewPresenceCheckpoint(db, log)

	actorCfg := runtime.ActorConfig{
		HeartbeatInterval: config.HeartbeatInterval,
		MailboxSize:       config.MailboxSize,
		IdleTimeout:       config.ActorIdleTimeout,
		ArchiveTimeout:    config.ArchiveTimeout,
	}
	presence := runtime.NewPresenceActor(log, checkpoint,
		config.TypingExpiry, config.PresenceStaleness, actorCfg)
	dispatcher := runtime.NewDispatcher(log, archive, presence, config.TypingExpiry, actorCfg)

	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(presence).
		Add(workers.NewSweepWorker(log, config.SweepInterval, dispatcher)).
		Add(workers.NewCheckpointWorker(log, config.CheckpointInterval, presence)).
		Add(workers.NewHealthMonitoringWorker(log, config.MetricInterval, dispatcher))

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(ctx)
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 5. HTTP / WebSocket gateway
	server := gateway.NewServer(log, dispatcher, archive,
		gateway.NewIdentity([]byte(config.AuthSecret)), config.ConnectionBufferSize)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: server.Routes()}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting gateway", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("gateway error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 7. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}

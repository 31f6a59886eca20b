package internal

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	AuthSecret           string        `env:"AUTH_HMAC_SECRET,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	MailboxSize          int           `env:"MAILBOX_SIZE,default=512"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	TypingExpiry         time.Duration `env:"TYPING_EXPIRY,default=10s"`
	PresenceStaleness    time.Duration `env:"PRESENCE_STALENESS,default=5m"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL,default=30s"`
	CheckpointInterval   time.Duration `env:"CHECKPOINT_INTERVAL,default=1m"`
	ActorIdleTimeout     time.Duration `env:"ACTOR_IDLE_TIMEOUT,default=5m"`
	ArchiveTimeout       time.Duration `env:"ARCHIVE_TIMEOUT,default=5s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
}

// LoggerFromLevel builds the process logger for a LOG_LEVEL string,
// falling back to info on anything unrecognized.
func LoggerFromLevel(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// Validate catches configuration that would silently break the liveness
// machinery, like a sweep slower than the staleness it enforces.
func (c Config) Validate() error {
	if c.TypingExpiry <= 0 || c.PresenceStaleness <= 0 {
		return fmt.Errorf("expiry windows must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	return nil
}

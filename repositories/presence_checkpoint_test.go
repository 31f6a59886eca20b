package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"realtime-core/domain"
)

func TestPresenceCheckpoint_FlushAndLoadAll(t *testing.T) {
	req := require.New(t)
	checkpoint := NewPresenceCheckpoint(setupTestDB(t), slog.Default())
	now := time.Now().UTC().Truncate(time.Millisecond)

	// Given a flushed presence book
	err := checkpoint.Flush([]domain.UserPresence{
		{UserID: "alice", Status: domain.StatusOnline, LastActivity: now, Device: "web"},
		{UserID: "bob", Status: domain.StatusAway, LastActivity: now.Add(-time.Minute)},
	})
	req.NoError(err)

	// When the records are restored
	records, err := checkpoint.LoadAll()

	// Then every user comes back with its fields intact
	req.NoError(err)
	req.Len(records, 2)
	byUser := make(map[string]domain.UserPresence)
	for _, record := range records {
		byUser[record.UserID] = record
	}
	req.Equal(domain.StatusOnline, byUser["alice"].Status)
	req.Equal("web", byUser["alice"].Device)
	req.True(now.Equal(byUser["alice"].LastActivity))
	req.Equal(domain.StatusAway, byUser["bob"].Status)
}

func TestPresenceCheckpoint_LaterFlushOverwrites(t *testing.T) {
	req := require.New(t)
	checkpoint := NewPresenceCheckpoint(setupTestDB(t), slog.Default())
	now := time.Now().UTC()

	req.NoError(checkpoint.Flush([]domain.UserPresence{
		{UserID: "alice", Status: domain.StatusOnline, LastActivity: now},
	}))
	req.NoError(checkpoint.Flush([]domain.UserPresence{
		{UserID: "alice", Status: domain.StatusOffline, LastActivity: now},
	}))

	records, err := checkpoint.LoadAll()
	req.NoError(err)
	req.Len(records, 1)
	req.Equal(domain.StatusOffline, records[0].Status)
}

func TestPresenceCheckpoint_LoadAllEmpty(t *testing.T) {
	req := require.New(t)
	checkpoint := NewPresenceCheckpoint(setupTestDB(t), slog.Default())

	records, err := checkpoint.LoadAll()
	req.NoError(err)
	req.Empty(records)
}

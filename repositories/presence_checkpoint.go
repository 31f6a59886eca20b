package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"realtime-core/domain"
)

const presenceKeyPrefix = "presence:"

// PresenceCheckpoint snapshots the presence book to BadgerDB so the
// presence coordinator survives restarts without every client having to
// re-announce status.
type PresenceCheckpoint struct {
	db  *badger.DB
	log *slog.Logger
}

func NewPresenceCheckpoint(db *badger.DB, log *slog.Logger) PresenceCheckpoint {
	return PresenceCheckpoint{db: db, log: log}
}

type diskPresence struct {
	UserID             string    `json:"user_id"`
	Status             string    `json:"status"`
	LastActivity       time.Time `json:"last_activity"`
	Device             string    `json:"device,omitempty"`
	ActiveConversation string    `json:"active_conversation,omitempty"`
}

// Flush writes every record in a single transaction, keyed
// "presence:{user_id}". Later flushes simply overwrite earlier ones.
func (p PresenceCheckpoint) Flush(records []domain.UserPresence) error {
	return p.db.Update(func(txn *badger.Txn) error {
		for _, record := range records {
			bytes, err := json.Marshal(diskPresence{
				UserID:             record.UserID,
				Status:             string(record.Status),
				LastActivity:       record.LastActivity.UTC(),
				Device:             record.Device,
				ActiveConversation: record.ActiveConversation,
			})
			if err != nil {
				return err
			}
			key := fmt.Sprintf("%s%s", presenceKeyPrefix, record.UserID)
			if err = txn.Set([]byte(key), bytes); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadAll restores every checkpointed record via a prefix scan.
func (p PresenceCheckpoint) LoadAll() ([]domain.UserPresence, error) {
	var records []domain.UserPresence
	err := p.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(presenceKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var disk diskPresence
				if err := json.Unmarshal(value, &disk); err != nil {
					return err
				}
				records = append(records, domain.UserPresence{
					UserID:             disk.UserID,
					Status:             domain.PresenceStatus(disk.Status),
					LastActivity:       disk.LastActivity,
					Device:             disk.Device,
					ActiveConversation: disk.ActiveConversation,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

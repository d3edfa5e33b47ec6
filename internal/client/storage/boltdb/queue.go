package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/buehnenwerk/stagesync/internal/client/storage"
	"github.com/buehnenwerk/stagesync/internal/models"
)

// inflightKey ключ in-flight батча в meta bucket
func inflightKey(scope models.Scope) []byte {
	return []byte("inflight:" + string(scope))
}

// EnqueueEvent appends a locally produced event to the queue.
// Ключи монотонны (NextSequence), поэтому порядок обхода bucket'а
// совпадает с порядком постановки в очередь.
func (s *Storage) EnqueueEvent(ctx context.Context, scope models.Scope, event *models.SyncEvent) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(queueBucket(scope))
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		if err := bucket.Put(key, data); err != nil {
			return fmt.Errorf("failed to enqueue event: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// PendingEvents returns queued events for scope in insertion order
func (s *Storage) PendingEvents(ctx context.Context, scope models.Scope) ([]*models.SyncEvent, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var events []*models.SyncEvent

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(queueBucket(scope))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var event models.SyncEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}
			events = append(events, &event)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}

	return events, nil
}

// PendingCount returns the number of queued events for scope
func (s *Storage) PendingCount(ctx context.Context, scope models.Scope) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var count int
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(queueBucket(scope))
		if bucket == nil {
			return nil
		}
		count = bucket.Stats().KeyN
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}

	return count, nil
}

// RemovePending removes queued events by their IDs after a successful push
func (s *Storage) RemovePending(ctx context.Context, scope models.Scope, eventIDs []string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	if len(eventIDs) == 0 {
		return nil
	}

	ids := make(map[string]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		ids[id] = struct{}{}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(queueBucket(scope))
		if bucket == nil {
			return nil
		}

		// Собираем ключи до удаления: менять bucket внутри ForEach нельзя
		var keys [][]byte
		ferr := bucket.ForEach(func(k, v []byte) error {
			var event models.SyncEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}
			if _, ok := ids[event.ID]; ok {
				key := make([]byte, len(k))
				copy(key, k)
				keys = append(keys, key)
			}
			return nil
		})
		if ferr != nil {
			return ferr
		}

		for _, key := range keys {
			if err := bucket.Delete(key); err != nil {
				return fmt.Errorf("failed to delete event: %w", err)
			}
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// SaveInFlightBatch persists the batch snapshot before sending it
func (s *Storage) SaveInFlightBatch(ctx context.Context, batch *storage.PendingBatch) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}
		return bucket.Put(inflightKey(batch.Scope), data)
	})

	if err != nil {
		return fmt.Errorf("failed to save in-flight batch: %w", err)
	}

	return nil
}

// GetInFlightBatch returns the stored batch for scope
func (s *Storage) GetInFlightBatch(ctx context.Context, scope models.Scope) (*storage.PendingBatch, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var batch *storage.PendingBatch

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return storage.ErrBatchNotFound
		}

		data := bucket.Get(inflightKey(scope))
		if data == nil {
			return storage.ErrBatchNotFound
		}

		batch = &storage.PendingBatch{}
		if err := json.Unmarshal(data, batch); err != nil {
			return fmt.Errorf("failed to unmarshal batch: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return batch, nil
}

// ClearInFlightBatch removes the stored batch after the server confirmed it
func (s *Storage) ClearInFlightBatch(ctx context.Context, scope models.Scope) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return nil
		}
		return bucket.Delete(inflightKey(scope))
	})

	if err != nil {
		return fmt.Errorf("failed to clear in-flight batch: %w", err)
	}

	return nil
}

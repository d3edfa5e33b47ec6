package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/buehnenwerk/stagesync/internal/models"
)

var (
	// BoltDB bucket names
	bucketQueueInventory = []byte("queue_inventory")
	bucketQueueTickets   = []byte("queue_tickets")
	bucketInventory      = []byte("inventory")
	bucketTickets        = []byte("tickets")
	bucketMeta           = []byte("meta")
)

// Storage represents BoltDB storage implementation for client
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	storage := &Storage{db: db}

	// Инициализируем buckets
	if err := storage.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			bucketQueueInventory,
			bucketQueueTickets,
			bucketInventory,
			bucketTickets,
			bucketMeta,
		}
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// queueBucket возвращает имя бакета очереди для партиции
func queueBucket(scope models.Scope) []byte {
	if scope == models.ScopeTickets {
		return bucketQueueTickets
	}
	return bucketQueueInventory
}

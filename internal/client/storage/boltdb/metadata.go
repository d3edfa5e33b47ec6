package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/buehnenwerk/stagesync/internal/models"
)

const keyClientID = "client_id"

// watermarkKey ключ подтвержденного watermark для партиции
func watermarkKey(scope models.Scope) []byte {
	return []byte("last_server_seq:" + string(scope))
}

// ClientID returns the stable identifier of this device.
// При первом обращении генерирует UUID и сохраняет его.
func (s *Storage) ClientID(ctx context.Context) (string, error) {
	var clientID string

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		if data := bucket.Get([]byte(keyClientID)); data != nil {
			clientID = string(data)
			return nil
		}

		clientID = uuid.NewString()
		if err := bucket.Put([]byte(keyClientID), []byte(clientID)); err != nil {
			return fmt.Errorf("failed to save client id: %w", err)
		}
		return nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to get client id: %w", err)
	}

	return clientID, nil
}

// SaveLastServerSeq saves the confirmed watermark for scope
func (s *Storage) SaveLastServerSeq(ctx context.Context, scope models.Scope, seq int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		// Конвертируем int64 в bytes
		seqBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(seqBytes, uint64(seq))

		if err := bucket.Put(watermarkKey(scope), seqBytes); err != nil {
			return fmt.Errorf("failed to save watermark: %w", err)
		}

		return nil
	})
}

// GetLastServerSeq retrieves the confirmed watermark for scope
// Returns 0 if no sync has been performed yet
func (s *Storage) GetLastServerSeq(ctx context.Context, scope models.Scope) (int64, error) {
	var seq int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		seqBytes := bucket.Get(watermarkKey(scope))
		if seqBytes == nil {
			// Watermark не найден - первая синхронизация
			seq = 0
			return nil
		}

		seq = int64(binary.BigEndian.Uint64(seqBytes))
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to get watermark: %w", err)
	}

	return seq, nil
}

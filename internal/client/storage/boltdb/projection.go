package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/buehnenwerk/stagesync/internal/client/storage"
	"github.com/buehnenwerk/stagesync/internal/models"
)

// SaveInventoryItem stores or updates an inventory item
func (s *Storage) SaveInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketInventory)
		if bucket == nil {
			return fmt.Errorf("inventory bucket not found")
		}
		return bucket.Put([]byte(item.ID), data)
	})

	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}

	return nil
}

// GetInventoryItem retrieves an inventory item by ID
func (s *Storage) GetInventoryItem(ctx context.Context, id string) (*models.InventoryItem, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var item *models.InventoryItem

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketInventory)
		if bucket == nil {
			return storage.ErrItemNotFound
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrItemNotFound
		}

		item = &models.InventoryItem{}
		if err := json.Unmarshal(data, item); err != nil {
			return fmt.Errorf("failed to unmarshal item: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return item, nil
}

// ListInventory returns all inventory items
func (s *Storage) ListInventory(ctx context.Context) ([]*models.InventoryItem, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var items []*models.InventoryItem

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketInventory)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var item models.InventoryItem
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("failed to unmarshal item: %w", err)
			}
			items = append(items, &item)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}

	return items, nil
}

// SaveTicket stores or updates a ticket.
// Ключом служит код билета: сканер всегда ищет по коду.
func (s *Storage) SaveTicket(ctx context.Context, ticket *models.Ticket) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTickets)
		if bucket == nil {
			return fmt.Errorf("tickets bucket not found")
		}
		return bucket.Put([]byte(ticket.Code), data)
	})

	if err != nil {
		return fmt.Errorf("failed to save ticket: %w", err)
	}

	return nil
}

// GetTicketByCode retrieves a ticket by its printed code
func (s *Storage) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var ticket *models.Ticket

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTickets)
		if bucket == nil {
			return storage.ErrTicketNotFound
		}

		data := bucket.Get([]byte(code))
		if data == nil {
			return storage.ErrTicketNotFound
		}

		ticket = &models.Ticket{}
		if err := json.Unmarshal(data, ticket); err != nil {
			return fmt.Errorf("failed to unmarshal ticket: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return ticket, nil
}

// ListTickets returns all tickets
func (s *Storage) ListTickets(ctx context.Context) ([]*models.Ticket, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var tickets []*models.Ticket

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTickets)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var ticket models.Ticket
			if err := json.Unmarshal(v, &ticket); err != nil {
				return fmt.Errorf("failed to unmarshal ticket: %w", err)
			}
			tickets = append(tickets, &ticket)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	return tickets, nil
}

// ResetScope removes the whole projection for scope
func (s *Storage) ResetScope(ctx context.Context, scope models.Scope) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	name := bucketInventory
	if scope == models.ScopeTickets {
		name = bucketTickets
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(name); err != nil {
			return fmt.Errorf("failed to delete bucket: %w", err)
		}
		if _, err := tx.CreateBucket(name); err != nil {
			return fmt.Errorf("failed to recreate bucket: %w", err)
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to reset scope %s: %w", scope, err)
	}

	return nil
}

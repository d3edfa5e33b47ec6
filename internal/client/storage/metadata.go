package storage

import (
	"context"

	"github.com/buehnenwerk/stagesync/internal/models"
)

// MetadataStorage defines interface for storing client sync metadata
type MetadataStorage interface {
	// ClientID returns the stable identifier of this device.
	// Generated and persisted on first call.
	ClientID(ctx context.Context) (string, error)

	// SaveLastServerSeq saves the confirmed watermark for scope
	SaveLastServerSeq(ctx context.Context, scope models.Scope, seq int64) error

	// GetLastServerSeq retrieves the confirmed watermark for scope
	// Returns 0 if no sync has been performed yet
	GetLastServerSeq(ctx context.Context, scope models.Scope) (int64, error)
}

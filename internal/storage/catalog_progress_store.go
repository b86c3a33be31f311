package storage

import (
	"context"
	"time"
)

// CatalogSync records the last catalog snapshot that was diffed.
type CatalogSync struct {
	SyncedAt time.Time // when the snapshot was processed
	Source   string    // snapshot file or group name
	Total    int       // catalog numbers in the snapshot
}

// CatalogProgressStore persists the known catalog numbers between catalog
// runs so new launches can be detected without re-reading earlier snapshots.
type CatalogProgressStore interface {
	// GetLastSync returns the last processed snapshot.
	// Returns ErrNotFound if no snapshot has been processed yet.
	GetLastSync(ctx context.Context) (*CatalogSync, error)

	// SetLastSync saves the last processed snapshot.
	SetLastSync(ctx context.Context, sync *CatalogSync) error

	// IsKnown checks if a catalog number has been seen.
	IsKnown(ctx context.Context, catalogID int) (bool, error)

	// MarkKnown records catalog numbers as seen. Already known numbers are ignored.
	MarkKnown(ctx context.Context, catalogIDs []int) error

	// LoadKnown returns all known catalog numbers, ordered ASC.
	LoadKnown(ctx context.Context) ([]int, error)
}

// Package repository keeps the live, week-old and month-old snapshots of
// every category and optionally persists them.
package repository

import (
	"context"

	"github.com/okian/arenawatch/internal/domain/model"
)

// Store provides read/write access to the snapshot slots.
type Store interface {
	// PutLive installs a freshly fetched snapshot in the live slot and
	// rotates the previous live snapshot towards the week and month slots.
	PutLive(ctx context.Context, s *model.Snapshot) (Rotation, error)

	// Put writes a snapshot straight into slot, replacing the occupant.
	Put(ctx context.Context, slot model.Slot, s *model.Snapshot) error

	// Set returns the snapshots held for category. It never fails; empty
	// slots are nil.
	Set(ctx context.Context, category model.Category) model.SnapshotSet

	// Count returns the number of non-empty slots across all categories.
	Count(ctx context.Context) int
}

// Persister is a durable backing for a Store.
type Persister interface {
	SaveSnapshot(ctx context.Context, slot model.Slot, s *model.Snapshot) error
	LoadSnapshots(ctx context.Context) ([]model.SnapshotSet, error)
}

// Rotation reports which slots a PutLive changed.
type Rotation struct {
	Category model.Category
	Changed  []model.Slot
}

// Moved reports whether slot was rewritten.
func (r Rotation) Moved(slot model.Slot) bool {
	for _, s := range r.Changed {
		if s == slot {
			return true
		}
	}
	return false
}

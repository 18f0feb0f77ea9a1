package storage

import (
	"context"

	"github.com/mcoot/rafflegrid/internal/model"
)

// Storage is the shared slot table. Every backend evaluates a Filter and
// applies its Mutation atomically per row, so concurrent clients race only
// on the predicate and never on a stale read.
type Storage interface {
	// ListSlots returns every slot ordered by number
	ListSlots(ctx context.Context) ([]model.Slot, error)

	// GetSlot returns a single slot, or model.ErrSlotNotFound
	GetSlot(ctx context.Context, number model.SlotNumber) (*model.Slot, error)

	// UpdateSlots applies the mutation to every row matching the filter and
	// returns the rows it actually modified, with their new values
	UpdateSlots(ctx context.Context, filter Filter, mutation Mutation) ([]model.Slot, error)

	// SeedSlots inserts the given slots that do not exist yet and returns
	// how many were inserted. Existing rows are never overwritten.
	SeedSlots(ctx context.Context, slots []model.Slot) (int, error)

	// Subscribe streams change events for every modified row until ctx is
	// done, at which point the channel is closed
	Subscribe(ctx context.Context) (<-chan model.ChangeEvent, error)

	// Close releases the store's resources
	Close() error
}

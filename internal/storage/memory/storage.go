package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/storage"
	"github.com/mcoot/rafflegrid/internal/storage/feed"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu    sync.RWMutex
	slots map[model.SlotNumber]model.Slot
	feed  *feed.Feed
}

// New creates a new in-memory storage instance
func New(logger *slog.Logger) *Storage {
	return &Storage{
		slots: make(map[model.SlotNumber]model.Slot),
		feed:  feed.New(logger),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) ListSlots(ctx context.Context) ([]model.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := make([]model.Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		slots = append(slots, cloneSlot(slot))
	}
	model.SortSlots(slots)
	return slots, nil
}

func (s *Storage) GetSlot(ctx context.Context, number model.SlotNumber) (*model.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slots[number]
	if !ok {
		return nil, model.ErrSlotNotFound
	}
	slot = cloneSlot(slot)
	return &slot, nil
}

func (s *Storage) UpdateSlots(ctx context.Context, filter storage.Filter, mutation storage.Mutation) ([]model.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		return []model.Slot{}, nil
	}

	s.mu.Lock()
	updated := []model.Slot{}
	for number, slot := range s.slots {
		if !filter.Matches(&slot) {
			continue
		}
		next := mutation.Apply(slot)
		s.slots[number] = next
		updated = append(updated, cloneSlot(next))
	}
	model.SortSlots(updated)
	// Published under the lock so subscribers see writes in commit order
	s.publish(model.ChangeUpdate, updated)
	s.mu.Unlock()

	return updated, nil
}

func (s *Storage) SeedSlots(ctx context.Context, slots []model.Slot) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	inserted := []model.Slot{}
	for _, slot := range slots {
		if _, exists := s.slots[slot.Number]; exists {
			continue
		}
		s.slots[slot.Number] = cloneSlot(slot)
		inserted = append(inserted, cloneSlot(slot))
	}
	s.publish(model.ChangeInsert, inserted)
	s.mu.Unlock()

	return len(inserted), nil
}

func (s *Storage) Subscribe(ctx context.Context) (<-chan model.ChangeEvent, error) {
	return s.feed.Subscribe(ctx), nil
}

// Close ends all subscriptions
func (s *Storage) Close() error {
	s.feed.Close()
	return nil
}

func (s *Storage) publish(op model.ChangeOp, slots []model.Slot) {
	if len(slots) == 0 {
		return
	}
	events := make([]model.ChangeEvent, len(slots))
	for i, slot := range slots {
		events[i] = model.ChangeEvent{Op: op, Slot: slot}
	}
	s.feed.Publish(events...)
}

// cloneSlot copies the hold expiry pointer so callers never share it with the table
func cloneSlot(slot model.Slot) model.Slot {
	if slot.HoldExpiry != nil {
		expiry := *slot.HoldExpiry
		slot.HoldExpiry = &expiry
	}
	return slot
}

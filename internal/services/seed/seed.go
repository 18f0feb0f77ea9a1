// Package seed creates the slot rows of a grid.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/storage"
)

// MinWidth is the narrowest slot number, so a 100-slot grid runs 00..99
const MinWidth = 2

// Numbers returns count zero-padded numbers starting at zero. All numbers
// share one width so that lexical order is numeric order.
func Numbers(count int) []model.SlotNumber {
	if count <= 0 {
		return nil
	}
	width := len(strconv.Itoa(count - 1))
	if width < MinWidth {
		width = MinWidth
	}
	numbers := make([]model.SlotNumber, count)
	for i := range numbers {
		numbers[i] = model.SlotNumber(fmt.Sprintf("%0*d", width, i))
	}
	return numbers
}

// Slots returns count free slots
func Slots(count int, now time.Time) []model.Slot {
	numbers := Numbers(count)
	slots := make([]model.Slot, len(numbers))
	for i, number := range numbers {
		slots[i] = model.Slot{Number: number, State: model.SlotStateFree, UpdatedAt: now}
	}
	return slots
}

// Seed inserts whichever of the grid's slots are missing. Existing slots
// keep their state, so restarting a server never frees a reservation.
func Seed(ctx context.Context, store storage.Storage, count int, now time.Time, logger *slog.Logger) (int, error) {
	if count <= 0 {
		return 0, &model.ValidationError{Field: "slot_count", Message: "must be positive"}
	}
	inserted, err := store.SeedSlots(ctx, Slots(count, now))
	if err != nil {
		return 0, err
	}
	logger.Info("slot grid seeded",
		slog.Int("slots", count),
		slog.Int("inserted", inserted),
	)
	return inserted, nil
}

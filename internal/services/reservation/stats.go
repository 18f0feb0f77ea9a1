package reservation

import "github.com/mcoot/rafflegrid/internal/model"

// Stats summarises how much of the grid is taken
type Stats struct {
	Total    int
	Free     int
	Held     int
	Reserved int
	Paid     int

	// Percentages of Total, 0 when the grid is empty
	FreePercent     float64
	ReservedPercent float64
	PaidPercent     float64
}

// ComputeStats counts slots per state
func ComputeStats(slots []model.Slot) Stats {
	stats := Stats{Total: len(slots)}
	for _, slot := range slots {
		switch slot.State {
		case model.SlotStateFree:
			stats.Free++
		case model.SlotStateHeld:
			stats.Held++
		case model.SlotStateReserved:
			stats.Reserved++
		case model.SlotStatePaid:
			stats.Paid++
		}
	}
	if stats.Total > 0 {
		total := float64(stats.Total)
		stats.FreePercent = float64(stats.Free) / total * 100
		stats.ReservedPercent = float64(stats.Reserved) / total * 100
		stats.PaidPercent = float64(stats.Paid) / total * 100
	}
	return stats
}

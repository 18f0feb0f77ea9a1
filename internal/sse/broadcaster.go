package sse

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mcoot/rafflegrid/internal/api/response"
	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/storage"
)

// Event names sent to clients
const (
	EventConnected = "connected"
	EventSlot      = "slot"
	EventReload    = "reload"
)

// SlotMessage is the data of a slot event
type SlotMessage struct {
	Op   model.ChangeOp `json:"op"`
	Slot response.Slot  `json:"slot"`
}

// ReloadMessage is the data of a reload event
type ReloadMessage struct {
	Reason string `json:"reason"`
}

// Broadcaster turns slot changes and operator actions into SSE events
type Broadcaster struct {
	hub    *Hub
	logger *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hub:    hub,
		logger: logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// Relay forwards every change from the store to connected clients until
// ctx is done or the store ends the stream
func (b *Broadcaster) Relay(ctx context.Context, store storage.Storage) error {
	events, err := store.Subscribe(ctx)
	if err != nil {
		return err
	}
	for evt := range events {
		b.BroadcastSlot(evt)
	}
	return ctx.Err()
}

// BroadcastSlot sends one changed slot to every client
func (b *Broadcaster) BroadcastSlot(evt model.ChangeEvent) {
	data, err := json.Marshal(SlotMessage{Op: evt.Op, Slot: response.SlotFromModel(evt.Slot)})
	if err != nil {
		b.logger.Error("sse failed to encode slot",
			slog.String("number", string(evt.Slot.Number)),
			slog.Any("error", err))
		return
	}
	b.hub.BroadcastEvent(EventSlot, string(data))
}

// BroadcastReload tells every client to reload all slots and reconnect
func (b *Broadcaster) BroadcastReload(reason string) {
	data, err := json.Marshal(ReloadMessage{Reason: reason})
	if err != nil {
		return
	}
	b.hub.BroadcastEvent(EventReload, string(data))
}

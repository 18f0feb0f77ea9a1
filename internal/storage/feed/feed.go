// Package feed fans slot change events out to in-process subscribers. It
// stands in for a database's realtime channel for backends that have none.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcoot/rafflegrid/internal/model"
)

// Buffer size for each subscriber's event channel
const subscriberBufferSize = 256

type subscriber struct {
	events chan model.ChangeEvent
}

// Feed delivers published change events to every live subscriber
type Feed struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	closed      bool
	logger      *slog.Logger
}

// New creates an empty Feed
func New(logger *slog.Logger) *Feed {
	return &Feed{
		subscribers: make(map[*subscriber]struct{}),
		logger:      logger.With(slog.String("component", "change-feed")),
	}
}

// Subscribe registers a subscriber that receives events until ctx is done.
// The returned channel is closed when the subscription ends.
func (f *Feed) Subscribe(ctx context.Context) <-chan model.ChangeEvent {
	sub := &subscriber{events: make(chan model.ChangeEvent, subscriberBufferSize)}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(sub.events)
		return sub.events
	}
	f.subscribers[sub] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.remove(sub)
	}()

	return sub.events
}

// Publish sends events to every subscriber without blocking. A subscriber
// whose buffer is full has its channel closed instead of silently missing
// the event; it must subscribe again and reload.
func (f *Feed) Publish(events ...model.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, evt := range events {
		for sub := range f.subscribers {
			select {
			case sub.events <- evt:
			default:
				f.logger.Warn("subscriber fell behind, closing its subscription",
					slog.String("slot", string(evt.Slot.Number)))
				delete(f.subscribers, sub)
				close(sub.events)
			}
		}
	}
}

// SubscriberCount returns the number of live subscribers
func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

// Close ends every subscription
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for sub := range f.subscribers {
		close(sub.events)
		delete(f.subscribers, sub)
	}
}

func (f *Feed) remove(sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subscribers[sub]; ok {
		delete(f.subscribers, sub)
		close(sub.events)
	}
}

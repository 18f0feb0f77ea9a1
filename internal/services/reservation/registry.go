package reservation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/storage"
)

// SystemIdentity is the identity of the registry's own coordinator, used
// for operator actions and grid-wide stats. It never holds slots.
const SystemIdentity model.Identity = "system"

// DefaultIdleTTL is how long a client coordinator lives without use
const DefaultIdleTTL = 30 * time.Minute

type entry struct {
	coordinator *Coordinator
	cancel      context.CancelFunc
	done        <-chan struct{}
}

// Registry keeps one Coordinator per client identity for a server. Each
// coordinator runs its change subscription until it is evicted.
type Registry struct {
	store   storage.Storage
	opts    Options
	idleTTL time.Duration
	logger  *slog.Logger

	baseCtx context.Context
	stop    context.CancelFunc

	mu      sync.Mutex
	entries map[model.Identity]*entry
	system  *entry
}

// NewRegistry creates a registry. Coordinators it creates share opts.
func NewRegistry(store storage.Storage, opts Options, idleTTL time.Duration) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		store:   store,
		opts:    opts,
		idleTTL: idleTTL,
		logger:  opts.Logger.With(slog.String("component", "reservation-registry")),
		baseCtx: ctx,
		stop:    cancel,
		entries: make(map[model.Identity]*entry),
	}
}

// Get returns the coordinator for an identity, creating and loading it on
// first use
func (r *Registry) Get(ctx context.Context, id model.Identity) (*Coordinator, error) {
	r.mu.Lock()
	if e, ok := r.entries[id]; ok {
		r.mu.Unlock()
		return e.coordinator, nil
	}
	r.mu.Unlock()

	e, err := r.start(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[id]; ok {
		// Lost a race with another request for the same identity
		e.cancel()
		return existing.coordinator, nil
	}
	r.entries[id] = e
	return e.coordinator, nil
}

// System returns the registry's own coordinator
func (r *Registry) System(ctx context.Context) (*Coordinator, error) {
	r.mu.Lock()
	if r.system != nil {
		defer r.mu.Unlock()
		return r.system.coordinator, nil
	}
	r.mu.Unlock()

	e, err := r.start(ctx, SystemIdentity)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.system != nil {
		e.cancel()
		return r.system.coordinator, nil
	}
	r.system = e
	return e.coordinator, nil
}

func (r *Registry) start(ctx context.Context, id model.Identity) (*entry, error) {
	coordinator := New(r.store, id, r.opts)

	runCtx, cancel := context.WithCancel(r.baseCtx)
	done, err := coordinator.Start(runCtx, ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	return &entry{coordinator: coordinator, cancel: cancel, done: done}, nil
}

// Reset frees every taken slot through the system coordinator and makes
// every client coordinator reconnect and reload
func (r *Registry) Reset(ctx context.Context, confirm ConfirmFunc) (*ResetResult, error) {
	system, err := r.System(ctx)
	if err != nil {
		return nil, err
	}
	result, err := system.Reset(ctx, confirm)
	if err != nil {
		return nil, err
	}
	r.ReloadAll()
	return result, nil
}

// MarkPaid marks reserved slots paid through the system coordinator
func (r *Registry) MarkPaid(ctx context.Context, numbers []model.SlotNumber) (*PaidResult, error) {
	system, err := r.System(ctx)
	if err != nil {
		return nil, err
	}
	return system.MarkPaid(ctx, numbers)
}

// ReloadAll asks every client coordinator to reconnect and reload
func (r *Registry) ReloadAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.coordinator.RequestReload()
	}
}

// CheckStore reads the slot table once and returns how many slots it holds
func (r *Registry) CheckStore(ctx context.Context) (int, error) {
	slots, err := r.store.ListSlots(ctx)
	if err != nil {
		return 0, model.Unavailable(err)
	}
	return len(slots), nil
}

// Len returns the number of client coordinators
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// EvictIdle stops coordinators unused for longer than the idle TTL and
// returns how many were evicted
func (r *Registry) EvictIdle(now time.Time) int {
	r.mu.Lock()
	var evicted []*entry
	for id, e := range r.entries {
		if now.Sub(e.coordinator.LastUsed()) > r.idleTTL {
			evicted = append(evicted, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, e := range evicted {
		e.cancel()
	}
	if len(evicted) > 0 {
		r.logger.Debug("evicted idle coordinators", slog.Int("count", len(evicted)))
	}
	return len(evicted)
}

// RunEviction evicts idle coordinators on every tick until ctx is done
func (r *Registry) RunEviction(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle(r.opts.clockNow())
		}
	}
}

// Close stops every coordinator and waits for their loops to exit
func (r *Registry) Close() {
	r.stop()

	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries)+1)
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	if r.system != nil {
		entries = append(entries, r.system)
	}
	r.entries = make(map[model.Identity]*entry)
	r.system = nil
	r.mu.Unlock()

	for _, e := range entries {
		<-e.done
	}
}

func (o Options) clockNow() time.Time {
	if o.Clock == nil {
		return time.Now().UTC()
	}
	return o.Clock.Now()
}

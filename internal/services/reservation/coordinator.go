// Package reservation coordinates one client's view of the slot grid. A
// Coordinator owns the local copy of every slot and the client's selection,
// and is the only path through which that client changes slot state.
package reservation

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/rafflegrid/internal/dependencies/clock"
	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/storage"
)

// DefaultHoldDuration is how long an acquired slot stays held
const DefaultHoldDuration = 5 * time.Minute

// ResetPrompt is shown to the operator before a bulk reset
const ResetPrompt = "This frees EVERY slot, including reserved and paid ones. Continue?"

// ErrSubscriptionClosed reports that the store ended the change stream on
// its own. Run resubscribes rather than returning it.
var ErrSubscriptionClosed = errors.New("change subscription closed by store")

// ToggleOutcome describes what a Toggle did
type ToggleOutcome string

const (
	ToggleAcquired ToggleOutcome = "acquired"
	ToggleReleased ToggleOutcome = "released"
	// ToggleSkipped means a toggle on the same number was already in flight
	ToggleSkipped ToggleOutcome = "skipped"
)

// ConfirmFunc asks the operator to confirm an irreversible action
type ConfirmFunc func(prompt string) bool

// AddressResolver looks up the public network address recorded with a
// confirmation. Failures never block a confirmation.
type AddressResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Confirmation is the receipt of a successful (or partially successful) confirm
type Confirmation struct {
	Numbers      []model.SlotNumber
	BuyerName    string
	BuyerContact string
	Address      string
	ConfirmedAt  time.Time
}

// ResetResult reports the slots a bulk reset freed
type ResetResult struct {
	Released       []model.SlotNumber
	ReloadRequired bool
}

// PaidResult reports which of the requested slots were marked paid
type PaidResult struct {
	Paid    []model.SlotNumber
	Skipped []model.SlotNumber
}

// View is a consistent copy of the coordinator's state
type View struct {
	Identity         model.Identity
	Slots            []model.Slot
	Selection        []model.SlotNumber
	Confirmed        bool
	LastConfirmation *Confirmation
	Stats            Stats
}

// DefaultResubscribeDelay is the pause before resubscribing after the store
// ends a change stream
const DefaultResubscribeDelay = time.Second

// Options configures a Coordinator. Zero values take defaults.
type Options struct {
	Clock            clock.Clock
	Resolver         AddressResolver
	HoldDuration     time.Duration
	ResubscribeDelay time.Duration
	Logger           *slog.Logger
}

// Coordinator mediates every slot transition for one client identity
type Coordinator struct {
	store        storage.Storage
	identity     model.Identity
	clock        clock.Clock
	resolver     AddressResolver
	holdDuration time.Duration
	retryDelay   time.Duration
	logger       *slog.Logger

	mu        sync.Mutex
	slots     map[model.SlotNumber]model.Slot
	selection map[model.SlotNumber]struct{}
	toggling  map[model.SlotNumber]struct{}
	active    int // operations in flight
	pending   []model.ChangeEvent

	// Rows this coordinator wrote, by write sequence, so a load whose read
	// started earlier does not overwrite them
	writeSeq uint64
	written  map[model.SlotNumber]uint64

	confirmed        bool
	lastConfirmation *Confirmation
	lastUsed         time.Time

	reload chan struct{}
}

// New creates a Coordinator for the given identity. The caller owns the
// identity's persistence.
func New(store storage.Storage, identity model.Identity, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.HoldDuration <= 0 {
		opts.HoldDuration = DefaultHoldDuration
	}
	if opts.ResubscribeDelay <= 0 {
		opts.ResubscribeDelay = DefaultResubscribeDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{
		store:        store,
		identity:     identity,
		clock:        opts.Clock,
		resolver:     opts.Resolver,
		holdDuration: opts.HoldDuration,
		retryDelay:   opts.ResubscribeDelay,
		logger: opts.Logger.With(
			slog.String("component", "reservation"),
			slog.String("identity", identity.String()),
		),
		slots:     make(map[model.SlotNumber]model.Slot),
		selection: make(map[model.SlotNumber]struct{}),
		toggling:  make(map[model.SlotNumber]struct{}),
		written:   make(map[model.SlotNumber]uint64),
		lastUsed:  opts.Clock.Now(),
		reload:    make(chan struct{}, 1),
	}
}

// Identity returns the identity this coordinator acts for
func (c *Coordinator) Identity() model.Identity {
	return c.identity
}

// Load fetches every slot, sweeps lapsed holds, and recomputes the selection
// from the authoritative holder of each slot.
func (c *Coordinator) Load(ctx context.Context) error {
	c.begin()
	defer c.end()

	return c.load(ctx)
}

// load replaces the local slots. Numbers with a toggle in flight keep their
// optimistic selection unless listed in settled. Rows this coordinator
// wrote after the read began are kept unless the read returned a newer row.
func (c *Coordinator) load(ctx context.Context, settled ...model.SlotNumber) error {
	c.mu.Lock()
	readSeq := c.writeSeq
	c.mu.Unlock()

	slots, err := c.store.ListSlots(ctx)
	if err != nil {
		return err
	}

	now := c.clock.Now()
	var expired []model.SlotNumber
	for i := range slots {
		if slots[i].IsHoldExpired(now) {
			expired = append(expired, slots[i].Number)
			slots[i] = slots[i].Freed()
		}
	}

	if len(expired) > 0 {
		// Best effort; the next load sweeps whatever this one missed
		if _, err := c.store.UpdateSlots(ctx, storage.ExpiredFilter(expired, now), storage.FreeMutation(now)); err != nil {
			c.logger.Warn("failed to free expired holds",
				slog.Int("count", len(expired)),
				slog.Any("error", err),
			)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fresh := make(map[model.SlotNumber]model.Slot, len(slots))
	selection := make(map[model.SlotNumber]struct{})
	for _, slot := range slots {
		if seq := c.written[slot.Number]; seq > readSeq {
			if local, ok := c.slots[slot.Number]; ok && !slot.UpdatedAt.After(local.UpdatedAt) {
				slot = local
			}
		}
		fresh[slot.Number] = slot
		if slot.IsHeldBy(c.identity) {
			selection[slot.Number] = struct{}{}
		}
	}
	for number := range c.toggling {
		if containsNumber(settled, number) {
			continue
		}
		delete(selection, number)
		if _, ok := c.selection[number]; ok {
			selection[number] = struct{}{}
		}
	}
	c.slots = fresh
	c.selection = selection
	return nil
}

// resync reloads after a failed or lost write. The original error is what
// the caller reports, so a reload failure is only logged.
func (c *Coordinator) resync(ctx context.Context, settled ...model.SlotNumber) {
	if err := c.load(ctx, settled...); err != nil {
		c.logger.Warn("failed to resynchronise slots", slog.Any("error", err))
	}
}

// Toggle acquires the slot when it is not selected and releases it when it
// is. A toggle on a number that already has one in flight is skipped.
func (c *Coordinator) Toggle(ctx context.Context, number model.SlotNumber) (ToggleOutcome, error) {
	c.mu.Lock()
	if _, busy := c.toggling[number]; busy {
		c.mu.Unlock()
		return ToggleSkipped, nil
	}
	c.toggling[number] = struct{}{}
	c.active++
	c.lastUsed = c.clock.Now()

	_, selected := c.selection[number]
	if selected {
		delete(c.selection, number)
	} else {
		c.selection[number] = struct{}{}
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.toggling, number)
		c.mu.Unlock()
		c.end()
	}()

	if selected {
		return ToggleReleased, c.release(ctx, number)
	}
	return ToggleAcquired, c.acquire(ctx, number)
}

func (c *Coordinator) acquire(ctx context.Context, number model.SlotNumber) error {
	current, err := c.store.GetSlot(ctx, number)
	if err != nil {
		c.setSelected(number, false)
		if !errors.Is(err, model.ErrSlotNotFound) {
			c.resync(ctx, number)
		}
		return err
	}

	now := c.clock.Now()
	if current.State.IsTaken() || (current.State == model.SlotStateHeld &&
		current.Holder != c.identity && !current.IsHoldExpired(now)) {
		c.setSelected(number, false)
		c.resync(ctx, number)
		return &model.ConflictError{Number: number, State: current.State}
	}

	// The read above only picks the error to report; the predicate decides
	updated, err := c.store.UpdateSlots(ctx,
		storage.AcquireFilter(number, c.identity, now),
		storage.HoldMutation(c.identity, now.Add(c.holdDuration), now),
	)
	if err != nil {
		c.setSelected(number, false)
		c.resync(ctx, number)
		return err
	}
	if len(updated) == 0 {
		c.setSelected(number, false)
		c.resync(ctx, number)
		return &model.ConflictError{Number: number}
	}

	c.apply(updated)

	// A new selection starts, so the previous confirmation is done with
	c.mu.Lock()
	c.confirmed = false
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) release(ctx context.Context, number model.SlotNumber) error {
	now := c.clock.Now()
	updated, err := c.store.UpdateSlots(ctx,
		storage.HeldByFilter([]model.SlotNumber{number}, c.identity),
		storage.FreeMutation(now),
	)
	if err != nil {
		c.setSelected(number, true)
		c.resync(ctx, number)
		return err
	}
	if len(updated) == 0 {
		c.setSelected(number, true)
		c.resync(ctx, number)
		return &model.ConflictError{Number: number}
	}

	c.apply(updated)
	return nil
}

// Confirm promotes every selected slot still held by this identity to
// reserved in one conditional write. Rows the store accepts stay reserved
// even when others fall through.
func (c *Coordinator) Confirm(ctx context.Context, name, contact string) (*Confirmation, error) {
	name = strings.TrimSpace(name)
	contact = strings.TrimSpace(contact)

	c.mu.Lock()
	selection := c.selectionLocked()
	c.mu.Unlock()

	if len(selection) == 0 {
		return nil, &model.ValidationError{Field: "selection", Message: "select at least one number"}
	}
	if name == "" {
		return nil, &model.ValidationError{Field: "name", Message: "is required"}
	}
	if contact == "" {
		return nil, &model.ValidationError{Field: "contact", Message: "is required"}
	}

	c.begin()
	defer c.end()

	address := c.resolveAddress(ctx)
	now := c.clock.Now()

	updated, err := c.store.UpdateSlots(ctx,
		storage.HeldByFilter(selection, c.identity),
		storage.ReserveMutation(name, contact, address, now),
	)
	if err != nil {
		c.resync(ctx)
		return nil, err
	}

	c.apply(updated)

	confirmation := &Confirmation{
		Numbers:      numbersOf(updated),
		BuyerName:    name,
		BuyerContact: contact,
		Address:      address,
		ConfirmedAt:  now,
	}

	if len(updated) < len(selection) {
		rejected := missingFrom(selection, confirmation.Numbers)

		c.mu.Lock()
		for _, number := range rejected {
			delete(c.selection, number)
		}
		if len(confirmation.Numbers) > 0 {
			c.lastConfirmation = confirmation
		}
		c.mu.Unlock()

		c.resync(ctx)
		return confirmation, &model.PartialConfirmError{
			Confirmed: confirmation.Numbers,
			Rejected:  rejected,
		}
	}

	c.mu.Lock()
	c.selection = make(map[model.SlotNumber]struct{})
	c.confirmed = true
	c.lastConfirmation = confirmation
	c.mu.Unlock()

	c.logger.Info("reservation confirmed",
		slog.Any("numbers", confirmation.Numbers),
		slog.String("address", address),
	)
	return confirmation, nil
}

func (c *Coordinator) resolveAddress(ctx context.Context) string {
	if c.resolver == nil {
		return ""
	}
	address, err := c.resolver.Resolve(ctx)
	if err != nil {
		c.logger.Warn("could not resolve public address", slog.Any("error", err))
		return ""
	}
	return address
}

// Reset frees every slot that is not already free. It only writes when
// confirm approves ResetPrompt. A successful reset always requires every
// client to reload, so the result carries ReloadRequired.
func (c *Coordinator) Reset(ctx context.Context, confirm ConfirmFunc) (*ResetResult, error) {
	if confirm == nil || !confirm(ResetPrompt) {
		return nil, model.ErrResetNotConfirmed
	}

	c.begin()
	defer c.end()

	updated, err := c.store.UpdateSlots(ctx, storage.NotFreeFilter(), storage.FreeMutation(c.clock.Now()))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.confirmed = false
	c.lastConfirmation = nil
	c.mu.Unlock()

	c.logger.Info("all slots reset", slog.Int("released", len(updated)))

	c.RequestReload()
	c.resync(ctx)

	return &ResetResult{Released: numbersOf(updated), ReloadRequired: true}, nil
}

// MarkPaid promotes reserved slots to paid, keeping their buyer data.
// Numbers that are not reserved are reported as skipped.
func (c *Coordinator) MarkPaid(ctx context.Context, numbers []model.SlotNumber) (*PaidResult, error) {
	if len(numbers) == 0 {
		return nil, &model.ValidationError{Field: "numbers", Message: "name at least one number"}
	}

	c.begin()
	defer c.end()

	updated, err := c.store.UpdateSlots(ctx, storage.ReservedFilter(numbers), storage.PaidMutation(c.clock.Now()))
	if err != nil {
		c.resync(ctx)
		return nil, err
	}

	c.apply(updated)

	paid := numbersOf(updated)
	return &PaidResult{Paid: paid, Skipped: missingFrom(numbers, paid)}, nil
}

// Snapshot returns a copy of the current view
func (c *Coordinator) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	slots := make([]model.Slot, 0, len(c.slots))
	for _, slot := range c.slots {
		slots = append(slots, slot)
	}
	model.SortSlots(slots)

	var last *Confirmation
	if c.lastConfirmation != nil {
		copied := *c.lastConfirmation
		copied.Numbers = append([]model.SlotNumber(nil), c.lastConfirmation.Numbers...)
		last = &copied
	}

	return View{
		Identity:         c.identity,
		Slots:            slots,
		Selection:        c.selectionLocked(),
		Confirmed:        c.confirmed,
		LastConfirmation: last,
		Stats:            ComputeStats(slots),
	}
}

// Run drains the store's change stream until ctx is done. Events are merged
// into the local slots once no operation is in flight. A reload request
// reconnects the stream and reloads every slot.
func (c *Coordinator) Run(ctx context.Context) error {
	sub, err := c.subscribe(ctx)
	if err != nil {
		return err
	}
	return c.run(ctx, sub)
}

// Start subscribes, loads with loadCtx, then runs the subscription in the
// background until runCtx is done. Subscribing first means no change made
// during the load is missed. The returned channel closes when the loop exits.
func (c *Coordinator) Start(runCtx, loadCtx context.Context) (<-chan struct{}, error) {
	sub, err := c.subscribe(runCtx)
	if err != nil {
		return nil, err
	}
	if err := c.Load(loadCtx); err != nil {
		sub.cancel()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.run(runCtx, sub); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("change subscription stopped", slog.Any("error", err))
		}
	}()
	return done, nil
}

type subscription struct {
	events <-chan model.ChangeEvent
	cancel context.CancelFunc
}

func (c *Coordinator) subscribe(ctx context.Context) (*subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	events, err := c.store.Subscribe(subCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	return &subscription{events: events, cancel: cancel}, nil
}

// run drains sub until ctx is done. A reload request reconnects at once.
// A stream the store closed (a subscriber that fell behind, a dropped
// connection) is resumed after the resubscribe delay. Both reload, since
// changes made while disconnected were never delivered.
func (c *Coordinator) run(ctx context.Context, sub *subscription) error {
	for {
		reconnect, err := c.drain(ctx, sub.events)
		sub.cancel()
		if !reconnect {
			if !errors.Is(err, ErrSubscriptionClosed) {
				return err
			}
			c.logger.Warn("change subscription closed by store, resubscribing",
				slog.Duration("delay", c.retryDelay))
			if !c.sleep(ctx) {
				return ctx.Err()
			}
		}

		c.logger.Debug("reconnecting change subscription")
		sub, err = c.resubscribe(ctx)
		if err != nil {
			return err
		}
		if err := c.Load(ctx); err != nil {
			c.logger.Warn("reload after reconnect failed", slog.Any("error", err))
		}
	}
}

// resubscribe retries until the store accepts a subscription or ctx ends
func (c *Coordinator) resubscribe(ctx context.Context) (*subscription, error) {
	for {
		sub, err := c.subscribe(ctx)
		if err == nil {
			return sub, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("resubscribe failed", slog.Any("error", err))
		if !c.sleep(ctx) {
			return nil, ctx.Err()
		}
	}
}

// sleep waits out the resubscribe delay and reports false if ctx ended first
func (c *Coordinator) sleep(ctx context.Context) bool {
	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Coordinator) drain(ctx context.Context, events <-chan model.ChangeEvent) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-c.reload:
			return true, nil
		case evt, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				return false, ErrSubscriptionClosed
			}
			c.enqueue(evt)
		}
	}
}

// RequestReload asks Run to reconnect its subscription and reload
func (c *Coordinator) RequestReload() {
	select {
	case c.reload <- struct{}{}:
	default:
	}
}

// LastUsed returns when a client last toggled, confirmed or loaded
func (c *Coordinator) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// enqueue queues a pushed change and merges it right away when idle
func (c *Coordinator) enqueue(evt model.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = append(c.pending, evt)
	if c.active == 0 {
		c.mergePendingLocked()
	}
}

// mergePendingLocked applies queued changes row by row. It never touches
// the selection, which only load recomputes.
func (c *Coordinator) mergePendingLocked() {
	for _, evt := range c.pending {
		local, ok := c.slots[evt.Slot.Number]
		if ok && evt.Slot.UpdatedAt.Before(local.UpdatedAt) {
			continue // Older than what a load or write already gave us
		}
		c.slots[evt.Slot.Number] = evt.Slot
	}
	c.pending = nil
}

func (c *Coordinator) begin() {
	c.mu.Lock()
	c.active++
	c.lastUsed = c.clock.Now()
	c.mu.Unlock()
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.active--
	if c.active == 0 {
		c.mergePendingLocked()
	}
	c.mu.Unlock()
}

// apply writes rows returned by the store into the local slots
func (c *Coordinator) apply(slots []model.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, slot := range slots {
		c.writeSeq++
		c.written[slot.Number] = c.writeSeq
		c.slots[slot.Number] = slot
	}
}

func (c *Coordinator) setSelected(number model.SlotNumber, selected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if selected {
		c.selection[number] = struct{}{}
	} else {
		delete(c.selection, number)
	}
}

func (c *Coordinator) selectionLocked() []model.SlotNumber {
	numbers := make([]model.SlotNumber, 0, len(c.selection))
	for number := range c.selection {
		numbers = append(numbers, number)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	return numbers
}

func numbersOf(slots []model.Slot) []model.SlotNumber {
	numbers := make([]model.SlotNumber, len(slots))
	for i, slot := range slots {
		numbers[i] = slot.Number
	}
	return numbers
}

func containsNumber(numbers []model.SlotNumber, number model.SlotNumber) bool {
	for _, n := range numbers {
		if n == number {
			return true
		}
	}
	return false
}

// missingFrom returns the numbers in requested that are not in got
func missingFrom(requested, got []model.SlotNumber) []model.SlotNumber {
	seen := make(map[model.SlotNumber]struct{}, len(got))
	for _, number := range got {
		seen[number] = struct{}{}
	}
	missing := []model.SlotNumber{}
	for _, number := range requested {
		if _, ok := seen[number]; !ok {
			missing = append(missing, number)
		}
	}
	return missing
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/storage"
)

// Buffer size for each subscriber's event channel
const subscriberBufferSize = 256

// ErrTooMuchContention is returned when a conditional update keeps losing
// its optimistic transaction to concurrent writers
var ErrTooMuchContention = errors.New("redis: conditional update retries exhausted")

// Storage is a Redis-backed implementation of the storage interface.
// Conditional updates run as WATCH/MULTI transactions and publish their
// change events inside the same MULTI, so subscribers only ever see
// committed rows.
type Storage struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a new Redis storage instance
func New(cfg Config, logger *slog.Logger) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, model.Unavailable(err)
	}

	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, logger *slog.Logger) *Storage {
	defaults := DefaultConfig()
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaults.KeyPrefix
	}
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = defaults.MaxTxRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "redis-storage")),
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) ListSlots(ctx context.Context) ([]model.Slot, error) {
	keys, err := s.client.SMembers(ctx, s.slotIndexKey()).Result()
	if err != nil {
		return nil, model.Unavailable(err)
	}
	if len(keys) == 0 {
		return []model.Slot{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, model.Unavailable(err)
	}

	slots := decodeSlots(values, s.logger)
	model.SortSlots(slots)
	return slots, nil
}

func (s *Storage) GetSlot(ctx context.Context, number model.SlotNumber) (*model.Slot, error) {
	data, err := s.client.Get(ctx, s.slotKey(number)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSlotNotFound
		}
		return nil, model.Unavailable(err)
	}

	var record slotRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	slot := record.toSlot()
	return &slot, nil
}

func (s *Storage) UpdateSlots(ctx context.Context, filter storage.Filter, mutation storage.Mutation) ([]model.Slot, error) {
	if filter.IsEmpty() {
		return []model.Slot{}, nil
	}

	keys, err := s.candidateKeys(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []model.Slot{}, nil
	}

	var updated []model.Slot
	txf := func(tx *redis.Tx) error {
		updated = nil

		values, err := tx.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}

		for _, slot := range decodeSlots(values, s.logger) {
			if filter.Matches(&slot) {
				updated = append(updated, mutation.Apply(slot))
			}
		}
		if len(updated) == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, slot := range updated {
				data, err := json.Marshal(recordFromSlot(slot))
				if err != nil {
					return err
				}
				pipe.Set(ctx, s.slotKey(slot.Number), data, 0)
			}
			return s.queueChanges(ctx, pipe, model.ChangeUpdate, updated)
		})
		return err
	}

	for attempt := 0; attempt < s.cfg.MaxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, keys...)
		if err == nil {
			if updated == nil {
				updated = []model.Slot{}
			}
			model.SortSlots(updated)
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// A watched slot changed, re-evaluate the filter against fresh rows
			continue
		}
		return nil, model.Unavailable(err)
	}

	return nil, model.Unavailable(ErrTooMuchContention)
}

func (s *Storage) SeedSlots(ctx context.Context, slots []model.Slot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	// SETNX never overwrites an existing slot, the index SADD is idempotent
	pipe := s.client.TxPipeline()
	results := make([]*redis.BoolCmd, len(slots))
	for i, slot := range slots {
		data, err := json.Marshal(recordFromSlot(slot))
		if err != nil {
			return 0, err
		}
		key := s.slotKey(slot.Number)
		results[i] = pipe.SetNX(ctx, key, data, 0)
		pipe.SAdd(ctx, s.slotIndexKey(), key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, model.Unavailable(err)
	}

	var inserted []model.Slot
	for i, result := range results {
		if result.Val() {
			inserted = append(inserted, slots[i])
		}
	}
	if len(inserted) > 0 {
		publish := s.client.Pipeline()
		if err := s.queueChanges(ctx, publish, model.ChangeInsert, inserted); err != nil {
			return len(inserted), err
		}
		if _, err := publish.Exec(ctx); err != nil {
			s.logger.Warn("failed to publish seeded slots", slog.Any("error", err))
		}
	}
	return len(inserted), nil
}

// Subscribe listens on the change channel. It waits for Redis to confirm
// the subscription so no event published after it returns is missed.
func (s *Storage) Subscribe(ctx context.Context) (<-chan model.ChangeEvent, error) {
	pubsub := s.client.Subscribe(ctx, s.changesChannel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, model.Unavailable(err)
	}

	events := make(chan model.ChangeEvent, subscriberBufferSize)
	messages := pubsub.Channel()

	go func() {
		defer close(events)
		defer func() { _ = pubsub.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change changeMessage
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					s.logger.Warn("skipping malformed change message", slog.Any("error", err))
					continue
				}
				select {
				case events <- model.ChangeEvent{Op: model.ChangeOp(change.Op), Slot: change.Slot.toSlot()}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// candidateKeys returns the slot keys a filter can touch
func (s *Storage) candidateKeys(ctx context.Context, filter storage.Filter) ([]string, error) {
	if filter.Numbers != nil {
		keys := make([]string, len(filter.Numbers))
		for i, number := range filter.Numbers {
			keys[i] = s.slotKey(number)
		}
		return keys, nil
	}

	keys, err := s.client.SMembers(ctx, s.slotIndexKey()).Result()
	if err != nil {
		return nil, model.Unavailable(err)
	}
	return keys, nil
}

// queueChanges adds one PUBLISH per slot to the pipeline
func (s *Storage) queueChanges(ctx context.Context, pipe redis.Pipeliner, op model.ChangeOp, slots []model.Slot) error {
	for _, slot := range slots {
		payload, err := json.Marshal(changeMessage{Op: string(op), Slot: recordFromSlot(slot)})
		if err != nil {
			return fmt.Errorf("encode change event: %w", err)
		}
		pipe.Publish(ctx, s.changesChannel(), payload)
	}
	return nil
}

// decodeSlots converts MGET values into slots, skipping missing keys
func decodeSlots(values []interface{}, logger *slog.Logger) []model.Slot {
	slots := make([]model.Slot, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue // Slot key named in a filter but never seeded
		}
		raw, ok := val.(string)
		if !ok {
			continue
		}
		var record slotRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			logger.Warn("skipping malformed slot record", slog.Any("error", err))
			continue
		}
		slots = append(slots, record.toSlot())
	}
	return slots
}

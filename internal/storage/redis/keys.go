package redis

import (
	"fmt"

	"github.com/mcoot/rafflegrid/internal/model"
)

// Key generation functions, all namespaced by the configured prefix

// slotKey returns the Redis key for a Slot
func (s *Storage) slotKey(number model.SlotNumber) string {
	return fmt.Sprintf("%s:slot:%s", s.cfg.KeyPrefix, number)
}

// slotIndexKey returns the Redis key for the SET of all slot keys
func (s *Storage) slotIndexKey() string {
	return fmt.Sprintf("%s:idx:slots", s.cfg.KeyPrefix)
}

// changesChannel returns the pub/sub channel carrying slot change events
func (s *Storage) changesChannel() string {
	return fmt.Sprintf("%s:slots:changes", s.cfg.KeyPrefix)
}

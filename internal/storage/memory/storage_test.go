package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/storage"
	"github.com/mcoot/rafflegrid/internal/storage/storagetest"
	"github.com/mcoot/rafflegrid/internal/testutil"
)

func TestStorageSuite(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func(t *testing.T) storage.Storage {
			return New(testutil.NopLogger())
		},
	})
}

func TestReturnedSlotsDoNotAliasTable(t *testing.T) {
	s := New(testutil.NopLogger())
	ctx := t.Context()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.SeedSlots(ctx, []model.Slot{{Number: "01", State: model.SlotStateFree}})
	require.NoError(t, err)

	updated, err := s.UpdateSlots(ctx, storage.AcquireFilter("01", "alice", now), storage.HoldMutation("alice", now.Add(5*time.Minute), now))
	require.NoError(t, err)
	require.Len(t, updated, 1)

	// Mutating the returned expiry must not move the stored hold
	*updated[0].HoldExpiry = now.Add(-time.Hour)

	slot, err := s.GetSlot(ctx, "01")
	require.NoError(t, err)
	assert.True(t, now.Add(5*time.Minute).Equal(*slot.HoldExpiry))
}

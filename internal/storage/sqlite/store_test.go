package sqlite

import (
	"context"
	"path/filepath"
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

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "slots.db"), testutil.NopLogger())
	require.NoError(t, err)
	return store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func(t *testing.T) storage.Storage {
			return openTempStore(t)
		},
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ", testutil.NopLogger())
	assert.Error(t, err)
}

func TestReopenKeepsSlotsAndSkipsAppliedMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.db")
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	store, err := Open(path, testutil.NopLogger())
	require.NoError(t, err)
	_, err = store.SeedSlots(ctx, []model.Slot{{Number: "01", State: model.SlotStateFree}})
	require.NoError(t, err)
	_, err = store.UpdateSlots(ctx, storage.AcquireFilter("01", "alice", now), storage.HoldMutation("alice", now.Add(time.Minute), now))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path, testutil.NopLogger())
	require.NoError(t, err)
	defer reopened.Close()

	slot, err := reopened.GetSlot(ctx, "01")
	require.NoError(t, err)
	assert.Equal(t, model.SlotStateHeld, slot.State)
	assert.Equal(t, model.Identity("alice"), slot.Holder)
	require.NotNil(t, slot.HoldExpiry)
	assert.True(t, now.Add(time.Minute).Equal(*slot.HoldExpiry))
}

func TestWhereClauseMirrorsFilter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	where, args := whereClause(storage.HeldByFilter([]model.SlotNumber{"01", "02"}, "alice"))
	assert.Equal(t, "number IN (?, ?) AND state IN (?) AND holder = ?", where)
	assert.Equal(t, []any{"01", "02", "held", "alice"}, args)

	where, args = whereClause(storage.NotFreeFilter())
	assert.Equal(t, "state <> ?", where)
	assert.Equal(t, []any{"free"}, args)

	where, _ = whereClause(storage.AcquireFilter("01", "bob", now))
	assert.Contains(t, where, "state = 'free'")
}

func TestUpdateWithNoWhereTouchesEveryRow(t *testing.T) {
	store := openTempStore(t)
	defer store.Close()
	ctx := context.Background()

	_, err := store.SeedSlots(ctx, []model.Slot{
		{Number: "01", State: model.SlotStateFree},
		{Number: "02", State: model.SlotStateFree},
	})
	require.NoError(t, err)

	updated, err := store.UpdateSlots(ctx, storage.Filter{}, storage.FreeMutation(time.Now()))
	require.NoError(t, err)
	assert.Len(t, updated, 2)
}

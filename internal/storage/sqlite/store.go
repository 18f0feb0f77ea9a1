// Package sqlite provides a SQLite-backed slot storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/mcoot/rafflegrid/internal/model"
	"github.com/mcoot/rafflegrid/internal/storage"
	"github.com/mcoot/rafflegrid/internal/storage/feed"
	"github.com/mcoot/rafflegrid/internal/storage/sqlite/migrations"
)

const slotColumns = "number, state, holder, hold_expiry, buyer_name, buyer_contact, reserved_from, updated_at"

// Store persists the slot table in a SQLite file. Conditional updates are
// single UPDATE ... RETURNING statements, so the predicate and the write
// are one atomic step.
type Store struct {
	sqlDB *sql.DB
	feed  *feed.Feed

	// writeMu keeps change events in commit order
	writeMu sync.Mutex
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite slot store and applies embedded migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; SQLite serialises them anyway
	sqlDB.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, model.Unavailable(fmt.Errorf("ping sqlite db: %w", err))
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, feed: feed.New(logger)}, nil
}

// Close ends all subscriptions and closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	s.feed.Close()
	return s.sqlDB.Close()
}

// Ensure Store implements the interface
var _ storage.Storage = (*Store)(nil)

// ListSlots returns every slot ordered by number.
func (s *Store) ListSlots(ctx context.Context) ([]model.Slot, error) {
	rows, err := s.sqlDB.QueryContext(ctx, "SELECT "+slotColumns+" FROM slots ORDER BY number")
	if err != nil {
		return nil, wrapErr("list slots", err)
	}
	return scanSlots(rows)
}

// GetSlot returns one slot by number.
func (s *Store) GetSlot(ctx context.Context, number model.SlotNumber) (*model.Slot, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+slotColumns+" FROM slots WHERE number = ?", string(number))
	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrSlotNotFound
		}
		return nil, wrapErr("get slot", err)
	}
	return &slot, nil
}

// UpdateSlots applies the mutation to every matching row in one statement.
func (s *Store) UpdateSlots(ctx context.Context, filter storage.Filter, mutation storage.Mutation) ([]model.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		return []model.Slot{}, nil
	}

	set, setArgs := setClause(mutation)
	where, whereArgs := whereClause(filter)
	query := "UPDATE slots SET " + set
	if where != "" {
		query += " WHERE " + where
	}
	query += " RETURNING " + slotColumns

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rows, err := s.sqlDB.QueryContext(ctx, query, append(setArgs, whereArgs...)...)
	if err != nil {
		return nil, wrapErr("update slots", err)
	}
	updated, err := scanSlots(rows)
	if err != nil {
		return nil, err
	}
	model.SortSlots(updated)

	s.publish(model.ChangeUpdate, updated)
	return updated, nil
}

// SeedSlots inserts the slots that do not exist yet.
func (s *Store) SeedSlots(ctx context.Context, slots []model.Slot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapErr("begin seed", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO slots (`+slotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, wrapErr("prepare seed", err)
	}
	defer stmt.Close()

	var inserted []model.Slot
	for _, slot := range slots {
		result, err := stmt.ExecContext(ctx,
			string(slot.Number),
			string(slot.State),
			string(slot.Holder),
			nullableMillis(slot.HoldExpiry),
			slot.BuyerName,
			slot.BuyerContact,
			slot.ReservedFrom,
			toMillis(slot.UpdatedAt),
		)
		if err != nil {
			return 0, wrapErr("seed slot", err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted = append(inserted, slot)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, wrapErr("commit seed", err)
	}

	s.publish(model.ChangeInsert, inserted)
	return len(inserted), nil
}

// Subscribe streams change events written through this store. SQLite has no
// cross-process notification, so writers in other processes are not seen.
func (s *Store) Subscribe(ctx context.Context) (<-chan model.ChangeEvent, error) {
	return s.feed.Subscribe(ctx), nil
}

func (s *Store) publish(op model.ChangeOp, slots []model.Slot) {
	if len(slots) == 0 {
		return
	}
	events := make([]model.ChangeEvent, len(slots))
	for i, slot := range slots {
		events[i] = model.ChangeEvent{Op: op, Slot: slot}
	}
	s.feed.Publish(events...)
}

func setClause(m storage.Mutation) (string, []any) {
	cols := []string{"state = ?", "holder = ?", "hold_expiry = ?"}
	args := []any{string(m.State), string(m.Holder), nullableMillis(m.HoldExpiry)}
	if !m.KeepBuyer {
		cols = append(cols, "buyer_name = ?", "buyer_contact = ?", "reserved_from = ?")
		args = append(args, m.BuyerName, m.BuyerContact, m.ReservedFrom)
	}
	cols = append(cols, "updated_at = ?")
	args = append(args, toMillis(m.UpdatedAt))
	return strings.Join(cols, ", "), args
}

// whereClause renders a filter as SQL. It mirrors storage.Filter.Matches.
func whereClause(f storage.Filter) (string, []any) {
	var conds []string
	var args []any

	if f.Numbers != nil {
		conds = append(conds, "number IN ("+placeholders(len(f.Numbers))+")")
		for _, n := range f.Numbers {
			args = append(args, string(n))
		}
	}
	if len(f.States) > 0 {
		conds = append(conds, "state IN ("+placeholders(len(f.States))+")")
		for _, st := range f.States {
			args = append(args, string(st))
		}
	}
	if f.ExcludeState != "" {
		conds = append(conds, "state <> ?")
		args = append(args, string(f.ExcludeState))
	}
	if f.Holder != "" {
		conds = append(conds, "holder = ?")
		args = append(args, string(f.Holder))
	}
	if !f.ExpiredAt.IsZero() {
		conds = append(conds, "(state = 'held' AND hold_expiry IS NOT NULL AND hold_expiry <= ?)")
		args = append(args, toMillis(f.ExpiredAt))
	}
	if f.AcquirableBy != "" {
		conds = append(conds, "(state = 'free' OR (state = 'held' AND holder = ?) OR (state = 'held' AND hold_expiry IS NOT NULL AND hold_expiry <= ?))")
		args = append(args, string(f.AcquirableBy), toMillis(f.AcquirableAt))
	}
	return strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSlot(row scanner) (model.Slot, error) {
	var (
		number, state, holder string
		holdExpiry            sql.NullInt64
		slot                  model.Slot
		updatedAt             int64
	)
	if err := row.Scan(&number, &state, &holder, &holdExpiry, &slot.BuyerName, &slot.BuyerContact, &slot.ReservedFrom, &updatedAt); err != nil {
		return model.Slot{}, err
	}
	slot.Number = model.SlotNumber(number)
	slot.State = model.SlotState(state)
	slot.Holder = model.Identity(holder)
	if holdExpiry.Valid {
		expiry := fromMillis(holdExpiry.Int64)
		slot.HoldExpiry = &expiry
	}
	slot.UpdatedAt = fromMillis(updatedAt)
	return slot, nil
}

func scanSlots(rows *sql.Rows) ([]model.Slot, error) {
	defer rows.Close()

	slots := []model.Slot{}
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate slots", err)
	}
	return slots, nil
}

// wrapErr marks lock contention and I/O failures as the store being unavailable
func wrapErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED, sqlite3lib.SQLITE_IOERR, sqlite3lib.SQLITE_CANTOPEN:
			return model.Unavailable(fmt.Errorf("%s: %w", op, err))
		}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return model.Unavailable(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

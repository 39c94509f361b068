// Package store is the durable backing for conversation history and reminder
// records. It is the only shared mutable state in a commlink process.
//
// Two implementations are provided: MemoryStore for tests and ephemeral
// sessions, and SQLStore over SQLite (modernc "sqlite" or cgo "sqlite3").
package store

import (
	"context"
	"fmt"
	"time"

	"commlink/internal/types"
)

// Store is the narrow persistence interface the rest of commlink depends on.
//
// Every failure is wrapped so that errors.Is(err, types.ErrStore) holds.
type Store interface {
	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// AppendUtterance persists u and assigns its Seq (and ID/CreatedAt when
	// unset). Seq is strictly increasing in write order.
	AppendUtterance(ctx context.Context, u types.Utterance) (types.Utterance, error)

	// ListUtterances returns the last limit utterances ordered by Seq.
	// limit <= 0 returns the full history.
	ListUtterances(ctx context.Context, limit int) ([]types.Utterance, error)

	// Subscribe delivers the full ordered history immediately and again after
	// every change. Slow readers only see the latest snapshot. The channel is
	// closed when ctx is done or the store is closed.
	Subscribe(ctx context.Context) (<-chan []types.Utterance, error)

	InsertReminder(ctx context.Context, r types.ReminderRecord) error

	// DueReminders returns up to limit records with DueAt <= now, oldest first.
	DueReminders(ctx context.Context, now time.Time, limit int) ([]types.ReminderRecord, error)

	// ListReminders returns every pending record ordered by DueAt.
	ListReminders(ctx context.Context) ([]types.ReminderRecord, error)

	// DeleteReminder removes a record. Deleting a missing id is not an error.
	DeleteReminder(ctx context.Context, id string) error

	Close() error
}

// Open returns the Store selected by driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "memory", "":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3":
		return NewSQLStore(driver, path)
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", types.ErrStore, driver)
	}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", types.ErrStore, op, err)
}

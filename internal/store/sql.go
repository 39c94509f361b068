package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"commlink/internal/logging"
	"commlink/internal/types"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLStore persists history and reminders in SQLite.
//
// driver "sqlite" is the pure-Go modernc driver; "sqlite3" is the cgo driver
// and only works in cgo builds. path ":memory:" gives an ephemeral database.
type SQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	driver string
	dbPath string
	feed   *feed
}

// NewSQLStore opens (creating if needed) the database at path.
func NewSQLStore(driver, path string) (*SQLStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSQLStore")
	defer timer.Stop()

	logging.Store("Initializing SQLStore driver=%s path=%s", driver, path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, storeErr("create directory", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, storeErr("open database", err)
	}
	// One connection: required for ":memory:" and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
		}
	}

	s := &SQLStore{db: db, driver: driver, dbPath: path, feed: newFeed()}
	if err := s.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	logging.StoreDebug("Database schema initialized successfully")
	return s, nil
}

func (s *SQLStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS utterances (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		sender TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		token_index INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		due_at INTEGER NOT NULL,
		message TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(due_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return storeErr("create schema", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func (s *SQLStore) AppendUtterance(ctx context.Context, u types.Utterance) (types.Utterance, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	var tokenIndex sql.NullInt64
	if u.TokenIndex != nil {
		tokenIndex = sql.NullInt64{Int64: int64(*u.TokenIndex), Valid: true}
		u.Text = ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO utterances (id, sender, text, token_index, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, string(u.Sender), u.Text, tokenIndex, u.CreatedAt.UnixMilli())
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to append utterance: %v", err)
		return types.Utterance{}, storeErr("append utterance", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return types.Utterance{}, storeErr("append utterance", err)
	}
	u.Seq = seq
	u.CreatedAt = time.UnixMilli(u.CreatedAt.UnixMilli())
	logging.StoreDebug("Appended utterance seq=%d sender=%s compressed=%v", seq, u.Sender, u.IsCompressed())

	if s.feed.active() {
		snapshot, err := s.listLocked(ctx, 0)
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("Failed to build snapshot for subscribers: %v", err)
		} else {
			s.feed.publish(snapshot)
		}
	}
	return u, nil
}

func (s *SQLStore) listLocked(ctx context.Context, limit int) ([]types.Utterance, error) {
	query := `SELECT seq, id, sender, text, token_index, created_at FROM utterances ORDER BY seq ASC`
	args := []interface{}{}
	if limit > 0 {
		query = `SELECT seq, id, sender, text, token_index, created_at FROM (
			SELECT * FROM utterances ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list utterances", err)
	}
	defer rows.Close()

	out := []types.Utterance{}
	for rows.Next() {
		var (
			u          types.Utterance
			sender     string
			tokenIndex sql.NullInt64
			createdAt  int64
		)
		if err := rows.Scan(&u.Seq, &u.ID, &sender, &u.Text, &tokenIndex, &createdAt); err != nil {
			return nil, storeErr("scan utterance", err)
		}
		u.Sender = types.SenderID(sender)
		if tokenIndex.Valid {
			u.TokenIndex = types.IntPtr(int(tokenIndex.Int64))
		}
		u.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list utterances", err)
	}
	return out, nil
}

func (s *SQLStore) ListUtterances(ctx context.Context, limit int) ([]types.Utterance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(ctx, limit)
}

func (s *SQLStore) Subscribe(ctx context.Context) (<-chan []types.Utterance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	initial, err := s.listLocked(ctx, 0)
	if err != nil {
		return nil, err
	}
	return s.feed.add(ctx, initial), nil
}

func (s *SQLStore) InsertReminder(ctx context.Context, r types.ReminderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, due_at, message, created_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.DueAt, r.Message, time.Now().UnixMilli())
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to insert reminder %s: %v", r.ID, err)
		return storeErr("insert reminder", err)
	}
	logging.StoreDebug("Inserted reminder id=%s due_at=%d", r.ID, r.DueAt)
	return nil
}

func (s *SQLStore) queryReminders(ctx context.Context, query string, args ...interface{}) ([]types.ReminderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query reminders", err)
	}
	defer rows.Close()

	out := []types.ReminderRecord{}
	for rows.Next() {
		var r types.ReminderRecord
		if err := rows.Scan(&r.ID, &r.DueAt, &r.Message); err != nil {
			return nil, storeErr("scan reminder", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("query reminders", err)
	}
	return out, nil
}

func (s *SQLStore) DueReminders(ctx context.Context, now time.Time, limit int) ([]types.ReminderRecord, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	return s.queryReminders(ctx,
		`SELECT id, due_at, message FROM reminders WHERE due_at <= ? ORDER BY due_at ASC, id ASC LIMIT ?`,
		now.UnixMilli(), limit)
}

func (s *SQLStore) ListReminders(ctx context.Context) ([]types.ReminderRecord, error) {
	return s.queryReminders(ctx, `SELECT id, due_at, message FROM reminders ORDER BY due_at ASC, id ASC`)
}

func (s *SQLStore) DeleteReminder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to delete reminder %s: %v", id, err)
		return storeErr("delete reminder", err)
	}
	return nil
}

// Close closes subscriber channels and the database.
func (s *SQLStore) Close() error {
	s.feed.close()
	if err := s.db.Close(); err != nil {
		return storeErr("close", err)
	}
	return nil
}

// String describes the store for logs and /admin.
func (s *SQLStore) String() string { return fmt.Sprintf("sqlite(%s:%s)", s.driver, s.dbPath) }

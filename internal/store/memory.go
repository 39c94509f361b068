package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"commlink/internal/types"

	"github.com/google/uuid"
)

var errClosed = errors.New("store closed")

// MemoryStore keeps history and reminders in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	utterances []types.Utterance
	reminders  map[string]types.ReminderRecord
	seq        int64
	closed     bool
	feed       *feed

	// now is overridable for deterministic CreatedAt values in tests.
	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reminders: make(map[string]types.ReminderRecord),
		feed:      newFeed(),
		now:       time.Now,
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storeErr("ping", errClosed)
	}
	return ctx.Err()
}

func (s *MemoryStore) AppendUtterance(ctx context.Context, u types.Utterance) (types.Utterance, error) {
	if err := ctx.Err(); err != nil {
		return types.Utterance{}, storeErr("append utterance", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return types.Utterance{}, storeErr("append utterance", errClosed)
	}
	s.seq++
	u.Seq = s.seq
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	if u.TokenIndex != nil {
		u.Text = ""
	}
	s.utterances = append(s.utterances, u)
	// Published under the write lock so subscribers never see snapshots out of order.
	if s.feed.active() {
		s.feed.publish(s.snapshotLocked(0))
	}
	s.mu.Unlock()
	return u, nil
}

func (s *MemoryStore) snapshotLocked(limit int) []types.Utterance {
	start := 0
	if limit > 0 && len(s.utterances) > limit {
		start = len(s.utterances) - limit
	}
	out := make([]types.Utterance, len(s.utterances)-start)
	copy(out, s.utterances[start:])
	return out
}

func (s *MemoryStore) ListUtterances(ctx context.Context, limit int) ([]types.Utterance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storeErr("list utterances", errClosed)
	}
	return s.snapshotLocked(limit), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan []types.Utterance, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, storeErr("subscribe", errClosed)
	}
	defer s.mu.RUnlock()
	return s.feed.add(ctx, s.snapshotLocked(0)), nil
}

func (s *MemoryStore) InsertReminder(ctx context.Context, r types.ReminderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storeErr("insert reminder", errClosed)
	}
	if _, exists := s.reminders[r.ID]; exists {
		return storeErr("insert reminder", errors.New("duplicate id "+r.ID))
	}
	s.reminders[r.ID] = r
	return nil
}

func (s *MemoryStore) sortedReminders(keep func(types.ReminderRecord) bool) []types.ReminderRecord {
	out := make([]types.ReminderRecord, 0, len(s.reminders))
	for _, r := range s.reminders {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueAt != out[j].DueAt {
			return out[i].DueAt < out[j].DueAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryStore) DueReminders(ctx context.Context, now time.Time, limit int) ([]types.ReminderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storeErr("due reminders", errClosed)
	}
	due := s.sortedReminders(func(r types.ReminderRecord) bool { return r.Due(now) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryStore) ListReminders(ctx context.Context) ([]types.ReminderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storeErr("list reminders", errClosed)
	}
	return s.sortedReminders(func(types.ReminderRecord) bool { return true }), nil
}

func (s *MemoryStore) DeleteReminder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storeErr("delete reminder", errClosed)
	}
	delete(s.reminders, id)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.feed.close()
	return nil
}

func (s *MemoryStore) String() string { return "memory" }

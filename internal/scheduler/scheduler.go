// Package scheduler delivers persisted one-shot reminders into the
// conversation history.
//
// A record goes Scheduled (inserted) -> Delivered (appended as a reminder-bot
// utterance) -> Purged (deleted). Delivery happens at most once per process:
// the fired set is checked and updated together with the append. The set is
// not persisted, so a restart between delivery and purge redelivers, and two
// processes polling the same store can both deliver.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"commlink/internal/logging"
	"commlink/internal/store"
	"commlink/internal/types"

	"github.com/google/uuid"
)

const (
	DefaultPollInterval = 12 * time.Second
	DefaultBatchSize    = 10

	// ReminderPrefix is prepended to every delivered message.
	ReminderPrefix = "⏰ Reminder: "
)

// Config configures a Scheduler.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	// Now is the clock; nil means time.Now.
	Now func() time.Time
	// OnError receives every failed Tick. Optional.
	OnError func(error)
}

// Scheduler owns the reminder record lifecycle.
type Scheduler struct {
	store    store.Store
	interval time.Duration
	batch    int
	now      func() time.Time
	onError  func(error)

	// fired is guarded by deliverMu, which also serializes Tick.
	deliverMu sync.Mutex
	fired     map[string]struct{}

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// New creates a Scheduler over st.
func New(st store.Store, cfg Config) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{
		store:    st,
		interval: cfg.PollInterval,
		batch:    cfg.BatchSize,
		now:      cfg.Now,
		onError:  cfg.OnError,
		fired:    make(map[string]struct{}),
	}
}

// Schedule persists a reminder due after delay.
func (s *Scheduler) Schedule(ctx context.Context, delay time.Duration, message string) (types.ReminderRecord, error) {
	if delay <= 0 {
		return types.ReminderRecord{}, fmt.Errorf("%w: reminder delay must be positive, got %v", types.ErrValidation, delay)
	}
	if message == "" {
		return types.ReminderRecord{}, fmt.Errorf("%w: reminder message is empty", types.ErrValidation)
	}

	r := types.ReminderRecord{
		ID:      uuid.NewString(),
		DueAt:   s.now().Add(delay).UnixMilli(),
		Message: message,
	}
	if err := s.store.InsertReminder(ctx, r); err != nil {
		return types.ReminderRecord{}, err
	}
	logging.Scheduler("scheduled reminder id=%s due=%s", r.ID, r.DueTime().Format(time.RFC3339))
	return r, nil
}

// Tick delivers up to one batch of due reminders and returns how many were
// delivered. Errors on individual records do not stop the batch; the first
// one is returned.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	due, err := s.store.DueReminders(ctx, s.now(), s.batch)
	if err != nil {
		return 0, fmt.Errorf("query due reminders: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}
	logging.SchedulerDebug("tick: %d due reminder(s)", len(due))

	delivered := 0
	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, r := range due {
		if _, already := s.fired[r.ID]; !already {
			s.fired[r.ID] = struct{}{}
			_, err := s.store.AppendUtterance(ctx, types.Utterance{
				Sender: types.SenderReminder,
				Text:   ReminderPrefix + r.Message,
			})
			if err != nil {
				// Nothing was delivered, so a later tick may try again.
				delete(s.fired, r.ID)
				logging.Get(logging.CategoryScheduler).Error("deliver reminder %s: %v", r.ID, err)
				keep(fmt.Errorf("deliver reminder %s: %w", r.ID, err))
				continue
			}
			delivered++
			logging.Scheduler("delivered reminder id=%s", r.ID)
		} else {
			logging.SchedulerDebug("reminder %s already delivered, retrying purge", r.ID)
		}

		if err := s.store.DeleteReminder(ctx, r.ID); err != nil {
			logging.Get(logging.CategoryScheduler).Warn("purge reminder %s: %v", r.ID, err)
			keep(fmt.Errorf("purge reminder %s: %w", r.ID, err))
		}
	}
	return delivered, firstErr
}

// Fired reports whether id was delivered by this process.
func (s *Scheduler) Fired(id string) bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	_, ok := s.fired[id]
	return ok
}

// Pending lists reminders that have not been purged yet.
func (s *Scheduler) Pending(ctx context.Context) ([]types.ReminderRecord, error) {
	return s.store.ListReminders(ctx)
}

// Start runs the poll loop until Stop is called or ctx is done.
// Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop = stop
	s.done = done
	s.mu.Unlock()

	logging.Scheduler("reminder loop started interval=%v batch=%d", s.interval, s.batch)
	go s.run(ctx, stop, done)
}

// Stop halts the poll loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop := s.stop
	done := s.done
	s.stop = nil
	s.done = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if done != nil {
		<-done
	}
}

// Done is closed when the current loop exits. Nil when not running.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Scheduler) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.Get(logging.CategoryScheduler).Error("tick failed: %v", err)
		if s.onError != nil {
			s.onError(err)
		}
	}
}

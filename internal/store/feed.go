package store

import (
	"context"
	"sync"

	"commlink/internal/types"
)

// feed fans history snapshots out to subscribers. Each subscriber channel
// holds at most one snapshot; a newer one replaces an unread older one.
type feed struct {
	mu     sync.Mutex
	subs   map[int]chan []types.Utterance
	next   int
	closed bool
	done   chan struct{}
}

func newFeed() *feed {
	return &feed{subs: make(map[int]chan []types.Utterance), done: make(chan struct{})}
}

// add registers a subscriber seeded with initial and detaches it when ctx
// ends or the feed closes.
func (f *feed) add(ctx context.Context, initial []types.Utterance) <-chan []types.Utterance {
	ch := make(chan []types.Utterance, 1)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch
	}
	id := f.next
	f.next++
	f.subs[id] = ch
	ch <- initial
	f.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-f.done:
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(c)
		}
	}()
	return ch
}

func (f *feed) active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs) > 0
}

func (f *feed) publish(snapshot []types.Utterance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.done)
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

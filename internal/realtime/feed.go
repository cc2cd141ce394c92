package realtime

import (
	"context"
	"sync"
)

// Listener receives every change published on a feed. It runs on the
// publisher's goroutine and must not block.
type Listener func(Change)

// Publisher is the write side used by repositories.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Feed carries changes from writers to live subscriptions.
type Feed interface {
	Publisher
	Listen(fn Listener) (cancel func())
}

// LocalFeed fans changes out to listeners inside one process.
type LocalFeed struct {
	mu        sync.RWMutex
	next      uint64
	listeners map[uint64]Listener
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{listeners: make(map[uint64]Listener)}
}

func (f *LocalFeed) Publish(_ context.Context, change Change) error {
	f.dispatch(change)
	return nil
}

func (f *LocalFeed) dispatch(change Change) {
	f.mu.RLock()
	snapshot := make([]Listener, 0, len(f.listeners))
	for _, fn := range f.listeners {
		snapshot = append(snapshot, fn)
	}
	f.mu.RUnlock()

	for _, fn := range snapshot {
		fn(change)
	}
}

func (f *LocalFeed) Listen(fn Listener) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.listeners[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners, id)
			f.mu.Unlock()
		})
	}
}

// Len returns the number of registered listeners.
func (f *LocalFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners)
}

package remotestore

import (
	"sync"
	"time"

	"github.com/mcdev12/slapboard/go/internal/storesync"
)

// feed holds at most one pending update; a newer one replaces it
type feed struct {
	store *Store
	stop  func()

	mu     sync.Mutex
	ch     chan storesync.Update
	closed bool
	floor  time.Time // updated_at of the newest document delivered
}

func newFeed(s *Store) *feed {
	return &feed{store: s, ch: make(chan storesync.Update, 1)}
}

// setStop records the consumer stop func; a feed closed in the meantime stops it at once
func (f *feed) setStop(stop func()) {
	f.mu.Lock()
	if !f.closed {
		f.stop = stop
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	stop()
}

func (f *feed) Updates() <-chan storesync.Update {
	return f.ch
}

func (f *feed) offer(u storesync.Update) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.push(u)
}

// offerAt delivers a document stamped with its updated_at. Documents older than
// the last one delivered are dropped; a zero time is always accepted.
func (f *feed) offerAt(u storesync.Update, at time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	if !at.IsZero() {
		if at.Before(f.floor) {
			return false
		}
		f.floor = at
	}
	f.push(u)
	return true
}

// push replaces any pending update; callers hold f.mu
func (f *feed) push(u storesync.Update) {
	select {
	case f.ch <- u:
		return
	default:
	}
	select {
	case <-f.ch:
	default:
	}
	f.ch <- u
}

func (f *feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.ch)
	stop := f.stop
	f.mu.Unlock()

	if stop != nil {
		stop()
	}
	if f.store != nil {
		f.store.forget(f)
	}
	return nil
}

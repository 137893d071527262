package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/slapboard/go/internal/storesync"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

// ErrOffline is returned while the store's outage switch is on
var ErrOffline = errors.New("memstore offline")

// Store is an in-process counter document with server-side atomic increments
type Store struct {
	mu       sync.Mutex
	doc      map[string]any
	offline  bool
	watchers map[*feed]struct{}
}

// New creates a store seeded with the given counts
func New(initial tally.Counts) *Store {
	doc := make(map[string]any, len(initial))
	for team, n := range initial {
		doc[string(team)] = n
	}
	return &Store{
		doc:      doc,
		watchers: make(map[*feed]struct{}),
	}
}

// Increment adds one to the team's field under the store lock.
// A missing or non-integer field counts as zero.
func (s *Store) Increment(ctx context.Context, team tally.TeamID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return fmt.Errorf("%w: %w", storesync.ErrStoreUnavailable, ErrOffline)
	}

	n, _ := s.doc[string(team)].(int64)
	s.doc[string(team)] = n + 1
	s.broadcastLocked()
	return nil
}

// Put sets a raw field, including fields no team owns
func (s *Store) Put(field string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc[field] = v
	s.broadcastLocked()
}

// Counts returns the integer fields of the document
func (s *Store) Counts() tally.Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(tally.Counts, len(s.doc))
	for k, v := range s.doc {
		if n, ok := v.(int64); ok {
			out[tally.TeamID(k)] = n
		}
	}
	return out
}

// SetOffline flips the outage switch. Going offline pushes a disconnect to every
// watcher; coming back pushes the current document.
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline == offline {
		return
	}
	s.offline = offline
	if offline {
		for w := range s.watchers {
			w.offer(storesync.Update{Disconnected: true, Err: ErrOffline})
		}
		log.Debug().Msg("memstore offline")
		return
	}
	s.broadcastLocked()
	log.Debug().Msg("memstore online")
}

// Watchers returns the number of open feeds
func (s *Store) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// Watch opens a feed primed with the current document
func (s *Store) Watch(ctx context.Context) (storesync.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return nil, fmt.Errorf("%w: %w", storesync.ErrStoreUnavailable, ErrOffline)
	}

	f := &feed{store: s, ch: make(chan storesync.Update, 1), done: make(chan struct{})}
	s.watchers[f] = struct{}{}

	doc, err := json.Marshal(s.doc)
	if err != nil {
		delete(s.watchers, f)
		return nil, fmt.Errorf("encode document: %w", err)
	}
	f.offer(storesync.Update{Document: doc})

	go func() {
		select {
		case <-ctx.Done():
			f.Close()
		case <-f.done:
		}
	}()
	return f, nil
}

func (s *Store) broadcastLocked() {
	if len(s.watchers) == 0 {
		return
	}
	doc, err := json.Marshal(s.doc)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode memstore document")
		return
	}
	for w := range s.watchers {
		w.offer(storesync.Update{Document: doc})
	}
}

// feed holds at most one pending update; a newer one replaces it
type feed struct {
	store  *Store
	ch     chan storesync.Update
	done   chan struct{}
	closed bool
}

func (f *feed) Updates() <-chan storesync.Update {
	return f.ch
}

// offer must be called with the store lock held
func (f *feed) offer(u storesync.Update) {
	if f.closed {
		return
	}
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
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	delete(f.store.watchers, f)
	close(f.ch)
	close(f.done)
	return nil
}

package storesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/slapboard/go/internal/tally"
)

// Handlers receive subscription callbacks. They run on the subscription's goroutine,
// one at a time, and must not call Unsubscribe.
type Handlers struct {
	// OnChange receives the full current counts after every push
	OnChange func(tally.Counts)
	// OnDisconnect is called once per lost connection
	OnDisconnect func(err error)
}

// Sync keeps a read-only mirror of the shared counts and forwards increments
type Sync struct {
	roster  *tally.Roster
	backend Backend

	mirror    atomic.Pointer[tally.Counts]
	connected atomic.Bool

	mu     sync.Mutex
	active *Subscription
}

// New creates a Sync over a backend
func New(roster *tally.Roster, backend Backend) (*Sync, error) {
	if roster == nil {
		return nil, fmt.Errorf("roster is required")
	}
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	return &Sync{roster: roster, backend: backend}, nil
}

// Roster returns the teams this Sync mirrors
func (s *Sync) Roster() *tally.Roster {
	return s.roster
}

// Increment asks the store to add one to the team's count.
// The mirror is only updated by the next push.
func (s *Sync) Increment(ctx context.Context, team tally.TeamID) error {
	if err := s.roster.Validate(team); err != nil {
		return err
	}
	if err := s.backend.Increment(ctx, team); err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return err
		}
		return fmt.Errorf("%w: increment %s: %w", ErrStoreUnavailable, team, err)
	}
	return nil
}

// Mirror returns a copy of the last counts observed from the store.
// The bool is false before the first push and after the subscription ends.
func (s *Sync) Mirror() (tally.Counts, bool) {
	p := s.mirror.Load()
	if p == nil {
		return nil, false
	}
	return p.Clone(), true
}

// Connected reports whether the feed is currently delivering
func (s *Sync) Connected() bool {
	return s.connected.Load()
}

// Subscribe opens the store feed and starts delivering to h.
// Only one subscription may be active per Sync.
func (s *Sync) Subscribe(ctx context.Context, h Handlers) (*Subscription, error) {
	if h.OnChange == nil {
		return nil, fmt.Errorf("OnChange handler is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, ErrAlreadySubscribed
	}

	ctx, cancel := context.WithCancel(ctx)
	feed, err := s.backend.Watch(ctx)
	if err != nil {
		cancel()
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: watch: %w", ErrStoreUnavailable, err)
	}

	sub := &Subscription{
		sync:     s,
		feed:     feed,
		handlers: h,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.active = sub
	go sub.pump(ctx)

	log.Info().Int("teams", len(s.roster.IDs())).Msg("store subscription started")
	return sub, nil
}

// Subscription is the handle of an active Subscribe call
type Subscription struct {
	sync     *Sync
	feed     Feed
	handlers Handlers
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
	feedOnce sync.Once
}

// Done is closed once the subscription stops delivering
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Unsubscribe detaches the handlers and releases the feed.
// No callback runs after it returns. Safe to call more than once.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.cancel()
		sub.closeFeed()
		<-sub.done

		s := sub.sync
		s.mirror.Store(nil)
		s.connected.Store(false)
		s.mu.Lock()
		if s.active == sub {
			s.active = nil
		}
		s.mu.Unlock()

		log.Info().Msg("store subscription ended")
	})
}

// closeFeed releases the backend feed exactly once
func (sub *Subscription) closeFeed() {
	sub.feedOnce.Do(func() {
		if err := sub.feed.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close store feed")
		}
	})
}

func (sub *Subscription) pump(ctx context.Context) {
	defer close(sub.done)
	// the feed is released on every exit, including a cancelled parent ctx
	defer sub.closeFeed()

	s := sub.sync
	reported := false
	updates := sub.feed.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				if ctx.Err() == nil && !reported {
					sub.disconnected(ErrFeedClosed)
				}
				return
			}
			if ctx.Err() != nil {
				return
			}

			if u.Disconnected {
				if !reported {
					reported = true
					sub.disconnected(u.Err)
				}
				continue
			}

			decoded, err := s.roster.DecodeCounts(u.Document)
			if err != nil {
				log.Warn().Err(err).Int("bytes", len(u.Document)).Msg("dropping undecodable store push")
				continue
			}
			if len(decoded.Dropped) > 0 || len(decoded.Defaulted) > 0 {
				log.Debug().
					Strs("dropped", decoded.Dropped).
					Int("defaulted", len(decoded.Defaulted)).
					Msg("store push normalized")
			}

			counts := decoded.Counts
			s.mirror.Store(&counts)
			s.connected.Store(true)
			reported = false

			sub.handlers.OnChange(counts.Clone())
		}
	}
}

func (sub *Subscription) disconnected(err error) {
	sub.sync.connected.Store(false)
	log.Warn().Err(err).Msg("store feed disconnected")
	if sub.handlers.OnDisconnect != nil {
		sub.handlers.OnDisconnect(err)
	}
}

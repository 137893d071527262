package storesync_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/slapboard/go/internal/storesync"
	"github.com/mcdev12/slapboard/go/internal/storesync/memstore"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

func testRoster(t *testing.T) *tally.Roster {
	t.Helper()
	r, err := tally.NewRoster([]tally.Team{
		{ID: "rcb", Images: []string{"/rcb1.webp"}, Baseline: 1000},
		{ID: "mi", Images: []string{"/mi1.jpg"}, Baseline: 900},
		{ID: "csk", Images: []string{"/csk1.webp"}, Baseline: 800},
	})
	require.NoError(t, err)
	return r
}

type recorder struct {
	mu          sync.Mutex
	changes     []tally.Counts
	disconnects []error
}

func (r *recorder) handlers() storesync.Handlers {
	return storesync.Handlers{
		OnChange: func(c tally.Counts) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.changes = append(r.changes, c)
		},
		OnDisconnect: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.disconnects = append(r.disconnects, err)
		},
	}
}

func (r *recorder) last() tally.Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.changes) == 0 {
		return nil
	}
	return r.changes[len(r.changes)-1]
}

func (r *recorder) changeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func (r *recorder) disconnectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.disconnects)
}

type fixture struct {
	roster *tally.Roster
	store  *memstore.Store
	sync   *storesync.Sync
	rec    *recorder
	sub    *storesync.Subscription
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	roster := testRoster(t)
	store := memstore.New(roster.Baseline())
	s, err := storesync.New(roster, store)
	require.NoError(t, err)

	f := &fixture{roster: roster, store: store, sync: s, rec: &recorder{}}
	f.sub, err = s.Subscribe(context.Background(), f.rec.handlers())
	require.NoError(t, err)
	t.Cleanup(f.sub.Unsubscribe)

	f.eventually(t, func(c tally.Counts) bool { return c != nil })
	return f
}

func (f *fixture) eventually(t *testing.T, cond func(tally.Counts) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return cond(f.rec.last())
	}, 2*time.Second, time.Millisecond)
}

func TestSubscribe_DeliversSnapshotImmediately(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, tally.Counts{"rcb": 1000, "mi": 900, "csk": 800}, f.rec.last())
	mirror, ok := f.sync.Mirror()
	require.True(t, ok)
	assert.Equal(t, f.rec.last(), mirror)
	assert.True(t, f.sync.Connected())
}

func TestIncrement_ConcurrentIncrementsAreNotLost(t *testing.T) {
	f := newFixture(t)

	const workers, perWorker = 20, 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				assert.NoError(t, f.sync.Increment(context.Background(), "rcb"))
			}
		}()
	}
	wg.Wait()

	want := int64(1000 + workers*perWorker)
	assert.Equal(t, want, f.store.Counts()["rcb"])
	f.eventually(t, func(c tally.Counts) bool { return c["rcb"] == want })
	assert.Equal(t, int64(900), f.rec.last()["mi"])
}

func TestIncrement_FailureLeavesMirrorUntouched(t *testing.T) {
	f := newFixture(t)
	before, _ := f.sync.Mirror()

	f.store.SetOffline(true)
	require.Eventually(t, func() bool { return f.rec.disconnectCount() == 1 }, 2*time.Second, time.Millisecond)
	assert.False(t, f.sync.Connected())

	err := f.sync.Increment(context.Background(), "mi")
	assert.ErrorIs(t, err, storesync.ErrStoreUnavailable)
	assert.ErrorIs(t, err, memstore.ErrOffline)

	after, ok := f.sync.Mirror()
	require.True(t, ok, "mirror keeps the last observed value while disconnected")
	assert.Equal(t, before, after)
}

func TestSubscribe_ReconnectDeliversFreshSnapshot(t *testing.T) {
	f := newFixture(t)
	changes := f.rec.changeCount()

	f.store.SetOffline(true)
	require.Eventually(t, func() bool { return f.rec.disconnectCount() == 1 }, 2*time.Second, time.Millisecond)

	f.store.SetOffline(false)
	require.Eventually(t, func() bool { return f.rec.changeCount() > changes }, 2*time.Second, time.Millisecond)
	assert.True(t, f.sync.Connected())
	assert.Equal(t, tally.Counts{"rcb": 1000, "mi": 900, "csk": 800}, f.rec.last())
}

func TestIncrement_UnknownTeamNeverReachesStore(t *testing.T) {
	f := newFixture(t)

	err := f.sync.Increment(context.Background(), "kkr")
	assert.ErrorIs(t, err, tally.ErrUnknownTeam)
	_, exists := f.store.Counts()["kkr"]
	assert.False(t, exists)
}

func TestSubscribe_OnlyOneActive(t *testing.T) {
	f := newFixture(t)

	_, err := f.sync.Subscribe(context.Background(), (&recorder{}).handlers())
	assert.ErrorIs(t, err, storesync.ErrAlreadySubscribed)

	f.sub.Unsubscribe()
	sub, err := f.sync.Subscribe(context.Background(), (&recorder{}).handlers())
	require.NoError(t, err)
	sub.Unsubscribe()
}

func TestUnsubscribe_NoCallbacksAfterwards(t *testing.T) {
	f := newFixture(t)

	f.sub.Unsubscribe()
	f.sub.Unsubscribe()
	changes := f.rec.changeCount()
	disconnects := f.rec.disconnectCount()

	require.NoError(t, f.sync.Increment(context.Background(), "csk"))
	f.store.SetOffline(true)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, changes, f.rec.changeCount())
	assert.Equal(t, disconnects, f.rec.disconnectCount())
	assert.Equal(t, 0, f.store.Watchers(), "feed released")

	_, ok := f.sync.Mirror()
	assert.False(t, ok, "mirror is reset when the subscription ends")
	assert.False(t, f.sync.Connected())
	select {
	case <-f.sub.Done():
	default:
		t.Fatal("subscription still running")
	}
}

func TestSubscribe_UnknownFieldIsDropped(t *testing.T) {
	f := newFixture(t)

	f.store.Put("kkr", int64(5))
	require.NoError(t, f.sync.Increment(context.Background(), "mi"))

	f.eventually(t, func(c tally.Counts) bool { return c["mi"] == 901 })
	_, exists := f.rec.last()["kkr"]
	assert.False(t, exists)
	assert.Len(t, f.rec.last(), 3)
}

func TestSubscribe_MalformedFieldFallsBackToBaseline(t *testing.T) {
	f := newFixture(t)

	f.store.Put("csk", "lots")
	require.NoError(t, f.sync.Increment(context.Background(), "rcb"))

	f.eventually(t, func(c tally.Counts) bool { return c["rcb"] == 1001 })
	assert.Equal(t, int64(800), f.rec.last()["csk"])
}

func TestSubscribe_WatchFailure(t *testing.T) {
	roster := testRoster(t)
	store := memstore.New(roster.Baseline())
	store.SetOffline(true)
	s, err := storesync.New(roster, store)
	require.NoError(t, err)

	_, err = s.Subscribe(context.Background(), (&recorder{}).handlers())
	assert.ErrorIs(t, err, storesync.ErrStoreUnavailable)

	store.SetOffline(false)
	sub, err := s.Subscribe(context.Background(), (&recorder{}).handlers())
	require.NoError(t, err, "a failed subscribe does not hold the slot")
	sub.Unsubscribe()
}

func TestSubscribe_RequiresOnChange(t *testing.T) {
	roster := testRoster(t)
	s, err := storesync.New(roster, memstore.New(roster.Baseline()))
	require.NoError(t, err)

	_, err = s.Subscribe(context.Background(), storesync.Handlers{})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, storesync.ErrAlreadySubscribed))
}

// countingBackend hands out one feed and counts how often it is closed
type countingBackend struct {
	mu     sync.Mutex
	ch     chan storesync.Update
	closes int
}

func (b *countingBackend) Increment(ctx context.Context, team tally.TeamID) error { return nil }

func (b *countingBackend) Watch(ctx context.Context) (storesync.Feed, error) {
	b.ch = make(chan storesync.Update, 1)
	b.ch <- storesync.Update{Document: []byte(`{"rcb":1000,"mi":900,"csk":800}`)}
	return b, nil
}

func (b *countingBackend) Updates() <-chan storesync.Update { return b.ch }

func (b *countingBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	return nil
}

func (b *countingBackend) closeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

func TestSubscribe_CancelledContextReleasesFeed(t *testing.T) {
	backend := &countingBackend{}
	s, err := storesync.New(testRoster(t), backend)
	require.NoError(t, err)

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := s.Subscribe(ctx, rec.handlers())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.changeCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop on cancel")
	}
	assert.Equal(t, 1, backend.closeCount(), "feed released without Unsubscribe")

	sub.Unsubscribe()
	assert.Equal(t, 1, backend.closeCount(), "feed closed once")
}

package remotestore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/slapboard/go/internal/counter"
	"github.com/mcdev12/slapboard/go/internal/counter/counterapi"
	"github.com/mcdev12/slapboard/go/internal/storesync"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

type fakeCounterApp struct {
	mu        sync.Mutex
	counts    tally.Counts
	updatedAt time.Time
	err       error
}

func (a *fakeCounterApp) Increment(ctx context.Context, team tally.TeamID) (tally.Counts, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	if _, ok := a.counts[team]; !ok {
		return nil, tally.ErrUnknownTeam
	}
	a.counts[team]++
	return a.counts.Clone(), nil
}

func (a *fakeCounterApp) GetCounts(ctx context.Context) (tally.Counts, time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, time.Time{}, a.err
	}
	return a.counts.Clone(), a.updatedAt, nil
}

func newTestStore(t *testing.T, app *fakeCounterApp) *Store {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(counter.NewHandler(counter.NewService(app)))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return newStore(DefaultConfig(), counterapi.NewClient(srv.Client(), srv.URL))
}

func TestIncrement(t *testing.T) {
	app := &fakeCounterApp{counts: tally.Counts{"rcb": 1000}}
	s := newTestStore(t, app)

	require.NoError(t, s.Increment(context.Background(), "rcb"))
	counts, _, err := app.GetCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1001), counts["rcb"])

	err = s.Increment(context.Background(), "kkr")
	assert.ErrorIs(t, err, tally.ErrUnknownTeam)

	app.mu.Lock()
	app.err = errors.New("connection refused")
	app.mu.Unlock()
	err = s.Increment(context.Background(), "rcb")
	assert.ErrorIs(t, err, storesync.ErrStoreUnavailable)
}

func TestSeed(t *testing.T) {
	s := newTestStore(t, &fakeCounterApp{counts: tally.Counts{"rcb": 7, "mi": 3}})
	f := newFeed(s)
	defer f.Close()

	require.NoError(t, s.seed(context.Background(), f))
	u := <-f.Updates()
	assert.JSONEq(t, `{"rcb":7,"mi":3}`, string(u.Document))
}

func TestSeed_SkipsOlderStreamDocuments(t *testing.T) {
	seededAt := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, &fakeCounterApp{counts: tally.Counts{"rcb": 7}, updatedAt: seededAt})
	f := newFeed(s)
	defer f.Close()

	require.NoError(t, s.seed(context.Background(), f))
	u := <-f.Updates()
	assert.JSONEq(t, `{"rcb":7}`, string(u.Document))

	// the consumer's first delivery can predate the seed
	assert.False(t, f.offerAt(storesync.Update{Document: []byte(`{"rcb":6}`)}, seededAt.Add(-time.Millisecond)))
	assert.True(t, f.offerAt(storesync.Update{Document: []byte(`{"rcb":7}`)}, seededAt))
	assert.True(t, f.offerAt(storesync.Update{Document: []byte(`{"rcb":8}`)}, seededAt.Add(time.Second)))
	u = <-f.Updates()
	assert.JSONEq(t, `{"rcb":8}`, string(u.Document))

	// unstamped documents still go through
	assert.True(t, f.offerAt(storesync.Update{Document: []byte(`{"rcb":9}`)}, time.Time{}))
	u = <-f.Updates()
	assert.JSONEq(t, `{"rcb":9}`, string(u.Document))
}

func TestWatch_WithoutNATS(t *testing.T) {
	s := newTestStore(t, &fakeCounterApp{counts: tally.Counts{}})
	_, err := s.Watch(context.Background())
	assert.ErrorIs(t, err, storesync.ErrStoreUnavailable)
}

func TestFeed_BroadcastAndClose(t *testing.T) {
	s := newStore(DefaultConfig(), nil)
	f := newFeed(s)
	stopped := false
	f.stop = func() { stopped = true }
	s.feeds[f] = struct{}{}

	s.broadcast(storesync.Update{Document: []byte(`{"rcb":1}`)})
	s.broadcast(storesync.Update{Disconnected: true})
	u := <-f.Updates()
	assert.True(t, u.Disconnected, "latest update wins")

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.True(t, stopped)
	assert.Empty(t, s.feeds)

	f.offer(storesync.Update{Document: []byte(`{}`)})
	_, ok := <-f.Updates()
	assert.False(t, ok)
}

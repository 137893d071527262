package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/slapboard/go/internal/counter"
)

type fakeSource struct {
	notes  chan *pq.Notification
	mu     sync.Mutex
	closed bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{notes: make(chan *pq.Notification, 8)}
}

func (f *fakeSource) NotificationChannel() <-chan *pq.Notification { return f.notes }
func (f *fakeSource) Ping() error                                  { return nil }

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	version int
}

func (f *fakeFetcher) FetchDocument(ctx context.Context, id string) (*counter.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++
	return &counter.Document{
		ID:        id,
		Counts:    json.RawMessage(`{"rcb":1000}`),
		UpdatedAt: time.Unix(int64(f.version), 0),
	}, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	attempts int
	sent     []Snapshot
}

func (p *fakePublisher) Publish(ctx context.Context, snap Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.failures > 0 {
		p.failures--
		return errors.New("nats: timeout")
	}
	p.sent = append(p.sent, snap)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func testConfig() ListenerConfig {
	cfg := DefaultListenerConfig()
	cfg.FallbackInterval = time.Hour
	cfg.PingInterval = time.Hour
	cfg.RetryDelay = time.Millisecond
	cfg.MaxRetries = 3
	return cfg
}

func TestListener_RelaysNotifications(t *testing.T) {
	src := newFakeSource()
	pub := &fakePublisher{}
	l := NewListenerWithSource(src, &fakeFetcher{}, pub, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, time.Millisecond, "initial snapshot")
	assert.True(t, l.Running())

	src.notes <- &pq.Notification{Channel: "slap_counts", Extra: "br"}
	require.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, time.Millisecond)

	src.notes <- &pq.Notification{Channel: "slap_counts", Extra: "other"}
	src.notes <- nil
	require.Eventually(t, func() bool { return pub.count() == 3 }, time.Second, time.Millisecond, "reconnect republishes")

	cancel()
	require.NoError(t, <-done)
	assert.False(t, l.Running())
	assert.True(t, src.closed)

	published, last := l.Stats()
	assert.Equal(t, uint64(3), published)
	assert.False(t, last.IsZero())
	for _, snap := range pub.sent {
		assert.Equal(t, "br", snap.DocumentID)
	}
}

func TestListener_PublishRetries(t *testing.T) {
	pub := &fakePublisher{failures: 2}
	l := NewListenerWithSource(newFakeSource(), &fakeFetcher{}, pub, testConfig())

	require.NoError(t, l.relayCurrent(context.Background()))
	assert.Equal(t, 3, pub.attempts)
	assert.Equal(t, 1, pub.count())
}

func TestListener_PublishGivesUp(t *testing.T) {
	pub := &fakePublisher{failures: 100}
	cfg := testConfig()
	cfg.MaxRetries = 2
	l := NewListenerWithSource(newFakeSource(), &fakeFetcher{}, pub, cfg)

	err := l.relayCurrent(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	published, _ := l.Stats()
	assert.Zero(t, published)
}

func TestJetStreamConfig_KeepsLatestPerDocument(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	sc := cfg.StreamConfig()

	assert.Equal(t, "SLAP_COUNTS", sc.Name)
	assert.Equal(t, []string{"slaps.counts.>"}, sc.Subjects)
	assert.Equal(t, int64(1), sc.MaxMsgsPerSubject)
	assert.Equal(t, "slaps.counts.br", cfg.Subject("br"))
	assert.True(t, isStreamConfigEqual(sc, cfg.StreamConfig()))
}

func TestSnapshot_MsgIDTracksVersion(t *testing.T) {
	a := Snapshot{DocumentID: "br", Counts: json.RawMessage(`{"rcb":1000}`), UpdatedAt: time.Unix(10, 0)}
	b := Snapshot{DocumentID: "br", Counts: json.RawMessage(`{"rcb":1000}`), UpdatedAt: time.Unix(11, 0)}
	assert.Equal(t, a.MsgID(), a.MsgID())
	assert.NotEqual(t, a.MsgID(), b.MsgID())
	assert.True(t, strings.HasPrefix(a.MsgID(), "br-"))
}

func TestSnapshot_MsgIDDiffersWithinOneTick(t *testing.T) {
	at := time.Unix(10, 123000)
	first := Snapshot{DocumentID: "br", Counts: json.RawMessage(`{"rcb":1001,"mi":900}`), UpdatedAt: at}
	second := Snapshot{DocumentID: "br", Counts: json.RawMessage(`{"rcb":1001,"mi":901}`), UpdatedAt: at}
	assert.NotEqual(t, first.MsgID(), second.MsgID())
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(ctx context.Context) error { return p.err }

type stubConn bool

func (c stubConn) IsConnected() bool { return bool(c) }

func TestHealthChecker(t *testing.T) {
	l := NewListenerWithSource(newFakeSource(), &fakeFetcher{}, &fakePublisher{}, testConfig())

	h := NewHealthChecker(l, stubPinger{}, stubConn(true))
	status := h.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Errors, "listener not active")
	assert.True(t, status.DatabaseConnected)

	l.setRunning(true)
	status = h.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Errors)

	h = NewHealthChecker(l, stubPinger{err: errors.New("down")}, stubConn(false))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.NATSConnected)
	assert.Len(t, body.Errors, 2)
}

package remotestore

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/slapboard/go/internal/counter/counterapi"
	"github.com/mcdev12/slapboard/go/internal/storesync"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

// Config holds the counter service and NATS settings
type Config struct {
	CounterURL     string
	NATSURL        string
	StreamName     string
	Subject        string
	MaxReconnects  int
	ReconnectWait  time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig returns settings for a local counterd and relay
func DefaultConfig() Config {
	return Config{
		CounterURL:     "http://localhost:8080",
		NATSURL:        nats.DefaultURL,
		StreamName:     "SLAP_COUNTS",
		Subject:        "slaps.counts.br",
		MaxReconnects:  -1, // Infinite
		ReconnectWait:  2 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

// Store increments through the counter service and watches the relay's JetStream subject
type Store struct {
	cfg Config
	rpc *counterapi.Client
	nc  *nats.Conn
	js  jetstream.JetStream

	mu    sync.Mutex
	feeds map[*feed]struct{}
}

// Dial connects to NATS and prepares the counter service client
func Dial(cfg Config) (*Store, error) {
	s := newStore(cfg, counterapi.NewClient(&http.Client{Timeout: cfg.RequestTimeout}, cfg.CounterURL))

	opts := []nats.Option{
		nats.Name("slapboard-gateway"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
			s.broadcast(storesync.Update{Disconnected: true, Err: err})
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
			go s.reseed()
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	s.nc = nc
	s.js = js
	return s, nil
}

func newStore(cfg Config, rpc *counterapi.Client) *Store {
	return &Store{
		cfg:   cfg,
		rpc:   rpc,
		feeds: make(map[*feed]struct{}),
	}
}

// Increment asks the counter service to add one; the arithmetic happens in Postgres
func (s *Store) Increment(ctx context.Context, team tally.TeamID) error {
	if _, err := s.rpc.Increment(ctx, team); err != nil {
		if connect.CodeOf(err) == connect.CodeInvalidArgument {
			return fmt.Errorf("%w: %w", tally.ErrUnknownTeam, err)
		}
		return fmt.Errorf("%w: %w", storesync.ErrStoreUnavailable, err)
	}
	return nil
}

// Watch seeds the feed with the current document, then follows the relay subject.
// The ordered consumer starts from the last message on the subject.
func (s *Store) Watch(ctx context.Context) (storesync.Feed, error) {
	if s.js == nil {
		return nil, fmt.Errorf("%w: not connected to NATS", storesync.ErrStoreUnavailable)
	}

	f := newFeed(s)
	if err := s.seed(ctx, f); err != nil {
		return nil, err
	}

	cons, err := s.js.OrderedConsumer(ctx, s.cfg.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{s.cfg.Subject},
		DeliverPolicy:  jetstream.DeliverLastPerSubjectPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create ordered consumer: %w", storesync.ErrStoreUnavailable, err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		at := counterapi.ParseUpdatedAt(msg.Headers().Get(counterapi.UpdatedAtHeader))
		if !f.offerAt(storesync.Update{Document: msg.Data()}, at) {
			log.Debug().Time("updated_at", at).Msg("skipping document older than the last delivered")
		}
	}, jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
		log.Warn().Err(err).Str("subject", s.cfg.Subject).Msg("consume error")
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: consume: %w", storesync.ErrStoreUnavailable, err)
	}
	f.setStop(cc.Stop)

	s.mu.Lock()
	s.feeds[f] = struct{}{}
	s.mu.Unlock()

	log.Info().
		Str("stream", s.cfg.StreamName).
		Str("subject", s.cfg.Subject).
		Msg("watching counter document")
	return f, nil
}

// Close drops every feed and the NATS connection
func (s *Store) Close() error {
	s.mu.Lock()
	feeds := make([]*feed, 0, len(s.feeds))
	for f := range s.feeds {
		feeds = append(feeds, f)
	}
	s.mu.Unlock()

	for _, f := range feeds {
		f.Close()
	}
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}

// Conn exposes the NATS connection for health checks
func (s *Store) Conn() *nats.Conn {
	return s.nc
}

func (s *Store) seed(ctx context.Context, f *feed) error {
	msg, at, err := s.rpc.GetCounts(ctx)
	if err != nil {
		return fmt.Errorf("%w: get counts: %w", storesync.ErrStoreUnavailable, err)
	}
	doc, err := counterapi.StructToDocument(msg)
	if err != nil {
		return fmt.Errorf("encode seed document: %w", err)
	}
	f.offerAt(storesync.Update{Document: doc}, at)
	return nil
}

// reseed pushes a fresh document to every feed after a reconnect
func (s *Store) reseed() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()

	s.mu.Lock()
	feeds := make([]*feed, 0, len(s.feeds))
	for f := range s.feeds {
		feeds = append(feeds, f)
	}
	s.mu.Unlock()

	for _, f := range feeds {
		if err := s.seed(ctx, f); err != nil {
			log.Warn().Err(err).Msg("failed to reseed after reconnect")
			return
		}
	}
}

func (s *Store) broadcast(u storesync.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for f := range s.feeds {
		f.offer(u)
	}
}

func (s *Store) forget(f *feed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.feeds, f)
}

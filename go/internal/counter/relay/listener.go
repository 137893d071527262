package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/slapboard/go/internal/counter/db"
)

type ListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	DocumentID       string        // Only notifications for this document are relayed
	FallbackInterval time.Duration // How often to republish in case a notification was missed
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		DatabaseURL:      "",
		NotifyChannel:    db.NotifyChannel,
		DocumentID:       "br",
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
	}
}

// NotificationSource is the subset of *pq.Listener the relay uses
type NotificationSource interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

type Listener struct {
	source    NotificationSource
	fetcher   DocumentFetcher
	publisher Publisher
	cfg       ListenerConfig

	mu            sync.Mutex
	running       bool
	published     uint64
	lastPublished time.Time
}

// NewListener opens a pq.Listener on the notify channel
func NewListener(fetcher DocumentFetcher, publisher Publisher, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Str("document_id", cfg.DocumentID).
		Msg("listening for notifications")

	return NewListenerWithSource(l, fetcher, publisher, cfg), nil
}

// NewListenerWithSource builds a listener over an already-listening source
func NewListenerWithSource(source NotificationSource, fetcher DocumentFetcher, publisher Publisher, cfg ListenerConfig) *Listener {
	return &Listener{
		source:    source,
		fetcher:   fetcher,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Start relays until ctx is done. The current document is published once up front
// so late subscribers always find a snapshot.
func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("listener started")

	l.setRunning(true)
	defer l.setRunning(false)

	if err := l.relayCurrent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to publish initial snapshot")
	}

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	notes := l.source.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.Stop()
		case note, ok := <-notes:
			if !ok {
				return fmt.Errorf("notification channel closed")
			}
			if note == nil {
				// connection was re-established; notifications may have been missed
				log.Warn().Msg("listener reconnected, republishing document")
				if err := l.relayCurrent(ctx); err != nil {
					log.Error().Err(err).Msg("failed to republish after reconnect")
				}
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.C:
			if err := l.relayCurrent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to republish document")
			}
		case <-pingTicker.C:
			if err := l.source.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	return l.source.Close()
}

// Stats returns the number of snapshots published and when the last one went out
func (l *Listener) Stats() (uint64, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.published, l.lastPublished
}

// Running reports whether Start is looping
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Listener) setRunning(v bool) {
	l.mu.Lock()
	l.running = v
	l.mu.Unlock()
}

// handleNotification handles a pg listen notification. Extra is the document id.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	if extra != l.cfg.DocumentID {
		log.Debug().Str("document_id", extra).Msg("ignoring notification for other document")
		return nil
	}
	return l.relayCurrent(ctx)
}

// relayCurrent fetches the document and publishes it
func (l *Listener) relayCurrent(ctx context.Context) error {
	doc, err := l.fetcher.FetchDocument(ctx, l.cfg.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to fetch document: %w", err)
	}

	snap := Snapshot{
		DocumentID: doc.ID,
		Counts:     doc.Counts,
		UpdatedAt:  doc.UpdatedAt,
	}
	if err := l.publishWithRetry(ctx, snap); err != nil {
		return fmt.Errorf("failed to publish document: %w", err)
	}
	return nil
}

// publishWithRetry attempts to publish a snapshot with a linearly growing delay.
func (l *Listener) publishWithRetry(ctx context.Context, snap Snapshot) error {
	var lastErr error

	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := l.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := l.publisher.Publish(ctx, snap); err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("document_id", snap.DocumentID).
				Msg("failed to publish, retrying")
			continue
		}

		l.mu.Lock()
		l.published++
		l.lastPublished = time.Now()
		l.mu.Unlock()

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("document_id", snap.DocumentID).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	// All attempts exhausted
	return fmt.Errorf("publish failed after %d attempts: %w", l.cfg.MaxRetries+1, lastErr)
}

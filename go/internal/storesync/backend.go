package storesync

import (
	"context"
	"errors"

	"github.com/mcdev12/slapboard/go/internal/tally"
)

var (
	// ErrStoreUnavailable is returned when the backing store cannot be reached
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrAlreadySubscribed is returned when a Sync already has an active subscription
	ErrAlreadySubscribed = errors.New("store sync already has an active subscription")
	// ErrFeedClosed is reported to OnDisconnect when the backend ends a feed
	ErrFeedClosed = errors.New("store feed closed")
)

// Update is one push from a backend feed: either a full document or a disconnect marker
type Update struct {
	// Document is the raw JSON document, one integer field per team
	Document []byte
	// Disconnected marks a lost connection. Document is empty when set.
	Disconnected bool
	// Err is the disconnect cause, if known
	Err error
}

// Feed is a live connection to the store's change stream
type Feed interface {
	// Updates delivers pushes in the order the store produced them.
	// A backend may coalesce pending pushes to the latest one.
	Updates() <-chan Update
	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Backend is the external counter store
type Backend interface {
	// Increment atomically adds one to the team's count on the store side
	Increment(ctx context.Context, team tally.TeamID) error
	// Watch opens a feed whose first update is the current document
	Watch(ctx context.Context) (Feed, error)
}

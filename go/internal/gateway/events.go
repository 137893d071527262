package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/slapboard/go/internal/reaction"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

// ServerMessage is the envelope of every message sent to a viewer
type ServerMessage struct {
	ID        string          `json:"id"`        // Message UUID
	Type      MessageType     `json:"type"`      // Message type
	Timestamp time.Time       `json:"timestamp"` // Creation time
	Data      json.RawMessage `json:"data"`      // Type-specific payload
}

// MessageType represents the type of server message
type MessageType string

const (
	MessageTypeWelcome     MessageType = "welcome"
	MessageTypeCounts      MessageType = "counts"
	MessageTypeStoreStatus MessageType = "store_status"
	MessageTypeReaction    MessageType = "reaction"
	MessageTypePlaySound   MessageType = "play_sound"
	MessageTypeError       MessageType = "error"
)

// NewServerMessage wraps a payload in an envelope
func NewServerMessage(t MessageType, payload interface{}) (*ServerMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &ServerMessage{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// StandingEntry is one ranked row
type StandingEntry struct {
	Rank  int          `json:"rank"`
	Team  tally.TeamID `json:"team"`
	Name  string       `json:"name"`
	Count int64        `json:"count"`
}

// CountsPayload carries the mirror and the standings derived from it
type CountsPayload struct {
	Counts    tally.Counts    `json:"counts"`
	Standings []StandingEntry `json:"standings"`
	Leader    tally.TeamID    `json:"leader"`
	Message   string          `json:"message"`
}

// StoreStatusPayload reports whether the store feed is connected
type StoreStatusPayload struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// ReactionPayload carries one state machine transition for the viewer's own board
type ReactionPayload struct {
	Event    reaction.EventType `json:"event,omitempty"`
	Team     tally.TeamID       `json:"team"`
	State    reaction.State     `json:"state"`
	Impact   bool               `json:"impact"`
	Visible  bool               `json:"visible"`
	ImageURL string             `json:"image_url,omitempty"`
}

// PlaySoundPayload asks the viewer to play one sound once
type PlaySoundPayload struct {
	Team     tally.TeamID `json:"team"`
	SoundURL string       `json:"sound_url"`
}

// ErrorPayload reports a rejected client message
type ErrorPayload struct {
	Message string `json:"message"`
}

// WelcomePayload is sent once per connection
type WelcomePayload struct {
	ConnectionID  string            `json:"connection_id"`
	Teams         []TeamInfo        `json:"teams"`
	Board         []ReactionPayload `json:"board"`
	Counts        *CountsPayload    `json:"counts,omitempty"`
	Connected     bool              `json:"connected"`
	SubmissionURL string            `json:"submission_url"`
}

// TeamInfo is the public description of a team
type TeamInfo struct {
	ID   tally.TeamID `json:"id"`
	Name string       `json:"name"`
}

// ClientMessage is what viewers send
type ClientMessage struct {
	Type ClientMessageType `json:"type"`
	Team tally.TeamID      `json:"team"`
}

// ClientMessageType represents the type of client message
type ClientMessageType string

const (
	ClientMessageClick ClientMessageType = "click"
)

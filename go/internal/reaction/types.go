package reaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/slapboard/go/internal/tally"
)

// ErrPlaybackFailed wraps any error returned by a SoundPlayer
var ErrPlaybackFailed = errors.New("sound playback failed")

// State is the interaction state of a single team
type State int

const (
	Idle State = iota
	Reacting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Reacting:
		return "reacting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state as its name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = Idle
	case "reacting":
		*s = Reacting
	default:
		return fmt.Errorf("unknown state %q", b)
	}
	return nil
}

// Config holds reaction timings
type Config struct {
	ImpactDuration   time.Duration `yaml:"impact_duration"`
	RevealDuration   time.Duration `yaml:"reveal_duration"`
	SoundChance      float64       `yaml:"sound_chance"`
	IncrementTimeout time.Duration `yaml:"increment_timeout"`
	PlaybackTimeout  time.Duration `yaml:"playback_timeout"`
}

// DefaultConfig returns the stock 600ms pulse, 1.5s reveal, coin-flip sound config
func DefaultConfig() Config {
	return Config{
		ImpactDuration:   600 * time.Millisecond,
		RevealDuration:   1500 * time.Millisecond,
		SoundChance:      0.5,
		IncrementTimeout: 5 * time.Second,
		PlaybackTimeout:  10 * time.Second,
	}
}

// Validate checks that durations are positive and the chance is a probability
func (c Config) Validate() error {
	if c.ImpactDuration <= 0 {
		return fmt.Errorf("impact_duration must be positive, got %s", c.ImpactDuration)
	}
	if c.RevealDuration <= 0 {
		return fmt.Errorf("reveal_duration must be positive, got %s", c.RevealDuration)
	}
	if c.IncrementTimeout <= 0 {
		return fmt.Errorf("increment_timeout must be positive, got %s", c.IncrementTimeout)
	}
	if c.PlaybackTimeout <= 0 {
		return fmt.Errorf("playback_timeout must be positive, got %s", c.PlaybackTimeout)
	}
	if c.SoundChance < 0 || c.SoundChance > 1 {
		return fmt.Errorf("sound_chance must be within [0,1], got %v", c.SoundChance)
	}
	return nil
}

// Incrementer is what a machine needs from the counter store
type Incrementer interface {
	Increment(ctx context.Context, team tally.TeamID) error
}

// SoundPlayer plays one sound reference once
type SoundPlayer interface {
	Play(ctx context.Context, team tally.TeamID, sound string) error
}

// Picker is the source of randomness for draws
type Picker interface {
	// IntN returns a uniform int in [0, n)
	IntN(n int) int
	// Float64 returns a uniform float in [0, 1)
	Float64() float64
}

// View is a point-in-time copy of a machine's state
type View struct {
	Team      tally.TeamID `json:"team"`
	State     State        `json:"state"`
	Impact    bool         `json:"impact"`
	Visible   bool         `json:"visible"`
	Selection string       `json:"selection,omitempty"`
}

// EventType names a machine transition
type EventType string

const (
	EventReactionStarted EventType = "reaction_started"
	EventImpactCleared   EventType = "impact_cleared"
	EventReactionEnded   EventType = "reaction_ended"
)

// Event is published to the board observer after every transition
type Event struct {
	Type EventType `json:"type"`
	View View      `json:"view"`
	// Sound is set on reaction_started when a sound was drawn
	Sound string    `json:"sound,omitempty"`
	At    time.Time `json:"at"`
}

// Observer receives machine events. It is called outside machine locks.
type Observer func(Event)

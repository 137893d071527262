package reaction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/slapboard/go/internal/tally"
)

// Option customizes a Board
type Option func(*Board)

// WithClock replaces the real clock. In tests, use a clockwork.FakeClock.
func WithClock(clock clockwork.Clock) Option {
	return func(b *Board) { b.clock = clock }
}

// WithPicker replaces the math/rand picker
func WithPicker(p Picker) Option {
	return func(b *Board) { b.picker = p }
}

// WithSoundPlayer sets where drawn sounds are played
func WithSoundPlayer(p SoundPlayer) Option {
	return func(b *Board) { b.player = p }
}

// WithObserver sets the transition observer
func WithObserver(o Observer) Option {
	return func(b *Board) { b.observer = o }
}

// WithMetrics sets the metrics collector
func WithMetrics(m MetricsCollector) Option {
	return func(b *Board) { b.metrics = m }
}

// WithID overrides the generated board ID
func WithID(id string) Option {
	return func(b *Board) { b.id = id }
}

// Board holds one independent Machine per roster team
type Board struct {
	id       string
	roster   *tally.Roster
	machines map[tally.TeamID]*Machine

	clock    clockwork.Clock
	picker   Picker
	player   SoundPlayer
	observer Observer
	metrics  MetricsCollector
}

// NewBoard builds an Idle machine for every team in the roster
func NewBoard(roster *tally.Roster, store Incrementer, cfg Config, opts ...Option) (*Board, error) {
	if roster == nil {
		return nil, fmt.Errorf("roster is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reaction config: %w", err)
	}

	b := &Board{
		id:      uuid.New().String()[:8],
		roster:  roster,
		clock:   clockwork.NewRealClock(),
		picker:  randPicker{},
		player:  silentPlayer{},
		metrics: NoOpMetricsCollector{},
	}
	for _, opt := range opts {
		opt(b)
	}

	b.machines = make(map[tally.TeamID]*Machine, len(roster.IDs()))
	for _, team := range roster.Teams() {
		b.machines[team.ID] = &Machine{
			team:     team,
			cfg:      cfg,
			clock:    b.clock,
			picker:   b.picker,
			store:    store,
			player:   b.player,
			metrics:  b.metrics,
			observer: b.observer,
			boardID:  b.id,
		}
	}

	log.Debug().
		Str("board_id", b.id).
		Int("teams", len(b.machines)).
		Msg("board created")

	return b, nil
}

// ID returns the board identifier used in logs
func (b *Board) ID() string {
	return b.id
}

// Click forwards a click to the team's machine and reports whether a reaction started
func (b *Board) Click(team tally.TeamID) (bool, error) {
	m, ok := b.machines[team]
	if !ok {
		return false, fmt.Errorf("%w: %q", tally.ErrUnknownTeam, team)
	}
	return m.Click(), nil
}

// View returns the current state of one team
func (b *Board) View(team tally.TeamID) (View, error) {
	m, ok := b.machines[team]
	if !ok {
		return View{}, fmt.Errorf("%w: %q", tally.ErrUnknownTeam, team)
	}
	return m.View(), nil
}

// Views returns every team's state in declaration order
func (b *Board) Views() []View {
	ids := b.roster.IDs()
	views := make([]View, len(ids))
	for i, id := range ids {
		views[i] = b.machines[id].View()
	}
	return views
}

// Wait blocks until every in-flight increment and playback has returned
func (b *Board) Wait() {
	for _, m := range b.machines {
		m.wait()
	}
}

// Close stops pending reaction timers, drops later clicks and waits for in-flight effects
func (b *Board) Close() {
	for _, m := range b.machines {
		m.close()
	}
	b.Wait()
	log.Debug().Str("board_id", b.id).Msg("board closed")
}

// silentPlayer is used when no sound output is configured
type silentPlayer struct{}

func (silentPlayer) Play(ctx context.Context, team tally.TeamID, sound string) error {
	return nil
}
